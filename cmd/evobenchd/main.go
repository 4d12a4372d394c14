// Command evobenchd is the scheduling daemon and its job-queue CLI: insert
// jobs, list queue contents, and run the scheduler loop that selects,
// checks out, and benchmarks them (spec §4, §6 CLI surface).
package main

func main() {
	Execute()
}
