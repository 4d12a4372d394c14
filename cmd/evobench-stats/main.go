// Command evobench-stats is the standalone evaluator: it parses a single
// probe log into single-run statistics, or re-indexes a directory of prior
// runs into summary statistics, independent of the scheduling daemon (spec
// §4.6-4.8, §6 CLI surface).
package main

func main() {
	Execute()
}
