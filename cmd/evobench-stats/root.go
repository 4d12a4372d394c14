package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const (
	exitCodeSuccess     = 0
	exitCodeRecoverable = 1
)

var rootCmd = &cobra.Command{
	Use:           "evobench-stats",
	Short:         "Evaluate probe logs into single-run or summary statistics",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the CLI, mapping any error to exit code 1: the evaluator has
// no daemon-only fatal class (spec §6 exit codes; corrupted-state and
// lock-contention codes are a scheduler-daemon concern).
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCodeRecoverable)
	}
	os.Exit(exitCodeSuccess)
}
