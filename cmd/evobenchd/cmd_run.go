package main

import (
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run scheduler-side commands",
}

var restartOnUpgrades bool

var runDaemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the scheduler loop: select, check out, benchmark, and ingest jobs",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDaemon(cmd.Context(), restartOnUpgrades)
	},
}

func init() {
	runDaemonCmd.Flags().BoolVar(&restartOnUpgrades, "restart-on-upgrades", false,
		"exit cleanly once the on-disk binary has been replaced, for a supervisor to restart")
	runCmd.AddCommand(runDaemonCmd)
	rootCmd.AddCommand(runCmd)
}
