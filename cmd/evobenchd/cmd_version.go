package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/evobench/evobenchd/internal/buildinfo"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print build metadata",
	RunE: func(cmd *cobra.Command, args []string) error {
		info := buildinfo.Current()
		fmt.Printf("evobenchd %s (commit %s, built %s)\n", info.Version, info.GitCommit, info.BuildDate)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
