package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/evobench/evobenchd/internal/flamegraph"
	"github.com/evobench/evobenchd/internal/ingest"
)

var singleFlags struct {
	outTable          string
	outFlamegraphReal string
	outFlamegraphCPU  string
	outFlamegraphSys  string
	includePoints     bool
	subtractFlush     bool
}

var singleCmd = &cobra.Command{
	Use:   "single <log>",
	Short: "Parse one probe log into its single-run statistics table",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSingle(args[0])
	},
}

func init() {
	singleCmd.Flags().StringVar(&singleFlags.outTable, "out-table", "", "path to write the single-run table as CSV (default: stdout)")
	singleCmd.Flags().StringVar(&singleFlags.outFlamegraphReal, "out-flamegraph-real", "", "path to write a folded-stack flamegraph over real time")
	singleCmd.Flags().StringVar(&singleFlags.outFlamegraphCPU, "out-flamegraph-cpu", "", "path to write a folded-stack flamegraph over CPU time")
	singleCmd.Flags().StringVar(&singleFlags.outFlamegraphSys, "out-flamegraph-system", "", "path to write a folded-stack flamegraph over system time")
	singleCmd.Flags().BoolVar(&singleFlags.includePoints, "include-point-events", false, "bucket Point leaves alongside scope spans")
	singleCmd.Flags().BoolVar(&singleFlags.subtractFlush, "subtract-flush-timing", false, "subtract accumulated FlushTiming overhead from span timings")
	rootCmd.AddCommand(singleCmd)
}

func runSingle(logPath string) error {
	f, err := os.Open(logPath)
	if err != nil {
		return err
	}
	defer f.Close()

	result, err := ingest.Run(f, logPath, ingest.Options{
		IncludePointEvents:  singleFlags.includePoints,
		SubtractFlushTiming: singleFlags.subtractFlush,
	})
	if err != nil {
		return err
	}

	if err := writeTableTo(singleFlags.outTable, result.Table); err != nil {
		return err
	}

	fields := []struct {
		path     string
		selector flamegraph.FieldSelector
	}{
		{singleFlags.outFlamegraphReal, flamegraph.FieldReal},
		{singleFlags.outFlamegraphCPU, flamegraph.FieldCPU},
		{singleFlags.outFlamegraphSys, flamegraph.FieldSystem},
	}
	for _, field := range fields {
		if field.path == "" {
			continue
		}
		out, err := os.Create(field.path)
		if err != nil {
			return err
		}
		writeErr := flamegraph.WriteFoldedStacks(out, result.Tree, field.selector)
		closeErr := out.Close()
		if writeErr != nil {
			return fmt.Errorf("write flamegraph %s: %w", field.path, writeErr)
		}
		if closeErr != nil {
			return closeErr
		}
	}
	return nil
}
