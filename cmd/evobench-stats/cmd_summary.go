package main

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/evobench/evobenchd/internal/ingest"
	"github.com/evobench/evobenchd/internal/stats"
)

var summaryFlags struct {
	out           string
	field         string
	tile          int
	useTile       bool
	includePoints bool
	subtractFlush bool
}

var summaryCmd = &cobra.Command{
	Use:   "summary <dir>",
	Short: "Re-index every evobench.log under dir into a summary statistics table",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSummary(args[0])
	},
}

func init() {
	summaryCmd.Flags().StringVar(&summaryFlags.out, "out", "", "path to write the summary table as CSV (default: stdout)")
	summaryCmd.Flags().StringVar(&summaryFlags.field, "field", "median", "scalar extracted from each run's vector: count, sum, average, stddev, median")
	summaryCmd.Flags().IntVar(&summaryFlags.tile, "tile", -1, "extract a percentile tile index instead of --field")
	summaryCmd.Flags().BoolVar(&summaryFlags.includePoints, "include-point-events", false, "bucket Point leaves alongside scope spans")
	summaryCmd.Flags().BoolVar(&summaryFlags.subtractFlush, "subtract-flush-timing", false, "subtract accumulated FlushTiming overhead from span timings")
	rootCmd.AddCommand(summaryCmd)
}

func runSummary(dir string) error {
	tables, err := collectRunTables(dir)
	if err != nil {
		return err
	}
	if len(tables) == 0 {
		return fmt.Errorf("summary: no evobench.log found under %s", dir)
	}

	field := stats.StatsField{Name: summaryFlags.field}
	if summaryFlags.tile >= 0 {
		field = stats.StatsField{Tile: summaryFlags.tile, UseTile: true}
	}

	summary, err := stats.Summarize(tables, field)
	if err != nil {
		return err
	}
	return writeTableTo(summaryFlags.out, summary)
}

// collectRunTables parses every evobench.log found under dir, skipping any
// that fails to parse (spec §7(d): a log parse failure is nonfatal to the
// broader statistics step here too).
func collectRunTables(dir string) ([]*stats.Table[stats.SingleRun], error) {
	var tables []*stats.Table[stats.SingleRun]

	opts := ingest.Options{
		IncludePointEvents:  summaryFlags.includePoints,
		SubtractFlushTiming: summaryFlags.subtractFlush,
	}

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || d.Name() != "evobench.log" {
			return nil
		}
		f, openErr := os.Open(path)
		if openErr != nil {
			fmt.Fprintf(os.Stderr, "skipping %s: %v\n", path, openErr)
			return nil
		}
		result, runErr := ingest.Run(f, path, opts)
		f.Close()
		if runErr != nil {
			fmt.Fprintf(os.Stderr, "skipping %s: %v\n", path, runErr)
			return nil
		}
		tables = append(tables, result.Table)
		return nil
	})
	return tables, err
}
