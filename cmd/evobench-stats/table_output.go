package main

import (
	"os"

	"github.com/evobench/evobenchd/internal/stats"
)

// writeTableTo renders table as CSV to path, or to stdout when path is empty.
func writeTableTo[L stats.Level](path string, table *stats.Table[L]) error {
	if path == "" {
		return stats.WriteTable(os.Stdout, table)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return stats.WriteTable(f, table)
}
