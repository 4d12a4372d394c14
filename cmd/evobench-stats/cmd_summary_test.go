package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCollectRunTablesWalksSubdirectoriesAndSkipsBadLogs(t *testing.T) {
	dir := t.TempDir()

	run1 := filepath.Join(dir, "run1")
	run2 := filepath.Join(dir, "run2")
	badRun := filepath.Join(dir, "bad")
	if err := os.MkdirAll(run1, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(run2, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(badRun, 0o755); err != nil {
		t.Fatal(err)
	}

	writeSampleLog(t, run1, "evobench.log")
	writeSampleLog(t, run2, "evobench.log")
	if err := os.WriteFile(filepath.Join(badRun, "evobench.log"), []byte("not json at all"), 0o644); err != nil {
		t.Fatal(err)
	}

	summaryFlags.includePoints = false
	summaryFlags.subtractFlush = false

	tables, err := collectRunTables(dir)
	if err != nil {
		t.Fatalf("collectRunTables: %v", err)
	}
	if len(tables) != 2 {
		t.Fatalf("expected 2 parseable run tables, got %d", len(tables))
	}
}

func TestCollectRunTablesEmptyDir(t *testing.T) {
	tables, err := collectRunTables(t.TempDir())
	if err != nil {
		t.Fatalf("collectRunTables: %v", err)
	}
	if len(tables) != 0 {
		t.Fatalf("expected no tables, got %d", len(tables))
	}
}

func TestRunSummaryNoLogsFound(t *testing.T) {
	summaryFlags.out = ""
	summaryFlags.field = "median"
	summaryFlags.tile = -1

	if err := runSummary(t.TempDir()); err == nil {
		t.Fatal("expected error when no evobench.log is found under dir")
	}
}

func TestRunSummaryWritesTable(t *testing.T) {
	dir := t.TempDir()
	run1 := filepath.Join(dir, "run1")
	if err := os.MkdirAll(run1, 0o755); err != nil {
		t.Fatal(err)
	}
	writeSampleLog(t, run1, "evobench.log")

	summaryFlags.out = filepath.Join(dir, "summary.csv")
	summaryFlags.field = "median"
	summaryFlags.tile = -1

	if err := runSummary(dir); err != nil {
		t.Fatalf("runSummary: %v", err)
	}
	if _, err := os.Stat(summaryFlags.out); err != nil {
		t.Fatalf("expected summary file to exist: %v", err)
	}
}
