package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func sampleProbeLog() string {
	var b strings.Builder
	b.WriteString(`{"version":1,"hostname":"h"}` + "\n")
	b.WriteString(`{"kind":"start"}` + "\n")
	b.WriteString(`{"kind":"scope_begin","thread":0,"scope_name":"root"}` + "\n")
	b.WriteString(`{"kind":"scope_end","thread":0,"scope_name":"root","timings":{"real":10,"cpu":8,"system":1}}` + "\n")
	b.WriteString(`{"kind":"thread_end","thread":0}` + "\n")
	return b.String()
}

func writeSampleLog(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(sampleProbeLog()), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRunSingleWritesTableAndFlamegraphs(t *testing.T) {
	dir := t.TempDir()
	logPath := writeSampleLog(t, dir, "evobench.log")

	singleFlags.outTable = filepath.Join(dir, "table.csv")
	singleFlags.outFlamegraphReal = filepath.Join(dir, "real.folded")
	singleFlags.outFlamegraphCPU = ""
	singleFlags.outFlamegraphSys = ""
	singleFlags.includePoints = false
	singleFlags.subtractFlush = false
	defer func() { singleFlags = struct {
		outTable          string
		outFlamegraphReal string
		outFlamegraphCPU  string
		outFlamegraphSys  string
		includePoints     bool
		subtractFlush     bool
	}{} }()

	if err := runSingle(logPath); err != nil {
		t.Fatalf("runSingle: %v", err)
	}

	if _, err := os.Stat(singleFlags.outTable); err != nil {
		t.Fatalf("expected table file to exist: %v", err)
	}
	if _, err := os.Stat(singleFlags.outFlamegraphReal); err != nil {
		t.Fatalf("expected flamegraph file to exist: %v", err)
	}
}

func TestRunSingleMissingFile(t *testing.T) {
	singleFlags.outTable = ""
	if err := runSingle(filepath.Join(t.TempDir(), "missing.log")); err == nil {
		t.Fatal("expected error for missing log file")
	}
}
