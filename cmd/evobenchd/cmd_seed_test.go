package main

import (
	"os"
	"path/filepath"
	"testing"
)

func writeSeedTestConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	contents := []byte(
		"targets:\n" +
			"  - target_name: bench-a\n" +
			"    command: ./run.sh\n" +
			"working_directory_pool:\n" +
			"  capacity: 2\n" +
			"  root: " + filepath.Join(dir, "workdir") + "\n" +
			"pipeline:\n" +
			"  - name: immediate\n" +
			"    kind: immediately\n" +
			"state_root: " + filepath.Join(dir, "state") + "\n" +
			"benchmarking_job_settings:\n" +
			"  initial_count: 1\n" +
			"  initial_error_budget: 3\n" +
			"job_template_lists:\n" +
			"  nightly:\n" +
			"    - reason: nightly run\n" +
			"      target_name: bench-a\n" +
			"remote_repository:\n" +
			"  remote_branch_names_for_poll:\n" +
			"    main: nightly\n")
	if err := os.WriteFile(cfgPath, contents, 0o644); err != nil {
		t.Fatal(err)
	}
	return cfgPath
}

func TestRunSeedInstantiatesTemplatesForKnownBranch(t *testing.T) {
	cfgPath := writeSeedTestConfig(t)
	configPath = cfgPath
	defer func() { configPath = "" }()

	if err := runSeed("main", "immediate", "deadbeef"); err != nil {
		t.Fatalf("runSeed: %v", err)
	}

	doc, err := loadConfig()
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	spec, _ := findQueueSpec(doc, "immediate")
	q, err := openQueue(doc, spec)
	if err != nil {
		t.Fatalf("openQueue: %v", err)
	}
	entries, err := q.Entries()
	if err != nil {
		t.Fatalf("Entries: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 seeded job, got %d", len(entries))
	}
	if entries[0].Record.RunParameters.Commit != "deadbeef" {
		t.Fatalf("expected commit override applied, got %q", entries[0].Record.RunParameters.Commit)
	}
	if entries[0].Record.Reason != "nightly run" {
		t.Fatalf("unexpected reason: %q", entries[0].Record.Reason)
	}
}

func TestRunSeedUnknownBranch(t *testing.T) {
	cfgPath := writeSeedTestConfig(t)
	configPath = cfgPath
	defer func() { configPath = "" }()

	if err := runSeed("does-not-exist", "immediate", ""); err == nil {
		t.Fatal("expected error for unknown branch")
	}
}

func TestRunSeedUnknownQueue(t *testing.T) {
	cfgPath := writeSeedTestConfig(t)
	configPath = cfgPath
	defer func() { configPath = "" }()

	if err := runSeed("main", "not-a-queue", ""); err == nil {
		t.Fatal("expected error for unknown queue")
	}
}
