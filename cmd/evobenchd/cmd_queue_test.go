package main

import (
	"testing"

	"github.com/evobench/evobenchd/internal/job"
)

func TestRemoveAndMoveViaOpenQueue(t *testing.T) {
	cfgPath := writeTestConfig(t)
	configPath = cfgPath
	defer func() { configPath = "" }()

	doc, err := loadConfig()
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	immediateSpec, _ := findQueueSpec(doc, "immediate")
	graveyardSpec, _ := findQueueSpec(doc, "graveyard")

	immediate, err := openQueue(doc, immediateSpec)
	if err != nil {
		t.Fatalf("openQueue(immediate): %v", err)
	}
	graveyard, err := openQueue(doc, graveyardSpec)
	if err != nil {
		t.Fatalf("openQueue(graveyard): %v", err)
	}

	key, err := immediate.Insert(job.Record{
		Command:              job.Command{TargetName: "bench-a"},
		RemainingCount:       1,
		RemainingErrorBudget: 1,
	})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}

	newKey, err := immediate.MoveInto(graveyard, key)
	if err != nil {
		t.Fatalf("MoveInto: %v", err)
	}

	if err := graveyard.Remove(newKey); err != nil {
		t.Fatalf("Remove: %v", err)
	}

	entries, err := graveyard.Entries()
	if err != nil {
		t.Fatalf("Entries: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected graveyard to be empty after remove, got %d entries", len(entries))
	}
}
