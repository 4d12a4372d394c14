package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/evobench/evobenchd/internal/config"
	"github.com/evobench/evobenchd/internal/queue"
)

var listQueueName string

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List jobs held by one pipeline queue",
	RunE: func(cmd *cobra.Command, args []string) error {
		doc, err := loadConfig()
		if err != nil {
			return err
		}
		spec, ok := findQueueSpec(doc, listQueueName)
		if !ok {
			return fmt.Errorf("%w: unknown pipeline queue %q", config.ErrInvalidConfig, listQueueName)
		}
		q, err := openQueue(doc, spec)
		if err != nil {
			return err
		}
		return printEntries(q)
	},
}

var listAllCmd = &cobra.Command{
	Use:   "list-all",
	Short: "List jobs held by every pipeline queue",
	RunE: func(cmd *cobra.Command, args []string) error {
		doc, err := loadConfig()
		if err != nil {
			return err
		}
		for _, spec := range doc.Pipeline {
			q, err := openQueue(doc, spec)
			if err != nil {
				return err
			}
			fmt.Printf("# %s\n", spec.Name)
			if err := printEntries(q); err != nil {
				return err
			}
		}
		return nil
	},
}

func init() {
	listCmd.Flags().StringVar(&listQueueName, "queue", "", "queue to list (required)")
	_ = listCmd.MarkFlagRequired("queue")

	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(listAllCmd)
}

func openQueue(doc config.Document, spec config.QueueSpec) (*queue.Queue, error) {
	kind, err := spec.Build()
	if err != nil {
		return nil, err
	}
	return queue.Open(filepath.Join(doc.StateRoot, "queues"), kind)
}

// printEntries prints one line per job, skipping any that vanish mid-read
// (spec §5 tolerant-reader posture for listing commands).
func printEntries(q *queue.Queue) error {
	entries, err := q.Entries()
	if err != nil {
		return err
	}
	for _, e := range entries {
		fmt.Printf("%s\ttarget=%s\tcommit=%s\tpriority=%g\tremaining_count=%d\tremaining_error_budget=%d\treason=%q\n",
			e.Key, e.Record.Command.TargetName, e.Record.RunParameters.Commit,
			e.Record.Priority+e.Record.CurrentBoost, e.Record.RemainingCount, e.Record.RemainingErrorBudget, e.Record.Reason)
	}
	return nil
}
