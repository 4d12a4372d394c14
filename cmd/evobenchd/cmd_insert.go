package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/evobench/evobenchd/internal/config"
	"github.com/evobench/evobenchd/internal/job"
	"github.com/evobench/evobenchd/internal/queue"
)

type insertFlags struct {
	queueName        string
	targetName       string
	commit           string
	reason           string
	priority         float64
	preCommand       string
	workingDirSubdir string
	initialCount     int
	initialBudget    int
	params           []string
}

func (f insertFlags) record() (job.Record, error) {
	custom, err := parseParams(f.params)
	if err != nil {
		return job.Record{}, err
	}
	rec := job.Record{
		Reason: f.reason,
		RunParameters: job.RunParameters{
			Commit:           f.commit,
			CustomParameters: custom,
		},
		Command: job.Command{
			TargetName:       f.targetName,
			PreCommand:       f.preCommand,
			WorkingDirSubdir: f.workingDirSubdir,
		},
		Priority:             f.priority,
		RemainingCount:       f.initialCount,
		RemainingErrorBudget: f.initialBudget,
	}
	return rec, rec.Validate()
}

func parseParams(raw []string) (map[string]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	params := make(map[string]string, len(raw))
	for _, kv := range raw {
		name, value, ok := strings.Cut(kv, "=")
		if !ok {
			return nil, fmt.Errorf("invalid --param %q, want name=value", kv)
		}
		params[name] = value
	}
	return params, nil
}

func registerInsertFlags(cmd *cobra.Command, f *insertFlags) {
	cmd.Flags().StringVar(&f.targetName, "target", "", "target_name to run (required)")
	cmd.Flags().StringVar(&f.commit, "commit", "", "commit identifier to benchmark")
	cmd.Flags().StringVar(&f.reason, "reason", "", "free-text provenance for the job")
	cmd.Flags().Float64Var(&f.priority, "priority", 0, "signed rational priority")
	cmd.Flags().StringVar(&f.preCommand, "pre-command", "", "optional pre-command shell snippet")
	cmd.Flags().StringVar(&f.workingDirSubdir, "working-dir-subdir", "", "working-directory-relative subpath")
	cmd.Flags().IntVar(&f.initialCount, "initial-count", 1, "remaining_count to seed the job with")
	cmd.Flags().IntVar(&f.initialBudget, "initial-error-budget", 3, "remaining_error_budget to seed the job with")
	cmd.Flags().StringArrayVar(&f.params, "param", nil, "custom run parameter as name=value (repeatable)")
	_ = cmd.MarkFlagRequired("target")
}

var insertCmdFlags insertFlags

var insertCmd = &cobra.Command{
	Use:   "insert",
	Short: "Insert a job into a named pipeline queue",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInsert(insertCmdFlags)
	},
}

var insertLocalCmdFlags insertFlags

var insertLocalCmd = &cobra.Command{
	Use:   "insert-local",
	Short: "Insert a job into the pipeline's first queue, for quick local testing",
	RunE: func(cmd *cobra.Command, args []string) error {
		f := insertLocalCmdFlags
		if f.queueName == "" {
			doc, err := loadConfig()
			if err != nil {
				return err
			}
			if len(doc.Pipeline) == 0 {
				return fmt.Errorf("insert-local: configuration has no pipeline queues")
			}
			f.queueName = doc.Pipeline[0].Name
		}
		return runInsert(f)
	},
}

func init() {
	registerInsertFlags(insertCmd, &insertCmdFlags)
	insertCmd.Flags().StringVar(&insertCmdFlags.queueName, "queue", "", "destination queue name (required)")
	_ = insertCmd.MarkFlagRequired("queue")

	registerInsertFlags(insertLocalCmd, &insertLocalCmdFlags)
	insertLocalCmd.Flags().StringVar(&insertLocalCmdFlags.queueName, "queue", "", "destination queue name (defaults to the pipeline's first queue)")

	rootCmd.AddCommand(insertCmd)
	rootCmd.AddCommand(insertLocalCmd)
}

func runInsert(f insertFlags) error {
	doc, err := loadConfig()
	if err != nil {
		return err
	}
	if _, ok := doc.TargetByName(f.targetName); !ok {
		return fmt.Errorf("%w: unknown target_name %q", config.ErrInvalidConfig, f.targetName)
	}

	spec, ok := findQueueSpec(doc, f.queueName)
	if !ok {
		return fmt.Errorf("%w: unknown pipeline queue %q", config.ErrInvalidConfig, f.queueName)
	}
	kind, err := spec.Build()
	if err != nil {
		return err
	}

	q, err := queue.Open(filepath.Join(doc.StateRoot, "queues"), kind)
	if err != nil {
		return err
	}

	rec, err := f.record()
	if err != nil {
		return err
	}

	key, err := q.Insert(rec)
	if err != nil {
		return err
	}

	fmt.Println(key.String())
	return nil
}

func findQueueSpec(doc config.Document, name string) (config.QueueSpec, bool) {
	for _, spec := range doc.Pipeline {
		if spec.Name == name {
			return spec, true
		}
	}
	return config.QueueSpec{}, false
}
