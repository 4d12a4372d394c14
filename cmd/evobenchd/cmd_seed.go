package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/evobench/evobenchd/internal/config"
)

var seedFlags struct {
	queueName string
	commit    string
}

var seedCmd = &cobra.Command{
	Use:   "seed <branch>",
	Short: "Instantiate the job templates configured for a polled remote branch",
	Long: "seed resolves remote_repository.remote_branch_names_for_poll[branch] to its " +
		"TemplateSelector, instantiates every JobTemplate it selects, and inserts the " +
		"resulting jobs into a queue. It is the insertion point an external trigger " +
		"(CI webhook, cron) calls once it has already detected that branch moved to a " +
		"new commit; this daemon does not poll a remote itself (spec §1: repository " +
		"operations are delegated to external tooling).",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSeed(args[0], seedFlags.queueName, seedFlags.commit)
	},
}

func init() {
	seedCmd.Flags().StringVar(&seedFlags.queueName, "queue", "", "destination queue name (required)")
	seedCmd.Flags().StringVar(&seedFlags.commit, "commit", "", "commit to stamp onto every instantiated job, overriding each template's own commit")
	_ = seedCmd.MarkFlagRequired("queue")
	rootCmd.AddCommand(seedCmd)
}

func runSeed(branch, queueName, commit string) error {
	doc, err := loadConfig()
	if err != nil {
		return err
	}

	selector, ok := doc.RemoteRepository.RemoteBranchNamesForPoll[branch]
	if !ok {
		return fmt.Errorf("%w: remote_repository.remote_branch_names_for_poll has no entry for branch %q", config.ErrInvalidConfig, branch)
	}
	templates, err := selector.Resolve(doc.JobTemplateLists)
	if err != nil {
		return err
	}

	spec, ok := findQueueSpec(doc, queueName)
	if !ok {
		return fmt.Errorf("%w: unknown pipeline queue %q", config.ErrInvalidConfig, queueName)
	}
	q, err := openQueue(doc, spec)
	if err != nil {
		return err
	}

	for i, tmpl := range templates {
		rec := tmpl.Instantiate(doc.BenchmarkingJobSettings)
		if commit != "" {
			rec.RunParameters.Commit = commit
		}
		if err := rec.Validate(); err != nil {
			return fmt.Errorf("job_template_lists entry %d for branch %q: %w", i, branch, err)
		}
		key, err := q.Insert(rec)
		if err != nil {
			return err
		}
		fmt.Println(key.String())
	}
	return nil
}
