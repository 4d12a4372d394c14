package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/evobench/evobenchd/internal/config"
	"github.com/evobench/evobenchd/internal/job"
)

var removeQueueName string

var removeCmd = &cobra.Command{
	Use:   "remove <key>",
	Short: "Remove a job from a queue by its insertion key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		doc, err := loadConfig()
		if err != nil {
			return err
		}
		spec, ok := findQueueSpec(doc, removeQueueName)
		if !ok {
			return fmt.Errorf("%w: unknown pipeline queue %q", config.ErrInvalidConfig, removeQueueName)
		}
		q, err := openQueue(doc, spec)
		if err != nil {
			return err
		}
		return q.Remove(job.Key(args[0]))
	},
}

var (
	moveFromQueue string
	moveToQueue   string
)

var moveCmd = &cobra.Command{
	Use:   "move <key>",
	Short: "Move a job from one queue to another, e.g. out of the graveyard",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		doc, err := loadConfig()
		if err != nil {
			return err
		}
		fromSpec, ok := findQueueSpec(doc, moveFromQueue)
		if !ok {
			return fmt.Errorf("%w: unknown pipeline queue %q", config.ErrInvalidConfig, moveFromQueue)
		}
		toSpec, ok := findQueueSpec(doc, moveToQueue)
		if !ok {
			return fmt.Errorf("%w: unknown pipeline queue %q", config.ErrInvalidConfig, moveToQueue)
		}
		from, err := openQueue(doc, fromSpec)
		if err != nil {
			return err
		}
		to, err := openQueue(doc, toSpec)
		if err != nil {
			return err
		}
		newKey, err := from.MoveInto(to, job.Key(args[0]))
		if err != nil {
			return err
		}
		fmt.Println(newKey.String())
		return nil
	},
}

func init() {
	removeCmd.Flags().StringVar(&removeQueueName, "queue", "", "queue holding the job (required)")
	_ = removeCmd.MarkFlagRequired("queue")

	moveCmd.Flags().StringVar(&moveFromQueue, "from", "", "queue currently holding the job (required)")
	moveCmd.Flags().StringVar(&moveToQueue, "to", "", "destination queue (required)")
	_ = moveCmd.MarkFlagRequired("from")
	_ = moveCmd.MarkFlagRequired("to")

	rootCmd.AddCommand(removeCmd)
	rootCmd.AddCommand(moveCmd)
}
