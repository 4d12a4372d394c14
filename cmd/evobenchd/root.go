package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/evobench/evobenchd/internal/config"
	"github.com/evobench/evobenchd/internal/statelock"
)

const (
	exitCodeSuccess     = 0
	exitCodeRecoverable = 1
	exitCodeFatal       = 2
)

var (
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:           "evobenchd",
	Short:         "Continuous benchmarking scheduler",
	Long:          "evobenchd schedules, runs, and ingests results for continuous benchmarking jobs.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to the scheduler configuration document")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Structured log level (debug, info, warn, error)")
}

// Execute runs the CLI and translates the result into the exit codes spec §6
// defines: 0 success, 1 recoverable error, 2 fatal error.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	if err == nil {
		os.Exit(exitCodeSuccess)
	}

	fmt.Fprintln(os.Stderr, err)

	if errors.Is(err, statelock.ErrHeld) || errors.Is(err, errCorruptedState) {
		os.Exit(exitCodeFatal)
	}
	if errors.Is(err, config.ErrInvalidConfig) {
		os.Exit(exitCodeRecoverable)
	}
	os.Exit(exitCodeRecoverable)
}

// errCorruptedState is wrapped by errors the daemon cannot recover from
// short of operator intervention (spec §7(e)).
var errCorruptedState = errors.New("evobenchd: corrupted state")

func loadConfig() (config.Document, error) {
	return config.Load(configPath)
}
