package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/evobench/evobenchd/internal/config"
	"github.com/evobench/evobenchd/internal/pipeline"
	"github.com/evobench/evobenchd/internal/runner"
	"github.com/evobench/evobenchd/internal/statelock"
	"github.com/evobench/evobenchd/internal/vcs"
	"github.com/evobench/evobenchd/internal/wdpool"
)

// pollInterval bounds how long the scheduler sleeps when no queue is
// currently runnable and none holds a job waiting on a future time window.
const pollInterval = 5 * time.Second

// runDaemon implements the scheduler loop (spec §4.3 "Running a job" steps
// 1-3, "Config reload"): select the best candidate across every runnable
// queue, run it, apply its outcome, and repeat until ctx is cancelled.
func runDaemon(ctx context.Context, restartOnUpgrades bool) error {
	doc, err := loadConfig()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(doc.StateRoot, 0o755); err != nil {
		return fmt.Errorf("create state root %s: %w", doc.StateRoot, err)
	}

	lock, err := statelock.Acquire(doc.StateRoot)
	if err != nil {
		return err
	}
	defer func() { _ = lock.Release() }()

	logger, err := buildLogger(logLevel)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	pool, err := wdpool.Open(doc.WorkingDirectoryPool.Root, doc.WorkingDirectoryPool.Capacity)
	if err != nil {
		return err
	}

	p, err := openPipeline(doc)
	if err != nil {
		return err
	}
	holder := pipeline.NewSnapshotHolder(p)

	deps := runner.Deps{
		Config:    &doc,
		Pool:      pool,
		Checkouts: vcs.NewCheckouts(vcs.Checkout{}),
		Logger:    logger,
	}

	var fingerprint binaryFingerprint
	if restartOnUpgrades {
		fingerprint, _ = fingerprintRunningBinary()
	}

	reload := make(chan os.Signal, 1)
	signal.Notify(reload, syscall.SIGHUP)
	defer signal.Stop(reload)

	logger.Info("evobenchd daemon started", zap.String("state_root", doc.StateRoot))

	for {
		select {
		case <-ctx.Done():
			logger.Info("shutdown signal received")
			return nil
		case <-reload:
			if err := reloadPipeline(logger, holder, &doc); err != nil {
				logger.Warn("config reload failed, continuing with previous pipeline", zap.Error(err))
			} else {
				deps.Config = &doc
				logger.Info("config reloaded")
			}
			continue
		default:
		}

		done, err := tick(ctx, logger, holder, deps)
		if err != nil {
			return fmt.Errorf("%w: %w", errCorruptedState, err)
		}
		if done {
			return nil
		}

		if restartOnUpgrades && fingerprint.changed() {
			logger.Info("binary on disk has changed, exiting for supervisor restart")
			return nil
		}
	}
}

// tick runs one selection/run/apply cycle. It returns done=true when the
// caller should stop the loop (ctx cancelled mid-run), or a non-nil error
// when persisting the run's outcome failed: a filesystem write failure
// while persisting a job is fatal to the daemon (spec §7(e)), never
// silently swallowed.
func tick(ctx context.Context, logger *zap.Logger, holder *pipeline.SnapshotHolder, deps runner.Deps) (bool, error) {
	snap := holder.Acquire()
	defer snap.Release()

	candidate, err := snap.Pipeline.Select(time.Now())
	if err != nil {
		logger.Error("selection failed", zap.Error(err))
		return false, nil
	}
	if candidate == nil {
		waitForWork(ctx, snap.Pipeline)
		return false, nil
	}

	outcome, err := runner.Run(ctx, deps, candidate)
	if err != nil {
		if errors.Is(err, runner.ErrCancelled) {
			return true, nil
		}
		logger.Error("run failed", zap.Error(err))
		return false, nil
	}

	if err := snap.Pipeline.Apply(logger, candidate, outcome.Result); err != nil {
		return false, fmt.Errorf("persisting run outcome: %w", err)
	}
	return false, nil
}

// waitForWork sleeps until the earliest future time-window queue opens, a
// bounded poll interval elapses, or ctx is cancelled, whichever comes first
// (spec §4.3 step 3).
func waitForWork(ctx context.Context, p *pipeline.Pipeline) {
	wait := pollInterval
	if next, ok := p.NextWindowOpen(time.Now()); ok {
		if until := time.Until(next); until > 0 && until < wait {
			wait = until
		}
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

func openPipeline(doc config.Document) (*pipeline.Pipeline, error) {
	kinds, err := doc.BuildPipeline()
	if err != nil {
		return nil, err
	}
	return pipeline.Open(filepath.Join(doc.StateRoot, "queues"), kinds, doc.FinishedSink, doc.ErrorSink)
}

// reloadPipeline reparses the configuration document, drains any queue the
// new pipeline no longer names into the error sink, and swaps the snapshot
// (spec §4.3 "Config reload").
func reloadPipeline(logger *zap.Logger, holder *pipeline.SnapshotHolder, doc *config.Document) error {
	newDoc, err := loadConfig()
	if err != nil {
		return err
	}
	newPipeline, err := openPipeline(newDoc)
	if err != nil {
		return err
	}

	newNames := make(map[string]bool, len(newPipeline.Queues))
	for _, q := range newPipeline.Queues {
		newNames[q.Kind.Name()] = true
	}

	old := holder.Acquire()
	drainErr := pipeline.DrainRemovedQueues(logger, old.Pipeline, newNames, newPipeline.ErrorSink)
	old.Release()
	if drainErr != nil {
		return drainErr
	}

	holder.Swap(newPipeline)
	*doc = newDoc
	return nil
}
