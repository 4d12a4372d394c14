// Package runner executes one selected job: reserving a working directory,
// checking out its commit, running the pre-command and benchmarking
// command, laying down the run's artifacts, and feeding a successful run's
// probe log through the ingestion pipeline (spec §4.3 "Running a job", §6).
package runner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/evobench/evobenchd/internal/config"
	"github.com/evobench/evobenchd/internal/flamegraph"
	"github.com/evobench/evobenchd/internal/ingest"
	"github.com/evobench/evobenchd/internal/job"
	"github.com/evobench/evobenchd/internal/pipeline"
	"github.com/evobench/evobenchd/internal/stats"
	"github.com/evobench/evobenchd/internal/vcs"
	"github.com/evobench/evobenchd/internal/wdpool"
)

// ErrCancelled is returned by Run when ctx is cancelled while a subprocess
// is in flight (spec §5: "SIGINT/SIGTERM ... must interrupt the current
// wait ... persist the job's unchanged state"). It is returned unwrapped:
// the caller must treat it as neither success nor failure.
var ErrCancelled = errors.New("runner: run cancelled")

const (
	envProbeLog    = "EVOBENCH_LOG"
	envBenchOutput = "BENCH_OUTPUT_LOG"
)

// Deps are the collaborators one Run invocation needs; held by the daemon
// across many runs and passed in rather than constructed per call.
type Deps struct {
	Config    *config.Document
	Pool      *wdpool.Pool
	Checkouts *vcs.Checkouts
	Logger    *zap.Logger
	Now       func() time.Time
}

func (d Deps) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

// Outcome is everything Run learned about one attempt, independent of
// whether it resulted in job.Success or job.Failure.
type Outcome struct {
	Result      job.Outcome
	SlotIndex   int
	ResultsDir  string
	IngestError error
}

// Run reserves a working directory, checks out the job's commit, runs its
// pre-command and benchmarking command, and lays down its artifacts. It
// returns ErrCancelled (wrapping nothing else) if ctx is cancelled before
// the subprocess exits.
func Run(ctx context.Context, deps Deps, c *pipeline.Candidate) (Outcome, error) {
	rec := c.Record
	runID := uuid.New().String()[:8]
	runLog := deps.Logger.With(zap.String("run_id", runID))

	target, ok := deps.Config.TargetByName(rec.Command.TargetName)
	if !ok {
		return Outcome{}, fmt.Errorf("runner: unknown target_name %q", rec.Command.TargetName)
	}

	slot, err := deps.Pool.Acquire(rec.RunParameters.Commit)
	if err != nil {
		return Outcome{}, fmt.Errorf("runner: acquire working directory: %w", err)
	}
	released := false
	release := func() {
		if released {
			return
		}
		released = true
		if err := deps.Pool.Release(slot, slot.CheckedOutCommit, deps.now()); err != nil {
			runLog.Warn("failed to persist working directory status", zap.Error(err))
		}
	}
	defer release()

	if err := os.MkdirAll(slot.Root, 0o755); err != nil {
		return Outcome{}, fmt.Errorf("runner: create working directory %s: %w", slot.Root, err)
	}

	errLog, err := os.OpenFile(slot.ErrorLogPath(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return Outcome{}, fmt.Errorf("runner: open error log: %w", err)
	}
	defer errLog.Close()

	if err := deps.Checkouts.Ensure(ctx, slot.Root, rec.RunParameters.Commit, slot.CheckedOutCommit, errLog); err != nil {
		return Outcome{}, fmt.Errorf("runner: checkout: %w", err)
	}
	slot.CheckedOutCommit = rec.RunParameters.Commit

	startTime := deps.now()
	situation := c.Queue.Kind.Name()
	sibling := job.NewSiblingKey(rec.RunParameters, situation)
	resultsDir := resultsDirectory(deps.Config.StateRoot, target.Name, rec.RunParameters.Commit, hostname(), startTime, sibling.Context())
	if err := os.MkdirAll(resultsDir, 0o755); err != nil {
		return Outcome{}, fmt.Errorf("runner: create results directory: %w", err)
	}

	if err := writeProvenance(resultsDir, c, target, runID); err != nil {
		return Outcome{}, err
	}

	probeLogPath := filepath.Join(resultsDir, "evobench.log")
	benchOutputPath := filepath.Join(resultsDir, "bench_output.log")
	workDir := filepath.Join(slot.Root, rec.Command.WorkingDirSubdir)

	outLog, err := os.OpenFile(slot.OutputLogPath(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return Outcome{}, fmt.Errorf("runner: open output log: %w", err)
	}
	defer outLog.Close()

	env := buildEnvironment(probeLogPath, benchOutputPath)

	if rec.Command.PreCommand != "" {
		if err := runShell(ctx, rec.Command.PreCommand, workDir, env, outLog, errLog); err != nil {
			if errors.Is(err, context.Canceled) {
				return Outcome{SlotIndex: slot.Index, ResultsDir: resultsDir}, ErrCancelled
			}
			runLog.Warn("pre_command failed", zap.String("target", target.Name), zap.Error(err))
			return Outcome{Result: job.Failure, SlotIndex: slot.Index, ResultsDir: resultsDir}, nil
		}
	}

	runErr := runShell(ctx, target.Command, workDir, env, outLog, errLog)
	if runErr != nil {
		if errors.Is(runErr, context.Canceled) {
			return Outcome{SlotIndex: slot.Index, ResultsDir: resultsDir}, ErrCancelled
		}
		runLog.Warn("benchmarking command failed",
			zap.String("target", target.Name), zap.Error(runErr))
		return Outcome{Result: job.Failure, SlotIndex: slot.Index, ResultsDir: resultsDir}, nil
	}

	out := Outcome{Result: job.Success, SlotIndex: slot.Index, ResultsDir: resultsDir}
	if err := ingestAndSummarize(deps, resultsDir, probeLogPath, target.Name, rec.RunParameters.Commit, sibling); err != nil {
		// Spec §7(d): a log parse failure is fatal only to the statistics
		// step; the run is still a success since the command exited zero.
		runLog.Warn("probe log ingestion failed", zap.String("probe_log", probeLogPath), zap.Error(err))
		out.IngestError = err
		if writeErr := os.WriteFile(filepath.Join(resultsDir, "warning"), []byte(err.Error()+"\n"), 0o644); writeErr != nil {
			runLog.Warn("failed to write ingestion warning artifact", zap.Error(writeErr))
		}
	}

	return out, nil
}

func hostname() string {
	name, err := os.Hostname()
	if err != nil {
		return "unknown-host"
	}
	return name
}

func resultsDirectory(stateRoot, testName, commit, host string, startTime time.Time, contextTag string) string {
	runStart := startTime.UTC().Format("20060102T150405.000000000Z")
	return filepath.Join(stateRoot, "results", testName, commit, host, runStart, contextTag)
}

func buildEnvironment(probeLogPath, benchOutputPath string) []string {
	env := os.Environ()
	env = append(env, envProbeLog+"="+probeLogPath)
	env = append(env, envBenchOutput+"="+benchOutputPath)
	return env
}

func runShell(ctx context.Context, command, dir string, env []string, stdout, stderr *os.File) error {
	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	cmd.Dir = dir
	cmd.Env = env
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return context.Canceled
		}
		return err
	}
	return nil
}

func writeProvenance(resultsDir string, c *pipeline.Candidate, target config.TargetSpec, runID string) error {
	reason := c.Record.Reason
	if reason == "" {
		reason = "(no reason given)"
	}
	if err := os.WriteFile(filepath.Join(resultsDir, "reason"), []byte(reason+"\n"), 0o644); err != nil {
		return fmt.Errorf("runner: write reason artifact: %w", err)
	}

	condition := fmt.Sprintf(
		"run_id: %s\nqueue: %s\ntarget: %s\npriority: %s\ncurrent_boost: %s\n",
		runID, c.Queue.Kind.Name(), target.Name,
		strconv.FormatFloat(c.Record.Priority, 'g', -1, 64),
		strconv.FormatFloat(c.Record.CurrentBoost, 'g', -1, 64),
	)
	if err := os.WriteFile(filepath.Join(resultsDir, "schedule_condition"), []byte(condition), 0o644); err != nil {
		return fmt.Errorf("runner: write schedule_condition artifact: %w", err)
	}
	return nil
}

// ingestAndSummarize parses probeLogPath into single-run statistics, writes
// the single-run spreadsheet and per-field flamegraphs, then re-indexes
// every sibling run under the same (commit, parameters, situation) key to
// refresh the summary artifact (spec §4.3 step 6).
func ingestAndSummarize(deps Deps, resultsDir, probeLogPath, testName, commit string, sibling job.SiblingKey) error {
	f, err := os.Open(probeLogPath)
	if err != nil {
		return fmt.Errorf("open probe log: %w", err)
	}
	defer f.Close()

	opts := ingest.Options{
		IncludePointEvents:  deps.Config.IncludePointEvents,
		SubtractFlushTiming: deps.Config.SubtractFlushTiming,
	}
	result, err := ingest.Run(f, probeLogPath, opts)
	if err != nil {
		return fmt.Errorf("ingest probe log: %w", err)
	}

	if err := writeSingleRunArtifacts(resultsDir, result); err != nil {
		return err
	}

	siblings, err := collectSiblingTables(deps, filepath.Join(deps.Config.StateRoot, "results", testName, commit), sibling.Context(), opts)
	if err != nil {
		return fmt.Errorf("collect sibling runs: %w", err)
	}
	if len(siblings) == 0 {
		return nil
	}

	summary, err := stats.Summarize(siblings, stats.StatsField{Name: "median"})
	if err != nil {
		return fmt.Errorf("summarize siblings: %w", err)
	}
	summaryFile, err := os.Create(filepath.Join(resultsDir, "summary"))
	if err != nil {
		return fmt.Errorf("create summary artifact: %w", err)
	}
	defer summaryFile.Close()
	return stats.WriteTable(summaryFile, summary)
}

func writeSingleRunArtifacts(resultsDir string, result ingest.Result) error {
	table, err := os.Create(filepath.Join(resultsDir, "single.csv"))
	if err != nil {
		return fmt.Errorf("create single-run table artifact: %w", err)
	}
	defer table.Close()
	if err := stats.WriteTable(table, result.Table); err != nil {
		return fmt.Errorf("write single-run table: %w", err)
	}

	fields := []struct {
		name     string
		selector flamegraph.FieldSelector
	}{
		{"real", flamegraph.FieldReal},
		{"cpu", flamegraph.FieldCPU},
		{"system", flamegraph.FieldSystem},
	}
	for _, field := range fields {
		svg, err := os.Create(filepath.Join(resultsDir, fmt.Sprintf("single-%s.svg", field.name)))
		if err != nil {
			return fmt.Errorf("create flamegraph artifact: %w", err)
		}
		err = flamegraph.WriteFoldedStacks(svg, result.Tree, field.selector)
		closeErr := svg.Close()
		if err != nil {
			return fmt.Errorf("write flamegraph %s: %w", field.name, err)
		}
		if closeErr != nil {
			return fmt.Errorf("close flamegraph %s: %w", field.name, closeErr)
		}
	}
	return nil
}

// collectSiblingTables walks commitDir for every run directory matching
// context and re-parses its probe log, per spec §4.3 step 6 ("re-index all
// prior runs with the same key"): summary statistics are recomputed from
// the raw logs rather than cached, so they stay a pure function of the
// sibling set.
func collectSiblingTables(deps Deps, commitDir, contextTag string, opts ingest.Options) ([]*stats.Table[stats.SingleRun], error) {
	hostEntries, err := os.ReadDir(commitDir)
	if err != nil {
		return nil, fmt.Errorf("read commit directory: %w", err)
	}

	var tables []*stats.Table[stats.SingleRun]
	for _, hostEntry := range hostEntries {
		if !hostEntry.IsDir() {
			continue
		}
		hostDir := filepath.Join(commitDir, hostEntry.Name())
		runEntries, err := os.ReadDir(hostDir)
		if err != nil {
			continue
		}
		for _, runEntry := range runEntries {
			if !runEntry.IsDir() {
				continue
			}
			logPath := filepath.Join(hostDir, runEntry.Name(), contextTag, "evobench.log")
			f, err := os.Open(logPath)
			if err != nil {
				continue
			}
			result, err := ingest.Run(f, logPath, opts)
			f.Close()
			if err != nil {
				deps.Logger.Warn("skipping sibling run with unparseable probe log", zap.String("path", logPath), zap.Error(err))
				continue
			}
			tables = append(tables, result.Table)
		}
	}
	return tables, nil
}
