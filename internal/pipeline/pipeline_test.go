package pipeline

import (
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/evobench/evobenchd/internal/job"
	"github.com/evobench/evobenchd/internal/queue"
)

func openTestPipeline(t *testing.T, kinds []queue.Kind, finishedName, errorName string) *Pipeline {
	t.Helper()
	p, err := Open(t.TempDir(), kinds, finishedName, errorName)
	if err != nil {
		t.Fatalf("open pipeline: %v", err)
	}
	return p
}

func TestSelectPicksHighestScore(t *testing.T) {
	t.Parallel()

	incoming := queue.NewImmediately("incoming")
	p := openTestPipeline(t, []queue.Kind{incoming}, "", "")
	q := p.Queues[0]

	if _, err := q.Insert(job.Record{Priority: 1, RemainingCount: 1, RemainingErrorBudget: 1}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	highKey, err := q.Insert(job.Record{Priority: 5, RemainingCount: 1, RemainingErrorBudget: 1})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	candidate, err := p.Select(time.Now())
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if candidate == nil {
		t.Fatal("expected a candidate")
	}
	if candidate.Key != highKey {
		t.Fatalf("expected highest-priority job selected, got key %s", candidate.Key)
	}
}

func TestSelectTieBreaksByPipelinePositionThenKey(t *testing.T) {
	t.Parallel()

	first := queue.NewImmediately("first")
	second := queue.NewImmediately("second")
	p := openTestPipeline(t, []queue.Kind{first, second}, "", "")

	if _, err := p.Queues[1].Insert(job.Record{Priority: 0, RemainingCount: 1, RemainingErrorBudget: 1}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	wantKey, err := p.Queues[0].Insert(job.Record{Priority: 0, RemainingCount: 1, RemainingErrorBudget: 1})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	candidate, err := p.Select(time.Now())
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if candidate.Key != wantKey {
		t.Fatalf("expected earliest-pipeline-position queue to win tie, got queue %s", candidate.Queue.Kind.Name())
	}
}

func TestSelectSkipsNonRunnableQueue(t *testing.T) {
	t.Parallel()

	grave := queue.NewGraveYard("grave")
	p := openTestPipeline(t, []queue.Kind{grave}, "", "")
	if _, err := p.Queues[0].Insert(job.Record{Priority: 100}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	candidate, err := p.Select(time.Now())
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if candidate != nil {
		t.Fatalf("expected no candidate from a never-runnable queue, got %+v", candidate)
	}
}

func TestApplyForwardMovesToNextQueue(t *testing.T) {
	t.Parallel()

	incoming := queue.NewImmediately("incoming")
	done := queue.NewGraveYard("done")
	p := openTestPipeline(t, []queue.Kind{incoming, done}, "", "")

	key, err := p.Queues[0].Insert(job.Record{Priority: 0, RemainingCount: 1, RemainingErrorBudget: 1})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	rec, err := p.Queues[0].Get(key)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	candidate := &Candidate{Queue: p.Queues[0], Key: key, Record: rec}

	log := zap.NewNop()
	if err := p.Apply(log, candidate, job.Success); err != nil {
		t.Fatalf("apply: %v", err)
	}

	entries, err := p.Queues[1].Entries()
	if err != nil {
		t.Fatalf("entries: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected job forwarded into next queue, got %d entries", len(entries))
	}
	if entries[0].Record.RemainingCount != 0 {
		t.Fatalf("expected RemainingCount decremented before forward, got %d", entries[0].Record.RemainingCount)
	}

	remaining, err := p.Queues[0].Entries()
	if err != nil {
		t.Fatalf("entries: %v", err)
	}
	if len(remaining) != 0 {
		t.Fatalf("expected source queue empty after forward, got %d", len(remaining))
	}
}

func TestApplyForwardWithNoSuccessorDropsJob(t *testing.T) {
	t.Parallel()

	lonely := queue.NewImmediately("lonely")
	p := openTestPipeline(t, []queue.Kind{lonely}, "", "")

	key, err := p.Queues[0].Insert(job.Record{Priority: 0, RemainingCount: 1, RemainingErrorBudget: 1})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	rec, _ := p.Queues[0].Get(key)
	candidate := &Candidate{Queue: p.Queues[0], Key: key, Record: rec}

	if err := p.Apply(zap.NewNop(), candidate, job.Success); err != nil {
		t.Fatalf("apply: %v", err)
	}

	entries, err := p.Queues[0].Entries()
	if err != nil {
		t.Fatalf("entries: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected dropped job removed from source queue, got %d entries", len(entries))
	}
}

func TestApplyStayReinsertsUnderFreshKey(t *testing.T) {
	t.Parallel()

	window := queue.NewLocalNaiveTimeWindow("window", queue.NaiveTime{Hour: 0}, queue.NaiveTime{Hour: 23, Minute: 59})
	p := openTestPipeline(t, []queue.Kind{window}, "", "")

	key, err := p.Queues[0].Insert(job.Record{Priority: 0, RemainingCount: 2, RemainingErrorBudget: 1})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	rec, _ := p.Queues[0].Get(key)
	candidate := &Candidate{Queue: p.Queues[0], Key: key, Record: rec}

	if err := p.Apply(zap.NewNop(), candidate, job.Success); err != nil {
		t.Fatalf("apply: %v", err)
	}

	entries, err := p.Queues[0].Entries()
	if err != nil {
		t.Fatalf("entries: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected job held in same queue, got %d entries", len(entries))
	}
	if entries[0].Key == key {
		t.Fatal("expected a fresh insertion key on re-insert")
	}
	if entries[0].Record.RemainingCount != 1 {
		t.Fatalf("expected RemainingCount decremented, got %d", entries[0].Record.RemainingCount)
	}
}

func TestApplyToErrorRoutesToSink(t *testing.T) {
	t.Parallel()

	incoming := queue.NewImmediately("incoming")
	errSink := queue.NewGraveYard("errors")
	p := openTestPipeline(t, []queue.Kind{incoming, errSink}, "", "errors")

	key, err := p.Queues[0].Insert(job.Record{Priority: 0, RemainingCount: 1, RemainingErrorBudget: 1})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	rec, _ := p.Queues[0].Get(key)
	candidate := &Candidate{Queue: p.Queues[0], Key: key, Record: rec}

	if err := p.Apply(zap.NewNop(), candidate, job.Failure); err != nil {
		t.Fatalf("apply: %v", err)
	}

	entries, err := p.ErrorSink.Entries()
	if err != nil {
		t.Fatalf("entries: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected failed job routed to error sink, got %d entries", len(entries))
	}
}

func TestNextWindowOpenIgnoresEmptyQueues(t *testing.T) {
	t.Parallel()

	window := queue.NewLocalNaiveTimeWindow("window", queue.NaiveTime{Hour: 3}, queue.NaiveTime{Hour: 4})
	p := openTestPipeline(t, []queue.Kind{window}, "", "")

	_, found := p.NextWindowOpen(time.Now())
	if found {
		t.Fatal("expected no wakeup target for an empty window queue")
	}

	if _, err := p.Queues[0].Insert(job.Record{}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	next, found := p.NextWindowOpen(time.Date(2026, 1, 1, 10, 0, 0, 0, time.Local))
	if !found {
		t.Fatal("expected a wakeup target once the window queue holds a job")
	}
	if next.Hour() != 3 {
		t.Fatalf("expected next open hour 3, got %d", next.Hour())
	}
}

func TestDrainRemovedQueuesMovesToErrorSink(t *testing.T) {
	t.Parallel()

	removed := queue.NewImmediately("removed")
	errSink := queue.NewGraveYard("errors")
	p := openTestPipeline(t, []queue.Kind{removed, errSink}, "", "")

	if _, err := p.Queues[0].Insert(job.Record{Priority: 1}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	newNames := map[string]bool{"errors": true}
	if err := DrainRemovedQueues(zap.NewNop(), p, newNames, p.Queues[1]); err != nil {
		t.Fatalf("drain: %v", err)
	}

	entries, err := p.Queues[1].Entries()
	if err != nil {
		t.Fatalf("entries: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected drained job in error sink, got %d entries", len(entries))
	}
}

func TestDrainRemovedQueuesDropsWithoutErrorSink(t *testing.T) {
	t.Parallel()

	removed := queue.NewImmediately("removed")
	p := openTestPipeline(t, []queue.Kind{removed}, "", "")

	if _, err := p.Queues[0].Insert(job.Record{Priority: 1}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	if err := DrainRemovedQueues(zap.NewNop(), p, map[string]bool{}, nil); err != nil {
		t.Fatalf("drain: %v", err)
	}

	entries, err := p.Queues[0].Entries()
	if err != nil {
		t.Fatalf("entries: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected removed queue drained to empty, got %d entries", len(entries))
	}
}

func TestSnapshotHolderSwapReturnsPrevious(t *testing.T) {
	t.Parallel()

	oldPipeline := &Pipeline{}
	newPipeline := &Pipeline{}
	holder := NewSnapshotHolder(oldPipeline)

	snap := holder.Acquire()
	if snap.Pipeline != oldPipeline {
		t.Fatal("expected initial snapshot to wrap old pipeline")
	}
	snap.Release()

	previous := holder.Swap(newPipeline)
	if previous.Pipeline != oldPipeline {
		t.Fatal("expected Swap to return the replaced snapshot")
	}

	current := holder.Acquire()
	if current.Pipeline != newPipeline {
		t.Fatal("expected Acquire to return the newly installed pipeline")
	}
	current.Release()
}
