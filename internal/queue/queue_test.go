package queue

import (
	"testing"
	"time"

	"github.com/evobench/evobenchd/internal/job"
)

func TestImmediatelyIsAlwaysRunnable(t *testing.T) {
	t.Parallel()

	q := NewImmediately("immediate")
	if !q.IsRunnableAt(time.Now()) {
		t.Fatal("expected always runnable")
	}
	if q.EffectivePriority(time.Now()) != 0 {
		t.Fatalf("expected default priority 0, got %v", q.EffectivePriority(time.Now()))
	}
}

func TestImmediatelyOnRunOutcome(t *testing.T) {
	t.Parallel()

	q := NewImmediately("immediate")

	rec := &job.Record{RemainingCount: 1, RemainingErrorBudget: 1}
	if disp := q.OnRunOutcome(rec, job.Success); disp != Forward {
		t.Fatalf("success disposition = %v, want Forward", disp)
	}
	if rec.RemainingCount != 0 {
		t.Fatalf("remaining_count = %d, want 0", rec.RemainingCount)
	}

	rec = &job.Record{RemainingCount: 1, RemainingErrorBudget: 2}
	if disp := q.OnRunOutcome(rec, job.Failure); disp != Stay {
		t.Fatalf("failure disposition = %v, want Stay", disp)
	}
	if disp := q.OnRunOutcome(rec, job.Failure); disp != ToError {
		t.Fatalf("second failure disposition = %v, want ToError", disp)
	}
}

func TestLocalNaiveTimeWindowRunnability(t *testing.T) {
	t.Parallel()

	q := NewLocalNaiveTimeWindow("night", NaiveTime{2, 0}, NaiveTime{4, 0})
	q.Location = time.UTC

	inWindow := time.Date(2026, 1, 1, 3, 0, 0, 0, time.UTC)
	outWindow := time.Date(2026, 1, 1, 5, 0, 0, 0, time.UTC)

	if !q.IsRunnableAt(inWindow) {
		t.Fatal("expected runnable at 03:00")
	}
	if q.IsRunnableAt(outWindow) {
		t.Fatal("expected not runnable at 05:00")
	}
	if q.EffectivePriority(inWindow) != DefaultLocalNaiveTimeWindowPriority {
		t.Fatalf("unexpected default priority: %v", q.EffectivePriority(inWindow))
	}
}

func TestLocalNaiveTimeWindowWrapsMidnight(t *testing.T) {
	t.Parallel()

	q := NewLocalNaiveTimeWindow("overnight", NaiveTime{22, 0}, NaiveTime{2, 0})
	q.Location = time.UTC

	late := time.Date(2026, 1, 1, 23, 0, 0, 0, time.UTC)
	early := time.Date(2026, 1, 1, 1, 0, 0, 0, time.UTC)
	midday := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	if !q.IsRunnableAt(late) || !q.IsRunnableAt(early) {
		t.Fatal("expected runnable across the midnight wrap")
	}
	if q.IsRunnableAt(midday) {
		t.Fatal("expected not runnable at midday")
	}
}

func TestLocalNaiveTimeWindowHoldsAcrossRuns(t *testing.T) {
	t.Parallel()

	q := NewLocalNaiveTimeWindow("night", NaiveTime{2, 0}, NaiveTime{4, 0})

	rec := &job.Record{RemainingCount: 3, RemainingErrorBudget: 2}

	if disp := q.OnRunOutcome(rec, job.Success); disp != Stay {
		t.Fatalf("disposition after run 1 = %v, want Stay", disp)
	}
	if disp := q.OnRunOutcome(rec, job.Success); disp != Stay {
		t.Fatalf("disposition after run 2 = %v, want Stay", disp)
	}
	if disp := q.OnRunOutcome(rec, job.Success); disp != Forward {
		t.Fatalf("disposition after run 3 = %v, want Forward", disp)
	}
}

func TestGraveYardNeverRunnable(t *testing.T) {
	t.Parallel()

	q := NewGraveYard("graveyard")
	if q.IsRunnableAt(time.Now()) {
		t.Fatal("expected graveyard to never be runnable")
	}
}

func TestQueueStorePersistsAndLists(t *testing.T) {
	t.Parallel()

	kind := NewImmediately("immediate")
	q, err := Open(t.TempDir(), kind)
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	key1, err := q.Insert(job.Record{Reason: "first", RemainingCount: 1, RemainingErrorBudget: 1})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	key2, err := q.Insert(job.Record{Reason: "second", RemainingCount: 1, RemainingErrorBudget: 1})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	if !key1.Less(key2) {
		t.Fatalf("expected %q < %q", key1, key2)
	}

	entries, err := q.Entries()
	if err != nil {
		t.Fatalf("entries: %v", err)
	}
	if len(entries) != 2 || entries[0].Record.Reason != "first" {
		t.Fatalf("unexpected entries: %+v", entries)
	}
}
