// Package queue implements the tagged-variant queue kinds from spec §4.2:
// Immediately, LocalNaiveTimeWindow, and GraveYard. Each kind differs only
// in runnability, effective priority, and outcome routing; new kinds are
// added by extending the Kind interface, not by subclassing (spec §9).
package queue

import (
	"time"

	"github.com/evobench/evobenchd/internal/job"
)

// Disposition tells the pipeline what to do with a job after on_run_outcome.
type Disposition int

const (
	// Stay means the job should be re-inserted into the same queue under a fresh key.
	Stay Disposition = iota
	// Forward means the job should move to the pipeline's next queue.
	Forward
	// ToFinished means the job should move to the pipeline's finished sink.
	ToFinished
	// ToError means the job should move to the pipeline's error sink.
	ToError
)

func (d Disposition) String() string {
	switch d {
	case Stay:
		return "stay"
	case Forward:
		return "forward"
	case ToFinished:
		return "to_finished"
	case ToError:
		return "to_error"
	default:
		return "unknown"
	}
}

// Kind is the dispatch trait every queue variant implements (spec §4.2).
type Kind interface {
	// Name is the queue's configured name, used as its situation tag and its
	// directory name under queues/.
	Name() string
	// IsRunnableAt reports whether the queue accepts selection at the given
	// wall-clock moment.
	IsRunnableAt(now time.Time) bool
	// EffectivePriority is the queue's contribution to a candidate job's
	// selection score.
	EffectivePriority(now time.Time) float64
	// OnRunOutcome decides what happens to rec after it was run with the
	// given outcome, possibly mutating rec (e.g. decrementing counters,
	// assigning a fresh key is the caller's job, not this method's).
	OnRunOutcome(rec *job.Record, outcome job.Outcome) Disposition
}

// Immediately is always runnable at priority 0 (or a configured override).
type Immediately struct {
	QueueName string
	Priority  float64
}

// NewImmediately constructs an Immediately queue with the default priority.
func NewImmediately(name string) *Immediately {
	return &Immediately{QueueName: name, Priority: 0}
}

func (q *Immediately) Name() string { return q.QueueName }

func (q *Immediately) IsRunnableAt(time.Time) bool { return true }

func (q *Immediately) EffectivePriority(time.Time) float64 { return q.Priority }

// OnRunOutcome implements one-run-then-forward semantics on success, and
// same-queue retry (until the error budget is exhausted) on failure.
func (q *Immediately) OnRunOutcome(rec *job.Record, outcome job.Outcome) Disposition {
	switch outcome {
	case job.Success:
		rec.ApplySuccess()
		return Forward
	case job.Failure:
		rec.ApplyFailure()
		if rec.RemainingErrorBudget == 0 {
			return ToError
		}
		return Stay
	default:
		return ToError
	}
}

// DefaultLocalNaiveTimeWindowPriority is the spec-mandated default priority
// for a time-window queue.
const DefaultLocalNaiveTimeWindowPriority = 1.5

// LocalNaiveTimeWindow is runnable only while the local wall clock falls in
// [From, To), wrapping around midnight when From > To.
type LocalNaiveTimeWindow struct {
	QueueName string
	From, To  NaiveTime
	Priority  float64
	// Location is the time zone "local wall time" is evaluated in. If nil,
	// time.Local is used.
	Location *time.Location
}

// NaiveTime is a time-of-day with no associated date or zone, expressed as
// an hour and a minute.
type NaiveTime struct {
	Hour, Minute int
}

func (t NaiveTime) minutesOfDay() int { return t.Hour*60 + t.Minute }

// NewLocalNaiveTimeWindow constructs a time-window queue with the default
// priority.
func NewLocalNaiveTimeWindow(name string, from, to NaiveTime) *LocalNaiveTimeWindow {
	return &LocalNaiveTimeWindow{
		QueueName: name,
		From:      from,
		To:        to,
		Priority:  DefaultLocalNaiveTimeWindowPriority,
	}
}

func (q *LocalNaiveTimeWindow) Name() string { return q.QueueName }

func (q *LocalNaiveTimeWindow) location() *time.Location {
	if q.Location != nil {
		return q.Location
	}
	return time.Local
}

// IsRunnableAt implements the wrap-around window check from spec §4.2.
func (q *LocalNaiveTimeWindow) IsRunnableAt(now time.Time) bool {
	local := now.In(q.location())
	cur := local.Hour()*60 + local.Minute()
	from := q.From.minutesOfDay()
	to := q.To.minutesOfDay()

	if from <= to {
		return cur >= from && cur < to
	}
	// Window wraps past midnight.
	return cur >= from || cur < to
}

func (q *LocalNaiveTimeWindow) EffectivePriority(time.Time) float64 { return q.Priority }

// OnRunOutcome holds the job across runs on success (re-inserting into
// itself) until RemainingCount reaches zero, at which point it forwards.
// Failure routing mirrors Immediately's.
func (q *LocalNaiveTimeWindow) OnRunOutcome(rec *job.Record, outcome job.Outcome) Disposition {
	switch outcome {
	case job.Success:
		rec.ApplySuccess()
		if rec.RemainingCount == 0 {
			return Forward
		}
		return Stay
	case job.Failure:
		rec.ApplyFailure()
		if rec.RemainingErrorBudget == 0 {
			return ToError
		}
		return Stay
	default:
		return ToError
	}
}

// GraveYard never runs its contents; jobs leave it only by operator
// intervention (moved by a CLI verb, not by OnRunOutcome).
type GraveYard struct {
	QueueName string
}

// NewGraveYard constructs a GraveYard queue.
func NewGraveYard(name string) *GraveYard {
	return &GraveYard{QueueName: name}
}

func (q *GraveYard) Name() string { return q.QueueName }

func (q *GraveYard) IsRunnableAt(time.Time) bool { return false }

func (q *GraveYard) EffectivePriority(time.Time) float64 { return 0 }

// OnRunOutcome is never called in practice since GraveYard is never
// selected, but is defined to satisfy Kind.
func (q *GraveYard) OnRunOutcome(rec *job.Record, outcome job.Outcome) Disposition {
	return Stay
}
