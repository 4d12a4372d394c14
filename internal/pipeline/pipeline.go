// Package pipeline implements the scheduler's selection algorithm and the
// outcome-driven routing between queues (spec §4.3, §4.4): an ordered
// sequence of queues plus the two terminal sinks a job may land in.
package pipeline

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/evobench/evobenchd/internal/job"
	"github.com/evobench/evobenchd/internal/queue"
)

// Pipeline is an ordered sequence of queues plus the finished/error sinks
// referenced by name in the configuration document (spec §6).
type Pipeline struct {
	Queues       []*queue.Queue
	FinishedSink *queue.Queue
	ErrorSink    *queue.Queue
}

// Open opens every queue named by kinds under queuesRoot, in pipeline order,
// then resolves finishedName/errorName against the opened queues.
func Open(queuesRoot string, kinds []queue.Kind, finishedName, errorName string) (*Pipeline, error) {
	p := &Pipeline{Queues: make([]*queue.Queue, 0, len(kinds))}
	for _, kind := range kinds {
		q, err := queue.Open(queuesRoot, kind)
		if err != nil {
			return nil, err
		}
		p.Queues = append(p.Queues, q)
	}

	if finishedName != "" {
		q, ok := p.byName(finishedName)
		if !ok {
			return nil, fmt.Errorf("pipeline: finished_sink %q not found among pipeline queues", finishedName)
		}
		p.FinishedSink = q
	}
	if errorName != "" {
		q, ok := p.byName(errorName)
		if !ok {
			return nil, fmt.Errorf("pipeline: error_sink %q not found among pipeline queues", errorName)
		}
		p.ErrorSink = q
	}

	return p, nil
}

func (p *Pipeline) byName(name string) (*queue.Queue, bool) {
	for _, q := range p.Queues {
		if q.Kind.Name() == name {
			return q, true
		}
	}
	return nil, false
}

func (p *Pipeline) indexOf(target *queue.Queue) int {
	for i, q := range p.Queues {
		if q == target {
			return i
		}
	}
	return -1
}

func (p *Pipeline) successor(q *queue.Queue) *queue.Queue {
	idx := p.indexOf(q)
	if idx < 0 || idx+1 >= len(p.Queues) {
		return nil
	}
	return p.Queues[idx+1]
}

// Candidate is one job eligible for selection: its home queue, key, the
// record as last read, and the score the selection algorithm computed.
type Candidate struct {
	Queue  *queue.Queue
	Key    job.Key
	Record job.Record
	Score  float64
}

// Select implements the spec §4.3 selection algorithm: across every
// currently-runnable queue's jobs, the maximum
// priority+current_boost+queue.EffectivePriority score wins. Ties break by
// earliest pipeline position, then by smallest insertion key. Returns nil,
// nil when no job is currently selectable.
func (p *Pipeline) Select(now time.Time) (*Candidate, error) {
	var best *Candidate
	bestQueueIndex := -1

	for qi, q := range p.Queues {
		if !q.Kind.IsRunnableAt(now) {
			continue
		}
		entries, err := q.Entries()
		if err != nil {
			return nil, fmt.Errorf("pipeline: list %s: %w", q.Kind.Name(), err)
		}
		queuePriority := q.Kind.EffectivePriority(now)
		for _, entry := range entries {
			score := entry.Record.Priority + entry.Record.CurrentBoost + queuePriority
			candidate := &Candidate{Queue: q, Key: entry.Key, Record: entry.Record, Score: score}
			if best == nil || outranks(candidate, qi, best, bestQueueIndex) {
				best = candidate
				bestQueueIndex = qi
			}
		}
	}

	return best, nil
}

func outranks(c *Candidate, qi int, best *Candidate, bestQi int) bool {
	if c.Score != best.Score {
		return c.Score > best.Score
	}
	if qi != bestQi {
		return qi < bestQi
	}
	return c.Key.Less(best.Key)
}

// NextWindowOpen reports the earliest future moment some non-runnable
// LocalNaiveTimeWindow queue that currently holds at least one job would
// become runnable, used by the scheduler to sleep instead of busy-polling
// (spec §4.3 step 3). found is false when no such queue has pending jobs.
func (p *Pipeline) NextWindowOpen(now time.Time) (time.Time, bool) {
	var earliest time.Time
	found := false

	for _, q := range p.Queues {
		window, ok := q.Kind.(*queue.LocalNaiveTimeWindow)
		if !ok || window.IsRunnableAt(now) {
			continue
		}
		entries, err := q.Entries()
		if err != nil || len(entries) == 0 {
			continue
		}
		next := nextWindowOpenTime(window, now)
		if !found || next.Before(earliest) {
			earliest = next
			found = true
		}
	}

	return earliest, found
}

func nextWindowOpenTime(w *queue.LocalNaiveTimeWindow, now time.Time) time.Time {
	loc := w.Location
	if loc == nil {
		loc = time.Local
	}
	local := now.In(loc)
	candidate := time.Date(local.Year(), local.Month(), local.Day(), w.From.Hour, w.From.Minute, 0, 0, loc)
	if !candidate.After(local) {
		candidate = candidate.AddDate(0, 0, 1)
	}
	return candidate
}

// Apply applies c's queue's OnRunOutcome to its record, then carries out the
// resulting disposition: Stay re-inserts into the same queue under a fresh
// key, Forward moves into the pipeline's next queue, ToFinished/ToError move
// into the configured sinks. A disposition with no reachable destination
// drops the job after a logged warning (spec §4.3 failure taxonomy).
func (p *Pipeline) Apply(log *zap.Logger, c *Candidate, outcome job.Outcome) error {
	rec := c.Record
	disposition := c.Queue.Kind.OnRunOutcome(&rec, outcome)

	switch disposition {
	case queue.Stay:
		if err := c.Queue.Remove(c.Key); err != nil {
			return err
		}
		_, err := c.Queue.Insert(rec)
		return err

	case queue.Forward:
		next := p.successor(c.Queue)
		if next == nil {
			log.Warn("no pipeline successor for forwarded job, dropping",
				zap.String("queue", c.Queue.Kind.Name()))
			return c.Queue.Remove(c.Key)
		}
		return p.moveTo(c, rec, next)

	case queue.ToFinished:
		return p.routeToSink(log, c, rec, p.FinishedSink, "finished_sink")

	case queue.ToError:
		return p.routeToSink(log, c, rec, p.ErrorSink, "error_sink")

	default:
		return fmt.Errorf("pipeline: unknown disposition %v", disposition)
	}
}

func (p *Pipeline) routeToSink(log *zap.Logger, c *Candidate, rec job.Record, sink *queue.Queue, sinkLabel string) error {
	if sink == nil {
		log.Warn("no "+sinkLabel+" configured, dropping job", zap.String("queue", c.Queue.Kind.Name()))
		return c.Queue.Remove(c.Key)
	}
	return p.moveTo(c, rec, sink)
}

func (p *Pipeline) moveTo(c *Candidate, rec job.Record, dst *queue.Queue) error {
	if err := c.Queue.Put(c.Key, rec); err != nil {
		return err
	}
	_, err := c.Queue.MoveInto(dst, c.Key)
	return err
}

// DrainRemovedQueues moves every job held by a queue present in old but
// absent from newNames into errorSink, or discards it with a logged warning
// if errorSink is nil (spec §4.3 "Config reload").
func DrainRemovedQueues(log *zap.Logger, old *Pipeline, newNames map[string]bool, errorSink *queue.Queue) error {
	for _, q := range old.Queues {
		if newNames[q.Kind.Name()] {
			continue
		}
		keys, err := q.Keys()
		if err != nil {
			return err
		}
		for _, key := range keys {
			if errorSink == nil {
				log.Warn("queue removed from pipeline with no error sink configured, dropping job",
					zap.String("queue", q.Kind.Name()), zap.String("key", key.String()))
				if err := q.Remove(key); err != nil {
					return err
				}
				continue
			}
			if _, err := q.MoveInto(errorSink, key); err != nil {
				return err
			}
		}
	}
	return nil
}
