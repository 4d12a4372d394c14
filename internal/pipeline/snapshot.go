package pipeline

import "sync/atomic"

// Snapshot is a refcounted, immutable handle on a Pipeline value (spec §9:
// "shared configuration snapshot as a refcounted immutable value"). The
// scheduler acquires one at the start of each tick and releases it when the
// tick completes, so an in-flight reload never mutates state a tick is
// still reading.
type Snapshot struct {
	Pipeline *Pipeline
	refs     atomic.Int64
}

// Acquire increments the snapshot's refcount and returns it.
func (s *Snapshot) Acquire() *Snapshot {
	s.refs.Add(1)
	return s
}

// Release decrements the snapshot's refcount.
func (s *Snapshot) Release() {
	s.refs.Add(-1)
}

// RefCount reports the snapshot's current reference count, for diagnostics.
func (s *Snapshot) RefCount() int64 {
	return s.refs.Load()
}

// SnapshotHolder holds the pipeline snapshot currently in effect, swapped
// atomically by config reload (spec §4.3 "Config reload").
type SnapshotHolder struct {
	current atomic.Pointer[Snapshot]
}

// NewSnapshotHolder wraps initial as the first snapshot.
func NewSnapshotHolder(initial *Pipeline) *SnapshotHolder {
	h := &SnapshotHolder{}
	h.current.Store(&Snapshot{Pipeline: initial})
	return h
}

// Acquire returns the current snapshot with its refcount incremented. The
// caller must call Release when done observing it.
func (h *SnapshotHolder) Acquire() *Snapshot {
	return h.current.Load().Acquire()
}

// Swap installs next as the current snapshot and returns the snapshot it
// replaced, so the caller can drain queues the new pipeline dropped.
func (h *SnapshotHolder) Swap(next *Pipeline) *Snapshot {
	return h.current.Swap(&Snapshot{Pipeline: next})
}
