// Package calltree reconstructs, per thread, the forest of spans implied by
// a probe log's ScopeBegin/ScopeEnd pairs (spec §4.7). Nodes are held in an
// arena indexed by integer id with children stored as index lists, avoiding
// parent back-reference lifetime problems (spec §9).
package calltree

import (
	"errors"
	"fmt"

	"github.com/evobench/evobenchd/internal/probelog"
)

// ErrScopeMismatch is returned when a ScopeEnd does not match the
// top-of-stack scope name for its thread (spec §4.7 LIFO invariant).
var ErrScopeMismatch = errors.New("calltree: scope_end does not match top of stack")

// NodeID indexes into a Tree's arena. Ids start at 0; noParent (-1) is the
// only value that names no node.
type NodeID int

// noParent marks a root node.
const noParent NodeID = -1

// NodeKind distinguishes a real scope span from the two kinds of synthetic
// leaf spec §4.7 introduces.
type NodeKind int

const (
	// KindScope is a real ScopeBegin/ScopeEnd pair.
	KindScope NodeKind = iota
	// KindKeyValue is a synthetic child created from a KeyValue event,
	// closing with its enclosing span.
	KindKeyValue
	// KindPoint is a zero-duration leaf created from a Point event.
	KindPoint
)

// Node is one span, key-value attachment, or point leaf in the arena.
type Node struct {
	Thread       int
	ScopeName    string
	Parent       NodeID
	Children     []NodeID
	BeginTimings probelog.Timings
	EndTimings   probelog.Timings
	Kind         NodeKind
}

// IsSynthetic reports whether n was derived from a KeyValue or Point event
// rather than a ScopeBegin/ScopeEnd pair.
func (n Node) IsSynthetic() bool {
	return n.Kind != KindScope
}

// Duration returns the node's elementwise end-minus-begin timings.
func (n Node) Duration() probelog.Timings {
	return n.EndTimings.Sub(n.BeginTimings)
}

// Tree is the arena of Nodes across all threads, plus each thread's root
// node ids in first-occurrence order.
type Tree struct {
	Nodes []Node
	Roots []NodeID
	// ThreadOrder maps thread number (as seen in the log) to its
	// first-occurrence index, per spec §4.7 "thread numbering is assigned in
	// first-occurrence order starting at zero".
	ThreadOrder map[int]int
}

// BuildOption configures optional Build behavior.
type BuildOption func(*buildOptions)

type buildOptions struct {
	subtractFlushTiming bool
}

// WithFlushTimingSubtracted makes Build subtract each span's accumulated
// FlushTiming overhead from its closing timings before recording
// EndTimings (spec §9 flush-timing question), resolved as an explicit
// opt-in rather than a silent default.
func WithFlushTimingSubtracted() BuildOption {
	return func(o *buildOptions) { o.subtractFlushTiming = true }
}

// Build walks events in order, maintaining a per-thread stack of open spans.
func Build(events []probelog.Event, opts ...BuildOption) (*Tree, error) {
	var cfg buildOptions
	for _, opt := range opts {
		opt(&cfg)
	}

	t := &Tree{ThreadOrder: make(map[int]int)}
	stacks := make(map[int][]NodeID)
	flushOverhead := make(map[NodeID]probelog.Timings)
	nextThreadOrdinal := 0

	threadOrdinal := func(thread int) int {
		if ord, ok := t.ThreadOrder[thread]; ok {
			return ord
		}
		ord := nextThreadOrdinal
		t.ThreadOrder[thread] = ord
		nextThreadOrdinal++
		return ord
	}

	for _, e := range events {
		threadOrdinal(e.Thread)

		switch e.Kind {
		case probelog.KindScopeBegin:
			parent := currentTop(stacks[e.Thread])
			id := t.push(Node{
				Thread:       e.Thread,
				ScopeName:    e.ScopeName,
				Parent:       parent,
				BeginTimings: e.Timings,
			})
			t.attach(parent, id)
			stacks[e.Thread] = append(stacks[e.Thread], id)

		case probelog.KindScopeEnd:
			stack := stacks[e.Thread]
			if len(stack) == 0 {
				return nil, fmt.Errorf("%w: thread %d, scope %q, empty stack", ErrScopeMismatch, e.Thread, e.ScopeName)
			}
			top := stack[len(stack)-1]
			if t.Nodes[top].ScopeName != e.ScopeName {
				return nil, fmt.Errorf("%w: thread %d expected %q, got %q", ErrScopeMismatch, e.Thread, t.Nodes[top].ScopeName, e.ScopeName)
			}
			end := e.Timings
			if cfg.subtractFlushTiming {
				end = end.Sub(flushOverhead[top])
				delete(flushOverhead, top)
			}
			t.Nodes[top].EndTimings = end
			stacks[e.Thread] = stack[:len(stack)-1]

		case probelog.KindKeyValue:
			parent := currentTop(stacks[e.Thread])
			id := t.push(Node{
				Thread:       e.Thread,
				ScopeName:    e.Key,
				Parent:       parent,
				Kind:         KindKeyValue,
				BeginTimings: e.Timings,
				EndTimings:   e.Timings, // overwritten by FixupSyntheticChildren
			})
			t.attach(parent, id)

		case probelog.KindPoint:
			parent := currentTop(stacks[e.Thread])
			id := t.push(Node{
				Thread:       e.Thread,
				ScopeName:    e.ScopeName,
				Parent:       parent,
				Kind:         KindPoint,
				BeginTimings: e.Timings,
				EndTimings:   e.Timings,
			})
			t.attach(parent, id)

		case probelog.KindFlushTiming:
			if cfg.subtractFlushTiming {
				if top := currentTop(stacks[e.Thread]); top != noParent {
					flushOverhead[top] = flushOverhead[top].Add(e.Timings)
				}
			}

		case probelog.KindThreadEnd:
			// No node to create.
		}
	}

	t.FixupSyntheticChildren()

	return t, nil
}

func currentTop(stack []NodeID) NodeID {
	if len(stack) == 0 {
		return noParent
	}
	return stack[len(stack)-1]
}

func (t *Tree) push(n Node) NodeID {
	id := NodeID(len(t.Nodes))
	t.Nodes = append(t.Nodes, n)
	return id
}

func (t *Tree) attach(parent NodeID, child NodeID) {
	if parent == noParent {
		t.Roots = append(t.Roots, child)
		return
	}
	t.Nodes[parent].Children = append(t.Nodes[parent].Children, child)
}

// FixupSyntheticChildren rewrites every synthetic KeyValue child's
// EndTimings to match its enclosing span's EndTimings, now that the whole
// tree (and therefore every span's final close time) is known.
func (t *Tree) FixupSyntheticChildren() {
	for i := range t.Nodes {
		n := &t.Nodes[i]
		if n.Kind != KindKeyValue || n.Parent == noParent {
			continue
		}
		n.EndTimings = t.Nodes[n.Parent].EndTimings
	}
}
