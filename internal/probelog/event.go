// Package probelog implements the streaming NDJSON decoder for probe logs
// (spec §4.6): a version-framed metadata/start preamble followed by typed
// events, one per line.
package probelog

import "fmt"

// Timings is the fixed-field timing record carried by scope and point events.
type Timings struct {
	Real              int64 `json:"real"`
	CPU               int64 `json:"cpu"`
	System            int64 `json:"system"`
	ContextSwitches   int64 `json:"context_switches"`
}

// Sub returns the elementwise difference t - other, used to compute a span's
// duration fields from its begin/end timings.
func (t Timings) Sub(other Timings) Timings {
	return Timings{
		Real:            t.Real - other.Real,
		CPU:             t.CPU - other.CPU,
		System:          t.System - other.System,
		ContextSwitches: t.ContextSwitches - other.ContextSwitches,
	}
}

// Add returns the elementwise sum t + other, used to accumulate FlushTiming
// overhead across multiple events within one open span.
func (t Timings) Add(other Timings) Timings {
	return Timings{
		Real:            t.Real + other.Real,
		CPU:             t.CPU + other.CPU,
		System:          t.System + other.System,
		ContextSwitches: t.ContextSwitches + other.ContextSwitches,
	}
}

// Metadata is the first line of every probe log.
type Metadata struct {
	Version  int    `json:"version"`
	Hostname string `json:"hostname"`
}

// Kind discriminates the typed events following the preamble.
type Kind string

const (
	KindStart       Kind = "start"
	KindScopeBegin  Kind = "scope_begin"
	KindScopeEnd    Kind = "scope_end"
	KindPoint       Kind = "point"
	KindKeyValue    Kind = "key_value"
	KindThreadEnd   Kind = "thread_end"
	KindFlushTiming Kind = "flush_timing"
)

// Event is a typed probe-log event. Only the fields relevant to Kind are
// populated.
type Event struct {
	Kind      Kind    `json:"kind"`
	Thread    int     `json:"thread"`
	ScopeName string  `json:"scope_name"`
	Timings   Timings `json:"timings"`
	Key       string  `json:"key"`
	Value     string  `json:"value"`
}

func (e Event) String() string {
	return fmt.Sprintf("%s(thread=%d, scope=%q)", e.Kind, e.Thread, e.ScopeName)
}
