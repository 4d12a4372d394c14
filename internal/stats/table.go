package stats

import "sort"

// Level phantom-tags a Table so a single-run table cannot be mistaken for a
// summary table at compile time (spec §9). Trend is reserved for a future
// third statistics level (spec Non-goals). It is exported like the other
// tags, but nothing in this module produces a Table[Trend].
type Level interface {
	singleRunOrSummaryOrTrend()
}

// SingleRun tags a per-run statistics table.
type SingleRun struct{}

func (SingleRun) singleRunOrSummaryOrTrend() {}

// Summary tags a cross-run aggregate statistics table.
type Summary struct{}

func (Summary) singleRunOrSummaryOrTrend() {}

// Trend tags a cross-commit trend table. Reserved: spec.md's Non-goals
// exclude "trend analysis across commits", so no producer exists for
// Table[Trend] in this module.
type Trend struct{}

func (Trend) singleRunOrSummaryOrTrend() {}

// FieldKey names one timing or counter field within a path bucket.
type FieldKey string

const (
	FieldReal            FieldKey = "real"
	FieldCPU             FieldKey = "cpu"
	FieldSystem          FieldKey = "system"
	FieldContextSwitches FieldKey = "context_switches"
)

// Bucket is the per-path-key set of field vectors.
type Bucket map[FieldKey]Vector

// Table[L] maps path keys to their per-field statistics, phantom-tagged by
// the statistics level L.
type Table[L Level] struct {
	Buckets map[string]Bucket
}

// NewTable constructs an empty Table of the given level.
func NewTable[L Level]() *Table[L] {
	return &Table[L]{Buckets: make(map[string]Bucket)}
}

// Set records the vector for (pathKey, field).
func (t *Table[L]) Set(pathKey string, field FieldKey, v Vector) {
	b, ok := t.Buckets[pathKey]
	if !ok {
		b = make(Bucket)
		t.Buckets[pathKey] = b
	}
	b[field] = v
}

// SortedPathKeys returns the table's path keys in deterministic
// (lexicographic) order, per spec §5: "the final table is deterministically
// ordered by path key" regardless of how the buckets were computed.
func (t *Table[L]) SortedPathKeys() []string {
	keys := make([]string, 0, len(t.Buckets))
	for k := range t.Buckets {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
