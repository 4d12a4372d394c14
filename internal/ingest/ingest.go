// Package ingest wires the probe-log parser, call-tree builder, and path
// index into the single-run statistics table a completed run produces
// (spec §4.3 step 6, §4.6-4.8).
package ingest

import (
	"fmt"
	"io"

	"github.com/evobench/evobenchd/internal/calltree"
	"github.com/evobench/evobenchd/internal/pathindex"
	"github.com/evobench/evobenchd/internal/probelog"
	"github.com/evobench/evobenchd/internal/stats"
)

// Options controls the two config-level knobs spec §9 leaves open:
// whether Point events contribute to statistics, and whether FlushTiming
// overhead is subtracted from the spans that contain it.
type Options struct {
	IncludePointEvents  bool
	SubtractFlushTiming bool
}

// Result is everything a completed run's log parse produces: the
// reconstructed call tree (for flamegraph emission) and the single-run
// statistics table (for spreadsheet emission and summary re-indexing).
type Result struct {
	Metadata probelog.Metadata
	Tree     *calltree.Tree
	Table    *stats.Table[stats.SingleRun]
}

// projections are the four canonical PathProjections spec §3 names; a
// single run's statistics table buckets all of them together since each
// renders a distinctly shaped path key ("0:..." per thread, "A:thread>..."
// forward, "A:thread<..." reversed, and the bare scope name for ProbeOnly).
var projections = []pathindex.Projection{
	pathindex.SpecificThread,
	pathindex.CrossThread,
	pathindex.CrossThreadRev,
	pathindex.ProbeOnly,
}

// Run parses the probe log read from r (name supplies the suffix transparent
// decompression keys off of), builds its call tree, and computes the
// single-run statistics table across all four canonical projections.
func Run(r io.Reader, name string, opts Options) (Result, error) {
	log, err := probelog.Open(r, name)
	if err != nil {
		return Result{}, fmt.Errorf("ingest: parse probe log: %w", err)
	}

	var buildOpts []calltree.BuildOption
	if opts.SubtractFlushTiming {
		buildOpts = append(buildOpts, calltree.WithFlushTimingSubtracted())
	}
	tree, err := calltree.Build(log.Events, buildOpts...)
	if err != nil {
		return Result{}, fmt.Errorf("ingest: build call tree: %w", err)
	}

	table := tableFromTree(tree, opts)

	return Result{Metadata: log.Metadata, Tree: tree, Table: table}, nil
}

// tableFromTree buckets tree's spans under every canonical projection into
// one single-run statistics table.
func tableFromTree(tree *calltree.Tree, opts Options) *stats.Table[stats.SingleRun] {
	table := stats.NewTable[stats.SingleRun]()

	var pointOpts []pathindex.BuildOption
	if opts.IncludePointEvents {
		pointOpts = append(pointOpts, pathindex.WithPointEvents())
	}

	for _, proj := range projections {
		idx := pathindex.Build(tree, proj, pointOpts...)
		for pathKey, durations := range idx.Buckets {
			for field, sample := range fieldSamples(durations) {
				if len(sample) == 0 {
					continue
				}
				table.Set(pathKey, field, stats.Compute(fieldUnit(field), sample))
			}
		}
	}

	return table
}

// fieldUnit reports the physical quantity field holds, since context
// switches are a count and the remaining timing fields are durations.
func fieldUnit(field stats.FieldKey) stats.Unit {
	if field == stats.FieldContextSwitches {
		return stats.UnitCount
	}
	return stats.UnitNanoseconds
}

// fieldSamples splits a bucket's per-span Timings into one flat sample per
// timing field, so each field gets its own independent StatisticsVector.
func fieldSamples(durations []probelog.Timings) map[stats.FieldKey][]float64 {
	out := map[stats.FieldKey][]float64{
		stats.FieldReal:            make([]float64, 0, len(durations)),
		stats.FieldCPU:             make([]float64, 0, len(durations)),
		stats.FieldSystem:          make([]float64, 0, len(durations)),
		stats.FieldContextSwitches: make([]float64, 0, len(durations)),
	}
	for _, d := range durations {
		out[stats.FieldReal] = append(out[stats.FieldReal], float64(d.Real))
		out[stats.FieldCPU] = append(out[stats.FieldCPU], float64(d.CPU))
		out[stats.FieldSystem] = append(out[stats.FieldSystem], float64(d.System))
		out[stats.FieldContextSwitches] = append(out[stats.FieldContextSwitches], float64(d.ContextSwitches))
	}
	return out
}
