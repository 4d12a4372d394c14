package pathindex

import (
	"github.com/evobench/evobenchd/internal/calltree"
	"github.com/evobench/evobenchd/internal/probelog"
)

// Index maps each path key, under one projection, to the spans (represented
// as their duration Timings) observed at that key.
type Index struct {
	Projection Projection
	Buckets    map[string][]probelog.Timings
}

// BuildOption configures optional Build behavior.
type BuildOption func(*buildOptions)

type buildOptions struct {
	includePoints bool
}

// WithPointEvents makes Build bucket Point leaves alongside scope spans,
// instead of the spec §4.7 default of preserving them in the tree but
// excluding them from aggregation.
func WithPointEvents() BuildOption {
	return func(o *buildOptions) { o.includePoints = true }
}

// Build walks every non-synthetic-unless-configured node in tree and buckets
// its duration by path key under proj. Point leaves are excluded by default
// (spec §4.7: "currently unused by downstream aggregation but preserved");
// pass WithPointEvents to include them.
func Build(tree *calltree.Tree, proj Projection, opts ...BuildOption) *Index {
	var cfg buildOptions
	for _, opt := range opts {
		opt(&cfg)
	}

	idx := &Index{Projection: proj, Buckets: make(map[string][]probelog.Timings)}

	for id, n := range tree.Nodes {
		switch n.Kind {
		case calltree.KindPoint:
			if !cfg.includePoints {
				continue
			}
		case calltree.KindKeyValue:
			if !proj.IncludeKeyValue {
				continue
			}
		}
		key := Key(tree, calltree.NodeID(id), proj)
		idx.Buckets[key] = append(idx.Buckets[key], n.Duration())
	}

	return idx
}
