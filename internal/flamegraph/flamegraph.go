// Package flamegraph converts the call tree's inclusive timings to
// exclusive timings and emits a folded-stack line stream, the sole input
// format the external flamegraph renderer needs (spec §1, §4.8). The
// renderer itself is the declared external collaborator; this package only
// produces its input.
package flamegraph

import (
	"fmt"
	"io"

	"github.com/evobench/evobenchd/internal/calltree"
	"github.com/evobench/evobenchd/internal/pathindex"
	"github.com/evobench/evobenchd/internal/probelog"
)

// FieldSelector extracts the scalar a flamegraph is drawn over from a
// node's duration Timings.
type FieldSelector func(probelog.Timings) int64

var (
	FieldReal   FieldSelector = func(t probelog.Timings) int64 { return t.Real }
	FieldCPU    FieldSelector = func(t probelog.Timings) int64 { return t.CPU }
	FieldSystem FieldSelector = func(t probelog.Timings) int64 { return t.System }
)

// exclusive holds, per node, the chosen field's exclusive (self) time:
// inclusive time minus the sum of the same field over direct children.
func exclusive(tree *calltree.Tree, field FieldSelector) map[calltree.NodeID]int64 {
	out := make(map[calltree.NodeID]int64, len(tree.Nodes))
	for id, n := range tree.Nodes {
		self := field(n.Duration())
		for _, child := range n.Children {
			self -= field(tree.Nodes[child].Duration())
		}
		if self < 0 {
			self = 0
		}
		out[calltree.NodeID(id)] = self
	}
	return out
}

// WriteFoldedStacks emits one folded-stack line per node, using the
// canonical cross-thread forward projection (spec §4.8 "single canonical
// projection"), with exclusive times as the sample weight.
func WriteFoldedStacks(w io.Writer, tree *calltree.Tree, field FieldSelector) error {
	self := exclusive(tree, field)

	for id, n := range tree.Nodes {
		if n.Kind == calltree.KindPoint {
			continue
		}
		weight := self[calltree.NodeID(id)]
		if weight <= 0 {
			continue
		}
		stack := pathindex.Key(tree, calltree.NodeID(id), pathindex.CrossThread)
		folded := foldedFromPathKey(stack)
		if _, err := fmt.Fprintf(w, "%s %d\n", folded, weight); err != nil {
			return fmt.Errorf("flamegraph: write folded stack: %w", err)
		}
	}
	return nil
}

// foldedFromPathKey turns the ">"-separated path-index key into the
// ";"-separated folded-stack format collapsed-stack tooling expects.
func foldedFromPathKey(pathKey string) string {
	out := make([]byte, 0, len(pathKey))
	for i := 0; i < len(pathKey); i++ {
		if pathKey[i] == '>' {
			out = append(out, ';')
			continue
		}
		out = append(out, pathKey[i])
	}
	return string(out)
}
