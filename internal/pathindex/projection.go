// Package pathindex projects call-tree spans into path-key strings and
// buckets them for statistics (spec §4.8).
package pathindex

import (
	"strconv"
	"strings"

	"github.com/evobench/evobenchd/internal/calltree"
)

// Projection selects how a span is keyed for aggregation (spec §3).
type Projection struct {
	// ThreadVisibility, when true, renders a per-thread tag prefix like
	// "N:thread00" instead of the cross-thread "A:thread" tag.
	ThreadVisibility bool
	// IncludeKeyValue includes synthetic KeyValue children in the rendered
	// path; when false, only real scope spans contribute segments.
	IncludeKeyValue bool
	// Reverse renders the parent chain innermost-first with "<" separators
	// instead of outermost-first with ">".
	Reverse bool
	// ProbeOnly collapses the key to the probe (leaf scope) name only,
	// ignoring call-graph location entirely.
	ProbeOnly bool
}

// Canonical projections named in spec §3.
var (
	SpecificThread = Projection{ThreadVisibility: true}
	CrossThread    = Projection{}
	CrossThreadRev = Projection{Reverse: true}
	ProbeOnly      = Projection{ProbeOnly: true}
)

// Key renders node's path key under projection, within tree.
func Key(tree *calltree.Tree, node calltree.NodeID, proj Projection) string {
	n := tree.Nodes[node]
	if proj.ProbeOnly {
		return n.ScopeName
	}

	chain := ancestorChain(tree, node, proj.IncludeKeyValue)
	if proj.Reverse {
		reverseStrings(chain)
	}

	sep := ">"
	if proj.Reverse {
		sep = "<"
	}

	var b strings.Builder
	if proj.ThreadVisibility {
		b.WriteString(strconv.Itoa(tree.ThreadOrder[n.Thread]))
		b.WriteString(":thread")
		b.WriteString(pad2(tree.ThreadOrder[n.Thread]))
		b.WriteString(sep)
	} else {
		b.WriteString("A:thread")
		b.WriteString(sep)
	}
	b.WriteString(strings.Join(chain, sep))
	return b.String()
}

// ancestorChain returns scope names from the outermost ancestor down to
// node itself, outermost-first, skipping synthetic KeyValue nodes unless
// includeKeyValue is set. A Point node contributes its own name only as the
// last segment of its own chain.
func ancestorChain(tree *calltree.Tree, node calltree.NodeID, includeKeyValue bool) []string {
	var names []string
	for cur := node; ; {
		n := tree.Nodes[cur]
		if n.Kind == calltree.KindScope || (n.Kind == calltree.KindKeyValue && includeKeyValue) || (n.Kind == calltree.KindPoint && cur == node) {
			names = append(names, n.ScopeName)
		}
		if n.Parent < 0 {
			break
		}
		cur = n.Parent
	}
	reverseStrings(names)
	return names
}

func reverseStrings(s []string) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}

func pad2(n int) string {
	s := strconv.Itoa(n)
	if len(s) < 2 {
		return "0" + s
	}
	return s
}
