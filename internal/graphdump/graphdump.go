// Package graphdump renders the live datastore graph for debugging and
// checks it stays acyclic, grounded on the teacher's internal/batch cycle
// detection (itself built on gonum's directed graph and topological sort).
package graphdump

import (
	"fmt"
	"sort"
	"strings"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"

	"github.com/lledit/lledit/internal/session"
)

// node wraps a cached datastore's dsid as a gonum graph.Node.
type node struct {
	id    int64
	label string
}

func (n *node) ID() int64 { return n.id }

// Build constructs a directed graph from a session snapshot: one node per
// cached datastore, one edge per outgoing reference (the parent-of direction
// of spec.md §9).
func Build(snapshot []session.NodeSnapshot) (*simple.DirectedGraph, map[string]graph.Node) {
	g := simple.NewDirectedGraph()
	nodes := make(map[string]graph.Node, len(snapshot))

	for i, n := range snapshot {
		nd := &node{id: int64(i), label: n.Dsid.String()}
		nodes[n.Dsid.CacheKey()] = nd
		g.AddNode(nd)
	}
	for _, n := range snapshot {
		from, ok := nodes[n.Dsid.CacheKey()]
		if !ok {
			continue
		}
		for _, childID := range n.Outgoing {
			to, ok := nodes[childID.CacheKey()]
			if !ok {
				continue // child already released
			}
			if from.ID() == to.ID() {
				continue
			}
			g.SetEdge(g.NewEdge(from, to))
		}
	}
	return g, nodes
}

// CheckAcyclic returns an error listing every cyclic component reported by
// topo.Sort, or nil if the graph is a DAG. spec.md §9 argues this should
// never happen for outgoing references; this is the assertion that backs
// that argument.
func CheckAcyclic(g *simple.DirectedGraph) error {
	if _, err := topo.Sort(g); err != nil {
		unorderable, ok := err.(topo.Unorderable)
		if !ok {
			return err
		}
		var cycles []string
		for _, component := range unorderable {
			names := make([]string, len(component))
			for i, n := range component {
				names[i] = n.(*node).label
			}
			sort.Strings(names)
			cycles = append(cycles, "["+strings.Join(names, ", ")+"]")
		}
		return fmt.Errorf("graphdump: cyclic outgoing-reference components found: %s", strings.Join(cycles, ", "))
	}
	return nil
}

// Dump renders the snapshot as a sorted, human-readable edge list, one line
// per outgoing reference: "<from> -> <to>".
func Dump(snapshot []session.NodeSnapshot) string {
	var lines []string
	for _, n := range snapshot {
		for _, childID := range n.Outgoing {
			lines = append(lines, fmt.Sprintf("%s -> %s", n.Dsid.String(), childID.String()))
		}
	}
	sort.Strings(lines)
	return strings.Join(lines, "\n")
}
