package network

import (
	"fmt"
	"sort"

	pkgerrors "github.com/NikolaosSamperis/PlaqueMS-project/pkg/errors"
)

// Graph is an assembled protein-interaction network. It is immutable once
// built: accessors return copies, and clustering results are attached as a
// separate ClusterAssignment overlay.
type Graph struct {
	nodes    []Node
	edges    []Edge
	index    map[string]int
	edgeKeys map[EdgeKey]int
}

// NewGraph builds a graph and enforces its structural invariants: node
// identifiers are unique, edges are normalized, not self-loops, unique per
// pair, and reference only nodes in the node set.
func NewGraph(nodes []Node, edges []Edge) (*Graph, error) {
	g := &Graph{
		nodes:    make([]Node, 0, len(nodes)),
		edges:    make([]Edge, 0, len(edges)),
		index:    make(map[string]int, len(nodes)),
		edgeKeys: make(map[EdgeKey]int, len(edges)),
	}

	sorted := make([]Node, len(nodes))
	copy(sorted, nodes)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	for _, n := range sorted {
		if n.ID == "" || n.ID != NormalizeID(n.ID) {
			return nil, pkgerrors.NewValidationError(fmt.Sprintf("node id %q is not normalized", n.ID))
		}
		if _, dup := g.index[n.ID]; dup {
			return nil, pkgerrors.NewValidationError(fmt.Sprintf("duplicate node %q", n.ID))
		}
		g.index[n.ID] = len(g.nodes)
		g.nodes = append(g.nodes, n.clone())
	}

	sortedEdges := make([]Edge, len(edges))
	copy(sortedEdges, edges)
	sort.Slice(sortedEdges, func(i, j int) bool { return sortedEdges[i].Less(sortedEdges[j]) })

	for _, e := range sortedEdges {
		if e.Source > e.Target || e.IsSelfLoop() {
			return nil, pkgerrors.NewValidationError(fmt.Sprintf("edge %s-%s is not a normalized pair", e.Source, e.Target))
		}
		if !g.HasNode(e.Source) || !g.HasNode(e.Target) {
			return nil, pkgerrors.NewValidationError(fmt.Sprintf("edge %s-%s references an absent node", e.Source, e.Target))
		}
		if _, dup := g.edgeKeys[e.Key()]; dup {
			return nil, pkgerrors.NewValidationError(fmt.Sprintf("duplicate edge %s-%s", e.Source, e.Target))
		}
		g.edgeKeys[e.Key()] = len(g.edges)
		g.edges = append(g.edges, e)
	}

	return g, nil
}

// NodeCount returns the number of nodes.
func (g *Graph) NodeCount() int { return len(g.nodes) }

// EdgeCount returns the number of edges.
func (g *Graph) EdgeCount() int { return len(g.edges) }

// HasNode reports whether a normalized identifier is in the node set.
func (g *Graph) HasNode(id string) bool {
	_, ok := g.index[id]
	return ok
}

// Node returns a copy of the node with the given normalized identifier.
func (g *Graph) Node(id string) (Node, bool) {
	i, ok := g.index[id]
	if !ok {
		return Node{}, false
	}
	return g.nodes[i].clone(), true
}

// Edge returns the edge between a and b in either order.
func (g *Graph) Edge(a, b string) (Edge, bool) {
	key := NewEdge(a, b, 0, "").Key()
	i, ok := g.edgeKeys[key]
	if !ok {
		return Edge{}, false
	}
	return g.edges[i], true
}

// Nodes returns copies of all nodes sorted by identifier.
func (g *Graph) Nodes() []Node {
	out := make([]Node, len(g.nodes))
	for i, n := range g.nodes {
		out[i] = n.clone()
	}
	return out
}

// NodeIDs returns all node identifiers in sorted order.
func (g *Graph) NodeIDs() []string {
	out := make([]string, len(g.nodes))
	for i, n := range g.nodes {
		out[i] = n.ID
	}
	return out
}

// Edges returns all edges sorted by (source, target).
func (g *Graph) Edges() []Edge {
	out := make([]Edge, len(g.edges))
	copy(out, g.edges)
	return out
}

// MaxAbsAttribute returns the largest absolute numeric value of an attribute
// across all nodes, used to centre diverging colour scales.
func (g *Graph) MaxAbsAttribute(name string) float64 {
	max := 0.0
	for _, n := range g.nodes {
		if v, ok := n.Attributes[name].Float(); ok {
			if v < 0 {
				v = -v
			}
			if v > max {
				max = v
			}
		}
	}
	return max
}
