package services

import (
	"math"
	"strings"

	"github.com/NikolaosSamperis/PlaqueMS-project/domain/network"
	pkgerrors "github.com/NikolaosSamperis/PlaqueMS-project/pkg/errors"
)

// DefaultSignificanceThreshold is the adjusted p-value below which a protein
// is flagged as differentially expressed.
const DefaultSignificanceThreshold = 0.05

// AssemblyReport counts the non-fatal repairs made while assembling a graph.
type AssemblyReport struct {
	DanglingEdgesDropped     int `json:"dangling_edges_dropped"`
	SelfLoopsDropped         int `json:"self_loops_dropped"`
	InvalidEdgesDropped      int `json:"invalid_edges_dropped"`
	ParallelEdgesCollapsed   int `json:"parallel_edges_collapsed"`
	DuplicateNodesMerged     int `json:"duplicate_nodes_merged"`
	BlankNodesSkipped        int `json:"blank_nodes_skipped"`
	InvalidAttributesDropped int `json:"invalid_attributes_dropped"`
}

// GraphAssembler merges the raw node and edge sets fetched from the
// relational and graph stores into one consistent Graph.
type GraphAssembler struct {
	significanceThreshold float64
}

// NewGraphAssembler creates an assembler. A non-positive threshold selects
// DefaultSignificanceThreshold.
func NewGraphAssembler(significanceThreshold float64) *GraphAssembler {
	if significanceThreshold <= 0 {
		significanceThreshold = DefaultSignificanceThreshold
	}
	return &GraphAssembler{significanceThreshold: significanceThreshold}
}

// Assemble deduplicates nodes (relational attributes win on conflicting
// keys), drops non-finite numeric attributes, collapses parallel edges keeping the maximum weight, drops edges
// whose endpoints are absent, and returns EmptyGraphError when no node
// survives.
func (a *GraphAssembler) Assemble(nodes []network.Node, edges []network.Edge) (*network.Graph, AssemblyReport, error) {
	var report AssemblyReport

	merged := make(map[string]network.Node, len(nodes))
	order := make([]string, 0, len(nodes))
	for _, n := range nodes {
		n.ID = network.NormalizeID(n.ID)
		if n.ID == "" {
			report.BlankNodesSkipped++
			continue
		}
		var dropped int
		n.Attributes, dropped = finiteAttributes(n.Attributes)
		report.InvalidAttributesDropped += dropped
		existing, ok := merged[n.ID]
		if !ok {
			merged[n.ID] = n
			order = append(order, n.ID)
			continue
		}
		merged[n.ID] = mergeNodes(existing, n)
		report.DuplicateNodesMerged++
	}

	if len(merged) == 0 {
		return nil, report, pkgerrors.NewEmptyGraphError()
	}

	finalNodes := make([]network.Node, 0, len(merged))
	for _, id := range order {
		finalNodes = append(finalNodes, a.annotate(merged[id]))
	}

	byPair := make(map[network.EdgeKey]network.Edge, len(edges))
	for _, raw := range edges {
		e := network.NewEdge(raw.Source, raw.Target, raw.Weight, raw.Type)
		switch {
		case e.Source == "" || e.Target == "" || math.IsNaN(e.Weight) || math.IsInf(e.Weight, 0):
			report.InvalidEdgesDropped++
			continue
		case e.IsSelfLoop():
			report.SelfLoopsDropped++
			continue
		}

		if _, ok := merged[e.Source]; !ok {
			report.DanglingEdgesDropped++
			continue
		}
		if _, ok := merged[e.Target]; !ok {
			report.DanglingEdgesDropped++
			continue
		}

		existing, ok := byPair[e.Key()]
		if !ok {
			byPair[e.Key()] = e
			continue
		}
		report.ParallelEdgesCollapsed++
		if e.Weight > existing.Weight || (e.Weight == existing.Weight && e.Type < existing.Type) {
			byPair[e.Key()] = e
		}
	}

	finalEdges := make([]network.Edge, 0, len(byPair))
	for _, e := range byPair {
		finalEdges = append(finalEdges, e)
	}

	g, err := network.NewGraph(finalNodes, finalEdges)
	if err != nil {
		return nil, report, pkgerrors.Wrap(err, "assembled graph violates invariants")
	}
	return g, report, nil
}

// annotate attaches derived analysis attributes.
func (a *GraphAssembler) annotate(n network.Node) network.Node {
	if _, ok := n.Attributes[network.AttrSignificant]; ok {
		return n
	}
	adj, ok := n.Attributes[network.AttrAdjPValue].Float()
	if !ok {
		return n
	}
	n.Attributes = n.Attributes.Clone()
	n.Attributes[network.AttrSignificant] = network.Flag(adj < a.significanceThreshold)
	return n
}

// finiteAttributes returns attrs without NaN or infinite numbers. attrs is
// copied only when something is dropped.
func finiteAttributes(attrs network.Attributes) (network.Attributes, int) {
	var out network.Attributes
	dropped := 0
	for k, v := range attrs {
		if f, ok := v.Float(); ok && (math.IsNaN(f) || math.IsInf(f, 0)) {
			if out == nil {
				out = attrs.Clone()
			}
			delete(out, k)
			dropped++
		}
	}
	if out == nil {
		return attrs, 0
	}
	return out, dropped
}

func authoritative(n network.Node) bool {
	return n.Source == network.SourceRelational || n.Source == network.SourceMerged
}

// mergeNodes combines two records of the same protein. The relational record
// is primary; between records of equal standing the first one seen is.
func mergeNodes(existing, incoming network.Node) network.Node {
	primary, secondary := existing, incoming
	if authoritative(incoming) && !authoritative(existing) {
		primary, secondary = incoming, existing
	}

	attrs := make(network.Attributes, len(primary.Attributes)+len(secondary.Attributes))
	for k, v := range secondary.Attributes {
		attrs[k] = v
	}
	for k, v := range primary.Attributes {
		attrs[k] = v
	}

	label := primary.Label
	if label == "" || strings.EqualFold(label, primary.ID) {
		if secondary.Label != "" {
			label = secondary.Label
		}
	}

	source := primary.Source
	if primary.Source != secondary.Source {
		source = network.SourceMerged
	}

	return network.Node{
		ID:         primary.ID,
		Label:      label,
		Source:     source,
		Attributes: attrs,
	}
}
