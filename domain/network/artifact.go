package network

import (
	"fmt"

	pkgerrors "github.com/NikolaosSamperis/PlaqueMS-project/pkg/errors"
)

// ClusterStats summarizes a clustering outcome.
type ClusterStats struct {
	ClusterCount       int `json:"cluster_count"`
	LargestClusterSize int `json:"largest_cluster_size"`
	UnassignedCount    int `json:"unassigned_count"`
}

// Artifact is the persisted result of one cycle: the graph and its cluster
// overlay, keyed by the selection that produced it.
type Artifact struct {
	SelectionKey string
	Graph        *Graph
	Assignment   *ClusterAssignment
}

// NewArtifact checks that the assignment covers exactly the graph's nodes.
func NewArtifact(selectionKey string, g *Graph, a *ClusterAssignment) (*Artifact, error) {
	if selectionKey == "" {
		return nil, pkgerrors.NewValidationError("artifact requires a selection key")
	}
	if g == nil || a == nil {
		return nil, pkgerrors.NewValidationError("artifact requires a graph and an assignment")
	}
	if a.Len() != g.NodeCount() {
		return nil, pkgerrors.NewValidationError(
			fmt.Sprintf("assignment covers %d nodes, graph has %d", a.Len(), g.NodeCount()))
	}
	for _, id := range g.NodeIDs() {
		if _, ok := a.clusters[id]; !ok {
			return nil, pkgerrors.NewValidationError(fmt.Sprintf("node %q has no assignment", id))
		}
	}
	return &Artifact{SelectionKey: selectionKey, Graph: g, Assignment: a}, nil
}

// Stats computes the summary statistics of the artifact.
func (a *Artifact) Stats() ClusterStats {
	return ClusterStats{
		ClusterCount:       a.Assignment.ClusterCount(),
		LargestClusterSize: a.Assignment.LargestClusterSize(),
		UnassignedCount:    a.Assignment.UnassignedCount(),
	}
}
