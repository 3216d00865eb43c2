package ports

import (
	"context"

	"github.com/NikolaosSamperis/PlaqueMS-project/domain/network"
)

// ClusteringParams configures one remote clustering run.
type ClusteringParams struct {
	Algorithm              string  `json:"algorithm" yaml:"algorithm" validate:"required"`
	WeightAttribute        string  `json:"weight_attribute" yaml:"weight_attribute" validate:"required"`
	ClusterAttribute       string  `json:"cluster_attribute" yaml:"cluster_attribute" validate:"required"`
	Inflation              float64 `json:"inflation" yaml:"inflation" validate:"gt=1"`
	Iterations             int     `json:"iterations" yaml:"iterations" validate:"min=1"`
	MaxResidual            float64 `json:"max_residual" yaml:"max_residual" validate:"gt=0"`
	ClusteringThreshold    float64 `json:"clustering_threshold" yaml:"clustering_threshold" validate:"gt=0"`
	AdjustLoops            bool    `json:"adjust_loops" yaml:"adjust_loops"`
	EdgeWeighter           string  `json:"edge_weighter" yaml:"edge_weighter"`
	ForceDecliningResidual bool    `json:"force_declining_residual" yaml:"force_declining_residual"`
	UndirectedEdges        bool    `json:"undirected_edges" yaml:"undirected_edges"`
	StyleName              string  `json:"style_name" yaml:"style_name"`
	Collection             string  `json:"collection" yaml:"collection"`
}

// DefaultClusteringParams returns the MCL settings used by the PlaqueMS
// network views.
func DefaultClusteringParams() ClusteringParams {
	return ClusteringParams{
		Algorithm:              "mcl",
		WeightAttribute:        "weight",
		ClusterAttribute:       "__mclCluster",
		Inflation:              2.5,
		Iterations:             16,
		MaxResidual:            0.001,
		ClusteringThreshold:    1e-15,
		AdjustLoops:            true,
		EdgeWeighter:           "None",
		ForceDecliningResidual: true,
		UndirectedEdges:        true,
		StyleName:              "PlaqueMS",
		Collection:             "PlaqueMS",
	}
}

// ClusteringParamsSource yields the parameters for the next cycle. Each
// cycle takes one snapshot so a hot reload never changes a running cycle.
type ClusteringParamsSource interface {
	Current() ClusteringParams
}

// StaticParams is a ClusteringParamsSource that never changes.
type StaticParams ClusteringParams

// Current implements ClusteringParamsSource.
func (p StaticParams) Current() ClusteringParams { return ClusteringParams(p) }

// SessionHandle identifies the server-side state of one cycle.
type SessionHandle struct {
	NetworkTitle string `json:"network_title"`
	NetworkSUID  int64  `json:"network_suid,omitempty"`
	JobID        string `json:"job_id,omitempty"`
}

// Warning is a non-fatal issue surfaced with the summary statistics.
type Warning struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Count   int    `json:"count,omitempty"`
}

// Warning codes.
const (
	WarningDanglingEdges    = "dangling_edges_dropped"
	WarningSelfLoops        = "self_loops_dropped"
	WarningInvalidEdges     = "invalid_edges_dropped"
	WarningInvalidAttrs     = "invalid_attributes_dropped"
	WarningStaleAssignments = "stale_assignments_discarded"
	WarningStyleFailed      = "style_not_applied"
)

// ClusteringRun is the outcome of a successful remote clustering run.
type ClusteringRun struct {
	Assignment       *network.ClusterAssignment
	StaleAssignments int
	Warnings         []Warning
}

// ClusteringSession drives one remote network session from creation to
// partition retrieval. A session is used for exactly one cycle.
type ClusteringSession interface {
	// Run mirrors g on the remote service, styles it, submits the clustering
	// job and waits for the partition.
	Run(ctx context.Context, g *network.Graph, params ClusteringParams) (*ClusteringRun, error)
	// Handle returns the handles acquired so far.
	Handle() SessionHandle
	// Release deletes the remote network. Calling it more than once, or
	// before a network exists, is a no-op.
	Release(ctx context.Context) error
}

// ClusteringService opens clustering sessions.
type ClusteringService interface {
	NewSession(networkTitle string) ClusteringSession
}
