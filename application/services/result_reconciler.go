package services

import (
	"context"

	"go.uber.org/zap"

	"github.com/NikolaosSamperis/PlaqueMS-project/application/ports"
	"github.com/NikolaosSamperis/PlaqueMS-project/domain/network"
	pkgerrors "github.com/NikolaosSamperis/PlaqueMS-project/pkg/errors"
)

// Summary reports the statistics of a reconciled clustering run.
type Summary struct {
	network.ClusterStats
	NodeCount int             `json:"node_count"`
	EdgeCount int             `json:"edge_count"`
	Warnings  []ports.Warning `json:"warnings,omitempty"`
}

// ResultReconciler attaches a clustering assignment to its graph and
// persists the pair as an artifact keyed by selection.
type ResultReconciler struct {
	store  ports.ArtifactStore
	codec  ports.ArtifactCodec
	logger *zap.Logger
}

// NewResultReconciler creates a new reconciler
func NewResultReconciler(store ports.ArtifactStore, codec ports.ArtifactCodec, logger *zap.Logger) *ResultReconciler {
	return &ResultReconciler{
		store:  store,
		codec:  codec,
		logger: logger,
	}
}

// Reconcile persists the artifact, overwriting any earlier one for the same
// selection. Identical inputs always produce identical bytes.
func (r *ResultReconciler) Reconcile(
	ctx context.Context,
	sel network.Selection,
	g *network.Graph,
	assignment *network.ClusterAssignment,
	warnings []ports.Warning,
) (*Summary, error) {
	artifact, err := network.NewArtifact(sel.Key(), g, assignment)
	if err != nil {
		return nil, err
	}

	payload, err := r.codec.Encode(artifact)
	if err != nil {
		return nil, pkgerrors.NewArtifactPersistenceError("encode", err)
	}

	if err := r.store.Put(ctx, artifact.SelectionKey, payload); err != nil {
		if pkgerrors.IsType(err, pkgerrors.ErrorTypeArtifactPersistence) {
			return nil, err
		}
		return nil, pkgerrors.NewArtifactPersistenceError("write", err)
	}

	summary := &Summary{
		ClusterStats: artifact.Stats(),
		NodeCount:    g.NodeCount(),
		EdgeCount:    g.EdgeCount(),
		Warnings:     warnings,
	}

	r.logger.Info("Clustering artifact persisted",
		zap.String("selection_key", artifact.SelectionKey),
		zap.Int("bytes", len(payload)),
		zap.Int("cluster_count", summary.ClusterCount),
		zap.Int("largest_cluster_size", summary.LargestClusterSize),
		zap.Int("unassigned_count", summary.UnassignedCount),
		zap.Int("warnings", len(warnings)),
	)

	return summary, nil
}

// Load returns the artifact stored for a selection without re-running
// clustering. A missing artifact is a NOT_FOUND error.
func (r *ResultReconciler) Load(ctx context.Context, sel network.Selection) (*network.Artifact, error) {
	payload, err := r.store.Get(ctx, sel.Key())
	if err != nil {
		if pkgerrors.IsNotFound(err) || pkgerrors.IsType(err, pkgerrors.ErrorTypeArtifactPersistence) {
			return nil, err
		}
		return nil, pkgerrors.NewArtifactPersistenceError("read", err)
	}

	artifact, err := r.codec.Decode(payload)
	if err != nil {
		return nil, pkgerrors.NewArtifactPersistenceError("decode", err)
	}
	return artifact, nil
}
