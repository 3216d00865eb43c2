package handlers

import (
	"context"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/NikolaosSamperis/PlaqueMS-project/application/orchestration"
	"github.com/NikolaosSamperis/PlaqueMS-project/application/ports"
	"github.com/NikolaosSamperis/PlaqueMS-project/application/services"
	"github.com/NikolaosSamperis/PlaqueMS-project/domain/network"
	pkgerrors "github.com/NikolaosSamperis/PlaqueMS-project/pkg/errors"
)

// CycleRunner runs one clustering cycle.
type CycleRunner interface {
	Run(ctx context.Context, sel network.Selection) *orchestration.Result
}

// ArtifactLoader reads a persisted artifact.
type ArtifactLoader interface {
	Load(ctx context.Context, sel network.Selection) (*network.Artifact, error)
}

// SelectionRequest is the body of POST /clusterings.
type SelectionRequest struct {
	Cohort          string   `json:"cohort" validate:"required"`
	TissueRegion    string   `json:"tissue_region" validate:"required"`
	ProteomeExtract string   `json:"proteome_extract" validate:"required"`
	ProteinIDs      []string `json:"protein_ids,omitempty"`
}

// ClusteringResponse is the body of a completed cycle.
type ClusteringResponse struct {
	Outcome      string              `json:"outcome"`
	CycleID      string              `json:"cycle_id"`
	SelectionKey string              `json:"selection_key"`
	Summary      *services.Summary   `json:"summary"`
	Session      ports.SessionHandle `json:"session"`
	GraphView
}

// ArtifactResponse is the body of GET /clusterings.
type ArtifactResponse struct {
	SelectionKey string `json:"selection_key"`
	GraphView
}

// ClusteringHandler handles clustering requests
type ClusteringHandler struct {
	runner CycleRunner
	loader ArtifactLoader
	errors *pkgerrors.ErrorHandler
	logger *zap.Logger
}

// NewClusteringHandler creates a new clustering handler
func NewClusteringHandler(runner CycleRunner, loader ArtifactLoader, errors *pkgerrors.ErrorHandler, logger *zap.Logger) *ClusteringHandler {
	return &ClusteringHandler{
		runner: runner,
		loader: loader,
		errors: errors,
		logger: logger,
	}
}

// RunClustering handles POST /clusterings
func (h *ClusteringHandler) RunClustering(w http.ResponseWriter, r *http.Request) {
	var req SelectionRequest
	if err := decodeJSON(r, &req); err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	sel, err := network.NewSelection(req.Cohort, req.TissueRegion, req.ProteomeExtract, req.ProteinIDs)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	result := h.runner.Run(r.Context(), sel)
	if result.Outcome != orchestration.OutcomeCompleted {
		h.errors.Handle(w, r, resultError(result))
		return
	}

	respondJSON(w, h.logger, http.StatusOK, ClusteringResponse{
		Outcome:      string(result.Outcome),
		CycleID:      result.CycleID,
		SelectionKey: result.SelectionKey,
		Summary:      result.Summary,
		Session:      result.Handle,
		GraphView:    newGraphView(result.Graph, result.Assignment),
	})
}

// GetClustering handles GET /clusterings
func (h *ClusteringHandler) GetClustering(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var proteins []string
	if raw := q.Get("protein_ids"); raw != "" {
		proteins = strings.Split(raw, ",")
	}

	sel, err := network.NewSelection(q.Get("cohort"), q.Get("tissue_region"), q.Get("proteome_extract"), proteins)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	artifact, err := h.loader.Load(r.Context(), sel)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	respondJSON(w, h.logger, http.StatusOK, ArtifactResponse{
		SelectionKey: artifact.SelectionKey,
		GraphView:    newGraphView(artifact.Graph, artifact.Assignment),
	})
}

// resultError attaches the cycle identity and the remote session to the
// error that ended the cycle.
func resultError(result *orchestration.Result) error {
	appErr := pkgerrors.GetAppError(result.Err)
	if appErr == nil {
		appErr = pkgerrors.NewInternalError("clustering cycle failed").WithCause(result.Err)
	}
	appErr = appErr.WithDetail("cycle_id", result.CycleID).
		WithDetail("selection_key", result.SelectionKey)
	if result.Handle.NetworkSUID != 0 {
		appErr = appErr.WithDetail("network_suid", result.Handle.NetworkSUID)
	}
	if result.Handle.JobID != "" {
		appErr = appErr.WithDetail("job_id", result.Handle.JobID)
	}
	return appErr
}
