package handlers

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/NikolaosSamperis/PlaqueMS-project/application/services"
	pkgerrors "github.com/NikolaosSamperis/PlaqueMS-project/pkg/errors"
)

// ScoreRunner dispatches a feature vector to a named scorer.
type ScoreRunner interface {
	Score(ctx context.Context, name string, features []float64, extract string) (*services.ScoreResult, error)
}

// ScoreRequest is the body of the scoring endpoints.
type ScoreRequest struct {
	Features        []float64 `json:"features" validate:"required,min=1"`
	ProteomeExtract string    `json:"proteome_extract"`
}

// SyntaxScoreResponse is the body of POST /scores/syntax.
type SyntaxScoreResponse struct {
	Score   float64 `json:"score"`
	Extract string  `json:"extract"`
}

// CalcificationScoreResponse is the body of POST /scores/calcification.
type CalcificationScoreResponse struct {
	Probability float64 `json:"probability"`
	Extract     string  `json:"extract"`
}

// ScoringHandler handles scoring requests
type ScoringHandler struct {
	scoring ScoreRunner
	errors  *pkgerrors.ErrorHandler
	logger  *zap.Logger
}

// NewScoringHandler creates a new scoring handler
func NewScoringHandler(scoring ScoreRunner, errors *pkgerrors.ErrorHandler, logger *zap.Logger) *ScoringHandler {
	return &ScoringHandler{
		scoring: scoring,
		errors:  errors,
		logger:  logger,
	}
}

// ScoreSyntax handles POST /scores/syntax
func (h *ScoringHandler) ScoreSyntax(w http.ResponseWriter, r *http.Request) {
	result, ok := h.score(w, r, "syntax")
	if !ok {
		return
	}
	respondJSON(w, h.logger, http.StatusOK, SyntaxScoreResponse{
		Score:   result.Value,
		Extract: result.Extract,
	})
}

// ScoreCalcification handles POST /scores/calcification
func (h *ScoringHandler) ScoreCalcification(w http.ResponseWriter, r *http.Request) {
	result, ok := h.score(w, r, "calcification")
	if !ok {
		return
	}
	respondJSON(w, h.logger, http.StatusOK, CalcificationScoreResponse{
		Probability: result.Value,
		Extract:     result.Extract,
	})
}

func (h *ScoringHandler) score(w http.ResponseWriter, r *http.Request, scorer string) (*services.ScoreResult, bool) {
	var req ScoreRequest
	if err := decodeJSON(r, &req); err != nil {
		h.errors.Handle(w, r, err)
		return nil, false
	}

	result, err := h.scoring.Score(r.Context(), scorer, req.Features, req.ProteomeExtract)
	if err != nil {
		h.errors.Handle(w, r, err)
		return nil, false
	}
	return result, true
}
