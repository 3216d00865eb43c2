package services

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/NikolaosSamperis/PlaqueMS-project/application/ports"
	pkgerrors "github.com/NikolaosSamperis/PlaqueMS-project/pkg/errors"
)

// ScoreResult is one scorer output.
type ScoreResult struct {
	Scorer  string  `json:"scorer"`
	Value   float64 `json:"value"`
	Extract string  `json:"proteome_extract"`
}

// extractResolver is implemented by scorers that pick a model from the
// feature values, so the result can name the model actually used.
type extractResolver interface {
	ResolveExtract(features []float64, extract string) (string, error)
}

// ScoringService dispatches feature vectors to registered scorers by name.
type ScoringService struct {
	scorers map[string]ports.Scorer
	logger  *zap.Logger
}

// NewScoringService creates a new scoring service
func NewScoringService(logger *zap.Logger, scorers ...ports.Scorer) *ScoringService {
	m := make(map[string]ports.Scorer, len(scorers))
	for _, s := range scorers {
		if s != nil {
			m[s.Name()] = s
		}
	}
	return &ScoringService{scorers: m, logger: logger}
}

// Score runs the named scorer.
func (s *ScoringService) Score(ctx context.Context, name string, features []float64, extract string) (*ScoreResult, error) {
	scorer, ok := s.scorers[name]
	if !ok {
		return nil, pkgerrors.NewNotFoundError("scorer " + name)
	}

	start := time.Now()
	value, err := scorer.Score(ctx, features, extract)
	if err != nil {
		s.logger.Debug("Scoring failed",
			zap.String("scorer", name),
			zap.String("kind", string(pkgerrors.TypeOf(err))),
			zap.Error(err),
		)
		return nil, err
	}

	s.logger.Debug("Scored feature vector",
		zap.String("scorer", name),
		zap.Int("features", len(features)),
		zap.Duration("duration", time.Since(start)),
	)
	if r, ok := scorer.(extractResolver); ok {
		if resolved, err := r.ResolveExtract(features, extract); err == nil {
			extract = resolved
		}
	}
	return &ScoreResult{Scorer: name, Value: value, Extract: extract}, nil
}
