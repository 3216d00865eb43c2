package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	pkgerrors "github.com/NikolaosSamperis/PlaqueMS-project/pkg/errors"
)

// MockScorer is a mock implementation of ports.Scorer
type MockScorer struct {
	mock.Mock
	name string
}

func (m *MockScorer) Name() string { return m.name }

func (m *MockScorer) Score(ctx context.Context, features []float64, extract string) (float64, error) {
	args := m.Called(ctx, features, extract)
	return args.Get(0).(float64), args.Error(1)
}

func TestScoringService_Dispatches(t *testing.T) {
	syntax := &MockScorer{name: "syntax"}
	syntax.On("Score", mock.Anything, []float64{1, 2, 3, 4, 5}, "labelled").Return(14.2, nil)
	svc := NewScoringService(zap.NewNop(), syntax, nil)

	result, err := svc.Score(context.Background(), "syntax", []float64{1, 2, 3, 4, 5}, "labelled")

	require.NoError(t, err)
	assert.Equal(t, &ScoreResult{Scorer: "syntax", Value: 14.2, Extract: "labelled"}, result)
	syntax.AssertExpectations(t)
}

func TestScoringService_UnknownScorer(t *testing.T) {
	svc := NewScoringService(zap.NewNop())

	_, err := svc.Score(context.Background(), "calcification", nil, "core")

	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestScoringService_PassesScorerErrors(t *testing.T) {
	remote := &MockScorer{name: "calcification"}
	remote.On("Score", mock.Anything, mock.Anything, mock.Anything).
		Return(0.0, pkgerrors.NewFeatureVectorMismatchError(8, 2, ""))
	svc := NewScoringService(zap.NewNop(), remote)

	_, err := svc.Score(context.Background(), "calcification", []float64{1, 2}, "cellular")

	assert.True(t, pkgerrors.IsType(err, pkgerrors.ErrorTypeFeatureVectorMismatch))
}

type resolvingScorer struct {
	MockScorer
}

func (r *resolvingScorer) ResolveExtract(features []float64, extract string) (string, error) {
	return "label_free", nil
}

func TestScoringService_ReportsResolvedExtract(t *testing.T) {
	scorer := &resolvingScorer{MockScorer: MockScorer{name: "syntax"}}
	scorer.On("Score", mock.Anything, mock.Anything, "auto").Return(12.0, nil)
	svc := NewScoringService(zap.NewNop(), scorer)

	result, err := svc.Score(context.Background(), "syntax", []float64{30, 29, 25, 26, 33}, "auto")

	require.NoError(t, err)
	assert.Equal(t, "label_free", result.Extract)
}
