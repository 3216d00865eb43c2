package scoring

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	pkgerrors "github.com/NikolaosSamperis/PlaqueMS-project/pkg/errors"
)

var (
	labelFreeMeans = []float64{28.3118, 29.2769, 25.5675, 26.5596, 33.9064}
	labelledMeans  = []float64{6.5236, 6.2841, 6.4017, 6.4461, 6.2414}
)

func TestSyntaxScorer_Score(t *testing.T) {
	tests := []struct {
		name     string
		features []float64
		extract  string
		want     float64
	}{
		{name: "label-free means score the intercept", features: labelFreeMeans, extract: "label_free", want: 11.9375},
		{name: "labelled means score the intercept", features: labelledMeans, extract: "labelled", want: 11.9375},
		{
			name:     "one std above on HRG adds its coefficient",
			features: []float64{28.3118 + 1.1941, 29.2769, 25.5675, 26.5596, 33.9064},
			extract:  "label_free",
			want:     11.9375 + 0.8375609,
		},
		{
			name:     "auto picks label-free above the HRG threshold",
			features: []float64{28.3118, 29.2769, 25.5675 + 1.2779, 26.5596, 33.9064},
			extract:  "auto",
			want:     11.9375 + 9.0445166,
		},
		{
			name:     "auto picks labelled below the HRG threshold",
			features: []float64{6.5236, 6.2841, 6.4017, 6.4461, 6.2414 - 1.0896},
			extract:  "",
			want:     11.9375 + 2.7828411,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			score, err := NewSyntaxScorer().Score(context.Background(), tt.features, tt.extract)

			require.NoError(t, err)
			assert.InDelta(t, tt.want, score, 1e-9)
		})
	}
}

func TestSyntaxScorer_RejectsBadVectors(t *testing.T) {
	scorer := NewSyntaxScorer()

	_, err := scorer.Score(context.Background(), labelFreeMeans[:4], "label_free")
	assert.True(t, pkgerrors.IsType(err, pkgerrors.ErrorTypeFeatureVectorMismatch))
	assert.Equal(t, 5, pkgerrors.GetAppError(err).Details["expected"])
	assert.Equal(t, 4, pkgerrors.GetAppError(err).Details["actual"])

	_, err = scorer.Score(context.Background(), []float64{1, 2, math.NaN(), 4, 5}, "labelled")
	assert.True(t, pkgerrors.IsType(err, pkgerrors.ErrorTypeFeatureVectorMismatch))
	assert.Contains(t, err.Error(), "C4B")

	_, err = scorer.Score(context.Background(), labelFreeMeans, "tmt")
	assert.True(t, pkgerrors.IsValidation(err))
}

func inferenceServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *int32) {
	t.Helper()
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestRemoteScorer_Score(t *testing.T) {
	// Arrange
	var got inferenceRequest
	srv, _ := inferenceServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"probability": 0.82}`))
	})
	scorer := NewRemoteScorer(srv.URL, time.Second, zap.NewNop())
	features := make([]float64, 7)

	// Act
	p, err := scorer.Score(context.Background(), features, "Soluble")

	// Assert
	require.NoError(t, err)
	assert.Equal(t, 0.82, p)
	assert.Equal(t, "soluble", got.Model)
	assert.Len(t, got.Features, 7)
}

func TestRemoteScorer_LengthCheckedLocally(t *testing.T) {
	srv, calls := inferenceServer(t, func(w http.ResponseWriter, r *http.Request) {})
	scorer := NewRemoteScorer(srv.URL, time.Second, zap.NewNop())

	_, err := scorer.Score(context.Background(), make([]float64, 3), "cellular")

	assert.True(t, pkgerrors.IsType(err, pkgerrors.ErrorTypeFeatureVectorMismatch))
	assert.Zero(t, atomic.LoadInt32(calls))
}

func TestRemoteScorer_UnprocessableIsMismatch(t *testing.T) {
	srv, _ := inferenceServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "feature OSTP must be positive", http.StatusUnprocessableEntity)
	})
	scorer := NewRemoteScorer(srv.URL, time.Second, zap.NewNop())

	_, err := scorer.Score(context.Background(), make([]float64, 8), "cellular")

	assert.True(t, pkgerrors.IsType(err, pkgerrors.ErrorTypeFeatureVectorMismatch))
	assert.Contains(t, pkgerrors.GetAppError(err).Message, "OSTP")
}

func TestRemoteScorer_BreakerOpensAfterFailures(t *testing.T) {
	srv, calls := inferenceServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	})
	scorer := NewRemoteScorer(srv.URL, time.Second, zap.NewNop())

	for i := 0; i < 3; i++ {
		_, err := scorer.Score(context.Background(), make([]float64, 8), "cellular")
		require.True(t, pkgerrors.IsType(err, pkgerrors.ErrorTypeScorerUnavailable))
	}
	_, err := scorer.Score(context.Background(), make([]float64, 8), "cellular")

	assert.True(t, pkgerrors.IsType(err, pkgerrors.ErrorTypeScorerUnavailable))
	assert.Equal(t, int32(3), atomic.LoadInt32(calls))
}

func TestRemoteScorer_NotConfigured(t *testing.T) {
	_, err := NewRemoteScorer("", time.Second, zap.NewNop()).Score(context.Background(), make([]float64, 14), "core")

	assert.True(t, pkgerrors.IsType(err, pkgerrors.ErrorTypeScorerUnavailable))
}
