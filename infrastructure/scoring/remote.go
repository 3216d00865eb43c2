package scoring

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/NikolaosSamperis/PlaqueMS-project/application/ports"
	pkgerrors "github.com/NikolaosSamperis/PlaqueMS-project/pkg/errors"
)

// CalcificationFeatures lists the feature order of each calcification model,
// keyed by proteome extract.
var CalcificationFeatures = map[string][]string{
	"cellular": {"OSTP", "FHL2", "CFAD", "PCBP2", "SPRL1", "PROZ", "VAPB", "AN32B"},
	"core": {
		"AHSG", "APOC1", "APOC2", "CD109", "COL2A1", "COL18A1", "CFHR1",
		"FTL", "SERPINE2", "IGHG1", "IGFBP3", "TIMP3", "PRDX2", "SERPINF1",
	},
	"soluble": {"APOC2", "BCAM", "SULF1", "KNG1", "LTBP2", "SERPINA5", "NOV"},
}

type inferenceRequest struct {
	Model    string    `json:"model"`
	Features []float64 `json:"features"`
}

type inferenceResponse struct {
	Probability float64 `json:"probability"`
}

// statusError is a non-2xx inference reply.
type statusError struct {
	Status int
	Body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("inference endpoint returned %d: %s", e.Status, e.Body)
}

// RemoteScorer calls an HTTP inference endpoint for calcification
// probability. Calls go through a circuit breaker; an open breaker reports
// SCORER_UNAVAILABLE without touching the network.
type RemoteScorer struct {
	endpoint string
	http     *http.Client
	breaker  *gobreaker.CircuitBreaker
	logger   *zap.Logger
}

// NewRemoteScorer creates a new remote calcification scorer
func NewRemoteScorer(endpoint string, timeout time.Duration, logger *zap.Logger) *RemoteScorer {
	s := &RemoteScorer{
		endpoint: endpoint,
		http:     &http.Client{Timeout: timeout},
		logger:   logger,
	}
	s.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "calcification-scorer",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
		IsSuccessful: func(err error) bool {
			var se *statusError
			if errors.As(err, &se) {
				return se.Status < 500
			}
			return err == nil
		},
	})
	return s
}

// Name implements ports.Scorer.
func (s *RemoteScorer) Name() string { return "calcification" }

// Score implements ports.Scorer. extract selects the model.
func (s *RemoteScorer) Score(ctx context.Context, features []float64, extract string) (float64, error) {
	model := strings.ToLower(strings.TrimSpace(extract))
	names, ok := CalcificationFeatures[model]
	if !ok {
		return 0, pkgerrors.NewValidationError(fmt.Sprintf("no calcification model for proteome extract %q", extract))
	}
	if len(features) != len(names) {
		return 0, pkgerrors.NewFeatureVectorMismatchError(len(names), len(features), "")
	}
	if s.endpoint == "" {
		return 0, pkgerrors.NewScorerUnavailableError(s.Name(), errors.New("no inference endpoint configured"))
	}

	out, err := s.breaker.Execute(func() (interface{}, error) {
		return s.post(ctx, inferenceRequest{Model: model, Features: features})
	})
	if err != nil {
		var se *statusError
		if errors.As(err, &se) && se.Status == http.StatusUnprocessableEntity {
			return 0, pkgerrors.NewFeatureVectorMismatchError(len(names), len(features), se.Body)
		}
		s.logger.Warn("Calcification scorer call failed", zap.String("model", model), zap.Error(err))
		return 0, pkgerrors.NewScorerUnavailableError(s.Name(), err)
	}
	return out.(float64), nil
}

func (s *RemoteScorer) post(ctx context.Context, body inferenceRequest) (float64, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return 0, fmt.Errorf("encode inference request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(payload))
	if err != nil {
		return 0, fmt.Errorf("build inference request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return 0, fmt.Errorf("read inference response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, &statusError{Status: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}

	var out inferenceResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return 0, fmt.Errorf("decode inference response: %w", err)
	}
	if out.Probability < 0 || out.Probability > 1 {
		return 0, fmt.Errorf("inference endpoint returned probability %v outside [0,1]", out.Probability)
	}
	return out.Probability, nil
}

var _ ports.Scorer = (*RemoteScorer)(nil)
