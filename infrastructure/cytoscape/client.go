// Package cytoscape drives clustering sessions on a Cytoscape Desktop
// instance through its CyREST API.
package cytoscape

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/NikolaosSamperis/PlaqueMS-project/application/ports"
	pkgerrors "github.com/NikolaosSamperis/PlaqueMS-project/pkg/errors"
)

const maxResponseBytes = 32 << 20

// Config holds connection and timing settings for the CyREST client.
type Config struct {
	BaseURL string
	// RequestTimeout bounds every HTTP call; it must be shorter than JobDeadline.
	RequestTimeout time.Duration
	PollInterval   time.Duration
	JobDeadline    time.Duration
	// MaxPollFailures is the number of consecutive failed status calls
	// tolerated before the service is declared unreachable.
	MaxPollFailures int
	Breaker         BreakerConfig
}

// BreakerConfig configures the circuit breaker around CyREST calls.
type BreakerConfig struct {
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold float64
	MinRequests      uint32
}

// DefaultConfig returns settings for a Cytoscape Desktop on localhost.
func DefaultConfig() Config {
	return Config{
		BaseURL:         "http://localhost:1234",
		RequestTimeout:  30 * time.Second,
		PollInterval:    2 * time.Second,
		JobDeadline:     5 * time.Minute,
		MaxPollFailures: 3,
		Breaker: BreakerConfig{
			MaxRequests:      1,
			Interval:         30 * time.Second,
			Timeout:          30 * time.Second,
			FailureThreshold: 0.6,
			MinRequests:      5,
		},
	}
}

// Observer records remote call outcomes.
type Observer interface {
	ObserveRemoteCall(step string, status int, duration time.Duration)
	ObservePoll()
}

// Client is a CyREST client. It is safe for concurrent use; each cycle gets
// its own Session.
type Client struct {
	cfg      Config
	baseURL  *url.URL
	http     *http.Client
	breaker  *gobreaker.CircuitBreaker
	observer Observer
	logger   *zap.Logger
}

// NewClient validates cfg and creates a client. observer may be nil.
func NewClient(cfg Config, logger *zap.Logger, observer Observer) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, pkgerrors.NewValidationError(fmt.Sprintf("invalid clustering service URL %q", cfg.BaseURL))
	}
	if cfg.RequestTimeout <= 0 || cfg.JobDeadline <= cfg.RequestTimeout {
		return nil, pkgerrors.NewValidationError("request timeout must be positive and shorter than the job deadline")
	}
	if cfg.PollInterval <= 0 {
		return nil, pkgerrors.NewValidationError("poll interval must be positive")
	}
	if cfg.MaxPollFailures <= 0 {
		cfg.MaxPollFailures = 1
	}

	c := &Client{
		cfg:      cfg,
		baseURL:  base,
		http:     &http.Client{Timeout: cfg.RequestTimeout},
		observer: observer,
		logger:   logger,
	}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "cytoscape",
		MaxRequests: cfg.Breaker.MaxRequests,
		Interval:    cfg.Breaker.Interval,
		Timeout:     cfg.Breaker.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.Breaker.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= cfg.Breaker.FailureThreshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
		// Client errors (404 plugin missing, 400 bad parameters) mean the
		// service answered; only transport failures and 5xx count against it.
		IsSuccessful: func(err error) bool {
			var re *remoteError
			if errors.As(err, &re) {
				return re.Status < 500
			}
			return err == nil || errors.Is(err, context.Canceled)
		},
	})
	return c, nil
}

// NewSession implements ports.ClusteringService.
func (c *Client) NewSession(networkTitle string) ports.ClusteringSession {
	return newSession(c, networkTitle)
}

// Ping checks that CyREST answers.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.call(ctx, "ping", http.MethodGet, "/v1", nil, nil, nil); err != nil {
		return c.unreachable(err)
	}
	return nil
}

// Endpoint returns the base URL for diagnostics.
func (c *Client) Endpoint() string { return c.baseURL.String() }

// remoteError is a non-2xx CyREST reply.
type remoteError struct {
	Step   string
	Status int
	Body   string
}

func (e *remoteError) Error() string {
	return fmt.Sprintf("cyrest %s: status %d: %s", e.Step, e.Status, e.Body)
}

func statusOf(err error) int {
	var re *remoteError
	if errors.As(err, &re) {
		return re.Status
	}
	return 0
}

// requestError is a request that could not be built locally. It never
// reaches the service and does not count against the circuit breaker.
type requestError struct {
	Step string
	Err  error
}

func (e *requestError) Error() string {
	return fmt.Sprintf("build %s request: %v", e.Step, e.Err)
}

func (e *requestError) Unwrap() error { return e.Err }

// call performs one HTTP exchange through the circuit breaker and decodes a
// JSON reply into out when out is non-nil.
func (c *Client) call(ctx context.Context, step, method, path string, query url.Values, body, out interface{}) error {
	req, err := c.newRequest(ctx, method, path, query, body)
	if err != nil {
		return &requestError{Step: step, Err: err}
	}
	_, err = c.breaker.Execute(func() (interface{}, error) {
		return nil, c.roundTrip(step, req, out)
	})
	return err
}

func (c *Client) newRequest(ctx context.Context, method, path string, query url.Values, body interface{}) (*http.Request, error) {
	u := *c.baseURL
	u.Path = u.Path + path
	if query != nil {
		u.RawQuery = query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

func (c *Client) roundTrip(step string, req *http.Request, out interface{}) error {
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.observe(step, 0, start)
		return err
	}
	defer resp.Body.Close()
	c.observe(step, resp.StatusCode, start)

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("read %s response: %w", step, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &remoteError{Step: step, Status: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s response: %w", step, err)
	}
	return nil
}

func (c *Client) observe(step string, status int, start time.Time) {
	if c.observer != nil {
		c.observer.ObserveRemoteCall(step, status, time.Since(start))
	}
}

// unreachable maps a failed call to ExternalServiceUnreachable. A non-2xx
// reply keeps its status in the details; its body is in the cause.
func (c *Client) unreachable(err error) error {
	appErr := pkgerrors.NewExternalServiceUnreachableError(c.baseURL.String(), err)
	var re *remoteError
	if errors.As(err, &re) {
		appErr = appErr.WithDetail("status", re.Status)
	}
	return appErr
}
