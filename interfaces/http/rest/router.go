// Package rest exposes the clustering service over HTTP.
package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/NikolaosSamperis/PlaqueMS-project/interfaces/http/rest/handlers"
	"github.com/NikolaosSamperis/PlaqueMS-project/interfaces/http/rest/middleware"
	pkgerrors "github.com/NikolaosSamperis/PlaqueMS-project/pkg/errors"
)

const readinessTimeout = 5 * time.Second

// ReadinessCheck probes one dependency.
type ReadinessCheck struct {
	Name  string
	Probe func(ctx context.Context) error
}

// ReadinessChecks is the set of dependencies probed by /ready.
type ReadinessChecks []ReadinessCheck

// CORSConfig controls cross-origin access.
type CORSConfig struct {
	Enabled        bool
	AllowedOrigins []string
}

// MetricsCollector records HTTP requests and serves the metrics page.
type MetricsCollector interface {
	middleware.RequestRecorder
	Handler() http.Handler
}

// Dependencies are the services the router exposes.
type Dependencies struct {
	Orchestrator handlers.CycleRunner
	Reconciler   handlers.ArtifactLoader
	Scoring      handlers.ScoreRunner
	Collector    MetricsCollector
	ErrorHandler *pkgerrors.ErrorHandler
	Readiness    ReadinessChecks
	CORS         CORSConfig
}

// Router creates and configures the HTTP router
type Router struct {
	deps   Dependencies
	logger *zap.Logger
}

// NewRouter creates a new router instance
func NewRouter(deps Dependencies, logger *zap.Logger) *Router {
	return &Router{
		deps:   deps,
		logger: logger,
	}
}

// Setup configures all routes and middleware
func (rt *Router) Setup() http.Handler {
	router := chi.NewRouter()

	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(rt.deps.ErrorHandler.Middleware)
	router.Use(middleware.Logger(rt.logger))
	if rt.deps.Collector != nil {
		router.Use(middleware.Metrics(rt.deps.Collector))
	}

	if rt.deps.CORS.Enabled {
		router.Use(cors.Handler(cors.Options{
			AllowedOrigins: rt.deps.CORS.AllowedOrigins,
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
			ExposedHeaders: []string{"X-Request-ID"},
			MaxAge:         300,
		}))
	}

	router.Get("/health", rt.healthCheck)
	router.Get("/ready", rt.readinessCheck)
	if rt.deps.Collector != nil {
		router.Method(http.MethodGet, "/metrics", rt.deps.Collector.Handler())
	}

	router.Route("/api/v1", func(r chi.Router) {
		clustering := handlers.NewClusteringHandler(rt.deps.Orchestrator, rt.deps.Reconciler, rt.deps.ErrorHandler, rt.logger)
		r.Route("/clusterings", func(r chi.Router) {
			r.Post("/", clustering.RunClustering)
			r.Get("/", clustering.GetClustering)
		})

		scoring := handlers.NewScoringHandler(rt.deps.Scoring, rt.deps.ErrorHandler, rt.logger)
		r.Route("/scores", func(r chi.Router) {
			r.Post("/syntax", scoring.ScoreSyntax)
			r.Post("/calcification", scoring.ScoreCalcification)
		})
	})

	return router
}

// healthCheck handles health check requests
func (rt *Router) healthCheck(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy"}`))
}

type readinessResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// readinessCheck probes every dependency concurrently and reports 503 if
// any of them fails.
func (rt *Router) readinessCheck(w http.ResponseWriter, req *http.Request) {
	ctx, cancel := context.WithTimeout(req.Context(), readinessTimeout)
	defer cancel()

	results := make([]error, len(rt.deps.Readiness))
	var g errgroup.Group
	for i, check := range rt.deps.Readiness {
		i, check := i, check
		g.Go(func() error {
			results[i] = check.Probe(ctx)
			return nil
		})
	}
	g.Wait()

	resp := readinessResponse{Status: "ready", Checks: make(map[string]string, len(results))}
	status := http.StatusOK
	for i, err := range results {
		name := rt.deps.Readiness[i].Name
		if err != nil {
			resp.Checks[name] = err.Error()
			resp.Status = "not_ready"
			status = http.StatusServiceUnavailable
			rt.logger.Warn("Readiness check failed", zap.String("check", name), zap.Error(err))
			continue
		}
		resp.Checks[name] = "ok"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		rt.logger.Error("Failed to encode readiness response", zap.Error(err))
	}
}
