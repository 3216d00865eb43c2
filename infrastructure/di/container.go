// Package di wires the service's dependencies with google/wire.
package di

import (
	"go.uber.org/zap"

	"github.com/NikolaosSamperis/PlaqueMS-project/application/orchestration"
	"github.com/NikolaosSamperis/PlaqueMS-project/application/services"
	"github.com/NikolaosSamperis/PlaqueMS-project/infrastructure/config"
	"github.com/NikolaosSamperis/PlaqueMS-project/infrastructure/observability"
	"github.com/NikolaosSamperis/PlaqueMS-project/interfaces/http/rest"
	pkgerrors "github.com/NikolaosSamperis/PlaqueMS-project/pkg/errors"
)

// Container holds all application dependencies
type Container struct {
	Config       *config.Config
	Logger       *zap.Logger
	Orchestrator *orchestration.Orchestrator
	Reconciler   *services.ResultReconciler
	Scoring      *services.ScoringService
	Collector    *observability.Collector
	ErrorHandler *pkgerrors.ErrorHandler
	Readiness    rest.ReadinessChecks
	// Watcher is nil when no CONFIG_FILE is set.
	Watcher *config.Watcher
}

// Router builds the HTTP router over the container's services.
func (c *Container) Router() *rest.Router {
	return rest.NewRouter(rest.Dependencies{
		Orchestrator: c.Orchestrator,
		Reconciler:   c.Reconciler,
		Scoring:      c.Scoring,
		Collector:    c.Collector,
		ErrorHandler: c.ErrorHandler,
		Readiness:    c.Readiness,
		CORS: rest.CORSConfig{
			Enabled:        c.Config.EnableCORS,
			AllowedOrigins: c.Config.AllowedOrigins,
		},
	}, c.Logger)
}
