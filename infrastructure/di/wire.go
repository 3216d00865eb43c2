//go:build wireinject
// +build wireinject

package di

import (
	"context"

	"github.com/google/wire"

	"github.com/NikolaosSamperis/PlaqueMS-project/infrastructure/config"
)

// SuperSet is the main provider set containing all providers
var SuperSet = wire.NewSet(
	ProvideLogger,
	ProvideCollector,
	ProvideAWSConfig,
	ProvidePostgresPool,
	ProvideProteinSource,
	ProvideNeo4jDriver,
	ProvideInteractionSource,
	ProvideGraphDataFetcher,
	ProvideGraphAssembler,
	ProvideCytoscapeClient,
	ProvideClusteringService,
	ProvideArtifactCodec,
	ProvideRedisClient,
	ProvideArtifactStore,
	ProvideResultReconciler,
	ProvideParamsStore,
	ProvideParamsSource,
	ProvideParamsWatcher,
	ProvideSessionGate,
	ProvideEventPublisher,
	ProvideOrchestrator,
	ProvideScoringService,
	ProvideErrorHandler,
	ProvideReadinessChecks,
	wire.Struct(new(Container), "*"),
)

// InitializeContainer creates a fully wired container. The returned cleanup
// closes every connection the container opened.
func InitializeContainer(ctx context.Context, cfg *config.Config) (*Container, func(), error) {
	wire.Build(SuperSet)
	return nil, nil, nil
}
