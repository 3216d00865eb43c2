package di

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awseventbridge "github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/jackc/pgx/v4/pgxpool"
	neo4jdriver "github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/NikolaosSamperis/PlaqueMS-project/application/orchestration"
	"github.com/NikolaosSamperis/PlaqueMS-project/application/ports"
	"github.com/NikolaosSamperis/PlaqueMS-project/application/services"
	domainservices "github.com/NikolaosSamperis/PlaqueMS-project/domain/services"
	"github.com/NikolaosSamperis/PlaqueMS-project/infrastructure/config"
	"github.com/NikolaosSamperis/PlaqueMS-project/infrastructure/cytoscape"
	"github.com/NikolaosSamperis/PlaqueMS-project/infrastructure/locking"
	"github.com/NikolaosSamperis/PlaqueMS-project/infrastructure/messaging"
	"github.com/NikolaosSamperis/PlaqueMS-project/infrastructure/messaging/eventbridge"
	natspub "github.com/NikolaosSamperis/PlaqueMS-project/infrastructure/messaging/nats"
	"github.com/NikolaosSamperis/PlaqueMS-project/infrastructure/observability"
	"github.com/NikolaosSamperis/PlaqueMS-project/infrastructure/persistence/artifact"
	"github.com/NikolaosSamperis/PlaqueMS-project/infrastructure/persistence/cache"
	"github.com/NikolaosSamperis/PlaqueMS-project/infrastructure/persistence/dynamodb"
	"github.com/NikolaosSamperis/PlaqueMS-project/infrastructure/persistence/memory"
	"github.com/NikolaosSamperis/PlaqueMS-project/infrastructure/persistence/neo4j"
	"github.com/NikolaosSamperis/PlaqueMS-project/infrastructure/persistence/postgres"
	"github.com/NikolaosSamperis/PlaqueMS-project/infrastructure/persistence/sqlite"
	"github.com/NikolaosSamperis/PlaqueMS-project/infrastructure/scoring"
	"github.com/NikolaosSamperis/PlaqueMS-project/interfaces/http/rest"
	pkgerrors "github.com/NikolaosSamperis/PlaqueMS-project/pkg/errors"
)

// MetricsNamespace prefixes every exported metric.
const MetricsNamespace = "plaquems"

// ProvideLogger creates a new logger instance
func ProvideLogger(cfg *config.Config) (*zap.Logger, error) {
	var zcfg zap.Config
	if cfg.IsProduction() {
		zcfg = zap.NewProductionConfig()
	} else {
		zcfg = zap.NewDevelopmentConfig()
	}

	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL %q: %w", cfg.LogLevel, err)
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)

	logger, err := zcfg.Build()
	if err != nil {
		return nil, err
	}
	return logger.With(zap.String("environment", cfg.Environment)), nil
}

// ProvideCollector creates the Prometheus collector
func ProvideCollector() *observability.Collector {
	return observability.NewCollector(MetricsNamespace)
}

// ProvideAWSConfig creates AWS configuration
func ProvideAWSConfig(ctx context.Context, cfg *config.Config) (aws.Config, error) {
	return awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.AWSRegion),
	)
}

// ProvidePostgresPool opens the relational store pool
func ProvidePostgresPool(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*pgxpool.Pool, func(), error) {
	pool, err := postgres.Connect(ctx, postgres.Config{
		DSN:            cfg.Postgres.DSN,
		MaxConns:       cfg.Postgres.MaxConns,
		ConnectTimeout: cfg.Cytoscape.RequestTimeout,
	})
	if err != nil {
		return nil, nil, err
	}
	logger.Info("Connected to relational store", zap.Int32("max_conns", cfg.Postgres.MaxConns))
	return pool, pool.Close, nil
}

// ProvideProteinSource creates the relational ProteinSource
func ProvideProteinSource(pool *pgxpool.Pool, logger *zap.Logger) ports.ProteinSource {
	return postgres.NewProteinSource(pool, logger)
}

// ProvideNeo4jDriver opens the graph store driver
func ProvideNeo4jDriver(ctx context.Context, cfg *config.Config, logger *zap.Logger) (neo4jdriver.DriverWithContext, func(), error) {
	driver, err := neo4j.NewDriver(ctx, neo4j.Config{
		URI:      cfg.Neo4j.URI,
		Username: cfg.Neo4j.Username,
		Password: cfg.Neo4j.Password,
		Database: cfg.Neo4j.Database,
	})
	if err != nil {
		return nil, nil, err
	}
	logger.Info("Connected to graph store", zap.String("uri", cfg.Neo4j.URI))
	cleanup := func() {
		if err := driver.Close(context.Background()); err != nil {
			logger.Warn("Failed to close graph store driver", zap.Error(err))
		}
	}
	return driver, cleanup, nil
}

// ProvideInteractionSource creates the graph InteractionSource
func ProvideInteractionSource(driver neo4jdriver.DriverWithContext, cfg *config.Config, logger *zap.Logger) ports.InteractionSource {
	return neo4j.NewInteractionSource(neo4j.NewDriverRunner(driver, cfg.Neo4j.Database), logger)
}

// ProvideGraphDataFetcher creates the parallel fetcher
func ProvideGraphDataFetcher(
	proteins ports.ProteinSource,
	interactions ports.InteractionSource,
	collector *observability.Collector,
	logger *zap.Logger,
) *services.GraphDataFetcher {
	return services.NewGraphDataFetcher(proteins, interactions, collector, logger)
}

// ProvideGraphAssembler creates the graph assembler
func ProvideGraphAssembler(cfg *config.Config) *domainservices.GraphAssembler {
	return domainservices.NewGraphAssembler(cfg.SignificanceThreshold)
}

// ProvideCytoscapeClient creates the CyREST client
func ProvideCytoscapeClient(cfg *config.Config, collector *observability.Collector, logger *zap.Logger) (*cytoscape.Client, error) {
	ccfg := cytoscape.DefaultConfig()
	ccfg.BaseURL = cfg.Cytoscape.BaseURL
	ccfg.RequestTimeout = cfg.Cytoscape.RequestTimeout
	ccfg.PollInterval = cfg.Cytoscape.PollInterval
	ccfg.JobDeadline = cfg.Cytoscape.JobDeadline
	ccfg.MaxPollFailures = cfg.Cytoscape.MaxPollFailures
	return cytoscape.NewClient(ccfg, logger, collector)
}

// ProvideClusteringService exposes the client as a ports.ClusteringService
func ProvideClusteringService(client *cytoscape.Client) ports.ClusteringService {
	return client
}

// ProvideArtifactCodec creates the versioned artifact codec
func ProvideArtifactCodec() ports.ArtifactCodec {
	return artifact.NewCodec()
}

// ProvideRedisClient creates the Redis client shared by the artifact cache
// and the session gate. It returns nil when neither uses Redis.
func ProvideRedisClient(cfg *config.Config, logger *zap.Logger) (redis.UniversalClient, func()) {
	if !cfg.UsesRedis() {
		return nil, func() {}
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	cleanup := func() {
		if err := client.Close(); err != nil {
			logger.Warn("Failed to close redis client", zap.Error(err))
		}
	}
	return client, cleanup
}

// ProvideArtifactStore selects the artifact backend and, when enabled, puts
// the Redis cache in front of it.
func ProvideArtifactStore(
	cfg *config.Config,
	awsCfg aws.Config,
	redisClient redis.UniversalClient,
	logger *zap.Logger,
) (ports.ArtifactStore, func(), error) {
	var (
		store   ports.ArtifactStore
		cleanup = func() {}
	)

	switch cfg.Artifacts.Backend {
	case "sqlite":
		s, err := sqlite.Open(cfg.Artifacts.SQLitePath, logger)
		if err != nil {
			return nil, nil, err
		}
		store = s
		cleanup = func() {
			if err := s.Close(); err != nil {
				logger.Warn("Failed to close artifact database", zap.Error(err))
			}
		}
	case "dynamodb":
		store = dynamodb.NewArtifactStore(awsdynamodb.NewFromConfig(awsCfg), cfg.Artifacts.DynamoDBTable, logger)
	case "memory":
		store = memory.NewArtifactStore()
	default:
		return nil, nil, pkgerrors.NewValidationError(fmt.Sprintf("unknown artifact backend %q", cfg.Artifacts.Backend))
	}

	if cfg.Artifacts.Cache && redisClient != nil {
		store = cache.NewRedisArtifactStore(store, redisClient, cfg.Artifacts.CacheTTL, logger)
	}

	logger.Info("Artifact store ready",
		zap.String("backend", cfg.Artifacts.Backend),
		zap.Bool("cache", cfg.Artifacts.Cache),
	)
	return store, cleanup, nil
}

// ProvideResultReconciler creates the reconciler
func ProvideResultReconciler(store ports.ArtifactStore, codec ports.ArtifactCodec, logger *zap.Logger) *services.ResultReconciler {
	return services.NewResultReconciler(store, codec, logger)
}

// ProvideParamsStore seeds the hot-reloadable clustering parameters
func ProvideParamsStore(cfg *config.Config) *config.ParamsStore {
	return config.NewParamsStore(cfg.Clustering)
}

// ProvideParamsSource exposes the store as a ports.ClusteringParamsSource
func ProvideParamsSource(store *config.ParamsStore) ports.ClusteringParamsSource {
	return store
}

// ProvideParamsWatcher starts watching CONFIG_FILE for parameter changes. It
// returns nil when no file is configured.
func ProvideParamsWatcher(cfg *config.Config, store *config.ParamsStore, collector *observability.Collector, logger *zap.Logger) (*config.Watcher, func(), error) {
	if cfg.ConfigFile == "" {
		return nil, func() {}, nil
	}
	w, err := config.NewWatcher(cfg.ConfigFile, store, config.DefaultDebounce, logger)
	if err != nil {
		return nil, nil, err
	}
	w.OnChange(func(ports.ClusteringParams) {
		collector.ObserveParamsReload()
	})
	w.Start()
	return w, w.Stop, nil
}

// ProvideSessionGate selects the gate for the configured session mode
func ProvideSessionGate(cfg *config.Config, redisClient redis.UniversalClient, logger *zap.Logger) ports.SessionGate {
	if cfg.Session.Mode == config.SessionModeMulti {
		return locking.NoopGate{}
	}
	if cfg.Session.LockBackend == "redis" && redisClient != nil {
		return locking.NewRedisGate(redisClient, locking.RedisGateConfig{
			Lease: cfg.Session.LeaseDuration,
		}, logger)
	}
	return locking.NewLocalGate()
}

// ProvideEventPublisher selects the outcome event bus
func ProvideEventPublisher(cfg *config.Config, awsCfg aws.Config, logger *zap.Logger) (ports.EventPublisher, func(), error) {
	switch cfg.Events.Backend {
	case "eventbridge":
		client := awseventbridge.NewFromConfig(awsCfg)
		return eventbridge.NewPublisher(client, cfg.Events.EventBusName, logger), func() {}, nil
	case "nats":
		conn, err := natspub.Connect(cfg.Events.NATSURL, logger)
		if err != nil {
			return nil, nil, err
		}
		cleanup := func() {
			if err := conn.Drain(); err != nil {
				logger.Warn("Failed to drain NATS connection", zap.Error(err))
			}
		}
		return natspub.NewPublisher(conn, logger), cleanup, nil
	default:
		return messaging.NewLogPublisher(logger), func() {}, nil
	}
}

// ProvideOrchestrator creates the cycle orchestrator
func ProvideOrchestrator(
	fetcher *services.GraphDataFetcher,
	assembler *domainservices.GraphAssembler,
	clustering ports.ClusteringService,
	reconciler *services.ResultReconciler,
	params ports.ClusteringParamsSource,
	gate ports.SessionGate,
	publisher ports.EventPublisher,
	collector *observability.Collector,
	logger *zap.Logger,
) *orchestration.Orchestrator {
	return orchestration.NewOrchestrator(
		fetcher,
		assembler,
		clustering,
		reconciler,
		params,
		gate,
		publisher,
		collector,
		logger,
	)
}

// ProvideScoringService registers the SYNTAX and calcification scorers
func ProvideScoringService(cfg *config.Config, logger *zap.Logger) *services.ScoringService {
	return services.NewScoringService(logger,
		scoring.NewSyntaxScorer(),
		scoring.NewRemoteScorer(cfg.Scoring.CalcificationURL, cfg.Scoring.Timeout, logger),
	)
}

// ProvideErrorHandler creates the HTTP error renderer
func ProvideErrorHandler(cfg *config.Config, logger *zap.Logger) *pkgerrors.ErrorHandler {
	return pkgerrors.NewErrorHandler(logger, cfg.IsDevelopment())
}

type pinger interface {
	Ping(ctx context.Context) error
}

// ProvideReadinessChecks lists the dependencies /ready probes.
func ProvideReadinessChecks(
	pool *pgxpool.Pool,
	driver neo4jdriver.DriverWithContext,
	client *cytoscape.Client,
	store ports.ArtifactStore,
) rest.ReadinessChecks {
	checks := rest.ReadinessChecks{
		{Name: "relational", Probe: pool.Ping},
		{Name: "graph", Probe: driver.VerifyConnectivity},
		{Name: "cytoscape", Probe: client.Ping},
	}
	if p, ok := store.(pinger); ok {
		checks = append(checks, rest.ReadinessCheck{Name: "artifacts", Probe: p.Ping})
	}
	return checks
}
