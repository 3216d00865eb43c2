package di

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/NikolaosSamperis/PlaqueMS-project/application/ports"
	"github.com/NikolaosSamperis/PlaqueMS-project/infrastructure/config"
	"github.com/NikolaosSamperis/PlaqueMS-project/infrastructure/locking"
	"github.com/NikolaosSamperis/PlaqueMS-project/infrastructure/messaging"
	"github.com/NikolaosSamperis/PlaqueMS-project/infrastructure/persistence/cache"
	"github.com/NikolaosSamperis/PlaqueMS-project/infrastructure/persistence/memory"
	"github.com/NikolaosSamperis/PlaqueMS-project/infrastructure/persistence/sqlite"
)

func testConfig() *config.Config {
	return &config.Config{
		Environment: "test",
		LogLevel:    "info",
		Artifacts:   config.ArtifactConfig{Backend: "memory", CacheTTL: time.Minute},
		Session: config.SessionConfig{
			Mode:          config.SessionModeSingle,
			LockBackend:   "local",
			LeaseDuration: time.Minute,
		},
		Events:     config.EventConfig{Backend: "none"},
		Clustering: ports.DefaultClusteringParams(),
	}
}

func TestProvideLogger(t *testing.T) {
	cfg := testConfig()

	logger, err := ProvideLogger(cfg)
	require.NoError(t, err)
	assert.NotNil(t, logger)

	cfg.LogLevel = "chatty"
	_, err = ProvideLogger(cfg)
	assert.Error(t, err)
}

func TestProvideSessionGate(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	tests := []struct {
		name   string
		mode   string
		lock   string
		client redis.UniversalClient
		want   interface{}
	}{
		{name: "multi mode never blocks", mode: config.SessionModeMulti, lock: "redis", client: client, want: locking.NoopGate{}},
		{name: "single mode local", mode: config.SessionModeSingle, lock: "local", want: &locking.LocalGate{}},
		{name: "single mode redis", mode: config.SessionModeSingle, lock: "redis", client: client, want: &locking.RedisGate{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			cfg.Session.Mode = tt.mode
			cfg.Session.LockBackend = tt.lock

			gate := ProvideSessionGate(cfg, tt.client, zap.NewNop())

			assert.IsType(t, tt.want, gate)
		})
	}
}

func TestProvideArtifactStore(t *testing.T) {
	t.Run("memory", func(t *testing.T) {
		store, cleanup, err := ProvideArtifactStore(testConfig(), aws.Config{}, nil, zap.NewNop())
		require.NoError(t, err)
		defer cleanup()

		assert.IsType(t, &memory.ArtifactStore{}, store)
	})

	t.Run("sqlite", func(t *testing.T) {
		cfg := testConfig()
		cfg.Artifacts.Backend = "sqlite"
		cfg.Artifacts.SQLitePath = filepath.Join(t.TempDir(), "artifacts.db")

		store, cleanup, err := ProvideArtifactStore(cfg, aws.Config{}, nil, zap.NewNop())
		require.NoError(t, err)
		defer cleanup()

		assert.IsType(t, &sqlite.ArtifactStore{}, store)
		require.NoError(t, store.Put(context.Background(), "k", []byte("v")))
	})

	t.Run("redis cache in front", func(t *testing.T) {
		mr := miniredis.RunT(t)
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { client.Close() })
		cfg := testConfig()
		cfg.Artifacts.Cache = true

		store, cleanup, err := ProvideArtifactStore(cfg, aws.Config{}, client, zap.NewNop())
		require.NoError(t, err)
		defer cleanup()

		assert.IsType(t, &cache.RedisArtifactStore{}, store)
	})

	t.Run("unknown backend", func(t *testing.T) {
		cfg := testConfig()
		cfg.Artifacts.Backend = "s3"

		_, _, err := ProvideArtifactStore(cfg, aws.Config{}, nil, zap.NewNop())

		assert.Error(t, err)
	})
}

func TestProvideRedisClient_OnlyWhenUsed(t *testing.T) {
	client, cleanup := ProvideRedisClient(testConfig(), zap.NewNop())
	defer cleanup()

	assert.Nil(t, client)
}

func TestProvideEventPublisher_DefaultsToLog(t *testing.T) {
	publisher, cleanup, err := ProvideEventPublisher(testConfig(), aws.Config{}, zap.NewNop())
	require.NoError(t, err)
	defer cleanup()

	assert.IsType(t, &messaging.LogPublisher{}, publisher)
}

func TestProvideParamsWatcher(t *testing.T) {
	cfg := testConfig()
	store := ProvideParamsStore(cfg)

	w, cleanup, err := ProvideParamsWatcher(cfg, store, ProvideCollector(), zap.NewNop())
	require.NoError(t, err)
	cleanup()
	assert.Nil(t, w)

	cfg.ConfigFile = filepath.Join(t.TempDir(), "clustering.yaml")
	w, cleanup, err = ProvideParamsWatcher(cfg, store, ProvideCollector(), zap.NewNop())
	require.NoError(t, err)
	require.NotNil(t, w)
	cleanup()
}

func TestProvideScoringService_RegistersScorers(t *testing.T) {
	svc := ProvideScoringService(testConfig(), zap.NewNop())

	result, err := svc.Score(context.Background(), "syntax",
		[]float64{28.3118, 29.2769, 25.5675, 26.5596, 33.9064}, "label_free")

	require.NoError(t, err)
	assert.InDelta(t, 11.9375, result.Value, 1e-9)
}
