package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/NikolaosSamperis/PlaqueMS-project/infrastructure/persistence/memory"
	pkgerrors "github.com/NikolaosSamperis/PlaqueMS-project/pkg/errors"
)

func newCache(t *testing.T) (*RedisArtifactStore, *memory.ArtifactStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	backing := memory.NewArtifactStore()
	return NewRedisArtifactStore(backing, client, time.Hour, zap.NewNop()), backing, mr
}

type failingStore struct{}

func (failingStore) Put(context.Context, string, []byte) error {
	return pkgerrors.NewArtifactPersistenceError("write", errors.New("disk full"))
}

func (failingStore) Get(context.Context, string) ([]byte, error) {
	return nil, pkgerrors.NewNotFoundError("artifact")
}

func TestRedisArtifactStore_WriteThrough(t *testing.T) {
	store, backing, mr := newCache(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "k", []byte("v1")))

	cached, err := mr.Get(keyPrefix + "k")
	require.NoError(t, err)
	assert.Equal(t, "v1", cached)
	stored, err := backing.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), stored)
	assert.Equal(t, time.Hour, mr.TTL(keyPrefix+"k"))
}

func TestRedisArtifactStore_ReadThrough(t *testing.T) {
	store, backing, mr := newCache(t)
	ctx := context.Background()
	require.NoError(t, backing.Put(ctx, "k", []byte("from-backing")))

	got, err := store.Get(ctx, "k")

	require.NoError(t, err)
	assert.Equal(t, []byte("from-backing"), got)
	assert.True(t, mr.Exists(keyPrefix+"k"))
}

func TestRedisArtifactStore_HitSkipsBacking(t *testing.T) {
	store, _, mr := newCache(t)
	require.NoError(t, mr.Set(keyPrefix+"k", "cached"))

	got, err := store.Get(context.Background(), "k")

	require.NoError(t, err)
	assert.Equal(t, []byte("cached"), got)
}

func TestRedisArtifactStore_MissingEverywhere(t *testing.T) {
	store, _, _ := newCache(t)

	_, err := store.Get(context.Background(), "absent")

	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestRedisArtifactStore_RedisDownFallsBack(t *testing.T) {
	store, backing, mr := newCache(t)
	ctx := context.Background()
	require.NoError(t, backing.Put(ctx, "k", []byte("v")))
	mr.Close()

	got, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)

	assert.NoError(t, store.Put(ctx, "k", []byte("v2")))
}

func TestRedisArtifactStore_FailedPutEvicts(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	require.NoError(t, mr.Set(keyPrefix+"k", "stale"))
	store := NewRedisArtifactStore(failingStore{}, client, 0, zap.NewNop())

	err := store.Put(context.Background(), "k", []byte("new"))

	assert.True(t, pkgerrors.IsType(err, pkgerrors.ErrorTypeArtifactPersistence))
	assert.False(t, mr.Exists(keyPrefix+"k"))
}
