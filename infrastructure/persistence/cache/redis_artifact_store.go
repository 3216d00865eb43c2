// Package cache fronts an ArtifactStore with Redis.
package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/NikolaosSamperis/PlaqueMS-project/application/ports"
)

const keyPrefix = "plaquems:artifact:"

// RedisArtifactStore is a write-through, read-through cache over another
// ArtifactStore. The backing store is authoritative: cache failures are
// logged and never surface to callers.
type RedisArtifactStore struct {
	next   ports.ArtifactStore
	client redis.UniversalClient
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisArtifactStore wraps next. A zero ttl keeps entries until evicted.
func NewRedisArtifactStore(next ports.ArtifactStore, client redis.UniversalClient, ttl time.Duration, logger *zap.Logger) *RedisArtifactStore {
	return &RedisArtifactStore{next: next, client: client, ttl: ttl, logger: logger}
}

func cacheKey(key string) string {
	return keyPrefix + key
}

// Put writes to the backing store first, then refreshes the cache entry.
func (s *RedisArtifactStore) Put(ctx context.Context, key string, payload []byte) error {
	if err := s.next.Put(ctx, key, payload); err != nil {
		// A stale entry must not outlive a failed overwrite.
		s.evict(ctx, key)
		return err
	}
	if err := s.client.Set(ctx, cacheKey(key), payload, s.ttl).Err(); err != nil {
		s.logger.Warn("Failed to cache artifact", zap.String("selection_key", key), zap.Error(err))
		s.evict(ctx, key)
	}
	return nil
}

// Get serves from Redis when possible and fills the cache on a miss.
func (s *RedisArtifactStore) Get(ctx context.Context, key string) ([]byte, error) {
	payload, err := s.client.Get(ctx, cacheKey(key)).Bytes()
	switch {
	case err == nil:
		return payload, nil
	case !errors.Is(err, redis.Nil):
		s.logger.Warn("Artifact cache read failed", zap.String("selection_key", key), zap.Error(err))
	}

	payload, err = s.next.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if err := s.client.Set(ctx, cacheKey(key), payload, s.ttl).Err(); err != nil {
		s.logger.Debug("Failed to fill artifact cache", zap.String("selection_key", key), zap.Error(err))
	}
	return payload, nil
}

func (s *RedisArtifactStore) evict(ctx context.Context, key string) {
	if err := s.client.Del(context.WithoutCancel(ctx), cacheKey(key)).Err(); err != nil {
		s.logger.Warn("Failed to evict artifact", zap.String("selection_key", key), zap.Error(err))
	}
}

var _ ports.ArtifactStore = (*RedisArtifactStore)(nil)
