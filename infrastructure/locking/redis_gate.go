package locking

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/NikolaosSamperis/PlaqueMS-project/application/ports"
	pkgerrors "github.com/NikolaosSamperis/PlaqueMS-project/pkg/errors"
)

// Deletes the lease only if the caller still holds it.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end`)

// RedisGateConfig configures the lease.
type RedisGateConfig struct {
	// Lease bounds how long a crashed holder blocks others. It must exceed
	// the longest cycle (job deadline plus setup).
	Lease time.Duration
	// RetryInterval is the wait between acquisition attempts.
	RetryInterval time.Duration
}

// RedisGate serializes holders of the same key across processes with a
// SET NX PX lease.
type RedisGate struct {
	client redis.UniversalClient
	cfg    RedisGateConfig
	logger *zap.Logger
}

// NewRedisGate creates a new Redis-backed gate
func NewRedisGate(client redis.UniversalClient, cfg RedisGateConfig, logger *zap.Logger) *RedisGate {
	if cfg.Lease <= 0 {
		cfg.Lease = 10 * time.Minute
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = 250 * time.Millisecond
	}
	return &RedisGate{client: client, cfg: cfg, logger: logger}
}

func leaseKey(key string) string {
	return fmt.Sprintf("plaquems:gate:%s", key)
}

// Acquire polls until the lease is obtained or ctx is done.
func (g *RedisGate) Acquire(ctx context.Context, key string) (func(context.Context) error, error) {
	token := uuid.NewString()
	rkey := leaseKey(key)

	ticker := time.NewTicker(g.cfg.RetryInterval)
	defer ticker.Stop()
	for {
		ok, err := g.client.SetNX(ctx, rkey, token, g.cfg.Lease).Result()
		if err != nil {
			if ctx.Err() != nil {
				return nil, pkgerrors.NewCancelledError("acquire session gate", ctx.Err())
			}
			return nil, pkgerrors.NewInternalError("session gate unavailable").WithCause(err)
		}
		if ok {
			break
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return nil, pkgerrors.NewCancelledError("acquire session gate", ctx.Err())
		}
	}

	g.logger.Debug("Session gate acquired", zap.String("key", key))

	var (
		once sync.Once
		rerr error
	)
	return func(ctx context.Context) error {
		once.Do(func() {
			n, err := releaseScript.Run(context.WithoutCancel(ctx), g.client, []string{rkey}, token).Int()
			if err != nil {
				rerr = fmt.Errorf("release session gate: %w", err)
				return
			}
			if n == 0 {
				g.logger.Warn("Session gate lease expired before release", zap.String("key", key))
			}
		})
		return rerr
	}, nil
}

var _ ports.SessionGate = (*RedisGate)(nil)
