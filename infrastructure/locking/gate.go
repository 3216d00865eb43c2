// Package locking serializes access to clustering services that hold a
// single current session.
package locking

import (
	"context"
	"sync"

	"github.com/NikolaosSamperis/PlaqueMS-project/application/ports"
	pkgerrors "github.com/NikolaosSamperis/PlaqueMS-project/pkg/errors"
)

// NoopGate never blocks. Used when the service accepts concurrent sessions.
type NoopGate struct{}

// Acquire implements ports.SessionGate.
func (NoopGate) Acquire(ctx context.Context, _ string) (func(context.Context) error, error) {
	if err := ctx.Err(); err != nil {
		return nil, pkgerrors.NewCancelledError("acquire session gate", err)
	}
	return func(context.Context) error { return nil }, nil
}

// LocalGate serializes holders of the same key within one process.
type LocalGate struct {
	mu    sync.Mutex
	slots map[string]chan struct{}
}

// NewLocalGate creates a new in-process gate
func NewLocalGate() *LocalGate {
	return &LocalGate{slots: make(map[string]chan struct{})}
}

func (g *LocalGate) slot(key string) chan struct{} {
	g.mu.Lock()
	defer g.mu.Unlock()
	s, ok := g.slots[key]
	if !ok {
		s = make(chan struct{}, 1)
		g.slots[key] = s
	}
	return s
}

// Acquire blocks until key is free or ctx is done.
func (g *LocalGate) Acquire(ctx context.Context, key string) (func(context.Context) error, error) {
	s := g.slot(key)
	select {
	case s <- struct{}{}:
	case <-ctx.Done():
		return nil, pkgerrors.NewCancelledError("acquire session gate", ctx.Err())
	}

	var once sync.Once
	return func(context.Context) error {
		once.Do(func() { <-s })
		return nil
	}, nil
}

var (
	_ ports.SessionGate = NoopGate{}
	_ ports.SessionGate = (*LocalGate)(nil)
)
