// Package memory provides an in-process ArtifactStore for tests and
// single-process development runs.
package memory

import (
	"context"
	"sync"

	"github.com/NikolaosSamperis/PlaqueMS-project/application/ports"
	pkgerrors "github.com/NikolaosSamperis/PlaqueMS-project/pkg/errors"
)

// ArtifactStore keeps artifacts in a map.
type ArtifactStore struct {
	mu     sync.RWMutex
	items  map[string][]byte
	writes int
}

// NewArtifactStore creates an empty store.
func NewArtifactStore() *ArtifactStore {
	return &ArtifactStore{items: make(map[string][]byte)}
}

// Put stores a copy of payload under key.
func (s *ArtifactStore) Put(ctx context.Context, key string, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return pkgerrors.NewArtifactPersistenceError("write", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[key] = append([]byte(nil), payload...)
	s.writes++
	return nil
}

// Get returns a copy of the payload stored under key.
func (s *ArtifactStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, pkgerrors.NewArtifactPersistenceError("read", err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	payload, ok := s.items[key]
	if !ok {
		return nil, pkgerrors.NewNotFoundError("artifact")
	}
	return append([]byte(nil), payload...), nil
}

// Writes returns the number of successful Put calls.
func (s *ArtifactStore) Writes() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.writes
}

var _ ports.ArtifactStore = (*ArtifactStore)(nil)
