package ports

import (
	"context"

	"github.com/NikolaosSamperis/PlaqueMS-project/domain/events"
	"github.com/NikolaosSamperis/PlaqueMS-project/domain/network"
)

// ProteinSource reads protein metadata, abundance and differential-expression
// annotations from the relational store.
// This is a port in hexagonal architecture - the application doesn't know about the implementation
type ProteinSource interface {
	// FetchProteins returns one node per protein matching the selection, tagged
	// network.SourceRelational.
	FetchProteins(ctx context.Context, sel network.Selection) ([]network.Node, error)
}

// InteractionSet is what the graph store knows about a selection.
type InteractionSet struct {
	Nodes []network.Node
	Edges []network.Edge
}

// InteractionSource reads protein-protein interactions and clinical/tissue
// context from the graph store.
type InteractionSource interface {
	// FetchInteractions returns context nodes tagged network.SourceGraph and the
	// interaction edges scoped to the selection.
	FetchInteractions(ctx context.Context, sel network.Selection) (*InteractionSet, error)
}

// ArtifactStore persists serialized clustering artifacts keyed by selection key.
// Put overwrites any previous artifact for the key.
type ArtifactStore interface {
	Put(ctx context.Context, key string, payload []byte) error
	// Get returns a NOT_FOUND AppError when no artifact exists for key.
	Get(ctx context.Context, key string) ([]byte, error)
}

// ArtifactCodec converts artifacts to and from their stable, versioned wire form.
type ArtifactCodec interface {
	Encode(a *network.Artifact) ([]byte, error)
	Decode(payload []byte) (*network.Artifact, error)
}

// EventPublisher publishes domain events to an external bus
type EventPublisher interface {
	Publish(ctx context.Context, event events.DomainEvent) error
}

// SessionGate serializes access to a clustering service that supports only
// one session at a time.
type SessionGate interface {
	// Acquire blocks until the gate is held or ctx is done. The returned
	// release function must be called exactly once.
	Acquire(ctx context.Context, key string) (release func(context.Context) error, err error)
}

// Scorer is a black-box model taking a fixed-length feature vector.
type Scorer interface {
	Name() string
	// Score fails with SCORER_UNAVAILABLE or FEATURE_VECTOR_MISMATCH.
	Score(ctx context.Context, features []float64, proteomeExtract string) (float64, error)
}
