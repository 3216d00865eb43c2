package services

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/NikolaosSamperis/PlaqueMS-project/application/ports"
	"github.com/NikolaosSamperis/PlaqueMS-project/domain/network"
	pkgerrors "github.com/NikolaosSamperis/PlaqueMS-project/pkg/errors"
)

// FetchObserver records per-source fetch latency.
type FetchObserver interface {
	ObserveFetch(source string, duration time.Duration, err error)
}

// FetchResult is the normalized output of both stores for one selection.
type FetchResult struct {
	Nodes []network.Node
	Edges []network.Edge

	RelationalNodes int
	GraphNodes      int
}

// GraphDataFetcher queries the relational and graph stores in parallel.
type GraphDataFetcher struct {
	proteins     ports.ProteinSource
	interactions ports.InteractionSource
	observer     FetchObserver
	logger       *zap.Logger
}

// NewGraphDataFetcher creates a new fetcher. observer may be nil.
func NewGraphDataFetcher(
	proteins ports.ProteinSource,
	interactions ports.InteractionSource,
	observer FetchObserver,
	logger *zap.Logger,
) *GraphDataFetcher {
	return &GraphDataFetcher{
		proteins:     proteins,
		interactions: interactions,
		observer:     observer,
		logger:       logger,
	}
}

// Fetch runs both queries concurrently. The first failure cancels the other
// query and is returned as DataSourceUnavailable naming the failed source;
// a partial result is never returned. A selection that yields nothing from
// either store fails with EmptySelection.
func (f *GraphDataFetcher) Fetch(ctx context.Context, sel network.Selection) (*FetchResult, error) {
	var (
		relational []network.Node
		graphSet   *ports.InteractionSet
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		start := time.Now()
		nodes, err := f.proteins.FetchProteins(gctx, sel)
		f.observe(network.SourceRelational, start, err)
		if err != nil {
			return f.sourceError(ctx, pkgerrors.SourceRelational, err)
		}
		relational = nodes
		return nil
	})

	g.Go(func() error {
		start := time.Now()
		set, err := f.interactions.FetchInteractions(gctx, sel)
		f.observe(network.SourceGraph, start, err)
		if err != nil {
			return f.sourceError(ctx, pkgerrors.SourceGraph, err)
		}
		graphSet = set
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if graphSet == nil {
		graphSet = &ports.InteractionSet{}
	}

	result := &FetchResult{
		Nodes:           make([]network.Node, 0, len(relational)+len(graphSet.Nodes)),
		Edges:           make([]network.Edge, 0, len(graphSet.Edges)),
		RelationalNodes: len(relational),
		GraphNodes:      len(graphSet.Nodes),
	}
	for _, n := range relational {
		result.Nodes = append(result.Nodes, normalizeNode(n, network.SourceRelational))
	}
	for _, n := range graphSet.Nodes {
		result.Nodes = append(result.Nodes, normalizeNode(n, network.SourceGraph))
	}
	for _, e := range graphSet.Edges {
		result.Edges = append(result.Edges, network.NewEdge(e.Source, e.Target, e.Weight, e.Type))
	}

	if len(result.Nodes) == 0 && len(result.Edges) == 0 {
		return nil, pkgerrors.NewEmptySelectionError(sel.Key())
	}

	f.logger.Debug("Fetched selection",
		zap.String("selection_key", sel.Key()),
		zap.Int("relational_nodes", result.RelationalNodes),
		zap.Int("graph_nodes", result.GraphNodes),
		zap.Int("edges", len(result.Edges)),
	)

	return result, nil
}

// sourceError maps a store failure. Caller cancellation is reported as such
// rather than blamed on the store.
func (f *GraphDataFetcher) sourceError(parent context.Context, source string, err error) error {
	if parent.Err() != nil {
		return pkgerrors.NewCancelledError("fetch", parent.Err())
	}
	if pkgerrors.IsType(err, pkgerrors.ErrorTypeDataSourceUnavailable) {
		return err
	}
	f.logger.Warn("Data source query failed",
		zap.String("source", source),
		zap.Error(err),
	)
	return pkgerrors.NewDataSourceUnavailableError(source, err)
}

func (f *GraphDataFetcher) observe(source string, start time.Time, err error) {
	if f.observer != nil {
		f.observer.ObserveFetch(source, time.Since(start), err)
	}
}

func normalizeNode(n network.Node, source string) network.Node {
	n.ID = network.NormalizeID(n.ID)
	n.Source = source
	return n
}
