package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/NikolaosSamperis/PlaqueMS-project/application/ports"
	"github.com/NikolaosSamperis/PlaqueMS-project/domain/network"
	pkgerrors "github.com/NikolaosSamperis/PlaqueMS-project/pkg/errors"
)

// MockProteinSource is a mock implementation of ports.ProteinSource
type MockProteinSource struct {
	mock.Mock
}

func (m *MockProteinSource) FetchProteins(ctx context.Context, sel network.Selection) ([]network.Node, error) {
	args := m.Called(ctx, sel)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]network.Node), args.Error(1)
}

// blockingInteractions waits for ctx to end and records that it did.
type blockingInteractions struct {
	cancelled chan struct{}
}

func (b *blockingInteractions) FetchInteractions(ctx context.Context, _ network.Selection) (*ports.InteractionSet, error) {
	<-ctx.Done()
	close(b.cancelled)
	return nil, ctx.Err()
}

// stubInteractions returns a fixed set.
type stubInteractions struct {
	set *ports.InteractionSet
	err error
}

func (s stubInteractions) FetchInteractions(context.Context, network.Selection) (*ports.InteractionSet, error) {
	return s.set, s.err
}

type recordingFetchObserver struct {
	mu      sync.Mutex
	sources []string
}

func (r *recordingFetchObserver) ObserveFetch(source string, _ time.Duration, _ error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources = append(r.sources, source)
}

func fetchSelection(t *testing.T) network.Selection {
	t.Helper()
	sel, err := network.NewSelection("Vienna", "core", "soluble", []string{"hrg", "CP"})
	require.NoError(t, err)
	return sel
}

func TestGraphDataFetcher_Fetch_NormalizesBothSources(t *testing.T) {
	// Arrange
	proteins := new(MockProteinSource)
	proteins.On("FetchProteins", mock.Anything, mock.Anything).Return([]network.Node{
		{ID: " hrg ", Label: "HRG", Source: "", Attributes: network.Attributes{
			network.AttrFoldChange: network.Number(1.2),
		}},
	}, nil)
	interactions := stubInteractions{set: &ports.InteractionSet{
		Nodes: []network.Node{{ID: "cp", Label: "CP", Source: network.SourceRelational}},
		Edges: []network.Edge{{Source: "hrg", Target: " cp", Weight: 0.7, Type: "ppi"}},
	}}
	observer := &recordingFetchObserver{}
	fetcher := NewGraphDataFetcher(proteins, interactions, observer, zap.NewNop())

	// Act
	result, err := fetcher.Fetch(context.Background(), fetchSelection(t))

	// Assert
	require.NoError(t, err)
	require.Len(t, result.Nodes, 2)
	assert.Equal(t, "HRG", result.Nodes[0].ID)
	assert.Equal(t, network.SourceRelational, result.Nodes[0].Source)
	assert.Equal(t, "CP", result.Nodes[1].ID)
	assert.Equal(t, network.SourceGraph, result.Nodes[1].Source)
	require.Len(t, result.Edges, 1)
	assert.Equal(t, network.EdgeKey{A: "CP", B: "HRG"}, result.Edges[0].Key())
	assert.Equal(t, 1, result.RelationalNodes)
	assert.Equal(t, 1, result.GraphNodes)
	assert.ElementsMatch(t, []string{network.SourceRelational, network.SourceGraph}, observer.sources)
}

func TestGraphDataFetcher_Fetch_FailsFastAndNamesSource(t *testing.T) {
	proteins := new(MockProteinSource)
	proteins.On("FetchProteins", mock.Anything, mock.Anything).Return(nil, errors.New("connection refused"))
	interactions := &blockingInteractions{cancelled: make(chan struct{})}
	fetcher := NewGraphDataFetcher(proteins, interactions, nil, zap.NewNop())

	result, err := fetcher.Fetch(context.Background(), fetchSelection(t))

	require.Error(t, err)
	assert.Nil(t, result)
	assert.True(t, pkgerrors.IsType(err, pkgerrors.ErrorTypeDataSourceUnavailable))
	assert.Equal(t, pkgerrors.SourceRelational, pkgerrors.GetAppError(err).Details["source"])
	select {
	case <-interactions.cancelled:
	case <-time.After(time.Second):
		t.Fatal("graph query was not cancelled")
	}
}

func TestGraphDataFetcher_Fetch_GraphFailure(t *testing.T) {
	proteins := new(MockProteinSource)
	proteins.On("FetchProteins", mock.Anything, mock.Anything).Return([]network.Node{
		network.NewNode("HRG", "HRG", network.SourceRelational, nil),
	}, nil)
	fetcher := NewGraphDataFetcher(proteins, stubInteractions{err: errors.New("bolt: routing table unavailable")}, nil, zap.NewNop())

	_, err := fetcher.Fetch(context.Background(), fetchSelection(t))

	require.Error(t, err)
	assert.Equal(t, pkgerrors.SourceGraph, pkgerrors.GetAppError(err).Details["source"])
	assert.True(t, pkgerrors.Retryable(err))
}

func TestGraphDataFetcher_Fetch_EmptySelection(t *testing.T) {
	proteins := new(MockProteinSource)
	proteins.On("FetchProteins", mock.Anything, mock.Anything).Return([]network.Node{}, nil)
	fetcher := NewGraphDataFetcher(proteins, stubInteractions{set: nil}, nil, zap.NewNop())

	_, err := fetcher.Fetch(context.Background(), fetchSelection(t))

	assert.True(t, pkgerrors.IsType(err, pkgerrors.ErrorTypeEmptySelection))
}

func TestGraphDataFetcher_Fetch_OneSourceEmptyIsNotAnError(t *testing.T) {
	proteins := new(MockProteinSource)
	proteins.On("FetchProteins", mock.Anything, mock.Anything).Return([]network.Node{
		network.NewNode("HRG", "HRG", network.SourceRelational, nil),
	}, nil)
	fetcher := NewGraphDataFetcher(proteins, stubInteractions{set: &ports.InteractionSet{}}, nil, zap.NewNop())

	result, err := fetcher.Fetch(context.Background(), fetchSelection(t))

	require.NoError(t, err)
	assert.Len(t, result.Nodes, 1)
	assert.Empty(t, result.Edges)
}

func TestGraphDataFetcher_Fetch_CallerCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	interactions := &blockingInteractions{cancelled: make(chan struct{})}
	proteins := new(MockProteinSource)
	proteins.On("FetchProteins", mock.Anything, mock.Anything).Run(func(mock.Arguments) { cancel() }).
		Return(nil, context.Canceled)
	fetcher := NewGraphDataFetcher(proteins, interactions, nil, zap.NewNop())

	_, err := fetcher.Fetch(ctx, fetchSelection(t))

	assert.True(t, pkgerrors.IsType(err, pkgerrors.ErrorTypeCancelled))
}
