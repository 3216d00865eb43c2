package orchestration

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
	"github.com/NikolaosSamperis/PlaqueMS-project/application/services"
	"github.com/NikolaosSamperis/PlaqueMS-project/domain/events"
	"github.com/NikolaosSamperis/PlaqueMS-project/domain/network"
	domainservices "github.com/NikolaosSamperis/PlaqueMS-project/domain/services"
	"github.com/NikolaosSamperis/PlaqueMS-project/infrastructure/cytoscape"
	"github.com/NikolaosSamperis/PlaqueMS-project/infrastructure/cytoscape/cytoscapetest"
	"github.com/NikolaosSamperis/PlaqueMS-project/infrastructure/persistence/artifact"
	"github.com/NikolaosSamperis/PlaqueMS-project/infrastructure/persistence/memory"
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

// MockInteractionSource is a mock implementation of ports.InteractionSource
type MockInteractionSource struct {
	mock.Mock
}

func (m *MockInteractionSource) FetchInteractions(ctx context.Context, sel network.Selection) (*ports.InteractionSet, error) {
	args := m.Called(ctx, sel)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ports.InteractionSet), args.Error(1)
}

// MockClusteringService is a mock implementation of ports.ClusteringService
type MockClusteringService struct {
	mock.Mock
}

func (m *MockClusteringService) NewSession(title string) ports.ClusteringSession {
	args := m.Called(title)
	return args.Get(0).(ports.ClusteringSession)
}

// MockClusteringSession is a mock implementation of ports.ClusteringSession
type MockClusteringSession struct {
	mock.Mock
}

func (m *MockClusteringSession) Run(ctx context.Context, g *network.Graph, params ports.ClusteringParams) (*ports.ClusteringRun, error) {
	args := m.Called(ctx, g, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ports.ClusteringRun), args.Error(1)
}

func (m *MockClusteringSession) Handle() ports.SessionHandle {
	args := m.Called()
	return args.Get(0).(ports.SessionHandle)
}

func (m *MockClusteringSession) Release(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// MockEventPublisher is a mock implementation of ports.EventPublisher
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(ctx context.Context, event events.DomainEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

// recordingGate counts acquisitions and releases.
type recordingGate struct {
	mu       sync.Mutex
	acquired int
	released int
}

func (g *recordingGate) Acquire(_ context.Context, key string) (func(context.Context) error, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.acquired++
	return func(context.Context) error {
		g.mu.Lock()
		defer g.mu.Unlock()
		g.released++
		return nil
	}, nil
}

func fc(v float64) network.Attributes {
	return network.Attributes{network.AttrFoldChange: network.Number(v)}
}

// plaqueData is a 5-protein, 6-edge selection: two strongly linked pairs
// joined by weak edges, and VCAN with no interactions.
func plaqueData() ([]network.Node, *ports.InteractionSet) {
	relational := []network.Node{
		network.NewNode("hrg", "HRG", network.SourceRelational, fc(1.2)),
		network.NewNode("CP", "CP", network.SourceRelational, fc(-0.8)),
		network.NewNode("C4B", "C4B", network.SourceRelational, fc(0.3)),
		network.NewNode("VCAN", "VCAN", network.SourceRelational, fc(-1.5)),
	}
	graphSet := &ports.InteractionSet{
		Nodes: []network.Node{
			network.NewNode("HRG", "HRG", network.SourceGraph, fc(0.9)),
			network.NewNode("F13A1", "F13A1", network.SourceGraph, network.Attributes{
				network.AttrTissueArea: network.Text("core"),
			}),
		},
		Edges: []network.Edge{
			network.NewEdge("HRG", "CP", 0.9, "ppi"),
			network.NewEdge("C4B", "F13A1", 0.8, "ppi"),
			network.NewEdge("HRG", "C4B", 0.1, "ppi"),
			network.NewEdge("CP", "F13A1", 0.2, "ppi"),
			network.NewEdge("HRG", "F13A1", 0.15, "ppi"),
			network.NewEdge("CP", "C4B", 0.1, "ppi"),
		},
	}
	return relational, graphSet
}

func testSelection(t *testing.T) network.Selection {
	t.Helper()
	sel, err := network.NewSelection("Vienna", "Core", "cellular", nil)
	require.NoError(t, err)
	return sel
}

type fixture struct {
	proteins     *MockProteinSource
	interactions *MockInteractionSource
	publisher    *MockEventPublisher
	store        *memory.ArtifactStore
	reconciler   *services.ResultReconciler
}

func newFixture() *fixture {
	store := memory.NewArtifactStore()
	return &fixture{
		proteins:     new(MockProteinSource),
		interactions: new(MockInteractionSource),
		publisher:    new(MockEventPublisher),
		store:        store,
		reconciler:   services.NewResultReconciler(store, artifact.NewCodec(), zap.NewNop()),
	}
}

func (f *fixture) withPlaqueData() *fixture {
	relational, graphSet := plaqueData()
	f.proteins.On("FetchProteins", mock.Anything, mock.Anything).Return(relational, nil)
	f.interactions.On("FetchInteractions", mock.Anything, mock.Anything).Return(graphSet, nil)
	return f
}

func (f *fixture) orchestrator(clustering ports.ClusteringService, gate ports.SessionGate) *Orchestrator {
	logger := zap.NewNop()
	return NewOrchestrator(
		services.NewGraphDataFetcher(f.proteins, f.interactions, nil, logger),
		domainservices.NewGraphAssembler(0),
		clustering,
		f.reconciler,
		ports.StaticParams(ports.DefaultClusteringParams()),
		gate,
		f.publisher,
		nil,
		logger,
	)
}

func cytoscapeClient(t *testing.T, srv *cytoscapetest.Server, mutate func(*cytoscape.Config)) *cytoscape.Client {
	t.Helper()
	cfg := cytoscape.DefaultConfig()
	cfg.BaseURL = srv.URL
	cfg.RequestTimeout = time.Second
	cfg.PollInterval = 5 * time.Millisecond
	cfg.JobDeadline = 5 * time.Second
	if mutate != nil {
		mutate(&cfg)
	}
	client, err := cytoscape.NewClient(cfg, zap.NewNop(), nil)
	require.NoError(t, err)
	return client
}

func TestOrchestrator_EndToEnd(t *testing.T) {
	// Arrange
	srv := cytoscapetest.NewServer(cytoscapetest.Options{
		PollsUntilDone: 1,
		Partition:      cytoscapetest.ConnectedComponents(0.5),
	})
	defer srv.Close()

	f := newFixture().withPlaqueData()
	f.publisher.On("Publish", mock.Anything, mock.AnythingOfType("events.ClusteringCompleted")).Return(nil).Once()
	gate := &recordingGate{}
	o := f.orchestrator(cytoscapeClient(t, srv, nil), gate)
	sel := testSelection(t)

	// Act
	result := o.Run(context.Background(), sel)

	// Assert
	require.Equal(t, OutcomeCompleted, result.Outcome, "error: %v", result.Err)
	assert.NoError(t, result.AsError())
	require.NotNil(t, result.Summary)
	assert.Equal(t, 2, result.Summary.ClusterCount)
	assert.Equal(t, 2, result.Summary.LargestClusterSize)
	assert.Equal(t, 1, result.Summary.UnassignedCount)
	assert.Equal(t, 5, result.Summary.NodeCount)
	assert.Equal(t, 6, result.Summary.EdgeCount)
	assert.Empty(t, result.Summary.Warnings)

	assert.Equal(t, network.Unassigned, result.Assignment.Cluster("VCAN"))
	hrg, ok := result.Graph.Node("HRG")
	require.True(t, ok)
	v, _ := hrg.Attributes[network.AttrFoldChange].Float()
	assert.Equal(t, 1.2, v)

	// The remote network was released exactly once, inside the gate.
	assert.Equal(t, 1, srv.Calls("delete_network"))
	assert.Equal(t, 0, srv.Networks())
	assert.Equal(t, 1, gate.acquired)
	assert.Equal(t, 1, gate.released)
	assert.Equal(t, sel.NetworkTitle(), result.Handle.NetworkTitle)

	stored, err := f.reconciler.Load(context.Background(), sel)
	require.NoError(t, err)
	assert.Equal(t, result.Assignment.Map(), stored.Assignment.Map())
	assert.Equal(t, result.Summary.ClusterStats, stored.Stats())
	f.publisher.AssertExpectations(t)
}

func TestOrchestrator_RerunIsByteIdentical(t *testing.T) {
	srv := cytoscapetest.NewServer(cytoscapetest.Options{
		Synchronous: true,
		Partition:   cytoscapetest.ConnectedComponents(0.5),
	})
	defer srv.Close()
	f := newFixture().withPlaqueData()
	f.publisher.On("Publish", mock.Anything, mock.Anything).Return(nil)
	o := f.orchestrator(cytoscapeClient(t, srv, nil), nil)
	sel := testSelection(t)

	require.Equal(t, OutcomeCompleted, o.Run(context.Background(), sel).Outcome)
	first, err := f.store.Get(context.Background(), sel.Key())
	require.NoError(t, err)
	require.Equal(t, OutcomeCompleted, o.Run(context.Background(), sel).Outcome)
	second, err := f.store.Get(context.Background(), sel.Key())
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 2, f.store.Writes())
}

func TestOrchestrator_PluginMissing(t *testing.T) {
	srv := cytoscapetest.NewServer(cytoscapetest.Options{PluginMissing: true})
	defer srv.Close()
	f := newFixture().withPlaqueData()
	f.publisher.On("Publish", mock.Anything, mock.AnythingOfType("events.ClusteringFailed")).Return(nil).Once()
	o := f.orchestrator(cytoscapeClient(t, srv, nil), nil)

	result := o.Run(context.Background(), testSelection(t))

	assert.Equal(t, OutcomeFailed, result.Outcome)
	assert.Equal(t, pkgerrors.ErrorTypeClusteringPluginMissing, result.Kind)
	assert.Nil(t, result.Summary)
	assert.Nil(t, result.Assignment)
	assert.Zero(t, srv.Calls("poll_job"))
	assert.Equal(t, 1, srv.Calls("delete_network"))
	assert.Zero(t, f.store.Writes())
	f.publisher.AssertExpectations(t)
}

func TestOrchestrator_TimedOut_ReleasesOnce(t *testing.T) {
	// Arrange
	f := newFixture().withPlaqueData()
	f.publisher.On("Publish", mock.Anything, mock.AnythingOfType("events.ClusteringTimedOut")).Return(nil).Once()

	handle := ports.SessionHandle{NetworkTitle: "plaquems-x", NetworkSUID: 52, JobID: "job-7"}
	session := new(MockClusteringSession)
	session.On("Run", mock.Anything, mock.Anything, mock.Anything).Return(nil, pkgerrors.NewTimedOutError("job-7"))
	session.On("Handle").Return(handle)
	session.On("Release", mock.Anything).Return(nil)
	clustering := new(MockClusteringService)
	clustering.On("NewSession", mock.Anything).Return(session)

	o := f.orchestrator(clustering, nil)

	// Act
	result := o.Run(context.Background(), testSelection(t))

	// Assert
	assert.Equal(t, OutcomeTimedOut, result.Outcome)
	assert.Equal(t, pkgerrors.ErrorTypeTimedOut, result.Kind)
	assert.True(t, pkgerrors.Retryable(result.AsError()))
	assert.Equal(t, handle, result.Handle)
	session.AssertNumberOfCalls(t, "Release", 1)
	f.publisher.AssertExpectations(t)
}

func TestOrchestrator_TimedOutAgainstFakeService(t *testing.T) {
	srv := cytoscapetest.NewServer(cytoscapetest.Options{JobNeverFinishes: true})
	defer srv.Close()
	f := newFixture().withPlaqueData()
	f.publisher.On("Publish", mock.Anything, mock.Anything).Return(nil)
	o := f.orchestrator(cytoscapeClient(t, srv, func(c *cytoscape.Config) {
		c.RequestTimeout = 50 * time.Millisecond
		c.JobDeadline = 120 * time.Millisecond
		c.PollInterval = 10 * time.Millisecond
	}), nil)

	result := o.Run(context.Background(), testSelection(t))

	assert.Equal(t, OutcomeTimedOut, result.Outcome)
	assert.Equal(t, "job-1", result.Handle.JobID)
	assert.Equal(t, 1, srv.Calls("delete_network"))
}

func TestOrchestrator_ReleaseFailureIsOnlyLogged(t *testing.T) {
	f := newFixture().withPlaqueData()
	f.publisher.On("Publish", mock.Anything, mock.Anything).Return(nil)

	session := new(MockClusteringSession)
	session.On("Run", mock.Anything, mock.Anything, mock.Anything).Return(func() *ports.ClusteringRun {
		relational, graphSet := plaqueData()
		g, _, err := domainservices.NewGraphAssembler(0).Assemble(append(relational, graphSet.Nodes...), graphSet.Edges)
		require.NoError(t, err)
		return &ports.ClusteringRun{Assignment: network.NewClusterAssignment(g, map[string]int{"HRG": 0, "CP": 0})}
	}(), nil)
	session.On("Handle").Return(ports.SessionHandle{NetworkTitle: "t", NetworkSUID: 9})
	session.On("Release", mock.Anything).Return(pkgerrors.NewExternalServiceUnreachableError("http://localhost:1234", errors.New("connection refused")))
	clustering := new(MockClusteringService)
	clustering.On("NewSession", mock.Anything).Return(session)

	result := f.orchestrator(clustering, nil).Run(context.Background(), testSelection(t))

	assert.Equal(t, OutcomeCompleted, result.Outcome)
	assert.Equal(t, 1, result.Summary.ClusterCount)
	session.AssertNumberOfCalls(t, "Release", 1)
}

func TestOrchestrator_FetchFailure_NeverOpensSession(t *testing.T) {
	f := newFixture()
	_, graphSet := plaqueData()
	f.proteins.On("FetchProteins", mock.Anything, mock.Anything).Return(nil, errors.New("connection refused"))
	f.interactions.On("FetchInteractions", mock.Anything, mock.Anything).Return(graphSet, nil)
	f.publisher.On("Publish", mock.Anything, mock.Anything).Return(nil)
	clustering := new(MockClusteringService)

	result := f.orchestrator(clustering, nil).Run(context.Background(), testSelection(t))

	assert.Equal(t, OutcomeFailed, result.Outcome)
	assert.Equal(t, pkgerrors.ErrorTypeDataSourceUnavailable, result.Kind)
	appErr := pkgerrors.GetAppError(result.Err)
	require.NotNil(t, appErr)
	assert.Equal(t, pkgerrors.SourceRelational, appErr.Details["source"])
	clustering.AssertNotCalled(t, "NewSession", mock.Anything)
	assert.Zero(t, f.store.Writes())
}

func TestOrchestrator_EmptySelection(t *testing.T) {
	f := newFixture()
	f.proteins.On("FetchProteins", mock.Anything, mock.Anything).Return([]network.Node{}, nil)
	f.interactions.On("FetchInteractions", mock.Anything, mock.Anything).Return(&ports.InteractionSet{}, nil)
	f.publisher.On("Publish", mock.Anything, mock.Anything).Return(nil)

	result := f.orchestrator(new(MockClusteringService), nil).Run(context.Background(), testSelection(t))

	assert.Equal(t, OutcomeFailed, result.Outcome)
	assert.Equal(t, pkgerrors.ErrorTypeEmptySelection, result.Kind)
}

func TestOrchestrator_DanglingEdgesBecomeWarnings(t *testing.T) {
	srv := cytoscapetest.NewServer(cytoscapetest.Options{Synchronous: true})
	defer srv.Close()
	f := newFixture()
	relational, graphSet := plaqueData()
	graphSet.Edges = append(graphSet.Edges, network.NewEdge("HRG", "APOA1", 0.7, "ppi"))
	f.proteins.On("FetchProteins", mock.Anything, mock.Anything).Return(relational, nil)
	f.interactions.On("FetchInteractions", mock.Anything, mock.Anything).Return(graphSet, nil)
	f.publisher.On("Publish", mock.Anything, mock.Anything).Return(nil)

	result := f.orchestrator(cytoscapeClient(t, srv, nil), nil).Run(context.Background(), testSelection(t))

	require.Equal(t, OutcomeCompleted, result.Outcome)
	require.Len(t, result.Summary.Warnings, 1)
	assert.Equal(t, ports.WarningDanglingEdges, result.Summary.Warnings[0].Code)
	assert.Equal(t, 1, result.Summary.Warnings[0].Count)
}

func TestOrchestrator_PublishFailureDoesNotChangeOutcome(t *testing.T) {
	srv := cytoscapetest.NewServer(cytoscapetest.Options{Synchronous: true})
	defer srv.Close()
	f := newFixture().withPlaqueData()
	f.publisher.On("Publish", mock.Anything, mock.Anything).Return(errors.New("bus down"))

	result := f.orchestrator(cytoscapeClient(t, srv, nil), nil).Run(context.Background(), testSelection(t))

	assert.Equal(t, OutcomeCompleted, result.Outcome)
}

func TestOrchestrator_CancelledBeforeStart(t *testing.T) {
	f := newFixture()
	f.publisher.On("Publish", mock.Anything, mock.Anything).Return(nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := f.orchestrator(new(MockClusteringService), nil).Run(ctx, testSelection(t))

	assert.Equal(t, OutcomeFailed, result.Outcome)
	assert.Equal(t, pkgerrors.ErrorTypeCancelled, result.Kind)
	f.proteins.AssertNotCalled(t, "FetchProteins", mock.Anything, mock.Anything)
}
