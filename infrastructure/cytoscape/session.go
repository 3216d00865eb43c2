package cytoscape

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/NikolaosSamperis/PlaqueMS-project/application/ports"
	"github.com/NikolaosSamperis/PlaqueMS-project/domain/network"
	pkgerrors "github.com/NikolaosSamperis/PlaqueMS-project/pkg/errors"
)

// State is the lifecycle position of a Session.
type State string

const (
	StateIdle             State = "idle"
	StateNetworkCreated   State = "network_created"
	StateStyleApplied     State = "style_applied"
	StateClusterSubmitted State = "cluster_submitted"
	StateCompleted        State = "completed"
	StateFailed           State = "failed"
	StateTimedOut         State = "timed_out"
)

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateTimedOut
}

// Session is one clustering cycle on the remote service. The transitions are
// exposed as methods on per-state values, so a step can only be called with
// the value the previous step returned.
type Session struct {
	client *Client
	title  string
	logger *zap.Logger

	mu       sync.Mutex
	state    State
	suid     int64
	jobID    string
	released bool
}

func newSession(c *Client, title string) *Session {
	return &Session{
		client: c,
		title:  title,
		state:  StateIdle,
		logger: c.logger.With(zap.String("network_title", title)),
	}
}

// Idle is a session that has not touched the remote service yet.
type Idle struct{ s *Session }

// NetworkCreated holds a session whose network exists remotely.
type NetworkCreated struct {
	s    *Session
	suid int64
}

// StyleApplied holds a session ready for clustering. The style itself may
// have failed; that is reported as a warning and does not block clustering.
type StyleApplied struct {
	s    *Session
	suid int64
}

// ClusterSubmitted holds a session with a clustering job in flight. An empty
// JobID means the command ran synchronously and the result is already there.
type ClusterSubmitted struct {
	s           *Session
	suid        int64
	JobID       string
	attribute   string
	submittedAt time.Time
}

// Start returns the Idle state. A session can be started only once.
func (s *Session) Start() (Idle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateIdle || s.suid != 0 {
		return Idle{}, pkgerrors.NewInternalError(fmt.Sprintf("clustering session %q already used", s.title))
	}
	return Idle{s: s}, nil
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Handle implements ports.ClusteringSession.
func (s *Session) Handle() ports.SessionHandle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ports.SessionHandle{NetworkTitle: s.title, NetworkSUID: s.suid, JobID: s.jobID}
}

func (s *Session) expect(want State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != want {
		return pkgerrors.NewInternalError(fmt.Sprintf("clustering session in state %s, expected %s", s.state, want))
	}
	return nil
}

func (s *Session) moveTo(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

// fail records a terminal failure and returns err.
func (s *Session) fail(err error) error {
	if pkgerrors.IsType(err, pkgerrors.ErrorTypeTimedOut) {
		s.moveTo(StateTimedOut)
	} else {
		s.moveTo(StateFailed)
	}
	return err
}

// callError classifies a failed remote call. Non-2xx replies and transport
// failures are ExternalServiceUnreachable; a request that could not be built
// is an internal error.
func (s *Session) callError(ctx context.Context, step string, err error) error {
	if ctx.Err() != nil {
		return pkgerrors.NewCancelledError(step, ctx.Err())
	}
	var re *requestError
	if errors.As(err, &re) {
		return pkgerrors.NewInternalError(fmt.Sprintf("%s request could not be built", step)).WithCause(err)
	}
	return s.client.unreachable(err)
}

// CreateNetwork removes leftover networks with the same title and uploads g.
func (i Idle) CreateNetwork(ctx context.Context, g *network.Graph, params ports.ClusteringParams) (NetworkCreated, error) {
	s := i.s
	if err := s.expect(StateIdle); err != nil {
		return NetworkCreated{}, err
	}

	if err := s.removeStale(ctx); err != nil {
		return NetworkCreated{}, s.fail(err)
	}

	query := url.Values{"title": {s.title}}
	if params.Collection != "" {
		query.Set("collection", params.Collection)
	}
	var created createResponse
	err := s.client.call(ctx, "create_network", http.MethodPost, "/v1/networks", query,
		buildNetwork(s.title, g, params), &created)
	if err != nil {
		return NetworkCreated{}, s.fail(s.callError(ctx, "create_network", err))
	}
	if created.NetworkSUID == 0 {
		return NetworkCreated{}, s.fail(pkgerrors.NewClusterFailedError("network creation returned no SUID"))
	}

	s.mu.Lock()
	s.suid = created.NetworkSUID
	s.state = StateNetworkCreated
	s.mu.Unlock()

	s.logger.Info("Network created",
		zap.Int64("network_suid", created.NetworkSUID),
		zap.Int("nodes", g.NodeCount()),
		zap.Int("edges", g.EdgeCount()),
	)
	return NetworkCreated{s: s, suid: created.NetworkSUID}, nil
}

// removeStale deletes networks left behind by an earlier cycle for the same
// selection. Listing failures are fatal; individual delete failures are not.
func (s *Session) removeStale(ctx context.Context) error {
	var suids []int64
	query := url.Values{"column": {"name"}, "query": {s.title}}
	if err := s.client.call(ctx, "list_networks", http.MethodGet, "/v1/networks", query, nil, &suids); err != nil {
		return s.callError(ctx, "list_networks", err)
	}
	for _, suid := range suids {
		path := "/v1/networks/" + strconv.FormatInt(suid, 10)
		if err := s.client.call(ctx, "delete_network", http.MethodDelete, path, nil, nil, nil); err != nil {
			s.logger.Warn("Failed to remove stale network",
				zap.Int64("network_suid", suid),
				zap.Error(err),
			)
			continue
		}
		s.logger.Debug("Removed stale network", zap.Int64("network_suid", suid))
	}
	return nil
}

// ApplyStyle creates or updates the visual style and applies it. Failure is
// returned as a warning and the session still advances.
func (n NetworkCreated) ApplyStyle(ctx context.Context, g *network.Graph, params ports.ClusteringParams) (StyleApplied, *ports.Warning) {
	s := n.s
	if err := s.expect(StateNetworkCreated); err != nil {
		return StyleApplied{}, &ports.Warning{Code: ports.WarningStyleFailed, Message: err.Error()}
	}

	var warning *ports.Warning
	if params.StyleName != "" {
		if err := s.applyStyle(ctx, n.suid, g, params); err != nil {
			s.logger.Warn("Style not applied", zap.String("style", params.StyleName), zap.Error(err))
			warning = &ports.Warning{
				Code:    ports.WarningStyleFailed,
				Message: fmt.Sprintf("style %q not applied: %v", params.StyleName, err),
			}
		}
	}

	s.moveTo(StateStyleApplied)
	return StyleApplied{s: s, suid: n.suid}, warning
}

func (s *Session) applyStyle(ctx context.Context, suid int64, g *network.Graph, params ports.ClusteringParams) error {
	name := url.PathEscape(params.StyleName)
	err := s.client.call(ctx, "get_style", http.MethodGet, "/v1/styles/"+name, nil, nil, nil)
	if statusOf(err) == http.StatusNotFound {
		err = s.client.call(ctx, "create_style", http.MethodPost, "/v1/styles", nil, newStyle(params.StyleName), nil)
	}
	if err != nil {
		return err
	}
	if err := s.client.call(ctx, "style_mappings", http.MethodPost, "/v1/styles/"+name+"/mappings", nil,
		styleMappings(g, params), nil); err != nil {
		return err
	}
	return s.client.call(ctx, "apply_style", http.MethodGet,
		fmt.Sprintf("/v1/apply/styles/%s/%d", name, suid), nil, nil, nil)
}

// SubmitClustering starts the clustering command. A missing algorithm
// plugin fails immediately with ClusteringPluginMissing.
func (a StyleApplied) SubmitClustering(ctx context.Context, params ports.ClusteringParams) (ClusterSubmitted, error) {
	s := a.s
	if err := s.expect(StateStyleApplied); err != nil {
		return ClusterSubmitted{}, err
	}

	path := "/v1/commands/cluster/" + url.PathEscape(params.Algorithm)
	var resp commandResponse
	err := s.client.call(ctx, "submit_cluster", http.MethodPost, path, nil, clusterCommand(a.suid, params), &resp)
	if err != nil {
		return ClusterSubmitted{}, s.fail(s.submitError(ctx, params.Algorithm, err))
	}
	if msg := resp.errorMessage(); msg != "" {
		if pluginMissing(0, msg) {
			return ClusterSubmitted{}, s.fail(pkgerrors.NewClusteringPluginMissingError(params.Algorithm))
		}
		return ClusterSubmitted{}, s.fail(pkgerrors.NewClusterFailedError(msg))
	}

	jobID := resp.jobID()
	s.mu.Lock()
	s.jobID = jobID
	s.state = StateClusterSubmitted
	s.mu.Unlock()

	s.logger.Info("Clustering submitted",
		zap.String("algorithm", params.Algorithm),
		zap.String("job_id", jobID),
	)
	return ClusterSubmitted{
		s:           s,
		suid:        a.suid,
		JobID:       jobID,
		attribute:   params.ClusterAttribute,
		submittedAt: time.Now(),
	}, nil
}

func (s *Session) submitError(ctx context.Context, algorithm string, err error) error {
	var re *remoteError
	if errors.As(err, &re) && re.Status < 500 {
		var resp commandResponse
		msg := re.Body
		if json.Unmarshal([]byte(re.Body), &resp) == nil && resp.errorMessage() != "" {
			msg = resp.errorMessage()
		}
		if pluginMissing(re.Status, msg) {
			return pkgerrors.NewClusteringPluginMissingError(algorithm)
		}
		return pkgerrors.NewClusterFailedError(msg)
	}
	return s.callError(ctx, "submit_cluster", err)
}

type pollState struct {
	polls    int
	failures int
	status   jobStatus
}

// AwaitPartition polls the job until it finishes or the job deadline,
// measured from submission, passes; then it reads the partition. Reaching
// the deadline yields TimedOut and leaves the remote job running.
func (c ClusterSubmitted) AwaitPartition(ctx context.Context) (network.Partition, error) {
	s := c.s
	if err := s.expect(StateClusterSubmitted); err != nil {
		return nil, err
	}

	if c.JobID != "" {
		if err := c.poll(ctx); err != nil {
			return nil, s.fail(err)
		}
	}

	var rows []map[string]interface{}
	path := fmt.Sprintf("/v1/networks/%d/tables/defaultnode/rows", c.suid)
	if err := s.client.call(ctx, "get_partition", http.MethodGet, path, nil, nil, &rows); err != nil {
		return nil, s.fail(s.callError(ctx, "get_partition", err))
	}

	s.moveTo(StateCompleted)
	return partitionFromRows(rows, c.attribute), nil
}

func (c ClusterSubmitted) poll(ctx context.Context) error {
	s := c.s
	cfg := s.client.cfg
	pollCtx, cancel := context.WithDeadline(ctx, c.submittedAt.Add(cfg.JobDeadline))
	defer cancel()

	path := "/v1/jobs/" + url.PathEscape(c.JobID)
	final, err := loop(pollCtx, pollState{}, func(ctx context.Context, st pollState) (pollState, next) {
		st.polls++
		if s.client.observer != nil {
			s.client.observer.ObservePoll()
		}

		var status jobStatus
		if err := s.client.call(ctx, "poll_job", http.MethodGet, path, nil, nil, &status); err != nil {
			if ctx.Err() != nil {
				return st, done(ctx.Err())
			}
			if statusOf(err) == http.StatusNotFound {
				return st, done(pkgerrors.NewClusterFailedError(fmt.Sprintf("job %s not found", c.JobID)))
			}
			st.failures++
			s.logger.Warn("Job status unavailable",
				zap.String("job_id", c.JobID),
				zap.Int("consecutive_failures", st.failures),
				zap.Error(err),
			)
			if st.failures >= cfg.MaxPollFailures {
				return st, done(s.client.unreachable(err))
			}
			return st, again(cfg.PollInterval)
		}

		st.failures = 0
		st.status = status
		switch status.Status {
		case jobFinished:
			return st, done(nil)
		case jobFailed, jobCancelled:
			detail := status.Message
			if detail == "" {
				detail = fmt.Sprintf("job %s %s", c.JobID, status.Status)
			}
			return st, done(pkgerrors.NewClusterFailedError(detail))
		default:
			return st, again(cfg.PollInterval)
		}
	})

	switch {
	case err == nil:
		s.logger.Debug("Clustering job finished", zap.String("job_id", c.JobID), zap.Int("polls", final.polls))
		return nil
	case ctx.Err() != nil:
		return pkgerrors.NewCancelledError("poll_job", ctx.Err())
	case pollCtx.Err() != nil:
		s.logger.Warn("Clustering job deadline reached",
			zap.String("job_id", c.JobID),
			zap.Duration("deadline", cfg.JobDeadline),
			zap.String("last_status", final.status.Status),
			zap.Int("polls", final.polls),
		)
		return pkgerrors.NewTimedOutError(c.JobID)
	default:
		return err
	}
}

// Run implements ports.ClusteringSession.
func (s *Session) Run(ctx context.Context, g *network.Graph, params ports.ClusteringParams) (*ports.ClusteringRun, error) {
	idle, err := s.Start()
	if err != nil {
		return nil, err
	}
	created, err := idle.CreateNetwork(ctx, g, params)
	if err != nil {
		return nil, err
	}
	styled, styleWarning := created.ApplyStyle(ctx, g, params)
	submitted, err := styled.SubmitClustering(ctx, params)
	if err != nil {
		return nil, err
	}
	partition, err := submitted.AwaitPartition(ctx)
	if err != nil {
		return nil, err
	}

	assignment, stale := network.ReconcilePartition(g, partition)
	run := &ports.ClusteringRun{Assignment: assignment, StaleAssignments: stale}
	if styleWarning != nil {
		run.Warnings = append(run.Warnings, *styleWarning)
	}
	if stale > 0 {
		s.logger.Warn("Discarded assignments for unknown nodes", zap.Int("count", stale))
		run.Warnings = append(run.Warnings, ports.Warning{
			Code:    ports.WarningStaleAssignments,
			Message: "clustering result named nodes that are not in the graph",
			Count:   stale,
		})
	}
	return run, nil
}

// Release deletes the remote network. Only the first call reaches the
// service; later calls and calls before a network exists return nil. A
// network already gone counts as released.
func (s *Session) Release(ctx context.Context) error {
	s.mu.Lock()
	if s.released || s.suid == 0 {
		s.released = true
		s.mu.Unlock()
		return nil
	}
	s.released = true
	suid := s.suid
	s.mu.Unlock()

	path := "/v1/networks/" + strconv.FormatInt(suid, 10)
	err := s.client.call(ctx, "release_network", http.MethodDelete, path, nil, nil, nil)
	if err != nil && statusOf(err) != http.StatusNotFound {
		return s.client.unreachable(err)
	}
	s.logger.Debug("Network released", zap.Int64("network_suid", suid))
	return nil
}

var _ ports.ClusteringSession = (*Session)(nil)
var _ ports.ClusteringService = (*Client)(nil)
