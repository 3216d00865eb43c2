// Package orchestration runs one clustering cycle for a selection: fetch,
// assemble, cluster remotely, and persist the result.
package orchestration

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/NikolaosSamperis/PlaqueMS-project/application/ports"
	"github.com/NikolaosSamperis/PlaqueMS-project/application/sagas"
	"github.com/NikolaosSamperis/PlaqueMS-project/application/services"
	"github.com/NikolaosSamperis/PlaqueMS-project/domain/events"
	"github.com/NikolaosSamperis/PlaqueMS-project/domain/network"
	domainservices "github.com/NikolaosSamperis/PlaqueMS-project/domain/services"
	pkgerrors "github.com/NikolaosSamperis/PlaqueMS-project/pkg/errors"
)

// GateKey is the SessionGate key guarding the clustering service.
const GateKey = "clustering-service"

// Outcome is the terminal state of a cycle.
type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeFailed    Outcome = "failed"
	OutcomeTimedOut  Outcome = "timed_out"
)

// Result is the single terminal outcome of a cycle. Graph, Assignment and
// Summary are set only when Outcome is OutcomeCompleted; Err, Kind and
// Detail only otherwise.
type Result struct {
	Outcome      Outcome
	CycleID      string
	SelectionKey string

	Graph      *network.Graph
	Assignment *network.ClusterAssignment
	Summary    *services.Summary

	Kind   pkgerrors.ErrorType
	Detail string
	Err    error

	// Handle is the remote session as it stood when the cycle ended. For a
	// timed out cycle it names the job that may still finish remotely.
	Handle   ports.SessionHandle
	Duration time.Duration
}

// Observer records cycle outcomes.
type Observer interface {
	ObserveOrchestration(outcome string, duration time.Duration)
	ObserveStep(step string, duration time.Duration, err error)
	ObserveAssembly(report domainservices.AssemblyReport)
	ObserveStaleAssignments(count int)
}

// Orchestrator sequences fetch, assembly, remote clustering and
// reconciliation. It holds no per-cycle state and may run cycles
// concurrently.
type Orchestrator struct {
	fetcher    *services.GraphDataFetcher
	assembler  *domainservices.GraphAssembler
	clustering ports.ClusteringService
	reconciler *services.ResultReconciler
	params     ports.ClusteringParamsSource
	gate       ports.SessionGate
	publisher  ports.EventPublisher
	observer   Observer
	logger     *zap.Logger
	now        func() time.Time
}

// NewOrchestrator creates a new orchestrator. gate, publisher and observer
// may be nil.
func NewOrchestrator(
	fetcher *services.GraphDataFetcher,
	assembler *domainservices.GraphAssembler,
	clustering ports.ClusteringService,
	reconciler *services.ResultReconciler,
	params ports.ClusteringParamsSource,
	gate ports.SessionGate,
	publisher ports.EventPublisher,
	observer Observer,
	logger *zap.Logger,
) *Orchestrator {
	return &Orchestrator{
		fetcher:    fetcher,
		assembler:  assembler,
		clustering: clustering,
		reconciler: reconciler,
		params:     params,
		gate:       gate,
		publisher:  publisher,
		observer:   observer,
		logger:     logger,
		now:        time.Now,
	}
}

// cycle is the state shared by the steps of one run.
type cycle struct {
	selection network.Selection
	params    ports.ClusteringParams

	fetched  *services.FetchResult
	graph    *network.Graph
	report   domainservices.AssemblyReport
	warnings []ports.Warning

	session  ports.ClusteringSession
	released bool
	run      *ports.ClusteringRun
	summary  *services.Summary
}

// Run executes one cycle. It never returns a partial result: the Result is
// either Completed with the graph, assignment and summary, or Failed or
// TimedOut with the error that ended the cycle.
func (o *Orchestrator) Run(ctx context.Context, sel network.Selection) *Result {
	start := o.now()
	c := &cycle{selection: sel, params: o.params.Current()}

	saga := sagas.NewSaga[cycle]("clustering_cycle", o.logger).
		AddStep("fetch", o.fetch).
		AddStep("assemble", o.assemble).
		AddStep("cluster", o.cluster).
		AddStep("reconcile", o.reconcile).
		Finally(o.releaseSession)
	if o.observer != nil {
		saga.Observe(o.observer.ObserveStep)
	}

	logger := o.logger.With(
		zap.String("cycle_id", saga.GetID()),
		zap.String("selection_key", sel.Key()),
	)
	logger.Info("Clustering cycle started", zap.String("algorithm", c.params.Algorithm))

	err := saga.Execute(ctx, c)

	result := &Result{
		CycleID:      saga.GetID(),
		SelectionKey: sel.Key(),
		Duration:     o.now().Sub(start),
	}
	if c.session != nil {
		result.Handle = c.session.Handle()
	}

	switch {
	case err == nil:
		result.Outcome = OutcomeCompleted
		result.Graph = c.graph
		result.Assignment = c.run.Assignment
		result.Summary = c.summary
		logger.Info("Clustering cycle completed",
			zap.Int("cluster_count", c.summary.ClusterCount),
			zap.Int("largest_cluster_size", c.summary.LargestClusterSize),
			zap.Int("unassigned_count", c.summary.UnassignedCount),
			zap.Int("warnings", len(c.summary.Warnings)),
			zap.Duration("duration", result.Duration),
		)
	case pkgerrors.IsType(err, pkgerrors.ErrorTypeTimedOut):
		result.Outcome = OutcomeTimedOut
		o.fillError(result, err)
		logger.Warn("Clustering cycle timed out",
			zap.Int64("network_suid", result.Handle.NetworkSUID),
			zap.String("job_id", result.Handle.JobID),
			zap.Duration("duration", result.Duration),
		)
	default:
		result.Outcome = OutcomeFailed
		o.fillError(result, err)
		logger.Warn("Clustering cycle failed",
			zap.String("failed_step", saga.FailedStep()),
			zap.String("kind", string(result.Kind)),
			zap.Error(err),
		)
	}

	if o.observer != nil {
		o.observer.ObserveOrchestration(string(result.Outcome), result.Duration)
	}
	o.publish(context.WithoutCancel(ctx), result, logger)
	return result
}

func (o *Orchestrator) fillError(result *Result, err error) {
	result.Err = err
	if appErr := pkgerrors.GetAppError(err); appErr != nil {
		result.Kind = appErr.Type
		result.Detail = appErr.Message
		return
	}
	result.Kind = pkgerrors.ErrorTypeInternal
	result.Detail = err.Error()
}

func (o *Orchestrator) fetch(ctx context.Context, c *cycle) error {
	fetched, err := o.fetcher.Fetch(ctx, c.selection)
	if err != nil {
		return err
	}
	c.fetched = fetched
	return nil
}

func (o *Orchestrator) assemble(_ context.Context, c *cycle) error {
	g, report, err := o.assembler.Assemble(c.fetched.Nodes, c.fetched.Edges)
	c.report = report
	if o.observer != nil {
		o.observer.ObserveAssembly(report)
	}
	if err != nil {
		return err
	}
	c.graph = g
	c.warnings = append(c.warnings, assemblyWarnings(report)...)
	return nil
}

func assemblyWarnings(report domainservices.AssemblyReport) []ports.Warning {
	var warnings []ports.Warning
	if report.DanglingEdgesDropped > 0 {
		warnings = append(warnings, ports.Warning{
			Code:    ports.WarningDanglingEdges,
			Message: "interaction edges referenced proteins outside the selection",
			Count:   report.DanglingEdgesDropped,
		})
	}
	if report.SelfLoopsDropped > 0 {
		warnings = append(warnings, ports.Warning{
			Code:    ports.WarningSelfLoops,
			Message: "self interactions were dropped",
			Count:   report.SelfLoopsDropped,
		})
	}
	if report.InvalidEdgesDropped > 0 {
		warnings = append(warnings, ports.Warning{
			Code:    ports.WarningInvalidEdges,
			Message: "edges with blank endpoints or non-finite weights were dropped",
			Count:   report.InvalidEdgesDropped,
		})
	}
	if report.InvalidAttributesDropped > 0 {
		warnings = append(warnings, ports.Warning{
			Code:    ports.WarningInvalidAttrs,
			Message: "non-finite protein annotations were dropped",
			Count:   report.InvalidAttributesDropped,
		})
	}
	return warnings
}

// cluster holds the session gate for the whole remote exchange, including
// the release of the network.
func (o *Orchestrator) cluster(ctx context.Context, c *cycle) error {
	if o.gate != nil {
		unlock, err := o.gate.Acquire(ctx, GateKey)
		if err != nil {
			if ctx.Err() != nil {
				return pkgerrors.NewCancelledError("acquire_session_gate", ctx.Err())
			}
			return err
		}
		defer func() {
			if err := unlock(context.WithoutCancel(ctx)); err != nil {
				o.logger.Warn("Failed to release session gate", zap.Error(err))
			}
		}()
	}

	c.session = o.clustering.NewSession(c.selection.NetworkTitle())
	defer o.releaseSession(context.WithoutCancel(ctx), c)

	run, err := c.session.Run(ctx, c.graph, c.params)
	if err != nil {
		return err
	}
	c.run = run
	c.warnings = append(c.warnings, run.Warnings...)
	if o.observer != nil && run.StaleAssignments > 0 {
		o.observer.ObserveStaleAssignments(run.StaleAssignments)
	}
	return nil
}

// releaseSession makes the single best-effort release attempt for the
// cycle. A failure is logged and never changes the outcome.
func (o *Orchestrator) releaseSession(ctx context.Context, c *cycle) {
	if c.session == nil || c.released {
		return
	}
	c.released = true
	if err := c.session.Release(ctx); err != nil {
		o.logger.Warn("Failed to release clustering session",
			zap.String("selection_key", c.selection.Key()),
			zap.Int64("network_suid", c.session.Handle().NetworkSUID),
			zap.Error(err),
		)
	}
}

func (o *Orchestrator) reconcile(ctx context.Context, c *cycle) error {
	summary, err := o.reconciler.Reconcile(ctx, c.selection, c.graph, c.run.Assignment, c.warnings)
	if err != nil {
		return err
	}
	c.summary = summary
	return nil
}

func (o *Orchestrator) publish(ctx context.Context, result *Result, logger *zap.Logger) {
	if o.publisher == nil {
		return
	}

	ts := o.now()
	var event events.DomainEvent
	switch result.Outcome {
	case OutcomeCompleted:
		e := events.NewClusteringCompleted(result.SelectionKey, result.CycleID, ts)
		e.NodeCount = result.Summary.NodeCount
		e.EdgeCount = result.Summary.EdgeCount
		e.ClusterCount = result.Summary.ClusterCount
		e.LargestClusterSize = result.Summary.LargestClusterSize
		e.UnassignedCount = result.Summary.UnassignedCount
		e.Warnings = len(result.Summary.Warnings)
		event = e
	case OutcomeTimedOut:
		event = events.NewClusteringTimedOut(result.SelectionKey, result.CycleID,
			result.Handle.NetworkSUID, result.Handle.JobID, ts)
	default:
		event = events.NewClusteringFailed(result.SelectionKey, result.CycleID,
			string(result.Kind), result.Detail, pkgerrors.Retryable(result.Err), ts)
	}

	if err := o.publisher.Publish(ctx, event); err != nil {
		logger.Warn("Failed to publish clustering event",
			zap.String("event_type", event.GetEventType()),
			zap.Error(err),
		)
	}
}

// AsError returns nil for a completed result and the terminal error
// otherwise.
func (r *Result) AsError() error {
	if r.Outcome == OutcomeCompleted {
		return nil
	}
	if r.Err != nil {
		return r.Err
	}
	return errors.New(string(r.Outcome))
}
