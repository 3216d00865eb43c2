package sagas

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	pkgerrors "github.com/NikolaosSamperis/PlaqueMS-project/pkg/errors"
)

// SagaStep represents a single step in a saga operating on shared state S
type SagaStep[S any] struct {
	Name    string
	Execute func(ctx context.Context, state *S) error
}

// SagaState represents the current state of a saga execution
type SagaState string

const (
	SagaStatePending   SagaState = "PENDING"
	SagaStateRunning   SagaState = "RUNNING"
	SagaStateCompleted SagaState = "COMPLETED"
	SagaStateFailed    SagaState = "FAILED"
)

// StepObserver is notified after every step.
type StepObserver func(step string, duration time.Duration, err error)

// Saga runs steps in order and stops at the first failure. Finalizers run
// exactly once after the last executed step, whether the saga succeeded or not.
type Saga[S any] struct {
	id          string
	name        string
	steps       []SagaStep[S]
	finalizers  []func(ctx context.Context, state *S)
	observer    StepObserver
	state       SagaState
	currentStep int
	failedStep  string
	logger      *zap.Logger
	tracer      trace.Tracer
}

// NewSaga creates a new saga instance
func NewSaga[S any](name string, logger *zap.Logger) *Saga[S] {
	return &Saga[S]{
		id:     uuid.NewString(),
		name:   name,
		state:  SagaStatePending,
		logger: logger,
		tracer: otel.Tracer("plaquems/sagas"),
	}
}

// AddStep adds a step to the saga
func (s *Saga[S]) AddStep(name string, execute func(ctx context.Context, state *S) error) *Saga[S] {
	s.steps = append(s.steps, SagaStep[S]{Name: name, Execute: execute})
	return s
}

// Finally registers a function that runs once when the saga ends.
func (s *Saga[S]) Finally(fn func(ctx context.Context, state *S)) *Saga[S] {
	s.finalizers = append(s.finalizers, fn)
	return s
}

// Observe sets the step observer.
func (s *Saga[S]) Observe(observer StepObserver) *Saga[S] {
	s.observer = observer
	return s
}

// Execute runs the saga. The returned error is the failing step's error,
// unchanged, so callers can classify it.
func (s *Saga[S]) Execute(ctx context.Context, state *S) error {
	s.state = SagaStateRunning
	ctx, span := s.tracer.Start(ctx, s.name, trace.WithAttributes(
		attribute.String("saga.id", s.id),
		attribute.Int("saga.steps", len(s.steps)),
	))
	defer span.End()

	s.logger.Debug("Starting saga execution",
		zap.String("saga_id", s.id),
		zap.String("saga_name", s.name),
		zap.Int("total_steps", len(s.steps)),
	)

	defer s.finalize(ctx, state)

	for i, step := range s.steps {
		s.currentStep = i
		if err := ctx.Err(); err != nil {
			s.fail(span, step.Name, err)
			return pkgerrors.NewCancelledError(step.Name, err)
		}

		if err := s.runStep(ctx, step, state); err != nil {
			s.fail(span, step.Name, err)
			return err
		}
	}

	s.state = SagaStateCompleted
	s.logger.Debug("Saga completed successfully",
		zap.String("saga_id", s.id),
		zap.String("saga_name", s.name),
		zap.Int("completed_steps", len(s.steps)),
	)
	return nil
}

func (s *Saga[S]) runStep(ctx context.Context, step SagaStep[S], state *S) (err error) {
	ctx, span := s.tracer.Start(ctx, fmt.Sprintf("%s.%s", s.name, step.Name))
	defer span.End()

	start := time.Now()
	defer func() {
		if rec := recover(); rec != nil {
			err = pkgerrors.NewInternalError(fmt.Sprintf("step %s panicked: %v", step.Name, rec))
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, string(pkgerrors.TypeOf(err)))
		}
		if s.observer != nil {
			s.observer(step.Name, time.Since(start), err)
		}
	}()

	s.logger.Debug("Executing saga step",
		zap.String("saga_id", s.id),
		zap.String("step_name", step.Name),
		zap.Int("step_number", s.currentStep+1),
	)
	return step.Execute(ctx, state)
}

func (s *Saga[S]) fail(span trace.Span, step string, err error) {
	s.state = SagaStateFailed
	s.failedStep = step
	span.SetStatus(codes.Error, step)
	s.logger.Warn("Saga step failed",
		zap.String("saga_id", s.id),
		zap.String("saga_name", s.name),
		zap.String("step_name", step),
		zap.Error(err),
	)
}

// finalize runs finalizers in reverse registration order on a context that
// survives caller cancellation, so cleanup still reaches remote services.
func (s *Saga[S]) finalize(ctx context.Context, state *S) {
	cleanupCtx := context.WithoutCancel(ctx)
	for i := len(s.finalizers) - 1; i >= 0; i-- {
		s.finalizers[i](cleanupCtx, state)
	}
}

// GetState returns the current state of the saga
func (s *Saga[S]) GetState() SagaState {
	return s.state
}

// GetID returns the saga ID
func (s *Saga[S]) GetID() string {
	return s.id
}

// FailedStep returns the name of the step that failed, if any
func (s *Saga[S]) FailedStep() string {
	return s.failedStep
}
