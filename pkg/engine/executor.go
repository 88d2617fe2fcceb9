package engine

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Executor runs plans against the orchestration tool.
// Stacks are processed strictly one at a time in plan order. A failed
// action is recorded and the batch moves on to the next stack.
type Executor struct {
	orchestrator Orchestrator
	recorder     RunRecorder
	observer     Observer
	metrics      MetricsRecorder
	tracer       trace.Tracer
	logger       zerolog.Logger
	newID        func() string
	now          func() time.Time
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithRecorder persists every executed run.
func WithRecorder(r RunRecorder) ExecutorOption {
	return func(e *Executor) { e.recorder = r }
}

// WithObserver reports progress as actions run.
func WithObserver(o Observer) ExecutorOption {
	return func(e *Executor) { e.observer = o }
}

// WithMetrics records action and batch measurements.
func WithMetrics(m MetricsRecorder) ExecutorOption {
	return func(e *Executor) { e.metrics = m }
}

// WithTracer sets the tracer used for batch and action spans.
func WithTracer(t trace.Tracer) ExecutorOption {
	return func(e *Executor) { e.tracer = t }
}

// WithLogger sets the executor logger.
func WithLogger(l zerolog.Logger) ExecutorOption {
	return func(e *Executor) { e.logger = l }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) ExecutorOption {
	return func(e *Executor) { e.now = now }
}

// WithIDGenerator overrides run ID generation.
func WithIDGenerator(gen func() string) ExecutorOption {
	return func(e *Executor) { e.newID = gen }
}

// NewExecutor creates an executor for orchestrator.
func NewExecutor(orchestrator Orchestrator, opts ...ExecutorOption) *Executor {
	e := &Executor{
		orchestrator: orchestrator,
		tracer:       noop.NewTracerProvider().Tracer("composer"),
		logger:       zerolog.Nop(),
		newID:        func() string { return uuid.New().String() },
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs every phase of plan and returns the run record.
//
// Tool calls use a context detached from ctx's cancellation, so a batch
// that has started always runs to the end. The returned error is non-nil
// only for an invalid plan; per-stack failures are reported in the run.
func (e *Executor) Execute(ctx context.Context, plan *Plan) (*Run, error) {
	if plan == nil {
		return nil, NewPermanentError("plan is nil", nil).WithCode(ErrCodeValidation)
	}

	run := &Run{
		ID:        e.newID(),
		Operation: plan.Operation,
		Target:    plan.Target,
		StartedAt: e.now(),
		Outcomes:  make([]Outcome, 0, len(plan.Stacks)*len(plan.Phases)),
	}

	logger := e.logger.With().
		Str("run_id", run.ID).
		Str("operation", plan.Operation.String()).
		Str("target", plan.Target.String()).
		Logger()

	execCtx := context.WithoutCancel(ctx)
	execCtx, span := e.tracer.Start(execCtx, "batch.execute",
		trace.WithAttributes(
			attribute.String("run.id", run.ID),
			attribute.String("batch.operation", plan.Operation.String()),
			attribute.String("batch.target", plan.Target.String()),
			attribute.Int("batch.size", len(plan.Stacks)),
		),
	)
	defer span.End()

	logger.Debug().Int("stacks", len(plan.Stacks)).Msg("Batch started")

	for _, phase := range plan.Phases {
		if e.observer != nil {
			e.observer.PhaseStarted(phase)
		}
		for _, stack := range phase.Stacks {
			outcome := e.runAction(execCtx, logger, phase.Action, stack)
			run.Outcomes = append(run.Outcomes, outcome)
		}
	}

	for _, skipped := range plan.Skipped {
		run.Outcomes = append(run.Outcomes, e.skip(logger, skipped))
	}

	run.CompletedAt = e.now()
	run.Status = runStatus(run)

	span.SetAttributes(
		attribute.String("batch.status", string(run.Status)),
		attribute.Int("batch.succeeded", run.Succeeded()),
		attribute.Int("batch.failed", run.Failed()),
	)
	if run.Status == RunStatusFailed || run.Status == RunStatusPartial {
		span.SetStatus(codes.Error, "one or more stacks failed")
	} else {
		span.SetStatus(codes.Ok, "")
	}

	if e.metrics != nil {
		e.metrics.RecordBatch(plan.Operation.String(), string(run.Status), run.Duration())
	}

	logger.Info().
		Str("status", string(run.Status)).
		Int("succeeded", run.Succeeded()).
		Int("failed", run.Failed()).
		Dur("duration", run.Duration()).
		Msg("Batch completed")

	if e.recorder != nil {
		if err := e.recorder.RecordRun(execCtx, run); err != nil {
			logger.Warn().Err(err).Msg("Failed to record run history")
		}
	}

	return run, nil
}

func (e *Executor) runAction(ctx context.Context, logger zerolog.Logger, action Action, stack *Stack) Outcome {
	if e.observer != nil {
		e.observer.ActionStarted(action, stack)
	}

	ctx, span := e.tracer.Start(ctx, "stack."+string(action),
		trace.WithAttributes(
			attribute.String("stack.name", stack.Name),
			attribute.String("stack.path", stack.Path),
		),
	)
	defer span.End()

	started := e.now()
	var err error
	switch action {
	case ActionStart:
		err = e.orchestrator.Start(ctx, stack)
	case ActionStop:
		err = e.orchestrator.Stop(ctx, stack)
	}
	duration := e.now().Sub(started)

	outcome := Outcome{
		Stack:    stack.Name,
		Action:   action,
		Success:  err == nil,
		Duration: duration,
	}

	result := "success"
	if err != nil {
		result = "failure"
		outcome.Err = NewExecutionError(stack.Name, action, err)
		outcome.Error = err.Error()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Warn().
			Err(err).
			Str("stack", stack.Name).
			Str("action", string(action)).
			Dur("duration", duration).
			Msg("Stack action failed")
	} else {
		span.SetStatus(codes.Ok, "")
		logger.Debug().
			Str("stack", stack.Name).
			Str("action", string(action)).
			Dur("duration", duration).
			Msg("Stack action completed")
	}

	if e.metrics != nil {
		e.metrics.RecordStackAction(string(action), result, duration)
	}
	if e.observer != nil {
		e.observer.ActionFinished(outcome)
	}

	return outcome
}

// skip reports a stack that was dropped at planning time as a failed start.
func (e *Executor) skip(logger zerolog.Logger, skipped SkippedStack) Outcome {
	if e.observer != nil {
		e.observer.ActionStarted(ActionStart, skipped.Stack)
	}

	outcome := Outcome{
		Stack:  skipped.Stack.Name,
		Action: ActionStart,
		Err:    skipped.Err,
	}
	if skipped.Err != nil {
		outcome.Error = skipped.Err.Error()
	}

	logger.Warn().
		Err(skipped.Err).
		Str("stack", skipped.Stack.Name).
		Msg("Stack skipped, dependencies unresolved")

	if e.metrics != nil {
		e.metrics.RecordStackAction(string(ActionStart), "skipped", 0)
	}
	if e.observer != nil {
		e.observer.ActionFinished(outcome)
	}

	return outcome
}

func runStatus(run *Run) RunStatus {
	outcomes := run.StackOutcomes()
	if len(outcomes) == 0 {
		return RunStatusEmpty
	}
	failed := run.Failed()
	switch {
	case failed == 0:
		return RunStatusSucceeded
	case failed == len(outcomes):
		return RunStatusFailed
	default:
		return RunStatusPartial
	}
}
