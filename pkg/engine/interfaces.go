package engine

import (
	"context"
	"time"
)

// MetadataStore persists a stack's metadata record.
// A missing metadata file is not an error on load; stacks without one run
// with defaults. Save creates the file when needed.
type MetadataStore interface {
	// Save writes the stack's metadata back to its metadata file.
	Save(ctx context.Context, stack *Stack) error
}

// Orchestrator drives the external container orchestration tool.
// Both calls block until the tool returns and report only pass/fail.
type Orchestrator interface {
	// Start brings the stack's services up.
	Start(ctx context.Context, stack *Stack) error

	// Stop tears the stack's services down.
	Stop(ctx context.Context, stack *Stack) error
}

// StatusReporter reports the container state of a stack.
type StatusReporter interface {
	Status(ctx context.Context, stack *Stack) (StackStatus, error)
}

// RunRecorder persists executed runs.
type RunRecorder interface {
	RecordRun(ctx context.Context, run *Run) error
}

// Observer is notified as the executor walks a plan.
type Observer interface {
	// PhaseStarted is called before the first action of a phase.
	PhaseStarted(phase Phase)

	// ActionStarted is called before an action is sent to the orchestrator.
	ActionStarted(action Action, stack *Stack)

	// ActionFinished is called with the outcome of each action.
	ActionFinished(outcome Outcome)
}

// MetricsRecorder receives execution measurements.
type MetricsRecorder interface {
	RecordStackAction(action, result string, duration time.Duration)
	RecordBatch(operation, status string, duration time.Duration)
}
