package engine

import (
	"fmt"
	"slices"
	"time"
)

// Stack represents one deployable unit: a directory holding a compose
// definition plus an optional metadata file.
type Stack struct {
	// Name is the unique identifier of the stack (its directory name).
	Name string `json:"name"`

	// Path is the stack directory.
	Path string `json:"path"`

	// ComposeFile is the compose definition used for the stack. When no
	// definition exists it holds the expected location.
	ComposeFile string `json:"compose_file"`

	// MetadataFile is the location of the stack's metadata file.
	MetadataFile string `json:"metadata_file"`

	// HasCompose reports whether ComposeFile exists on disk.
	HasCompose bool `json:"has_compose"`

	// HasMetadata reports whether MetadataFile exists on disk.
	HasMetadata bool `json:"has_metadata"`

	// Category and Subcategory classify the stack. Subcategory is only
	// meaningful when Category is set.
	Category    string `json:"category,omitempty"`
	Subcategory string `json:"subcategory,omitempty"`

	// Tags are free-form labels. Each tag appears at most once.
	Tags []string `json:"tags,omitempty"`

	// DependsOn lists stacks that must be running before this one starts.
	DependsOn []string `json:"depends_on,omitempty"`

	// Priority is the ordering hint: lower starts earlier and stops later.
	Priority int `json:"priority"`

	// AutoStart marks the stack for the autostart command.
	AutoStart bool `json:"auto_start"`

	// Critical is an advisory flag shown to operators.
	Critical bool `json:"critical"`

	Description    string `json:"description,omitempty"`
	Owner          string `json:"owner,omitempty"`
	Documentation  string `json:"documentation,omitempty"`
	HealthCheckURL string `json:"health_check_url,omitempty"`
}

// Clone returns a deep copy of the stack.
func (s *Stack) Clone() *Stack {
	c := *s
	c.Tags = slices.Clone(s.Tags)
	c.DependsOn = slices.Clone(s.DependsOn)
	return &c
}

// CategoryLabel renders the category as "category/subcategory", or just the
// category when no subcategory is set.
func (s *Stack) CategoryLabel() string {
	return FormatCategory(s.Category, s.Subcategory)
}

// HasTag reports whether the stack carries tag (exact match).
func (s *Stack) HasTag(tag string) bool {
	return slices.Contains(s.Tags, tag)
}

// AddTags appends tags that are not present yet and returns the ones added.
func (s *Stack) AddTags(tags ...string) []string {
	var added []string
	for _, t := range tags {
		if t == "" || s.HasTag(t) {
			continue
		}
		s.Tags = append(s.Tags, t)
		added = append(added, t)
	}
	return added
}

// RemoveTags drops the given tags and returns the ones that were present.
func (s *Stack) RemoveTags(tags ...string) []string {
	var removed []string
	kept := s.Tags[:0:0]
	for _, t := range s.Tags {
		if slices.Contains(tags, t) {
			removed = append(removed, t)
			continue
		}
		kept = append(kept, t)
	}
	s.Tags = kept
	return removed
}

// FormatCategory joins a category and an optional subcategory.
func FormatCategory(category, subcategory string) string {
	if subcategory != "" {
		return category + "/" + subcategory
	}
	return category
}

// Operation is a lifecycle command applied to a batch of stacks.
type Operation int

const (
	// OperationUp brings stacks up.
	OperationUp Operation = iota + 1

	// OperationDown tears stacks down.
	OperationDown

	// OperationRestart tears stacks down and brings them back up.
	OperationRestart
)

// String returns the command name of the operation.
func (o Operation) String() string {
	switch o {
	case OperationUp:
		return "up"
	case OperationDown:
		return "down"
	case OperationRestart:
		return "restart"
	default:
		return fmt.Sprintf("operation(%d)", int(o))
	}
}

// MarshalText encodes the operation by name.
func (o Operation) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// Action is a single call against the orchestration tool.
type Action string

const (
	ActionStart Action = "start"
	ActionStop  Action = "stop"
)

// TargetMode selects how a command's target is resolved into stacks.
type TargetMode int

const (
	// TargetStack selects a single stack by name.
	TargetStack TargetMode = iota + 1

	// TargetAll selects every stack in the registry.
	TargetAll

	// TargetCategory selects stacks by category and optional subcategory.
	TargetCategory

	// TargetTag selects stacks carrying a tag.
	TargetTag

	// TargetAutoStart selects stacks flagged auto_start.
	TargetAutoStart
)

// Target is the selection part of a lifecycle command.
type Target struct {
	Mode        TargetMode `json:"mode"`
	Name        string     `json:"name,omitempty"`
	Category    string     `json:"category,omitempty"`
	Subcategory string     `json:"subcategory,omitempty"`
	Tag         string     `json:"tag,omitempty"`
}

// StackTarget returns a target for one named stack.
func StackTarget(name string) Target { return Target{Mode: TargetStack, Name: name} }

// AllTarget returns a target for every stack.
func AllTarget() Target { return Target{Mode: TargetAll} }

// CategoryTarget returns a target for a category and optional subcategory.
func CategoryTarget(category, subcategory string) Target {
	return Target{Mode: TargetCategory, Category: category, Subcategory: subcategory}
}

// TagTarget returns a target for a tag.
func TagTarget(tag string) Target { return Target{Mode: TargetTag, Tag: tag} }

// AutoStartTarget returns a target for the auto-start stacks.
func AutoStartTarget() Target { return Target{Mode: TargetAutoStart} }

// String renders the target the way it is recorded in run history.
func (t Target) String() string {
	switch t.Mode {
	case TargetStack:
		return "stack:" + t.Name
	case TargetAll:
		return "all"
	case TargetCategory:
		return "category:" + FormatCategory(t.Category, t.Subcategory)
	case TargetTag:
		return "tag:" + t.Tag
	case TargetAutoStart:
		return "autostart"
	default:
		return "unknown"
	}
}

// Phase is an ordered list of stacks that receive the same action.
type Phase struct {
	Action Action   `json:"action"`
	Stacks []*Stack `json:"stacks"`
}

// Plan is the concrete, ordered work for one lifecycle command.
type Plan struct {
	// Operation is the lifecycle command.
	Operation Operation `json:"operation"`

	// Target is the selection the plan was built from.
	Target Target `json:"target"`

	// Stacks is the batch: every stack the command touches, in the order of
	// the final phase.
	Stacks []*Stack `json:"stacks"`

	// Phases are executed in order. Restart has a stop phase followed by a
	// start phase; up and down have a single phase.
	Phases []Phase `json:"phases"`

	// Skipped are selected stacks left out of a batch because their
	// dependencies could not be resolved.
	Skipped []SkippedStack `json:"skipped,omitempty"`
}

// SkippedStack is a stack dropped from a plan, with the reason.
type SkippedStack struct {
	Stack *Stack `json:"stack"`
	Err   error  `json:"-"`
}

// RunStatus represents the overall status of an executed batch.
type RunStatus string

const (
	RunStatusSucceeded RunStatus = "succeeded"
	RunStatusPartial   RunStatus = "partial"
	RunStatusFailed    RunStatus = "failed"
	RunStatusEmpty     RunStatus = "empty"
)

// Outcome is the result of one action against one stack.
type Outcome struct {
	Stack    string        `json:"stack"`
	Action   Action        `json:"action"`
	Success  bool          `json:"success"`
	Err      error         `json:"-"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

// StackOutcome folds every action performed on a stack into one result.
type StackOutcome struct {
	Stack   string `json:"stack"`
	Success bool   `json:"success"`
}

// Run is the record of an executed plan.
type Run struct {
	ID          string    `json:"id"`
	Operation   Operation `json:"operation"`
	Target      Target    `json:"target"`
	Status      RunStatus `json:"status"`
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`
	Outcomes    []Outcome `json:"outcomes"`
}

// Duration returns how long the run took.
func (r *Run) Duration() time.Duration {
	return r.CompletedAt.Sub(r.StartedAt)
}

// StackOutcomes returns one entry per stack in first-touched order. A stack
// succeeds only if every action performed on it succeeded.
func (r *Run) StackOutcomes() []StackOutcome {
	index := make(map[string]int)
	var out []StackOutcome
	for _, o := range r.Outcomes {
		i, ok := index[o.Stack]
		if !ok {
			index[o.Stack] = len(out)
			out = append(out, StackOutcome{Stack: o.Stack, Success: o.Success})
			continue
		}
		out[i].Success = out[i].Success && o.Success
	}
	return out
}

// Succeeded returns the number of stacks whose actions all succeeded.
func (r *Run) Succeeded() int {
	n := 0
	for _, o := range r.StackOutcomes() {
		if o.Success {
			n++
		}
	}
	return n
}

// Failed returns the number of stacks with at least one failed action.
func (r *Run) Failed() int {
	return len(r.StackOutcomes()) - r.Succeeded()
}

// StatusState is the coarse container state of a stack.
type StatusState string

const (
	StatusRunning StatusState = "running"
	StatusPartial StatusState = "partial"
	StatusStopped StatusState = "stopped"
	StatusUnknown StatusState = "unknown"
)

// StackStatus is the container summary reported by the orchestration tool.
type StackStatus struct {
	State      StatusState `json:"status"`
	Running    int         `json:"running"`
	Containers int         `json:"containers"`
}

// NewStackStatus derives the state from container counts.
func NewStackStatus(running, containers int) StackStatus {
	st := StackStatus{Running: running, Containers: containers}
	switch {
	case containers == 0 || running == 0:
		st.State = StatusStopped
	case running < containers:
		st.State = StatusPartial
	default:
		st.State = StatusRunning
	}
	return st
}
