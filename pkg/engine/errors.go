package engine

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorClass represents the classification of an error for reporting and retry decisions.
type ErrorClass string

const (
	// ErrorClassTransient indicates a failure that may succeed when attempted again.
	// Examples: the compose tool exited non-zero, the container daemon was unreachable.
	ErrorClassTransient ErrorClass = "transient"

	// ErrorClassPermanent indicates a failure that will not go away without a change
	// to the stacks or their metadata.
	// Examples: unknown stack name, circular or missing dependency.
	ErrorClassPermanent ErrorClass = "permanent"
)

// Common error codes.
const (
	ErrCodeNotFound           = "NOT_FOUND"
	ErrCodeCircularDependency = "CIRCULAR_DEPENDENCY"
	ErrCodeMissingDependency  = "MISSING_DEPENDENCY"
	ErrCodeExecutionFailed    = "EXECUTION_FAILED"
	ErrCodeValidation         = "VALIDATION_ERROR"
	ErrCodeDuplicateStack     = "DUPLICATE_STACK"
	ErrCodeInternal           = "INTERNAL_ERROR"
	ErrCodePersistenceFailed  = "PERSISTENCE_FAILED"
)

// EngineError represents a classified error with context.
// nolint:revive // EngineError is intentionally named to distinguish from standard errors
type EngineError struct {
	// Class is the error classification.
	Class ErrorClass `json:"class"`

	// Message is the human-readable error message.
	Message string `json:"message"`

	// Code is an error code for programmatic handling.
	Code string `json:"code,omitempty"`

	// Stack is the stack the error relates to, if any.
	Stack string `json:"stack,omitempty"`

	// Operation is the action being performed when the error occurred.
	Operation string `json:"operation,omitempty"`

	// Err is the underlying error that caused this error.
	Err error `json:"-"`

	// Details contains additional context-specific information.
	Details map[string]interface{} `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *EngineError) Error() string {
	msg := e.Message
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying error for error chain inspection.
func (e *EngineError) Unwrap() error {
	return e.Err
}

// Is implements error equality checking for errors.Is.
func (e *EngineError) Is(target error) bool {
	t, ok := target.(*EngineError)
	if !ok {
		return false
	}
	return e.Class == t.Class && e.Code == t.Code
}

// WithStack adds stack context to an error.
func (e *EngineError) WithStack(name string) *EngineError {
	e.Stack = name
	return e
}

// WithOperation adds operation context to an error.
func (e *EngineError) WithOperation(operation string) *EngineError {
	e.Operation = operation
	return e
}

// WithCode adds an error code to an error.
func (e *EngineError) WithCode(code string) *EngineError {
	e.Code = code
	return e
}

// WithDetail adds a detail field to the error context.
func (e *EngineError) WithDetail(key string, value interface{}) *EngineError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// NewTransientError creates a new transient error.
func NewTransientError(message string, err error) *EngineError {
	return &EngineError{
		Class:   ErrorClassTransient,
		Message: message,
		Err:     err,
	}
}

// NewPermanentError creates a new permanent error.
func NewPermanentError(message string, err error) *EngineError {
	return &EngineError{
		Class:   ErrorClassPermanent,
		Message: message,
		Err:     err,
	}
}

// NewNotFoundError reports that a named stack, category or tag does not exist.
// kind is the noun used in the message ("stack", "category", "tag").
func NewNotFoundError(kind, name string) *EngineError {
	title := kind
	if title != "" {
		title = strings.ToUpper(title[:1]) + title[1:]
	}
	return NewPermanentError(fmt.Sprintf("%s '%s' not found", title, name), nil).
		WithCode(ErrCodeNotFound).
		WithDetail("kind", kind).
		WithDetail("name", name)
}

// NewCircularDependencyError reports a dependency cycle. cycle lists the
// participating stacks with the first stack repeated at the end.
func NewCircularDependencyError(cycle []string) *EngineError {
	e := NewPermanentError(fmt.Sprintf("circular dependency detected: %s", formatCycle(cycle)), nil).
		WithCode(ErrCodeCircularDependency).
		WithDetail("cycle", append([]string(nil), cycle...))
	if len(cycle) > 0 {
		e.Stack = cycle[0]
	}
	return e
}

// NewMissingDependencyError reports that stack declares a dependency that is not in the registry.
func NewMissingDependencyError(stack, dependency string) *EngineError {
	return NewPermanentError(fmt.Sprintf("stack %s depends on missing stack %s", stack, dependency), nil).
		WithCode(ErrCodeMissingDependency).
		WithStack(stack).
		WithDetail("dependency", dependency)
}

// NewExecutionError reports that the orchestration tool failed an action for one stack.
func NewExecutionError(stack string, action Action, err error) *EngineError {
	return NewTransientError(fmt.Sprintf("failed to %s stack %s", action, stack), err).
		WithCode(ErrCodeExecutionFailed).
		WithStack(stack).
		WithOperation(string(action))
}

// IsTransient returns true if the error is classified as transient.
func IsTransient(err error) bool {
	var e *EngineError
	if errors.As(err, &e) {
		return e.Class == ErrorClassTransient
	}
	return false
}

// IsPermanent returns true if the error is classified as permanent.
func IsPermanent(err error) bool {
	var e *EngineError
	if errors.As(err, &e) {
		return e.Class == ErrorClassPermanent
	}
	return false
}

// IsNotFound returns true if err reports an unknown stack, category or tag.
func IsNotFound(err error) bool {
	return hasCode(err, ErrCodeNotFound)
}

// IsCircularDependency returns true if err reports a dependency cycle.
func IsCircularDependency(err error) bool {
	return hasCode(err, ErrCodeCircularDependency)
}

// IsMissingDependency returns true if err reports a dangling depends_on reference.
func IsMissingDependency(err error) bool {
	return hasCode(err, ErrCodeMissingDependency)
}

// IsExecutionFailure returns true if err reports a failed orchestration tool call.
func IsExecutionFailure(err error) bool {
	return hasCode(err, ErrCodeExecutionFailed)
}

// CycleOf returns the cycle carried by a circular dependency error.
func CycleOf(err error) []string {
	var e *EngineError
	if !errors.As(err, &e) || e.Code != ErrCodeCircularDependency {
		return nil
	}
	cycle, _ := e.Details["cycle"].([]string)
	return cycle
}

func hasCode(err error, code string) bool {
	var e *EngineError
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// formatCycle formats a cycle path for error messages.
func formatCycle(cycle []string) string {
	if len(cycle) == 0 {
		return ""
	}
	return strings.Join(cycle, " -> ")
}
