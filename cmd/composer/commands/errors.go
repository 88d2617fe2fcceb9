package commands

import (
	"errors"
	"fmt"

	"github.com/stackfleet/composer/pkg/engine"
)

// ExitError ends the process with Code. The command has already told the
// user what went wrong, so main does not log it again.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("exit status %d", e.Code)
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

func exitWith(code int, err error) error {
	return &ExitError{Code: code, Err: err}
}

// errorCode returns the code recorded in the error counter.
func errorCode(err error) string {
	var engErr *engine.EngineError
	if errors.As(err, &engErr) && engErr.Code != "" {
		return engErr.Code
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return "EXIT"
	}
	return engine.ErrCodeInternal
}
