package compose

import (
	"context"
	"fmt"
	"io"
	"os/exec"
)

// CommandRunner runs an external program to completion.
type CommandRunner interface {
	// Run executes name with args in dir, streaming output to the writers.
	// A non-zero exit is reported as an error.
	Run(ctx context.Context, dir string, stdout, stderr io.Writer, name string, args ...string) error
}

// ExecRunner runs programs with os/exec.
type ExecRunner struct{}

// Run implements CommandRunner.
func (ExecRunner) Run(ctx context.Context, dir string, stdout, stderr io.Writer, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	if err := cmd.Run(); err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return fmt.Errorf("%s exited with code %d", name, exitErr.ExitCode())
		}
		return fmt.Errorf("failed to execute %s: %w", name, err)
	}
	return nil
}
