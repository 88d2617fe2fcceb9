package compose

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/compose-spec/compose-go/v2/loader"
	"github.com/rs/zerolog"

	"github.com/stackfleet/composer/pkg/engine"
)

// DefaultCommand is the orchestration tool invocation.
var DefaultCommand = []string{"docker", "compose"}

// maxErrOutput bounds how much captured stderr is attached to an error.
const maxErrOutput = 2048

// Runner drives docker compose for a stack. It implements
// engine.Orchestrator and engine.StatusReporter.
type Runner struct {
	command []string
	exec    CommandRunner
	stdout  io.Writer
	stderr  io.Writer
	logger  zerolog.Logger
}

// Option configures a Runner.
type Option func(*Runner)

// WithCommandRunner replaces process execution.
func WithCommandRunner(r CommandRunner) Option {
	return func(rn *Runner) { rn.exec = r }
}

// WithOutput streams the tool's output to the given writers. By default
// output is discarded and stderr is only kept for error messages.
func WithOutput(stdout, stderr io.Writer) Option {
	return func(rn *Runner) {
		rn.stdout = stdout
		rn.stderr = stderr
	}
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(rn *Runner) { rn.logger = l }
}

// NewRunner creates a runner for the given tool invocation, e.g.
// [docker compose] or [podman-compose]. An empty command uses DefaultCommand.
func NewRunner(command []string, opts ...Option) *Runner {
	if len(command) == 0 {
		command = DefaultCommand
	}
	r := &Runner{
		command: append([]string(nil), command...),
		exec:    ExecRunner{},
		stdout:  io.Discard,
		stderr:  io.Discard,
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ProjectName returns the compose project name used for a stack.
func ProjectName(stack *engine.Stack) string {
	return loader.NormalizeProjectName(stack.Name)
}

// Start brings the stack up in detached mode.
func (r *Runner) Start(ctx context.Context, stack *engine.Stack) error {
	return r.run(ctx, stack, r.stdout, "up", "-d")
}

// Stop tears the stack down.
func (r *Runner) Stop(ctx context.Context, stack *engine.Stack) error {
	return r.run(ctx, stack, r.stdout, "down")
}

// Status reports how many of the stack's containers are running.
func (r *Runner) Status(ctx context.Context, stack *engine.Stack) (engine.StackStatus, error) {
	if !stack.HasCompose {
		return engine.StackStatus{State: engine.StatusUnknown}, fmt.Errorf("stack %s has no compose file", stack.Name)
	}

	var out bytes.Buffer
	if err := r.run(ctx, stack, &out, "ps", "--all", "--format", "json"); err != nil {
		return engine.StackStatus{State: engine.StatusUnknown}, err
	}

	containers, err := parseContainers(out.Bytes())
	if err != nil {
		return engine.StackStatus{State: engine.StatusUnknown}, fmt.Errorf("failed to parse status of %s: %w", stack.Name, err)
	}

	running := 0
	for _, c := range containers {
		if c.Running() {
			running++
		}
	}
	return engine.NewStackStatus(running, len(containers)), nil
}

func (r *Runner) args(stack *engine.Stack, sub ...string) []string {
	args := append([]string(nil), r.command[1:]...)
	args = append(args, "-f", stack.ComposeFile, "-p", ProjectName(stack))
	return append(args, sub...)
}

func (r *Runner) run(ctx context.Context, stack *engine.Stack, stdout io.Writer, sub ...string) error {
	args := r.args(stack, sub...)
	logger := r.logger.With().Str("stack", stack.Name).Str("command", sub[0]).Logger()

	var captured bytes.Buffer
	stderr := io.MultiWriter(r.stderr, &captured)

	logger.Debug().Strs("args", args).Msg("Running compose command")
	start := time.Now()
	err := r.exec.Run(ctx, stack.Path, stdout, stderr, r.command[0], args...)
	if err != nil {
		logger.Debug().Err(err).Dur("duration", time.Since(start)).Msg("Compose command failed")
		if detail := tail(captured.String(), maxErrOutput); detail != "" {
			return fmt.Errorf("%s %s: %w: %s", r.command[0], sub[0], err, detail)
		}
		return fmt.Errorf("%s %s: %w", r.command[0], sub[0], err)
	}

	logger.Debug().Dur("duration", time.Since(start)).Msg("Compose command finished")
	return nil
}

// tail returns at most n trailing bytes of s, trimmed.
func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) > n {
		s = "..." + s[len(s)-n:]
	}
	return s
}
