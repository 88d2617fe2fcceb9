package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/user"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/stackfleet/composer/pkg/compose"
	"github.com/stackfleet/composer/pkg/config"
	"github.com/stackfleet/composer/pkg/engine"
	"github.com/stackfleet/composer/pkg/metadata"
	"github.com/stackfleet/composer/pkg/stores"
	"github.com/stackfleet/composer/pkg/telemetry"
)

// orchestrator drives the compose tool and reports stack state.
type orchestrator interface {
	engine.Orchestrator
	engine.StatusReporter
}

// newOrchestrator is replaced in tests.
var newOrchestrator = func(cfg *config.Config, logger zerolog.Logger) orchestrator {
	return compose.NewRunner(cfg.ComposeCommand, compose.WithLogger(logger))
}

// app is the state shared by one command invocation.
type app struct {
	cfg          *config.Config
	tel          *telemetry.Telemetry
	logger       *telemetry.Logger
	files        *metadata.FileStore
	registry     *engine.Registry
	orchestrator orchestrator

	history       *stores.SQLiteStore
	historyOpened bool

	out    io.Writer
	errOut io.Writer
}

func newApp(cmd *cobra.Command) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if stacksDir != "" {
		cfg.StacksDir = stacksDir
	}
	if verbose {
		cfg.Telemetry.Logging.Level = "debug"
	}

	tel, err := telemetry.NewTelemetry(&cfg.Telemetry)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	if out := cfg.Telemetry.Logging.Output; out == "" || out == "stderr" {
		tel.Logger = telemetry.NewLoggerWithWriter(cmd.ErrOrStderr(), cfg.Telemetry.Logging)
	}

	a := &app{
		cfg:    cfg,
		tel:    tel,
		logger: tel.Logger.NewComponentLogger("cli"),
		out:    cmd.OutOrStdout(),
		errOut: cmd.ErrOrStderr(),
	}

	if err := a.load(); err != nil {
		_ = tel.Shutdown(context.Background())
		return nil, err
	}
	a.orchestrator = newOrchestrator(cfg, a.logger.Zerolog())

	return a, nil
}

// load discovers the stacks and builds the registry.
func (a *app) load() error {
	info, err := os.Stat(a.cfg.StacksDir)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("stacks directory %s does not exist", a.cfg.StacksDir)
	}

	a.files = metadata.NewFileStore(a.cfg.MetadataOptions(), a.logger.Zerolog())
	stacks, err := a.files.LoadStacks(a.cfg.StacksDir)
	if err != nil {
		return fmt.Errorf("failed to load stacks: %w", err)
	}

	registry, err := engine.NewRegistry(stacks, a.files)
	if err != nil {
		return err
	}
	a.registry = registry
	a.tel.Metrics.SetStacksDiscovered(registry.Len())
	return nil
}

// historyStore opens the run history database on first use. It returns nil
// when history is disabled or cannot be opened; commands keep working
// without it.
func (a *app) historyStore(ctx context.Context) *stores.SQLiteStore {
	if a.historyOpened {
		return a.history
	}
	a.historyOpened = true

	if !a.cfg.History.Enabled {
		return nil
	}

	store, err := stores.Open(ctx, stores.Config{Path: a.cfg.HistoryPath()})
	if err != nil {
		a.logger.WithError(err).WithField("path", a.cfg.HistoryPath()).Warn("Run history unavailable")
		return nil
	}
	if err := store.HealthCheck(ctx); err != nil {
		a.logger.WithError(err).Warnf("Run history database %s failed its health check", a.cfg.HistoryPath())
		_ = store.Close()
		return nil
	}
	a.history = store
	return store
}

// requireHistory is historyStore for commands that only read history.
func (a *app) requireHistory(ctx context.Context) (*stores.SQLiteStore, error) {
	if !a.cfg.History.Enabled {
		return nil, fmt.Errorf("run history is disabled in the configuration")
	}
	store := a.historyStore(ctx)
	if store == nil {
		return nil, fmt.Errorf("run history database %s could not be opened", a.cfg.HistoryPath())
	}
	return store, nil
}

// audit records a metadata mutation. Failures are logged and ignored.
func (a *app) audit(ctx context.Context, action, target string, details map[string]interface{}) {
	a.tel.Metrics.RecordMetadataMutation(action)

	store := a.historyStore(ctx)
	if store == nil {
		return
	}

	entry := &stores.AuditEntry{
		Action:   action,
		Actor:    currentUser(),
		TargetID: &target,
	}
	if len(details) > 0 {
		data, err := json.Marshal(details)
		if err == nil {
			s := string(data)
			entry.Details = &s
		}
	}

	if err := store.CreateAuditEntry(ctx, entry); err != nil {
		a.logger.WithError(err).WithField("action", action).Warn("Failed to write audit entry")
	}
}

// lookup resolves a stack by name, printing the not-found message.
func (a *app) lookup(name string) (*engine.Stack, error) {
	stack, err := a.registry.Lookup(name)
	if err != nil {
		if engine.IsNotFound(err) {
			_, _ = fmt.Fprintf(a.out, "Stack '%s' not found\n", name)
			return nil, exitWith(1, err)
		}
		return nil, err
	}
	return stack, nil
}

// status asks the orchestrator for a stack's state. Errors degrade to
// the unknown state.
func (a *app) status(ctx context.Context, stack *engine.Stack) engine.StackStatus {
	st, err := a.orchestrator.Status(ctx, stack)
	if err != nil {
		a.logger.WithError(err).WithStack(stack.Name).Debug("Status unavailable")
		return engine.StackStatus{State: engine.StatusUnknown}
	}
	return st
}

func (a *app) close() error {
	if a.history != nil {
		if err := a.history.Close(); err != nil {
			a.logger.WithError(err).Warn("Failed to close history database")
		}
	}

	timeout := a.cfg.Telemetry.Tracing.ExportTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return a.tel.Shutdown(ctx)
}

// runWithApp builds the app, runs fn inside an instrumented command span and
// flushes telemetry afterwards.
func runWithApp(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}

	ctx := a.tel.WithContext(cmd.Context())
	op := telemetry.StartOperation(ctx, cmd.Name())
	op.Logger.Debugf("Using stacks directory %s", a.cfg.StacksDir)

	err = fn(op.Ctx, a)
	op.End(err)
	if err != nil {
		a.tel.Metrics.RecordError(errorCode(err))
	}

	op.Logger.WithField("duration", op.Timer.Duration().String()).Debug("Command finished")

	if cerr := a.close(); cerr != nil {
		a.logger.WithError(cerr).Warn("Failed to flush telemetry")
	}
	return err
}

func currentUser() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	if name := os.Getenv("USER"); name != "" {
		return name
	}
	return "unknown"
}
