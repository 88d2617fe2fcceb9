package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/stackfleet/composer/pkg/engine"
)

// targetFlags select a batch instead of a single named stack.
type targetFlags struct {
	all      bool
	category string
	tag      string
}

func (f *targetFlags) register(cmd *cobra.Command, verb string) {
	cmd.Flags().BoolVar(&f.all, "all", false, verb+" every stack")
	cmd.Flags().StringVar(&f.category, "category", "", verb+" the stacks in a category (category or category/subcategory)")
	cmd.Flags().StringVar(&f.tag, "tag", "", verb+" the stacks carrying a tag")
	cmd.MarkFlagsMutuallyExclusive("all", "category", "tag")
}

func (f *targetFlags) target(args []string) (engine.Target, error) {
	selected := f.all || f.category != "" || f.tag != ""

	switch {
	case len(args) > 0 && selected:
		return engine.Target{}, fmt.Errorf("a stack name cannot be combined with --all, --category or --tag")
	case len(args) > 0:
		return engine.StackTarget(args[0]), nil
	case f.all:
		return engine.AllTarget(), nil
	case f.category != "":
		category, subcategory := engine.ParseCategory(f.category)
		return engine.CategoryTarget(category, subcategory), nil
	case f.tag != "":
		return engine.TagTarget(f.tag), nil
	default:
		return engine.Target{}, fmt.Errorf("specify a stack name or one of --all, --category, --tag")
	}
}

func newUpCommand() *cobra.Command {
	var (
		targets  targetFlags
		priority bool
		withDeps bool
	)

	cmd := &cobra.Command{
		Use:   "up [stack]",
		Short: "Start stacks",
		Long: `Start a stack, or a batch of stacks selected with --all, --category or --tag.

Stacks in a batch start one at a time. A failing stack is reported and the
batch carries on with the next one.

--with-deps starts each stack's dependencies first. In a batch, a stack whose
dependencies are missing or circular is skipped and reported as failed; for
a single named stack the command aborts instead. Combined with --priority, a
dependency is started no later than the stacks that need it, even when its
own priority is higher.`,
		Example: `  composer up web
  composer up --category media --priority
  composer up api --with-deps`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := targets.target(args)
			if err != nil {
				return err
			}
			return runWithApp(cmd, func(ctx context.Context, a *app) error {
				return runBatch(ctx, a, engine.Request{
					Operation:        engine.OperationUp,
					Target:           target,
					Priority:         priority,
					WithDependencies: withDeps,
				})
			})
		},
	}

	targets.register(cmd, "Start")
	cmd.Flags().BoolVar(&priority, "priority", false, "start in ascending priority order")
	cmd.Flags().BoolVar(&withDeps, "with-deps", false, "also start the dependencies of each stack, dependencies first")

	return cmd
}

func newDownCommand() *cobra.Command {
	var targets targetFlags

	cmd := &cobra.Command{
		Use:   "down [stack]",
		Short: "Stop stacks",
		Long: `Stop a stack, or a batch of stacks selected with --all, --category or --tag.

Batches always stop in descending priority order.`,
		Example: `  composer down web
  composer down --all`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := targets.target(args)
			if err != nil {
				return err
			}
			return runWithApp(cmd, func(ctx context.Context, a *app) error {
				return runBatch(ctx, a, engine.Request{
					Operation: engine.OperationDown,
					Target:    target,
				})
			})
		},
	}

	targets.register(cmd, "Stop")

	return cmd
}

func newRestartCommand() *cobra.Command {
	var (
		targets  targetFlags
		priority bool
	)

	cmd := &cobra.Command{
		Use:   "restart [stack]",
		Short: "Restart stacks",
		Long: `Restart a stack, or a batch of stacks selected with --all, --category or --tag.

The whole batch is stopped in descending priority order, then started again.`,
		Example: `  composer restart web
  composer restart --tag database --priority`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := targets.target(args)
			if err != nil {
				return err
			}
			return runWithApp(cmd, func(ctx context.Context, a *app) error {
				return runBatch(ctx, a, engine.Request{
					Operation: engine.OperationRestart,
					Target:    target,
					Priority:  priority,
				})
			})
		},
	}

	targets.register(cmd, "Restart")
	cmd.Flags().BoolVar(&priority, "priority", false, "start again in ascending priority order")

	return cmd
}

func newAutostartCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "autostart",
		Short: "Start every stack marked auto_start, by priority",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWithApp(cmd, func(ctx context.Context, a *app) error {
				return runBatch(ctx, a, engine.Request{
					Operation: engine.OperationUp,
					Target:    engine.AutoStartTarget(),
					Priority:  true,
				})
			})
		},
	}
}

// runBatch plans and executes one lifecycle request. Stack failures do not
// fail the command; only planning errors do.
func runBatch(ctx context.Context, a *app, req engine.Request) error {
	plan, err := engine.NewSelector(a.registry).Plan(req)
	if err != nil {
		if engine.IsNotFound(err) && req.Target.Mode == engine.TargetStack {
			_, _ = fmt.Fprintf(a.out, "Stack '%s' not found\n", req.Target.Name)
			return exitWith(1, err)
		}
		if engine.IsCircularDependency(err) || engine.IsMissingDependency(err) {
			printError(a.out, "%s", err)
			return exitWith(1, err)
		}
		return err
	}

	opts := []engine.ExecutorOption{
		engine.WithLogger(a.logger.Zerolog()),
		engine.WithTracer(a.tel.Tracer.Tracer()),
		engine.WithMetrics(a.tel.Metrics),
	}
	if store := a.historyStore(ctx); store != nil {
		opts = append(opts, engine.WithRecorder(store))
	}
	if !jsonOutput {
		_, _ = fmt.Fprintf(a.out, "%s %d stack(s)...\n\n", operationVerb(req.Operation), len(plan.Stacks))
		opts = append(opts, engine.WithObserver(&batchPrinter{out: a.out, phases: len(plan.Phases)}))
	}

	run, err := engine.NewExecutor(a.orchestrator, opts...).Execute(ctx, plan)
	if err != nil {
		return err
	}
	a.logger.WithRunID(run.ID).Debugf("Run finished with status %s", run.Status)

	if jsonOutput {
		return printJSON(a.out, run)
	}

	if failed := run.Failed(); failed > 0 {
		_, _ = fmt.Fprintln(a.out)
		printWarning(a.out, "%d of %s failed", failed, plural(len(run.StackOutcomes()), "stack"))
	}
	if len(plan.Skipped) > 0 {
		printWarning(a.out, "%s skipped: dependencies could not be resolved", plural(len(plan.Skipped), "stack"))
	}
	return nil
}

func operationVerb(op engine.Operation) string {
	switch op {
	case engine.OperationUp:
		return "Starting"
	case engine.OperationDown:
		return "Stopping"
	default:
		return "Restarting"
	}
}

func actionVerb(action engine.Action) string {
	if action == engine.ActionStop {
		return "Stopping"
	}
	return "Starting"
}

// batchPrinter reports progress one line per action.
type batchPrinter struct {
	out    io.Writer
	phases int
	seen   int
}

func (p *batchPrinter) PhaseStarted(phase engine.Phase) {
	if p.phases > 1 && p.seen > 0 {
		_, _ = fmt.Fprintln(p.out)
	}
	p.seen++
}

func (p *batchPrinter) ActionStarted(action engine.Action, stack *engine.Stack) {
	_, _ = fmt.Fprintf(p.out, "  %s %s... ", actionVerb(action), stack.Name)
}

func (p *batchPrinter) ActionFinished(outcome engine.Outcome) {
	if outcome.Success {
		_, _ = successColor.Fprintln(p.out, "✓")
		return
	}
	_, _ = errorColor.Fprintln(p.out, "✗ FAILED")
	if outcome.Error != "" {
		_, _ = dimColor.Fprintf(p.out, "    %s\n", outcome.Error)
	}
}
