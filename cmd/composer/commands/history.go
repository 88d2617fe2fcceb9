package commands

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/stackfleet/composer/pkg/engine"
	"github.com/stackfleet/composer/pkg/stores"
)

const timeLayout = "2006-01-02 15:04:05"

func newHistoryCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show past lifecycle runs",
		Long: `Show the most recent up, down and restart runs recorded in the history
database, newest first.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWithApp(cmd, func(ctx context.Context, a *app) error {
				store, err := a.requireHistory(ctx)
				if err != nil {
					return err
				}

				runs, err := store.ListRuns(ctx, limit, 0)
				if err != nil {
					return fmt.Errorf("failed to list runs: %w", err)
				}

				if jsonOutput {
					return printJSON(a.out, runs)
				}

				if len(runs) == 0 {
					_, _ = fmt.Fprintln(a.out, "No runs recorded")
					return nil
				}

				for _, r := range runs {
					_, _ = fmt.Fprintf(a.out, "  %s  %s  %-8s %-24s %s (%d/%d)\n",
						dimColor.Sprint(shortID(r.ID)),
						r.StartedAt.Local().Format(timeLayout),
						r.Operation,
						r.Target,
						runStatusColor(r.Status).Sprint(r.Status),
						r.Succeeded,
						r.Succeeded+r.Failed,
					)
				}
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of runs to show")

	cmd.AddCommand(newHistoryShowCommand())
	cmd.AddCommand(newHistoryDeleteCommand())
	cmd.AddCommand(newHistoryAuditCommand())

	return cmd
}

func newHistoryShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show the per-stack results of a run",
		Long:  `Show the per-stack results of a run. A unique prefix of the run ID is enough.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithApp(cmd, func(ctx context.Context, a *app) error {
				store, err := a.requireHistory(ctx)
				if err != nil {
					return err
				}

				run, err := store.GetRun(ctx, args[0])
				if err != nil {
					if errors.Is(err, stores.ErrNotFound) {
						_, _ = fmt.Fprintf(a.out, "Run '%s' not found\n", args[0])
						return exitWith(1, err)
					}
					return err
				}

				results, err := store.ListStackResults(ctx, run.ID)
				if err != nil {
					return fmt.Errorf("failed to list stack results: %w", err)
				}

				if jsonOutput {
					return printJSON(a.out, struct {
						*stores.Run
						Results []*stores.StackResult `json:"results"`
					}{run, results})
				}

				_, _ = fmt.Fprintln(a.out)
				_, _ = headerColor.Fprintf(a.out, "Run: %s\n", run.ID)
				printField(a.out, "Operation", run.Operation)
				printField(a.out, "Target", run.Target)
				printField(a.out, "Status", runStatusColor(run.Status).Sprint(run.Status))
				printField(a.out, "Started", run.StartedAt.Local().Format(timeLayout))
				if run.CompletedAt != nil {
					printField(a.out, "Duration", run.Duration().Round(time.Millisecond).String())
				}
				_, _ = fmt.Fprintln(a.out)

				for _, r := range results {
					d := time.Duration(r.DurationMs) * time.Millisecond
					if r.Success {
						_, _ = fmt.Fprintf(a.out, "  %s %s %s (%s)\n", successColor.Sprint("✓"), r.Action, r.Stack, d)
						continue
					}
					msg := ""
					if r.Error != nil {
						msg = ": " + *r.Error
					}
					_, _ = fmt.Fprintf(a.out, "  %s %s %s (%s)%s\n", errorColor.Sprint("✗"), r.Action, r.Stack, d, msg)
				}
				return nil
			})
		},
	}
}

func newHistoryDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "delete <run-id>",
		Aliases: []string{"rm"},
		Short:   "Delete a run and its per-stack results",
		Long:    `Delete a recorded run. A unique prefix of the run ID is enough.`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithApp(cmd, func(ctx context.Context, a *app) error {
				store, err := a.requireHistory(ctx)
				if err != nil {
					return err
				}

				run, err := store.GetRun(ctx, args[0])
				if err != nil {
					if errors.Is(err, stores.ErrNotFound) {
						_, _ = fmt.Fprintf(a.out, "Run '%s' not found\n", args[0])
						return exitWith(1, err)
					}
					return err
				}

				if err := store.DeleteRun(ctx, run.ID); err != nil {
					return fmt.Errorf("failed to delete run: %w", err)
				}
				a.logger.WithRunID(run.ID).Infof("Deleted %s run for %s", run.Operation, run.Target)

				printSuccess(a.out, "Deleted run %s (%s %s)", shortID(run.ID), run.Operation, run.Target)
				return nil
			})
		},
	}
}

func newHistoryAuditCommand() *cobra.Command {
	var (
		action string
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Show category and tag changes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWithApp(cmd, func(ctx context.Context, a *app) error {
				store, err := a.requireHistory(ctx)
				if err != nil {
					return err
				}

				var filter *string
				if action != "" {
					filter = &action
				}
				entries, err := store.ListAuditEntries(ctx, filter, limit, 0)
				if err != nil {
					return fmt.Errorf("failed to list audit entries: %w", err)
				}

				if jsonOutput {
					return printJSON(a.out, entries)
				}

				if len(entries) == 0 {
					_, _ = fmt.Fprintln(a.out, "No changes recorded")
					return nil
				}

				for _, e := range entries {
					target, details := "", ""
					if e.TargetID != nil {
						target = *e.TargetID
					}
					if e.Details != nil {
						details = *e.Details
					}
					_, _ = fmt.Fprintf(a.out, "  %s  %-16s %-10s %s %s\n",
						e.Timestamp.Local().Format(timeLayout), e.Action, e.Actor, target, dimColor.Sprint(details))
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&action, "action", "", "only entries for this action (e.g. tag.add, category.rename)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "number of entries to show")

	return cmd
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func runStatusColor(status string) *color.Color {
	switch engine.RunStatus(status) {
	case engine.RunStatusSucceeded:
		return successColor
	case engine.RunStatusPartial:
		return warningColor
	case engine.RunStatusFailed:
		return errorColor
	default:
		return dimColor
	}
}
