package commands

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/stackfleet/composer/pkg/engine"
	"github.com/stackfleet/composer/pkg/metadata"
)

func newValidateCommand() *cobra.Command {
	var watch bool

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate every stack",
		Long: `Validate every stack:
  - Compose file present
  - Dependencies exist
  - No circular dependencies
  - Metadata file present (warning only)

Exits with status 1 when an error-level issue is found. With --watch the
stacks are validated again whenever a compose or metadata file changes.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWithApp(cmd, func(ctx context.Context, a *app) error {
				report := validateStacks(a)
				if !watch {
					if report.HasErrors() {
						return exitWith(1, fmt.Errorf("%d issue(s) found", report.Count()))
					}
					return nil
				}

				watcher := metadata.NewWatcher(a.cfg.StacksDir, a.cfg.MetadataOptions(), a.logger.Zerolog())
				err := watcher.Watch(ctx, func() {
					if err := a.load(); err != nil {
						printError(a.out, "%s", err)
						return
					}
					_, _ = dimColor.Fprintf(a.out, "\n--- %s ---\n", time.Now().Format("15:04:05"))
					validateStacks(a)
				})
				if err != nil && ctx.Err() == nil {
					return err
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "validate again whenever stack files change")

	return cmd
}

// validateStacks runs validation, prints the report and updates the
// issue gauges.
func validateStacks(a *app) *engine.Report {
	report := engine.Validate(a.registry)

	errs := 0
	for _, issue := range report.Issues {
		if issue.Severity == engine.SeverityError {
			errs++
		}
	}
	a.tel.Metrics.SetValidationIssues(string(engine.SeverityError), errs)
	a.tel.Metrics.SetValidationIssues(string(engine.SeverityWarning), report.Count()-errs)

	if jsonOutput {
		_ = printJSON(a.out, report)
		return report
	}
	printReport(a.out, report)
	return report
}

func printReport(w io.Writer, report *engine.Report) {
	_, _ = fmt.Fprint(w, "Validating stacks...\n\n")

	if !report.HasIssues() {
		printSuccess(w, "All stacks valid")
		return
	}

	for _, issue := range report.Issues {
		printIssue(w, issue)
	}
	_, _ = fmt.Fprintf(w, "\n%d issue(s) found\n", report.Count())
}
