package commands

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/stackfleet/composer/pkg/compose"
	"github.com/stackfleet/composer/pkg/engine"
)

func newShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <stack>",
		Short: "Show the details of a stack",
		Long: `Show the metadata of a stack together with its container status and
the services declared in its compose file.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithApp(cmd, func(ctx context.Context, a *app) error {
				stack, err := a.lookup(args[0])
				if err != nil {
					return err
				}

				status := a.status(ctx, stack)
				services, err := compose.Services(ctx, stack)
				if err != nil {
					a.logger.WithError(err).WithStack(stack.Name).Debug("Compose file not loaded")
				}

				if jsonOutput {
					return printJSON(a.out, struct {
						*engine.Stack
						Status   engine.StackStatus `json:"status"`
						Services []string           `json:"services,omitempty"`
					}{stack, status, services})
				}

				printStack(a, stack, status, services)
				return nil
			})
		},
	}
}

func printStack(a *app, s *engine.Stack, status engine.StackStatus, services []string) {
	w := a.out

	_, _ = fmt.Fprintln(w)
	_, _ = headerColor.Fprintf(w, "Stack: %s\n", s.Name)
	_, _ = fmt.Fprintln(w, strings.Repeat("=", 60))

	printField(w, "Description", orDefault(s.Description, "N/A"))
	printField(w, "Category", orDefault(s.CategoryLabel(), "N/A"))
	printField(w, "Tags", orDefault(strings.Join(s.Tags, ", "), "none"))
	printField(w, "Path", s.Path)
	if len(services) > 0 {
		printField(w, "Services", strings.Join(services, ", "))
	}
	printField(w, "Status", statusColor(status.State).Sprintf("%s (%d/%d containers)", status.State, status.Running, status.Containers))
	printField(w, "Auto-start", yesNo(s.AutoStart))
	if s.AutoStart {
		printField(w, "Priority", strconv.Itoa(s.Priority))
	}
	printField(w, "Critical", yesNo(s.Critical))
	if len(s.DependsOn) > 0 {
		printField(w, "Dependencies", strings.Join(s.DependsOn, ", "))
	}
	if s.Owner != "" {
		printField(w, "Owner", s.Owner)
	}
	if s.Documentation != "" {
		printField(w, "Docs", s.Documentation)
	}
	if s.HealthCheckURL != "" {
		printField(w, "Health", s.HealthCheckURL)
	}
	_, _ = fmt.Fprintln(w)
}
