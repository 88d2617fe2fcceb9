package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stackfleet/composer/pkg/engine"
)

type stackState struct {
	Stack string `json:"stack"`
	engine.StackStatus
}

func newStatusCommand() *cobra.Command {
	var (
		category string
		tag      string
	)

	cmd := &cobra.Command{
		Use:   "status [stack]",
		Short: "Show the container status of stacks",
		Long: `Ask the compose tool for the container state of one stack, or of every
stack matching --category and --tag.

A stack whose state cannot be determined is reported as unknown.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithApp(cmd, func(ctx context.Context, a *app) error {
				var stacks []*engine.Stack
				if len(args) == 1 {
					stack, err := a.lookup(args[0])
					if err != nil {
						return err
					}
					stacks = []*engine.Stack{stack}
				} else {
					stacks = filterStacks(a.registry.All(), category, tag)
				}

				states := make([]stackState, 0, len(stacks))
				for _, s := range stacks {
					states = append(states, stackState{Stack: s.Name, StackStatus: a.status(ctx, s)})
				}

				if jsonOutput {
					return printJSON(a.out, states)
				}

				if len(states) == 0 {
					_, _ = fmt.Fprintln(a.out, "No stacks found")
					return nil
				}

				width := 0
				for _, st := range states {
					width = max(width, len(st.Stack))
				}
				for _, st := range states {
					c := statusColor(st.State)
					_, _ = fmt.Fprintf(a.out, "  %s %-*s  %s (%d/%d)\n",
						c.Sprint("●"), width, st.Stack, c.Sprint(st.State), st.Running, st.Containers)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&category, "category", "", "only stacks in this category (category or category/subcategory)")
	cmd.Flags().StringVar(&tag, "tag", "", "only stacks carrying this tag")

	return cmd
}
