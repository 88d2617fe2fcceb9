package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stackfleet/composer/pkg/engine"
)

func newListCommand() *cobra.Command {
	var (
		category string
		tag      string
	)

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List stacks",
		Long: `List every discovered stack with its category, tags and auto-start flag.

--category and --tag narrow the list; both may be given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWithApp(cmd, func(_ context.Context, a *app) error {
				stacks := filterStacks(a.registry.All(), category, tag)

				if jsonOutput {
					return printJSON(a.out, stacks)
				}

				if len(stacks) == 0 {
					_, _ = fmt.Fprintln(a.out, "No stacks found")
					return nil
				}

				_, _ = headerColor.Fprintf(a.out, "%s:\n\n", plural(len(stacks), "stack"))
				printStackLines(a.out, stacks)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&category, "category", "", "only stacks in this category (category or category/subcategory)")
	cmd.Flags().StringVar(&tag, "tag", "", "only stacks carrying this tag")

	return cmd
}

// filterStacks applies the same exact matching as the batch selectors.
// Empty filters match everything.
func filterStacks(stacks []*engine.Stack, category, tag string) []*engine.Stack {
	cat, sub := engine.ParseCategory(category)
	out := make([]*engine.Stack, 0, len(stacks))
	for _, s := range stacks {
		if cat != "" && s.Category != cat {
			continue
		}
		if sub != "" && s.Subcategory != sub {
			continue
		}
		if tag != "" && !s.HasTag(tag) {
			continue
		}
		out = append(out, s)
	}
	return out
}
