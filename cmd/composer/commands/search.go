package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func newSearchCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "search <term>",
		Short: "Search stacks by name, description, category or tag",
		Long: `Search stacks for a case-insensitive substring of their name,
description, category, subcategory or tags.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithApp(cmd, func(_ context.Context, a *app) error {
				results := a.registry.Search(args[0])

				if jsonOutput {
					return printJSON(a.out, results)
				}

				if len(results) == 0 {
					_, _ = fmt.Fprintf(a.out, "No stacks found matching '%s'\n", args[0])
					return nil
				}

				_, _ = fmt.Fprintf(a.out, "Found %d stack(s) matching '%s':\n\n", len(results), args[0])
				printStackLines(a.out, results)
				return nil
			})
		},
	}
}
