package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/stackfleet/composer/pkg/engine"
	"github.com/stackfleet/composer/pkg/stores"
)

func newCategoryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "category",
		Short: "Manage stack categories",
		Long: `Manage stack categories. A category may carry a subcategory,
written category/subcategory.`,
	}

	cmd.AddCommand(newCategoryListCommand())
	cmd.AddCommand(newCategorySetCommand())
	cmd.AddCommand(newCategoryRenameCommand())

	return cmd
}

func newCategoryListCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List the categories in use",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWithApp(cmd, func(_ context.Context, a *app) error {
				categories := a.registry.AllCategories()

				if jsonOutput {
					return printJSON(a.out, categories)
				}

				if len(categories) == 0 {
					_, _ = fmt.Fprintln(a.out, "No categories found")
					return nil
				}

				noun := "categories"
				if len(categories) == 1 {
					noun = "category"
				}
				_, _ = fmt.Fprintf(a.out, "\nFound %d unique %s:\n\n", len(categories), noun)
				for _, c := range categories {
					_, _ = fmt.Fprintf(a.out, "  • %s (%s)\n", infoColor.Sprint(c.Label()), plural(c.Count, "stack"))
				}
				_, _ = fmt.Fprintln(a.out)
				return nil
			})
		},
	}
}

func newCategorySetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "set <stack> <category> [subcategory]",
		Short: "Set the category of a stack",
		Long: `Set the category of a stack. The subcategory may be given as a third
argument or as category/subcategory.`,
		Example: `  composer category set jellyfin media streaming
  composer category set jellyfin media/streaming`,
		Args: cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			category, subcategory := engine.ParseCategory(args[1])
			if len(args) == 3 {
				subcategory = strings.TrimSpace(args[2])
			}
			if category == "" {
				return fmt.Errorf("category must not be empty")
			}

			return runWithApp(cmd, func(ctx context.Context, a *app) error {
				if _, err := a.lookup(args[0]); err != nil {
					return err
				}

				previous, err := a.registry.SetCategory(ctx, args[0], category, subcategory)
				if err != nil {
					return err
				}

				current := engine.FormatCategory(category, subcategory)
				a.audit(ctx, stores.AuditCategorySet, args[0], map[string]interface{}{
					"from": previous,
					"to":   current,
				})

				printSuccess(a.out, "Changed category for %s: %s → %s", args[0], orDefault(previous, "none"), current)
				return nil
			})
		},
	}
}

func newCategoryRenameCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "rename <old> <new>",
		Short: "Rename a category on every stack",
		Long: `Rename a category on every stack that uses it. Subcategories are kept.`,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			oldName, newName := strings.TrimSpace(args[0]), strings.TrimSpace(args[1])
			if newName == "" {
				return fmt.Errorf("new category name must not be empty")
			}

			return runWithApp(cmd, func(ctx context.Context, a *app) error {
				count, err := a.registry.RenameCategory(ctx, oldName, newName)
				if count > 0 {
					a.audit(ctx, stores.AuditCategoryRename, oldName, map[string]interface{}{
						"to":     newName,
						"stacks": count,
					})
				}
				if err != nil {
					return err
				}

				if count == 0 {
					_, _ = fmt.Fprintf(a.out, "Category '%s' not found on any stacks\n", oldName)
					return nil
				}
				printSuccess(a.out, "Renamed category '%s' to '%s' across %s", oldName, newName, plural(count, "stack"))
				return nil
			})
		},
	}
}
