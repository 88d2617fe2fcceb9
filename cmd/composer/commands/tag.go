package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/stackfleet/composer/pkg/stores"
)

func newTagCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tag",
		Short: "Manage stack tags",
	}

	cmd.AddCommand(newTagListCommand())
	cmd.AddCommand(newTagAddCommand())
	cmd.AddCommand(newTagRemoveCommand())
	cmd.AddCommand(newTagRenameCommand())

	return cmd
}

func newTagListCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List the tags in use",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWithApp(cmd, func(_ context.Context, a *app) error {
				tags := a.registry.AllTags()

				if jsonOutput {
					return printJSON(a.out, tags)
				}

				if len(tags) == 0 {
					_, _ = fmt.Fprintln(a.out, "No tags found")
					return nil
				}

				_, _ = fmt.Fprintf(a.out, "\nFound %s:\n\n", plural(len(tags), "unique tag"))
				for _, t := range tags {
					_, _ = fmt.Fprintf(a.out, "  • %s (%s)\n", infoColor.Sprint(t.Tag), plural(t.Count, "stack"))
				}
				_, _ = fmt.Fprintln(a.out)
				return nil
			})
		},
	}
}

func newTagAddCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "add <stack> <tag>...",
		Short:   "Add tags to a stack",
		Example: `  composer tag add postgres database critical`,
		Args:    cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, tags := args[0], cleanTags(args[1:])
			if len(tags) == 0 {
				return fmt.Errorf("no tags given")
			}

			return runWithApp(cmd, func(ctx context.Context, a *app) error {
				if _, err := a.lookup(name); err != nil {
					return err
				}

				added, err := a.registry.AddTags(ctx, name, tags...)
				if err != nil {
					return err
				}
				if len(added) == 0 {
					_, _ = fmt.Fprintf(a.out, "%s already has %s\n", name, strings.Join(tags, ", "))
					return nil
				}

				a.audit(ctx, stores.AuditTagAdd, name, map[string]interface{}{"tags": added})
				printSuccess(a.out, "Added %s to %s", strings.Join(added, ", "), name)
				return nil
			})
		},
	}
}

func newTagRemoveCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "remove <stack> <tag>...",
		Aliases: []string{"rm"},
		Short:   "Remove tags from a stack",
		Args:    cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, tags := args[0], cleanTags(args[1:])

			return runWithApp(cmd, func(ctx context.Context, a *app) error {
				if _, err := a.lookup(name); err != nil {
					return err
				}

				removed, err := a.registry.RemoveTags(ctx, name, tags...)
				if err != nil {
					return err
				}
				if len(removed) == 0 {
					_, _ = fmt.Fprintf(a.out, "%s has none of %s\n", name, strings.Join(tags, ", "))
					return nil
				}

				a.audit(ctx, stores.AuditTagRemove, name, map[string]interface{}{"tags": removed})
				printSuccess(a.out, "Removed %s from %s", strings.Join(removed, ", "), name)
				return nil
			})
		},
	}
}

func newTagRenameCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "rename <old> <new>",
		Short: "Rename a tag on every stack",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			oldName, newName := strings.TrimSpace(args[0]), strings.TrimSpace(args[1])
			if newName == "" {
				return fmt.Errorf("new tag name must not be empty")
			}

			return runWithApp(cmd, func(ctx context.Context, a *app) error {
				count, err := a.registry.RenameTag(ctx, oldName, newName)
				if count > 0 {
					a.audit(ctx, stores.AuditTagRename, oldName, map[string]interface{}{
						"to":     newName,
						"stacks": count,
					})
				}
				if err != nil {
					return err
				}

				if count == 0 {
					_, _ = fmt.Fprintf(a.out, "Tag '%s' not found on any stacks\n", oldName)
					return nil
				}
				printSuccess(a.out, "Renamed tag '%s' to '%s' across %s", oldName, newName, plural(count, "stack"))
				return nil
			})
		},
	}
}

// cleanTags trims the given tags and drops empty ones.
func cleanTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}
