package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	configPath string
	stacksDir  string
	verbose    bool
	jsonOutput bool
)

// Execute runs the root command
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "composer",
		Short: "composer - manage a fleet of docker compose stacks",
		Long: `composer manages a directory of docker compose stacks as one fleet.

Each subdirectory holding a compose file is a stack. An optional
.stack-meta.yaml next to it adds a category, tags, dependencies,
a start priority and auto-start behaviour.

Features:
  - Start, stop and restart single stacks or whole categories and tags
  - Dependency-aware ordering with cycle detection
  - Priority-ordered bring-up and tear-down
  - Validation of compose files and metadata
  - Category and tag management
  - Run history`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Persistent flags available to all commands
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().StringVarP(&stacksDir, "stacks-dir", "d", "", "directory containing the stacks (overrides config)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")

	// Add subcommands
	rootCmd.AddCommand(newListCommand())
	rootCmd.AddCommand(newShowCommand())
	rootCmd.AddCommand(newStatusCommand())
	rootCmd.AddCommand(newSearchCommand())
	rootCmd.AddCommand(newUpCommand())
	rootCmd.AddCommand(newDownCommand())
	rootCmd.AddCommand(newRestartCommand())
	rootCmd.AddCommand(newAutostartCommand())
	rootCmd.AddCommand(newValidateCommand())
	rootCmd.AddCommand(newGraphCommand())
	rootCmd.AddCommand(newTagCommand())
	rootCmd.AddCommand(newCategoryCommand())
	rootCmd.AddCommand(newHistoryCommand())

	return rootCmd
}
