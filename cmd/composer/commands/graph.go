package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/stackfleet/composer/pkg/engine"
)

func newGraphCommand() *cobra.Command {
	var dot bool

	cmd := &cobra.Command{
		Use:   "graph [stack]",
		Short: "Show the dependency graph",
		Long: `Show the dependency graph of every stack grouped into start levels, or,
for a single stack, the order in which it and its dependencies start.

--dot prints the whole graph in Graphviz format.`,
		Example: `  composer graph
  composer graph api
  composer graph --dot | dot -Tsvg > stacks.svg`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithApp(cmd, func(_ context.Context, a *app) error {
				if len(args) == 1 {
					return printStartOrder(a, args[0])
				}

				graph, err := engine.BuildGraph(a.registry)
				if err != nil {
					if engine.IsCircularDependency(err) {
						printError(a.out, "%s", err)
						return exitWith(1, err)
					}
					return err
				}

				switch {
				case jsonOutput:
					return printJSON(a.out, graph)
				case dot:
					_, _ = fmt.Fprint(a.out, graph.ToDOT(a.registry))
					return nil
				}

				for i, level := range graph.Levels {
					_, _ = headerColor.Fprintf(a.out, "Level %d:", i)
					_, _ = fmt.Fprintf(a.out, " %s\n", strings.Join(level, ", "))
				}
				if len(graph.Missing) > 0 {
					_, _ = fmt.Fprintln(a.out)
					for _, m := range graph.Missing {
						printWarning(a.out, "%s depends on missing stack '%s'", m.Stack, m.Dependency)
					}
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&dot, "dot", false, "output the graph in Graphviz DOT format")

	return cmd
}

func printStartOrder(a *app, name string) error {
	if _, err := a.lookup(name); err != nil {
		return err
	}

	deps, err := engine.NewResolver(a.registry).Resolve(name)
	if err != nil {
		if engine.IsCircularDependency(err) || engine.IsMissingDependency(err) {
			printError(a.out, "%s", err)
			return exitWith(1, err)
		}
		return err
	}

	order := make([]string, 0, len(deps)+1)
	for _, d := range deps {
		order = append(order, d.Name)
	}
	order = append(order, name)

	if jsonOutput {
		return printJSON(a.out, order)
	}

	_, _ = fmt.Fprintf(a.out, "Start order for %s:\n\n", name)
	for i, n := range order {
		_, _ = fmt.Fprintf(a.out, "  %d. %s\n", i+1, n)
	}
	return nil
}
