package engine

import (
	"fmt"
	"strconv"
	"strings"
)

// Graph is the dependency graph of every stack in a registry.
type Graph struct {
	// Nodes maps stack names to their graph nodes.
	Nodes map[string]*GraphNode `json:"nodes"`

	// Edges point from a dependency to the stack that depends on it.
	Edges []GraphEdge `json:"edges"`

	// Levels groups stacks that have no dependency on each other. Every
	// stack in level N only depends on stacks in levels below N.
	Levels [][]string `json:"levels"`

	// Roots are the stacks without dependencies.
	Roots []string `json:"roots"`

	// Depth is the number of levels.
	Depth int `json:"depth"`

	// Missing lists depends_on entries that name unknown stacks. They do not
	// take part in levelling.
	Missing []MissingDependency `json:"missing,omitempty"`
}

// GraphNode is one stack in the graph.
type GraphNode struct {
	Name         string   `json:"name"`
	Level        int      `json:"level"`
	Dependencies []string `json:"dependencies"`
	Dependents   []string `json:"dependents"`
}

// GraphEdge is a depends_on relation.
type GraphEdge struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// MissingDependency is a dangling depends_on reference.
type MissingDependency struct {
	Stack      string `json:"stack"`
	Dependency string `json:"dependency"`
}

// graphBuilder computes levels with Kahn's algorithm. Node order inside a
// level follows discovery order so output is deterministic.
type graphBuilder struct {
	registry *Registry

	// adjacency maps a stack to the stacks that depend on it
	adjacency map[string][]string

	// reverse maps a stack to its known dependencies
	reverse map[string][]string

	inDegree map[string]int
	position map[string]int
	missing  []MissingDependency
	levels   [][]string
}

// BuildGraph analyses the dependency graph of every stack in registry.
// A cycle is reported as a CircularDependency error; missing dependencies
// are recorded on the graph and do not fail the build.
func BuildGraph(registry *Registry) (*Graph, error) {
	if registry.Len() == 0 {
		return &Graph{
			Nodes:  make(map[string]*GraphNode),
			Edges:  make([]GraphEdge, 0),
			Levels: make([][]string, 0),
			Roots:  make([]string, 0),
		}, nil
	}

	if err := DetectCycles(registry); err != nil {
		return nil, err
	}

	b := &graphBuilder{
		registry:  registry,
		adjacency: make(map[string][]string),
		reverse:   make(map[string][]string),
		inDegree:  make(map[string]int),
		position:  make(map[string]int),
	}
	b.initialize()

	if err := b.computeLevels(); err != nil {
		return nil, err
	}

	return b.build(), nil
}

// DetectCycles returns a CircularDependency error for the first cycle found
// when walking stacks in discovery order, or nil.
func DetectCycles(registry *Registry) error {
	r := &Resolver{registry: registry, skipMissing: true}
	for _, s := range registry.All() {
		if _, err := r.ResolveStack(s); err != nil {
			return err
		}
	}
	return nil
}

func (b *graphBuilder) initialize() {
	for i, s := range b.registry.All() {
		b.position[s.Name] = i
		b.adjacency[s.Name] = make([]string, 0)
		b.reverse[s.Name] = make([]string, 0)
		b.inDegree[s.Name] = 0
	}

	for _, s := range b.registry.All() {
		seen := make(map[string]bool)
		for _, dep := range s.DependsOn {
			if seen[dep] {
				continue
			}
			seen[dep] = true

			if _, exists := b.position[dep]; !exists {
				b.missing = append(b.missing, MissingDependency{Stack: s.Name, Dependency: dep})
				continue
			}

			// dep must be up before s starts
			b.adjacency[dep] = append(b.adjacency[dep], s.Name)
			b.reverse[s.Name] = append(b.reverse[s.Name], dep)
			b.inDegree[s.Name]++
		}
	}
}

func (b *graphBuilder) computeLevels() error {
	inDegree := make(map[string]int, len(b.inDegree))
	for name, degree := range b.inDegree {
		inDegree[name] = degree
	}

	current := make([]string, 0)
	for _, s := range b.registry.All() {
		if inDegree[s.Name] == 0 {
			current = append(current, s.Name)
		}
	}

	processed := 0
	for len(current) > 0 {
		b.levels = append(b.levels, current)
		processed += len(current)

		next := make([]string, 0)
		for _, name := range current {
			for _, dependent := range b.adjacency[name] {
				inDegree[dependent]--
				if inDegree[dependent] == 0 {
					next = append(next, dependent)
				}
			}
		}
		b.sortByPosition(next)
		current = next
	}

	if processed != b.registry.Len() {
		return NewPermanentError("failed to level all stacks - possible cycle", nil).
			WithCode(ErrCodeInternal)
	}
	return nil
}

func (b *graphBuilder) sortByPosition(names []string) {
	// insertion sort; levels are small
	for i := 1; i < len(names); i++ {
		for j := i; j > 0 && b.position[names[j]] < b.position[names[j-1]]; j-- {
			names[j], names[j-1] = names[j-1], names[j]
		}
	}
}

func (b *graphBuilder) build() *Graph {
	g := &Graph{
		Nodes:   make(map[string]*GraphNode),
		Edges:   make([]GraphEdge, 0),
		Levels:  b.levels,
		Roots:   make([]string, 0),
		Depth:   len(b.levels),
		Missing: b.missing,
	}

	for level, names := range b.levels {
		for _, name := range names {
			g.Nodes[name] = &GraphNode{
				Name:         name,
				Level:        level,
				Dependencies: b.reverse[name],
				Dependents:   b.adjacency[name],
			}
			if level == 0 {
				g.Roots = append(g.Roots, name)
			}
		}
	}

	for _, s := range b.registry.All() {
		for _, dep := range b.reverse[s.Name] {
			g.Edges = append(g.Edges, GraphEdge{From: dep, To: s.Name})
		}
	}

	return g
}

// ToDOT renders the graph in Graphviz DOT format. Auto-start stacks are
// filled green and critical stacks are outlined red. Names and labels are
// quoted with escapes.
func (g *Graph) ToDOT(registry *Registry) string {
	var sb strings.Builder

	sb.WriteString("digraph Stacks {\n")
	sb.WriteString("  rankdir=TB;\n")
	sb.WriteString("  node [shape=box, style=rounded];\n\n")

	for level, names := range g.Levels {
		sb.WriteString(fmt.Sprintf("  subgraph cluster_level_%d {\n", level))
		sb.WriteString(fmt.Sprintf("    label=\"Level %d\";\n", level))
		sb.WriteString("    style=dashed;\n")

		for _, name := range names {
			label := name
			fill := "white"
			border := "black"
			if s, ok := registry.Get(name); ok {
				if s.Category != "" {
					label = name + "\n" + s.CategoryLabel()
				}
				if s.AutoStart {
					fill = "lightgreen"
				}
				if s.Critical {
					border = "red"
				}
			}
			sb.WriteString(fmt.Sprintf("    %s [label=%s, fillcolor=\"%s\", color=\"%s\", style=\"filled,rounded\"];\n",
				strconv.Quote(name), strconv.Quote(label), fill, border))
		}

		sb.WriteString("  }\n\n")
	}

	for _, e := range g.Edges {
		sb.WriteString(fmt.Sprintf("  %s -> %s;\n", strconv.Quote(e.From), strconv.Quote(e.To)))
	}
	for _, m := range g.Missing {
		sb.WriteString(fmt.Sprintf("  %s [shape=octagon, style=dashed, color=gray];\n", strconv.Quote(m.Dependency)))
		sb.WriteString(fmt.Sprintf("  %s -> %s [style=dotted, color=gray];\n", strconv.Quote(m.Dependency), strconv.Quote(m.Stack)))
	}

	sb.WriteString("}\n")
	return sb.String()
}
