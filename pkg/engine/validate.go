package engine

import (
	"fmt"
	"path/filepath"
)

// Severity grades a validation finding.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// IssueKind identifies what a validation finding is about.
type IssueKind string

const (
	IssueMissingCompose     IssueKind = "missing_compose"
	IssueMissingDependency  IssueKind = "missing_dependency"
	IssueCircularDependency IssueKind = "circular_dependency"
	IssueMissingMetadata    IssueKind = "missing_metadata"
)

// Issue is one validation finding.
type Issue struct {
	Stack      string    `json:"stack"`
	Kind       IssueKind `json:"kind"`
	Severity   Severity  `json:"severity"`
	Message    string    `json:"message"`
	Dependency string    `json:"dependency,omitempty"`
	Cycle      []string  `json:"cycle,omitempty"`
}

// Marker returns the symbol printed in front of the finding.
func (i Issue) Marker() string {
	if i.Severity == SeverityWarning {
		return "⚠"
	}
	return "✗"
}

// String renders the finding as "<marker> <stack>: <message>".
func (i Issue) String() string {
	return fmt.Sprintf("%s %s: %s", i.Marker(), i.Stack, i.Message)
}

// Report is the flat, ordered result of a validation pass.
type Report struct {
	Issues []Issue `json:"issues"`
}

// Count returns the number of findings, warnings included.
func (r *Report) Count() int {
	return len(r.Issues)
}

// HasIssues reports whether any finding was made.
func (r *Report) HasIssues() bool {
	return len(r.Issues) > 0
}

// HasErrors reports whether any finding has error severity.
func (r *Report) HasErrors() bool {
	for _, i := range r.Issues {
		if i.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Lines renders every finding in order.
func (r *Report) Lines() []string {
	lines := make([]string, len(r.Issues))
	for n, i := range r.Issues {
		lines[n] = i.String()
	}
	return lines
}

// Validate checks every stack in discovery order for a missing compose
// file, dangling or circular dependencies and a missing metadata file.
// Findings for one stack are grouped together in that order.
func Validate(registry *Registry) *Report {
	report := &Report{Issues: make([]Issue, 0)}
	cycles := &Resolver{registry: registry, skipMissing: true}

	for _, s := range registry.All() {
		if !s.HasCompose {
			report.Issues = append(report.Issues, Issue{
				Stack:    s.Name,
				Kind:     IssueMissingCompose,
				Severity: SeverityError,
				Message:  fmt.Sprintf("%s not found", baseOr(s.ComposeFile, "docker-compose.yml")),
			})
		}

		for _, dep := range s.DependsOn {
			if _, ok := registry.Get(dep); ok {
				continue
			}
			report.Issues = append(report.Issues, Issue{
				Stack:      s.Name,
				Kind:       IssueMissingDependency,
				Severity:   SeverityError,
				Message:    fmt.Sprintf("dependency '%s' not found", dep),
				Dependency: dep,
			})
		}

		// Only members of a cycle report it; stacks that merely depend on
		// a cycle are covered by the members' findings.
		if _, err := cycles.ResolveStack(s); err != nil {
			if cycle := CycleOf(err); len(cycle) > 0 && cycle[0] == s.Name {
				report.Issues = append(report.Issues, Issue{
					Stack:    s.Name,
					Kind:     IssueCircularDependency,
					Severity: SeverityError,
					Message:  fmt.Sprintf("circular dependency %s", formatCycle(cycle)),
					Cycle:    cycle,
				})
			}
		}

		if !s.HasMetadata {
			report.Issues = append(report.Issues, Issue{
				Stack:    s.Name,
				Kind:     IssueMissingMetadata,
				Severity: SeverityWarning,
				Message:  fmt.Sprintf("no %s file", baseOr(s.MetadataFile, ".stack-meta.yaml")),
			})
		}
	}

	return report
}

func baseOr(path, fallback string) string {
	if path == "" {
		return fallback
	}
	return filepath.Base(path)
}
