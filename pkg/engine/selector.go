package engine

import (
	"sort"
)

// Request describes one lifecycle command before it is resolved to stacks.
type Request struct {
	Operation Operation
	Target    Target

	// Priority orders bring-up by ascending priority. Tear-down is always
	// ordered by descending priority and ignores it.
	Priority bool

	// WithDependencies expands each selected stack with its dependency
	// closure before bring-up.
	WithDependencies bool
}

// Selector turns requests into ordered plans.
type Selector struct {
	registry *Registry
	resolver *Resolver
}

// NewSelector creates a selector over registry.
func NewSelector(registry *Registry) *Selector {
	return &Selector{
		registry: registry,
		resolver: NewResolver(registry),
	}
}

// Select materializes a target into stacks in registry order. Only a single
// named target can fail; empty category or tag selections are valid.
func (s *Selector) Select(target Target) ([]*Stack, error) {
	switch target.Mode {
	case TargetStack:
		stack, err := s.registry.Lookup(target.Name)
		if err != nil {
			return nil, err
		}
		return []*Stack{stack}, nil
	case TargetAll:
		return s.registry.All(), nil
	case TargetCategory:
		return s.registry.ByCategory(target.Category, target.Subcategory), nil
	case TargetTag:
		return s.registry.ByTag(target.Tag), nil
	case TargetAutoStart:
		return s.registry.AutoStart(), nil
	default:
		return nil, NewPermanentError("unsupported target", nil).
			WithCode(ErrCodeValidation).
			WithDetail("mode", int(target.Mode))
	}
}

// Plan resolves req into the ordered phases to execute. With dependency
// expansion, an unresolvable single stack fails the plan; in a batch the
// affected stacks are recorded in Skipped and the rest is planned.
func (s *Selector) Plan(req Request) (*Plan, error) {
	selected, err := s.Select(req.Target)
	if err != nil {
		return nil, err
	}

	plan := &Plan{Operation: req.Operation, Target: req.Target}

	if req.WithDependencies && req.Operation == OperationUp {
		var skipped []SkippedStack
		selected, skipped = s.WithDependencies(selected)
		if len(skipped) > 0 && req.Target.Mode == TargetStack {
			return nil, skipped[0].Err
		}
		plan.Skipped = skipped
	}

	switch req.Operation {
	case OperationUp:
		start := s.upOrder(selected, req)
		plan.Phases = []Phase{{Action: ActionStart, Stacks: start}}
		plan.Stacks = start
	case OperationDown:
		stop := DownOrder(selected)
		plan.Phases = []Phase{{Action: ActionStop, Stacks: stop}}
		plan.Stacks = stop
	case OperationRestart:
		stop := DownOrder(selected)
		start := s.upOrder(selected, req)
		plan.Phases = []Phase{
			{Action: ActionStop, Stacks: stop},
			{Action: ActionStart, Stacks: start},
		}
		plan.Stacks = start
	default:
		return nil, NewPermanentError("unsupported operation "+req.Operation.String(), nil).
			WithCode(ErrCodeValidation)
	}

	return plan, nil
}

// WithDependencies expands stacks with their dependency closures: each
// stack is preceded by the stacks it needs. A stack that appears more than
// once keeps its first position. A stack whose closure cannot be resolved
// is left out and returned as skipped, so its dependents are skipped too.
func (s *Selector) WithDependencies(stacks []*Stack) ([]*Stack, []SkippedStack) {
	seen := make(map[string]bool, len(stacks))
	out := make([]*Stack, 0, len(stacks))
	var skipped []SkippedStack

	for _, stack := range stacks {
		deps, err := s.resolver.ResolveStack(stack)
		if err != nil {
			skipped = append(skipped, SkippedStack{Stack: stack, Err: err})
			continue
		}
		for _, d := range append(deps, stack) {
			if seen[d.Name] {
				continue
			}
			seen[d.Name] = true
			out = append(out, d)
		}
	}

	return out, skipped
}

func (s *Selector) upOrder(stacks []*Stack, req Request) []*Stack {
	if !req.Priority && req.Target.Mode != TargetAutoStart {
		return append([]*Stack(nil), stacks...)
	}
	if req.WithDependencies && req.Operation == OperationUp {
		return s.dependencyUpOrder(stacks)
	}
	return UpOrder(stacks)
}

// dependencyUpOrder sorts an expanded batch by priority without starting a
// dependency after a stack that needs it. Each dependency is lifted to the
// lowest priority among the stacks that need it, directly or transitively.
// Stacks arrive with their dependencies first, so ties keep that order.
func (s *Selector) dependencyUpOrder(stacks []*Stack) []*Stack {
	effective := make(map[string]int, len(stacks))
	for _, stack := range stacks {
		if p, ok := effective[stack.Name]; !ok || stack.Priority < p {
			effective[stack.Name] = stack.Priority
		}
	}

	for _, stack := range stacks {
		deps, err := s.resolver.ResolveStack(stack)
		if err != nil {
			continue
		}
		for _, d := range deps {
			if p, ok := effective[d.Name]; ok && stack.Priority < p {
				effective[d.Name] = stack.Priority
			}
		}
	}

	out := append([]*Stack(nil), stacks...)
	sort.SliceStable(out, func(i, j int) bool {
		return effective[out[i].Name] < effective[out[j].Name]
	})
	return out
}

// UpOrder returns stacks sorted by ascending priority. Ties keep their
// input order.
func UpOrder(stacks []*Stack) []*Stack {
	out := append([]*Stack(nil), stacks...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Priority < out[j].Priority
	})
	return out
}

// DownOrder returns stacks sorted by descending priority. Ties keep their
// input order.
func DownOrder(stacks []*Stack) []*Stack {
	out := append([]*Stack(nil), stacks...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Priority > out[j].Priority
	})
	return out
}
