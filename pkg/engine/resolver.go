package engine

// Resolver computes dependency closures over a registry.
// It holds no state between calls, so a failed resolution never affects a
// later one made through the same instance.
type Resolver struct {
	registry *Registry

	// skipMissing ignores dangling depends_on entries instead of failing.
	// Used by analysis passes that only care about cycles.
	skipMissing bool
}

// NewResolver creates a resolver for registry.
func NewResolver(registry *Registry) *Resolver {
	return &Resolver{registry: registry}
}

// resolveFrame is one entry of the explicit traversal stack.
type resolveFrame struct {
	stack *Stack
	next  int
}

// Resolve returns the stacks that must start before the named stack, each
// once, dependencies first. The stack itself is not included.
func (r *Resolver) Resolve(name string) ([]*Stack, error) {
	root, err := r.registry.Lookup(name)
	if err != nil {
		return nil, err
	}
	return r.ResolveStack(root)
}

// ResolveStack is Resolve for a stack that is already looked up.
//
// The walk is a depth-first post-order traversal driven by an explicit frame
// stack. Two sets track progress: visiting holds the stacks on the active
// path and resolved holds the stacks already emitted. Reaching a stack that
// is in visiting closes a cycle.
func (r *Resolver) ResolveStack(root *Stack) ([]*Stack, error) {
	visiting := map[string]bool{root.Name: true}
	resolved := make(map[string]bool)
	order := make([]*Stack, 0, len(root.DependsOn))
	frames := []resolveFrame{{stack: root}}

	for len(frames) > 0 {
		top := &frames[len(frames)-1]

		if top.next < len(top.stack.DependsOn) {
			depName := top.stack.DependsOn[top.next]
			top.next++

			if resolved[depName] {
				continue
			}
			if visiting[depName] {
				return nil, NewCircularDependencyError(cyclePath(frames, depName))
			}

			dep, ok := r.registry.Get(depName)
			if !ok {
				if r.skipMissing {
					continue
				}
				return nil, NewMissingDependencyError(top.stack.Name, depName)
			}

			visiting[depName] = true
			frames = append(frames, resolveFrame{stack: dep})
			continue
		}

		done := top.stack
		frames = frames[:len(frames)-1]
		delete(visiting, done.Name)
		resolved[done.Name] = true

		// The root finishes last and is not part of its own closure.
		if len(frames) > 0 {
			order = append(order, done)
		}
	}

	return order, nil
}

// cyclePath extracts the cycle closed by revisiting name: the stacks on the
// active path from name onwards, followed by name again.
func cyclePath(frames []resolveFrame, name string) []string {
	start := 0
	for i, f := range frames {
		if f.stack.Name == name {
			start = i
			break
		}
	}
	cycle := make([]string, 0, len(frames)-start+1)
	for _, f := range frames[start:] {
		cycle = append(cycle, f.stack.Name)
	}
	return append(cycle, name)
}
