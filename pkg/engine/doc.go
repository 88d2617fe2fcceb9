// Package engine provides the stack catalog, dependency resolution and
// lifecycle ordering for composer.
//
// # Overview
//
// A stack is a directory holding a compose definition and an optional
// metadata file. Every lifecycle command flows through the same pipeline:
//
//  1. Registry - the catalog of discovered stacks, in discovery order
//  2. Selector - turns a target (stack, all, category, tag, autostart) into stacks
//  3. Resolver - expands stacks with their dependency closure (up --with-deps)
//  4. Selector - orders the batch and splits it into phases
//  5. Executor - runs each phase against the Orchestrator, one stack at a time
//
// # Ordering
//
// Bring-up keeps selection order unless priority ordering is requested, in
// which case stacks are sorted by ascending priority. Tear-down is always
// sorted by descending priority. Both sorts are stable, so equal priorities
// keep discovery order. Restart stops in tear-down order and then starts in
// bring-up order.
//
// # Dependency Resolution
//
// Resolve walks depends_on edges depth first with an explicit frame stack
// and emits stacks in post-order:
//
//	resolver := engine.NewResolver(registry)
//	deps, err := resolver.Resolve("web")
//	if engine.IsCircularDependency(err) {
//	    fmt.Println(engine.CycleOf(err))
//	}
//
// BuildGraph levels the whole catalog with Kahn's algorithm and can render
// it as Graphviz DOT.
//
// # Error Classification
//
//   - NotFound: a named stack does not exist; the command aborts
//   - CircularDependency: resolution found a cycle; carries the cycle path
//   - MissingDependency: depends_on names an unknown stack
//   - ExecutionFailed: the orchestration tool failed one action; the batch continues
//
// # Thread Safety
//
// A Registry is built once per invocation and is not safe for concurrent
// mutation. The Executor is strictly sequential.
package engine
