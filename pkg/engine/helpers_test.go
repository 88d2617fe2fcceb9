package engine

import (
	"context"
	"errors"
	"testing"
)

// fixtureStacks mirrors the stacks used by the CLI integration tests.
func fixtureStacks() []*Stack {
	return []*Stack{
		{
			Name: "hello", Path: "/stacks/hello", HasCompose: true, HasMetadata: true,
			Category: "test", Tags: []string{"dev", "testing"},
			Description: "Test hello-world stack", Priority: 50,
		},
		{
			Name: "stack-a", Path: "/stacks/stack-a", HasCompose: true, HasMetadata: true,
			Category: "test", Tags: []string{"dev"}, Priority: 50,
		},
		{
			Name: "stack-b", Path: "/stacks/stack-b", HasCompose: true, HasMetadata: true,
			Category: "infra", AutoStart: true, Priority: 1,
		},
		{
			Name: "stack-c", Path: "/stacks/stack-c", HasCompose: true, HasMetadata: true,
			Category: "test", Subcategory: "integration", DependsOn: []string{"stack-a"}, Priority: 50,
		},
		{
			Name: "stack-d", Path: "/stacks/stack-d", HasCompose: true, HasMetadata: true,
			Category: "web", Description: "Frontend", Priority: 5,
		},
	}
}

func setupTestRegistry(t *testing.T, stacks []*Stack, store MetadataStore) *Registry {
	t.Helper()

	registry, err := NewRegistry(stacks, store)
	if err != nil {
		t.Fatalf("Failed to create registry: %v", err)
	}
	return registry
}

// chain builds stacks from name -> depends_on pairs in the given order.
func chain(t *testing.T, names []string, deps map[string][]string) *Registry {
	t.Helper()

	stacks := make([]*Stack, 0, len(names))
	for _, n := range names {
		stacks = append(stacks, &Stack{Name: n, DependsOn: deps[n], Priority: 50, HasCompose: true, HasMetadata: true})
	}
	return setupTestRegistry(t, stacks, nil)
}

func names(stacks []*Stack) []string {
	out := make([]string, len(stacks))
	for i, s := range stacks {
		out[i] = s.Name
	}
	return out
}

func equalNames(got []*Stack, want ...string) bool {
	if len(got) != len(want) {
		return false
	}
	for i, s := range got {
		if s.Name != want[i] {
			return false
		}
	}
	return true
}

type fakeStore struct {
	saved []string
	fail  map[string]bool
}

func (f *fakeStore) Save(_ context.Context, stack *Stack) error {
	if f.fail[stack.Name] {
		return errors.New("disk full")
	}
	f.saved = append(f.saved, stack.Name)
	return nil
}

type call struct {
	action Action
	stack  string
}

type fakeOrchestrator struct {
	calls []call
	fail  map[call]bool
}

func (f *fakeOrchestrator) Start(_ context.Context, stack *Stack) error {
	return f.do(ActionStart, stack)
}

func (f *fakeOrchestrator) Stop(_ context.Context, stack *Stack) error {
	return f.do(ActionStop, stack)
}

func (f *fakeOrchestrator) do(action Action, stack *Stack) error {
	c := call{action: action, stack: stack.Name}
	f.calls = append(f.calls, c)
	if f.fail[c] {
		return errors.New("exit status 1")
	}
	return nil
}
