package engine

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// Registry is the in-memory catalog of every discovered stack, keyed by name
// and ordered by discovery. It is built once per invocation and is read-only
// except for the explicit metadata mutations, which check out a copy of one
// record, persist it and then replace it in the catalog.
type Registry struct {
	stacks []*Stack
	index  map[string]int
	store  MetadataStore
}

// CategoryUsage is a distinct (category, subcategory) pair and the number of
// stacks using it.
type CategoryUsage struct {
	Category    string `json:"category"`
	Subcategory string `json:"subcategory,omitempty"`
	Count       int    `json:"count"`
}

// Label renders the pair as "category/subcategory".
func (c CategoryUsage) Label() string {
	return FormatCategory(c.Category, c.Subcategory)
}

// TagUsage is a distinct tag and the number of stacks carrying it.
type TagUsage struct {
	Tag   string `json:"tag"`
	Count int    `json:"count"`
}

// NewRegistry builds a registry from stacks in discovery order. store may be
// nil, in which case mutations only change the in-memory catalog.
func NewRegistry(stacks []*Stack, store MetadataStore) (*Registry, error) {
	r := &Registry{
		stacks: make([]*Stack, 0, len(stacks)),
		index:  make(map[string]int, len(stacks)),
		store:  store,
	}
	for _, s := range stacks {
		if s == nil || s.Name == "" {
			return nil, NewPermanentError("stack has empty name", nil).
				WithCode(ErrCodeValidation)
		}
		if _, exists := r.index[s.Name]; exists {
			return nil, NewPermanentError(fmt.Sprintf("duplicate stack name: %s", s.Name), nil).
				WithCode(ErrCodeDuplicateStack).
				WithStack(s.Name)
		}
		r.index[s.Name] = len(r.stacks)
		r.stacks = append(r.stacks, s)
	}
	return r, nil
}

// Len returns the number of stacks.
func (r *Registry) Len() int {
	return len(r.stacks)
}

// All returns every stack in discovery order.
func (r *Registry) All() []*Stack {
	out := make([]*Stack, len(r.stacks))
	copy(out, r.stacks)
	return out
}

// Get looks a stack up by exact, case-sensitive name.
func (r *Registry) Get(name string) (*Stack, bool) {
	i, ok := r.index[name]
	if !ok {
		return nil, false
	}
	return r.stacks[i], true
}

// Lookup is Get that reports a NotFound error for unknown names.
func (r *Registry) Lookup(name string) (*Stack, error) {
	s, ok := r.Get(name)
	if !ok {
		return nil, NewNotFoundError("stack", name)
	}
	return s, nil
}

// ByCategory returns the stacks whose category equals category. The
// subcategory filter is applied only when subcategory is non-empty.
func (r *Registry) ByCategory(category, subcategory string) []*Stack {
	return r.filter(func(s *Stack) bool {
		if s.Category != category {
			return false
		}
		return subcategory == "" || s.Subcategory == subcategory
	})
}

// ByTag returns the stacks carrying tag (exact, case-sensitive).
func (r *Registry) ByTag(tag string) []*Stack {
	return r.filter(func(s *Stack) bool { return s.HasTag(tag) })
}

// AutoStart returns the stacks flagged auto_start.
func (r *Registry) AutoStart() []*Stack {
	return r.filter(func(s *Stack) bool { return s.AutoStart })
}

// Search returns the stacks whose name, description, category, subcategory or
// any tag contains term, ignoring case. Results keep discovery order.
func (r *Registry) Search(term string) []*Stack {
	needle := strings.ToLower(term)
	return r.filter(func(s *Stack) bool {
		fields := []string{s.Name, s.Description, s.Category, s.Subcategory}
		fields = append(fields, s.Tags...)
		for _, f := range fields {
			if strings.Contains(strings.ToLower(f), needle) {
				return true
			}
		}
		return false
	})
}

// AllCategories returns every distinct (category, subcategory) pair in use,
// sorted by label. Stacks without a category are not counted.
func (r *Registry) AllCategories() []CategoryUsage {
	type key struct{ category, subcategory string }
	counts := make(map[key]int)
	for _, s := range r.stacks {
		if s.Category == "" {
			continue
		}
		counts[key{s.Category, s.Subcategory}]++
	}
	out := make([]CategoryUsage, 0, len(counts))
	for k, n := range counts {
		out = append(out, CategoryUsage{Category: k.category, Subcategory: k.subcategory, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Category != out[j].Category {
			return out[i].Category < out[j].Category
		}
		return out[i].Subcategory < out[j].Subcategory
	})
	return out
}

// AllTags returns every distinct tag in use, sorted.
func (r *Registry) AllTags() []TagUsage {
	counts := make(map[string]int)
	for _, s := range r.stacks {
		for _, t := range s.Tags {
			counts[t]++
		}
	}
	out := make([]TagUsage, 0, len(counts))
	for t, n := range counts {
		out = append(out, TagUsage{Tag: t, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Tag < out[j].Tag })
	return out
}

// Checkout returns a private copy of a stack for modification.
func (r *Registry) Checkout(name string) (*Stack, error) {
	s, err := r.Lookup(name)
	if err != nil {
		return nil, err
	}
	return s.Clone(), nil
}

// Commit persists a checked-out stack and replaces the catalog entry. The
// catalog is left untouched when persisting fails.
func (r *Registry) Commit(ctx context.Context, stack *Stack) error {
	i, ok := r.index[stack.Name]
	if !ok {
		return NewNotFoundError("stack", stack.Name)
	}
	if r.store != nil {
		if err := r.store.Save(ctx, stack); err != nil {
			return NewPermanentError(fmt.Sprintf("failed to save metadata for %s", stack.Name), err).
				WithCode(ErrCodePersistenceFailed).
				WithStack(stack.Name)
		}
		stack.HasMetadata = true
	}
	r.stacks[i] = stack
	return nil
}

// SetCategory assigns a category and subcategory to one stack and returns
// the previous category label.
func (r *Registry) SetCategory(ctx context.Context, name, category, subcategory string) (string, error) {
	s, err := r.Checkout(name)
	if err != nil {
		return "", err
	}
	previous := s.CategoryLabel()
	s.Category = category
	s.Subcategory = subcategory
	if category == "" {
		s.Subcategory = ""
	}
	if err := r.Commit(ctx, s); err != nil {
		return "", err
	}
	return previous, nil
}

// AddTags adds tags to one stack and returns the tags that were new.
func (r *Registry) AddTags(ctx context.Context, name string, tags ...string) ([]string, error) {
	s, err := r.Checkout(name)
	if err != nil {
		return nil, err
	}
	added := s.AddTags(tags...)
	if len(added) == 0 {
		return nil, nil
	}
	if err := r.Commit(ctx, s); err != nil {
		return nil, err
	}
	return added, nil
}

// RemoveTags removes tags from one stack and returns the tags that were present.
func (r *Registry) RemoveTags(ctx context.Context, name string, tags ...string) ([]string, error) {
	s, err := r.Checkout(name)
	if err != nil {
		return nil, err
	}
	removed := s.RemoveTags(tags...)
	if len(removed) == 0 {
		return nil, nil
	}
	if err := r.Commit(ctx, s); err != nil {
		return nil, err
	}
	return removed, nil
}

// RenameCategory moves every stack in category oldName to newName, keeping
// subcategories, and returns how many stacks changed. Renaming a category
// onto itself changes nothing and returns 0.
func (r *Registry) RenameCategory(ctx context.Context, oldName, newName string) (int, error) {
	if oldName == newName {
		return 0, nil
	}
	count := 0
	for _, current := range r.ByCategory(oldName, "") {
		s := current.Clone()
		s.Category = newName
		if err := r.Commit(ctx, s); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

// RenameTag replaces tag oldName with newName on every stack carrying it and
// returns how many stacks changed. A stack that already has newName ends up
// with a single copy.
func (r *Registry) RenameTag(ctx context.Context, oldName, newName string) (int, error) {
	if oldName == newName {
		return 0, nil
	}
	count := 0
	for _, current := range r.ByTag(oldName) {
		s := current.Clone()
		tags := make([]string, 0, len(s.Tags))
		for _, t := range s.Tags {
			if t == oldName {
				t = newName
			}
			if !containsString(tags, t) {
				tags = append(tags, t)
			}
		}
		s.Tags = tags
		if err := r.Commit(ctx, s); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

// ParseCategory splits "category/subcategory" into its parts.
func ParseCategory(value string) (string, string) {
	category, subcategory, _ := strings.Cut(value, "/")
	return strings.TrimSpace(category), strings.TrimSpace(subcategory)
}

func (r *Registry) filter(keep func(*Stack) bool) []*Stack {
	out := make([]*Stack, 0)
	for _, s := range r.stacks {
		if keep(s) {
			out = append(out, s)
		}
	}
	return out
}

func containsString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
