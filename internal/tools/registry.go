// Package tools assembles the callable tool set for one generation turn:
// tools discovered from remote providers, the premium provider, and the
// built-in note tools.
package tools

import (
	"context"
	"log/slog"

	"github.com/google/jsonschema-go/jsonschema"
)

// ExecFunc runs a tool against its already-decoded input and returns the
// tool's textual output.
type ExecFunc func(ctx context.Context, input map[string]any) (string, error)

// Descriptor describes one callable tool. Provider identity is not retained:
// a descriptor stands alone once registered.
type Descriptor struct {
	Name        string
	Description string
	InputSchema *jsonschema.Schema
	Execute     ExecFunc
}

// Registry maps tool names to descriptors, preserving registration order for
// prompt rendering. Name collisions are last-write-wins; the policy lives
// here so it can be revisited in one place.
type Registry struct {
	order  []string
	byName map[string]Descriptor
	logger *slog.Logger
}

// NewRegistry creates an empty registry. A nil logger falls back to
// slog.Default().
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		byName: make(map[string]Descriptor),
		logger: logger,
	}
}

// Register adds a descriptor. A colliding name overwrites the earlier
// registration and logs a warning; the winner also takes the later slot in
// registration order, so Names and Descriptors reflect actual precedence.
func (r *Registry) Register(d Descriptor) {
	if _, exists := r.byName[d.Name]; exists {
		r.logger.Warn("tool name collision, later registration wins", "name", d.Name)
		for i, name := range r.order {
			if name == d.Name {
				r.order = append(r.order[:i], r.order[i+1:]...)
				break
			}
		}
	}
	r.order = append(r.order, d.Name)
	r.byName[d.Name] = d
}

// Get looks up a descriptor by name.
func (r *Registry) Get(name string) (Descriptor, bool) {
	d, ok := r.byName[name]
	return d, ok
}

// Names returns tool names in registration order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

// Descriptors returns all descriptors in registration order.
func (r *Registry) Descriptors() []Descriptor {
	out := make([]Descriptor, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.byName[name])
	}
	return out
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	return len(r.byName)
}
