package tools

import (
	"context"
	"testing"

	"github.com/meetnote/meetnote/internal/log"
)

func descriptor(name, result string) Descriptor {
	return Descriptor{
		Name:        name,
		Description: name,
		Execute: func(context.Context, map[string]any) (string, error) {
			return result, nil
		},
	}
}

func TestRegistryOrderAndLookup(t *testing.T) {
	t.Parallel()

	r := NewRegistry(log.NewNop())
	r.Register(descriptor("b", ""))
	r.Register(descriptor("a", ""))
	r.Register(descriptor("c", ""))

	names := r.Names()
	if len(names) != 3 || names[0] != "b" || names[1] != "a" || names[2] != "c" {
		t.Errorf("names = %v, want registration order [b a c]", names)
	}

	if _, ok := r.Get("a"); !ok {
		t.Error("Get(a) not found")
	}
	if _, ok := r.Get("missing"); ok {
		t.Error("Get(missing) found")
	}
	if r.Len() != 3 {
		t.Errorf("Len = %d, want 3", r.Len())
	}
}

func TestRegistryCollisionLastWriteWins(t *testing.T) {
	t.Parallel()

	r := NewRegistry(log.NewNop())
	r.Register(descriptor("search", "provider result"))
	r.Register(descriptor("other", ""))
	r.Register(descriptor("search", "builtin result"))

	if r.Len() != 2 {
		t.Fatalf("Len = %d, want 2", r.Len())
	}
	d, ok := r.Get("search")
	if !ok {
		t.Fatal("search not found")
	}
	out, err := d.Execute(context.Background(), nil)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if out != "builtin result" {
		t.Errorf("execute = %q, later registration should win", out)
	}

	// The winner takes the later registration's slot.
	if names := r.Names(); len(names) != 2 || names[0] != "other" || names[1] != "search" {
		t.Errorf("names = %v, want [other search]", names)
	}
	descriptors := r.Descriptors()
	if len(descriptors) != 2 || descriptors[1].Name != "search" {
		t.Errorf("descriptors = %v", descriptors)
	}
}
