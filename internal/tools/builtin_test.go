package tools

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/meetnote/meetnote/internal/log"
	"github.com/meetnote/meetnote/internal/notes"
	"github.com/meetnote/meetnote/internal/prompt"
)

// fakeDirectory records the filter of the last ListSessions call.
type fakeDirectory struct {
	notes.Empty
	sessions   []*notes.Session
	lastFilter notes.SessionFilter
	listErr    error
}

func (f *fakeDirectory) ListSessions(_ context.Context, filter notes.SessionFilter) ([]*notes.Session, error) {
	f.lastFilter = filter
	return f.sessions, f.listErr
}

func newBuiltinAssembler(dir notes.Directory) *Assembler {
	return NewAssembler(nil, "", nil, dir, log.NewNop())
}

func TestRegisterBuiltinsWithoutSelection(t *testing.T) {
	t.Parallel()

	a := newBuiltinAssembler(&fakeDirectory{})
	r := NewRegistry(log.NewNop())
	a.registerBuiltins(r, nil)

	if _, ok := r.Get(ToolEditNote); ok {
		t.Error("edit_note registered without a selection")
	}
	if _, ok := r.Get(ToolSearchDateRange); !ok {
		t.Error("search_date_range missing")
	}
	if _, ok := r.Get(ToolSearchKeywords); !ok {
		t.Error("search_keywords missing")
	}
}

func TestRegisterBuiltinsWithSelection(t *testing.T) {
	t.Parallel()

	a := newBuiltinAssembler(&fakeDirectory{})
	r := NewRegistry(log.NewNop())
	a.registerBuiltins(r, &prompt.Selection{Text: "span", StartOffset: 3, EndOffset: 7})

	d, ok := r.Get(ToolEditNote)
	if !ok {
		t.Fatal("edit_note missing")
	}
	if d.InputSchema == nil {
		t.Error("edit_note schema missing")
	}

	out, err := d.Execute(context.Background(), map[string]any{"new_text": "better span"})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !strings.Contains(out, "better span") || !strings.Contains(out, "3-7") {
		t.Errorf("output = %q", out)
	}

	if _, err := d.Execute(context.Background(), map[string]any{}); !errors.Is(err, ErrToolFailed) {
		t.Errorf("missing new_text err = %v, want ErrToolFailed", err)
	}
}

func TestSearchDateRangeExecute(t *testing.T) {
	t.Parallel()

	dir := &fakeDirectory{sessions: []*notes.Session{
		{ID: "s1", Title: "Standup", CreatedAt: time.Date(2026, 8, 20, 9, 0, 0, 0, time.UTC)},
	}}
	d, err := searchDateRangeDescriptor(dir)
	if err != nil {
		t.Fatalf("descriptor: %v", err)
	}

	out, err := d.Execute(context.Background(), map[string]any{
		"start": "2026-08-01",
		"end":   "2026-08-31",
	})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !strings.Contains(out, "Standup") {
		t.Errorf("output = %q", out)
	}
	if dir.lastFilter.From.IsZero() || dir.lastFilter.To.IsZero() {
		t.Errorf("filter not populated: %+v", dir.lastFilter)
	}
	if dir.lastFilter.Limit != searchResultLimit {
		t.Errorf("limit = %d", dir.lastFilter.Limit)
	}

	if _, err := d.Execute(context.Background(), map[string]any{"start": "not a date", "end": "2026-08-31"}); !errors.Is(err, ErrToolFailed) {
		t.Errorf("invalid date err = %v, want ErrToolFailed", err)
	}
}

func TestSearchKeywordsExecute(t *testing.T) {
	t.Parallel()

	dir := &fakeDirectory{}
	d, err := searchKeywordsDescriptor(dir)
	if err != nil {
		t.Fatalf("descriptor: %v", err)
	}

	out, err := d.Execute(context.Background(), map[string]any{
		"keywords": []any{"roadmap", "budget"},
	})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !strings.Contains(out, "No matching sessions") {
		t.Errorf("output = %q", out)
	}
	if len(dir.lastFilter.Keywords) != 2 {
		t.Errorf("keywords = %v", dir.lastFilter.Keywords)
	}

	if _, err := d.Execute(context.Background(), map[string]any{"keywords": []any{}}); !errors.Is(err, ErrToolFailed) {
		t.Errorf("empty keywords err = %v, want ErrToolFailed", err)
	}
}

func TestParseFlexibleTime(t *testing.T) {
	t.Parallel()

	if _, err := parseFlexibleTime("2026-08-23T10:00:00Z"); err != nil {
		t.Errorf("RFC3339: %v", err)
	}
	if _, err := parseFlexibleTime("2026-08-23"); err != nil {
		t.Errorf("date only: %v", err)
	}
	if _, err := parseFlexibleTime("yesterday"); err == nil {
		t.Error("expected error for non-date")
	}
}
