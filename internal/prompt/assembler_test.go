package prompt

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/meetnote/meetnote/internal/log"
	"github.com/meetnote/meetnote/internal/notes"
	"github.com/meetnote/meetnote/internal/template"
)

// fakeDirectory is a notes.Directory with canned results and injectable
// failures.
type fakeDirectory struct {
	sessions     map[string]*notes.Session
	participants []*notes.Human
	event        *notes.Event
	humans       map[string]*notes.Human
	recent       []*notes.Session

	sessionErr      error
	participantsErr error
	eventErr        error
	humanErr        error
	listErr         error
}

func (f *fakeDirectory) GetSession(_ context.Context, id string) (*notes.Session, error) {
	if f.sessionErr != nil {
		return nil, f.sessionErr
	}
	if s, ok := f.sessions[id]; ok {
		return s, nil
	}
	return &notes.Session{}, nil
}

func (f *fakeDirectory) ListParticipants(context.Context, string) ([]*notes.Human, error) {
	return f.participants, f.participantsErr
}

func (f *fakeDirectory) GetEvent(context.Context, string) (*notes.Event, error) {
	return f.event, f.eventErr
}

func (f *fakeDirectory) GetHuman(_ context.Context, id string) (*notes.Human, error) {
	if f.humanErr != nil {
		return nil, f.humanErr
	}
	return f.humans[id], nil
}

func (f *fakeDirectory) ListSessions(context.Context, notes.SessionFilter) ([]*notes.Session, error) {
	return f.recent, f.listErr
}

func newTestAssembler(t *testing.T, dir notes.Directory) *Assembler {
	t.Helper()
	renderer, err := template.New()
	if err != nil {
		t.Fatalf("template.New: %v", err)
	}
	a := NewAssembler(dir, renderer, log.NewNop())
	a.now = func() time.Time {
		return time.Date(2026, 8, 23, 10, 0, 0, 0, time.UTC)
	}
	return a
}

func TestAssembleSystemPromptIncludesSessionContext(t *testing.T) {
	t.Parallel()

	dir := &fakeDirectory{
		sessions: map[string]*notes.Session{
			"s1": {
				ID:              "s1",
				Title:           "Q3 planning",
				EnhancedContent: "We agreed to ship on Friday.",
				Words:           420,
			},
		},
		participants: []*notes.Human{
			{FullName: "Ada Byron", JobTitle: "CTO"},
			{Email: "sam@example.com"},
		},
		event: &notes.Event{
			Name:    "Q3 sync",
			Note:    "weekly",
			StartAt: time.Date(2026, 8, 23, 9, 0, 0, 0, time.UTC),
			EndAt:   time.Date(2026, 8, 23, 10, 0, 0, 0, time.UTC),
		},
	}
	a := newTestAssembler(t, dir)

	res, err := a.Assemble(context.Background(), Params{
		SessionID:      "s1",
		Content:        "what did we decide?",
		ConnectionType: "auto",
		ToolsEnabled:   true,
		ToolNames:      []string{"search_keywords", "search_date_range"},
	})
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}

	for _, want := range []string{
		"Q3 planning",
		"We agreed to ship on Friday.",
		"Ada Byron (CTO)",
		"sam@example.com",
		"Q3 sync",
		"search_keywords, search_date_range",
	} {
		if !strings.Contains(res.System, want) {
			t.Errorf("system prompt missing %q\n%s", want, res.System)
		}
	}
	if res.User != "what did we decide?" {
		t.Errorf("plain content should pass through, got %q", res.User)
	}
}

func TestAssembleCachedSnapshotSkipsFetch(t *testing.T) {
	t.Parallel()

	dir := &fakeDirectory{sessionErr: errors.New("db down")}
	a := newTestAssembler(t, dir)

	res, err := a.Assemble(context.Background(), Params{
		SessionID: "s1",
		Session:   &notes.Session{Title: "cached title", RawContent: "raw notes"},
		Content:   "hi",
	})
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	if !strings.Contains(res.System, "cached title") {
		t.Errorf("cached snapshot not used:\n%s", res.System)
	}
}

func TestAssembleToleratesFetchFailures(t *testing.T) {
	t.Parallel()

	dir := &fakeDirectory{
		sessionErr:      errors.New("session fetch failed"),
		participantsErr: errors.New("participants fetch failed"),
		eventErr:        errors.New("event fetch failed"),
	}
	a := newTestAssembler(t, dir)

	res, err := a.Assemble(context.Background(), Params{
		SessionID: "s1",
		Content:   "hello",
	})
	if err != nil {
		t.Fatalf("assemble should tolerate fetch failures: %v", err)
	}
	if res.System == "" {
		t.Error("system prompt empty")
	}
	if res.User != "hello" {
		t.Errorf("user = %q", res.User)
	}
}

func TestAssembleToolsDisabledPrompt(t *testing.T) {
	t.Parallel()

	a := newTestAssembler(t, &fakeDirectory{})
	res, err := a.Assemble(context.Background(), Params{
		SessionID: "s1",
		Content:   "hi",
	})
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	if !strings.Contains(res.System, "no tools are available") {
		t.Errorf("expected no-tools wording:\n%s", res.System)
	}
}

func TestEnhanceUserContentNoteMention(t *testing.T) {
	t.Parallel()

	dir := &fakeDirectory{
		sessions: map[string]*notes.Session{
			"note-1": {EnhancedContent: "enhanced body"},
			"note-2": {RawContent: "raw body"},
			"note-3": {},
		},
	}
	a := newTestAssembler(t, dir)

	res, err := a.Assemble(context.Background(), Params{
		SessionID: "s1",
		Content:   "summarize these",
		Mentions: []Mention{
			{Kind: MentionNote, ID: "note-1", Label: "Kickoff"},
			{Kind: MentionNote, ID: "note-2", Label: "Retro"},
			{Kind: MentionNote, ID: "note-3", Label: "Empty"},
		},
	})
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}

	if !strings.Contains(res.User, "summarize these") {
		t.Errorf("raw content missing:\n%s", res.User)
	}
	if !strings.Contains(res.User, "enhanced body") {
		t.Errorf("enhanced content preferred, got:\n%s", res.User)
	}
	if !strings.Contains(res.User, "raw body") {
		t.Errorf("raw fallback missing:\n%s", res.User)
	}
	if strings.Contains(res.User, `label="Empty"`) {
		t.Errorf("empty mention should be dropped:\n%s", res.User)
	}
}

func TestEnhanceUserContentPersonMention(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("x", 300)
	dir := &fakeDirectory{
		humans: map[string]*notes.Human{
			"h1": {FullName: "Ada Byron", JobTitle: "CTO", Company: "Acme", Email: "ada@acme.test"},
		},
		recent: []*notes.Session{
			{Title: "1:1", EnhancedContent: "# Heading\n" + long},
		},
	}
	a := newTestAssembler(t, dir)

	res, err := a.Assemble(context.Background(), Params{
		SessionID: "s1",
		Content:   "who is ada?",
		Mentions:  []Mention{{Kind: MentionPerson, ID: "h1", Label: "Ada"}},
	})
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}

	if !strings.Contains(res.User, "Ada Byron, CTO, Acme, ada@acme.test") {
		t.Errorf("profile missing:\n%s", res.User)
	}
	if strings.Contains(res.User, "#") {
		t.Errorf("markup should be stripped:\n%s", res.User)
	}
	if !strings.Contains(res.User, "...") {
		t.Errorf("long session content should be truncated:\n%s", res.User)
	}
}

func TestEnhanceUserContentSelection(t *testing.T) {
	t.Parallel()

	a := newTestAssembler(t, &fakeDirectory{})
	res, err := a.Assemble(context.Background(), Params{
		SessionID: "s1",
		Content:   "rewrite this",
		Selection: &Selection{
			Text:        "the decision was made",
			StartOffset: 10,
			EndOffset:   31,
			SessionID:   "s1",
			Timestamp:   time.Date(2026, 8, 23, 9, 30, 0, 0, time.UTC),
		},
	})
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}

	if !strings.Contains(res.User, "the decision was made") {
		t.Errorf("selection text missing:\n%s", res.User)
	}
	if !strings.Contains(res.User, "offsets 10-31") {
		t.Errorf("offsets missing:\n%s", res.User)
	}
}

func TestStripMarkup(t *testing.T) {
	t.Parallel()

	got := stripMarkup("# Title\n\n* item `one`\n> quote _x_")
	want := "Title item one quote x"
	if got != want {
		t.Errorf("stripMarkup = %q, want %q", got, want)
	}
}
