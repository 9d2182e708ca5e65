// Package prompt assembles the system and user prompts for one generation
// turn from session content, participants, calendar context, and
// user-referenced entities.
package prompt

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/meetnote/meetnote/internal/notes"
	"github.com/meetnote/meetnote/internal/template"
)

// MentionKind distinguishes the entity kinds a user can reference in a chat
// turn.
type MentionKind string

const (
	MentionNote   MentionKind = "note"
	MentionPerson MentionKind = "person"
)

// Mention is a user-referenced entity whose content is resolved and injected
// into the prompt.
type Mention struct {
	Kind  MentionKind
	ID    string
	Label string
}

// Selection is a user-highlighted span of existing note content attached to
// a chat turn for tool-assisted editing.
type Selection struct {
	Text        string
	StartOffset int
	EndOffset   int
	SessionID   string
	Timestamp   time.Time
}

// Params carries everything one Assemble call needs. Session is an optional
// caller-supplied cached snapshot; when nil a fresh fetch is attempted,
// tolerating failure.
type Params struct {
	SessionID      string
	UserID         string
	Session        *notes.Session
	Selection      *Selection
	Mentions       []Mention
	Content        string // raw last user message content
	ConnectionType string
	ToolsEnabled   bool
	ToolNames      []string
}

// Result is the assembled prompt pair.
type Result struct {
	System string
	// User is the enhanced last user content. Equal to Params.Content when
	// neither mentions nor a selection are present.
	User string
}

const (
	// coSessionLimit and coSessionMaxRunes bound the recent-sessions context
	// attached to a person mention.
	coSessionLimit    = 2
	coSessionMaxRunes = 200
)

// Assembler resolves context and renders the chat templates.
type Assembler struct {
	directory notes.Directory
	renderer  *template.Renderer
	logger    *slog.Logger
	now       func() time.Time
}

// NewAssembler creates an Assembler. A nil logger falls back to
// slog.Default().
func NewAssembler(directory notes.Directory, renderer *template.Renderer, logger *slog.Logger) *Assembler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Assembler{
		directory: directory,
		renderer:  renderer,
		logger:    logger,
		now:       time.Now,
	}
}

// Assemble produces the system prompt and the enhanced last user content.
// Session, participant, event, and mention fetches are independent; each
// failure is logged and substitutes an empty value rather than aborting
// assembly.
func (a *Assembler) Assemble(ctx context.Context, p Params) (Result, error) {
	type sessionResult struct {
		session *notes.Session
	}
	type participantsResult struct {
		participants []*notes.Human
	}
	type eventResult struct {
		event *notes.Event
	}

	sessionCh := make(chan sessionResult, 1)
	participantsCh := make(chan participantsResult, 1)
	eventCh := make(chan eventResult, 1)

	// Buffered channels: each goroutine sends once and exits even if the
	// caller returns early on context error.
	go func() {
		if p.Session != nil {
			sessionCh <- sessionResult{p.Session}
			return
		}
		sess, err := a.directory.GetSession(ctx, p.SessionID)
		if err != nil {
			a.logger.Warn("fetching session snapshot", "session_id", p.SessionID, "error", err)
			sessionCh <- sessionResult{&notes.Session{}}
			return
		}
		sessionCh <- sessionResult{sess}
	}()

	go func() {
		participants, err := a.directory.ListParticipants(ctx, p.SessionID)
		if err != nil {
			a.logger.Warn("fetching participants", "session_id", p.SessionID, "error", err)
			participantsCh <- participantsResult{nil}
			return
		}
		participantsCh <- participantsResult{participants}
	}()

	go func() {
		event, err := a.directory.GetEvent(ctx, p.SessionID)
		if err != nil {
			a.logger.Warn("fetching event", "session_id", p.SessionID, "error", err)
			eventCh <- eventResult{nil}
			return
		}
		eventCh <- eventResult{event}
	}()

	session := (<-sessionCh).session
	participants := (<-participantsCh).participants
	event := (<-eventCh).event
	if session == nil {
		session = &notes.Session{}
	}

	if err := ctx.Err(); err != nil {
		return Result{}, fmt.Errorf("assembling context: %w", err)
	}

	system, err := a.renderer.Render(template.ChatSystem, map[string]any{
		"current_time":        a.now().Format(time.RFC3339),
		"connection_type":     p.ConnectionType,
		"title":               session.Title,
		"raw_content":         session.RawContent,
		"enhanced_content":    session.EnhancedContent,
		"pre_meeting_content": session.PreMeetingContent,
		"words":               session.Words,
		"participants":        formatParticipants(participants),
		"event":               formatEvent(event),
		"tools_enabled":       p.ToolsEnabled,
		"tool_names":          strings.Join(p.ToolNames, ", "),
	})
	if err != nil {
		return Result{}, fmt.Errorf("rendering system prompt: %w", err)
	}

	user, err := a.enhanceUserContent(ctx, p)
	if err != nil {
		return Result{}, err
	}

	return Result{System: system, User: user}, nil
}

// enhanceUserContent renders the last user message through the chat.user
// template when mentions or a selection are present; otherwise the raw
// content passes through unmodified.
func (a *Assembler) enhanceUserContent(ctx context.Context, p Params) (string, error) {
	if len(p.Mentions) == 0 && p.Selection == nil {
		return p.Content, nil
	}

	var mentions []map[string]any
	for _, m := range p.Mentions {
		content, ok := a.resolveMention(ctx, p.UserID, m)
		if !ok {
			continue
		}
		mentions = append(mentions, map[string]any{
			"kind":    string(m.Kind),
			"label":   m.Label,
			"content": content,
		})
	}

	vars := map[string]any{
		"content":  p.Content,
		"mentions": mentions,
	}
	if p.Selection != nil {
		vars["selection"] = map[string]any{
			"text":         p.Selection.Text,
			"start_offset": p.Selection.StartOffset,
			"end_offset":   p.Selection.EndOffset,
			"session_id":   p.Selection.SessionID,
			"timestamp":    p.Selection.Timestamp.Format(time.RFC3339),
		}
	}

	user, err := a.renderer.Render(template.ChatUser, vars)
	if err != nil {
		return "", fmt.Errorf("rendering user prompt: %w", err)
	}
	return user, nil
}

// resolveMention resolves one mention to injectable text. A fetch failure or
// empty result drops the mention (logged) rather than aborting assembly.
func (a *Assembler) resolveMention(ctx context.Context, userID string, m Mention) (string, bool) {
	switch m.Kind {
	case MentionNote:
		sess, err := a.directory.GetSession(ctx, m.ID)
		if err != nil {
			a.logger.Warn("resolving note mention", "id", m.ID, "error", err)
			return "", false
		}
		if sess.EnhancedContent != "" {
			return sess.EnhancedContent, true
		}
		if sess.RawContent != "" {
			return sess.RawContent, true
		}
		return "", false

	case MentionPerson:
		human, err := a.directory.GetHuman(ctx, m.ID)
		if err != nil {
			a.logger.Warn("resolving person mention", "id", m.ID, "error", err)
			return "", false
		}
		if human == nil {
			return "", false
		}
		profile := formatProfile(human)

		recent, err := a.directory.ListSessions(ctx, notes.SessionFilter{
			ParticipantID: m.ID,
			Limit:         coSessionLimit,
		})
		if err != nil {
			a.logger.Warn("listing co-participated sessions", "id", m.ID, "error", err)
			return profile, true
		}
		var sb strings.Builder
		sb.WriteString(profile)
		for _, sess := range recent {
			content := sess.EnhancedContent
			if content == "" {
				content = sess.RawContent
			}
			sb.WriteString(fmt.Sprintf("\nRecent session %q: %s",
				sess.Title, truncateRunes(stripMarkup(content), coSessionMaxRunes)))
		}
		return sb.String(), true

	default:
		a.logger.Warn("unknown mention kind", "kind", m.Kind, "id", m.ID)
		return "", false
	}
}

func formatParticipants(participants []*notes.Human) string {
	if len(participants) == 0 {
		return ""
	}
	names := make([]string, 0, len(participants))
	for _, h := range participants {
		name := h.FullName
		if name == "" {
			name = h.Email
		}
		if h.JobTitle != "" {
			name += " (" + h.JobTitle + ")"
		}
		names = append(names, name)
	}
	return strings.Join(names, ", ")
}

// formatEvent renders "name (start - end - note)"; empty when no event.
func formatEvent(event *notes.Event) string {
	if event == nil {
		return ""
	}
	return fmt.Sprintf("%s (%s - %s - %s)",
		event.Name,
		event.StartAt.Format(time.RFC3339),
		event.EndAt.Format(time.RFC3339),
		event.Note)
}

func formatProfile(h *notes.Human) string {
	fields := []string{h.FullName}
	if h.JobTitle != "" {
		fields = append(fields, h.JobTitle)
	}
	if h.Company != "" {
		fields = append(fields, h.Company)
	}
	if h.Email != "" {
		fields = append(fields, h.Email)
	}
	return strings.Join(fields, ", ")
}

// stripMarkup collapses note content to plain text: markdown markers removed,
// whitespace runs collapsed to single spaces.
func stripMarkup(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))
	for _, r := range s {
		switch r {
		case '#', '*', '`', '>', '_':
		case '\n', '\t', '\r':
			sb.WriteRune(' ')
		default:
			sb.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(sb.String()), " ")
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}
