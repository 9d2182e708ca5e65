// Package conversation keeps the chat state synchronized between the store,
// the generation transport, and the UI: conversation listing and selection,
// message refresh, and the send orchestration for one user turn.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/meetnote/meetnote/internal/chat"
	"github.com/meetnote/meetnote/internal/generate"
	"github.com/meetnote/meetnote/internal/notes"
	"github.com/meetnote/meetnote/internal/prompt"
	"github.com/meetnote/meetnote/internal/tools"
)

// ErrGenerating is returned when an operation conflicts with a generation in
// flight.
var ErrGenerating = errors.New("a generation is in flight")

// Summary is one conversation in the sidebar listing.
type Summary struct {
	Conversation chat.Conversation
	// Preview is the text of the first user message, empty when none exists.
	Preview string
	// LastActivity is the newest message timestamp, falling back to the
	// conversation's own creation time when it has no messages.
	LastActivity time.Time
}

// Settings is the generation configuration the sync layer needs per turn.
type Settings struct {
	// Model is the provider-prefixed model name.
	Model string
	// Endpoint is the model API base URL, empty for the provider default.
	Endpoint string
	// ConnectionType names the model connection kind for the system prompt.
	ConnectionType string
	MaxSteps       int
}

// SendOptions carries the per-turn context of one user send.
type SendOptions struct {
	SessionID string
	UserID    string
	// Session is the note snapshot already held by the UI; when present the
	// prompt assembler uses it instead of refetching.
	Session *notes.Session
	// Selection is the highlighted note span, if any.
	Selection *prompt.Selection
	// Mentions are the notes and people referenced in the input.
	Mentions []prompt.Mention
	// LicenseValid gates the premium tool provider.
	LicenseValid bool
	// OnChunk, when set, observes streamed chunks as they arrive.
	OnChunk func(generate.Chunk)
}

// Sync orchestrates one chat pane: which conversation is selected, its
// messages, and the send/stream/persist cycle of a turn.
type Sync struct {
	store         *chat.Store
	transport     *generate.Transport
	prompts       *prompt.Assembler
	toolAssembler *tools.Assembler
	settings      Settings
	logger        *slog.Logger

	mu         sync.Mutex
	selectedID string
	messages   []chat.Message
	generating bool
	lastError  string
	onUpdate   func()
}

// NewSync wires the sync layer. All dependencies are required except logger.
func NewSync(store *chat.Store, transport *generate.Transport, prompts *prompt.Assembler, toolAssembler *tools.Assembler, settings Settings, logger *slog.Logger) *Sync {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sync{
		store:         store,
		transport:     transport,
		prompts:       prompts,
		toolAssembler: toolAssembler,
		settings:      settings,
		logger:        logger,
	}
}

// SetOnUpdate registers a callback invoked after every state change: chunk
// arrival, refresh, selection change, turn end. Called without locks held.
func (s *Sync) SetOnUpdate(fn func()) {
	s.mu.Lock()
	s.onUpdate = fn
	s.mu.Unlock()
}

func (s *Sync) notify() {
	s.mu.Lock()
	fn := s.onUpdate
	s.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// Refresh reloads the conversation list for a session and reconciles the
// selection: the conversation with the newest activity is always selected,
// and an empty list clears the selection. Returns summaries sorted by the
// store's recency order.
func (s *Sync) Refresh(ctx context.Context, sessionID string) ([]Summary, error) {
	conversations, err := s.store.ListConversations(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("listing conversations: %w", err)
	}

	summaries := make([]Summary, 0, len(conversations))
	for _, conv := range conversations {
		summary := Summary{Conversation: *conv, LastActivity: conv.CreatedAt}
		messages, err := s.store.ListMessages(ctx, conv.ID)
		if err != nil {
			s.logger.Warn("listing messages for summary", "conversation_id", conv.ID, "error", err)
		}
		for _, m := range messages {
			if summary.Preview == "" && m.Role == chat.RoleUser {
				summary.Preview = m.TextContent()
			}
			if m.CreatedAt.After(summary.LastActivity) {
				summary.LastActivity = m.CreatedAt
			}
		}
		summaries = append(summaries, summary)
	}

	// Selection follows activity unconditionally so the pane always opens on
	// the conversation the user touched last.
	var newest string
	var newestAt time.Time
	for _, sum := range summaries {
		if newest == "" || sum.LastActivity.After(newestAt) {
			newest = sum.Conversation.ID
			newestAt = sum.LastActivity
		}
	}

	s.mu.Lock()
	s.selectedID = newest
	s.mu.Unlock()

	if err := s.RefreshMessages(ctx); err != nil {
		s.logger.Warn("refreshing messages after list refresh", "error", err)
	}
	s.notify()
	return summaries, nil
}

// Select switches the pane to the given conversation and reloads its
// messages. Returns ErrGenerating while a turn is in flight.
func (s *Sync) Select(ctx context.Context, conversationID string) error {
	s.mu.Lock()
	if s.generating {
		s.mu.Unlock()
		return ErrGenerating
	}
	s.selectedID = conversationID
	s.mu.Unlock()

	if err := s.RefreshMessages(ctx); err != nil {
		return err
	}
	s.notify()
	return nil
}

// Selected returns the selected conversation id, empty when none.
func (s *Sync) Selected() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selectedID
}

// Messages returns a snapshot of the pane's messages, including the
// streaming assistant message while a turn is in flight.
func (s *Sync) Messages() []chat.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]chat.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Generating reports whether a turn is in flight.
func (s *Sync) Generating() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generating
}

// LastError returns the error text of the last failed turn, empty otherwise.
func (s *Sync) LastError() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastError
}

// RefreshMessages reloads the selected conversation's messages from the
// store. While a generation is in flight the reload is suppressed so the
// streaming message is not clobbered by a stale read.
func (s *Sync) RefreshMessages(ctx context.Context) error {
	s.mu.Lock()
	if s.generating {
		s.mu.Unlock()
		return nil
	}
	id := s.selectedID
	s.mu.Unlock()

	if id == "" {
		s.mu.Lock()
		s.messages = nil
		s.mu.Unlock()
		return nil
	}

	messages, err := s.store.ListMessages(ctx, id)
	if err != nil {
		return fmt.Errorf("listing messages: %w", err)
	}
	s.mu.Lock()
	s.messages = messages
	s.mu.Unlock()
	return nil
}

// GetOrCreateConversationID returns the selected conversation, creating one
// when none is selected. This is the only place conversations are created, so
// repeated sends into an empty pane reuse the same conversation.
func (s *Sync) GetOrCreateConversationID(ctx context.Context, sessionID, userID string) (string, error) {
	s.mu.Lock()
	id := s.selectedID
	s.mu.Unlock()
	if id != "" {
		return id, nil
	}

	conv, err := s.store.CreateConversation(ctx, sessionID, userID, "")
	if err != nil {
		return "", fmt.Errorf("creating conversation: %w", err)
	}
	s.mu.Lock()
	s.selectedID = conv.ID
	s.mu.Unlock()
	return conv.ID, nil
}

// Stop aborts the turn in flight, if any.
func (s *Sync) Stop() {
	s.transport.Stop()
}

// Send runs one user turn: persist the user message, assemble prompt and
// tools, stream the generation into the pane, and persist the assistant
// message when the turn completes. Returns ErrGenerating when a turn is
// already in flight. Send blocks until the turn ends.
func (s *Sync) Send(ctx context.Context, content string, opts SendOptions) error {
	s.mu.Lock()
	if s.generating {
		s.mu.Unlock()
		return ErrGenerating
	}
	s.generating = true
	s.lastError = ""
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.generating = false
		s.mu.Unlock()
		s.notify()
	}()

	conversationID, err := s.GetOrCreateConversationID(ctx, opts.SessionID, opts.UserID)
	if err != nil {
		return err
	}

	userMsg := chat.Message{
		ConversationID: conversationID,
		Role:           chat.RoleUser,
		Parts:          []chat.Part{chat.NewTextPart(content)},
	}
	if err := s.store.CreateMessage(ctx, &userMsg); err != nil {
		// The turn still runs; the message exists in the pane and the model
		// sees it, it is just not durable.
		s.logger.Error("persisting user message", "conversation_id", conversationID, "error", err)
	}

	s.mu.Lock()
	s.messages = append(s.messages, userMsg)
	s.mu.Unlock()
	s.notify()

	history := s.Messages()
	sanitized := chat.Sanitize(history)

	toolsEnabled := prompt.ToolsEnabled(s.settings.Model, s.settings.Endpoint)
	registry, conns := s.toolAssembler.Assemble(ctx, tools.AssembleParams{
		Enabled:      toolsEnabled,
		LicenseValid: opts.LicenseValid,
		Selection:    opts.Selection,
	})

	rendered, err := s.prompts.Assemble(ctx, prompt.Params{
		SessionID:      opts.SessionID,
		UserID:         opts.UserID,
		Session:        opts.Session,
		Selection:      opts.Selection,
		Mentions:       opts.Mentions,
		Content:        content,
		ConnectionType: s.settings.ConnectionType,
		ToolsEnabled:   toolsEnabled && registry.Len() > 0,
		ToolNames:      registry.Names(),
	})
	if err != nil {
		for _, conn := range conns {
			if closeErr := conn.Close(); closeErr != nil {
				s.logger.Debug("closing tool provider", "error", closeErr)
			}
		}
		return fmt.Errorf("assembling prompt: %w", err)
	}

	// The model sees the rendered user prompt; the store keeps the raw text.
	modelMessages := make([]chat.Message, len(sanitized))
	copy(modelMessages, sanitized)
	if n := len(modelMessages); n > 0 && modelMessages[n-1].Role == chat.RoleUser {
		modelMessages[n-1].Parts = []chat.Part{chat.NewTextPart(rendered.User)}
	}

	// Streaming assistant message, updated in place as chunks arrive.
	s.mu.Lock()
	s.messages = append(s.messages, chat.Message{
		ConversationID: conversationID,
		Role:           chat.RoleAssistant,
		Parts:          nil,
	})
	streamIdx := len(s.messages) - 1
	s.mu.Unlock()

	return s.transport.SendMessages(ctx, generate.SendConfig{
		System:   rendered.System,
		Messages: modelMessages,
		Tools:    registry,
		Conns:    conns,
		MaxSteps: s.settings.MaxSteps,
		OnChunk: func(chunk generate.Chunk) {
			s.applyChunk(streamIdx, chunk)
			if opts.OnChunk != nil {
				opts.OnChunk(chunk)
			}
			s.notify()
		},
		OnFinish: func(msg *chat.Message) {
			s.finishTurn(ctx, conversationID, streamIdx, msg)
		},
	})
}

// applyChunk folds one streamed chunk into the in-flight assistant message,
// enforcing forward-only tool-call state transitions.
func (s *Sync) applyChunk(idx int, chunk generate.Chunk) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if idx >= len(s.messages) {
		return
	}
	msg := &s.messages[idx]

	switch {
	case chunk.ErrorText != "":
		s.lastError = chunk.ErrorText

	case chunk.ToolCall != nil:
		tc := chunk.ToolCall
		for i := len(msg.Parts) - 1; i >= 0; i-- {
			tool := msg.Parts[i].Tool
			if tool == nil || tool.Name != tc.Name || tool.State.Terminal() {
				continue
			}
			if !chat.ValidTransition(tool.State, tc.State) {
				s.logger.Warn("dropping tool-call state regression",
					"tool", tc.Name, "from", tool.State, "to", tc.State)
				return
			}
			tool.State = tc.State
			if tc.Input != nil {
				tool.Input = tc.Input
			}
			if tc.Output != nil {
				tool.Output = tc.Output
			}
			if tc.ErrorText != "" {
				tool.ErrorText = tc.ErrorText
			}
			return
		}
		clone := *tc
		msg.Parts = append(msg.Parts, chat.NewToolCallPart(clone))

	case chunk.Text != "":
		if n := len(msg.Parts); n > 0 && msg.Parts[n-1].IsText() {
			msg.Parts[n-1].Text += chunk.Text
		} else {
			msg.Parts = append(msg.Parts, chat.NewTextPart(chunk.Text))
		}
	}
}

// finishTurn persists the completed assistant message and replaces the
// streaming placeholder with the stored row.
func (s *Sync) finishTurn(ctx context.Context, conversationID string, idx int, msg *chat.Message) {
	if msg == nil || msg.Role != chat.RoleAssistant {
		s.logger.Warn("skipping persistence of non-assistant turn result",
			"conversation_id", conversationID)
		return
	}
	if conversationID == "" {
		s.logger.Warn("skipping persistence, no conversation resolved")
		return
	}

	msg.ConversationID = conversationID
	if err := s.store.CreateMessage(ctx, msg); err != nil {
		s.logger.Error("persisting assistant message",
			"conversation_id", conversationID, "error", err)
		return
	}

	s.mu.Lock()
	if idx < len(s.messages) {
		s.messages[idx] = *msg
	}
	s.mu.Unlock()
}
