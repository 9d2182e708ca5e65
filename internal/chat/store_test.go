package chat_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/meetnote/meetnote/internal/chat"
	"github.com/meetnote/meetnote/internal/database"
	"github.com/meetnote/meetnote/internal/log"
)

func newTestStore(t *testing.T) *chat.Store {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return chat.NewStore(db, log.NewNop())
}

func TestCreateAndGetConversation(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()

	conv, err := store.CreateConversation(ctx, "session-1", "user-1", "planning chat")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if conv.ID == "" {
		t.Fatal("conversation id not assigned")
	}

	got, err := store.GetConversation(ctx, conv.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.SessionID != "session-1" || got.UserID != "user-1" || got.Name != "planning chat" {
		t.Errorf("got %+v", got)
	}
	if got.CreatedAt.IsZero() || got.UpdatedAt.IsZero() {
		t.Error("timestamps not set")
	}
}

func TestGetConversationNotFound(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)

	_, err := store.GetConversation(context.Background(), "missing")
	if !errors.Is(err, chat.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestListConversationsRecencyOrder(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()

	first, err := store.CreateConversation(ctx, "session-1", "user-1", "")
	if err != nil {
		t.Fatalf("create first: %v", err)
	}
	second, err := store.CreateConversation(ctx, "session-1", "user-1", "")
	if err != nil {
		t.Fatalf("create second: %v", err)
	}
	if _, err := store.CreateConversation(ctx, "other-session", "user-1", ""); err != nil {
		t.Fatalf("create other: %v", err)
	}

	// A new message bumps the first conversation ahead of the second.
	msg := chat.Message{
		ConversationID: first.ID,
		Role:           chat.RoleUser,
		Parts:          []chat.Part{chat.NewTextPart("hello")},
	}
	if err := store.CreateMessage(ctx, &msg); err != nil {
		t.Fatalf("create message: %v", err)
	}

	conversations, err := store.ListConversations(ctx, "session-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(conversations) != 2 {
		t.Fatalf("conversations = %d, want 2 (session scoped)", len(conversations))
	}
	if conversations[0].ID != first.ID {
		t.Errorf("first listed = %s, want bumped conversation %s", conversations[0].ID, first.ID)
	}
	if conversations[1].ID != second.ID {
		t.Errorf("second listed = %s, want %s", conversations[1].ID, second.ID)
	}
}

func TestMessageRoundTrip(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()

	conv, err := store.CreateConversation(ctx, "session-1", "user-1", "")
	if err != nil {
		t.Fatalf("create conversation: %v", err)
	}

	user := chat.Message{
		ConversationID: conv.ID,
		Role:           chat.RoleUser,
		Parts:          []chat.Part{chat.NewTextPart("what did we decide?")},
	}
	if err := store.CreateMessage(ctx, &user); err != nil {
		t.Fatalf("create user message: %v", err)
	}

	assistant := chat.Message{
		ConversationID: conv.ID,
		Role:           chat.RoleAssistant,
		Parts: []chat.Part{
			chat.NewToolCallPart(chat.ToolCall{
				Name:  "search_keywords",
				State: chat.StateOutputAvailable,
			}),
			chat.NewTextPart("You decided to ship on Friday."),
		},
		Metadata: map[string]any{"model": "gpt-4.1-mini"},
	}
	if err := store.CreateMessage(ctx, &assistant); err != nil {
		t.Fatalf("create assistant message: %v", err)
	}

	messages, err := store.ListMessages(ctx, conv.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(messages) != 2 {
		t.Fatalf("messages = %d, want 2", len(messages))
	}
	if messages[0].Role != chat.RoleUser || messages[1].Role != chat.RoleAssistant {
		t.Errorf("order = %s, %s", messages[0].Role, messages[1].Role)
	}

	got := messages[1]
	if len(got.Parts) != 2 {
		t.Fatalf("parts = %d, want 2", len(got.Parts))
	}
	if got.Parts[0].Tool == nil || got.Parts[0].Tool.Name != "search_keywords" {
		t.Errorf("tool part = %+v", got.Parts[0])
	}
	if got.Parts[1].Text != "You decided to ship on Friday." {
		t.Errorf("text part = %q", got.Parts[1].Text)
	}
	if got.Metadata["model"] != "gpt-4.1-mini" {
		t.Errorf("metadata = %v", got.Metadata)
	}
}

func TestCreateMessageInvalidRole(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)

	msg := chat.Message{ConversationID: "c", Role: chat.Role("bot")}
	if err := store.CreateMessage(context.Background(), &msg); err == nil {
		t.Error("expected error for invalid role")
	}
}

func TestUpdateMessageParts(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()

	conv, err := store.CreateConversation(ctx, "session-1", "user-1", "")
	if err != nil {
		t.Fatalf("create conversation: %v", err)
	}
	msg := chat.Message{
		ConversationID: conv.ID,
		Role:           chat.RoleAssistant,
		Parts:          []chat.Part{chat.NewTextPart("draft")},
	}
	if err := store.CreateMessage(ctx, &msg); err != nil {
		t.Fatalf("create message: %v", err)
	}

	if err := store.UpdateMessageParts(ctx, msg.ID, []chat.Part{chat.NewTextPart("final")}); err != nil {
		t.Fatalf("update: %v", err)
	}

	messages, err := store.ListMessages(ctx, conv.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if messages[0].Parts[0].Text != "final" {
		t.Errorf("parts = %+v", messages[0].Parts)
	}

	if err := store.UpdateMessageParts(ctx, "missing", nil); !errors.Is(err, chat.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestListMessagesEmptyConversation(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)

	messages, err := store.ListMessages(context.Background(), "nothing-here")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(messages) != 0 {
		t.Errorf("messages = %d, want 0", len(messages))
	}
}
