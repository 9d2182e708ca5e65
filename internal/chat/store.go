package chat

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// timeLayout is the stored timestamp format: RFC3339 UTC with fixed-width
// nanoseconds so that lexical order equals chronological order.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

// Store persists conversations and messages in SQLite.
//
// Store is safe for concurrent use; *sql.DB serializes access.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewStore creates a Store. A nil logger falls back to slog.Default().
func NewStore(db *sql.DB, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, logger: logger}
}

// CreateConversation inserts a new conversation owned by (sessionID, userID)
// and returns it. Name may be empty.
func (s *Store) CreateConversation(ctx context.Context, sessionID, userID, name string) (*Conversation, error) {
	now := time.Now().UTC()
	conv := &Conversation{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		UserID:    userID,
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}

	var namePtr *string
	if name != "" {
		namePtr = &name
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO conversations (id, session_id, user_id, name, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		conv.ID, conv.SessionID, conv.UserID, namePtr, formatTime(now), formatTime(now))
	if err != nil {
		return nil, fmt.Errorf("creating conversation: %w", err)
	}

	s.logger.Debug("created conversation", "id", conv.ID, "session_id", sessionID)
	return conv, nil
}

// ListConversations returns the conversations of a session, most recently
// updated first.
func (s *Store) ListConversations(ctx context.Context, sessionID string) ([]*Conversation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, user_id, name, created_at, updated_at
		 FROM conversations
		 WHERE session_id = ?
		 ORDER BY updated_at DESC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("listing conversations: %w", err)
	}
	defer rows.Close()

	var conversations []*Conversation
	for rows.Next() {
		conv, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		conversations = append(conversations, conv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing conversations: %w", err)
	}

	return conversations, nil
}

// GetConversation retrieves a single conversation by id.
func (s *Store) GetConversation(ctx context.Context, id string) (*Conversation, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, session_id, user_id, name, created_at, updated_at
		 FROM conversations WHERE id = ?`, id)
	conv, err := scanConversation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("conversation %s: %w", id, ErrNotFound)
	}
	return conv, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanConversation(r rowScanner) (*Conversation, error) {
	var (
		conv               Conversation
		name               sql.NullString
		createdAt, updated string
	)
	if err := r.Scan(&conv.ID, &conv.SessionID, &conv.UserID, &name, &createdAt, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning conversation: %w", err)
	}
	conv.Name = name.String

	var err error
	if conv.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parsing conversation created_at: %w", err)
	}
	if conv.UpdatedAt, err = parseTime(updated); err != nil {
		return nil, fmt.Errorf("parsing conversation updated_at: %w", err)
	}
	return &conv, nil
}

// CreateMessage inserts a message. A missing ID or timestamps are filled in.
// The conversation's updated_at is bumped in the same transaction.
func (s *Store) CreateMessage(ctx context.Context, msg *Message) error {
	if !msg.Role.Valid() {
		return fmt.Errorf("creating message: invalid role %q", msg.Role)
	}
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = now
	}
	if msg.UpdatedAt.IsZero() {
		msg.UpdatedAt = msg.CreatedAt
	}

	partsJSON, err := MarshalParts(msg.Parts)
	if err != nil {
		return fmt.Errorf("creating message: %w", err)
	}

	var metadataJSON *string
	if msg.Metadata != nil {
		data, err := json.Marshal(msg.Metadata)
		if err != nil {
			return fmt.Errorf("creating message: marshaling metadata: %w", err)
		}
		str := string(data)
		metadataJSON = &str
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("creating message: begin: %w", err)
	}
	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			s.logger.Debug("message insert rollback", "error", err)
		}
	}()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO messages (id, conversation_id, role, parts, metadata, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		msg.ID, msg.ConversationID, string(msg.Role), partsJSON, metadataJSON,
		formatTime(msg.CreatedAt), formatTime(msg.UpdatedAt))
	if err != nil {
		return fmt.Errorf("inserting message: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE conversations SET updated_at = ? WHERE id = ?`,
		formatTime(now), msg.ConversationID)
	if err != nil {
		return fmt.Errorf("bumping conversation updated_at: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("creating message: commit: %w", err)
	}

	s.logger.Debug("created message",
		"id", msg.ID, "conversation_id", msg.ConversationID, "role", msg.Role)
	return nil
}

// ListMessages returns a conversation's messages in creation order.
// Messages with malformed stored parts are skipped with a warning rather than
// failing the whole read.
func (s *Store) ListMessages(ctx context.Context, conversationID string) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, conversation_id, role, parts, metadata, created_at, updated_at
		 FROM messages
		 WHERE conversation_id = ?
		 ORDER BY created_at ASC`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("listing messages: %w", err)
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		var (
			m                  Message
			role               string
			partsJSON          string
			metadataJSON       sql.NullString
			createdAt, updated string
		)
		if err := rows.Scan(&m.ID, &m.ConversationID, &role, &partsJSON, &metadataJSON, &createdAt, &updated); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		m.Role = Role(role)

		parts, err := UnmarshalParts(partsJSON)
		if err != nil {
			s.logger.Warn("skipping message with malformed parts", "message_id", m.ID, "error", err)
			continue
		}
		m.Parts = parts

		if metadataJSON.Valid && metadataJSON.String != "" {
			if err := json.Unmarshal([]byte(metadataJSON.String), &m.Metadata); err != nil {
				s.logger.Warn("skipping malformed message metadata", "message_id", m.ID, "error", err)
			}
		}

		if m.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, fmt.Errorf("parsing message created_at: %w", err)
		}
		if m.UpdatedAt, err = parseTime(updated); err != nil {
			return nil, fmt.Errorf("parsing message updated_at: %w", err)
		}

		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing messages: %w", err)
	}

	return messages, nil
}

// UpdateMessageParts rewrites a message's parts and bumps its updated_at.
func (s *Store) UpdateMessageParts(ctx context.Context, id string, parts []Part) error {
	partsJSON, err := MarshalParts(parts)
	if err != nil {
		return fmt.Errorf("updating message parts: %w", err)
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE messages SET parts = ?, updated_at = ? WHERE id = ?`,
		partsJSON, formatTime(time.Now()), id)
	if err != nil {
		return fmt.Errorf("updating message parts: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating message parts: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("message %s: %w", id, ErrNotFound)
	}
	return nil
}
