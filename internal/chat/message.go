package chat

import (
	"time"
)

// Role identifies the author of a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether the role is one of the persistable roles.
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	}
	return false
}

// Conversation groups the messages of one chat thread. A conversation is
// owned by exactly one session; it is created on the first user message in a
// session if none exists and never mutated afterwards except Name and
// UpdatedAt.
type Conversation struct {
	ID        string
	SessionID string
	UserID    string
	Name      string // optional title; empty = unnamed
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Message is one persisted conversation turn. Parts is an ordered sequence;
// Metadata is an opaque key-value map. An assistant message is persisted
// once, atomically, at stream completion, never incrementally.
type Message struct {
	ID             string
	ConversationID string
	Role           Role
	Parts          []Part
	Metadata       map[string]any
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// TextContent concatenates the message's text parts. Tool-call parts are
// skipped.
func (m *Message) TextContent() string {
	var out string
	for _, p := range m.Parts {
		if p.IsText() {
			out += p.Text
		}
	}
	return out
}
