// Package notes defines the interfaces and value types through which the
// chat core consumes the meeting-notes side of the application: session
// content, calendar events, and people. The concrete store lives in the host
// application; this package only names the contract.
package notes

import (
	"context"
	"time"
)

// Session is a snapshot of one meeting session's note content.
type Session struct {
	ID                string
	Title             string
	RawContent        string
	EnhancedContent   string
	PreMeetingContent string
	Words             int
	CreatedAt         time.Time
}

// Human is a person known to the app (a participant or a contact).
type Human struct {
	ID       string
	FullName string
	Email    string
	JobTitle string
	Company  string
}

// Event is a calendar event linked to a session.
type Event struct {
	ID      string
	Name    string
	Note    string
	StartAt time.Time
	EndAt   time.Time
}

// SessionFilter narrows a session listing. Zero fields are ignored.
type SessionFilter struct {
	From          time.Time
	To            time.Time
	Keywords      []string
	ParticipantID string
	Limit         int
}

// Directory is the read surface of the notes store consumed by the chat
// core. Implementations are external; failures are treated per call as
// transient (logged and defaulted by callers, never fatal).
type Directory interface {
	GetSession(ctx context.Context, id string) (*Session, error)
	ListParticipants(ctx context.Context, sessionID string) ([]*Human, error)
	GetEvent(ctx context.Context, sessionID string) (*Event, error)
	GetHuman(ctx context.Context, id string) (*Human, error)
	ListSessions(ctx context.Context, filter SessionFilter) ([]*Session, error)
}
