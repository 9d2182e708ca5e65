package notes

import "context"

// Empty is a Directory with no content. It stands in until the host
// application links its notes store; every lookup succeeds with a zero
// result, which the chat core already treats as "no context available".
type Empty struct{}

var _ Directory = Empty{}

func (Empty) GetSession(context.Context, string) (*Session, error)        { return &Session{}, nil }
func (Empty) ListParticipants(context.Context, string) ([]*Human, error)  { return nil, nil }
func (Empty) GetEvent(context.Context, string) (*Event, error)            { return nil, nil }
func (Empty) GetHuman(context.Context, string) (*Human, error)            { return nil, nil }
func (Empty) ListSessions(context.Context, SessionFilter) ([]*Session, error) {
	return nil, nil
}
