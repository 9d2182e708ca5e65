package generate

import (
	"context"

	"github.com/meetnote/meetnote/internal/chat"
	"github.com/meetnote/meetnote/internal/tools"
)

// Request is one generation turn handed to a model streamer. Messages must
// already be sanitized to text-only parts.
type Request struct {
	System   string
	Messages []chat.Message
	Tools    *tools.Registry
	MaxSteps int
}

// EmitFunc receives streamed chunks in generation order. Returning an error
// aborts the stream.
type EmitFunc func(Chunk) error

// ModelStreamer runs one streamed generation against a model provider and
// returns the final assistant message. The returned message carries every
// part produced during the turn, text and tool calls, in generation order.
type ModelStreamer interface {
	Stream(ctx context.Context, req Request, emit EmitFunc) (*chat.Message, error)
}
