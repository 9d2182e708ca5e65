package generate

import (
	"encoding/json"

	"github.com/meetnote/meetnote/internal/chat"
)

// Chunk is one streamed fragment of a generation. Exactly one of Text,
// ToolCall, or ErrorText is set.
type Chunk struct {
	Text      string
	ToolCall  *chat.ToolCall
	ErrorText string
}

const unknownErrorMessage = "An unknown error occurred."

// ErrorMessage renders an arbitrary failure value as the user-facing error
// text for an error chunk. Strings pass through, errors use Error(), anything
// else is JSON-encoded, and nil falls back to a generic message.
func ErrorMessage(v any) string {
	switch e := v.(type) {
	case nil:
		return unknownErrorMessage
	case string:
		return e
	case error:
		return e.Error()
	default:
		data, err := json.Marshal(e)
		if err != nil {
			return unknownErrorMessage
		}
		return string(data)
	}
}
