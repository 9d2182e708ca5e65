// Package chat defines the conversation domain model: conversations,
// messages, message parts, and the SQLite-backed store.
package chat

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ToolCallState is the lifecycle state of a tool-call part. States only ever
// move forward; see Rank.
type ToolCallState string

const (
	StateInputStreaming  ToolCallState = "input-streaming"
	StateInputAvailable  ToolCallState = "input-available"
	StateOutputAvailable ToolCallState = "output-available"
	StateOutputError     ToolCallState = "output-error"
)

// Rank orders tool-call states for monotonicity checks. Terminal states
// (output-available, output-error) share a rank: a call reaches exactly one
// of them. Unknown states rank -1.
func (s ToolCallState) Rank() int {
	switch s {
	case StateInputStreaming:
		return 0
	case StateInputAvailable:
		return 1
	case StateOutputAvailable, StateOutputError:
		return 2
	default:
		return -1
	}
}

// Terminal reports whether the state is a final one.
func (s ToolCallState) Terminal() bool {
	return s == StateOutputAvailable || s == StateOutputError
}

// ValidTransition reports whether a tool call may move from one state to
// another. Equal states are allowed (repeated updates in the same state);
// regressions are not.
func ValidTransition(from, to ToolCallState) bool {
	fr, tr := from.Rank(), to.Rank()
	if fr < 0 || tr < 0 {
		return false
	}
	if fr == 2 && tr == 2 && from != to {
		// output-available and output-error are mutually exclusive.
		return false
	}
	return tr >= fr
}

// ToolCall is the tool-call variant of a message part.
type ToolCall struct {
	Name      string          `json:"-"`
	State     ToolCallState   `json:"state"`
	Input     json.RawMessage `json:"input,omitempty"`
	Output    json.RawMessage `json:"output,omitempty"`
	ErrorText string          `json:"errorText,omitempty"`
}

// Part is one semantic fragment of a message: either text or a tool call.
// Exactly one of Text/Tool is meaningful; Tool == nil means a text part.
//
// The JSON encoding is a tagged union: {"type":"text","text":...} or
// {"type":"tool-<name>","state":...,...}. Part order within a message is
// semantically meaningful (render order = generation order).
type Part struct {
	Text string
	Tool *ToolCall
}

// NewTextPart returns a text part.
func NewTextPart(text string) Part {
	return Part{Text: text}
}

// NewToolCallPart returns a tool-call part.
func NewToolCallPart(tc ToolCall) Part {
	return Part{Tool: &tc}
}

// IsText reports whether the part is a text part.
func (p Part) IsText() bool { return p.Tool == nil }

const toolTypePrefix = "tool-"

// ErrUnknownPartType indicates a serialized part with an unrecognized type
// tag.
var ErrUnknownPartType = errors.New("unknown part type")

type textPartJSON struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type toolPartJSON struct {
	Type      string          `json:"type"`
	State     ToolCallState   `json:"state"`
	Input     json.RawMessage `json:"input,omitempty"`
	Output    json.RawMessage `json:"output,omitempty"`
	ErrorText string          `json:"errorText,omitempty"`
}

// MarshalJSON encodes the part as its tagged-union form.
func (p Part) MarshalJSON() ([]byte, error) {
	if p.Tool == nil {
		return json.Marshal(textPartJSON{Type: "text", Text: p.Text})
	}
	return json.Marshal(toolPartJSON{
		Type:      toolTypePrefix + p.Tool.Name,
		State:     p.Tool.State,
		Input:     p.Tool.Input,
		Output:    p.Tool.Output,
		ErrorText: p.Tool.ErrorText,
	})
}

// UnmarshalJSON decodes the tagged-union form.
func (p *Part) UnmarshalJSON(data []byte) error {
	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return fmt.Errorf("decoding part: %w", err)
	}

	switch {
	case probe.Type == "text":
		var tp textPartJSON
		if err := json.Unmarshal(data, &tp); err != nil {
			return fmt.Errorf("decoding text part: %w", err)
		}
		*p = Part{Text: tp.Text}
		return nil

	case strings.HasPrefix(probe.Type, toolTypePrefix):
		var tp toolPartJSON
		if err := json.Unmarshal(data, &tp); err != nil {
			return fmt.Errorf("decoding tool part: %w", err)
		}
		*p = Part{Tool: &ToolCall{
			Name:      strings.TrimPrefix(tp.Type, toolTypePrefix),
			State:     tp.State,
			Input:     tp.Input,
			Output:    tp.Output,
			ErrorText: tp.ErrorText,
		}}
		return nil

	default:
		return fmt.Errorf("%w: %q", ErrUnknownPartType, probe.Type)
	}
}

// MarshalParts serializes a parts slice to its stored JSON array form.
// A nil slice serializes as an empty array, never null.
func MarshalParts(parts []Part) (string, error) {
	if parts == nil {
		parts = []Part{}
	}
	data, err := json.Marshal(parts)
	if err != nil {
		return "", fmt.Errorf("marshaling parts: %w", err)
	}
	return string(data), nil
}

// UnmarshalParts parses the stored JSON array form.
func UnmarshalParts(data string) ([]Part, error) {
	var parts []Part
	if err := json.Unmarshal([]byte(data), &parts); err != nil {
		return nil, fmt.Errorf("unmarshaling parts: %w", err)
	}
	return parts, nil
}
