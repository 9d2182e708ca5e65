package chat

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestPartJSONTextRoundTrip(t *testing.T) {
	t.Parallel()

	p := NewTextPart("hello")
	data, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if got, want := string(data), `{"type":"text","text":"hello"}`; got != want {
		t.Errorf("marshal = %s, want %s", got, want)
	}

	var back Part
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !back.IsText() || back.Text != "hello" {
		t.Errorf("round trip = %+v", back)
	}
}

func TestPartJSONToolRoundTrip(t *testing.T) {
	t.Parallel()

	p := NewToolCallPart(ToolCall{
		Name:   "search_keywords",
		State:  StateOutputAvailable,
		Input:  json.RawMessage(`{"keywords":["roadmap"]}`),
		Output: json.RawMessage(`"two results"`),
	})
	data, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var probe map[string]any
	if err := json.Unmarshal(data, &probe); err != nil {
		t.Fatalf("unmarshal probe: %v", err)
	}
	if probe["type"] != "tool-search_keywords" {
		t.Errorf("type = %v, want tool-search_keywords", probe["type"])
	}

	var back Part
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back.Tool == nil {
		t.Fatal("tool part decoded as text")
	}
	if back.Tool.Name != "search_keywords" {
		t.Errorf("name = %q", back.Tool.Name)
	}
	if back.Tool.State != StateOutputAvailable {
		t.Errorf("state = %q", back.Tool.State)
	}
	if string(back.Tool.Input) != `{"keywords":["roadmap"]}` {
		t.Errorf("input = %s", back.Tool.Input)
	}
}

func TestPartJSONErrorState(t *testing.T) {
	t.Parallel()

	data := []byte(`{"type":"tool-edit_note","state":"output-error","errorText":"boom"}`)
	var p Part
	if err := json.Unmarshal(data, &p); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if p.Tool == nil || p.Tool.State != StateOutputError || p.Tool.ErrorText != "boom" {
		t.Errorf("decoded = %+v", p.Tool)
	}
}

func TestPartJSONUnknownType(t *testing.T) {
	t.Parallel()

	var p Part
	err := json.Unmarshal([]byte(`{"type":"image","url":"x"}`), &p)
	if !errors.Is(err, ErrUnknownPartType) {
		t.Errorf("err = %v, want ErrUnknownPartType", err)
	}
}

func TestMarshalPartsNilIsEmptyArray(t *testing.T) {
	t.Parallel()

	got, err := MarshalParts(nil)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if got != "[]" {
		t.Errorf("nil parts = %s, want []", got)
	}
}

func TestValidTransition(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		from ToolCallState
		to   ToolCallState
		want bool
	}{
		{"streaming to available", StateInputStreaming, StateInputAvailable, true},
		{"available to output", StateInputAvailable, StateOutputAvailable, true},
		{"available to error", StateInputAvailable, StateOutputError, true},
		{"same state", StateInputAvailable, StateInputAvailable, true},
		{"skip to terminal", StateInputStreaming, StateOutputError, true},
		{"regression", StateOutputAvailable, StateInputAvailable, false},
		{"terminal flip", StateOutputAvailable, StateOutputError, false},
		{"terminal flip reverse", StateOutputError, StateOutputAvailable, false},
		{"unknown from", ToolCallState("bogus"), StateInputAvailable, false},
		{"unknown to", StateInputAvailable, ToolCallState("bogus"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := ValidTransition(tt.from, tt.to); got != tt.want {
				t.Errorf("ValidTransition(%q, %q) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}
