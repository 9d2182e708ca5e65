package generate

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"

	"github.com/meetnote/meetnote/internal/chat"
	"github.com/meetnote/meetnote/internal/tools"
)

// GenkitStreamer adapts Genkit's Generate API to the ModelStreamer contract.
//
// Genkit tools are process-global: a tool name can be defined once per Genkit
// instance. Because the callable tool set changes per turn (providers come and
// go, edit_note depends on a selection), every tool is defined as a dispatcher
// that resolves the name against the registry of the turn in flight.
type GenkitStreamer struct {
	g      *genkit.Genkit
	model  string
	logger *slog.Logger

	mu       sync.Mutex
	registry *tools.Registry
	emit     EmitFunc
}

// NewGenkitStreamer creates a streamer bound to one Genkit instance and model
// name (provider-prefixed, e.g. "openai/gpt-4.1").
func NewGenkitStreamer(g *genkit.Genkit, model string, logger *slog.Logger) *GenkitStreamer {
	if logger == nil {
		logger = slog.Default()
	}
	return &GenkitStreamer{g: g, model: model, logger: logger}
}

// Stream runs one generation turn. Only one stream may be in flight per
// streamer; the transport enforces this.
func (s *GenkitStreamer) Stream(ctx context.Context, req Request, emit EmitFunc) (*chat.Message, error) {
	s.mu.Lock()
	s.registry = req.Tools
	s.emit = emit
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.registry = nil
		s.emit = nil
		s.mu.Unlock()
	}()

	var toolRefs []ai.ToolRef
	if req.Tools != nil {
		for _, d := range req.Tools.Descriptors() {
			toolRefs = append(toolRefs, s.defineTool(d))
		}
	}

	messages := make([]*ai.Message, 0, len(req.Messages))
	for _, m := range req.Messages {
		if am := toModelMessage(m); am != nil {
			messages = append(messages, am)
		}
	}

	// collector tracks tool-call parts as they stream so the final assistant
	// message carries them in generation order.
	collector := &partCollector{}

	opts := []ai.GenerateOption{
		ai.WithModelName(s.model),
		ai.WithMessages(messages...),
		ai.WithStreaming(func(_ context.Context, chunk *ai.ModelResponseChunk) error {
			return s.forwardChunk(chunk, collector, emit)
		}),
	}
	if req.System != "" {
		opts = append(opts, ai.WithSystem(req.System))
	}
	if len(toolRefs) > 0 {
		opts = append(opts, ai.WithTools(toolRefs...))
		opts = append(opts, ai.WithMaxTurns(req.MaxSteps))
	}

	resp, err := genkit.Generate(ctx, s.g, opts...)
	if err != nil {
		return nil, fmt.Errorf("generating response: %w", err)
	}

	parts := collector.parts
	if text := resp.Text(); text != "" {
		parts = append(parts, chat.NewTextPart(text))
	}
	return &chat.Message{
		Role:  chat.RoleAssistant,
		Parts: parts,
	}, nil
}

// defineTool registers the named tool with Genkit once and returns a ref.
// The executor dispatches through the registry of the stream in flight.
func (s *GenkitStreamer) defineTool(d tools.Descriptor) ai.ToolRef {
	if existing := genkit.LookupTool(s.g, d.Name); existing != nil {
		return existing
	}
	name := d.Name
	return genkit.DefineToolWithInputSchema(s.g, name, d.Description, d.InputSchema,
		func(toolCtx *ai.ToolContext, input any) (string, error) {
			return s.dispatch(toolCtx.Context, name, input)
		})
}

func (s *GenkitStreamer) dispatch(ctx context.Context, name string, input any) (string, error) {
	s.mu.Lock()
	registry := s.registry
	emit := s.emit
	s.mu.Unlock()

	if registry == nil {
		return "", fmt.Errorf("tool %s called outside an active stream", name)
	}
	d, ok := registry.Get(name)
	if !ok {
		return "", fmt.Errorf("tool %s not in this turn's registry", name)
	}

	args, _ := input.(map[string]any)
	out, err := d.Execute(ctx, args)
	if err != nil {
		s.logger.Warn("tool execution failed", "tool", name, "error", err)
		if emit != nil {
			_ = emit(Chunk{ToolCall: &chat.ToolCall{
				Name:      name,
				State:     chat.StateOutputError,
				ErrorText: err.Error(),
			}})
		}
		return "", err
	}
	return out, nil
}

// forwardChunk converts one model chunk into transport chunks and records
// tool-call parts for the final message.
func (s *GenkitStreamer) forwardChunk(chunk *ai.ModelResponseChunk, collector *partCollector, emit EmitFunc) error {
	for _, part := range chunk.Content {
		switch {
		case part.IsText():
			if part.Text == "" {
				continue
			}
			if err := emit(Chunk{Text: part.Text}); err != nil {
				return err
			}

		case part.ToolRequest != nil:
			input := mustJSON(part.ToolRequest.Input)
			tc := chat.ToolCall{
				Name:  part.ToolRequest.Name,
				State: chat.StateInputAvailable,
				Input: input,
			}
			collector.requested(tc)
			if err := emit(Chunk{ToolCall: &tc}); err != nil {
				return err
			}

		case part.ToolResponse != nil:
			output := mustJSON(part.ToolResponse.Output)
			tc := collector.responded(part.ToolResponse.Name, output)
			if err := emit(Chunk{ToolCall: &tc}); err != nil {
				return err
			}
		}
	}
	return nil
}

// partCollector accumulates the assistant message parts of one turn.
type partCollector struct {
	parts []chat.Part
}

func (c *partCollector) requested(tc chat.ToolCall) {
	c.parts = append(c.parts, chat.NewToolCallPart(tc))
}

// responded upgrades the most recent non-terminal call with the given name,
// or appends a fresh part when the request chunk was never seen.
func (c *partCollector) responded(name string, output json.RawMessage) chat.ToolCall {
	for i := len(c.parts) - 1; i >= 0; i-- {
		tool := c.parts[i].Tool
		if tool == nil || tool.Name != name || tool.State.Terminal() {
			continue
		}
		tool.State = chat.StateOutputAvailable
		tool.Output = output
		return *tool
	}
	tc := chat.ToolCall{Name: name, State: chat.StateOutputAvailable, Output: output}
	c.parts = append(c.parts, chat.NewToolCallPart(tc))
	return tc
}

func toModelMessage(m chat.Message) *ai.Message {
	text := m.TextContent()
	if text == "" {
		return nil
	}
	switch m.Role {
	case chat.RoleUser:
		return ai.NewUserMessage(ai.NewTextPart(text))
	case chat.RoleAssistant:
		return ai.NewModelMessage(ai.NewTextPart(text))
	case chat.RoleSystem:
		return ai.NewSystemTextMessage(text)
	default:
		return nil
	}
}

func mustJSON(v any) json.RawMessage {
	if v == nil {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage(`null`)
	}
	return data
}
