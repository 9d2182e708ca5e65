package tools

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/meetnote/meetnote/internal/notes"
	"github.com/meetnote/meetnote/internal/prompt"
)

// Built-in tool names.
const (
	ToolEditNote        = "edit_note"
	ToolSearchDateRange = "search_date_range"
	ToolSearchKeywords  = "search_keywords"
)

const searchResultLimit = 10

// EditNoteInput is the input schema for the edit_note tool.
type EditNoteInput struct {
	NewText string `json:"new_text" jsonschema:"Replacement markdown for the highlighted span of the note"`
}

// SearchDateRangeInput is the input schema for the search_date_range tool.
type SearchDateRangeInput struct {
	Start string `json:"start" jsonschema:"Range start, RFC3339 or YYYY-MM-DD"`
	End   string `json:"end" jsonschema:"Range end, RFC3339 or YYYY-MM-DD"`
}

// SearchKeywordsInput is the input schema for the search_keywords tool.
type SearchKeywordsInput struct {
	Keywords []string `json:"keywords" jsonschema:"Keywords to match against session notes"`
}

// registerBuiltins merges the built-in tools into the registry, last so they
// win name collisions against provider tools. edit_note is included only when
// a selection context exists for this generation.
func (a *Assembler) registerBuiltins(registry *Registry, selection *prompt.Selection) {
	if selection != nil {
		if d, err := editNoteDescriptor(selection); err != nil {
			a.logger.Error("building edit_note schema", "error", err)
		} else {
			registry.Register(d)
		}
	}

	if d, err := searchDateRangeDescriptor(a.directory); err != nil {
		a.logger.Error("building search_date_range schema", "error", err)
	} else {
		registry.Register(d)
	}

	if d, err := searchKeywordsDescriptor(a.directory); err != nil {
		a.logger.Error("building search_keywords schema", "error", err)
	} else {
		registry.Register(d)
	}
}

func editNoteDescriptor(selection *prompt.Selection) (Descriptor, error) {
	schema, err := jsonschema.For[EditNoteInput](nil)
	if err != nil {
		return Descriptor{}, fmt.Errorf("edit_note schema: %w", err)
	}
	sel := *selection
	return Descriptor{
		Name:        ToolEditNote,
		Description: "Rewrite the span of the note the user highlighted. Provide the full replacement markdown for that span only.",
		InputSchema: schema,
		Execute: func(_ context.Context, input map[string]any) (string, error) {
			newText, _ := input["new_text"].(string)
			if newText == "" {
				return "", fmt.Errorf("%w: edit_note requires new_text", ErrToolFailed)
			}
			// The UI applies the replacement; the tool output echoes it so
			// the model sees what was written.
			return fmt.Sprintf("Replaced note content at offsets %d-%d:\n%s",
				sel.StartOffset, sel.EndOffset, newText), nil
		},
	}, nil
}

func searchDateRangeDescriptor(directory notes.Directory) (Descriptor, error) {
	schema, err := jsonschema.For[SearchDateRangeInput](nil)
	if err != nil {
		return Descriptor{}, fmt.Errorf("search_date_range schema: %w", err)
	}
	return Descriptor{
		Name:        ToolSearchDateRange,
		Description: "Find meeting sessions whose notes were created within a date range.",
		InputSchema: schema,
		Execute: func(ctx context.Context, input map[string]any) (string, error) {
			start, _ := input["start"].(string)
			end, _ := input["end"].(string)
			from, err := parseFlexibleTime(start)
			if err != nil {
				return "", fmt.Errorf("%w: invalid start %q", ErrToolFailed, start)
			}
			to, err := parseFlexibleTime(end)
			if err != nil {
				return "", fmt.Errorf("%w: invalid end %q", ErrToolFailed, end)
			}
			sessions, err := directory.ListSessions(ctx, notes.SessionFilter{
				From:  from,
				To:    to,
				Limit: searchResultLimit,
			})
			if err != nil {
				return "", fmt.Errorf("searching sessions: %w", err)
			}
			return formatSessionResults(sessions), nil
		},
	}, nil
}

func searchKeywordsDescriptor(directory notes.Directory) (Descriptor, error) {
	schema, err := jsonschema.For[SearchKeywordsInput](nil)
	if err != nil {
		return Descriptor{}, fmt.Errorf("search_keywords schema: %w", err)
	}
	return Descriptor{
		Name:        ToolSearchKeywords,
		Description: "Find meeting sessions whose notes mention any of the given keywords.",
		InputSchema: schema,
		Execute: func(ctx context.Context, input map[string]any) (string, error) {
			raw, _ := input["keywords"].([]any)
			keywords := make([]string, 0, len(raw))
			for _, k := range raw {
				if s, ok := k.(string); ok && s != "" {
					keywords = append(keywords, s)
				}
			}
			if len(keywords) == 0 {
				return "", fmt.Errorf("%w: search_keywords requires at least one keyword", ErrToolFailed)
			}
			sessions, err := directory.ListSessions(ctx, notes.SessionFilter{
				Keywords: keywords,
				Limit:    searchResultLimit,
			})
			if err != nil {
				return "", fmt.Errorf("searching sessions: %w", err)
			}
			return formatSessionResults(sessions), nil
		},
	}, nil
}

func parseFlexibleTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}

func formatSessionResults(sessions []*notes.Session) string {
	if len(sessions) == 0 {
		return "No matching sessions found."
	}
	var sb strings.Builder
	for _, s := range sessions {
		title := s.Title
		if title == "" {
			title = "(untitled)"
		}
		fmt.Fprintf(&sb, "- %s (%s, id %s)\n", title, s.CreatedAt.Format("2006-01-02"), s.ID)
	}
	return sb.String()
}
