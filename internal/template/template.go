// Package template renders the chat prompt templates. Template names and the
// variables each template honors are a fixed contract with the prompt
// assembler; see the assets directory.
package template

import (
	"embed"
	"fmt"
	"strings"
	"text/template"
)

// Template names. The ".tmpl" suffix is an asset detail; callers use these
// names.
const (
	ChatSystem = "chat.system"
	ChatUser   = "chat.user"
)

//go:embed assets/*.tmpl
var assetsFS embed.FS

// Renderer renders named prompt templates from a variable map.
type Renderer struct {
	templates *template.Template
}

// New parses the embedded templates. Fails fast on malformed assets.
func New() (*Renderer, error) {
	root := template.New("prompts")
	entries, err := assetsFS.ReadDir("assets")
	if err != nil {
		return nil, fmt.Errorf("reading template assets: %w", err)
	}
	for _, entry := range entries {
		data, err := assetsFS.ReadFile("assets/" + entry.Name())
		if err != nil {
			return nil, fmt.Errorf("reading template %s: %w", entry.Name(), err)
		}
		name := strings.TrimSuffix(entry.Name(), ".tmpl")
		if _, err := root.New(name).Parse(string(data)); err != nil {
			return nil, fmt.Errorf("parsing template %s: %w", name, err)
		}
	}
	return &Renderer{templates: root}, nil
}

// Render executes the named template with the given variables.
func (r *Renderer) Render(name string, vars map[string]any) (string, error) {
	var sb strings.Builder
	if err := r.templates.ExecuteTemplate(&sb, name, vars); err != nil {
		return "", fmt.Errorf("rendering template %s: %w", name, err)
	}
	return sb.String(), nil
}
