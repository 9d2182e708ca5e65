package prompt

import (
	"net/url"
	"strings"
)

// trustedHostFragment marks first-party endpoints. Any connection whose host
// contains it gets tools regardless of model identifier.
const trustedHostFragment = "meetnote.ai"

// toolCapableModels is the fixed allow-list of model identifiers (without
// provider prefix) known to handle tool calling well enough to expose tools.
var toolCapableModels = map[string]bool{
	"gpt-4.1":          true,
	"gpt-4.1-mini":     true,
	"gpt-4o":           true,
	"gpt-4o-mini":      true,
	"gemini-2.5-flash": true,
	"gemini-2.5-pro":   true,
}

// ToolsEnabled reports whether tools are available for the active model and
// connection endpoint. It is a pure function; the same gate controls both the
// prompt's tool section and whether the tool registry is assembled at all.
func ToolsEnabled(modelID, endpoint string) bool {
	id := modelID
	if i := strings.LastIndex(id, "/"); i >= 0 {
		id = id[i+1:]
	}
	if toolCapableModels[id] {
		return true
	}

	if endpoint == "" {
		return false
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return false
	}
	return strings.Contains(u.Host, trustedHostFragment)
}
