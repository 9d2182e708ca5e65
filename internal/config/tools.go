package config

import "encoding/json"

// DefaultPremiumURL is the first-party premium tool provider endpoint.
// A valid license is required to connect; see tools.Assembler.
const DefaultPremiumURL = "https://tools.meetnote.ai/mcp"

// ToolProvider describes one remote tool provider reachable over Streamable
// HTTP. HeaderKey/HeaderValue carry an optional static credential attached to
// every request.
type ToolProvider struct {
	Name        string `mapstructure:"name" json:"name"`
	URL         string `mapstructure:"url" json:"url"`
	HeaderKey   string `mapstructure:"header_key" json:"header_key"`
	HeaderValue string `mapstructure:"header_value" json:"header_value"` // SENSITIVE: masked in MarshalJSON
	Enabled     bool   `mapstructure:"enabled" json:"enabled"`
}

// MarshalJSON masks the header credential.
func (p ToolProvider) MarshalJSON() ([]byte, error) {
	type alias ToolProvider
	a := alias(p)
	a.HeaderValue = maskSecret(a.HeaderValue)
	return json.Marshal(a)
}

// PremiumProvider configures the distinguished first-party tool provider.
// It is authenticated with a license-derived bearer token rather than a
// static header.
type PremiumProvider struct {
	URL string `mapstructure:"url" json:"url"`
}

// EnabledProviders returns the tool providers marked enabled, in
// configuration order. Order matters: it is the registration order for
// tool-name collisions.
func (c *Config) EnabledProviders() []ToolProvider {
	var enabled []ToolProvider
	for _, p := range c.ToolProviders {
		if p.Enabled {
			enabled = append(enabled, p)
		}
	}
	return enabled
}
