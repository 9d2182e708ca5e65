package config

import (
	"fmt"
	"net/url"
)

const (
	// MaxAllowedSteps bounds the agentic loop to keep one turn from running
	// away.
	MaxAllowedSteps = 25
)

// Validate checks the configuration for correctness (fail-fast at startup).
// Wraps sentinel errors so callers can use errors.Is.
func (c *Config) Validate() error {
	switch c.Provider {
	case ProviderOpenAI, ProviderGoogleAI:
	default:
		return fmt.Errorf("%w: %q (supported: %s, %s)",
			ErrInvalidProvider, c.Provider, ProviderOpenAI, ProviderGoogleAI)
	}

	if c.ModelName == "" {
		return fmt.Errorf("%w: model name must not be empty", ErrInvalidModelName)
	}

	if c.MaxSteps <= 0 || c.MaxSteps > MaxAllowedSteps {
		return fmt.Errorf("%w: %d (must be 1..%d)", ErrInvalidMaxSteps, c.MaxSteps, MaxAllowedSteps)
	}

	if c.DatabasePath == "" {
		return fmt.Errorf("%w: database path must not be empty", ErrInvalidDatabasePath)
	}

	if c.Endpoint != "" {
		if _, err := url.Parse(c.Endpoint); err != nil {
			return fmt.Errorf("%w: endpoint %q: %v", ErrInvalidProviderURL, c.Endpoint, err)
		}
	}

	for _, p := range c.ToolProviders {
		u, err := url.Parse(p.URL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("%w: provider %q: %q", ErrInvalidProviderURL, p.Name, p.URL)
		}
	}

	return nil
}
