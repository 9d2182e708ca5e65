// Package config provides application configuration management with
// multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (~/.meetnote/config.yaml)
//  3. Default values
//
// Main configuration categories:
//   - Model: provider, model name, connection endpoint, generation limits
//   - Storage: SQLite database location
//   - Tools: remote tool provider list and the premium provider (see tools.go)
//
// Sensitive data (license key, provider header credentials) is never logged;
// see MarshalJSON.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

var (
	// ErrInvalidProvider indicates the model provider is not supported.
	ErrInvalidProvider = errors.New("invalid provider")

	// ErrInvalidModelName indicates the model name is empty.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidMaxSteps indicates the max steps value is out of range.
	ErrInvalidMaxSteps = errors.New("invalid max steps")

	// ErrInvalidDatabasePath indicates the database path is empty.
	ErrInvalidDatabasePath = errors.New("invalid database path")

	// ErrInvalidProviderURL indicates a tool provider URL is malformed.
	ErrInvalidProviderURL = errors.New("invalid tool provider URL")
)

// Model provider identifiers used in Config.Provider.
const (
	ProviderOpenAI   = "openai"
	ProviderGoogleAI = "googleai"
)

// Config stores application configuration.
// SECURITY: Sensitive fields are explicitly masked in MarshalJSON().
type Config struct {
	// Model configuration
	Provider       string `mapstructure:"provider" json:"provider"`               // "openai" (default) or "googleai"
	ModelName      string `mapstructure:"model_name" json:"model_name"`           // Model identifier (e.g., "gpt-4.1-mini")
	Endpoint       string `mapstructure:"endpoint" json:"endpoint"`               // Connection base URL ("" = provider default)
	ConnectionType string `mapstructure:"connection_type" json:"connection_type"` // "auto" or "custom"
	MaxSteps       int    `mapstructure:"max_steps" json:"max_steps"`             // Agentic loop limit per generation turn

	// Storage configuration
	DatabasePath string `mapstructure:"database_path" json:"database_path"`

	// License key unlocking the premium tool provider.
	LicenseKey string `mapstructure:"license_key" json:"license_key"` // SENSITIVE: masked in MarshalJSON

	// Tool provider configuration (see tools.go for type definitions)
	ToolProviders []ToolProvider  `mapstructure:"tool_providers" json:"tool_providers"`
	Premium       PremiumProvider `mapstructure:"premium" json:"premium"`

	// Rate limiting for generation submissions
	GenerateRPS   float64 `mapstructure:"generate_rps" json:"generate_rps"`
	GenerateBurst int     `mapstructure:"generate_burst" json:"generate_burst"`
}

// Load loads configuration.
// Priority: Environment variables > Configuration file > Default values
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".meetnote")
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configDir)
	viper.AddConfigPath(".")

	setDefaults(configDir)
	bindEnvVariables()

	if err := viper.ReadInConfig(); err != nil {
		// Missing config file is fine, defaults apply.
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using default values",
			"search_paths", []string{configDir, "."})
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults(configDir string) {
	viper.SetDefault("provider", ProviderOpenAI)
	viper.SetDefault("model_name", "gpt-4.1-mini")
	viper.SetDefault("connection_type", "auto")
	viper.SetDefault("max_steps", 5)

	viper.SetDefault("database_path", filepath.Join(configDir, "meetnote.db"))

	viper.SetDefault("premium.url", DefaultPremiumURL)

	viper.SetDefault("generate_rps", 2)
	viper.SetDefault("generate_burst", 5)
}

// bindEnvVariables binds environment variables explicitly.
// Note: OPENAI_API_KEY and GEMINI_API_KEY are read directly by the model
// plugins, not via Viper.
func bindEnvVariables() {
	mustBind := func(key, envVar string) {
		if err := viper.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("provider", "MEETNOTE_PROVIDER")
	mustBind("model_name", "MEETNOTE_MODEL_NAME")
	mustBind("endpoint", "MEETNOTE_ENDPOINT")
	mustBind("database_path", "MEETNOTE_DATABASE_PATH")
	mustBind("license_key", "MEETNOTE_LICENSE_KEY")
}

// maskedValue is the placeholder for masked sensitive data.
const maskedValue = "████████"

// maskSecret masks a secret string for safe logging. Secrets of 8 characters
// or fewer are fully masked to prevent substring matching; longer secrets
// keep the first and last 2 characters for debug utility.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return maskedValue
	}
	return s[:2] + "<" + maskedValue + ">" + s[len(s)-2:]
}

// MarshalJSON implements json.Marshaler with explicit sensitive field masking.
//
// Sensitive fields masked:
//   - LicenseKey
//   - ToolProviders[].HeaderValue (via ToolProvider.MarshalJSON)
//
// When adding new sensitive fields, update this method or the nested struct's
// MarshalJSON.
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config
	a := alias(c)
	a.LicenseKey = maskSecret(a.LicenseKey)
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}

// String implements Stringer to prevent accidental printing of secrets.
func (c Config) String() string {
	data, err := c.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("Config{error: %v}", err)
	}
	return string(data)
}

// FullModelName returns the provider-qualified model name for Genkit.
// Example: "openai/gpt-4.1-mini". A ModelName that already contains "/" is
// returned as-is.
func (c *Config) FullModelName() string {
	for i := 0; i < len(c.ModelName); i++ {
		if c.ModelName[i] == '/' {
			return c.ModelName
		}
	}
	switch c.Provider {
	case ProviderGoogleAI:
		return ProviderGoogleAI + "/" + c.ModelName
	default:
		return ProviderOpenAI + "/" + c.ModelName
	}
}
