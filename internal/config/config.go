// Package config builds the typed codeguardian configuration from viper.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/joescharf/codeguardian/internal/llm"
)

// History backends.
const (
	HistoryMemory = "memory"
	HistorySQLite = "sqlite"
)

// EnvPrefix is the prefix for environment overrides (CODEGUARDIAN_LLM_PROVIDER, ...).
const EnvPrefix = "CODEGUARDIAN"

// LLMConfig selects and tunes the model provider.
type LLMConfig struct {
	Provider   string        `validate:"oneof=anthropic gemini google"`
	Timeout    time.Duration `validate:"gt=0"`
	MaxRetries int           `validate:"min=0,max=10"`
	MaxTokens  int           `validate:"min=256,max=65536"`
}

// ProviderConfig holds per-provider credentials.
type ProviderConfig struct {
	APIKey string
	Model  string `validate:"required"`
}

// ServerConfig configures `codeguardian serve`.
type ServerConfig struct {
	Port int `validate:"min=1,max=65535"`
}

// HistoryConfig selects the progress ledger backend.
type HistoryConfig struct {
	Backend  string `validate:"oneof=memory sqlite"`
	Capacity int    `validate:"min=0"`
	// SessionTTL ends browser sessions idle for longer; 0 disables expiry.
	SessionTTL time.Duration `validate:"min=0"`
}

// ScoringConfig points at an optional keyword weights file.
type ScoringConfig struct {
	WeightsFile string
}

// Config is the effective configuration.
type Config struct {
	StateDir  string `validate:"required"`
	DBPath    string `validate:"required"`
	LLM       LLMConfig
	Anthropic ProviderConfig
	Gemini    ProviderConfig
	Server    ServerConfig
	History   HistoryConfig
	Scoring   ScoringConfig
}

// DefaultDir returns ~/.config/codeguardian.
func DefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "codeguardian"), nil
}

// SetDefaults registers defaults for every key and wires environment overrides.
func SetDefaults(v *viper.Viper, configDir string) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("state_dir", configDir)
	v.SetDefault("db_path", filepath.Join(configDir, "codeguardian.db"))
	v.SetDefault("llm.provider", llm.ProviderGemini)
	v.SetDefault("llm.timeout", 60*time.Second)
	v.SetDefault("llm.max_retries", 2)
	v.SetDefault("llm.max_tokens", 4096)
	v.SetDefault("anthropic.api_key", "")
	v.SetDefault("anthropic.model", llm.DefaultAnthropicModel)
	v.SetDefault("gemini.api_key", "")
	v.SetDefault("gemini.model", llm.DefaultGeminiModel)
	v.SetDefault("server.port", 8080)
	v.SetDefault("history.backend", HistoryMemory)
	v.SetDefault("history.capacity", 0)
	v.SetDefault("history.session_ttl", 24*time.Hour)
	v.SetDefault("scoring.weights_file", "")
}

// Load reads the configuration from v and validates it. Provider API keys
// fall back to the conventional vendor environment variables.
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		StateDir: v.GetString("state_dir"),
		DBPath:   v.GetString("db_path"),
		LLM: LLMConfig{
			Provider:   strings.ToLower(v.GetString("llm.provider")),
			Timeout:    v.GetDuration("llm.timeout"),
			MaxRetries: v.GetInt("llm.max_retries"),
			MaxTokens:  v.GetInt("llm.max_tokens"),
		},
		Anthropic: ProviderConfig{
			APIKey: firstNonEmpty(v.GetString("anthropic.api_key"), os.Getenv("ANTHROPIC_API_KEY")),
			Model:  v.GetString("anthropic.model"),
		},
		Gemini: ProviderConfig{
			APIKey: firstNonEmpty(v.GetString("gemini.api_key"), os.Getenv("GOOGLE_API_KEY"), os.Getenv("GEMINI_API_KEY")),
			Model:  v.GetString("gemini.model"),
		},
		Server:  ServerConfig{Port: v.GetInt("server.port")},
		History: HistoryConfig{
			Backend:    strings.ToLower(v.GetString("history.backend")),
			Capacity:   v.GetInt("history.capacity"),
			SessionTTL: v.GetDuration("history.session_ttl"),
		},
		Scoring: ScoringConfig{WeightsFile: v.GetString("scoring.weights_file")},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var validate = validator.New()

// Validate checks field constraints and reports the first violation by key.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return fmt.Errorf("invalid config %s: failed %q (value %v)", configKey(fe.StructNamespace()), fe.Tag(), fe.Value())
	}
	return fmt.Errorf("invalid config: %w", err)
}

// configKey maps "Config.LLM.MaxRetries" to "llm.max_retries".
func configKey(ns string) string {
	parts := strings.Split(ns, ".")
	if len(parts) > 1 {
		parts = parts[1:]
	}
	for i, p := range parts {
		parts[i] = snake(p)
	}
	return strings.Join(parts, ".")
}

func snake(s string) string {
	switch s {
	case "LLM":
		return "llm"
	case "DBPath":
		return "db_path"
	case "APIKey":
		return "api_key"
	case "SessionTTL":
		return "session_ttl"
	}
	var b strings.Builder
	for i, r := range s {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}

// ProviderOptions returns the llm.Options for the configured provider.
func (c *Config) ProviderOptions() llm.Options {
	opts := llm.Options{Provider: c.LLM.Provider, MaxRetries: c.LLM.MaxRetries}
	switch c.LLM.Provider {
	case llm.ProviderAnthropic:
		opts.APIKey = c.Anthropic.APIKey
		opts.Model = c.Anthropic.Model
	default:
		opts.APIKey = c.Gemini.APIKey
		opts.Model = c.Gemini.Model
	}
	return opts
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
