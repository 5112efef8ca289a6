// Package config loads server configuration from the environment.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// Version is the server version reported by the version tool.
const Version = "1.3.0"

// ErrNoProvidersConfigured means no credential or custom endpoint resolved to
// a usable driver; the server refuses to start.
var ErrNoProvidersConfigured = errors.New("no providers configured: set at least one API key or a custom endpoint URL")

// ProviderConfig holds one provider's credentials and allow-list.
type ProviderConfig struct {
	// APIKey enables the driver when non-empty.
	APIKey string

	// AllowedModels is the raw comma-separated allow-list.
	AllowedModels string
}

// Enabled reports whether the driver should be constructed.
func (p ProviderConfig) Enabled() bool { return p.APIKey != "" }

// CustomEndpointConfig configures the custom/local OpenAI-compatible driver.
type CustomEndpointConfig struct {
	URL          string
	APIKey       string
	DefaultModel string
}

// Enabled reports whether the custom driver should be constructed.
func (c CustomEndpointConfig) Enabled() bool { return c.URL != "" }

// Config is the full server configuration, built once at startup and treated
// as immutable afterwards.
type Config struct {
	// DefaultModel is "auto" or a model name/alias.
	DefaultModel string

	Anthropic  ProviderConfig
	OpenAI     ProviderConfig
	Gemini     ProviderConfig
	OpenRouter ProviderConfig
	Custom     CustomEndpointConfig

	// Locale is the default for the per-request locale field (BCP-47).
	Locale string

	// MaxConversationTurns caps turns per thread.
	MaxConversationTurns int

	// ConversationTimeout is the thread TTL.
	ConversationTimeout time.Duration

	// DisabledTools are tool names removed from the surface.
	DisabledTools map[string]bool

	// LogLevel is "debug", "info", "warn" or "error".
	LogLevel string

	// CustomModelsPath points at the user-editable JSON model catalogue.
	CustomModelsPath string
}

// AutoMode reports whether model selection is category-driven.
func (c *Config) AutoMode() bool {
	return strings.EqualFold(c.DefaultModel, "auto")
}

// Load reads configuration from the environment.
func Load() *Config {
	cfg := &Config{
		DefaultModel: envOr("DEFAULT_MODEL", "auto"),
		Anthropic: ProviderConfig{
			APIKey:        os.Getenv("ANTHROPIC_API_KEY"),
			AllowedModels: os.Getenv("ANTHROPIC_ALLOWED_MODELS"),
		},
		OpenAI: ProviderConfig{
			APIKey:        os.Getenv("OPENAI_API_KEY"),
			AllowedModels: os.Getenv("OPENAI_ALLOWED_MODELS"),
		},
		Gemini: ProviderConfig{
			APIKey:        os.Getenv("GEMINI_API_KEY"),
			AllowedModels: os.Getenv("GEMINI_ALLOWED_MODELS"),
		},
		OpenRouter: ProviderConfig{
			APIKey:        os.Getenv("OPENROUTER_API_KEY"),
			AllowedModels: os.Getenv("OPENROUTER_ALLOWED_MODELS"),
		},
		Custom: CustomEndpointConfig{
			URL:          os.Getenv("CUSTOM_API_URL"),
			APIKey:       os.Getenv("CUSTOM_API_KEY"),
			DefaultModel: os.Getenv("CUSTOM_MODEL_NAME"),
		},
		Locale:               os.Getenv("LOCALE"),
		MaxConversationTurns: envInt("MAX_CONVERSATION_TURNS", 50),
		ConversationTimeout:  time.Duration(envInt("CONVERSATION_TIMEOUT_HOURS", 3)) * time.Hour,
		DisabledTools:        parseDisabled(os.Getenv("DISABLED_TOOLS")),
		LogLevel:             envOr("LOG_LEVEL", "info"),
		CustomModelsPath:     os.Getenv("CUSTOM_MODELS_PATH"),
	}
	return cfg
}

// Validate checks that the configuration can produce a working server.
func (c *Config) Validate() error {
	if !c.Anthropic.Enabled() && !c.OpenAI.Enabled() && !c.Gemini.Enabled() &&
		!c.OpenRouter.Enabled() && !c.Custom.Enabled() {
		return ErrNoProvidersConfigured
	}
	if c.MaxConversationTurns <= 0 {
		return errors.New("MAX_CONVERSATION_TURNS must be positive")
	}
	if c.ConversationTimeout <= 0 {
		return errors.New("CONVERSATION_TIMEOUT_HOURS must be positive")
	}
	return nil
}

// AllowLists returns the raw per-provider allow-list values keyed by provider
// tag, for restriction parsing.
func (c *Config) AllowLists() map[string]string {
	return map[string]string{
		"anthropic":  c.Anthropic.AllowedModels,
		"openai":     c.OpenAI.AllowedModels,
		"gemini":     c.Gemini.AllowedModels,
		"openrouter": c.OpenRouter.AllowedModels,
	}
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func parseDisabled(raw string) map[string]bool {
	out := map[string]bool{}
	for _, name := range strings.Split(raw, ",") {
		name = strings.TrimSpace(strings.ToLower(name))
		if name != "" {
			out[name] = true
		}
	}
	return out
}
