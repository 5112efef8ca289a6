package providers

import (
	"errors"

	"github.com/haasonsaas/zen/internal/catalog"
)

// CustomDriver serves a self-hosted OpenAI-compatible endpoint (Ollama, vLLM,
// LM Studio and the like).
type CustomDriver struct {
	compatDriver
	defaultModel string
}

// CustomConfig configures the local endpoint driver.
type CustomConfig struct {
	// BaseURL is the endpoint root, e.g. "http://localhost:11434/v1" (required).
	BaseURL string

	// APIKey is the endpoint credential; many local servers accept any value.
	APIKey string

	// DefaultModel is used when a request names no custom model.
	DefaultModel string
}

// NewCustomDriver creates the custom/local driver from the full catalogue.
// Its model set comes from the user-editable catalogue document.
func NewCustomDriver(cfg CustomConfig, full *catalog.Catalog) (*CustomDriver, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("custom: endpoint URL is required")
	}
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = "unused"
	}
	return &CustomDriver{
		compatDriver: compatDriver{
			base:   newBase(catalog.ProviderCustom, subCatalog(full, catalog.ProviderCustom)),
			client: newCompatClient(apiKey, cfg.BaseURL),
		},
		defaultModel: cfg.DefaultModel,
	}, nil
}

// DefaultModel returns the configured default custom model name, if any.
func (d *CustomDriver) DefaultModel() string { return d.defaultModel }
