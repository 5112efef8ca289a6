package providers

import (
	"errors"

	"github.com/haasonsaas/zen/internal/catalog"
)

const openRouterBaseURL = "https://openrouter.ai/api/v1"

// OpenRouterDriver is the aggregator gateway. It is the catch-all in the
// routing order: it accepts any model name, using catalogue metadata when the
// name is known and generic defaults otherwise.
type OpenRouterDriver struct {
	compatDriver
}

// OpenRouterConfig configures the aggregator driver.
type OpenRouterConfig struct {
	// APIKey is the OpenRouter API key (required).
	APIKey string

	// BaseURL overrides the gateway endpoint. Optional.
	BaseURL string
}

// NewOpenRouterDriver creates the aggregator driver from the full catalogue.
func NewOpenRouterDriver(cfg OpenRouterConfig, full *catalog.Catalog) (*OpenRouterDriver, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openrouter: API key is required")
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = openRouterBaseURL
	}
	d := &OpenRouterDriver{compatDriver{
		base:   newBase(catalog.ProviderOpenRouter, subCatalog(full, catalog.ProviderOpenRouter)),
		client: newCompatClient(cfg.APIKey, baseURL),
	}}
	// Unknown names pass through to the gateway verbatim with conservative
	// generic capabilities.
	d.defaultCap = &catalog.Capability{
		Provider:        catalog.ProviderOpenRouter,
		ContextWindow:   128_000,
		MaxOutputTokens: 8_192,
		Temperature:     catalog.RangeConstraint(0, 1, 0.5),
		Category:        catalog.CategoryBalanced,
	}
	return d, nil
}

// SupportsModel implements the catch-all contract: every name is accepted.
func (d *OpenRouterDriver) SupportsModel(name string) bool {
	return name != ""
}

// Capabilities returns catalogue metadata when known, generic capabilities
// otherwise.
func (d *OpenRouterDriver) Capabilities(name string) (*catalog.Capability, bool) {
	if cap, ok := d.base.Capabilities(name); ok {
		return cap, true
	}
	if name == "" {
		return nil, false
	}
	c := *d.defaultCap
	c.Name = name
	return &c, true
}
