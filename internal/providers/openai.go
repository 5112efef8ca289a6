package providers

import (
	"errors"

	"github.com/haasonsaas/zen/internal/catalog"
)

// OpenAIDriver serves OpenAI models through the chat-completions API.
type OpenAIDriver struct {
	compatDriver
}

// OpenAIConfig configures the OpenAI driver.
type OpenAIConfig struct {
	// APIKey is the OpenAI API key (required).
	APIKey string

	// BaseURL overrides the API endpoint. Optional.
	BaseURL string
}

// NewOpenAIDriver creates the native OpenAI driver from the full catalogue.
func NewOpenAIDriver(cfg OpenAIConfig, full *catalog.Catalog) (*OpenAIDriver, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai: API key is required")
	}
	return &OpenAIDriver{compatDriver{
		base:   newBase(catalog.ProviderOpenAI, subCatalog(full, catalog.ProviderOpenAI)),
		client: newCompatClient(cfg.APIKey, cfg.BaseURL),
	}}, nil
}
