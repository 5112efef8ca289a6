// Package main is the Zen MCP server entry point.
//
// Zen mediates between a host coding agent and multiple LLM providers over
// the MCP stdio protocol. Configuration comes entirely from environment
// variables:
//
//   - DEFAULT_MODEL: "auto" (category-driven selection) or a model name
//   - ANTHROPIC_API_KEY / OPENAI_API_KEY / GEMINI_API_KEY / OPENROUTER_API_KEY
//   - *_ALLOWED_MODELS: comma-separated per-provider model allow-lists
//   - CUSTOM_API_URL / CUSTOM_API_KEY / CUSTOM_MODEL_NAME: local endpoint
//   - CUSTOM_MODELS_PATH: JSON file extending the model catalogue
//   - DISABLED_TOOLS, LOCALE, LOG_LEVEL
//   - MAX_CONVERSATION_TURNS, CONVERSATION_TIMEOUT_HOURS
//
// All logging goes to stderr; stdout carries the protocol stream.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/haasonsaas/zen/internal/catalog"
	"github.com/haasonsaas/zen/internal/config"
	"github.com/haasonsaas/zen/internal/conversation"
	"github.com/haasonsaas/zen/internal/observability"
	"github.com/haasonsaas/zen/internal/providers"
	"github.com/haasonsaas/zen/internal/server"
	"github.com/haasonsaas/zen/internal/tools"
)

const serverName = "zen"

// sweepInterval is how often idle threads are reclaimed.
const sweepInterval = 10 * time.Minute

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "zen: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return err
	}

	log := observability.NewLogger(observability.LogConfig{Level: cfg.LogLevel})
	metrics := observability.NewMetrics()

	cat := catalog.NewBuiltin()
	if cfg.CustomModelsPath != "" {
		if err := catalog.LoadCustomCatalog(cat, cfg.CustomModelsPath); err != nil {
			return fmt.Errorf("load custom models: %w", err)
		}
	}

	restrictions, unresolved := catalog.ParseRestrictions(cat, cfg.AllowLists())
	for _, name := range unresolved {
		log.Warn(ctx, "allow-list names unknown model", "model", name)
	}

	registry, err := buildProviders(ctx, cfg, cat, restrictions, log)
	if err != nil {
		return err
	}
	if !registry.HasDrivers() {
		return config.ErrNoProvidersConfigured
	}

	if !cfg.AutoMode() {
		if _, _, err := registry.PickDriver(cfg.DefaultModel); err != nil {
			return fmt.Errorf("DEFAULT_MODEL %q: %w", cfg.DefaultModel, err)
		}
	}

	store := conversation.NewStore(cfg.MaxConversationTurns, cfg.ConversationTimeout)
	go sweepLoop(ctx, store, metrics, log)

	toolReg, err := tools.NewRegistry(cfg.AutoMode(), cfg.DisabledTools)
	if err != nil {
		return err
	}
	rt := &tools.Runtime{
		Providers:    registry,
		Store:        store,
		Log:          log,
		Metrics:      metrics,
		DefaultModel: cfg.DefaultModel,
		AutoMode:     cfg.AutoMode(),
		Locale:       cfg.Locale,
		Version:      config.Version,
		Registry:     toolReg,
	}
	d := &server.Dispatcher{Runtime: rt, Tools: toolReg, Log: log, Metrics: metrics}

	log.Info(ctx, "starting server",
		"version", config.Version,
		"default_model", cfg.DefaultModel,
		"providers", registry.Tags(),
		"tools", toolReg.Names())

	return server.New(serverName, config.Version, d).ServeStdio()
}

// buildProviders constructs one driver per configured credential, in the
// routing priority order: natives, then the custom endpoint, then the
// aggregator.
func buildProviders(ctx context.Context, cfg *config.Config, cat *catalog.Catalog, restrictions catalog.Restrictions, log *observability.Logger) (*providers.Registry, error) {
	reg := providers.NewRegistry(cat, restrictions)

	if cfg.Anthropic.Enabled() {
		d, err := providers.NewAnthropicDriver(providers.AnthropicConfig{APIKey: cfg.Anthropic.APIKey}, cat)
		if err != nil {
			return nil, err
		}
		reg.RegisterNative(d)
		log.Info(ctx, "provider enabled", "provider", d.Tag())
	}
	if cfg.OpenAI.Enabled() {
		d, err := providers.NewOpenAIDriver(providers.OpenAIConfig{APIKey: cfg.OpenAI.APIKey}, cat)
		if err != nil {
			return nil, err
		}
		reg.RegisterNative(d)
		log.Info(ctx, "provider enabled", "provider", d.Tag())
	}
	if cfg.Gemini.Enabled() {
		d, err := providers.NewGeminiDriver(ctx, providers.GeminiConfig{APIKey: cfg.Gemini.APIKey}, cat)
		if err != nil {
			return nil, err
		}
		reg.RegisterNative(d)
		log.Info(ctx, "provider enabled", "provider", d.Tag())
	}
	if cfg.Custom.Enabled() {
		d, err := providers.NewCustomDriver(providers.CustomConfig{
			BaseURL:      cfg.Custom.URL,
			APIKey:       cfg.Custom.APIKey,
			DefaultModel: cfg.Custom.DefaultModel,
		}, cat)
		if err != nil {
			return nil, err
		}
		reg.RegisterCustom(d)
		log.Info(ctx, "provider enabled", "provider", d.Tag(), "endpoint", cfg.Custom.URL)
	}
	if cfg.OpenRouter.Enabled() {
		d, err := providers.NewOpenRouterDriver(providers.OpenRouterConfig{APIKey: cfg.OpenRouter.APIKey}, cat)
		if err != nil {
			return nil, err
		}
		reg.RegisterAggregator(d)
		log.Info(ctx, "provider enabled", "provider", d.Tag())
	}
	return reg, nil
}

func sweepLoop(ctx context.Context, store *conversation.Store, metrics *observability.Metrics, log *observability.Logger) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for range ticker.C {
		if removed := store.Sweep(); removed > 0 {
			log.Debug(ctx, "swept expired threads", "removed", removed)
		}
		metrics.ActiveThreads.Set(float64(store.Len()))
	}
}
