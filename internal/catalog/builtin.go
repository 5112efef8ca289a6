package catalog

// Provider tags. Drivers register under these.
const (
	ProviderAnthropic  = "anthropic"
	ProviderOpenAI     = "openai"
	ProviderGemini     = "gemini"
	ProviderOpenRouter = "openrouter"
	ProviderCustom     = "custom"
)

const (
	mb = int64(1) << 20
)

// builtinCapabilities is the hard-coded catalogue for the native providers
// plus a curated set of OpenRouter presets. Declaration order matters: it is
// the tie-breaker for category selection.
var builtinCapabilities = []*Capability{
	// Anthropic
	{
		Name: "claude-sonnet-4-20250514", FriendlyName: "Claude Sonnet 4",
		Provider: ProviderAnthropic, ContextWindow: 200_000, MaxOutputTokens: 64_000,
		SupportsThinking: true, SupportsVision: true, MaxImageBytes: 5 * mb,
		Temperature: RangeConstraint(0, 1, 0.5),
		Aliases:     []string{"sonnet", "claude-sonnet", "claude"},
		Category:    CategoryBalanced,
		Description: "Balanced Claude model for general analysis and coding",
	},
	{
		Name: "claude-opus-4-20250514", FriendlyName: "Claude Opus 4",
		Provider: ProviderAnthropic, ContextWindow: 200_000, MaxOutputTokens: 32_000,
		SupportsThinking: true, SupportsVision: true, MaxImageBytes: 5 * mb,
		Temperature: RangeConstraint(0, 1, 0.5),
		Aliases:     []string{"opus", "claude-opus"},
		Category:    CategoryReasoning,
		Description: "Strongest Claude model for deep reasoning",
	},
	{
		Name: "claude-3-5-haiku-20241022", FriendlyName: "Claude Haiku 3.5",
		Provider: ProviderAnthropic, ContextWindow: 200_000, MaxOutputTokens: 8_192,
		SupportsVision: true, MaxImageBytes: 5 * mb,
		Temperature: RangeConstraint(0, 1, 0.5),
		Aliases:     []string{"haiku"},
		Category:    CategoryFast,
		Description: "Fast, inexpensive Claude model",
	},

	// OpenAI
	{
		Name: "gpt-4o", FriendlyName: "GPT-4o",
		Provider: ProviderOpenAI, ContextWindow: 128_000, MaxOutputTokens: 16_384,
		SupportsVision: true, MaxImageBytes: 20 * mb,
		Temperature: RangeConstraint(0, 2, 0.5),
		Aliases:     []string{"4o", "gpt4o"},
		Category:    CategoryBalanced,
		Description: "OpenAI flagship multimodal model",
	},
	{
		Name: "gpt-4o-mini", FriendlyName: "GPT-4o mini",
		Provider: ProviderOpenAI, ContextWindow: 128_000, MaxOutputTokens: 16_384,
		SupportsVision: true, MaxImageBytes: 20 * mb,
		Temperature: RangeConstraint(0, 2, 0.5),
		Aliases:     []string{"4o-mini", "gpt4o-mini"},
		Category:    CategoryFast,
		Description: "Small, fast OpenAI model",
	},
	{
		Name: "o3", FriendlyName: "O3",
		Provider: ProviderOpenAI, ContextWindow: 200_000, MaxOutputTokens: 100_000,
		SupportsThinking: true, SupportsVision: true, MaxImageBytes: 20 * mb,
		Temperature: FixedConstraint(1),
		Category:    CategoryReasoning,
		Description: "OpenAI reasoning model; temperature is fixed",
	},
	{
		Name: "o4-mini", FriendlyName: "O4 mini",
		Provider: ProviderOpenAI, ContextWindow: 200_000, MaxOutputTokens: 100_000,
		SupportsThinking: true, SupportsVision: true, MaxImageBytes: 20 * mb,
		Temperature: FixedConstraint(1),
		Aliases:     []string{"mini", "o4mini"},
		Category:    CategoryFast,
		Description: "Compact OpenAI reasoning model; temperature is fixed",
	},

	// Gemini
	{
		Name: "gemini-2.5-pro", FriendlyName: "Gemini 2.5 Pro",
		Provider: ProviderGemini, ContextWindow: 1_048_576, MaxOutputTokens: 65_536,
		SupportsThinking: true, SupportsVision: true, MaxImageBytes: 20 * mb,
		Temperature: RangeConstraint(0, 2, 0.5),
		Aliases:     []string{"pro", "gemini-pro", "gemini"},
		Category:    CategoryReasoning,
		Description: "Gemini deep-reasoning model with huge context",
	},
	{
		Name: "gemini-2.5-flash", FriendlyName: "Gemini 2.5 Flash",
		Provider: ProviderGemini, ContextWindow: 1_048_576, MaxOutputTokens: 65_536,
		SupportsThinking: true, SupportsVision: true, MaxImageBytes: 20 * mb,
		Temperature: RangeConstraint(0, 2, 0.5),
		Aliases:     []string{"flash", "gemini-flash"},
		Category:    CategoryFast,
		Description: "Fast Gemini model",
	},

	// OpenRouter presets. The aggregator accepts any model name; these entries
	// give common ones capability metadata and shorthand aliases.
	{
		Name: "anthropic/claude-sonnet-4", FriendlyName: "Claude Sonnet 4 (OpenRouter)",
		Provider: ProviderOpenRouter, ContextWindow: 200_000, MaxOutputTokens: 64_000,
		SupportsVision: true, MaxImageBytes: 5 * mb,
		Temperature: RangeConstraint(0, 1, 0.5),
		Category:    CategoryBalanced,
	},
	{
		Name: "deepseek/deepseek-r1", FriendlyName: "DeepSeek R1",
		Provider: ProviderOpenRouter, ContextWindow: 128_000, MaxOutputTokens: 32_000,
		SupportsThinking: true,
		Temperature:      RangeConstraint(0, 2, 0.5),
		Aliases:          []string{"deepseek", "r1"},
		Category:         CategoryReasoning,
	},
	{
		Name: "mistralai/mistral-large", FriendlyName: "Mistral Large",
		Provider: ProviderOpenRouter, ContextWindow: 128_000, MaxOutputTokens: 16_000,
		Temperature: RangeConstraint(0, 1, 0.5),
		Aliases:     []string{"mistral"},
		Category:    CategoryBalanced,
	},
}

// NewBuiltin returns a catalog populated with the hard-coded descriptors.
func NewBuiltin() *Catalog {
	c := New()
	for _, cap := range builtinCapabilities {
		// Builtin entries are validated by tests; registration cannot fail.
		_ = c.Register(cap)
	}
	return c
}
