package llm

import (
	"context"
	"fmt"
	"os"

	"github.com/atlas-cortex/cortex/internal/config"
)

// knownProviders is the set of provider names factory.go knows how to
// construct. Used both for the single-provider path (NewProvider) and for
// building every fallback candidate the Provider Registry can consider.
var knownProviders = []string{"mlx", "ollama", "openai", "anthropic", "gemini", "grok", "groq", "dnet", "openrouter"}

// NewProvider creates the LLM provider named by cfg.LLM.Provider, using
// cfg.LLM.URL/APIKey and falling back to DefaultConfig(name) for anything
// left unset.
func NewProvider(cfg *config.Config) (Provider, error) {
	providerName := cfg.LLM.Provider
	if providerName == "" {
		providerName = "ollama"
	}
	return NewProviderByName(providerName, providerConfigFor(providerName, cfg))
}

// providerConfigFor builds a ProviderConfig for name, preferring cfg.LLM's
// fields when name matches the configured primary provider and falling back
// to environment variables and per-provider defaults otherwise. This lets the
// Provider Registry build every known provider as a fallback candidate even
// though LLMConfig only carries settings for the primary one.
func providerConfigFor(name string, cfg *config.Config) *ProviderConfig {
	defaults := DefaultConfig(name)

	pc := &ProviderConfig{
		Name:        name,
		Endpoint:    defaults.Endpoint,
		Model:       defaults.Model,
		MaxTokens:   defaults.MaxTokens,
		Temperature: defaults.Temperature,
		Timeout:     defaults.Timeout,
	}

	if cfg != nil && cfg.LLM.Provider == name {
		if cfg.LLM.URL != "" {
			pc.Endpoint = cfg.LLM.URL
		}
		if cfg.LLM.ModelStandard != "" {
			pc.Model = cfg.LLM.ModelStandard
		}
		if cfg.LLM.RequestTimeout > 0 {
			pc.Timeout = cfg.LLM.RequestTimeout
		}
		pc.APIKey = cfg.LLM.APIKey
	}

	if pc.APIKey == "" {
		pc.APIKey = getAPIKeyFromEnv(name)
	}

	return pc
}

// getAPIKeyFromEnv retrieves the API key from standard environment variables.
func getAPIKeyFromEnv(providerName string) string {
	envVars := map[string]string{
		"grok":       "XAI_API_KEY",
		"groq":       "GROQ_API_KEY",
		"openai":     "OPENAI_API_KEY",
		"anthropic":  "ANTHROPIC_API_KEY",
		"gemini":     "GEMINI_API_KEY",
		"openrouter": "OPENROUTER_API_KEY",
	}
	if envVar, ok := envVars[providerName]; ok {
		return os.Getenv(envVar)
	}
	return ""
}

// NewProviderByNameWithConfig creates a provider by name. All providers are
// wrapped with MetricsProvider for call counting and latency tracking.
func NewProviderByNameWithConfig(name string, cfg *ProviderConfig) (Provider, error) {
	var provider Provider

	switch name {
	case "mlx":
		// MLX-LM provider (5-10x faster than Ollama on Apple Silicon)
		provider = NewMLXProvider(cfg)
	case "ollama":
		ollamaProvider := NewOllamaProvider(cfg)

		// Always trigger warmup for Ollama to avoid cold start delays (30-90+ seconds).
		// This runs in background and doesn't block startup.
		if ollamaProvider.Available() {
			ollamaProvider.WarmupAsync(context.Background())
		}

		provider = ollamaProvider
	case "openai":
		provider = NewOpenAIProvider(cfg)
	case "anthropic":
		provider = NewAnthropicProvider(cfg)
	case "gemini":
		provider = NewGeminiProvider(cfg)
	case "grok":
		provider = NewGrokProvider(cfg)
	case "groq":
		provider = NewGroqProvider(cfg)
	case "dnet":
		provider = NewDNetProvider(cfg)
	case "openrouter":
		provider = NewOpenRouterProvider(cfg)
	default:
		return nil, fmt.Errorf("unknown provider: %s", name)
	}

	// Wrap with MetricsProvider for call counting and register globally
	metricsProvider := NewMetricsProvider(provider)
	RegisterMetricsProvider(metricsProvider)

	return metricsProvider, nil
}

// NewProviderByName creates a specific provider by name.
func NewProviderByName(name string, cfg *ProviderConfig) (Provider, error) {
	return NewProviderByNameWithConfig(name, cfg)
}

// AvailableProviders returns the names of every known provider that is
// currently configured and reachable, in knownProviders order.
func AvailableProviders(cfg *config.Config) []string {
	var available []string

	for _, name := range knownProviders {
		provider, err := NewProviderByName(name, providerConfigFor(name, cfg))
		if err != nil {
			continue
		}
		if provider.Available() {
			available = append(available, name)
		}
	}

	return available
}
