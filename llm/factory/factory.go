// Package factory maps provider names onto concrete [llm.Provider]
// constructors. It imports every provider subpackage and so lives outside
// the llm package, breaking the import cycle that would occur if this logic
// sat next to the registry.
package factory

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/councilflow/llm"
	"github.com/BaSui01/councilflow/llm/providers"
	"github.com/BaSui01/councilflow/llm/providers/anthropic"
	"github.com/BaSui01/councilflow/llm/providers/gemini"
	"github.com/BaSui01/councilflow/llm/providers/grok"
	"github.com/BaSui01/councilflow/llm/providers/openai"
	"github.com/BaSui01/councilflow/llm/providers/openaicompat"
)

const groqBaseURL = "https://api.groq.com/openai/v1"

// ProviderConfig is the generic configuration accepted by the factory. Extra
// carries provider-specific fields such as the OpenAI organization.
type ProviderConfig struct {
	APIKey  string         `json:"api_key" yaml:"api_key"`
	BaseURL string         `json:"base_url" yaml:"base_url"`
	Model   string         `json:"model,omitempty" yaml:"model,omitempty"`
	Timeout time.Duration  `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	Extra   map[string]any `json:"extra,omitempty" yaml:"extra,omitempty"`
}

func extraString(extra map[string]any, key string) string {
	if v, ok := extra[key].(string); ok {
		return v
	}
	return ""
}

// extraInt tolerates both YAML (int) and JSON (float64) decodings.
func extraInt(extra map[string]any, key string) int {
	switch n := extra[key].(type) {
	case int:
		return n
	case float64:
		return int(n)
	}
	return 0
}

// NewProviderFromConfig builds a provider for the given name. Unknown names
// are treated as generic OpenAI-compatible endpoints and require base_url.
//
// Built-in names: openai, anthropic (claude), gemini (google), grok (xai,
// x-ai), groq.
func NewProviderFromConfig(name string, cfg ProviderConfig) (llm.Provider, error) {
	base := providers.BaseProviderConfig{
		APIKey:  cfg.APIKey,
		BaseURL: cfg.BaseURL,
		Model:   cfg.Model,
		Timeout: cfg.Timeout,
	}

	switch name {
	case "openai":
		return openai.New(providers.OpenAIConfig{
			BaseProviderConfig: base,
			Organization:       extraString(cfg.Extra, "organization"),
		}), nil

	case "anthropic", "claude":
		return anthropic.New(providers.AnthropicConfig{
			BaseProviderConfig: base,
			APIVersion:         extraString(cfg.Extra, "anthropic_version"),
			MaxTokens:          extraInt(cfg.Extra, "max_tokens"),
		}), nil

	case "gemini", "google":
		return gemini.New(providers.GeminiConfig{BaseProviderConfig: base}), nil

	case "grok", "xai", "x-ai":
		return grok.New(providers.GrokConfig{BaseProviderConfig: base}), nil

	case "groq":
		return openaicompat.New(openaicompat.Config{
			BaseProviderConfig: base,
			Name:               "groq",
			DefaultBaseURL:     groqBaseURL,
			FallbackModel:      "llama-3.3-70b-versatile",
		}), nil

	default:
		// Any other name works as a generic OpenAI-compatible endpoint:
		// Fireworks, OpenRouter, Ollama, vLLM and the like.
		if cfg.BaseURL == "" {
			return nil, fmt.Errorf("unknown provider %q: base_url is required for a generic OpenAI-compatible provider", name)
		}
		return openaicompat.New(openaicompat.Config{
			BaseProviderConfig: base,
			Name:               name,
		}), nil
	}
}

// SupportedProviders returns the built-in provider names. Any other name is
// treated as a generic OpenAI-compatible provider and requires base_url.
func SupportedProviders() []string {
	return []string{"openai", "anthropic", "claude", "gemini", "google", "grok", "xai", "x-ai", "groq"}
}

// Builder returns a ProviderBuilder that constructs providers on demand from
// the given per-provider configurations. Names with no configuration entry
// still build when they are built-in, using ambient defaults.
func Builder(configs map[string]ProviderConfig) llm.ProviderBuilder {
	return func(name string) (llm.Provider, error) {
		return NewProviderFromConfig(name, configs[name])
	}
}

// RetryableUpstream reports whether err is a transient upstream failure worth
// retrying. It is the RetryIf classifier wired into the gateway's retryer.
func RetryableUpstream(err error) bool {
	var lerr *llm.Error
	if errors.As(err, &lerr) {
		return lerr.Retryable
	}
	return false
}

// RegistryConfig describes multiple providers and which one is the default.
type RegistryConfig struct {
	// Default is the name of the default provider; must match a Providers key.
	Default string `json:"default" yaml:"default"`
	// Providers maps provider names to their configurations.
	Providers map[string]ProviderConfig `json:"providers" yaml:"providers"`
}

// NewRegistryFromConfig creates a ProviderRegistry eagerly populated with
// every provider in cfg. Providers that fail to initialize are logged and
// skipped so one bad entry does not take the rest down.
func NewRegistryFromConfig(cfg RegistryConfig, logger *zap.Logger) (*llm.ProviderRegistry, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	reg := llm.NewProviderRegistry()
	for name, pcfg := range cfg.Providers {
		p, err := NewProviderFromConfig(name, pcfg)
		if err != nil {
			logger.Warn("skipping provider: initialization failed",
				zap.String("provider", name),
				zap.Error(err))
			continue
		}
		reg.Register(name, p)
		logger.Info("provider registered", zap.String("provider", name))
	}

	if cfg.Default != "" {
		if err := reg.SetDefault(cfg.Default); err != nil {
			return reg, fmt.Errorf("failed to set default provider %q: %w", cfg.Default, err)
		}
	}
	return reg, nil
}
