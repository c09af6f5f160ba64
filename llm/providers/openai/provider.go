// Package openai implements [llm.Provider] for the OpenAI chat completion
// API. It is a thin wrapper over the openaicompat base adding the
// organization header and OpenAI defaults.
package openai

import (
	"github.com/BaSui01/councilflow/llm/providers"
	"github.com/BaSui01/councilflow/llm/providers/openaicompat"
)

const (
	defaultBaseURL = "https://api.openai.com/v1"
	fallbackModel  = "gpt-5.2"
)

// Provider is the OpenAI adapter.
type Provider struct {
	*openaicompat.Provider
}

// New builds an OpenAI provider from cfg.
func New(cfg providers.OpenAIConfig) *Provider {
	var extra map[string]string
	if cfg.Organization != "" {
		extra = map[string]string{"OpenAI-Organization": cfg.Organization}
	}
	return &Provider{
		Provider: openaicompat.New(openaicompat.Config{
			BaseProviderConfig: cfg.BaseProviderConfig,
			Name:               "openai",
			DefaultBaseURL:     defaultBaseURL,
			FallbackModel:      fallbackModel,
			ExtraHeaders:       extra,
		}),
	}
}
