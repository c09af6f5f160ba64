// Package grok implements [llm.Provider] for the xAI Grok API, which exposes
// the OpenAI chat completion protocol at api.x.ai.
package grok

import (
	"github.com/BaSui01/councilflow/llm/providers"
	"github.com/BaSui01/councilflow/llm/providers/openaicompat"
)

const (
	defaultBaseURL = "https://api.x.ai/v1"
	fallbackModel  = "grok-4"
)

// Provider is the xAI Grok adapter.
type Provider struct {
	*openaicompat.Provider
}

// New builds a Grok provider from cfg.
func New(cfg providers.GrokConfig) *Provider {
	return &Provider{
		Provider: openaicompat.New(openaicompat.Config{
			BaseProviderConfig: cfg.BaseProviderConfig,
			Name:               "grok",
			DefaultBaseURL:     defaultBaseURL,
			FallbackModel:      fallbackModel,
		}),
	}
}
