// Default values for every configuration section.

package config

import (
	"time"

	"github.com/BaSui01/councilflow/conversation"
	"github.com/BaSui01/councilflow/llm/factory"
)

// DefaultCouncilMembers is the stock council roster. Members whose provider
// has no API key configured are dropped at startup, see FilterCouncil.
var DefaultCouncilMembers = []string{
	"openai/gpt-5.2",
	"google/gemini-2.0-flash",
	"anthropic/claude-sonnet-4-5",
	"x-ai/grok-4",
	"groq/llama-3.3-70b-versatile",
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Server:       DefaultServerConfig(),
		Council:      DefaultCouncilConfig(),
		LLM:          DefaultLLMConfig(),
		Conversation: DefaultConversationConfig(),
		Auth:         DefaultAuthConfig(),
		Log:          DefaultLogConfig(),
		Telemetry:    DefaultTelemetryConfig(),
	}
}

// DefaultServerConfig returns the default server configuration.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPPort:        8080,
		MetricsPort:     9091,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    30 * time.Second,
		ShutdownTimeout: 15 * time.Second,
		RateLimitRPS:    100,
		RateLimitBurst:  200,
		CORSOrigins:     []string{"*"},
	}
}

// DefaultCouncilConfig returns the default council configuration.
func DefaultCouncilConfig() CouncilConfig {
	members := make([]string, len(DefaultCouncilMembers))
	copy(members, DefaultCouncilMembers)
	return CouncilConfig{
		Members:        members,
		Chairman:       "",
		TitleModel:     "",
		PerCallTimeout: 2 * time.Minute,
	}
}

// DefaultLLMConfig returns the default LLM configuration. The provider map
// starts with the providers the stock roster needs; keys arrive through the
// environment.
func DefaultLLMConfig() LLMConfig {
	return LLMConfig{
		Default: "openai",
		Providers: map[string]factory.ProviderConfig{
			"openai":    {},
			"google":    {},
			"anthropic": {},
			"x-ai":      {},
			"groq":      {},
		},
		Timeout:     2 * time.Minute,
		MaxRetries:  3,
		MaxTokens:   0,
		Temperature: 0.7,
	}
}

// DefaultConversationConfig returns the default persistence configuration.
func DefaultConversationConfig() ConversationConfig {
	return ConversationConfig{
		Store: conversation.DefaultStoreConfig(),
	}
}

// DefaultAuthConfig returns the default authentication configuration.
func DefaultAuthConfig() AuthConfig {
	return AuthConfig{
		Enabled:   false,
		JWTSecret: "",
		APIKey:    "",
		TokenTTL:  24 * time.Hour,
	}
}

// DefaultLogConfig returns the default logging configuration.
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:            "info",
		Format:           "json",
		OutputPaths:      []string{"stdout"},
		EnableCaller:     true,
		EnableStacktrace: false,
	}
}

// DefaultTelemetryConfig returns the default telemetry configuration.
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:      false,
		OTLPEndpoint: "localhost:4317",
		ServiceName:  "councilflow",
		SampleRate:   0.1,
	}
}
