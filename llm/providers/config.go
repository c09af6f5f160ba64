package providers

import (
	"net/http"
	"strings"
	"time"

	"github.com/BaSui01/councilflow/internal/tlsutil"
)

// BaseProviderConfig carries the settings common to every provider adapter.
type BaseProviderConfig struct {
	// APIKey authenticates requests against the vendor API.
	APIKey string

	// BaseURL overrides the vendor endpoint, e.g. for proxies or self-hosted
	// gateways. Trailing slashes are trimmed.
	BaseURL string

	// Model is the default model used when a request does not name one.
	Model string

	// Timeout bounds a single HTTP round trip. Zero means the adapter default.
	Timeout time.Duration

	// HTTPClient replaces the TLS-hardened default client when set.
	HTTPClient *http.Client
}

// Client returns the configured HTTP client, building a TLS-hardened one with
// the effective timeout when none was supplied.
func (c BaseProviderConfig) Client(defaultTimeout time.Duration) *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return tlsutil.SecureHTTPClient(timeout)
}

// Endpoint returns the configured base URL with trailing slashes trimmed, or
// the vendor default when unset.
func (c BaseProviderConfig) Endpoint(defaultURL string) string {
	if c.BaseURL == "" {
		return defaultURL
	}
	return strings.TrimRight(c.BaseURL, "/")
}

// OpenAIConfig configures the OpenAI adapter.
type OpenAIConfig struct {
	BaseProviderConfig

	// Organization is sent as the OpenAI-Organization header when set.
	Organization string
}

// AnthropicConfig configures the Anthropic adapter.
type AnthropicConfig struct {
	BaseProviderConfig

	// APIVersion overrides the anthropic-version header.
	APIVersion string

	// MaxTokens is the fallback output budget; the Anthropic API requires one
	// on every request.
	MaxTokens int
}

// GeminiConfig configures the Google Gemini adapter.
type GeminiConfig struct {
	BaseProviderConfig
}

// GrokConfig configures the xAI Grok adapter.
type GrokConfig struct {
	BaseProviderConfig
}
