// Council roster resolution: provider API key discovery and filtering of
// members whose provider cannot be reached.

package config

import (
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/BaSui01/councilflow/conversation"
	"github.com/BaSui01/councilflow/llm"
	"github.com/BaSui01/councilflow/llm/factory"
)

// providerKeyEnv maps provider names to the conventional, unprefixed API key
// variables their vendors document. These are checked in addition to the
// prefixed COUNCILFLOW_* variables so a stock shell environment works as-is.
var providerKeyEnv = []struct {
	Provider string
	EnvVar   string
}{
	{"openai", "OPENAI_API_KEY"},
	{"google", "GOOGLE_API_KEY"},
	{"anthropic", "ANTHROPIC_API_KEY"},
	{"x-ai", "XAI_API_KEY"},
	{"groq", "GROQ_API_KEY"},
	{"openrouter", "OPENROUTER_API_KEY"},
}

// openRouterBaseURL is filled in for the legacy openrouter provider so the
// generic OpenAI-compatible client knows where to connect.
const openRouterBaseURL = "https://openrouter.ai/api/v1"

// ApplyProviderKeyEnv overlays the well-known provider API key variables onto
// the provider map. A set variable wins over a key from the YAML file.
func (c *Config) ApplyProviderKeyEnv() {
	for _, pk := range providerKeyEnv {
		key := os.Getenv(pk.EnvVar)
		if key == "" {
			continue
		}
		if c.LLM.Providers == nil {
			c.LLM.Providers = make(map[string]factory.ProviderConfig)
		}
		entry := c.LLM.Providers[pk.Provider]
		entry.APIKey = key
		if pk.Provider == "openrouter" && entry.BaseURL == "" {
			entry.BaseURL = openRouterBaseURL
		}
		c.LLM.Providers[pk.Provider] = entry
	}
}

// FilterCouncil drops council members whose provider has neither an API key
// nor a base URL configured, then resolves the chairman and title model
// against the surviving roster. It mutates the configuration in place and
// fails only when no member survives.
func (c *Config) FilterCouncil(logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}

	var (
		survivors []string
		dropped   []string
		missing   []string
		seen      = make(map[string]bool)
	)

	for _, member := range c.Council.Members {
		ref, err := llm.ParseModelRef(member)
		if err != nil {
			logger.Warn("Ignoring invalid council member", zap.String("member", member), zap.Error(err))
			continue
		}
		if c.providerUsable(ref.Provider) {
			survivors = append(survivors, member)
			continue
		}
		dropped = append(dropped, member)
		if !seen[ref.Provider] {
			seen[ref.Provider] = true
			missing = append(missing, ref.Provider)
		}
	}

	if len(dropped) > 0 {
		logger.Warn("Excluding council members with no provider credentials",
			zap.Strings("members", dropped),
			zap.Strings("providers", missing))
	}

	if len(survivors) == 0 {
		return fmt.Errorf("no council members are usable: configure at least one provider API key")
	}
	c.Council.Members = survivors

	c.Council.Chairman = c.resolveModel(c.Council.Chairman, survivors[0], "chairman", logger)
	c.Council.TitleModel = c.resolveTitleModel(survivors[0], logger)

	return nil
}

// providerUsable reports whether a provider has enough configuration to take
// calls. A base URL without a key counts: local and proxy endpoints often
// need none.
func (c *Config) providerUsable(provider string) bool {
	entry, ok := c.LLM.Providers[provider]
	if !ok {
		return false
	}
	return entry.APIKey != "" || entry.BaseURL != ""
}

// resolveModel validates a configured model against the provider map and
// falls back when it cannot be used.
func (c *Config) resolveModel(configured, fallback, role string, logger *zap.Logger) string {
	if configured == "" {
		return fallback
	}
	ref, err := llm.ParseModelRef(configured)
	if err != nil {
		logger.Warn("Configured model is invalid, falling back",
			zap.String("role", role),
			zap.String("model", configured),
			zap.String("fallback", fallback),
			zap.Error(err))
		return fallback
	}
	if !c.providerUsable(ref.Provider) {
		logger.Warn("Configured model has no provider credentials, falling back",
			zap.String("role", role),
			zap.String("model", configured),
			zap.String("fallback", fallback))
		return fallback
	}
	return configured
}

// resolveTitleModel picks the conversation title model: the configured one if
// usable, else the cheap stock default when its provider is available, else
// the first surviving council member.
func (c *Config) resolveTitleModel(firstMember string, logger *zap.Logger) string {
	fallback := firstMember
	if ref, err := llm.ParseModelRef(conversation.DefaultTitleModel); err == nil && c.providerUsable(ref.Provider) {
		fallback = conversation.DefaultTitleModel
	}
	if c.Council.TitleModel == "" {
		return fallback
	}
	return c.resolveModel(c.Council.TitleModel, fallback, "title_model", logger)
}
