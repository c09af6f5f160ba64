// Package councilflow assembles a council of LLMs behind a single Ask call.
//
// A council sends one question to several models in parallel, has each model
// review the anonymized answers of its peers, and lets a chairman model write
// the final synthesis from the reviews and rankings.
//
// Usage:
//
//	import "github.com/BaSui01/councilflow"
//
//	c, err := councilflow.New() // stock roster, API keys from the environment
//	c, err := councilflow.New(councilflow.WithMembers("openai/gpt-4o", "anthropic/claude-sonnet-4-5"))
//	result, err := c.Ask(ctx, "Why is the sky blue?")
//
// Members whose provider has no API key configured are dropped at
// construction time; New fails only when no member survives. For full control
// over providers, stores and the HTTP surface use the config, llm, council
// and conversation packages directly.
package councilflow

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/councilflow/config"
	"github.com/BaSui01/councilflow/council"
	"github.com/BaSui01/councilflow/llm"
	"github.com/BaSui01/councilflow/llm/factory"
	"github.com/BaSui01/councilflow/llm/retry"
	"github.com/BaSui01/councilflow/types"
)

// Version is the library version. The councilflow binary reports its own
// build metadata injected at link time.
const Version = "0.1.0"

// Option configures the council created by [New].
type Option func(*options)

type options struct {
	members  []string
	chairman string
	timeout  time.Duration
	logger   *zap.Logger
	querier  llm.Querier
	sink     council.EventSink
}

// WithMembers replaces the stock council roster.
// Models are named provider/model, e.g. "openai/gpt-4o".
func WithMembers(models ...string) Option {
	return func(o *options) { o.members = models }
}

// WithChairman sets the synthesis model. Defaults to the first usable member.
func WithChairman(model string) Option {
	return func(o *options) { o.chairman = model }
}

// WithPerCallTimeout bounds each individual model call.
func WithPerCallTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// WithLogger sets a custom zap logger. Defaults to zap.NewNop().
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithQuerier supplies a custom querying backend instead of the built-in
// provider gateway. No API keys are needed; member filtering is skipped.
func WithQuerier(q llm.Querier) Option {
	return func(o *options) { o.querier = q }
}

// WithEventSink receives stage-boundary events during Ask.
func WithEventSink(sink council.EventSink) Option {
	return func(o *options) { o.sink = sink }
}

// Council bundles a configured provider gateway and deliberation engine.
type Council struct {
	engine  *council.Engine
	gateway *llm.Gateway
}

// New builds a ready-to-use council with minimal configuration.
func New(opts ...Option) (*Council, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}

	cfg := config.DefaultConfig()
	cfg.ApplyProviderKeyEnv()
	if o.members != nil {
		cfg.Council.Members = o.members
	}
	if o.chairman != "" {
		cfg.Council.Chairman = o.chairman
	}
	if o.timeout > 0 {
		cfg.Council.PerCallTimeout = o.timeout
	}

	c := &Council{}
	querier := o.querier
	if querier == nil {
		if err := cfg.FilterCouncil(o.logger); err != nil {
			return nil, err
		}

		registry, err := factory.NewRegistryFromConfig(cfg.LLM.Registry(), o.logger)
		if err != nil {
			return nil, fmt.Errorf("build provider registry: %w", err)
		}

		refs := make(map[string]llm.ModelRef)
		for _, model := range append(append([]string{}, cfg.Council.Members...), cfg.Council.Chairman) {
			ref, err := llm.ParseModelRef(model)
			if err != nil {
				return nil, fmt.Errorf("invalid model %q: %w", model, err)
			}
			refs[model] = ref
		}

		gatewayOpts := []llm.GatewayOption{
			llm.WithTimeout(cfg.LLM.Timeout),
			llm.WithMaxTokens(cfg.LLM.MaxTokens),
			llm.WithTemperature(float32(cfg.LLM.Temperature)),
			llm.WithLogger(o.logger),
		}
		if cfg.LLM.MaxRetries > 0 {
			policy := retry.DefaultRetryPolicy()
			policy.MaxRetries = cfg.LLM.MaxRetries
			policy.RetryIf = factory.RetryableUpstream
			gatewayOpts = append(gatewayOpts, llm.WithRetryer(retry.NewBackoffRetryer(policy, o.logger)))
		}

		c.gateway = llm.NewGateway(registry, factory.Builder(cfg.LLM.Providers), refs, gatewayOpts...)
		querier = c.gateway
	} else if len(cfg.Council.Members) == 0 {
		return nil, fmt.Errorf("no council members configured")
	}

	// FilterCouncil resolves the chairman in the gateway path; the custom
	// querier path skips filtering, so resolve it here.
	if cfg.Council.Chairman == "" {
		cfg.Council.Chairman = cfg.Council.Members[0]
	}

	engineOpts := []council.Option{
		council.WithPerCallTimeout(cfg.Council.PerCallTimeout),
		council.WithLogger(o.logger),
	}
	if o.sink != nil {
		engineOpts = append(engineOpts, council.WithEventSink(o.sink))
	}

	engine, err := council.NewEngine(querier, cfg.Council.Members, cfg.Council.Chairman, engineOpts...)
	if err != nil {
		return nil, err
	}
	c.engine = engine

	return c, nil
}

// Ask runs one full deliberation round and returns the synthesized result.
func (c *Council) Ask(ctx context.Context, question string) (*council.Result, error) {
	return c.engine.Run(ctx, question)
}

// AskWithHistory runs a round with prior conversation turns prepended to the
// Stage-1 prompts.
func (c *Council) AskWithHistory(ctx context.Context, question string, history []types.Message) (*council.Result, error) {
	return c.engine.RunWithHistory(ctx, question, history)
}

// Engine exposes the underlying deliberation engine for advanced use.
func (c *Council) Engine() *council.Engine {
	return c.engine
}
