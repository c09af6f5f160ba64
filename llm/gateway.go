package llm

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/councilflow/llm/retry"
	"github.com/BaSui01/councilflow/types"
)

// Querier is the minimal querying surface the deliberation engine consumes:
// one model identifier in, one completion text out. Everything behind it
// (provider construction, authentication, retries, timeouts) is the
// gateway's business.
type Querier interface {
	Query(ctx context.Context, model string, msgs []types.Message) (string, error)
}

// Gateway implements Querier on top of a ProviderRegistry. Providers are
// constructed lazily through the registry; model identifiers configured up
// front are resolved from a pre-parsed table instead of being re-split on
// every call.
type Gateway struct {
	registry *ProviderRegistry
	build    ProviderBuilder
	refs     map[string]ModelRef

	timeout     time.Duration
	maxTokens   int
	temperature float32
	retryer     retry.Retryer
	logger      *zap.Logger
}

// GatewayOption customizes a Gateway.
type GatewayOption func(*Gateway)

// WithTimeout sets the per-attempt timeout applied to every provider call.
func WithTimeout(d time.Duration) GatewayOption {
	return func(g *Gateway) { g.timeout = d }
}

// WithMaxTokens sets the completion token cap passed to providers.
func WithMaxTokens(n int) GatewayOption {
	return func(g *Gateway) { g.maxTokens = n }
}

// WithTemperature sets the sampling temperature passed to providers.
func WithTemperature(t float32) GatewayOption {
	return func(g *Gateway) { g.temperature = t }
}

// WithRetryer enables retry of retryable upstream errors.
func WithRetryer(r retry.Retryer) GatewayOption {
	return func(g *Gateway) { g.retryer = r }
}

// WithLogger sets the gateway logger.
func WithLogger(logger *zap.Logger) GatewayOption {
	return func(g *Gateway) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// NewGateway creates a Gateway. refs holds the model identifiers parsed at
// configuration time; identifiers not present there are parsed on the fly.
func NewGateway(registry *ProviderRegistry, build ProviderBuilder, refs map[string]ModelRef, opts ...GatewayOption) *Gateway {
	if registry == nil {
		registry = NewProviderRegistry()
	}
	g := &Gateway{
		registry: registry,
		build:    build,
		refs:     refs,
		timeout:  120 * time.Second,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	g.logger = g.logger.With(zap.String("component", "llm_gateway"))
	return g
}

// Registry exposes the underlying provider pool.
func (g *Gateway) Registry() *ProviderRegistry {
	return g.registry
}

func (g *Gateway) resolve(model string) (ModelRef, error) {
	if ref, ok := g.refs[model]; ok {
		return ref, nil
	}
	return ParseModelRef(model)
}

// Query sends the messages to the named model and returns the completion
// text. Upstream failures come back as *Error with the proper code.
func (g *Gateway) Query(ctx context.Context, model string, msgs []types.Message) (string, error) {
	ref, err := g.resolve(model)
	if err != nil {
		return "", &Error{
			Code:       ErrInvalidRequest,
			Message:    err.Error(),
			HTTPStatus: http.StatusBadRequest,
		}
	}

	provider, err := g.registry.GetOrCreate(ref.Provider, g.build)
	if err != nil {
		return "", &Error{
			Code:       ErrProviderUnavailable,
			Message:    err.Error(),
			HTTPStatus: http.StatusBadGateway,
			Provider:   ref.Provider,
		}
	}

	req := &ChatRequest{
		Model:       ref.Model,
		Messages:    msgs,
		MaxTokens:   g.maxTokens,
		Temperature: g.temperature,
		Timeout:     g.timeout,
	}

	attempt := func() (*ChatResponse, error) {
		actx := ctx
		if g.timeout > 0 {
			var cancel context.CancelFunc
			actx, cancel = context.WithTimeout(ctx, g.timeout)
			defer cancel()
		}
		return provider.Completion(actx, req)
	}

	start := time.Now()
	var resp *ChatResponse
	if g.retryer != nil {
		resp, err = retry.DoWithResultTyped(g.retryer, ctx, attempt)
	} else {
		resp, err = attempt()
	}
	if err != nil {
		return "", g.normalizeError(err, ref.Provider)
	}

	text := resp.FirstText()
	if text == "" {
		return "", &Error{
			Code:       ErrEmptyCompletion,
			Message:    "provider returned an empty completion",
			HTTPStatus: http.StatusBadGateway,
			Provider:   ref.Provider,
		}
	}

	g.logger.Debug("model query complete",
		zap.String("model", model),
		zap.Duration("elapsed", time.Since(start)),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
	)
	return text, nil
}

// HealthCheck probes every currently constructed provider.
func (g *Gateway) HealthCheck(ctx context.Context) map[string]*HealthStatus {
	out := make(map[string]*HealthStatus)
	for _, name := range g.registry.List() {
		p, ok := g.registry.Get(name)
		if !ok {
			continue
		}
		status, err := p.HealthCheck(ctx)
		if err != nil || status == nil {
			status = &HealthStatus{Healthy: false}
		}
		out[name] = status
	}
	return out
}

// normalizeError guarantees callers always see *Error. Context expiry that
// providers pass through unwrapped becomes an upstream timeout.
func (g *Gateway) normalizeError(err error, provider string) error {
	var lerr *Error
	if errors.As(err, &lerr) {
		return lerr
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{
			Code:       ErrUpstreamTimeout,
			Message:    err.Error(),
			HTTPStatus: http.StatusGatewayTimeout,
			Retryable:  true,
			Provider:   provider,
		}
	}
	return &Error{
		Code:       ErrUpstreamError,
		Message:    err.Error(),
		HTTPStatus: http.StatusBadGateway,
		Retryable:  true,
		Provider:   provider,
	}
}
