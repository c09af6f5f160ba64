// Package openaicompat implements [llm.Provider] for any endpoint speaking
// the OpenAI chat completion protocol. It is used directly for vendors such
// as Groq and embedded by the openai and grok adapters.
package openaicompat

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/BaSui01/councilflow/llm"
	"github.com/BaSui01/councilflow/llm/providers"
	"github.com/BaSui01/councilflow/types"
)

const defaultTimeout = 60 * time.Second

// Config assembles a generic OpenAI-compatible provider.
type Config struct {
	providers.BaseProviderConfig

	// Name is the identifier reported by [Provider.Name], e.g. "groq".
	Name string

	// DefaultBaseURL is the vendor endpoint used when BaseURL is unset.
	DefaultBaseURL string

	// FallbackModel is used when neither the request nor the config names one.
	FallbackModel string

	// ExtraHeaders are added to every request, e.g. organization headers.
	ExtraHeaders map[string]string
}

// Provider speaks the OpenAI chat completion protocol against a configurable
// endpoint.
type Provider struct {
	name          string
	baseURL       string
	model         string
	fallbackModel string
	apiKey        string
	extraHeaders  map[string]string
	client        *http.Client
}

// New builds a provider from cfg. Zero-value fields fall back to the vendor
// defaults carried in cfg.
func New(cfg Config) *Provider {
	name := cfg.Name
	if name == "" {
		name = "openaicompat"
	}
	return &Provider{
		name:          name,
		baseURL:       cfg.Endpoint(cfg.DefaultBaseURL),
		model:         cfg.Model,
		fallbackModel: cfg.FallbackModel,
		apiKey:        cfg.APIKey,
		extraHeaders:  cfg.ExtraHeaders,
		client:        cfg.Client(defaultTimeout),
	}
}

// Name returns the configured provider identifier.
func (p *Provider) Name() string { return p.name }

func (p *Provider) headers() map[string]string {
	h := make(map[string]string, len(p.extraHeaders)+1)
	if p.apiKey != "" {
		h["Authorization"] = "Bearer " + p.apiKey
	}
	for k, v := range p.extraHeaders {
		h[k] = v
	}
	return h
}

// Completion performs a synchronous chat completion.
func (p *Provider) Completion(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	model := providers.ChooseModel(req.Model, p.model, p.fallbackModel)
	body := providers.ToChatRequest(req, model, false)

	httpReq, err := providers.NewJSONRequest(ctx, http.MethodPost, p.baseURL+"/chat/completions", body, p.headers())
	if err != nil {
		return nil, err
	}
	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer providers.SafeCloseBody(resp)

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 8<<10))
		return nil, providers.MapHTTPError(p.name, resp.StatusCode, raw)
	}

	var out providers.ChatCompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, &llm.Error{
			Code:     llm.ErrMalformedResponse,
			Message:  p.name + ": decode completion response: " + err.Error(),
			Provider: p.name,
		}
	}
	chat := providers.ToChatResponse(p.name, &out)
	if chat.Model == "" {
		chat.Model = model
	}
	return chat, nil
}

// Stream performs a streaming chat completion over SSE.
func (p *Provider) Stream(ctx context.Context, req *llm.ChatRequest) (<-chan llm.StreamChunk, error) {
	model := providers.ChooseModel(req.Model, p.model, p.fallbackModel)
	body := providers.ToChatRequest(req, model, true)

	httpReq, err := providers.NewJSONRequest(ctx, http.MethodPost, p.baseURL+"/chat/completions", body, p.headers())
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 8<<10))
		providers.SafeCloseBody(resp)
		return nil, providers.MapHTTPError(p.name, resp.StatusCode, raw)
	}

	ch := make(chan llm.StreamChunk)
	go p.readStream(ctx, resp, model, ch)
	return ch, nil
}

// readStream parses SSE "data:" lines until [DONE] or EOF, forwarding one
// chunk per choice delta.
func (p *Provider) readStream(ctx context.Context, resp *http.Response, model string, ch chan<- llm.StreamChunk) {
	defer close(ch)
	defer providers.SafeCloseBody(resp)

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64<<10), 1<<20)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "" {
			continue
		}
		if data == "[DONE]" {
			return
		}

		var chunk providers.ChatCompletionResponse
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			continue
		}
		for _, c := range chunk.Choices {
			out := llm.StreamChunk{
				ID:           chunk.ID,
				Provider:     p.name,
				Model:        model,
				Index:        c.Index,
				Delta:        types.Message{Role: types.RoleAssistant, Content: c.Delta.Content},
				FinishReason: c.FinishReason,
			}
			if chunk.Usage != nil {
				out.Usage = &llm.ChatUsage{
					PromptTokens:     chunk.Usage.PromptTokens,
					CompletionTokens: chunk.Usage.CompletionTokens,
					TotalTokens:      chunk.Usage.TotalTokens,
				}
			}
			select {
			case ch <- out:
			case <-ctx.Done():
				return
			}
		}
	}
	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		fail := llm.StreamChunk{
			Provider: p.name,
			Model:    model,
			Err: &llm.Error{
				Code:      llm.ErrUpstreamError,
				Message:   p.name + ": read stream: " + err.Error(),
				Retryable: true,
				Provider:  p.name,
			},
		}
		select {
		case ch <- fail:
		case <-ctx.Done():
		}
	}
}

// HealthCheck probes the models endpoint and reports latency.
func (p *Provider) HealthCheck(ctx context.Context) (*llm.HealthStatus, error) {
	start := time.Now()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/models", nil)
	if err != nil {
		return nil, err
	}
	for k, v := range p.headers() {
		httpReq.Header.Set(k, v)
	}
	resp, err := p.client.Do(httpReq)
	if err != nil {
		return &llm.HealthStatus{Healthy: false, Latency: time.Since(start), ErrorRate: 1}, err
	}
	defer providers.SafeCloseBody(resp)

	status := &llm.HealthStatus{Latency: time.Since(start)}
	if resp.StatusCode != http.StatusOK {
		status.ErrorRate = 1
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 8<<10))
		return status, providers.MapHTTPError(p.name, resp.StatusCode, raw)
	}
	status.Healthy = true
	return status, nil
}
