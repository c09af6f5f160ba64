// Package anthropic implements [llm.Provider] for the Anthropic Messages
// API. The wire format differs from the OpenAI protocol: system prompts move
// to a top-level field, max_tokens is mandatory, and responses carry a list
// of content blocks.
package anthropic

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

const (
	defaultBaseURL    = "https://api.anthropic.com"
	defaultAPIVersion = "2023-06-01"
	defaultTimeout    = 60 * time.Second
	fallbackModel     = "claude-sonnet-4-5"

	// The Messages API rejects requests without max_tokens.
	defaultMaxTokens = 8192
)

// Provider is the Anthropic adapter.
type Provider struct {
	baseURL    string
	apiKey     string
	apiVersion string
	model      string
	maxTokens  int
	client     *http.Client
}

// New builds an Anthropic provider from cfg.
func New(cfg providers.AnthropicConfig) *Provider {
	version := cfg.APIVersion
	if version == "" {
		version = defaultAPIVersion
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	return &Provider{
		baseURL:    cfg.Endpoint(defaultBaseURL),
		apiKey:     cfg.APIKey,
		apiVersion: version,
		model:      cfg.Model,
		maxTokens:  maxTokens,
		client:     cfg.Client(defaultTimeout),
	}
}

// Name returns "anthropic".
func (p *Provider) Name() string { return "anthropic" }

func (p *Provider) headers() map[string]string {
	return map[string]string{
		"x-api-key":         p.apiKey,
		"anthropic-version": p.apiVersion,
	}
}

type messageParam struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesRequest struct {
	Model         string         `json:"model"`
	MaxTokens     int            `json:"max_tokens"`
	Messages      []messageParam `json:"messages"`
	System        string         `json:"system,omitempty"`
	Temperature   float32        `json:"temperature,omitempty"`
	TopP          float32        `json:"top_p,omitempty"`
	StopSequences []string       `json:"stop_sequences,omitempty"`
	Stream        bool           `json:"stream,omitempty"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type usagePayload struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type messagesResponse struct {
	ID         string         `json:"id"`
	Model      string         `json:"model"`
	Role       string         `json:"role"`
	Content    []contentBlock `json:"content"`
	StopReason string         `json:"stop_reason"`
	Usage      usagePayload   `json:"usage"`
}

// splitSystem lifts system messages into the top-level system field and maps
// the rest onto the Messages API roles.
func splitSystem(msgs []types.Message) (string, []messageParam) {
	var system []string
	params := make([]messageParam, 0, len(msgs))
	for _, m := range msgs {
		if m.Role == types.RoleSystem {
			system = append(system, m.Content)
			continue
		}
		params = append(params, messageParam{Role: string(m.Role), Content: m.Content})
	}
	return strings.Join(system, "\n\n"), params
}

func (p *Provider) buildRequest(req *llm.ChatRequest, stream bool) *messagesRequest {
	system, msgs := splitSystem(req.Messages)
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = p.maxTokens
	}
	return &messagesRequest{
		Model:         providers.ChooseModel(req.Model, p.model, fallbackModel),
		MaxTokens:     maxTokens,
		Messages:      msgs,
		System:        system,
		Temperature:   req.Temperature,
		TopP:          req.TopP,
		StopSequences: req.Stop,
		Stream:        stream,
	}
}

// Completion performs a synchronous Messages API call.
func (p *Provider) Completion(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	body := p.buildRequest(req, false)

	httpReq, err := providers.NewJSONRequest(ctx, http.MethodPost, p.baseURL+"/v1/messages", body, p.headers())
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
		return nil, providers.MapHTTPError(p.Name(), resp.StatusCode, raw)
	}

	var out messagesResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, &llm.Error{
			Code:     llm.ErrMalformedResponse,
			Message:  "anthropic: decode messages response: " + err.Error(),
			Provider: p.Name(),
		}
	}
	return p.toChatResponse(body.Model, &out), nil
}

func (p *Provider) toChatResponse(model string, out *messagesResponse) *llm.ChatResponse {
	var text strings.Builder
	for _, block := range out.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	respModel := out.Model
	if respModel == "" {
		respModel = model
	}
	return &llm.ChatResponse{
		ID:       out.ID,
		Provider: p.Name(),
		Model:    respModel,
		Choices: []llm.ChatChoice{{
			FinishReason: out.StopReason,
			Message:      types.Message{Role: types.RoleAssistant, Content: text.String()},
		}},
		Usage: llm.ChatUsage{
			PromptTokens:     out.Usage.InputTokens,
			CompletionTokens: out.Usage.OutputTokens,
			TotalTokens:      out.Usage.InputTokens + out.Usage.OutputTokens,
		},
	}
}

// streamEvent covers the Messages API stream event shapes we consume.
type streamEvent struct {
	Type  string `json:"type"`
	Index int    `json:"index"`
	Delta struct {
		Type       string `json:"type"`
		Text       string `json:"text"`
		StopReason string `json:"stop_reason"`
	} `json:"delta"`
	Usage *usagePayload `json:"usage"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// Stream performs a streaming Messages API call.
func (p *Provider) Stream(ctx context.Context, req *llm.ChatRequest) (<-chan llm.StreamChunk, error) {
	body := p.buildRequest(req, true)

	httpReq, err := providers.NewJSONRequest(ctx, http.MethodPost, p.baseURL+"/v1/messages", body, p.headers())
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
		return nil, providers.MapHTTPError(p.Name(), resp.StatusCode, raw)
	}

	ch := make(chan llm.StreamChunk)
	go p.readStream(ctx, resp, body.Model, ch)
	return ch, nil
}

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

		var event streamEvent
		if err := json.Unmarshal([]byte(data), &event); err != nil {
			continue
		}
		switch event.Type {
		case "content_block_delta":
			if event.Delta.Type != "text_delta" {
				continue
			}
			out := llm.StreamChunk{
				Provider: p.Name(),
				Model:    model,
				Index:    event.Index,
				Delta:    types.Message{Role: types.RoleAssistant, Content: event.Delta.Text},
			}
			select {
			case ch <- out:
			case <-ctx.Done():
				return
			}
		case "message_delta":
			out := llm.StreamChunk{
				Provider:     p.Name(),
				Model:        model,
				FinishReason: event.Delta.StopReason,
			}
			if event.Usage != nil {
				out.Usage = &llm.ChatUsage{
					CompletionTokens: event.Usage.OutputTokens,
					TotalTokens:      event.Usage.OutputTokens,
				}
			}
			select {
			case ch <- out:
			case <-ctx.Done():
				return
			}
		case "message_stop":
			return
		case "error":
			fail := llm.StreamChunk{Provider: p.Name(), Model: model}
			fail.Err = &llm.Error{
				Code:     llm.ErrUpstreamError,
				Message:  "anthropic: stream error: " + event.Error.Message,
				Provider: p.Name(),
			}
			select {
			case ch <- fail:
			case <-ctx.Done():
			}
			return
		}
	}
	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		fail := llm.StreamChunk{
			Provider: p.Name(),
			Model:    model,
			Err: &llm.Error{
				Code:      llm.ErrUpstreamError,
				Message:   "anthropic: read stream: " + err.Error(),
				Retryable: true,
				Provider:  p.Name(),
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
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/v1/models", nil)
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
		return status, providers.MapHTTPError(p.Name(), resp.StatusCode, raw)
	}
	status.Healthy = true
	return status, nil
}
