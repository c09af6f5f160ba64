// Package gemini implements [llm.Provider] for the Google Gemini
// generateContent API. Roles map onto user/model, system prompts become a
// systemInstruction, and sampling knobs travel in generationConfig.
package gemini

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/BaSui01/councilflow/llm"
	"github.com/BaSui01/councilflow/llm/providers"
	"github.com/BaSui01/councilflow/types"
)

const (
	defaultBaseURL = "https://generativelanguage.googleapis.com"
	defaultTimeout = 60 * time.Second
	fallbackModel  = "gemini-2.5-flash"
)

// Provider is the Google Gemini adapter.
type Provider struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
}

// New builds a Gemini provider from cfg.
func New(cfg providers.GeminiConfig) *Provider {
	return &Provider{
		baseURL: cfg.Endpoint(defaultBaseURL),
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		client:  cfg.Client(defaultTimeout),
	}
}

// Name returns "gemini".
func (p *Provider) Name() string { return "gemini" }

func (p *Provider) headers() map[string]string {
	return map[string]string{"x-goog-api-key": p.apiKey}
}

type part struct {
	Text string `json:"text,omitempty"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generationConfig struct {
	Temperature     float32  `json:"temperature,omitempty"`
	TopP            float32  `json:"topP,omitempty"`
	MaxOutputTokens int      `json:"maxOutputTokens,omitempty"`
	StopSequences   []string `json:"stopSequences,omitempty"`
}

type generateRequest struct {
	Contents          []content         `json:"contents"`
	SystemInstruction *content          `json:"systemInstruction,omitempty"`
	GenerationConfig  *generationConfig `json:"generationConfig,omitempty"`
}

type candidate struct {
	Content      content `json:"content"`
	FinishReason string  `json:"finishReason"`
	Index        int     `json:"index"`
}

type usageMetadata struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
	TotalTokenCount      int `json:"totalTokenCount"`
}

type generateResponse struct {
	Candidates    []candidate    `json:"candidates"`
	UsageMetadata *usageMetadata `json:"usageMetadata"`
	ModelVersion  string         `json:"modelVersion"`
}

// convertContents splits system messages into the systemInstruction and maps
// chat roles onto the user/model pair Gemini expects.
func convertContents(msgs []types.Message) ([]content, *content) {
	var system []string
	contents := make([]content, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case types.RoleSystem:
			system = append(system, m.Content)
		case types.RoleAssistant:
			contents = append(contents, content{Role: "model", Parts: []part{{Text: m.Content}}})
		default:
			contents = append(contents, content{Role: "user", Parts: []part{{Text: m.Content}}})
		}
	}
	var instruction *content
	if len(system) > 0 {
		instruction = &content{Parts: []part{{Text: strings.Join(system, "\n\n")}}}
	}
	return contents, instruction
}

func (p *Provider) buildRequest(req *llm.ChatRequest) *generateRequest {
	contents, instruction := convertContents(req.Messages)
	out := &generateRequest{Contents: contents, SystemInstruction: instruction}
	if req.Temperature > 0 || req.TopP > 0 || req.MaxTokens > 0 || len(req.Stop) > 0 {
		out.GenerationConfig = &generationConfig{
			Temperature:     req.Temperature,
			TopP:            req.TopP,
			MaxOutputTokens: req.MaxTokens,
			StopSequences:   req.Stop,
		}
	}
	return out
}

// Completion performs a synchronous generateContent call.
func (p *Provider) Completion(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	model := providers.ChooseModel(req.Model, p.model, fallbackModel)
	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", p.baseURL, model)

	httpReq, err := providers.NewJSONRequest(ctx, http.MethodPost, url, p.buildRequest(req), p.headers())
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

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, &llm.Error{
			Code:     llm.ErrMalformedResponse,
			Message:  "gemini: decode generateContent response: " + err.Error(),
			Provider: p.Name(),
		}
	}
	return p.toChatResponse(model, &out), nil
}

func (p *Provider) toChatResponse(model string, out *generateResponse) *llm.ChatResponse {
	respModel := out.ModelVersion
	if respModel == "" {
		respModel = model
	}
	chat := &llm.ChatResponse{
		Provider: p.Name(),
		Model:    respModel,
		Choices:  make([]llm.ChatChoice, 0, len(out.Candidates)),
	}
	for _, c := range out.Candidates {
		var text strings.Builder
		for _, pt := range c.Content.Parts {
			text.WriteString(pt.Text)
		}
		chat.Choices = append(chat.Choices, llm.ChatChoice{
			Index:        c.Index,
			FinishReason: c.FinishReason,
			Message:      types.Message{Role: types.RoleAssistant, Content: text.String()},
		})
	}
	if out.UsageMetadata != nil {
		chat.Usage = llm.ChatUsage{
			PromptTokens:     out.UsageMetadata.PromptTokenCount,
			CompletionTokens: out.UsageMetadata.CandidatesTokenCount,
			TotalTokens:      out.UsageMetadata.TotalTokenCount,
		}
	}
	return chat
}

// Stream performs a streaming generateContent call over SSE.
func (p *Provider) Stream(ctx context.Context, req *llm.ChatRequest) (<-chan llm.StreamChunk, error) {
	model := providers.ChooseModel(req.Model, p.model, fallbackModel)
	url := fmt.Sprintf("%s/v1beta/models/%s:streamGenerateContent?alt=sse", p.baseURL, model)

	httpReq, err := providers.NewJSONRequest(ctx, http.MethodPost, url, p.buildRequest(req), p.headers())
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
	go p.readStream(ctx, resp, model, ch)
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

		var chunk generateResponse
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			continue
		}
		for _, c := range chunk.Candidates {
			var text strings.Builder
			for _, pt := range c.Content.Parts {
				text.WriteString(pt.Text)
			}
			out := llm.StreamChunk{
				Provider:     p.Name(),
				Model:        model,
				Index:        c.Index,
				Delta:        types.Message{Role: types.RoleAssistant, Content: text.String()},
				FinishReason: c.FinishReason,
			}
			if chunk.UsageMetadata != nil {
				out.Usage = &llm.ChatUsage{
					PromptTokens:     chunk.UsageMetadata.PromptTokenCount,
					CompletionTokens: chunk.UsageMetadata.CandidatesTokenCount,
					TotalTokens:      chunk.UsageMetadata.TotalTokenCount,
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
			Provider: p.Name(),
			Model:    model,
			Err: &llm.Error{
				Code:      llm.ErrUpstreamError,
				Message:   "gemini: read stream: " + err.Error(),
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

// HealthCheck probes the models listing endpoint and reports latency.
func (p *Provider) HealthCheck(ctx context.Context) (*llm.HealthStatus, error) {
	start := time.Now()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/v1beta/models", nil)
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
