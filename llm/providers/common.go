package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/BaSui01/councilflow/llm"
	"github.com/BaSui01/councilflow/types"
)

// maxErrorBodyBytes caps how much of an upstream error body is kept verbatim.
const maxErrorBodyBytes = 2048

// ChatMessage is the OpenAI-compatible wire form of a chat message.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatCompletionRequest is the OpenAI-compatible request body.
type ChatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float32       `json:"temperature,omitempty"`
	TopP        float32       `json:"top_p,omitempty"`
	Stop        []string      `json:"stop,omitempty"`
	Stream      bool          `json:"stream,omitempty"`
}

// ChatCompletionChoice is one completion alternative in a response.
type ChatCompletionChoice struct {
	Index        int         `json:"index"`
	Message      ChatMessage `json:"message"`
	Delta        ChatMessage `json:"delta"`
	FinishReason string      `json:"finish_reason"`
}

// ChatCompletionUsage reports token accounting for a completion.
type ChatCompletionUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ChatCompletionResponse is the OpenAI-compatible response body, shared by
// full completions and stream chunks.
type ChatCompletionResponse struct {
	ID      string                 `json:"id"`
	Object  string                 `json:"object"`
	Created int64                  `json:"created"`
	Model   string                 `json:"model"`
	Choices []ChatCompletionChoice `json:"choices"`
	Usage   *ChatCompletionUsage   `json:"usage,omitempty"`
}

// ConvertMessages maps provider-agnostic messages onto the OpenAI wire form.
func ConvertMessages(msgs []types.Message) []ChatMessage {
	out := make([]ChatMessage, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, ChatMessage{Role: string(m.Role), Content: m.Content})
	}
	return out
}

// ToChatRequest builds the OpenAI-compatible body for a completion request.
func ToChatRequest(req *llm.ChatRequest, model string, stream bool) *ChatCompletionRequest {
	return &ChatCompletionRequest{
		Model:       model,
		Messages:    ConvertMessages(req.Messages),
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		TopP:        req.TopP,
		Stop:        req.Stop,
		Stream:      stream,
	}
}

// ToChatResponse maps an OpenAI-compatible response onto the provider-agnostic
// form.
func ToChatResponse(provider string, resp *ChatCompletionResponse) *llm.ChatResponse {
	out := &llm.ChatResponse{
		ID:       resp.ID,
		Provider: provider,
		Model:    resp.Model,
		Choices:  make([]llm.ChatChoice, 0, len(resp.Choices)),
	}
	if resp.Created > 0 {
		out.CreatedAt = time.Unix(resp.Created, 0)
	}
	for _, c := range resp.Choices {
		role := types.Role(c.Message.Role)
		if role == "" {
			role = types.RoleAssistant
		}
		out.Choices = append(out.Choices, llm.ChatChoice{
			Index:        c.Index,
			FinishReason: c.FinishReason,
			Message:      types.Message{Role: role, Content: c.Message.Content},
		})
	}
	if resp.Usage != nil {
		out.Usage = llm.ChatUsage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		}
	}
	return out
}

// ChooseModel picks the request model, then the configured default, then the
// adapter fallback.
func ChooseModel(requested, configured, fallback string) string {
	if requested != "" {
		return requested
	}
	if configured != "" {
		return configured
	}
	return fallback
}

// NewJSONRequest builds an HTTP request with a JSON body and the given headers.
// Content-Type is always set to application/json.
func NewJSONRequest(ctx context.Context, method, url string, payload any, headers map[string]string) (*http.Request, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return req, nil
}

// SafeCloseBody drains and closes a response body so the connection can be
// reused.
func SafeCloseBody(resp *http.Response) {
	if resp == nil || resp.Body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}

// errorEnvelope matches the error shapes the supported vendors return.
type errorEnvelope struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    any    `json:"code"`
	} `json:"error"`
	Message string `json:"message"`
}

// ReadErrorMessage extracts a human-readable message from an upstream error
// body, falling back to the raw (truncated) body when it is not JSON.
func ReadErrorMessage(body []byte) string {
	if len(body) > maxErrorBodyBytes {
		body = body[:maxErrorBodyBytes]
	}
	var env errorEnvelope
	if err := json.Unmarshal(body, &env); err == nil {
		msg := env.Error.Message
		if msg == "" {
			msg = env.Message
		}
		if msg != "" {
			if env.Error.Type != "" {
				return msg + " (" + env.Error.Type + ")"
			}
			return msg
		}
	}
	return strings.TrimSpace(string(body))
}

// MapHTTPError translates an upstream HTTP failure into a structured
// [llm.Error]. Retryable is set for transient statuses only.
func MapHTTPError(provider string, status int, body []byte) *llm.Error {
	msg := ReadErrorMessage(body)
	if msg == "" {
		msg = http.StatusText(status)
	}
	e := &llm.Error{
		Message:    fmt.Sprintf("%s: %s", provider, msg),
		HTTPStatus: status,
		Provider:   provider,
	}
	switch status {
	case http.StatusBadRequest:
		lower := strings.ToLower(msg)
		if strings.Contains(lower, "quota") || strings.Contains(lower, "credit") || strings.Contains(lower, "limit") {
			e.Code = llm.ErrQuotaExceeded
		} else {
			e.Code = llm.ErrInvalidRequest
		}
	case http.StatusUnauthorized:
		e.Code = llm.ErrUnauthorized
	case http.StatusForbidden:
		e.Code = llm.ErrForbidden
	case http.StatusNotFound:
		e.Code = llm.ErrInvalidRequest
	case http.StatusRequestTimeout:
		e.Code = llm.ErrUpstreamTimeout
		e.Retryable = true
	case http.StatusTooManyRequests:
		e.Code = llm.ErrRateLimited
		e.Retryable = true
	case http.StatusServiceUnavailable:
		e.Code = llm.ErrProviderUnavailable
		e.Retryable = true
	case http.StatusBadGateway, http.StatusGatewayTimeout:
		e.Code = llm.ErrUpstreamError
		e.Retryable = true
	case 529: // Anthropic: overloaded_error
		e.Code = llm.ErrModelOverloaded
		e.Retryable = true
	default:
		e.Code = llm.ErrUpstreamError
		e.Retryable = status >= http.StatusInternalServerError
	}
	return e
}
