package grok

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/councilflow/llm"
	"github.com/BaSui01/councilflow/llm/providers"
	"github.com/BaSui01/councilflow/types"
)

func TestNew_NameAndFallbackModel(t *testing.T) {
	var gotModel string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body providers.ChatCompletionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		gotModel = body.Model
		json.NewEncoder(w).Encode(providers.ChatCompletionResponse{
			Choices: []providers.ChatCompletionChoice{{Message: providers.ChatMessage{Content: "ok"}}},
		})
	}))
	defer srv.Close()

	p := New(providers.GrokConfig{
		BaseProviderConfig: providers.BaseProviderConfig{
			APIKey:     "xai-test",
			BaseURL:    srv.URL,
			HTTPClient: srv.Client(),
		},
	})
	assert.Equal(t, "grok", p.Name())

	resp, err := p.Completion(context.Background(), &llm.ChatRequest{
		Messages: []types.Message{types.NewUserMessage("q")},
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.FirstText())
	assert.Equal(t, fallbackModel, gotModel)
}
