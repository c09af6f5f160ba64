package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/councilflow/api"
	"github.com/BaSui01/councilflow/conversation"
	"github.com/BaSui01/councilflow/council"
	"github.com/BaSui01/councilflow/llm"
	"github.com/BaSui01/councilflow/types"
)

// =============================================================================
// Test fixtures
// =============================================================================

// scriptedQuerier drives a round from a per-call script function. The call
// index is 1-based and counted per model.
type scriptedQuerier struct {
	mu    sync.Mutex
	calls map[string]int
	fn    func(model string, call int, msgs []types.Message) (string, error)
}

func newScriptedQuerier(fn func(model string, call int, msgs []types.Message) (string, error)) *scriptedQuerier {
	return &scriptedQuerier{calls: make(map[string]int), fn: fn}
}

func (s *scriptedQuerier) Query(ctx context.Context, model string, msgs []types.Message) (string, error) {
	s.mu.Lock()
	s.calls[model]++
	call := s.calls[model]
	s.mu.Unlock()
	return s.fn(model, call, msgs)
}

// fullRound answers, then reviews, then synthesizes.
func fullRound(model string, call int, _ []types.Message) (string, error) {
	switch call {
	case 1:
		return "answer from " + model, nil
	case 2:
		return "review\n\nFINAL RANKING:\n1. Response A\n2. Response B", nil
	default:
		return "final synthesis", nil
	}
}

func newTestCouncilHandler(t *testing.T, q llm.Querier) (*CouncilHandler, conversation.Store) {
	t.Helper()
	engine, err := council.NewEngine(q, []string{"m-1", "m-2"}, "m-1")
	require.NoError(t, err)
	store := conversation.NewMemoryStore()
	t.Cleanup(func() { _ = store.Close() })
	svc := conversation.NewService(store, engine)
	return NewCouncilHandler(svc, zap.NewNop()), store
}

func postJSON(t *testing.T, target string, payload any) *http.Request {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	r := httptest.NewRequest(http.MethodPost, target, bytes.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	return r
}

func decodeData(t *testing.T, resp Response, out any) {
	t.Helper()
	raw, err := json.Marshal(resp.Data)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, out))
}

// =============================================================================
// HandleAsk
// =============================================================================

func TestCouncilHandler_HandleAsk(t *testing.T) {
	handler, _ := newTestCouncilHandler(t, newScriptedQuerier(fullRound))

	w := httptest.NewRecorder()
	r := postJSON(t, "/api/v1/council/ask", api.AskRequest{Question: "What is Go?"})

	handler.HandleAsk(w, r)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp Response
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.True(t, resp.Success)
	require.NotNil(t, resp.Data)

	var ask api.AskResponse
	decodeData(t, resp, &ask)

	assert.NotEmpty(t, ask.ConversationID)
	assert.Equal(t, "What is Go?", ask.Title)
	assert.NotEmpty(t, ask.RoundID)
	assert.False(t, ask.CreatedAt.IsZero())
	require.NotNil(t, ask.Result)
	assert.Len(t, ask.Result.Answers, 2)
	require.NotNil(t, ask.Result.Synthesis)
	assert.Equal(t, "final synthesis", ask.Result.Synthesis.Answer)
}

func TestCouncilHandler_HandleAsk_FollowUp(t *testing.T) {
	handler, store := newTestCouncilHandler(t, newScriptedQuerier(fullRound))

	w := httptest.NewRecorder()
	handler.HandleAsk(w, postJSON(t, "/api/v1/council/ask", api.AskRequest{Question: "first"}))
	require.Equal(t, http.StatusOK, w.Code)

	var resp Response
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	var first api.AskResponse
	decodeData(t, resp, &first)

	w = httptest.NewRecorder()
	handler.HandleAsk(w, postJSON(t, "/api/v1/council/ask", api.AskRequest{
		ConversationID: first.ConversationID,
		Question:       "second",
	}))
	require.Equal(t, http.StatusOK, w.Code)

	stored, err := store.Get(context.Background(), first.ConversationID)
	require.NoError(t, err)
	require.Len(t, stored.Rounds, 2)
	assert.Equal(t, "second", stored.Rounds[1].Question)
}

func TestCouncilHandler_HandleAsk_Validation(t *testing.T) {
	handler, _ := newTestCouncilHandler(t, newScriptedQuerier(fullRound))

	t.Run("missing content type", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/api/v1/council/ask",
			strings.NewReader(`{"question":"hi"}`))

		handler.HandleAsk(w, r)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("malformed JSON", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/api/v1/council/ask",
			strings.NewReader(`{"question":`))
		r.Header.Set("Content-Type", "application/json")

		handler.HandleAsk(w, r)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("empty question", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := postJSON(t, "/api/v1/council/ask", api.AskRequest{Question: "   "})

		handler.HandleAsk(w, r)

		assert.Equal(t, http.StatusBadRequest, w.Code)

		var resp Response
		require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
		assert.False(t, resp.Success)
		require.NotNil(t, resp.Error)
		assert.Equal(t, "INVALID_REQUEST", resp.Error.Code)
	})

	t.Run("unknown conversation", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := postJSON(t, "/api/v1/council/ask", api.AskRequest{
			ConversationID: "ghost",
			Question:       "hello?",
		})

		handler.HandleAsk(w, r)

		assert.Equal(t, http.StatusNotFound, w.Code)

		var resp Response
		require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
		require.NotNil(t, resp.Error)
		assert.Equal(t, "NOT_FOUND", resp.Error.Code)
	})
}

func TestCouncilHandler_HandleAsk_AllModelsFailed(t *testing.T) {
	failing := newScriptedQuerier(func(model string, call int, _ []types.Message) (string, error) {
		return "", &llm.Error{Code: llm.ErrUpstreamError, Message: "boom", HTTPStatus: 500}
	})
	handler, _ := newTestCouncilHandler(t, failing)

	w := httptest.NewRecorder()
	handler.HandleAsk(w, postJSON(t, "/api/v1/council/ask", api.AskRequest{Question: "doomed"}))

	assert.Equal(t, http.StatusBadGateway, w.Code)

	var resp Response
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "ALL_MODELS_FAILED", resp.Error.Code)
	// No answer survived, so there is no partial result to return.
	assert.Nil(t, resp.Data)
}

func TestCouncilHandler_HandleAsk_ChairmanFailedKeepsPartial(t *testing.T) {
	chairFails := newScriptedQuerier(func(model string, call int, msgs []types.Message) (string, error) {
		if call >= 3 {
			return "", &llm.Error{Code: llm.ErrUpstreamError, Message: "chair down", HTTPStatus: 500}
		}
		return fullRound(model, call, msgs)
	})
	handler, _ := newTestCouncilHandler(t, chairFails)

	w := httptest.NewRecorder()
	handler.HandleAsk(w, postJSON(t, "/api/v1/council/ask", api.AskRequest{Question: "tough one"}))

	assert.Equal(t, http.StatusBadGateway, w.Code)

	var resp Response
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "CHAIRMAN_FAILED", resp.Error.Code)

	// Stage-1 and Stage-2 output rides along as the partial result.
	require.NotNil(t, resp.Data)
	var partial council.Result
	decodeData(t, resp, &partial)
	assert.Len(t, partial.Answers, 2)
	assert.Len(t, partial.Evaluations, 2)
	assert.Nil(t, partial.Synthesis)
}

func TestCouncilHandler_RoundErrorMapping(t *testing.T) {
	handler, _ := newTestCouncilHandler(t, newScriptedQuerier(fullRound))

	tests := []struct {
		name           string
		err            error
		expectedStatus int
		expectedCode   string
	}{
		{
			name:           "not found",
			err:            fmt.Errorf("load: %w", conversation.ErrNotFound),
			expectedStatus: http.StatusNotFound,
			expectedCode:   "NOT_FOUND",
		},
		{
			name:           "invalid input",
			err:            conversation.ErrInvalidInput,
			expectedStatus: http.StatusBadRequest,
			expectedCode:   "INVALID_REQUEST",
		},
		{
			name:           "all models failed",
			err:            fmt.Errorf("round: %w", council.ErrAllModelsFailed),
			expectedStatus: http.StatusBadGateway,
			expectedCode:   "ALL_MODELS_FAILED",
		},
		{
			name:           "chairman failed",
			err:            fmt.Errorf("round: %w", council.ErrChairmanFailed),
			expectedStatus: http.StatusBadGateway,
			expectedCode:   "CHAIRMAN_FAILED",
		},
		{
			name:           "timeout",
			err:            context.DeadlineExceeded,
			expectedStatus: http.StatusGatewayTimeout,
			expectedCode:   "TIMEOUT",
		},
		{
			name:           "generic error",
			err:            assert.AnError,
			expectedStatus: http.StatusInternalServerError,
			expectedCode:   "INTERNAL_ERROR",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			handler.writeRoundError(w, tt.err, nil)

			assert.Equal(t, tt.expectedStatus, w.Code)

			var resp Response
			require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
			assert.False(t, resp.Success)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.expectedCode, resp.Error.Code)
		})
	}
}

// =============================================================================
// HandleAskStream
// =============================================================================

func TestCouncilHandler_HandleAskStream(t *testing.T) {
	handler, _ := newTestCouncilHandler(t, newScriptedQuerier(fullRound))

	w := httptest.NewRecorder()
	r := postJSON(t, "/api/v1/council/ask/stream", api.AskRequest{Question: "What is Go?"})

	handler.HandleAskStream(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))

	body := w.Body.String()
	assert.Contains(t, body, "event: stage1_complete")
	assert.Contains(t, body, "event: stage2_complete")
	assert.Contains(t, body, "event: stage3_complete")
	assert.Contains(t, body, "event: result")
	assert.Contains(t, body, "data: [DONE]")

	// Stage events arrive in order, the result after them all.
	s1 := strings.Index(body, "event: stage1_complete")
	s2 := strings.Index(body, "event: stage2_complete")
	s3 := strings.Index(body, "event: stage3_complete")
	res := strings.Index(body, "event: result")
	assert.True(t, s1 < s2 && s2 < s3 && s3 < res)
}

func TestCouncilHandler_HandleAskStream_RoundFailure(t *testing.T) {
	failing := newScriptedQuerier(func(model string, call int, _ []types.Message) (string, error) {
		return "", &llm.Error{Code: llm.ErrUpstreamError, Message: "boom", HTTPStatus: 500}
	})
	handler, _ := newTestCouncilHandler(t, failing)

	w := httptest.NewRecorder()
	r := postJSON(t, "/api/v1/council/ask/stream", api.AskRequest{Question: "doomed"})

	handler.HandleAskStream(w, r)

	body := w.Body.String()
	assert.Contains(t, body, "event: round_failed")
	assert.Contains(t, body, "event: error")
	assert.Contains(t, body, "ALL_MODELS_FAILED")
	assert.Contains(t, body, "data: [DONE]")
}

func TestCouncilHandler_HandleAskStream_InvalidRequest(t *testing.T) {
	handler, _ := newTestCouncilHandler(t, newScriptedQuerier(fullRound))

	w := httptest.NewRecorder()
	r := postJSON(t, "/api/v1/council/ask/stream", api.AskRequest{Question: ""})

	handler.HandleAskStream(w, r)

	// Validation fails before any SSE output.
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.NotEqual(t, "text/event-stream", w.Header().Get("Content-Type"))
}

// =============================================================================
// HandleWS
// =============================================================================

func TestCouncilHandler_HandleWS(t *testing.T) {
	handler, _ := newTestCouncilHandler(t, newScriptedQuerier(fullRound))

	srv := httptest.NewServer(http.HandlerFunc(handler.HandleWS))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	wsURL := "ws://" + strings.TrimPrefix(srv.URL, "http://")
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	req, err := json.Marshal(api.WSRequest{Question: "What is Go?"})
	require.NoError(t, err)
	require.NoError(t, conn.Write(ctx, websocket.MessageText, req))

	var kinds []string
	var result *api.AskResponse
	for result == nil {
		_, data, err := conn.Read(ctx)
		require.NoError(t, err)

		var frame api.WSFrame
		require.NoError(t, json.Unmarshal(data, &frame))

		switch frame.Type {
		case api.WSFrameEvent:
			require.NotNil(t, frame.Event)
			kinds = append(kinds, string(frame.Event.Kind))
		case api.WSFrameResult:
			require.NotNil(t, frame.Result)
			result = frame.Result
		case api.WSFrameError:
			t.Fatalf("unexpected error frame: %+v", frame.Error)
		}
	}

	assert.Equal(t, []string{"stage1_complete", "stage2_complete", "stage3_complete"}, kinds)
	assert.NotEmpty(t, result.ConversationID)
	require.NotNil(t, result.Result)
	assert.Equal(t, "final synthesis", result.Result.Synthesis.Answer)
}

func TestCouncilHandler_HandleWS_BadRequestKeepsConnection(t *testing.T) {
	handler, _ := newTestCouncilHandler(t, newScriptedQuerier(fullRound))

	srv := httptest.NewServer(http.HandlerFunc(handler.HandleWS))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	wsURL := "ws://" + strings.TrimPrefix(srv.URL, "http://")
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	// An empty question draws an error frame, not a closed socket.
	req, err := json.Marshal(api.WSRequest{Question: "  "})
	require.NoError(t, err)
	require.NoError(t, conn.Write(ctx, websocket.MessageText, req))

	_, data, err := conn.Read(ctx)
	require.NoError(t, err)

	var frame api.WSFrame
	require.NoError(t, json.Unmarshal(data, &frame))
	require.Equal(t, api.WSFrameError, frame.Type)
	require.NotNil(t, frame.Error)
	assert.Equal(t, "INVALID_REQUEST", frame.Error.Code)

	// The connection still serves a full round afterwards.
	req, err = json.Marshal(api.WSRequest{Question: "still there?"})
	require.NoError(t, err)
	require.NoError(t, conn.Write(ctx, websocket.MessageText, req))

	sawResult := false
	for !sawResult {
		_, data, err := conn.Read(ctx)
		require.NoError(t, err)
		var next api.WSFrame
		require.NoError(t, json.Unmarshal(data, &next))
		if next.Type == api.WSFrameResult {
			sawResult = true
		}
	}
	assert.True(t, sawResult)
}
