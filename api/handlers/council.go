package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/BaSui01/councilflow/api"
	"github.com/BaSui01/councilflow/conversation"
	"github.com/BaSui01/councilflow/council"
	"github.com/BaSui01/councilflow/llm"
)

// =============================================================================
// Council deliberation handler
// =============================================================================

// CouncilHandler serves the deliberation endpoints: one-shot ask, SSE stage
// streaming and the WebSocket round stream.
type CouncilHandler struct {
	svc       *conversation.Service
	logger    *zap.Logger
	wsOrigins []string
}

// NewCouncilHandler creates the deliberation handler.
func NewCouncilHandler(svc *conversation.Service, logger *zap.Logger) *CouncilHandler {
	return &CouncilHandler{
		svc:    svc,
		logger: logger,
	}
}

// SetWSOrigins sets the origin patterns accepted for WebSocket upgrades.
// Without any, only same-host connections are accepted.
func (h *CouncilHandler) SetWSOrigins(patterns []string) {
	h.wsOrigins = patterns
}

// HandleAsk runs one deliberation round and returns the full result.
// @Summary Ask the council
// @Description Run a three-stage deliberation round for a question
// @Tags council
// @Accept json
// @Produce json
// @Param request body api.AskRequest true "Deliberation request"
// @Success 200 {object} Response{data=api.AskResponse} "Completed round"
// @Failure 400 {object} Response "Invalid request"
// @Failure 404 {object} Response "Conversation not found"
// @Failure 502 {object} Response "Round failed"
// @Security ApiKeyAuth
// @Router /v1/council/ask [post]
func (h *CouncilHandler) HandleAsk(w http.ResponseWriter, r *http.Request) {
	if !ValidateContentType(w, r, h.logger) {
		return
	}

	var req api.AskRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}
	if !h.validateAskRequest(w, req.Question) {
		return
	}

	start := time.Now()
	conv, res, err := h.svc.Ask(r.Context(), req.ConversationID, req.Question)
	if err != nil {
		h.writeRoundError(w, err, res)
		return
	}

	h.logger.Info("council round complete",
		zap.String("conversation_id", conv.ID),
		zap.Int("answers", len(res.Answers)),
		zap.Int("failures", len(res.Failures)),
		zap.Duration("duration", time.Since(start)),
	)

	WriteSuccess(w, buildAskResponse(conv, res))
}

// HandleAskStream runs one round and streams stage-boundary events as SSE.
// Each stage event is a named SSE event carrying the council event JSON; the
// terminal frame is either a "result" event with the full response or an
// "error" event, followed by a [DONE] marker.
// @Summary Ask the council, streaming stages
// @Description Run a deliberation round with SSE stage events
// @Tags council
// @Accept json
// @Produce text/event-stream
// @Param request body api.AskRequest true "Deliberation request"
// @Success 200 {string} string "SSE stream"
// @Failure 400 {object} Response "Invalid request"
// @Security ApiKeyAuth
// @Router /v1/council/ask/stream [post]
func (h *CouncilHandler) HandleAskStream(w http.ResponseWriter, r *http.Request) {
	if !ValidateContentType(w, r, h.logger) {
		return
	}

	var req api.AskRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}
	if !h.validateAskRequest(w, req.Question) {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		WriteErrorMessage(w, http.StatusInternalServerError, llm.ErrProviderUnavailable,
			"streaming not supported", h.logger)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // disable nginx buffering
	w.WriteHeader(http.StatusOK)

	// Rounds outlive the server's write timeout; clear it for this stream.
	rc := http.NewResponseController(w)
	rc.SetWriteDeadline(time.Time{})

	ctx := council.ContextWithSink(r.Context(), council.EventSinkFunc(
		func(_ context.Context, ev council.Event) {
			writeSSEEvent(w, string(ev.Kind), ev)
			flusher.Flush()
		}))

	conv, res, err := h.svc.Ask(ctx, req.ConversationID, req.Question)
	if err != nil {
		code, message := roundErrorInfo(err)
		writeSSEEvent(w, "error", &ErrorInfo{Code: code, Message: message})
	} else {
		writeSSEEvent(w, "result", buildAskResponse(conv, res))
	}

	w.Write([]byte("data: [DONE]\n\n"))
	flusher.Flush()
}

// HandleWS runs rounds over a WebSocket. The client sends one JSON request
// per round; the server answers with event frames followed by exactly one
// result or error frame, then waits for the next request.
// @Summary Council round WebSocket
// @Description Run deliberation rounds over a WebSocket connection
// @Tags council
// @Success 101 {string} string "Switching protocols"
// @Security ApiKeyAuth
// @Router /v1/council/ws [get]
func (h *CouncilHandler) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.wsOrigins,
	})
	if err != nil {
		h.logger.Warn("websocket accept failed", zap.Error(err))
		return
	}
	defer conn.Close(websocket.StatusInternalError, "closing")

	conn.SetReadLimit(maxBodyBytes)
	ctx := r.Context()

	for {
		var req api.WSRequest
		_, data, err := conn.Read(ctx)
		if err != nil {
			// Client closed or context canceled; either way the socket is done.
			return
		}
		if err := json.Unmarshal(data, &req); err != nil {
			h.writeWSError(ctx, conn, "INVALID_REQUEST", "invalid JSON request: "+err.Error())
			continue
		}
		if strings.TrimSpace(req.Question) == "" {
			h.writeWSError(ctx, conn, "INVALID_REQUEST", "question is required")
			continue
		}

		h.runRoundOverWS(ctx, conn, req)
	}
}

// runRoundOverWS executes one round, forwarding its events to the socket.
func (h *CouncilHandler) runRoundOverWS(ctx context.Context, conn *websocket.Conn, req api.WSRequest) {
	roundCtx := council.ContextWithSink(ctx, council.EventSinkFunc(
		func(sinkCtx context.Context, ev council.Event) {
			event := ev
			h.writeWSFrame(sinkCtx, conn, api.WSFrame{Type: api.WSFrameEvent, Event: &event})
		}))

	conv, res, err := h.svc.Ask(roundCtx, req.ConversationID, req.Question)
	if err != nil {
		code, message := roundErrorInfo(err)
		h.writeWSError(ctx, conn, code, message)
		return
	}

	h.writeWSFrame(ctx, conn, api.WSFrame{
		Type:   api.WSFrameResult,
		Result: buildAskResponse(conv, res),
	})
}

func (h *CouncilHandler) writeWSError(ctx context.Context, conn *websocket.Conn, code, message string) {
	h.writeWSFrame(ctx, conn, api.WSFrame{
		Type:  api.WSFrameError,
		Error: &api.ErrorDetail{Code: code, Message: message},
	})
}

func (h *CouncilHandler) writeWSFrame(ctx context.Context, conn *websocket.Conn, frame api.WSFrame) {
	data, err := json.Marshal(frame)
	if err != nil {
		h.logger.Error("failed to marshal websocket frame", zap.Error(err))
		return
	}
	if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
		h.logger.Debug("websocket write failed", zap.Error(err))
	}
}

// =============================================================================
// Helper functions
// =============================================================================

// validateAskRequest rejects empty questions before any model is called.
func (h *CouncilHandler) validateAskRequest(w http.ResponseWriter, question string) bool {
	if strings.TrimSpace(question) == "" {
		WriteErrorMessage(w, http.StatusBadRequest, llm.ErrInvalidRequest,
			"question is required", h.logger)
		return false
	}
	return true
}

// buildAskResponse assembles the API response from a completed round. The
// service has already appended the round, so the last one is this round.
func buildAskResponse(conv *conversation.Conversation, res *council.Result) *api.AskResponse {
	resp := &api.AskResponse{
		ConversationID: conv.ID,
		Title:          conv.Title,
		Result:         res,
	}
	if n := len(conv.Rounds); n > 0 {
		last := conv.Rounds[n-1]
		resp.RoundID = last.ID
		resp.CreatedAt = last.CreatedAt
	}
	return resp
}

// writeRoundError maps a failed round onto the response envelope. The
// partial result is carried as data so callers can show what succeeded.
func (h *CouncilHandler) writeRoundError(w http.ResponseWriter, err error, partial *council.Result) {
	var lerr *llm.Error
	if errors.As(err, &lerr) && !isRoundError(err) {
		WriteError(w, lerr, h.logger)
		return
	}

	code, message := roundErrorInfo(err)
	status := roundErrorStatus(err)

	h.logger.Warn("council round failed",
		zap.String("code", code),
		zap.Error(err),
	)

	resp := Response{
		Success:   false,
		Error:     &ErrorInfo{Code: code, Message: message, HTTPStatus: status},
		Timestamp: time.Now(),
	}
	if partial != nil && len(partial.Answers) > 0 {
		resp.Data = partial
	}
	WriteJSON(w, status, resp)
}

// isRoundError reports whether err is one of the round-fatal sentinels.
func isRoundError(err error) bool {
	return errors.Is(err, council.ErrAllModelsFailed) ||
		errors.Is(err, council.ErrChairmanFailed) ||
		errors.Is(err, council.ErrLabelsExhausted)
}

// roundErrorInfo maps an error from Service.Ask onto a code and message.
func roundErrorInfo(err error) (code, message string) {
	switch {
	case errors.Is(err, conversation.ErrNotFound):
		return "NOT_FOUND", "conversation not found"
	case errors.Is(err, conversation.ErrInvalidInput):
		return "INVALID_REQUEST", "question is required"
	case errors.Is(err, council.ErrAllModelsFailed):
		return "ALL_MODELS_FAILED", "all council models failed"
	case errors.Is(err, council.ErrChairmanFailed):
		return "CHAIRMAN_FAILED", "chairman synthesis failed"
	case errors.Is(err, council.ErrLabelsExhausted):
		return "LABELS_EXHAUSTED", "label alphabet exhausted"
	case errors.Is(err, context.DeadlineExceeded):
		return "TIMEOUT", "deliberation timed out"
	case errors.Is(err, context.Canceled):
		return "CANCELED", "deliberation canceled"
	default:
		return "INTERNAL_ERROR", err.Error()
	}
}

// roundErrorStatus maps an error from Service.Ask onto an HTTP status.
func roundErrorStatus(err error) int {
	switch {
	case errors.Is(err, conversation.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, conversation.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, council.ErrAllModelsFailed),
		errors.Is(err, council.ErrChairmanFailed):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// writeSSEEvent writes one named SSE event with a JSON payload.
func writeSSEEvent(w http.ResponseWriter, event string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	w.Write([]byte("event: " + event + "\n"))
	w.Write([]byte("data: "))
	w.Write(data)
	w.Write([]byte("\n\n"))
}
