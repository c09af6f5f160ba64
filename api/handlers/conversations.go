package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/councilflow/api"
	"github.com/BaSui01/councilflow/conversation"
	"github.com/BaSui01/councilflow/llm"
)

// =============================================================================
// Conversation management handler
// =============================================================================

// ConversationHandler serves the conversation CRUD endpoints.
type ConversationHandler struct {
	store  conversation.Store
	logger *zap.Logger
}

// NewConversationHandler creates a conversation handler backed by store.
func NewConversationHandler(store conversation.Store, logger *zap.Logger) *ConversationHandler {
	return &ConversationHandler{
		store:  store,
		logger: logger,
	}
}

// HandleList returns summaries of all conversations.
// @Summary List conversations
// @Description List all conversations, most recently updated first
// @Tags conversations
// @Produce json
// @Success 200 {object} Response{data=api.ConversationListResponse} "Conversation summaries"
// @Security ApiKeyAuth
// @Router /v1/conversations [get]
func (h *ConversationHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.store.List(r.Context())
	if err != nil {
		h.handleStoreError(w, err, "")
		return
	}
	if summaries == nil {
		summaries = []conversation.Summary{}
	}
	WriteSuccess(w, api.ConversationListResponse{Conversations: summaries})
}

// HandleCreate creates an empty conversation, optionally with a title.
// @Summary Create a conversation
// @Description Create an empty conversation to ask questions in
// @Tags conversations
// @Accept json
// @Produce json
// @Param request body api.CreateConversationRequest false "Creation options"
// @Success 200 {object} Response{data=api.ConversationDetail} "Created conversation"
// @Failure 400 {object} Response "Invalid request"
// @Security ApiKeyAuth
// @Router /v1/conversations [post]
func (h *ConversationHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req api.CreateConversationRequest
	if r.ContentLength != 0 {
		if !ValidateContentType(w, r, h.logger) {
			return
		}
		if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
			return
		}
	}

	conv := &conversation.Conversation{Title: strings.TrimSpace(req.Title)}
	if err := h.store.Create(r.Context(), conv); err != nil {
		h.handleStoreError(w, err, "")
		return
	}

	h.logger.Info("conversation created", zap.String("conversation_id", conv.ID))
	WriteSuccess(w, conv)
}

// HandleGet returns one conversation with all of its rounds.
// @Summary Get a conversation
// @Description Get a conversation with its full round history
// @Tags conversations
// @Produce json
// @Param id path string true "Conversation ID"
// @Success 200 {object} Response{data=api.ConversationDetail} "Conversation"
// @Failure 404 {object} Response "Conversation not found"
// @Security ApiKeyAuth
// @Router /v1/conversations/{id} [get]
func (h *ConversationHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := h.extractConversationID(w, r)
	if !ok {
		return
	}

	conv, err := h.store.Get(r.Context(), id)
	if err != nil {
		h.handleStoreError(w, err, id)
		return
	}
	WriteSuccess(w, conv)
}

// HandleDelete removes a conversation and its rounds.
// @Summary Delete a conversation
// @Description Delete a conversation and its full round history
// @Tags conversations
// @Produce json
// @Param id path string true "Conversation ID"
// @Success 200 {object} Response "Deleted"
// @Failure 404 {object} Response "Conversation not found"
// @Security ApiKeyAuth
// @Router /v1/conversations/{id} [delete]
func (h *ConversationHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.extractConversationID(w, r)
	if !ok {
		return
	}

	if err := h.store.Delete(r.Context(), id); err != nil {
		h.handleStoreError(w, err, id)
		return
	}

	h.logger.Info("conversation deleted", zap.String("conversation_id", id))
	WriteSuccess(w, map[string]string{"id": id, "status": "deleted"})
}

// =============================================================================
// Helper functions
// =============================================================================

// extractConversationID pulls the conversation ID out of the request path.
// Prefers the Go 1.22+ route pattern value, falling back to prefix trimming
// for mux registrations without patterns.
func (h *ConversationHandler) extractConversationID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := r.PathValue("id")
	if id == "" {
		id = strings.TrimPrefix(r.URL.Path, "/api/v1/conversations/")
		if id == r.URL.Path || id == "" || strings.Contains(id, "/") {
			WriteErrorMessage(w, http.StatusBadRequest, llm.ErrInvalidRequest,
				"conversation ID is required", h.logger)
			return "", false
		}
	}
	return id, true
}

// handleStoreError maps store errors onto the response envelope.
func (h *ConversationHandler) handleStoreError(w http.ResponseWriter, err error, id string) {
	switch {
	case errors.Is(err, conversation.ErrNotFound):
		resp := Response{
			Success:   false,
			Error:     &ErrorInfo{Code: "NOT_FOUND", Message: "conversation not found"},
			Timestamp: time.Now(),
		}
		WriteJSON(w, http.StatusNotFound, resp)
	case errors.Is(err, conversation.ErrInvalidInput):
		WriteErrorMessage(w, http.StatusBadRequest, llm.ErrInvalidRequest, err.Error(), h.logger)
	case errors.Is(err, conversation.ErrAlreadyExists):
		resp := Response{
			Success:   false,
			Error:     &ErrorInfo{Code: "ALREADY_EXISTS", Message: "conversation already exists"},
			Timestamp: time.Now(),
		}
		WriteJSON(w, http.StatusConflict, resp)
	default:
		h.logger.Error("conversation store error",
			zap.String("conversation_id", id),
			zap.Error(err),
		)
		resp := Response{
			Success:   false,
			Error:     &ErrorInfo{Code: "INTERNAL_ERROR", Message: "internal server error"},
			Timestamp: time.Now(),
		}
		WriteJSON(w, http.StatusInternalServerError, resp)
	}
}
