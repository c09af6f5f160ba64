package api

import (
	"time"

	"github.com/BaSui01/councilflow/conversation"
	"github.com/BaSui01/councilflow/council"
)

// =============================================================================
// Council deliberation types
// =============================================================================

// AskRequest asks the council one question, optionally inside an existing
// conversation.
// @Description Council deliberation request
type AskRequest struct {
	// Conversation to continue; empty starts a new one
	ConversationID string `json:"conversation_id,omitempty" example:"550e8400-e29b-41d4-a716-446655440000"`
	// The question put to the council
	Question string `json:"question" example:"Is P equal to NP?" binding:"required"`
}

// AskResponse carries the completed round plus its conversation placement.
// @Description Council deliberation response
type AskResponse struct {
	// Conversation the round was appended to
	ConversationID string `json:"conversation_id" example:"550e8400-e29b-41d4-a716-446655440000"`
	// Conversation title (generated after the first round)
	Title string `json:"title,omitempty" example:"P versus NP"`
	// Persisted round ID
	RoundID string `json:"round_id" example:"6ba7b810-9dad-11d1-80b4-00c04fd430c8"`
	// Everything the three stages produced
	Result *RoundResult `json:"result"`
	// Round completion timestamp
	CreatedAt time.Time `json:"created_at"`
}

// RoundResult is a type alias for council.Result to avoid duplicate
// definitions. The canonical definition lives in council.Result
// (council/types.go); its JSON form is already the wire form.
type RoundResult = council.Result

// RoundEvent is a type alias for council.Event. Stage-boundary events are
// serialized as-is onto SSE and WebSocket streams.
type RoundEvent = council.Event

// =============================================================================
// Streaming types
// =============================================================================

// WSRequest is the single message a client sends after opening the round
// event socket.
// @Description WebSocket deliberation request
type WSRequest struct {
	// Conversation to continue; empty starts a new one
	ConversationID string `json:"conversation_id,omitempty"`
	// The question put to the council
	Question string `json:"question" binding:"required"`
}

// WSFrame is one server-to-client WebSocket message: a stage event while the
// round runs, then exactly one terminal result or error frame.
// @Description WebSocket stream frame
type WSFrame struct {
	// Frame type: event, result or error
	Type string `json:"type" example:"event"`
	// Stage-boundary event (type "event")
	Event *RoundEvent `json:"event,omitempty"`
	// Completed round (type "result")
	Result *AskResponse `json:"result,omitempty"`
	// Failure detail (type "error")
	Error *ErrorDetail `json:"error,omitempty"`
}

// WSFrame types.
const (
	WSFrameEvent  = "event"
	WSFrameResult = "result"
	WSFrameError  = "error"
)

// =============================================================================
// Conversation types
// =============================================================================

// ConversationSummary is a type alias for conversation.Summary, the listing
// view without rounds.
type ConversationSummary = conversation.Summary

// ConversationDetail is a type alias for conversation.Conversation, the full
// record with all rounds.
type ConversationDetail = conversation.Conversation

// CreateConversationRequest starts an empty conversation.
// @Description Conversation creation request
type CreateConversationRequest struct {
	// Optional initial title; the first round overwrites an empty one
	Title string `json:"title,omitempty" example:"Untitled"`
}

// ConversationListResponse lists conversation summaries, most recently
// updated first.
// @Description Conversation list response
type ConversationListResponse struct {
	// Conversation summaries
	Conversations []ConversationSummary `json:"conversations"`
}

// =============================================================================
// Error types
// =============================================================================

// ErrorResponse wraps an error detail.
// @Description Error response structure
type ErrorResponse struct {
	// Error detail
	Error ErrorDetail `json:"error"`
}

// ErrorDetail describes one failure.
// @Description Error detail structure
type ErrorDetail struct {
	// Error code
	Code string `json:"code" example:"LLM_INVALID_REQUEST"`
	// Human-readable error message
	Message string `json:"message" example:"question is required"`
	// HTTP status code
	HTTPStatus int `json:"http_status,omitempty" example:"400"`
	// Whether the request can be retried
	Retryable bool `json:"retryable,omitempty" example:"false"`
	// Provider that returned the error
	Provider string `json:"provider,omitempty" example:"openai"`
}
