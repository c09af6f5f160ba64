package types

import "context"

// contextKey is used for storing values in context.Context.
type contextKey string

const (
	keyRequestID      contextKey = "request_id"
	keyRoundID        contextKey = "round_id"
	keyConversationID contextKey = "conversation_id"
)

// WithRequestID adds the HTTP request ID to context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, keyRequestID, requestID)
}

// RequestID extracts the HTTP request ID from context.
func RequestID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(keyRequestID).(string)
	return v, ok && v != ""
}

// WithRoundID adds the deliberation round ID to context.
func WithRoundID(ctx context.Context, roundID string) context.Context {
	return context.WithValue(ctx, keyRoundID, roundID)
}

// RoundID extracts the deliberation round ID from context.
func RoundID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(keyRoundID).(string)
	return v, ok && v != ""
}

// WithConversationID adds the conversation ID to context.
func WithConversationID(ctx context.Context, conversationID string) context.Context {
	return context.WithValue(ctx, keyConversationID, conversationID)
}

// ConversationID extracts the conversation ID from context.
func ConversationID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(keyConversationID).(string)
	return v, ok && v != ""
}
