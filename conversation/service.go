package conversation

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/BaSui01/councilflow/council"
)

// Service runs council rounds inside persistent conversations. It loads
// prior rounds as chat history for Stage 1, appends the durable projection
// of each completed round, and titles new conversations after their first
// round.
type Service struct {
	store  Store
	engine *council.Engine
	titler *Titler
	logger *zap.Logger
}

// ServiceOption customizes a Service.
type ServiceOption func(*Service)

// WithTitler sets the title generator for new conversations. Without one,
// titles fall back to question truncation.
func WithTitler(t *Titler) ServiceOption {
	return func(s *Service) { s.titler = t }
}

// WithServiceLogger sets the logger. A nil logger disables logging.
func WithServiceLogger(logger *zap.Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewService wires a store to a council engine.
func NewService(store Store, engine *council.Engine, opts ...ServiceOption) *Service {
	s := &Service{
		store:  store,
		engine: engine,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ask runs one deliberation round inside a conversation. An empty id
// starts a new conversation. On a failed round the partial result is
// returned alongside the error and nothing is persisted; the conversation
// itself survives for a retry.
func (s *Service) Ask(ctx context.Context, id, question string) (*Conversation, *council.Result, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, nil, ErrInvalidInput
	}

	var (
		conv *Conversation
		err  error
	)
	if id == "" {
		conv = &Conversation{}
		if err = s.store.Create(ctx, conv); err != nil {
			return nil, nil, err
		}
	} else {
		conv, err = s.store.Get(ctx, id)
		if err != nil {
			return nil, nil, err
		}
	}

	res, runErr := s.engine.RunWithHistory(ctx, question, conv.History())
	if runErr != nil {
		return conv, res, runErr
	}

	round := NewRound(res)
	if err := s.store.AppendRound(ctx, conv.ID, round); err != nil {
		return conv, res, err
	}
	conv.Rounds = append(conv.Rounds, round)
	conv.UpdatedAt = round.CreatedAt

	if conv.Title == "" {
		title := s.title(ctx, question)
		if err := s.store.SetTitle(ctx, conv.ID, title); err != nil {
			s.logger.Warn("failed to persist conversation title",
				zap.String("conversation_id", conv.ID),
				zap.Error(err))
		} else {
			conv.Title = title
		}
	}

	return conv, res, nil
}

func (s *Service) title(ctx context.Context, question string) string {
	if s.titler != nil {
		return s.titler.Title(ctx, question)
	}
	return FallbackTitle(question)
}

// Store exposes the underlying store for plain CRUD access.
func (s *Service) Store() Store {
	return s.store
}
