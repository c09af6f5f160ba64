package conversation

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory implementation of Store.
// Suitable for development and testing. Data is lost on restart.
type MemoryStore struct {
	conversations map[string]*Conversation
	mu            sync.RWMutex
	closed        bool
}

// NewMemoryStore creates a new in-memory conversation store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		conversations: make(map[string]*Conversation),
	}
}

// Close closes the store
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Ping checks if the store is healthy
func (s *MemoryStore) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrStoreClosed
	}
	return nil
}

// Create persists a new conversation
func (s *MemoryStore) Create(ctx context.Context, conv *Conversation) error {
	if conv == nil {
		return ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	stampNew(conv)
	if _, exists := s.conversations[conv.ID]; exists {
		return ErrAlreadyExists
	}

	s.conversations[conv.ID] = conv.Clone()
	return nil
}

// Get retrieves a conversation by ID
func (s *MemoryStore) Get(ctx context.Context, id string) (*Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	conv, ok := s.conversations[id]
	if !ok {
		return nil, ErrNotFound
	}
	return conv.Clone(), nil
}

// List returns summaries of all conversations, most recently updated first
func (s *MemoryStore) List(ctx context.Context) ([]Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	summaries := make([]Summary, 0, len(s.conversations))
	for _, conv := range s.conversations {
		summaries = append(summaries, conv.Summarize())
	}
	sortSummaries(summaries)
	return summaries, nil
}

// AppendRound adds a completed round to a conversation
func (s *MemoryStore) AppendRound(ctx context.Context, id string, round Round) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	conv, ok := s.conversations[id]
	if !ok {
		return ErrNotFound
	}

	stampRound(&round)
	conv.Rounds = append(conv.Rounds, round)
	conv.UpdatedAt = time.Now().UTC()
	return nil
}

// SetTitle replaces a conversation's title
func (s *MemoryStore) SetTitle(ctx context.Context, id string, title string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	conv, ok := s.conversations[id]
	if !ok {
		return ErrNotFound
	}

	conv.Title = title
	conv.UpdatedAt = time.Now().UTC()
	return nil
}

// Delete removes a conversation
func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	if _, ok := s.conversations[id]; !ok {
		return ErrNotFound
	}
	delete(s.conversations, id)
	return nil
}

// stampNew fills the identity and timestamps of a conversation about to be
// created. Shared by every backend so create semantics stay uniform.
func stampNew(conv *Conversation) {
	if conv.ID == "" {
		conv.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if conv.CreatedAt.IsZero() {
		conv.CreatedAt = now
	}
	conv.UpdatedAt = now
}

// stampRound fills a round's identity and timestamp when missing.
func stampRound(round *Round) {
	if round.ID == "" {
		round.ID = uuid.New().String()
	}
	if round.CreatedAt.IsZero() {
		round.CreatedAt = time.Now().UTC()
	}
}

// sortSummaries orders by UpdatedAt descending, ID ascending on ties.
func sortSummaries(summaries []Summary) {
	sort.Slice(summaries, func(i, j int) bool {
		if !summaries[i].UpdatedAt.Equal(summaries[j].UpdatedAt) {
			return summaries[i].UpdatedAt.After(summaries[j].UpdatedAt)
		}
		return summaries[i].ID < summaries[j].ID
	})
}
