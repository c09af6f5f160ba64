package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// FileStore is a file-based implementation of Store.
// Suitable for single-node deployments. All conversations live in one
// index.json under the base directory; every mutation rewrites it
// atomically (temp file plus rename).
type FileStore struct {
	baseDir       string
	conversations map[string]*Conversation // in-memory cache
	mu            sync.RWMutex
	closed        bool
}

// NewFileStore creates a new file-based conversation store
func NewFileStore(config StoreConfig) (*FileStore, error) {
	baseDir := config.BaseDir
	if baseDir == "" {
		baseDir = DefaultStoreConfig().BaseDir
	}
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create conversation store directory: %w", err)
	}

	store := &FileStore{
		baseDir:       baseDir,
		conversations: make(map[string]*Conversation),
	}

	if err := store.loadFromDisk(); err != nil {
		return nil, fmt.Errorf("failed to load conversations from disk: %w", err)
	}

	return store, nil
}

// loadFromDisk loads all conversations into memory
func (s *FileStore) loadFromDisk() error {
	data, err := os.ReadFile(s.indexPath())
	if os.IsNotExist(err) {
		return nil // No existing data
	}
	if err != nil {
		return err
	}

	var conversations map[string]*Conversation
	if err := json.Unmarshal(data, &conversations); err != nil {
		return err
	}

	s.conversations = conversations
	if s.conversations == nil {
		s.conversations = make(map[string]*Conversation)
	}
	return nil
}

// saveToDisk persists all conversations to disk
func (s *FileStore) saveToDisk() error {
	data, err := json.MarshalIndent(s.conversations, "", "  ")
	if err != nil {
		return err
	}

	// Atomic write: temp file then rename
	tempPath := s.indexPath() + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return err
	}
	return os.Rename(tempPath, s.indexPath())
}

func (s *FileStore) indexPath() string {
	return filepath.Join(s.baseDir, "index.json")
}

// Close flushes the store and closes it
func (s *FileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.saveToDisk()
}

// Ping checks if the store is healthy
func (s *FileStore) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrStoreClosed
	}
	return nil
}

// Create persists a new conversation
func (s *FileStore) Create(ctx context.Context, conv *Conversation) error {
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
	return s.saveToDisk()
}

// Get retrieves a conversation by ID
func (s *FileStore) Get(ctx context.Context, id string) (*Conversation, error) {
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
func (s *FileStore) List(ctx context.Context) ([]Summary, error) {
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
func (s *FileStore) AppendRound(ctx context.Context, id string, round Round) error {
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
	return s.saveToDisk()
}

// SetTitle replaces a conversation's title
func (s *FileStore) SetTitle(ctx context.Context, id string, title string) error {
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
	return s.saveToDisk()
}

// Delete removes a conversation
func (s *FileStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	if _, ok := s.conversations[id]; !ok {
		return ErrNotFound
	}
	delete(s.conversations, id)
	return s.saveToDisk()
}
