package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore is a Redis-based implementation of Store.
// Suitable for distributed deployments. Each conversation is one JSON
// value; a sorted set scored by UpdatedAt keeps the listing order.
type RedisStore struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisStore creates a new Redis-based conversation store
func NewRedisStore(config StoreConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", config.Redis.Host, config.Redis.Port),
		Password: config.Redis.Password,
		DB:       config.Redis.DB,
		PoolSize: config.Redis.PoolSize,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	keyPrefix := config.Redis.KeyPrefix
	if keyPrefix == "" {
		keyPrefix = "councilflow:"
	}

	return &RedisStore{
		client:    client,
		keyPrefix: keyPrefix + "conversation:",
	}, nil
}

// Close closes the store
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Ping checks if the store is healthy
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// dataKey returns the Redis key for a conversation's JSON value
func (s *RedisStore) dataKey(id string) string {
	return s.keyPrefix + "data:" + id
}

// allKey returns the Redis key for the listing index
func (s *RedisStore) allKey() string {
	return s.keyPrefix + "all"
}

// save writes the conversation value and refreshes its index score.
func (s *RedisStore) save(ctx context.Context, conv *Conversation) error {
	data, err := json.Marshal(conv)
	if err != nil {
		return fmt.Errorf("failed to marshal conversation: %w", err)
	}

	pipe := s.client.Pipeline()
	pipe.Set(ctx, s.dataKey(conv.ID), data, 0)
	pipe.ZAdd(ctx, s.allKey(), redis.Z{
		Score:  float64(conv.UpdatedAt.UnixNano()),
		Member: conv.ID,
	})
	_, err = pipe.Exec(ctx)
	return err
}

// Create persists a new conversation
func (s *RedisStore) Create(ctx context.Context, conv *Conversation) error {
	if conv == nil {
		return ErrInvalidInput
	}

	stampNew(conv)

	exists, err := s.client.Exists(ctx, s.dataKey(conv.ID)).Result()
	if err != nil {
		return err
	}
	if exists > 0 {
		return ErrAlreadyExists
	}

	return s.save(ctx, conv)
}

// Get retrieves a conversation by ID
func (s *RedisStore) Get(ctx context.Context, id string) (*Conversation, error) {
	data, err := s.client.Get(ctx, s.dataKey(id)).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var conv Conversation
	if err := json.Unmarshal(data, &conv); err != nil {
		return nil, err
	}
	return &conv, nil
}

// List returns summaries of all conversations, most recently updated first
func (s *RedisStore) List(ctx context.Context) ([]Summary, error) {
	ids, err := s.client.ZRevRange(ctx, s.allKey(), 0, -1).Result()
	if err != nil {
		return nil, err
	}

	summaries := make([]Summary, 0, len(ids))
	for _, id := range ids {
		conv, err := s.Get(ctx, id)
		if err != nil {
			continue // index entry without a value, skip
		}
		summaries = append(summaries, conv.Summarize())
	}
	return summaries, nil
}

// AppendRound adds a completed round to a conversation
func (s *RedisStore) AppendRound(ctx context.Context, id string, round Round) error {
	conv, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	stampRound(&round)
	conv.Rounds = append(conv.Rounds, round)
	conv.UpdatedAt = time.Now().UTC()
	return s.save(ctx, conv)
}

// SetTitle replaces a conversation's title
func (s *RedisStore) SetTitle(ctx context.Context, id string, title string) error {
	conv, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	conv.Title = title
	conv.UpdatedAt = time.Now().UTC()
	return s.save(ctx, conv)
}

// Delete removes a conversation
func (s *RedisStore) Delete(ctx context.Context, id string) error {
	deleted, err := s.client.Del(ctx, s.dataKey(id)).Result()
	if err != nil {
		return err
	}
	if deleted == 0 {
		return ErrNotFound
	}
	return s.client.ZRem(ctx, s.allKey(), id).Err()
}
