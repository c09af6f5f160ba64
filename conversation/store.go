package conversation

import (
	"context"
	"errors"
)

// Common errors
var (
	ErrNotFound      = errors.New("conversation not found")
	ErrAlreadyExists = errors.New("conversation already exists")
	ErrStoreClosed   = errors.New("store is closed")
	ErrInvalidInput  = errors.New("invalid input")
)

// StoreType represents the type of storage backend
type StoreType string

const (
	StoreTypeMemory   StoreType = "memory"
	StoreTypeFile     StoreType = "file"
	StoreTypeRedis    StoreType = "redis"
	StoreTypeDatabase StoreType = "database"
)

// RedisConfig contains Redis-specific configuration
type RedisConfig struct {
	// Host is the Redis server host
	Host string `json:"host" yaml:"host" env:"HOST"`

	// Port is the Redis server port
	Port int `json:"port" yaml:"port" env:"PORT"`

	// Password is the Redis password (optional)
	Password string `json:"password" yaml:"password" env:"PASSWORD"`

	// DB is the Redis database number
	DB int `json:"db" yaml:"db" env:"DB"`

	// PoolSize is the connection pool size
	PoolSize int `json:"pool_size" yaml:"pool_size" env:"POOL_SIZE"`

	// KeyPrefix is the prefix for all Redis keys
	KeyPrefix string `json:"key_prefix" yaml:"key_prefix" env:"KEY_PREFIX"`
}

// DatabaseConfig contains GORM archive configuration
type DatabaseConfig struct {
	// Driver selects the SQL dialect: postgres, mysql or sqlite
	Driver string `json:"driver" yaml:"driver" env:"DRIVER"`

	// DSN is the driver-specific connection string
	DSN string `json:"dsn" yaml:"dsn" env:"DSN"`
}

// StoreConfig is the base configuration for all store implementations
type StoreConfig struct {
	// Type is the storage backend type
	Type StoreType `json:"type" yaml:"type" env:"TYPE"`

	// BaseDir is the base directory for file-based storage
	BaseDir string `json:"base_dir" yaml:"base_dir" env:"BASE_DIR"`

	// Redis configuration (only used when Type is "redis")
	Redis RedisConfig `json:"redis" yaml:"redis" env:"REDIS"`

	// Database configuration (only used when Type is "database")
	Database DatabaseConfig `json:"database" yaml:"database" env:"DATABASE"`
}

// DefaultStoreConfig returns the default store configuration
func DefaultStoreConfig() StoreConfig {
	return StoreConfig{
		Type:    StoreTypeMemory,
		BaseDir: "./data/conversations",
		Redis: RedisConfig{
			Host:      "localhost",
			Port:      6379,
			DB:        0,
			PoolSize:  10,
			KeyPrefix: "councilflow:",
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
			DSN:    "./data/councilflow.db",
		},
	}
}

// Store is the persistence interface for conversations. Implementations
// must be safe for concurrent use.
type Store interface {
	// Create persists a new conversation. A missing ID is generated and
	// the timestamps are stamped in place.
	Create(ctx context.Context, conv *Conversation) error

	// Get returns a conversation with all of its rounds.
	Get(ctx context.Context, id string) (*Conversation, error)

	// List returns summaries of all conversations, most recently updated
	// first.
	List(ctx context.Context) ([]Summary, error)

	// AppendRound adds a completed round to a conversation and bumps its
	// UpdatedAt.
	AppendRound(ctx context.Context, id string, round Round) error

	// SetTitle replaces a conversation's title.
	SetTitle(ctx context.Context, id string, title string) error

	// Delete removes a conversation and its rounds.
	Delete(ctx context.Context, id string) error

	// Close closes the store and releases resources
	Close() error

	// Ping checks if the store is healthy
	Ping(ctx context.Context) error
}
