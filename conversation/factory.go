package conversation

import (
	"fmt"
)

// NewStore creates a new conversation Store based on the configuration.
// The database backend is opened without schema migration; run the
// migration tooling (or AutoMigrate in tests) before first use.
func NewStore(config StoreConfig) (Store, error) {
	switch config.Type {
	case StoreTypeMemory, "":
		return NewMemoryStore(), nil
	case StoreTypeFile:
		return NewFileStore(config)
	case StoreTypeRedis:
		return NewRedisStore(config)
	case StoreTypeDatabase:
		return NewDatabaseStore(config)
	default:
		return nil, fmt.Errorf("unsupported conversation store type: %s", config.Type)
	}
}

// MustNewStore creates a new Store or panics on error. Use only during
// application initialization.
func MustNewStore(config StoreConfig) Store {
	store, err := NewStore(config)
	if err != nil {
		panic(fmt.Sprintf("failed to create conversation store: %v", err))
	}
	return store
}
