package migration

import (
	"fmt"

	"github.com/BaSui01/councilflow/conversation"
)

// NewMigratorFromStoreConfig creates a migrator for the database backing a
// conversation store. Only the database store type carries a schema to manage.
func NewMigratorFromStoreConfig(cfg conversation.StoreConfig) (*DefaultMigrator, error) {
	if cfg.Type != conversation.StoreTypeDatabase {
		return nil, fmt.Errorf("store type %q does not use migrations", cfg.Type)
	}
	return NewMigratorFromDatabaseConfig(cfg.Database)
}

// NewMigratorFromDatabaseConfig creates a migrator from a database config.
// The DSN is handed to the driver unchanged.
func NewMigratorFromDatabaseConfig(dbCfg conversation.DatabaseConfig) (*DefaultMigrator, error) {
	dbType, err := ParseDatabaseType(dbCfg.Driver)
	if err != nil {
		return nil, fmt.Errorf("invalid database type: %w", err)
	}

	return NewMigrator(&Config{
		DatabaseType: dbType,
		DatabaseURL:  dbCfg.DSN,
	})
}

// NewMigratorFromURL creates a migrator from a database type and URL.
func NewMigratorFromURL(dbType, dbURL string) (*DefaultMigrator, error) {
	dt, err := ParseDatabaseType(dbType)
	if err != nil {
		return nil, err
	}

	return NewMigrator(&Config{
		DatabaseType: dt,
		DatabaseURL:  dbURL,
	})
}
