package migration

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/councilflow/conversation"
)

func TestParseDatabaseType(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected DatabaseType
		wantErr  bool
	}{
		{"postgres", "postgres", DatabaseTypePostgres, false},
		{"postgresql", "postgresql", DatabaseTypePostgres, false},
		{"pg", "pg", DatabaseTypePostgres, false},
		{"mysql", "mysql", DatabaseTypeMySQL, false},
		{"mariadb", "mariadb", DatabaseTypeMySQL, false},
		{"sqlite", "sqlite", DatabaseTypeSQLite, false},
		{"sqlite3", "sqlite3", DatabaseTypeSQLite, false},
		{"uppercase", "POSTGRES", DatabaseTypePostgres, false},
		{"invalid", "invalid", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := ParseDatabaseType(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tt.expected, result)
			}
		})
	}
}

func TestNewMigrator_InvalidConfig(t *testing.T) {
	_, err := NewMigrator(nil)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "config is required")

	_, err = NewMigrator(&Config{
		DatabaseType: DatabaseTypeSQLite,
		DatabaseURL:  "",
	})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "database URL is required")

	_, err = NewMigrator(&Config{
		DatabaseType: DatabaseType("oracle"),
		DatabaseURL:  "whatever",
	})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported database type")
}

func TestNewMigratorFromDatabaseConfig_InvalidDriver(t *testing.T) {
	_, err := NewMigratorFromDatabaseConfig(conversation.DatabaseConfig{
		Driver: "mongodb",
		DSN:    "mongodb://localhost",
	})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "invalid database type")
}

func TestNewMigratorFromStoreConfig_NonDatabaseStore(t *testing.T) {
	_, err := NewMigratorFromStoreConfig(conversation.StoreConfig{
		Type: conversation.StoreTypeMemory,
	})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "does not use migrations")
}

func TestNewMigratorFromURL_InvalidType(t *testing.T) {
	_, err := NewMigratorFromURL("cassandra", "cassandra://localhost")
	assert.Error(t, err)
}

func newSQLiteMigrator(t *testing.T) *DefaultMigrator {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	migrator, err := NewMigrator(&Config{
		DatabaseType: DatabaseTypeSQLite,
		DatabaseURL:  "file:" + dbPath,
	})
	require.NoError(t, err)
	t.Cleanup(func() { migrator.Close() })

	return migrator
}

func TestMigrator_SQLite_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	migrator := newSQLiteMigrator(t)
	ctx := context.Background()

	version, dirty, err := migrator.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint(0), version)
	assert.False(t, dirty)

	require.NoError(t, migrator.Up(ctx))

	version, dirty, err = migrator.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint(2), version)
	assert.False(t, dirty)

	// Both archive tables exist after migrating up.
	var tables int
	err = migrator.db.QueryRow(
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name IN ('conversations', 'rounds')`,
	).Scan(&tables)
	require.NoError(t, err)
	assert.Equal(t, 2, tables)

	statuses, err := migrator.Status(ctx)
	require.NoError(t, err)
	require.Len(t, statuses, 2)
	assert.Equal(t, "create_conversations", statuses[0].Name)
	assert.Equal(t, "create_rounds", statuses[1].Name)
	for _, s := range statuses {
		assert.True(t, s.Applied)
		assert.False(t, s.Dirty)
	}

	info, err := migrator.Info(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint(2), info.CurrentVersion)
	assert.Equal(t, 2, info.TotalMigrations)
	assert.Equal(t, 2, info.AppliedMigrations)
	assert.Equal(t, 0, info.PendingMigrations)

	require.NoError(t, migrator.Down(ctx))

	version, _, err = migrator.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)

	info, err = migrator.Info(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, info.AppliedMigrations)
	assert.Equal(t, 1, info.PendingMigrations)

	require.NoError(t, migrator.DownAll(ctx))

	version, _, err = migrator.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint(0), version)
}

func TestMigrator_SQLite_GotoAndForce(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	migrator := newSQLiteMigrator(t)
	ctx := context.Background()

	require.NoError(t, migrator.Goto(ctx, 1))

	version, _, err := migrator.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)

	require.NoError(t, migrator.Force(ctx, 2))

	version, _, err = migrator.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint(2), version)
}

func TestMigrator_UpIsIdempotent(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	migrator := newSQLiteMigrator(t)
	ctx := context.Background()

	require.NoError(t, migrator.Up(ctx))
	// A second Up with nothing pending is not an error.
	require.NoError(t, migrator.Up(ctx))
}

func TestMigrator_AvailableMigrations(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	migrator := newSQLiteMigrator(t)

	migrations, err := migrator.availableMigrations()
	require.NoError(t, err)
	require.NotEmpty(t, migrations)

	for i := 1; i < len(migrations); i++ {
		assert.Greater(t, migrations[i].version, migrations[i-1].version)
	}
}

func TestCLI_Output(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	migrator := newSQLiteMigrator(t)
	cli := NewCLI(migrator)

	var buf bytes.Buffer
	cli.SetOutput(&buf)

	ctx := context.Background()

	require.NoError(t, cli.RunVersion(ctx))
	assert.Contains(t, buf.String(), "No migrations applied yet")

	buf.Reset()
	require.NoError(t, cli.RunUp(ctx))
	assert.Contains(t, buf.String(), "Current version: 2")

	buf.Reset()
	require.NoError(t, cli.RunStatus(ctx))
	output := buf.String()
	assert.Contains(t, output, "create_conversations")
	assert.Contains(t, output, "create_rounds")
	assert.Contains(t, output, "Total: 2, Applied: 2, Pending: 0")
}
