// Copyright (c) CouncilFlow Authors.
// Licensed under the MIT License.

/*
Package migration manages the versioned schema of the conversation archive
database across PostgreSQL, MySQL and SQLite, built on golang-migrate.

# Overview

The per-dialect SQL migration files are embedded with embed.FS and served to
the golang-migrate engine, so a deployed binary carries its own schema
history. The schema matches what the database-backed conversation store
expects: a conversations table plus a rounds table holding one archived
deliberation round per row. Supported operations cover applying, rolling
back, stepping, jumping to a version and force-setting the recorded version.

# Core types

  - Migrator: the operation set (Up/Down/DownAll/Steps/Goto/Force/Version/
    Status/Info/Close).
  - DefaultMigrator: the golang-migrate backed implementation, owning the
    database connection.
  - Config: dialect, connection URL, bookkeeping table name and lock timeout.
  - DatabaseType: dialect enum (postgres/mysql/sqlite).
  - MigrationStatus / MigrationInfo: per-migration and aggregate state.
  - CLI: terminal front end over a Migrator with formatted output.

# Capabilities

  - Pure-Go drivers throughout: lib/pq, go-sql-driver/mysql and
    modernc.org/sqlite, so migrations run without cgo.
  - Factory functions NewMigratorFromStoreConfig /
    NewMigratorFromDatabaseConfig / NewMigratorFromURL create migrators from
    the application's store configuration or a raw URL.
  - CLI integration: RunUp/RunDown/RunStatus/RunInfo and friends print
    human-readable progress and tabulated status.
  - ParseDatabaseType folds common dialect spellings (postgresql, pg,
    mariadb, sqlite3) onto the canonical types.
*/
package migration
