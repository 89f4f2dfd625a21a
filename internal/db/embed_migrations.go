package db

import "embed"

// MigrationFS holds the schema for users, user_sessions and activity_logs.
// Applied by cmd/migrate through internal/db/migrate.
//
//go:embed migrations/*.sql
var MigrationFS embed.FS
