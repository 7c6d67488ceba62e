package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS notifications (
		id           UUID PRIMARY KEY,
		user_id      UUID NOT NULL,
		type         VARCHAR(16) NOT NULL,
		title        TEXT NOT NULL,
		message      TEXT NOT NULL,
		template_key TEXT NOT NULL DEFAULT '',
		metadata     JSONB NOT NULL DEFAULT '{}',
		is_read      BOOLEAN NOT NULL DEFAULT FALSE,
		read_at      TIMESTAMPTZ,
		created_at   TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_notifications_user_unread
		ON notifications (user_id, is_read, created_at)`,
	`CREATE TABLE IF NOT EXISTS notification_channels (
		notification_id UUID NOT NULL REFERENCES notifications (id) ON DELETE CASCADE,
		channel         VARCHAR(32) NOT NULL,
		position        INTEGER NOT NULL,
		status          VARCHAR(16) NOT NULL DEFAULT 'pending',
		reason          TEXT NOT NULL DEFAULT '',
		updated_at      TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (notification_id, channel)
	)`,
}

// The users table belongs to the user service in PostgreSQL deployments;
// SQLite development databases get a minimal copy so contact lookups work.
var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS notifications (
		id           TEXT PRIMARY KEY,
		user_id      TEXT NOT NULL,
		type         TEXT NOT NULL,
		title        TEXT NOT NULL,
		message      TEXT NOT NULL,
		template_key TEXT NOT NULL DEFAULT '',
		metadata     TEXT NOT NULL DEFAULT '{}',
		is_read      INTEGER NOT NULL DEFAULT 0,
		read_at      TEXT,
		created_at   TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_notifications_user_unread
		ON notifications (user_id, is_read, created_at)`,
	`CREATE TABLE IF NOT EXISTS notification_channels (
		notification_id TEXT NOT NULL REFERENCES notifications (id) ON DELETE CASCADE,
		channel         TEXT NOT NULL,
		position        INTEGER NOT NULL,
		status          TEXT NOT NULL DEFAULT 'pending',
		reason          TEXT NOT NULL DEFAULT '',
		updated_at      TEXT NOT NULL,
		PRIMARY KEY (notification_id, channel)
	)`,
	`CREATE TABLE IF NOT EXISTS users (
		user_id          TEXT PRIMARY KEY,
		full_name        TEXT NOT NULL DEFAULT '',
		email            TEXT,
		phone            TEXT,
		device_token     TEXT,
		slack_user_id    TEXT,
		telegram_chat_id TEXT,
		deleted_at       TEXT
	)`,
}

// EnsureSchema creates the notification tables for the connected driver.
func EnsureSchema(ctx context.Context, db *sqlx.DB) error {
	var statements []string
	switch db.DriverName() {
	case "postgres":
		statements = postgresSchema
	case "sqlite":
		statements = sqliteSchema
	default:
		return fmt.Errorf("no schema for driver %q", db.DriverName())
	}

	for i, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("applying schema statement %d: %w", i+1, err)
		}
	}
	return nil
}
