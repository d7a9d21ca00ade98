package archive

import (
	"context"
	"database/sql"
	"fmt"
)

const schemaVersion = 1

// schemaStatements are executed in order to create the database schema.
// All use IF NOT EXISTS for idempotent re-application.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS turns (
		id                 TEXT PRIMARY KEY,
		session_id         TEXT NOT NULL DEFAULT '',
		user_message       TEXT NOT NULL DEFAULT '',
		assistant_response TEXT NOT NULL DEFAULT '',
		created_at         TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now'))
	)`,

	`CREATE INDEX IF NOT EXISTS idx_turns_session ON turns(session_id, created_at)`,

	`CREATE VIRTUAL TABLE IF NOT EXISTS turns_fts USING fts5(
		user_message,
		assistant_response,
		content=turns,
		content_rowid=rowid
	)`,

	`CREATE TRIGGER IF NOT EXISTS turns_ai AFTER INSERT ON turns BEGIN
		INSERT INTO turns_fts(rowid, user_message, assistant_response)
		VALUES (new.rowid, new.user_message, new.assistant_response);
	END`,

	`CREATE TRIGGER IF NOT EXISTS turns_ad AFTER DELETE ON turns BEGIN
		INSERT INTO turns_fts(turns_fts, rowid, user_message, assistant_response)
		VALUES ('delete', old.rowid, old.user_message, old.assistant_response);
	END`,

	`CREATE TRIGGER IF NOT EXISTS turns_au AFTER UPDATE ON turns BEGIN
		INSERT INTO turns_fts(turns_fts, rowid, user_message, assistant_response)
		VALUES ('delete', old.rowid, old.user_message, old.assistant_response);
		INSERT INTO turns_fts(rowid, user_message, assistant_response)
		VALUES (new.rowid, new.user_message, new.assistant_response);
	END`,
}

// migrate creates or updates the database schema to the latest version.
// All DDL uses IF NOT EXISTS, making migration idempotent.
func migrate(db *sql.DB) error {
	ctx := context.TODO()

	if _, err := db.ExecContext(ctx, "CREATE TABLE IF NOT EXISTS schema_version (version INTEGER PRIMARY KEY)"); err != nil {
		return fmt.Errorf("archive: create schema_version: %w", err)
	}

	var current int
	if err := db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&current); err != nil {
		return fmt.Errorf("archive: read schema version: %w", err)
	}
	if current >= schemaVersion {
		return nil
	}

	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("archive: migrate: %w\nstatement: %s", err, stmt)
		}
	}

	if _, err := db.ExecContext(ctx, "INSERT OR REPLACE INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("archive: record schema version: %w", err)
	}
	return nil
}
