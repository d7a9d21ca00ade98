// Package archive mirrors completed conversation turns into a SQLite
// database with FTS5 full-text search. The file-per-item store remains
// the source of truth and the external contract; the archive exists to
// answer search queries from the gateway and the MCP server. It uses
// modernc.org/sqlite (pure Go, no CGO) with WAL mode.
package archive

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver registration
)

const defaultBusyTimeout = 5000 // milliseconds

// Entry is one archived conversation turn.
type Entry struct {
	ID                string    `json:"id"`
	SessionID         string    `json:"sessionId"`
	UserMessage       string    `json:"userMessage"`
	AssistantResponse string    `json:"assistantResponse"`
	CreatedAt         time.Time `json:"createdAt"`
}

// Archive is a SQLite-backed conversation index.
type Archive struct {
	db *sql.DB
}

// Open creates or opens the archive database at path. The database is
// created with WAL mode, a 5 s busy timeout, and a single connection
// (SQLite serialises writes). The schema is migrated automatically.
// Callers must Close the archive when done.
func Open(path string) (*Archive, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("archive: create directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("archive: open %s: %w", path, err)
	}

	db.SetMaxOpenConns(1)

	ctx := context.TODO()
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("archive: enable WAL: %w", err)
	}
	if _, err := db.ExecContext(ctx, fmt.Sprintf("PRAGMA busy_timeout=%d", defaultBusyTimeout)); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("archive: set busy_timeout: %w", err)
	}

	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Archive{db: db}, nil
}

// Close releases the database handle.
func (a *Archive) Close() error {
	return a.db.Close()
}

// IndexTurn stores or replaces one turn (FTS index maintained by
// triggers). Implements the queue processor's Archiver contract.
func (a *Archive) IndexTurn(ctx context.Context, itemID, sessionID, userMessage, assistantResponse string, at time.Time) error {
	if at.IsZero() {
		at = time.Now().UTC()
	}
	_, err := a.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO turns (id, session_id, user_message, assistant_response, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		itemID, sessionID, userMessage, assistantResponse,
		at.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("archive: index turn: %w", err)
	}
	return nil
}

// Search retrieves the top-K turns matching the query using FTS5.
func (a *Archive) Search(ctx context.Context, query string, topK int) ([]Entry, error) {
	if query == "" || topK <= 0 {
		return nil, nil
	}

	rows, err := a.db.QueryContext(ctx, `
		SELECT t.id, t.session_id, t.user_message, t.assistant_response, t.created_at
		FROM turns_fts
		JOIN turns t ON t.rowid = turns_fts.rowid
		WHERE turns_fts MATCH ?
		ORDER BY rank
		LIMIT ?`,
		query, topK,
	)
	if err != nil {
		return nil, fmt.Errorf("archive: search turns: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanEntries(rows)
}

// BySession retrieves a session's turns in chronological order.
func (a *Archive) BySession(ctx context.Context, sessionID string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := a.db.QueryContext(ctx, `
		SELECT id, session_id, user_message, assistant_response, created_at
		FROM turns
		WHERE session_id = ?
		ORDER BY created_at
		LIMIT ?`,
		sessionID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("archive: session turns: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanEntries(rows)
}

// Len returns the number of archived turns.
func (a *Archive) Len(ctx context.Context) (int, error) {
	var n int
	if err := a.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM turns").Scan(&n); err != nil {
		return 0, fmt.Errorf("archive: count turns: %w", err)
	}
	return n, nil
}

// Vacuum reclaims space; run from the maintenance scheduler.
func (a *Archive) Vacuum(ctx context.Context) error {
	if _, err := a.db.ExecContext(ctx, "VACUUM"); err != nil {
		return fmt.Errorf("archive: vacuum: %w", err)
	}
	return nil
}

func scanEntries(rows *sql.Rows) ([]Entry, error) {
	var entries []Entry
	for rows.Next() {
		var e Entry
		var createdAt string
		if err := rows.Scan(&e.ID, &e.SessionID, &e.UserMessage, &e.AssistantResponse, &createdAt); err != nil {
			return nil, fmt.Errorf("archive: scan turn: %w", err)
		}
		if ts, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
			e.CreatedAt = ts
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("archive: iterate turns: %w", err)
	}
	return entries, nil
}
