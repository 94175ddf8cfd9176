package memory

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS memories (
	key        TEXT PRIMARY KEY,
	category   TEXT NOT NULL,
	session_id TEXT NOT NULL,
	content    TEXT NOT NULL,
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_memories_session ON memories(session_id, created_at);
`

// SQLiteMemory stores entries in a single sqlite file under the workspace.
type SQLiteMemory struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the memory database at path.
func OpenSQLite(path string) (*SQLiteMemory, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create memory dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open memory db: %w", err)
	}
	// modernc.org/sqlite serializes writers; a single connection avoids
	// SQLITE_BUSY under concurrent handler and worker writes.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init memory schema: %w", err)
	}
	return &SQLiteMemory{db: db}, nil
}

// Store upserts an entry by key.
func (m *SQLiteMemory) Store(ctx context.Context, entry Entry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	_, err := m.db.ExecContext(ctx, `
		INSERT INTO memories (key, category, session_id, content, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			category = excluded.category,
			session_id = excluded.session_id,
			content = excluded.content,
			created_at = excluded.created_at`,
		entry.Key, entry.Category, entry.SessionID, entry.Content,
		entry.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("store memory %q: %w", entry.Key, err)
	}
	return nil
}

// Recall returns the most recent entries for a session, newest first.
func (m *SQLiteMemory) Recall(ctx context.Context, sessionID string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := m.db.QueryContext(ctx, `
		SELECT key, category, session_id, content, created_at
		FROM memories WHERE session_id = ?
		ORDER BY created_at DESC LIMIT ?`, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("recall session %q: %w", sessionID, err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var createdAt string
		if err := rows.Scan(&e.Key, &e.Category, &e.SessionID, &e.Content, &createdAt); err != nil {
			return nil, fmt.Errorf("scan memory row: %w", err)
		}
		e.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Close releases the database handle.
func (m *SQLiteMemory) Close() error {
	return m.db.Close()
}
