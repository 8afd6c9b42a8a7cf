// Package ledger records sync runs in SQLite. The last successful run
// provides the updatedAfter cursor of incremental runs.
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS runs (
	id                TEXT PRIMARY KEY,
	started_at        TEXT NOT NULL,
	finished_at       TEXT NOT NULL,
	deck              TEXT NOT NULL,
	mode              TEXT NOT NULL,
	updated_after     TEXT NOT NULL DEFAULT '',
	status            TEXT NOT NULL,
	error             TEXT NOT NULL DEFAULT '',
	snapshot_checksum TEXT NOT NULL DEFAULT '',
	report            TEXT NOT NULL DEFAULT '{}'
);

CREATE INDEX IF NOT EXISTS idx_runs_deck_status ON runs(deck, status, started_at);
CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
`

// RunLog is the ledger as seen by the application.
type RunLog interface {
	Record(ctx context.Context, r Run) (string, error)
	LastSuccessful(ctx context.Context, deck string) (*Run, error)
	Recent(ctx context.Context, limit int) ([]Run, error)
	Close() error
}

// Verify *DB satisfies RunLog at compile time.
var _ RunLog = (*DB)(nil)

// DB wraps the ledger database.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the ledger at path and applies the schema.
func Open(path string) (*DB, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("ledger: mkdir: %w", err)
		}
	}
	conn, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("ledger: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ledger: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ledger: apply schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
