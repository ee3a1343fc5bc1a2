// Package history persists completed build reports and their block errors in
// SQLite.
package history

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS builds (
	id               TEXT PRIMARY KEY,
	started_at       DATETIME NOT NULL,
	finished_at      DATETIME NOT NULL,
	incremental      INTEGER NOT NULL DEFAULT 0,
	since            DATETIME,
	files_scanned    INTEGER NOT NULL DEFAULT 0,
	files_skipped    INTEGER NOT NULL DEFAULT 0,
	files_processed  INTEGER NOT NULL DEFAULT 0,
	files_failed     INTEGER NOT NULL DEFAULT 0,
	blocks_total     INTEGER NOT NULL DEFAULT 0,
	blocks_processed INTEGER NOT NULL DEFAULT 0,
	blocks_cached    INTEGER NOT NULL DEFAULT 0,
	blocks_failed    INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS build_errors (
	build_id      TEXT NOT NULL REFERENCES builds(id) ON DELETE CASCADE,
	seq           INTEGER NOT NULL,
	type          TEXT NOT NULL,
	message       TEXT NOT NULL DEFAULT '',
	file          TEXT NOT NULL DEFAULT '',
	line          INTEGER NOT NULL DEFAULT 0,
	lang          TEXT NOT NULL DEFAULT '',
	cause         TEXT NOT NULL DEFAULT '',
	suggestions   TEXT NOT NULL DEFAULT '[]',
	fallback_used TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (build_id, seq)
);

CREATE INDEX IF NOT EXISTS idx_builds_started ON builds(started_at);
`

// DB wraps a sql.DB with history operations.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("history: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("history: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("history: apply schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
