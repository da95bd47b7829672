// Package db opens the session archive database and runs migrations.
package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// Open opens the DB at path, creating the directory if needed, and
// runs migrations. WAL keeps the daemon's writes from blocking CLI
// readers.
func Open(path string) (*sql.DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	conn, err := sql.Open("sqlite3", path+"?_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, err
	}
	if err := migrate(conn); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	session_id TEXT PRIMARY KEY,
	started_at REAL NOT NULL,
	ended_at REAL NOT NULL,
	active_secs REAL NOT NULL DEFAULT 0,
	ship TEXT,
	cargo_capacity INTEGER NOT NULL DEFAULT 0,
	capacity_approx INTEGER NOT NULL DEFAULT 0,
	notes_json TEXT NOT NULL DEFAULT '[]',
	excerpt_sha256 TEXT
);

CREATE TABLE IF NOT EXISTS session_materials (
	session_id TEXT NOT NULL,
	material TEXT NOT NULL,
	tons REAL NOT NULL,
	tons_per_hour REAL NOT NULL,
	avg_pct REAL NOT NULL,
	best_pct REAL NOT NULL,
	hits INTEGER NOT NULL,
	sold INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (session_id, material),
	FOREIGN KEY (session_id) REFERENCES sessions(session_id)
);

CREATE TABLE IF NOT EXISTS prospector_samples (
	session_id TEXT NOT NULL,
	ts REAL NOT NULL,
	material TEXT NOT NULL,
	pct REAL NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_samples_session ON prospector_samples(session_id);

CREATE TABLE IF NOT EXISTS blobs (
	sha256 TEXT PRIMARY KEY,
	storage_path TEXT NOT NULL,
	byte_len INTEGER NOT NULL,
	compression TEXT NOT NULL,
	created_at REAL NOT NULL
);

CREATE TABLE IF NOT EXISTS import_dedup (dedup_hash TEXT PRIMARY KEY);

CREATE TABLE IF NOT EXISTS backup_published (
	session_id TEXT NOT NULL,
	vault_id TEXT NOT NULL,
	segment_id TEXT NOT NULL,
	published_at REAL NOT NULL,
	PRIMARY KEY (session_id, vault_id)
);
`

func migrate(conn *sql.DB) error {
	if _, err := conn.Exec(schema); err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}
	return nil
}
