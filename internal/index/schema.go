// Package index provides the SQLite-backed catalog of converted books with
// optional FTS5 full-text search.
package index

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const coreSchemaSQL = `
CREATE TABLE IF NOT EXISTS books (
	id            TEXT PRIMARY KEY,
	title         TEXT NOT NULL DEFAULT '',
	title_kana    TEXT NOT NULL DEFAULT '',
	subtitle      TEXT NOT NULL DEFAULT '',
	authors       TEXT NOT NULL DEFAULT '',
	checksum      TEXT NOT NULL DEFAULT '',
	warning_count INTEGER NOT NULL DEFAULT 0,
	meta          TEXT NOT NULL DEFAULT '{}',
	body          TEXT NOT NULL DEFAULT '',
	converted_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS authors (
	id        TEXT PRIMARY KEY,
	name      TEXT NOT NULL DEFAULT '',
	name_kana TEXT NOT NULL DEFAULT '',
	copyright INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS book_authors (
	book_id   TEXT NOT NULL REFERENCES books(id) ON DELETE CASCADE,
	author_id TEXT NOT NULL,
	role      TEXT NOT NULL DEFAULT '',
	UNIQUE(book_id, author_id)
);

CREATE TABLE IF NOT EXISTS warnings (
	book_id TEXT NOT NULL REFERENCES books(id) ON DELETE CASCADE,
	kind    TEXT NOT NULL,
	section TEXT NOT NULL,
	line    INTEGER NOT NULL,
	detail  TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS failures (
	book_id   TEXT PRIMARY KEY,
	kind      TEXT NOT NULL,
	message   TEXT NOT NULL DEFAULT '',
	failed_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_book_authors_author ON book_authors(author_id);
CREATE INDEX IF NOT EXISTS idx_warnings_book ON warnings(book_id);
`

// DB wraps a sql.DB with catalog-specific operations.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("index: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: ping: %w", err)
	}
	if _, err := conn.Exec(coreSchemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: apply core schema: %w", err)
	}
	if err := initFTS(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: apply fts schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
