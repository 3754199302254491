// Package sqlite opens the SQLite database that stores analysis sessions.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite" // SQLite driver
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

const pragmas = "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"

// DB is a SQLite handle with the schema applied.
type DB struct {
	*sql.DB
}

// Open opens the database at path, enables WAL mode and foreign keys, and
// creates missing tables.
func Open(ctx context.Context, path string) (*DB, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}

	dsn := path
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	dsn += sep + pragmas

	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if path == MemoryPath {
		// every connection would otherwise get its own empty database
		sqlDB.SetMaxOpenConns(1)
	} else if _, err := sqlDB.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("enable wal: %w", err)
	}

	if err := initSchema(ctx, sqlDB); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return &DB{DB: sqlDB}, nil
}

// Ping checks connectivity.
func (d *DB) Ping(ctx context.Context) error {
	return d.PingContext(ctx)
}

func initSchema(ctx context.Context, db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS documents (
	id TEXT PRIMARY KEY,
	external_id TEXT NOT NULL DEFAULT '',
	date TEXT NOT NULL DEFAULT '',
	theme TEXT NOT NULL DEFAULT '',
	text TEXT NOT NULL,
	created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_documents_date ON documents(date);
CREATE INDEX IF NOT EXISTS idx_documents_external_id ON documents(external_id);

CREATE TABLE IF NOT EXISTS sessions (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	algorithm TEXT NOT NULL,
	strategy TEXT NOT NULL,
	created_at TEXT NOT NULL,
	result_json TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS session_documents (
	session_id TEXT NOT NULL,
	position INTEGER NOT NULL,
	document_id TEXT NOT NULL,
	PRIMARY KEY(session_id, position),
	FOREIGN KEY(session_id) REFERENCES sessions(id) ON DELETE CASCADE,
	FOREIGN KEY(document_id) REFERENCES documents(id)
);

CREATE TABLE IF NOT EXISTS topic_results (
	session_id TEXT NOT NULL,
	topic_id INTEGER NOT NULL,
	name TEXT NOT NULL,
	category TEXT NOT NULL,
	keywords TEXT NOT NULL,
	document_count INTEGER NOT NULL,
	confidence REAL NOT NULL,
	PRIMARY KEY(session_id, topic_id),
	FOREIGN KEY(session_id) REFERENCES sessions(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS topic_documents (
	session_id TEXT NOT NULL,
	topic_id INTEGER NOT NULL,
	position INTEGER NOT NULL,
	confidence REAL NOT NULL,
	PRIMARY KEY(session_id, position),
	FOREIGN KEY(session_id, topic_id) REFERENCES topic_results(session_id, topic_id) ON DELETE CASCADE
);
`
	_, err := db.ExecContext(ctx, schema)
	return err
}
