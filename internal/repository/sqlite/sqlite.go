// Package sqlite implements the repository interfaces using SQLite as the storage backend.
//
// WHY modernc.org/sqlite INSTEAD OF github.com/mattn/go-sqlite3?
// mattn/go-sqlite3 uses CGo, which means you need a C compiler installed and
// cross-compilation becomes painful. modernc.org/sqlite is a pure Go
// translation of the SQLite C code, so it builds everywhere Go builds.
//
// DATABASE/SQL OVERVIEW:
//   - sql.DB      : a connection pool (NOT a single connection!)
//   - sql.Row     : a single result row
//   - sql.Rows    : multiple result rows (must be closed!)
//
// The pattern is always:
//  1. sql.Open(driverName, dataSourceName) → creates a pool
//  2. db.QueryContext / db.ExecContext     → runs queries
//  3. rows.Scan(&field1, &field2)          → reads results into Go variables
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	// The blank import registers the "sqlite" driver with database/sql at init time.
	_ "modernc.org/sqlite"
)

// MemoryPath opens a private in-memory database. Used by tests.
const MemoryPath = ":memory:"

// DB wraps a sql.DB connection pool and implements both
// repository.SnippetRepository and repository.UserRepository.
type DB struct {
	conn *sql.DB
}

// connPragmas run on every connection the pool opens. modernc.org/sqlite
// applies each _pragma query parameter when it dials, so a connection opened
// later under load gets the same settings as the first one.
//
//   - busy_timeout: writers wait up to 5s instead of failing with SQLITE_BUSY.
//   - foreign_keys: OFF by default in SQLite; snippets.owner_id depends on it.
const connPragmas = "_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"

// New opens the SQLite database at dbPath and runs migrations.
//
// dbPath examples:
//   - "data/snippets.db"  → file-based database (persistent, WAL mode)
//   - ":memory:"          → in-memory database (tests; lost on close)
//
// IN-MEMORY AND THE POOL:
// Every new connection to ":memory:" gets its OWN empty database. The pool is
// therefore pinned to a single connection for in-memory paths, otherwise the
// tables created by migrate() would vanish on the next connection.
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}
	if dbPath == MemoryPath {
		conn.SetMaxOpenConns(1)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	db := &DB{conn: conn}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the database connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// dsn appends the per-connection pragmas to dbPath. File databases also get
// WAL, which lets readers proceed while a write is in flight; the journal mode
// is stored in the file, so setting it on every dial is a no-op after the first.
func dsn(dbPath string) string {
	if dbPath == MemoryPath {
		return dbPath + "?" + connPragmas
	}
	return dbPath + "?" + connPragmas + "&_pragma=journal_mode(WAL)"
}

// PingContext reports whether the database is reachable. Used by the health endpoint.
func (db *DB) PingContext(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// migrate creates the schema. CREATE ... IF NOT EXISTS keeps it idempotent.
//
// users must exist before snippets because snippets.owner_id references it.
func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id            TEXT PRIMARY KEY,
			username      TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL DEFAULT '',
			github_id     INTEGER UNIQUE,
			created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_users_created_at ON users(created_at);
	`)
	if err != nil {
		return fmt.Errorf("creating users table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS snippets (
			id         TEXT PRIMARY KEY,
			title      TEXT NOT NULL DEFAULT '',
			code       TEXT NOT NULL,
			linenos    INTEGER NOT NULL DEFAULT 0,
			language   TEXT NOT NULL DEFAULT 'python',
			style      TEXT NOT NULL DEFAULT 'friendly',
			owner_id   TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_snippets_created_at ON snippets(created_at);
		CREATE INDEX IF NOT EXISTS idx_snippets_owner_id ON snippets(owner_id);
	`)
	if err != nil {
		return fmt.Errorf("creating snippets table: %w", err)
	}

	return nil
}

// limitClause turns ListOptions into SQLite's LIMIT/OFFSET arguments.
// SQLite treats a negative LIMIT as "no limit".
func limitClause(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = -1
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
