package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

const (
	// dirPermissions is the permission mode for the database directory.
	dirPermissions = 0750

	// filePermissions is the permission mode for the database file.
	filePermissions = 0600

	// msPerSecond converts seconds to milliseconds.
	msPerSecond = 1000

	// queryTimeout bounds every statement.
	queryTimeout = 5 * time.Second
)

const schema = `CREATE TABLE IF NOT EXISTS settings (
	ns         TEXT NOT NULL,
	key        TEXT NOT NULL,
	value      BLOB NOT NULL,
	updated_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ', 'now')),
	PRIMARY KEY (ns, key)
)`

// SQLiteConfig configures a SQLiteBackend.
type SQLiteConfig struct {
	// Path is the database file. Its directory is created if needed.
	Path string

	// WALMode enables Write-Ahead Logging.
	WALMode bool

	// BusyTimeout is the maximum time to wait for a database lock (seconds).
	BusyTimeout int
}

// SQLiteBackend stores namespaces in a SQLite table.
type SQLiteBackend struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the database and its schema.
func OpenSQLite(cfg SQLiteConfig) (*SQLiteBackend, error) {
	dir := filepath.Dir(cfg.Path)
	if err := os.MkdirAll(dir, dirPermissions); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	connStr := fmt.Sprintf("file:%s?_busy_timeout=%d&_foreign_keys=on",
		cfg.Path,
		cfg.BusyTimeout*msPerSecond,
	)
	if cfg.WALMode {
		connStr += "&_journal_mode=WAL&_synchronous=NORMAL"
	}

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// SQLite only supports one writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	_ = os.Chmod(cfg.Path, filePermissions) //nolint:errcheck // Best effort

	return &SQLiteBackend{db: db}, nil
}

// Read returns every key of the namespace.
func (s *SQLiteBackend) Read(ns string) (map[string][]byte, error) {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, "SELECT key, value FROM settings WHERE ns = ?", ns)
	if err != nil {
		return nil, fmt.Errorf("querying settings: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]byte)
	for rows.Next() {
		var key string
		var value []byte
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("scanning settings: %w", err)
		}
		out[key] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating settings: %w", err)
	}
	return out, nil
}

// Write applies set and del in one transaction.
func (s *SQLiteBackend) Write(ns string, set map[string][]byte, del []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // No-op after commit

	for _, k := range del {
		if _, err := tx.ExecContext(ctx, "DELETE FROM settings WHERE ns = ? AND key = ?", ns, k); err != nil {
			return fmt.Errorf("deleting %s/%s: %w", ns, k, err)
		}
	}
	for k, v := range set {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO settings (ns, key, value) VALUES (?, ?, ?)
			 ON CONFLICT (ns, key) DO UPDATE SET
			   value = excluded.value,
			   updated_at = strftime('%Y-%m-%dT%H:%M:%fZ', 'now')`,
			ns, k, v,
		)
		if err != nil {
			return fmt.Errorf("writing %s/%s: %w", ns, k, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing settings: %w", err)
	}
	return nil
}

// Drop removes every key of the namespace.
func (s *SQLiteBackend) Drop(ns string) error {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	if _, err := s.db.ExecContext(ctx, "DELETE FROM settings WHERE ns = ?", ns); err != nil {
		return fmt.Errorf("dropping %s: %w", ns, err)
	}
	return nil
}

// Close closes the database.
func (s *SQLiteBackend) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("closing database: %w", err)
	}
	return nil
}

// Compile-time interface satisfaction check.
var _ Backend = (*SQLiteBackend)(nil)
