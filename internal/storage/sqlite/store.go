package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const (
	defaultPath = "data/crossarb.db"
)

// Store wraps a SQLite DB connection.
type Store struct {
	path string
	db   *sql.DB
}

// Open creates (if needed) and opens the SQLite database.
func Open(path string) (*Store, error) {
	if path == "" {
		path = defaultPath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure data dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := ensureWAL(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	return &Store{path: path, db: db}, nil
}

func ensureWAL(db *sql.DB) error {
	const (
		maxAttempts = 5
		delay       = 200 * time.Millisecond
	)
	for i := 0; i < maxAttempts; i++ {
		if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
			if strings.Contains(err.Error(), "database is locked") {
				time.Sleep(delay)
				continue
			}
			return err
		}
		return nil
	}
	return fmt.Errorf("database is locked after retries")
}

// Path returns the path backing the store.
func (s *Store) Path() string {
	return s.path
}

// Close closes the DB.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// CreateTables ensures the opportunities table exists.
func (s *Store) CreateTables(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schemaSQL)
	return err
}

// DropTables removes the opportunities table.
func (s *Store) DropTables(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DROP TABLE IF EXISTS opportunities;`)
	return err
}

// ClearTables deletes every stored opportunity.
func (s *Store) ClearTables(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM opportunities;`)
	return err
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS opportunities (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	batch_id TEXT NOT NULL,
	symbol TEXT NOT NULL,
	source TEXT,
	destination TEXT,
	equilibrium_quantity REAL NOT NULL,
	equilibrium_profit REAL NOT NULL,
	equilibrium_profit_rate REAL NOT NULL,
	equilibrium_ask_cost REAL NOT NULL,
	ask_cost_price REAL NOT NULL,
	middle_price REAL NOT NULL,
	fee REAL,
	network TEXT,
	captured_at INTEGER NOT NULL,
	recorded_at TEXT NOT NULL,
	record_hash TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS opportunities_symbol_idx ON opportunities(symbol, captured_at);
CREATE INDEX IF NOT EXISTS opportunities_batch_idx ON opportunities(batch_id);
`
