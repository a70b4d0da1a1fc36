package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"agenticos/internal/logging"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

// DB is the SQLite database holding generated-app history and per-agent
// template and instruction selections.
type DB struct {
	db   *sql.DB
	path string
}

// Open opens (creating if needed) the database at path. ":memory:" is accepted.
func Open(path string) (*DB, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection serializes writers and keeps :memory: databases shared.
	db.SetMaxOpenConns(1)

	d := &DB{db: db, path: path}
	if err := d.initialize(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	logging.Store("database opened at %s", path)
	return d, nil
}

func (d *DB) initialize(ctx context.Context) error {
	pragmas := []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA journal_mode = WAL",
	}
	for _, p := range pragmas {
		if _, err := d.db.ExecContext(ctx, p); err != nil {
			logging.StoreDebug("pragma %q not applied: %v", p, err)
		}
	}

	historyTable := `
	CREATE TABLE IF NOT EXISTS app_history (
		id TEXT PRIMARY KEY,
		prompt TEXT NOT NULL,
		agent TEXT NOT NULL,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		html TEXT NOT NULL,
		css TEXT NOT NULL DEFAULT '',
		js TEXT NOT NULL DEFAULT '',
		provider TEXT NOT NULL DEFAULT '',
		model TEXT NOT NULL DEFAULT '',
		diagnostic INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_app_history_created ON app_history(created_at);
	`

	selectionTable := `
	CREATE TABLE IF NOT EXISTS agent_selections (
		agent TEXT PRIMARY KEY,
		template_id TEXT NOT NULL DEFAULT '',
		instruction_id TEXT NOT NULL DEFAULT '',
		updated_at INTEGER NOT NULL
	);
	`

	for _, stmt := range []string{historyTable, selectionTable} {
		if _, err := d.db.ExecContext(ctx, stmt); err != nil {
			logging.StoreError("schema init failed: %v", err)
			return fmt.Errorf("failed to initialize schema: %w", err)
		}
	}
	return nil
}

// Path returns the database file path.
func (d *DB) Path() string { return d.path }

// History returns the generated-app history.
func (d *DB) History() *History { return &History{db: d.db} }

// Selections returns the per-agent selection store.
func (d *DB) Selections() *Selections { return &Selections{db: d.db} }

// Close closes the database.
func (d *DB) Close() error { return d.db.Close() }
