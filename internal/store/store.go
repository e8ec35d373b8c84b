// Package store provides the SQLite persistence handle used by the endpoint
// emulator, with per-module versioned migrations.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"

	"github.com/HerbHall/welfaredesk/pkg/plugin"
	_ "modernc.org/sqlite" // Pure-Go SQLite driver
)

// Compile-time interface guard.
var _ plugin.Store = (*SQLiteStore)(nil)

// SQLiteStore implements plugin.Store backed by modernc.org/sqlite.
type SQLiteStore struct {
	db     *sql.DB
	path   string
	mu     sync.Mutex // Serialize migrations
	once   sync.Once
	schErr error
}

// New opens (or creates) a SQLite database at path. ":memory:" opens a
// private in-memory database.
func New(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %q: %w", path, err)
	}

	// One connection: required for :memory: and keeps writers serialized.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite %q: %w", path, err)
	}

	// modernc.org/sqlite takes pragmas as statements, not DSN params.
	pragmas := []string{
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	}
	if !isMemory(path) {
		pragmas = append(pragmas, "PRAGMA journal_mode=WAL", "PRAGMA synchronous=NORMAL")
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("exec %q: %w", p, err)
		}
	}

	return &SQLiteStore{db: db, path: path}, nil
}

func isMemory(path string) bool {
	return path == ":memory:" || strings.Contains(path, "mode=memory")
}

// DB returns the underlying *sql.DB.
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

// Path returns the database path the store was opened with.
func (s *SQLiteStore) Path() string {
	return s.path
}

// Tx runs fn in a transaction, committing on nil and rolling back otherwise.
func (s *SQLiteStore) Tx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback failed: %v (original: %w)", rbErr, err)
		}
		return err
	}

	return tx.Commit()
}

// Migrate applies the module's pending migrations in order. Applied versions
// are tracked in the shared _migrations table and skipped on later runs.
func (s *SQLiteStore) Migrate(ctx context.Context, module string, migrations []plugin.Migration) error {
	if err := s.ensureMigrationsTable(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	last := 0
	for _, m := range migrations {
		if m.Version <= last {
			return fmt.Errorf("migration %s/%d: versions must be ascending", module, m.Version)
		}
		last = m.Version

		applied, err := s.isMigrationApplied(ctx, module, m.Version)
		if err != nil {
			return err
		}
		if applied {
			continue
		}
		if err := s.applyMigration(ctx, module, m); err != nil {
			return fmt.Errorf("migration %s/%d (%s): %w", module, m.Version, m.Description, err)
		}
	}
	return nil
}

// Checkpoint flushes the WAL into the main database file.
func (s *SQLiteStore) Checkpoint(ctx context.Context) error {
	if isMemory(s.path) {
		return nil
	}
	_, err := s.db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)")
	return err
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) ensureMigrationsTable(ctx context.Context) error {
	s.once.Do(func() {
		_, s.schErr = s.db.ExecContext(ctx, `
			CREATE TABLE IF NOT EXISTS _migrations (
				module      TEXT     NOT NULL,
				version     INTEGER  NOT NULL,
				description TEXT     NOT NULL,
				applied_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
				PRIMARY KEY (module, version)
			)
		`)
	})
	return s.schErr
}

func (s *SQLiteStore) isMigrationApplied(ctx context.Context, module string, version int) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM _migrations WHERE module = ? AND version = ?",
		module, version,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check migration %s/%d: %w", module, version, err)
	}
	return count > 0, nil
}

func (s *SQLiteStore) applyMigration(ctx context.Context, module string, m plugin.Migration) error {
	return s.Tx(ctx, func(tx *sql.Tx) error {
		if err := m.Up(tx); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx,
			"INSERT INTO _migrations (module, version, description) VALUES (?, ?, ?)",
			module, m.Version, m.Description,
		)
		return err
	})
}
