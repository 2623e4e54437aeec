// Package store implements the embedded SQL substrate: schema
// migrations, FTS5 full-text search, and a manually-ranked vector
// table (the vendored sqlite driver has no vec0 extension, so
// "vector table" here means a BLOB column ranked by cosine similarity
// in Go — see SPEC_FULL.md §4.1). One *Store wraps one *sql.DB.
//
// Grounded on a prior internal/memory/backend/sqlitevec.Backend (the
// open/init/index/search shape) and a prior
// internal/infra.MigrationManager (the versioned-ladder idea),
// adapted from a JSON-file migration-state file to an in-database
// meta table per the persisted storage layout.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/therenovatio/teleton/internal/errkind"
)

// SchemaVersion is the current schema version string. The migration
// runner advances to exactly this version on a fresh database.
const SchemaVersion = "1.10.1"

// Store is the single transactional substrate for the agent. All
// writes are serialized through writeMu because sqlite allows only one
// writer at a time; reads may run concurrently.
type Store struct {
	db     *sql.DB
	writeMu sync.Mutex
	logger *slog.Logger

	embedDims int
}

// Option configures a Store at Open time.
type Option func(*Store)

// WithLogger attaches a logger; defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Open opens or creates the database at path, applies PRAGMAs
// recommended for a single-writer embedded workload (WAL journal mode,
// 64 MB cache, 256 MB mmap, foreign keys on), and runs migrations.
// Any migration failure is fatal: the caller must abort startup.
func Open(ctx context.Context, path string, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errkind.New(errkind.Storage, "open database", err)
	}
	// sqlite permits exactly one writer; cap the pool so the Go driver
	// never hands out two simultaneous connections that both think
	// they can write.
	db.SetMaxOpenConns(1)

	s := &Store{db: db, logger: slog.Default(), embedDims: 1536}
	for _, opt := range opts {
		opt(s)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA cache_size=-65536", // 64 MB, negative = KB
		"PRAGMA mmap_size=268435456", // 256 MB
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			db.Close()
			return nil, errkind.New(errkind.Storage, fmt.Sprintf("apply pragma %q", p), err)
		}
	}

	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, errkind.New(errkind.Schema, "migrate", err)
	}

	return s, nil
}

// DB exposes the underlying database handle, without restriction, to
// any caller.
func (s *Store) DB() *sql.DB { return s.db }

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// withWriteTx runs fn inside a transaction while holding the single
// writer lock, committing on success and rolling back on error or
// panic.
func (s *Store) withWriteTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errkind.New(errkind.Storage, "begin transaction", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return errkind.New(errkind.Storage, "commit transaction", err)
	}
	committed = true
	return nil
}

// now is overridable in tests.
var now = func() time.Time { return time.Now().UTC() }
