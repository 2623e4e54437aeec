package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/therenovatio/teleton/internal/errkind"
)

// migrationStep is one entry in the version ladder. Each step must be
// safe to re-run (IF NOT EXISTS / guarded ALTER TABLE), per spec's
// idempotence requirement.
type migrationStep struct {
	version string
	apply   func(ctx context.Context, tx *sql.Tx) error
}

// migrate applies every pending step in order inside one transaction
// per step, then records SchemaVersion in meta. Re-running migrate is
// a no-op once the database is at SchemaVersion.
func (s *Store) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`); err != nil {
		return fmt.Errorf("create meta table: %w", err)
	}

	current, err := s.metaGet(ctx, "schema_version")
	if err != nil {
		return err
	}

	applied := false
	for _, step := range migrationSteps {
		if current != "" && !versionLess(current, step.version) {
			continue
		}
		err := s.withWriteTx(ctx, func(tx *sql.Tx) error {
			if err := step.apply(ctx, tx); err != nil {
				return fmt.Errorf("migration %s: %w", step.version, err)
			}
			return nil
		})
		if err != nil {
			return err
		}
		current = step.version
		applied = true
	}

	if applied || current == "" {
		if err := s.metaSet(ctx, "schema_version", SchemaVersion); err != nil {
			return err
		}
	}
	return nil
}

// versionLess compares two "a.b.c" version strings lexicographically
// by numeric component. Only used internally for the fixed, known
// ladder below, so a simple component walk is sufficient.
func versionLess(a, b string) bool {
	pa, pb := splitVersion(a), splitVersion(b)
	for i := 0; i < len(pa) && i < len(pb); i++ {
		if pa[i] != pb[i] {
			return pa[i] < pb[i]
		}
	}
	return len(pa) < len(pb)
}

func splitVersion(v string) []int {
	var out []int
	cur := 0
	started := false
	for _, r := range v {
		if r >= '0' && r <= '9' {
			cur = cur*10 + int(r-'0')
			started = true
			continue
		}
		if r == '.' {
			out = append(out, cur)
			cur = 0
			started = false
			continue
		}
	}
	if started || len(out) == 0 {
		out = append(out, cur)
	}
	return out
}

func (s *Store) metaGet(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", errkind.New(errkind.Storage, "read meta", err)
	}
	return value, nil
}

func (s *Store) metaSet(ctx context.Context, key, value string) error {
	return s.withWriteTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO meta (key, value, updated_at) VALUES (?, ?, datetime('now'))
			ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`, key, value)
		return err
	})
}

// migrationSteps is the schema version ladder, 1.1.0 through 1.10.1.
// Each step's DDL uses IF NOT EXISTS so re-running the whole ladder
// against an already-current database is a no-op.
var migrationSteps = []migrationStep{
	{version: "1.1.0", apply: migrateCore},
	{version: "1.2.0", apply: migrateKnowledge},
	{version: "1.3.0", apply: migrateSessions},
	{version: "1.4.0", apply: migrateMessages},
	{version: "1.5.0", apply: migrateEmbeddingCache},
	{version: "1.6.0", apply: migrateTools},
	{version: "1.7.0", apply: migrateGroupModules},
	{version: "1.8.0", apply: migrateCron},
	{version: "1.9.0", apply: migrateTasks},
	{version: "1.10.0", apply: migrateToolIndex},
	{version: "1.10.1", apply: migrateKnowledgeIndexes},
}

func migrateCore(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`)
	return err
}

func migrateKnowledge(ctx context.Context, tx *sql.Tx) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS knowledge (
			id TEXT PRIMARY KEY,
			source TEXT NOT NULL,
			path TEXT,
			text TEXT NOT NULL,
			embedding BLOB,
			hash TEXT NOT NULL,
			start_line INTEGER,
			end_line INTEGER,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_knowledge_hash ON knowledge(hash)`,
		`CREATE VIRTUAL TABLE IF NOT EXISTS knowledge_fts USING fts5(
			text, content='knowledge', content_rowid='rowid'
		)`,
		`CREATE TABLE IF NOT EXISTS knowledge_vec (
			id TEXT PRIMARY KEY,
			dims INTEGER NOT NULL,
			embedding BLOB NOT NULL
		)`,
		`CREATE TRIGGER IF NOT EXISTS knowledge_ai AFTER INSERT ON knowledge BEGIN
			INSERT INTO knowledge_fts(rowid, text) VALUES (new.rowid, new.text);
		END`,
		`CREATE TRIGGER IF NOT EXISTS knowledge_ad AFTER DELETE ON knowledge BEGIN
			INSERT INTO knowledge_fts(knowledge_fts, rowid, text) VALUES('delete', old.rowid, old.text);
		END`,
		`CREATE TRIGGER IF NOT EXISTS knowledge_au AFTER UPDATE ON knowledge BEGIN
			INSERT INTO knowledge_fts(knowledge_fts, rowid, text) VALUES('delete', old.rowid, old.text);
			INSERT INTO knowledge_fts(rowid, text) VALUES (new.rowid, new.text);
		END`,
	}
	return execAll(ctx, tx, stmts)
}

func migrateSessions(ctx context.Context, tx *sql.Tx) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			chat_id TEXT NOT NULL UNIQUE,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			message_count INTEGER NOT NULL DEFAULT 0,
			context_tokens INTEGER NOT NULL DEFAULT 0,
			model TEXT,
			provider TEXT,
			last_reset_date TEXT,
			summary TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_chat ON sessions(chat_id)`,
	}
	return execAll(ctx, tx, stmts)
}

func migrateMessages(ctx context.Context, tx *sql.Tx) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS tg_messages (
			id TEXT PRIMARY KEY,
			chat_id TEXT NOT NULL,
			sender_id TEXT,
			role TEXT NOT NULL,
			text TEXT NOT NULL,
			tool_calls TEXT,
			tool_result_for TEXT,
			embedding BLOB,
			timestamp TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_tg_messages_chat_ts ON tg_messages(chat_id, timestamp)`,
		`CREATE VIRTUAL TABLE IF NOT EXISTS tg_messages_fts USING fts5(
			text, content='tg_messages', content_rowid='rowid'
		)`,
		`CREATE TABLE IF NOT EXISTS tg_messages_vec (
			id TEXT PRIMARY KEY,
			dims INTEGER NOT NULL,
			embedding BLOB NOT NULL
		)`,
		`CREATE TRIGGER IF NOT EXISTS tg_messages_ai AFTER INSERT ON tg_messages BEGIN
			INSERT INTO tg_messages_fts(rowid, text) VALUES (new.rowid, new.text);
		END`,
		`CREATE TRIGGER IF NOT EXISTS tg_messages_ad AFTER DELETE ON tg_messages BEGIN
			INSERT INTO tg_messages_fts(tg_messages_fts, rowid, text) VALUES('delete', old.rowid, old.text);
		END`,
	}
	return execAll(ctx, tx, stmts)
}

func migrateEmbeddingCache(ctx context.Context, tx *sql.Tx) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS embedding_cache (
			hash TEXT NOT NULL,
			model TEXT NOT NULL,
			provider TEXT NOT NULL,
			embedding BLOB NOT NULL,
			dims INTEGER NOT NULL,
			created_at TEXT NOT NULL,
			accessed_at TEXT NOT NULL,
			PRIMARY KEY (hash, model, provider)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_embedding_cache_accessed ON embedding_cache(accessed_at)`,
	}
	return execAll(ctx, tx, stmts)
}

func migrateTools(ctx context.Context, tx *sql.Tx) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS tool_config (
			tool_name TEXT PRIMARY KEY,
			enabled INTEGER NOT NULL DEFAULT 1,
			scope TEXT,
			updated_at TEXT NOT NULL,
			updated_by TEXT
		)`,
	}
	return execAll(ctx, tx, stmts)
}

func migrateGroupModules(ctx context.Context, tx *sql.Tx) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS group_modules (
			chat_id TEXT NOT NULL,
			module TEXT NOT NULL,
			level TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			PRIMARY KEY (chat_id, module)
		)`,
	}
	return execAll(ctx, tx, stmts)
}

func migrateCron(ctx context.Context, tx *sql.Tx) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS _cron_jobs (
			id TEXT PRIMARY KEY,
			interval_ms INTEGER NOT NULL,
			run_missed INTEGER NOT NULL DEFAULT 0,
			last_run_at TEXT
		)`,
	}
	return execAll(ctx, tx, stmts)
}

func migrateTasks(ctx context.Context, tx *sql.Tx) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS tasks (
			id TEXT PRIMARY KEY,
			description TEXT NOT NULL,
			status TEXT NOT NULL,
			priority INTEGER NOT NULL DEFAULT 0,
			created_by TEXT,
			scheduled_for TEXT,
			payload TEXT,
			result TEXT,
			error TEXT,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS task_dependencies (
			task_id TEXT NOT NULL,
			depends_on TEXT NOT NULL,
			PRIMARY KEY (task_id, depends_on),
			FOREIGN KEY (task_id) REFERENCES tasks(id) ON DELETE CASCADE,
			FOREIGN KEY (depends_on) REFERENCES tasks(id) ON DELETE CASCADE
		)`,
	}
	return execAll(ctx, tx, stmts)
}

func migrateToolIndex(ctx context.Context, tx *sql.Tx) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS tool_index (
			name TEXT PRIMARY KEY,
			description TEXT NOT NULL
		)`,
		`CREATE VIRTUAL TABLE IF NOT EXISTS tool_index_fts USING fts5(
			name, description, content='tool_index', content_rowid='rowid'
		)`,
		`CREATE TABLE IF NOT EXISTS tool_index_vec (
			name TEXT PRIMARY KEY,
			dims INTEGER NOT NULL,
			embedding BLOB NOT NULL
		)`,
		`CREATE TRIGGER IF NOT EXISTS tool_index_ai AFTER INSERT ON tool_index BEGIN
			INSERT INTO tool_index_fts(rowid, name, description) VALUES (new.rowid, new.name, new.description);
		END`,
		`CREATE TRIGGER IF NOT EXISTS tool_index_ad AFTER DELETE ON tool_index BEGIN
			INSERT INTO tool_index_fts(tool_index_fts, rowid, name, description) VALUES('delete', old.rowid, old.name, old.description);
		END`,
		`CREATE TRIGGER IF NOT EXISTS tool_index_au AFTER UPDATE ON tool_index BEGIN
			INSERT INTO tool_index_fts(tool_index_fts, rowid, name, description) VALUES('delete', old.rowid, old.name, old.description);
			INSERT INTO tool_index_fts(rowid, name, description) VALUES (new.rowid, new.name, new.description);
		END`,
	}
	return execAll(ctx, tx, stmts)
}

func migrateKnowledgeIndexes(ctx context.Context, tx *sql.Tx) error {
	stmts := []string{
		`CREATE INDEX IF NOT EXISTS idx_knowledge_source ON knowledge(source)`,
	}
	return execAll(ctx, tx, stmts)
}

func execAll(ctx context.Context, tx *sql.Tx, stmts []string) error {
	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt, err)
		}
	}
	return nil
}
