package store

import (
	"context"
	"database/sql"

	"github.com/therenovatio/teleton/internal/domain"
	"github.com/therenovatio/teleton/internal/errkind"
)

// GetCachedEmbedding returns a cached embedding for (hash, model,
// provider) and bumps its accessed_at, or sql.ErrNoRows if absent.
func (s *Store) GetCachedEmbedding(ctx context.Context, hash, model, provider string) ([]float32, error) {
	var blob []byte
	err := s.db.QueryRowContext(ctx, `SELECT embedding FROM embedding_cache
		WHERE hash = ? AND model = ? AND provider = ?`, hash, model, provider).Scan(&blob)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, errkind.New(errkind.Storage, "get cached embedding", err)
	}
	_ = s.withWriteTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `UPDATE embedding_cache SET accessed_at = ?
			WHERE hash = ? AND model = ? AND provider = ?`, now(), hash, model, provider)
		return err
	})
	return decodeEmbedding(blob), nil
}

// PutCachedEmbedding stores a computed embedding, replacing any
// existing entry for the same (hash, model, provider) key.
func (s *Store) PutCachedEmbedding(ctx context.Context, entry domain.EmbeddingCacheEntry) error {
	n := now()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = n
	}
	entry.AccessedAt = n
	return s.withWriteTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO embedding_cache
			(hash, model, provider, embedding, dims, created_at, accessed_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(hash, model, provider) DO UPDATE SET
				embedding = excluded.embedding, dims = excluded.dims, accessed_at = excluded.accessed_at`,
			entry.Hash, entry.Model, entry.Provider, encodeEmbedding(entry.Embedding),
			len(entry.Embedding), entry.CreatedAt, entry.AccessedAt)
		return err
	})
}

// EvictLRUEmbeddings deletes the least-recently-accessed cache
// entries until at most maxEntries remain, returning the number
// removed.
func (s *Store) EvictLRUEmbeddings(ctx context.Context, maxEntries int) (int, error) {
	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM embedding_cache`).Scan(&total); err != nil {
		return 0, errkind.New(errkind.Storage, "count embedding cache", err)
	}
	if total <= maxEntries {
		return 0, nil
	}
	toRemove := total - maxEntries
	err := s.withWriteTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `DELETE FROM embedding_cache WHERE rowid IN (
			SELECT rowid FROM embedding_cache ORDER BY accessed_at ASC LIMIT ?)`, toRemove)
		return err
	})
	if err != nil {
		return 0, errkind.New(errkind.Storage, "evict embedding cache", err)
	}
	return toRemove, nil
}
