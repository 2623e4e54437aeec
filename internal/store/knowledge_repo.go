package store

import (
	"context"
	"database/sql"
	"math"

	"github.com/therenovatio/teleton/internal/domain"
	"github.com/therenovatio/teleton/internal/errkind"
)

// hybridWeightVector and hybridWeightKeyword set the blend between
// semantic and BM25 keyword scores in merged retrieval. Matches the
// 0.6/0.4 split used by every *_vec + *_fts pairing in this package.
const (
	hybridWeightVector  = 0.6
	hybridWeightKeyword = 0.4
)

// IngestKnowledge inserts a chunk if its hash is not already present,
// keeping ingestion idempotent across repeated runs over the same
// source text. Returns the chunk's final ID and whether it was newly
// inserted.
func (s *Store) IngestKnowledge(ctx context.Context, chunk domain.KnowledgeChunk) (id string, inserted bool, err error) {
	var existing string
	err = s.db.QueryRowContext(ctx, `SELECT id FROM knowledge WHERE hash = ?`, chunk.Hash).Scan(&existing)
	if err == nil {
		return existing, false, nil
	}
	if err != sql.ErrNoRows {
		return "", false, errkind.New(errkind.Storage, "lookup knowledge hash", err)
	}

	if chunk.ID == "" {
		chunk.ID = newID()
	}
	n := now()
	if chunk.CreatedAt.IsZero() {
		chunk.CreatedAt = n
	}
	chunk.UpdatedAt = n

	err = s.withWriteTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO knowledge
			(id, source, path, text, embedding, hash, start_line, end_line, created_at, updated_at)
			VALUES (?, ?, ?, ?, NULL, ?, ?, ?, ?, ?)`,
			chunk.ID, string(chunk.Source), chunk.Path, chunk.Text, chunk.Hash,
			chunk.StartLine, chunk.EndLine, chunk.CreatedAt, chunk.UpdatedAt)
		if err != nil {
			return err
		}
		if len(chunk.Embedding) == 0 {
			return nil
		}
		return s.upsertKnowledgeVecLocked(ctx, tx, chunk.ID, chunk.Embedding)
	})
	if err != nil {
		return "", false, errkind.New(errkind.Storage, "ingest knowledge", err)
	}
	return chunk.ID, true, nil
}

// upsertKnowledgeVecLocked writes (or rewrites) a chunk's embedding,
// rebuilding the knowledge_vec table if the embedding dimension has
// changed since the last write, per the store's fixed-dimension
// invariant (all rows in one *_vec table share one dims value).
func (s *Store) upsertKnowledgeVecLocked(ctx context.Context, tx *sql.Tx, id string, emb []float32) error {
	if err := ensureVecDims(ctx, tx, "knowledge_vec", len(emb)); err != nil {
		return err
	}
	_, err := tx.ExecContext(ctx, `INSERT INTO knowledge_vec (id, dims, embedding) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET dims = excluded.dims, embedding = excluded.embedding`,
		id, len(emb), encodeEmbedding(emb))
	return err
}

// ensureVecDims drops and recreates table if its existing rows carry a
// different embedding dimension than newDims, so a provider/model
// switch with a different embedding size never mixes incompatible
// vectors in one table.
func ensureVecDims(ctx context.Context, tx *sql.Tx, table string, newDims int) error {
	var existing int
	err := tx.QueryRowContext(ctx, `SELECT dims FROM `+table+` LIMIT 1`).Scan(&existing)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return err
	}
	if existing == newDims {
		return nil
	}
	_, err = tx.ExecContext(ctx, `DELETE FROM `+table)
	return err
}

// SearchKnowledge runs a hybrid vector+keyword search over the
// knowledge table and returns the top limit chunks scoring at or
// above minScore. queryEmbedding may be nil, in which case only the
// keyword channel contributes.
func (s *Store) SearchKnowledge(ctx context.Context, query string, queryEmbedding []float32, limit int, minScore float32) ([]domain.KnowledgeChunk, error) {
	scores := map[string]float32{}

	if len(queryEmbedding) > 0 {
		rows, err := s.db.QueryContext(ctx, `SELECT id, embedding FROM knowledge_vec`)
		if err != nil {
			return nil, errkind.New(errkind.Storage, "query knowledge_vec", err)
		}
		for rows.Next() {
			var id string
			var blob []byte
			if err := rows.Scan(&id, &blob); err != nil {
				rows.Close()
				return nil, errkind.New(errkind.Storage, "scan knowledge_vec", err)
			}
			sim := cosineSimilarity(queryEmbedding, decodeEmbedding(blob))
			scores[id] += hybridWeightVector * sim
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return nil, errkind.New(errkind.Storage, "iterate knowledge_vec", err)
		}
	}

	if query != "" {
		rows, err := s.db.QueryContext(ctx, `SELECT k.id, bm25(knowledge_fts) FROM knowledge_fts
			JOIN knowledge k ON k.rowid = knowledge_fts.rowid
			WHERE knowledge_fts MATCH ? LIMIT 200`, query)
		if err != nil {
			return nil, errkind.New(errkind.Storage, "query knowledge_fts", err)
		}
		type hit struct {
			id    string
			bm25  float64
		}
		var hits []hit
		for rows.Next() {
			var id string
			var bm25 float64
			if err := rows.Scan(&id, &bm25); err != nil {
				rows.Close()
				return nil, errkind.New(errkind.Storage, "scan knowledge_fts", err)
			}
			hits = append(hits, hit{id, bm25})
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return nil, errkind.New(errkind.Storage, "iterate knowledge_fts", err)
		}
		// bm25() is more negative for better matches; 1/(1+exp(rank))
		// maps it into (0,1).
		for _, h := range hits {
			norm := float32(1 / (1 + math.Exp(h.bm25)))
			scores[h.id] += hybridWeightKeyword * norm
		}
	}

	var ranked []scoredID
	for id, score := range scores {
		if score >= minScore {
			ranked = append(ranked, scoredID{ID: id, Score: score})
		}
	}
	ranked = topKByScore(ranked, limit)

	chunks := make([]domain.KnowledgeChunk, 0, len(ranked))
	for _, r := range ranked {
		c, err := s.getKnowledgeByID(ctx, r.ID)
		if err != nil {
			continue
		}
		chunks = append(chunks, c)
	}
	return chunks, nil
}

func (s *Store) getKnowledgeByID(ctx context.Context, id string) (domain.KnowledgeChunk, error) {
	var c domain.KnowledgeChunk
	var source string
	err := s.db.QueryRowContext(ctx, `SELECT id, source, path, text, hash, start_line, end_line,
		created_at, updated_at FROM knowledge WHERE id = ?`, id).Scan(
		&c.ID, &source, &c.Path, &c.Text, &c.Hash, &c.StartLine, &c.EndLine, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return domain.KnowledgeChunk{}, errkind.New(errkind.Storage, "get knowledge", err)
	}
	c.Source = domain.KnowledgeSource(source)
	return c, nil
}

// DeleteKnowledge removes a chunk and its vector row.
func (s *Store) DeleteKnowledge(ctx context.Context, id string) error {
	return s.withWriteTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM knowledge_vec WHERE id = ?`, id); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `DELETE FROM knowledge WHERE id = ?`, id)
		return err
	})
}

// CountKnowledge reports the total number of ingested chunks.
func (s *Store) CountKnowledge(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM knowledge`).Scan(&n)
	if err != nil {
		return 0, errkind.New(errkind.Storage, "count knowledge", err)
	}
	return n, nil
}
