package store

import (
	"context"
	"database/sql"
	"math"

	"github.com/therenovatio/teleton/internal/errkind"
)

// IndexTool writes (or rewrites) the searchable entry and embedding
// for one tool. Called by toolindex.Reindex once per definition.
func (s *Store) IndexTool(ctx context.Context, name, description string, embedding []float32) error {
	return s.withWriteTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO tool_index (name, description) VALUES (?, ?)
			ON CONFLICT(name) DO UPDATE SET description = excluded.description`, name, description)
		if err != nil {
			return err
		}
		if len(embedding) == 0 {
			return nil
		}
		if err := ensureVecDims(ctx, tx, "tool_index_vec", len(embedding)); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `INSERT INTO tool_index_vec (name, dims, embedding) VALUES (?, ?, ?)
			ON CONFLICT(name) DO UPDATE SET dims = excluded.dims, embedding = excluded.embedding`,
			name, len(embedding), encodeEmbedding(embedding))
		return err
	})
}

// UnindexTool removes a tool's searchable entry (toolindex.Remove), so
// the tool no longer surfaces in search results.
func (s *Store) UnindexTool(ctx context.Context, name string) error {
	return s.withWriteTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM tool_index_vec WHERE name = ?`, name); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `DELETE FROM tool_index WHERE name = ?`, name)
		return err
	})
}

// ToolHit is a ranked tool-search result, name plus its merged score.
type ToolHit struct {
	Name  string
	Score float32
}

// SearchTools runs the same hybrid vector+keyword scheme as
// SearchKnowledge, tuned for the tool catalog's lower default
// threshold (tool descriptions are short, so BM25 scores run noisier
// than prose knowledge chunks).
func (s *Store) SearchTools(ctx context.Context, query string, queryEmbedding []float32, limit int, minScore float32) ([]ToolHit, error) {
	scores := map[string]float32{}

	if len(queryEmbedding) > 0 {
		rows, err := s.db.QueryContext(ctx, `SELECT name, embedding FROM tool_index_vec`)
		if err != nil {
			return nil, errkind.New(errkind.Storage, "query tool_index_vec", err)
		}
		for rows.Next() {
			var name string
			var blob []byte
			if err := rows.Scan(&name, &blob); err != nil {
				rows.Close()
				return nil, errkind.New(errkind.Storage, "scan tool_index_vec", err)
			}
			sim := cosineSimilarity(queryEmbedding, decodeEmbedding(blob))
			scores[name] += hybridWeightVector * sim
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return nil, errkind.New(errkind.Storage, "iterate tool_index_vec", err)
		}
	}

	if query != "" {
		rows, err := s.db.QueryContext(ctx, `SELECT t.name, bm25(tool_index_fts) FROM tool_index_fts
			JOIN tool_index t ON t.rowid = tool_index_fts.rowid
			WHERE tool_index_fts MATCH ? LIMIT 200`, query)
		if err != nil {
			return nil, errkind.New(errkind.Storage, "query tool_index_fts", err)
		}
		type hit struct {
			name string
			bm25 float64
		}
		var hits []hit
		for rows.Next() {
			var name string
			var bm25 float64
			if err := rows.Scan(&name, &bm25); err != nil {
				rows.Close()
				return nil, errkind.New(errkind.Storage, "scan tool_index_fts", err)
			}
			hits = append(hits, hit{name, bm25})
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return nil, errkind.New(errkind.Storage, "iterate tool_index_fts", err)
		}
		// bm25() is more negative for better matches; 1/(1+exp(rank))
		// maps it into (0,1).
		for _, h := range hits {
			norm := float32(1 / (1 + math.Exp(h.bm25)))
			scores[h.name] += hybridWeightKeyword * norm
		}
	}

	var ranked []scoredID
	for name, score := range scores {
		if score >= minScore {
			ranked = append(ranked, scoredID{ID: name, Score: score})
		}
	}
	ranked = topKByScore(ranked, limit)

	out := make([]ToolHit, len(ranked))
	for i, r := range ranked {
		out[i] = ToolHit{Name: r.ID, Score: r.Score}
	}
	return out, nil
}
