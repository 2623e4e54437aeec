// Package toolindex performs hybrid semantic+keyword search over the
// tool catalog so a turn only pays context budget for the tools
// plausibly relevant to it, instead of dumping every registered tool
// into the system prompt.
//
// Grounded on the same sqlitevec-style hybrid retrieval as
// internal/store's knowledge search, reused here against the
// tool_index/_fts/_vec tables rather than knowledge.
package toolindex

import (
	"context"
	"sort"
	"strings"

	"github.com/therenovatio/teleton/internal/domain"
	"github.com/therenovatio/teleton/internal/errkind"
	"github.com/therenovatio/teleton/internal/store"
)

// DefaultMinScore is the merged-score floor below which a tool is
// dropped from search results.
const DefaultMinScore = 0.10

// Embedder computes an embedding vector for arbitrary text, backed by
// an agentproviders.Client in production and a fake in tests.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Store is the subset of *store.Store the index needs.
type Store interface {
	IndexTool(ctx context.Context, name, description string, embedding []float32) error
	UnindexTool(ctx context.Context, name string) error
	SearchTools(ctx context.Context, query string, queryEmbedding []float32, limit int, minScore float32) ([]store.ToolHit, error)
}

// Index runs hybrid tool search over a Store. Its alwaysInclude list
// names tools (or name prefixes ending in "*") that bypass search and
// are always offered, regardless of query relevance.
type Index struct {
	store         Store
	embedder      Embedder
	alwaysInclude []string
}

// New builds an Index over store, with embedder optional (nil disables
// the semantic channel and falls back to keyword-only search).
func New(store Store, embedder Embedder, alwaysInclude []string) *Index {
	return &Index{store: store, embedder: embedder, alwaysInclude: alwaysInclude}
}

// Reindex rebuilds the searchable entry for every definition in defs.
// Each definition gets its own store write and, with an embedder, its
// own Embed call; the definitions are not embedded or written as one
// batch.
func (i *Index) Reindex(ctx context.Context, defs []domain.ToolDefinition) error {
	for _, def := range defs {
		var emb []float32
		if i.embedder != nil {
			e, err := i.embedder.Embed(ctx, def.Name+": "+def.Description)
			if err != nil {
				return errkind.New(errkind.Storage, "embed tool description", err)
			}
			emb = e
		}
		if err := i.store.IndexTool(ctx, def.Name, def.Description, emb); err != nil {
			return err
		}
	}
	return nil
}

// Remove drops a tool from the index, e.g. on plugin unload.
func (i *Index) Remove(ctx context.Context, name string) error {
	return i.store.UnindexTool(ctx, name)
}

// Search returns tool names relevant to query, always prepending the
// always-include set (deduplicated), up to limit total names.
func (i *Index) Search(ctx context.Context, query string, limit int) ([]string, error) {
	var queryEmb []float32
	if i.embedder != nil && query != "" {
		emb, err := i.embedder.Embed(ctx, query)
		if err != nil {
			return nil, errkind.New(errkind.Storage, "embed search query", err)
		}
		queryEmb = emb
	}

	hits, err := i.store.SearchTools(ctx, query, queryEmb, limit, DefaultMinScore)
	if err != nil {
		return nil, err
	}
	sort.Slice(hits, func(a, b int) bool { return hits[a].Score > hits[b].Score })

	seen := make(map[string]bool)
	var out []string
	for _, always := range i.alwaysInclude {
		if strings.HasSuffix(always, "*") {
			continue // prefix matches are resolved by the caller against the live catalog
		}
		if !seen[always] {
			seen[always] = true
			out = append(out, always)
		}
	}
	for _, h := range hits {
		if len(out) >= limit {
			break
		}
		if !seen[h.Name] {
			seen[h.Name] = true
			out = append(out, h.Name)
		}
	}
	return out, nil
}

// MatchesAlwaysInclude reports whether name is covered by the
// always-include set, including "prefix*" patterns.
func (i *Index) MatchesAlwaysInclude(name string) bool {
	for _, pattern := range i.alwaysInclude {
		if strings.HasSuffix(pattern, "*") {
			if strings.HasPrefix(name, strings.TrimSuffix(pattern, "*")) {
				return true
			}
			continue
		}
		if pattern == name {
			return true
		}
	}
	return false
}
