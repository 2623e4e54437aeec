// Package memorysystem ingests knowledge into the store's hybrid
// vector+keyword index, chunking long text on paragraph boundaries,
// batching embedding calls, and retrieving chunks relevant to a query.
// It also maintains one append-only markdown log file per day for
// freeform notes the agent records about itself mid-conversation.
//
// Grounded on a prior internal/rag/chunker (Config/Chunk fields:
// target size, overlap, minimum size) narrowed to this kernel's
// simpler paragraph-respecting splitter, and a prior
// internal/rag/index.Manager for the batch-embed-then-index shape.
package memorysystem

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/therenovatio/teleton/internal/agentproviders"
	"github.com/therenovatio/teleton/internal/domain"
	"github.com/therenovatio/teleton/internal/errkind"
	"github.com/therenovatio/teleton/internal/store"
)

// ChunkTargetSize is the target chunk length in characters; paragraph
// boundaries are preferred over a hard cut so a chunk rarely splits a
// thought mid-sentence.
const ChunkTargetSize = 500

// EmbedBatchSize is how many chunks Ingest walks per batch. Each chunk
// in a batch still gets its own Embed call; the provider client embeds
// one text at a time.
const EmbedBatchSize = 128

// DefaultMinScore is the retrieval floor for knowledge search.
const DefaultMinScore = 0.15

// System ingests and retrieves knowledge chunks and tends the daily
// markdown log directory.
type System struct {
	store    *store.Store
	embedder agentproviders.Client
	logsDir  string
}

// New builds a System backed by st for persistence, embedder for
// vectorization, and logsDir for daily markdown notes.
func New(st *store.Store, embedder agentproviders.Client, logsDir string) *System {
	return &System{store: st, embedder: embedder, logsDir: logsDir}
}

// Ingest splits text into paragraph-respecting chunks, embeds each
// chunk with its own Embed call (walking the chunks in groups of
// EmbedBatchSize), and stores them idempotently (re-ingesting identical text
// is a no-op thanks to the store's hash-based dedup).
func (s *System) Ingest(ctx context.Context, source domain.KnowledgeSource, path, text string) (int, error) {
	chunks := splitParagraphs(text, ChunkTargetSize)
	inserted := 0

	for batchStart := 0; batchStart < len(chunks); batchStart += EmbedBatchSize {
		end := batchStart + EmbedBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[batchStart:end]

		for i, text := range batch {
			hash := hashText(text)
			var embedding []float32
			if s.embedder != nil {
				emb, err := s.embedder.Embed(ctx, text)
				if err != nil {
					return inserted, errkind.New(errkind.LLM, "embed knowledge chunk", err)
				}
				embedding = emb
			}
			_, wasNew, err := s.store.IngestKnowledge(ctx, domain.KnowledgeChunk{
				Source:    source,
				Path:      path,
				Text:      text,
				Embedding: embedding,
				Hash:      hash,
				StartLine: batchStart + i,
				EndLine:   batchStart + i,
			})
			if err != nil {
				return inserted, err
			}
			if wasNew {
				inserted++
			}
		}
	}
	return inserted, nil
}

// Search retrieves chunks relevant to query, embedding the query first
// if an embedder is configured.
func (s *System) Search(ctx context.Context, query string, limit int) ([]domain.KnowledgeChunk, error) {
	var queryEmb []float32
	if s.embedder != nil && query != "" {
		emb, err := s.embedder.Embed(ctx, query)
		if err != nil {
			return nil, errkind.New(errkind.LLM, "embed search query", err)
		}
		queryEmb = emb
	}
	return s.store.SearchKnowledge(ctx, query, queryEmb, limit, DefaultMinScore)
}

// hashText derives the idempotency key IngestKnowledge dedups on.
func hashText(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// splitParagraphs breaks text into chunks close to targetSize,
// preferring to cut at blank-line paragraph boundaries and only
// falling back to a hard cut when a single paragraph exceeds
// targetSize on its own.
func splitParagraphs(text string, targetSize int) []string {
	paragraphs := strings.Split(strings.TrimSpace(text), "\n\n")
	var chunks []string
	var current strings.Builder

	flush := func() {
		if current.Len() > 0 {
			chunks = append(chunks, strings.TrimSpace(current.String()))
			current.Reset()
		}
	}

	for _, p := range paragraphs {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if current.Len() > 0 && current.Len()+len(p)+2 > targetSize {
			flush()
		}
		if len(p) > targetSize {
			flush()
			chunks = append(chunks, hardSplit(p, targetSize)...)
			continue
		}
		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(p)
	}
	flush()
	return chunks
}

func hardSplit(text string, size int) []string {
	var out []string
	for len(text) > size {
		out = append(out, strings.TrimSpace(text[:size]))
		text = text[size:]
	}
	if strings.TrimSpace(text) != "" {
		out = append(out, strings.TrimSpace(text))
	}
	return out
}

// AppendDailyLog appends a note to today's markdown log file,
// creating it (and the logs directory) if needed.
func (s *System) AppendDailyLog(note string) error {
	if err := os.MkdirAll(s.logsDir, 0o755); err != nil {
		return errkind.New(errkind.Storage, "create logs directory", err)
	}
	path := s.dailyLogPath(time.Now().UTC())
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return errkind.New(errkind.Storage, "open daily log", err)
	}
	defer f.Close()
	_, err = fmt.Fprintf(f, "- %s: %s\n", time.Now().UTC().Format(time.RFC3339), note)
	return err
}

// ReadRecent returns today's and yesterday's markdown logs,
// concatenated, for inclusion in context hydration.
func (s *System) ReadRecent() (string, error) {
	now := time.Now().UTC()
	var out strings.Builder
	for _, day := range []time.Time{now.AddDate(0, 0, -1), now} {
		path := s.dailyLogPath(day)
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return "", errkind.New(errkind.Storage, "read daily log", err)
		}
		out.WriteString(fmt.Sprintf("## %s\n", day.Format("2006-01-02")))
		out.Write(data)
		out.WriteString("\n")
	}
	return out.String(), nil
}

func (s *System) dailyLogPath(day time.Time) string {
	return filepath.Join(s.logsDir, day.Format("2006-01-02")+".md")
}
