package memorysystem

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/therenovatio/teleton/internal/domain"
	"github.com/therenovatio/teleton/internal/store"
)

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "teleton.db")
	s, err := store.Open(context.Background(), path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSplitParagraphsRespectsBoundaries(t *testing.T) {
	text := strings.Repeat("a", 400) + "\n\n" + strings.Repeat("b", 400)
	chunks := splitParagraphs(text, ChunkTargetSize)
	if len(chunks) != 2 {
		t.Fatalf("chunks = %d, want 2", len(chunks))
	}
}

func TestSplitParagraphsHardSplitsOversizedParagraph(t *testing.T) {
	text := strings.Repeat("x", 1500)
	chunks := splitParagraphs(text, ChunkTargetSize)
	if len(chunks) < 3 {
		t.Fatalf("chunks = %d, want at least 3 for a 1500-char paragraph", len(chunks))
	}
	for _, c := range chunks {
		if len(c) > ChunkTargetSize {
			t.Fatalf("chunk exceeds target size: %d", len(c))
		}
	}
}

func TestIngestIsIdempotent(t *testing.T) {
	s := New(openTestStore(t), nil, t.TempDir())
	ctx := context.Background()

	n1, err := s.Ingest(ctx, domain.KnowledgeSourceMemory, "", "hello world")
	if err != nil {
		t.Fatalf("first ingest: %v", err)
	}
	if n1 != 1 {
		t.Fatalf("n1 = %d, want 1", n1)
	}

	n2, err := s.Ingest(ctx, domain.KnowledgeSourceMemory, "", "hello world")
	if err != nil {
		t.Fatalf("second ingest: %v", err)
	}
	if n2 != 0 {
		t.Fatalf("n2 = %d, want 0 (already ingested)", n2)
	}
}

func TestDailyLogRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s := New(openTestStore(t), nil, dir)

	if err := s.AppendDailyLog("first note"); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := s.AppendDailyLog("second note"); err != nil {
		t.Fatalf("append: %v", err)
	}

	recent, err := s.ReadRecent()
	if err != nil {
		t.Fatalf("read recent: %v", err)
	}
	if !strings.Contains(recent, "first note") || !strings.Contains(recent, "second note") {
		t.Fatalf("recent log missing notes: %q", recent)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected one log file, got %d", len(entries))
	}
}
