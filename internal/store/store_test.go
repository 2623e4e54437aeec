package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/therenovatio/teleton/internal/domain"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "teleton.db")
	s, err := Open(context.Background(), path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestMigrateColdStart(t *testing.T) {
	s := openTestStore(t)
	v, err := s.metaGet(context.Background(), "schema_version")
	if err != nil {
		t.Fatalf("metaGet: %v", err)
	}
	if v != SchemaVersion {
		t.Fatalf("schema_version = %q, want %q", v, SchemaVersion)
	}
}

func TestMigrateIdempotent(t *testing.T) {
	s := openTestStore(t)
	if err := s.migrate(context.Background()); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
	v, err := s.metaGet(context.Background(), "schema_version")
	if err != nil {
		t.Fatalf("metaGet: %v", err)
	}
	if v != SchemaVersion {
		t.Fatalf("schema_version = %q, want %q", v, SchemaVersion)
	}
}

func TestIngestKnowledgeIdempotent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	chunk := domain.KnowledgeChunk{
		Source: domain.KnowledgeSourceMemory,
		Text:   "the sky is blue",
		Hash:   "hash-1",
	}
	id1, inserted1, err := s.IngestKnowledge(ctx, chunk)
	if err != nil {
		t.Fatalf("first ingest: %v", err)
	}
	if !inserted1 {
		t.Fatal("expected first ingest to insert")
	}

	id2, inserted2, err := s.IngestKnowledge(ctx, chunk)
	if err != nil {
		t.Fatalf("second ingest: %v", err)
	}
	if inserted2 {
		t.Fatal("expected second ingest to be a no-op")
	}
	if id1 != id2 {
		t.Fatalf("ids differ: %q vs %q", id1, id2)
	}

	count, err := s.CountKnowledge(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("count = %d, want 1", count)
	}
}

func TestVectorDimensionMismatchRebuildsTable(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, _, err := s.IngestKnowledge(ctx, domain.KnowledgeChunk{
		Source:    domain.KnowledgeSourceMemory,
		Text:      "four dims",
		Hash:      "hash-a",
		Embedding: []float32{1, 0, 0, 0},
	})
	if err != nil {
		t.Fatalf("ingest a: %v", err)
	}

	_, _, err = s.IngestKnowledge(ctx, domain.KnowledgeChunk{
		Source:    domain.KnowledgeSourceMemory,
		Text:      "eight dims",
		Hash:      "hash-b",
		Embedding: []float32{1, 0, 0, 0, 0, 0, 0, 0},
	})
	if err != nil {
		t.Fatalf("ingest b: %v", err)
	}

	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM knowledge_vec`).Scan(&count); err != nil {
		t.Fatalf("count knowledge_vec: %v", err)
	}
	if count != 1 {
		t.Fatalf("knowledge_vec rows = %d, want 1 (old-dims rows dropped on rebuild)", count)
	}
}

func TestEmbeddingCacheLRUEviction(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		err := s.PutCachedEmbedding(ctx, domain.EmbeddingCacheEntry{
			Hash:      string(rune('a' + i)),
			Model:     "test-model",
			Provider:  "test-provider",
			Embedding: []float32{float32(i)},
			Dims:      1,
		})
		if err != nil {
			t.Fatalf("put %d: %v", i, err)
		}
	}

	removed, err := s.EvictLRUEmbeddings(ctx, 3)
	if err != nil {
		t.Fatalf("evict: %v", err)
	}
	if removed != 2 {
		t.Fatalf("removed = %d, want 2", removed)
	}

	var remaining int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM embedding_cache`).Scan(&remaining); err != nil {
		t.Fatalf("count: %v", err)
	}
	if remaining != 3 {
		t.Fatalf("remaining = %d, want 3", remaining)
	}
}

func TestSessionLifecycle(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	sess, err := s.GetOrCreateSession(ctx, "chat-1")
	if err != nil {
		t.Fatalf("get or create: %v", err)
	}
	if sess.ChatID != "chat-1" {
		t.Fatalf("chat id = %q", sess.ChatID)
	}

	again, err := s.GetOrCreateSession(ctx, "chat-1")
	if err != nil {
		t.Fatalf("second get or create: %v", err)
	}
	if again.ID != sess.ID {
		t.Fatalf("expected same session id, got %q vs %q", again.ID, sess.ID)
	}

	if _, err := s.AppendMessage(ctx, domain.Message{
		ChatID: "chat-1",
		Role:   domain.RoleUser,
		Text:   "hello",
	}); err != nil {
		t.Fatalf("append message: %v", err)
	}

	updated, err := s.GetSessionByChatID(ctx, "chat-1")
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if updated.MessageCount != 1 {
		t.Fatalf("message count = %d, want 1", updated.MessageCount)
	}

	history, err := s.GetHistory(ctx, "chat-1", 10)
	if err != nil {
		t.Fatalf("get history: %v", err)
	}
	if len(history) != 1 || history[0].Text != "hello" {
		t.Fatalf("history = %+v", history)
	}
}

func TestTaskDependencyGating(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	blockerID, err := s.CreateTask(ctx, domain.Task{Description: "blocker"})
	if err != nil {
		t.Fatalf("create blocker: %v", err)
	}
	dependentID, err := s.CreateTask(ctx, domain.Task{
		Description: "dependent",
		DependsOn:   []string{blockerID},
	})
	if err != nil {
		t.Fatalf("create dependent: %v", err)
	}

	pending, err := s.ListPendingTasks(ctx)
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != blockerID {
		t.Fatalf("expected only blocker pending, got %+v", pending)
	}

	if err := s.UpdateTaskStatus(ctx, blockerID, domain.TaskDone, "ok", ""); err != nil {
		t.Fatalf("update blocker status: %v", err)
	}

	pending, err = s.ListPendingTasks(ctx)
	if err != nil {
		t.Fatalf("list pending after done: %v", err)
	}
	found := false
	for _, p := range pending {
		if p.ID == dependentID {
			found = true
		}
	}
	if !found {
		t.Fatalf("dependent task not unblocked, pending = %+v", pending)
	}
}
