package webui

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/therenovatio/teleton/internal/lifecycle"
	"github.com/therenovatio/teleton/internal/store"
	"github.com/therenovatio/teleton/internal/webauth"
)

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "teleton.db")
	s, err := store.Open(context.Background(), path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestHealthRequiresNoAuth(t *testing.T) {
	h := NewHandler(Config{Auth: webauth.New("secret", time.Hour)})
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestProtectedRouteRejectsWithoutSession(t *testing.T) {
	sup := lifecycle.New(nil)
	h := NewHandler(Config{Auth: webauth.New("secret", time.Hour), Supervisor: sup})
	req := httptest.NewRequest(http.MethodGet, "/api/agent/status", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestLoginThenAccessProtectedRoute(t *testing.T) {
	sup := lifecycle.New(nil)
	h := NewHandler(Config{
		Auth:       webauth.New("secret", time.Hour),
		LoginToken: "bootstrap-token",
		Supervisor: sup,
	})

	loginReq := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"token":"bootstrap-token"}`))
	loginRec := httptest.NewRecorder()
	h.ServeHTTP(loginRec, loginReq)
	if loginRec.Code != http.StatusOK {
		t.Fatalf("login status = %d, want 200", loginRec.Code)
	}

	var cookie *http.Cookie
	for _, c := range loginRec.Result().Cookies() {
		if c.Name == webauth.SessionCookieName {
			cookie = c
		}
	}
	if cookie == nil {
		t.Fatal("expected session cookie to be set")
	}

	statusReq := httptest.NewRequest(http.MethodGet, "/api/agent/status", nil)
	statusReq.AddCookie(cookie)
	statusRec := httptest.NewRecorder()
	h.ServeHTTP(statusRec, statusReq)
	if statusRec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body=%s", statusRec.Code, statusRec.Body.String())
	}
}

func TestLoginRejectsWrongToken(t *testing.T) {
	h := NewHandler(Config{Auth: webauth.New("secret", time.Hour), LoginToken: "bootstrap-token"})
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"token":"wrong"}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestAgentStartStopStatus(t *testing.T) {
	sup := lifecycle.New(nil)
	sup.RegisterFuncs(func(ctx context.Context) error { return nil }, func(ctx context.Context) error { return nil })
	h := NewHandler(Config{Supervisor: sup})

	startRec := httptest.NewRecorder()
	h.ServeHTTP(startRec, httptest.NewRequest(http.MethodPost, "/api/agent/start", nil))
	if startRec.Code != http.StatusOK {
		t.Fatalf("start status = %d, want 200", startRec.Code)
	}

	var startResp envelope
	if err := json.NewDecoder(startRec.Body).Decode(&startResp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !startResp.Success {
		t.Fatalf("expected success, got %+v", startResp)
	}

	stopRec := httptest.NewRecorder()
	h.ServeHTTP(stopRec, httptest.NewRequest(http.MethodPost, "/api/agent/stop", nil))
	if stopRec.Code != http.StatusOK {
		t.Fatalf("stop status = %d, want 200", stopRec.Code)
	}
}

func TestWorkspaceSummaryReportsKnowledgeCount(t *testing.T) {
	st := openTestStore(t)
	h := NewHandler(Config{Store: st})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/workspace", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body=%s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Data map[string]any `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got, ok := resp.Data["knowledge_chunks"].(float64); !ok || got != 0 {
		t.Fatalf("knowledge_chunks = %v, want 0", resp.Data["knowledge_chunks"])
	}
}

func TestSPAServesIndexFallbackAndBlocksTraversal(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "index.html"), []byte("<html>spa</html>"), 0o644); err != nil {
		t.Fatalf("write index: %v", err)
	}
	h := NewHandler(Config{StaticDir: dir})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/some/client/route", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "spa") {
		t.Fatalf("expected SPA fallback to index.html, got %d %q", rec.Code, rec.Body.String())
	}

	traversalRec := httptest.NewRecorder()
	h.ServeHTTP(traversalRec, httptest.NewRequest(http.MethodGet, "/../../etc/passwd", nil))
	if traversalRec.Code == http.StatusOK && strings.Contains(traversalRec.Body.String(), "root:") {
		t.Fatal("path traversal was not blocked")
	}
}

func TestBodyLimitRejectsOversizedRequest(t *testing.T) {
	h := NewHandler(Config{LoginToken: "x", Auth: webauth.New("secret", time.Hour)})
	huge := strings.NewReader(`{"token":"` + strings.Repeat("a", MaxRequestBodyBytes+1024) + `"}`)
	req := httptest.NewRequest(http.MethodPost, "/auth/login", huge)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code == http.StatusOK {
		t.Fatal("expected oversized body to be rejected")
	}
}
