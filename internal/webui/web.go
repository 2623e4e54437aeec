// Package webui serves the control-plane HTTP surface: lifecycle
// start/stop/status, a live event stream, and thin JSON read/write
// endpoints over tools, plugins, cron, tasks, knowledge, daily logs,
// and a workspace summary.
//
// Grounded on a prior internal/web package's Handler/Config shape,
// its stdlib http.ServeMux routing (no router dependency), and its
// logging/auth middleware chain, narrowed from that package's full
// server-rendered dashboard down to a JSON-only API plus SSE.
package webui

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/therenovatio/teleton/internal/cronmgr"
	"github.com/therenovatio/teleton/internal/lifecycle"
	"github.com/therenovatio/teleton/internal/memorysystem"
	"github.com/therenovatio/teleton/internal/metrics"
	"github.com/therenovatio/teleton/internal/store"
	"github.com/therenovatio/teleton/internal/toolregistry"
	"github.com/therenovatio/teleton/internal/webauth"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MaxRequestBodyBytes caps request bodies accepted by any API handler.
const MaxRequestBodyBytes = 2 * 1024 * 1024 // 2 MiB

// Config wires the webui handler to the rest of the kernel.
type Config struct {
	Supervisor *lifecycle.Supervisor
	Store      *store.Store
	Tools      *toolregistry.Registry
	Cron       *cronmgr.Manager
	Memory     *memorysystem.System
	Metrics    *metrics.Registry
	Auth       *webauth.Verifier
	LoginToken string // shared bootstrap secret compared constant-time against POST /auth/login
	StaticDir  string // optional: directory of pre-built SPA assets
	Logger     *slog.Logger
	StartedAt  time.Time
}

// Handler is the control-plane HTTP handler.
type Handler struct {
	cfg Config
	mux *http.ServeMux
}

// NewHandler builds a Handler with every route registered.
func NewHandler(cfg Config) *Handler {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.StartedAt.IsZero() {
		cfg.StartedAt = time.Now()
	}
	h := &Handler{cfg: cfg, mux: http.NewServeMux()}
	h.routes()
	return h
}

func (h *Handler) routes() {
	h.mux.HandleFunc("GET /health", h.handleHealth)

	h.mux.HandleFunc("POST /auth/login", h.handleLogin)
	h.mux.HandleFunc("POST /auth/logout", h.handleLogout)
	h.mux.HandleFunc("GET /auth/check", h.handleAuthCheck)

	h.mux.HandleFunc("POST /api/agent/start", h.handleAgentStart)
	h.mux.HandleFunc("POST /api/agent/stop", h.handleAgentStop)
	h.mux.HandleFunc("GET /api/agent/status", h.handleAgentStatus)
	h.mux.HandleFunc("GET /api/agent/events", h.handleAgentEvents)

	h.mux.HandleFunc("GET /api/tools", h.handleListTools)
	h.mux.HandleFunc("POST /api/tools/config", h.handleSetToolConfig)

	h.mux.HandleFunc("GET /api/plugins", h.handleListPlugins)

	h.mux.HandleFunc("GET /api/memory", h.handleSearchMemory)
	h.mux.HandleFunc("POST /api/memory", h.handleIngestMemory)

	h.mux.HandleFunc("GET /api/logs", h.handleRecentLogs)
	h.mux.HandleFunc("POST /api/logs", h.handleAppendLog)

	h.mux.HandleFunc("GET /api/workspace", h.handleWorkspaceSummary)

	h.mux.HandleFunc("GET /api/tasks", h.handleListTasks)
	h.mux.HandleFunc("POST /api/tasks", h.handleCreateTask)
	h.mux.HandleFunc("POST /api/tasks/{id}/status", h.handleUpdateTaskStatus)

	h.mux.HandleFunc("GET /api/cron", h.handleListCronJobs)

	if h.cfg.Metrics != nil {
		h.mux.Handle("GET /metrics", promhttp.HandlerFor(h.cfg.Metrics.Registerer(), promhttp.HandlerOpts{}))
	}

	if h.cfg.StaticDir != "" {
		h.mux.Handle("/", h.spaHandler())
	}
}

// ServeHTTP implements http.Handler, applying the middleware chain
// around the mux.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var handler http.Handler = h.mux
	handler = securityHeaders(handler)
	handler = bodyLimit(handler)
	if h.cfg.Auth != nil {
		handler = authMiddleware(h.cfg.Auth, h.cfg.Logger)(handler)
	}
	handler = loggingMiddleware(h.cfg.Logger)(handler)
	handler.ServeHTTP(w, r)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: map[string]any{
		"status": "ok",
		"uptime": time.Since(h.cfg.StartedAt).String(),
	}})
}

// publicPrefixes lists routes exempt from auth even when a Verifier
// is configured: login, health, and static assets.
var publicPrefixes = []string{"/health", "/auth/login", "/static/"}

func isPublicPath(path string) bool {
	for _, p := range publicPrefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}
