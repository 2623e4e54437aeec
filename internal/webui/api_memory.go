package webui

import (
	"net/http"
	"strconv"

	"github.com/therenovatio/teleton/internal/domain"
)

func (h *Handler) handleSearchMemory(w http.ResponseWriter, r *http.Request) {
	if h.cfg.Memory == nil {
		writeErrorString(w, http.StatusServiceUnavailable, "memory system not configured")
		return
	}
	query := r.URL.Query().Get("q")
	limit := 10
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}
	chunks, err := h.cfg.Memory.Search(r.Context(), query, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeOK(w, chunks)
}

type ingestMemoryRequest struct {
	Source domain.KnowledgeSource `json:"source"`
	Path   string                 `json:"path"`
	Text   string                 `json:"text"`
}

func (h *Handler) handleIngestMemory(w http.ResponseWriter, r *http.Request) {
	if h.cfg.Memory == nil {
		writeErrorString(w, http.StatusServiceUnavailable, "memory system not configured")
		return
	}
	var req ingestMemoryRequest
	if err := decodeJSON(w, r, &req); err != nil || req.Text == "" {
		writeErrorString(w, http.StatusBadRequest, "text is required")
		return
	}
	if req.Source == "" {
		req.Source = domain.KnowledgeSourceLearned
	}
	count, err := h.cfg.Memory.Ingest(r.Context(), req.Source, req.Path, req.Text)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeOK(w, map[string]int{"chunks_ingested": count})
}

func (h *Handler) handleRecentLogs(w http.ResponseWriter, r *http.Request) {
	if h.cfg.Memory == nil {
		writeErrorString(w, http.StatusServiceUnavailable, "memory system not configured")
		return
	}
	notes, err := h.cfg.Memory.ReadRecent()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeOK(w, map[string]string{"notes": notes})
}

type appendLogRequest struct {
	Note string `json:"note"`
}

func (h *Handler) handleAppendLog(w http.ResponseWriter, r *http.Request) {
	if h.cfg.Memory == nil {
		writeErrorString(w, http.StatusServiceUnavailable, "memory system not configured")
		return
	}
	var req appendLogRequest
	if err := decodeJSON(w, r, &req); err != nil || req.Note == "" {
		writeErrorString(w, http.StatusBadRequest, "note is required")
		return
	}
	if err := h.cfg.Memory.AppendDailyLog(req.Note); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeOK(w, map[string]bool{"appended": true})
}
