package webui

import (
	"net/http"

	"github.com/therenovatio/teleton/internal/domain"
)

func (h *Handler) handleListTasks(w http.ResponseWriter, r *http.Request) {
	if h.cfg.Store == nil {
		writeErrorString(w, http.StatusServiceUnavailable, "store not configured")
		return
	}
	tasks, err := h.cfg.Store.ListPendingTasks(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeOK(w, tasks)
}

type createTaskRequest struct {
	Description string   `json:"description"`
	Priority    int      `json:"priority"`
	CreatedBy   string   `json:"created_by"`
	DependsOn   []string `json:"depends_on,omitempty"`
}

func (h *Handler) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	if h.cfg.Store == nil {
		writeErrorString(w, http.StatusServiceUnavailable, "store not configured")
		return
	}
	var req createTaskRequest
	if err := decodeJSON(w, r, &req); err != nil || req.Description == "" {
		writeErrorString(w, http.StatusBadRequest, "description is required")
		return
	}
	task := domain.Task{
		Description: req.Description,
		Priority:    req.Priority,
		CreatedBy:   req.CreatedBy,
		Status:      domain.TaskPending,
		DependsOn:   req.DependsOn,
	}
	id, err := h.cfg.Store.CreateTask(r.Context(), task)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeOK(w, map[string]string{"id": id})
}

type updateTaskStatusRequest struct {
	Status domain.TaskStatus `json:"status"`
	Result string            `json:"result,omitempty"`
	Error  string             `json:"error,omitempty"`
}

func (h *Handler) handleUpdateTaskStatus(w http.ResponseWriter, r *http.Request) {
	if h.cfg.Store == nil {
		writeErrorString(w, http.StatusServiceUnavailable, "store not configured")
		return
	}
	id := r.PathValue("id")
	var req updateTaskStatusRequest
	if err := decodeJSON(w, r, &req); err != nil || req.Status == "" {
		writeErrorString(w, http.StatusBadRequest, "status is required")
		return
	}
	if err := h.cfg.Store.UpdateTaskStatus(r.Context(), id, req.Status, req.Result, req.Error); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeOK(w, map[string]bool{"updated": true})
}
