package webui

import "net/http"

// handleWorkspaceSummary reports coarse counts over the state the
// control plane fronts, letting an operator dashboard render a
// one-screen overview without separately calling every sub-resource.
func (h *Handler) handleWorkspaceSummary(w http.ResponseWriter, r *http.Request) {
	if h.cfg.Store == nil {
		writeErrorString(w, http.StatusServiceUnavailable, "store not configured")
		return
	}
	summary := map[string]any{}

	knowledgeCount, err := h.cfg.Store.CountKnowledge(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	summary["knowledge_chunks"] = knowledgeCount

	tasks, err := h.cfg.Store.ListPendingTasks(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	summary["pending_tasks"] = len(tasks)

	if h.cfg.Tools != nil {
		summary["registered_tools"] = len(h.cfg.Tools.Definitions())
	}
	if h.cfg.Cron != nil {
		summary["cron_jobs"] = len(h.cfg.Cron.List())
	}
	if h.cfg.Supervisor != nil {
		summary["lifecycle_state"] = h.cfg.Supervisor.State().String()
	}

	writeOK(w, summary)
}
