package webui

import "net/http"

func (h *Handler) handleListCronJobs(w http.ResponseWriter, r *http.Request) {
	if h.cfg.Cron == nil {
		writeErrorString(w, http.StatusServiceUnavailable, "cron manager not configured")
		return
	}
	writeOK(w, h.cfg.Cron.List())
}
