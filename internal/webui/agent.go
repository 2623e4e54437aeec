package webui

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/therenovatio/teleton/internal/lifecycle"
)

// conflictStatus maps a lifecycle transition error caused by an
// incompatible concurrent state (e.g. starting while stopping) to 409;
// any other error is a 500.
func conflictStatus(err error) int {
	if err != nil && strings.Contains(err.Error(), "lifecycle:") {
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func (h *Handler) handleAgentStart(w http.ResponseWriter, r *http.Request) {
	if h.cfg.Supervisor == nil {
		writeErrorString(w, http.StatusServiceUnavailable, "lifecycle supervisor not configured")
		return
	}
	if err := h.cfg.Supervisor.Start(r.Context()); err != nil {
		writeError(w, conflictStatus(err), err)
		return
	}
	writeOK(w, statusPayload(h.cfg.Supervisor))
}

func (h *Handler) handleAgentStop(w http.ResponseWriter, r *http.Request) {
	if h.cfg.Supervisor == nil {
		writeErrorString(w, http.StatusServiceUnavailable, "lifecycle supervisor not configured")
		return
	}
	if err := h.cfg.Supervisor.Stop(r.Context()); err != nil {
		writeError(w, conflictStatus(err), err)
		return
	}
	writeOK(w, statusPayload(h.cfg.Supervisor))
}

func (h *Handler) handleAgentStatus(w http.ResponseWriter, r *http.Request) {
	if h.cfg.Supervisor == nil {
		writeErrorString(w, http.StatusServiceUnavailable, "lifecycle supervisor not configured")
		return
	}
	writeOK(w, statusPayload(h.cfg.Supervisor))
}

func statusPayload(s *lifecycle.Supervisor) map[string]any {
	payload := map[string]any{
		"state": s.State().String(),
	}
	if errText := s.LastError(); errText != "" {
		payload["last_error"] = errText
	}
	if uptime := s.GetUptime(); uptime != nil {
		payload["uptime_seconds"] = *uptime
	}
	return payload
}

// sseHeartbeat is how often a keepalive comment is written to an idle
// event stream so intermediate proxies don't time out the connection.
const sseHeartbeat = 30 * time.Second

// handleAgentEvents streams lifecycle transitions as server-sent
// events until the client disconnects.
func (h *Handler) handleAgentEvents(w http.ResponseWriter, r *http.Request) {
	if h.cfg.Supervisor == nil {
		writeErrorString(w, http.StatusServiceUnavailable, "lifecycle supervisor not configured")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeErrorString(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	if h.cfg.Metrics != nil {
		h.cfg.Metrics.SSEConnections.Inc()
		defer h.cfg.Metrics.SSEConnections.Dec()
	}

	events := make(chan lifecycle.Event, 16)
	unsubscribe := h.cfg.Supervisor.On(func(ev lifecycle.Event) {
		select {
		case events <- ev:
		default:
		}
	})
	defer unsubscribe()

	now := time.Now()
	fmt.Fprintf(w, "event: status\nid: %d\ndata: {\"state\":%q}\n\n", now.UnixMilli(), h.cfg.Supervisor.State().String())
	flusher.Flush()

	ticker := time.NewTicker(sseHeartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev := <-events:
			fmt.Fprintf(w, "event: status\nid: %d\ndata: {\"state\":%q,\"error\":%q,\"timestamp\":%q}\n\n",
				ev.Timestamp.UnixMilli(), ev.State.String(), ev.Error, ev.Timestamp.Format(time.RFC3339))
			flusher.Flush()
		case <-ticker.C:
			fmt.Fprintf(w, "event: ping\nid: %d\ndata: {}\n\n", time.Now().UnixMilli())
			flusher.Flush()
		}
	}
}
