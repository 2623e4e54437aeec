package webui

import (
	"net/http"

	"github.com/therenovatio/teleton/internal/domain"
)

func (h *Handler) handleListTools(w http.ResponseWriter, r *http.Request) {
	if h.cfg.Tools == nil {
		writeErrorString(w, http.StatusServiceUnavailable, "tool registry not configured")
		return
	}
	writeOK(w, h.cfg.Tools.Definitions())
}

type setToolConfigRequest struct {
	ToolName string  `json:"tool_name"`
	Enabled  bool    `json:"enabled"`
	Scope    *string `json:"scope,omitempty"`
}

func (h *Handler) handleSetToolConfig(w http.ResponseWriter, r *http.Request) {
	if h.cfg.Tools == nil || h.cfg.Store == nil {
		writeErrorString(w, http.StatusServiceUnavailable, "tool registry not configured")
		return
	}
	var req setToolConfigRequest
	if err := decodeJSON(w, r, &req); err != nil || req.ToolName == "" {
		writeErrorString(w, http.StatusBadRequest, "tool_name is required")
		return
	}

	cfg := domain.ToolConfig{ToolName: req.ToolName, Enabled: req.Enabled}
	if req.Scope != nil {
		scope := domain.ToolScope(*req.Scope)
		cfg.Scope = &scope
	}

	if err := h.cfg.Store.SetToolConfig(r.Context(), cfg); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	h.cfg.Tools.ApplyOverride(cfg)
	writeOK(w, map[string]bool{"updated": true})
}

// handleListPlugins reports how many registered tools each module has,
// grouped by the definitions' Module field. The plugin name that
// RegisterPluginTool records is kept apart from Module and is not
// reported here.
func (h *Handler) handleListPlugins(w http.ResponseWriter, r *http.Request) {
	if h.cfg.Tools == nil {
		writeErrorString(w, http.StatusServiceUnavailable, "tool registry not configured")
		return
	}
	modules := map[string]int{}
	for _, def := range h.cfg.Tools.Definitions() {
		modules[def.Module]++
	}
	writeOK(w, modules)
}
