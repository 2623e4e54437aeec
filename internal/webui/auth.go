package webui

import (
	"net/http"
	"time"

	"github.com/therenovatio/teleton/internal/webauth"
)

// loginSubject is the fixed principal minted for the shared bootstrap
// token; the control plane has one operator identity, not per-user
// accounts.
const loginSubject = "operator"

type loginRequest struct {
	Token string `json:"token"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if h.cfg.Auth == nil {
		writeErrorString(w, http.StatusServiceUnavailable, "auth is disabled")
		return
	}
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil || req.Token == "" {
		writeErrorString(w, http.StatusBadRequest, "token is required")
		return
	}
	if h.cfg.LoginToken == "" || !webauth.ConstantTimeEquals(req.Token, h.cfg.LoginToken) {
		writeErrorString(w, http.StatusUnauthorized, "invalid token")
		return
	}

	session, err := h.cfg.Auth.Generate(loginSubject)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     webauth.SessionCookieName,
		Value:    session,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
		Expires:  time.Now().Add(24 * time.Hour),
	})
	writeOK(w, map[string]bool{"authenticated": true})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     webauth.SessionCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   -1,
	})
	writeOK(w, map[string]bool{"logged_out": true})
}

func (h *Handler) handleAuthCheck(w http.ResponseWriter, r *http.Request) {
	if h.cfg.Auth == nil {
		writeOK(w, map[string]bool{"authenticated": true})
		return
	}
	principal, err := h.cfg.Auth.FromRequest(r)
	if err != nil {
		writeOK(w, map[string]bool{"authenticated": false})
		return
	}
	writeOK(w, map[string]any{"authenticated": true, "subject": principal.Subject})
}
