package handler

import (
	"log/slog"
	"net/http"

	"cartsync/internal/gateway"
	"cartsync/internal/model"
)

// handleSignup registers a user with the backend.
// POST /users
func (h *Handler) handleSignup(w http.ResponseWriter, r *http.Request) {
	var creds gateway.Credentials
	if err := decodeJSON(r, &creds); err != nil {
		h.writeError(w, r, err)
		return
	}

	if err := h.sessions.Signup(r.Context(), creds); err != nil {
		h.writeError(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "user signed up", slog.String("username", creds.Username))
	h.writeJSON(w, http.StatusCreated, map[string]string{"username": creds.Username})
}

// handleLogin starts a session. A bearer session id on the request, if any,
// is ended first.
// POST /sessions
func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var creds gateway.Credentials
	if err := decodeJSON(r, &creds); err != nil {
		h.writeError(w, r, err)
		return
	}

	previous, _ := bearerToken(r.Header.Get("Authorization"))
	s, err := h.sessions.Login(r.Context(), creds, previous)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, sessionResponse{
		SessionID: s.ID,
		Username:  s.Username,
		CreatedAt: s.CreatedAt,
	})
}

// handleLogout ends the session and purges its mirror.
// DELETE /sessions
func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	id, ok := bearerToken(r.Header.Get("Authorization"))
	if !ok {
		h.writeError(w, r, model.NewUnauthorizedError("missing bearer session id"))
		return
	}

	if err := h.sessions.Logout(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleHealth returns a simple health check response.
// GET /health, GET /healthz
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok"}
	if h.negotiator != nil {
		resp.Version = h.negotiator.ServerVersion()
	}
	h.writeJSON(w, http.StatusOK, resp)
}
