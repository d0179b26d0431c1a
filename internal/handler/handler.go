// Package handler exposes cart sessions over REST and MCP.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"cartsync/internal/model"
	"cartsync/internal/negotiation"
	"cartsync/internal/session"
)

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	sessions   *session.Manager
	negotiator *negotiation.Negotiator
	logger     *slog.Logger
}

// New creates a new Handler.
// The negotiator may be nil; health then reports no version.
func New(sessions *session.Manager, negotiator *negotiation.Negotiator, logger *slog.Logger) *Handler {
	return &Handler{
		sessions:   sessions,
		negotiator: negotiator,
		logger:     logger,
	}
}

// RegisterRoutes registers all HTTP routes with the given ServeMux.
// Uses Go 1.22+ method routing patterns.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Accounts and sessions
	mux.HandleFunc("POST /users", h.handleSignup)
	mux.HandleFunc("POST /sessions", h.handleLogin)
	mux.HandleFunc("DELETE /sessions", h.handleLogout)

	// Catalog, cart and orders
	mux.HandleFunc("GET /items", h.handleListItems)
	mux.HandleFunc("GET /cart", h.handleViewCart)
	mux.HandleFunc("GET /cart/optimistic", h.handlePeekCart)
	mux.HandleFunc("POST /cart/items", h.handleAddToCart)
	mux.HandleFunc("DELETE /cart/items/{item_id}", h.handleRemoveFromCart)
	mux.HandleFunc("POST /checkout", h.handleCheckout)
	mux.HandleFunc("GET /orders", h.handleListOrders)

	// MCP transport - JSON-RPC endpoint using official MCP SDK
	mux.Handle("/mcp", h.NewMCPHandler())

	// Health check
	mux.HandleFunc("GET /health", h.handleHealth)
	mux.HandleFunc("GET /healthz", h.handleHealth)
}

// === Session Helpers ===

// session resolves the bearer session id on the request.
func (h *Handler) session(r *http.Request) (*session.Session, error) {
	id, ok := bearerToken(r.Header.Get("Authorization"))
	if !ok {
		return nil, model.NewUnauthorizedError("missing bearer session id")
	}
	return h.sessions.Get(id)
}

func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// === Response Helpers ===

// writeJSON sends a JSON response with the given status code.
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// writeError sends an error response, extracting status/code from APIError if present.
// Uses errors.As() to unwrap error chains (OpError, fmt.Errorf wrapping).
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	apiErr := h.apiError(r, err)

	h.writeJSON(w, apiErr.StatusCode, errorResponse{
		Error: errorBody{
			Code:    apiErr.Code,
			Message: apiErr.Message,
		},
	})
}

// apiError finds the APIError in err's chain, or wraps err as internal.
func (h *Handler) apiError(r *http.Request, err error) *model.APIError {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	h.logger.ErrorContext(r.Context(), "internal error", slog.String("error", err.Error()))
	return model.NewInternalError(err)
}

// errorResponse is the JSON structure for error responses.
type errorResponse struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// MaxRequestBodySize limits JSON request bodies to 1MB to prevent DoS.
const MaxRequestBodySize = 1 << 20 // 1MB

// decodeJSON reads JSON from request body into v.
// Limits body size to MaxRequestBodySize to prevent memory exhaustion.
// Returns an APIError if decoding fails.
func decodeJSON(r *http.Request, v interface{}) error {
	// Limit request body size to prevent DoS
	r.Body = http.MaxBytesReader(nil, r.Body, MaxRequestBodySize)

	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		// Don't expose internal error details to client
		return model.NewValidationError("body", "invalid JSON")
	}
	return nil
}
