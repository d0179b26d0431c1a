package negotiation

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
)

// Middleware creates HTTP middleware that checks the Cartsync-Client header.
// Stores the parsed ClientInfo in the request context for handlers and
// advertises the server version on every response.
//
// The header is optional; requests without it proceed with no ClientInfo.
// A malformed header or an incompatible version is rejected with 400.
func Middleware(negotiator *Negotiator, logger *slog.Logger) func(http.Handler) http.Handler {
	serverHeader, err := FormatClientHeader(ClientInfo{Version: negotiator.ServerVersion(), Name: CacheName})
	if err != nil {
		logger.Error("cannot encode server header", slog.String("error", err.Error()))
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if serverHeader != "" {
				w.Header().Set(ServerHeader, serverHeader)
			}

			if isExemptPath(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			header := r.Header.Get(ClientHeader)
			if header == "" {
				next.ServeHTTP(w, r)
				return
			}

			info, err := ParseClientHeader(header)
			if err != nil {
				logger.Warn("invalid Cartsync-Client header",
					slog.String("header", header),
					slog.String("error", err.Error()))
				writeNegotiationError(w, http.StatusBadRequest, ClientHeaderInvalid,
					"Invalid Cartsync-Client header: "+err.Error())
				return
			}

			if err := negotiator.Check(info.Version); err != nil {
				var verErr *VersionError
				if errors.As(err, &verErr) {
					writeNegotiationError(w, http.StatusBadRequest, verErr.Code, verErr.Message)
					return
				}
				writeNegotiationError(w, http.StatusBadRequest, VersionUnsupported, err.Error())
				return
			}

			ctx := context.WithValue(r.Context(), ClientContextKey, info)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// isExemptPath returns true for paths that skip version checks.
// Health checks are infrastructure; the MCP transport carries its own
// protocol version negotiation.
func isExemptPath(path string) bool {
	switch {
	case path == "/health" || path == "/healthz":
		return true
	case path == "/mcp" || strings.HasPrefix(path, "/mcp/"):
		return true
	default:
		return false
	}
}

// writeNegotiationError writes an error in the standard envelope format.
func writeNegotiationError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}{}
	resp.Error.Code = code
	resp.Error.Message = message

	json.NewEncoder(w).Encode(resp)
}

// GetClientInfo retrieves the parsed client header from request context.
// Returns nil if the client sent none or the path is exempt.
func GetClientInfo(ctx context.Context) *ClientInfo {
	v := ctx.Value(ClientContextKey)
	if v == nil {
		return nil
	}
	return v.(*ClientInfo)
}
