package core

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"

	"inboxinspire/internal/types"
)

// adminKeyHeader is accepted as an alternative to a Bearer token for tooling
// that cannot set Authorization.
const adminKeyHeader = "X-Admin-Key"

// authPublicPaths lists URL paths that bypass AdminAuthMiddleware.
var authPublicPaths = map[string]bool{
	"/health": true,
}

// AdminAuthMiddleware requires the configured admin key on every request
// except the public paths. The key is read from "Authorization: Bearer <key>"
// or X-Admin-Key and compared in constant time.
//
// Missing credentials produce auth_token_missing; a wrong key produces
// auth_token_invalid. Both are 401.
func (s *Server) AdminAuthMiddleware(next http.Handler) http.Handler {
	want := []byte(s.Config.Server.AdminAPIKey.Unmask())

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if authPublicPaths[r.URL.Path] {
			next.ServeHTTP(w, r)
			return
		}

		token := extractBearerToken(r.Header.Get("Authorization"))
		if token == "" {
			token = strings.TrimSpace(r.Header.Get(adminKeyHeader))
		}
		if token == "" {
			s.writeAuthError(w, r, types.ErrCodeAuthTokenMissing, "admin key is required")
			return
		}

		if subtle.ConstantTimeCompare([]byte(token), want) != 1 {
			s.Logger.Warn("authentication failed: admin key mismatch",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("remote_addr", r.RemoteAddr),
			)
			s.writeAuthError(w, r, types.ErrCodeAuthTokenInvalid, "invalid admin key")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// extractBearerToken returns the token from "Bearer <token>" (scheme is
// case-insensitive per RFC 7235), or "" when the header has another form.
func extractBearerToken(authHeader string) string {
	const prefix = "Bearer "
	if len(authHeader) < len(prefix) {
		return ""
	}
	if !strings.EqualFold(authHeader[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(authHeader[len(prefix):])
}

func (s *Server) writeAuthError(w http.ResponseWriter, r *http.Request, code types.ErrorCode, message string) {
	JSON(w, r, http.StatusUnauthorized, APIErrorResponse{
		Error: ErrorDetail{
			Code:      string(code),
			Message:   message,
			RequestID: types.GetRequestID(r.Context()),
		},
	})
}
