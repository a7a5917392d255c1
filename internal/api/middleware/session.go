package middleware

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/futig/doctalk-backend/internal/pkg/logger"
	"github.com/futig/doctalk-backend/internal/pkg/response"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"
)

const (
	SessionHeader = "X-Session-ID"
	UserHeader    = "X-User-ID"

	maxSessionIDLength = 128
)

type sessionKey struct{}

// Session requires the X-Session-ID header and puts the session ID into the
// request context and logger
func Session(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sessionID := strings.TrimSpace(r.Header.Get(SessionHeader))
		if sessionID == "" || len(sessionID) > maxSessionIDLength {
			writeError(w, http.StatusBadRequest, "X-Session-ID header is required (at most 128 bytes)")
			return
		}

		ctx := logger.WithSession(r.Context(), sessionID)
		if userID := strings.TrimSpace(r.Header.Get(UserHeader)); userID != "" {
			ctx = logger.AddFields(ctx, zap.String("user_id", userID))
		}
		ctx = context.WithValue(ctx, sessionKey{}, sessionID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// SessionID returns the session ID set by Session
func SessionID(ctx context.Context) string {
	id, _ := ctx.Value(sessionKey{}).(string)
	return id
}

// Auth checks "Authorization: Bearer <token>" against tokens. An empty token
// list rejects every request.
func Auth(tokens []string) func(next http.Handler) http.Handler {
	accepted := make([][]byte, 0, len(tokens))
	for _, t := range tokens {
		if t = strings.TrimSpace(t); t != "" {
			accepted = append(accepted, []byte(t))
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || !validToken(accepted, []byte(strings.TrimSpace(token))) {
				ctxzap.Warn(r.Context(), "rejected request without a valid bearer token")
				writeError(w, http.StatusUnauthorized, "missing or invalid bearer token")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func validToken(accepted [][]byte, token []byte) bool {
	for _, a := range accepted {
		if subtle.ConstantTimeCompare(a, token) == 1 {
			return true
		}
	}
	return false
}

func writeError(w http.ResponseWriter, status int, message string) {
	response.Error(w, status, message)
}
