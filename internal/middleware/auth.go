package middleware

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
)

const apiKeyHeader = "X-API-Key"

// AuthMiddleware guards the API with one shared token. With an empty token
// every request passes.
type AuthMiddleware struct {
	token  []byte
	public map[string]bool
	log    *slog.Logger
}

func NewAuthMiddleware(token string, log *slog.Logger, publicPaths ...string) *AuthMiddleware {
	public := make(map[string]bool, len(publicPaths))
	for _, p := range publicPaths {
		public[p] = true
	}
	return &AuthMiddleware{token: []byte(token), public: public, log: log}
}

type contextKey string

const AuthenticatedKey = contextKey("authenticated")

func Authenticated(ctx context.Context) bool {
	ok, _ := ctx.Value(AuthenticatedKey).(bool)
	return ok
}

func (m *AuthMiddleware) Enabled() bool {
	return len(m.token) > 0
}

// presented returns the token sent as "Authorization: Bearer" or X-API-Key.
func presented(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	return strings.TrimSpace(r.Header.Get(apiKeyHeader))
}

func (m *AuthMiddleware) ValidateToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !m.Enabled() || m.public[r.URL.Path] || r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		got := presented(r)
		if got == "" || subtle.ConstantTimeCompare([]byte(got), m.token) != 1 {
			m.log.Warn("unauthorized request",
				slog.String("path", r.URL.Path),
				slog.String("remote", r.RemoteAddr))

			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("WWW-Authenticate", `Bearer realm="catalogue"`)
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "unauthorized"})
			return
		}

		ctx := context.WithValue(r.Context(), AuthenticatedKey, true)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
