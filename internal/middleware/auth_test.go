package middleware

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func handlerReached(reached *bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*reached = true
		w.WriteHeader(http.StatusNoContent)
	})
}

func TestAuthMiddleware_ValidateToken(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := NewAuthMiddleware("s3cret", log, "/health")

	tests := []struct {
		name    string
		method  string
		path    string
		headers map[string]string
		want    int
	}{
		{"no token", "GET", "/api/games", nil, http.StatusUnauthorized},
		{"wrong bearer", "GET", "/api/games", map[string]string{"Authorization": "Bearer nope"}, http.StatusUnauthorized},
		{"basic auth is not a token", "GET", "/api/games", map[string]string{"Authorization": "Basic s3cret"}, http.StatusUnauthorized},
		{"bearer", "GET", "/api/games", map[string]string{"Authorization": "Bearer s3cret"}, http.StatusNoContent},
		{"api key header", "POST", "/scan", map[string]string{"X-API-Key": "s3cret"}, http.StatusNoContent},
		{"health is public", "GET", "/health", nil, http.StatusNoContent},
		{"preflight passes", "OPTIONS", "/api/games", nil, http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var reached bool
			req := httptest.NewRequest(tt.method, tt.path, nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			w := httptest.NewRecorder()

			m.ValidateToken(handlerReached(&reached)).ServeHTTP(w, req)

			assert.Equal(t, tt.want, w.Code)
			assert.Equal(t, tt.want == http.StatusNoContent, reached)
		})
	}
}

func TestAuthMiddleware_Disabled(t *testing.T) {
	m := NewAuthMiddleware("", slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.False(t, m.Enabled())

	var reached bool
	w := httptest.NewRecorder()
	m.ValidateToken(handlerReached(&reached)).ServeHTTP(w, httptest.NewRequest("DELETE", "/api/games/1", nil))

	assert.True(t, reached)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestAuthMiddleware_MarksContext(t *testing.T) {
	m := NewAuthMiddleware("s3cret", slog.New(slog.NewTextHandler(io.Discard, nil)))

	var authed bool
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authed = Authenticated(r.Context())
	})

	req := httptest.NewRequest("GET", "/api/config", nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	m.ValidateToken(next).ServeHTTP(httptest.NewRecorder(), req)

	assert.True(t, authed)
}
