package routes

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"game_catalogue/internal/config"
	"game_catalogue/internal/controllers"
	"game_catalogue/internal/models"
	"game_catalogue/internal/settings"
	"game_catalogue/internal/storage/uploads"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubGames answers List and leaves every other method unimplemented.
type stubGames struct {
	controllers.GameServicer
}

func (stubGames) List(ctx context.Context, f models.GameFilter) ([]models.Game, error) {
	return []models.Game{{ID: 1, Title: "Halo 3"}}, nil
}

type okPinger struct{}

func (okPinger) Ping(ctx context.Context) error { return nil }

func setupRouter(t *testing.T, token string, rateLimit int) (http.Handler, string) {
	t.Helper()

	media := t.TempDir()
	u, err := uploads.NewUploads(media)
	require.NoError(t, err)

	st, err := settings.Open(filepath.Join(t.TempDir(), "config.json"))
	require.NoError(t, err)

	cfg := config.HTTPServer{Cors: []string{"*"}, ScanRateLimit: rateLimit}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	return SetupRouter(log, cfg, token, Services{
		Games:    stubGames{},
		DB:       okPinger{},
		Settings: st,
		Uploads:  u,
	}), media
}

func TestRouter_Auth(t *testing.T) {
	h, _ := setupRouter(t, "s3cret", 0)

	tests := []struct {
		name   string
		path   string
		bearer string
		want   int
	}{
		{"health is open", "/health", "", http.StatusOK},
		{"api needs token", "/api/games", "", http.StatusUnauthorized},
		{"api with token", "/api/games", "s3cret", http.StatusOK},
		{"flat path with token", "/games", "s3cret", http.StatusOK},
		{"config needs token", "/api/config", "", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", tt.path, nil)
			if tt.bearer != "" {
				req.Header.Set("Authorization", "Bearer "+tt.bearer)
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestRouter_Media(t *testing.T) {
	h, media := setupRouter(t, "", 0)

	require.NoError(t, os.MkdirAll(filepath.Join(media, "covers"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(media, "covers", "halo.png"), []byte("png"), 0o644))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", "/media/covers/halo.png", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "png", w.Body.String())
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", "/media/covers/missing.png", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRouter_ScanRateLimit(t *testing.T) {
	h, _ := setupRouter(t, "", 1)

	req := func() *http.Request {
		r := httptest.NewRequest("POST", "/scan", strings.NewReader("{"))
		r.RemoteAddr = "10.0.0.7:5555"
		return r
	}

	// the first call gets through to the controller and fails on the body
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req())
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	h.ServeHTTP(w, req())
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}
