package app

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"game_catalogue/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_ServesHealth(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.Config{
		Env:          EnvLocal,
		MediaPath:    filepath.Join(dir, "media"),
		SettingsPath: filepath.Join(dir, "config.json"),
		APIToken:     "s3cret",
		Database:     config.Database{Path: filepath.Join(dir, "games.db")},
		Backup:       config.Backup{Path: filepath.Join(dir, "backups"), Keep: 2},
		HTTPServer:   config.HTTPServer{Cors: []string{"*"}},
	}

	a, err := New(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(a.Close)

	h := a.Router()

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", "/api/games", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest("GET", "/api/games", nil)
	req.Header.Set("X-API-Key", "s3cret")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, "[]", w.Body.String())
}

func TestNew_BackupRoundTrip(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.Config{
		MediaPath:    filepath.Join(dir, "media"),
		SettingsPath: filepath.Join(dir, "config.json"),
		Database:     config.Database{Path: filepath.Join(dir, "games.db")},
		Backup:       config.Backup{Path: filepath.Join(dir, "backups"), Keep: 2},
	}

	a, err := New(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(a.Close)

	f, err := a.Backups.Create(context.Background())
	require.NoError(t, err)

	files, err := a.Backups.List()
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, f.Name, files[0].Name)
}
