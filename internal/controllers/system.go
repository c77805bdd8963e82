package controllers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"game_catalogue/internal/settings"
	"game_catalogue/internal/storage/backup"
)

const healthTimeout = 2 * time.Second

type Pinger interface {
	Ping(ctx context.Context) error
}

type SettingsManager interface {
	Get() settings.Settings
	Update(patch map[string]any) (settings.Settings, error)
}

type BackupManager interface {
	Create(ctx context.Context) (*backup.File, error)
	List() ([]backup.File, error)
}

type HealthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
	Error    string `json:"error,omitempty"`
}

type SystemController struct {
	db       Pinger
	settings SettingsManager
	backups  BackupManager
	log      *slog.Logger
}

func NewSystemController(db Pinger, st SettingsManager, b BackupManager, log *slog.Logger) *SystemController {
	return &SystemController{
		db:       db,
		settings: st,
		backups:  b,
		log:      log,
	}
}

func (c *SystemController) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	if err := c.db.Ping(ctx); err != nil {
		c.log.Error("health check failed", slog.String("error", err.Error()))
		writeJSON(w, c.log, http.StatusServiceUnavailable, HealthResponse{
			Status:   "degraded",
			Database: "disconnected",
			Error:    "database unavailable",
		})
		return
	}

	writeJSON(w, c.log, http.StatusOK, HealthResponse{Status: "healthy", Database: "connected"})
}

func (c *SystemController) GetConfig(w http.ResponseWriter, r *http.Request) {
	writeSuccess(w, c.log, http.StatusOK, map[string]any{"config": c.settings.Get().Redacted()})
}

// UpdateConfig applies a partial settings patch. Unknown keys and bad values
// reject the whole patch.
func (c *SystemController) UpdateConfig(w http.ResponseWriter, r *http.Request) {
	const op = "controllers.system.UpdateConfig"

	var patch map[string]any
	if err := decodeJSON(r, &patch); err != nil {
		writeFailure(w, c.log, op, err)
		return
	}
	if len(patch) == 0 {
		writeFailure(w, c.log, op, ErrBadRequest)
		return
	}

	st, err := c.settings.Update(patch)
	if err != nil {
		writeFailure(w, c.log, op, err)
		return
	}

	keys := make([]string, 0, len(patch))
	for k := range patch {
		keys = append(keys, k)
	}
	c.log.Info("settings updated", slog.Any("keys", keys))

	writeSuccess(w, c.log, http.StatusOK, map[string]any{"message": "Configuration saved", "config": st.Redacted()})
}

func (c *SystemController) Backup(w http.ResponseWriter, r *http.Request) {
	const op = "controllers.system.Backup"

	f, err := c.backups.Create(r.Context())
	if err != nil {
		writeFailure(w, c.log, op, err)
		return
	}

	c.log.Info("database backed up", slog.String("path", f.Path), slog.Int64("size", f.Size))

	writeSuccess(w, c.log, http.StatusOK, map[string]any{
		"message":     "Backup created",
		"backup_path": f.Path,
		"backup":      f,
	})
}

func (c *SystemController) ListBackups(w http.ResponseWriter, r *http.Request) {
	const op = "controllers.system.ListBackups"

	files, err := c.backups.List()
	if err != nil {
		writeFailure(w, c.log, op, err)
		return
	}
	if files == nil {
		files = []backup.File{}
	}

	writeSuccess(w, c.log, http.StatusOK, map[string]any{"backups": files})
}
