package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"
	"time"

	"game_catalogue/internal/clients/igdb"
	"game_catalogue/internal/clients/steamgriddb"
	"game_catalogue/internal/scrapers"
	"game_catalogue/internal/services"
	"game_catalogue/internal/settings"
	"game_catalogue/internal/storage"
	"game_catalogue/internal/storage/backup"
	"game_catalogue/internal/storage/uploads"

	"github.com/go-chi/chi/v5"
)

var (
	ErrNotFound    = errors.New("not found")
	ErrBadRequest  = errors.New("bad request")
	ErrInvalidID   = errors.New("invalid id")
	ErrInvalidJSON = errors.New("invalid JSON body")
	ErrNoResults   = errors.New("no results found on IGDB")
	ErrInternal    = errors.New("internal server error")
	ErrEncoding    = errors.New("failed to encode")
)

// opPrefix matches the "pkg.file.Method: " prefixes errors collect on their
// way up. They are stripped before a message reaches a client.
var opPrefix = regexp.MustCompile(`^(?:[a-z]+\.)+[A-Za-z]+: `)

func statusFor(err error) int {
	switch {
	case errors.Is(err, storage.ErrNotFound),
		errors.Is(err, ErrNotFound),
		errors.Is(err, igdb.ErrNotFound),
		errors.Is(err, scrapers.ErrBarcodeNotFound),
		errors.Is(err, scrapers.ErrNoTrailer),
		errors.Is(err, steamgriddb.ErrNoResults),
		errors.Is(err, services.ErrNoArtwork):
		return http.StatusNotFound
	case errors.Is(err, storage.ErrExists),
		errors.Is(err, services.ErrAutoScrapeDisabled):
		return http.StatusConflict
	case errors.Is(err, storage.ErrInvalidField),
		errors.Is(err, settings.ErrUnknownKey),
		errors.Is(err, settings.ErrInvalidValue),
		errors.Is(err, scrapers.ErrUnknownSource),
		errors.Is(err, ErrBadRequest),
		errors.Is(err, ErrInvalidID),
		errors.Is(err, ErrInvalidJSON),
		errors.Is(err, uploads.ErrInvalidImage),
		errors.Is(err, uploads.ErrInvalidFileName):
		return http.StatusBadRequest
	case errors.Is(err, igdb.ErrMissingCredentials),
		errors.Is(err, steamgriddb.ErrMissingAPIKey),
		errors.Is(err, backup.ErrNoFolder):
		return http.StatusServiceUnavailable
	case errors.Is(err, scrapers.ErrNoPrice),
		errors.Is(err, scrapers.ErrBlocked):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func publicMessage(err error, status int) string {
	if status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable && status != http.StatusBadGateway {
		return ErrInternal.Error()
	}
	msg := err.Error()
	for {
		trimmed := opPrefix.ReplaceAllString(msg, "")
		if trimmed == msg {
			return msg
		}
		msg = trimmed
	}
}

type errorResponse struct {
	Success *bool  `json:"success,omitempty"`
	Error   string `json:"error"`
}

func writeJSON(w http.ResponseWriter, log *slog.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error(ErrEncoding.Error(), slog.String("error", err.Error()))
	}
}

// writeSuccess writes the flat {"success": true, ...} envelope used by the
// gallery, price, artwork and backup endpoints.
func writeSuccess(w http.ResponseWriter, log *slog.Logger, status int, fields map[string]any) {
	if fields == nil {
		fields = map[string]any{}
	}
	fields["success"] = true
	writeJSON(w, log, status, fields)
}

func writeError(w http.ResponseWriter, log *slog.Logger, op string, err error) {
	status := statusFor(err)
	logError(log, op, status, err)
	writeJSON(w, log, status, errorResponse{Error: publicMessage(err, status)})
}

// writeFailure is writeError for endpoints that answer with the success
// envelope.
func writeFailure(w http.ResponseWriter, log *slog.Logger, op string, err error) {
	status := statusFor(err)
	logError(log, op, status, err)
	ok := false
	writeJSON(w, log, status, errorResponse{Success: &ok, Error: publicMessage(err, status)})
}

func logError(log *slog.Logger, op string, status int, err error) {
	level := slog.LevelWarn
	if status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	log.Log(context.Background(), level, "request failed",
		slog.String("operation", op),
		slog.Int("status", status),
		slog.String("error", err.Error()))
}

// liftWriteDeadline clears the server write timeout for a handler that waits
// on a whole batch.
func liftWriteDeadline(w http.ResponseWriter, log *slog.Logger, op string) {
	err := http.NewResponseController(w).SetWriteDeadline(time.Time{})
	if err != nil && !errors.Is(err, http.ErrNotSupported) {
		log.Warn("cannot lift write deadline",
			slog.String("operation", op),
			slog.String("error", err.Error()))
	}
}

// decodeJSON reads the request body into v. An empty body leaves v as is.
func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("%w: %s", ErrInvalidJSON, err.Error())
	}
	return nil
}

func idParam(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidID, raw)
	}
	return id, nil
}
