package controllers

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"game_catalogue/internal/services"
)

type ArtworkServicer interface {
	Status(ctx context.Context) (*services.ArtworkStatus, error)
	FetchMissing(ctx context.Context, limit int) (*services.ArtworkBatch, error)
	FetchForGame(ctx context.Context, id int64) (*services.ArtworkResult, error)
	Trailer(ctx context.Context, id int64) (string, error)
}

type FetchArtworkRequest struct {
	Limit int `json:"limit"`
}

type ArtworkController struct {
	service ArtworkServicer
	log     *slog.Logger
}

func NewArtworkController(s ArtworkServicer, log *slog.Logger) *ArtworkController {
	return &ArtworkController{service: s, log: log}
}

func (c *ArtworkController) Status(w http.ResponseWriter, r *http.Request) {
	const op = "controllers.artwork.Status"

	st, err := c.service.Status(r.Context())
	if err != nil {
		writeFailure(w, c.log, op, err)
		return
	}

	writeSuccess(w, c.log, http.StatusOK, map[string]any{"stats": st})
}

func (c *ArtworkController) FetchBulk(w http.ResponseWriter, r *http.Request) {
	const op = "controllers.artwork.FetchBulk"

	var req FetchArtworkRequest
	if err := decodeJSON(r, &req); err != nil {
		writeFailure(w, c.log, op, err)
		return
	}
	if req.Limit < 0 {
		writeFailure(w, c.log, op, fmt.Errorf("%w: limit must not be negative", ErrBadRequest))
		return
	}

	liftWriteDeadline(w, c.log, op)

	batch, err := c.service.FetchMissing(r.Context(), req.Limit)
	if err != nil {
		writeFailure(w, c.log, op, err)
		return
	}

	c.log.Info("artwork batch finished",
		slog.Int("processed", batch.Processed),
		slog.Int("succeeded", batch.Succeeded),
		slog.Int("failed", batch.Failed))

	writeSuccess(w, c.log, http.StatusOK, map[string]any{
		"message": fmt.Sprintf("Processed %d games: %d updated, %d failed", batch.Processed, batch.Succeeded, batch.Failed),
		"results": batch,
	})
}

func (c *ArtworkController) FetchOne(w http.ResponseWriter, r *http.Request) {
	const op = "controllers.artwork.FetchOne"

	id, err := idParam(r, "id")
	if err != nil {
		writeFailure(w, c.log, op, err)
		return
	}

	res, err := c.service.FetchForGame(r.Context(), id)
	if err != nil {
		writeFailure(w, c.log, op, err)
		return
	}

	writeSuccess(w, c.log, http.StatusOK, map[string]any{"artwork": res})
}

func (c *ArtworkController) Trailer(w http.ResponseWriter, r *http.Request) {
	const op = "controllers.artwork.Trailer"

	id, err := idParam(r, "id")
	if err != nil {
		writeFailure(w, c.log, op, err)
		return
	}

	url, err := c.service.Trailer(r.Context(), id)
	if err != nil {
		writeFailure(w, c.log, op, err)
		return
	}

	writeSuccess(w, c.log, http.StatusOK, map[string]any{"game_id": id, "youtube_trailer_url": url})
}
