package controllers

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"game_catalogue/internal/models"
	"game_catalogue/internal/services"
)

type ScanServicer interface {
	Scan(ctx context.Context, barcode string) (*services.ScanResult, error)
	SearchByName(ctx context.Context, name string) (*services.ScanResult, error)
	Confirm(ctx context.Context, igdbID int64, averagePrice *float64) (*models.Game, error)
}

type ScanRequest struct {
	Barcode string `json:"barcode"`
}

type SearchByNameRequest struct {
	GameName string `json:"game_name"`
}

type ConfirmRequest struct {
	IGDBID       int64    `json:"igdb_id"`
	AveragePrice *float64 `json:"average_price"`
}

// noMatchResponse keeps what the barcode page told us so the client can
// retry a name search without scanning again.
type noMatchResponse struct {
	Error        string   `json:"error"`
	Title        string   `json:"title,omitempty"`
	AveragePrice *float64 `json:"average_price"`
}

type ScanController struct {
	service ScanServicer
	log     *slog.Logger
}

func NewScanController(s ScanServicer, log *slog.Logger) *ScanController {
	return &ScanController{service: s, log: log}
}

func (c *ScanController) Scan(w http.ResponseWriter, r *http.Request) {
	const op = "controllers.scan.Scan"

	var req ScanRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, c.log, op, err)
		return
	}

	res, err := c.service.Scan(r.Context(), req.Barcode)
	if err != nil {
		writeError(w, c.log, op, err)
		return
	}

	c.respond(w, res)
}

func (c *ScanController) SearchByName(w http.ResponseWriter, r *http.Request) {
	const op = "controllers.scan.SearchByName"

	var req SearchByNameRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, c.log, op, err)
		return
	}

	res, err := c.service.SearchByName(r.Context(), req.GameName)
	if err != nil {
		writeError(w, c.log, op, err)
		return
	}

	c.respond(w, res)
}

func (c *ScanController) respond(w http.ResponseWriter, res *services.ScanResult) {
	if res.ExactMatch == nil && len(res.Alternatives) == 0 {
		c.log.Info("no igdb match", slog.String("title", res.Title), slog.Any("attempts", res.Attempts))
		writeJSON(w, c.log, http.StatusNotFound, noMatchResponse{
			Error:        ErrNoResults.Error(),
			Title:        res.Title,
			AveragePrice: res.AveragePrice,
		})
		return
	}

	writeJSON(w, c.log, http.StatusOK, res)
}

func (c *ScanController) Confirm(w http.ResponseWriter, r *http.Request) {
	const op = "controllers.scan.Confirm"

	var req ConfirmRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, c.log, op, err)
		return
	}
	if req.IGDBID <= 0 {
		writeError(w, c.log, op, fmt.Errorf("%w: igdb_id is required", ErrBadRequest))
		return
	}

	game, err := c.service.Confirm(r.Context(), req.IGDBID, req.AveragePrice)
	if err != nil {
		writeError(w, c.log, op, err)
		return
	}

	c.log.Info("game added from igdb", slog.Int64("id", game.ID), slog.Int64("igdb_id", req.IGDBID))
	writeJSON(w, c.log, http.StatusCreated, game)
}
