package controllers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"game_catalogue/internal/models"
	"game_catalogue/internal/scrapers"
	"game_catalogue/internal/services"
)

type PriceServicer interface {
	AddEntry(ctx context.Context, e models.PriceHistory) (*models.PriceHistory, error)
	History(ctx context.Context, gameID int64) (*models.PriceSummary, error)
	Refresh(ctx context.Context, gameID int64, source string) (*services.PriceUpdate, error)
	ScrapeAdhoc(ctx context.Context, source string, q scrapers.Query) (*scrapers.Result, error)
	AlertSettings(ctx context.Context, gameID int64) (*models.AlertSettings, error)
	SaveAlertSettings(ctx context.Context, gameID int64, a models.AlertSettings) (*models.AlertSettings, error)
	RunAuto(ctx context.Context, force bool) (*models.AutoScrapeReport, error)
}

type RefreshPriceRequest struct {
	Source string `json:"source"`
}

type ScrapePriceRequest struct {
	scrapers.Query
	Source string `json:"source"`
}

type RunAutoRequest struct {
	Force bool `json:"force"`
}

type historyResponse struct {
	Success bool `json:"success"`
	*models.PriceSummary
}

type refreshResponse struct {
	Success bool `json:"success"`
	*services.PriceUpdate
}

type PriceController struct {
	service PriceServicer
	log     *slog.Logger
}

func NewPriceController(s PriceServicer, log *slog.Logger) *PriceController {
	return &PriceController{service: s, log: log}
}

func (c *PriceController) AddEntry(w http.ResponseWriter, r *http.Request) {
	const op = "controllers.prices.AddEntry"

	var entry models.PriceHistory
	if err := decodeJSON(r, &entry); err != nil {
		writeFailure(w, c.log, op, err)
		return
	}
	entry.ID = 0

	res, err := c.service.AddEntry(r.Context(), entry)
	if err != nil {
		writeFailure(w, c.log, op, err)
		return
	}

	writeSuccess(w, c.log, http.StatusOK, map[string]any{"message": "Price recorded", "entry": res})
}

func (c *PriceController) History(w http.ResponseWriter, r *http.Request) {
	const op = "controllers.prices.History"

	id, err := idParam(r, "id")
	if err != nil {
		writeFailure(w, c.log, op, err)
		return
	}

	summary, err := c.service.History(r.Context(), id)
	if err != nil {
		writeFailure(w, c.log, op, err)
		return
	}

	writeJSON(w, c.log, http.StatusOK, historyResponse{Success: true, PriceSummary: summary})
}

// scrapeFailed answers a failed marketplace scrape. A site without a price
// still yields a body with "price": null so clients can show "no price".
func (c *PriceController) scrapeFailed(w http.ResponseWriter, op string, err error) {
	if !errors.Is(err, scrapers.ErrNoPrice) && !errors.Is(err, scrapers.ErrBlocked) {
		writeFailure(w, c.log, op, err)
		return
	}

	status := statusFor(err)
	logError(c.log, op, status, err)
	writeJSON(w, c.log, status, map[string]any{
		"success": false,
		"error":   publicMessage(err, status),
		"price":   nil,
	})
}

func (c *PriceController) Refresh(w http.ResponseWriter, r *http.Request) {
	const op = "controllers.prices.Refresh"

	id, err := idParam(r, "id")
	if err != nil {
		writeFailure(w, c.log, op, err)
		return
	}

	var req RefreshPriceRequest
	if err := decodeJSON(r, &req); err != nil {
		writeFailure(w, c.log, op, err)
		return
	}

	update, err := c.service.Refresh(r.Context(), id, req.Source)
	if err != nil {
		c.scrapeFailed(w, op, err)
		return
	}

	c.log.Info("price refreshed",
		slog.Int64("game_id", id),
		slog.String("source", string(update.Source)),
		slog.Float64("price", update.Price))

	writeJSON(w, c.log, http.StatusOK, refreshResponse{Success: true, PriceUpdate: update})
}

func (c *PriceController) ScrapeAdhoc(w http.ResponseWriter, r *http.Request) {
	const op = "controllers.prices.ScrapeAdhoc"

	var req ScrapePriceRequest
	if err := decodeJSON(r, &req); err != nil {
		writeFailure(w, c.log, op, err)
		return
	}

	res, err := c.service.ScrapeAdhoc(r.Context(), req.Source, req.Query)
	if err != nil {
		c.scrapeFailed(w, op, err)
		return
	}

	writeSuccess(w, c.log, http.StatusOK, map[string]any{
		"price":   res.Price,
		"source":  res.Source,
		"details": res,
	})
}

func (c *PriceController) AlertSettings(w http.ResponseWriter, r *http.Request) {
	const op = "controllers.prices.AlertSettings"

	id, err := idParam(r, "id")
	if err != nil {
		writeFailure(w, c.log, op, err)
		return
	}

	a, err := c.service.AlertSettings(r.Context(), id)
	if err != nil {
		writeFailure(w, c.log, op, err)
		return
	}

	writeSuccess(w, c.log, http.StatusOK, map[string]any{"settings": a})
}

func (c *PriceController) SaveAlertSettings(w http.ResponseWriter, r *http.Request) {
	const op = "controllers.prices.SaveAlertSettings"

	id, err := idParam(r, "id")
	if err != nil {
		writeFailure(w, c.log, op, err)
		return
	}

	var a models.AlertSettings
	if err := decodeJSON(r, &a); err != nil {
		writeFailure(w, c.log, op, err)
		return
	}

	saved, err := c.service.SaveAlertSettings(r.Context(), id, a)
	if err != nil {
		writeFailure(w, c.log, op, err)
		return
	}

	writeSuccess(w, c.log, http.StatusOK, map[string]any{"message": "Alert settings saved", "settings": saved})
}

// RunAuto starts an auto scrape pass and waits for it. ?force=true or
// {"force": true} runs it even when auto scraping is switched off.
func (c *PriceController) RunAuto(w http.ResponseWriter, r *http.Request) {
	const op = "controllers.prices.RunAuto"

	var req RunAutoRequest
	if err := decodeJSON(r, &req); err != nil {
		writeFailure(w, c.log, op, err)
		return
	}
	if raw := r.URL.Query().Get("force"); raw != "" {
		force, err := strconv.ParseBool(raw)
		if err != nil {
			writeFailure(w, c.log, op, ErrBadRequest)
			return
		}
		req.Force = force
	}

	liftWriteDeadline(w, c.log, op)

	report, err := c.service.RunAuto(r.Context(), req.Force)
	if err != nil {
		writeFailure(w, c.log, op, err)
		return
	}

	writeSuccess(w, c.log, http.StatusOK, map[string]any{"report": report})
}
