package controllers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"game_catalogue/internal/models"
	"game_catalogue/internal/scrapers"
	"game_catalogue/internal/services"
	"game_catalogue/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockPriceService struct {
	mock.Mock
}

func (m *MockPriceService) AddEntry(ctx context.Context, e models.PriceHistory) (*models.PriceHistory, error) {
	args := m.Called(e)
	return args.Get(0).(*models.PriceHistory), args.Error(1)
}

func (m *MockPriceService) History(ctx context.Context, gameID int64) (*models.PriceSummary, error) {
	args := m.Called(gameID)
	return args.Get(0).(*models.PriceSummary), args.Error(1)
}

func (m *MockPriceService) Refresh(ctx context.Context, gameID int64, source string) (*services.PriceUpdate, error) {
	args := m.Called(gameID, source)
	return args.Get(0).(*services.PriceUpdate), args.Error(1)
}

func (m *MockPriceService) ScrapeAdhoc(ctx context.Context, source string, q scrapers.Query) (*scrapers.Result, error) {
	args := m.Called(source, q)
	return args.Get(0).(*scrapers.Result), args.Error(1)
}

func (m *MockPriceService) AlertSettings(ctx context.Context, gameID int64) (*models.AlertSettings, error) {
	args := m.Called(gameID)
	return args.Get(0).(*models.AlertSettings), args.Error(1)
}

func (m *MockPriceService) SaveAlertSettings(ctx context.Context, gameID int64, a models.AlertSettings) (*models.AlertSettings, error) {
	args := m.Called(gameID, a)
	return args.Get(0).(*models.AlertSettings), args.Error(1)
}

func (m *MockPriceService) RunAuto(ctx context.Context, force bool) (*models.AutoScrapeReport, error) {
	args := m.Called(force)
	return args.Get(0).(*models.AutoScrapeReport), args.Error(1)
}

func setupPriceController() (*PriceController, *MockPriceService) {
	svc := &MockPriceService{}
	return NewPriceController(svc, discardLogger()), svc
}

func decodeMap(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	return body
}

func TestPriceController_AddEntry(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		ctrl, svc := setupPriceController()
		svc.On("AddEntry", models.PriceHistory{GameID: 2222, Price: 19.99, PriceSource: "Manual"}).
			Return(&models.PriceHistory{ID: 1, GameID: 2222, Price: 19.99, Currency: "GBP", PriceSource: "Manual"}, nil)

		body := `{"game_id": 2222, "price": 19.99, "price_source": "Manual"}`
		w := httptest.NewRecorder()
		ctrl.AddEntry(w, httptest.NewRequest("POST", "/api/price_history", strings.NewReader(body)))

		assert.Equal(t, http.StatusOK, w.Code)
		res := decodeMap(t, w)
		assert.Equal(t, true, res["success"])
		svc.AssertExpectations(t)
	})

	t.Run("unknown game", func(t *testing.T) {
		ctrl, svc := setupPriceController()
		svc.On("AddEntry", mock.Anything).
			Return((*models.PriceHistory)(nil), fmt.Errorf("services.prices.AddEntry: %w", storage.ErrNotFound))

		w := httptest.NewRecorder()
		ctrl.AddEntry(w, httptest.NewRequest("POST", "/api/price_history", strings.NewReader(`{"game_id": 1, "price": 1, "price_source": "x"}`)))

		assert.Equal(t, http.StatusNotFound, w.Code)
		res := decodeMap(t, w)
		assert.Equal(t, false, res["success"])
		assert.Equal(t, "not found", res["error"])
	})
}

func TestPriceController_History(t *testing.T) {
	ctrl, svc := setupPriceController()

	latest := 19.99
	svc.On("History", int64(2222)).Return(&models.PriceSummary{
		GameID:       2222,
		Entries:      []models.PriceHistory{{ID: 1, GameID: 2222, Price: latest}},
		TotalEntries: 1,
		Latest:       &latest,
		Lowest:       &latest,
		Highest:      &latest,
	}, nil)

	req := withParams(httptest.NewRequest("GET", "/api/price_history/2222", nil), "id", "2222")
	w := httptest.NewRecorder()
	ctrl.History(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	res := decodeMap(t, w)
	assert.Equal(t, true, res["success"])
	assert.Equal(t, float64(1), res["total_entries"])
	assert.Equal(t, 19.99, res["latest_price"])
	assert.Len(t, res["price_history"], 1)
}

func TestPriceController_Refresh(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		ctrl, svc := setupPriceController()
		svc.On("Refresh", int64(4), "CeX").Return(&services.PriceUpdate{
			GameID: 4, Title: "Ico", Price: 30, Source: scrapers.SourceCeX, Region: "PAL",
		}, nil)

		req := withParams(httptest.NewRequest("POST", "/api/update_price/4", strings.NewReader(`{"source": "CeX"}`)), "id", "4")
		w := httptest.NewRecorder()
		ctrl.Refresh(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		res := decodeMap(t, w)
		assert.Equal(t, true, res["success"])
		assert.Equal(t, float64(30), res["price"])
		assert.Equal(t, "CeX", res["price_source"])
	})

	t.Run("empty body uses configured source", func(t *testing.T) {
		ctrl, svc := setupPriceController()
		svc.On("Refresh", int64(4), "").Return(&services.PriceUpdate{GameID: 4, Price: 12}, nil)

		req := withParams(httptest.NewRequest("POST", "/api/update_price/4", nil), "id", "4")
		w := httptest.NewRecorder()
		ctrl.Refresh(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		svc.AssertExpectations(t)
	})

	t.Run("no price on site", func(t *testing.T) {
		ctrl, svc := setupPriceController()
		svc.On("Refresh", int64(4), "").
			Return((*services.PriceUpdate)(nil), fmt.Errorf("services.prices.Refresh: scrapers.ebay.Scrape: %w", scrapers.ErrNoPrice))

		req := withParams(httptest.NewRequest("POST", "/api/update_price/4", nil), "id", "4")
		w := httptest.NewRecorder()
		ctrl.Refresh(w, req)

		assert.Equal(t, http.StatusBadGateway, w.Code)
		res := decodeMap(t, w)
		assert.Contains(t, res, "price")
		assert.Nil(t, res["price"])
		assert.Equal(t, "no price found", res["error"])
	})

	t.Run("unknown source", func(t *testing.T) {
		ctrl, svc := setupPriceController()
		svc.On("Refresh", int64(4), "Argos").
			Return((*services.PriceUpdate)(nil), fmt.Errorf("services.prices.Refresh: %w: %q", scrapers.ErrUnknownSource, "Argos"))

		req := withParams(httptest.NewRequest("POST", "/api/update_price/4", strings.NewReader(`{"source": "Argos"}`)), "id", "4")
		w := httptest.NewRecorder()
		ctrl.Refresh(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.NotContains(t, decodeMap(t, w), "price")
	})
}

func TestPriceController_ScrapeAdhoc(t *testing.T) {
	ctrl, svc := setupPriceController()
	loose := 8.5
	svc.On("ScrapeAdhoc", "PriceCharting", scrapers.Query{Title: "Jak II", Platform: "PS2", Region: "PAL"}).
		Return(&scrapers.Result{Source: scrapers.SourcePriceCharting, Price: 14, Loose: &loose}, nil)

	body := `{"title": "Jak II", "platform": "PS2", "region": "PAL", "source": "PriceCharting"}`
	w := httptest.NewRecorder()
	ctrl.ScrapeAdhoc(w, httptest.NewRequest("POST", "/api/scrape_price", strings.NewReader(body)))

	assert.Equal(t, http.StatusOK, w.Code)
	res := decodeMap(t, w)
	assert.Equal(t, float64(14), res["price"])
	svc.AssertExpectations(t)
}

func TestPriceController_AlertSettings(t *testing.T) {
	ctrl, svc := setupPriceController()

	drop := 15.0
	svc.On("AlertSettings", int64(3)).Return(&models.AlertSettings{GameID: 3, PriceRegion: "PAL"}, nil)
	svc.On("SaveAlertSettings", int64(3), models.AlertSettings{Enabled: true, PriceDropThreshold: &drop}).
		Return(&models.AlertSettings{GameID: 3, Enabled: true, PriceDropThreshold: &drop, PriceRegion: "PAL"}, nil)
	svc.On("SaveAlertSettings", int64(4), mock.Anything).
		Return((*models.AlertSettings)(nil), fmt.Errorf("services.prices.SaveAlertSettings: %w: thresholds must not be negative", storage.ErrInvalidField))

	w := httptest.NewRecorder()
	ctrl.AlertSettings(w, withParams(httptest.NewRequest("GET", "/api/alert_settings/3", nil), "id", "3"))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	body := `{"enabled": true, "price_drop_threshold": 15}`
	ctrl.SaveAlertSettings(w, withParams(httptest.NewRequest("PUT", "/api/alert_settings/3", strings.NewReader(body)), "id", "3"))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	body = `{"price_drop_threshold": -1}`
	ctrl.SaveAlertSettings(w, withParams(httptest.NewRequest("PUT", "/api/alert_settings/4", strings.NewReader(body)), "id", "4"))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	svc.AssertExpectations(t)
}

func TestPriceController_RunAuto(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		ctrl, svc := setupPriceController()
		svc.On("RunAuto", false).
			Return((*models.AutoScrapeReport)(nil), fmt.Errorf("services.prices.RunAuto: %w", services.ErrAutoScrapeDisabled))

		w := httptest.NewRecorder()
		ctrl.RunAuto(w, httptest.NewRequest("POST", "/api/auto_scrape/run", nil))

		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("forced", func(t *testing.T) {
		ctrl, svc := setupPriceController()
		svc.On("RunAuto", true).Return(&models.AutoScrapeReport{Checked: 3, Updated: 1}, nil)

		w := httptest.NewRecorder()
		ctrl.RunAuto(w, httptest.NewRequest("POST", "/api/auto_scrape/run?force=true", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		res := decodeMap(t, w)
		report, ok := res["report"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, float64(3), report["checked"])
	})

	t.Run("bad force flag", func(t *testing.T) {
		ctrl, svc := setupPriceController()

		w := httptest.NewRecorder()
		ctrl.RunAuto(w, httptest.NewRequest("POST", "/api/auto_scrape/run?force=maybe", nil))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		svc.AssertNotCalled(t, "RunAuto", mock.Anything)
	})
}

func TestPriceController_RunAutoOutlivesWriteTimeout(t *testing.T) {
	ctrl, svc := setupPriceController()
	svc.On("RunAuto", true).
		After(300*time.Millisecond).
		Return(&models.AutoScrapeReport{Checked: 120}, nil)

	srv := httptest.NewUnstartedServer(http.HandlerFunc(ctrl.RunAuto))
	srv.Config.WriteTimeout = 100 * time.Millisecond
	srv.Start()
	t.Cleanup(srv.Close)

	resp, err := http.Post(srv.URL+"/api/auto_scrape/run?force=true", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, float64(120), body["report"].(map[string]any)["checked"])
}
