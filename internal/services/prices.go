package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"game_catalogue/internal/events"
	"game_catalogue/internal/models"
	"game_catalogue/internal/scrapers"
	"game_catalogue/internal/settings"
	"game_catalogue/internal/storage"
	"game_catalogue/internal/storage/sqlite"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

const (
	DefaultCurrency = "GBP"
	defaultRegion   = "PAL"
	defaultWorkers  = 4
)

var ErrAutoScrapeDisabled = errors.New("auto scraping is disabled")

type PriceScraper interface {
	Scrape(ctx context.Context, src scrapers.Source, q scrapers.Query) (*scrapers.Result, error)
}

type SettingsStore interface {
	Get() settings.Settings
	MarkAutoScrape(t time.Time) error
}

type PriceNotifier interface {
	PriceAlert(ctx context.Context, c models.PriceChange) error
}

type PriceService struct {
	storage  *sqlite.Storage
	log      *slog.Logger
	scrapers PriceScraper
	settings SettingsStore
	notifier PriceNotifier
	events   events.Publisher
	workers  int
	delay    time.Duration
	now      func() time.Time
}

type WorkerOptions struct {
	Workers int
	// Delay is how long a worker waits after each scrape.
	Delay time.Duration
}

func NewPriceService(
	s *sqlite.Storage,
	log *slog.Logger,
	scr PriceScraper,
	st SettingsStore,
	notifier PriceNotifier,
	pub events.Publisher,
	opts WorkerOptions,
) *PriceService {
	if pub == nil {
		pub = events.Noop{}
	}
	if opts.Workers < 1 {
		opts.Workers = defaultWorkers
	}
	return &PriceService{
		storage:  s,
		log:      log,
		scrapers: scr,
		settings: st,
		notifier: notifier,
		events:   pub,
		workers:  opts.Workers,
		delay:    opts.Delay,
		now:      time.Now,
	}
}

func (s *PriceService) stamp() string {
	return s.now().UTC().Format(models.TimestampLayout)
}

// AddEntry records a price and makes it the game's current price.
func (s *PriceService) AddEntry(ctx context.Context, e models.PriceHistory) (*models.PriceHistory, error) {
	const op = "services.prices.AddEntry"

	e.PriceSource = strings.TrimSpace(e.PriceSource)
	switch {
	case e.GameID <= 0:
		return nil, fmt.Errorf("%s: %w: game_id is required", op, storage.ErrInvalidField)
	case e.Price < 0:
		return nil, fmt.Errorf("%s: %w: price must not be negative", op, storage.ErrInvalidField)
	case e.PriceSource == "":
		return nil, fmt.Errorf("%s: %w: price_source is required", op, storage.ErrInvalidField)
	}
	if e.Currency = strings.ToUpper(strings.TrimSpace(e.Currency)); e.Currency == "" {
		e.Currency = DefaultCurrency
	}
	e.ID = 0
	e.DateRecorded = s.stamp()

	var g models.Game
	err := s.storage.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&g, e.GameID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return storage.ErrNotFound
			}
			return err
		}
		if err := tx.Create(&e).Error; err != nil {
			return err
		}
		return tx.Model(&models.Game{}).Where("id = ?", e.GameID).Update("average_price", e.Price).Error
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	old := 0.0
	if g.AveragePrice != nil {
		old = *g.AveragePrice
	}
	ev := EvaluateChange(old, e.Price, models.Thresholds{})
	s.publish(events.SubjectPriceUpdated, models.PriceChange{
		GameID:   g.ID,
		Title:    g.Title,
		OldPrice: old,
		NewPrice: e.Price,
		Change:   ev.Change,
		Percent:  ev.Percent,
		Source:   e.PriceSource,
	})

	return &e, nil
}

// History returns the game's entries oldest first together with the latest,
// lowest and highest recorded price.
func (s *PriceService) History(ctx context.Context, gameID int64) (*models.PriceSummary, error) {
	const op = "services.prices.History"

	if err := s.gameExists(ctx, gameID); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	entries := []models.PriceHistory{}
	err := s.storage.DB.WithContext(ctx).
		Where("game_id = ?", gameID).
		Order("date_recorded ASC").Order("id ASC").
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	sum := &models.PriceSummary{GameID: gameID, Entries: entries, TotalEntries: len(entries)}
	for i := range entries {
		p := entries[i].Price
		if sum.Lowest == nil || p < *sum.Lowest {
			sum.Lowest = &entries[i].Price
		}
		if sum.Highest == nil || p > *sum.Highest {
			sum.Highest = &entries[i].Price
		}
	}
	if n := len(entries); n > 0 {
		sum.Latest = &entries[n-1].Price
	}

	return sum, nil
}

func (s *PriceService) gameExists(ctx context.Context, id int64) error {
	var count int64
	if err := s.storage.DB.WithContext(ctx).Model(&models.Game{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *PriceService) defaultAlertSettings(gameID int64) models.AlertSettings {
	st := s.settings.Get()
	region := strings.ToUpper(st.DefaultRegion)
	if region == "" {
		region = defaultRegion
	}
	return models.AlertSettings{
		GameID:                 gameID,
		PriceDropThreshold:     &st.PriceDropThreshold,
		PriceIncreaseThreshold: &st.PriceIncreaseThreshold,
		AlertPriceThreshold:    &st.AlertPriceThreshold,
		AlertValueThreshold:    &st.AlertValueThreshold,
		PriceSource:            st.PriceSource,
		PriceRegion:            region,
	}
}

// AlertSettings returns the stored alert rules of a game, or disabled rules
// seeded from the runtime settings when none were saved.
func (s *PriceService) AlertSettings(ctx context.Context, gameID int64) (*models.AlertSettings, error) {
	const op = "services.prices.AlertSettings"

	if err := s.gameExists(ctx, gameID); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var a models.AlertSettings
	err := s.storage.DB.WithContext(ctx).Where("game_id = ?", gameID).First(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		def := s.defaultAlertSettings(gameID)
		return &def, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if a.PriceRegion == "" {
		a.PriceRegion = defaultRegion
	}

	return &a, nil
}

func validateAlertSettings(a *models.AlertSettings) error {
	for name, v := range map[string]*float64{
		"price_drop_threshold":     a.PriceDropThreshold,
		"price_increase_threshold": a.PriceIncreaseThreshold,
		"alert_price_threshold":    a.AlertPriceThreshold,
		"alert_value_threshold":    a.AlertValueThreshold,
	} {
		if v != nil && *v < 0 {
			return fmt.Errorf("%w: %s must not be negative", storage.ErrInvalidField, name)
		}
	}
	if a.PriceSource != "" {
		src, err := scrapers.ParseSource(a.PriceSource)
		if err != nil {
			return fmt.Errorf("%w: %s", storage.ErrInvalidField, err)
		}
		a.PriceSource = string(src)
	}
	a.PriceRegion = strings.ToUpper(strings.TrimSpace(a.PriceRegion))
	if a.PriceRegion == "" {
		a.PriceRegion = defaultRegion
	}
	return nil
}

// SaveAlertSettings creates or replaces the alert rules of a game.
func (s *PriceService) SaveAlertSettings(ctx context.Context, gameID int64, a models.AlertSettings) (*models.AlertSettings, error) {
	const op = "services.prices.SaveAlertSettings"

	if err := validateAlertSettings(&a); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	a.ID = 0
	a.GameID = gameID

	err := s.storage.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Game{}).Where("id = ?", gameID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return storage.ErrNotFound
		}

		var existing models.AlertSettings
		err := tx.Where("game_id = ?", gameID).First(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return tx.Create(&a).Error
		}
		if err != nil {
			return err
		}

		a.ID = existing.ID
		return tx.Model(&existing).Updates(map[string]any{
			"enabled":                  a.Enabled,
			"price_drop_threshold":     a.PriceDropThreshold,
			"price_increase_threshold": a.PriceIncreaseThreshold,
			"alert_price_threshold":    a.AlertPriceThreshold,
			"alert_value_threshold":    a.AlertValueThreshold,
			"price_source":             a.PriceSource,
			"price_region":             a.PriceRegion,
			"updated_at":               s.stamp(),
		}).Error
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &a, nil
}

// ResolveThresholds fills the unset per-game thresholds from the runtime
// settings.
func ResolveThresholds(a *models.AlertSettings, st settings.Settings) models.Thresholds {
	t := models.Thresholds{
		DropPercent:     st.PriceDropThreshold,
		IncreasePercent: st.PriceIncreaseThreshold,
		MinPrice:        st.AlertPriceThreshold,
		MinChange:       st.AlertValueThreshold,
	}
	if a == nil {
		return t
	}
	if a.PriceDropThreshold != nil {
		t.DropPercent = *a.PriceDropThreshold
	}
	if a.PriceIncreaseThreshold != nil {
		t.IncreasePercent = *a.PriceIncreaseThreshold
	}
	if a.AlertPriceThreshold != nil {
		t.MinPrice = *a.AlertPriceThreshold
	}
	if a.AlertValueThreshold != nil {
		t.MinChange = *a.AlertValueThreshold
	}
	return t
}

type Evaluation struct {
	Change      float64
	Percent     float64
	Significant bool
	// Record is true when the new price should be stored; Notify when it
	// should also be announced.
	Record bool
	Notify bool
}

// EvaluateChange judges a scraped price against the current one. A game
// without a current price always records; otherwise only a significant
// change that clears both minimums does.
func EvaluateChange(oldPrice, newPrice float64, t models.Thresholds) Evaluation {
	o := decimal.NewFromFloat(oldPrice)
	n := decimal.NewFromFloat(newPrice)
	change := n.Sub(o).Round(2)

	ev := Evaluation{Change: change.InexactFloat64()}
	meetsPrice := n.GreaterThanOrEqual(decimal.NewFromFloat(t.MinPrice))

	if !o.IsPositive() {
		ev.Significant = true
		ev.Record = true
		ev.Notify = meetsPrice
		return ev
	}

	percent := change.Div(o).Mul(decimal.NewFromInt(100)).Round(2)
	ev.Percent = percent.InexactFloat64()

	ev.Significant = percent.LessThanOrEqual(decimal.NewFromFloat(-t.DropPercent)) ||
		percent.GreaterThanOrEqual(decimal.NewFromFloat(t.IncreasePercent))
	meets := meetsPrice && change.Abs().GreaterThanOrEqual(decimal.NewFromFloat(t.MinChange))

	ev.Record = ev.Significant && meets
	ev.Notify = ev.Record
	return ev
}

func (s *PriceService) source(name string) (scrapers.Source, error) {
	if strings.TrimSpace(name) == "" {
		name = s.settings.Get().PriceSource
	}
	if name == "" {
		return scrapers.SourcePriceCharting, nil
	}
	return scrapers.ParseSource(name)
}

type PriceUpdate struct {
	GameID int64                `json:"game_id"`
	Title  string               `json:"title"`
	Price  float64              `json:"price"`
	Source scrapers.Source      `json:"price_source"`
	Region string               `json:"region"`
	Result *scrapers.Result     `json:"details"`
	Entry  *models.PriceHistory `json:"entry"`
}

// Refresh scrapes the current price of a game and records it. The source is
// the one given, else the game's alert source, else the configured one.
func (s *PriceService) Refresh(ctx context.Context, gameID int64, sourceName string) (*PriceUpdate, error) {
	const op = "services.prices.Refresh"

	var g models.Game
	if err := s.storage.DB.WithContext(ctx).First(&g, gameID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	alert, err := s.AlertSettings(ctx, gameID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if strings.TrimSpace(sourceName) == "" {
		sourceName = alert.PriceSource
	}

	src, err := s.source(sourceName)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	q := scrapers.Query{Title: g.Title, Platform: g.Platforms.First(), Region: alert.PriceRegion}
	res, err := s.scrapers.Scrape(ctx, src, q)
	if err != nil {
		s.log.Warn("price scrape failed",
			slog.String("operation", op),
			slog.Int64("game_id", gameID),
			slog.String("source", string(src)),
			slog.String("error", err.Error()))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	entry, err := s.AddEntry(ctx, models.PriceHistory{
		GameID:      gameID,
		Price:       res.Price,
		PriceSource: string(src),
		Currency:    DefaultCurrency,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &PriceUpdate{
		GameID: gameID,
		Title:  g.Title,
		Price:  res.Price,
		Source: src,
		Region: q.Region,
		Result: res,
		Entry:  entry,
	}, nil
}

// ScrapeAdhoc looks a price up without touching the catalogue.
func (s *PriceService) ScrapeAdhoc(ctx context.Context, sourceName string, q scrapers.Query) (*scrapers.Result, error) {
	const op = "services.prices.ScrapeAdhoc"

	if strings.TrimSpace(q.Title) == "" {
		return nil, fmt.Errorf("%s: %w: title is required", op, storage.ErrInvalidField)
	}

	src, err := s.source(sourceName)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	res, err := s.scrapers.Scrape(ctx, src, q)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return res, nil
}

type candidate struct {
	game  models.Game
	alert models.AlertSettings
}

func (s *PriceService) candidates(ctx context.Context) ([]candidate, error) {
	var alerts []models.AlertSettings
	if err := s.storage.DB.WithContext(ctx).Where("enabled = ?", true).Find(&alerts).Error; err != nil {
		return nil, err
	}
	if len(alerts) == 0 {
		return nil, nil
	}

	byGame := make(map[int64]models.AlertSettings, len(alerts))
	ids := make([]int64, 0, len(alerts))
	for _, a := range alerts {
		byGame[a.GameID] = a
		ids = append(ids, a.GameID)
	}

	var games []models.Game
	err := s.storage.DB.WithContext(ctx).
		Where("id IN ? AND average_price > 0", ids).
		Order("id ASC").
		Find(&games).Error
	if err != nil {
		return nil, err
	}

	out := make([]candidate, 0, len(games))
	for _, g := range games {
		out = append(out, candidate{game: g, alert: byGame[g.ID]})
	}
	return out, nil
}

// RunAuto rescrapes every game with alerts enabled and a known price. Games
// are handled by a bounded pool of workers; a failed scrape is counted and
// logged, never fatal to the run. Unless force is set the run requires auto
// scraping to be enabled in the settings.
func (s *PriceService) RunAuto(ctx context.Context, force bool) (*models.AutoScrapeReport, error) {
	const op = "services.prices.RunAuto"

	st := s.settings.Get()
	if !st.AutoScrapingEnabled && !force {
		return nil, fmt.Errorf("%s: %w", op, ErrAutoScrapeDisabled)
	}

	src, err := s.source(st.PriceSource)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	started := s.now()
	report := &models.AutoScrapeReport{StartedAt: started.UTC(), Changes: []models.PriceChange{}}

	list, err := s.candidates(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("auto price scrape started",
		slog.String("source", string(src)),
		slog.Int("games", len(list)),
		slog.Bool("forced", force))

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	for _, c := range list {
		g.Go(func() error {
			change, recorded, err := s.check(gctx, src, c, st)

			mu.Lock()
			report.Checked++
			switch {
			case err != nil:
				report.Failed++
			case recorded:
				report.Updated++
				report.Changes = append(report.Changes, *change)
			}
			mu.Unlock()

			if err != nil {
				s.log.Warn("auto price scrape failed for game",
					slog.String("operation", op),
					slog.Int64("game_id", c.game.ID),
					slog.String("error", err.Error()))
			}

			return sleepCtx(gctx, s.delay)
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	for _, c := range report.Changes {
		if s.notify(ctx, c) {
			report.Alerts++
		}
	}

	if err := s.settings.MarkAutoScrape(s.now()); err != nil {
		s.log.Error("failed to record auto scrape time",
			slog.String("operation", op),
			slog.String("error", err.Error()))
	}

	report.Duration = s.now().Sub(started).Round(time.Millisecond).String()

	s.log.Info("auto price scrape finished",
		slog.Int("checked", report.Checked),
		slog.Int("updated", report.Updated),
		slog.Int("failed", report.Failed),
		slog.Int("alerts", report.Alerts))

	return report, nil
}

// check scrapes one game and records the new price when it qualifies. The
// returned change is non-nil only when something was recorded.
func (s *PriceService) check(ctx context.Context, src scrapers.Source, c candidate, st settings.Settings) (*models.PriceChange, bool, error) {
	region := c.alert.PriceRegion
	if region == "" {
		region = defaultRegion
	}

	res, err := s.scrapers.Scrape(ctx, src, scrapers.Query{
		Title:    c.game.Title,
		Platform: c.game.Platforms.First(),
		Region:   region,
	})
	if err != nil {
		return nil, false, err
	}

	old := 0.0
	if c.game.AveragePrice != nil {
		old = *c.game.AveragePrice
	}

	ev := EvaluateChange(old, res.Price, ResolveThresholds(&c.alert, st))
	if !ev.Record {
		s.log.Debug("price change below thresholds",
			slog.Int64("game_id", c.game.ID),
			slog.Float64("old", old),
			slog.Float64("new", res.Price))
		return nil, false, nil
	}

	if _, err := s.AddEntry(ctx, models.PriceHistory{
		GameID:      c.game.ID,
		Price:       res.Price,
		PriceSource: string(src),
		Currency:    DefaultCurrency,
	}); err != nil {
		return nil, false, err
	}

	return &models.PriceChange{
		GameID:   c.game.ID,
		Title:    c.game.Title,
		OldPrice: old,
		NewPrice: res.Price,
		Change:   ev.Change,
		Percent:  ev.Percent,
		Source:   string(src),
	}, true, nil
}

func (s *PriceService) notify(ctx context.Context, c models.PriceChange) bool {
	if s.notifier == nil {
		return false
	}
	if err := s.notifier.PriceAlert(ctx, c); err != nil {
		s.log.Warn("failed to send price alert",
			slog.Int64("game_id", c.GameID),
			slog.String("error", err.Error()))
		return false
	}
	return true
}

func (s *PriceService) publish(subject string, payload any) {
	if err := s.events.Publish(subject, payload); err != nil {
		s.log.Warn("failed to publish event",
			slog.String("subject", subject),
			slog.String("error", err.Error()))
	}
}
