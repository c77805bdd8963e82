package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"game_catalogue/internal/models"
	"game_catalogue/internal/services"
	"game_catalogue/internal/settings"
)

const defaultInterval = time.Hour

type PriceRunner interface {
	RunAuto(ctx context.Context, force bool) (*models.AutoScrapeReport, error)
}

type SettingsSource interface {
	Get() settings.Settings
}

// Scheduler wakes up every interval and starts an auto price scrape when
// one is enabled and due.
type Scheduler struct {
	runner   PriceRunner
	settings SettingsSource
	interval time.Duration
	log      *slog.Logger
	now      func() time.Time
}

func New(runner PriceRunner, st SettingsSource, interval time.Duration, log *slog.Logger) *Scheduler {
	if interval <= 0 {
		interval = defaultInterval
	}
	return &Scheduler{
		runner:   runner,
		settings: st,
		interval: interval,
		log:      log,
		now:      time.Now,
	}
}

// Period maps an auto_scraping_frequency value to a duration. A month is
// 30 days. Unknown values fall back to a week.
func Period(frequency string) time.Duration {
	switch frequency {
	case settings.FrequencyDay:
		return 24 * time.Hour
	case settings.FrequencyMonth:
		return 30 * 24 * time.Hour
	default:
		return 7 * 24 * time.Hour
	}
}

// Due reports whether a run is owed. A missing or unreadable last run
// always counts as due.
func Due(now time.Time, lastRun, frequency string) bool {
	if lastRun == "" {
		return true
	}
	last, err := time.Parse(time.RFC3339, lastRun)
	if err != nil {
		return true
	}
	return !now.Before(last.Add(Period(frequency)))
}

// Tick runs one scheduling check. It returns the report of the run it
// started, or nil when nothing was due.
func (s *Scheduler) Tick(ctx context.Context) (*models.AutoScrapeReport, error) {
	const op = "scheduler.Tick"

	st := s.settings.Get()
	if !st.AutoScrapingEnabled {
		return nil, nil
	}
	if !Due(s.now(), st.LastAutoScrape, st.AutoScrapingFrequency) {
		s.log.Debug("auto price scrape not due",
			slog.String("last_run", st.LastAutoScrape),
			slog.String("frequency", st.AutoScrapingFrequency))
		return nil, nil
	}

	report, err := s.runner.RunAuto(ctx, false)
	if err != nil {
		// switched off between the check and the run
		if errors.Is(err, services.ErrAutoScrapeDisabled) {
			return nil, nil
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return report, nil
}

// Run checks once straight away and then on every tick until ctx is done.
func (s *Scheduler) Run(ctx context.Context) {
	s.log.Info("scheduler started", slog.Duration("interval", s.interval))

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if _, err := s.Tick(ctx); err != nil && ctx.Err() == nil {
			s.log.Error("scheduled price scrape failed", slog.String("error", err.Error()))
		}

		select {
		case <-ctx.Done():
			s.log.Info("scheduler stopped")
			return
		case <-ticker.C:
		}
	}
}
