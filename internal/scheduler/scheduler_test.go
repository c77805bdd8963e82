package scheduler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"game_catalogue/internal/models"
	"game_catalogue/internal/services"
	"game_catalogue/internal/settings"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockRunner struct {
	mock.Mock
}

func (m *MockRunner) RunAuto(ctx context.Context, force bool) (*models.AutoScrapeReport, error) {
	args := m.Called(force)
	return args.Get(0).(*models.AutoScrapeReport), args.Error(1)
}

type staticSettings settings.Settings

func (s staticSettings) Get() settings.Settings { return settings.Settings(s) }

var now = time.Date(2025, 3, 8, 12, 0, 0, 0, time.UTC)

func newScheduler(r PriceRunner, st settings.Settings) *Scheduler {
	s := New(r, staticSettings(st), time.Minute, slog.New(slog.NewTextHandler(io.Discard, nil)))
	s.now = func() time.Time { return now }
	return s
}

func TestDue(t *testing.T) {
	tests := []struct {
		name      string
		last      string
		frequency string
		want      bool
	}{
		{"never ran", "", settings.FrequencyWeek, true},
		{"garbage timestamp", "yesterday", settings.FrequencyDay, true},
		{"daily, 23h ago", "2025-03-07T13:00:00Z", settings.FrequencyDay, false},
		{"daily, exactly a day", "2025-03-07T12:00:00Z", settings.FrequencyDay, true},
		{"weekly, 6 days ago", "2025-03-02T12:00:00Z", settings.FrequencyWeek, false},
		{"weekly, 7 days ago", "2025-03-01T12:00:00Z", settings.FrequencyWeek, true},
		{"monthly, 29 days ago", "2025-02-07T12:00:00Z", settings.FrequencyMonth, false},
		{"monthly, 30 days ago", "2025-02-06T12:00:00Z", settings.FrequencyMonth, true},
		{"unknown frequency acts weekly", "2025-03-02T12:00:00Z", "fortnight", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Due(now, tt.last, tt.frequency))
		})
	}
}

func TestScheduler_Tick(t *testing.T) {
	ctx := context.Background()

	t.Run("disabled", func(t *testing.T) {
		r := &MockRunner{}
		s := newScheduler(r, settings.Settings{AutoScrapingEnabled: false})

		report, err := s.Tick(ctx)
		require.NoError(t, err)
		assert.Nil(t, report)
		r.AssertNotCalled(t, "RunAuto", mock.Anything)
	})

	t.Run("not due", func(t *testing.T) {
		r := &MockRunner{}
		s := newScheduler(r, settings.Settings{
			AutoScrapingEnabled:   true,
			AutoScrapingFrequency: settings.FrequencyDay,
			LastAutoScrape:        "2025-03-08T06:00:00Z",
		})

		report, err := s.Tick(ctx)
		require.NoError(t, err)
		assert.Nil(t, report)
		r.AssertNotCalled(t, "RunAuto", mock.Anything)
	})

	t.Run("due", func(t *testing.T) {
		r := &MockRunner{}
		r.On("RunAuto", false).Return(&models.AutoScrapeReport{Checked: 4}, nil)
		s := newScheduler(r, settings.Settings{
			AutoScrapingEnabled:   true,
			AutoScrapingFrequency: settings.FrequencyWeek,
			LastAutoScrape:        "2025-02-01T00:00:00Z",
		})

		report, err := s.Tick(ctx)
		require.NoError(t, err)
		require.NotNil(t, report)
		assert.Equal(t, 4, report.Checked)
		r.AssertExpectations(t)
	})

	t.Run("switched off mid run", func(t *testing.T) {
		r := &MockRunner{}
		r.On("RunAuto", false).Return((*models.AutoScrapeReport)(nil), fmt.Errorf("services.prices.RunAuto: %w", services.ErrAutoScrapeDisabled))
		s := newScheduler(r, settings.Settings{AutoScrapingEnabled: true})

		report, err := s.Tick(ctx)
		assert.NoError(t, err)
		assert.Nil(t, report)
	})

	t.Run("run error", func(t *testing.T) {
		r := &MockRunner{}
		r.On("RunAuto", false).Return((*models.AutoScrapeReport)(nil), errors.New("database is locked"))
		s := newScheduler(r, settings.Settings{AutoScrapingEnabled: true})

		_, err := s.Tick(ctx)
		assert.ErrorContains(t, err, "database is locked")
	})
}

func TestScheduler_RunStopsWithContext(t *testing.T) {
	called := make(chan struct{})
	r := &MockRunner{}
	r.On("RunAuto", false).Return(&models.AutoScrapeReport{}, nil).Once().
		Run(func(mock.Arguments) { close(called) })
	s := newScheduler(r, settings.Settings{AutoScrapingEnabled: true})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	select {
	case <-called:
	case <-time.After(time.Second):
		t.Fatal("first tick did not run")
	}
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}
	r.AssertNumberOfCalls(t, "RunAuto", 1)
}
