package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"game_catalogue/internal/clients/discord"
	"game_catalogue/internal/clients/igdb"
	"game_catalogue/internal/clients/steamgriddb"
	"game_catalogue/internal/config"
	"game_catalogue/internal/events"
	"game_catalogue/internal/routes"
	"game_catalogue/internal/scheduler"
	"game_catalogue/internal/scrapers"
	"game_catalogue/internal/services"
	"game_catalogue/internal/settings"
	"game_catalogue/internal/storage/backup"
	"game_catalogue/internal/storage/sqlite"
	"game_catalogue/internal/storage/uploads"

	"github.com/go-chi/chi/v5"
)

const (
	EnvLocal = "local"
	EnvProd  = "prod"
)

// App holds every long lived dependency of the catalogue.
type App struct {
	Config    *config.Config
	Log       *slog.Logger
	Storage   *sqlite.Storage
	Uploads   *uploads.Uploads
	Settings  *settings.Store
	Backups   *backup.Manager
	Events    events.Publisher
	Games     *services.GameService
	Scan      *services.ScanService
	Prices    *services.PriceService
	Gallery   *services.GalleryService
	Artwork   *services.ArtworkService
	Scheduler *scheduler.Scheduler
}

func SetupLogger(env string) *slog.Logger {
	var log *slog.Logger
	switch env {
	case EnvLocal:
		log = slog.New(
			slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case EnvProd:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	default:
		log = slog.New(
			slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	}
	return log
}

// New opens storage, runs migrations and builds the services. Close must be
// called when New succeeds.
func New(ctx context.Context, cfg *config.Config, log *slog.Logger) (*App, error) {
	const op = "app.New"

	storage, err := sqlite.New(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	a := &App{Config: cfg, Log: log, Storage: storage, Events: events.Noop{}}

	if err := storage.Migrate(ctx, log); err != nil {
		a.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	log.Info("database init", slog.String("path", cfg.Database.Path))

	if a.Uploads, err = uploads.NewUploads(cfg.MediaPath); err != nil {
		a.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if a.Settings, err = settings.Open(cfg.SettingsPath); err != nil {
		a.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	a.Backups = backup.New(storage.DB, cfg.Backup.Path, cfg.Backup.Keep)

	pub, err := events.Connect(events.Options{URL: cfg.Events.NATSURL, Token: cfg.Events.Token}, log)
	if err != nil {
		// the catalogue works without the broker
		log.Warn("events disabled", slog.String("error", err.Error()))
	} else {
		a.Events = pub
	}

	a.wireServices()

	return a, nil
}

func (a *App) wireServices() {
	cfg, log, st := a.Config, a.Log, a.Settings

	scraperOpts := scrapers.Options{Timeout: cfg.Scraper.Timeout, UserAgent: cfg.Scraper.UserAgent}
	workers := services.WorkerOptions{Workers: cfg.Scraper.Workers, Delay: cfg.Scraper.Delay}

	// credentials saved through /api/config win over the environment
	lookup := igdb.NewProvider(func() igdb.Credentials {
		s := st.Get()
		creds := igdb.Credentials{ClientID: cfg.IGDB.ClientID, ClientSecret: cfg.IGDB.ClientSecret}
		if s.IGDBClientID != "" && s.IGDBClientSecret != "" {
			creds = igdb.Credentials{ClientID: s.IGDBClientID, ClientSecret: s.IGDBClientSecret}
		}
		return creds
	}, igdb.DefaultBaseURL, igdb.DefaultTokenURL, cfg.Scraper.Timeout, log)

	artworkClient := func() (services.ArtworkClient, error) {
		key := st.Get().SteamGridDBAPIKey
		if key == "" {
			key = cfg.SteamGridDB.APIKey
		}
		c, err := steamgriddb.New(key, cfg.Scraper.Timeout)
		if err != nil {
			return nil, err
		}
		return c, nil
	}

	notifier := discord.New(func() string { return st.Get().DiscordWebhookURL }, 0)

	a.Games = services.NewGameService(a.Storage, log, a.Events)
	a.Scan = services.NewScanService(a.Games, lookup, scrapers.NewBarcodeLookup(scraperOpts), log)
	a.Prices = services.NewPriceService(a.Storage, log, scrapers.NewRegistry(scraperOpts), st, notifier, a.Events, workers)
	a.Gallery = services.NewGalleryService(a.Storage, log)
	a.Artwork = services.NewArtworkService(a.Storage, log, a.Uploads, artworkClient, scrapers.NewTrailerFinder(scraperOpts), workers)
	a.Scheduler = scheduler.New(a.Prices, st, cfg.Scheduler.Interval, log)
}

func (a *App) Router() *chi.Mux {
	return routes.SetupRouter(a.Log, a.Config.HTTPServer, a.Config.APIToken, routes.Services{
		Games:    a.Games,
		Scan:     a.Scan,
		Prices:   a.Prices,
		Gallery:  a.Gallery,
		Artwork:  a.Artwork,
		DB:       a.Storage,
		Settings: a.Settings,
		Backups:  a.Backups,
		Uploads:  a.Uploads,
	})
}

func (a *App) Close() {
	if a.Events != nil {
		a.Events.Close()
	}
	if err := a.Storage.Close(); err != nil {
		a.Log.Error("failed to close database", slog.String("error", err.Error()))
	}
}
