package routes

import (
	"log/slog"
	"net/http"
	"time"

	"game_catalogue/internal/config"
	"game_catalogue/internal/controllers"
	mw "game_catalogue/internal/middleware"
	"game_catalogue/internal/storage/uploads"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
)

const healthPath = "/health"

// Services is everything the HTTP layer talks to.
type Services struct {
	Games    controllers.GameServicer
	Scan     controllers.ScanServicer
	Prices   controllers.PriceServicer
	Gallery  controllers.GalleryServicer
	Artwork  controllers.ArtworkServicer
	DB       controllers.Pinger
	Settings controllers.SettingsManager
	Backups  controllers.BackupManager
	Uploads  uploads.IUploads
}

func SetupRouter(log *slog.Logger, cfg config.HTTPServer, apiToken string, svc Services) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Cors,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-API-Key"},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	authMiddleware := mw.NewAuthMiddleware(apiToken, log, healthPath)
	r.Use(authMiddleware.ValidateToken)

	gameController := controllers.NewGameController(svc.Games, log, svc.Uploads)
	scanController := controllers.NewScanController(svc.Scan, log)
	priceController := controllers.NewPriceController(svc.Prices, log)
	galleryController := controllers.NewGalleryController(svc.Gallery, log)
	artworkController := controllers.NewArtworkController(svc.Artwork, log)
	systemController := controllers.NewSystemController(svc.DB, svc.Settings, svc.Backups, log)

	r.Get(healthPath, systemController.Health)

	// flat paths used by the existing frontend
	r.Get("/games", gameController.List)
	r.Get("/game/{id}", gameController.GetByID)
	r.Post("/add_game", gameController.Create)
	r.Put("/update_game/{id}", gameController.Update)
	r.Post("/delete_game", gameController.DeleteByBody)
	r.Get("/consoles", gameController.Consoles)
	r.Get("/unique_values", gameController.UniqueValues)

	r.Group(func(r chi.Router) {
		if cfg.ScanRateLimit > 0 {
			r.Use(httprate.LimitByIP(cfg.ScanRateLimit, time.Minute))
		}
		r.Post("/scan", scanController.Scan)
		r.Post("/search_game_by_name", scanController.SearchByName)
	})
	r.Post("/confirm", scanController.Confirm)

	r.Route("/api", func(r chi.Router) {
		r.Route("/games", func(r chi.Router) {
			r.Get("/", gameController.List)
			r.Post("/", gameController.Create)
			r.Get("/export.csv", gameController.ExportCSV)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", gameController.GetByID)
				r.Put("/", gameController.Update)
				r.Delete("/", gameController.Delete)
				r.Post("/cover", gameController.UploadCover)
			})
		})

		r.Post("/price_history", priceController.AddEntry)
		r.Get("/price_history/{id}", priceController.History)
		r.Post("/update_price/{id}", priceController.Refresh)
		r.Post("/scrape_price", priceController.ScrapeAdhoc)
		r.Get("/alert_settings/{id}", priceController.AlertSettings)
		r.Put("/alert_settings/{id}", priceController.SaveAlertSettings)
		r.Post("/auto_scrape/run", priceController.RunAuto)

		r.Route("/gallery", func(r chi.Router) {
			r.Get("/games", galleryController.List)
			r.Get("/filters", galleryController.Filters)
			r.Get("/tags", galleryController.Tags)
			r.Post("/tags", galleryController.CreateTag)
			r.Route("/game/{id}", func(r chi.Router) {
				r.Get("/", galleryController.Get)
				r.Put("/metadata", galleryController.UpdateMetadata)
				r.Post("/tags", galleryController.AddTag)
				r.Delete("/tags/{tagID}", galleryController.RemoveTag)
			})
		})

		r.Get("/high_res_artwork/status", artworkController.Status)
		r.Post("/high_res_artwork/fetch", artworkController.FetchBulk)
		r.Post("/high_res_artwork/fetch/{id}", artworkController.FetchOne)
		r.Post("/youtube_trailer/{id}", artworkController.Trailer)

		r.Get("/config", systemController.GetConfig)
		r.Post("/config", systemController.UpdateConfig)
		r.Post("/backup_db", systemController.Backup)
		r.Get("/backups", systemController.ListBackups)
	})

	media := http.StripPrefix("/media/", http.FileServer(http.Dir(svc.Uploads.Root())))
	r.Get("/media/*", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		media.ServeHTTP(w, r)
	})

	return r
}
