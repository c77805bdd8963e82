package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"game_catalogue/internal/app"
	"game_catalogue/internal/config"

	"github.com/joho/godotenv"
)

func main() {
	// .env is optional
	_ = godotenv.Load()

	cfg := config.MustLoad()

	log := app.SetupLogger(cfg.Env)

	log.Info("starting catalogue", slog.String("env", cfg.Env))

	a, err := app.New(context.Background(), cfg, log)
	if err != nil {
		log.Error("failed to init app", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer a.Close()

	schedCtx, stopScheduler := context.WithCancel(context.Background())
	defer stopScheduler()
	go a.Scheduler.Run(schedCtx)

	server := &http.Server{
		Addr:         cfg.HTTPServer.Address,
		Handler:      a.Router(),
		ReadTimeout:  cfg.HTTPServer.Timeout,
		WriteTimeout: cfg.HTTPServer.Timeout,
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
	}

	serverErrors := make(chan error, 1)

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Info("listening", slog.String("address", cfg.HTTPServer.Address))
		serverErrors <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", slog.String("error", err.Error()))
			stopScheduler()
			a.Close()
			os.Exit(1)
		}

	case sig := <-shutdown:
		log.Info("shutting down", slog.String("signal", sig.String()))
		stopScheduler()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			log.Error("graceful shutdown error", slog.String("error", err.Error()))
			if err := server.Close(); err != nil {
				log.Error("force shutdown error", slog.String("error", err.Error()))
			}
		}
	}
	log.Info("server stopped")
}
