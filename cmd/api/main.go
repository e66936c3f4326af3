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

	"github.com/nikhilbhutani/pdfmate/internal/api"
	"github.com/nikhilbhutani/pdfmate/internal/app"
	"github.com/nikhilbhutani/pdfmate/internal/config"
	"github.com/nikhilbhutani/pdfmate/internal/database"
	"github.com/nikhilbhutani/pdfmate/internal/ingestion"
	"github.com/nikhilbhutani/pdfmate/internal/logging"
	"github.com/nikhilbhutani/pdfmate/internal/queue"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logging.New(cfg.Log)

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		slog.Error("failed to start", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	if a.DB != nil {
		if err := database.Migrate(ctx, a.DB); err != nil {
			slog.Error("migrations failed", "error", err)
			os.Exit(1)
		}
	}

	switch cfg.Ingest.Mode {
	case "inline":
		pool, err := ingestion.NewPoolDispatcher(cfg.Ingest.PoolSize, cfg.Ingest.Backlog, a.Ingestion)
		if err != nil {
			slog.Error("failed to start ingestion pool", "error", err)
			os.Exit(1)
		}
		defer func() {
			if err := pool.Close(time.Minute); err != nil {
				slog.Warn("ingestion pool did not drain", "error", err)
			}
		}()
		a.Ingestion.SetDispatcher(pool)
	default:
		qc := queue.NewClient(cfg.Redis)
		defer qc.Close()
		a.Ingestion.SetDispatcher(qc)
	}
	slog.Info("ingestion dispatcher ready", "mode", cfg.Ingest.Mode)

	router := api.NewRouter(cfg, a.Services())
	go router.RunCleanup(ctx)

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router.Setup(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.Info("starting API server", "addr", cfg.Addr())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()

	slog.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced shutdown", "error", err)
	}
	slog.Info("server stopped")
}
