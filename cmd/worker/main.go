package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/hibiken/asynq"

	"github.com/nikhilbhutani/pdfmate/internal/app"
	"github.com/nikhilbhutani/pdfmate/internal/config"
	"github.com/nikhilbhutani/pdfmate/internal/logging"
	"github.com/nikhilbhutani/pdfmate/internal/queue"
	"github.com/nikhilbhutani/pdfmate/internal/queue/workers"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logging.New(cfg.Log)

	if cfg.Database.URL == "" {
		// the in-memory store is per process; the worker would never see the API's files
		slog.Error("worker requires DATABASE_URL")
		os.Exit(1)
	}

	a, err := app.New(context.Background(), cfg)
	if err != nil {
		slog.Error("failed to start", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	srv := asynq.NewServer(
		queue.RedisOpt(cfg.Redis),
		asynq.Config{
			Concurrency: cfg.Ingest.Concurrency,
			Queues:      queue.Queues,
			Logger:      asynqLogger{slog.Default()},
		},
	)

	registry := queue.NewHandlersRegistry()
	ingestWorker := workers.NewIngestWorker(a.Ingestion)
	registry.Register(queue.TypeFileIngest, asynq.HandlerFunc(ingestWorker.ProcessTask))

	slog.Info("starting worker", "concurrency", cfg.Ingest.Concurrency)
	if err := srv.Run(registry.Mux()); err != nil {
		slog.Error("worker error", "error", err)
		os.Exit(1)
	}
}
