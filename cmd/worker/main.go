package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"

	"github.com/rodneygagnon/qckstrt/internal/app"
	"github.com/rodneygagnon/qckstrt/internal/config"
	"github.com/rodneygagnon/qckstrt/internal/queue"
	"github.com/rodneygagnon/qckstrt/internal/queue/workers"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(app.NewLogger(os.Stdout, cfg.Log.Level))

	// The worker runs stages itself; it never enqueues.
	cfg.Events.Dispatch = "inline"

	a, err := app.New(context.Background(), cfg)
	if err != nil {
		slog.Error("failed to start", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	srv := asynq.NewServer(
		queue.RedisOpt(cfg.Redis),
		asynq.Config{
			Concurrency: cfg.Worker.Concurrency,
			Queues: map[string]int{
				queue.QueueIngestion: 1,
			},
			Logger: newAsynqLogger(slog.Default()),
		},
	)

	registry := queue.NewHandlersRegistry()
	workers.NewDocumentWorker(a.Pipeline).Register(registry)

	slog.Info("starting worker", "concurrency", cfg.Worker.Concurrency, "queue", queue.QueueIngestion)
	if err := srv.Run(registry.Mux()); err != nil {
		slog.Error("worker error", "error", err)
		os.Exit(1)
	}
}
