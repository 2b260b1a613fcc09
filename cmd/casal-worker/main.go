package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"

	"casal/internal/config"
	"casal/internal/feed"
	"casal/internal/service"
	"casal/internal/storage"
	"casal/internal/worker"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	setupLogging()
	slog.Info("Starting casal-worker")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		slog.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	repo, err := storage.NewRepository(cfg.SQLiteDBPath)
	if err != nil {
		slog.Error("Failed to initialize storage", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	// Overdue flips go through the bill service so couples see them on the
	// change feed like any other update.
	var publisher service.Publisher
	if cfg.AMQPURL != "" {
		client, err := feed.NewClient(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			slog.Warn("Failed to connect to AMQP broker, continuing without feed", "error", err)
			publisher = feed.NewMemoryFeed()
		} else {
			defer client.Close()
			publisher = client
			slog.Info("AMQP change feed initialized", "exchange", cfg.AMQPExchange)
		}
	} else {
		publisher = feed.NewMemoryFeed()
		slog.Info("AMQP disabled, overdue flips stay local")
	}

	processor := worker.NewOverdueProcessor(repo, service.NewBillService(repo, publisher))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	slog.Info("Overdue bill processor configured",
		"interval", cfg.OverdueInterval,
		"sqlite_db", cfg.SQLiteDBPath)

	run := func(now time.Time) {
		count, err := processor.Process(ctx, now)
		if err != nil {
			slog.Error("Overdue processing failed", "error", err)
			return
		}
		if count > 0 {
			slog.Info("Overdue processing complete", "bills_flipped", count)
		}
	}

	run(time.Now())

	ticker := time.NewTicker(cfg.OverdueInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("Shutdown signal received, stopping casal-worker")
			return
		case now := <-ticker.C:
			run(now)
		}
	}
}

func setupLogging() {
	slog.SetDefault(slog.New(
		tint.NewHandler(os.Stderr, &tint.Options{
			Level:      levelFromEnv(),
			TimeFormat: time.Kitchen,
		}),
	))
}

func levelFromEnv() slog.Level {
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
