package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"golang.org/x/sync/errgroup"

	"casal/internal/auth"
	"casal/internal/config"
	"casal/internal/feed"
	apphttp "casal/internal/http"
	"casal/internal/service"
	"casal/internal/storage"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	setupLogging()

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

	// Change feed: AMQP when configured, otherwise in-process only.
	var publisher service.Publisher
	if cfg.AMQPURL != "" {
		client, err := feed.NewClient(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			slog.Error("Failed to connect to AMQP broker", "error", err)
			os.Exit(1)
		}
		defer client.Close()
		publisher = client
		slog.Info("AMQP change feed initialized", "exchange", cfg.AMQPExchange)
	} else {
		publisher = feed.NewMemoryFeed()
		slog.Info("AMQP disabled, using in-process change feed")
	}

	avatars, err := auth.NewDiskBlobStore(cfg.AvatarDir, cfg.AvatarBaseURL)
	if err != nil {
		slog.Error("Failed to initialize avatar storage", "error", err, "dir", cfg.AvatarDir)
		os.Exit(1)
	}

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Dependencies{
		Authenticator: auth.NewPasswordAuthenticator(repo),
		Tokens:        auth.NewJWTManager(cfg.JWTSecret, cfg.TokenTTL),
		Storage:       repo,
		Avatars:       avatars,
		Transactions:  service.NewTransactionService(repo, publisher),
		Bills:         service.NewBillService(repo, publisher),
		Goals:         service.NewGoalService(repo, publisher),
		Shopping:      service.NewShoppingService(repo, publisher),
		Budgets:       service.NewBudgetService(repo, publisher),
		Challenges:    service.NewChallengeService(repo, publisher),
		AvatarDir:     cfg.AvatarDir,
		AvatarBaseURL: cfg.AvatarBaseURL,
	})
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 10 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("Starting casal server", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		slog.Info("Shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}
	slog.Info("Server stopped gracefully")
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
