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

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/acme/product-importer/internal/config"
	"github.com/acme/product-importer/internal/importer"
	"github.com/acme/product-importer/internal/platform/sqlite"
	"github.com/acme/product-importer/internal/product"
	"github.com/acme/product-importer/internal/progress"
	productrepo "github.com/acme/product-importer/internal/repository/product"
	webhookrepo "github.com/acme/product-importer/internal/repository/webhook"
	"github.com/acme/product-importer/internal/server"
	"github.com/acme/product-importer/internal/webhook"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file found, using environment variables")
	}
	cfg := config.Load()

	// Root context: cancelled on SIGINT/SIGTERM so in-flight import jobs stop
	// promptly during graceful shutdown.
	rootCtx, rootCancel := context.WithCancel(context.Background())
	defer rootCancel()

	db, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	if err := os.MkdirAll(cfg.UploadDir, 0o755); err != nil {
		slog.Error("failed to create upload dir", "dir", cfg.UploadDir, "error", err)
		os.Exit(1)
	}

	tracker, err := newTracker(rootCtx, cfg)
	if err != nil {
		slog.Error("failed to connect to redis", "addr", cfg.Redis.Addr, "error", err)
		os.Exit(1)
	}

	// Repositories
	productRepo := productrepo.NewRepository(db.DB)
	webhookRepo := webhookrepo.NewRepository(db.DB)

	// Services
	webhookSvc := webhook.NewService(webhookRepo)
	productSvc := product.NewService(productRepo)
	productSvc.SetNotifier(webhookSvc)

	importSvc := importer.New(productRepo, tracker,
		importer.WithWorkers(cfg.Workers),
		importer.WithChunkSize(cfg.ChunkSize),
		importer.WithMaxAttempts(cfg.MaxAttempts),
		importer.WithNotifier(webhookSvc),
		importer.WithBaseContext(rootCtx),
	)

	srv := server.New(rootCtx, cfg.Port, server.Deps{
		Products:  productSvc,
		Imports:   importSvc,
		Webhooks:  webhookSvc,
		UploadDir: cfg.UploadDir,
	})

	// Graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("server started", "port", cfg.Port, "workers", cfg.Workers, "chunkSize", cfg.ChunkSize)
	<-done

	// Cancel the root context first so in-flight import jobs begin winding
	// down, then wait for their coordinating goroutines to drain.
	rootCancel()
	importSvc.Wait()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
	slog.Info("server stopped")
}

// newTracker returns the Redis-backed progress tracker when an address is
// configured, otherwise the in-process one.
func newTracker(ctx context.Context, cfg config.Config) (progress.Tracker, error) {
	if cfg.Redis.Addr == "" {
		slog.Info("no redis address configured, using in-memory progress tracker")
		return progress.NewMemoryTracker(), nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	slog.Info("connected to redis", "addr", cfg.Redis.Addr)
	return progress.NewRedisTracker(client), nil
}
