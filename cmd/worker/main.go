package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alejandroruanova/shipment-enrichment-service/internal/app"
	"github.com/alejandroruanova/shipment-enrichment-service/internal/infrastructure/queue"
	"github.com/alejandroruanova/shipment-enrichment-service/internal/infrastructure/storage"
	"github.com/alejandroruanova/shipment-enrichment-service/internal/pkg/config"
	apperrors "github.com/alejandroruanova/shipment-enrichment-service/internal/pkg/errors"
	"github.com/alejandroruanova/shipment-enrichment-service/internal/pkg/logger"
	"github.com/hibiken/asynq"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	log := logger.Initialize(cfg.Environment)
	cfg.LogConfig(log)

	if err := run(cfg, log); err != nil {
		log.Error("worker stopped with error", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	if cfg.Storage.Retention > 0 {
		go cleanupLoop(ctx, a.Storage, cfg.Storage.Retention, log)
	}

	srv := queue.NewAsynqServer(cfg.Queue, log)
	srv.HandleFunc(queue.TaskTypeIngest, func(ctx context.Context, t *asynq.Task) error {
		payload, err := queue.ParseIngestPayload(t)
		if err != nil {
			return err
		}

		result, err := a.Service.IngestFile(ctx, payload.BatchID, payload.Path)
		if err != nil {
			// client errors fail the same way on every attempt
			if appErr, ok := apperrors.GetAppError(err); ok && appErr.StatusCode < http.StatusInternalServerError {
				return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
			}
			return err
		}

		log.Info("ingest task finished",
			slog.String("batch_id", payload.BatchID.String()),
			slog.Int("rows", len(result.Enrichment.Rows)),
			slog.Duration("duration", result.Duration))
		return nil
	})

	if err := srv.Start(); err != nil {
		return err
	}

	<-ctx.Done()
	srv.Shutdown()
	return nil
}

func cleanupLoop(ctx context.Context, files *storage.LocalStorage, retention time.Duration, log *slog.Logger) {
	interval := min(retention, time.Hour)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := files.CleanupOldFiles(ctx, retention); err != nil && ctx.Err() == nil {
				log.Warn("storage cleanup failed", slog.Any("error", err))
			}
		}
	}
}
