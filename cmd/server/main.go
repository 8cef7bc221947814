package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/alejandroruanova/shipment-enrichment-service/internal/app"
	httpDelivery "github.com/alejandroruanova/shipment-enrichment-service/internal/delivery/http"
	"github.com/alejandroruanova/shipment-enrichment-service/internal/infrastructure/queue"
	"github.com/alejandroruanova/shipment-enrichment-service/internal/pkg/config"
	"github.com/alejandroruanova/shipment-enrichment-service/internal/pkg/logger"
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
		log.Error("server stopped with error", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *slog.Logger) error {
	if !cfg.Ingest.Persist {
		return errors.New("the API tracks batches in the database; set INGEST_PERSIST=true")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	queueClient := queue.NewAsynqClient(cfg.Queue, log)
	defer queueClient.Close()

	components := map[string]httpDelivery.HealthReporter{"database": a.DB}
	if a.Cache != nil {
		components["cache"] = a.Cache
	}

	handler := httpDelivery.NewHandler(cfg.Server, httpDelivery.Dependencies{
		Parser:     a.Service,
		Uploads:    a.Storage,
		Batches:    a.Batches,
		Shipments:  a.Shipments,
		Queue:      queueClient,
		Components: components,
		ExportName: a.Service.ExportName(),
	}, log)

	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      httpDelivery.SetupRouter(cfg, handler, log),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening",
			slog.String("addr", srv.Addr),
			slog.String("environment", cfg.Environment),
			slog.String("parser_version", a.Service.ParserVersion()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
