// Package app assembles the ingest pipeline and its backing services from configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/alejandroruanova/shipment-enrichment-service/internal/core/services/deduplication"
	"github.com/alejandroruanova/shipment-enrichment-service/internal/core/services/goodsparser"
	"github.com/alejandroruanova/shipment-enrichment-service/internal/core/services/shipments"
	"github.com/alejandroruanova/shipment-enrichment-service/internal/infrastructure/cache"
	"github.com/alejandroruanova/shipment-enrichment-service/internal/infrastructure/database"
	"github.com/alejandroruanova/shipment-enrichment-service/internal/infrastructure/database/repositories"
	"github.com/alejandroruanova/shipment-enrichment-service/internal/infrastructure/storage"
	"github.com/alejandroruanova/shipment-enrichment-service/internal/pkg/config"
	apperrors "github.com/alejandroruanova/shipment-enrichment-service/internal/pkg/errors"
)

// App holds the wired pipeline. DB, Batches and Shipments are nil when nothing is persisted;
// Cache is nil when caching is disabled or Redis is unreachable.
type App struct {
	Config    *config.Config
	DB        *database.PostgresDB
	Batches   *repositories.BatchRepository
	Shipments *repositories.ShipmentRepository
	Storage   *storage.LocalStorage
	Cache     *cache.RedisCache
	Service   *shipments.Service

	logger *slog.Logger
}

// NewParser builds the goods description parser, loading the pattern file when one is configured
func NewParser(cfg config.ParserConfig) (*goodsparser.Parser, error) {
	if cfg.PatternFile == "" {
		return goodsparser.NewParser(nil), nil
	}

	libCfg, err := goodsparser.LoadLibraryConfig(cfg.PatternFile)
	if err != nil {
		return nil, apperrors.InvalidPatternConfig(err)
	}
	lib, err := goodsparser.NewLibrary(libCfg)
	if err != nil {
		return nil, apperrors.InvalidPatternConfig(err)
	}
	return goodsparser.NewParser(lib), nil
}

// New connects the configured backing services and builds the ingest service
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{Config: cfg, logger: logger}

	parser, err := NewParser(cfg.Parser)
	if err != nil {
		return nil, err
	}
	logger.Info("pattern library loaded", slog.String("parser_version", parser.Library().Version()))

	a.Storage, err = storage.NewLocalStorage(cfg.Storage, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	deps := shipments.Dependencies{Exporter: a.Storage}

	if cfg.Ingest.Persist || cfg.Ingest.Deduplicate {
		a.DB, err = database.NewPostgresDB(ctx, cfg.Database, logger)
		if err != nil {
			return nil, err
		}
		if err := a.DB.Migrate(ctx); err != nil {
			a.Close()
			return nil, err
		}
	}

	if cfg.Ingest.Persist {
		a.Batches = repositories.NewBatchRepository(a.DB.DB, logger)
		a.Shipments = repositories.NewShipmentRepository(a.DB.DB, logger)
		deps.Batches = a.Batches
		deps.Shipments = a.Shipments
	}

	if cfg.Ingest.Deduplicate {
		dedupCfg := deduplication.DefaultConfig()
		dedupCfg.Columns = cfg.Ingest.DedupColumns
		hashes := repositories.NewDedupHashRepository(a.DB.DB, logger)
		deps.Deduplicator = deduplication.NewService(dedupCfg, hashes, logger)
	}

	if cfg.Cache.Enabled {
		a.Cache, err = cache.NewRedisCache(ctx, cfg.Cache, logger)
		if err != nil {
			logger.Warn("parse cache unavailable, continuing without it", slog.Any("error", err))
		} else {
			deps.Cache = a.Cache
		}
	}

	a.Service = shipments.NewService(shipments.NewConfig(cfg), parser, deps, logger)
	return a, nil
}

// Close releases every connection the app opened
func (a *App) Close() error {
	var errs []error
	if a.Cache != nil {
		errs = append(errs, a.Cache.Close())
	}
	if a.DB != nil {
		errs = append(errs, a.DB.Close())
	}
	return errors.Join(errs...)
}
