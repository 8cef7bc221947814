// Command enrich runs the shipment enrichment pipeline over one local file.
//
//	enrich -in shipments.xlsx -out enriched.csv [-persist]
//
// With -persist the rows are stored as a batch and the configured export is written too.
package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/alejandroruanova/shipment-enrichment-service/internal/app"
	"github.com/alejandroruanova/shipment-enrichment-service/internal/core/domain"
	"github.com/alejandroruanova/shipment-enrichment-service/internal/core/services/shipments"
	"github.com/alejandroruanova/shipment-enrichment-service/internal/pkg/config"
	"github.com/alejandroruanova/shipment-enrichment-service/internal/pkg/logger"
	"github.com/google/uuid"
)

func main() {
	var (
		in      = flag.String("in", "", "Input shipment file, .csv or .xlsx (required)")
		out     = flag.String("out", "", "Output file; .xlsx writes a workbook, anything else CSV (required)")
		persist = flag.Bool("persist", false, "Store the batch and its rows in the database")
	)
	flag.Parse()

	if *in == "" || *out == "" {
		fmt.Fprintln(os.Stderr, "usage: enrich -in <file> -out <file> [-persist]")
		os.Exit(2)
	}

	// The flag decides persistence so a local run needs no database credentials
	if !*persist {
		_ = os.Setenv("INGEST_PERSIST", "false")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}
	cfg.Ingest.Persist = *persist

	log := logger.Initialize(cfg.Environment)
	if err := run(cfg, log, *in, *out); err != nil {
		log.Error("enrichment failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *slog.Logger, in, out string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	if !a.Service.SupportsFile(in) {
		return fmt.Errorf("unsupported input format %q", filepath.Ext(in))
	}

	var enr *shipments.Enrichment
	if cfg.Ingest.Persist {
		batchID, err := openBatch(ctx, a, in)
		if err != nil {
			return err
		}
		result, err := a.Service.IngestFile(ctx, batchID, in)
		if err != nil {
			return err
		}
		enr = result.Enrichment
	} else {
		enr, err = a.Service.Enrich(ctx, uuid.New(), in)
		if err != nil {
			return err
		}
	}

	written, err := a.Storage.WriteFile(ctx, out, func(w io.Writer) error {
		return shipments.WriteExport(w, shipments.ExportFormatFor(out), enr)
	})
	if err != nil {
		return err
	}

	log.Info("enriched file written",
		slog.String("output", written),
		slog.Int("rows", len(enr.Rows)),
		slog.Int("skipped_rows", enr.SkippedRows),
		slog.Int("duplicate_rows", enr.DuplicateRows))
	return nil
}

// openBatch returns the batch already recorded for the file's bytes, or records a new one
func openBatch(ctx context.Context, a *app.App, path string) (uuid.UUID, error) {
	hash, size, err := hashFile(path)
	if err != nil {
		return uuid.Nil, err
	}

	existing, err := a.Batches.FindByFileHash(ctx, hash)
	if err == nil {
		return existing.ID, nil
	}
	if !errors.Is(err, domain.ErrBatchNotFound) {
		return uuid.Nil, err
	}

	batch := &domain.Batch{
		ID:               uuid.New(),
		OriginalFilename: filepath.Base(path),
		FilePath:         path,
		FileHash:         hash,
		Status:           domain.BatchStatusUploaded,
		Metadata:         domain.JSONB{"size": size, "source": "cli"},
	}
	if err := a.Batches.Create(ctx, batch); err != nil {
		return uuid.Nil, err
	}
	return batch.ID, nil
}

func hashFile(path string) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, fmt.Errorf("failed to open input: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return "", 0, fmt.Errorf("failed to hash input: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}
