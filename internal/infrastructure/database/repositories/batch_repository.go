package repositories

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alejandroruanova/shipment-enrichment-service/internal/core/domain"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// BatchRepository stores ingest batches
type BatchRepository struct {
	db     *gorm.DB
	logger *slog.Logger
}

// NewBatchRepository creates a new repository instance
func NewBatchRepository(db *gorm.DB, logger *slog.Logger) *BatchRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &BatchRepository{db: db, logger: logger}
}

// Create inserts a new batch
func (r *BatchRepository) Create(ctx context.Context, batch *domain.Batch) error {
	if err := r.db.WithContext(ctx).Create(batch).Error; err != nil {
		return fmt.Errorf("failed to create batch: %w", err)
	}
	r.logger.Info("batch created",
		slog.String("batch_id", batch.ID.String()),
		slog.String("filename", batch.OriginalFilename))
	return nil
}

// GetByID loads a batch; domain.ErrBatchNotFound when it does not exist
func (r *BatchRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Batch, error) {
	var batch domain.Batch
	err := r.db.WithContext(ctx).First(&batch, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrBatchNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load batch: %w", err)
	}
	return &batch, nil
}

// FindByFileHash returns the batch created for an identical upload
func (r *BatchRepository) FindByFileHash(ctx context.Context, hash string) (*domain.Batch, error) {
	var batch domain.Batch
	err := r.db.WithContext(ctx).First(&batch, "file_hash = ?", hash).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrBatchNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load batch by hash: %w", err)
	}
	return &batch, nil
}

// UpdateStatus moves a batch to status, clearing any previous error
func (r *BatchRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	if !domain.IsValidStatus(status) {
		return fmt.Errorf("invalid batch status %q", status)
	}
	return r.update(ctx, id, map[string]any{"status": status, "error": ""})
}

// Complete stores the final counters of a finished run
func (r *BatchRepository) Complete(ctx context.Context, batch *domain.Batch) error {
	now := time.Now().UTC()
	batch.Status = domain.BatchStatusCompleted
	batch.CompletedAt = &now

	return r.update(ctx, batch.ID, map[string]any{
		"status":            batch.Status,
		"total_records":     batch.TotalRecords,
		"processed_records": batch.ProcessedRecords,
		"skipped_records":   batch.SkippedRecords,
		"duplicate_records": batch.DuplicateRecords,
		"parser_version":    batch.ParserVersion,
		"output_path":       batch.OutputPath,
		"metadata":          batch.Metadata,
		"completed_at":      batch.CompletedAt,
		"error":             "",
	})
}

// MarkFailed records the failure reason
func (r *BatchRepository) MarkFailed(ctx context.Context, id uuid.UUID, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	return r.update(ctx, id, map[string]any{"status": domain.BatchStatusFailed, "error": msg})
}

// Requeue resets a failed batch for another ingest attempt over filePath and
// bumps its reingest counter. Only a failed batch can be requeued.
func (r *BatchRepository) Requeue(ctx context.Context, batch *domain.Batch, filePath string) error {
	reingests := batch.Reingests + 1
	res := r.db.WithContext(ctx).
		Model(&domain.Batch{}).
		Where("id = ? AND status = ?", batch.ID, domain.BatchStatusFailed).
		Updates(map[string]any{
			"status":    domain.BatchStatusUploaded,
			"error":     "",
			"file_path": filePath,
			"reingests": reingests,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to requeue batch: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrBatchNotFailed
	}

	batch.Status = domain.BatchStatusUploaded
	batch.Error = ""
	batch.FilePath = filePath
	batch.Reingests = reingests

	r.logger.Info("batch requeued",
		slog.String("batch_id", batch.ID.String()),
		slog.Int("reingests", reingests))
	return nil
}

func (r *BatchRepository) update(ctx context.Context, id uuid.UUID, fields map[string]any) error {
	res := r.db.WithContext(ctx).Model(&domain.Batch{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		r.logger.Error("failed to update batch",
			slog.String("batch_id", id.String()),
			slog.Any("error", res.Error))
		return fmt.Errorf("failed to update batch: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrBatchNotFound
	}
	return nil
}
