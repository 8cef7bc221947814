package repositories

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alejandroruanova/shipment-enrichment-service/internal/core/domain"
	"github.com/alejandroruanova/shipment-enrichment-service/internal/core/services/deduplication"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// hashLookupChunk bounds the size of the IN list sent per query
const hashLookupChunk = 1000

// DedupHashRepository implements the HashRepository interface using GORM
type DedupHashRepository struct {
	db     *gorm.DB
	logger *slog.Logger
}

// NewDedupHashRepository creates a new repository instance
func NewDedupHashRepository(db *gorm.DB, logger *slog.Logger) *DedupHashRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &DedupHashRepository{db: db, logger: logger}
}

// CheckHashesExist returns which hashes were kept by a batch other than excludeBatch
func (r *DedupHashRepository) CheckHashesExist(ctx context.Context, excludeBatch uuid.UUID, hashes []string) (map[string]bool, error) {
	found := make(map[string]bool)

	for start := 0; start < len(hashes); start += hashLookupChunk {
		end := min(start+hashLookupChunk, len(hashes))

		var matches []string
		err := r.db.WithContext(ctx).
			Model(&domain.DedupHash{}).
			Distinct().
			Where("hash IN ? AND kept = ? AND batch_id <> ?", hashes[start:end], true, excludeBatch).
			Pluck("hash", &matches).
			Error
		if err != nil {
			r.logger.Error("failed to check hash existence",
				slog.Int("hash_count", end-start),
				slog.Any("error", err))
			return nil, fmt.Errorf("database query failed: %w", err)
		}

		for _, h := range matches {
			found[h] = true
		}
	}

	return found, nil
}

// SaveHashes replaces the stored hashes of a batch in one transaction
func (r *DedupHashRepository) SaveHashes(ctx context.Context, batchID uuid.UUID, hashes []deduplication.HashEntry) error {
	rows := make([]domain.DedupHash, 0, len(hashes))
	for _, entry := range hashes {
		rows = append(rows, domain.DedupHash{
			ID:          uuid.New(),
			BatchID:     batchID,
			Hash:        entry.Hash,
			RowIndex:    entry.RowIndex,
			Kept:        entry.Kept,
			Level:       entry.Level,
			DuplicateOf: entry.DuplicateOf,
		})
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("batch_id = ?", batchID).Delete(&domain.DedupHash{}).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.CreateInBatches(rows, 1000).Error
	})
	if err != nil {
		r.logger.Error("failed to save hashes",
			slog.String("batch_id", batchID.String()),
			slog.Int("hash_count", len(hashes)),
			slog.Any("error", err))
		return fmt.Errorf("failed to insert hashes: %w", err)
	}

	r.logger.Info("saved deduplication hashes",
		slog.String("batch_id", batchID.String()),
		slog.Int("hash_count", len(hashes)))

	return nil
}

// GetBatchHashes retrieves all hashes for a specific batch in row order
func (r *DedupHashRepository) GetBatchHashes(ctx context.Context, batchID uuid.UUID) ([]deduplication.HashEntry, error) {
	var rows []domain.DedupHash

	err := r.db.WithContext(ctx).
		Where("batch_id = ?", batchID).
		Order("row_index ASC").
		Find(&rows).
		Error
	if err != nil {
		r.logger.Error("failed to get batch hashes",
			slog.String("batch_id", batchID.String()),
			slog.Any("error", err))
		return nil, fmt.Errorf("database query failed: %w", err)
	}

	entries := make([]deduplication.HashEntry, 0, len(rows))
	for _, dh := range rows {
		entries = append(entries, deduplication.HashEntry{
			Hash:        dh.Hash,
			RowIndex:    dh.RowIndex,
			Kept:        dh.Kept,
			Level:       dh.Level,
			DuplicateOf: dh.DuplicateOf,
		})
	}

	return entries, nil
}
