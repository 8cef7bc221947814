package repositories

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alejandroruanova/shipment-enrichment-service/internal/core/domain"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DefaultSaveBatchSize is used when SaveShipments is given a non-positive batch size
const DefaultSaveBatchSize = 500

// ShipmentRepository stores enriched shipment rows
type ShipmentRepository struct {
	db     *gorm.DB
	logger *slog.Logger
}

// NewShipmentRepository creates a new repository instance
func NewShipmentRepository(db *gorm.DB, logger *slog.Logger) *ShipmentRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &ShipmentRepository{db: db, logger: logger}
}

// SaveShipments replaces the rows of a batch. Rerunning a batch is idempotent.
func (r *ShipmentRepository) SaveShipments(ctx context.Context, batchID uuid.UUID, shipments []domain.Shipment, batchSize int) error {
	if batchSize <= 0 {
		batchSize = DefaultSaveBatchSize
	}
	for i := range shipments {
		shipments[i].BatchID = batchID
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("batch_id = ?", batchID).Delete(&domain.Shipment{}).Error; err != nil {
			return err
		}
		if len(shipments) == 0 {
			return nil
		}
		return tx.CreateInBatches(shipments, batchSize).Error
	})
	if err != nil {
		r.logger.Error("failed to save shipments",
			slog.String("batch_id", batchID.String()),
			slog.Int("count", len(shipments)),
			slog.Any("error", err))
		return fmt.Errorf("failed to insert shipments: %w", err)
	}

	r.logger.Info("saved shipments",
		slog.String("batch_id", batchID.String()),
		slog.Int("count", len(shipments)))
	return nil
}

// ListByBatch returns a page of a batch's rows in source order
func (r *ShipmentRepository) ListByBatch(ctx context.Context, batchID uuid.UUID, limit, offset int) ([]domain.Shipment, error) {
	var shipments []domain.Shipment

	q := r.db.WithContext(ctx).
		Where("batch_id = ?", batchID).
		Order("row_index ASC").
		Offset(offset)
	if limit > 0 {
		q = q.Limit(limit)
	}

	if err := q.Find(&shipments).Error; err != nil {
		return nil, fmt.Errorf("database query failed: %w", err)
	}
	return shipments, nil
}

// CountByBatch returns how many rows a batch stored
func (r *ShipmentRepository) CountByBatch(ctx context.Context, batchID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&domain.Shipment{}).
		Where("batch_id = ?", batchID).
		Count(&count).
		Error
	if err != nil {
		return 0, fmt.Errorf("database query failed: %w", err)
	}
	return count, nil
}
