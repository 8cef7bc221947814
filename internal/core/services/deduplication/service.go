package deduplication

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alejandroruanova/shipment-enrichment-service/internal/core/domain"
	"github.com/google/uuid"
)

// Service implements the Deduplicator interface
type Service struct {
	config   Config
	hashRepo HashRepository
	logger   *slog.Logger
}

// NewService creates a new deduplication service; hashRepo may be nil for within-run dedup only
func NewService(config Config, hashRepo HashRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}

	return &Service{
		config:   config,
		hashRepo: hashRepo,
		logger:   logger,
	}
}

// Deduplicate drops repeated rows, keeping the first occurrence and input order
func (s *Service) Deduplicate(ctx context.Context, batchID uuid.UUID, records []Record) (*DeduplicationResult, error) {
	startTime := time.Now()

	if len(records) == 0 {
		return &DeduplicationResult{
			Strategy: s.config.Strategy,
			Records:  []Record{},
		}, nil
	}
	if len(s.config.Columns) == 0 {
		return nil, fmt.Errorf("deduplication needs at least one column")
	}

	s.logger.Info("starting deduplication",
		slog.String("batch_id", batchID.String()),
		slog.Int("record_count", len(records)),
		slog.String("strategy", string(s.config.Strategy)))

	if err := s.generateHashes(records); err != nil {
		return nil, fmt.Errorf("failed to generate hashes: %w", err)
	}

	unique, duplicates := s.deduplicateLevel1(records)
	level1 := len(duplicates)

	level2 := 0
	if s.config.EnableLevel2 && s.hashRepo != nil {
		kept, dropped, err := s.deduplicateLevel2(ctx, batchID, unique)
		if err != nil {
			// Fail open: a lookup failure keeps the run's level 1 result
			s.logger.Error("level 2 deduplication failed", slog.Any("error", err))
		} else {
			unique = kept
			duplicates = append(duplicates, dropped...)
			level2 = len(dropped)
		}
	}

	if s.config.StoreHashes && s.hashRepo != nil {
		if err := s.storeHashes(ctx, batchID, records, duplicates); err != nil {
			s.logger.Error("failed to store hashes", slog.Any("error", err))
		}
	}

	processingTime := time.Since(startTime).Milliseconds()

	result := &DeduplicationResult{
		OriginalCount:     len(records),
		DeduplicatedCount: len(unique),
		RemovedCount:      len(records) - len(unique),
		Strategy:          s.config.Strategy,
		Records:           unique,
		Duplicates:        duplicates,
		Stats: DeduplicationStats{
			Level1Duplicates: level1,
			Level2Duplicates: level2,
			UniqueRecords:    len(unique),
			ProcessingTimeMs: processingTime,
		},
	}

	s.logger.Info("deduplication completed",
		slog.Int("original_count", result.OriginalCount),
		slog.Int("final_count", result.DeduplicatedCount),
		slog.Int("level1_duplicates", level1),
		slog.Int("level2_duplicates", level2),
		slog.Int64("processing_time_ms", processingTime))

	return result, nil
}

// deduplicateLevel1 keeps the first row of each hash within the run
func (s *Service) deduplicateLevel1(records []Record) ([]Record, []Duplicate) {
	firstSeen := make(map[string]int, len(records))
	unique := make([]Record, 0, len(records))
	var duplicates []Duplicate

	for _, record := range records {
		if first, ok := firstSeen[record.Hash]; ok {
			duplicates = append(duplicates, Duplicate{
				RowIndex:    record.RowIndex,
				Hash:        record.Hash,
				Level:       domain.DedupLevelWithinRun,
				DuplicateOf: &first,
			})
			continue
		}
		firstSeen[record.Hash] = record.RowIndex
		unique = append(unique, record)
	}

	return unique, duplicates
}

// deduplicateLevel2 drops rows whose hash was kept by another batch.
// The current batch is excluded so a retried run does not see its own rows.
func (s *Service) deduplicateLevel2(ctx context.Context, batchID uuid.UUID, records []Record) ([]Record, []Duplicate, error) {
	hashes := make([]string, len(records))
	for i, r := range records {
		hashes[i] = r.Hash
	}

	existing, err := s.hashRepo.CheckHashesExist(ctx, batchID, hashes)
	if err != nil {
		return nil, nil, fmt.Errorf("check existing hashes: %w", err)
	}

	unique := make([]Record, 0, len(records))
	var duplicates []Duplicate
	for _, record := range records {
		if existing[record.Hash] {
			duplicates = append(duplicates, Duplicate{
				RowIndex: record.RowIndex,
				Hash:     record.Hash,
				Level:    domain.DedupLevelAcrossRun,
			})
			continue
		}
		unique = append(unique, record)
	}

	return unique, duplicates, nil
}

// generateHashes generates hashes for all records
func (s *Service) generateHashes(records []Record) error {
	for i := range records {
		hash, err := generateHash(records[i], s.config)
		if err != nil {
			return fmt.Errorf("failed to hash record %d: %w", records[i].RowIndex, err)
		}
		records[i].Hash = hash
	}
	return nil
}

// storeHashes records every row of the run with its outcome
func (s *Service) storeHashes(ctx context.Context, batchID uuid.UUID, all []Record, duplicates []Duplicate) error {
	dropped := make(map[int]Duplicate, len(duplicates))
	for _, d := range duplicates {
		dropped[d.RowIndex] = d
	}

	entries := make([]HashEntry, 0, len(all))
	for _, record := range all {
		entry := HashEntry{
			Hash:     record.Hash,
			RowIndex: record.RowIndex,
			Kept:     true,
			Level:    domain.DedupLevelUnique,
		}
		if d, ok := dropped[record.RowIndex]; ok {
			entry.Kept = false
			entry.Level = d.Level
			entry.DuplicateOf = d.DuplicateOf
		}
		entries = append(entries, entry)
	}

	return s.hashRepo.SaveHashes(ctx, batchID, entries)
}

// GetConfig returns the current configuration
func (s *Service) GetConfig() Config {
	return s.config
}
