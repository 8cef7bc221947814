package deduplication

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Strategy defines how values are normalised before hashing
type Strategy string

const (
	StrategyExact      Strategy = "exact"      // Trim and case rules only
	StrategyNormalized Strategy = "normalized" // Also collapses inner whitespace
)

// Record is one source row to be deduplicated
type Record struct {
	RowIndex int               `json:"row_index"`
	Data     map[string]string `json:"data"`
	Hash     string            `json:"hash,omitempty"`
}

// Duplicate describes a dropped row
type Duplicate struct {
	RowIndex int    `json:"row_index"`
	Hash     string `json:"hash"`
	Level    int    `json:"level"`

	// DuplicateOf is set for within-run duplicates only
	DuplicateOf *int `json:"duplicate_of,omitempty"`
}

// DeduplicationResult contains the result of deduplication
type DeduplicationResult struct {
	OriginalCount     int                `json:"original_count"`
	DeduplicatedCount int                `json:"deduplicated_count"`
	RemovedCount      int                `json:"removed_count"`
	Strategy          Strategy           `json:"strategy"`
	Records           []Record           `json:"records"`
	Duplicates        []Duplicate        `json:"duplicates,omitempty"`
	Stats             DeduplicationStats `json:"stats"`
}

// DeduplicationStats provides detailed statistics
type DeduplicationStats struct {
	Level1Duplicates int   `json:"level1_duplicates"` // Within the run
	Level2Duplicates int   `json:"level2_duplicates"` // Seen in an earlier run
	UniqueRecords    int   `json:"unique_records"`
	ProcessingTimeMs int64 `json:"processing_time_ms"`
}

// Config for deduplication service
type Config struct {
	Strategy       Strategy `json:"strategy"`
	Columns        []string `json:"columns"` // Columns that make up the fingerprint
	EnableLevel2   bool     `json:"enable_level2"`
	StoreHashes    bool     `json:"store_hashes"`
	CaseSensitive  bool     `json:"case_sensitive"`
	TrimWhitespace bool     `json:"trim_whitespace"`
}

// DefaultConfig fingerprints a shipment by date, description, quantity and value
func DefaultConfig() Config {
	return Config{
		Strategy:       StrategyNormalized,
		Columns:        []string{"DATE", "GOODS DESCRIPTION", "QUANTITY", "TOTAL VALUE_INR"},
		EnableLevel2:   true,
		StoreHashes:    true,
		CaseSensitive:  false,
		TrimWhitespace: true,
	}
}

// HashRepository defines the interface for hash storage
type HashRepository interface {
	// CheckHashesExist returns the subset of hashes kept by any batch other than excludeBatch
	CheckHashesExist(ctx context.Context, excludeBatch uuid.UUID, hashes []string) (map[string]bool, error)

	// SaveHashes replaces the stored hashes of a batch
	SaveHashes(ctx context.Context, batchID uuid.UUID, hashes []HashEntry) error

	// GetBatchHashes retrieves all hashes for a specific batch
	GetBatchHashes(ctx context.Context, batchID uuid.UUID) ([]HashEntry, error)
}

// HashEntry represents a hash entry to be stored
type HashEntry struct {
	Hash        string
	RowIndex    int
	Kept        bool
	Level       int
	DuplicateOf *int
}

// Deduplicator defines the interface for deduplication operations
type Deduplicator interface {
	Deduplicate(ctx context.Context, batchID uuid.UUID, records []Record) (*DeduplicationResult, error)
	GetConfig() Config
}

// generateHash hashes the configured columns as an ordered list of pairs.
// A missing column hashes differently from an empty one.
func generateHash(record Record, config Config) (string, error) {
	pairs := make([][2]*string, 0, len(config.Columns))
	for _, col := range config.Columns {
		name := col
		var value *string
		if raw, ok := record.Data[col]; ok {
			v := normalizeValue(raw, config)
			value = &v
		}
		pairs = append(pairs, [2]*string{&name, value})
	}

	data, err := json.Marshal(pairs)
	if err != nil {
		return "", fmt.Errorf("failed to marshal hash data: %w", err)
	}

	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

func normalizeValue(s string, config Config) string {
	if config.TrimWhitespace {
		s = strings.TrimSpace(s)
	}
	if config.Strategy == StrategyNormalized {
		s = strings.Join(strings.Fields(s), " ")
	}
	if !config.CaseSensitive {
		s = strings.ToLower(s)
	}
	return s
}
