package deduplication

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockHashRepository implements HashRepository for testing
type mockHashRepository struct {
	kept        map[string]uuid.UUID
	savedHashes map[uuid.UUID][]HashEntry
	checkErr    error
}

func newMockHashRepository() *mockHashRepository {
	return &mockHashRepository{
		kept:        make(map[string]uuid.UUID),
		savedHashes: make(map[uuid.UUID][]HashEntry),
	}
}

func (m *mockHashRepository) CheckHashesExist(ctx context.Context, excludeBatch uuid.UUID, hashes []string) (map[string]bool, error) {
	if m.checkErr != nil {
		return nil, m.checkErr
	}
	out := make(map[string]bool)
	for _, h := range hashes {
		if batch, ok := m.kept[h]; ok && batch != excludeBatch {
			out[h] = true
		}
	}
	return out, nil
}

func (m *mockHashRepository) SaveHashes(ctx context.Context, batchID uuid.UUID, hashes []HashEntry) error {
	m.savedHashes[batchID] = hashes
	for _, h := range hashes {
		if h.Kept {
			m.kept[h.Hash] = batchID
		}
	}
	return nil
}

func (m *mockHashRepository) GetBatchHashes(ctx context.Context, batchID uuid.UUID) ([]HashEntry, error) {
	return m.savedHashes[batchID], nil
}

func row(i int, desc, qty string) Record {
	return Record{RowIndex: i, Data: map[string]string{
		"DATE":              "2024-01-15",
		"GOODS DESCRIPTION": desc,
		"QUANTITY":          qty,
		"TOTAL VALUE_INR":   "104000",
	}}
}

func rowIndices(records []Record) []int {
	out := make([]int, len(records))
	for i, r := range records {
		out[i] = r.RowIndex
	}
	return out
}

func withinRunConfig() Config {
	cfg := DefaultConfig()
	cfg.EnableLevel2 = false
	cfg.StoreHashes = false
	return cfg
}

func TestService_DeduplicateLevel1(t *testing.T) {
	service := NewService(withinRunConfig(), nil, nil)

	records := []Record{
		row(0, "MILD STEEL BASKET (MS-101) QTY: 500 PCS", "500"),
		row(1, "MILD STEEL BASKET (MS-101) QTY: 500 PCS", "500"), // duplicate of 0
		row(2, "AB-22 WOODEN SPOON SET 12 SET QTY:100", "100"),
		row(3, "MILD STEEL BASKET (MS-101) QTY: 500 PCS", "500"), // duplicate of 0
		row(4, "MILD STEEL BASKET (MS-101) QTY: 500 PCS", "400"), // differs on quantity
	}

	result, err := service.Deduplicate(context.Background(), uuid.New(), records)
	require.NoError(t, err)

	assert.Equal(t, 5, result.OriginalCount)
	assert.Equal(t, 3, result.DeduplicatedCount)
	assert.Equal(t, 2, result.RemovedCount)
	assert.Equal(t, 2, result.Stats.Level1Duplicates)
	assert.Equal(t, 0, result.Stats.Level2Duplicates)
	assert.Equal(t, []int{0, 2, 4}, rowIndices(result.Records))

	require.Len(t, result.Duplicates, 2)
	for _, d := range result.Duplicates {
		assert.Equal(t, 1, d.Level)
		require.NotNil(t, d.DuplicateOf)
		assert.Equal(t, 0, *d.DuplicateOf)
	}
}

func TestService_DeduplicateLevel1_CaseSensitivity(t *testing.T) {
	records := func() []Record {
		return []Record{
			row(0, "SS LADLE", "10"),
			row(1, "ss ladle", "10"),
		}
	}

	insensitive := NewService(withinRunConfig(), nil, nil)
	result, err := insensitive.Deduplicate(context.Background(), uuid.New(), records())
	require.NoError(t, err)
	assert.Equal(t, 1, result.DeduplicatedCount)

	cfg := withinRunConfig()
	cfg.CaseSensitive = true
	sensitive := NewService(cfg, nil, nil)
	result, err = sensitive.Deduplicate(context.Background(), uuid.New(), records())
	require.NoError(t, err)
	assert.Equal(t, 2, result.DeduplicatedCount)
}

func TestService_DeduplicateWhitespaceHandling(t *testing.T) {
	records := func() []Record {
		return []Record{
			row(0, "COPPER MUG 6 NOS", "6"),
			row(1, "  COPPER  MUG   6 NOS ", "6"),
		}
	}

	normalized := NewService(withinRunConfig(), nil, nil)
	result, err := normalized.Deduplicate(context.Background(), uuid.New(), records())
	require.NoError(t, err)
	assert.Equal(t, 1, result.DeduplicatedCount)

	cfg := withinRunConfig()
	cfg.Strategy = StrategyExact
	exact := NewService(cfg, nil, nil)
	result, err = exact.Deduplicate(context.Background(), uuid.New(), records())
	require.NoError(t, err)
	// TrimWhitespace strips the ends but inner runs still differ
	assert.Equal(t, 2, result.DeduplicatedCount)
}

func TestService_DeduplicateLevel2_AcrossBatches(t *testing.T) {
	repo := newMockHashRepository()
	service := NewService(DefaultConfig(), repo, nil)

	first := uuid.New()
	result, err := service.Deduplicate(context.Background(), first, []Record{
		row(0, "SS LADLE", "10"),
		row(1, "COPPER MUG", "6"),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, result.DeduplicatedCount)

	second := uuid.New()
	result, err = service.Deduplicate(context.Background(), second, []Record{
		row(0, "SS LADLE", "10"),
		row(1, "GLASS BOWL", "40"),
		row(2, "GLASS BOWL", "40"),
	})
	require.NoError(t, err)

	assert.Equal(t, []int{1}, rowIndices(result.Records))
	assert.Equal(t, 1, result.Stats.Level1Duplicates)
	assert.Equal(t, 1, result.Stats.Level2Duplicates)

	saved := repo.savedHashes[second]
	require.Len(t, saved, 3)
	assert.False(t, saved[0].Kept)
	assert.Equal(t, 2, saved[0].Level)
	assert.True(t, saved[1].Kept)
	assert.False(t, saved[2].Kept)
	assert.Equal(t, 1, saved[2].Level)
	require.NotNil(t, saved[2].DuplicateOf)
	assert.Equal(t, 1, *saved[2].DuplicateOf)
}

func TestService_DeduplicateLevel2_RetryIgnoresOwnBatch(t *testing.T) {
	repo := newMockHashRepository()
	service := NewService(DefaultConfig(), repo, nil)
	batchID := uuid.New()

	records := func() []Record { return []Record{row(0, "SS LADLE", "10")} }

	_, err := service.Deduplicate(context.Background(), batchID, records())
	require.NoError(t, err)

	result, err := service.Deduplicate(context.Background(), batchID, records())
	require.NoError(t, err)
	assert.Equal(t, 1, result.DeduplicatedCount)
}

func TestService_DeduplicateLevel2_FailsOpen(t *testing.T) {
	repo := newMockHashRepository()
	repo.checkErr = errors.New("connection refused")
	service := NewService(DefaultConfig(), repo, nil)

	result, err := service.Deduplicate(context.Background(), uuid.New(), []Record{
		row(0, "SS LADLE", "10"),
		row(1, "SS LADLE", "10"),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.DeduplicatedCount)
	assert.Equal(t, 0, result.Stats.Level2Duplicates)
}

func TestService_DeduplicateEmptyRecords(t *testing.T) {
	service := NewService(DefaultConfig(), nil, nil)

	result, err := service.Deduplicate(context.Background(), uuid.New(), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, result.OriginalCount)
	assert.Empty(t, result.Records)
}

func TestService_DeduplicateRequiresColumns(t *testing.T) {
	cfg := withinRunConfig()
	cfg.Columns = nil

	_, err := NewService(cfg, nil, nil).Deduplicate(context.Background(), uuid.New(), []Record{row(0, "X", "1")})
	assert.Error(t, err)
}

func TestGenerateHash_Consistency(t *testing.T) {
	cfg := DefaultConfig()

	h1, err := generateHash(row(0, "SS LADLE", "10"), cfg)
	require.NoError(t, err)
	h2, err := generateHash(row(7, "SS LADLE", "10"), cfg)
	require.NoError(t, err)

	assert.Equal(t, h1, h2, "row index is not part of the fingerprint")
	assert.Len(t, h1, 64)
}

func TestGenerateHash_MissingVersusEmpty(t *testing.T) {
	cfg := Config{Columns: []string{"A", "B"}}

	missing, err := generateHash(Record{Data: map[string]string{"A": "x"}}, cfg)
	require.NoError(t, err)
	empty, err := generateHash(Record{Data: map[string]string{"A": "x", "B": ""}}, cfg)
	require.NoError(t, err)

	assert.NotEqual(t, missing, empty)
}

func TestGenerateHash_IgnoresOtherColumns(t *testing.T) {
	cfg := DefaultConfig()
	a := row(0, "SS LADLE", "10")
	b := row(0, "SS LADLE", "10")
	b.Data["HS CODE"] = "7323"

	h1, err := generateHash(a, cfg)
	require.NoError(t, err)
	h2, err := generateHash(b, cfg)
	require.NoError(t, err)

	assert.Equal(t, h1, h2)
}
