package shipments

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/alejandroruanova/shipment-enrichment-service/internal/core/services/goodsparser"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryCache struct {
	mu      sync.Mutex
	entries map[string][]byte
	getErr  error
	sets    int
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: make(map[string][]byte)}
}

func (m *memoryCache) GetMany(ctx context.Context, keys []string) (map[string][]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	out := make(map[string][]byte)
	for _, k := range keys {
		if v, ok := m.entries[k]; ok {
			out[k] = v
		}
	}
	return out, nil
}

func (m *memoryCache) SetMany(ctx context.Context, entries map[string][]byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sets += len(entries)
	for k, v := range entries {
		m.entries[k] = v
	}
	return nil
}

func TestService_ParseCachedStoresMisses(t *testing.T) {
	cache := newMemoryCache()
	svc := NewService(testConfig(), nil, Dependencies{Cache: cache}, nil)

	inputs := []goodsparser.Input{
		{Description: "COPPER MUG 6 NOS"},
		{Description: "SS LADLE QTY: 1,200 PCS EUR 0.85", Category: "Steel"},
	}

	first, err := svc.ParseDescriptions(context.Background(), inputs)
	require.NoError(t, err)
	assert.Equal(t, 2, cache.sets)

	second, err := svc.ParseDescriptions(context.Background(), inputs)
	require.NoError(t, err)
	assert.Equal(t, 2, cache.sets, "second run is served from cache")
	assert.Equal(t, first, second)
}

func TestService_ParseCachedUsesHits(t *testing.T) {
	cache := newMemoryCache()
	svc := NewService(testConfig(), nil, Dependencies{Cache: cache}, nil)

	in := goodsparser.Input{Description: "COPPER MUG 6 NOS"}
	cached := goodsparser.ParsedRecord{ModelName: "FROM CACHE", UnitOfMeasure: "NOS"}
	raw, err := json.Marshal(cached)
	require.NoError(t, err)
	cache.entries[cacheKey(svc.ParserVersion(), in)] = raw

	got, err := svc.ParseDescriptions(context.Background(), []goodsparser.Input{in, {Description: "GLASS BOWL"}})
	require.NoError(t, err)
	assert.Equal(t, cached, got[0])
	assert.Equal(t, strPtr("GLASS"), got[1].Material)
	assert.Equal(t, 1, cache.sets)
}

func TestService_ParseCachedIgnoresCorruptEntries(t *testing.T) {
	cache := newMemoryCache()
	svc := NewService(testConfig(), nil, Dependencies{Cache: cache}, nil)

	in := goodsparser.Input{Description: "COPPER MUG 6 NOS"}
	cache.entries[cacheKey(svc.ParserVersion(), in)] = []byte("{not json")

	got, err := svc.ParseDescriptions(context.Background(), []goodsparser.Input{in})
	require.NoError(t, err)
	assert.Equal(t, goodsparser.Parse(in.Description, ""), got[0])
}

func TestService_ParseCachedFailsOpen(t *testing.T) {
	cache := newMemoryCache()
	cache.getErr = errors.New("redis down")
	svc := NewService(testConfig(), nil, Dependencies{Cache: cache}, nil)

	got, err := svc.ParseDescriptions(context.Background(), []goodsparser.Input{{Description: "COPPER MUG 6 NOS"}})
	require.NoError(t, err)
	assert.Equal(t, floatPtr(6), got[0].Quantity)
}

func TestCacheKey(t *testing.T) {
	in := goodsparser.Input{Description: "COPPER MUG", Category: "Others"}

	assert.Equal(t, cacheKey("v1", in), cacheKey("v1", in))
	assert.NotEqual(t, cacheKey("v1", in), cacheKey("v2", in), "library version is part of the key")
	assert.NotEqual(t, cacheKey("v1", in), cacheKey("v1", goodsparser.Input{Description: "COPPER MUG"}))
	// The separator keeps category and description apart
	assert.NotEqual(t,
		cacheKey("v1", goodsparser.Input{Description: "B", Category: "A"}),
		cacheKey("v1", goodsparser.Input{Description: "", Category: "A\x00B"}))
}
