package shipments

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"

	"github.com/alejandroruanova/shipment-enrichment-service/internal/core/services/goodsparser"
)

// ParseCache stores encoded parse results by key
type ParseCache interface {
	GetMany(ctx context.Context, keys []string) (map[string][]byte, error)
	SetMany(ctx context.Context, entries map[string][]byte) error
}

// cacheKey changes whenever the pattern library does, so a reconfigured parser never reads stale entries
func cacheKey(version string, in goodsparser.Input) string {
	h := sha256.New()
	h.Write([]byte(version))
	h.Write([]byte{0})
	h.Write([]byte(in.Category))
	h.Write([]byte{0})
	h.Write([]byte(in.Description))
	return hex.EncodeToString(h.Sum(nil))
}

// parseCached fills results from the cache and parses only the misses.
// Cache failures are logged and treated as misses.
func (s *Service) parseCached(ctx context.Context, inputs []goodsparser.Input) ([]goodsparser.ParsedRecord, error) {
	version := s.parser.Library().Version()

	keys := make([]string, len(inputs))
	for i, in := range inputs {
		keys[i] = cacheKey(version, in)
	}

	hits, err := s.deps.Cache.GetMany(ctx, keys)
	if err != nil {
		s.logger.Warn("parse cache read failed", slog.Any("error", err))
		hits = nil
	}

	results := make([]goodsparser.ParsedRecord, len(inputs))
	var missIdx []int
	var missInputs []goodsparser.Input

	for i := range inputs {
		if raw, ok := hits[keys[i]]; ok {
			if err := json.Unmarshal(raw, &results[i]); err == nil {
				continue
			}
			results[i] = goodsparser.ParsedRecord{}
		}
		missIdx = append(missIdx, i)
		missInputs = append(missInputs, inputs[i])
	}

	if len(missInputs) == 0 {
		return results, nil
	}

	parsed, err := s.parser.ParseBatch(ctx, missInputs, s.cfg.Workers)
	if err != nil {
		return nil, err
	}

	entries := make(map[string][]byte, len(parsed))
	for j, rec := range parsed {
		i := missIdx[j]
		results[i] = rec
		if raw, err := json.Marshal(rec); err == nil {
			entries[keys[i]] = raw
		}
	}

	if err := s.deps.Cache.SetMany(ctx, entries); err != nil {
		s.logger.Warn("parse cache write failed", slog.Any("error", err))
	}

	s.logger.Debug("parse cache",
		slog.Int("hits", len(inputs)-len(missInputs)),
		slog.Int("misses", len(missInputs)))

	return results, nil
}
