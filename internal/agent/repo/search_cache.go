package repo

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tripscout/agent/internal/agent/model"
	errx "github.com/tripscout/agent/internal/core/error"
	logx "github.com/tripscout/agent/pkg/logger"
)

// SearchCache stores search provider results keyed by query so repeated
// queries within the TTL skip the provider round-trip.
type SearchCache interface {
	// Get returns cached results for the query; ok is false on a miss.
	Get(ctx context.Context, query string) (results []model.SearchResult, ok bool, err error)

	// Put stores results for the query.
	Put(ctx context.Context, query string, results []model.SearchResult) error
}

// RedisSearchCache is a Redis-backed SearchCache with per-entry TTL.
type RedisSearchCache struct {
	rdb redis.Cmdable
	ttl time.Duration
}

func NewRedisSearchCache(rdb redis.Cmdable, ttl time.Duration) *RedisSearchCache {
	return &RedisSearchCache{rdb: rdb, ttl: ttl}
}

// searchKey normalizes the query so trivially different spellings share an
// entry, then hashes it to keep keys bounded and safe.
func (c *RedisSearchCache) searchKey(query string) string {
	normalized := strings.ToLower(strings.Join(strings.Fields(query), " "))
	sum := sha256.Sum256([]byte(normalized))
	return fmt.Sprintf("search:%x:results", sum[:16])
}

func (c *RedisSearchCache) Get(ctx context.Context, query string) ([]model.SearchResult, bool, error) {
	key := c.searchKey(query)

	raw, err := c.rdb.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, false, nil
		}
		logx.Error().Err(err).Str("key", key).Msg("failed to read search cache")
		return nil, false, errx.WrapRedis(err)
	}

	var results []model.SearchResult
	if err := json.Unmarshal([]byte(raw), &results); err != nil {
		// Treat a corrupt entry as a miss; it will be overwritten on Put.
		logx.Warn().Err(err).Str("key", key).Msg("discarding undecodable search cache entry")
		return nil, false, nil
	}
	return results, true, nil
}

func (c *RedisSearchCache) Put(ctx context.Context, query string, results []model.SearchResult) error {
	b, err := json.Marshal(results)
	if err != nil {
		return fmt.Errorf("marshal search results: %w", err)
	}
	key := c.searchKey(query)

	if err := c.rdb.Set(ctx, key, b, c.ttl).Err(); err != nil {
		logx.Error().Err(err).Str("key", key).Msg("failed to write search cache")
		return errx.WrapRedis(err)
	}
	return nil
}

var _ SearchCache = (*RedisSearchCache)(nil)

// NoopSearchCache is used when no Redis URL is configured.
type NoopSearchCache struct{}

func (NoopSearchCache) Get(ctx context.Context, query string) ([]model.SearchResult, bool, error) {
	return nil, false, nil
}

func (NoopSearchCache) Put(ctx context.Context, query string, results []model.SearchResult) error {
	return nil
}

var _ SearchCache = NoopSearchCache{}
