package frpei

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
	"github.com/redis/go-redis/v9"

	"github.com/beacon-search/beacon/internal/model"
)

// Cache memoizes a Retrieve call's candidate set for TTL, keyed by the
// composite of query/limit/mode/providers/types/expand per §4.F step 2.
type Cache interface {
	Get(ctx context.Context, key string) ([]*model.Candidate, bool)
	Set(ctx context.Context, key string, candidates []*model.Candidate, ttl time.Duration)
}

// CacheKey builds the deterministic memoization key.
func CacheKey(query string, limit int, mode string, providers []string, types []string, expand bool) string {
	sorted := append([]string{}, providers...)
	sort.Strings(sorted)
	sortedTypes := append([]string{}, types...)
	sort.Strings(sortedTypes)
	return fmt.Sprintf("%s|%d|%s|%s|%s|%v", query, limit, mode, strings.Join(sorted, ","), strings.Join(sortedTypes, ","), expand)
}

type cacheEntry struct {
	candidates []*model.Candidate
	expiresAt  time.Time
}

// MemoryCache is the default in-memory FRPEI cache backend, grounded on
// the xsync concurrent map used elsewhere in the pack for hot state.
type MemoryCache struct {
	entries *xsync.MapOf[string, cacheEntry]
}

// NewMemoryCache builds an empty in-memory cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: xsync.NewMapOf[string, cacheEntry]()}
}

func (c *MemoryCache) Get(ctx context.Context, key string) ([]*model.Candidate, bool) {
	entry, ok := c.entries.Load(key)
	if !ok || time.Now().After(entry.expiresAt) {
		return nil, false
	}
	return entry.candidates, true
}

func (c *MemoryCache) Set(ctx context.Context, key string, candidates []*model.Candidate, ttl time.Duration) {
	c.entries.Store(key, cacheEntry{candidates: candidates, expiresAt: time.Now().Add(ttl)})
}

// RedisCache is the optional distributed cache backend selected via
// BEACON_FRPEI_CACHE_ENGINE=redis.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache connects to the configured Redis URL.
func NewRedisCache(redisURL string) (*RedisCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	return &RedisCache{client: redis.NewClient(opts)}, nil
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]*model.Candidate, bool) {
	raw, err := c.client.Get(ctx, "frpei:"+key).Bytes()
	if err != nil {
		return nil, false
	}
	var candidates []*model.Candidate
	if err := json.Unmarshal(raw, &candidates); err != nil {
		return nil, false
	}
	return candidates, true
}

func (c *RedisCache) Set(ctx context.Context, key string, candidates []*model.Candidate, ttl time.Duration) {
	raw, err := json.Marshal(candidates)
	if err != nil {
		return
	}
	c.client.Set(ctx, "frpei:"+key, raw, ttl)
}
