// Package cache provides a short-lived Redis cache for directory search
// pages. Mutations bump a generation counter instead of scanning for keys,
// so invalidation is a single INCR and stale entries age out via TTL.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	platformredis "usersapi/internal/platform/redis"
	"usersapi/internal/users/models"
	"usersapi/internal/users/search"
)

const (
	keyPrefix     = "users:search:"
	generationKey = "users:search:gen"
)

// SearchCache caches search result pages. A nil *SearchCache is a disabled
// cache: every method is a no-op returning a miss.
type SearchCache struct {
	client *platformredis.Client
	ttl    time.Duration
}

// New builds a search cache. Returns nil (disabled) when the client is nil
// or the TTL is zero.
func New(client *platformredis.Client, ttl time.Duration) *SearchCache {
	if client == nil || ttl <= 0 {
		return nil
	}
	return &SearchCache{client: client, ttl: ttl}
}

// Get returns the cached page for a filter, if any. Cache failures are
// reported but callers should treat them as misses, not request failures.
func (c *SearchCache) Get(ctx context.Context, filter *search.Filter) (*models.SearchResult, bool, error) {
	if c == nil {
		return nil, false, nil
	}
	key, err := c.key(ctx, filter)
	if err != nil {
		return nil, false, err
	}
	payload, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false, nil // treat errors and misses alike
	}
	var result models.SearchResult
	if err := json.Unmarshal(payload, &result); err != nil {
		return nil, false, fmt.Errorf("decode cached search result: %w", err)
	}
	return &result, true, nil
}

// Set stores a search page under the current generation.
func (c *SearchCache) Set(ctx context.Context, filter *search.Filter, result *models.SearchResult) error {
	if c == nil {
		return nil
	}
	key, err := c.key(ctx, filter)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode search result: %w", err)
	}
	return c.client.Set(ctx, key, payload, c.ttl).Err()
}

// Invalidate bumps the generation so every cached page becomes unreachable.
// Called on any profile mutation.
func (c *SearchCache) Invalidate(ctx context.Context) error {
	if c == nil {
		return nil
	}
	return c.client.Incr(ctx, generationKey).Err()
}

func (c *SearchCache) key(ctx context.Context, filter *search.Filter) (string, error) {
	gen, err := c.client.Get(ctx, generationKey).Int64()
	if err != nil {
		gen = 0
	}
	payload, err := json.Marshal(filter)
	if err != nil {
		return "", fmt.Errorf("encode search filter: %w", err)
	}
	sum := sha256.Sum256(payload)
	return fmt.Sprintf("%s%d:%s", keyPrefix, gen, hex.EncodeToString(sum[:])), nil
}
