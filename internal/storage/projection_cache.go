package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/fairfund-scanner/internal/logging"
)

// Cache key layout. Contribution keys embed the backer address lowercased so
// invalidation by project prefix catches every backer.
const (
	listKey            = "projects:all"
	projectKeyPrefix   = "project:"
	contributionPrefix = "contrib:"
)

// ProjectionCache stores JSON-encoded projections with a shared TTL.
// Misses and decode failures are reported as absent entries so a corrupt
// cache row degrades to a refetch, never an error.
type ProjectionCache struct {
	cache *RedisCache
	ttl   time.Duration
}

// NewProjectionCache creates a projection cache with the given entry TTL
func NewProjectionCache(cache *RedisCache, ttl time.Duration) *ProjectionCache {
	return &ProjectionCache{cache: cache, ttl: ttl}
}

// ListKey returns the cache key for the full project listing
func ListKey() string {
	return listKey
}

// ProjectKey returns the cache key for one project's detail
func ProjectKey(id uint64) string {
	return fmt.Sprintf("%s%d", projectKeyPrefix, id)
}

// ContributionKey returns the cache key for one backer's contribution
func ContributionKey(id uint64, backer string) string {
	return fmt.Sprintf("%s%d:%s", contributionPrefix, id, strings.ToLower(backer))
}

// Get loads and decodes the entry for key into dest, reporting whether an
// entry was present.
func (c *ProjectionCache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	raw, err := c.cache.Get(ctx, key)
	if err != nil {
		if IsMiss(err) {
			return false, nil
		}
		return false, fmt.Errorf("cache get %s: %w", key, err)
	}
	if err := json.Unmarshal([]byte(raw), dest); err != nil {
		logging.FromContext(ctx).WithField("key", key).WithError(err).Warn("discarding undecodable cache entry")
		return false, nil
	}
	return true, nil
}

// Set encodes and stores value under key with the cache TTL
func (c *ProjectionCache) Set(ctx context.Context, key string, value interface{}) error {
	encoded, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache encode %s: %w", key, err)
	}
	if err := c.cache.Set(ctx, key, encoded, c.ttl); err != nil {
		return fmt.Errorf("cache set %s: %w", key, err)
	}
	return nil
}

// InvalidateList drops the cached project listing
func (c *ProjectionCache) InvalidateList(ctx context.Context) error {
	return c.cache.Del(ctx, listKey)
}

// InvalidateProject drops the listing, the project's detail and every backer
// contribution cached for it. Called after a confirmed write so the next read
// refetches from chain.
func (c *ProjectionCache) InvalidateProject(ctx context.Context, id uint64) error {
	keys := []string{listKey, ProjectKey(id)}

	contribKeys, err := c.cache.Keys(ctx, fmt.Sprintf("%s%d:*", contributionPrefix, id))
	if err != nil {
		return fmt.Errorf("cache scan contributions for project %d: %w", id, err)
	}
	keys = append(keys, contribKeys...)

	if err := c.cache.Del(ctx, keys...); err != nil {
		return fmt.Errorf("cache invalidate project %d: %w", id, err)
	}
	return nil
}
