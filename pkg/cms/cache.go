package cms

import (
	"context"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/sleads/portal/pkg/observability"
	"github.com/sleads/portal/pkg/storage"
)

// Cache is a two-tier cache for resolved page content: an in-process LRU in
// front of Redis. Public content endpoints are read-heavy and every write
// path invalidates the whole project, so stale entries never outlive an
// edit by more than the cross-instance propagation of the Redis delete.
type Cache struct {
	l1      *lru.LRU[string, []*ResolvedField]
	redis   *storage.RedisClient
	ttl     time.Duration
	metrics *observability.Metrics
}

// NewCache creates a two-tier content cache. redis may be nil, in which
// case only the in-process tier is used. metrics may be nil.
func NewCache(maxEntries int, ttl time.Duration, redis *storage.RedisClient, metrics *observability.Metrics) *Cache {
	if maxEntries < 10 {
		maxEntries = 10
	}
	return &Cache{
		l1:      lru.NewLRU[string, []*ResolvedField](maxEntries, nil, ttl),
		redis:   redis,
		ttl:     ttl,
		metrics: metrics,
	}
}

// Get returns cached resolved content for a page/split pair
func (c *Cache) Get(ctx context.Context, projectID, pageID int64, splitID *int64) ([]*ResolvedField, bool) {
	key := cacheKey(projectID, pageID, splitID)

	if resolved, ok := c.l1.Get(key); ok {
		c.recordHit("memory")
		return resolved, true
	}
	c.recordMiss("memory")

	if c.redis != nil {
		var resolved []*ResolvedField
		found, err := c.redis.GetJSON(ctx, key, &resolved)
		if err == nil && found {
			c.recordHit("redis")
			c.l1.Add(key, resolved)
			return resolved, true
		}
		c.recordMiss("redis")
	}

	return nil, false
}

// Set stores resolved content in both tiers
func (c *Cache) Set(ctx context.Context, projectID, pageID int64, splitID *int64, resolved []*ResolvedField) {
	key := cacheKey(projectID, pageID, splitID)
	c.l1.Add(key, resolved)
	if c.redis != nil {
		// Best effort; a failed write only costs a future miss
		_ = c.redis.SetJSON(ctx, key, resolved, c.ttl)
	}
}

// InvalidateProject drops all cached content for a project. The in-process
// tier has no pattern matching, so it is purged wholesale.
func (c *Cache) InvalidateProject(ctx context.Context, projectID int64) {
	c.l1.Purge()
	if c.redis != nil {
		_ = c.redis.DeleteByPattern(ctx, fmt.Sprintf("cms:p%d:*", projectID))
	}
}

func cacheKey(projectID, pageID int64, splitID *int64) string {
	split := "default"
	if splitID != nil {
		split = fmt.Sprintf("%d", *splitID)
	}
	return fmt.Sprintf("cms:p%d:pg%d:s%s", projectID, pageID, split)
}

func (c *Cache) recordHit(tier string) {
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.WithLabelValues(tier).Inc()
	}
}

func (c *Cache) recordMiss(tier string) {
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.WithLabelValues(tier).Inc()
	}
}
