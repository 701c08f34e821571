package aggregate

import (
	"context"
	"encoding/json"
	"time"

	"learning-tracker/internal/common/logger"
	"learning-tracker/internal/common/metrics"

	"github.com/redis/go-redis/v9"
)

// Cache is a best-effort cache-aside layer over Redis for aggregator
// results. Every failure degrades to a direct read.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	log    logger.Logger
}

func NewCache(client *redis.Client, ttl time.Duration, log logger.Logger) *Cache {
	return &Cache{client: client, ttl: ttl, log: log}
}

// Get unmarshals a cached value into v and reports whether it was found.
func (c *Cache) Get(ctx context.Context, key string, v interface{}) bool {
	if c == nil || c.client == nil {
		return false
	}
	raw, err := c.client.Get(ctx, key).Result()
	if err != nil {
		metrics.AggregatorCacheHits.WithLabelValues("miss").Inc()
		return false
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		metrics.AggregatorCacheHits.WithLabelValues("miss").Inc()
		return false
	}
	metrics.AggregatorCacheHits.WithLabelValues("hit").Inc()
	return true
}

// Set stores a value best-effort; errors are logged and ignored.
func (c *Cache) Set(ctx context.Context, key string, v interface{}) {
	if c == nil || c.client == nil {
		return
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		c.log.Debug("aggregator cache write failed", map[string]interface{}{
			"key":   key,
			"error": err.Error(),
		})
	}
}
