package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLimiter implements the fixed window with INCR plus an expiry set on
// the first hit, so the key and its window expire together.
type RedisLimiter struct {
	client     *redis.Client
	windowSize time.Duration
	maxCount   int
}

func NewRedisLimiter(client *redis.Client, windowSize time.Duration, maxCount int) *RedisLimiter {
	return &RedisLimiter{
		client:     client,
		windowSize: windowSize,
		maxCount:   maxCount,
	}
}

func (l *RedisLimiter) Allow(ctx context.Context, identifier string) (bool, error) {
	key := fmt.Sprintf("ratelimit:%s", identifier)

	count, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("rate limit incr: %w", err)
	}
	if count == 1 {
		if err := l.client.Expire(ctx, key, l.windowSize).Err(); err != nil {
			return false, fmt.Errorf("rate limit expire: %w", err)
		}
	}
	return count <= int64(l.maxCount), nil
}

func (l *RedisLimiter) Close() error {
	return nil
}
