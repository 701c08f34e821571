// Package ratelimit guards the session API with a fixed-window request cap
// per caller identifier.
package ratelimit

import (
	"context"
	"time"

	"learning-tracker/internal/common/config"
	"learning-tracker/internal/common/logger"

	"github.com/redis/go-redis/v9"
)

// Limiter reports whether a caller identifier may make another request in
// the current window. Denials must leave no side effects on session state.
type Limiter interface {
	Allow(ctx context.Context, identifier string) (bool, error)
	Close() error
}

// New selects a limiter backend from config. Memory is the default; the
// redis backend shares the window across processes.
func New(cfg config.RateLimitConfig, redisClient *redis.Client, log logger.Logger) Limiter {
	window := time.Duration(cfg.WindowSeconds) * time.Second
	if cfg.Backend == "redis" && redisClient != nil {
		return NewRedisLimiter(redisClient, window, cfg.MaxRequests)
	}
	return NewMemoryLimiter(window, cfg.MaxRequests, log)
}
