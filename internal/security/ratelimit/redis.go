package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLimiter shares fixed-window counters between server instances
type RedisLimiter struct {
	rdb     redis.Cmdable
	maxReqs int
	window  time.Duration
	prefix  string
	logger  *slog.Logger
}

func NewRedisLimiter(rdb redis.Cmdable, maxRequests int, window time.Duration, logger *slog.Logger) *RedisLimiter {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisLimiter{
		rdb:     rdb,
		maxReqs: maxRequests,
		window:  window,
		prefix:  "catalog:ratelimit:",
		logger:  logger,
	}
}

// Allow applies the default limit to key. An empty key is never limited.
func (l *RedisLimiter) Allow(key string) bool {
	if key == "" {
		return true
	}
	return l.take(key, l.maxReqs, l.window)
}

// AllowStrict applies a separate limit for sensitive endpoints
func (l *RedisLimiter) AllowStrict(identifier string, maxReqs int, window time.Duration) bool {
	return l.take("strict:"+identifier, maxReqs, window)
}

// take fails open: a Redis outage must not lock every caller out.
func (l *RedisLimiter) take(key string, maxReqs int, window time.Duration) bool {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	slot := time.Now().UnixNano() / int64(window)
	k := fmt.Sprintf("%s%s:%d", l.prefix, key, slot)

	var incr *redis.IntCmd
	_, err := l.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, k)
		pipe.Expire(ctx, k, window)
		return nil
	})
	if err != nil {
		l.logger.Warn("rate limiter unavailable, allowing request",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		return true
	}
	return incr.Val() <= int64(maxReqs)
}

// Stop is a no-op; counters expire in Redis.
func (l *RedisLimiter) Stop() {}
