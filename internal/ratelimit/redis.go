package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "rate_limit:"

// RedisLimiter is a fixed-window counter in Redis.
type RedisLimiter struct {
	client redis.UniversalClient
}

// NewRedisLimiter returns a limiter using client.
func NewRedisLimiter(client redis.UniversalClient) *RedisLimiter {
	return &RedisLimiter{client: client}
}

// NewRedisClient parses a redis:// URL and returns a client.
func NewRedisClient(url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("ratelimit: parse redis url: %w", err)
	}
	return redis.NewClient(opts), nil
}

// Allow increments the key's counter and reports whether it is still within limit.
// The window starts at the first request; the counter expires with it.
func (l *RedisLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (Decision, error) {
	redisKey := keyPrefix + key

	tx := l.client.TxPipeline()
	incr := tx.Incr(ctx, redisKey)
	pttl := tx.PTTL(ctx, redisKey)
	if _, err := tx.Exec(ctx); err != nil {
		return Decision{}, fmt.Errorf("ratelimit: exec counter transaction: %w", err)
	}

	ttl := pttl.Val()
	if ttl < 0 {
		// First hit of the window, or a counter that lost its expiry.
		if err := l.client.PExpire(ctx, redisKey, window).Err(); err != nil {
			return Decision{}, fmt.Errorf("ratelimit: set window expiry: %w", err)
		}
		ttl = window
	}
	return decide(int(incr.Val()), limit, ttl), nil
}

func decide(count, limit int, ttl time.Duration) Decision {
	d := Decision{Allowed: count <= limit, Limit: limit, Remaining: limit - count}
	if d.Remaining < 0 {
		d.Remaining = 0
	}
	if !d.Allowed {
		d.RetryAfter = ttl
	}
	return d
}
