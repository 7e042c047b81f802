package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLimiter shares windows across instances using INCR with a TTL set on
// the first hit of each window.
type RedisLimiter struct {
	rdb *redis.Client
}

func NewRedis(rdb *redis.Client) *RedisLimiter {
	return &RedisLimiter{rdb: rdb}
}

func (r *RedisLimiter) Check(ctx context.Context, bucket, identifier string) (Result, error) {
	cfg, ok := Buckets[bucket]
	if !ok {
		return Result{}, fmt.Errorf("ratelimit: unknown bucket %q", bucket)
	}

	key := "ratelimit:" + bucket + ":" + identifier

	count, err := r.rdb.Incr(ctx, key).Result()
	if err != nil {
		return Result{}, fmt.Errorf("ratelimit: incr %s: %w", key, err)
	}
	if count == 1 {
		if err := r.rdb.Expire(ctx, key, cfg.Window).Err(); err != nil {
			return Result{}, fmt.Errorf("ratelimit: expire %s: %w", key, err)
		}
	}

	ttl, err := r.rdb.TTL(ctx, key).Result()
	if err != nil {
		return Result{}, fmt.Errorf("ratelimit: ttl %s: %w", key, err)
	}
	if ttl < 0 {
		// Key lost its TTL (e.g. INCR raced a flush). Reset it rather than
		// letting the window live forever.
		ttl = cfg.Window
		if err := r.rdb.Expire(ctx, key, cfg.Window).Err(); err != nil {
			return Result{}, fmt.Errorf("ratelimit: expire %s: %w", key, err)
		}
	}

	resetAt := time.Now().Add(ttl)
	if count > int64(cfg.Limit) {
		retry := int(ttl.Seconds())
		if retry < 1 {
			retry = 1
		}
		return Result{Allowed: false, Remaining: 0, ResetAt: resetAt, RetryAfter: retry}, nil
	}

	return Result{Allowed: true, Remaining: cfg.Limit - int(count), ResetAt: resetAt}, nil
}
