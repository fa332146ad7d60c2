package rate

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLimiter counts with INCR and a key expiry so limits hold across
// processes sharing one Redis.
type RedisLimiter struct {
	client *redis.Client
	prefix string
}

func NewRedis(client *redis.Client, prefix string) *RedisLimiter {
	return &RedisLimiter{client: client, prefix: prefix}
}

func (r *RedisLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, time.Duration, error) {
	if limit <= 0 {
		return true, 0, nil
	}
	k := fmt.Sprintf("%srl:%s", r.prefix, key)

	cnt, err := r.client.Incr(ctx, k).Result()
	if err != nil {
		return false, 0, fmt.Errorf("rate limit %s: %w", key, err)
	}
	if cnt == 1 {
		if err := r.client.Expire(ctx, k, window).Err(); err != nil {
			return false, 0, fmt.Errorf("rate limit %s: %w", key, err)
		}
	}
	ttl, err := r.client.PTTL(ctx, k).Result()
	if err != nil {
		return false, 0, fmt.Errorf("rate limit %s: %w", key, err)
	}

	if ttl < 0 {
		ttl = window
	}
	return cnt <= int64(limit), ttl, nil
}
