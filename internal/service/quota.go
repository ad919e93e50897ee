package service

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// QuotaCounter tracks consumable counts that have no backing store
// record. Incr must be atomic under concurrent callers.
type QuotaCounter interface {
	// Incr increments the counter and returns the new value. The key
	// expires ttl after its first increment.
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

// RedisQuotaCounter counts in Redis. INCR is atomic, so concurrent
// callers each observe a distinct value and the limit comparison on the
// returned count can never double-spend the last unit.
type RedisQuotaCounter struct {
	client *redis.Client
}

func NewRedisQuotaCounter(client *redis.Client) *RedisQuotaCounter {
	return &RedisQuotaCounter{client: client}
}

func (c *RedisQuotaCounter) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	count, err := c.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if count == 1 {
		// First consumer arms the expiry so the counter dies with the
		// session window.
		if err := c.client.Expire(ctx, key, ttl).Err(); err != nil {
			return count, err
		}
	}
	return count, nil
}

var _ QuotaCounter = (*RedisQuotaCounter)(nil)
