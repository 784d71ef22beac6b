package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	redisOpTimeout = 2 * time.Second
	redisKeyPrefix = "skywave:ratelimit:"
)

// RedisStore shares window counters across replicas. The window lives exactly
// as long as its key: Anchor writes a zero counter expiring at the window
// edge, Incr bumps it in place, and Redis expiry retires the window so a
// crashed replica never leaves a stale count behind.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Window(ctx context.Context, key string) (int, time.Time, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, redisOpTimeout)
	defer cancel()

	pipe := s.client.Pipeline()
	getCmd := pipe.Get(ctx, redisKeyPrefix+key)
	ttlCmd := pipe.PTTL(ctx, redisKeyPrefix+key)
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return 0, time.Time{}, false, fmt.Errorf("reading window %q: %w", key, err)
	}

	count, err := getCmd.Int()
	if err == redis.Nil {
		return 0, time.Time{}, false, nil
	}
	if err != nil {
		return 0, time.Time{}, false, fmt.Errorf("reading window %q: %w", key, err)
	}

	ttl, err := ttlCmd.Result()
	if err != nil || ttl <= 0 {
		// Counter without an expiry is unusable as a window; report no
		// window so the next admit re-anchors it.
		return 0, time.Time{}, false, nil
	}
	return count, time.Now().Add(ttl), true, nil
}

func (s *RedisStore) Anchor(ctx context.Context, key string, resetAt time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, redisOpTimeout)
	defer cancel()

	ttl := time.Until(resetAt)
	if ttl <= 0 {
		return s.client.Del(ctx, redisKeyPrefix+key).Err()
	}
	if err := s.client.Set(ctx, redisKeyPrefix+key, 0, ttl).Err(); err != nil {
		return fmt.Errorf("anchoring window %q: %w", key, err)
	}
	return nil
}

func (s *RedisStore) Incr(ctx context.Context, key string, ttl time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, redisOpTimeout)
	defer cancel()

	n, err := s.client.Incr(ctx, redisKeyPrefix+key).Result()
	if err != nil {
		return fmt.Errorf("incrementing window %q: %w", key, err)
	}
	if n == 1 {
		// Incr created the key, so it carries no expiry yet.
		if err := s.client.PExpire(ctx, redisKeyPrefix+key, ttl).Err(); err != nil {
			return fmt.Errorf("bounding window %q: %w", key, err)
		}
	}
	return nil
}
