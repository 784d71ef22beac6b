package cache

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// redisOpTimeout bounds every Redis round trip so a slow shared store cannot
// stall a search request; the orchestrator treats a timeout as a miss.
const redisOpTimeout = 2 * time.Second

// Redis is a Store backed by a shared Redis instance, for deployments that
// run more than one process behind a load balancer.
type Redis struct {
	client *redis.Client
	logger zerolog.Logger
	hits   atomic.Int64
	misses atomic.Int64
}

// NewRedis wraps client. The caller owns the client lifecycle.
func NewRedis(client *redis.Client, logger zerolog.Logger) *Redis {
	return &Redis{
		client: client,
		logger: logger.With().Str("component", "cache").Str("backend", "redis").Logger(),
	}
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool) {
	opCtx, cancel := context.WithTimeout(ctx, redisOpTimeout)
	defer cancel()

	val, err := r.client.Get(opCtx, key).Bytes()
	if err == redis.Nil {
		r.misses.Add(1)
		return nil, false
	}
	if err != nil {
		r.logger.Warn().Err(err).Str("key", key).Msg("redis get failed, treating as miss")
		r.misses.Add(1)
		return nil, false
	}
	r.hits.Add(1)
	return val, true
}

func (r *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	opCtx, cancel := context.WithTimeout(ctx, redisOpTimeout)
	defer cancel()

	if err := r.client.Set(opCtx, key, value, ttl).Err(); err != nil {
		r.logger.Warn().Err(err).Str("key", key).Msg("redis set failed, entry not cached")
	}
}

func (r *Redis) Delete(ctx context.Context, key string) {
	opCtx, cancel := context.WithTimeout(ctx, redisOpTimeout)
	defer cancel()

	if err := r.client.Del(opCtx, key).Err(); err != nil {
		r.logger.Warn().Err(err).Str("key", key).Msg("redis delete failed")
	}
}

func (r *Redis) Stats() Stats {
	opCtx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()

	entries := int64(-1)
	if n, err := r.client.DBSize(opCtx).Result(); err == nil {
		entries = n
	}
	return Stats{
		Hits:    r.hits.Load(),
		Misses:  r.misses.Load(),
		Entries: entries,
	}
}
