package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func newTestRedis(t *testing.T) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedis(client, zerolog.Nop()), mr
}

func TestRedisSetGet(t *testing.T) {
	r, _ := newTestRedis(t)
	ctx := context.Background()

	r.Set(ctx, "k", []byte("value"), time.Minute)

	got, ok := r.Get(ctx, "k")
	if !ok || string(got) != "value" {
		t.Fatalf("got %q ok=%v, want value hit", got, ok)
	}
}

func TestRedisMiss(t *testing.T) {
	r, _ := newTestRedis(t)

	if _, ok := r.Get(context.Background(), "absent"); ok {
		t.Fatal("expected miss")
	}
}

func TestRedisExpiry(t *testing.T) {
	r, mr := newTestRedis(t)
	ctx := context.Background()

	r.Set(ctx, "k", []byte("v"), 5*time.Second)
	mr.FastForward(6 * time.Second)

	if _, ok := r.Get(ctx, "k"); ok {
		t.Fatal("expected miss after TTL elapsed")
	}
}

func TestRedisUnavailableDegradesToMiss(t *testing.T) {
	r, mr := newTestRedis(t)
	ctx := context.Background()

	r.Set(ctx, "k", []byte("v"), time.Minute)
	mr.Close()

	if _, ok := r.Get(ctx, "k"); ok {
		t.Fatal("expected miss when backing store is down")
	}
	// Writes against a dead store must not panic or error out.
	r.Set(ctx, "k2", []byte("v2"), time.Minute)
}

func TestRedisDelete(t *testing.T) {
	r, _ := newTestRedis(t)
	ctx := context.Background()

	r.Set(ctx, "k", []byte("v"), time.Minute)
	r.Delete(ctx, "k")

	if _, ok := r.Get(ctx, "k"); ok {
		t.Fatal("expected miss after delete")
	}
}
