package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func newTestRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisStore(client), mr
}

func TestRedisStoreAnchorAndIncr(t *testing.T) {
	store, _ := newTestRedisStore(t)
	ctx := context.Background()

	if err := store.Anchor(ctx, "itunes", time.Now().Add(time.Minute)); err != nil {
		t.Fatalf("Anchor failed: %v", err)
	}
	for i := 0; i < 3; i++ {
		if err := store.Incr(ctx, "itunes", time.Minute); err != nil {
			t.Fatalf("Incr failed: %v", err)
		}
	}

	count, resetAt, ok, err := store.Window(ctx, "itunes")
	if err != nil {
		t.Fatalf("Window failed: %v", err)
	}
	if !ok {
		t.Fatal("Expected a live window after anchoring")
	}
	if count != 3 {
		t.Errorf("Expected count 3, got %d", count)
	}
	until := time.Until(resetAt)
	if until <= 0 || until > time.Minute+2*time.Second {
		t.Errorf("Expected reset roughly a minute out, got %s", until)
	}
}

func TestRedisStoreMissingWindow(t *testing.T) {
	store, _ := newTestRedisStore(t)

	_, _, ok, err := store.Window(context.Background(), "taddy")
	if err != nil {
		t.Fatalf("Window failed: %v", err)
	}
	if ok {
		t.Error("Expected no window before any anchor")
	}
}

func TestRedisStoreWindowExpires(t *testing.T) {
	store, mr := newTestRedisStore(t)
	ctx := context.Background()

	if err := store.Anchor(ctx, "itunes", time.Now().Add(5*time.Second)); err != nil {
		t.Fatalf("Anchor failed: %v", err)
	}
	mr.FastForward(6 * time.Second)

	_, _, ok, err := store.Window(ctx, "itunes")
	if err != nil {
		t.Fatalf("Window failed: %v", err)
	}
	if ok {
		t.Error("Expected the window to expire with its key")
	}
}

func TestRedisStoreIncrWithoutAnchorIsBounded(t *testing.T) {
	store, mr := newTestRedisStore(t)
	ctx := context.Background()

	// A bare Incr must still land in a window that expires.
	if err := store.Incr(ctx, "itunes", time.Minute); err != nil {
		t.Fatalf("Incr failed: %v", err)
	}

	count, _, ok, err := store.Window(ctx, "itunes")
	if err != nil || !ok {
		t.Fatalf("Expected a live window (ok=%v err=%v)", ok, err)
	}
	if count != 1 {
		t.Errorf("Expected count 1, got %d", count)
	}

	mr.FastForward(2 * time.Minute)
	if _, _, ok, _ := store.Window(ctx, "itunes"); ok {
		t.Error("Expected the Incr-created window to expire")
	}
}

func TestLimiterOverRedisStore(t *testing.T) {
	store, _ := newTestRedisStore(t)
	l := NewLimiter(store, map[string]Quota{"itunes": {Limit: 2, Period: time.Minute}}, zerolog.Nop())
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if !l.Admit(ctx, "itunes") {
			t.Fatalf("Admit %d denied below the limit", i+1)
		}
		l.Record(ctx, "itunes")
	}
	if l.Admit(ctx, "itunes") {
		t.Error("Expected denial once the shared window is exhausted")
	}

	stats := l.StatsFor(ctx, "itunes")
	if stats.Used != 2 || stats.Remaining != 0 {
		t.Errorf("Expected used=2 remaining=0, got %+v", stats)
	}
}
