// Package ratelimit enforces per-provider fixed-window quotas. Admission and
// accounting are split: Admit answers "may I issue a request right now"
// without consuming budget, and Record bills one unit after the adapter has
// actually put a request on the wire. A window is anchored when it is first
// touched and advances only when an Admit observes it has expired; Record
// never re-anchors a live window, so a steady request stream cannot pin the
// window open forever.
package ratelimit

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Quota is a provider's allowance: Limit requests per Period. A Limit <= 0
// means the provider is unmetered.
type Quota struct {
	Limit  int
	Period time.Duration
}

// Stats is the usage snapshot read by the provider status endpoint.
// Remaining is -1 for unmetered providers.
type Stats struct {
	Used         int   `json:"used"`
	Limit        int   `json:"limit"`
	Remaining    int   `json:"remaining"`
	ResetSeconds int64 `json:"resetSeconds"`
}

// CounterStore persists window state. The memory implementation backs
// single-process deployments; the Redis implementation shares counters across
// replicas. Increments must be atomic.
type CounterStore interface {
	// Window returns the live count and expiry for key; ok is false when no
	// window exists (never created, expired out of the backing store).
	Window(ctx context.Context, key string) (count int, resetAt time.Time, ok bool, err error)

	// Anchor starts a fresh window for key with a zero count, replacing any
	// previous one.
	Anchor(ctx context.Context, key string, resetAt time.Time) error

	// Incr adds one to key's counter. When no window exists it creates one
	// expiring after ttl, so a lone Record still lands in a bounded window.
	Incr(ctx context.Context, key string, ttl time.Duration) error
}

// Limiter applies quotas to named providers. Quotas are registered at
// startup and immutable afterwards; the store carries all mutable state.
type Limiter struct {
	store  CounterStore
	quotas map[string]Quota
	logger zerolog.Logger
	now    func() time.Time
}

// NewLimiter creates a limiter over store with the given per-provider quotas.
// Providers absent from quotas are unmetered.
func NewLimiter(store CounterStore, quotas map[string]Quota, logger zerolog.Logger) *Limiter {
	qs := make(map[string]Quota, len(quotas))
	for name, q := range quotas {
		if q.Limit > 0 && q.Period > 0 {
			qs[name] = q
		}
	}
	return &Limiter{
		store:  store,
		quotas: qs,
		logger: logger.With().Str("component", "ratelimit").Logger(),
		now:    time.Now,
	}
}

// Admit reports whether provider may issue a request in the current window.
// It does not consume budget. Store failures admit the request: losing a
// counter beat is cheaper than blanking a provider.
func (l *Limiter) Admit(ctx context.Context, provider string) bool {
	q, metered := l.quotas[provider]
	if !metered {
		return true
	}

	count, resetAt, ok, err := l.store.Window(ctx, provider)
	if err != nil {
		l.logger.Warn().Err(err).Str("provider", provider).Msg("counter store read failed, admitting")
		return true
	}

	now := l.now()
	if !ok || !now.Before(resetAt) {
		// First admit at or after expiry anchors the new window.
		if err := l.store.Anchor(ctx, provider, now.Add(q.Period)); err != nil {
			l.logger.Warn().Err(err).Str("provider", provider).Msg("window anchor failed")
		}
		return true
	}

	if count >= q.Limit {
		l.logger.Warn().
			Str("provider", provider).
			Int("used", count).
			Int("limit", q.Limit).
			Time("resetAt", resetAt).
			Msg("provider rate limit reached")
		return false
	}
	return true
}

// Record bills one request against provider's window. Adapters call it
// immediately after issuing the upstream request, whether or not a response
// arrives. No-op for unmetered providers.
func (l *Limiter) Record(ctx context.Context, provider string) {
	q, metered := l.quotas[provider]
	if !metered {
		return
	}
	if err := l.store.Incr(ctx, provider, q.Period); err != nil {
		l.logger.Warn().Err(err).Str("provider", provider).Msg("counter increment failed")
	}
}

// StatsFor returns the usage snapshot for provider.
func (l *Limiter) StatsFor(ctx context.Context, provider string) Stats {
	q, metered := l.quotas[provider]
	if !metered {
		return Stats{Remaining: -1}
	}

	count, resetAt, ok, err := l.store.Window(ctx, provider)
	now := l.now()
	if err != nil || !ok || !now.Before(resetAt) {
		return Stats{Limit: q.Limit, Remaining: q.Limit}
	}

	remaining := q.Limit - count
	if remaining < 0 {
		remaining = 0
	}
	return Stats{
		Used:         count,
		Limit:        q.Limit,
		Remaining:    remaining,
		ResetSeconds: ceilSeconds(resetAt.Sub(now)),
	}
}

// Quota returns the configured quota for provider, with metered=false for
// providers without one.
func (l *Limiter) Quota(provider string) (Quota, bool) {
	q, ok := l.quotas[provider]
	return q, ok
}

func ceilSeconds(d time.Duration) int64 {
	if d <= 0 {
		return 0
	}
	return int64((d + time.Second - 1) / time.Second)
}
