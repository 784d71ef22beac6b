// Package cache provides the short-TTL result cache behind the search
// orchestrator. The Store contract is byte-valued so backings can be swapped
// between an in-process map and a shared Redis instance without touching the
// callers; typed marshaling lives with the code that owns the types.
//
// Failures from a backing store are never surfaced: reads degrade to a miss
// and writes are dropped. Entries are immutable once inserted; a refresh is
// an overwrite under the same key.
package cache

import (
	"context"
	"time"
)

// Store is a TTL key/value cache.
type Store interface {
	// Get returns the value for key, or false when absent, expired, or the
	// backing store failed.
	Get(ctx context.Context, key string) ([]byte, bool)

	// Set stores value under key for ttl. A ttl <= 0 stores without expiry.
	// Errors are swallowed; the entry is simply not cached.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)

	// Delete removes key if present.
	Delete(ctx context.Context, key string)

	// Stats reports counters for the status endpoint.
	Stats() Stats
}

// Stats carries cache counters. Entries is -1 when the backing store cannot
// report its size cheaply.
type Stats struct {
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
	Entries int64 `json:"entries"`
}
