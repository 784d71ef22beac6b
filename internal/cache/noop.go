package cache

import (
	"context"
	"time"
)

// NoOp is a Store that caches nothing. Used when caching is disabled so the
// orchestrator does not need a nil check on every probe.
type NoOp struct{}

func NewNoOp() *NoOp { return &NoOp{} }

func (NoOp) Get(context.Context, string) ([]byte, bool) { return nil, false }

func (NoOp) Set(context.Context, string, []byte, time.Duration) {}

func (NoOp) Delete(context.Context, string) {}

func (NoOp) Stats() Stats { return Stats{Entries: 0} }
