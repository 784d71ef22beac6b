package search

import (
	"context"
	"encoding/json"
	"time"

	"github.com/skywave/skywave/internal/catalog"
)

// Typed accessors over the byte-valued cache store. Any marshal or store
// problem degrades to a miss; the cache never fails a search.

func (s *Service) cachedStations(ctx context.Context, key string) ([]catalog.StationItem, bool) {
	raw, ok := s.cache.Get(ctx, key)
	if !ok {
		return nil, false
	}
	var items []catalog.StationItem
	if err := json.Unmarshal(raw, &items); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("Discarding undecodable cache entry")
		s.cache.Delete(ctx, key)
		return nil, false
	}
	return items, true
}

func (s *Service) storeStations(ctx context.Context, key string, items []catalog.StationItem, ttl time.Duration) {
	raw, err := json.Marshal(items)
	if err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("Failed to encode stations for cache")
		return
	}
	s.cache.Set(ctx, key, raw, ttl)
}

func (s *Service) cachedPodcasts(ctx context.Context, key string) ([]catalog.PodcastItem, bool) {
	raw, ok := s.cache.Get(ctx, key)
	if !ok {
		return nil, false
	}
	var items []catalog.PodcastItem
	if err := json.Unmarshal(raw, &items); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("Discarding undecodable cache entry")
		s.cache.Delete(ctx, key)
		return nil, false
	}
	return items, true
}

func (s *Service) storePodcasts(ctx context.Context, key string, items []catalog.PodcastItem, ttl time.Duration) {
	raw, err := json.Marshal(items)
	if err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("Failed to encode podcasts for cache")
		return
	}
	s.cache.Set(ctx, key, raw, ttl)
}
