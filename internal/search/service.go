// Package search orchestrates directory searches across the configured
// providers: fan-out, admission control, failure isolation, dedupe, ranking,
// and the result cache. A search never fails upward; the worst outcome is an
// empty list.
package search

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/skywave/skywave/internal/cache"
	"github.com/skywave/skywave/internal/catalog"
	"github.com/skywave/skywave/internal/config"
	"github.com/skywave/skywave/internal/dedupe"
	"github.com/skywave/skywave/internal/provider"
	"github.com/skywave/skywave/internal/rank"
	"github.com/skywave/skywave/internal/ratelimit"
)

// EventSearchCompleted is broadcast after every executed search.
const EventSearchCompleted = "search:completed"

// Broadcaster interface for sending events to clients.
type Broadcaster interface {
	Broadcast(msgType string, payload interface{}) error
}

// Sink receives merged results for offline retention. Writes are best-effort
// and detached from the request.
type Sink interface {
	RecordStations(ctx context.Context, items []catalog.StationItem) error
	RecordPodcasts(ctx context.Context, items []catalog.PodcastItem) error
}

// CompletedPayload is the search:completed event body.
type CompletedPayload struct {
	Namespace  string `json:"namespace"`
	Query      string `json:"query"`
	Results    int    `json:"results"`
	DurationMs int64  `json:"durationMs"`
}

// StationRequest carries the station search parameters as received from the
// API layer. Filter strings keep their original case; the cache key layer
// normalizes its own copies.
type StationRequest struct {
	Query       string
	Country     string
	Language    string
	Tag         string
	Page        int
	Limit       int
	Providers   []string
	BypassCache bool
}

// PodcastRequest carries the podcast search parameters.
type PodcastRequest struct {
	Query       string
	Language    string
	Limit       int
	Providers   []string
	BypassCache bool
}

// StationResult is the station search envelope.
type StationResult struct {
	Data       []catalog.StationItem `json:"data"`
	Total      int                   `json:"total"`
	Page       int                   `json:"page"`
	TotalPages int                   `json:"totalPages"`
}

// PodcastResult is the podcast search envelope.
type PodcastResult struct {
	Data  []catalog.PodcastItem `json:"data"`
	Total int                   `json:"total"`
}

// Service orchestrates searches across the registered providers.
type Service struct {
	registry    *provider.Registry
	limiter     *ratelimit.Limiter
	cache       cache.Store
	cfg         config.SearchConfig
	broadcaster Broadcaster
	sink        Sink
	logger      zerolog.Logger
}

// NewService creates a search service over the registry, limiter, and cache.
func NewService(registry *provider.Registry, limiter *ratelimit.Limiter, store cache.Store, cfg config.SearchConfig, logger zerolog.Logger) *Service {
	return &Service{
		registry: registry,
		limiter:  limiter,
		cache:    store,
		cfg:      cfg,
		logger:   logger.With().Str("component", "search").Logger(),
	}
}

// SetBroadcaster sets the WebSocket broadcaster for real-time events.
func (s *Service) SetBroadcaster(broadcaster Broadcaster) {
	s.broadcaster = broadcaster
}

// SetSink sets the storage sink for merged results.
func (s *Service) SetSink(sink Sink) {
	s.sink = sink
}

// SearchStations runs a station search across the enabled providers.
func (s *Service) SearchStations(ctx context.Context, req StationRequest) StationResult {
	start := time.Now()

	limit := clampLimit(req.Limit, s.cfg.StationDefaultLimit, s.cfg.StationMaxLimit)
	page := req.Page
	if page < 1 {
		page = 1
	}

	// The key format carries no page slot, so only page one is cacheable.
	key := StationCacheKey(req.Query, req.Country, req.Language, req.Tag, limit, req.Providers)
	cacheable := !req.BypassCache && page == 1

	if cacheable {
		if items, ok := s.cachedStations(ctx, key); ok {
			s.logger.Debug().Str("key", key).Msg("Station search served from cache")
			return stationEnvelope(items, page, limit)
		}
	}

	providers := s.registry.EnabledStations(req.Providers)
	if len(providers) == 0 {
		s.logger.Warn().Str("query", req.Query).Msg("No station providers selected for search")
		return stationEnvelope(nil, page, limit)
	}

	query := provider.StationQuery{
		Query:    strings.TrimSpace(req.Query),
		Country:  req.Country,
		Language: req.Language,
		Tag:      req.Tag,
		Limit:    limit,
		Offset:   (page - 1) * limit,
	}

	// Results land in a slot per provider so the merge below consumes them in
	// priority order no matter which call finishes first.
	collected := make([][]catalog.StationItem, len(providers))
	var wg sync.WaitGroup
	for i, p := range providers {
		wg.Add(1)
		go func(slot int, p provider.StationProvider) {
			defer wg.Done()
			collected[slot] = s.callStationProvider(ctx, p, query)
		}(i, p)
	}
	wg.Wait()

	if ctx.Err() != nil {
		s.logger.Debug().Err(ctx.Err()).Msg("Station search cancelled, discarding results")
		return stationEnvelope(nil, page, limit)
	}

	var flat []catalog.StationItem
	for _, items := range collected {
		flat = append(flat, items...)
	}

	merged := dedupe.Stations(flat)
	rank.Stations(merged, s.registry.Priorities())
	if len(merged) > limit {
		merged = merged[:limit]
	}

	if cacheable {
		s.storeStations(ctx, key, merged, s.storeTTL(req.Query, stationNames(providers)))
	}

	elapsed := time.Since(start)
	s.logger.Info().
		Str("query", req.Query).
		Int("providers", len(providers)).
		Int("results", len(merged)).
		Dur("elapsed", elapsed).
		Msg("Station search completed")

	s.broadcastCompleted(stationNamespace, req.Query, len(merged), elapsed)
	s.sinkStations(merged)

	return stationEnvelope(merged, page, limit)
}

// SearchPodcasts runs a podcast search across the enabled providers.
func (s *Service) SearchPodcasts(ctx context.Context, req PodcastRequest) PodcastResult {
	start := time.Now()

	limit := clampLimit(req.Limit, s.cfg.PodcastDefaultLimit, s.cfg.PodcastMaxLimit)

	key := PodcastCacheKey(req.Query, req.Language, limit, req.Providers)
	cacheable := !req.BypassCache

	if cacheable {
		if items, ok := s.cachedPodcasts(ctx, key); ok {
			s.logger.Debug().Str("key", key).Msg("Podcast search served from cache")
			return podcastEnvelope(items)
		}
	}

	providers := s.registry.EnabledPodcasts(req.Providers)
	if len(providers) == 0 {
		s.logger.Warn().Str("query", req.Query).Msg("No podcast providers selected for search")
		return podcastEnvelope(nil)
	}

	query := provider.PodcastQuery{
		Query:    strings.TrimSpace(req.Query),
		Language: req.Language,
		Limit:    limit,
	}

	collected := make([][]catalog.PodcastItem, len(providers))
	var wg sync.WaitGroup
	for i, p := range providers {
		wg.Add(1)
		go func(slot int, p provider.PodcastProvider) {
			defer wg.Done()
			collected[slot] = s.callPodcastProvider(ctx, p, query)
		}(i, p)
	}
	wg.Wait()

	if ctx.Err() != nil {
		s.logger.Debug().Err(ctx.Err()).Msg("Podcast search cancelled, discarding results")
		return podcastEnvelope(nil)
	}

	var flat []catalog.PodcastItem
	for _, items := range collected {
		flat = append(flat, items...)
	}

	merged := dedupe.Podcasts(flat)
	rank.Podcasts(merged, s.registry.Priorities())
	if len(merged) > limit {
		merged = merged[:limit]
	}

	if cacheable {
		s.storePodcasts(ctx, key, merged, s.storeTTL(req.Query, podcastNames(providers)))
	}

	elapsed := time.Since(start)
	s.logger.Info().
		Str("query", req.Query).
		Int("providers", len(providers)).
		Int("results", len(merged)).
		Dur("elapsed", elapsed).
		Msg("Podcast search completed")

	s.broadcastCompleted(podcastNamespace, req.Query, len(merged), elapsed)
	s.sinkPodcasts(merged)

	return podcastEnvelope(merged)
}

// ProviderStatuses reports every registered provider with its quota usage.
func (s *Service) ProviderStatuses(ctx context.Context) []provider.Status {
	return s.registry.Statuses(ctx)
}

// callStationProvider runs one provider call with admission, accounting, a
// per-provider deadline, and panic isolation. Failures contribute nothing.
func (s *Service) callStationProvider(ctx context.Context, p provider.StationProvider, q provider.StationQuery) []catalog.StationItem {
	name := p.Name()
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().Interface("panic", r).Str("provider", name).Msg("Provider panicked during search")
		}
	}()

	if !p.IsAvailable() {
		s.logger.Debug().Str("provider", name).Msg("Provider unavailable, skipping")
		return nil
	}
	if !s.limiter.Admit(ctx, name) {
		s.logger.Debug().Str("provider", name).Msg("Provider over quota, skipping")
		return nil
	}
	s.limiter.Record(ctx, name)

	pctx, cancel := context.WithTimeout(ctx, s.providerTimeout(name))
	defer cancel()

	start := time.Now()
	items, err := p.SearchStations(pctx, q)
	if err != nil {
		s.logger.Warn().
			Err(err).
			Str("provider", name).
			Dur("elapsed", time.Since(start)).
			Msg("Station provider failed")
		return nil
	}

	for i := range items {
		items[i].SourceProviders = catalog.AddSourceProvider(items[i].SourceProviders, items[i].Source)
	}

	s.logger.Debug().
		Str("provider", name).
		Int("results", len(items)).
		Dur("elapsed", time.Since(start)).
		Msg("Station provider completed")

	return items
}

func (s *Service) callPodcastProvider(ctx context.Context, p provider.PodcastProvider, q provider.PodcastQuery) []catalog.PodcastItem {
	name := p.Name()
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().Interface("panic", r).Str("provider", name).Msg("Provider panicked during search")
		}
	}()

	if !p.IsAvailable() {
		s.logger.Debug().Str("provider", name).Msg("Provider unavailable, skipping")
		return nil
	}
	if !s.limiter.Admit(ctx, name) {
		s.logger.Debug().Str("provider", name).Msg("Provider over quota, skipping")
		return nil
	}
	s.limiter.Record(ctx, name)

	pctx, cancel := context.WithTimeout(ctx, s.providerTimeout(name))
	defer cancel()

	start := time.Now()
	items, err := p.SearchPodcasts(pctx, q)
	if err != nil {
		s.logger.Warn().
			Err(err).
			Str("provider", name).
			Dur("elapsed", time.Since(start)).
			Msg("Podcast provider failed")
		return nil
	}

	for i := range items {
		items[i].SourceProviders = catalog.AddSourceProvider(items[i].SourceProviders, items[i].Source)
	}

	s.logger.Debug().
		Str("provider", name).
		Int("results", len(items)).
		Dur("elapsed", time.Since(start)).
		Msg("Podcast provider completed")

	return items
}

func (s *Service) providerTimeout(name string) time.Duration {
	if cfg, ok := s.registry.ConfigFor(name); ok {
		return cfg.Timeout()
	}
	return 8 * time.Second
}

// storeTTL picks the cache TTL for a result set. Freeform queries expire on
// the fastest provider's clock; browse results keep the slowest so stable
// listings stay warm longer.
func (s *Service) storeTTL(query string, names []string) time.Duration {
	freeform := strings.TrimSpace(query) != ""
	var ttl time.Duration
	for _, name := range names {
		cfg, ok := s.registry.ConfigFor(name)
		if !ok {
			continue
		}
		t := cfg.CacheTTL()
		switch {
		case ttl == 0:
			ttl = t
		case freeform && t < ttl:
			ttl = t
		case !freeform && t > ttl:
			ttl = t
		}
	}
	if ttl == 0 {
		ttl = 5 * time.Minute
	}
	return ttl
}

func (s *Service) broadcastCompleted(namespace, query string, results int, elapsed time.Duration) {
	if s.broadcaster == nil {
		return
	}
	s.broadcaster.Broadcast(EventSearchCompleted, CompletedPayload{
		Namespace:  namespace,
		Query:      query,
		Results:    results,
		DurationMs: elapsed.Milliseconds(),
	})
}

// sinkStations hands the merged list to the storage sink without holding up
// the response.
func (s *Service) sinkStations(items []catalog.StationItem) {
	if s.sink == nil || len(items) == 0 {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.sink.RecordStations(ctx, items); err != nil {
			s.logger.Warn().Err(err).Msg("Failed to record stations")
		}
	}()
}

func (s *Service) sinkPodcasts(items []catalog.PodcastItem) {
	if s.sink == nil || len(items) == 0 {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.sink.RecordPodcasts(ctx, items); err != nil {
			s.logger.Warn().Err(err).Msg("Failed to record podcasts")
		}
	}()
}

func stationEnvelope(items []catalog.StationItem, page, limit int) StationResult {
	if items == nil {
		items = []catalog.StationItem{}
	}
	totalPages := page
	if len(items) == limit {
		totalPages = page + 1
	}
	return StationResult{
		Data:       items,
		Total:      len(items),
		Page:       page,
		TotalPages: totalPages,
	}
}

func podcastEnvelope(items []catalog.PodcastItem) PodcastResult {
	if items == nil {
		items = []catalog.PodcastItem{}
	}
	return PodcastResult{Data: items, Total: len(items)}
}

func clampLimit(limit, def, max int) int {
	if limit < 1 {
		return def
	}
	if limit > max {
		return max
	}
	return limit
}

func stationNames(providers []provider.StationProvider) []string {
	names := make([]string, len(providers))
	for i, p := range providers {
		names[i] = p.Name()
	}
	return names
}

func podcastNames(providers []provider.PodcastProvider) []string {
	names := make([]string, len(providers))
	for i, p := range providers {
		names[i] = p.Name()
	}
	return names
}
