package provider

import (
	"context"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/skywave/skywave/internal/config"
	"github.com/skywave/skywave/internal/ratelimit"
)

// Registry maps provider names to instances and their configs. Built once at
// startup; reads need no locking.
type Registry struct {
	stations []StationProvider
	podcasts []PodcastProvider
	configs  map[string]config.ProviderConfig
	limiter  *ratelimit.Limiter
	logger   zerolog.Logger
}

func NewRegistry(configs map[string]config.ProviderConfig, limiter *ratelimit.Limiter, logger zerolog.Logger) *Registry {
	return &Registry{
		configs: configs,
		limiter: limiter,
		logger:  logger.With().Str("component", "provider-registry").Logger(),
	}
}

// RegisterStation adds a station provider. Providers without configuration
// are skipped with a warn log.
func (r *Registry) RegisterStation(p StationProvider) {
	if _, ok := r.configs[p.Name()]; !ok {
		r.logger.Warn().Str("provider", p.Name()).Msg("No configuration for provider, skipping")
		return
	}
	r.stations = append(r.stations, p)
	r.sortStations()
}

// RegisterPodcast adds a podcast provider.
func (r *Registry) RegisterPodcast(p PodcastProvider) {
	if _, ok := r.configs[p.Name()]; !ok {
		r.logger.Warn().Str("provider", p.Name()).Msg("No configuration for provider, skipping")
		return
	}
	r.podcasts = append(r.podcasts, p)
	r.sortPodcasts()
}

func (r *Registry) sortStations() {
	sort.SliceStable(r.stations, func(i, j int) bool {
		return r.less(r.stations[i].Name(), r.stations[j].Name())
	})
}

func (r *Registry) sortPodcasts() {
	sort.SliceStable(r.podcasts, func(i, j int) bool {
		return r.less(r.podcasts[i].Name(), r.podcasts[j].Name())
	})
}

// less orders by ascending priority, tie-broken by name.
func (r *Registry) less(a, b string) bool {
	pa, pb := r.configs[a].Priority, r.configs[b].Priority
	if pa != pb {
		return pa < pb
	}
	return a < b
}

// EnabledStations returns enabled station providers intersected with the
// optional name filter, in priority order.
func (r *Registry) EnabledStations(filter []string) []StationProvider {
	want := normalizeFilter(filter)
	var out []StationProvider
	for _, p := range r.stations {
		if !r.configs[p.Name()].Enabled {
			continue
		}
		if want != nil && !want[p.Name()] {
			continue
		}
		out = append(out, p)
	}
	return out
}

// EnabledPodcasts returns enabled podcast providers intersected with the
// optional name filter, in priority order.
func (r *Registry) EnabledPodcasts(filter []string) []PodcastProvider {
	want := normalizeFilter(filter)
	var out []PodcastProvider
	for _, p := range r.podcasts {
		if !r.configs[p.Name()].Enabled {
			continue
		}
		if want != nil && !want[p.Name()] {
			continue
		}
		out = append(out, p)
	}
	return out
}

// ConfigFor returns the config for a registered provider name.
func (r *Registry) ConfigFor(name string) (config.ProviderConfig, bool) {
	cfg, ok := r.configs[name]
	return cfg, ok
}

// Priorities returns the name → priority map used by the ranker.
func (r *Registry) Priorities() map[string]int {
	out := make(map[string]int, len(r.configs))
	for name, cfg := range r.configs {
		out[name] = cfg.Priority
	}
	return out
}

// Statuses reports every registered provider with its quota usage, stations
// first, each kind in priority order.
func (r *Registry) Statuses(ctx context.Context) []Status {
	out := make([]Status, 0, len(r.stations)+len(r.podcasts))
	for _, p := range r.stations {
		out = append(out, r.statusFor(ctx, p.Name(), KindStation, p.IsAvailable()))
	}
	for _, p := range r.podcasts {
		out = append(out, r.statusFor(ctx, p.Name(), KindPodcast, p.IsAvailable()))
	}
	return out
}

func (r *Registry) statusFor(ctx context.Context, name string, kind Kind, available bool) Status {
	cfg := r.configs[name]
	st := Status{
		Name:      name,
		Kind:      kind,
		Enabled:   cfg.Enabled,
		Available: available,
		Priority:  cfg.Priority,
	}
	if r.limiter != nil {
		stats := r.limiter.StatsFor(ctx, name)
		st.RateLimitQuota = stats.Limit
		st.Used = stats.Used
		st.Remaining = stats.Remaining
		st.ResetSeconds = stats.ResetSeconds
	}
	return st
}

func normalizeFilter(filter []string) map[string]bool {
	var want map[string]bool
	for _, name := range filter {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			continue
		}
		if want == nil {
			want = make(map[string]bool, len(filter))
		}
		want[name] = true
	}
	return want
}
