package provider

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/skywave/skywave/internal/catalog"
	"github.com/skywave/skywave/internal/config"
	"github.com/skywave/skywave/internal/ratelimit"
)

type fakeStationProvider struct {
	name      string
	available bool
}

func (f *fakeStationProvider) Name() string       { return f.name }
func (f *fakeStationProvider) RequiresAuth() bool { return false }
func (f *fakeStationProvider) IsAvailable() bool  { return f.available }
func (f *fakeStationProvider) SearchStations(context.Context, StationQuery) ([]catalog.StationItem, error) {
	return nil, nil
}

type fakePodcastProvider struct {
	name      string
	available bool
}

func (f *fakePodcastProvider) Name() string       { return f.name }
func (f *fakePodcastProvider) RequiresAuth() bool { return true }
func (f *fakePodcastProvider) IsAvailable() bool  { return f.available }
func (f *fakePodcastProvider) SearchPodcasts(context.Context, PodcastQuery) ([]catalog.PodcastItem, error) {
	return nil, nil
}

func testConfigs() map[string]config.ProviderConfig {
	return map[string]config.ProviderConfig{
		"alpha":   {Enabled: true, Priority: 2},
		"bravo":   {Enabled: true, Priority: 1},
		"charlie": {Enabled: true, Priority: 1},
		"delta":   {Enabled: false, Priority: 3},
		"echo":    {Enabled: true, Priority: 1},
	}
}

func newTestRegistry(limiter *ratelimit.Limiter) *Registry {
	r := NewRegistry(testConfigs(), limiter, zerolog.Nop())
	r.RegisterStation(&fakeStationProvider{name: "alpha", available: true})
	r.RegisterStation(&fakeStationProvider{name: "bravo", available: true})
	r.RegisterStation(&fakeStationProvider{name: "charlie", available: false})
	r.RegisterStation(&fakeStationProvider{name: "delta", available: true})
	r.RegisterPodcast(&fakePodcastProvider{name: "echo", available: true})
	return r
}

func namesOf(ps []StationProvider) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.Name()
	}
	return out
}

func TestEnabledStationsPriorityOrder(t *testing.T) {
	r := newTestRegistry(nil)

	got := namesOf(r.EnabledStations(nil))
	want := []string{"bravo", "charlie", "alpha"}
	if len(got) != len(want) {
		t.Fatalf("Expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Position %d: expected %q (priority order, name tie-break), got %q", i, want[i], got[i])
		}
	}
}

func TestEnabledStationsExcludesDisabled(t *testing.T) {
	r := newTestRegistry(nil)

	for _, p := range r.EnabledStations(nil) {
		if p.Name() == "delta" {
			t.Error("Disabled provider leaked into the enabled set")
		}
	}
}

func TestEnabledStationsFilter(t *testing.T) {
	r := newTestRegistry(nil)

	got := namesOf(r.EnabledStations([]string{" Alpha ", "CHARLIE", "unknown"}))
	want := []string{"charlie", "alpha"}
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("Expected %v after filtering, got %v", want, got)
	}
}

func TestRegisterWithoutConfigIsSkipped(t *testing.T) {
	r := newTestRegistry(nil)
	r.RegisterStation(&fakeStationProvider{name: "ghost", available: true})

	for _, p := range r.EnabledStations(nil) {
		if p.Name() == "ghost" {
			t.Error("Provider without configuration must not be registered")
		}
	}
	for _, st := range r.Statuses(context.Background()) {
		if st.Name == "ghost" {
			t.Error("Unconfigured provider must not appear in statuses")
		}
	}
}

func TestStatusesReportQuota(t *testing.T) {
	limiter := ratelimit.NewLimiter(ratelimit.NewMemoryStore(), map[string]ratelimit.Quota{
		"echo": {Limit: 5, Period: time.Hour},
	}, zerolog.Nop())
	r := newTestRegistry(limiter)
	ctx := context.Background()

	limiter.Admit(ctx, "echo")
	limiter.Record(ctx, "echo")

	statuses := r.Statuses(ctx)
	if len(statuses) != 5 {
		t.Fatalf("Expected 5 statuses (4 stations + 1 podcast), got %d", len(statuses))
	}
	if statuses[0].Kind != KindStation || statuses[len(statuses)-1].Kind != KindPodcast {
		t.Error("Expected stations listed before podcasts")
	}

	var echo *Status
	for i := range statuses {
		if statuses[i].Name == "echo" {
			echo = &statuses[i]
		}
	}
	if echo == nil {
		t.Fatal("echo status missing")
	}
	if echo.RateLimitQuota != 5 || echo.Used != 1 || echo.Remaining != 4 {
		t.Errorf("Expected quota=5 used=1 remaining=4, got %+v", *echo)
	}
	if !echo.Available || !echo.Enabled {
		t.Errorf("Expected echo available and enabled, got %+v", *echo)
	}

	var alpha *Status
	for i := range statuses {
		if statuses[i].Name == "alpha" {
			alpha = &statuses[i]
		}
	}
	if alpha.Remaining != -1 {
		t.Errorf("Expected unmetered provider to report remaining=-1, got %+v", *alpha)
	}
}

func TestPriorities(t *testing.T) {
	r := newTestRegistry(nil)
	prios := r.Priorities()
	if prios["bravo"] != 1 || prios["alpha"] != 2 || prios["delta"] != 3 {
		t.Errorf("Unexpected priority map: %v", prios)
	}
}
