package tasks

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skywave/skywave/internal/catalog"
	"github.com/skywave/skywave/internal/config"
	"github.com/skywave/skywave/internal/provider"
	"github.com/skywave/skywave/internal/ratelimit"
	"github.com/skywave/skywave/internal/scheduler"
)

type flakyProvider struct {
	name      string
	available bool
}

func (p *flakyProvider) Name() string       { return p.name }
func (p *flakyProvider) RequiresAuth() bool { return false }
func (p *flakyProvider) IsAvailable() bool  { return p.available }

func (p *flakyProvider) SearchStations(ctx context.Context, q provider.StationQuery) ([]catalog.StationItem, error) {
	return nil, nil
}

type recordingBroadcaster struct {
	events []HealthPayload
}

func (b *recordingBroadcaster) Broadcast(msgType string, payload interface{}) error {
	if msgType == EventProviderHealth {
		b.events = append(b.events, payload.(HealthPayload))
	}
	return nil
}

func newHealthFixture(available bool, quotas map[string]ratelimit.Quota) (*provider.Registry, *flakyProvider) {
	configs := map[string]config.ProviderConfig{
		"radiobrowser": {Enabled: true, Priority: 1, RateLimit: quotas["radiobrowser"].Limit},
	}
	limiter := ratelimit.NewLimiter(ratelimit.NewMemoryStore(), quotas, zerolog.Nop())
	registry := provider.NewRegistry(configs, limiter, zerolog.Nop())

	p := &flakyProvider{name: "radiobrowser", available: available}
	registry.RegisterStation(p)
	return registry, p
}

func TestProviderHealthBroadcastsFirstObservation(t *testing.T) {
	registry, _ := newHealthFixture(true, nil)
	broadcaster := &recordingBroadcaster{}
	task := NewProviderHealthTask(registry, broadcaster, zerolog.Nop())

	require.NoError(t, task.Run(context.Background()))

	require.Len(t, broadcaster.events, 1)
	assert.Equal(t, "radiobrowser", broadcaster.events[0].Provider)
	assert.True(t, broadcaster.events[0].Available)
	assert.True(t, broadcaster.events[0].Enabled)
}

func TestProviderHealthBroadcastsTransitionsOnly(t *testing.T) {
	registry, p := newHealthFixture(true, nil)
	broadcaster := &recordingBroadcaster{}
	task := NewProviderHealthTask(registry, broadcaster, zerolog.Nop())

	require.NoError(t, task.Run(context.Background()))
	require.NoError(t, task.Run(context.Background()))
	assert.Len(t, broadcaster.events, 1, "steady state must not rebroadcast")

	p.available = false
	require.NoError(t, task.Run(context.Background()))
	require.Len(t, broadcaster.events, 2)
	assert.False(t, broadcaster.events[1].Available)
}

func TestProviderHealthWithoutBroadcaster(t *testing.T) {
	registry, _ := newHealthFixture(true, nil)
	task := NewProviderHealthTask(registry, nil, zerolog.Nop())

	assert.NoError(t, task.Run(context.Background()))
}

func TestQuotaReportRun(t *testing.T) {
	registry, _ := newHealthFixture(true, map[string]ratelimit.Quota{
		"radiobrowser": {Limit: 100, Period: time.Hour},
	})
	task := NewQuotaReportTask(registry, zerolog.Nop())

	assert.NoError(t, task.Run(context.Background()))
}

func TestTasksRegister(t *testing.T) {
	registry, _ := newHealthFixture(true, nil)
	sched, err := scheduler.New(zerolog.Nop())
	require.NoError(t, err)
	defer sched.Stop()

	health := NewProviderHealthTask(registry, nil, zerolog.Nop())
	require.NoError(t, RegisterProviderHealthTask(sched, health, 0))

	report := NewQuotaReportTask(registry, zerolog.Nop())
	require.NoError(t, RegisterQuotaReportTask(sched, report, 0))

	tasks := sched.ListTasks()
	assert.Len(t, tasks, 2)

	info, err := sched.GetTask("provider-health")
	require.NoError(t, err)
	assert.Equal(t, "15m0s", info.Interval)
}
