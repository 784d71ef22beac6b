package tasks

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/skywave/skywave/internal/provider"
	"github.com/skywave/skywave/internal/scheduler"
)

// EventProviderHealth is broadcast when a provider's availability changes.
const EventProviderHealth = "provider:health"

// HealthPayload is the provider:health event body.
type HealthPayload struct {
	Provider  string `json:"provider"`
	Available bool   `json:"available"`
	Enabled   bool   `json:"enabled"`
}

// Broadcaster interface for sending events to clients.
type Broadcaster interface {
	Broadcast(msgType string, payload interface{}) error
}

// ProviderHealthTask periodically probes provider availability and reports
// transitions.
type ProviderHealthTask struct {
	registry    *provider.Registry
	broadcaster Broadcaster
	logger      zerolog.Logger

	mu            sync.Mutex
	lastAvailable map[string]bool
}

// NewProviderHealthTask creates a new provider health check task.
func NewProviderHealthTask(registry *provider.Registry, broadcaster Broadcaster, logger zerolog.Logger) *ProviderHealthTask {
	return &ProviderHealthTask{
		registry:      registry,
		broadcaster:   broadcaster,
		logger:        logger.With().Str("task", "provider-health").Logger(),
		lastAvailable: make(map[string]bool),
	}
}

// Run executes the provider health check.
func (t *ProviderHealthTask) Run(ctx context.Context) error {
	statuses := t.registry.Statuses(ctx)

	available := 0
	for _, st := range statuses {
		if st.Available {
			available++
		}

		t.mu.Lock()
		previous, seen := t.lastAvailable[st.Name]
		t.lastAvailable[st.Name] = st.Available
		t.mu.Unlock()

		if seen && previous == st.Available {
			continue
		}

		t.logger.Info().
			Str("provider", st.Name).
			Str("kind", string(st.Kind)).
			Bool("available", st.Available).
			Bool("enabled", st.Enabled).
			Msg("Provider availability observed")

		if t.broadcaster != nil {
			t.broadcaster.Broadcast(EventProviderHealth, HealthPayload{
				Provider:  st.Name,
				Available: st.Available,
				Enabled:   st.Enabled,
			})
		}
	}

	t.logger.Debug().
		Int("providers", len(statuses)).
		Int("available", available).
		Msg("Provider health check completed")

	return nil
}

// RegisterProviderHealthTask registers the provider health task with the
// scheduler.
func RegisterProviderHealthTask(sched *scheduler.Scheduler, task *ProviderHealthTask, interval time.Duration) error {
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	return sched.RegisterTask(scheduler.TaskConfig{
		ID:          "provider-health",
		Name:        "Provider Health Check",
		Description: "Probes provider availability and reports transitions",
		Interval:    interval,
		RunOnStart:  true,
		Func:        task.Run,
	})
}
