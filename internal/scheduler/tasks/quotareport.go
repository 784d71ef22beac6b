package tasks

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/skywave/skywave/internal/provider"
	"github.com/skywave/skywave/internal/scheduler"
)

// QuotaReportTask periodically logs quota consumption for metered providers.
type QuotaReportTask struct {
	registry *provider.Registry
	logger   zerolog.Logger
}

// NewQuotaReportTask creates a new quota report task.
func NewQuotaReportTask(registry *provider.Registry, logger zerolog.Logger) *QuotaReportTask {
	return &QuotaReportTask{
		registry: registry,
		logger:   logger.With().Str("task", "quota-report").Logger(),
	}
}

// Run logs the current window usage for every metered provider.
func (t *QuotaReportTask) Run(ctx context.Context) error {
	metered := 0
	for _, st := range t.registry.Statuses(ctx) {
		if st.RateLimitQuota <= 0 {
			continue
		}
		metered++
		t.logger.Info().
			Str("provider", st.Name).
			Int("used", st.Used).
			Int("limit", st.RateLimitQuota).
			Int("remaining", st.Remaining).
			Int64("resetSeconds", st.ResetSeconds).
			Msg("Provider quota usage")
	}

	if metered == 0 {
		t.logger.Debug().Msg("No metered providers configured")
	}

	return nil
}

// RegisterQuotaReportTask registers the quota report task with the scheduler.
func RegisterQuotaReportTask(sched *scheduler.Scheduler, task *QuotaReportTask, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Hour
	}
	return sched.RegisterTask(scheduler.TaskConfig{
		ID:          "quota-report",
		Name:        "Quota Usage Report",
		Description: "Logs fixed-window quota consumption for metered providers",
		Interval:    interval,
		RunOnStart:  false,
		Func:        task.Run,
	})
}
