package maintenance

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/amorokk/bee/internal/storage"
)

// Options configure the background cleanup job.
type Options struct {
	CleanupCron      string
	LogRetentionDays int
}

// Janitor prunes aged upstream request logs on a cron schedule so the audit
// table does not grow without bound.
type Janitor struct {
	logs   storage.APILogStore
	opts   Options
	logger zerolog.Logger
}

// New constructs the janitor.
func New(logs storage.APILogStore, opts Options, logger zerolog.Logger) *Janitor {
	return &Janitor{
		logs:   logs,
		opts:   opts,
		logger: logger.With().Str("component", "janitor").Logger(),
	}
}

// Run schedules the cleanup job and blocks until ctx is cancelled.
func (j *Janitor) Run(ctx context.Context) error {
	if j.logs == nil {
		j.logger.Warn().Msg("storage not configured, log cleanup disabled")
		<-ctx.Done()
		return ctx.Err()
	}

	scheduler := cron.New(cron.WithSeconds())
	_, err := scheduler.AddFunc(j.opts.CleanupCron, func() {
		if err := j.Sweep(ctx); err != nil {
			j.logger.Error().Err(err).Msg("log cleanup failed")
		}
	})
	if err != nil {
		return fmt.Errorf("schedule cleanup job: %w", err)
	}

	scheduler.Start()
	defer scheduler.Stop()

	j.logger.Info().
		Str("cron", j.opts.CleanupCron).
		Int("retention_days", j.opts.LogRetentionDays).
		Msg("log cleanup scheduled")

	<-ctx.Done()
	return ctx.Err()
}

// Sweep deletes request log entries older than the retention window.
func (j *Janitor) Sweep(ctx context.Context) error {
	cutoff := time.Now().UTC().AddDate(0, 0, -j.opts.LogRetentionDays)
	deleted, err := j.logs.DeleteAPILogsBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("delete aged api logs: %w", err)
	}
	j.logger.Info().
		Int64("deleted", deleted).
		Time("cutoff", cutoff).
		Msg("request log sweep finished")
	return nil
}
