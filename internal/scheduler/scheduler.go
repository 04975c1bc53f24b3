package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// TickFunc is invoked on every interval.
type TickFunc func(ctx context.Context) error

// Options tune scheduler behaviour.
type Options struct {
	Interval     time.Duration
	StartupDelay time.Duration
	Immediate    bool
}

// Scheduler drives periodic execution of a job. Tick failures are logged and
// never stop the loop; only context cancellation ends it.
type Scheduler struct {
	opts   Options
	logger zerolog.Logger
}

// New constructs a Scheduler instance.
func New(opts Options, logger zerolog.Logger) *Scheduler {
	if opts.Interval <= 0 {
		panic("scheduler interval must be positive")
	}
	return &Scheduler{opts: opts, logger: logger.With().Str("component", "scheduler").Logger()}
}

// Run blocks, invoking the tick function until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context, tick TickFunc) error {
	if s.opts.StartupDelay > 0 {
		timer := time.NewTimer(s.opts.StartupDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	if s.opts.Immediate {
		s.execute(ctx, tick)
	}

	ticker := time.NewTicker(s.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.execute(ctx, tick)
		}
	}
}

func (s *Scheduler) execute(ctx context.Context, tick TickFunc) {
	start := time.Now()
	s.logger.Debug().Msg("executing scheduled tick")
	if err := tick(ctx); err != nil {
		s.logger.Error().Err(err).Dur("elapsed", time.Since(start)).Msg("tick execution failed")
		return
	}
	s.logger.Debug().Dur("elapsed", time.Since(start)).Msg("tick finished")
}
