package fetcher

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
)

// RetryPolicy executes fallible operations with bounded retries. A 429 sleeps
// the fixed cooldown regardless of attempt number; 5xx and transport failures
// back off exponentially; any other 4xx propagates immediately.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Cooldown    time.Duration

	logger zerolog.Logger
}

// NewRetryPolicy constructs a policy with the given bounds.
func NewRetryPolicy(maxAttempts int, baseDelay, maxDelay, cooldown time.Duration, logger zerolog.Logger) RetryPolicy {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return RetryPolicy{
		MaxAttempts: maxAttempts,
		BaseDelay:   baseDelay,
		MaxDelay:    maxDelay,
		Cooldown:    cooldown,
		logger:      logger.With().Str("component", "retry").Logger(),
	}
}

// Do runs op until it succeeds, a non-retryable failure occurs, or the
// attempt budget is spent. The last error is wrapped in ExhaustedError.
func (p RetryPolicy) Do(ctx context.Context, op func(ctx context.Context) error) error {
	var last error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		err := op(ctx)
		if err == nil {
			return nil
		}
		last = err

		delay := p.backoff(attempt)
		var ue *UpstreamError
		if errors.As(err, &ue) {
			if !ue.Retryable() {
				p.logger.Error().Int("status", ue.StatusCode).Msg("client error, not retrying")
				return err
			}
			if ue.Kind == KindRateLimited {
				delay = p.Cooldown
				p.logger.Warn().Dur("cooldown", delay).Msg("rate limited by upstream")
			} else {
				p.logger.Warn().
					Int("attempt", attempt).
					Int("max_attempts", p.MaxAttempts).
					Dur("delay", delay).
					Str("kind", ue.Kind.String()).
					Msg("retryable upstream failure")
			}
		} else {
			p.logger.Warn().
				Int("attempt", attempt).
				Int("max_attempts", p.MaxAttempts).
				Dur("delay", delay).
				Err(err).
				Msg("network failure")
		}

		if attempt < p.MaxAttempts {
			if err := sleepContext(ctx, delay); err != nil {
				return err
			}
		}
	}

	p.logger.Error().Int("attempts", p.MaxAttempts).Err(last).Msg("retry budget exhausted")
	return &ExhaustedError{Attempts: p.MaxAttempts, Last: last}
}

func (p RetryPolicy) backoff(attempt int) time.Duration {
	delay := p.BaseDelay << uint(attempt-1)
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		delay = p.MaxDelay
	}
	return delay
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
