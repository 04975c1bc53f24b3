package fetcher

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestRetryStopsOnClientError(t *testing.T) {
	policy := NewRetryPolicy(3, time.Millisecond, 10*time.Millisecond, time.Millisecond, zerolog.Nop())

	calls := 0
	err := policy.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return statusError(404, errors.New("not found"))
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
	var ue *UpstreamError
	if !errors.As(err, &ue) || ue.Kind != KindClient {
		t.Fatalf("expected client error, got %v", err)
	}
}

func TestRetryRecoversAfterServerError(t *testing.T) {
	policy := NewRetryPolicy(3, time.Millisecond, 10*time.Millisecond, time.Millisecond, zerolog.Nop())

	calls := 0
	err := policy.Do(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return statusError(503, errors.New("unavailable"))
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestRetryExhaustion(t *testing.T) {
	policy := NewRetryPolicy(3, time.Millisecond, 10*time.Millisecond, time.Millisecond, zerolog.Nop())

	calls := 0
	err := policy.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return &UpstreamError{Kind: KindTransport, Err: errors.New("connection reset")}
	})
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
	var ex *ExhaustedError
	if !errors.As(err, &ex) {
		t.Fatalf("expected ExhaustedError, got %v", err)
	}
	if ex.Attempts != 3 {
		t.Fatalf("expected 3 recorded attempts, got %d", ex.Attempts)
	}
	var ue *UpstreamError
	if !errors.As(ex.Last, &ue) || ue.Kind != KindTransport {
		t.Fatalf("expected transport error inside, got %v", ex.Last)
	}
}

func TestRetryRateLimitUsesCooldown(t *testing.T) {
	cooldown := 30 * time.Millisecond
	policy := NewRetryPolicy(2, time.Millisecond, 10*time.Millisecond, cooldown, zerolog.Nop())

	calls := 0
	start := time.Now()
	err := policy.Do(context.Background(), func(ctx context.Context) error {
		calls++
		if calls == 1 {
			return statusError(429, errors.New("too many requests"))
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if elapsed := time.Since(start); elapsed < cooldown {
		t.Fatalf("expected at least %v cooldown, elapsed %v", cooldown, elapsed)
	}
}

func TestRetryHonorsContextCancel(t *testing.T) {
	policy := NewRetryPolicy(3, time.Hour, time.Hour, time.Hour, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	err := policy.Do(ctx, func(ctx context.Context) error {
		return statusError(500, errors.New("boom"))
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestBackoffCappedAtMaxDelay(t *testing.T) {
	policy := NewRetryPolicy(5, 2*time.Second, 5*time.Second, time.Minute, zerolog.Nop())

	want := []time.Duration{2 * time.Second, 4 * time.Second, 5 * time.Second, 5 * time.Second}
	for i, w := range want {
		if got := policy.backoff(i + 1); got != w {
			t.Errorf("attempt %d: expected %v, got %v", i+1, w, got)
		}
	}
}

func TestPacerSpacesRequests(t *testing.T) {
	gap := 20 * time.Millisecond
	pacer := NewPacer(gap, 0, 0)

	ctx := context.Background()
	start := time.Now()
	for i := 0; i < 3; i++ {
		if err := pacer.Wait(ctx); err != nil {
			t.Fatalf("wait: %v", err)
		}
	}
	// First slot is free, the next two must each wait out the gap.
	if elapsed := time.Since(start); elapsed < 2*gap {
		t.Fatalf("3 waits finished in %v, expected at least %v", elapsed, 2*gap)
	}
}
