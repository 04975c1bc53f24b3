package fetcher

import (
	"context"
	"math/rand"
	"time"

	"golang.org/x/time/rate"
)

// Pacer caps the aggregate upstream request rate across every goroutine: no
// two requests are released less than minInterval apart, regardless of how
// many workers are fetching. An optional random jitter is added on top of the
// paced slot to keep the request pattern human-like.
type Pacer struct {
	limiter   *rate.Limiter
	minJitter time.Duration
	maxJitter time.Duration
}

// NewPacer builds a pacer with the given minimum gap and jitter window.
func NewPacer(minInterval, minJitter, maxJitter time.Duration) *Pacer {
	if minInterval <= 0 {
		minInterval = time.Second
	}
	return &Pacer{
		limiter:   rate.NewLimiter(rate.Every(minInterval), 1),
		minJitter: minJitter,
		maxJitter: maxJitter,
	}
}

// Wait blocks until the caller may issue the next request.
func (p *Pacer) Wait(ctx context.Context) error {
	if err := p.limiter.Wait(ctx); err != nil {
		return err
	}
	if span := p.maxJitter - p.minJitter; span > 0 || p.minJitter > 0 {
		jitter := p.minJitter
		if span > 0 {
			jitter += time.Duration(rand.Int63n(int64(span)))
		}
		return sleepContext(ctx, jitter)
	}
	return nil
}
