package monitor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/amorokk/bee/internal/alerting"
	"github.com/amorokk/bee/internal/fetcher"
	"github.com/amorokk/bee/internal/scheduler"
	"github.com/amorokk/bee/internal/state"
	"github.com/amorokk/bee/internal/token"
)

const (
	degradedText = "⚠️ Data source degraded: marketplace polling is failing. Monitoring continues, you will be notified once it recovers."
	recoveryText = "✅ Data source recovered: marketplace polling is healthy again."
)

// TokenFetcher is the single-asset lookup the monitor polls with.
type TokenFetcher interface {
	FetchTokenInfo(ctx context.Context, coin string) (fetcher.Record, error)
}

// Options tune the monitor loop.
type Options struct {
	Interval             time.Duration
	StartupDelay         time.Duration
	CoinFailureThreshold int
}

// Monitor polls every watched asset on a fixed period, detects availability
// changes, and drives the degraded/recovered alert state machine. Outbound
// sends are best-effort: a failed delivery is logged and never aborts a pass.
type Monitor struct {
	state   *state.State
	fetcher TokenFetcher
	sender  alerting.Sender
	opts    Options
	logger  zerolog.Logger
}

// New constructs the change monitor.
func New(st *state.State, tf TokenFetcher, sender alerting.Sender, opts Options, logger zerolog.Logger) *Monitor {
	if opts.Interval <= 0 {
		opts.Interval = time.Minute
	}
	return &Monitor{
		state:   st,
		fetcher: tf,
		sender:  sender,
		opts:    opts,
		logger:  logger.With().Str("component", "monitor").Logger(),
	}
}

// Run blocks, executing monitor passes until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) error {
	sched := scheduler.New(scheduler.Options{
		Interval:     m.opts.Interval,
		StartupDelay: m.opts.StartupDelay,
		Immediate:    true,
	}, m.logger)
	return sched.Run(ctx, m.RunPass)
}

type lookupResult struct {
	coin   string
	record fetcher.Record
	err    error
}

// RunPass executes one full monitor pass: fetch every active asset, then do
// the failure bookkeeping in one place over the aggregated results. Per-asset
// errors are absorbed into alerts; only context cancellation is propagated.
func (m *Monitor) RunPass(ctx context.Context) error {
	coins := m.activeCoins()
	if len(coins) == 0 {
		m.logger.Debug().Msg("no active watches, skipping pass")
		return nil
	}

	start := time.Now()
	results := make([]lookupResult, 0, len(coins))
	sawSuccess := false
	for _, coin := range coins {
		if err := ctx.Err(); err != nil {
			return err
		}
		rec, err := m.fetcher.FetchTokenInfo(ctx, coin)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			m.logger.Warn().Err(err).Str("coin", coin).Msg("asset lookup failed")
		} else {
			sawSuccess = true
		}
		results = append(results, lookupResult{coin: coin, record: rec, err: err})
	}

	if !sawSuccess {
		// Every lookup failed: the source itself is down, not one asset.
		if m.state.NoteGlobalFailure() {
			m.logger.Error().Msg("entering degraded state")
			m.broadcast(ctx, degradedText)
		}
		m.logger.Info().
			Int("coins", len(coins)).
			Dur("elapsed", time.Since(start)).
			Msg("monitor pass failed entirely")
		return nil
	}

	recovered := m.state.NoteGlobalSuccess()

	failures := 0
	for _, res := range results {
		if res.err != nil {
			failures++
			m.handleCoinFailure(ctx, res.coin)
			continue
		}
		m.state.NoteCoinSuccess(res.coin)
		m.applyRecord(ctx, res.coin, res.record)
	}

	// The recovery notice goes out only once the whole pass is applied, so
	// subscribers see their status updates before the all-clear.
	if recovered {
		m.logger.Info().Msg("data source recovered")
		m.broadcast(ctx, recoveryText)
	}

	m.logger.Info().
		Int("coins", len(coins)).
		Int("failures", failures).
		Dur("elapsed", time.Since(start)).
		Msg("monitor pass finished")
	return nil
}

// activeCoins returns the assets that have at least one non-paused watcher.
// Paused chats are skipped entirely, including the fetch itself.
func (m *Monitor) activeCoins() []string {
	var coins []string
	for _, coin := range m.state.WatchedCoins() {
		for _, w := range m.state.WatchersOf(coin) {
			if !w.Paused {
				coins = append(coins, coin)
				break
			}
		}
	}
	return coins
}

// handleCoinFailure escalates a single failing asset while the rest of the
// pass is healthy: after the configured run of consecutive misses its
// watchers get one targeted notice per episode.
func (m *Monitor) handleCoinFailure(ctx context.Context, coin string) {
	if !m.state.NoteCoinFailure(coin, m.opts.CoinFailureThreshold) {
		return
	}
	text := fmt.Sprintf("⚠️ %s: lookup failed %d times in a row. The asset may have been delisted.",
		strings.ToUpper(coin), m.state.CoinFailureCount(coin))
	for _, w := range m.state.WatchersOf(coin) {
		if w.Paused {
			continue
		}
		m.send(ctx, w.ChatID, text)
	}
}

func (m *Monitor) applyRecord(ctx context.Context, coin string, rec fetcher.Record) {
	status := token.FromRecord(rec)
	// Lookup may fall back to a near-match; the registry stays keyed by the
	// asset the watch was created for.
	status.Coin = strings.ToUpper(coin)
	serialized := status.Serialize()

	for _, w := range m.state.WatchersOf(coin) {
		if w.Paused {
			continue
		}
		prev := token.Parse(coin, w.Status)
		changed, err := m.state.UpdateStatus(ctx, w.ChatID, coin, serialized)
		if err != nil {
			m.logger.Error().Err(err).
				Str("chat_id", w.ChatID).
				Str("coin", coin).
				Msg("failed to persist status")
			continue
		}
		// Notify only on a real classification change, never on metadata
		// drift such as a moving APR.
		if changed && !prev.Equal(status) {
			m.send(ctx, w.ChatID, "🔔 "+status.Format())
		}
	}
}

func (m *Monitor) broadcast(ctx context.Context, text string) {
	for _, chatID := range m.state.ActiveChats() {
		m.send(ctx, chatID, text)
	}
}

func (m *Monitor) send(ctx context.Context, chatID, text string) {
	if m.sender == nil {
		return
	}
	if err := m.sender.Send(ctx, chatID, text); err != nil {
		m.logger.Error().Err(err).Str("chat_id", chatID).Msg("failed to deliver notification")
	}
}
