package monitor

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"github.com/amorokk/bee/internal/fetcher"
	"github.com/amorokk/bee/internal/state"
	"github.com/amorokk/bee/internal/storage"
)

type memStore struct {
	subscribers map[string]bool
	watches     map[string]map[string]string
}

func newMemStore() *memStore {
	return &memStore{
		subscribers: make(map[string]bool),
		watches:     make(map[string]map[string]string),
	}
}

func (m *memStore) AddSubscriber(ctx context.Context, chatID string) (bool, error) {
	if _, ok := m.subscribers[chatID]; ok {
		return false, nil
	}
	m.subscribers[chatID] = false
	return true, nil
}

func (m *memStore) RemoveSubscriber(ctx context.Context, chatID string) (bool, error) {
	_, ok := m.subscribers[chatID]
	delete(m.subscribers, chatID)
	delete(m.watches, chatID)
	return ok, nil
}

func (m *memStore) ListSubscribers(ctx context.Context) ([]storage.Subscriber, error) {
	var subs []storage.Subscriber
	for chatID, paused := range m.subscribers {
		subs = append(subs, storage.Subscriber{ChatID: chatID, Paused: paused})
	}
	return subs, nil
}

func (m *memStore) SetPaused(ctx context.Context, chatID string, paused bool) error {
	m.subscribers[chatID] = paused
	return nil
}

func (m *memStore) UpsertWatch(ctx context.Context, chatID, coin, status string) error {
	if _, ok := m.watches[chatID]; !ok {
		m.watches[chatID] = make(map[string]string)
	}
	m.watches[chatID][coin] = status
	return nil
}

func (m *memStore) UpdateWatchStatus(ctx context.Context, chatID, coin, status string) error {
	if coins, ok := m.watches[chatID]; ok {
		coins[coin] = status
	}
	return nil
}

func (m *memStore) RemoveWatch(ctx context.Context, chatID, coin string) (bool, error) {
	coins, ok := m.watches[chatID]
	if !ok {
		return false, nil
	}
	_, ok = coins[coin]
	delete(coins, coin)
	return ok, nil
}

func (m *memStore) ClearWatches(ctx context.Context, chatID string) (int64, error) {
	count := int64(len(m.watches[chatID]))
	delete(m.watches, chatID)
	return count, nil
}

func (m *memStore) ListWatches(ctx context.Context) ([]storage.Watch, error) {
	var watches []storage.Watch
	for chatID, coins := range m.watches {
		for coin, status := range coins {
			watches = append(watches, storage.Watch{ChatID: chatID, Coin: coin, Status: status})
		}
	}
	return watches, nil
}

func (m *memStore) ListWatchesForChat(ctx context.Context, chatID string) ([]storage.Watch, error) {
	var watches []storage.Watch
	for coin, status := range m.watches[chatID] {
		watches = append(watches, storage.Watch{ChatID: chatID, Coin: coin, Status: status})
	}
	return watches, nil
}

func (m *memStore) Stats(ctx context.Context) (storage.Stats, error) {
	return storage.Stats{}, nil
}

var _ state.Store = (*memStore)(nil)

type stubFetcher struct {
	mu      sync.Mutex
	records map[string]fetcher.Record
	errs    map[string]error
	calls   map[string]int
}

func newStubFetcher() *stubFetcher {
	return &stubFetcher{
		records: make(map[string]fetcher.Record),
		errs:    make(map[string]error),
		calls:   make(map[string]int),
	}
}

func (s *stubFetcher) FetchTokenInfo(ctx context.Context, coin string) (fetcher.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[coin]++
	if err, ok := s.errs[coin]; ok {
		return nil, err
	}
	if rec, ok := s.records[coin]; ok {
		return rec, nil
	}
	return nil, fetcher.ErrEmptyResult
}

type captureSender struct {
	mu       sync.Mutex
	messages []string // "chatID|text"
}

func (c *captureSender) Send(ctx context.Context, chatID, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, chatID+"|"+text)
	return nil
}

func (c *captureSender) count(substr string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, msg := range c.messages {
		if strings.Contains(msg, substr) {
			n++
		}
	}
	return n
}

func availableRecord(asset string) fetcher.Record {
	return fetcher.Record{
		"asset":    asset,
		"sort_apr": "0.025",
		"fixed_list": []any{
			map[string]any{"sale_status": float64(1)},
		},
	}
}

func soldOutRecord(asset string) fetcher.Record {
	return fetcher.Record{
		"asset":    asset,
		"sort_apr": "0.025",
		"fixed_list": []any{
			map[string]any{"sale_status": float64(2)},
		},
	}
}

func newTestMonitor(t *testing.T, opts Options) (*Monitor, *state.State, *stubFetcher, *captureSender) {
	t.Helper()
	st := state.New(newMemStore(), zerolog.Nop())
	tf := newStubFetcher()
	sender := &captureSender{}
	return New(st, tf, sender, opts, zerolog.Nop()), st, tf, sender
}

func TestFirstIngestionNotifiesOnce(t *testing.T) {
	ctx := context.Background()
	mon, st, tf, sender := newTestMonitor(t, Options{CoinFailureThreshold: 3})

	st.AddSubscriber(ctx, "100")
	st.AddWatch(ctx, "100", "algo", "no_data")
	tf.records["algo"] = availableRecord("algo")

	if err := mon.RunPass(ctx); err != nil {
		t.Fatalf("pass 1: %v", err)
	}
	if got := sender.count("🔔"); got != 1 {
		t.Fatalf("expected 1 change notification on first ingestion, got %d", got)
	}

	// The identical record again: no further notification.
	if err := mon.RunPass(ctx); err != nil {
		t.Fatalf("pass 2: %v", err)
	}
	if got := sender.count("🔔"); got != 1 {
		t.Fatalf("identical pass must be silent, got %d notifications", got)
	}
}

func TestClassificationChangeNotifies(t *testing.T) {
	ctx := context.Background()
	mon, st, tf, sender := newTestMonitor(t, Options{CoinFailureThreshold: 3})

	st.AddSubscriber(ctx, "100")
	st.AddWatch(ctx, "100", "algo", "no_data")

	tf.records["algo"] = soldOutRecord("algo")
	mon.RunPass(ctx)
	tf.records["algo"] = availableRecord("algo")
	mon.RunPass(ctx)

	if got := sender.count("🔔"); got != 2 {
		t.Fatalf("expected 2 notifications across the transition, got %d", got)
	}
	if got := sender.count("available for purchase"); got != 1 {
		t.Fatalf("expected availability wording once, got %d", got)
	}
}

func TestAPRDriftDoesNotNotify(t *testing.T) {
	ctx := context.Background()
	mon, st, tf, sender := newTestMonitor(t, Options{CoinFailureThreshold: 3})

	st.AddSubscriber(ctx, "100")
	st.AddWatch(ctx, "100", "algo", "no_data")

	tf.records["algo"] = availableRecord("algo")
	mon.RunPass(ctx)

	drifted := availableRecord("algo")
	drifted["sort_apr"] = "0.031"
	tf.records["algo"] = drifted
	mon.RunPass(ctx)

	if got := sender.count("🔔"); got != 1 {
		t.Fatalf("apr drift must not notify, got %d notifications", got)
	}
}

func TestAlertDeduplicationAndRecovery(t *testing.T) {
	ctx := context.Background()
	mon, st, tf, sender := newTestMonitor(t, Options{CoinFailureThreshold: 10})

	st.AddSubscriber(ctx, "100")
	st.AddWatch(ctx, "100", "algo", "no_data")
	tf.errs["algo"] = errors.New("connection refused")

	for i := 0; i < 4; i++ {
		if err := mon.RunPass(ctx); err != nil {
			t.Fatalf("failing pass %d: %v", i, err)
		}
	}
	if got := sender.count("degraded"); got != 1 {
		t.Fatalf("expected exactly 1 degraded alert across 4 failing passes, got %d", got)
	}

	delete(tf.errs, "algo")
	tf.records["algo"] = availableRecord("algo")
	mon.RunPass(ctx)

	if got := sender.count("recovered"); got != 1 {
		t.Fatalf("expected exactly 1 recovery notice, got %d", got)
	}
	if st.GlobalFailureCount() != 0 {
		t.Fatal("failure counters must reset on recovery")
	}

	// Healthy passes after recovery stay silent.
	mon.RunPass(ctx)
	if got := sender.count("recovered"); got != 1 {
		t.Fatalf("recovery notice repeated: %d", got)
	}
}

func TestRecoveryNoticeFollowsStatusUpdates(t *testing.T) {
	ctx := context.Background()
	mon, st, tf, sender := newTestMonitor(t, Options{CoinFailureThreshold: 10})

	st.AddSubscriber(ctx, "100")
	st.AddWatch(ctx, "100", "algo", "no_data")
	tf.errs["algo"] = errors.New("connection refused")
	mon.RunPass(ctx)

	delete(tf.errs, "algo")
	tf.records["algo"] = availableRecord("algo")
	mon.RunPass(ctx)

	changeAt, recoveryAt := -1, -1
	for i, msg := range sender.messages {
		if strings.Contains(msg, "🔔") {
			changeAt = i
		}
		if strings.Contains(msg, "recovered") {
			recoveryAt = i
		}
	}
	if changeAt == -1 || recoveryAt == -1 {
		t.Fatalf("expected both a change notification and a recovery notice, got %v", sender.messages)
	}
	if recoveryAt < changeAt {
		t.Fatalf("recovery notice must come after the pass's status updates, got %v", sender.messages)
	}
}

func TestEmptyResultTreatedAsFailure(t *testing.T) {
	ctx := context.Background()
	mon, st, _, sender := newTestMonitor(t, Options{CoinFailureThreshold: 10})

	st.AddSubscriber(ctx, "100")
	st.AddWatch(ctx, "100", "ghost", "no_data")
	// The stub returns ErrEmptyResult for unknown coins.

	mon.RunPass(ctx)
	if got := sender.count("degraded"); got != 1 {
		t.Fatalf("empty lookup result must degrade, got %d alerts", got)
	}
}

func TestPausedChatSkippedEntirely(t *testing.T) {
	ctx := context.Background()
	mon, st, tf, sender := newTestMonitor(t, Options{CoinFailureThreshold: 3})

	st.AddSubscriber(ctx, "100")
	st.AddWatch(ctx, "100", "algo", "no_data")
	st.SetPaused(ctx, "100", true)
	tf.records["algo"] = availableRecord("algo")

	mon.RunPass(ctx)
	if tf.calls["algo"] != 0 {
		t.Fatalf("paused chat's asset must not be fetched, calls=%d", tf.calls["algo"])
	}
	if len(sender.messages) != 0 {
		t.Fatalf("paused chat must receive nothing, got %v", sender.messages)
	}
}

func TestSingleAssetEscalation(t *testing.T) {
	ctx := context.Background()
	mon, st, tf, sender := newTestMonitor(t, Options{CoinFailureThreshold: 3})

	st.AddSubscriber(ctx, "100")
	st.AddWatch(ctx, "100", "algo", "no_data")
	st.AddWatch(ctx, "100", "dead", "no_data")
	tf.records["algo"] = availableRecord("algo")
	tf.errs["dead"] = errors.New("not listed")

	for i := 0; i < 5; i++ {
		mon.RunPass(ctx)
	}

	// One healthy asset keeps the source out of the degraded state.
	if got := sender.count("degraded"); got != 0 {
		t.Fatalf("mixed pass must not trigger the global alert, got %d", got)
	}
	if got := sender.count("DEAD"); got != 1 {
		t.Fatalf("expected exactly 1 escalation notice, got %d", got)
	}

	// Once the asset comes back its failure history is gone.
	delete(tf.errs, "dead")
	tf.records["dead"] = availableRecord("dead")
	mon.RunPass(ctx)
	if st.CoinFailureCount("dead") != 0 {
		t.Fatal("coin failure history must clear on success")
	}
}

func TestTwoWatchersBothNotified(t *testing.T) {
	ctx := context.Background()
	mon, st, tf, sender := newTestMonitor(t, Options{CoinFailureThreshold: 3})

	st.AddSubscriber(ctx, "100")
	st.AddSubscriber(ctx, "200")
	st.AddWatch(ctx, "100", "algo", "no_data")
	st.AddWatch(ctx, "200", "algo", "no_data")
	tf.records["algo"] = availableRecord("algo")

	mon.RunPass(ctx)
	if got := sender.count("🔔"); got != 2 {
		t.Fatalf("both watchers must be notified, got %d", got)
	}
	if tf.calls["algo"] != 1 {
		t.Fatalf("shared asset must be fetched once per pass, calls=%d", tf.calls["algo"])
	}
}
