package state

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/amorokk/bee/internal/storage"
)

// Store is the persistence surface the registry mirrors.
type Store interface {
	storage.SubscriberStore
	storage.WatchStore
}

// Watcher is one chat's view of a watched asset.
type Watcher struct {
	ChatID string
	Paused bool
	Status string
}

// WatchEntry is one (chat, coin) pair with its serialized status.
type WatchEntry struct {
	ChatID string
	Coin   string
	Status string
}

// Snapshot carries in-memory aggregate counts.
type Snapshot struct {
	Subscribers   int
	PausedChats   int
	ActiveWatches int
	WatchedCoins  int
}

// State is the authoritative in-memory mirror of subscribers and watches.
// Every mutation is written through to the store before the in-memory copy
// changes, so the durable state is always at least as fresh as memory. One
// mutex guards every read-modify-write, including the failure counters.
type State struct {
	mu     sync.Mutex
	store  Store
	logger zerolog.Logger

	subscribers map[string]bool              // chat id -> paused
	watches     map[string]map[string]string // chat id -> coin -> serialized status

	failures failureState
}

// New constructs an empty registry over the given store.
func New(store Store, logger zerolog.Logger) *State {
	return &State{
		store:       store,
		logger:      logger.With().Str("component", "state").Logger(),
		subscribers: make(map[string]bool),
		watches:     make(map[string]map[string]string),
		failures:    newFailureState(),
	}
}

// Load replaces the in-memory mirror with the persisted state.
func (s *State) Load(ctx context.Context) error {
	subscribers, err := s.store.ListSubscribers(ctx)
	if err != nil {
		return fmt.Errorf("load subscribers: %w", err)
	}
	watches, err := s.store.ListWatches(ctx)
	if err != nil {
		return fmt.Errorf("load watches: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.subscribers = make(map[string]bool, len(subscribers))
	for _, sub := range subscribers {
		s.subscribers[sub.ChatID] = sub.Paused
	}
	s.watches = make(map[string]map[string]string)
	for _, w := range watches {
		if _, ok := s.watches[w.ChatID]; !ok {
			s.watches[w.ChatID] = make(map[string]string)
		}
		s.watches[w.ChatID][w.Coin] = w.Status
	}

	s.logger.Info().
		Int("subscribers", len(s.subscribers)).
		Int("watches", len(watches)).
		Msg("state loaded from storage")
	return nil
}

// AddSubscriber registers a chat. It reports whether the chat is new.
func (s *State) AddSubscriber(ctx context.Context, chatID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	added, err := s.store.AddSubscriber(ctx, chatID)
	if err != nil {
		return false, err
	}
	if _, ok := s.subscribers[chatID]; !ok {
		s.subscribers[chatID] = false
	}
	return added, nil
}

// RemoveSubscriber deletes a chat along with all its watches.
func (s *State) RemoveSubscriber(ctx context.Context, chatID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed, err := s.store.RemoveSubscriber(ctx, chatID)
	if err != nil {
		return false, err
	}
	delete(s.subscribers, chatID)
	delete(s.watches, chatID)
	return removed, nil
}

// IsSubscriber reports whether the chat is registered.
func (s *State) IsSubscriber(chatID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.subscribers[chatID]
	return ok
}

// SetPaused flips the notification pause flag for a chat.
func (s *State) SetPaused(ctx context.Context, chatID string, paused bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.subscribers[chatID]; !ok {
		return fmt.Errorf("chat %s is not subscribed", chatID)
	}
	if err := s.store.SetPaused(ctx, chatID, paused); err != nil {
		return err
	}
	s.subscribers[chatID] = paused
	return nil
}

// IsPaused reports whether notifications are paused for a chat.
func (s *State) IsPaused(chatID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.subscribers[chatID]
}

// AddWatch creates or refreshes a watch with its initial status.
func (s *State) AddWatch(ctx context.Context, chatID, coin, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.subscribers[chatID]; !ok {
		return fmt.Errorf("chat %s is not subscribed", chatID)
	}
	if err := s.store.UpsertWatch(ctx, chatID, coin, status); err != nil {
		return err
	}
	if _, ok := s.watches[chatID]; !ok {
		s.watches[chatID] = make(map[string]string)
	}
	s.watches[chatID][coin] = status
	return nil
}

// RemoveWatch deletes one watch. It reports whether anything was removed.
func (s *State) RemoveWatch(ctx context.Context, chatID, coin string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed, err := s.store.RemoveWatch(ctx, chatID, coin)
	if err != nil {
		return false, err
	}
	if coins, ok := s.watches[chatID]; ok {
		delete(coins, coin)
		if len(coins) == 0 {
			delete(s.watches, chatID)
		}
	}
	return removed, nil
}

// ClearWatches removes every watch of one chat and returns the removed count.
func (s *State) ClearWatches(ctx context.Context, chatID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cleared, err := s.store.ClearWatches(ctx, chatID)
	if err != nil {
		return 0, err
	}
	delete(s.watches, chatID)
	return cleared, nil
}

// UpdateStatus persists a new serialized status for one watch and reports
// whether it differed from the stored one. An identical status is a no-op
// with no store write.
func (s *State) UpdateStatus(ctx context.Context, chatID, coin, status string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	coins, ok := s.watches[chatID]
	if !ok {
		return false, fmt.Errorf("chat %s has no watches", chatID)
	}
	current, ok := coins[coin]
	if !ok {
		return false, fmt.Errorf("chat %s does not watch %s", chatID, coin)
	}
	if current == status {
		return false, nil
	}
	if err := s.store.UpdateWatchStatus(ctx, chatID, coin, status); err != nil {
		return false, err
	}
	coins[coin] = status
	return true, nil
}

// WatchedCoins returns the distinct watched assets sorted for deterministic
// polling order.
func (s *State) WatchedCoins() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]bool)
	for _, coins := range s.watches {
		for coin := range coins {
			seen[coin] = true
		}
	}
	result := make([]string, 0, len(seen))
	for coin := range seen {
		result = append(result, coin)
	}
	sort.Strings(result)
	return result
}

// WatchersOf returns every chat watching a coin, with pause flags.
func (s *State) WatchersOf(coin string) []Watcher {
	s.mu.Lock()
	defer s.mu.Unlock()

	var watchers []Watcher
	for chatID, coins := range s.watches {
		status, ok := coins[coin]
		if !ok {
			continue
		}
		watchers = append(watchers, Watcher{
			ChatID: chatID,
			Paused: s.subscribers[chatID],
			Status: status,
		})
	}
	sort.Slice(watchers, func(i, j int) bool { return watchers[i].ChatID < watchers[j].ChatID })
	return watchers
}

// UserCoins returns one chat's watched assets sorted by name.
func (s *State) UserCoins(chatID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	coins := make([]string, 0, len(s.watches[chatID]))
	for coin := range s.watches[chatID] {
		coins = append(coins, coin)
	}
	sort.Strings(coins)
	return coins
}

// UserWatches returns one chat's watches with their serialized statuses.
func (s *State) UserWatches(chatID string) []WatchEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := make([]WatchEntry, 0, len(s.watches[chatID]))
	for coin, status := range s.watches[chatID] {
		entries = append(entries, WatchEntry{ChatID: chatID, Coin: coin, Status: status})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Coin < entries[j].Coin })
	return entries
}

// ActiveChats returns every non-paused subscriber.
func (s *State) ActiveChats() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	chats := make([]string, 0, len(s.subscribers))
	for chatID, paused := range s.subscribers {
		if !paused {
			chats = append(chats, chatID)
		}
	}
	sort.Strings(chats)
	return chats
}

// AllChats returns every subscriber, paused or not.
func (s *State) AllChats() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	chats := make([]string, 0, len(s.subscribers))
	for chatID := range s.subscribers {
		chats = append(chats, chatID)
	}
	sort.Strings(chats)
	return chats
}

// Stats returns in-memory aggregate counts.
func (s *State) Stats() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{Subscribers: len(s.subscribers)}
	coins := make(map[string]bool)
	for _, paused := range s.subscribers {
		if paused {
			snap.PausedChats++
		}
	}
	for _, watched := range s.watches {
		snap.ActiveWatches += len(watched)
		for coin := range watched {
			coins[coin] = true
		}
	}
	snap.WatchedCoins = len(coins)
	return snap
}
