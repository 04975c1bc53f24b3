package storage

import "time"

// Subscriber is one chat registered with the bot. A subscriber may exist with
// zero watches.
type Subscriber struct {
	ChatID       string
	Paused       bool
	SubscribedAt time.Time
}

// Watch binds one chat to one watched asset. Status holds the serialized
// availability snapshot as last persisted.
type Watch struct {
	ChatID    string
	Coin      string
	Status    string
	LastCheck *time.Time
	CreatedAt time.Time
}

// APILogEntry records one upstream request for health auditing.
type APILogEntry struct {
	ID         int64
	Endpoint   string
	StatusCode int
	LatencyMS  int64
	Error      *string
	CreatedAt  time.Time
}

// Stats aggregates counts shown to administrators.
type Stats struct {
	Subscribers   int64
	ActiveWatches int64
	WatchedCoins  int64
}
