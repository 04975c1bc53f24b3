package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
)

const (
	insertSubscriberSQL = `INSERT INTO subscribers (chat_id)
    VALUES ($1)
    ON CONFLICT (chat_id) DO NOTHING;`

	deleteSubscriberSQL = `DELETE FROM subscribers WHERE chat_id = $1;`

	listSubscribersSQL = `SELECT chat_id, paused, subscribed_at
    FROM subscribers
    ORDER BY subscribed_at;`

	setPausedSQL = `UPDATE subscribers SET paused = $2 WHERE chat_id = $1;`

	upsertWatchSQL = `INSERT INTO watches (chat_id, coin, status, last_check)
    VALUES ($1, $2, $3, now())
    ON CONFLICT (chat_id, coin) DO UPDATE
    SET status     = EXCLUDED.status,
        last_check = EXCLUDED.last_check;`

	updateWatchStatusSQL = `UPDATE watches
    SET status = $3, last_check = now()
    WHERE chat_id = $1 AND coin = $2;`

	deleteWatchSQL = `DELETE FROM watches WHERE chat_id = $1 AND coin = $2;`

	clearWatchesSQL = `DELETE FROM watches WHERE chat_id = $1;`

	listWatchesSQL = `SELECT chat_id, coin, status, last_check, created_at
    FROM watches
    ORDER BY chat_id, coin;`

	listWatchesForChatSQL = `SELECT chat_id, coin, status, last_check, created_at
    FROM watches
    WHERE chat_id = $1
    ORDER BY coin;`

	statsSQL = `SELECT
        (SELECT COUNT(*) FROM subscribers),
        (SELECT COUNT(*) FROM watches),
        (SELECT COUNT(DISTINCT coin) FROM watches);`

	insertAPILogSQL = `INSERT INTO api_logs (endpoint, status_code, latency_ms, error)
    VALUES ($1, $2, $3, $4);`

	listRecentAPILogsSQL = `SELECT id, endpoint, status_code, latency_ms, error, created_at
    FROM api_logs
    ORDER BY created_at DESC
    LIMIT $1;`

	listAPILogsBetweenSQL = `SELECT id, endpoint, status_code, latency_ms, error, created_at
    FROM api_logs
    WHERE created_at >= $1
      AND created_at < $2
    ORDER BY created_at;`

	deleteAPILogsBeforeSQL = `DELETE FROM api_logs WHERE created_at < $1;`

	countAPILogsSQL = `SELECT COUNT(*) FROM api_logs;`
)

// SubscriberStore defines operations for subscriber persistence.
type SubscriberStore interface {
	AddSubscriber(ctx context.Context, chatID string) (bool, error)
	RemoveSubscriber(ctx context.Context, chatID string) (bool, error)
	ListSubscribers(ctx context.Context) ([]Subscriber, error)
	SetPaused(ctx context.Context, chatID string, paused bool) error
}

// WatchStore defines operations for watch persistence.
type WatchStore interface {
	UpsertWatch(ctx context.Context, chatID, coin, status string) error
	UpdateWatchStatus(ctx context.Context, chatID, coin, status string) error
	RemoveWatch(ctx context.Context, chatID, coin string) (bool, error)
	ClearWatches(ctx context.Context, chatID string) (int64, error)
	ListWatches(ctx context.Context) ([]Watch, error)
	ListWatchesForChat(ctx context.Context, chatID string) ([]Watch, error)
	Stats(ctx context.Context) (Stats, error)
}

// APILogStore defines operations for upstream request auditing.
type APILogStore interface {
	InsertAPILog(ctx context.Context, entry APILogEntry) error
	ListRecentAPILogs(ctx context.Context, limit int) ([]APILogEntry, error)
	ListAPILogsBetween(ctx context.Context, from, to time.Time) ([]APILogEntry, error)
	DeleteAPILogsBefore(ctx context.Context, olderThan time.Time) (int64, error)
	CountAPILogs(ctx context.Context) (int64, error)
}

// Store aggregates access to subscribers, watches and request logs.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// AddSubscriber registers a chat. It reports whether the chat was newly added.
func (s *Store) AddSubscriber(ctx context.Context, chatID string) (bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return false, err
	}
	cmdTag, execErr := pool.Exec(ctx, insertSubscriberSQL, chatID)
	if execErr != nil {
		return false, fmt.Errorf("add subscriber: %w", execErr)
	}
	return cmdTag.RowsAffected() > 0, nil
}

// RemoveSubscriber deletes a chat; its watches cascade away with it.
func (s *Store) RemoveSubscriber(ctx context.Context, chatID string) (bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return false, err
	}
	cmdTag, execErr := pool.Exec(ctx, deleteSubscriberSQL, chatID)
	if execErr != nil {
		return false, fmt.Errorf("remove subscriber: %w", execErr)
	}
	return cmdTag.RowsAffected() > 0, nil
}

// ListSubscribers returns every registered chat.
func (s *Store) ListSubscribers(ctx context.Context) ([]Subscriber, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listSubscribersSQL)
	if queryErr != nil {
		return nil, fmt.Errorf("list subscribers: %w", queryErr)
	}
	defer rows.Close()

	subscribers := make([]Subscriber, 0)
	for rows.Next() {
		var sub Subscriber
		if err := rows.Scan(&sub.ChatID, &sub.Paused, &sub.SubscribedAt); err != nil {
			return nil, err
		}
		subscribers = append(subscribers, sub)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return subscribers, nil
}

// SetPaused flips the notification pause flag for a chat.
func (s *Store) SetPaused(ctx context.Context, chatID string, paused bool) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, execErr := pool.Exec(ctx, setPausedSQL, chatID, paused); execErr != nil {
		return fmt.Errorf("set paused: %w", execErr)
	}
	return nil
}

// UpsertWatch creates or refreshes a (chat, coin) watch with its status.
func (s *Store) UpsertWatch(ctx context.Context, chatID, coin, status string) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, execErr := pool.Exec(ctx, upsertWatchSQL, chatID, coin, status); execErr != nil {
		return fmt.Errorf("upsert watch: %w", execErr)
	}
	return nil
}

// UpdateWatchStatus replaces the serialized status of an existing watch.
func (s *Store) UpdateWatchStatus(ctx context.Context, chatID, coin, status string) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, execErr := pool.Exec(ctx, updateWatchStatusSQL, chatID, coin, status); execErr != nil {
		return fmt.Errorf("update watch status: %w", execErr)
	}
	return nil
}

// RemoveWatch deletes one watch. It reports whether anything was removed.
func (s *Store) RemoveWatch(ctx context.Context, chatID, coin string) (bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return false, err
	}
	cmdTag, execErr := pool.Exec(ctx, deleteWatchSQL, chatID, coin)
	if execErr != nil {
		return false, fmt.Errorf("remove watch: %w", execErr)
	}
	return cmdTag.RowsAffected() > 0, nil
}

// ClearWatches removes every watch of one chat and returns the removed count.
func (s *Store) ClearWatches(ctx context.Context, chatID string) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}
	cmdTag, execErr := pool.Exec(ctx, clearWatchesSQL, chatID)
	if execErr != nil {
		return 0, fmt.Errorf("clear watches: %w", execErr)
	}
	return cmdTag.RowsAffected(), nil
}

// ListWatches returns every watch across all chats.
func (s *Store) ListWatches(ctx context.Context) ([]Watch, error) {
	return s.queryWatches(ctx, listWatchesSQL)
}

// ListWatchesForChat returns one chat's watches ordered by coin.
func (s *Store) ListWatchesForChat(ctx context.Context, chatID string) ([]Watch, error) {
	return s.queryWatches(ctx, listWatchesForChatSQL, chatID)
}

func (s *Store) queryWatches(ctx context.Context, query string, args ...any) ([]Watch, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, query, args...)
	if queryErr != nil {
		return nil, fmt.Errorf("list watches: %w", queryErr)
	}
	defer rows.Close()

	watches := make([]Watch, 0)
	for rows.Next() {
		var (
			w         Watch
			lastCheck sql.NullTime
		)
		if err := rows.Scan(&w.ChatID, &w.Coin, &w.Status, &lastCheck, &w.CreatedAt); err != nil {
			return nil, err
		}
		if lastCheck.Valid {
			value := lastCheck.Time
			w.LastCheck = &value
		}
		watches = append(watches, w)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return watches, nil
}

// Stats returns aggregate subscriber and watch counts.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	pool, err := s.getPool()
	if err != nil {
		return Stats{}, err
	}
	var stats Stats
	if scanErr := pool.QueryRow(ctx, statsSQL).Scan(
		&stats.Subscribers,
		&stats.ActiveWatches,
		&stats.WatchedCoins,
	); scanErr != nil {
		return Stats{}, fmt.Errorf("query stats: %w", scanErr)
	}
	return stats, nil
}

// InsertAPILog records one upstream request.
func (s *Store) InsertAPILog(ctx context.Context, entry APILogEntry) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	var errMsg interface{}
	if entry.Error != nil {
		errMsg = *entry.Error
	}

	if _, execErr := pool.Exec(ctx, insertAPILogSQL,
		entry.Endpoint,
		entry.StatusCode,
		entry.LatencyMS,
		errMsg,
	); execErr != nil {
		return fmt.Errorf("insert api log: %w", execErr)
	}
	return nil
}

// ListRecentAPILogs returns the most recent request log entries.
func (s *Store) ListRecentAPILogs(ctx context.Context, limit int) ([]APILogEntry, error) {
	return s.queryAPILogs(ctx, listRecentAPILogsSQL, limit)
}

// ListAPILogsBetween returns entries within a time window ordered ascending.
func (s *Store) ListAPILogsBetween(ctx context.Context, from, to time.Time) ([]APILogEntry, error) {
	return s.queryAPILogs(ctx, listAPILogsBetweenSQL, from, to)
}

func (s *Store) queryAPILogs(ctx context.Context, query string, args ...any) ([]APILogEntry, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, query, args...)
	if queryErr != nil {
		return nil, fmt.Errorf("list api logs: %w", queryErr)
	}
	defer rows.Close()

	entries := make([]APILogEntry, 0)
	for rows.Next() {
		var (
			entry  APILogEntry
			errMsg sql.NullString
		)
		if err := rows.Scan(
			&entry.ID,
			&entry.Endpoint,
			&entry.StatusCode,
			&entry.LatencyMS,
			&errMsg,
			&entry.CreatedAt,
		); err != nil {
			return nil, err
		}
		if errMsg.Valid {
			msg := errMsg.String
			entry.Error = &msg
		}
		entries = append(entries, entry)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return entries, nil
}

// CountAPILogs counts stored request log entries.
func (s *Store) CountAPILogs(ctx context.Context) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}
	var count int64
	if scanErr := pool.QueryRow(ctx, countAPILogsSQL).Scan(&count); scanErr != nil {
		return 0, fmt.Errorf("count api logs: %w", scanErr)
	}
	return count, nil
}

// DeleteAPILogsBefore drops historical request logs and returns the count.
func (s *Store) DeleteAPILogsBefore(ctx context.Context, olderThan time.Time) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}
	cmdTag, execErr := pool.Exec(ctx, deleteAPILogsBeforeSQL, olderThan)
	if execErr != nil {
		return 0, fmt.Errorf("delete api logs before: %w", execErr)
	}
	return cmdTag.RowsAffected(), nil
}

var (
	_ SubscriberStore = (*Store)(nil)
	_ WatchStore      = (*Store)(nil)
	_ APILogStore     = (*Store)(nil)
)
