package fetcher

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

type cacheEntry struct {
	records   []Record
	createdAt time.Time
}

// Cache memoises full threshold-scan results keyed by the threshold value.
// Entries expire lazily at read time; concurrent writes for the same
// threshold are last-write-wins.
type Cache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
	now     func() time.Time
}

// NewCache constructs an empty scan cache.
func NewCache() *Cache {
	return &Cache{
		entries: make(map[string]cacheEntry),
		now:     time.Now,
	}
}

// Get returns the cached records for a threshold if they are younger than
// ttl, along with the entry age.
func (c *Cache) Get(threshold decimal.Decimal, ttl time.Duration) ([]Record, time.Duration, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[threshold.String()]
	if !ok {
		return nil, 0, false
	}
	age := c.now().Sub(entry.createdAt)
	if age > ttl {
		return nil, 0, false
	}
	return entry.records, age, true
}

// Set stores a scan result for a threshold.
func (c *Cache) Set(threshold decimal.Decimal, records []Record) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[threshold.String()] = cacheEntry{records: records, createdAt: c.now()}
}

// Clear drops every cached entry.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]cacheEntry)
}
