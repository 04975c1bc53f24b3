package fetcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

type fakePageFetcher struct {
	mu      sync.Mutex
	pages   map[int][]Record
	failing map[int]error
	calls   []int
}

func (f *fakePageFetcher) FetchPage(ctx context.Context, page int) ([]Record, error) {
	f.mu.Lock()
	f.calls = append(f.calls, page)
	f.mu.Unlock()
	if err, ok := f.failing[page]; ok {
		return nil, err
	}
	return f.pages[page], nil
}

func rec(asset string, apr string) Record {
	return Record{"asset": asset, "sort_apr": apr}
}

func TestScanFiltersAndSorts(t *testing.T) {
	fake := &fakePageFetcher{
		pages: map[int][]Record{
			1: {rec("BTC", "0.01"), rec("ALGO", "0.05")},
			2: {rec("DOT", "0.03"), rec("ETH", "bad")},
			3: {rec("SOL", "0.08")},
		},
	}
	scanner := NewScanner(fake, NewCache(), 3, 2, time.Minute, zerolog.Nop())

	records, err := scanner.Scan(context.Background(), decimal.RequireFromString("0.02"), false)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	want := []string{"sol", "algo", "dot"}
	if len(records) != len(want) {
		t.Fatalf("expected %d matches, got %d", len(want), len(records))
	}
	for i, coin := range want {
		if got := records[i].Asset(); got != coin {
			t.Errorf("position %d: expected %q, got %q", i, coin, got)
		}
	}
}

func TestScanExcludesThresholdEquality(t *testing.T) {
	fake := &fakePageFetcher{
		pages: map[int][]Record{
			1: {rec("BTC", "0.02"), rec("SOL", "0.03")},
		},
	}
	scanner := NewScanner(fake, NewCache(), 1, 1, time.Minute, zerolog.Nop())

	records, err := scanner.Scan(context.Background(), decimal.RequireFromString("0.02"), true)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected only the strictly greater record, got %v", records)
	}
	if got := records[0].Asset(); got != "sol" {
		t.Fatalf("expected sol, got %q", got)
	}
}

func TestScanSkipsFailedPages(t *testing.T) {
	fake := &fakePageFetcher{
		pages: map[int][]Record{
			1: {rec("BTC", "0.05")},
			3: {rec("SOL", "0.06")},
		},
		failing: map[int]error{
			2: &ExhaustedError{Attempts: 3, Last: errors.New("timeout")},
		},
	}
	scanner := NewScanner(fake, NewCache(), 3, 2, time.Minute, zerolog.Nop())

	records, err := scanner.Scan(context.Background(), decimal.RequireFromString("0.01"), false)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	seen := map[string]bool{}
	for _, r := range records {
		seen[r.Asset()] = true
	}
	if len(records) != 2 || !seen["btc"] || !seen["sol"] {
		t.Fatalf("expected union of surviving pages, got %v", records)
	}
}

func TestScanVisitsEveryPage(t *testing.T) {
	total := 10
	fake := &fakePageFetcher{pages: map[int][]Record{}}
	scanner := NewScanner(fake, nil, total, 3, time.Minute, zerolog.Nop())

	if _, err := scanner.Scan(context.Background(), decimal.Zero, false); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(fake.calls) != total {
		t.Fatalf("expected %d page fetches, got %d", total, len(fake.calls))
	}
	visited := map[int]bool{}
	for _, p := range fake.calls {
		if visited[p] {
			t.Fatalf("page %d fetched twice", p)
		}
		visited[p] = true
	}
}

func TestScanUsesCacheUntilExpiry(t *testing.T) {
	fake := &fakePageFetcher{
		pages: map[int][]Record{1: {rec("BTC", "0.05")}},
	}
	cache := NewCache()
	now := time.Now()
	cache.now = func() time.Time { return now }
	scanner := NewScanner(fake, cache, 1, 1, 5*time.Minute, zerolog.Nop())

	threshold := decimal.RequireFromString("0.01")
	if _, err := scanner.Scan(context.Background(), threshold, false); err != nil {
		t.Fatalf("first scan: %v", err)
	}
	if _, err := scanner.Scan(context.Background(), threshold, false); err != nil {
		t.Fatalf("cached scan: %v", err)
	}
	if len(fake.calls) != 1 {
		t.Fatalf("expected cached result to skip fetching, calls=%d", len(fake.calls))
	}

	// A different threshold misses the cache.
	if _, err := scanner.Scan(context.Background(), decimal.RequireFromString("0.02"), false); err != nil {
		t.Fatalf("second threshold scan: %v", err)
	}
	if len(fake.calls) != 2 {
		t.Fatalf("expected cache miss for new threshold, calls=%d", len(fake.calls))
	}

	// Expiry forces a refetch.
	now = now.Add(6 * time.Minute)
	if _, err := scanner.Scan(context.Background(), threshold, false); err != nil {
		t.Fatalf("expired scan: %v", err)
	}
	if len(fake.calls) != 3 {
		t.Fatalf("expected refetch after expiry, calls=%d", len(fake.calls))
	}
}

func TestScanForceRefreshBypassesCache(t *testing.T) {
	fake := &fakePageFetcher{
		pages: map[int][]Record{1: {rec("BTC", "0.05")}},
	}
	scanner := NewScanner(fake, NewCache(), 1, 1, time.Hour, zerolog.Nop())

	threshold := decimal.RequireFromString("0.01")
	for i := 0; i < 2; i++ {
		if _, err := scanner.Scan(context.Background(), threshold, true); err != nil {
			t.Fatalf("scan %d: %v", i, err)
		}
	}
	if len(fake.calls) != 2 {
		t.Fatalf("expected force refresh to fetch twice, calls=%d", len(fake.calls))
	}
}

type blockingFetcher struct{}

func (blockingFetcher) FetchPage(ctx context.Context, page int) ([]Record, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(time.Hour):
		return nil, fmt.Errorf("unreachable")
	}
}

func TestScanStopsOnCancel(t *testing.T) {
	scanner := NewScanner(blockingFetcher{}, nil, 100, 2, time.Minute, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := scanner.Scan(ctx, decimal.Zero, false)
		done <- err
	}()
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("scan did not stop after cancel")
	}
}
