package fetcher

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// PageFetcher is the slice of the market client the scanner depends on.
type PageFetcher interface {
	FetchPage(ctx context.Context, page int) ([]Record, error)
}

// Scanner sweeps the paginated market listing and collects the records whose
// rate of return reaches a threshold. Failed pages are logged and skipped so
// one bad page never sinks the whole sweep.
type Scanner struct {
	client     PageFetcher
	cache      *Cache
	totalPages int
	workers    int
	cacheTTL   time.Duration
	logger     zerolog.Logger
}

// NewScanner constructs a market scanner.
func NewScanner(client PageFetcher, cache *Cache, totalPages, workers int, cacheTTL time.Duration, logger zerolog.Logger) *Scanner {
	if totalPages <= 0 {
		totalPages = 1
	}
	if workers <= 0 {
		workers = 1
	}
	return &Scanner{
		client:     client,
		cache:      cache,
		totalPages: totalPages,
		workers:    workers,
		cacheTTL:   cacheTTL,
		logger:     logger.With().Str("component", "scanner").Logger(),
	}
}

type pageResult struct {
	page    int
	records []Record
	err     error
}

// Scan sweeps every configured page and returns the records whose APR is
// strictly above threshold, sorted by APR descending. Results are served from
// the cache unless the entry expired or forceRefresh is set.
func (s *Scanner) Scan(ctx context.Context, threshold decimal.Decimal, forceRefresh bool) ([]Record, error) {
	if !forceRefresh && s.cache != nil {
		if records, age, ok := s.cache.Get(threshold, s.cacheTTL); ok {
			s.logger.Debug().
				Str("threshold", threshold.String()).
				Dur("age", age).
				Msg("serving scan from cache")
			return records, nil
		}
	}

	start := time.Now()
	records, failed := s.sweep(ctx, threshold)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(records, func(i, j int) bool {
		a, _ := records[i].APR()
		b, _ := records[j].APR()
		return a.GreaterThan(b)
	})

	s.logger.Info().
		Str("threshold", threshold.String()).
		Int("matches", len(records)).
		Int("failed_pages", failed).
		Dur("elapsed", time.Since(start)).
		Msg("scan finished")

	if s.cache != nil {
		s.cache.Set(threshold, records)
	}
	return records, nil
}

func (s *Scanner) sweep(ctx context.Context, threshold decimal.Decimal) ([]Record, int) {
	pages := make(chan int)
	results := make(chan pageResult, s.workers)

	go func() {
		defer close(pages)
		for page := 1; page <= s.totalPages; page++ {
			select {
			case pages <- page:
			case <-ctx.Done():
				return
			}
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < s.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for page := range pages {
				records, err := s.client.FetchPage(ctx, page)
				select {
				case results <- pageResult{page: page, records: records, err: err}:
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	var matched []Record
	failed := 0
	for res := range results {
		if res.err != nil {
			failed++
			s.logger.Warn().Err(res.err).Int("page", res.page).Msg("page fetch failed, skipping")
			continue
		}
		for _, rec := range res.records {
			apr, ok := rec.APR()
			if !ok {
				continue
			}
			if apr.GreaterThan(threshold) {
				matched = append(matched, rec)
			}
		}
	}
	return matched, failed
}
