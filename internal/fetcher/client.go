package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// RequestLogger records upstream request telemetry. Implemented by the
// storage layer; a nil logger disables recording.
type RequestLogger interface {
	LogRequest(ctx context.Context, endpoint string, statusCode int, latency time.Duration, errMsg string)
}

// Options parameterise the market client.
type Options struct {
	BaseURL      string
	Timeout      time.Duration
	LimitPerPage int
}

// Client queries the Gate Earn market listing. All requests pass through the
// shared pacer and the retry policy.
type Client struct {
	opts   Options
	client *http.Client
	pacer  *Pacer
	retry  RetryPolicy
	reqLog RequestLogger
	logger zerolog.Logger
}

// NewClient constructs a market client.
func NewClient(opts Options, pacer *Pacer, retry RetryPolicy, logger zerolog.Logger) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if opts.LimitPerPage <= 0 {
		opts.LimitPerPage = 7
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")

	return &Client{
		opts:   opts,
		client: &http.Client{Timeout: timeout},
		pacer:  pacer,
		retry:  retry,
		logger: logger.With().Str("component", "market_client").Logger(),
	}
}

// SetRequestLogger wires request telemetry recording.
func (c *Client) SetRequestLogger(rl RequestLogger) {
	c.reqLog = rl
}

// FetchPage retrieves one page of the market listing.
func (c *Client) FetchPage(ctx context.Context, page int) ([]Record, error) {
	query := c.baseQuery()
	query.Set("page", strconv.Itoa(page))
	return c.fetch(ctx, query)
}

// FetchTokenInfo looks up a single asset by its ticker. It returns the first
// record whose normalized asset identifier equals the search key, falling
// back to the first record returned; ErrEmptyResult when nothing matched.
func (c *Client) FetchTokenInfo(ctx context.Context, searchCoin string) (Record, error) {
	search := strings.ToLower(strings.TrimSpace(searchCoin))

	query := c.baseQuery()
	query.Set("search_coin", search)
	query.Set("page", "1")

	records, err := c.fetch(ctx, query)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, ErrEmptyResult
	}
	for _, rec := range records {
		if rec.Asset() == search {
			return rec, nil
		}
	}
	return records[0], nil
}

func (c *Client) baseQuery() url.Values {
	return url.Values{
		"available":     {"false"},
		"limit":         {strconv.Itoa(c.opts.LimitPerPage)},
		"have_balance":  {"2"},
		"have_award":    {"0"},
		"is_subscribed": {"0"},
		"sort_business": {"1"},
		"search_type":   {"0"},
	}
}

func (c *Client) fetch(ctx context.Context, query url.Values) ([]Record, error) {
	var records []Record
	err := c.retry.Do(ctx, func(ctx context.Context) error {
		recs, err := c.doRequest(ctx, query)
		if err != nil {
			return err
		}
		records = recs
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (c *Client) doRequest(ctx context.Context, query url.Values) ([]Record, error) {
	if err := c.pacer.Wait(ctx); err != nil {
		return nil, err
	}

	endpoint := c.opts.BaseURL + "?" + query.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	// The upstream rejects requests carrying custom headers (notably
	// Referer); only default transport headers are sent.

	start := time.Now()
	resp, err := c.client.Do(req)
	latency := time.Since(start)
	if err != nil {
		c.recordRequest(ctx, endpoint, 0, latency, err.Error())
		return nil, &UpstreamError{Kind: KindTransport, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.recordRequest(ctx, endpoint, resp.StatusCode, latency, err.Error())
		return nil, &UpstreamError{Kind: KindTransport, Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		upErr := statusError(resp.StatusCode, fmt.Errorf("unexpected status %d", resp.StatusCode))
		c.recordRequest(ctx, endpoint, resp.StatusCode, latency, upErr.Error())
		return nil, upErr
	}

	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		c.recordRequest(ctx, endpoint, resp.StatusCode, latency, err.Error())
		return nil, &UpstreamError{Kind: KindMalformed, StatusCode: resp.StatusCode, Err: err}
	}

	c.recordRequest(ctx, endpoint, resp.StatusCode, latency, "")
	return extractRecords(payload), nil
}

func (c *Client) recordRequest(ctx context.Context, endpoint string, status int, latency time.Duration, errMsg string) {
	if c.reqLog == nil {
		return
	}
	c.reqLog.LogRequest(ctx, endpoint, status, latency, errMsg)
}
