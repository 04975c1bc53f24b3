package app

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"

	"github.com/amorokk/bee/internal/fetcher"
	"github.com/amorokk/bee/internal/token"
)

// Scan runs a one-shot sweep of the lending market and prints every asset
// whose APR reaches the requested percentage.
func (a *App) Scan(ctx context.Context, opts ScanOptions) error {
	percent, err := decimal.NewFromString(opts.Percent)
	if err != nil {
		return fmt.Errorf("invalid percent value %q: %w", opts.Percent, err)
	}
	if percent.IsNegative() {
		return fmt.Errorf("percent must not be negative")
	}

	threshold := percent.Div(decimal.NewFromInt(100))

	client := a.newMarketClient()
	scanner := a.newScanner(client)

	records, err := scanner.Scan(ctx, threshold, false)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Fprintf(os.Stdout, "no assets found with APR > %s%%\n", percent.String())
		return nil
	}

	shown := records
	truncated := 0
	if opts.Limit > 0 && len(records) > opts.Limit {
		shown = records[:opts.Limit]
		truncated = len(records) - opts.Limit
	}

	fmt.Fprintf(os.Stdout, "%d assets with APR > %s%%:\n", len(records), percent.String())
	for _, rec := range shown {
		fmt.Fprintln(os.Stdout, token.FromRecord(rec).Format())
	}
	if truncated > 0 {
		fmt.Fprintf(os.Stdout, "... and %d more\n", truncated)
	}

	if opts.JSONPath != "" {
		if err := writeScanJSON(opts.JSONPath, records); err != nil {
			return err
		}
		a.Logger.Info().Str("path", opts.JSONPath).Int("records", len(records)).Msg("scan results saved")
	}

	return nil
}

type scanResult struct {
	Coin      string `json:"coin"`
	FixedList []int  `json:"fixed_list"`
	APR       string `json:"sort_apr,omitempty"`
	Timestamp string `json:"timestamp"`
}

func writeScanJSON(path string, records []fetcher.Record) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	results := make([]scanResult, 0, len(records))
	for _, rec := range records {
		status := token.FromRecord(rec)
		result := scanResult{
			Coin:      status.Coin,
			FixedList: status.FixedList,
			Timestamp: status.ObservedAt.UTC().Format(time.RFC3339),
		}
		if status.APR != nil {
			result.APR = status.APR.String()
		}
		results = append(results, result)
	}

	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
