package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"
)

// Show prints recent upstream request log entries.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot show request logs")
	}
	if closeStore != nil {
		defer closeStore()
	}

	entries, err := store.ListRecentAPILogs(ctx, opts.Limit)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintln(os.Stdout, "no request logs found")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Time (UTC)\tStatus\tLatency (ms)\tEndpoint\tError")

	for _, entry := range entries {
		errMsg := ""
		if entry.Error != nil {
			errMsg = sanitizeInline(*entry.Error)
		}
		fmt.Fprintf(
			writer,
			"%s\t%d\t%d\t%s\t%s\n",
			entry.CreatedAt.UTC().Format(time.RFC3339),
			entry.StatusCode,
			entry.LatencyMS,
			entry.Endpoint,
			errMsg,
		)
	}

	writer.Flush()
	return nil
}

func sanitizeInline(v string) string {
	cleaned := strings.ReplaceAll(v, "\n", " ")
	cleaned = strings.ReplaceAll(cleaned, "\r", " ")
	return cleaned
}
