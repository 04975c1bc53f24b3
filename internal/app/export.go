package app

import (
	"context"
	"encoding/csv"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"

	"github.com/amorokk/bee/internal/storage"
)

// Export renders upstream request health history as CSV and/or PNG.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}

	opts.MaxPoints = a.Config.ResolveMaxPoints(opts.MaxPoints)

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot export")
	}
	if closeStore != nil {
		defer closeStore()
	}

	to := time.Now().UTC()
	if opts.To != nil {
		to = opts.To.UTC()
	}

	from := to.Add(-time.Duration(opts.MaxPoints) * a.Config.Monitor.Interval)
	if opts.From != nil {
		from = opts.From.UTC()
	}

	if !from.Before(to) {
		return errors.New("from must be before to")
	}

	entries, err := store.ListAPILogsBetween(ctx, from, to)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		a.Logger.Info().Msg("no request logs found for export window")
		return nil
	}

	downsampled := downsampleLogs(entries, opts.MaxPoints)
	a.Logger.Info().Int("total", len(entries)).Int("exported", len(downsampled)).Msg("exporting request logs")

	if opts.CSVPath != "" {
		if err := writeLogsCSV(opts.CSVPath, downsampled); err != nil {
			return err
		}
	}

	if opts.PNGPath != "" {
		if err := writeLogsPNG(opts.PNGPath, downsampled); err != nil {
			return err
		}
	}

	return nil
}

func downsampleLogs(entries []storage.APILogEntry, max int) []storage.APILogEntry {
	if max <= 0 || len(entries) <= max {
		return entries
	}

	result := make([]storage.APILogEntry, 0, max)
	step := float64(len(entries)-1) / float64(max-1)
	for i := 0; i < max; i++ {
		idx := int(math.Round(step * float64(i)))
		if idx >= len(entries) {
			idx = len(entries) - 1
		}
		result = append(result, entries[idx])
	}
	return result
}

func writeLogsCSV(path string, entries []storage.APILogEntry) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"created_at", "endpoint", "status_code", "latency_ms", "error"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, entry := range entries {
		errMsg := ""
		if entry.Error != nil {
			errMsg = *entry.Error
		}
		record := []string{
			entry.CreatedAt.UTC().Format(time.RFC3339),
			entry.Endpoint,
			strconv.Itoa(entry.StatusCode),
			strconv.FormatInt(entry.LatencyMS, 10),
			errMsg,
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	return writer.Error()
}

func writeLogsPNG(path string, entries []storage.APILogEntry) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	x := make([]time.Time, len(entries))
	latency := make([]float64, len(entries))
	status := make([]float64, len(entries))

	for i, entry := range entries {
		x[i] = entry.CreatedAt
		latency[i] = float64(entry.LatencyMS)
		status[i] = float64(entry.StatusCode)
	}

	intFormatter := func(v interface{}) string {
		return chart.FloatValueFormatterWithFormat(v, "%.0f")
	}
	graph := chart.Chart{
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatter,
		},
		YAxis: chart.YAxis{
			Name:           "Latency (ms)",
			ValueFormatter: intFormatter,
		},
		YAxisSecondary: chart.YAxis{
			Name:           "HTTP status",
			ValueFormatter: intFormatter,
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    "Latency",
				XValues: x,
				YValues: latency,
			},
			chart.TimeSeries{
				Name:    "Status code",
				XValues: x,
				YValues: status,
				YAxis:   chart.YAxisSecondary,
			},
		},
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
