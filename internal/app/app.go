package app

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/amorokk/bee/internal/alerting"
	"github.com/amorokk/bee/internal/bot"
	"github.com/amorokk/bee/internal/config"
	"github.com/amorokk/bee/internal/fetcher"
	"github.com/amorokk/bee/internal/maintenance"
	"github.com/amorokk/bee/internal/monitor"
	"github.com/amorokk/bee/internal/state"
	"github.com/amorokk/bee/internal/storage"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

func (a *App) newMarketClient() *fetcher.Client {
	m := a.Config.Market
	pacer := fetcher.NewPacer(m.MinInterval, m.MinJitter, m.MaxJitter)
	retry := fetcher.NewRetryPolicy(m.MaxRetries, m.RetryBaseDelay, m.RetryMaxDelay, m.RetryCooldown, a.Logger)
	return fetcher.NewClient(fetcher.Options{
		BaseURL:      m.BaseURL,
		Timeout:      m.RequestTimeout,
		LimitPerPage: m.LimitPerPage,
	}, pacer, retry, a.Logger)
}

func (a *App) newScanner(client *fetcher.Client) *fetcher.Scanner {
	s := a.Config.Scan
	return fetcher.NewScanner(client, fetcher.NewCache(), s.TotalPages, s.Workers, s.CacheTTL, a.Logger)
}

func (a *App) newNotifier() alerting.Sender {
	return alerting.NewTelegramNotifier(a.Config.Telegram.BotToken, a.Config.Telegram.APIBase, 10*time.Second, a.Logger)
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, nil
	}

	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewStore(pool)
	closer := func() {
		store.Close()
	}
	return store, closer, nil
}

// requestLogRecorder mirrors upstream request telemetry into storage.
type requestLogRecorder struct {
	logs   storage.APILogStore
	logger zerolog.Logger
}

func (r *requestLogRecorder) LogRequest(ctx context.Context, endpoint string, statusCode int, latency time.Duration, errMsg string) {
	entry := storage.APILogEntry{
		Endpoint:   endpoint,
		StatusCode: statusCode,
		LatencyMS:  latency.Milliseconds(),
	}
	if errMsg != "" {
		entry.Error = &errMsg
	}
	if err := r.logs.InsertAPILog(ctx, entry); err != nil {
		r.logger.Error().Err(err).Msg("failed to record api request")
	}
}

var _ fetcher.RequestLogger = (*requestLogRecorder)(nil)

// Run executes the long-running bot plus monitor service.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database.dsn is required to run the bot")
	}
	defer closeStore()

	registry := state.New(store, a.Logger)
	if err := registry.Load(ctx); err != nil {
		return err
	}

	client := a.newMarketClient()
	client.SetRequestLogger(&requestLogRecorder{logs: store, logger: a.Logger})
	scanner := a.newScanner(client)

	mon := monitor.New(registry, client, a.newNotifier(), monitor.Options{
		Interval:             a.Config.Monitor.Interval,
		StartupDelay:         a.Config.Monitor.StartupDelay,
		CoinFailureThreshold: a.Config.Monitor.AssetFailureThreshold,
	}, a.Logger)

	tgBot, err := bot.New(bot.Options{
		Token:         a.Config.Telegram.BotToken,
		APIBase:       a.Config.Telegram.APIBase,
		AdminChatIDs:  a.Config.Telegram.AdminChatIDs,
		CheckInterval: a.Config.Monitor.Interval,
	}, registry, client, scanner, store, a.Logger)
	if err != nil {
		return err
	}

	janitor := maintenance.New(store, maintenance.Options{
		CleanupCron:      a.Config.Maintenance.CleanupCron,
		LogRetentionDays: a.Config.Maintenance.LogRetentionDays,
	}, a.Logger)

	a.Logger.Info().Msg("starting bot and monitor")

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error { return tgBot.Run(groupCtx) })
	group.Go(func() error { return mon.Run(groupCtx) })
	group.Go(func() error { return janitor.Run(groupCtx) })

	err = group.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("service terminated with error")
		return err
	}

	a.Logger.Info().Msg("service stopped")
	return nil
}

// ExportOptions hold parameters for exporting request health history.
type ExportOptions struct {
	From      *time.Time
	To        *time.Time
	PNGPath   string
	CSVPath   string
	MaxPoints int
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Limit int
}

// ScanOptions configure the one-shot threshold scan.
type ScanOptions struct {
	Percent  string
	Limit    int
	JSONPath string
}
