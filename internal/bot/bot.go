package bot

import (
	"context"
	"fmt"
	"time"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/amorokk/bee/internal/fetcher"
	"github.com/amorokk/bee/internal/state"
	"github.com/amorokk/bee/internal/storage"
)

// TokenLookup is the single-asset lookup used by subscriptions and /info.
type TokenLookup interface {
	FetchTokenInfo(ctx context.Context, coin string) (fetcher.Record, error)
}

// ThresholdScanner runs the full market sweep behind /filter.
type ThresholdScanner interface {
	Scan(ctx context.Context, threshold decimal.Decimal, forceRefresh bool) ([]fetcher.Record, error)
}

// Options configure the Telegram command layer.
type Options struct {
	Token         string
	APIBase       string
	AdminChatIDs  []string
	CheckInterval time.Duration
}

// Bot is the inbound Telegram command layer. It owns no domain state of its
// own: every mutation goes through the shared registry.
type Bot struct {
	api     *tgbot.Bot
	st      *state.State
	lookup  TokenLookup
	scanner ThresholdScanner
	logs    storage.APILogStore
	opts    Options
	admins  map[string]bool
	started time.Time
	logger  zerolog.Logger
}

// New constructs the bot and connects it to the Telegram API.
func New(opts Options, st *state.State, lookup TokenLookup, scanner ThresholdScanner, logs storage.APILogStore, logger zerolog.Logger) (*Bot, error) {
	if opts.Token == "" {
		return nil, fmt.Errorf("telegram bot token is required")
	}

	b := &Bot{
		st:      st,
		lookup:  lookup,
		scanner: scanner,
		logs:    logs,
		opts:    opts,
		admins:  make(map[string]bool, len(opts.AdminChatIDs)),
		started: time.Now(),
		logger:  logger.With().Str("component", "bot").Logger(),
	}
	for _, id := range opts.AdminChatIDs {
		b.admins[id] = true
	}

	botOpts := []tgbot.Option{
		tgbot.WithDefaultHandler(b.handleUpdate),
	}
	if opts.APIBase != "" {
		botOpts = append(botOpts, tgbot.WithServerURL(opts.APIBase))
	}

	api, err := tgbot.New(opts.Token, botOpts...)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	b.api = api
	return b, nil
}

// Run registers the command menu and blocks polling updates until ctx is
// cancelled.
func (b *Bot) Run(ctx context.Context) error {
	if ok, err := b.api.SetMyCommands(ctx, b.commands()); err != nil {
		return fmt.Errorf("set bot commands: %w", err)
	} else if !ok {
		return fmt.Errorf("could not set bot commands")
	}

	b.logger.Info().Msg("bot started, waiting for updates")
	b.api.Start(ctx)
	return ctx.Err()
}

func (b *Bot) commands() *tgbot.SetMyCommandsParams {
	return &tgbot.SetMyCommandsParams{
		Commands: []models.BotCommand{
			{Command: "start", Description: "Start using the bot"},
			{Command: "help", Description: "Command reference"},
			{Command: "list", Description: "Show my subscriptions"},
			{Command: "info", Description: "Look up an asset"},
			{Command: "filter", Description: "Subscribe to assets above an APR"},
			{Command: "stop", Description: "Cancel a subscription"},
			{Command: "clear", Description: "Cancel all subscriptions"},
			{Command: "pause", Description: "Pause notifications"},
			{Command: "resume", Description: "Resume notifications"},
			{Command: "status", Description: "Bot status"},
		},
	}
}

func (b *Bot) handleUpdate(ctx context.Context, api *tgbot.Bot, update *models.Update) {
	switch {
	case update.CallbackQuery != nil:
		b.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil:
		b.handleMessage(ctx, update.Message)
	}
}

func (b *Bot) sendText(ctx context.Context, chatID, text string) {
	b.sendWithKeyboard(ctx, chatID, text, nil)
}

func (b *Bot) sendWithKeyboard(ctx context.Context, chatID, text string, keyboard *models.InlineKeyboardMarkup) {
	params := &tgbot.SendMessageParams{
		ChatID: chatID,
		Text:   text,
	}
	if keyboard != nil {
		params.ReplyMarkup = keyboard
	}
	if _, err := b.api.SendMessage(ctx, params); err != nil {
		b.logger.Error().Err(err).Str("chat_id", chatID).Msg("failed to send message")
	}
}

func (b *Bot) isAdmin(chatID string) bool {
	return b.admins[chatID]
}

func (b *Bot) uptime() string {
	return time.Since(b.started).Truncate(time.Second).String()
}

func (b *Bot) checkIntervalMinutes() int {
	minutes := int(b.opts.CheckInterval / time.Minute)
	if minutes < 1 {
		minutes = 1
	}
	return minutes
}
