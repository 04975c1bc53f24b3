package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-telegram/bot/models"
	"github.com/shopspring/decimal"

	"github.com/amorokk/bee/internal/fetcher"
	"github.com/amorokk/bee/internal/token"
)

const maxTickerLen = 10

const helpText = "🐝 Bee Bot watches the Gate.com Earn market\n\n" +
	"Commands:\n" +
	"📋 /list — show my watched assets\n" +
	"🔍 /info <coin> — look up an asset without subscribing\n" +
	"❌ /stop <coin> — cancel one subscription\n" +
	"🔎 /filter <percent> — subscribe to every asset with APR above the given percent (example: /filter 200)\n" +
	"🗑 /clear — cancel all subscriptions\n" +
	"🔇 /pause — pause notifications\n" +
	"🔔 /resume — resume notifications\n" +
	"📊 /status — bot status\n" +
	"❓ /help — this reference\n\n" +
	"Send an asset ticker (example: algo) to subscribe to its sale status changes."

// validateTicker enforces the asset key shape: latin letters and digits only,
// at most 10 characters.
func validateTicker(raw string) (string, error) {
	coin := strings.ToLower(strings.TrimSpace(raw))
	if coin == "" {
		return "", errors.New("empty ticker")
	}
	if len(coin) > maxTickerLen {
		return "", fmt.Errorf("ticker too long (max %d characters)", maxTickerLen)
	}
	for _, r := range coin {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return "", errors.New("ticker must contain only latin letters and digits")
		}
	}
	return coin, nil
}

// commandName extracts the lowercase command from the first word of a
// message, stripping the @botname suffix used in group chats.
func commandName(firstWord string) string {
	cmd := strings.ToLower(firstWord)
	if at := strings.IndexByte(cmd, '@'); at > 0 {
		cmd = cmd[:at]
	}
	return cmd
}

func (b *Bot) handleMessage(ctx context.Context, msg *models.Message) {
	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return
	}
	chatID := strconv.FormatInt(msg.Chat.ID, 10)
	b.logger.Info().Str("chat_id", chatID).Str("text", text).Msg("incoming message")

	fields := strings.Fields(text)
	if !strings.HasPrefix(fields[0], "/") {
		b.subscribeTicker(ctx, chatID, fields[0])
		return
	}

	switch commandName(fields[0]) {
	case "/start", "/help":
		if _, err := b.st.AddSubscriber(ctx, chatID); err != nil {
			b.logger.Error().Err(err).Str("chat_id", chatID).Msg("failed to add subscriber")
		}
		b.sendText(ctx, chatID, helpText)
	case "/status":
		b.handleStatus(ctx, chatID)
	case "/pause":
		b.handlePause(ctx, chatID, true)
	case "/resume":
		b.handlePause(ctx, chatID, false)
	case "/info":
		b.handleInfo(ctx, chatID, fields[1:])
	case "/list":
		b.handleList(ctx, chatID)
	case "/stop":
		b.handleStop(ctx, chatID, fields[1:])
	case "/clear":
		b.handleClear(ctx, chatID)
	case "/filter":
		b.handleFilter(ctx, chatID, fields[1:])
	case "/admin":
		b.handleAdmin(ctx, chatID, text)
	default:
		b.sendText(ctx, chatID, "❓ Unknown command. Use /help for the command reference.")
	}
}

func (b *Bot) handleStatus(ctx context.Context, chatID string) {
	snap := b.st.Stats()
	userWatches := len(b.st.UserCoins(chatID))

	pauseLine := "🔔 Notifications active"
	if b.st.IsPaused(chatID) {
		pauseLine = "🔇 Notifications paused (/resume to turn them back on)"
	}

	b.sendText(ctx, chatID, fmt.Sprintf(
		"📊 Bot status:\n\n"+
			"⏱ Uptime: %s\n"+
			"👥 Subscribers: %d\n"+
			"📌 Watched assets total: %d\n"+
			"📋 Your subscriptions: %d\n"+
			"🔄 Check interval: %d min\n"+
			"%s",
		b.uptime(), snap.Subscribers, snap.ActiveWatches, userWatches,
		b.checkIntervalMinutes(), pauseLine,
	))
}

func (b *Bot) handlePause(ctx context.Context, chatID string, paused bool) {
	if err := b.st.SetPaused(ctx, chatID, paused); err != nil {
		b.sendText(ctx, chatID, "❌ You are not subscribed yet. Send /start first.")
		return
	}
	if paused {
		b.sendText(ctx, chatID, "🔇 Notifications paused. Use /resume to turn them back on.")
	} else {
		b.sendText(ctx, chatID, "🔔 Notifications resumed.")
	}
}

func (b *Bot) handleInfo(ctx context.Context, chatID string, args []string) {
	if len(args) < 1 {
		b.sendText(ctx, chatID, "Usage: /info <coin> (example: /info algo)")
		return
	}
	coin, err := validateTicker(args[0])
	if err != nil {
		b.sendText(ctx, chatID, "❌ "+err.Error()+". Use /help for the command reference.")
		return
	}

	rec, err := b.lookup.FetchTokenInfo(ctx, coin)
	if err != nil {
		if errors.Is(err, fetcher.ErrEmptyResult) {
			b.sendText(ctx, chatID, fmt.Sprintf("❌ Asset %s not found.", strings.ToUpper(coin)))
			return
		}
		b.logger.Error().Err(err).Str("coin", coin).Msg("info lookup failed")
		b.sendText(ctx, chatID, "❌ Failed to fetch data, try again later.")
		return
	}

	status := token.FromRecord(rec)
	b.sendText(ctx, chatID, fmt.Sprintf(
		"ℹ️ %s:\n\n%s\n\nTo subscribe, send: %s",
		strings.ToUpper(coin), status.Format(), coin,
	))
}

func (b *Bot) handleList(ctx context.Context, chatID string) {
	coins := b.st.UserCoins(chatID)
	if len(coins) == 0 {
		b.sendText(ctx, chatID, "You have no subscriptions yet.")
		return
	}
	b.sendWithKeyboard(ctx, chatID, b.renderList(ctx, coins), listKeyboard())
}

// renderList fetches the live status of every watched asset for display. A
// failed lookup degrades to the unknown glyph instead of breaking the list.
func (b *Bot) renderList(ctx context.Context, coins []string) string {
	lines := []string{"📋 My subscriptions:", ""}
	for _, coin := range coins {
		rec, err := b.lookup.FetchTokenInfo(ctx, coin)
		if err != nil {
			lines = append(lines, fmt.Sprintf("%s: ⚪ no data", strings.ToUpper(coin)))
			continue
		}
		lines = append(lines, token.FromRecord(rec).Format())
	}
	return strings.Join(lines, "\n")
}

func listKeyboard() *models.InlineKeyboardMarkup {
	return &models.InlineKeyboardMarkup{
		InlineKeyboard: [][]models.InlineKeyboardButton{{
			{Text: "🔄 Refresh", CallbackData: "refresh_list"},
			{Text: "🗑 Clear all", CallbackData: "clear_confirm"},
		}},
	}
}

func (b *Bot) handleStop(ctx context.Context, chatID string, args []string) {
	if len(args) < 1 {
		coins := b.st.UserCoins(chatID)
		if len(coins) == 0 {
			b.sendText(ctx, chatID, "You have no active subscriptions.")
			return
		}
		rows := make([][]models.InlineKeyboardButton, 0, len(coins))
		for _, coin := range coins {
			rows = append(rows, []models.InlineKeyboardButton{{
				Text:         "❌ " + strings.ToUpper(coin),
				CallbackData: "stop_" + coin,
			}})
		}
		b.sendWithKeyboard(ctx, chatID, "Pick the asset to unsubscribe from:",
			&models.InlineKeyboardMarkup{InlineKeyboard: rows})
		return
	}

	coin, err := validateTicker(args[0])
	if err != nil {
		b.sendText(ctx, chatID, "❌ "+err.Error()+". Use /help for the command reference.")
		return
	}
	removed, err := b.st.RemoveWatch(ctx, chatID, coin)
	if err != nil {
		b.logger.Error().Err(err).Str("coin", coin).Msg("failed to remove watch")
		b.sendText(ctx, chatID, "❌ Something went wrong, try again.")
		return
	}
	if removed {
		b.sendText(ctx, chatID, fmt.Sprintf("✅ Unsubscribed from %s.", strings.ToUpper(coin)))
	} else {
		b.sendText(ctx, chatID, fmt.Sprintf("❌ No subscription for %s found.", strings.ToUpper(coin)))
	}
}

func (b *Bot) handleClear(ctx context.Context, chatID string) {
	coins := b.st.UserCoins(chatID)
	if len(coins) == 0 {
		b.sendText(ctx, chatID, "You have no active subscriptions.")
		return
	}
	keyboard := &models.InlineKeyboardMarkup{
		InlineKeyboard: [][]models.InlineKeyboardButton{{
			{Text: "✅ Yes, remove all", CallbackData: "clear_confirmed"},
			{Text: "❌ Cancel", CallbackData: "clear_cancel"},
		}},
	}
	b.sendWithKeyboard(ctx, chatID,
		fmt.Sprintf("⚠️ Remove all %d subscriptions?\nThis cannot be undone.", len(coins)),
		keyboard)
}

func (b *Bot) handleFilter(ctx context.Context, chatID string, args []string) {
	if len(args) < 1 {
		b.sendText(ctx, chatID, "Usage: /filter <percent> (example: /filter 200)")
		return
	}
	percent, err := decimal.NewFromString(args[0])
	if err != nil {
		b.sendText(ctx, chatID, "Invalid percent value.")
		return
	}
	// The upstream reports fractional rates while users think in percent.
	threshold := percent.Div(decimal.NewFromInt(100))

	b.sendText(ctx, chatID, fmt.Sprintf("🔍 Looking for assets with APR above %s%%...", percent.String()))

	records, err := b.scanner.Scan(ctx, threshold, false)
	if err != nil {
		b.logger.Error().Err(err).Msg("filter scan failed")
		b.sendText(ctx, chatID, "❌ Market scan failed, try again later.")
		return
	}
	if len(records) == 0 {
		b.sendText(ctx, chatID, "❌ No assets matched the filter.")
		return
	}

	if _, err := b.st.AddSubscriber(ctx, chatID); err != nil {
		b.logger.Error().Err(err).Str("chat_id", chatID).Msg("failed to add subscriber")
		b.sendText(ctx, chatID, "❌ Something went wrong, try again.")
		return
	}

	var addedLines []string
	for _, rec := range records {
		coin := rec.Asset()
		if coin == "" || len(rec.FixedSaleStatuses()) == 0 {
			continue
		}
		status := token.FromRecord(rec)
		if err := b.st.AddWatch(ctx, chatID, coin, status.Serialize()); err != nil {
			b.logger.Error().Err(err).Str("coin", coin).Msg("failed to add filtered watch")
			continue
		}
		addedLines = append(addedLines, status.Format())
	}

	if len(addedLines) == 0 {
		b.sendText(ctx, chatID, "✅ Filter subscription created, but no suitable assets right now.")
		return
	}

	const maxShown = 20
	shown := addedLines
	suffix := ""
	if len(shown) > maxShown {
		suffix = fmt.Sprintf("\n... and %d more", len(shown)-maxShown)
		shown = shown[:maxShown]
	}
	b.sendText(ctx, chatID, fmt.Sprintf(
		"✅ Filter subscription created.\n"+
			"📊 Assets added: %d. Checking every %d minutes.\n\n"+
			"ℹ️ [1] = available for purchase, [2] = sold out.\n"+
			"Current statuses:\n%s%s",
		len(addedLines), b.checkIntervalMinutes(), strings.Join(shown, "\n"), suffix,
	))
}

// subscribeTicker handles a bare ticker message: validate, look the asset up,
// and register the watch. A failed or empty lookup still creates the watch so
// the monitor picks it up once data appears.
func (b *Bot) subscribeTicker(ctx context.Context, chatID, raw string) {
	coin, err := validateTicker(raw)
	if err != nil {
		b.sendText(ctx, chatID, "❌ "+err.Error()+". Use /help for the command reference.")
		return
	}

	if _, err := b.st.AddSubscriber(ctx, chatID); err != nil {
		b.logger.Error().Err(err).Str("chat_id", chatID).Msg("failed to add subscriber")
		b.sendText(ctx, chatID, "❌ Something went wrong, try again.")
		return
	}

	b.logger.Info().Str("coin", coin).Str("chat_id", chatID).Msg("subscription lookup")
	rec, err := b.lookup.FetchTokenInfo(ctx, coin)
	if err != nil {
		if addErr := b.st.AddWatch(ctx, chatID, coin, token.NoData); addErr != nil {
			b.logger.Error().Err(addErr).Str("coin", coin).Msg("failed to add watch")
			b.sendText(ctx, chatID, "❌ Something went wrong, try again.")
			return
		}
		if errors.Is(err, fetcher.ErrEmptyResult) {
			b.sendText(ctx, chatID, fmt.Sprintf(
				"Subscribed to %s, but no data was found yet.", strings.ToUpper(coin)))
		} else {
			b.logger.Error().Err(err).Str("coin", coin).Msg("subscription lookup failed")
			b.sendText(ctx, chatID, fmt.Sprintf(
				"Subscribed to %s, but fetching its data failed. I will keep trying and alert you if the problem persists.",
				strings.ToUpper(coin)))
		}
		return
	}

	status := token.FromRecord(rec)
	status.Coin = strings.ToUpper(coin)
	if err := b.st.AddWatch(ctx, chatID, coin, status.Serialize()); err != nil {
		b.logger.Error().Err(err).Str("coin", coin).Msg("failed to add watch")
		b.sendText(ctx, chatID, "❌ Something went wrong, try again.")
		return
	}

	b.sendText(ctx, chatID, fmt.Sprintf(
		"✅ Subscribed to %s\n\n%s\n🔔 Checking every %d minutes.",
		strings.ToUpper(coin), status.Format(), b.checkIntervalMinutes(),
	))
}
