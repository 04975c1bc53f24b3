package bot

import (
	"context"
	"fmt"
	"strings"

	tgbot "github.com/go-telegram/bot"
)

const adminHelpText = "🔧 Administrative commands:\n\n" +
	"/admin stats — bot statistics\n" +
	"/admin broadcast <text> — message every subscriber\n" +
	"/admin logs — recent upstream request log"

func (b *Bot) handleAdmin(ctx context.Context, chatID, text string) {
	if !b.isAdmin(chatID) {
		b.sendText(ctx, chatID, "❌ You are not allowed to run this command.")
		return
	}

	parts := strings.SplitN(text, " ", 3)
	if len(parts) < 2 {
		b.sendText(ctx, chatID, adminHelpText)
		return
	}

	switch strings.ToLower(parts[1]) {
	case "stats":
		b.adminStats(ctx, chatID)
	case "broadcast":
		if len(parts) < 3 || strings.TrimSpace(parts[2]) == "" {
			b.sendText(ctx, chatID, "Usage: /admin broadcast <message text>")
			return
		}
		b.adminBroadcast(ctx, chatID, parts[2])
	case "logs":
		b.adminLogs(ctx, chatID)
	default:
		b.sendText(ctx, chatID, "❓ Unknown admin command. Use /admin for the reference.")
	}
}

func (b *Bot) adminStats(ctx context.Context, chatID string) {
	snap := b.st.Stats()

	logCount := int64(-1)
	if b.logs != nil {
		if count, err := b.logs.CountAPILogs(ctx); err == nil {
			logCount = count
		} else {
			b.logger.Error().Err(err).Msg("failed to count api logs")
		}
	}

	msg := fmt.Sprintf(
		"🔧 Bot statistics (admin):\n\n"+
			"⏱ Uptime: %s\n"+
			"👥 Subscribers: %d (%d paused)\n"+
			"📌 Watches: %d across %d assets\n",
		b.uptime(), snap.Subscribers, snap.PausedChats, snap.ActiveWatches, snap.WatchedCoins,
	)
	if logCount >= 0 {
		msg += fmt.Sprintf("📊 Request log entries: %d\n", logCount)
	}
	b.sendText(ctx, chatID, msg)
}

func (b *Bot) adminBroadcast(ctx context.Context, chatID, text string) {
	sent, failed := 0, 0
	for _, target := range b.st.AllChats() {
		_, err := b.api.SendMessage(ctx, &tgbot.SendMessageParams{
			ChatID: target,
			Text:   "📢 Announcement from the administrator:\n\n" + text,
		})
		if err != nil {
			b.logger.Error().Err(err).Str("chat_id", target).Msg("broadcast delivery failed")
			failed++
			continue
		}
		sent++
	}
	b.sendText(ctx, chatID, fmt.Sprintf(
		"✅ Broadcast finished:\n✔️ Delivered: %d\n❌ Failed: %d", sent, failed))
}

func (b *Bot) adminLogs(ctx context.Context, chatID string) {
	if b.logs == nil {
		b.sendText(ctx, chatID, "📝 Request logging is not configured.")
		return
	}
	entries, err := b.logs.ListRecentAPILogs(ctx, 10)
	if err != nil {
		b.logger.Error().Err(err).Msg("failed to list api logs")
		b.sendText(ctx, chatID, "❌ Could not read the request log.")
		return
	}
	if len(entries) == 0 {
		b.sendText(ctx, chatID, "📝 The request log is empty.")
		return
	}

	lines := []string{"📝 Last 10 upstream requests:", ""}
	for _, entry := range entries {
		ts := entry.CreatedAt.Format("01-02 15:04:05")
		if entry.Error != nil {
			errMsg := *entry.Error
			if len(errMsg) > 50 {
				errMsg = errMsg[:50]
			}
			lines = append(lines, fmt.Sprintf("❌ %s | %d | %s", ts, entry.StatusCode, errMsg))
			continue
		}
		lines = append(lines, fmt.Sprintf("✅ %s | %d | %dms", ts, entry.StatusCode, entry.LatencyMS))
	}
	b.sendText(ctx, chatID, strings.Join(lines, "\n"))
}
