package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

func (b *Bot) handleCallback(ctx context.Context, cq *models.CallbackQuery) {
	if cq.Message.Message == nil {
		b.answerCallback(ctx, cq.ID, "")
		return
	}
	chatID := strconv.FormatInt(cq.Message.Message.Chat.ID, 10)
	messageID := cq.Message.Message.ID
	data := cq.Data

	b.logger.Info().Str("chat_id", chatID).Str("data", data).Msg("callback query")

	switch {
	case data == "refresh_list":
		b.refreshList(ctx, cq.ID, chatID, messageID)
	case data == "clear_confirm":
		// The confirmation buttons were already attached by /clear.
		b.answerCallback(ctx, cq.ID, "")
	case data == "clear_confirmed":
		if _, err := b.st.ClearWatches(ctx, chatID); err != nil {
			b.logger.Error().Err(err).Str("chat_id", chatID).Msg("failed to clear watches")
			b.answerCallback(ctx, cq.ID, "❌ Something went wrong")
			return
		}
		b.answerCallback(ctx, cq.ID, "✅ All subscriptions removed")
		b.sendText(ctx, chatID, "✅ All subscriptions cancelled.")
	case data == "clear_cancel":
		b.answerCallback(ctx, cq.ID, "Cancelled")
		b.sendText(ctx, chatID, "❌ Action cancelled.")
	case strings.HasPrefix(data, "stop_"):
		b.stopFromCallback(ctx, cq.ID, chatID, strings.TrimPrefix(data, "stop_"))
	default:
		b.answerCallback(ctx, cq.ID, "❓ Unknown action")
	}
}

func (b *Bot) refreshList(ctx context.Context, callbackID, chatID string, messageID int) {
	coins := b.st.UserCoins(chatID)
	if len(coins) == 0 {
		b.answerCallback(ctx, callbackID, "No subscriptions")
		return
	}

	_, err := b.api.EditMessageText(ctx, &tgbot.EditMessageTextParams{
		ChatID:      chatID,
		MessageID:   messageID,
		Text:        b.renderList(ctx, coins),
		ReplyMarkup: listKeyboard(),
	})
	if err != nil {
		b.logger.Error().Err(err).Str("chat_id", chatID).Msg("failed to refresh list message")
		b.answerCallback(ctx, callbackID, "❌ Refresh failed")
		return
	}
	b.answerCallback(ctx, callbackID, "✅ Updated")
}

func (b *Bot) stopFromCallback(ctx context.Context, callbackID, chatID, coin string) {
	removed, err := b.st.RemoveWatch(ctx, chatID, coin)
	if err != nil {
		b.logger.Error().Err(err).Str("coin", coin).Msg("failed to remove watch")
		b.answerCallback(ctx, callbackID, "❌ Something went wrong")
		return
	}
	upper := strings.ToUpper(coin)
	if removed {
		b.answerCallback(ctx, callbackID, fmt.Sprintf("✅ %s removed", upper))
		b.sendText(ctx, chatID, fmt.Sprintf("✅ Unsubscribed from %s.", upper))
	} else {
		b.answerCallback(ctx, callbackID, fmt.Sprintf("❌ %s not found", upper))
	}
}

func (b *Bot) answerCallback(ctx context.Context, callbackID, text string) {
	params := &tgbot.AnswerCallbackQueryParams{CallbackQueryID: callbackID}
	if text != "" {
		params.Text = text
	}
	if _, err := b.api.AnswerCallbackQuery(ctx, params); err != nil {
		b.logger.Error().Err(err).Msg("failed to answer callback query")
	}
}
