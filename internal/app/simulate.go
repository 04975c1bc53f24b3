package app

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/amorokk/bee/internal/token"
)

// SimulateAlert 通过给定的资产状态模拟一次订阅通知。
func (a *App) SimulateAlert(ctx context.Context, chatID, coin string, statuses []int, apr float64) error {
	if a.Config.Telegram.BotToken == "" {
		return errors.New("telegram.bot_token 未配置")
	}
	if chatID == "" {
		return errors.New("chat id 不能为空")
	}

	status := token.Status{
		Coin:       strings.ToUpper(strings.TrimSpace(coin)),
		FixedList:  statuses,
		ObservedAt: time.Now().UTC(),
	}
	if apr > 0 {
		// 入参是百分比,内部统一存储小数利率。
		value := decimal.NewFromFloat(apr).Div(decimal.NewFromInt(100))
		status.APR = &value
	}

	notifier := a.newNotifier()
	return notifier.Send(ctx, chatID, "🔔 "+status.Format())
}
