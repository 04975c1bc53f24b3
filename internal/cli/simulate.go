package cli

import (
	"errors"

	"github.com/spf13/cobra"
)

var (
	simulateChatID   string
	simulateCoin     string
	simulateStatuses []int
	simulateAPR      float64
)

var simulateCmd = &cobra.Command{
	Use:   "simulate-alert",
	Short: "模拟一次资产状态变化并推送订阅通知",
	RunE: func(cmd *cobra.Command, args []string) error {
		if simulateChatID == "" || simulateCoin == "" {
			return errors.New("--chat 与 --coin 不能为空")
		}

		return getApp().SimulateAlert(cmd.Context(), simulateChatID, simulateCoin, simulateStatuses, simulateAPR)
	},
}

func init() {
	simulateCmd.Flags().StringVar(&simulateChatID, "chat", "", "接收通知的 Telegram chat id")
	simulateCmd.Flags().StringVar(&simulateCoin, "coin", "", "资产代码")
	simulateCmd.Flags().IntSliceVar(&simulateStatuses, "statuses", []int{1}, "固定期销售状态列表")
	simulateCmd.Flags().Float64Var(&simulateAPR, "apr", 0, "年化利率(百分比)")
}
