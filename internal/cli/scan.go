package cli

import (
	"github.com/spf13/cobra"

	"github.com/amorokk/bee/internal/app"
)

var (
	scanPercent  string
	scanLimit    int
	scanJSONPath string
)

var scanCmd = &cobra.Command{
	Use:   "scan [percent]",
	Short: "Sweep the lending market for assets above an APR threshold",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		percent := scanPercent
		if len(args) == 1 {
			percent = args[0]
		}

		opts := app.ScanOptions{
			Percent:  percent,
			Limit:    scanLimit,
			JSONPath: scanJSONPath,
		}

		return getApp().Scan(cmd.Context(), opts)
	},
}

func init() {
	scanCmd.Flags().StringVar(&scanPercent, "percent", "5", "APR threshold in percent")
	scanCmd.Flags().IntVar(&scanLimit, "limit", 0, "Maximum number of assets to print (0 means all)")
	scanCmd.Flags().StringVar(&scanJSONPath, "json", "", "Path to save full results as JSON")
}
