package cli

import (
	"github.com/spf13/cobra"
)

var infoCmd = &cobra.Command{
	Use:   "info <coin>",
	Short: "Look up the current lending status of a single asset",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Info(cmd.Context(), args[0])
	},
}
