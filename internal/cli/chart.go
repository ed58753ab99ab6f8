package cli

import (
	"github.com/spf13/cobra"

	"gold-price-alerts/internal/app"
)

var (
	chartView string
	chartOut  string
)

var chartCmd = &cobra.Command{
	Use:   "chart",
	Short: "Render the daily or weekly price history as a PNG",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.ChartOptions{
			View:    chartView,
			OutPath: chartOut,
		}
		return getApp().Chart(cmd.Context(), opts)
	},
}

func init() {
	chartCmd.Flags().StringVar(&chartView, "view", app.ViewDaily, "View to render: daily or weekly")
	chartCmd.Flags().StringVar(&chartOut, "out", "", "Path to write the PNG chart")
}
