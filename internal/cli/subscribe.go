package cli

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

var (
	subscribeID        string
	subscribeThreshold string
)

var subscribeCmd = &cobra.Command{
	Use:   "subscribe",
	Short: "Set a subscriber's price alert threshold",
	RunE: func(cmd *cobra.Command, args []string) error {
		if subscribeID == "" {
			return fmt.Errorf("--id must be provided")
		}
		threshold, err := decimal.NewFromString(subscribeThreshold)
		if err != nil {
			return fmt.Errorf("invalid --threshold value: %w", err)
		}
		return getApp().Subscribe(cmd.Context(), subscribeID, threshold)
	},
}

func init() {
	subscribeCmd.Flags().StringVar(&subscribeID, "id", "", "Subscriber identifier")
	subscribeCmd.Flags().StringVar(&subscribeThreshold, "threshold", "", "Price threshold to alert on, in the configured currency")
}
