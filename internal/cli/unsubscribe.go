package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	unsubscribeID string
)

var unsubscribeCmd = &cobra.Command{
	Use:   "unsubscribe",
	Short: "Clear a subscriber's price alert",
	RunE: func(cmd *cobra.Command, args []string) error {
		if unsubscribeID == "" {
			return fmt.Errorf("--id must be provided")
		}
		return getApp().Unsubscribe(cmd.Context(), unsubscribeID)
	},
}

func init() {
	unsubscribeCmd.Flags().StringVar(&unsubscribeID, "id", "", "Subscriber identifier")
}
