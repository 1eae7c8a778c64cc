package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"distress-detector/internal/app"
)

var (
	showLimit      int
	showLocation   string
	showMinScore   float64
	showByScore    bool
	showDeliveries bool
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Display stored listings or recent alert deliveries",
	RunE: func(cmd *cobra.Command, args []string) error {
		if showLimit <= 0 {
			return fmt.Errorf("--limit must be greater than zero")
		}

		opts := app.ShowOptions{
			Limit:      showLimit,
			Location:   showLocation,
			ByScore:    showByScore,
			Deliveries: showDeliveries,
		}
		if cmd.Flags().Changed("min-score") {
			opts.MinScore = &showMinScore
		}

		return getApp().Show(cmd.Context(), opts)
	},
}

func init() {
	showCmd.Flags().IntVar(&showLimit, "limit", 20, "Number of rows to display")
	showCmd.Flags().StringVar(&showLocation, "location", "", "Only listings at this location (case-insensitive)")
	showCmd.Flags().Float64Var(&showMinScore, "min-score", 0, "Only listings scoring at least this much")
	showCmd.Flags().BoolVar(&showByScore, "by-score", false, "Order by distress score instead of recency")
	showCmd.Flags().BoolVar(&showDeliveries, "deliveries", false, "Show recent alert deliveries instead of listings")
}
