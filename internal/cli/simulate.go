package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"distress-detector/internal/app"
)

var (
	simulateOpts  app.SimulateOptions
	simulateScore float64
)

var simulateCmd = &cobra.Command{
	Use:   "simulate-alert",
	Short: "模拟一条房源并走一次告警流程",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := simulateOpts
		if cmd.Flags().Changed("score") {
			opts.Score = &simulateScore
		}

		report, err := getApp().SimulateAlert(cmd.Context(), opts)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "triggered=%t subscribers=%d emails=%d sms=%d failures=%d skipped=%d\n",
			report.Triggered, report.Subscribers, report.EmailsSent, report.SMSSent, report.Failures, report.Skipped)
		return nil
	},
}

func init() {
	simulateCmd.Flags().StringVar(&simulateOpts.Title, "title", "Simulated listing", "Listing title")
	simulateCmd.Flags().StringVar(&simulateOpts.Description, "description", "", "Description to score")
	simulateCmd.Flags().StringVar(&simulateOpts.Location, "location", "", "Location")
	simulateCmd.Flags().StringVar(&simulateOpts.Price, "price", "", "Asking price")
	simulateCmd.Flags().Float64Var(&simulateScore, "score", 0, "直接指定分数，跳过评分")
	simulateCmd.Flags().StringVar(&simulateOpts.Email, "email", "", "Send only to this email address")
	simulateCmd.Flags().StringVar(&simulateOpts.Phone, "phone", "", "Send only to this phone number")
}
