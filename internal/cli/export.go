package cli

import (
	"github.com/spf13/cobra"

	"distress-detector/internal/app"
)

var (
	exportPNGPath  string
	exportCSVPath  string
	exportLocation string
	exportMinScore float64
	exportMaxRows  int
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export listings as CSV and/or a PNG score chart",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.ExportOptions{
			PNGPath:  exportPNGPath,
			CSVPath:  exportCSVPath,
			Location: exportLocation,
			MaxRows:  exportMaxRows,
		}
		if cmd.Flags().Changed("min-score") {
			opts.MinScore = &exportMinScore
		}

		return getApp().Export(cmd.Context(), opts)
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportPNGPath, "png", "", "Path to write PNG chart")
	exportCmd.Flags().StringVar(&exportCSVPath, "csv", "", "Path to write CSV data")
	exportCmd.Flags().StringVar(&exportLocation, "location", "", "Only listings at this location")
	exportCmd.Flags().Float64Var(&exportMinScore, "min-score", 0, "Only listings scoring at least this much")
	exportCmd.Flags().IntVar(&exportMaxRows, "max-rows", 0, "Maximum rows to export (defaults to config)")
}
