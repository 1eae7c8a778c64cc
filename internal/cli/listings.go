package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"distress-detector/internal/app"
)

var (
	addOpts    app.AddOptions

	updateTitle       string
	updateDescription string
	updateLocation    string
	updatePrice       string

	importDryRun bool
	scoreOpts    app.ScoreOptions
)

var addCmd = &cobra.Command{
	Use:   "add",
	Short: "Score and store a single listing",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().AddListing(cmd.Context(), addOpts)
	},
}

var updateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Update a listing and recompute its distress score",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid listing id %q", args[0])
		}
		opts := app.UpdateOptions{ID: id}
		flags := cmd.Flags()
		if flags.Changed("title") {
			opts.Title = &updateTitle
		}
		if flags.Changed("description") {
			opts.Description = &updateDescription
		}
		if flags.Changed("location") {
			opts.Location = &updateLocation
		}
		if flags.Changed("price") {
			opts.Price = &updatePrice
		}
		return getApp().UpdateListing(cmd.Context(), opts)
	},
}

var importCmd = &cobra.Command{
	Use:   "import <file.csv>",
	Short: "Bulk import listings from CSV",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Import(cmd.Context(), app.ImportOptions{Path: args[0], DryRun: importDryRun})
	},
}

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Explain the distress score of a hypothetical listing",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Score(cmd.Context(), scoreOpts)
	},
}

func init() {
	addCmd.Flags().StringVar(&addOpts.Title, "title", "", "Listing title")
	addCmd.Flags().StringVar(&addOpts.Description, "description", "", "Free-text description")
	addCmd.Flags().StringVar(&addOpts.Location, "location", "", "Location (neighbourhood or town)")
	addCmd.Flags().StringVar(&addOpts.Price, "price", "", "Asking price, e.g. 1,250,000")
	addCmd.Flags().StringVar(&addOpts.Source, "source", "manual", "Provenance: manual, csv or api")
	_ = addCmd.MarkFlagRequired("title")
	_ = addCmd.MarkFlagRequired("location")
	_ = addCmd.MarkFlagRequired("price")

	updateCmd.Flags().StringVar(&updateTitle, "title", "", "New title")
	updateCmd.Flags().StringVar(&updateDescription, "description", "", "New description")
	updateCmd.Flags().StringVar(&updateLocation, "location", "", "New location")
	updateCmd.Flags().StringVar(&updatePrice, "price", "", "New asking price")

	importCmd.Flags().BoolVar(&importDryRun, "dry-run", false, "Validate rows without writing to storage")

	scoreCmd.Flags().StringVar(&scoreOpts.Description, "description", "", "Free-text description")
	scoreCmd.Flags().StringVar(&scoreOpts.Location, "location", "", "Location used for the market average")
	scoreCmd.Flags().StringVar(&scoreOpts.Price, "price", "", "Asking price")
	scoreCmd.Flags().StringVar(&scoreOpts.MarketAverage, "market-average", "", "Override the market average instead of querying storage")
	_ = scoreCmd.MarkFlagRequired("price")
}
