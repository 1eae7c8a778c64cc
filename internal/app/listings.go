package app

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/shopspring/decimal"

	"distress-detector/internal/importer"
	"distress-detector/internal/scoring"
	"distress-detector/internal/service"
	"distress-detector/internal/storage"
)

// AddOptions describe a listing entered from the command line.
type AddOptions struct {
	Title       string
	Description string
	Location    string
	Price       string
	Source      string
}

// UpdateOptions carry the flags that were explicitly set.
type UpdateOptions struct {
	ID          int64
	Title       *string
	Description *string
	Location    *string
	Price       *string
}

// ImportOptions configure a CSV import.
type ImportOptions struct {
	Path   string
	DryRun bool
}

// ScoreOptions describe an ad-hoc scoring request.
type ScoreOptions struct {
	Description string
	Location    string
	Price       string
	// MarketAverage overrides the stored average when non-empty.
	MarketAverage string
}

// AddListing scores and stores a single listing.
func (a *App) AddListing(ctx context.Context, opts AddOptions) error {
	price, err := scoring.ParseAmount(opts.Price)
	if err != nil {
		return err
	}

	store, closeStore, err := a.requireStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	svc, closeService, err := a.newService(store, nil)
	if err != nil {
		return err
	}
	defer closeService()

	listing, err := svc.Create(ctx, service.ListingInput{
		Title:       opts.Title,
		Description: opts.Description,
		Location:    opts.Location,
		Price:       price,
		Source:      opts.Source,
	})
	if err != nil {
		return err
	}
	a.printListing(listing)
	return nil
}

// UpdateListing patches a listing and recomputes its score.
func (a *App) UpdateListing(ctx context.Context, opts UpdateOptions) error {
	patch := service.ListingPatch{
		Title:       opts.Title,
		Description: opts.Description,
		Location:    opts.Location,
	}
	if opts.Price != nil {
		price, err := scoring.ParseAmount(*opts.Price)
		if err != nil {
			return err
		}
		patch.Price = &price
	}

	store, closeStore, err := a.requireStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	svc, closeService, err := a.newService(store, nil)
	if err != nil {
		return err
	}
	defer closeService()

	listing, err := svc.Update(ctx, opts.ID, patch)
	if err != nil {
		return err
	}
	a.printListing(listing)
	return nil
}

// Import loads a CSV file through the scoring path.
func (a *App) Import(ctx context.Context, opts ImportOptions) error {
	file, err := os.Open(opts.Path)
	if err != nil {
		return fmt.Errorf("open csv: %w", err)
	}
	defer file.Close()

	store, closeStore, err := a.requireStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	svc, closeService, err := a.newService(store, nil)
	if err != nil {
		return err
	}
	defer closeService()

	im := importer.New(importer.Options{
		ProgressEvery: a.Config.Import.ProgressEvery,
		DryRun:        opts.DryRun,
	}, svc, store, a.Logger)

	result, err := im.Import(ctx, file)
	if err != nil {
		return err
	}

	for _, row := range result.Rows {
		if row.Reason != "" {
			fmt.Fprintf(a.Out, "row %d skipped (%s): %s\n", row.Row, row.Reason, row.Detail)
		}
	}
	fmt.Fprintf(a.Out, "Import complete: %d added, %d duplicates, %d skipped, out of %d rows.\n",
		result.Imported, result.Duplicates, result.Skipped, result.Total)
	return nil
}

// Score prints the breakdown of a hypothetical listing without storing it.
// The market average comes from the database when one is configured.
func (a *App) Score(ctx context.Context, opts ScoreOptions) error {
	price, err := scoring.ParseAmount(opts.Price)
	if err != nil {
		return err
	}
	engine, err := a.newEngine()
	if err != nil {
		return err
	}

	var breakdown scoring.Breakdown
	switch {
	case opts.MarketAverage != "":
		avg, err := scoring.ParseAmount(opts.MarketAverage)
		if err != nil {
			return err
		}
		breakdown = engine.Explain(price, opts.Description, avg)
	default:
		store, closeStore, err := a.openStore(ctx)
		if err != nil {
			return err
		}
		if store == nil {
			breakdown = engine.Explain(price, opts.Description, decimal.Zero)
			break
		}
		defer closeStore()

		averages, closeAverages, err := a.newAverages(store)
		if err != nil {
			return err
		}
		defer closeAverages()

		svc := service.New(service.Options{}, engine, store, averages, nil, nil, a.Logger)
		breakdown, err = svc.Explain(ctx, price, opts.Description, opts.Location)
		if err != nil {
			return err
		}
	}

	a.writeBreakdown(breakdown, a.Config.Alerting.Threshold)
	return nil
}

func (a *App) writeBreakdown(b scoring.Breakdown, threshold float64) {
	phrases := make([]string, 0, len(b.Keywords))
	for _, m := range b.Keywords {
		phrases = append(phrases, fmt.Sprintf("%s(+%g)", m.Phrase, m.Weight))
	}
	matched := "-"
	if len(phrases) > 0 {
		matched = strings.Join(phrases, ", ")
	}

	fmt.Fprintf(a.Out, "keywords:        %s = %.2f\n", matched, b.KeywordScore)
	if b.HasBaseline {
		fmt.Fprintf(a.Out, "market average:  %s\n", b.MarketAverage.StringFixed(2))
		fmt.Fprintf(a.Out, "deviation:       %s%% = %.2f\n", b.Deviation.Mul(decimal.NewFromInt(100)).StringFixed(1), b.PriceScore)
	} else {
		fmt.Fprintln(a.Out, "market average:  none (price component 0)")
	}
	fmt.Fprintf(a.Out, "distress score:  %.2f\n", b.Total)
	if b.Total >= threshold {
		fmt.Fprintf(a.Out, "alert:           yes (threshold %.2f)\n", threshold)
	} else {
		fmt.Fprintf(a.Out, "alert:           no (threshold %.2f)\n", threshold)
	}
}

func (a *App) printListing(l storage.Listing) {
	fmt.Fprintf(a.Out, "#%d %s @ %s price=%s score=%.2f source=%s\n",
		l.ID, l.Title, l.Location, l.Price.StringFixed(2), l.DistressScore, l.Source)
}
