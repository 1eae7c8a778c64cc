package app

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"

	"distress-detector/internal/storage"
)

// maxChartBars caps the PNG to the highest-scoring listings.
const maxChartBars = 30

// ExportOptions hold parameters for exporting listings.
type ExportOptions struct {
	CSVPath  string
	PNGPath  string
	Location string
	MinScore *float64
	MaxRows  int
}

// Export writes listings, highest score first, as CSV and/or a PNG chart.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}

	opts.MaxRows = a.Config.ResolveMaxRows(opts.MaxRows)

	store, closeStore, err := a.requireStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	listings, err := store.ListListings(ctx, storage.ListingFilter{
		Location: opts.Location,
		MinScore: opts.MinScore,
		Limit:    opts.MaxRows,
		ByScore:  true,
	})
	if err != nil {
		return err
	}
	if len(listings) == 0 {
		a.Logger.Info().Msg("no listings matched export filter")
		return nil
	}
	a.Logger.Info().Int("exported", len(listings)).Msg("exporting listings")

	if opts.CSVPath != "" {
		if err := writeListingsCSV(opts.CSVPath, listings); err != nil {
			return err
		}
	}

	if opts.PNGPath != "" {
		if err := writeScoresPNG(opts.PNGPath, listings, a.Config.Alerting.Threshold); err != nil {
			return err
		}
	}

	return nil
}

func writeListingsCSV(path string, listings []storage.Listing) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)

	header := []string{"id", "title", "description", "location", "price", "distress_score", "source", "created_at", "updated_at"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, l := range listings {
		record := []string{
			strconv.FormatInt(l.ID, 10),
			l.Title,
			l.Description,
			l.Location,
			l.Price.StringFixed(2),
			strconv.FormatFloat(l.DistressScore, 'f', 2, 64),
			l.Source,
			l.CreatedAt.UTC().Format(time.RFC3339),
			l.UpdatedAt.UTC().Format(time.RFC3339),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

// writeScoresPNG renders a bar per listing; listings must already be
// ordered by score.
func writeScoresPNG(path string, listings []storage.Listing, threshold float64) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	if len(listings) > maxChartBars {
		listings = listings[:maxChartBars]
	}

	alertStyle := chart.Style{FillColor: chart.ColorRed, StrokeColor: chart.ColorRed}
	bars := make([]chart.Value, 0, len(listings))
	for _, l := range listings {
		bar := chart.Value{
			Label: fmt.Sprintf("#%d", l.ID),
			Value: l.DistressScore,
		}
		if l.DistressScore >= threshold {
			bar.Style = alertStyle
		}
		bars = append(bars, bar)
	}

	graph := chart.BarChart{
		Title:    fmt.Sprintf("Distress scores (alert threshold %.2f)", threshold),
		Width:    1280,
		Height:   720,
		BarWidth: 30,
		Background: chart.Style{
			Padding: chart.Box{Top: 40},
		},
		YAxis: chart.YAxis{
			Name: "Score",
			ValueFormatter: func(v interface{}) string {
				return chart.FloatValueFormatterWithFormat(v, "%.1f")
			},
		},
		Bars: bars,
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
