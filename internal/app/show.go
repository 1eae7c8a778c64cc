package app

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"distress-detector/internal/storage"
)

// ShowOptions configure the show command.
type ShowOptions struct {
	Limit      int
	Location   string
	MinScore   *float64
	ByScore    bool
	Deliveries bool
}

// Show prints stored listings, or recent alert deliveries.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	store, closeStore, err := a.requireStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	if opts.Deliveries {
		records, err := store.ListRecentDeliveries(ctx, opts.Limit)
		if err != nil {
			return err
		}
		return a.writeDeliveries(records)
	}

	listings, err := store.ListListings(ctx, storage.ListingFilter{
		Location: opts.Location,
		MinScore: opts.MinScore,
		Limit:    opts.Limit,
		ByScore:  opts.ByScore,
	})
	if err != nil {
		return err
	}
	return a.writeListings(listings)
}

func (a *App) writeListings(listings []storage.Listing) error {
	if len(listings) == 0 {
		fmt.Fprintln(a.Out, "no listings found")
		return nil
	}

	writer := tabwriter.NewWriter(a.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "ID\tTitle\tLocation\tPrice\tScore\tSource\tCreated (UTC)")
	for _, l := range listings {
		fmt.Fprintf(
			writer,
			"%d\t%s\t%s\t%s\t%.2f\t%s\t%s\n",
			l.ID,
			sanitizeInline(l.Title),
			sanitizeInline(l.Location),
			l.Price.StringFixed(2),
			l.DistressScore,
			l.Source,
			l.CreatedAt.UTC().Format(time.RFC3339),
		)
	}
	return writer.Flush()
}

func (a *App) writeDeliveries(records []storage.DeliveryRecord) error {
	if len(records) == 0 {
		fmt.Fprintln(a.Out, "no deliveries found")
		return nil
	}

	writer := tabwriter.NewWriter(a.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Time (UTC)\tEvent\tListing\tUser\tChannel\tSent\tError")
	for _, rec := range records {
		errMsg := ""
		if rec.Error != nil {
			errMsg = sanitizeInline(*rec.Error)
		}
		fmt.Fprintf(
			writer,
			"%s\t%s\t%d\t%s\t%s\t%t\t%s\n",
			rec.CreatedAt.UTC().Format(time.RFC3339),
			rec.EventID.String()[:8],
			rec.ListingID,
			rec.UserID,
			rec.Channel,
			rec.Sent,
			errMsg,
		)
	}
	return writer.Flush()
}

func sanitizeInline(v string) string {
	cleaned := strings.ReplaceAll(v, "\n", " ")
	cleaned = strings.ReplaceAll(cleaned, "\r", " ")
	cleaned = strings.ReplaceAll(cleaned, "\t", " ")
	return cleaned
}
