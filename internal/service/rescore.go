package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"distress-detector/internal/storage"
)

var listingFilterAll = storage.ListingFilter{}

// RescoreResult summarises one sweep.
type RescoreResult struct {
	Scanned int
	Updated int
	Alerted int
	Failed  int
}

// Rescore recomputes every stored score against current market averages.
// Listings whose score rises from below the threshold to at or above it are
// announced; listings already above it are not re-announced.
func (s *Service) Rescore(ctx context.Context) (RescoreResult, error) {
	var result RescoreResult

	listings, err := s.store.ListListings(ctx, listingFilterAll)
	if err != nil {
		return result, fmt.Errorf("list listings: %w", err)
	}

	averages := make(map[string]decimal.Decimal)
	for _, listing := range listings {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		result.Scanned++

		key := strings.ToLower(listing.Location)
		avg, ok := averages[key]
		if !ok {
			avg, err = s.marketAverage(ctx, listing.Location)
			if err != nil {
				s.logger.Error().Err(err).Int64("listing_id", listing.ID).Msg("rescore: market average unavailable")
				result.Failed++
				continue
			}
			averages[key] = avg
		}

		score := s.engine.Calculate(listing.Price, listing.Description, avg)
		if score == listing.DistressScore {
			continue
		}
		if err := s.store.UpdateScore(ctx, listing.ID, score); err != nil {
			s.logger.Error().Err(err).Int64("listing_id", listing.ID).Msg("rescore: failed to store score")
			result.Failed++
			continue
		}
		result.Updated++

		previous := listing.DistressScore
		listing.DistressScore = score
		if previous < s.opts.Threshold && score >= s.opts.Threshold {
			if report := s.notify(ctx, listing); report.Triggered {
				result.Alerted++
			}
		}
	}

	s.logger.Info().
		Int("scanned", result.Scanned).
		Int("updated", result.Updated).
		Int("alerted", result.Alerted).
		Int("failed", result.Failed).
		Msg("rescore sweep complete")
	return result, nil
}
