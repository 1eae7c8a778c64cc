package market

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// AverageProvider returns the mean listed price of all known listings whose
// location equals location case-insensitively. Zero means no baseline.
type AverageProvider interface {
	MarketAverage(ctx context.Context, location string) (decimal.Decimal, error)
}

// Invalidator is implemented by providers that memoise averages.
type Invalidator interface {
	Invalidate(ctx context.Context, location string)
}

// AveragePricer is the storage query backing StoreProvider. ok is false when
// the aggregate is null (no comparable listings).
type AveragePricer interface {
	AveragePrice(ctx context.Context, location string) (avg decimal.Decimal, ok bool, err error)
}

// StoreProvider reads averages straight from storage.
type StoreProvider struct {
	pricer AveragePricer
}

// NewStoreProvider wraps a storage query.
func NewStoreProvider(pricer AveragePricer) *StoreProvider {
	return &StoreProvider{pricer: pricer}
}

// MarketAverage implements AverageProvider.
func (p *StoreProvider) MarketAverage(ctx context.Context, location string) (decimal.Decimal, error) {
	avg, ok, err := p.pricer.AveragePrice(ctx, location)
	if err != nil {
		return decimal.Zero, fmt.Errorf("query market average: %w", err)
	}
	if !ok {
		return decimal.Zero, nil
	}
	return avg, nil
}

var _ AverageProvider = (*StoreProvider)(nil)
