package scoring

import "github.com/shopspring/decimal"

var (
	tierLow  = decimal.RequireFromString("0.1")
	tierMid  = decimal.RequireFromString("0.2")
	tierHigh = decimal.RequireFromString("0.3")
)

// Deviation returns the relative discount (avg - price) / avg. ok is false
// when no usable baseline exists (avg <= 0).
func Deviation(price, marketAverage decimal.Decimal) (decimal.Decimal, bool) {
	if !marketAverage.IsPositive() {
		return decimal.Zero, false
	}
	return marketAverage.Sub(price).Div(marketAverage), true
}

// ScorePriceDeviation buckets the discount against the market average into
// a step tier: 0, 1, 2, 4 or 5.
func (e *Engine) ScorePriceDeviation(price, marketAverage decimal.Decimal) float64 {
	deviation, ok := Deviation(price, marketAverage)
	if !ok {
		return 0
	}
	return deviationTier(deviation)
}

func deviationTier(d decimal.Decimal) float64 {
	switch {
	case d.GreaterThanOrEqual(tierHigh):
		return 5
	case d.GreaterThanOrEqual(tierMid):
		return 4
	case d.GreaterThanOrEqual(tierLow):
		return 2
	case d.IsPositive():
		return 1
	default:
		return 0
	}
}
