package scoring

import (
	"github.com/shopspring/decimal"
)

// Engine computes distress scores over a fixed lexicon. It holds no mutable
// state and is safe for concurrent use.
type Engine struct {
	lexicon Lexicon
}

// Breakdown explains how a score was assembled.
type Breakdown struct {
	Keywords      []Match
	KeywordScore  float64
	Deviation     decimal.Decimal
	HasBaseline   bool
	PriceScore    float64
	MarketAverage decimal.Decimal
	Total         float64
}

// New constructs an Engine over lexicon.
func New(lexicon Lexicon) *Engine {
	return &Engine{lexicon: lexicon}
}

// Lexicon returns the engine's lexicon.
func (e *Engine) Lexicon() Lexicon {
	return e.lexicon
}

// Calculate returns round(keywords + price deviation, 2).
func (e *Engine) Calculate(price decimal.Decimal, description string, marketAverage decimal.Decimal) float64 {
	return roundScore(e.ScoreKeywords(description) + e.ScorePriceDeviation(price, marketAverage))
}

// Explain computes the same score as Calculate and reports each component.
func (e *Engine) Explain(price decimal.Decimal, description string, marketAverage decimal.Decimal) Breakdown {
	matches := e.MatchedKeywords(description)
	kw := 0.0
	for _, m := range matches {
		kw += m.Weight
	}
	deviation, ok := Deviation(price, marketAverage)
	priceScore := 0.0
	if ok {
		priceScore = deviationTier(deviation)
	}
	return Breakdown{
		Keywords:      matches,
		KeywordScore:  kw,
		Deviation:     deviation,
		HasBaseline:   ok,
		PriceScore:    priceScore,
		MarketAverage: marketAverage,
		Total:         roundScore(kw + priceScore),
	}
}

func roundScore(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

var defaultEngine = New(DefaultLexicon())

// Default returns the process-wide engine over the default lexicon.
func Default() *Engine {
	return defaultEngine
}

// ScoreKeywords scores description with the default lexicon.
func ScoreKeywords(description string) float64 {
	return defaultEngine.ScoreKeywords(description)
}

// ScorePriceDeviation scores price against marketAverage.
func ScorePriceDeviation(price, marketAverage decimal.Decimal) float64 {
	return defaultEngine.ScorePriceDeviation(price, marketAverage)
}

// Calculate computes the distress score with the default lexicon.
func Calculate(price decimal.Decimal, description string, marketAverage decimal.Decimal) float64 {
	return defaultEngine.Calculate(price, description, marketAverage)
}
