package scoring

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrInvalidNumber is wrapped by every InvalidNumberError.
var ErrInvalidNumber = errors.New("invalid numeric value")

// InvalidNumberError reports a value that could not be used as a price or
// market average.
type InvalidNumberError struct {
	Raw    string
	Reason string
}

func (e *InvalidNumberError) Error() string {
	return fmt.Sprintf("invalid numeric value %q: %s", e.Raw, e.Reason)
}

func (e *InvalidNumberError) Unwrap() error {
	return ErrInvalidNumber
}

// Stored prices are NUMERIC(12,2).
const amountPlaces = 2

// MaxAmount is the first value that no longer fits a stored price.
var MaxAmount = decimal.New(1, 10)

// CheckAmount reports whether v can be stored as a price without rounding.
func CheckAmount(v decimal.Decimal) error {
	return checkAmount(v, v.String())
}

func checkAmount(v decimal.Decimal, raw string) error {
	switch {
	case v.IsNegative():
		return &InvalidNumberError{Raw: raw, Reason: "negative"}
	case v.GreaterThanOrEqual(MaxAmount):
		return &InvalidNumberError{Raw: raw, Reason: "exceeds 9999999999.99"}
	case !v.Equal(v.Truncate(amountPlaces)):
		return &InvalidNumberError{Raw: raw, Reason: "more than 2 decimal places"}
	}
	return nil
}

// ParseAmount parses a non-negative decimal amount with at most two decimal
// places. Thousands separators and surrounding whitespace are tolerated.
func ParseAmount(raw string) (decimal.Decimal, error) {
	cleaned := strings.ReplaceAll(strings.TrimSpace(raw), ",", "")
	if cleaned == "" {
		return decimal.Decimal{}, &InvalidNumberError{Raw: raw, Reason: "empty"}
	}
	value, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Decimal{}, &InvalidNumberError{Raw: raw, Reason: "not a number"}
	}
	if err := checkAmount(value, raw); err != nil {
		return decimal.Decimal{}, err
	}
	return value, nil
}
