package money

import (
	"errors"

	"github.com/shopspring/decimal"
)

var ErrInvalidAmount = errors.New("invalid_amount")

var centsFactor = decimal.NewFromInt(100)

// ParseCents converts a currency-scale decimal string ("5000" or "5000.50")
// into minor units. Values with more than two decimal places are rejected.
func ParseCents(value string) (int64, error) {
	dec, err := decimal.NewFromString(value)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	if dec.Exponent() < -2 {
		return 0, ErrInvalidAmount
	}
	return dec.Mul(centsFactor).IntPart(), nil
}

// FormatCents renders minor units as a two-decimal string.
func FormatCents(cents int64) string {
	return decimal.NewFromInt(cents).Div(centsFactor).StringFixed(2)
}

// AverageCents returns the mean of a total over count rows, rounded to the
// nearest cent. Decimal division avoids float drift on large totals.
func AverageCents(totalCents int64, count int64) int64 {
	if count <= 0 {
		return 0
	}
	return decimal.NewFromInt(totalCents).
		DivRound(decimal.NewFromInt(count), 0).
		IntPart()
}
