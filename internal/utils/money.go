package utils

import (
	"errors" // Sentinel errors
	"math"   // int64 bounds

	"github.com/shopspring/decimal" // Exact decimal arithmetic
)

// ErrAmountPrecision is returned for amounts with more than two fractional digits
var ErrAmountPrecision = errors.New("amount has more than two decimal places")

// ErrAmountRange is returned for amounts that do not fit in int64 minor units
var ErrAmountRange = errors.New("amount out of range")

var (
	hundred  = decimal.NewFromInt(100)
	maxMinor = decimal.NewFromInt(math.MaxInt64)
	minMinor = decimal.NewFromInt(math.MinInt64)
)

// ToMinor converts a major-unit amount (naira) to minor units (kobo)
func ToMinor(amount decimal.Decimal) (int64, error) {
	minor := amount.Mul(hundred)
	if !minor.Equal(minor.Truncate(0)) {
		return 0, ErrAmountPrecision
	}
	// IntPart wraps silently outside the int64 range
	if minor.GreaterThan(maxMinor) || minor.LessThan(minMinor) {
		return 0, ErrAmountRange
	}
	return minor.IntPart(), nil
}

// FormatMinor renders minor units as a two-decimal major-unit string
func FormatMinor(minor int64) string {
	return decimal.New(minor, -2).StringFixed(2)
}
