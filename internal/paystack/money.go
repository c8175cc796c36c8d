package paystack

import (
	"errors"
	"math"

	"github.com/shopspring/decimal"
)

// ErrSubunitPrecision is returned when an amount has more precision than the
// minor unit can hold, e.g. 10.005 NGN.
var ErrSubunitPrecision = errors.New("amount has more than two decimal places")

// ErrAmountRange is returned when an amount does not fit in minor units.
var ErrAmountRange = errors.New("amount out of range")

var maxMinor = decimal.NewFromInt(math.MaxInt64)

// ToKobo converts a two-decimal currency amount into minor units. It refuses
// amounts that would need rounding instead of truncating them.
func ToKobo(amount decimal.Decimal) (int64, error) {
	minor := amount.Shift(2)
	if !minor.Equal(minor.Truncate(0)) {
		return 0, ErrSubunitPrecision
	}
	if minor.Abs().GreaterThan(maxMinor) {
		return 0, ErrAmountRange
	}
	return minor.IntPart(), nil
}

// FromKobo converts minor units back to a two-decimal currency amount.
func FromKobo(minor int64) decimal.Decimal {
	return decimal.New(minor, -2)
}
