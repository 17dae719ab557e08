package domain

import (
	"github.com/shopspring/decimal"
)

// SplitPayout splits an agreed contract amount into the helper's share and
// the platform fee.
//
// Logic:
//  1. fee = round(agreed * feePercent / 100) to currency minor units
//  2. helper = agreed - fee (the exact remainder, so no cent is lost)
//
// Fee rounding takes precedence: the helper amount is whatever remains after
// the rounded fee, and can never be negative.
func SplitPayout(agreed, feePercent decimal.Decimal) (helper, fee decimal.Decimal, err error) {
	if agreed.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, decimal.Zero, NewValidationError("amount", "must be positive")
	}
	if feePercent.IsNegative() || feePercent.GreaterThan(decimal.NewFromInt(100)) {
		return decimal.Zero, decimal.Zero, NewValidationError("fee_percent", "must be between 0 and 100")
	}

	fee = agreed.Mul(feePercent).Div(decimal.NewFromInt(100)).Round(2)
	if fee.GreaterThan(agreed) {
		// Rounding can only overshoot by a fraction of a cent; clamp so the
		// helper amount stays non-negative.
		fee = agreed
	}
	helper = agreed.Sub(fee)

	// Safety check: the split must reassemble to the agreed amount exactly.
	if !helper.Add(fee).Equal(agreed) {
		return decimal.Zero, decimal.Zero, ErrConflict
	}

	return helper, fee, nil
}
