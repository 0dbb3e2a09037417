// Package money converts monetary input to fixed-point decimals at the
// system edge. Amounts travel as strings in JSON and as decimal.Decimal
// internally; binary floats are never used for money.
package money

import (
	"strings"

	"github.com/shopspring/decimal"

	"wallet-ledger/pkg/apperror"
)

// MaxAmount mirrors the NUMERIC(10,2) storage column: 8 integer digits.
var MaxAmount = decimal.RequireFromString("99999999.99")

// Parse converts a decimal string into an operation amount.
// The amount must be strictly positive, carry at most 2 fractional digits
// (no rounding is applied) and fit the storage precision.
func Parse(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, apperror.ErrInvalidAmount("must not be empty")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, apperror.ErrInvalidAmount("not a decimal number")
	}
	if err := ValidateAmount(d); err != nil {
		return decimal.Zero, err
	}
	return d, nil
}

// ValidateAmount checks an already-parsed operation amount.
func ValidateAmount(d decimal.Decimal) error {
	if !d.IsPositive() {
		return apperror.ErrInvalidAmount("must be positive")
	}
	if d.Exponent() < -2 {
		return apperror.ErrInvalidAmount("at most 2 fractional digits")
	}
	if d.GreaterThan(MaxAmount) {
		return apperror.ErrInvalidAmount("exceeds maximum")
	}
	return nil
}

// Format renders a monetary value with exactly 2 fractional digits.
func Format(d decimal.Decimal) string {
	return d.StringFixed(2)
}
