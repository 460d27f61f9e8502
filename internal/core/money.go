// Package core provides the pure domain logic of the ledger engine:
// monetary arithmetic, amortization schedules, debt accrual and
// reconciliation, and budget aggregation. Nothing in this package
// touches storage or the network.
package core

import (
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// RoundCents quantizes a monetary amount to 2 decimal places using
// half-up rounding. All persisted monetary fields go through this
// function so repeated recomputation never drifts at the cent level.
func RoundCents(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// ParseAmount parses a positive monetary amount from a string.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators.
// Returns an error for invalid formats or non-positive values.
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	// Normalize decimal comma to dot
	s = strings.ReplaceAll(s, ",", ".")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	if !d.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

// ValidCurrency reports whether code is a known ISO-4217 currency code.
func ValidCurrency(code string) bool {
	return money.GetCurrency(strings.ToUpper(code)) != nil
}
