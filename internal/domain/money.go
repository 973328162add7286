package domain

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ParseAmount parses a stored decimal money string. Amounts are carried as
// strings end to end so no float rounding can creep into pricing.
func ParseAmount(value string) (decimal.Decimal, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return decimal.Zero, fmt.Errorf("money: empty amount")
	}
	amount, err := decimal.NewFromString(trimmed)
	if err != nil {
		return decimal.Zero, fmt.Errorf("money: parse amount %q: %w", trimmed, err)
	}
	return amount, nil
}

// FormatAmount renders an amount with exactly two fractional digits.
func FormatAmount(amount decimal.Decimal) string {
	return amount.StringFixed(2)
}

// MinorUnits converts an amount to integer minor units (cents), rounding
// half away from zero the way payment processors expect.
func MinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}

// AmountFromMinor converts integer minor units back to a decimal amount.
func AmountFromMinor(minor int64) decimal.Decimal {
	return decimal.NewFromInt(minor).Shift(-2)
}

// FormatMinor renders minor units as a two-decimal amount string.
func FormatMinor(minor int64) string {
	return AmountFromMinor(minor).StringFixed(2)
}
