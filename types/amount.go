// Package types provides common types used across Drip.
package types

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Amounts are whole units of an asset's smallest denomination held in a
// decimal.Decimal so they are not bounded by int64. Arithmetic that can
// produce fractions (interest, fees) always floors back to a whole unit.

// Hundred is 100%.
var Hundred = decimal.NewFromInt(100)

// Amount returns a whole amount from an int64.
func Amount(units int64) decimal.Decimal { return decimal.NewFromInt(units) }

// ParseAmount parses a decimal string that must be a non-negative whole number.
func ParseAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("types: parse amount %q: %w", s, err)
	}
	if !IsWhole(d) || d.IsNegative() {
		return decimal.Zero, fmt.Errorf("types: amount %q must be a non-negative whole number", s)
	}
	return d, nil
}

// MustParseAmount is like ParseAmount but panics on error. Use for constants.
func MustParseAmount(s string) decimal.Decimal {
	d, err := ParseAmount(s)
	if err != nil {
		panic(err)
	}
	return d
}

// IsWhole reports whether d has no fractional part.
func IsWhole(d decimal.Decimal) bool {
	return d.Equal(d.Truncate(0))
}

// MulDivFloor returns floor(a * b / c) for non-negative operands.
// Panics if c is zero.
func MulDivFloor(a, b, c decimal.Decimal) decimal.Decimal {
	if c.IsZero() {
		panic("types: division by zero")
	}
	q, _ := a.Mul(b).QuoRem(c, 0)
	return q
}

// PercentOf returns floor(amount * pct / 100).
func PercentOf(amount, pct decimal.Decimal) decimal.Decimal {
	return MulDivFloor(amount, pct, Hundred)
}

// ValidPercent reports whether pct lies in [0, 100].
func ValidPercent(pct decimal.Decimal) bool {
	return !pct.IsNegative() && pct.LessThanOrEqual(Hundred)
}

// Min returns the smaller of a and b.
func Min(a, b decimal.Decimal) decimal.Decimal {
	if a.LessThan(b) {
		return a
	}
	return b
}
