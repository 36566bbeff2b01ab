package model

import "github.com/shopspring/decimal"

var (
	// Epsilon is the tolerance for monetary equality checks.
	Epsilon = decimal.RequireFromString("0.005")
	// Cent is the smallest monetary unit.
	Cent = decimal.RequireFromString("0.01")

	hundred = decimal.NewFromInt(100)
)

// Round2 rounds a monetary amount to cents.
func Round2(d decimal.Decimal) decimal.Decimal { return d.Round(2) }

// NearlyEqual reports whether a and b differ by no more than Epsilon.
func NearlyEqual(a, b decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThanOrEqual(Epsilon)
}

// PercentOf returns pct% of base, rounded to cents.
func PercentOf(base, pct decimal.Decimal) decimal.Decimal {
	return Round2(base.Mul(pct).Div(hundred))
}

// PercentageOf returns the share of part in base as a percentage (two places).
// A zero base yields zero.
func PercentageOf(part, base decimal.Decimal) decimal.Decimal {
	if base.IsZero() {
		return decimal.Zero
	}
	return part.Div(base).Mul(hundred).Round(2)
}
