package business

import "github.com/shopspring/decimal"

// RoundCents rounds a currency amount to whole cents, half away from zero.
// Every tax line is rounded at source so that aggregates are exact sums of
// the itemized lines.
func RoundCents(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// MinDecimal returns the smaller of two amounts.
func MinDecimal(a, b decimal.Decimal) decimal.Decimal {
	if a.LessThan(b) {
		return a
	}
	return b
}

// MaxDecimal returns the larger of two amounts.
func MaxDecimal(a, b decimal.Decimal) decimal.Decimal {
	if a.GreaterThan(b) {
		return a
	}
	return b
}

// FloorZero clamps a negative amount to zero. Taxable bases and net tax due
// are never negative.
func FloorZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
