package core

import "github.com/shopspring/decimal"

// Decimal is the exact-decimal type used throughout the core for price,
// quantity, amount, and P&L math. spec.md §3/§9 forbid binary floats for
// these fields; this alias keeps call sites terse while making the choice
// of library explicit and swappable in one place.
type Decimal = decimal.Decimal

// Zero, One and Hundred are the constants reused across rounding and
// percentage math so call sites don't re-derive them.
var (
	Zero     = decimal.Zero
	One      = decimal.NewFromInt(1)
	Hundred  = decimal.NewFromInt(100)
)

// D is a convenience constructor from a float64 literal, for tests and
// config parsing where the source value is already inexact (e.g. a YAML
// percentage). Never used on the hot fill/P&L path.
func D(f float64) Decimal {
	return decimal.NewFromFloat(f)
}

// DI builds a Decimal from an int64, exact by construction.
func DI(i int64) Decimal {
	return decimal.NewFromInt(i)
}

// ParseDecimal parses a decimal's canonical string form (as produced by
// Decimal.String), for reading exact-decimal values back out of storage.
func ParseDecimal(s string) (Decimal, error) {
	return decimal.NewFromString(s)
}
