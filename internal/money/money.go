package money

import "github.com/shopspring/decimal"

// Gateway amounts travel as integer minor units (pesewas); the public API
// speaks major units with two decimals. Conversion rounds half away from
// zero so 10.005 becomes 1001, not 1000.

var minorFactor = decimal.NewFromInt(100)

func ToMinorUnits(major decimal.Decimal) int64 {
	return major.Mul(minorFactor).Round(0).IntPart()
}

func FromMinorUnits(minor int64) decimal.Decimal {
	return decimal.NewFromInt(minor).Div(minorFactor)
}

// FormatMajor renders a minor-unit amount as a two-decimal string for API
// responses.
func FormatMajor(minor int64) string {
	return FromMinorUnits(minor).StringFixed(2)
}

// ParseMajor parses a client-supplied major-unit amount. Returns the minor
// units and whether the input was a valid non-negative amount.
func ParseMajor(s string) (int64, bool) {
	d, err := decimal.NewFromString(s)
	if err != nil || d.IsNegative() {
		return 0, false
	}
	return ToMinorUnits(d), true
}
