package gateway

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// FormatAmount renders minor units as a two-decimal major-unit string.
func FormatAmount(minor int64) string {
	return decimal.New(minor, -2).StringFixed(2)
}

var maxMinorUnits = decimal.NewFromInt(math.MaxInt64)

// ParseAmount converts a major-unit string such as "12.30" to minor units.
// Values with more than two decimal places are rejected rather than rounded.
func ParseAmount(s string) (int64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	minor := d.Shift(2)
	if !minor.Equal(minor.Truncate(0)) {
		return 0, fmt.Errorf("invalid amount %q: more than two decimal places", s)
	}
	if minor.IsNegative() {
		return 0, fmt.Errorf("invalid amount %q: negative", s)
	}
	if minor.GreaterThan(maxMinorUnits) {
		return 0, fmt.Errorf("invalid amount %q: out of range", s)
	}
	return minor.IntPart(), nil
}
