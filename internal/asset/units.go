package asset

import (
	"fmt"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

// ParseUnits converts a decimal string in whole units ("12.5") to an
// 18-decimal fixed-point integer.
func ParseUnits(s string) (*uint256.Int, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, fmt.Errorf("asset: invalid decimal string: %w", err)
	}
	return FromDecimal(d)
}

// MustParseUnits is ParseUnits for constants and tests.
func MustParseUnits(s string) *uint256.Int {
	v, err := ParseUnits(s)
	if err != nil {
		panic(err)
	}
	return v
}

// FromDecimal converts whole units to an 18-decimal fixed-point integer.
func FromDecimal(d decimal.Decimal) (*uint256.Int, error) {
	if d.IsNegative() {
		return nil, ErrNegativeAmount
	}
	scaled := d.Shift(Decimals)
	if !scaled.Equal(scaled.Truncate(0)) {
		return nil, ErrTooManyDecimals
	}
	v, overflow := uint256.FromBig(scaled.BigInt())
	if overflow {
		return nil, ErrOverflow
	}
	return v, nil
}

// ToDecimal converts an 18-decimal fixed-point integer to whole units.
// This is a BOUNDARY function - use only for UI/display, not calculations.
func ToDecimal(v *uint256.Int) decimal.Decimal {
	if v == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(v.ToBig(), -Decimals)
}

// FormatUnits renders v in whole units with the given decimal places.
func FormatUnits(v *uint256.Int, places int32) string {
	return ToDecimal(v).StringFixed(places)
}
