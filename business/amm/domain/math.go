// Package domain contains the pool accounting and pricing core of the AMM.
// All quantities are 18-decimal fixed point; every division floors.
package domain

import (
	"github.com/holiman/uint256"

	"github.com/fd1az/prediction-amm/internal/apperror"
)

// BpsDenominator is the fee denominator (10000 bps = 100%).
const BpsDenominator = 10_000

var (
	// One is 1.0 in 18-decimal fixed point.
	One = uint256.NewInt(1_000_000_000_000_000_000)

	half   = uint256.NewInt(500_000_000_000_000_000)
	two    = uint256.NewInt(2)
	bpsDen = uint256.NewInt(BpsDenominator)
)

func errOverflow(op string) error {
	return apperror.New(apperror.CodeArithmeticOverflow, apperror.WithContext(op))
}

func add(x, y *uint256.Int) (*uint256.Int, error) {
	z, overflow := new(uint256.Int).AddOverflow(x, y)
	if overflow {
		return nil, errOverflow("add")
	}
	return z, nil
}

func sum(xs ...*uint256.Int) (*uint256.Int, error) {
	z := new(uint256.Int)
	for _, x := range xs {
		if _, overflow := z.AddOverflow(z, x); overflow {
			return nil, errOverflow("sum")
		}
	}
	return z, nil
}

func mul(x, y *uint256.Int) (*uint256.Int, error) {
	z, overflow := new(uint256.Int).MulOverflow(x, y)
	if overflow {
		return nil, errOverflow("mul")
	}
	return z, nil
}

// sub returns x-y. Callers guarantee x >= y.
func sub(x, y *uint256.Int) *uint256.Int {
	return new(uint256.Int).Sub(x, y)
}

// mulDiv computes floor(x*y/d) with a 512-bit intermediate.
func mulDiv(x, y, d *uint256.Int) (*uint256.Int, error) {
	if d.IsZero() {
		return nil, apperror.New(apperror.CodeInvalidState, apperror.WithContext("division by zero"))
	}
	z, overflow := new(uint256.Int).MulDivOverflow(x, y, d)
	if overflow {
		return nil, errOverflow("mulDiv")
	}
	return z, nil
}

func minInt(x, y *uint256.Int) *uint256.Int {
	if x.Lt(y) {
		return new(uint256.Int).Set(x)
	}
	return new(uint256.Int).Set(y)
}

// FeeOf returns floor(amount * feeBps / 10000).
func FeeOf(amount *uint256.Int, feeBps uint64) (*uint256.Int, error) {
	return mulDiv(amount, uint256.NewInt(feeBps), bpsDen)
}
