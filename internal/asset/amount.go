package asset

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

// Common errors
var (
	ErrNilToken        = errors.New("asset: nil token")
	ErrNegativeAmount  = errors.New("asset: negative amount")
	ErrTokenMismatch   = errors.New("asset: cannot operate on different tokens")
	ErrNegativeResult  = errors.New("asset: operation would result in negative amount")
	ErrTooManyDecimals = errors.New("asset: too many decimal places")
	ErrOverflow        = errors.New("asset: amount overflows 256 bits")
)

// Amount is an immutable quantity of a collateral token in its smallest unit.
type Amount struct {
	raw   uint256.Int
	token *Token
}

// NewAmount creates an Amount from a raw fixed-point value.
func NewAmount(token *Token, raw *uint256.Int) Amount {
	if token == nil {
		panic(ErrNilToken)
	}
	a := Amount{token: token}
	if raw != nil {
		a.raw.Set(raw)
	}
	return a
}

// Zero creates a zero Amount of token.
func Zero(token *Token) Amount {
	return NewAmount(token, nil)
}

// Raw returns a copy of the raw value.
func (a Amount) Raw() *uint256.Int {
	return new(uint256.Int).Set(&a.raw)
}

// Token returns the token this amount is denominated in.
func (a Amount) Token() *Token {
	return a.token
}

// IsZero reports whether the amount is zero.
func (a Amount) IsZero() bool {
	return a.raw.IsZero()
}

// Add adds two amounts of the same token.
func (a Amount) Add(b Amount) (Amount, error) {
	if err := a.checkSameToken(b); err != nil {
		return Amount{}, err
	}
	sum, overflow := new(uint256.Int).AddOverflow(&a.raw, &b.raw)
	if overflow {
		return Amount{}, ErrOverflow
	}
	return NewAmount(a.token, sum), nil
}

// Sub subtracts b from a.
func (a Amount) Sub(b Amount) (Amount, error) {
	if err := a.checkSameToken(b); err != nil {
		return Amount{}, err
	}
	if a.raw.Lt(&b.raw) {
		return Amount{}, ErrNegativeResult
	}
	return NewAmount(a.token, new(uint256.Int).Sub(&a.raw, &b.raw)), nil
}

// Cmp compares two amounts of the same token.
func (a Amount) Cmp(b Amount) (int, error) {
	if err := a.checkSameToken(b); err != nil {
		return 0, err
	}
	return a.raw.Cmp(&b.raw), nil
}

// ToDecimal converts the amount to decimal.Decimal for display.
// This is a BOUNDARY function - use only for UI/display, not calculations.
func (a Amount) ToDecimal() decimal.Decimal {
	return ToDecimal(&a.raw)
}

// String returns e.g. "1.5 USDC".
func (a Amount) String() string {
	if a.token == nil {
		return "0 ???"
	}
	return fmt.Sprintf("%s %s", a.ToDecimal().String(), a.token.Symbol())
}

// StringFixed returns a string with fixed decimal places.
func (a Amount) StringFixed(places int32) string {
	if a.token == nil {
		return "0 ???"
	}
	return fmt.Sprintf("%s %s", a.ToDecimal().StringFixed(places), a.token.Symbol())
}

// ParseString parses user input such as "100.5" into an Amount of token.
func ParseString(token *Token, s string) (Amount, error) {
	if token == nil {
		return Amount{}, ErrNilToken
	}
	raw, err := ParseUnits(s)
	if err != nil {
		return Amount{}, err
	}
	return NewAmount(token, raw), nil
}

func (a Amount) checkSameToken(b Amount) error {
	if a.token == nil || b.token == nil {
		return ErrNilToken
	}
	if a.token.Address() != b.token.Address() {
		return fmt.Errorf("%w: %s vs %s", ErrTokenMismatch, a.token.Symbol(), b.token.Symbol())
	}
	return nil
}
