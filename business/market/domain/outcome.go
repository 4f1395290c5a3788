// Package domain contains the core types for the market context.
package domain

import (
	"fmt"
	"strings"
)

// Outcome is the resolution state of a binary market.
// Wire values match the trading interface: 1 = Yes, 2 = No.
type Outcome uint8

const (
	Unresolved Outcome = 0
	Yes        Outcome = 1
	No         Outcome = 2
	Invalid    Outcome = 3
)

// String returns the lowercase name.
func (o Outcome) String() string {
	switch o {
	case Unresolved:
		return "unresolved"
	case Yes:
		return "yes"
	case No:
		return "no"
	case Invalid:
		return "invalid"
	default:
		return fmt.Sprintf("outcome(%d)", uint8(o))
	}
}

// IsSide reports whether o names a tradable side.
func (o Outcome) IsSide() bool {
	return o == Yes || o == No
}

// IsTerminal reports whether o is a valid final resolution.
func (o Outcome) IsTerminal() bool {
	return o == Yes || o == No || o == Invalid
}

// Opposite returns the other side. Only meaningful for Yes and No.
func (o Outcome) Opposite() Outcome {
	if o == Yes {
		return No
	}
	return Yes
}

// ParseOutcome accepts names ("yes") and wire values ("1").
func ParseOutcome(s string) (Outcome, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "yes", "1":
		return Yes, nil
	case "no", "2":
		return No, nil
	case "invalid", "3":
		return Invalid, nil
	case "unresolved", "0":
		return Unresolved, nil
	}
	return Unresolved, fmt.Errorf("unknown outcome %q", s)
}

// MarshalText encodes the outcome by name.
func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// UnmarshalText decodes names and wire values.
func (o *Outcome) UnmarshalText(b []byte) error {
	v, err := ParseOutcome(string(b))
	if err != nil {
		return err
	}
	*o = v
	return nil
}
