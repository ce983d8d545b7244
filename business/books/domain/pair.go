// Package domain contains the core domain types for the market-data context.
package domain

import (
	"fmt"
	"strings"
)

// Side represents the side of a trade (buy or sell).
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// IsBuy reports whether the side is the buy side.
func (s Side) IsBuy() bool {
	return s == SideBuy
}

// Valid reports whether the side is one of the two known values.
func (s Side) Valid() bool {
	return s == SideBuy || s == SideSell
}

// Pair represents a trading pair. It is a comparable value and is used
// as a map key throughout the execution context.
type Pair struct {
	Base  string // e.g., "ETH"
	Quote string // e.g., "USDT"
}

// NewPair creates a new trading pair.
func NewPair(base, quote string) Pair {
	if base == "" || quote == "" {
		panic("books: empty symbol in pair")
	}
	return Pair{Base: base, Quote: quote}
}

// ParsePair parses a "BASE-QUOTE" string (e.g., "ETH-USDT").
func ParsePair(s string) (Pair, error) {
	parts := strings.Split(s, "-")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return Pair{}, fmt.Errorf("books: invalid pair %q, expected BASE-QUOTE", s)
	}
	return Pair{Base: parts[0], Quote: parts[1]}, nil
}

// String returns the pair symbol (e.g., "ETH-USDT").
func (p Pair) String() string {
	return p.Base + "-" + p.Quote
}

// Invert returns the inverted pair (e.g., ETH-USDT -> USDT-ETH).
func (p Pair) Invert() Pair {
	return Pair{Base: p.Quote, Quote: p.Base}
}

// IsZero reports whether the pair is the zero value.
func (p Pair) IsZero() bool {
	return p.Base == "" && p.Quote == ""
}
