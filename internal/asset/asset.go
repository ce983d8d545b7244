// Package asset provides a registry of tradable asset metadata.
package asset

import "github.com/shopspring/decimal"

// Asset represents the metadata of a crypto or fiat asset.
// The symbol doubles as identity within one exchange's universe;
// decimals is the precision the exchange accepts for amounts.
type Asset struct {
	symbol   string
	name     string
	decimals int32
}

// NewAsset creates a new Asset with the given parameters.
func NewAsset(symbol string, decimals int32) *Asset {
	if symbol == "" {
		panic("asset: empty symbol")
	}
	if decimals < 0 || decimals > 30 {
		panic("asset: suspicious decimals")
	}
	return &Asset{symbol: symbol, decimals: decimals}
}

// NewAssetWithName creates a new Asset with a human-readable name.
func NewAssetWithName(symbol, name string, decimals int32) *Asset {
	a := NewAsset(symbol, decimals)
	a.name = name
	return a
}

// Symbol returns the ticker symbol (e.g., "ETH", "USDT").
func (a *Asset) Symbol() string {
	return a.symbol
}

// Name returns the human-readable name (e.g., "Ethereum", "Tether USD").
func (a *Asset) Name() string {
	if a.name == "" {
		return a.symbol
	}
	return a.name
}

// Decimals returns the number of decimal places the exchange accepts.
func (a *Asset) Decimals() int32 {
	return a.decimals
}

// Quantize truncates an amount to the asset's precision. Truncation,
// not rounding: an order must never be sized above the funds backing it.
func (a *Asset) Quantize(amount decimal.Decimal) decimal.Decimal {
	return amount.Truncate(a.decimals)
}

// String returns a human-readable representation.
func (a *Asset) String() string {
	return a.symbol
}
