package asset

import (
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
)

// Registry is a thread-safe registry of known assets keyed by symbol.
type Registry struct {
	bySymbol map[string]*Asset
	mu       sync.RWMutex
}

// NewRegistry creates a new empty asset registry.
func NewRegistry() *Registry {
	return &Registry{bySymbol: make(map[string]*Asset)}
}

// Register adds an asset to the registry.
// Panics if an asset with the same symbol is already registered.
func (r *Registry) Register(a *Asset) {
	if a == nil {
		panic("asset: cannot register nil asset")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.bySymbol[a.Symbol()]; exists {
		panic(fmt.Sprintf("asset: %s already registered", a.Symbol()))
	}
	r.bySymbol[a.Symbol()] = a
}

// Get retrieves an asset by its symbol.
func (r *Registry) Get(symbol string) (*Asset, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.bySymbol[symbol]
	return a, ok
}

// MustGet retrieves an asset by symbol, panics if not found.
func (r *Registry) MustGet(symbol string) *Asset {
	a, ok := r.Get(symbol)
	if !ok {
		panic(fmt.Sprintf("asset: %s not found in registry", symbol))
	}
	return a
}

// Quantize truncates an amount to the symbol's registered precision.
// Unknown symbols pass through unchanged.
func (r *Registry) Quantize(symbol string, amount decimal.Decimal) decimal.Decimal {
	a, ok := r.Get(symbol)
	if !ok {
		return amount
	}
	return a.Quantize(amount)
}

// All returns all registered assets.
func (r *Registry) All() []*Asset {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*Asset, 0, len(r.bySymbol))
	for _, a := range r.bySymbol {
		result = append(result, a)
	}
	return result
}

// Count returns the number of registered assets.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.bySymbol)
}

// Has returns true if an asset with the given symbol is registered.
func (r *Registry) Has(symbol string) bool {
	_, ok := r.Get(symbol)
	return ok
}
