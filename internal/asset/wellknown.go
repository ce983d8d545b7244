package asset

// Well-known Assets (pre-created instances). Decimals follow the
// amount precision most spot exchanges accept for the asset.
var (
	BTC  = NewAssetWithName("BTC", "Bitcoin", 8)
	ETH  = NewAssetWithName("ETH", "Ethereum", 8)
	BNB  = NewAssetWithName("BNB", "BNB", 8)
	SOL  = NewAssetWithName("SOL", "Solana", 8)
	USDT = NewAssetWithName("USDT", "Tether USD", 2)
	USDC = NewAssetWithName("USDC", "USD Coin", 2)

	USD = NewAssetWithName("USD", "US Dollar", 2)
	EUR = NewAssetWithName("EUR", "Euro", 2)
)

// DefaultRegistry returns a registry pre-populated with well-known assets.
func DefaultRegistry() *Registry {
	r := NewRegistry()

	r.Register(BTC)
	r.Register(ETH)
	r.Register(BNB)
	r.Register(SOL)
	r.Register(USDT)
	r.Register(USDC)
	r.Register(USD)
	r.Register(EUR)

	return r
}
