package asset

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestRegistry_Quantize(t *testing.T) {
	r := DefaultRegistry()

	tests := []struct {
		name   string
		symbol string
		in     string
		want   string
	}{
		{name: "truncates_to_precision", symbol: "BTC", in: "0.123456789", want: "0.12345678"},
		{name: "never_rounds_up", symbol: "USDT", in: "10.999", want: "10.99"},
		{name: "short_values_unchanged", symbol: "ETH", in: "1.5", want: "1.5"},
		{name: "unknown_symbol_passthrough", symbol: "XYZ", in: "0.123456789", want: "0.123456789"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := r.Quantize(tt.symbol, decimal.RequireFromString(tt.in))
			if !got.Equal(decimal.RequireFromString(tt.want)) {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestRegistry_DuplicatePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on duplicate registration")
		}
	}()

	r := NewRegistry()
	r.Register(BTC)
	r.Register(BTC)
}
