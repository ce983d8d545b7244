// Package binance implements the BookSource interface for Binance depth streams.
package binance

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/quantor/triarb/business/books/domain"
)

// WSRequest is a WebSocket subscription request.
type WSRequest struct {
	Method string   `json:"method"`
	Params []string `json:"params"`
	ID     int64    `json:"id"`
}

// WSResponse is a WebSocket subscription response.
type WSResponse struct {
	Result json.RawMessage `json:"result"`
	ID     int64           `json:"id"`
}

// StreamEvent is the base wrapper for all combined-stream messages.
type StreamEvent struct {
	Stream string          `json:"stream"`
	Data   json.RawMessage `json:"data"`
}

// PartialDepthEvent represents a partial book depth snapshot.
// Stream: <symbol>@depth5, @depth10, @depth20 (with optional @100ms speed).
// The symbol is not in the payload; it is recovered from the stream name.
type PartialDepthEvent struct {
	LastUpdateID int64      `json:"lastUpdateId"`
	Bids         [][]string `json:"bids"` // [[price, qty], ...]
	Asks         [][]string `json:"asks"`
}

// ParseLevels parses raw depth rows into domain levels. Zero-quantity
// rows mark removed levels and are dropped.
func ParseLevels(raw [][]string) ([]domain.Level, error) {
	levels := make([]domain.Level, 0, len(raw))
	for _, r := range raw {
		if len(r) < 2 {
			continue
		}
		price, err := decimal.NewFromString(r[0])
		if err != nil {
			return nil, err
		}
		qty, err := decimal.NewFromString(r[1])
		if err != nil {
			return nil, err
		}
		if qty.IsZero() {
			continue
		}
		levels = append(levels, domain.Level{Price: price, Amount: qty})
	}
	return levels, nil
}

// DepthStream returns the partial book depth stream name for a symbol.
// Uses @depth20 which sends the top 20 bid/ask levels (not the diff stream).
func DepthStream(symbol string, speedMs int) string {
	return strings.ToLower(symbol) + "@depth20@" + strconv.Itoa(speedMs) + "ms"
}

// Symbol converts a trading pair to Binance's concatenated symbol
// (e.g., ETH-USDT -> ETHUSDT).
func Symbol(pair domain.Pair) string {
	return pair.Base + pair.Quote
}

// symbolFromStream extracts the uppercase symbol from a stream name.
// Example: "ethusdt@depth20@100ms" -> "ETHUSDT".
func symbolFromStream(stream string) string {
	idx := strings.Index(stream, "@")
	if idx > 0 {
		return strings.ToUpper(stream[:idx])
	}
	return strings.ToUpper(stream)
}
