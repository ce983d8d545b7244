package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Level is one price level of an order book ladder.
type Level struct {
	Price  decimal.Decimal
	Amount decimal.Decimal
}

// Cost returns the quote-currency cost of consuming the whole level.
func (l Level) Cost() decimal.Decimal {
	return l.Price.Mul(l.Amount)
}

// Book is a snapshot of one market's order book. Bids are ordered
// best (highest) first, asks best (lowest) first.
type Book struct {
	Pair      Pair
	Bids      []Level
	Asks      []Level
	Timestamp time.Time
}

// BestBid returns the top bid level, if any.
func (b Book) BestBid() (Level, bool) {
	if len(b.Bids) == 0 {
		return Level{}, false
	}
	return b.Bids[0], true
}

// BestAsk returns the top ask level, if any.
func (b Book) BestAsk() (Level, bool) {
	if len(b.Asks) == 0 {
		return Level{}, false
	}
	return b.Asks[0], true
}

// Empty reports whether the book has no depth on either side.
func (b Book) Empty() bool {
	return len(b.Bids) == 0 && len(b.Asks) == 0
}
