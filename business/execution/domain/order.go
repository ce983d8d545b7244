package domain

import (
	"time"

	"github.com/shopspring/decimal"

	booksDomain "github.com/quantor/triarb/business/books/domain"
)

// Order is a mutable record of one leg's trading intent and fill
// progress. It is a plain value object: every method is a total
// function over the state enum and none of them raise.
//
// An order is never flipped in place. When a leg reverses, the tracker
// replaces the slot in its map with a fresh Order on the opposite side
// and the old one is discarded.
type Order struct {
	Pair             booksDomain.Pair
	ID               string // exchange-assigned, empty until acknowledged
	Price            decimal.Decimal
	Amount           decimal.Decimal
	AmountRemaining  decimal.Decimal
	Side             booksDomain.Side
	State            OrderState
	PreviouslyFilled decimal.Decimal // carried over when a completion order replaces a hung one
	AllIn            bool            // sized to exhaust a wallet rather than match a quote

	Conceived            time.Time
	Activated            time.Time // zero until the first exchange acknowledgment
	LastCancelled        time.Time
	OriginalCancellation time.Time
}

// NewOrder creates an unsent order for one leg.
func NewOrder(pair booksDomain.Pair, side booksDomain.Side, price, amount decimal.Decimal) *Order {
	return &Order{
		Pair:            pair,
		Price:           price,
		Amount:          amount,
		AmountRemaining: amount,
		Side:            side,
		State:           StateUnsent,
		Conceived:       time.Now(),
	}
}

// MarkPending records that the order has been handed to the exchange
// and is awaiting acknowledgment.
func (o *Order) MarkPending() {
	if o.State == StateUnsent {
		o.State = StatePending
	}
}

// MarkActive records the exchange acknowledgment and stamps the
// activation time. A hanging completion order acknowledges into
// PENDING_PARTIAL_TO_FULL instead.
func (o *Order) MarkActive() {
	switch o.State {
	case StateUnsent, StatePending:
		o.State = StateActive
	case StateHanging:
		o.State = StatePendingPartialToFull
	}
	o.Activated = time.Now()
}

// MarkCanceled moves a live order into PENDING_CANCEL. The timestamps
// are refreshed even when the precondition state does not hold.
func (o *Order) MarkCanceled() {
	switch o.State {
	case StateActive, StatePending, StateUnsent:
		o.State = StatePendingCancel
	}
	now := time.Now()
	o.LastCancelled = now
	if o.OriginalCancellation.IsZero() {
		o.OriginalCancellation = now
	}
}

// UpdateOrderID records the exchange-assigned identifier.
func (o *Order) UpdateOrderID(id string) {
	o.ID = id
}

// Fill reduces the remaining amount by the filled quantity.
func (o *Order) Fill(amount decimal.Decimal) {
	o.AmountRemaining = o.AmountRemaining.Sub(amount)
}

// Filled returns the quantity executed so far, including fills carried
// over from a replaced order.
func (o *Order) Filled() decimal.Decimal {
	return o.Amount.Sub(o.AmountRemaining).Add(o.PreviouslyFilled)
}

// Total returns the remaining notional (price times remaining amount).
func (o *Order) Total() decimal.Decimal {
	return o.Price.Mul(o.AmountRemaining)
}

// IsLiveUncancelled reports whether the order is resting or awaiting
// acknowledgment without a cancel in flight.
func (o *Order) IsLiveUncancelled() bool {
	return o.State == StateActive || o.State == StatePending
}

// IsLive reports whether the order still exists on the exchange side,
// including one with a cancel in flight.
func (o *Order) IsLive() bool {
	return o.State == StateActive || o.State == StatePending || o.State == StatePendingCancel
}
