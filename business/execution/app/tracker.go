// Package app contains application services and port definitions for the execution context.
package app

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	booksDomain "github.com/quantor/triarb/business/books/domain"
	"github.com/quantor/triarb/business/execution/domain"
	"github.com/quantor/triarb/internal/apperror"
	"github.com/quantor/triarb/internal/logger"
)

// PriceMarkup is the fractional markup applied away from the quoted
// price when an opportunity is adopted: 0.1% worse for the trader,
// biasing every leg toward a guaranteed fill.
var PriceMarkup = decimal.RequireFromString("0.001")

// Crossing factors used when an order must be forced through the book.
var (
	completionBuyFactor  = decimal.RequireFromString("1.5")
	completionSellFactor = decimal.RequireFromString("0.75")
	reverseBuyFactor     = decimal.RequireFromString("1.5")
	reverseSellFactor    = decimal.RequireFromString("0.5")
)

// TrackerConfig holds the tracker's timing thresholds.
type TrackerConfig struct {
	// TradeDelay is the cool-down after Reset before the tracker
	// reports ready for the next opportunity.
	TradeDelay time.Duration

	// MaxOrderHang is how long an acknowledged order may rest without
	// completing before it is cancelled and re-crossed.
	MaxOrderHang time.Duration

	// MaxOrderUnsent is the hard ceiling for a leg stuck unsent or
	// hanging; past it the whole triangle is reversed out.
	MaxOrderUnsent time.Duration
}

// Tracker owns the three orders of one in-flight triangular
// opportunity and decides what to do next from their collective state.
//
// The tracker performs no I/O and never blocks: NextActions is a pure
// query returning intents, and the event methods only mutate in-memory
// state. It is NOT safe for concurrent use on its own; callers must
// hold the tracker's lock around every call, including NextActions.
type Tracker struct {
	mu sync.Mutex

	left  booksDomain.Pair
	cross booksDomain.Pair
	right booksDomain.Pair

	// orders always has exactly the three configured pairs as keys;
	// values are nil until an opportunity is adopted.
	orders map[booksDomain.Pair]*domain.Order

	reverse bool

	ready         bool
	recovering    bool
	lastTradeTime time.Time

	// hangingCompletions holds completion orders parked while their
	// originals are cancelled; they drain strictly one at a time.
	hangingCompletions []*domain.Order
	awaitingHanging    bool

	cfg TrackerConfig
	log logger.LoggerInterface
}

// NewTracker creates a tracker for one triangle definition. It is
// constructed once and reused across many opportunities.
func NewTracker(left, cross, right booksDomain.Pair, cfg TrackerConfig, log logger.LoggerInterface) *Tracker {
	return &Tracker{
		left:  left,
		cross: cross,
		right: right,
		orders: map[booksDomain.Pair]*domain.Order{
			left:  nil,
			cross: nil,
			right: nil,
		},
		ready: true,
		cfg:   cfg,
		log:   log,
	}
}

// Lock acquires the tracker-wide lock. Every mutating call and every
// NextActions poll must happen between Lock and Unlock; the tracker
// provides the lock but does not enforce acquisition.
func (t *Tracker) Lock() { t.mu.Lock() }

// Unlock releases the tracker-wide lock.
func (t *Tracker) Unlock() { t.mu.Unlock() }

// Pairs returns the triangle's trading pairs as [left, cross, right].
func (t *Tracker) Pairs() [3]booksDomain.Pair {
	return [3]booksDomain.Pair{t.left, t.cross, t.right}
}

// Ready reports whether the tracker can adopt a new opportunity. After
// a Reset it latches true only once the trade delay has elapsed.
func (t *Tracker) Ready() bool {
	if t.recovering && time.Since(t.lastTradeTime) >= t.cfg.TradeDelay {
		t.recovering = false
		t.ready = true
	}
	return t.ready
}

// Recovering reports whether the tracker is inside the post-trade
// cool-down window.
func (t *Tracker) Recovering() bool {
	return t.recovering
}

// Reverse reports whether the tracker is unwinding the triangle.
func (t *Tracker) Reverse() bool {
	return t.reverse
}

// AwaitingHangingCompletion reports whether a completion order for a
// hung leg is still being worked.
func (t *Tracker) AwaitingHangingCompletion() bool {
	return t.awaitingHanging
}

// Finished reports whether the opportunity resolved: all three legs
// COMPLETE (forward success) or all three REVERSE_COMPLETE (unwound).
// Mixtures are never finished.
func (t *Tracker) Finished() bool {
	forward, reversed := 0, 0
	for _, o := range t.orders {
		if o == nil {
			return false
		}
		switch o.State {
		case domain.StateComplete:
			forward++
		case domain.StateReverseComplete:
			reversed++
		}
	}
	return forward == 3 || reversed == 3
}

// Order returns the current order for a trading pair, nil when no
// opportunity is adopted.
func (t *Tracker) Order(pair booksDomain.Pair) *domain.Order {
	return t.orders[pair]
}

// Orders returns a snapshot copy of the order map.
func (t *Tracker) Orders() map[booksDomain.Pair]*domain.Order {
	out := make(map[booksDomain.Pair]*domain.Order, len(t.orders))
	for pair, o := range t.orders {
		out[pair] = o
	}
	return out
}

// AddOpportunity seeds the three orders for a new attempt. Prices are
// marked up 0.1% away from the market and the fresh UNSENT orders are
// returned for submission.
func (t *Tracker) AddOpportunity(proposals [3]domain.Proposal) ([]*domain.Order, error) {
	orders := make([]*domain.Order, 0, len(proposals))
	for _, p := range proposals {
		if _, ok := t.orders[p.Pair]; !ok {
			return nil, apperror.New(apperror.CodeUnknownTradingPair,
				apperror.WithContext(p.Pair.String()))
		}
		o := domain.NewOrder(p.Pair, p.Side, markupPrice(p.Price, p.Side), p.Amount)
		t.orders[p.Pair] = o
		orders = append(orders, o)
	}
	t.ready = false
	return orders, nil
}

// markupPrice moves a quoted price 0.1% against the trader.
func markupPrice(price decimal.Decimal, side booksDomain.Side) decimal.Decimal {
	one := decimal.NewFromInt(1)
	if side == booksDomain.SideBuy {
		return price.Mul(one.Add(PriceMarkup))
	}
	return price.Mul(one.Sub(PriceMarkup))
}

// NextActions is the tracker's decision procedure, polled by the
// owning strategy loop. It inspects all three legs and returns the
// batch of intents to carry out; it mutates nothing on the exchange
// side itself.
func (t *Tracker) NextActions() []domain.Action {
	if t.reverse {
		return t.reverseActions()
	}
	return t.forwardActions()
}

func (t *Tracker) forwardActions() []domain.Action {
	// Completion orders for hung legs drain strictly one at a time.
	if t.awaitingHanging && len(t.hangingCompletions) > 0 {
		next := t.hangingCompletions[0]
		t.hangingCompletions = t.hangingCompletions[1:]
		return []domain.Action{domain.Place(next)}
	}

	var actions []domain.Action
	for _, pair := range t.Pairs() {
		o := t.orders[pair]
		if o == nil {
			continue
		}

		switch o.State {
		case domain.StateActive, domain.StatePartialFill:
			if !o.Activated.IsZero() && time.Since(o.Activated) > t.cfg.MaxOrderHang {
				actions = append(actions, t.hangLeg(o))
			}

		case domain.StateUnsent, domain.StateHanging:
			age := time.Since(o.Conceived)
			if age > t.cfg.MaxOrderUnsent {
				t.log.Warn(context.Background(), "leg unsent past ceiling, reversing",
					"pair", pair.String(), "age", age.String())
				t.ReverseExecution()
				return nil
			}
			if age > t.cfg.MaxOrderUnsent/2 && t.otherLegsComplete(pair) {
				actions = append(actions, domain.PlaceAllIn(o))
			} else {
				actions = append(actions, domain.Place(o))
			}
		}
	}
	return actions
}

// hangLeg cancels a hung order and parks its completion replacement.
// The leg's slot is switched to the completion order immediately so
// later events for the pair route to it.
func (t *Tracker) hangLeg(o *domain.Order) domain.Action {
	completion := completePartialOrder(o)
	t.orders[o.Pair] = completion
	t.hangingCompletions = append(t.hangingCompletions, completion)
	t.awaitingHanging = true

	o.MarkCanceled()
	t.log.Info(context.Background(), "leg hung, re-crossing",
		"pair", o.Pair.String(),
		"unfilled", completion.Amount.String(),
		"previously_filled", completion.PreviouslyFilled.String())
	return domain.Cancel(o)
}

func (t *Tracker) reverseActions() []domain.Action {
	var actions []domain.Action
	for _, pair := range t.Pairs() {
		o := t.orders[pair]
		if o == nil {
			continue
		}

		switch o.State {
		case domain.StateToCancel, domain.StateReversePartialToCancel:
			if o.ID != "" {
				actions = append(actions, domain.Cancel(o))
			} else {
				// Never acknowledged; nothing to cancel remotely.
				t.applyReverseCancel(pair, o)
			}
		case domain.StateReversePending:
			actions = append(actions, domain.Place(o))
		}
	}
	return actions
}

// otherLegsComplete reports whether both legs other than pair are
// COMPLETE, the condition for going all-in on the straggler.
func (t *Tracker) otherLegsComplete(pair booksDomain.Pair) bool {
	for p, o := range t.orders {
		if p == pair {
			continue
		}
		if o == nil || o.State != domain.StateComplete {
			return false
		}
	}
	return true
}

// completePartialOrder synthesizes the order that force-completes a
// hung original: the still-unfilled amount at a price generous enough
// to cross the book.
func completePartialOrder(o *domain.Order) *domain.Order {
	unfilled := o.AmountRemaining

	factor := completionBuyFactor
	if o.Side == booksDomain.SideSell {
		factor = completionSellFactor
	}

	completion := domain.NewOrder(o.Pair, o.Side, o.Price.Mul(factor), unfilled)
	if unfilled.Equal(o.Amount) {
		completion.State = domain.StateHanging
	} else {
		completion.State = domain.StatePendingPartialToFull
		completion.PreviouslyFilled = o.Amount.Sub(unfilled)
	}
	return completion
}

// reverseOrder builds the unwind counterpart of a completed or
// partially filled order: the filled quantity on the opposite side at
// a price that guarantees the exit fills.
func reverseOrder(o *domain.Order) *domain.Order {
	filled := o.Filled()

	factor := reverseBuyFactor
	if o.Side == booksDomain.SideSell {
		factor = reverseSellFactor
	}

	r := domain.NewOrder(o.Pair, o.Side.Opposite(), o.Price.Mul(factor), filled)
	r.State = domain.StateReversePending
	return r
}

// ReverseExecution abandons forward progress and begins unwinding the
// triangle. It is the tracker's cancellation primitive: one-way and
// idempotent.
func (t *Tracker) ReverseExecution() {
	if t.reverse {
		return
	}
	t.reverse = true
	t.log.Warn(context.Background(), "reversing triangle execution")

	for pair, o := range t.orders {
		if o == nil {
			continue
		}
		switch o.State {
		case domain.StateComplete:
			t.orders[pair] = reverseOrder(o)
		case domain.StateActive, domain.StatePending:
			o.State = domain.StateToCancel
		case domain.StatePartialFill, domain.StatePendingPartialToFull:
			o.State = domain.StateReversePartialToCancel
		case domain.StateUnsent, domain.StateCanceled, domain.StateFailed, domain.StateHanging:
			o.State = domain.StateReverseComplete
		}
	}
}

// Fail records an exchange rejection for a leg. A forward leg becomes
// terminally FAILED and triggers the unwind; a leg already reversing
// becomes REVERSE_FAILED without re-triggering anything.
func (t *Tracker) Fail(pair booksDomain.Pair) error {
	o, err := t.order(pair)
	if err != nil {
		return err
	}

	switch {
	case o.State.Before(domain.StateFailed):
		o.State = domain.StateFailed
		t.ReverseExecution()
	case o.State.AtOrPast(domain.StateReversePending):
		o.State = domain.StateReverseFailed
	}
	return nil
}

// Cancel records a cancellation acknowledgment for a leg.
func (t *Tracker) Cancel(pair booksDomain.Pair) error {
	o, err := t.order(pair)
	if err != nil {
		return err
	}

	if !t.reverse {
		// A cancel for a pair whose current order is live or is a
		// completion replacement refers to a superseded order and is
		// ignored; anything else is an anomaly that forces the unwind.
		if !o.IsLiveUncancelled() &&
			o.State != domain.StatePendingPartialToFull &&
			o.State != domain.StateHanging {
			o.State = domain.StateCanceled
			t.log.Warn(context.Background(), "unexpected cancel, reversing",
				"pair", pair.String())
			t.ReverseExecution()
		}
		return nil
	}

	t.applyReverseCancel(pair, o)
	return nil
}

// applyReverseCancel finalizes a cancel while unwinding: a leg that
// never got far is done, a partially filled one is replaced by its
// reverse-direction counterpart.
func (t *Tracker) applyReverseCancel(pair booksDomain.Pair, o *domain.Order) {
	switch {
	case o.State == domain.StateReversePartialToCancel:
		t.orders[pair] = reverseOrder(o)
	case o.State.Before(domain.StateReversePending):
		o.State = domain.StateReverseComplete
	}
}

// OrderComplete records that a leg's order filled completely.
func (t *Tracker) OrderComplete(id string, pair booksDomain.Pair) error {
	o, err := t.order(pair)
	if err != nil {
		return err
	}
	if o.ID == "" && id != "" {
		o.UpdateOrderID(id)
	}

	switch {
	case o.State.Before(domain.StateComplete):
		if t.awaitingHanging && len(t.hangingCompletions) == 0 {
			t.awaitingHanging = false
		}
		o.State = domain.StateComplete
		if t.reverse {
			// Chain straight into the unwind without waiting for a poll.
			t.orders[pair] = reverseOrder(o)
		}
	case o.State.AtOrPast(domain.StateReverseUnsent):
		o.State = domain.StateReverseComplete
	}
	return nil
}

// Fill records a partial execution against a leg's order. Fills that
// exactly exhaust the order are finalized by OrderComplete, not here.
func (t *Tracker) Fill(pair booksDomain.Pair, amount decimal.Decimal) error {
	o, err := t.order(pair)
	if err != nil {
		return err
	}

	o.Fill(amount)
	if !t.reverse && o.AmountRemaining.IsPositive() && o.State.Before(domain.StateComplete) {
		o.State = domain.StatePartialFill
	}
	return nil
}

// OrderPlaced records the exchange's placement acknowledgment.
func (t *Tracker) OrderPlaced(pair booksDomain.Pair) error {
	o, err := t.order(pair)
	if err != nil {
		return err
	}

	switch {
	case o.State == domain.StateHanging || o.State.Before(domain.StateActive):
		// A zero-fill completion order acknowledges out of HANGING even
		// though it ranks above ACTIVE.
		o.MarkActive()
	case o.State.Past(domain.StateReverseUnsent):
		o.State = domain.StateReverseActive
	}
	return nil
}

// Reset clears the tracker back to a ready-after-delay condition for
// the next opportunity. With overrideRecovery the cool-down is skipped
// and the tracker is ready immediately.
func (t *Tracker) Reset(overrideRecovery bool) {
	t.reverse = false
	t.hangingCompletions = nil
	t.awaitingHanging = false
	for pair := range t.orders {
		t.orders[pair] = nil
	}

	if overrideRecovery {
		t.ready = true
		t.recovering = false
		return
	}
	t.ready = false
	t.recovering = true
	t.lastTradeTime = time.Now()
}

func (t *Tracker) order(pair booksDomain.Pair) (*domain.Order, error) {
	o, ok := t.orders[pair]
	if !ok {
		return nil, apperror.New(apperror.CodeUnknownTradingPair,
			apperror.WithContext(pair.String()))
	}
	if o == nil {
		return nil, apperror.New(apperror.CodeNoOpportunity,
			apperror.WithContext(pair.String()))
	}
	return o, nil
}
