// Package paper implements a simulated exchange connector. Orders fill
// against live depth snapshots; no requests ever reach a real venue.
package paper

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	booksDomain "github.com/quantor/triarb/business/books/domain"
	"github.com/quantor/triarb/business/execution/domain"
	"github.com/quantor/triarb/internal/apperror"
	"github.com/quantor/triarb/internal/asset"
	"github.com/quantor/triarb/internal/logger"
)

// BookSource provides the depth snapshots simulated fills execute against.
type BookSource interface {
	Book(pair booksDomain.Pair) (booksDomain.Book, bool)
}

// Config holds the simulation parameters.
type Config struct {
	InitialBalances map[string]decimal.Decimal
	FeeRate         decimal.Decimal
	FillInterval    time.Duration // how often resting orders are matched
	EventBuffer     int
}

// DefaultConfig returns a paper account funded with quote currency only.
func DefaultConfig() Config {
	return Config{
		InitialBalances: map[string]decimal.Decimal{
			"USDT": decimal.NewFromInt(1000),
		},
		FeeRate:      decimal.RequireFromString("0.001"),
		FillInterval: 100 * time.Millisecond,
		EventBuffer:  64,
	}
}

type restingOrder struct {
	pair      booksDomain.Pair
	side      booksDomain.Side
	price     decimal.Decimal
	remaining decimal.Decimal
}

// Connector simulates order execution against the feed's books.
type Connector struct {
	config Config
	logger logger.LoggerInterface
	books  BookSource
	assets *asset.Registry

	mu       sync.Mutex
	balances map[string]decimal.Decimal
	resting  map[string]*restingOrder

	nextID atomic.Int64
	events chan domain.Event

	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewConnector creates a paper connector. Balances are copied from the
// config so the caller's map is never mutated.
func NewConnector(cfg Config, books BookSource, assets *asset.Registry, log logger.LoggerInterface) *Connector {
	balances := make(map[string]decimal.Decimal, len(cfg.InitialBalances))
	for cur, amount := range cfg.InitialBalances {
		balances[cur] = amount
	}

	return &Connector{
		config:   cfg,
		logger:   log,
		books:    books,
		assets:   assets,
		balances: balances,
		resting:  make(map[string]*restingOrder),
		events:   make(chan domain.Event, cfg.EventBuffer),
		done:     make(chan struct{}),
	}
}

// Start launches the background matching loop.
func (c *Connector) Start(ctx context.Context) error {
	c.wg.Add(1)
	go c.matchLoop(ctx)
	return nil
}

// PlaceOrder accepts a limit order into the simulated book. The order
// acknowledgment is emitted asynchronously like a real venue would.
func (c *Connector) PlaceOrder(ctx context.Context, order *domain.Order) error {
	amount := c.assets.Quantize(order.Pair.Base, order.AmountRemaining)
	if !amount.IsPositive() {
		return apperror.New(apperror.CodeInvalidTradeSize,
			apperror.WithContext(order.Pair.String()))
	}

	id := "paper-" + strconv.FormatInt(c.nextID.Add(1), 10)

	c.mu.Lock()
	c.resting[id] = &restingOrder{
		pair:      order.Pair,
		side:      order.Side,
		price:     order.Price,
		remaining: amount,
	}
	c.mu.Unlock()

	c.logger.Debug(ctx, "paper order accepted",
		"id", id, "pair", order.Pair.String(), "side", string(order.Side),
		"price", order.Price.String(), "amount", amount.String())

	c.emit(domain.Event{
		Type:      domain.EventPlaced,
		Pair:      order.Pair,
		OrderID:   id,
		Timestamp: time.Now(),
	})
	return nil
}

// CancelOrder removes a resting order and acknowledges the cancel.
func (c *Connector) CancelOrder(ctx context.Context, order *domain.Order) error {
	c.mu.Lock()
	_, ok := c.resting[order.ID]
	delete(c.resting, order.ID)
	c.mu.Unlock()

	if !ok {
		return apperror.New(apperror.CodeOrderNotFound,
			apperror.WithContext(order.ID))
	}

	c.emit(domain.Event{
		Type:      domain.EventCancel,
		Pair:      order.Pair,
		OrderID:   order.ID,
		Timestamp: time.Now(),
	})
	return nil
}

// Balance returns the free balance for a currency.
func (c *Connector) Balance(_ context.Context, currency string) (decimal.Decimal, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.balances[currency], nil
}

// Events returns the simulated notification stream.
func (c *Connector) Events() <-chan domain.Event {
	return c.events
}

// Close stops the matching loop and closes the event stream.
func (c *Connector) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
		c.wg.Wait()
		close(c.events)
	})
	return nil
}

func (c *Connector) matchLoop(ctx context.Context) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.FillInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.matchOnce(ctx)
		}
	}
}

// matchOnce fills every resting order the current books cross.
func (c *Connector) matchOnce(ctx context.Context) {
	type fill struct {
		id       string
		pair     booksDomain.Pair
		qty      decimal.Decimal
		complete bool
	}
	var fills []fill

	c.mu.Lock()
	for id, ro := range c.resting {
		book, ok := c.books.Book(ro.pair)
		if !ok {
			continue
		}

		price, qty := c.crossedQuantity(ro, book)
		if !qty.IsPositive() {
			continue
		}

		c.settle(ro, price, qty)
		ro.remaining = ro.remaining.Sub(qty)

		done := !ro.remaining.IsPositive()
		if done {
			delete(c.resting, id)
		}
		fills = append(fills, fill{id: id, pair: ro.pair, qty: qty, complete: done})
	}
	c.mu.Unlock()

	now := time.Now()
	for _, f := range fills {
		c.emit(domain.Event{
			Type:      domain.EventFill,
			Pair:      f.pair,
			OrderID:   f.id,
			Amount:    f.qty,
			Timestamp: now,
		})
		if f.complete {
			c.emit(domain.Event{
				Type:      domain.EventComplete,
				Pair:      f.pair,
				OrderID:   f.id,
				Timestamp: now,
			})
		}
		c.logger.Debug(ctx, "paper fill",
			"id", f.id, "pair", f.pair.String(),
			"amount", f.qty.String(), "complete", f.complete)
	}
}

// crossedQuantity returns the executable price and quantity for one
// resting order against a book, zero when the order does not cross.
func (c *Connector) crossedQuantity(ro *restingOrder, book booksDomain.Book) (decimal.Decimal, decimal.Decimal) {
	if ro.side.IsBuy() {
		ask, ok := book.BestAsk()
		if !ok || ask.Price.GreaterThan(ro.price) {
			return decimal.Zero, decimal.Zero
		}
		return ask.Price, decimal.Min(ro.remaining, ask.Amount)
	}

	bid, ok := book.BestBid()
	if !ok || bid.Price.LessThan(ro.price) {
		return decimal.Zero, decimal.Zero
	}
	return bid.Price, decimal.Min(ro.remaining, bid.Amount)
}

// settle moves balances for one fill. Caller holds the mutex. The fee
// is taken from the received currency, matching spot exchange behavior.
func (c *Connector) settle(ro *restingOrder, price, qty decimal.Decimal) {
	one := decimal.NewFromInt(1)
	cost := price.Mul(qty)

	if ro.side.IsBuy() {
		c.balances[ro.pair.Quote] = c.balances[ro.pair.Quote].Sub(cost)
		received := qty.Mul(one.Sub(c.config.FeeRate))
		c.balances[ro.pair.Base] = c.balances[ro.pair.Base].Add(
			c.assets.Quantize(ro.pair.Base, received))
		return
	}

	c.balances[ro.pair.Base] = c.balances[ro.pair.Base].Sub(qty)
	received := cost.Mul(one.Sub(c.config.FeeRate))
	c.balances[ro.pair.Quote] = c.balances[ro.pair.Quote].Add(
		c.assets.Quantize(ro.pair.Quote, received))
}

// emit delivers an event without blocking the matching loop forever.
func (c *Connector) emit(ev domain.Event) {
	select {
	case c.events <- ev:
	case <-c.done:
	}
}
