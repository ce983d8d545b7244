package app

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/quantor/triarb/business/execution/domain"
	"github.com/quantor/triarb/internal/logger"
	"github.com/quantor/triarb/internal/ratelimit"
)

// RunnerConfig holds the execution loop's settings.
type RunnerConfig struct {
	// PollInterval is how often the tracker is asked for next actions.
	PollInterval time.Duration

	// OrderRateLimit caps order placements/cancels per minute.
	OrderRateLimit int
}

// Runner drives one tracker against one exchange connector: it polls
// the tracker for intents, carries them out, and feeds exchange events
// back in. All tracker access goes through the tracker's own lock so a
// reporter reading snapshots from another goroutine stays consistent.
type Runner struct {
	tracker   *Tracker
	connector Connector
	source    OpportunitySource
	reporter  Reporter
	limiter   *ratelimit.Limiter
	cfg       RunnerConfig
	log       logger.LoggerInterface

	startedAt time.Time

	ordersPlaced  metric.Int64Counter
	ordersCancels metric.Int64Counter
	reversals     metric.Int64Counter
	trianglesDone metric.Int64Counter
}

// NewRunner creates the execution loop. Counters register against the
// globally configured meter provider.
func NewRunner(
	tracker *Tracker,
	connector Connector,
	source OpportunitySource,
	reporter Reporter,
	cfg RunnerConfig,
	log logger.LoggerInterface,
) (*Runner, error) {
	meter := otel.Meter("triarb/execution")

	ordersPlaced, err := meter.Int64Counter("execution.orders.placed")
	if err != nil {
		return nil, err
	}
	ordersCancels, err := meter.Int64Counter("execution.orders.cancels")
	if err != nil {
		return nil, err
	}
	reversals, err := meter.Int64Counter("execution.reversals")
	if err != nil {
		return nil, err
	}
	triangles, err := meter.Int64Counter("execution.triangles.completed")
	if err != nil {
		return nil, err
	}

	return &Runner{
		tracker:       tracker,
		connector:     connector,
		source:        source,
		reporter:      reporter,
		limiter:       ratelimit.New(cfg.OrderRateLimit),
		cfg:           cfg,
		log:           log,
		ordersPlaced:  ordersPlaced,
		ordersCancels: ordersCancels,
		reversals:     reversals,
		trianglesDone: triangles,
	}, nil
}

// Run blocks driving the poll/event loop until the context is
// cancelled or the connector's event stream closes.
func (r *Runner) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.cfg.PollInterval)
	defer ticker.Stop()

	events := r.connector.Events()

	r.log.Info(ctx, "execution runner started",
		"poll_interval", r.cfg.PollInterval.String())

	for {
		select {
		case <-ctx.Done():
			r.log.Info(ctx, "execution runner stopping", "reason", ctx.Err().Error())
			return ctx.Err()

		case ev, ok := <-events:
			if !ok {
				r.log.Warn(ctx, "connector event stream closed")
				return nil
			}
			r.handleEvent(ctx, ev)

		case <-ticker.C:
			r.poll(ctx)
		}
	}
}

// poll is one tick of the decision loop: settle a finished triangle,
// adopt a new opportunity when ready, or carry out pending actions.
func (r *Runner) poll(ctx context.Context) {
	r.tracker.Lock()

	if r.tracker.Finished() {
		reversed := r.tracker.Reverse()
		duration := time.Since(r.startedAt)
		r.tracker.Reset(false)
		r.tracker.Unlock()

		attrs := metric.WithAttributes(attribute.Bool("reversed", reversed))
		r.trianglesDone.Add(ctx, 1, attrs)
		if reversed {
			r.reversals.Add(ctx, 1)
		}
		r.reporter.ReportOutcome(reversed, duration)
		r.log.Info(ctx, "triangle settled",
			"reversed", reversed, "duration", duration.String())
		return
	}

	if r.tracker.Ready() {
		r.tracker.Unlock()
		r.adoptNext(ctx)
		return
	}

	actions := r.tracker.NextActions()
	r.reporter.ReportOrders(r.orderSnapshot())
	r.tracker.Unlock()

	for _, a := range actions {
		r.execute(ctx, a)
	}
}

// adoptNext asks the opportunity source for a proposal set and seeds
// the tracker with it.
func (r *Runner) adoptNext(ctx context.Context) {
	proposals, ok, err := r.source.Next(ctx)
	if err != nil {
		r.log.Error(ctx, "opportunity source failed", "error", err.Error())
		return
	}
	if !ok {
		return
	}

	r.tracker.Lock()
	if !r.tracker.Ready() {
		r.tracker.Unlock()
		return
	}
	orders, err := r.tracker.AddOpportunity(proposals)
	r.tracker.Unlock()
	if err != nil {
		r.log.Error(ctx, "opportunity rejected", "error", err.Error())
		return
	}

	r.startedAt = time.Now()
	r.log.Info(ctx, "opportunity adopted", "legs", len(orders))
}

// execute carries out one tracker intent against the connector.
func (r *Runner) execute(ctx context.Context, a domain.Action) {
	if err := r.limiter.Wait(ctx); err != nil {
		return
	}

	switch a.Type {
	case domain.ActionPlace, domain.ActionPlaceAllIn:
		if a.Type == domain.ActionPlaceAllIn {
			if err := r.sizeAllIn(ctx, a.Order); err != nil {
				r.log.Error(ctx, "all-in sizing failed",
					"pair", a.Order.Pair.String(), "error", err.Error())
				return
			}
		}
		if err := r.connector.PlaceOrder(ctx, a.Order); err != nil {
			r.log.Error(ctx, "order placement failed",
				"pair", a.Order.Pair.String(), "error", err.Error())
			r.tracker.Lock()
			_ = r.tracker.Fail(a.Order.Pair)
			r.tracker.Unlock()
			return
		}
		r.tracker.Lock()
		a.Order.MarkPending()
		r.tracker.Unlock()
		r.ordersPlaced.Add(ctx, 1, metric.WithAttributes(
			attribute.String("pair", a.Order.Pair.String()),
			attribute.Bool("all_in", a.Order.AllIn)))

	case domain.ActionCancel:
		if err := r.connector.CancelOrder(ctx, a.Order); err != nil {
			r.log.Error(ctx, "order cancel failed",
				"pair", a.Order.Pair.String(), "error", err.Error())
			return
		}
		r.ordersCancels.Add(ctx, 1, metric.WithAttributes(
			attribute.String("pair", a.Order.Pair.String())))
	}
}

// sizeAllIn resizes an order to exhaust the wallet funding its input
// side instead of matching the originally quoted amount.
func (r *Runner) sizeAllIn(ctx context.Context, o *domain.Order) error {
	currency := o.Pair.Base
	if o.Side.IsBuy() {
		currency = o.Pair.Quote
	}

	balance, err := r.connector.Balance(ctx, currency)
	if err != nil {
		return err
	}

	amount := balance
	if o.Side.IsBuy() {
		amount = balance.Div(o.Price)
	}

	r.tracker.Lock()
	o.Amount = amount
	o.AmountRemaining = amount
	o.AllIn = true
	r.tracker.Unlock()
	return nil
}

// handleEvent routes one exchange notification into the tracker.
func (r *Runner) handleEvent(ctx context.Context, ev domain.Event) {
	r.tracker.Lock()

	var err error
	switch ev.Type {
	case domain.EventPlaced:
		err = r.tracker.OrderPlaced(ev.Pair)
		if err == nil && ev.OrderID != "" {
			if o := r.tracker.Order(ev.Pair); o != nil && o.ID == "" {
				o.UpdateOrderID(ev.OrderID)
			}
		}
	case domain.EventFill:
		err = r.tracker.Fill(ev.Pair, ev.Amount)
	case domain.EventComplete:
		err = r.tracker.OrderComplete(ev.OrderID, ev.Pair)
	case domain.EventCancel:
		err = r.tracker.Cancel(ev.Pair)
	case domain.EventFail:
		err = r.tracker.Fail(ev.Pair)
		r.log.Warn(ctx, "leg failed",
			"pair", ev.Pair.String(), "reason", ev.Reason)
	}

	snapshot := r.orderSnapshot()
	r.tracker.Unlock()

	if err != nil {
		r.log.Error(ctx, "event rejected by tracker",
			"type", string(ev.Type), "pair", ev.Pair.String(), "error", err.Error())
		return
	}
	r.reporter.ReportEvent(ev)
	r.reporter.ReportOrders(snapshot)
}

// orderSnapshot copies the current legs in triangle order. Caller
// holds the tracker lock.
func (r *Runner) orderSnapshot() []*domain.Order {
	pairs := r.tracker.Pairs()
	out := make([]*domain.Order, 0, len(pairs))
	for _, pair := range pairs {
		if o := r.tracker.Order(pair); o != nil {
			copied := *o
			out = append(out, &copied)
		}
	}
	return out
}
