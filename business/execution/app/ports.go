package app

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/quantor/triarb/business/execution/domain"
)

// Connector defines the narrow exchange surface the execution loop
// drives. Implementations wrap one venue's REST/WebSocket API; the
// tracker itself never touches a connector.
type Connector interface {
	// PlaceOrder submits a limit order and returns once the exchange
	// accepts the request. Acknowledgment, fills, and completion
	// arrive later on the Events stream.
	PlaceOrder(ctx context.Context, order *domain.Order) error

	// CancelOrder requests cancellation of a resting order by its
	// exchange id. The cancel acknowledgment arrives on Events.
	CancelOrder(ctx context.Context, order *domain.Order) error

	// Balance returns the free balance for one currency.
	Balance(ctx context.Context, currency string) (decimal.Decimal, error)

	// Events returns the stream of asynchronous order notifications.
	// The channel closes when the connector shuts down.
	Events() <-chan domain.Event

	// Close releases the connector's network resources.
	Close() error
}

// OpportunitySource produces sized three-leg proposals when the books
// currently admit a profitable traversal.
type OpportunitySource interface {
	// Next returns the best current proposal set, or ok=false when no
	// opportunity clears the profit threshold right now.
	Next(ctx context.Context) (proposals [3]domain.Proposal, ok bool, err error)
}

// Reporter defines the interface for surfacing execution progress.
type Reporter interface {
	// Start initializes the reporter.
	Start(ctx context.Context) error

	// ReportOrders pushes the current per-leg order snapshot.
	ReportOrders(orders []*domain.Order)

	// ReportEvent surfaces one exchange notification.
	ReportEvent(ev domain.Event)

	// ReportOutcome records the terminal result of one opportunity.
	ReportOutcome(reversed bool, duration time.Duration)

	// UpdateConnectionStatus updates a connection status display.
	UpdateConnectionStatus(name string, connected bool, latency time.Duration)

	// Stop gracefully shuts down the reporter.
	Stop() error
}
