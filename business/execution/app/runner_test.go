package app

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	booksDomain "github.com/quantor/triarb/business/books/domain"
	"github.com/quantor/triarb/business/execution/domain"
	"github.com/quantor/triarb/internal/apperror"
	"github.com/quantor/triarb/internal/logger"
)

type fakeConnector struct {
	placed   []*domain.Order
	canceled []*domain.Order
	events   chan domain.Event
	balance  decimal.Decimal
	placeErr error
}

func newFakeConnector() *fakeConnector {
	return &fakeConnector{
		events:  make(chan domain.Event, 16),
		balance: decimal.RequireFromString("1000"),
	}
}

func (f *fakeConnector) PlaceOrder(_ context.Context, o *domain.Order) error {
	if f.placeErr != nil {
		return f.placeErr
	}
	f.placed = append(f.placed, o)
	return nil
}

func (f *fakeConnector) CancelOrder(_ context.Context, o *domain.Order) error {
	f.canceled = append(f.canceled, o)
	return nil
}

func (f *fakeConnector) Balance(_ context.Context, _ string) (decimal.Decimal, error) {
	return f.balance, nil
}

func (f *fakeConnector) Events() <-chan domain.Event { return f.events }
func (f *fakeConnector) Close() error                { return nil }

type fakeSource struct {
	proposals [3]domain.Proposal
	ok        bool
}

func (f *fakeSource) Next(_ context.Context) ([3]domain.Proposal, bool, error) {
	return f.proposals, f.ok, nil
}

type fakeReporter struct {
	events   []domain.Event
	outcomes []bool
}

func (f *fakeReporter) Start(_ context.Context) error                        { return nil }
func (f *fakeReporter) ReportOrders(_ []*domain.Order)                       {}
func (f *fakeReporter) ReportEvent(ev domain.Event)                          { f.events = append(f.events, ev) }
func (f *fakeReporter) ReportOutcome(reversed bool, _ time.Duration)         { f.outcomes = append(f.outcomes, reversed) }
func (f *fakeReporter) UpdateConnectionStatus(_ string, _ bool, _ time.Duration) {}
func (f *fakeReporter) Stop() error                                          { return nil }

func newTestRunner(t *testing.T) (*Runner, *fakeConnector, *fakeSource, *fakeReporter) {
	t.Helper()

	log := logger.New(io.Discard, logger.LevelError, "test", nil)
	tracker := NewTracker(btcUSDT, ethBTC, ethUSDT, testConfig(), log)
	connector := newFakeConnector()
	source := &fakeSource{proposals: testProposals(), ok: true}
	reporter := &fakeReporter{}

	runner, err := NewRunner(tracker, connector, source, reporter, RunnerConfig{
		PollInterval:   10 * time.Millisecond,
		OrderRateLimit: 6000,
	}, log)
	require.NoError(t, err)
	return runner, connector, source, reporter
}

func TestRunner_AdoptsAndPlaces(t *testing.T) {
	runner, connector, _, _ := newTestRunner(t)
	ctx := context.Background()

	// First poll adopts; the tracker is no longer ready.
	runner.poll(ctx)
	assert.False(t, runner.tracker.Ready())
	assert.NotNil(t, runner.tracker.Order(btcUSDT))

	// Second poll places all three unsent legs.
	runner.poll(ctx)
	require.Len(t, connector.placed, 3)
	for _, o := range connector.placed {
		assert.Equal(t, domain.StatePending, o.State)
	}
}

func TestRunner_EventFlowToSettlement(t *testing.T) {
	runner, _, _, reporter := newTestRunner(t)
	ctx := context.Background()

	runner.poll(ctx)
	runner.poll(ctx)

	for i, pair := range runner.tracker.Pairs() {
		runner.handleEvent(ctx, domain.Event{Type: domain.EventPlaced, Pair: pair, OrderID: "id-" + pair.String()})
		o := runner.tracker.Order(pair)
		require.Equal(t, domain.StateActive, o.State)
		assert.Equal(t, "id-"+pair.String(), o.ID)

		runner.handleEvent(ctx, domain.Event{Type: domain.EventFill, Pair: pair, Amount: o.Amount})
		runner.handleEvent(ctx, domain.Event{Type: domain.EventComplete, Pair: pair, OrderID: o.ID})
		assert.Len(t, reporter.events, (i+1)*3)
	}

	require.True(t, runner.tracker.Finished())

	// Settlement poll reports the outcome and resets for the next one.
	runner.poll(ctx)
	require.Len(t, reporter.outcomes, 1)
	assert.False(t, reporter.outcomes[0])
	assert.True(t, runner.tracker.Recovering())
	assert.Nil(t, runner.tracker.Order(btcUSDT))
}

func TestRunner_PlaceFailureFailsLeg(t *testing.T) {
	runner, connector, _, _ := newTestRunner(t)
	ctx := context.Background()

	runner.poll(ctx)
	connector.placeErr = apperror.New(apperror.CodeOrderPlacementFailed)
	runner.poll(ctx)

	assert.True(t, runner.tracker.Reverse())
}

func TestRunner_SizeAllIn(t *testing.T) {
	runner, connector, _, _ := newTestRunner(t)
	ctx := context.Background()
	connector.balance = decimal.RequireFromString("500")

	buy := domain.NewOrder(btcUSDT, booksDomain.SideBuy, decimal.RequireFromString("100"), decimal.RequireFromString("1"))
	require.NoError(t, runner.sizeAllIn(ctx, buy))
	assert.True(t, buy.Amount.Equal(decimal.RequireFromString("5")), "quote balance over price, got %s", buy.Amount)
	assert.True(t, buy.AllIn)

	sell := domain.NewOrder(ethUSDT, booksDomain.SideSell, decimal.RequireFromString("5"), decimal.RequireFromString("1"))
	require.NoError(t, runner.sizeAllIn(ctx, sell))
	assert.True(t, sell.Amount.Equal(decimal.RequireFromString("500")))
}

func TestRunner_SourceNotReadyIsQuiet(t *testing.T) {
	runner, connector, source, _ := newTestRunner(t)
	source.ok = false

	runner.poll(context.Background())
	assert.True(t, runner.tracker.Ready())
	assert.Empty(t, connector.placed)
}
