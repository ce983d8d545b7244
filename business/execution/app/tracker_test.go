package app

import (
	"io"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	booksDomain "github.com/quantor/triarb/business/books/domain"
	"github.com/quantor/triarb/business/execution/domain"
	"github.com/quantor/triarb/internal/logger"
)

var (
	btcUSDT = booksDomain.NewPair("BTC", "USDT")
	ethBTC  = booksDomain.NewPair("ETH", "BTC")
	ethUSDT = booksDomain.NewPair("ETH", "USDT")
)

func testConfig() TrackerConfig {
	return TrackerConfig{
		TradeDelay:     5 * time.Second,
		MaxOrderHang:   10 * time.Second,
		MaxOrderUnsent: 60 * time.Second,
	}
}

func newTestTracker(t *testing.T) *Tracker {
	t.Helper()
	log := logger.New(io.Discard, logger.LevelError, "test", nil)
	return NewTracker(btcUSDT, ethBTC, ethUSDT, testConfig(), log)
}

func testProposals() [3]domain.Proposal {
	return [3]domain.Proposal{
		{Pair: btcUSDT, Side: booksDomain.SideBuy, Price: dec("100"), Amount: dec("1")},
		{Pair: ethBTC, Side: booksDomain.SideBuy, Price: dec("0.05"), Amount: dec("20")},
		{Pair: ethUSDT, Side: booksDomain.SideSell, Price: dec("5"), Amount: dec("20")},
	}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// adopt seeds an opportunity and acknowledges all three placements.
func adopt(t *testing.T, tr *Tracker) {
	t.Helper()
	_, err := tr.AddOpportunity(testProposals())
	require.NoError(t, err)
	for _, pair := range tr.Pairs() {
		require.NoError(t, tr.OrderPlaced(pair))
	}
}

func TestTracker_AddOpportunity(t *testing.T) {
	tr := newTestTracker(t)
	require.True(t, tr.Ready())

	orders, err := tr.AddOpportunity(testProposals())
	require.NoError(t, err)
	require.Len(t, orders, 3)
	assert.False(t, tr.Ready())

	for _, o := range orders {
		assert.Equal(t, domain.StateUnsent, o.State)
		assert.True(t, o.AmountRemaining.Equal(o.Amount))
	}

	// Prices move 0.1% against the trader: buys up, sells down.
	buy := tr.Order(btcUSDT)
	assert.True(t, buy.Price.Equal(dec("100.1")), "buy marked up, got %s", buy.Price)
	sell := tr.Order(ethUSDT)
	assert.True(t, sell.Price.Equal(dec("4.995")), "sell marked down, got %s", sell.Price)
}

func TestTracker_AddOpportunity_UnknownPair(t *testing.T) {
	tr := newTestTracker(t)

	proposals := testProposals()
	proposals[1].Pair = booksDomain.NewPair("DOGE", "USDT")

	_, err := tr.AddOpportunity(proposals)
	require.Error(t, err)
}

func TestTracker_HappyPath(t *testing.T) {
	tr := newTestTracker(t)

	orders, err := tr.AddOpportunity(testProposals())
	require.NoError(t, err)

	actions := tr.NextActions()
	require.Len(t, actions, 3)
	for _, a := range actions {
		assert.Equal(t, domain.ActionPlace, a.Type)
	}

	for _, pair := range tr.Pairs() {
		require.NoError(t, tr.OrderPlaced(pair))
		assert.Equal(t, domain.StateActive, tr.Order(pair).State)
	}

	for _, o := range orders {
		require.NoError(t, tr.Fill(o.Pair, o.Amount))
		require.NoError(t, tr.OrderComplete("id-"+o.Pair.String(), o.Pair))
	}

	assert.True(t, tr.Finished())
	assert.False(t, tr.Reverse())
}

func TestTracker_PartialFill(t *testing.T) {
	tr := newTestTracker(t)
	adopt(t, tr)

	require.NoError(t, tr.Fill(btcUSDT, dec("0.4")))

	o := tr.Order(btcUSDT)
	assert.Equal(t, domain.StatePartialFill, o.State)
	assert.True(t, o.AmountRemaining.Equal(dec("0.6")))
	assert.True(t, o.Filled().Equal(dec("0.4")))
}

func TestTracker_FailTriggersReversal(t *testing.T) {
	tr := newTestTracker(t)
	adopt(t, tr)

	require.NoError(t, tr.Fail(btcUSDT))

	assert.True(t, tr.Reverse())
	assert.Equal(t, domain.StateFailed, tr.Order(btcUSDT).State)
	assert.Equal(t, domain.StateToCancel, tr.Order(ethBTC).State)
	assert.Equal(t, domain.StateToCancel, tr.Order(ethUSDT).State)
}

func TestTracker_FailDuringUnwind(t *testing.T) {
	tr := newTestTracker(t)
	adopt(t, tr)

	require.NoError(t, tr.Fill(ethBTC, dec("20")))
	require.NoError(t, tr.OrderComplete("id-1", ethBTC))
	tr.ReverseExecution()

	// The completed leg now carries a REVERSE_PENDING counterpart;
	// a failure during the unwind is terminal and does not cascade.
	require.Equal(t, domain.StateReversePending, tr.Order(ethBTC).State)
	require.NoError(t, tr.Fail(ethBTC))
	assert.Equal(t, domain.StateReverseFailed, tr.Order(ethBTC).State)
}

func TestTracker_ReverseExecution(t *testing.T) {
	tr := newTestTracker(t)
	adopt(t, tr)

	// Leg states at reversal time: one complete, one partially
	// filled, one still resting.
	require.NoError(t, tr.Fill(btcUSDT, dec("1")))
	require.NoError(t, tr.OrderComplete("id-1", btcUSDT))
	require.NoError(t, tr.Fill(ethBTC, dec("5")))

	tr.ReverseExecution()

	assert.True(t, tr.Reverse())
	assert.Equal(t, domain.StateReversePending, tr.Order(btcUSDT).State)
	assert.Equal(t, domain.StateReversePartialToCancel, tr.Order(ethBTC).State)
	assert.Equal(t, domain.StateToCancel, tr.Order(ethUSDT).State)
}

func TestTracker_ReverseExecutionIdempotent(t *testing.T) {
	tr := newTestTracker(t)
	adopt(t, tr)
	require.NoError(t, tr.Fill(btcUSDT, dec("1")))
	require.NoError(t, tr.OrderComplete("id-1", btcUSDT))

	tr.ReverseExecution()
	before := map[booksDomain.Pair]domain.OrderState{}
	for pair, o := range tr.Orders() {
		before[pair] = o.State
	}

	tr.ReverseExecution()
	for pair, o := range tr.Orders() {
		assert.Equal(t, before[pair], o.State, "state changed for %s", pair)
	}
}

func TestTracker_ReverseOrderConstruction(t *testing.T) {
	tests := []struct {
		name      string
		side      booksDomain.Side
		wantSide  booksDomain.Side
		wantPrice string
	}{
		{name: "buy reversed sells at 1.5x", side: booksDomain.SideBuy, wantSide: booksDomain.SideSell, wantPrice: "150"},
		{name: "sell reversed buys at 0.5x", side: booksDomain.SideSell, wantSide: booksDomain.SideBuy, wantPrice: "50"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := domain.NewOrder(btcUSDT, tt.side, dec("100"), dec("2"))
			o.Fill(dec("2"))
			o.State = domain.StateComplete

			r := reverseOrder(o)
			assert.Equal(t, tt.wantSide, r.Side)
			assert.True(t, r.Price.Equal(dec(tt.wantPrice)), "got %s", r.Price)
			assert.True(t, r.Amount.Equal(dec("2")))
			assert.Equal(t, domain.StateReversePending, r.State)
			assert.Empty(t, r.ID)
		})
	}
}

func TestTracker_ReverseOrderCarriesPreviousFills(t *testing.T) {
	o := domain.NewOrder(btcUSDT, booksDomain.SideBuy, dec("100"), dec("1"))
	o.PreviouslyFilled = dec("0.3")
	o.Fill(dec("0.5"))

	r := reverseOrder(o)
	assert.True(t, r.Amount.Equal(dec("0.8")), "got %s", r.Amount)
}

func TestTracker_HangSynthesizesCompletionOrder(t *testing.T) {
	tr := newTestTracker(t)
	adopt(t, tr)

	hung := tr.Order(ethBTC)
	hung.UpdateOrderID("hung-1")
	require.NoError(t, tr.Fill(ethBTC, dec("8")))
	hung.Activated = time.Now().Add(-testConfig().MaxOrderHang - time.Second)

	// Complete the other two legs so only the hung leg acts.
	for _, pair := range []booksDomain.Pair{btcUSDT, ethUSDT} {
		o := tr.Order(pair)
		require.NoError(t, tr.Fill(pair, o.Amount))
		require.NoError(t, tr.OrderComplete("id-"+pair.String(), pair))
	}

	actions := tr.NextActions()
	require.Len(t, actions, 1)
	assert.Equal(t, domain.ActionCancel, actions[0].Type)
	assert.Same(t, hung, actions[0].Order)
	assert.Equal(t, domain.StatePendingCancel, hung.State)

	completion := tr.Order(ethBTC)
	require.NotSame(t, hung, completion)
	assert.Equal(t, domain.StatePendingPartialToFull, completion.State)
	assert.True(t, completion.Amount.Equal(dec("12")))
	assert.True(t, completion.PreviouslyFilled.Equal(dec("8")))
	assert.True(t, completion.Price.Equal(hung.Price.Mul(dec("1.5"))))
	assert.True(t, tr.AwaitingHangingCompletion())

	// The queued completion drains on the next poll.
	actions = tr.NextActions()
	require.Len(t, actions, 1)
	assert.Equal(t, domain.ActionPlace, actions[0].Type)
	assert.Same(t, completion, actions[0].Order)

	// Once it fills, the hanging flag clears and the triangle is done.
	require.NoError(t, tr.Fill(ethBTC, dec("12")))
	require.NoError(t, tr.OrderComplete("completion-1", ethBTC))
	assert.False(t, tr.AwaitingHangingCompletion())
	assert.True(t, tr.Finished())
}

func TestTracker_HangWithNoFillsIsHanging(t *testing.T) {
	o := domain.NewOrder(ethUSDT, booksDomain.SideSell, dec("4"), dec("20"))

	completion := completePartialOrder(o)
	assert.Equal(t, domain.StateHanging, completion.State)
	assert.True(t, completion.Amount.Equal(dec("20")))
	assert.True(t, completion.PreviouslyFilled.IsZero())
	assert.True(t, completion.Price.Equal(dec("3")), "sell crosses at 0.75x, got %s", completion.Price)
}

func TestTracker_ZeroFillCompletionAcknowledges(t *testing.T) {
	tr := newTestTracker(t)
	adopt(t, tr)

	hung := tr.Order(ethBTC)
	hung.UpdateOrderID("hung-1")
	hung.Activated = time.Now().Add(-testConfig().MaxOrderHang - time.Second)

	for _, pair := range []booksDomain.Pair{btcUSDT, ethUSDT} {
		o := tr.Order(pair)
		require.NoError(t, tr.Fill(pair, o.Amount))
		require.NoError(t, tr.OrderComplete("id-"+pair.String(), pair))
	}

	// No fills against the hung leg, so its replacement starts HANGING.
	actions := tr.NextActions()
	require.Len(t, actions, 1)
	assert.Equal(t, domain.ActionCancel, actions[0].Type)

	completion := tr.Order(ethBTC)
	assert.Equal(t, domain.StateHanging, completion.State)

	actions = tr.NextActions()
	require.Len(t, actions, 1)
	assert.Equal(t, domain.ActionPlace, actions[0].Type)
	assert.Same(t, completion, actions[0].Order)

	// The placement acknowledgment must move the completion past
	// HANGING; otherwise the next poll submits it a second time.
	require.NoError(t, tr.OrderPlaced(ethBTC))
	assert.Equal(t, domain.StatePendingPartialToFull, completion.State)
	assert.Empty(t, tr.NextActions())

	require.NoError(t, tr.Fill(ethBTC, completion.Amount))
	require.NoError(t, tr.OrderComplete("completion-1", ethBTC))
	assert.True(t, tr.Finished())
}

func TestTracker_UnsentTimeoutReverses(t *testing.T) {
	tr := newTestTracker(t)
	_, err := tr.AddOpportunity(testProposals())
	require.NoError(t, err)

	tr.Order(btcUSDT).Conceived = time.Now().Add(-testConfig().MaxOrderUnsent - time.Second)

	actions := tr.NextActions()
	assert.Nil(t, actions)
	assert.True(t, tr.Reverse())
	assert.Equal(t, domain.StateReverseComplete, tr.Order(btcUSDT).State)
}

func TestTracker_AllInWhenOtherLegsComplete(t *testing.T) {
	tr := newTestTracker(t)
	adopt(t, tr)

	for _, pair := range []booksDomain.Pair{btcUSDT, ethBTC} {
		o := tr.Order(pair)
		require.NoError(t, tr.Fill(pair, o.Amount))
		require.NoError(t, tr.OrderComplete("id-"+pair.String(), pair))
	}

	straggler := tr.Order(ethUSDT)
	straggler.State = domain.StateUnsent
	straggler.Conceived = time.Now().Add(-testConfig().MaxOrderUnsent/2 - time.Second)

	actions := tr.NextActions()
	require.Len(t, actions, 1)
	assert.Equal(t, domain.ActionPlaceAllIn, actions[0].Type)
	assert.Same(t, straggler, actions[0].Order)
}

func TestTracker_UnexpectedCancelReverses(t *testing.T) {
	tr := newTestTracker(t)
	adopt(t, tr)

	// A cancel ack for a live order refers to a superseded original
	// and is ignored.
	require.NoError(t, tr.Cancel(btcUSDT))
	assert.False(t, tr.Reverse())
	assert.Equal(t, domain.StateActive, tr.Order(btcUSDT).State)

	// A cancel for a leg with nothing cancel-adjacent in flight is an
	// anomaly and unwinds the triangle.
	require.NoError(t, tr.Fill(ethBTC, dec("20")))
	require.NoError(t, tr.OrderComplete("id-1", ethBTC))
	require.NoError(t, tr.Cancel(ethBTC))
	assert.True(t, tr.Reverse())
}

func TestTracker_ReverseRegimeActions(t *testing.T) {
	tr := newTestTracker(t)
	adopt(t, tr)

	tr.Order(btcUSDT).UpdateOrderID("id-1")
	require.NoError(t, tr.Fill(ethBTC, dec("20")))
	require.NoError(t, tr.OrderComplete("id-2", ethBTC))

	tr.ReverseExecution()

	// btcUSDT is TO_CANCEL with an exchange id, ethBTC carries a
	// REVERSE_PENDING unwind order, ethUSDT is TO_CANCEL with no id
	// and is finalized in place.
	actions := tr.NextActions()
	require.Len(t, actions, 2)

	byType := map[domain.ActionType]*domain.Order{}
	for _, a := range actions {
		byType[a.Type] = a.Order
	}
	require.Contains(t, byType, domain.ActionCancel)
	assert.Equal(t, btcUSDT, byType[domain.ActionCancel].Pair)
	require.Contains(t, byType, domain.ActionPlace)
	assert.Equal(t, ethBTC, byType[domain.ActionPlace].Pair)

	assert.Equal(t, domain.StateReverseComplete, tr.Order(ethUSDT).State)
}

func TestTracker_ReverseCancelReplacesPartial(t *testing.T) {
	tr := newTestTracker(t)
	adopt(t, tr)

	tr.Order(ethBTC).UpdateOrderID("id-1")
	require.NoError(t, tr.Fill(ethBTC, dec("5")))
	tr.ReverseExecution()
	require.Equal(t, domain.StateReversePartialToCancel, tr.Order(ethBTC).State)

	// The cancel ack swaps in the unwind order for the filled part.
	require.NoError(t, tr.Cancel(ethBTC))

	r := tr.Order(ethBTC)
	assert.Equal(t, domain.StateReversePending, r.State)
	assert.Equal(t, booksDomain.SideSell, r.Side)
	assert.True(t, r.Amount.Equal(dec("5")))
}

func TestTracker_FullUnwindFinishes(t *testing.T) {
	tr := newTestTracker(t)
	adopt(t, tr)

	for _, pair := range tr.Pairs() {
		tr.Order(pair).UpdateOrderID("id-" + pair.String())
	}
	require.NoError(t, tr.Fill(btcUSDT, dec("1")))
	require.NoError(t, tr.OrderComplete("id-x", btcUSDT))

	tr.ReverseExecution()

	// Cancel acks resolve the live legs, then the unwind order for
	// the filled leg places and completes.
	require.NoError(t, tr.Cancel(ethBTC))
	require.NoError(t, tr.Cancel(ethUSDT))
	require.NoError(t, tr.OrderPlaced(btcUSDT))
	assert.Equal(t, domain.StateReverseActive, tr.Order(btcUSDT).State)
	require.NoError(t, tr.OrderComplete("unwind-1", btcUSDT))

	assert.True(t, tr.Finished())
	assert.True(t, tr.Reverse())
}

func TestTracker_FinishedRejectsMixture(t *testing.T) {
	tr := newTestTracker(t)
	adopt(t, tr)

	tr.Order(btcUSDT).State = domain.StateComplete
	tr.Order(ethBTC).State = domain.StateComplete
	tr.Order(ethUSDT).State = domain.StateReverseComplete

	assert.False(t, tr.Finished())
}

func TestTracker_Reset(t *testing.T) {
	tr := newTestTracker(t)
	adopt(t, tr)
	tr.ReverseExecution()

	tr.Reset(false)

	assert.False(t, tr.Reverse())
	assert.False(t, tr.Ready())
	assert.True(t, tr.Recovering())
	for _, pair := range tr.Pairs() {
		assert.Nil(t, tr.Order(pair))
	}

	// Ready latches true once the trade delay has elapsed.
	tr.lastTradeTime = time.Now().Add(-testConfig().TradeDelay - time.Second)
	assert.True(t, tr.Ready())
	assert.False(t, tr.Recovering())
}

func TestTracker_ResetOverrideRecovery(t *testing.T) {
	tr := newTestTracker(t)
	adopt(t, tr)

	tr.Reset(true)
	assert.True(t, tr.Ready())
	assert.False(t, tr.Recovering())
}

func TestTracker_EventsForUnknownPair(t *testing.T) {
	tr := newTestTracker(t)
	adopt(t, tr)

	unknown := booksDomain.NewPair("DOGE", "USDT")
	assert.Error(t, tr.Fail(unknown))
	assert.Error(t, tr.Cancel(unknown))
	assert.Error(t, tr.Fill(unknown, dec("1")))
	assert.Error(t, tr.OrderPlaced(unknown))
	assert.Error(t, tr.OrderComplete("id", unknown))
}

func TestTracker_EventsBeforeOpportunity(t *testing.T) {
	tr := newTestTracker(t)
	assert.Error(t, tr.Fill(btcUSDT, dec("1")))
	assert.Empty(t, tr.NextActions())
}
