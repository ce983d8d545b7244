package paper

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
	"github.com/quantor/triarb/internal/asset"
	"github.com/quantor/triarb/internal/logger"
)

type mapBooks map[booksDomain.Pair]booksDomain.Book

func (m mapBooks) Book(pair booksDomain.Pair) (booksDomain.Book, bool) {
	b, ok := m[pair]
	return b, ok
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

var btcUSDT = booksDomain.NewPair("BTC", "USDT")

func newTestConnector(t *testing.T, books mapBooks) *Connector {
	t.Helper()
	cfg := DefaultConfig()
	log := logger.New(io.Discard, logger.LevelError, "test", nil)

	c := NewConnector(cfg, books, asset.DefaultRegistry(), log)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func takeEvent(t *testing.T, c *Connector) domain.Event {
	t.Helper()
	select {
	case ev := <-c.Events():
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return domain.Event{}
	}
}

func buyOrder(price, amount string) *domain.Order {
	return domain.NewOrder(btcUSDT, booksDomain.SideBuy, dec(price), dec(amount))
}

func TestConnector_PlaceEmitsAcknowledgment(t *testing.T) {
	c := newTestConnector(t, mapBooks{})

	err := c.PlaceOrder(context.Background(), buyOrder("100", "1"))
	require.NoError(t, err)

	ev := takeEvent(t, c)
	assert.Equal(t, domain.EventPlaced, ev.Type)
	assert.Equal(t, btcUSDT, ev.Pair)
	assert.NotEmpty(t, ev.OrderID)
}

func TestConnector_CrossedBuyFillsAndSettles(t *testing.T) {
	books := mapBooks{
		btcUSDT: {Pair: btcUSDT, Asks: []booksDomain.Level{{Price: dec("99.5"), Amount: dec("2")}}},
	}
	c := newTestConnector(t, books)
	ctx := context.Background()

	require.NoError(t, c.PlaceOrder(ctx, buyOrder("100", "1")))
	takeEvent(t, c) // placed

	c.matchOnce(ctx)

	fill := takeEvent(t, c)
	assert.Equal(t, domain.EventFill, fill.Type)
	assert.True(t, fill.Amount.Equal(dec("1")), "fill amount %s", fill.Amount)

	complete := takeEvent(t, c)
	assert.Equal(t, domain.EventComplete, complete.Type)

	usdt, err := c.Balance(ctx, "USDT")
	require.NoError(t, err)
	assert.True(t, usdt.Equal(dec("900.5")), "USDT balance %s", usdt)

	btc, err := c.Balance(ctx, "BTC")
	require.NoError(t, err)
	assert.True(t, btc.Equal(dec("0.999")), "BTC balance %s", btc)
}

func TestConnector_PartialThenFullFill(t *testing.T) {
	books := mapBooks{
		btcUSDT: {Pair: btcUSDT, Asks: []booksDomain.Level{{Price: dec("100"), Amount: dec("0.4")}}},
	}
	c := newTestConnector(t, books)
	ctx := context.Background()

	require.NoError(t, c.PlaceOrder(ctx, buyOrder("100", "1")))
	takeEvent(t, c)

	c.matchOnce(ctx)
	fill := takeEvent(t, c)
	assert.Equal(t, domain.EventFill, fill.Type)
	assert.True(t, fill.Amount.Equal(dec("0.4")))

	books[btcUSDT] = booksDomain.Book{
		Pair: btcUSDT,
		Asks: []booksDomain.Level{{Price: dec("100"), Amount: dec("1")}},
	}
	c.matchOnce(ctx)

	fill2 := takeEvent(t, c)
	assert.True(t, fill2.Amount.Equal(dec("0.6")), "remainder fill %s", fill2.Amount)
	assert.Equal(t, domain.EventComplete, takeEvent(t, c).Type)
}

func TestConnector_UncrossedOrderRests(t *testing.T) {
	books := mapBooks{
		btcUSDT: {Pair: btcUSDT, Asks: []booksDomain.Level{{Price: dec("101"), Amount: dec("5")}}},
	}
	c := newTestConnector(t, books)
	ctx := context.Background()

	require.NoError(t, c.PlaceOrder(ctx, buyOrder("100", "1")))
	takeEvent(t, c)

	c.matchOnce(ctx)

	select {
	case ev := <-c.Events():
		t.Fatalf("unexpected event %v", ev)
	default:
	}
}

func TestConnector_SellFillsAgainstBids(t *testing.T) {
	books := mapBooks{
		btcUSDT: {Pair: btcUSDT, Bids: []booksDomain.Level{{Price: dec("102"), Amount: dec("3")}}},
	}
	c := newTestConnector(t, books)
	ctx := context.Background()

	order := domain.NewOrder(btcUSDT, booksDomain.SideSell, dec("100"), dec("2"))
	require.NoError(t, c.PlaceOrder(ctx, order))
	takeEvent(t, c)

	c.matchOnce(ctx)
	fill := takeEvent(t, c)
	assert.True(t, fill.Amount.Equal(dec("2")))
	assert.Equal(t, domain.EventComplete, takeEvent(t, c).Type)

	// Sold 2 at the better bid price of 102; proceeds 204 less the
	// 0.1% fee, truncated to USDT precision.
	usdt, err := c.Balance(ctx, "USDT")
	require.NoError(t, err)
	assert.True(t, usdt.Equal(dec("1203.79")), "USDT balance %s", usdt)
}

func TestConnector_CancelResting(t *testing.T) {
	c := newTestConnector(t, mapBooks{})
	ctx := context.Background()

	require.NoError(t, c.PlaceOrder(ctx, buyOrder("100", "1")))
	placed := takeEvent(t, c)

	order := buyOrder("100", "1")
	order.ID = placed.OrderID
	require.NoError(t, c.CancelOrder(ctx, order))

	ev := takeEvent(t, c)
	assert.Equal(t, domain.EventCancel, ev.Type)
	assert.Equal(t, placed.OrderID, ev.OrderID)
}

func TestConnector_CancelUnknownOrder(t *testing.T) {
	c := newTestConnector(t, mapBooks{})

	order := buyOrder("100", "1")
	order.ID = "missing"

	err := c.CancelOrder(context.Background(), order)
	require.Error(t, err)
	assert.Equal(t, apperror.CodeOrderNotFound, apperror.GetCode(err))
}

func TestConnector_RejectsDustOrder(t *testing.T) {
	c := newTestConnector(t, mapBooks{})

	err := c.PlaceOrder(context.Background(), buyOrder("100", "0.000000001"))
	require.Error(t, err)
	assert.Equal(t, apperror.CodeInvalidTradeSize, apperror.GetCode(err))
}
