package binance

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/quantor/triarb/business/books/domain"
	"github.com/quantor/triarb/internal/logger"
)

func testFeed(t *testing.T) *Feed {
	t.Helper()
	cfg := DefaultFeedConfig([]domain.Pair{
		domain.NewPair("BTC", "USDT"),
		domain.NewPair("ETH", "USDT"),
	})
	log := logger.New(io.Discard, logger.LevelError, "test", nil)

	f, err := NewFeed(cfg, log)
	if err != nil {
		t.Fatalf("NewFeed failed: %v", err)
	}
	return f
}

func TestFeed_HandleDepthMessage(t *testing.T) {
	f := testFeed(t)

	msg := []byte(`{
		"stream": "btcusdt@depth20@100ms",
		"data": {
			"lastUpdateId": 42,
			"bids": [["99.5", "1.0"], ["99.0", "2.0"], ["98.0", "0"]],
			"asks": [["100.5", "0.5"]]
		}
	}`)
	f.handleMessage(context.Background(), msg)

	book, ok := f.Book(domain.NewPair("BTC", "USDT"))
	if !ok {
		t.Fatal("expected a book after depth update")
	}
	// The zero-quantity row marks a removed level and is dropped.
	if len(book.Bids) != 2 {
		t.Fatalf("expected 2 bid levels, got %d", len(book.Bids))
	}
	if !book.Bids[0].Price.Equal(decimal.RequireFromString("99.5")) {
		t.Errorf("expected best bid 99.5, got %s", book.Bids[0].Price)
	}
	if len(book.Asks) != 1 || !book.Asks[0].Amount.Equal(decimal.RequireFromString("0.5")) {
		t.Errorf("unexpected asks: %v", book.Asks)
	}
}

func TestFeed_SubscriptionResponseIgnored(t *testing.T) {
	f := testFeed(t)

	f.handleMessage(context.Background(), []byte(`{"result": null, "id": 1}`))

	if _, ok := f.Book(domain.NewPair("BTC", "USDT")); ok {
		t.Fatal("expected no book before any depth update")
	}
}

func TestFeed_UnknownSymbolIgnored(t *testing.T) {
	f := testFeed(t)

	msg := []byte(`{
		"stream": "dogeusdt@depth20@100ms",
		"data": {"lastUpdateId": 1, "bids": [["1", "1"]], "asks": []}
	}`)
	f.handleMessage(context.Background(), msg)

	if _, ok := f.Book(domain.NewPair("DOGE", "USDT")); ok {
		t.Fatal("unconfigured pair should have no book")
	}
}

func TestFeed_StaleBookNotServed(t *testing.T) {
	f := testFeed(t)
	f.config.StaleTimeout = 50 * time.Millisecond

	f.applyDepth(context.Background(), "ETHUSDT", &PartialDepthEvent{
		Bids: [][]string{{"5", "10"}},
		Asks: [][]string{{"5.1", "10"}},
	})

	if _, ok := f.Book(domain.NewPair("ETH", "USDT")); !ok {
		t.Fatal("expected fresh book to be served")
	}

	state := f.books["ETHUSDT"]
	state.mu.Lock()
	state.lastUpdate = time.Now().Add(-time.Second)
	state.mu.Unlock()

	if _, ok := f.Book(domain.NewPair("ETH", "USDT")); ok {
		t.Fatal("expected stale book to be withheld")
	}
}

func TestDepthStream(t *testing.T) {
	got := DepthStream("ETHUSDT", 100)
	want := "ethusdt@depth20@100ms"
	if got != want {
		t.Errorf("expected %s, got %s", want, got)
	}
}
