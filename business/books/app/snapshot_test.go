package app

import (
	"context"
	"io"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/quantor/triarb/business/books/domain"
	"github.com/quantor/triarb/internal/logger"
)

type mapBookSource map[domain.Pair]domain.Book

func (m mapBookSource) Book(pair domain.Pair) (domain.Book, bool) {
	b, ok := m[pair]
	return b, ok
}

type mapWalletSource map[string]decimal.Decimal

func (m mapWalletSource) Balance(_ context.Context, currency string) (decimal.Decimal, error) {
	return m[currency], nil
}

func testSnapshotter(t *testing.T, books mapBookSource, wallets mapWalletSource, fee, threshold string) *Snapshotter {
	t.Helper()
	log := logger.New(io.Discard, logger.LevelError, "test", nil)
	return NewSnapshotter(testTriangle(t), books, wallets, SnapshotterConfig{
		Fee:             dec(fee),
		ProfitThreshold: dec(threshold),
	}, log)
}

func profitableBooks() mapBookSource {
	return mapBookSource{
		domain.NewPair("BTC", "USDT"): {
			Pair: domain.NewPair("BTC", "USDT"),
			Asks: makeLevels([2]string{"100", "1"}),
			Bids: makeLevels([2]string{"99", "1"}),
		},
		domain.NewPair("ETH", "BTC"): {
			Pair: domain.NewPair("ETH", "BTC"),
			Asks: makeLevels([2]string{"0.05", "20"}),
			Bids: makeLevels([2]string{"0.049", "20"}),
		},
		// Selling ETH at 5.2 makes the cycle return 4% over par.
		domain.NewPair("ETH", "USDT"): {
			Pair: domain.NewPair("ETH", "USDT"),
			Asks: makeLevels([2]string{"5.3", "100"}),
			Bids: makeLevels([2]string{"5.2", "100"}),
		},
	}
}

func TestSnapshotter_DetectsClockwiseOpportunity(t *testing.T) {
	wallets := mapWalletSource{"USDT": dec("100")}
	s := testSnapshotter(t, profitableBooks(), wallets, "0", "0.002")

	proposals, ok, err := s.Next(context.Background())
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	if !ok {
		t.Fatal("expected an opportunity")
	}

	// Leg sizes follow the proceeds chain: 100 USDT buys 1 BTC, which
	// buys 20 ETH, which sells into the 5.2 bid.
	if !proposals[0].Amount.Equal(dec("1")) || !proposals[0].Price.Equal(dec("100")) {
		t.Errorf("leg 1: got %s@%s", proposals[0].Amount, proposals[0].Price)
	}
	if proposals[0].Side != domain.SideBuy {
		t.Errorf("leg 1: expected buy, got %s", proposals[0].Side)
	}
	if !proposals[1].Amount.Equal(dec("20")) {
		t.Errorf("leg 2: got %s", proposals[1].Amount)
	}
	if !proposals[2].Amount.Equal(dec("20")) || proposals[2].Side != domain.SideSell {
		t.Errorf("leg 3: got %s %s", proposals[2].Amount, proposals[2].Side)
	}
}

func TestSnapshotter_BelowThresholdIsQuiet(t *testing.T) {
	books := profitableBooks()
	ethUSDT := domain.NewPair("ETH", "USDT")
	b := books[ethUSDT]
	b.Bids = makeLevels([2]string{"4.9", "100"})
	books[ethUSDT] = b

	s := testSnapshotter(t, books, mapWalletSource{"USDT": dec("100")}, "0", "0.002")

	_, ok, err := s.Next(context.Background())
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	if ok {
		t.Fatal("expected no opportunity below threshold")
	}
}

func TestSnapshotter_FeeDragKillsMarginalCycle(t *testing.T) {
	// 4% gross surplus, but three legs at 1.5% fee each eat it.
	s := testSnapshotter(t, profitableBooks(), mapWalletSource{"USDT": dec("100")}, "0.015", "0.002")

	_, ok, err := s.Next(context.Background())
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	if ok {
		t.Fatal("expected fee drag to kill the opportunity")
	}
}

func TestSnapshotter_MissingBookIsQuiet(t *testing.T) {
	books := profitableBooks()
	delete(books, domain.NewPair("ETH", "BTC"))

	s := testSnapshotter(t, books, mapWalletSource{"USDT": dec("100")}, "0", "0.002")

	_, ok, err := s.Next(context.Background())
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	if ok {
		t.Fatal("expected no opportunity without all three books")
	}
}
