package app

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/quantor/triarb/business/books/domain"
)

// BookSource provides raw order-book snapshots for the triangle's
// markets. Implementations keep books current from an exchange feed;
// Book never blocks on the network.
type BookSource interface {
	// Book returns the latest snapshot for a pair. ok is false when no
	// snapshot has arrived yet or the last one went stale.
	Book(pair domain.Pair) (book domain.Book, ok bool)
}

// WalletSource provides free balances for the currencies funding the
// triangle's legs.
type WalletSource interface {
	Balance(ctx context.Context, currency string) (decimal.Decimal, error)
}
