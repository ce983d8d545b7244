package app

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/quantor/triarb/business/books/domain"
	executionDomain "github.com/quantor/triarb/business/execution/domain"
	"github.com/quantor/triarb/internal/apperror"
	"github.com/quantor/triarb/internal/logger"
)

var one = decimal.NewFromInt(1)

// SnapshotterConfig holds the opportunity-detection settings.
type SnapshotterConfig struct {
	// Fee is the taker fee rate applied per leg, e.g. 0.001.
	Fee decimal.Decimal

	// ProfitThreshold is the minimum round-trip rate surplus required
	// before a traversal is proposed, e.g. 0.002 for 0.2%.
	ProfitThreshold decimal.Decimal
}

// Snapshotter turns live books and wallet balances into sized
// three-leg proposals. It runs the preprocessor over both traversal
// directions and proposes the more profitable one when it clears the
// threshold.
type Snapshotter struct {
	triangle domain.Triangle
	pre      *Preprocessor
	books    BookSource
	wallets  WalletSource
	cfg      SnapshotterConfig
	log      logger.LoggerInterface
}

// NewSnapshotter creates a snapshotter for one triangle.
func NewSnapshotter(
	triangle domain.Triangle,
	books BookSource,
	wallets WalletSource,
	cfg SnapshotterConfig,
	log logger.LoggerInterface,
) *Snapshotter {
	return &Snapshotter{
		triangle: triangle,
		pre:      NewPreprocessor(triangle),
		books:    books,
		wallets:  wallets,
		cfg:      cfg,
		log:      log,
	}
}

// Next returns the best current proposal set, or ok=false when neither
// traversal direction clears the profit threshold.
func (s *Snapshotter) Next(ctx context.Context) ([3]executionDomain.Proposal, bool, error) {
	var none [3]executionDomain.Proposal

	cw := s.triangle.Clockwise()
	ccw := s.triangle.CounterClockwise()

	cwBooks, ok := s.collectBooks(cw)
	if !ok {
		return none, false, nil
	}
	ccwBooks := [3]domain.Book{cwBooks[2], cwBooks[1], cwBooks[0]}

	cwWallets, err := s.collectWallets(ctx, cw)
	if err != nil {
		return none, false, err
	}
	ccwWallets, err := s.collectWallets(ctx, ccw)
	if err != nil {
		return none, false, err
	}

	cwTrimmed := s.pre.PreprocessClockwise(cwBooks[0], cwBooks[1], cwBooks[2], cwWallets, s.cfg.Fee)
	ccwTrimmed := s.pre.PreprocessCounterClockwise(ccwBooks[0], ccwBooks[1], ccwBooks[2], ccwWallets, s.cfg.Fee)

	cwRate := s.roundTripRate(cw, cwTrimmed)
	ccwRate := s.roundTripRate(ccw, ccwTrimmed)

	floor := one.Add(s.cfg.ProfitThreshold)
	switch {
	case cwRate.GreaterThanOrEqual(floor) && cwRate.GreaterThanOrEqual(ccwRate):
		s.log.Info(ctx, "opportunity detected", "direction", "clockwise", "rate", cwRate.String())
		return s.proposals(cw, cwTrimmed)
	case ccwRate.GreaterThanOrEqual(floor):
		s.log.Info(ctx, "opportunity detected", "direction", "counter_clockwise", "rate", ccwRate.String())
		return s.proposals(ccw, ccwTrimmed)
	}
	return none, false, nil
}

// collectBooks fetches the three snapshots in traversal order.
func (s *Snapshotter) collectBooks(edges [3]domain.Edge) ([3]domain.Book, bool) {
	var out [3]domain.Book
	for i, e := range edges {
		book, ok := s.books.Book(e.Pair)
		if !ok || book.Empty() {
			return out, false
		}
		out[i] = book
	}
	return out, true
}

// collectWallets fetches the balance funding each leg's input currency.
func (s *Snapshotter) collectWallets(ctx context.Context, edges [3]domain.Edge) ([3]decimal.Decimal, error) {
	var out [3]decimal.Decimal
	for i, e := range edges {
		bal, err := s.wallets.Balance(ctx, e.Input())
		if err != nil {
			return out, apperror.Wrap(err, apperror.CodeBalanceFetchFailed, e.Input())
		}
		out[i] = bal
	}
	return out, nil
}

// roundTripRate multiplies the per-leg conversion rates at the trimmed
// top of book, net of fees. A rate above 1 means the cycle returns
// more of the starting currency than it consumes.
func (s *Snapshotter) roundTripRate(edges [3]domain.Edge, trimmed [3][]domain.Level) decimal.Decimal {
	rate := one
	feeKeep := one.Sub(s.cfg.Fee)

	for i, e := range edges {
		if len(trimmed[i]) == 0 {
			return decimal.Zero
		}
		top := trimmed[i][0]
		if !top.Price.IsPositive() {
			return decimal.Zero
		}
		if e.Side == domain.SideBuy {
			rate = rate.Div(top.Price).Mul(feeKeep)
		} else {
			rate = rate.Mul(top.Price).Mul(feeKeep)
		}
	}
	return rate
}

// proposals extracts top-of-trimmed-book price and amount per leg.
func (s *Snapshotter) proposals(edges [3]domain.Edge, trimmed [3][]domain.Level) ([3]executionDomain.Proposal, bool, error) {
	var out [3]executionDomain.Proposal
	for i, e := range edges {
		if len(trimmed[i]) == 0 {
			return out, false, nil
		}
		top := trimmed[i][0]
		if !top.Amount.IsPositive() {
			return out, false, nil
		}
		out[i] = executionDomain.Proposal{
			Pair:   e.Pair,
			Side:   e.Side,
			Price:  top.Price,
			Amount: top.Amount,
		}
	}
	return out, true, nil
}
