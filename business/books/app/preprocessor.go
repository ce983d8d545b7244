// Package app contains application services and port definitions for the market-data context.
package app

import (
	"github.com/shopspring/decimal"

	"github.com/quantor/triarb/business/books/domain"
)

// legTrimmer trims one leg's raw book to the depth affordable with the
// given funds, returning the tradable ladder for that leg.
type legTrimmer func(book domain.Book, funds decimal.Decimal) []domain.Level

// proceedsFunc computes the funds a trimmed leg generates for the next
// leg, net of fees. The zero function is substituted when two adjacent
// legs do not chain.
type proceedsFunc func(levels []domain.Level, fee decimal.Decimal) decimal.Decimal

// sequence is the precomputed descriptor for one traversal direction:
// which book side each leg consumes and how proceeds flow leg to leg.
type sequence struct {
	trimFirst      legTrimmer
	trimSecond     legTrimmer
	trimThird      legTrimmer
	proceedsFirst  proceedsFunc
	proceedsSecond proceedsFunc
}

// Preprocessor converts raw order books plus available wallet balances
// into the depth actually fillable at each leg of a triangle, with fee
// drag applied as proceeds flow from one leg into the next.
//
// Both traversal directions are resolved once at construction; the
// per-call work is three ladder walks.
type Preprocessor struct {
	triangle  domain.Triangle
	clockwise sequence
	counter   sequence
}

// NewPreprocessor builds the two direction descriptors for a triangle.
func NewPreprocessor(triangle domain.Triangle) *Preprocessor {
	return &Preprocessor{
		triangle:  triangle,
		clockwise: buildSequence(triangle.Clockwise()),
		counter:   buildSequence(triangle.CounterClockwise()),
	}
}

// Triangle returns the triangle this preprocessor was built for.
func (p *Preprocessor) Triangle() domain.Triangle {
	return p.triangle
}

// PreprocessClockwise trims the three books for the clockwise
// traversal. Books are passed and returned in traversal order;
// wallets[i] is the balance available to fund the i-th leg.
func (p *Preprocessor) PreprocessClockwise(first, second, third domain.Book, wallets [3]decimal.Decimal, fee decimal.Decimal) [3][]domain.Level {
	return run(p.clockwise, first, second, third, wallets, fee)
}

// PreprocessCounterClockwise is the mirror image of
// PreprocessClockwise: the cycle walked the other way, so books are
// passed in counter-clockwise traversal order and each leg consumes
// the opposite book side.
func (p *Preprocessor) PreprocessCounterClockwise(first, second, third domain.Book, wallets [3]decimal.Decimal, fee decimal.Decimal) [3][]domain.Level {
	return run(p.counter, first, second, third, wallets, fee)
}

func run(seq sequence, first, second, third domain.Book, wallets [3]decimal.Decimal, fee decimal.Decimal) [3][]domain.Level {
	one := seq.trimFirst(first, wallets[0])
	p1 := seq.proceedsFirst(one, fee)

	two := seq.trimSecond(second, wallets[1].Add(p1))
	p2 := seq.proceedsSecond(two, fee)

	three := seq.trimThird(third, wallets[2].Add(p2))

	return [3][]domain.Level{one, two, three}
}

func buildSequence(edges [3]domain.Edge) sequence {
	return sequence{
		trimFirst:      trimmerFor(edges[0]),
		trimSecond:     trimmerFor(edges[1]),
		trimThird:      trimmerFor(edges[2]),
		proceedsFirst:  proceedsFor(edges[0], edges[1]),
		proceedsSecond: proceedsFor(edges[1], edges[2]),
	}
}

// trimmerFor selects the raw-book side an edge consumes: a buy eats
// into asks with quote-currency funds, a sell into bids with base.
func trimmerFor(e domain.Edge) legTrimmer {
	if e.Side == domain.SideBuy {
		return func(b domain.Book, funds decimal.Decimal) []domain.Level {
			return TrimAsks(b.Asks, funds)
		}
	}
	return func(b domain.Book, funds decimal.Decimal) []domain.Level {
		return TrimBids(b.Bids, funds)
	}
}

// proceedsFor returns the proceeds function for edge cur feeding edge
// next. Proceeds only chain when both legs trade on the same venue and
// the output currency of one is the input currency of the other;
// otherwise the leg contributes nothing (not an error).
func proceedsFor(cur, next domain.Edge) proceedsFunc {
	if cur.Venue != next.Venue || cur.Output() != next.Input() {
		return zeroProceeds
	}
	if cur.Side == domain.SideBuy {
		return ProceedsOfBuy
	}
	return ProceedsOfSell
}

func zeroProceeds([]domain.Level, decimal.Decimal) decimal.Decimal {
	return decimal.Zero
}

// TrimAsks walks the ask ladder in quoted order, accumulating
// quote-currency cost until the next level would exceed totalFunds;
// that level is included partially and the walk stops. If the whole
// book is affordable every level is returned unmodified.
func TrimAsks(asks []domain.Level, totalFunds decimal.Decimal) []domain.Level {
	out := make([]domain.Level, 0, len(asks))
	spent := decimal.Zero

	for _, lvl := range asks {
		cost := lvl.Cost()
		if spent.Add(cost).GreaterThan(totalFunds) {
			if lvl.Price.IsPositive() {
				partial := totalFunds.Sub(spent).Div(lvl.Price)
				out = append(out, domain.Level{Price: lvl.Price, Amount: partial})
			}
			return out
		}
		spent = spent.Add(cost)
		out = append(out, lvl)
	}
	return out
}

// TrimBids is the sell-side walk. Funds are denominated in base
// currency, so levels accumulate by amount with no price
// multiplication.
func TrimBids(bids []domain.Level, totalFunds decimal.Decimal) []domain.Level {
	out := make([]domain.Level, 0, len(bids))
	used := decimal.Zero

	for _, lvl := range bids {
		if used.Add(lvl.Amount).GreaterThan(totalFunds) {
			partial := totalFunds.Sub(used)
			out = append(out, domain.Level{Price: lvl.Price, Amount: partial})
			return out
		}
		used = used.Add(lvl.Amount)
		out = append(out, lvl)
	}
	return out
}

// ProceedsOfBuy returns the base-currency amount a trimmed buy leg
// yields, net of fee.
func ProceedsOfBuy(asks []domain.Level, fee decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, lvl := range asks {
		total = total.Add(lvl.Amount)
	}
	return total.Mul(decimal.NewFromInt(1).Sub(fee))
}

// ProceedsOfSell returns the quote-currency amount a trimmed sell leg
// yields, net of fee.
func ProceedsOfSell(bids []domain.Level, fee decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, lvl := range bids {
		total = total.Add(lvl.Cost())
	}
	return total.Mul(decimal.NewFromInt(1).Sub(fee))
}
