package domain

import "fmt"

// Edge is one directed leg of a triangle: a market plus the trade type
// executed on it when the triangle is traversed in its base direction.
type Edge struct {
	Pair  Pair
	Side  Side
	Venue string // market id; proceeds only chain between legs on the same venue
}

// Input returns the currency spent when executing the edge.
func (e Edge) Input() string {
	if e.Side == SideBuy {
		return e.Pair.Quote
	}
	return e.Pair.Base
}

// Output returns the currency received when executing the edge.
func (e Edge) Output() string {
	if e.Side == SideBuy {
		return e.Pair.Base
	}
	return e.Pair.Quote
}

// Reversed returns the same market traded in the opposite direction.
func (e Edge) Reversed() Edge {
	return Edge{Pair: e.Pair, Side: e.Side.Opposite(), Venue: e.Venue}
}

// Triangle is a cycle of three directed edges. The edges are stored in
// clockwise traversal order; the counter-clockwise traversal is the
// same markets with every side flipped.
type Triangle struct {
	First  Edge
	Second Edge
	Third  Edge
}

// NewTriangle validates and creates a triangle from its clockwise edges.
func NewTriangle(first, second, third Edge) (Triangle, error) {
	for _, e := range [3]Edge{first, second, third} {
		if !e.Side.Valid() {
			return Triangle{}, fmt.Errorf("books: invalid side %q for %s", e.Side, e.Pair)
		}
		if e.Pair.IsZero() {
			return Triangle{}, fmt.Errorf("books: triangle edge with empty pair")
		}
	}
	if first.Pair == second.Pair || second.Pair == third.Pair || first.Pair == third.Pair {
		return Triangle{}, fmt.Errorf("books: triangle edges must be three distinct markets")
	}
	return Triangle{First: first, Second: second, Third: third}, nil
}

// Clockwise returns the edges in clockwise traversal order.
func (t Triangle) Clockwise() [3]Edge {
	return [3]Edge{t.First, t.Second, t.Third}
}

// CounterClockwise returns the mirror traversal: the same markets
// walked in the opposite order with every side flipped, so each leg
// consumes the opposite book side and the proceeds chain runs the
// other way around the cycle.
func (t Triangle) CounterClockwise() [3]Edge {
	return [3]Edge{t.Third.Reversed(), t.Second.Reversed(), t.First.Reversed()}
}

// Pairs returns the three markets in traversal order.
func (t Triangle) Pairs() [3]Pair {
	return [3]Pair{t.First.Pair, t.Second.Pair, t.Third.Pair}
}
