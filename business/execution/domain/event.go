package domain

import (
	"time"

	"github.com/shopspring/decimal"

	booksDomain "github.com/quantor/triarb/business/books/domain"
)

// EventType tags the exchange notifications the tracker consumes.
type EventType string

const (
	EventPlaced   EventType = "placed"
	EventFill     EventType = "fill"
	EventComplete EventType = "complete"
	EventCancel   EventType = "cancel"
	EventFail     EventType = "fail"
)

// Event is one asynchronous notification from an exchange connection.
type Event struct {
	Type      EventType
	Pair      booksDomain.Pair
	OrderID   string
	Amount    decimal.Decimal // filled quantity, only set for fills
	Reason    string          // connector detail for failures
	Timestamp time.Time
}

// Proposal is one leg of a detected opportunity as handed to the
// tracker: the tradable top of the preprocessed book.
type Proposal struct {
	Pair   booksDomain.Pair
	Side   booksDomain.Side
	Price  decimal.Decimal
	Amount decimal.Decimal
}
