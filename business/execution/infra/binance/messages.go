// Package binance implements the execution Connector against the
// Binance spot REST API and user data stream.
package binance

import (
	"strings"

	booksDomain "github.com/quantor/triarb/business/books/domain"
)

// orderResponse is the REST acknowledgment for order placement.
type orderResponse struct {
	Symbol        string `json:"symbol"`
	OrderID       int64  `json:"orderId"`
	ClientOrderID string `json:"clientOrderId"`
	Status        string `json:"status"`
	TransactTime  int64  `json:"transactTime"`
}

// cancelResponse is the REST acknowledgment for order cancellation.
type cancelResponse struct {
	Symbol  string `json:"symbol"`
	OrderID int64  `json:"orderId"`
	Status  string `json:"status"`
}

// accountBalance is one asset row of the account endpoint.
type accountBalance struct {
	Asset  string `json:"asset"`
	Free   string `json:"free"`
	Locked string `json:"locked"`
}

// accountResponse is the signed account snapshot.
type accountResponse struct {
	Balances []accountBalance `json:"balances"`
}

// listenKeyResponse carries the user data stream key.
type listenKeyResponse struct {
	ListenKey string `json:"listenKey"`
}

// apiError is Binance's error envelope.
type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"msg"`
}

// Order statuses reported on the user data stream.
const (
	statusNew             = "NEW"
	statusPartiallyFilled = "PARTIALLY_FILLED"
	statusFilled          = "FILLED"
	statusCanceled        = "CANCELED"
	statusRejected        = "REJECTED"
	statusExpired         = "EXPIRED"
)

// executionReport is the user data stream order update event.
type executionReport struct {
	EventType    string `json:"e"` // "executionReport"
	Symbol       string `json:"s"`
	Side         string `json:"S"`
	OrderStatus  string `json:"X"`
	RejectReason string `json:"r"`
	OrderID      int64  `json:"i"`
	LastFilled   string `json:"l"`
	CumFilled    string `json:"z"`
	EventTime    int64  `json:"E"`
}

// Symbol converts a trading pair to Binance's concatenated form.
func Symbol(pair booksDomain.Pair) string {
	return pair.Base + pair.Quote
}

// restSide maps a domain side onto Binance's uppercase wire value.
func restSide(side booksDomain.Side) string {
	return strings.ToUpper(string(side))
}
