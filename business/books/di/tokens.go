// Package di contains dependency injection tokens for the books context.
package di

import (
	"github.com/quantor/triarb/business/books/infra/binance"
	"github.com/quantor/triarb/internal/di"
)

// Public service tokens - exposed to other modules
var (
	Feed = di.NewToken[*binance.Feed]("books.Feed")
)

// Helper functions for type-safe access
func GetFeed(c di.ServiceRegistry) *binance.Feed {
	return di.GetToken(c, Feed)
}
