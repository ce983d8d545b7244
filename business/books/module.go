// Package books implements the market data bounded context: live
// depth feeds, fund-allocation preprocessing, and opportunity sizing.
package books

import (
	"context"
	"time"

	booksDI "github.com/quantor/triarb/business/books/di"
	"github.com/quantor/triarb/business/books/domain"
	"github.com/quantor/triarb/business/books/infra/binance"
	"github.com/quantor/triarb/internal/apperror"
	"github.com/quantor/triarb/internal/config"
	"github.com/quantor/triarb/internal/di"
	"github.com/quantor/triarb/internal/logger"
	"github.com/quantor/triarb/internal/monolith"
)

// Module implements the books bounded context.
type Module struct{}

// RegisterServices registers all books services with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	di.RegisterToken(c, booksDI.Feed, func(sr di.ServiceRegistry) *binance.Feed {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		triangle, err := TriangleFromConfig(cfg.Triangle)
		if err != nil {
			panic("invalid triangle configuration: " + err.Error())
		}

		feedCfg := binance.DefaultFeedConfig(TrianglePairs(triangle))
		if cfg.Exchange.WebSocketURL != "" {
			feedCfg.BaseURL = cfg.Exchange.WebSocketURL
		}
		if cfg.Exchange.StaleTimeout > 0 {
			feedCfg.StaleTimeout = cfg.Exchange.StaleTimeout
		}

		feed, err := binance.NewFeed(feedCfg, log)
		if err != nil {
			panic("failed to create depth feed: " + err.Error())
		}
		return feed
	})

	return nil
}

// Startup connects the depth feed. A failed connection does not abort
// startup; the feed keeps retrying in the background.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	log := mono.Logger()

	feed := booksDI.GetFeed(mono.Services())

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := feed.Connect(connectCtx); err != nil {
		log.Warn(ctx, "depth feed connection failed, will retry in background", "error", err)
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case <-time.After(5 * time.Second):
					if err := feed.Connect(ctx); err != nil {
						log.Warn(ctx, "depth feed retry failed", "error", err)
					} else {
						log.Info(ctx, "depth feed connected")
						return
					}
				}
			}
		}()
	}

	log.Info(ctx, "books module started")
	return nil
}

// TriangleFromConfig builds the directed triangle from its config form.
func TriangleFromConfig(t config.TriangleConfig) (domain.Triangle, error) {
	first, err := edgeFromConfig(t.LeftPair, t.LeftSide, t.Venue)
	if err != nil {
		return domain.Triangle{}, err
	}
	second, err := edgeFromConfig(t.CrossPair, t.CrossSide, t.Venue)
	if err != nil {
		return domain.Triangle{}, err
	}
	third, err := edgeFromConfig(t.RightPair, t.RightSide, t.Venue)
	if err != nil {
		return domain.Triangle{}, err
	}

	return domain.NewTriangle(first, second, third)
}

// TrianglePairs returns the triangle's three markets as a slice.
func TrianglePairs(t domain.Triangle) []domain.Pair {
	pairs := t.Pairs()
	return pairs[:]
}

func edgeFromConfig(pair, side, venue string) (domain.Edge, error) {
	p, err := domain.ParsePair(pair)
	if err != nil {
		return domain.Edge{}, err
	}

	s := domain.Side(side)
	if !s.Valid() {
		return domain.Edge{}, apperror.New(apperror.CodeInvalidInput,
			apperror.WithContext("side must be buy or sell: "+side))
	}

	return domain.Edge{Pair: p, Side: s, Venue: venue}, nil
}
