// Package execution implements the order execution bounded context:
// the three-leg state machine and the loop that drives it against an
// exchange.
package execution

import (
	"context"

	"github.com/quantor/triarb/business/books"
	booksApp "github.com/quantor/triarb/business/books/app"
	booksDI "github.com/quantor/triarb/business/books/di"
	"github.com/quantor/triarb/business/execution/app"
	executionDI "github.com/quantor/triarb/business/execution/di"
	"github.com/quantor/triarb/business/execution/infra/binance"
	"github.com/quantor/triarb/business/execution/infra/paper"
	"github.com/quantor/triarb/business/execution/infra/report"
	"github.com/quantor/triarb/internal/asset"
	"github.com/quantor/triarb/internal/config"
	"github.com/quantor/triarb/internal/di"
	"github.com/quantor/triarb/internal/logger"
	"github.com/quantor/triarb/internal/monolith"
)

// Module implements the execution bounded context.
type Module struct{}

// RegisterServices registers all execution services with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	// Register Connector (private) - paper or live depending on config
	di.RegisterToken(c, executionDI.Connector, func(sr di.ServiceRegistry) app.Connector {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)
		assets := sr.Get("assetRegistry").(*asset.Registry)

		triangle, err := books.TriangleFromConfig(cfg.Triangle)
		if err != nil {
			panic("invalid triangle configuration: " + err.Error())
		}

		if cfg.Exchange.Paper {
			paperCfg := paper.DefaultConfig()
			paperCfg.FeeRate = cfg.Execution.FeeRateDecimal()
			return paper.NewConnector(paperCfg, booksDI.GetFeed(sr), assets, log)
		}

		liveCfg := binance.DefaultConnectorConfig(books.TrianglePairs(triangle))
		liveCfg.Client.APIKey = cfg.Exchange.APIKey
		liveCfg.Client.APISecret = cfg.Exchange.APISecret
		if cfg.Exchange.RESTURL != "" {
			liveCfg.Client.BaseURL = cfg.Exchange.RESTURL
		}
		if cfg.Exchange.WebSocketURL != "" {
			liveCfg.StreamURL = cfg.Exchange.WebSocketURL
		}
		if cfg.Exchange.RateLimitPerMin > 0 {
			liveCfg.Client.RateLimitPerMin = cfg.Exchange.RateLimitPerMin
		}

		connector, err := binance.NewConnector(liveCfg, assets, log)
		if err != nil {
			panic("failed to create live connector: " + err.Error())
		}
		return connector
	})

	// Register OpportunitySource (private) - the books snapshotter
	di.RegisterToken(c, executionDI.Source, func(sr di.ServiceRegistry) app.OpportunitySource {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		triangle, err := books.TriangleFromConfig(cfg.Triangle)
		if err != nil {
			panic("invalid triangle configuration: " + err.Error())
		}

		snapCfg := booksApp.SnapshotterConfig{
			Fee:             cfg.Execution.FeeRateDecimal(),
			ProfitThreshold: cfg.Execution.ProfitThresholdDecimal(),
		}
		// The connector doubles as the wallet source; balances come
		// from the same account that will fund the legs.
		wallets := executionDI.GetConnector(sr)

		return booksApp.NewSnapshotter(triangle, booksDI.GetFeed(sr), wallets, snapCfg, log)
	})

	// Register Reporter (private) - TUI or console depending on mode
	di.RegisterToken(c, executionDI.Reporter, func(sr di.ServiceRegistry) app.Reporter {
		cfg := sr.Get("config").(*config.Config)
		if cfg.Execution.TUIMode {
			return report.NewTUIReporter()
		}
		return report.NewConsoleReporter()
	})

	// Register Tracker (public - exposed for inspection)
	di.RegisterToken(c, executionDI.Tracker, func(sr di.ServiceRegistry) *app.Tracker {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		triangle, err := books.TriangleFromConfig(cfg.Triangle)
		if err != nil {
			panic("invalid triangle configuration: " + err.Error())
		}

		trackerCfg := app.TrackerConfig{
			TradeDelay:     cfg.Execution.TradeDelay,
			MaxOrderHang:   cfg.Execution.MaxOrderHang,
			MaxOrderUnsent: cfg.Execution.MaxOrderUnsent,
		}
		return app.NewTracker(
			triangle.First.Pair, triangle.Second.Pair, triangle.Third.Pair,
			trackerCfg, log)
	})

	// Register Runner (public)
	di.RegisterToken(c, executionDI.Runner, func(sr di.ServiceRegistry) *app.Runner {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		runnerCfg := app.RunnerConfig{
			PollInterval:   cfg.Execution.PollInterval,
			OrderRateLimit: cfg.Exchange.RateLimitPerMin,
		}

		runner, err := app.NewRunner(
			executionDI.GetTracker(sr),
			executionDI.GetConnector(sr),
			executionDI.GetSource(sr),
			executionDI.GetReporter(sr),
			runnerCfg, log)
		if err != nil {
			panic("failed to create runner: " + err.Error())
		}
		return runner
	})

	return nil
}

// Startup starts the connector, the reporter, and the execution loop.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	log := mono.Logger()

	connector := executionDI.GetConnector(mono.Services())
	if starter, ok := connector.(interface{ Start(context.Context) error }); ok {
		if err := starter.Start(ctx); err != nil {
			return err
		}
	}

	reporter := executionDI.GetReporter(mono.Services())
	if err := reporter.Start(ctx); err != nil {
		return err
	}

	runner := executionDI.GetRunner(mono.Services())
	go func() {
		if err := runner.Run(ctx); err != nil && ctx.Err() == nil {
			log.Error(ctx, "execution loop stopped", "error", err)
		}
	}()

	log.Info(ctx, "execution module started")
	return nil
}
