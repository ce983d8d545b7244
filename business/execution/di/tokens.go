// Package di contains dependency injection tokens for the execution context.
package di

import (
	"github.com/quantor/triarb/business/execution/app"
	"github.com/quantor/triarb/internal/di"
)

// Public service tokens - exposed to other modules
var (
	Tracker = di.NewToken[*app.Tracker]("execution.Tracker")
	Runner  = di.NewToken[*app.Runner]("execution.Runner")
)

// Private dependency tokens - internal to execution module
var (
	Connector = di.NewToken[app.Connector]("execution:connector")
	Source    = di.NewToken[app.OpportunitySource]("execution:source")
	Reporter  = di.NewToken[app.Reporter]("execution:reporter")
)

// Helper functions for type-safe access
func GetTracker(c di.ServiceRegistry) *app.Tracker {
	return di.GetToken(c, Tracker)
}

func GetRunner(c di.ServiceRegistry) *app.Runner {
	return di.GetToken(c, Runner)
}

func GetConnector(c di.ServiceRegistry) app.Connector {
	return di.GetToken(c, Connector)
}

func GetSource(c di.ServiceRegistry) app.OpportunitySource {
	return di.GetToken(c, Source)
}

func GetReporter(c di.ServiceRegistry) app.Reporter {
	return di.GetToken(c, Reporter)
}
