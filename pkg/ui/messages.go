// Package ui provides the Bubble Tea TUI for the triangular arbitrage bot.
package ui

import (
	"time"

	"github.com/quantor/triarb/business/execution/domain"
)

// Message types for TUI updates

// OrdersMsg carries the current per-leg order snapshot.
type OrdersMsg struct {
	Orders []*domain.Order
}

// EventMsg is sent for every exchange notification.
type EventMsg struct {
	Event domain.Event
}

// OutcomeMsg is sent when one opportunity reaches a terminal state.
type OutcomeMsg struct {
	Reversed bool
	Duration time.Duration
}

// ConnectionStatusMsg is sent when connection status changes.
type ConnectionStatusMsg struct {
	Name      string
	Connected bool
	Latency   time.Duration
}

// ErrorMsg is sent when an error occurs.
type ErrorMsg struct {
	Error error
}

// TickMsg is sent periodically for UI updates.
type TickMsg struct{}

// StartModulesMsg signals that modules should start loading.
type StartModulesMsg struct{}

// LogMsg is sent to display a log message in the UI.
type LogMsg struct {
	Level   string // "info", "warn", "error"
	Message string
}

// StartupMsg is sent during application startup to show progress.
type StartupMsg struct {
	Step    string // Current step name
	Status  string // "connecting", "connected", "failed"
	Message string // Optional message
}
