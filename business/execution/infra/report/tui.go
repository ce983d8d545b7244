package report

import (
	"context"
	"time"

	"github.com/quantor/triarb/business/execution/domain"
	"github.com/quantor/triarb/pkg/ui"
)

// TUIReporter implements Reporter by forwarding to the Bubble Tea
// program. The program itself is started by main; this adapter only
// sends messages to it.
type TUIReporter struct{}

// NewTUIReporter creates a new TUIReporter.
func NewTUIReporter() *TUIReporter {
	return &TUIReporter{}
}

// Start is a no-op; the Bubble Tea program runs on the main goroutine.
func (r *TUIReporter) Start(ctx context.Context) error {
	return nil
}

// ReportOrders sends the per-leg snapshot to the TUI.
func (r *TUIReporter) ReportOrders(orders []*domain.Order) {
	ui.Send(ui.OrdersMsg{Orders: orders})
}

// ReportEvent sends one exchange notification to the TUI.
func (r *TUIReporter) ReportEvent(ev domain.Event) {
	ui.Send(ui.EventMsg{Event: ev})
}

// ReportOutcome sends a terminal opportunity result to the TUI.
func (r *TUIReporter) ReportOutcome(reversed bool, duration time.Duration) {
	ui.Send(ui.OutcomeMsg{Reversed: reversed, Duration: duration})
}

// UpdateConnectionStatus sends connection status to the TUI.
func (r *TUIReporter) UpdateConnectionStatus(name string, connected bool, latency time.Duration) {
	ui.Send(ui.ConnectionStatusMsg{Name: name, Connected: connected, Latency: latency})
}

// Stop gracefully shuts down the TUI reporter.
func (r *TUIReporter) Stop() error {
	return nil
}
