// Package report contains Reporter adapters for the execution context.
package report

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/quantor/triarb/business/execution/domain"
)

// ConsoleReporter implements Reporter for CLI output.
type ConsoleReporter struct {
	out io.Writer
}

// NewConsoleReporter creates a new ConsoleReporter.
func NewConsoleReporter() *ConsoleReporter {
	return &ConsoleReporter{
		out: os.Stdout,
	}
}

// Start initializes the console reporter.
func (r *ConsoleReporter) Start(ctx context.Context) error {
	fmt.Fprintln(r.out, "Triangular Arbitrage Bot Started")
	fmt.Fprintln(r.out, "================================")
	return nil
}

// ReportOrders prints the current per-leg snapshot.
func (r *ConsoleReporter) ReportOrders(orders []*domain.Order) {
	for _, order := range orders {
		if order == nil {
			continue
		}
		fmt.Fprintf(r.out, "  %-10s %-4s %-24s price=%s filled=%s/%s\n",
			order.Pair.String(),
			order.Side,
			order.State.String(),
			order.Price.String(),
			order.Filled().String(),
			order.Amount.Add(order.PreviouslyFilled).String(),
		)
	}
}

// ReportEvent prints one exchange notification.
func (r *ConsoleReporter) ReportEvent(ev domain.Event) {
	line := fmt.Sprintf("[%s] %-9s %-10s id=%s",
		ev.Timestamp.Format("15:04:05"), ev.Type, ev.Pair.String(), ev.OrderID)
	if !ev.Amount.IsZero() {
		line += " amount=" + ev.Amount.String()
	}
	if ev.Reason != "" {
		line += " reason=" + ev.Reason
	}
	fmt.Fprintln(r.out, line)
}

// ReportOutcome prints the terminal result of one opportunity.
func (r *ConsoleReporter) ReportOutcome(reversed bool, duration time.Duration) {
	fmt.Fprintln(r.out, "--------------------------------------------------------------------------------")
	if reversed {
		fmt.Fprintf(r.out, "TRIANGLE REVERSED after %s\n", duration.Round(time.Millisecond))
	} else {
		fmt.Fprintf(r.out, "TRIANGLE COMPLETED in %s\n", duration.Round(time.Millisecond))
	}
	fmt.Fprintln(r.out, "--------------------------------------------------------------------------------")
}

// UpdateConnectionStatus outputs connection status changes.
func (r *ConsoleReporter) UpdateConnectionStatus(name string, connected bool, latency time.Duration) {
	status := "disconnected"
	if connected {
		status = fmt.Sprintf("connected (%s)", latency)
	}
	fmt.Fprintf(r.out, "[%s] %s: %s\n", time.Now().Format("15:04:05"), name, status)
}

// Stop gracefully shuts down the console reporter.
func (r *ConsoleReporter) Stop() error {
	fmt.Fprintln(r.out, "")
	fmt.Fprintln(r.out, "Triangular Arbitrage Bot Stopped")
	return nil
}
