package components

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

// EventRow represents one exchange notification in the feed.
type EventRow struct {
	Timestamp string
	Type      string
	Pair      string
	Detail    string
	Bad       bool // failures and unexpected cancels
}

// EventsComponent renders the scrolling event feed.
type EventsComponent struct {
	rows    []EventRow
	maxRows int
}

// NewEventsComponent creates a new events component.
func NewEventsComponent(maxRows int) *EventsComponent {
	return &EventsComponent{
		rows:    make([]EventRow, 0),
		maxRows: maxRows,
	}
}

// Add adds a new event to the top of the feed.
func (e *EventsComponent) Add(row EventRow) {
	e.rows = append([]EventRow{row}, e.rows...)
	if len(e.rows) > e.maxRows {
		e.rows = e.rows[:e.maxRows]
	}
}

// Clear clears the feed.
func (e *EventsComponent) Clear() {
	e.rows = make([]EventRow, 0)
}

// View renders the events component.
func (e *EventsComponent) View() string {
	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED"))
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
	badStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444"))

	var result string
	result = headerStyle.Render("EXCHANGE EVENTS")
	result += "\n\n"

	if len(e.rows) == 0 {
		result += dimStyle.Render("  No events yet...")
		return result
	}

	for _, row := range e.rows {
		line := fmt.Sprintf("  [%s] %-9s %-10s %s", row.Timestamp, row.Type, row.Pair, row.Detail)
		if row.Bad {
			result += badStyle.Render(line)
		} else {
			result += dimStyle.Render(line)
		}
		result += "\n"
	}

	return result
}
