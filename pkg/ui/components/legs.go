// Package components provides reusable TUI components.
package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// LegRow represents one leg of the triangle in the execution table.
type LegRow struct {
	Pair    string
	Side    string
	State   string
	Price   string
	Filled  string
	Total   string
	Reverse bool
}

// LegsComponent renders the per-leg execution table.
type LegsComponent struct {
	rows []LegRow
}

// NewLegsComponent creates a new legs component.
func NewLegsComponent() *LegsComponent {
	return &LegsComponent{rows: make([]LegRow, 0, 3)}
}

// Update replaces the leg rows.
func (l *LegsComponent) Update(rows []LegRow) {
	l.rows = rows
}

// View renders the legs component.
func (l *LegsComponent) View() string {
	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED"))
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
	forwardStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981"))
	reverseStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#F59E0B"))

	var result string
	result = headerStyle.Render("EXECUTION LEGS")
	result += "\n\n"

	if len(l.rows) == 0 {
		result += dimStyle.Render("  Waiting for an opportunity...")
		return result
	}

	result += fmt.Sprintf("  %-10s  %-5s  %-24s  %12s  %18s\n",
		"Pair", "Side", "State", "Price", "Filled")
	result += dimStyle.Render("  "+strings.Repeat("─", 76)) + "\n"

	for _, row := range l.rows {
		stateStyle := forwardStyle
		if row.Reverse {
			stateStyle = reverseStyle
		}

		result += fmt.Sprintf("  %-10s  %-5s  %s  %12s  %18s\n",
			row.Pair,
			strings.ToUpper(row.Side),
			stateStyle.Render(fmt.Sprintf("%-24s", row.State)),
			row.Price,
			row.Filled+" / "+row.Total,
		)
	}

	return result
}
