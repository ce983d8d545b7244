package components

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// Stats holds execution statistics for display.
type Stats struct {
	Attempts    int64
	Completed   int64
	Reversed    int64
	AvgDuration time.Duration
	Errors      int64
}

// StatsComponent renders execution statistics.
type StatsComponent struct {
	stats Stats
}

// NewStatsComponent creates a new stats component.
func NewStatsComponent() *StatsComponent {
	return &StatsComponent{}
}

// Update updates the statistics.
func (s *StatsComponent) Update(stats Stats) {
	s.stats = stats
}

// View renders the stats component.
func (s *StatsComponent) View() string {
	style := lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
	valueStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFFFF")).Bold(true)
	errorStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444")).Bold(true)

	successRate := float64(0)
	if s.stats.Attempts > 0 {
		successRate = float64(s.stats.Completed) / float64(s.stats.Attempts) * 100
	}

	errorsDisplay := valueStyle.Render(fmt.Sprintf("%d", s.stats.Errors))
	if s.stats.Errors > 0 {
		errorsDisplay = errorStyle.Render(fmt.Sprintf("%d", s.stats.Errors))
	}

	return style.Render("STATS") + "\n" +
		fmt.Sprintf("Triangles: %s  │  Completed: %s (%.1f%%)  │  Reversed: %s\n",
			valueStyle.Render(fmt.Sprintf("%d", s.stats.Attempts)),
			valueStyle.Render(fmt.Sprintf("%d", s.stats.Completed)),
			successRate,
			valueStyle.Render(fmt.Sprintf("%d", s.stats.Reversed)),
		) +
		fmt.Sprintf("Avg duration: %s  │  Errors: %s",
			valueStyle.Render(s.stats.AvgDuration.Round(time.Millisecond).String()),
			errorsDisplay,
		)
}
