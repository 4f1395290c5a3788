// Package components provides reusable TUI components.
package components

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"
)

// Stats holds running totals for display.
type Stats struct {
	Events    int64
	Trades    int64
	Liquidity int64 // add and remove calls
	Redeems   int64
	Volume    decimal.Decimal
	Fees      decimal.Decimal
	Errors    int64
}

// StatsComponent renders statistics.
type StatsComponent struct {
	stats Stats
}

// NewStatsComponent creates a new stats component.
func NewStatsComponent() *StatsComponent {
	return &StatsComponent{}
}

// Record counts one event.
func (s *StatsComponent) Record(kind string, collateral, fee decimal.Decimal) {
	s.stats.Events++
	switch kind {
	case "buy", "sell":
		s.stats.Trades++
		s.stats.Volume = s.stats.Volume.Add(collateral)
	case "add_liquidity", "remove_liquidity":
		s.stats.Liquidity++
	case "redeem":
		s.stats.Redeems++
	}
	s.stats.Fees = s.stats.Fees.Add(fee)
}

// RecordError counts one error.
func (s *StatsComponent) RecordError() {
	s.stats.Errors++
}

// Stats returns the current totals.
func (s *StatsComponent) Stats() Stats {
	return s.stats
}

// View renders the stats component.
func (s *StatsComponent) View() string {
	style := lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
	valueStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFFFF")).Bold(true)
	errorStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444")).Bold(true)

	errorsDisplay := valueStyle.Render(fmt.Sprintf("%d", s.stats.Errors))
	if s.stats.Errors > 0 {
		errorsDisplay = errorStyle.Render(fmt.Sprintf("%d", s.stats.Errors))
	}

	return style.Render("STATS") + "\n" +
		fmt.Sprintf("Events: %s  │  Trades: %s  │  Liquidity ops: %s  │  Redeems: %s\n",
			valueStyle.Render(fmt.Sprintf("%d", s.stats.Events)),
			valueStyle.Render(fmt.Sprintf("%d", s.stats.Trades)),
			valueStyle.Render(fmt.Sprintf("%d", s.stats.Liquidity)),
			valueStyle.Render(fmt.Sprintf("%d", s.stats.Redeems)),
		) +
		fmt.Sprintf("Volume: %s  │  Fees: %s  │  Errors: %s",
			valueStyle.Render(s.stats.Volume.StringFixed(2)),
			valueStyle.Render(s.stats.Fees.StringFixed(4)),
			errorsDisplay,
		)
}
