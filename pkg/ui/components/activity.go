// Package components provides reusable TUI components.
package components

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"
)

// ActivityRow is one committed event in the feed.
type ActivityRow struct {
	Time       time.Time
	MarketID   uint64
	Kind       string
	Account    string
	Outcome    string
	Collateral decimal.Decimal
	Shares     decimal.Decimal
	Fee        decimal.Decimal
}

// ActivityComponent renders the newest-first event feed.
type ActivityComponent struct {
	rows    []ActivityRow
	maxRows int
	visible int
	offset  int
}

// NewActivityComponent keeps up to maxRows events and shows visible at once.
func NewActivityComponent(maxRows, visible int) *ActivityComponent {
	return &ActivityComponent{
		rows:    make([]ActivityRow, 0, maxRows),
		maxRows: maxRows,
		visible: visible,
	}
}

// Add prepends an event.
func (a *ActivityComponent) Add(row ActivityRow) {
	a.rows = append([]ActivityRow{row}, a.rows...)
	if len(a.rows) > a.maxRows {
		a.rows = a.rows[:a.maxRows]
	}
	if a.offset > 0 {
		// keep the scrolled window on the same rows
		a.offset = min(a.offset+1, a.maxOffset())
	}
}

// Clear drops every row.
func (a *ActivityComponent) Clear() {
	a.rows = a.rows[:0]
	a.offset = 0
}

// Len returns the number of rows held.
func (a *ActivityComponent) Len() int {
	return len(a.rows)
}

// ScrollUp moves towards newer events.
func (a *ActivityComponent) ScrollUp() {
	if a.offset > 0 {
		a.offset--
	}
}

// ScrollDown moves towards older events.
func (a *ActivityComponent) ScrollDown() {
	if a.offset < a.maxOffset() {
		a.offset++
	}
}

// Offset returns the scroll position.
func (a *ActivityComponent) Offset() int {
	return a.offset
}

func (a *ActivityComponent) maxOffset() int {
	return max(len(a.rows)-a.visible, 0)
}

// View renders the activity component.
func (a *ActivityComponent) View() string {
	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED"))
	mutedStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))

	var b strings.Builder
	b.WriteString(headerStyle.Render(fmt.Sprintf("LIVE ACTIVITY (last %d)", a.maxRows)))
	b.WriteString("\n\n")

	if len(a.rows) == 0 {
		b.WriteString(mutedStyle.Render("  Waiting for trades..."))
		return b.String()
	}

	end := min(a.offset+a.visible, len(a.rows))
	for _, row := range a.rows[a.offset:end] {
		b.WriteString("  ")
		b.WriteString(mutedStyle.Render(row.Time.Format("15:04:05")))
		b.WriteString(" ")
		b.WriteString(kindStyle(row.Kind).Render(fmt.Sprintf("%-16s", row.Kind)))
		b.WriteString(fmt.Sprintf(" #%-3d %s", row.MarketID, describe(row)))
		b.WriteString(mutedStyle.Render(" " + row.Account))
		b.WriteString("\n")
	}
	if len(a.rows) > a.visible {
		b.WriteString(mutedStyle.Render(fmt.Sprintf("  %d-%d of %d", a.offset+1, end, len(a.rows))))
	}
	return b.String()
}

func describe(row ActivityRow) string {
	switch row.Kind {
	case "buy":
		return fmt.Sprintf("%s %s → %s shares", row.Outcome, row.Collateral.StringFixed(2), row.Shares.StringFixed(2))
	case "sell":
		return fmt.Sprintf("%s %s shares → %s", row.Outcome, row.Shares.StringFixed(2), row.Collateral.StringFixed(2))
	case "add_liquidity", "remove_liquidity":
		return fmt.Sprintf("%s collateral, %s LP", row.Collateral.StringFixed(2), row.Shares.StringFixed(2))
	case "resolve":
		return "outcome " + row.Outcome
	case "redeem":
		return fmt.Sprintf("paid %s", row.Collateral.StringFixed(2))
	default:
		return ""
	}
}

func kindStyle(kind string) lipgloss.Style {
	switch kind {
	case "buy", "add_liquidity":
		return lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981"))
	case "sell", "remove_liquidity":
		return lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444"))
	case "resolve", "redeem":
		return lipgloss.NewStyle().Foreground(lipgloss.Color("#F59E0B")).Bold(true)
	default:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("#60A5FA"))
	}
}
