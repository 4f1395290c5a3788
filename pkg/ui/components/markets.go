// Package components provides reusable TUI components.
package components

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"
)

// MarketRow is one market in the markets table.
type MarketRow struct {
	ID        uint64
	Quest     string
	PriceYes  decimal.Decimal
	PriceNo   decimal.Decimal
	Liquidity decimal.Decimal
	Volume    decimal.Decimal
	Holders   int
	Outcome   string // "" or "unresolved" while trading
	Expired   bool
	UpdatedAt time.Time
}

// Status summarises the market lifecycle for display.
func (r MarketRow) Status() string {
	switch {
	case r.Outcome != "" && r.Outcome != "unresolved":
		return "resolved " + r.Outcome
	case r.Expired:
		return "awaiting oracle"
	default:
		return "trading"
	}
}

// MarketsComponent renders the markets table.
type MarketsComponent struct {
	rows map[uint64]*MarketRow
}

// NewMarketsComponent creates an empty markets table.
func NewMarketsComponent() *MarketsComponent {
	return &MarketsComponent{rows: make(map[uint64]*MarketRow)}
}

// Replace overwrites every row with a fresh snapshot. Volume is kept since
// snapshots do not carry it.
func (m *MarketsComponent) Replace(rows []MarketRow) {
	next := make(map[uint64]*MarketRow, len(rows))
	for i := range rows {
		row := rows[i]
		if prev, ok := m.rows[row.ID]; ok {
			row.Volume = prev.Volume
		}
		next[row.ID] = &row
	}
	m.rows = next
}

// UpdatePrices records the latest prices of a market, adding it if unseen.
func (m *MarketsComponent) UpdatePrices(id uint64, yes, no decimal.Decimal, at time.Time) {
	row := m.row(id)
	row.PriceYes, row.PriceNo = yes, no
	row.UpdatedAt = at
}

// AddVolume adds traded collateral to a market.
func (m *MarketsComponent) AddVolume(id uint64, amount decimal.Decimal) {
	row := m.row(id)
	row.Volume = row.Volume.Add(amount)
}

// Resolve marks a market resolved.
func (m *MarketsComponent) Resolve(id uint64, outcome string) {
	m.row(id).Outcome = outcome
}

// Len returns the number of markets shown.
func (m *MarketsComponent) Len() int {
	return len(m.rows)
}

// Get returns a copy of one row.
func (m *MarketsComponent) Get(id uint64) (MarketRow, bool) {
	row, ok := m.rows[id]
	if !ok {
		return MarketRow{}, false
	}
	return *row, true
}

func (m *MarketsComponent) row(id uint64) *MarketRow {
	row, ok := m.rows[id]
	if !ok {
		row = &MarketRow{ID: id}
		m.rows[id] = row
	}
	return row
}

func (m *MarketsComponent) sorted() []MarketRow {
	out := make([]MarketRow, 0, len(m.rows))
	for _, row := range m.rows {
		out = append(out, *row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// View renders the markets component.
func (m *MarketsComponent) View() string {
	if len(m.rows) == 0 {
		return "Waiting for markets..."
	}

	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED"))
	yesStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981"))
	noStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444"))
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
	warnStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#F59E0B"))

	var b strings.Builder
	b.WriteString(headerStyle.Render(fmt.Sprintf("MARKETS (%d)", len(m.rows))))
	b.WriteString("\n\n")
	b.WriteString(fmt.Sprintf("  %-4s  %-26s  %6s  %6s  %10s  %10s  %s\n",
		"ID", "Question", "YES", "NO", "Liquidity", "Volume", "Status"))
	b.WriteString(dimStyle.Render("  "+strings.Repeat("─", 84)) + "\n")

	for _, row := range m.sorted() {
		quest := row.Quest
		if quest == "" {
			quest = "-"
		}
		status := dimStyle.Render(row.Status())
		if row.Expired && (row.Outcome == "" || row.Outcome == "unresolved") {
			status = warnStyle.Render(row.Status())
		}

		b.WriteString(fmt.Sprintf("  %-4d  %-26s  %s  %s  %10s  %10s  %s\n",
			row.ID,
			truncate(quest, 26),
			yesStyle.Render(fmt.Sprintf("%6s", row.PriceYes.StringFixed(3))),
			noStyle.Render(fmt.Sprintf("%6s", row.PriceNo.StringFixed(3))),
			row.Liquidity.StringFixed(2),
			row.Volume.StringFixed(2),
			status,
		))
	}
	return b.String()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
