// Package components provides reusable TUI components.
package components

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// ConnectionStatus is the state of one event source.
type ConnectionStatus struct {
	Name      string
	State     string // connected, connecting, reconnecting, disconnected, closed
	Detail    string
	UpdatedAt time.Time
}

// Connected reports whether the source is delivering events.
func (c ConnectionStatus) Connected() bool {
	return c.State == "connected"
}

// StatusComponent renders event source status.
type StatusComponent struct {
	connections []ConnectionStatus
}

// NewStatusComponent creates a new status component.
func NewStatusComponent() *StatusComponent {
	return &StatusComponent{
		connections: make([]ConnectionStatus, 0),
	}
}

// Update replaces the status of a source by name.
func (s *StatusComponent) Update(status ConnectionStatus) {
	for i, conn := range s.connections {
		if conn.Name == status.Name {
			s.connections[i] = status
			return
		}
	}
	s.connections = append(s.connections, status)
}

// Get returns the status of a source.
func (s *StatusComponent) Get(name string) (ConnectionStatus, bool) {
	for _, conn := range s.connections {
		if conn.Name == name {
			return conn, true
		}
	}
	return ConnectionStatus{}, false
}

// View renders the status component as a single line.
func (s *StatusComponent) View() string {
	if len(s.connections) == 0 {
		return "No event sources"
	}

	parts := make([]string, 0, len(s.connections))
	for _, conn := range s.connections {
		icon := "○"
		style := lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444")).Bold(true)
		switch conn.State {
		case "connected":
			icon = "●"
			style = lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981")).Bold(true)
		case "connecting", "reconnecting":
			icon = "◐"
			style = lipgloss.NewStyle().Foreground(lipgloss.Color("#F59E0B")).Bold(true)
		}

		line := fmt.Sprintf("%s %s (%s)", icon, conn.Name, conn.State)
		if conn.Detail != "" && !conn.Connected() {
			line += ": " + conn.Detail
		}
		parts = append(parts, style.Render(line))
	}
	return strings.Join(parts, "  │  ")
}
