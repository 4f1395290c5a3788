// Package ui provides the Bubble Tea dashboard for the prediction market AMM.
package ui

import (
	"time"

	"github.com/fd1az/prediction-amm/business/amm/domain"
	"github.com/fd1az/prediction-amm/pkg/ui/components"
)

// Message types for TUI updates

// EventMsg carries one committed engine event.
type EventMsg struct {
	Event domain.Event
}

// SnapshotMsg replaces the markets table with the current state of every pool.
type SnapshotMsg struct {
	Markets []components.MarketRow
	At      time.Time
}

// ConnectionStatusMsg is sent when an event source changes state.
type ConnectionStatusMsg struct {
	Name   string
	State  string
	Detail string
}

// ErrorMsg is sent when an error occurs.
type ErrorMsg struct {
	Error error
}

// TickMsg is sent periodically for UI updates.
type TickMsg struct{}

// LogMsg is sent to display a log message in the UI.
type LogMsg struct {
	Level   string // "info", "warn", "error"
	Message string
}
