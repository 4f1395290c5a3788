// Package ui provides the Bubble Tea dashboard for the prediction market AMM.
package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/fd1az/prediction-amm/business/amm/domain"
	"github.com/fd1az/prediction-amm/pkg/ui/components"
)

// Phase represents the current UI phase.
type Phase string

const (
	PhaseWelcome   Phase = "welcome"   // Initial welcome screen
	PhaseDashboard Phase = "dashboard" // Main dashboard
)

// WelcomeDuration is how long the welcome screen shows before auto-advancing.
const WelcomeDuration = 2 * time.Second

// ErrorEntry represents an error with timestamp.
type ErrorEntry struct {
	Message   string
	Timestamp time.Time
}

// Model is the main Bubble Tea model for the TUI.
type Model struct {
	// Components
	markets  *components.MarketsComponent
	activity *components.ActivityComponent
	stats    *components.StatsComponent
	status   *components.StatusComponent
	keys     KeyMap
	help     help.Model

	// Phase state
	phase        Phase
	welcomeStart time.Time

	// State
	source     string // what the dashboard is attached to
	ready      bool
	quitting   bool
	paused     bool // freezes the activity feed
	width      int
	height     int
	lastUpdate time.Time
	errors     []ErrorEntry // last 3
	logs       []string     // last 5
	now        func() time.Time
}

// New creates a new TUI model. source names the engine or remote stream
// the dashboard is attached to.
func New(source string) Model {
	now := time.Now()
	return Model{
		markets:      components.NewMarketsComponent(),
		activity:     components.NewActivityComponent(100, 12),
		stats:        components.NewStatsComponent(),
		status:       components.NewStatusComponent(),
		keys:         DefaultKeyMap(),
		help:         help.New(),
		phase:        PhaseWelcome,
		welcomeStart: now,
		source:       source,
		errors:       make([]ErrorEntry, 0, 3),
		logs:         make([]string, 0, 5),
		now:          time.Now,
	}
}

// Init initializes the TUI model.
func (m Model) Init() tea.Cmd {
	return tickCmd()
}

// tickCmd returns a command that sends a tick every 100ms for smooth animations.
func tickCmd() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return TickMsg{}
	})
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if key.Matches(msg, m.keys.Quit) {
			m.quitting = true
			return m, tea.Quit
		}
		// During welcome phase, any other key skips to the dashboard
		if m.phase == PhaseWelcome {
			m.enterDashboard()
			return m, nil
		}
		switch {
		case key.Matches(msg, m.keys.Clear):
			m.activity.Clear()
		case key.Matches(msg, m.keys.Pause):
			m.paused = !m.paused
		case key.Matches(msg, m.keys.Up):
			m.activity.ScrollUp()
		case key.Matches(msg, m.keys.Down):
			m.activity.ScrollDown()
		case key.Matches(msg, m.keys.ClearErrors):
			m.errors = make([]ErrorEntry, 0, 3)
		case key.Matches(msg, m.keys.Help):
			m.help.ShowAll = !m.help.ShowAll
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.ready = true

	case TickMsg:
		if m.phase == PhaseWelcome && m.now().Sub(m.welcomeStart) >= WelcomeDuration {
			m.enterDashboard()
		}
		return m, tickCmd()

	case EventMsg:
		m.applyEvent(msg.Event)

	case SnapshotMsg:
		m.markets.Replace(msg.Markets)
		m.lastUpdate = msg.At

	case ConnectionStatusMsg:
		m.status.Update(components.ConnectionStatus{
			Name:      msg.Name,
			State:     msg.State,
			Detail:    msg.Detail,
			UpdatedAt: m.now(),
		})
		m.lastUpdate = m.now()

	case ErrorMsg:
		m.stats.RecordError()
		m.logs = m.addLog("error", msg.Error.Error())
		m.errors = append(m.errors, ErrorEntry{
			Message:   msg.Error.Error(),
			Timestamp: m.now(),
		})
		if len(m.errors) > 3 {
			m.errors = m.errors[len(m.errors)-3:]
		}

	case LogMsg:
		m.logs = m.addLog(msg.Level, msg.Message)
	}

	return m, nil
}

func (m *Model) enterDashboard() {
	m.phase = PhaseDashboard
	// Trigger callback directly (don't use Send() from within Update)
	if OnStartModules != nil {
		go OnStartModules()
	}
}

func (m *Model) applyEvent(e domain.Event) {
	yes, no := prices(e)
	m.markets.UpdatePrices(e.MarketID, yes, no, e.Timestamp)

	row := ActivityRow(e)
	switch e.Kind {
	case domain.EventBuy, domain.EventSell:
		m.markets.AddVolume(e.MarketID, row.Collateral)
	case domain.EventResolve:
		m.markets.Resolve(e.MarketID, row.Outcome)
	}

	m.stats.Record(row.Kind, row.Collateral, row.Fee)
	if !m.paused {
		m.activity.Add(row)
	}
	m.lastUpdate = m.now()
}

// addLog adds a log message and returns the updated slice (keeps last 5).
func (m Model) addLog(level, message string) []string {
	line := fmt.Sprintf("[%s] %s: %s", m.now().Format("15:04:05"), level, message)
	logs := append(m.logs, line)
	if len(logs) > 5 {
		logs = logs[len(logs)-5:]
	}
	return logs
}

// View renders the TUI.
func (m Model) View() string {
	if m.quitting {
		return "\n  Goodbye!\n\n"
	}
	if m.phase == PhaseWelcome {
		return m.renderWelcomeScreen()
	}

	var b strings.Builder

	b.WriteString(TitleStyle.Render(" Prediction Market AMM "))
	b.WriteString("  ")
	b.WriteString(MutedValue.Render(m.source))
	b.WriteString("\n\n")

	b.WriteString(m.renderStatusBar())
	b.WriteString("\n\n")

	width := m.width - 4
	if width < 40 {
		width = 100
	}
	b.WriteString(BoxStyle.Width(width).Render(m.markets.View()))
	b.WriteString("\n")

	if m.width > 140 {
		left := BoxStyle.Width(m.width/2 - 2).Render(m.activity.View())
		right := BoxStyle.Width(m.width/2 - 2).Render(m.stats.View() + "\n\n" + m.renderLogs())
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, left, right))
	} else {
		b.WriteString(BoxStyle.Width(width).Render(m.activity.View()))
		b.WriteString("\n")
		b.WriteString(BoxStyle.Width(width).Render(m.stats.View()))
	}
	b.WriteString("\n\n")

	if len(m.errors) > 0 {
		b.WriteString(ErrorHeaderStyle.Render("ERRORS"))
		b.WriteString(MutedValue.Render(" (e: clear)"))
		b.WriteString("\n")
		for _, err := range m.errors {
			ago := m.now().Sub(err.Timestamp).Round(time.Second)
			b.WriteString(ErrorStyle.Render(fmt.Sprintf("  • %s ", err.Message)))
			b.WriteString(MutedValue.Render(fmt.Sprintf("(%s ago)", ago)))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	if m.paused {
		b.WriteString(PausedStyle.Render("⏸ PAUSED"))
		b.WriteString(" • ")
	}
	b.WriteString(HelpStyle.Render(m.help.View(m.keys)))

	return b.String()
}

func (m Model) renderLogs() string {
	if len(m.logs) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString(HeaderStyle.Render("LOG"))
	sb.WriteString("\n")
	for _, line := range m.logs {
		sb.WriteString(MutedValue.Render("  " + line))
		sb.WriteString("\n")
	}
	return sb.String()
}

// renderWelcomeScreen renders the animated welcome screen.
func (m Model) renderWelcomeScreen() string {
	elapsed := m.now().Sub(m.welcomeStart)
	dots := strings.Repeat(".", int(elapsed.Milliseconds()/300)%4)

	var sb strings.Builder
	sb.WriteString("\n\n\n\n")

	logo := `
    ██╗   ██╗███████╗███████╗    ██╗███╗   ██╗ ██████╗
    ╚██╗ ██╔╝██╔════╝██╔════╝   ██╔╝████╗  ██║██╔═══██╗
     ╚████╔╝ █████╗  ███████╗  ██╔╝ ██╔██╗ ██║██║   ██║
      ╚██╔╝  ██╔══╝  ╚════██║ ██╔╝  ██║╚██╗██║██║   ██║
       ██║   ███████╗███████║██╔╝   ██║ ╚████║╚██████╔╝
       ╚═╝   ╚══════╝╚══════╝╚═╝    ╚═╝  ╚═══╝ ╚═════╝
`
	sb.WriteString(LogoStyle.Render(logo))
	sb.WriteString("\n")
	sb.WriteString(MutedValue.Render("              P R E D I C T I O N   M A R K E T   A M M"))
	sb.WriteString("\n\n\n")
	sb.WriteString(TaglineStyle.Render("                    Every share redeems for one or nothing"))
	sb.WriteString("\n\n\n")
	sb.WriteString(PositiveValue.Render(fmt.Sprintf("                         Connecting%s", dots)))
	sb.WriteString("\n\n")
	sb.WriteString(MutedValue.Render("                  Press any key to skip, or wait..."))
	sb.WriteString("\n")

	return sb.String()
}

func (m Model) renderStatusBar() string {
	var parts []string

	parts = append(parts, m.status.View())
	parts = append(parts, fmt.Sprintf("Markets: %d", m.markets.Len()))

	if s := m.stats.Stats(); s.Events > 0 {
		parts = append(parts, PositiveValue.Render(fmt.Sprintf("Events: %d", s.Events)))
	}

	if !m.lastUpdate.IsZero() {
		ago := m.now().Sub(m.lastUpdate).Round(time.Second)
		indicator := ""
		if ago < 2*time.Second {
			indicator = "▪"
		}
		parts = append(parts, MutedValue.Render(fmt.Sprintf("Updated: %s ago %s", ago, indicator)))
	}

	return strings.Join(parts, "  │  ")
}

// Program holds the Bubble Tea program instance for external access.
var Program *tea.Program

// OnStartModules is called when the welcome screen completes and modules should start.
// This is set by main.go to signal when to begin loading modules.
var OnStartModules func()

// Run starts the Bubble Tea program.
func Run(source string) error {
	Program = tea.NewProgram(New(source), tea.WithAltScreen())
	_, err := Program.Run()
	return err
}

// Send sends a message to the running program.
func Send(msg tea.Msg) {
	if Program != nil {
		Program.Send(msg)
	}
}
