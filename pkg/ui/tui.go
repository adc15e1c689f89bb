// Package ui provides the Bubble Tea dashboard for the watch command.
package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/fd1az/dexops/pkg/ui/components"
)

// NodeConnection is the status row name of the node connection.
const NodeConnection = "Node"

// StartupStep represents a step in the startup process.
type StartupStep struct {
	Name   string
	Status string // "pending", "connecting", "connected", "done", "failed"
}

// Phase represents the current UI phase.
type Phase string

const (
	PhaseWelcome   Phase = "welcome"
	PhaseStartup   Phase = "startup"
	PhaseDashboard Phase = "dashboard"
)

// WelcomeDuration is how long the welcome screen shows before auto-advancing.
const WelcomeDuration = 2 * time.Second

var startupOrder = []string{"config", "node", "wallet", "streams"}

// ErrorEntry represents an error with timestamp.
type ErrorEntry struct {
	Message   string
	Timestamp time.Time
}

// Model is the main Bubble Tea model for the TUI.
type Model struct {
	// Components
	balances  *components.BalancesComponent
	transfers *components.TransfersComponent
	status    *components.StatusComponent
	stats     *components.StatsComponent
	keys      KeyMap

	phase        Phase
	welcomeStart time.Time

	ready        bool
	quitting     bool
	paused       bool // freeze the feeds, counters keep running
	width        int
	height       int
	currentBlock uint64
	lastUpdate   time.Time
	errors       []ErrorEntry // last 3
	logs         []string
	activityFeed []string

	startupComplete bool
	startupSteps    map[string]*StartupStep
	startupTime     time.Time
}

// New creates a new TUI model.
func New() Model {
	now := time.Now()
	status := components.NewStatusComponent()
	status.Update(components.ConnectionStatus{Name: NodeConnection, State: "disconnected"})

	return Model{
		balances:     components.NewBalancesComponent(),
		transfers:    components.NewTransfersComponent(100, 10),
		status:       status,
		stats:        components.NewStatsComponent(),
		keys:         DefaultKeyMap(),
		phase:        PhaseWelcome,
		welcomeStart: now,
		logs:         make([]string, 0, 5),
		errors:       make([]ErrorEntry, 0, 3),
		activityFeed: make([]string, 0, 8),
		startupSteps: map[string]*StartupStep{
			"config":  {Name: "Loading configuration", Status: "pending"},
			"node":    {Name: "Connecting to node", Status: "pending"},
			"wallet":  {Name: "Loading wallet", Status: "pending"},
			"streams": {Name: "Subscribing to streams", Status: "pending"},
		},
		startupTime: now,
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

func (m *Model) enterStartup() {
	m.phase = PhaseStartup
	m.startupTime = time.Now()
	// Called directly: Send from within Update would deadlock.
	if OnStartModules != nil {
		go OnStartModules()
	}
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if key.Matches(msg, m.keys.Quit) {
			m.quitting = true
			return m, tea.Quit
		}
		if m.phase == PhaseWelcome {
			m.enterStartup()
			return m, tickCmd()
		}
		switch {
		case key.Matches(msg, m.keys.Clear):
			m.transfers.Clear()
			m.activityFeed = m.activityFeed[:0]
		case key.Matches(msg, m.keys.Pause):
			m.paused = !m.paused
		case key.Matches(msg, m.keys.Up):
			m.transfers.ScrollUp()
		case key.Matches(msg, m.keys.Down):
			m.transfers.ScrollDown()
		case key.Matches(msg, m.keys.ClearErrors):
			m.errors = make([]ErrorEntry, 0, 3)
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true

	case TickMsg:
		if m.phase == PhaseWelcome && time.Since(m.welcomeStart) >= WelcomeDuration {
			m.enterStartup()
		}
		return m, tickCmd()

	case WalletMsg:
		m.balances.SetWallet(msg.Network, msg.Address)
		m.markStep("wallet", "done")

	case BlockMsg:
		m.currentBlock = msg.Number
		m.status.Update(components.ConnectionStatus{Name: NodeConnection, LastBlock: msg.Number, LastUpdate: time.Now()})
		m.bumpStats(func(s *components.Stats) { s.Blocks++ })
		m.lastUpdate = time.Now()
		m.markStep("streams", "done")
		if !m.paused {
			activity := fmt.Sprintf("Block #%d", msg.Number)
			if msg.GasLimit > 0 {
				activity += fmt.Sprintf(" (%.0f%% full)", float64(msg.GasUsed)/float64(msg.GasLimit)*100)
			}
			m.activityFeed = addActivity(m.activityFeed, activity)
		}

	case BalancesMsg:
		m.balances.Update(components.BalanceSnapshot{
			Gas:       msg.Gas,
			GasSymbol: msg.GasSymbol,
			GasGwei:   msg.GasGwei,
			Pending:   msg.Pending,
			Block:     m.currentBlock,
		})
		m.lastUpdate = time.Now()

	case TransferMsg:
		m.bumpStats(func(s *components.Stats) {
			if msg.Direction == "out" {
				s.TransfersOut++
			} else {
				s.TransfersIn++
			}
		})
		if !m.paused {
			m.transfers.Add(components.TransferRow{
				Timestamp:    time.Now().Format("15:04:05"),
				BlockNumber:  msg.BlockNumber,
				Symbol:       msg.Symbol,
				Direction:    msg.Direction,
				Amount:       msg.Amount,
				Counterparty: msg.Counterparty,
				TxHash:       msg.TxHash,
			})
			m.activityFeed = addActivity(m.activityFeed,
				fmt.Sprintf("Transfer %s %s %s", msg.Direction, msg.Amount.StringFixed(4), msg.Symbol))
		}
		m.lastUpdate = time.Now()

	case ConnectionStatusMsg:
		name := msg.Name
		if name == "" {
			name = NodeConnection
		}
		m.status.Update(components.ConnectionStatus{Name: name, State: msg.State, LastUpdate: time.Now()})
		m.markStep("config", "done")
		switch msg.State {
		case "connected":
			m.markStep("node", "connected")
		case "disconnected":
			m.markStep("node", "failed")
		default:
			m.markStep("node", "connecting")
		}

	case ErrorMsg:
		m.bumpStats(func(s *components.Stats) { s.Errors++ })
		m.logs = addLog(m.logs, "error", msg.Error.Error())
		m.errors = append(m.errors, ErrorEntry{Message: msg.Error.Error(), Timestamp: time.Now()})
		if len(m.errors) > 3 {
			m.errors = m.errors[len(m.errors)-3:]
		}

	case LogMsg:
		m.logs = addLog(m.logs, msg.Level, msg.Message)

	case StartupMsg:
		m.markStep(msg.Step, msg.Status)
		if msg.Status == "failed" && msg.Message != "" {
			m.errors = append(m.errors, ErrorEntry{Message: msg.Message, Timestamp: time.Now()})
		}
	}

	return m, nil
}

func (m *Model) markStep(name, status string) {
	step, ok := m.startupSteps[name]
	if !ok {
		return
	}
	step.Status = status

	for _, s := range m.startupSteps {
		if s.Status != "connected" && s.Status != "done" {
			return
		}
	}
	m.startupComplete = true
}

func (m *Model) bumpStats(fn func(*components.Stats)) {
	s := m.stats.Stats()
	fn(&s)
	m.stats.Update(s)
}

// addLog adds a log message and returns the updated slice (keeps last 5).
func addLog(logs []string, level, message string) []string {
	timestamp := time.Now().Format("15:04:05")
	logLine := fmt.Sprintf("[%s] %s: %s", timestamp, level, message)
	logs = append(logs, logLine)
	if len(logs) > 5 {
		logs = logs[len(logs)-5:]
	}
	return logs
}

// addActivity adds an activity message and returns the updated slice (keeps last 6).
func addActivity(feed []string, message string) []string {
	timestamp := time.Now().Format("15:04:05")
	line := fmt.Sprintf("[%s] %s", timestamp, message)
	feed = append(feed, line)
	if len(feed) > 6 {
		feed = feed[len(feed)-6:]
	}
	return feed
}

// View renders the TUI.
func (m Model) View() string {
	if m.quitting {
		return "\n  Goodbye!\n\n"
	}

	switch m.phase {
	case PhaseWelcome:
		return m.renderWelcomeScreen()
	case PhaseStartup:
		if m.currentBlock == 0 && !m.startupComplete {
			return m.renderStartupScreen()
		}
	}

	var b strings.Builder

	b.WriteString(TitleStyle.Render(" dexops · wallet watch "))
	b.WriteString("\n\n")

	b.WriteString(m.renderStatusBar())
	b.WriteString("\n\n")

	leftCol := m.balances.View() + "\n\n" + m.renderActivityFeed()
	rightCol := m.transfers.View()

	width := m.width
	if width == 0 {
		width = 120
	}
	if width > 100 {
		left := BoxStyle.Width(width/2 - 2).Render(leftCol)
		right := BoxStyle.Width(width/2 - 2).Render(rightCol)
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, left, right))
	} else {
		b.WriteString(BoxStyle.Width(width - 4).Render(leftCol))
		b.WriteString("\n")
		b.WriteString(BoxStyle.Width(width - 4).Render(rightCol))
	}
	b.WriteString("\n\n")

	b.WriteString(m.stats.View())
	b.WriteString("\n\n")

	if len(m.errors) > 0 {
		errorStyle := lipgloss.NewStyle().Foreground(ColorDanger)
		errorHeader := lipgloss.NewStyle().Bold(true).Foreground(ColorDanger)

		b.WriteString(errorHeader.Render("ERRORS"))
		b.WriteString(MutedValue.Render(" (e: clear)"))
		b.WriteString("\n")
		for _, err := range m.errors {
			ago := time.Since(err.Timestamp).Round(time.Second)
			b.WriteString(errorStyle.Render(fmt.Sprintf("  • %s ", err.Message)))
			b.WriteString(MutedValue.Render(fmt.Sprintf("(%s ago)", ago)))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	if m.paused {
		pauseStyle := lipgloss.NewStyle().Bold(true).Foreground(ColorWarning)
		b.WriteString(pauseStyle.Render("⏸ PAUSED"))
		b.WriteString(" • ")
	}
	b.WriteString(HelpStyle.Render(m.keys.helpLine()))

	return b.String()
}

// renderActivityFeed renders the recent activity feed.
func (m Model) renderActivityFeed() string {
	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(ColorPrimary)
	blockStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#60A5FA"))

	var sb strings.Builder
	sb.WriteString(headerStyle.Render("LIVE ACTIVITY"))
	sb.WriteString("\n\n")

	if len(m.activityFeed) == 0 {
		sb.WriteString(MutedValue.Render("  Waiting for blocks..."))
		return sb.String()
	}
	for _, activity := range m.activityFeed {
		if strings.Contains(activity, "Block #") {
			sb.WriteString(blockStyle.Render("  " + activity))
		} else {
			sb.WriteString(PositiveValue.Render("  " + activity))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// renderWelcomeScreen renders the animated welcome screen.
func (m Model) renderWelcomeScreen() string {
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(ColorPrimary)
	greenStyle := lipgloss.NewStyle().Foreground(ColorSecondary)

	elapsed := time.Since(m.welcomeStart)
	dots := strings.Repeat(".", int(elapsed.Milliseconds()/300)%4)

	var sb strings.Builder
	sb.WriteString("\n\n\n\n")

	logo := `
   ██████╗ ███████╗██╗  ██╗ ██████╗ ██████╗ ███████╗
   ██╔══██╗██╔════╝╚██╗██╔╝██╔═══██╗██╔══██╗██╔════╝
   ██║  ██║█████╗   ╚███╔╝ ██║   ██║██████╔╝███████╗
   ██║  ██║██╔══╝   ██╔██╗ ██║   ██║██╔═══╝ ╚════██║
   ██████╔╝███████╗██╔╝ ██╗╚██████╔╝██║     ███████║
   ╚═════╝ ╚══════╝╚═╝  ╚═╝ ╚═════╝ ╚═╝     ╚══════╝
`
	sb.WriteString(titleStyle.Render(logo))
	sb.WriteString("\n")
	sb.WriteString(MutedValue.Render("                 W A L L E T   W A T C H"))
	sb.WriteString("\n\n\n")
	sb.WriteString(greenStyle.Render(fmt.Sprintf("                  Initializing%s", dots)))
	sb.WriteString("\n\n")
	sb.WriteString(MutedValue.Render("            Press any key to skip, or wait..."))
	sb.WriteString("\n")

	return sb.String()
}

// renderStartupScreen renders the loading/startup screen.
func (m Model) renderStartupScreen() string {
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(ColorPrimary).MarginBottom(1)
	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FFFFFF"))
	successStyle := lipgloss.NewStyle().Foreground(ColorSecondary)
	connectingStyle := lipgloss.NewStyle().Foreground(ColorWarning)
	failedStyle := lipgloss.NewStyle().Foreground(ColorDanger)

	var sb strings.Builder

	sb.WriteString("\n\n")
	sb.WriteString(titleStyle.Render("  dexops"))
	sb.WriteString("\n\n")
	sb.WriteString(headerStyle.Render("  Starting up..."))
	sb.WriteString("\n\n")

	for _, name := range startupOrder {
		step, ok := m.startupSteps[name]
		if !ok {
			continue
		}

		var icon, statusText string
		var style lipgloss.Style

		switch step.Status {
		case "connected", "done":
			icon, statusText, style = "✓", "Ready", successStyle
		case "connecting":
			spinners := []string{"◐", "◓", "◑", "◒"}
			idx := int(time.Since(m.startupTime).Milliseconds()/200) % len(spinners)
			icon, statusText, style = spinners[idx], "Connecting...", connectingStyle
		case "failed":
			icon, statusText, style = "✗", "Failed", failedStyle
		default:
			icon, statusText, style = "○", "Pending", MutedValue
		}

		sb.WriteString(fmt.Sprintf("  %s %s %s\n",
			style.Render(icon),
			MutedValue.Render(step.Name),
			style.Render(statusText),
		))
	}

	sb.WriteString("\n")
	elapsed := time.Since(m.startupTime).Round(time.Second)
	sb.WriteString(MutedValue.Render(fmt.Sprintf("  Elapsed: %s", elapsed)))
	sb.WriteString("\n\n")
	sb.WriteString(MutedValue.Render("  Waiting for first block..."))
	sb.WriteString("\n")

	for _, e := range m.errors {
		sb.WriteString(failedStyle.Render("  • " + e.Message))
		sb.WriteString("\n")
	}

	return sb.String()
}

func (m Model) renderStatusBar() string {
	parts := []string{
		fmt.Sprintf("Block: #%d", m.currentBlock),
		m.status.View(),
	}

	if !m.lastUpdate.IsZero() {
		ago := time.Since(m.lastUpdate).Round(time.Second)
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
// Set by main before Run.
var OnStartModules func()

// Run starts the Bubble Tea program.
func Run() error {
	Program = tea.NewProgram(New(), tea.WithAltScreen())
	_, err := Program.Run()
	return err
}

// Send sends a message to the running program.
func Send(msg tea.Msg) {
	if Program != nil {
		Program.Send(msg)
	}
	if _, ok := msg.(StartModulesMsg); ok && OnStartModules != nil {
		OnStartModules()
	}
}
