// Package components provides reusable TUI components.
package components

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// ConnectionStatus represents a connection's status.
type ConnectionStatus struct {
	Name       string
	State      string
	LastBlock  uint64
	LastUpdate time.Time
}

// Connected reports whether the connection is live.
func (c ConnectionStatus) Connected() bool {
	return c.State == "connected"
}

// StatusComponent renders connection status.
type StatusComponent struct {
	connections []ConnectionStatus
}

// NewStatusComponent creates a new status component.
func NewStatusComponent() *StatusComponent {
	return &StatusComponent{
		connections: make([]ConnectionStatus, 0),
	}
}

// Update updates a connection's status. A zero LastBlock keeps the previous one.
func (s *StatusComponent) Update(status ConnectionStatus) {
	for i, conn := range s.connections {
		if conn.Name == status.Name {
			if status.LastBlock == 0 {
				status.LastBlock = conn.LastBlock
			}
			if status.State == "" {
				status.State = conn.State
			}
			s.connections[i] = status
			return
		}
	}
	s.connections = append(s.connections, status)
}

// Get returns the named connection.
func (s *StatusComponent) Get(name string) (ConnectionStatus, bool) {
	for _, conn := range s.connections {
		if conn.Name == name {
			return conn, true
		}
	}
	return ConnectionStatus{}, false
}

// View renders the status component as one line.
func (s *StatusComponent) View() string {
	if len(s.connections) == 0 {
		return "No connections"
	}

	parts := make([]string, 0, len(s.connections))
	for _, conn := range s.connections {
		var style lipgloss.Style
		icon := "○"
		switch conn.State {
		case "connected":
			style = lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981")).Bold(true)
			icon = "●"
		case "connecting", "reconnecting":
			style = lipgloss.NewStyle().Foreground(lipgloss.Color("#F59E0B")).Bold(true)
			icon = "◐"
		default:
			style = lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444")).Bold(true)
		}

		line := style.Render(fmt.Sprintf("%s %s (%s)", icon, conn.Name, conn.State))
		if conn.LastBlock > 0 {
			line += fmt.Sprintf(" #%d", conn.LastBlock)
		}
		parts = append(parts, line)
	}

	return strings.Join(parts, "  │  ")
}
