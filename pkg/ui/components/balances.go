// Package components provides reusable TUI components.
package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"
)

// BalanceSnapshot is the wallet state at one head.
type BalanceSnapshot struct {
	Gas       decimal.Decimal
	GasSymbol string
	GasGwei   decimal.Decimal
	Pending   int64
	Block     uint64
}

// BalancesComponent renders the wallet panel.
type BalancesComponent struct {
	network string
	address string
	current *BalanceSnapshot
	first   *BalanceSnapshot
}

// NewBalancesComponent creates a new balances component.
func NewBalancesComponent() *BalancesComponent {
	return &BalancesComponent{}
}

// SetWallet sets the watched wallet.
func (b *BalancesComponent) SetWallet(network, address string) {
	b.network = network
	b.address = address
}

// Update records a new snapshot. The first snapshot is kept as the session baseline.
func (b *BalancesComponent) Update(s BalanceSnapshot) {
	if b.first == nil {
		first := s
		b.first = &first
	}
	b.current = &s
}

// View renders the balances component.
func (b *BalancesComponent) View() string {
	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED"))
	positiveStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981"))
	negativeStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444"))
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
	warnStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#F59E0B"))

	result := headerStyle.Render("WALLET") + "\n\n"
	if b.address != "" {
		result += fmt.Sprintf("  %-12s %s\n", "Network:", b.network)
		result += fmt.Sprintf("  %-12s %s\n", "Address:", b.address)
		result += dimStyle.Render("  "+strings.Repeat("─", 40)) + "\n"
	}

	if b.current == nil {
		return result + dimStyle.Render("  Waiting for balances...")
	}
	s := b.current

	result += fmt.Sprintf("  %-12s %s %s\n", "Gas:", s.Gas.StringFixed(6), s.GasSymbol)

	delta := s.Gas.Sub(b.first.Gas)
	switch {
	case delta.IsPositive():
		result += fmt.Sprintf("  %-12s %s\n", "Session:", positiveStyle.Render("+"+delta.StringFixed(6)))
	case delta.IsNegative():
		result += fmt.Sprintf("  %-12s %s\n", "Session:", negativeStyle.Render(delta.StringFixed(6)))
	default:
		result += fmt.Sprintf("  %-12s %s\n", "Session:", dimStyle.Render("0"))
	}

	result += fmt.Sprintf("  %-12s %s gwei\n", "Gas price:", s.GasGwei.StringFixed(2))

	pending := dimStyle.Render("0")
	if s.Pending > 0 {
		pending = warnStyle.Render(fmt.Sprintf("%d", s.Pending))
	}
	result += fmt.Sprintf("  %-12s %s\n", "Pending txs:", pending)

	return result
}
