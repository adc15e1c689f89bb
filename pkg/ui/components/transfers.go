// Package components provides reusable TUI components.
package components

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"
)

// TransferRow represents a wallet transfer in the list.
type TransferRow struct {
	Timestamp    string
	BlockNumber  uint64
	Symbol       string
	Direction    string
	Amount       decimal.Decimal
	Counterparty string
	TxHash       string
}

// TransfersComponent renders the wallet transfer list, newest first.
type TransfersComponent struct {
	rows    []TransferRow
	maxRows int
	visible int
	offset  int
}

// NewTransfersComponent creates a new transfers component.
func NewTransfersComponent(maxRows, visible int) *TransfersComponent {
	return &TransfersComponent{
		rows:    make([]TransferRow, 0),
		maxRows: maxRows,
		visible: visible,
	}
}

// Add adds a new transfer to the top of the list.
func (t *TransfersComponent) Add(row TransferRow) {
	t.rows = append([]TransferRow{row}, t.rows...)
	if len(t.rows) > t.maxRows {
		t.rows = t.rows[:t.maxRows]
	}
}

// Len returns the number of stored transfers.
func (t *TransfersComponent) Len() int {
	return len(t.rows)
}

// Clear clears all transfers.
func (t *TransfersComponent) Clear() {
	t.rows = make([]TransferRow, 0)
	t.offset = 0
}

// ScrollUp moves the window towards newer transfers.
func (t *TransfersComponent) ScrollUp() {
	if t.offset > 0 {
		t.offset--
	}
}

// ScrollDown moves the window towards older transfers.
func (t *TransfersComponent) ScrollDown() {
	if t.offset+t.visible < len(t.rows) {
		t.offset++
	}
}

// View renders the transfers component.
func (t *TransfersComponent) View() string {
	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED"))
	inStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981"))
	outStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444"))
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))

	result := headerStyle.Render(fmt.Sprintf("TRANSFERS (%d)", len(t.rows))) + "\n\n"
	if len(t.rows) == 0 {
		return result + dimStyle.Render("  No wallet transfers yet...")
	}

	result += "┌──────────┬─────────┬──────┬──────────────────┬───────────────┐\n"
	result += "│   Time   │  Block  │ Dir  │      Amount      │ Counterparty  │\n"
	result += "├──────────┼─────────┼──────┼──────────────────┼───────────────┤\n"

	end := t.offset + t.visible
	if end > len(t.rows) {
		end = len(t.rows)
	}
	for _, row := range t.rows[t.offset:end] {
		style, sign := inStyle, "+"
		switch row.Direction {
		case "out":
			style, sign = outStyle, "-"
		case "self":
			style, sign = dimStyle, "="
		}

		amount := fmt.Sprintf("%s%s %s", sign, row.Amount.StringFixed(4), row.Symbol)
		result += fmt.Sprintf("│ %8s │%8d │ %-4s │ %s │ %-13s │\n",
			row.Timestamp,
			row.BlockNumber,
			row.Direction,
			style.Render(fmt.Sprintf("%16s", amount)),
			row.Counterparty,
		)
	}

	result += "└──────────┴─────────┴──────┴──────────────────┴───────────────┘"
	if len(t.rows) > t.visible {
		result += "\n" + dimStyle.Render(fmt.Sprintf("  showing %d-%d of %d", t.offset+1, end, len(t.rows)))
	}
	return result
}
