// Package ui provides the Bubble Tea dashboard for the watch command.
package ui

import (
	"time"

	"github.com/shopspring/decimal"
)

// Message types for TUI updates

// BlockMsg is sent when a new block is received.
type BlockMsg struct {
	Number    uint64
	Timestamp time.Time
	GasUsed   uint64
	GasLimit  uint64
}

// BalancesMsg is sent when the wallet's gas balance and the gas price are refreshed.
type BalancesMsg struct {
	Gas       decimal.Decimal
	GasSymbol string
	GasGwei   decimal.Decimal
	Pending   int64
}

// TransferMsg is sent for each token transfer touching the wallet.
type TransferMsg struct {
	BlockNumber  uint64
	Symbol       string
	Direction    string // "in", "out", "self"
	Amount       decimal.Decimal
	Counterparty string
	TxHash       string
}

// ConnectionStatusMsg is sent when the node connection state changes.
type ConnectionStatusMsg struct {
	Name  string
	State string // "connected", "connecting", "reconnecting", "disconnected"
}

// ErrorMsg is sent when an error occurs.
type ErrorMsg struct {
	Error error
}

// TickMsg is sent periodically for UI updates.
type TickMsg struct{}

// StartModulesMsg signals that modules should start loading.
type StartModulesMsg struct{}

// LogMsg is sent to display a log message in the UI.
type LogMsg struct {
	Level   string // "info", "warn", "error"
	Message string
}

// StartupMsg is sent during application startup to show progress.
type StartupMsg struct {
	Step    string // "config", "node", "wallet", "streams"
	Status  string // "connecting", "connected", "done", "failed"
	Message string
}

// WalletMsg tells the dashboard which wallet and network it is watching.
type WalletMsg struct {
	Network string
	Address string
}
