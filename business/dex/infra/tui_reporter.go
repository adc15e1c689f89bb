package infra

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/shopspring/decimal"

	chainDomain "github.com/fd1az/dexops/business/chain/domain"
	"github.com/fd1az/dexops/business/dex/app"
	"github.com/fd1az/dexops/business/dex/domain"
	"github.com/fd1az/dexops/internal/network"
	"github.com/fd1az/dexops/pkg/ui"
)

var _ app.Reporter = (*TUIReporter)(nil)

// TUIReporter implements Reporter for the Bubble Tea dashboard. The program itself is owned
// by main; the reporter only sends messages to it.
type TUIReporter struct {
	profile network.Profile
	wallet  string
	send    func(tea.Msg)
}

// NewTUIReporter creates a TUIReporter sending to the running ui program.
func NewTUIReporter(profile network.Profile, wallet string) *TUIReporter {
	return &TUIReporter{profile: profile, wallet: wallet, send: ui.Send}
}

// Start announces the watched wallet.
func (r *TUIReporter) Start(ctx context.Context) error {
	r.send(ui.WalletMsg{Network: r.profile.String(), Address: r.wallet})
	r.send(ui.StartupMsg{Step: "streams", Status: "connecting"})
	return nil
}

// ReportBlock sends a block to the TUI.
func (r *TUIReporter) ReportBlock(block *chainDomain.Block) {
	r.send(ui.BlockMsg{
		Number:    block.Number,
		Timestamp: block.Timestamp,
		GasUsed:   block.GasUsed,
		GasLimit:  block.GasLimit,
	})
}

// ReportTransfer sends a wallet transfer to the TUI.
func (r *TUIReporter) ReportTransfer(event domain.TransferEvent) {
	counterparty := event.From
	if event.Direction == domain.DirectionOut {
		counterparty = event.To
	}
	r.send(ui.TransferMsg{
		BlockNumber:  event.BlockNumber,
		Symbol:       event.Symbol,
		Direction:    event.Direction.String(),
		Amount:       event.Amount,
		Counterparty: app.ShortAddress(counterparty),
		TxHash:       event.TxHash.Hex(),
	})
}

// ReportBalances sends the wallet balance snapshot to the TUI.
func (r *TUIReporter) ReportBalances(gas decimal.Decimal, gasPrice *chainDomain.GasPrice, pending int64) {
	msg := ui.BalancesMsg{Gas: gas, GasSymbol: r.profile.GasSymbol, Pending: pending}
	if gasPrice != nil {
		msg.GasGwei = gasPrice.Gwei()
	}
	r.send(msg)
}

// UpdateConnectionStatus sends connection status to the TUI.
func (r *TUIReporter) UpdateConnectionStatus(state chainDomain.ConnectionState) {
	r.send(ui.ConnectionStatusMsg{Name: ui.NodeConnection, State: string(state)})
}

// ReportError sends a non-fatal error to the TUI.
func (r *TUIReporter) ReportError(err error) {
	r.send(ui.ErrorMsg{Error: err})
}

// Stop is a no-op; quitting the program is up to the user or main.
func (r *TUIReporter) Stop() error {
	return nil
}
