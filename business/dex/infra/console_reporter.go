// Package infra contains infrastructure adapters for the dex context.
package infra

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	chainDomain "github.com/fd1az/dexops/business/chain/domain"
	"github.com/fd1az/dexops/business/dex/app"
	"github.com/fd1az/dexops/business/dex/domain"
	"github.com/fd1az/dexops/internal/network"
)

var _ app.Reporter = (*ConsoleReporter)(nil)

// ConsoleReporter implements Reporter for CLI output.
type ConsoleReporter struct {
	out     io.Writer
	profile network.Profile

	mu    sync.Mutex
	state chainDomain.ConnectionState
}

// NewConsoleReporter creates a ConsoleReporter writing to stdout.
func NewConsoleReporter(profile network.Profile) *ConsoleReporter {
	return NewConsoleReporterTo(os.Stdout, profile)
}

// NewConsoleReporterTo creates a ConsoleReporter writing to out.
func NewConsoleReporterTo(out io.Writer, profile network.Profile) *ConsoleReporter {
	return &ConsoleReporter{out: out, profile: profile}
}

// Start initializes the console reporter.
func (r *ConsoleReporter) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.out, "Watching %s\n", r.profile.String())
	fmt.Fprintln(r.out, "======================")
	return nil
}

// ReportBlock prints one line per head.
func (r *ConsoleReporter) ReportBlock(block *chainDomain.Block) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.out, "[%s] block #%d %s gas %d/%d\n",
		clock(), block.Number, block.Hash.Hex()[:10], block.GasUsed, block.GasLimit)
}

// ReportTransfer prints a wallet transfer with an explorer link.
func (r *ConsoleReporter) ReportTransfer(event domain.TransferEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	counterparty := event.From
	if event.Direction == domain.DirectionOut {
		counterparty = event.To
	}

	fmt.Fprintln(r.out, "--------------------------------------------------------------------------------")
	fmt.Fprintf(r.out, "TRANSFER %s\n", event.Direction)
	fmt.Fprintf(r.out, "  Block:        #%d\n", event.BlockNumber)
	fmt.Fprintf(r.out, "  Amount:       %s %s\n", event.Amount.String(), event.Symbol)
	fmt.Fprintf(r.out, "  Counterparty: %s\n", counterparty.Hex())
	fmt.Fprintf(r.out, "  Tx:           %s\n", r.profile.TxURL(event.TxHash))
	fmt.Fprintln(r.out, "--------------------------------------------------------------------------------")
}

// ReportBalances prints the wallet's gas balance, the gas price and pending transactions.
func (r *ConsoleReporter) ReportBalances(gas decimal.Decimal, gasPrice *chainDomain.GasPrice, pending int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	gwei := "?"
	if gasPrice != nil {
		gwei = gasPrice.Gwei().StringFixed(2)
	}
	fmt.Fprintf(r.out, "[%s] balance %s %s | gas %s gwei | pending %d\n",
		clock(), gas.StringFixed(6), r.profile.GasSymbol, gwei, pending)
}

// UpdateConnectionStatus prints connection state changes only.
func (r *ConsoleReporter) UpdateConnectionStatus(state chainDomain.ConnectionState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if state == r.state {
		return
	}
	r.state = state
	fmt.Fprintf(r.out, "[%s] node: %s\n", clock(), state)
}

// ReportError prints a non-fatal error.
func (r *ConsoleReporter) ReportError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.out, "[%s] error: %v\n", clock(), err)
}

// Stop gracefully shuts down the console reporter.
func (r *ConsoleReporter) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintln(r.out, "")
	fmt.Fprintln(r.out, "Watch stopped")
	return nil
}

func clock() string {
	return time.Now().Format("15:04:05")
}
