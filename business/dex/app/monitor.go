package app

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"

	chainDomain "github.com/fd1az/dexops/business/chain/domain"
	"github.com/fd1az/dexops/business/dex/domain"
	"github.com/fd1az/dexops/internal/logger"
)

// MonitorConfig holds configuration for the wallet monitor.
type MonitorConfig struct {
	Tokens        []common.Address
	BlockThrottle time.Duration
}

// Monitor feeds a Reporter with heads, wallet transfers and balances for the watch command.
type Monitor struct {
	chain    Chain
	streams  *StreamManager
	reporter Reporter
	config   MonitorConfig
	logger   logger.LoggerInterface
}

// NewMonitor creates a new Monitor.
func NewMonitor(chain Chain, streams *StreamManager, reporter Reporter, config MonitorConfig, log logger.LoggerInterface) *Monitor {
	return &Monitor{
		chain:    chain,
		streams:  streams,
		reporter: reporter,
		config:   config,
		logger:   log,
	}
}

// Start installs the block and transfer watches and starts the reporter.
func (m *Monitor) Start(ctx context.Context) error {
	m.logger.Info(ctx, "starting wallet monitor", "wallet", m.chain.Wallet().Hex(), "tokens", len(m.config.Tokens))

	if err := m.reporter.Start(ctx); err != nil {
		return err
	}

	if err := m.streams.WatchBlocks(ctx, func(block *chainDomain.Block) {
		m.onNewBlock(ctx, block)
	}, m.config.BlockThrottle); err != nil {
		return err
	}

	for _, token := range m.config.Tokens {
		if err := m.streams.WatchTransfers(ctx, token, m.onTransfer); err != nil {
			m.logger.Warn(ctx, "transfer watch failed", "token", token.Hex(), "error", err)
			m.reporter.ReportError(err)
		}
	}

	m.refresh(ctx)
	return nil
}

func (m *Monitor) onNewBlock(ctx context.Context, block *chainDomain.Block) {
	m.logger.Debug(ctx, "processing block", "number", block.Number, "hash", block.Hash.Hex())
	m.reporter.ReportBlock(block)
	m.refresh(ctx)
}

func (m *Monitor) onTransfer(event domain.TransferEvent) {
	m.reporter.ReportTransfer(event)
}

func (m *Monitor) refresh(ctx context.Context) {
	m.reporter.UpdateConnectionStatus(m.chain.ConnectionState())

	gas, err := m.chain.GasBalance(ctx, m.chain.Wallet())
	if err != nil {
		m.reporter.ReportError(err)
		return
	}
	price, err := m.chain.GetGasPrice(ctx)
	if err != nil {
		m.reporter.ReportError(err)
		return
	}
	m.reporter.ReportBalances(gas, price, m.chain.PendingCount())
}

// Stop cancels the watches and shuts the reporter down.
func (m *Monitor) Stop() error {
	m.logger.Info(context.Background(), "stopping wallet monitor")
	m.streams.Close()
	return m.reporter.Stop()
}
