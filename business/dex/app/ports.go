// Package app contains application services and port definitions for the dex context.
package app

import (
	"context"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/shopspring/decimal"

	chainApp "github.com/fd1az/dexops/business/chain/app"
	chainDomain "github.com/fd1az/dexops/business/chain/domain"
	"github.com/fd1az/dexops/business/dex/domain"
)

const (
	tracerName = "github.com/fd1az/dexops/business/dex/app"
	meterName  = "github.com/fd1az/dexops/business/dex/app"
)

// Chain is the slice of the chain context the trader depends on. *chainApp.ChainService
// satisfies it.
type Chain interface {
	Node() chainApp.Node
	Wallet() common.Address
	GasBalance(ctx context.Context, account common.Address) (decimal.Decimal, error)
	GetGasPrice(ctx context.Context) (*chainDomain.GasPrice, error)
	Submit(ctx context.Context, req chainDomain.TxRequest) (*chainDomain.PendingTransaction, error)
	SubscribeBlocks(ctx context.Context) (<-chan *chainDomain.Block, error)
	SubscribeLogs(ctx context.Context, q ethereum.FilterQuery) (<-chan types.Log, error)
	ConnectionState() chainDomain.ConnectionState
	PendingCount() int64
}

var _ Chain = (*chainApp.ChainService)(nil)

// Reporter renders trader activity for the watch command.
type Reporter interface {
	// Start initializes the reporter.
	Start(ctx context.Context) error

	// ReportBlock displays a new chain head.
	ReportBlock(block *chainDomain.Block)

	// ReportTransfer displays a wallet token transfer.
	ReportTransfer(event domain.TransferEvent)

	// ReportBalances displays the wallet's gas balance and the current gas price.
	ReportBalances(gas decimal.Decimal, gasPrice *chainDomain.GasPrice, pending int64)

	// UpdateConnectionStatus displays the node connection state.
	UpdateConnectionStatus(state chainDomain.ConnectionState)

	// ReportError displays a non-fatal error.
	ReportError(err error)

	// Stop gracefully shuts down the reporter.
	Stop() error
}
