package app

import (
	"context"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/shopspring/decimal"

	"github.com/fd1az/dexops/business/chain/domain"
	"github.com/fd1az/dexops/internal/apperror"
	"github.com/fd1az/dexops/internal/asset"
)

// ChainService coordinates node reads, streams and transaction submission for one wallet.
type ChainService struct {
	node       Node
	subscriber BlockSubscriber
	logs       LogSubscriber
	gasOracle  GasOracle
	submitter  *Submitter
	poller     *ReceiptPoller
}

// NewChainService creates a new ChainService.
func NewChainService(node Node, subscriber BlockSubscriber, logs LogSubscriber, gasOracle GasOracle, submitter *Submitter, poller *ReceiptPoller) *ChainService {
	return &ChainService{
		node:       node,
		subscriber: subscriber,
		logs:       logs,
		gasOracle:  gasOracle,
		submitter:  submitter,
		poller:     poller,
	}
}

// Node exposes the read port, e.g. to build contract bindings.
func (s *ChainService) Node() Node {
	return s.node
}

// Wallet is the signing address.
func (s *ChainService) Wallet() common.Address {
	return s.submitter.Address()
}

// GasBalance returns the native coin balance of account.
func (s *ChainService) GasBalance(ctx context.Context, account common.Address) (decimal.Decimal, error) {
	wei, err := s.node.BalanceAt(ctx, account, nil)
	if err != nil {
		return decimal.Zero, apperror.Node("eth_getBalance "+account.Hex(), err)
	}
	return asset.FromBaseUnits(wei, asset.NativeDecimals)
}

// GetGasPrice retrieves the current gas price.
func (s *ChainService) GetGasPrice(ctx context.Context) (*domain.GasPrice, error) {
	return s.gasOracle.GetGasPrice(ctx)
}

// Submit broadcasts req and returns its pending handle.
func (s *ChainService) Submit(ctx context.Context, req domain.TxRequest) (*domain.PendingTransaction, error) {
	return s.submitter.Submit(ctx, req)
}

// SubscribeBlocks starts a per-call block stream.
func (s *ChainService) SubscribeBlocks(ctx context.Context) (<-chan *domain.Block, error) {
	return s.subscriber.Subscribe(ctx)
}

// SubscribeLogs starts a per-call log stream.
func (s *ChainService) SubscribeLogs(ctx context.Context, q ethereum.FilterQuery) (<-chan types.Log, error) {
	return s.logs.SubscribeLogs(ctx, q)
}

// LatestBlock returns the current head.
func (s *ChainService) LatestBlock(ctx context.Context) (*domain.Block, error) {
	return s.subscriber.LatestBlock(ctx)
}

// ConnectionState returns the current connection state.
func (s *ChainService) ConnectionState() domain.ConnectionState {
	return s.subscriber.State()
}

// PendingCount is the number of transactions still being polled.
func (s *ChainService) PendingCount() int64 {
	return s.poller.Active()
}

// Close stops receipt polling and releases stream and oracle resources.
func (s *ChainService) Close() {
	s.poller.Close()
	for _, r := range []any{s.subscriber, s.gasOracle} {
		if closer, ok := r.(interface{ Close() error }); ok {
			_ = closer.Close()
		}
	}
}
