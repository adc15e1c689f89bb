package app

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	chainDomain "github.com/fd1az/dexops/business/chain/domain"
	"github.com/fd1az/dexops/business/dex/domain"
	"github.com/fd1az/dexops/internal/apperror"
	"github.com/fd1az/dexops/internal/asset"
	"github.com/fd1az/dexops/internal/contract"
	"github.com/fd1az/dexops/internal/logger"
)

// DefaultBlockThrottle is the block callback window when none is given.
const DefaultBlockThrottle = 300 * time.Millisecond

// BlockHandler receives throttled chain heads.
type BlockHandler func(block *chainDomain.Block)

// TransferHandler receives wallet transfers of one token.
type TransferHandler func(event domain.TransferEvent)

// StreamManager owns the live block watch and one transfer watch per token. Installing a
// watch cancels the one it replaces.
type StreamManager struct {
	chain    Chain
	bindings *contract.Cache
	metadata *MetadataCache
	throttle time.Duration
	logger   logger.LoggerInterface

	mu        sync.Mutex
	blocks    *watch
	transfers map[common.Address]*watch
}

// watch is one installed subscription. Its pointer identity tells the current watch apart
// from one that was replaced.
type watch struct {
	cancel context.CancelFunc
}

// NewStreamManager creates a StreamManager. throttle <= 0 uses DefaultBlockThrottle.
func NewStreamManager(chain Chain, bindings *contract.Cache, metadata *MetadataCache, throttle time.Duration, log logger.LoggerInterface) *StreamManager {
	if throttle <= 0 {
		throttle = DefaultBlockThrottle
	}
	return &StreamManager{
		chain:     chain,
		bindings:  bindings,
		metadata:  metadata,
		throttle:  throttle,
		logger:    log,
		transfers: make(map[common.Address]*watch),
	}
}

// WatchBlocks delivers the most recent head to cb at most once per throttle window, on the
// trailing edge. throttle <= 0 uses the manager default. The watch ends when ctx is done, on
// UnwatchBlocks, or when replaced by another WatchBlocks call.
func (s *StreamManager) WatchBlocks(ctx context.Context, cb BlockHandler, throttle time.Duration) error {
	if throttle <= 0 {
		throttle = s.throttle
	}

	watchCtx, cancel := context.WithCancel(ctx)
	heads, err := s.chain.SubscribeBlocks(watchCtx)
	if err != nil {
		cancel()
		return err
	}

	w := &watch{cancel: cancel}
	s.mu.Lock()
	if s.blocks != nil {
		s.blocks.cancel()
	}
	s.blocks = w
	s.mu.Unlock()

	go func() {
		defer s.endBlocks(w)
		throttleBlocks(watchCtx, heads, throttle, cb)
	}()
	return nil
}

// endBlocks clears w once its goroutine exits, unless a newer watch replaced it.
func (s *StreamManager) endBlocks(w *watch) {
	w.cancel()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.blocks == w {
		s.blocks = nil
	}
}

func throttleBlocks(ctx context.Context, heads <-chan *chainDomain.Block, window time.Duration, cb BlockHandler) {
	var (
		latest *chainDomain.Block
		timer  *time.Timer
		fire   <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case b, ok := <-heads:
			if !ok {
				return
			}
			latest = b
			if fire == nil {
				timer = time.NewTimer(window)
				fire = timer.C
			}
		case <-fire:
			fire = nil
			if latest != nil && ctx.Err() == nil {
				cb(latest)
				latest = nil
			}
		}
	}
}

// UnwatchBlocks cancels the block watch, if any.
func (s *StreamManager) UnwatchBlocks() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.blocks != nil {
		s.blocks.cancel()
		s.blocks = nil
	}
}

// transferLog is the non-indexed part of Transfer(address,address,uint256).
type transferLog struct {
	Value *big.Int
}

// WatchTransfers delivers Transfer events of token where the wallet is sender or recipient.
// Logs that fail to decode are logged and dropped.
func (s *StreamManager) WatchTransfers(ctx context.Context, token common.Address, cb TransferHandler) error {
	b, err := s.bindings.Token(token)
	if err != nil {
		return err
	}
	topic, err := b.EventID(contract.EventTransfer)
	if err != nil {
		return err
	}
	decimals, err := s.metadata.Decimals(ctx, token)
	if err != nil {
		return err
	}
	symbol, _ := s.metadata.Symbol(ctx, token)

	watchCtx, cancel := context.WithCancel(ctx)
	logs, err := s.chain.SubscribeLogs(watchCtx, ethereum.FilterQuery{
		Addresses: []common.Address{token},
		Topics:    [][]common.Hash{{topic}},
	})
	if err != nil {
		cancel()
		return apperror.Wrap(err, apperror.CodeSubscriptionFailed, "transfer logs "+token.Hex())
	}

	w := &watch{cancel: cancel}
	s.mu.Lock()
	if prev, ok := s.transfers[token]; ok {
		prev.cancel()
	}
	s.transfers[token] = w
	s.mu.Unlock()

	wallet := s.chain.Wallet()
	go func() {
		defer s.endTransfers(token, w)
		for {
			select {
			case <-watchCtx.Done():
				return
			case l, ok := <-logs:
				if !ok {
					return
				}
				event, ok, err := decodeTransfer(b, l, wallet, decimals)
				if err != nil {
					s.logger.Warn(watchCtx, "dropping malformed transfer log",
						"token", token.Hex(), "tx", l.TxHash.Hex(), "error", err)
					continue
				}
				if !ok {
					continue
				}
				event.Symbol = symbol
				cb(event)
			}
		}
	}()

	return nil
}

func (s *StreamManager) endTransfers(token common.Address, w *watch) {
	w.cancel()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.transfers[token] == w {
		delete(s.transfers, token)
	}
}

// decodeTransfer returns ok=false for transfers the wallet is not part of.
func decodeTransfer(b *contract.Binding, l types.Log, wallet common.Address, decimals uint8) (domain.TransferEvent, bool, error) {
	if len(l.Topics) != 3 {
		return domain.TransferEvent{}, false, apperror.New(apperror.CodeContractABIError,
			apperror.WithContextf("transfer log has %d topics", len(l.Topics)))
	}

	from := common.BytesToAddress(l.Topics[1].Bytes())
	to := common.BytesToAddress(l.Topics[2].Bytes())
	direction, ok := domain.DirectionFor(wallet, from, to)
	if !ok {
		return domain.TransferEvent{}, false, nil
	}

	var out transferLog
	if err := b.UnpackLog(&out, contract.EventTransfer, l); err != nil {
		return domain.TransferEvent{}, false, err
	}
	amount, err := asset.FromBaseUnits(out.Value, decimals)
	if err != nil {
		return domain.TransferEvent{}, false, err
	}

	return domain.TransferEvent{
		Token:       l.Address,
		From:        from,
		To:          to,
		Amount:      amount,
		Raw:         out.Value,
		BlockNumber: l.BlockNumber,
		TxHash:      l.TxHash,
		LogIndex:    l.Index,
		Direction:   direction,
	}, true, nil
}

// UnwatchTransfers cancels the transfer watch for token, if any.
func (s *StreamManager) UnwatchTransfers(token common.Address) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if w, ok := s.transfers[token]; ok {
		w.cancel()
		delete(s.transfers, token)
	}
}

// Watching returns the number of live watches.
func (s *StreamManager) Watching() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.transfers)
	if s.blocks != nil {
		n++
	}
	return n
}

// Close cancels every watch.
func (s *StreamManager) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.blocks != nil {
		s.blocks.cancel()
		s.blocks = nil
	}
	for token, w := range s.transfers {
		w.cancel()
		delete(s.transfers, token)
	}
}
