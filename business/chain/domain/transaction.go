package domain

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/shopspring/decimal"
)

// TxRequest is a state-changing call to be drafted, estimated, signed and broadcast.
type TxRequest struct {
	To          common.Address
	Data        []byte
	Value       decimal.Decimal // native coin, 18 decimals
	GasLimit    uint64          // draft gas limit; 0 uses the submitter default
	Description string
}

// TxStatus is the lifecycle state of a submitted transaction.
type TxStatus string

const (
	TxPending   TxStatus = "pending"
	TxConfirmed TxStatus = "confirmed"
	TxExpired   TxStatus = "expired"
)

// Receipt is the final outcome of a submitted transaction. Expired receipts carry only the hash.
type Receipt struct {
	TxHash            common.Hash
	Status            TxStatus
	Succeeded         bool
	BlockNumber       uint64
	GasUsed           uint64
	EffectiveGasPrice *big.Int
	Logs              []*types.Log
}

// EmptyReceipt is the expiry sentinel.
func EmptyReceipt(hash common.Hash) *Receipt {
	return &Receipt{TxHash: hash, Status: TxExpired}
}

// ReceiptFromChain converts a mined go-ethereum receipt.
func ReceiptFromChain(r *types.Receipt) *Receipt {
	out := &Receipt{
		TxHash:            r.TxHash,
		Status:            TxConfirmed,
		Succeeded:         r.Status == types.ReceiptStatusSuccessful,
		GasUsed:           r.GasUsed,
		EffectiveGasPrice: r.EffectiveGasPrice,
		Logs:              r.Logs,
	}
	if r.BlockNumber != nil {
		out.BlockNumber = r.BlockNumber.Uint64()
	}
	return out
}

// Expired reports whether polling gave up before a receipt appeared.
func (r *Receipt) Expired() bool {
	return r.Status == TxExpired
}

// PendingTransaction is the handle returned by every mutating operation. It is resolved
// exactly once by its receipt poller.
type PendingTransaction struct {
	Hash         common.Hash
	Description  string
	SessionID    string
	SubmittedAt  time.Time
	PollInterval time.Duration
	ExpiresAt    time.Time

	once    sync.Once
	done    chan struct{}
	mu      sync.RWMutex
	receipt *Receipt
}

// NewPendingTransaction creates an unresolved handle.
func NewPendingTransaction(hash common.Hash, description, sessionID string, submittedAt time.Time, interval, expiry time.Duration) *PendingTransaction {
	return &PendingTransaction{
		Hash:         hash,
		Description:  description,
		SessionID:    sessionID,
		SubmittedAt:  submittedAt,
		PollInterval: interval,
		ExpiresAt:    submittedAt.Add(expiry),
		done:         make(chan struct{}),
	}
}

// Resolve stores the outcome. Only the first call has an effect; it reports whether it won.
func (p *PendingTransaction) Resolve(r *Receipt) bool {
	won := false
	p.once.Do(func() {
		p.mu.Lock()
		p.receipt = r
		p.mu.Unlock()
		close(p.done)
		won = true
	})
	return won
}

// Done is closed once the transaction is confirmed or expired.
func (p *PendingTransaction) Done() <-chan struct{} {
	return p.done
}

// Wait blocks until resolution or ctx cancellation. Cancelling ctx does not stop polling.
func (p *PendingTransaction) Wait(ctx context.Context) (*Receipt, error) {
	select {
	case <-p.done:
		r, _ := p.Receipt()
		return r, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Receipt returns the outcome if resolved.
func (p *PendingTransaction) Receipt() (*Receipt, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.receipt, p.receipt != nil
}

// Status returns Pending until resolved.
func (p *PendingTransaction) Status() TxStatus {
	if r, ok := p.Receipt(); ok {
		return r.Status
	}
	return TxPending
}
