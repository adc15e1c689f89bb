package app

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/fd1az/dexops/internal/apperror"
)

// NonceSource reports the account's pending transaction count.
type NonceSource interface {
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
}

// NonceManager hands out monotonic nonces for one account. It seeds from the node's pending
// count. A released nonce is rewound when it was the last one handed out and otherwise kept
// as a gap that the next reservation fills first.
type NonceManager struct {
	mu      sync.Mutex
	source  NonceSource
	account common.Address
	next    uint64
	gaps    map[uint64]struct{}
	synced  bool
	stale   bool
}

// NewNonceManager creates a manager for account.
func NewNonceManager(source NonceSource, account common.Address) *NonceManager {
	return &NonceManager{source: source, account: account, gaps: make(map[uint64]struct{})}
}

// Next reserves the next nonce. Every reservation must end in Release or a broadcast.
func (n *NonceManager) Next(ctx context.Context) (uint64, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if !n.synced || n.stale {
		if err := n.resync(ctx); err != nil {
			return 0, err
		}
	}

	if gap, ok := n.lowestGap(); ok {
		delete(n.gaps, gap)
		return gap, nil
	}

	nonce := n.next
	n.next++
	return nonce, nil
}

// Release returns a reserved nonce that was never broadcast.
func (n *NonceManager) Release(nonce uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if nonce+1 != n.next {
		n.gaps[nonce] = struct{}{}
		return
	}

	n.next--
	for n.next > 0 {
		if _, ok := n.gaps[n.next-1]; !ok {
			break
		}
		delete(n.gaps, n.next-1)
		n.next--
	}
}

// Invalidate makes the next reservation consult the node again. Nonces already handed out
// are never reissued.
func (n *NonceManager) Invalidate() {
	n.mu.Lock()
	n.stale = true
	n.mu.Unlock()
}

func (n *NonceManager) resync(ctx context.Context) error {
	pending, err := n.source.PendingNonceAt(ctx, n.account)
	if err != nil {
		return apperror.New(apperror.CodeNonceUnavailable,
			apperror.WithContext(n.account.Hex()), apperror.WithCause(err))
	}

	if !n.synced || pending > n.next {
		n.next = pending
	}
	for gap := range n.gaps {
		if gap < pending {
			delete(n.gaps, gap)
		}
	}
	n.synced = true
	n.stale = false
	return nil
}

func (n *NonceManager) lowestGap() (uint64, bool) {
	var (
		lowest uint64
		found  bool
	)
	for gap := range n.gaps {
		if !found || gap < lowest {
			lowest, found = gap, true
		}
	}
	return lowest, found
}
