package domain

import (
	"context"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

func TestPendingTransaction_ResolvesOnce(t *testing.T) {
	hash := common.HexToHash("0xabc")
	p := NewPendingTransaction(hash, "approve", "poller-1", time.Unix(0, 0), 5*time.Second, 20*time.Minute)

	if p.Status() != TxPending {
		t.Fatalf("status = %s, want pending", p.Status())
	}
	if !p.ExpiresAt.Equal(time.Unix(1200, 0)) {
		t.Errorf("expires at %s", p.ExpiresAt)
	}

	var wg sync.WaitGroup
	wins := make(chan bool, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			wins <- p.Resolve(EmptyReceipt(hash))
		}()
	}
	wg.Wait()
	close(wins)

	won := 0
	for w := range wins {
		if w {
			won++
		}
	}
	if won != 1 {
		t.Errorf("%d resolutions won, want 1", won)
	}
	if p.Status() != TxExpired {
		t.Errorf("status = %s, want expired", p.Status())
	}
}

func TestPendingTransaction_WaitHonoursContext(t *testing.T) {
	p := NewPendingTransaction(common.Hash{}, "swap", "s", time.Now(), time.Second, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := p.Wait(ctx); err == nil {
		t.Fatal("expected context error")
	}

	p.Resolve(&Receipt{Status: TxConfirmed, Succeeded: true})
	r, err := p.Wait(context.Background())
	if err != nil || !r.Succeeded {
		t.Errorf("Wait after resolve = %+v, %v", r, err)
	}
}

func TestReceiptFromChain(t *testing.T) {
	r := ReceiptFromChain(&types.Receipt{
		TxHash:      common.HexToHash("0x01"),
		Status:      types.ReceiptStatusFailed,
		BlockNumber: big.NewInt(42),
		GasUsed:     21000,
	})
	if r.Status != TxConfirmed || r.Succeeded || r.BlockNumber != 42 {
		t.Errorf("unexpected conversion %+v", r)
	}
}

func TestGasPrice(t *testing.T) {
	g := NewGasPrice(big.NewInt(5_000_000_000), time.Now())
	if g.Gwei().String() != "5" {
		t.Errorf("gwei = %s", g.Gwei())
	}
	if g.Fee(21000).String() != "0.000105" {
		t.Errorf("fee = %s", g.Fee(21000))
	}
}
