package ethereum

import (
	"context"
	"errors"
	"io"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/sony/gobreaker/v2"

	"github.com/fd1az/dexops/business/chain/domain"
	"github.com/fd1az/dexops/internal/apperror"
	"github.com/fd1az/dexops/internal/chaintest"
	"github.com/fd1az/dexops/internal/logger"
)

func testLogger() logger.LoggerInterface {
	return logger.New(io.Discard, logger.LevelError, "ethereum-test", nil)
}

// downNode fails gas price requests the way a dead transport does.
type downNode struct {
	*chaintest.FakeNode
}

func (downNode) SuggestGasPrice(context.Context) (*big.Int, error) {
	return nil, errors.New("dial tcp 127.0.0.1:8545: connect: connection refused")
}

func TestClient_NotFoundDoesNotTrip(t *testing.T) {
	c, err := NewClient(chaintest.NewFakeNode(56), DefaultClientConfig(), testLogger())
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 20; i++ {
		_, err := c.TransactionReceipt(context.Background(), common.HexToHash("0x01"))
		if !errors.Is(err, ethereum.NotFound) {
			t.Fatalf("call %d: err = %v, want NotFound", i, err)
		}
	}
	if c.BreakerState() != gobreaker.StateClosed {
		t.Errorf("breaker = %s, want closed", c.BreakerState())
	}
}

func TestClient_TransportFailuresOpenBreaker(t *testing.T) {
	c, err := NewClient(downNode{chaintest.NewFakeNode(56)}, DefaultClientConfig(), testLogger())
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 5; i++ {
		if _, err := c.SuggestGasPrice(context.Background()); err == nil {
			t.Fatal("expected transport error")
		}
	}

	_, err = c.SuggestGasPrice(context.Background())
	if !apperror.HasCode(err, apperror.CodeCircuitOpen) {
		t.Fatalf("err = %v, want circuit open", err)
	}

	// Other methods share the breaker.
	if _, err := c.ChainID(context.Background()); !apperror.HasCode(err, apperror.CodeCircuitOpen) {
		t.Errorf("ChainID err = %v, want circuit open", err)
	}
}

func TestClient_PassesValuesThrough(t *testing.T) {
	node := chaintest.NewFakeNode(96)
	c, err := NewClient(node, DefaultClientConfig(), testLogger())
	if err != nil {
		t.Fatal(err)
	}

	id, err := c.ChainID(context.Background())
	if err != nil || id.Int64() != 96 {
		t.Fatalf("ChainID = %v, %v", id, err)
	}

	head, err := c.HeaderByNumber(context.Background(), nil)
	if err != nil || head.Number.Uint64() != 100 {
		t.Fatalf("head = %v, %v", head, err)
	}
}

func TestGasOracle_CachesAndCaps(t *testing.T) {
	node := chaintest.NewFakeNode(56)
	node.SetGasPrice(big.NewInt(3_000_000_000))

	oracle, err := NewGasOracle(GasOracleConfig{CacheTTL: time.Minute}, node, testLogger())
	if err != nil {
		t.Fatal(err)
	}
	defer oracle.Close()

	for i := 0; i < 3; i++ {
		price, err := oracle.GetGasPrice(context.Background())
		if err != nil {
			t.Fatal(err)
		}
		if price.Gwei().String() != "3" {
			t.Errorf("gwei = %s, want 3", price.Gwei())
		}
	}
	if got := node.GasPriceCalls(); got != 1 {
		t.Errorf("node calls = %d, want 1", got)
	}

	capped, err := NewGasOracle(GasOracleConfig{MaxGasPrice: big.NewInt(1_000_000_000)}, node, testLogger())
	if err != nil {
		t.Fatal(err)
	}
	defer capped.Close()

	price, err := capped.GetGasPrice(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if price.Wei.Int64() != 1_000_000_000 {
		t.Errorf("wei = %s, want cap", price.Wei)
	}
}

func TestGasOracle_WrapsNodeErrors(t *testing.T) {
	oracle, err := NewGasOracle(DefaultGasOracleConfig(), downNode{chaintest.NewFakeNode(56)}, testLogger())
	if err != nil {
		t.Fatal(err)
	}
	defer oracle.Close()

	_, err = oracle.GetGasPrice(context.Background())
	if !apperror.HasCode(err, apperror.CodeNodeError) {
		t.Errorf("err = %v, want node error", err)
	}
}

func newPollingSubscriber(t *testing.T, node *chaintest.FakeNode) *Subscriber {
	t.Helper()
	cfg := DefaultSubscriberConfig("")
	cfg.PollInterval = 5 * time.Millisecond
	sub, err := NewSubscriber(cfg, node, testLogger())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = sub.Close() })
	return sub
}

func TestSubscriber_PollsHeadsOverHTTP(t *testing.T) {
	node := chaintest.NewFakeNode(56)
	sub := newPollingSubscriber(t, node)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	blocks, err := sub.Subscribe(ctx)
	if err != nil {
		t.Fatal(err)
	}

	first := recvBlock(t, blocks)
	if first.Number != 100 {
		t.Fatalf("first block = %d, want 100", first.Number)
	}

	node.AdvanceHead(1)
	if next := recvBlock(t, blocks); next.Number != 101 {
		t.Fatalf("next block = %d, want 101", next.Number)
	}

	status := sub.Status()
	if !status.UsingHTTP || status.State != domain.StateConnected || status.LastBlock != 101 {
		t.Errorf("status = %+v", status)
	}

	cancel()
	for range blocks {
	}
}

func TestSubscriber_PollsLogsOnce(t *testing.T) {
	node := chaintest.NewFakeNode(56)
	sub := newPollingSubscriber(t, node)

	token := common.HexToAddress("0x55d398326f99059fF775485246999027B3197955")
	other := common.HexToAddress("0x1111111111111111111111111111111111111111")

	// Logs at or before the subscribe head are history.
	node.AddLog(types.Log{Address: token, BlockNumber: 100, Index: 0})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logs, err := sub.SubscribeLogs(ctx, ethereum.FilterQuery{Addresses: []common.Address{token}})
	if err != nil {
		t.Fatal(err)
	}

	node.AdvanceHead(1)
	node.AddLog(types.Log{Address: token, BlockNumber: 101, Index: 0})
	node.AddLog(types.Log{Address: other, BlockNumber: 101, Index: 1})
	node.AddLog(types.Log{Address: token, BlockNumber: 101, Index: 2, Removed: true})
	node.AddLog(types.Log{Address: token, BlockNumber: 101, Index: 3})

	got := []uint{recvLog(t, logs).Index, recvLog(t, logs).Index}
	if got[0] != 0 || got[1] != 3 {
		t.Fatalf("indexes = %v, want [0 3]", got)
	}

	// Several more polls over the same range must not redeliver.
	select {
	case l := <-logs:
		t.Fatalf("duplicate log %d/%d", l.BlockNumber, l.Index)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestLogCursor(t *testing.T) {
	c := &logCursor{block: 10, index: -1}

	steps := []struct {
		block uint64
		index uint
		want  bool
	}{
		{9, 5, false},
		{10, 0, true},
		{10, 0, false},
		{10, 2, true},
		{10, 1, false},
		{11, 0, true},
	}
	for _, s := range steps {
		if got := c.advance(types.Log{BlockNumber: s.block, Index: s.index}); got != s.want {
			t.Errorf("advance(%d/%d) = %v, want %v", s.block, s.index, got, s.want)
		}
	}
}

func TestSubscriber_ClosedRejectsSubscribe(t *testing.T) {
	sub := newPollingSubscriber(t, chaintest.NewFakeNode(56))
	_ = sub.Close()

	if _, err := sub.Subscribe(context.Background()); !apperror.HasCode(err, apperror.CodeSubscriptionFailed) {
		t.Errorf("err = %v, want subscription failed", err)
	}
	if sub.State() != domain.StateDisconnected {
		t.Errorf("state = %s", sub.State())
	}
}

func recvBlock(t *testing.T, ch <-chan *domain.Block) *domain.Block {
	t.Helper()
	select {
	case b := <-ch:
		return b
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for block")
		return nil
	}
}

func recvLog(t *testing.T, ch <-chan types.Log) types.Log {
	t.Helper()
	select {
	case l := <-ch:
		return l
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for log")
		return types.Log{}
	}
}
