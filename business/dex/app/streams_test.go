package app_test

import (
	"context"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	chainDomain "github.com/fd1az/dexops/business/chain/domain"
	"github.com/fd1az/dexops/business/dex/app"
	"github.com/fd1az/dexops/business/dex/domain"
)

// streamChain hands out channels the test drives directly.
type streamChain struct {
	app.Chain
	wallet common.Address

	mu       sync.Mutex
	heads    []chan *chainDomain.Block
	headCtxs []context.Context
	logs     chan types.Log
	query    ethereum.FilterQuery
}

func (c *streamChain) Wallet() common.Address { return c.wallet }

func (c *streamChain) SubscribeBlocks(ctx context.Context) (<-chan *chainDomain.Block, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch := make(chan *chainDomain.Block, 16)
	c.heads = append(c.heads, ch)
	c.headCtxs = append(c.headCtxs, ctx)
	return ch, nil
}

func (c *streamChain) SubscribeLogs(_ context.Context, q ethereum.FilterQuery) (<-chan types.Log, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.query = q
	return c.logs, nil
}

func (c *streamChain) head(i int) chan *chainDomain.Block {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.heads[i]
}

func (c *streamChain) headCtx(i int) context.Context {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.headCtxs[i]
}

type blockRecorder struct {
	mu     sync.Mutex
	blocks []uint64
}

func (r *blockRecorder) record(b *chainDomain.Block) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.blocks = append(r.blocks, b.Number)
}

func (r *blockRecorder) seen() []uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]uint64(nil), r.blocks...)
}

func newStreamManager(t *testing.T, c *streamChain) *app.StreamManager {
	t.Helper()
	f := newFixture(t)
	m := app.NewStreamManager(c, f.bindings, f.metadata, 0, testLogger())
	t.Cleanup(m.Close)
	return m
}

func TestWatchBlocks_TrailingEdgeThrottle(t *testing.T) {
	c := &streamChain{}
	m := newStreamManager(t, c)

	var rec blockRecorder
	require.NoError(t, m.WatchBlocks(context.Background(), rec.record, 50*time.Millisecond))

	heads := c.head(0)
	for n := uint64(1); n <= 5; n++ {
		heads <- &chainDomain.Block{Number: n}
	}

	assert.Eventually(t, func() bool { return len(rec.seen()) == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, []uint64{5}, rec.seen(), "only the latest head of the window is delivered")

	heads <- &chainDomain.Block{Number: 6}
	assert.Eventually(t, func() bool { return len(rec.seen()) == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []uint64{5, 6}, rec.seen())
}

func TestWatchBlocks_ReplacesPreviousWatch(t *testing.T) {
	c := &streamChain{}
	m := newStreamManager(t, c)

	var first, second blockRecorder
	require.NoError(t, m.WatchBlocks(context.Background(), first.record, 10*time.Millisecond))
	require.NoError(t, m.WatchBlocks(context.Background(), second.record, 10*time.Millisecond))

	assert.Error(t, c.headCtx(0).Err(), "first watch is cancelled")
	assert.NoError(t, c.headCtx(1).Err())
	assert.Equal(t, 1, m.Watching())

	c.head(1) <- &chainDomain.Block{Number: 42}
	assert.Eventually(t, func() bool { return len(second.seen()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Empty(t, first.seen())

	m.UnwatchBlocks()
	assert.Error(t, c.headCtx(1).Err())
	assert.Zero(t, m.Watching())
}

func transferLog(from, to common.Address, raw *big.Int, index uint) types.Log {
	topic := erc20ABI.Events["Transfer"].ID
	return types.Log{
		Address:     tokenB,
		Topics:      []common.Hash{topic, common.BytesToHash(from.Bytes()), common.BytesToHash(to.Bytes())},
		Data:        common.LeftPadBytes(raw.Bytes(), 32),
		BlockNumber: 101,
		Index:       index,
	}
}

func TestWatchTransfers_FiltersToWallet(t *testing.T) {
	wallet := common.HexToAddress("0x00000000000000000000000000000000000000f1")
	other := common.HexToAddress("0x00000000000000000000000000000000000000f2")
	c := &streamChain{wallet: wallet, logs: make(chan types.Log, 8)}
	m := newStreamManager(t, c)

	var mu sync.Mutex
	var events []domain.TransferEvent
	require.NoError(t, m.WatchTransfers(context.Background(), tokenB, func(e domain.TransferEvent) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, e)
	}))

	require.Equal(t, []common.Address{tokenB}, c.query.Addresses)
	require.Equal(t, erc20ABI.Events["Transfer"].ID, c.query.Topics[0][0])

	c.logs <- transferLog(wallet, other, big.NewInt(1_500_000), 0)
	c.logs <- transferLog(other, other, big.NewInt(9), 1)
	c.logs <- types.Log{Address: tokenB, Topics: []common.Hash{erc20ABI.Events["Transfer"].ID}, Index: 2}
	c.logs <- transferLog(other, wallet, big.NewInt(250_000), 3)

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(events) == 2
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, domain.DirectionOut, events[0].Direction)
	assert.True(t, events[0].Amount.Equal(decimal.RequireFromString("1.5")))
	assert.Equal(t, "TKB", events[0].Symbol)

	assert.Equal(t, domain.DirectionIn, events[1].Direction)
	assert.True(t, events[1].Amount.Equal(decimal.RequireFromString("0.25")))
	assert.Equal(t, uint(3), events[1].LogIndex)
}

func TestWatchTransfers_KeyedPerToken(t *testing.T) {
	c := &streamChain{logs: make(chan types.Log)}
	m := newStreamManager(t, c)

	noop := func(domain.TransferEvent) {}
	require.NoError(t, m.WatchTransfers(context.Background(), tokenA, noop))
	require.NoError(t, m.WatchTransfers(context.Background(), tokenB, noop))
	require.NoError(t, m.WatchTransfers(context.Background(), tokenB, noop))
	assert.Equal(t, 2, m.Watching())

	m.UnwatchTransfers(tokenA)
	assert.Equal(t, 1, m.Watching())

	m.Close()
	assert.Zero(t, m.Watching())
}

func TestStreamManager_EndedContextDropsWatch(t *testing.T) {
	c := &streamChain{logs: make(chan types.Log)}
	m := newStreamManager(t, c)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, m.WatchBlocks(ctx, func(*chainDomain.Block) {}, 10*time.Millisecond))
	require.NoError(t, m.WatchTransfers(ctx, tokenB, func(domain.TransferEvent) {}))
	require.NoError(t, m.WatchTransfers(context.Background(), tokenA, func(domain.TransferEvent) {}))
	assert.Equal(t, 3, m.Watching())

	cancel()
	assert.Eventually(t, func() bool { return m.Watching() == 1 }, time.Second, 5*time.Millisecond)

	// A replacement installed after the old one ended is kept.
	require.NoError(t, m.WatchBlocks(context.Background(), func(*chainDomain.Block) {}, 10*time.Millisecond))
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 2, m.Watching())
}
