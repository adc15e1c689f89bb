package app_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fd1az/dexops/business/chain/app"
	"github.com/fd1az/dexops/business/chain/domain"
	"github.com/fd1az/dexops/business/chain/infra/wallet"
	"github.com/fd1az/dexops/internal/apperror"
	"github.com/fd1az/dexops/internal/chaintest"
	"github.com/fd1az/dexops/internal/logger"
)

const chainID = 56

var target = common.HexToAddress("0x00000000000000000000000000000000000000aa")

func testLogger() logger.LoggerInterface {
	return logger.New(io.Discard, logger.LevelError, "chain-test", nil)
}

type fixture struct {
	node      *chaintest.FakeNode
	clock     *chaintest.FakeClock
	signer    *wallet.Wallet
	poller    *app.ReceiptPoller
	submitter *app.Submitter
}

func newFixture(t *testing.T, cfg app.SubmitterConfig) *fixture {
	t.Helper()

	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	f := &fixture{
		node:   chaintest.NewFakeNode(chainID),
		clock:  chaintest.NewFakeClock(time.Unix(1_700_000_000, 0)),
		signer: wallet.New(key),
	}

	f.poller, err = app.NewReceiptPoller(f.node, f.clock, app.DefaultPollerConfig(), testLogger())
	require.NoError(t, err)
	t.Cleanup(f.poller.Close)

	f.submitter, err = app.NewSubmitter(f.node, f.signer, big.NewInt(chainID), f.poller, cfg, testLogger())
	require.NoError(t, err)

	return f
}

func TestReceiptPoller_ExpiresExactlyOnce(t *testing.T) {
	node := chaintest.NewFakeNode(chainID)
	clock := chaintest.NewFakeClock(time.Unix(0, 0))

	poller, err := app.NewReceiptPoller(node, clock, app.PollerConfig{Interval: 5 * time.Second, Expiry: 20 * time.Minute}, testLogger())
	require.NoError(t, err)
	defer poller.Close()

	hash := common.HexToHash("0xdead")
	pending := poller.Track(hash, "never mined")

	receipt, err := pending.Wait(context.Background())
	require.NoError(t, err)

	assert.True(t, receipt.Expired())
	assert.Equal(t, hash, receipt.TxHash)
	assert.Equal(t, domain.TxExpired, pending.Status())
	// Polls at t = 0, 5s, ..., 1200s.
	assert.Equal(t, 241, node.ReceiptCalls(hash))
	assert.False(t, pending.Resolve(domain.EmptyReceipt(hash)), "second resolution must lose")
}

func TestReceiptPoller_Confirms(t *testing.T) {
	node := chaintest.NewFakeNode(chainID)
	clock := chaintest.NewFakeClock(time.Unix(0, 0))
	hash := common.HexToHash("0xbeef")
	node.Confirm(hash, types.ReceiptStatusSuccessful)

	poller, err := app.NewReceiptPoller(node, clock, app.DefaultPollerConfig(), testLogger())
	require.NoError(t, err)
	defer poller.Close()

	pending := poller.Track(hash, "mined")
	assert.True(t, len(pending.SessionID) == len("poller-")+8)

	receipt, err := pending.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.TxConfirmed, receipt.Status)
	assert.True(t, receipt.Succeeded)
	assert.Equal(t, 1, node.ReceiptCalls(hash))
}

func TestReceiptPoller_TransientErrorsKeepPolling(t *testing.T) {
	node := chaintest.NewFakeNode(chainID)
	clock := chaintest.NewFakeClock(time.Unix(0, 0))
	hash := common.HexToHash("0xcafe")
	node.Confirm(hash, types.ReceiptStatusSuccessful)
	node.FailReceipts(3, errors.New("read tcp: connection reset by peer"))

	poller, err := app.NewReceiptPoller(node, clock, app.DefaultPollerConfig(), testLogger())
	require.NoError(t, err)
	defer poller.Close()

	receipt, err := poller.Track(hash, "flaky node").Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.TxConfirmed, receipt.Status)
	assert.Equal(t, 4, node.ReceiptCalls(hash))
}

func TestReceiptPoller_CloseReleasesWaiters(t *testing.T) {
	node := chaintest.NewFakeNode(chainID)
	poller, err := app.NewReceiptPoller(node, app.SystemClock(), app.PollerConfig{Interval: time.Hour, Expiry: 2 * time.Hour}, testLogger())
	require.NoError(t, err)

	pending := poller.Track(common.HexToHash("0x01"), "stuck")
	poller.Close()

	receipt, err := pending.Wait(context.Background())
	require.NoError(t, err)
	assert.True(t, receipt.Expired())
	assert.Zero(t, poller.Active())
}

func TestNewReceiptPoller_RejectsBadConfig(t *testing.T) {
	_, err := app.NewReceiptPoller(chaintest.NewFakeNode(chainID), app.SystemClock(), app.PollerConfig{}, testLogger())
	assert.Error(t, err)
}

func TestSubmitter_Submit(t *testing.T) {
	f := newFixture(t, app.SubmitterConfig{DefaultGasLimit: 4_300_000, GasLimitBufferPct: 10})
	f.node.SetPendingNonce(f.signer.Address(), 7)
	f.node.SetGasEstimate(100_000)

	pending, err := f.submitter.Submit(context.Background(), domain.TxRequest{
		To:          target,
		Data:        []byte{0x01, 0x02, 0x03, 0x04},
		Value:       decimal.RequireFromString("0.5"),
		Description: "test transfer",
	})
	require.NoError(t, err)

	sent := f.node.Sent()
	require.Len(t, sent, 1)
	tx := sent[0]
	assert.Equal(t, uint64(7), tx.Nonce())
	assert.Equal(t, uint64(110_000), tx.Gas())
	assert.Equal(t, "500000000000000000", tx.Value().String())
	assert.Equal(t, target, *tx.To())
	assert.Equal(t, tx.Hash(), pending.Hash)

	est := f.node.Estimates()
	require.Len(t, est, 1)
	assert.Equal(t, uint64(4_300_000), est[0].Gas, "draft carries the default gas limit")
	assert.Equal(t, f.signer.Address(), est[0].From)
	assert.Equal(t, 2, f.node.GasPriceCalls(), "gas price is fetched for the draft and again before signing")

	receipt, err := pending.Wait(context.Background())
	require.NoError(t, err)
	assert.True(t, receipt.Succeeded)
}

func TestSubmitter_NoncesAreMonotonic(t *testing.T) {
	f := newFixture(t, app.DefaultSubmitterConfig())

	for i := 0; i < 3; i++ {
		_, err := f.submitter.Submit(context.Background(), domain.TxRequest{To: target, Description: "ping"})
		require.NoError(t, err)
	}

	sent := f.node.Sent()
	require.Len(t, sent, 3)
	for i, tx := range sent {
		assert.Equal(t, uint64(i), tx.Nonce())
	}
}

func TestSubmitter_EstimateFailure(t *testing.T) {
	f := newFixture(t, app.DefaultSubmitterConfig())
	f.node.FailEstimate(errors.New("execution reverted: TRANSFER_FROM_FAILED"))

	_, err := f.submitter.Submit(context.Background(), domain.TxRequest{To: target, Description: "swap"})
	require.Error(t, err)
	assert.Equal(t, apperror.CodeNodeError, apperror.GetCode(err))
	assert.Empty(t, f.node.Sent())

	// No nonce is consumed by a failed estimate.
	f.node.FailEstimate(nil)
	_, err = f.submitter.Submit(context.Background(), domain.TxRequest{To: target, Description: "swap"})
	require.NoError(t, err)
	assert.Equal(t, uint64(0), f.node.Sent()[0].Nonce())
}

func TestSubmitter_SendFailure(t *testing.T) {
	f := newFixture(t, app.DefaultSubmitterConfig())
	f.node.FailSend(errors.New("insufficient funds for gas * price + value"))

	_, err := f.submitter.Submit(context.Background(), domain.TxRequest{To: target, Description: "refuel"})
	assert.True(t, errors.Is(err, apperror.New(apperror.CodeNodeError)))

	// The unsent nonce is handed out again.
	f.node.FailSend(nil)
	_, err = f.submitter.Submit(context.Background(), domain.TxRequest{To: target, Description: "refuel"})
	require.NoError(t, err)
	assert.Equal(t, uint64(0), f.node.Sent()[0].Nonce())
}

func TestSubmitter_RejectsNegativeValue(t *testing.T) {
	f := newFixture(t, app.DefaultSubmitterConfig())

	_, err := f.submitter.Submit(context.Background(), domain.TxRequest{To: target, Value: decimal.NewFromInt(-1)})
	assert.Equal(t, apperror.CodeInvalidAmount, apperror.GetCode(err))
	assert.Empty(t, f.node.Estimates())
}

func TestNonceManager_ReleaseAndResync(t *testing.T) {
	ctx := context.Background()
	node := chaintest.NewFakeNode(chainID)
	account := common.HexToAddress("0x0b")
	node.SetPendingNonce(account, 3)

	nm := app.NewNonceManager(node, account)
	next := func() uint64 {
		t.Helper()
		n, err := nm.Next(ctx)
		require.NoError(t, err)
		return n
	}

	assert.Equal(t, []uint64{3, 4, 5}, []uint64{next(), next(), next()})

	// 4 is not the newest reservation, so it becomes a gap filled before 6.
	nm.Release(4)
	assert.Equal(t, uint64(4), next())
	assert.Equal(t, uint64(6), next())

	// The newest reservation rewinds, along with gaps directly below it.
	nm.Release(5)
	nm.Release(6)
	assert.Equal(t, uint64(5), next())

	node.SetPendingNonce(account, 9)
	nm.Invalidate()
	assert.Equal(t, uint64(9), next())

	// A lagging node never pulls the counter back under issued nonces.
	node.SetPendingNonce(account, 2)
	nm.Invalidate()
	assert.Equal(t, uint64(10), next())
}

func TestSubmitter_SlowEstimateDoesNotHoldNonce(t *testing.T) {
	f := newFixture(t, app.DefaultSubmitterConfig())
	slow := []byte{0xde, 0xad, 0xbe, 0xef}

	entered := make(chan struct{})
	release := make(chan struct{})
	f.node.OnEstimate(func(_ context.Context, msg ethereum.CallMsg) error {
		if !bytes.Equal(msg.Data, slow) {
			return nil
		}
		close(entered)
		<-release
		return errors.New("execution reverted")
	})

	slowErr := make(chan error, 1)
	go func() {
		_, err := f.submitter.Submit(context.Background(), domain.TxRequest{To: target, Data: slow, Description: "slow"})
		slowErr <- err
	}()
	<-entered

	_, err := f.submitter.Submit(context.Background(), domain.TxRequest{To: target, Description: "fast"})
	require.NoError(t, err)

	close(release)
	require.Error(t, <-slowErr)

	_, err = f.submitter.Submit(context.Background(), domain.TxRequest{To: target, Description: "after"})
	require.NoError(t, err)

	sent := f.node.Sent()
	require.Len(t, sent, 2)
	assert.Equal(t, uint64(0), sent[0].Nonce())
	assert.Equal(t, uint64(1), sent[1].Nonce(), "no gap left by the failed submission")
}
