package app_test

import (
	"context"
	"io"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	chainApp "github.com/fd1az/dexops/business/chain/app"
	"github.com/fd1az/dexops/business/chain/infra/ethereum"
	"github.com/fd1az/dexops/business/chain/infra/wallet"
	"github.com/fd1az/dexops/business/dex/app"
	"github.com/fd1az/dexops/business/dex/domain"
	"github.com/fd1az/dexops/internal/apperror"
	"github.com/fd1az/dexops/internal/chaintest"
	"github.com/fd1az/dexops/internal/contract"
	"github.com/fd1az/dexops/internal/logger"
	"github.com/fd1az/dexops/internal/network"
)

const chainID = 56

var (
	routerAddr  = common.HexToAddress("0x10ED43C718714eb63d5aA57B78B54704E256024E")
	factoryAddr = common.HexToAddress("0xcA143Ce32Fe78f1f7019d7d551a6402fC5350c73")
	tokenA      = common.HexToAddress("0x000000000000000000000000000000000000000a")
	tokenB      = common.HexToAddress("0x000000000000000000000000000000000000000b")
	wrappedGas  = common.HexToAddress("0x000000000000000000000000000000000000000c")
	pairAddr    = common.HexToAddress("0x00000000000000000000000000000000000000ab")

	erc20ABI   = contract.MustABI(contract.FungibleToken)
	routerABI  = contract.MustABI(contract.Router)
	wrappedABI = contract.MustABI(contract.WrappedGas)

	start = time.Unix(1_700_000_000, 0)
)

func testLogger() logger.LoggerInterface {
	return logger.New(io.Discard, logger.LevelError, "dex-test", nil)
}

func pow10(n int) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}

func units(v int64, decimals int) *big.Int {
	return new(big.Int).Mul(big.NewInt(v), pow10(decimals))
}

// fixture wires the real chain pipeline (submitter, poller, subscriber, gas oracle) over an
// in-memory node, plus a token ledger that tracks allowances through approve calls.
type fixture struct {
	node     *chaintest.FakeNode
	signer   *wallet.Wallet
	chain    *chainApp.ChainService
	bindings *contract.Cache
	metadata *app.MetadataCache
	quotes   *app.QuoteEngine
	settings *app.SettingsStore
	orch     *app.Orchestrator
	streams  *app.StreamManager
	trader   *app.Trader

	mu         sync.Mutex
	allowances map[common.Address]*big.Int
	amountOut  map[common.Address]*big.Int
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	f := &fixture{
		node:       chaintest.NewFakeNode(chainID),
		signer:     wallet.New(key),
		allowances: make(map[common.Address]*big.Int),
		amountOut:  make(map[common.Address]*big.Int),
	}
	log := testLogger()

	poller, err := chainApp.NewReceiptPoller(f.node, chaintest.NewFakeClock(start), chainApp.DefaultPollerConfig(), log)
	require.NoError(t, err)

	submitter, err := chainApp.NewSubmitter(f.node, f.signer, big.NewInt(chainID), poller, chainApp.DefaultSubmitterConfig(), log)
	require.NoError(t, err)

	subCfg := ethereum.DefaultSubscriberConfig("")
	subCfg.PollInterval = 10 * time.Millisecond
	sub, err := ethereum.NewSubscriber(subCfg, f.node, log)
	require.NoError(t, err)

	oracle, err := ethereum.NewGasOracle(ethereum.DefaultGasOracleConfig(), f.node, log)
	require.NoError(t, err)

	f.chain = chainApp.NewChainService(f.node, sub, sub, oracle, submitter, poller)
	t.Cleanup(f.chain.Close)

	f.bindings = contract.NewCache(f.node, contract.Identity{
		ChainID:  big.NewInt(chainID),
		From:     f.signer.Address(),
		GasLimit: chainApp.DefaultSubmitterConfig().DefaultGasLimit,
	})
	f.metadata = app.NewMetadataCache(f.bindings)
	f.quotes = app.NewQuoteEngine(f.bindings, f.metadata)

	f.settings, err = app.NewSettingsStore(domain.DefaultSettings(routerAddr))
	require.NoError(t, err)

	f.orch, err = app.NewOrchestrator(f.chain, f.bindings, f.metadata, f.quotes, f.settings,
		chaintest.NewFakeClock(start), wrappedGas, log)
	require.NoError(t, err)

	f.streams = app.NewStreamManager(f.chain, f.bindings, f.metadata, 10*time.Millisecond, log)
	t.Cleanup(f.streams.Close)

	profile, err := network.Lookup("bsc")
	require.NoError(t, err)

	f.trader = app.NewTrader(f.chain, profile, f.bindings, f.metadata, f.quotes, f.orch, f.streams,
		f.settings, factoryAddr, log)

	f.token(tokenA, "Token A", "TKA", 18)
	f.token(tokenB, "Token B", "TKB", 6)
	f.token(wrappedGas, "Wrapped BNB", "WBNB", 18)
	f.router()

	f.node.OnSend(f.applyApprove)
	return f
}

func (f *fixture) token(addr common.Address, name, symbol string, decimals uint8) {
	f.node.Handle(addr, erc20ABI, contract.MethodDecimals, func([]any) ([]any, error) {
		return []any{decimals}, nil
	})
	f.node.Handle(addr, erc20ABI, contract.MethodSymbol, func([]any) ([]any, error) {
		return []any{symbol}, nil
	})
	f.node.Handle(addr, erc20ABI, contract.MethodName, func([]any) ([]any, error) {
		return []any{name}, nil
	})
	f.node.Handle(addr, erc20ABI, contract.MethodAllowance, func([]any) ([]any, error) {
		f.mu.Lock()
		defer f.mu.Unlock()
		if a, ok := f.allowances[addr]; ok {
			return []any{new(big.Int).Set(a)}, nil
		}
		return []any{new(big.Int)}, nil
	})
}

// router answers getAmountsOut from the amountOut table keyed by output token.
func (f *fixture) router() {
	f.node.Handle(routerAddr, routerABI, contract.MethodGetAmountsOut, func(args []any) ([]any, error) {
		amountIn := args[0].(*big.Int)
		path := args[1].([]common.Address)

		f.mu.Lock()
		out := f.amountOut[path[len(path)-1]]
		f.mu.Unlock()
		return []any{[]*big.Int{amountIn, out}}, nil
	})
}

func (f *fixture) setAllowance(token common.Address, raw *big.Int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.allowances[token] = raw
}

func (f *fixture) setAmountOut(token common.Address, raw *big.Int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.amountOut[token] = raw
}

func (f *fixture) applyApprove(tx *types.Transaction, _ common.Address) {
	method, args, err := chaintest.DecodeCall(erc20ABI, tx.Data())
	if err != nil || method != contract.MethodApprove {
		return
	}
	f.setAllowance(*tx.To(), args[1].(*big.Int))
}

// calls decodes every broadcast transaction against its contract's ABI.
func (f *fixture) calls(t *testing.T) []decodedCall {
	t.Helper()

	var out []decodedCall
	for _, tx := range f.node.Sent() {
		abiFor := erc20ABI
		switch *tx.To() {
		case routerAddr:
			abiFor = routerABI
		case wrappedGas:
			abiFor = wrappedABI
		}
		method, args, err := chaintest.DecodeCall(abiFor, tx.Data())
		require.NoError(t, err)
		out = append(out, decodedCall{to: *tx.To(), method: method, args: args})
	}
	return out
}

type decodedCall struct {
	to     common.Address
	method string
	args   []any
}

func swapRequest(amount string) domain.SwapRequest {
	return domain.SwapRequest{
		TokenIn:  tokenA,
		TokenOut: tokenB,
		Amount:   decimal.RequireFromString(amount),
	}
}

func TestQuote_ScenarioMinimumInCalldata(t *testing.T) {
	f := newFixture(t)
	f.setAllowance(tokenA, units(10, 18))
	f.setAmountOut(tokenB, units(100, 6))

	pending, err := f.orch.Swap(context.Background(), swapRequest("1"))
	require.NoError(t, err)

	receipt, err := pending.Wait(context.Background())
	require.NoError(t, err)
	assert.True(t, receipt.Succeeded)

	calls := f.calls(t)
	require.Len(t, calls, 1)

	swap := calls[0]
	assert.Equal(t, routerAddr, swap.to)
	assert.Equal(t, contract.MethodSwapExactTokensForTokens, swap.method)
	assert.Equal(t, 0, units(1, 18).Cmp(swap.args[0].(*big.Int)), "amountIn")
	assert.Equal(t, 0, big.NewInt(99_500_000).Cmp(swap.args[1].(*big.Int)), "amountOutMin")
	assert.Equal(t, []common.Address{tokenA, tokenB}, swap.args[2])
	assert.Equal(t, f.signer.Address(), swap.args[3])

	deadline := start.Add(10 * time.Minute).Unix()
	assert.Equal(t, deadline, swap.args[4].(*big.Int).Int64(), "deadline is unix seconds")
}

func TestQuote_IdentityPathSkipsNode(t *testing.T) {
	f := newFixture(t)

	out, err := f.quotes.Quote(context.Background(), routerAddr, tokenA, tokenA, decimal.RequireFromString("5.25"))
	require.NoError(t, err)

	assert.True(t, out.Equal(decimal.RequireFromString("5.25")))
	assert.Zero(t, f.metadata.Len(), "identity quote must not fetch metadata")
}

func TestQuote_WithSlippage(t *testing.T) {
	f := newFixture(t)
	f.setAmountOut(tokenB, units(200, 6))
	ctx := context.Background()

	q, err := f.quotes.QuoteWithSlippage(ctx, routerAddr, tokenA, tokenB, decimal.NewFromInt(2), decimal.NewFromInt(1))
	require.NoError(t, err)
	assert.True(t, q.AmountOut.Equal(decimal.NewFromInt(200)))
	assert.True(t, q.MinAmountOut.Equal(decimal.NewFromInt(198)))

	_, err = f.quotes.QuoteWithSlippage(ctx, routerAddr, tokenA, tokenB, decimal.NewFromInt(2), decimal.NewFromInt(101))
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidSlippage))
}

func TestMetadata_ConcurrentColdReadsRetainOneValue(t *testing.T) {
	f := newFixture(t)

	token := common.HexToAddress("0x00000000000000000000000000000000000000dd")
	var mu sync.Mutex
	calls := 0
	f.node.Handle(token, erc20ABI, contract.MethodDecimals, func([]any) ([]any, error) {
		mu.Lock()
		defer mu.Unlock()
		calls++
		return []any{uint8(calls)}, nil
	})

	const readers = 16
	results := make([]uint8, readers)
	var wg sync.WaitGroup
	for i := range readers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d, err := f.metadata.Decimals(context.Background(), token)
			assert.NoError(t, err)
			results[i] = d
		}()
	}
	wg.Wait()

	for _, d := range results {
		assert.Equal(t, results[0], d)
	}

	again, err := f.metadata.Decimals(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, results[0], again)
}

func TestSwap_StrictFailsWithoutTransaction(t *testing.T) {
	f := newFixture(t)
	f.setAmountOut(tokenB, units(100, 6))

	_, err := f.orch.Swap(context.Background(), swapRequest("1"))
	require.Error(t, err)

	assert.True(t, apperror.HasCode(err, apperror.CodeInsufficientAllowance))
	assert.Empty(t, f.node.Sent())
}

func TestSwap_AutoApproveIssuesOneSizedApproval(t *testing.T) {
	f := newFixture(t)
	f.setAmountOut(tokenB, units(100, 6))

	pending, err := f.orch.SwapWithAutoApprove(context.Background(), swapRequest("2"))
	require.NoError(t, err)
	_, err = pending.Wait(context.Background())
	require.NoError(t, err)

	calls := f.calls(t)
	require.Len(t, calls, 2)

	approve := calls[0]
	assert.Equal(t, tokenA, approve.to)
	assert.Equal(t, contract.MethodApprove, approve.method)
	assert.Equal(t, routerAddr, approve.args[0])
	assert.Equal(t, 0, units(6, 18).Cmp(approve.args[1].(*big.Int)), "grant is amount x 3")

	assert.Equal(t, contract.MethodSwapExactTokensForTokens, calls[1].method)
}

func TestSwap_AutoApproveSkipsWhenAllowanceSuffices(t *testing.T) {
	f := newFixture(t)
	f.setAllowance(tokenA, units(2, 18))
	f.setAmountOut(tokenB, units(100, 6))

	_, err := f.orch.SwapWithAutoApprove(context.Background(), swapRequest("2"))
	require.NoError(t, err)

	calls := f.calls(t)
	require.Len(t, calls, 1)
	assert.Equal(t, contract.MethodSwapExactTokensForTokens, calls[0].method)
}

func TestSwap_RevertedApprovalAbortsSwap(t *testing.T) {
	f := newFixture(t)
	f.setAmountOut(tokenB, units(100, 6))
	f.node.SetMine(func(*types.Transaction, common.Address) (uint64, bool) {
		return types.ReceiptStatusFailed, true
	})

	_, err := f.orch.SwapWithAutoApprove(context.Background(), swapRequest("1"))
	require.Error(t, err)

	assert.True(t, apperror.HasCode(err, apperror.CodeApprovalFailed))
	assert.True(t, apperror.HasCode(err, apperror.CodeTransactionReverted))
	assert.Len(t, f.node.Sent(), 1)
}

func TestSwap_ExpiredApprovalAbortsSwap(t *testing.T) {
	f := newFixture(t)
	f.setAmountOut(tokenB, units(100, 6))
	f.node.SetMine(func(*types.Transaction, common.Address) (uint64, bool) {
		return 0, false
	})

	_, err := f.orch.SwapWithAutoApprove(context.Background(), swapRequest("1"))
	require.Error(t, err)

	assert.True(t, apperror.HasCode(err, apperror.CodeApprovalFailed))
	assert.True(t, apperror.HasCode(err, apperror.CodeTransactionExpired))
	assert.Len(t, f.node.Sent(), 1)
}

func TestSwap_RequestOverridesAndDefaults(t *testing.T) {
	f := newFixture(t)
	f.setAllowance(tokenA, units(10, 18))
	f.setAmountOut(tokenB, units(100, 6))
	require.NoError(t, f.trader.SetDefaultSwapDeadline(20))

	req := swapRequest("1")
	req.Slippage = decimal.NewNullDecimal(decimal.NewFromInt(10))

	_, err := f.trader.Swap(context.Background(), req)
	require.NoError(t, err)

	calls := f.calls(t)
	require.Len(t, calls, 1)
	assert.Equal(t, 0, big.NewInt(90_000_000).Cmp(calls[0].args[1].(*big.Int)))
	assert.Equal(t, start.Add(20*time.Minute).Unix(), calls[0].args[4].(*big.Int).Int64())
}

func TestSwap_RejectsInvalidRequests(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name string
		req  domain.SwapRequest
		code apperror.Code
	}{
		{"zero amount", swapRequest("0"), apperror.CodeInvalidAmount},
		{"slippage above 100", domain.SwapRequest{TokenIn: tokenA, TokenOut: tokenB, Amount: decimal.NewFromInt(1),
			Slippage: decimal.NewNullDecimal(decimal.NewFromInt(150))}, apperror.CodeInvalidSlippage},
		{"missing token", domain.SwapRequest{TokenIn: tokenA, Amount: decimal.NewFromInt(1)}, apperror.CodeInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.orch.SwapWithAutoApprove(context.Background(), tt.req)
			assert.True(t, apperror.HasCode(err, tt.code), "got %v", err)
		})
	}
	assert.Empty(t, f.node.Sent())
}

func TestRefuel_SwapsThenUnwrapsMinimum(t *testing.T) {
	f := newFixture(t)
	f.setAllowance(tokenA, units(10, 18))
	f.setAmountOut(wrappedGas, units(2, 18))

	result, err := f.trader.SwapAndRefuelGas(context.Background(), common.Address{}, tokenA, decimal.NewFromInt(1))
	require.NoError(t, err)
	require.NotNil(t, result.Refuel)
	assert.True(t, result.Swap.Succeeded)
	assert.True(t, result.Quote.MinAmountOut.Equal(decimal.RequireFromString("1.99")))

	calls := f.calls(t)
	require.Len(t, calls, 2)
	assert.Equal(t, contract.MethodSwapExactTokensForTokens, calls[0].method)
	assert.Equal(t, []common.Address{tokenA, wrappedGas}, calls[0].args[2])

	assert.Equal(t, wrappedGas, calls[1].to)
	assert.Equal(t, contract.MethodWithdraw, calls[1].method)
	want, _ := new(big.Int).SetString("1990000000000000000", 10)
	assert.Equal(t, 0, want.Cmp(calls[1].args[0].(*big.Int)))
}

func TestRefuel_RevertedSwapNeverUnwraps(t *testing.T) {
	f := newFixture(t)
	f.setAllowance(tokenA, units(10, 18))
	f.setAmountOut(wrappedGas, units(2, 18))
	f.node.SetMine(func(*types.Transaction, common.Address) (uint64, bool) {
		return types.ReceiptStatusFailed, true
	})

	result, err := f.trader.SwapAndRefuelGas(context.Background(), routerAddr, tokenA, decimal.NewFromInt(1))
	require.Error(t, err)
	assert.Nil(t, result)
	assert.True(t, apperror.HasCode(err, apperror.CodeSwapFailed))
	assert.Len(t, f.node.Sent(), 1)
}

func TestFillGas_RejectsNonPositive(t *testing.T) {
	f := newFixture(t)

	_, err := f.trader.FillGas(context.Background(), decimal.Zero)
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidAmount))
	assert.Empty(t, f.node.Sent())
}

func TestTransferAndApprove_EncodeBaseUnits(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	recipient := common.HexToAddress("0x00000000000000000000000000000000000000ee")

	_, err := f.trader.TokenTransfer(ctx, tokenB, recipient, decimal.RequireFromString("12.5"))
	require.NoError(t, err)
	_, err = f.trader.TokenApprove(ctx, tokenB, common.Address{}, decimal.NewFromInt(7))
	require.NoError(t, err)

	calls := f.calls(t)
	require.Len(t, calls, 2)

	assert.Equal(t, contract.MethodTransfer, calls[0].method)
	assert.Equal(t, recipient, calls[0].args[0])
	assert.Equal(t, 0, big.NewInt(12_500_000).Cmp(calls[0].args[1].(*big.Int)))

	assert.Equal(t, contract.MethodApprove, calls[1].method)
	assert.Equal(t, routerAddr, calls[1].args[0], "zero spender defaults to the router")
	assert.Equal(t, 0, units(7, 6).Cmp(calls[1].args[1].(*big.Int)))
}
