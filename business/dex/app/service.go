package app

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	chainDomain "github.com/fd1az/dexops/business/chain/domain"
	"github.com/fd1az/dexops/business/dex/domain"
	"github.com/fd1az/dexops/internal/apperror"
	"github.com/fd1az/dexops/internal/asset"
	"github.com/fd1az/dexops/internal/contract"
	"github.com/fd1az/dexops/internal/logger"
	"github.com/fd1az/dexops/internal/network"
)

// tokenInfoConcurrency bounds parallel tokens in TokenInfoList.
const tokenInfoConcurrency = 4

// Trader is the public surface of the dex context: reads, quotes, mutating operations,
// streams and session settings for one wallet on one network.
type Trader struct {
	chain        Chain
	profile      network.Profile
	bindings     *contract.Cache
	metadata     *MetadataCache
	quotes       *QuoteEngine
	orchestrator *Orchestrator
	streams      *StreamManager
	settings     *SettingsStore
	factory      common.Address
	logger       logger.LoggerInterface
}

// NewTrader creates a Trader. factory is the default for Pair lookups and may be zero.
func NewTrader(
	chain Chain,
	profile network.Profile,
	bindings *contract.Cache,
	metadata *MetadataCache,
	quotes *QuoteEngine,
	orchestrator *Orchestrator,
	streams *StreamManager,
	settings *SettingsStore,
	factory common.Address,
	log logger.LoggerInterface,
) *Trader {
	return &Trader{
		chain:        chain,
		profile:      profile,
		bindings:     bindings,
		metadata:     metadata,
		quotes:       quotes,
		orchestrator: orchestrator,
		streams:      streams,
		settings:     settings,
		factory:      factory,
		logger:       log,
	}
}

// Network returns the active network profile.
func (t *Trader) Network() network.Profile {
	return t.profile
}

// WalletAddress returns the signing wallet.
func (t *Trader) WalletAddress() common.Address {
	return t.chain.Wallet()
}

// WalletShortAddress renders the wallet as 0x1234...abcd.
func (t *Trader) WalletShortAddress() string {
	return ShortAddress(t.chain.Wallet())
}

// ShortAddress renders addr as 0x1234...abcd.
func ShortAddress(addr common.Address) string {
	h := addr.Hex()
	return h[:6] + "..." + h[len(h)-4:]
}

// TxURL links hash to the network explorer.
func (t *Trader) TxURL(hash common.Hash) string {
	return t.profile.TxURL(hash)
}

// GasBalance returns the wallet's native balance.
func (t *Trader) GasBalance(ctx context.Context) (decimal.Decimal, error) {
	return t.chain.GasBalance(ctx, t.chain.Wallet())
}

// GasPrice returns the current, possibly cached, gas price.
func (t *Trader) GasPrice(ctx context.Context) (*chainDomain.GasPrice, error) {
	return t.chain.GetGasPrice(ctx)
}

// TokenBalance returns the wallet's balance of token.
func (t *Trader) TokenBalance(ctx context.Context, token common.Address) (decimal.Decimal, error) {
	return t.balanceOf(ctx, token, t.chain.Wallet())
}

// Holding returns the wallet's balance of token as an amount carrying the token's metadata.
func (t *Trader) Holding(ctx context.Context, token common.Address) (asset.Amount, error) {
	a, err := t.metadata.Asset(ctx, token)
	if err != nil {
		return asset.Amount{}, err
	}
	raw, err := t.callUint(ctx, token, contract.MethodBalanceOf, t.chain.Wallet())
	if err != nil {
		return asset.Amount{}, err
	}
	return asset.NewAmount(a, raw), nil
}

// GasHolding returns the wallet's native balance as an amount of the network's gas coin.
func (t *Trader) GasHolding(ctx context.Context) (asset.Amount, error) {
	gas, err := t.GasBalance(ctx)
	if err != nil {
		return asset.Amount{}, err
	}
	return asset.ParseDecimal(t.profile.GasAsset(), gas)
}

func (t *Trader) balanceOf(ctx context.Context, token, account common.Address) (decimal.Decimal, error) {
	decimals, err := t.metadata.Decimals(ctx, token)
	if err != nil {
		return decimal.Zero, err
	}
	raw, err := t.callUint(ctx, token, contract.MethodBalanceOf, account)
	if err != nil {
		return decimal.Zero, err
	}
	return asset.FromBaseUnits(raw, decimals)
}

func (t *Trader) totalSupply(ctx context.Context, token common.Address) (decimal.Decimal, error) {
	decimals, err := t.metadata.Decimals(ctx, token)
	if err != nil {
		return decimal.Zero, err
	}
	raw, err := t.callUint(ctx, token, contract.MethodTotalSupply)
	if err != nil {
		return decimal.Zero, err
	}
	return asset.FromBaseUnits(raw, decimals)
}

func (t *Trader) callUint(ctx context.Context, token common.Address, method string, args ...any) (*big.Int, error) {
	b, err := t.bindings.Token(token)
	if err != nil {
		return nil, err
	}
	out, err := b.Call(ctx, method, args...)
	if err != nil {
		return nil, err
	}
	raw, ok := out[0].(*big.Int)
	if !ok {
		return nil, apperror.New(apperror.CodeContractABIError, apperror.WithContextf("%s result", method))
	}
	return raw, nil
}

// TokenPrice is the value of one tokenA in tokenB through router. A zero router uses the
// session default.
func (t *Trader) TokenPrice(ctx context.Context, tokenA, tokenB, router common.Address) (decimal.Decimal, error) {
	return t.quotes.Price(ctx, tokenA, tokenB, t.router(router))
}

// TokenAmountsOut quotes amount of tokenIn into tokenOut.
func (t *Trader) TokenAmountsOut(ctx context.Context, router, tokenIn, tokenOut common.Address, amount decimal.Decimal) (decimal.Decimal, error) {
	return t.quotes.Quote(ctx, t.router(router), tokenIn, tokenOut, amount)
}

// TokenAmountsOutMin quotes amount of tokenIn into tokenOut and applies the default slippage.
func (t *Trader) TokenAmountsOutMin(ctx context.Context, router, tokenIn, tokenOut common.Address, amount decimal.Decimal) (domain.SwapQuote, error) {
	return t.quotes.QuoteWithSlippage(ctx, t.router(router), tokenIn, tokenOut, amount, t.settings.Get().SlippagePercent)
}

// TokenAllowance returns how much of the wallet's token spender may move. A zero spender
// uses the default router.
func (t *Trader) TokenAllowance(ctx context.Context, token, spender common.Address) (decimal.Decimal, error) {
	return t.orchestrator.Allowance(ctx, token, t.chain.Wallet(), t.router(spender))
}

// TokenInfo fetches token metadata, supply and wallet balance concurrently, and values the
// balance in priceToken when priceToken is non-zero.
func (t *Trader) TokenInfo(ctx context.Context, token, priceToken, router common.Address) (*domain.TokenInfo, error) {
	decimals, err := t.metadata.Decimals(ctx, token)
	if err != nil {
		return nil, err
	}

	info := &domain.TokenInfo{Address: token, Decimals: decimals}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		name, err := t.metadata.Name(gctx, token)
		if err != nil {
			t.logger.Debug(gctx, "token has no name", "token", token.Hex(), "error", err)
			return nil
		}
		info.Name = name
		return nil
	})
	g.Go(func() error {
		symbol, err := t.metadata.Symbol(gctx, token)
		if err != nil {
			t.logger.Debug(gctx, "token has no symbol", "token", token.Hex(), "error", err)
			return nil
		}
		info.Symbol = symbol
		return nil
	})
	g.Go(func() error {
		supply, err := t.totalSupply(gctx, token)
		info.TotalSupply = supply
		return err
	})
	g.Go(func() error {
		balance, err := t.balanceOf(gctx, token, t.chain.Wallet())
		info.Balance = balance
		return err
	})
	if priceToken != (common.Address{}) {
		g.Go(func() error {
			price, err := t.quotes.Price(gctx, token, priceToken, t.router(router))
			info.Price = price
			return err
		})
		g.Go(func() error {
			symbol, _ := t.metadata.Symbol(gctx, priceToken)
			info.ValueSymbol = symbol
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	info.Value = info.Balance.Mul(info.Price)
	return info, nil
}

// TokenInfoList runs TokenInfo for each token, preserving order.
func (t *Trader) TokenInfoList(ctx context.Context, tokens []common.Address, priceToken, router common.Address) ([]*domain.TokenInfo, error) {
	out := make([]*domain.TokenInfo, len(tokens))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(tokenInfoConcurrency)
	for i, token := range tokens {
		g.Go(func() error {
			info, err := t.TokenInfo(gctx, token, priceToken, router)
			if err != nil {
				return err
			}
			out[i] = info
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Pair resolves the pair of tokenA and tokenB on factory. A zero factory uses the configured
// default. It fails with CodePairNotFound when no pool exists.
func (t *Trader) Pair(ctx context.Context, factory, tokenA, tokenB common.Address) (common.Address, error) {
	if factory == (common.Address{}) {
		factory = t.factory
	}
	if factory == (common.Address{}) {
		return common.Address{}, apperror.New(apperror.CodeRequiredField, apperror.WithContext("factory"))
	}

	b, err := t.bindings.Factory(factory)
	if err != nil {
		return common.Address{}, err
	}
	out, err := b.Call(ctx, contract.MethodGetPair, tokenA, tokenB)
	if err != nil {
		return common.Address{}, err
	}

	pair, ok := out[0].(common.Address)
	if !ok {
		return common.Address{}, apperror.New(apperror.CodeContractABIError, apperror.WithContext("getPair result"))
	}
	if pair == (common.Address{}) {
		return common.Address{}, apperror.New(apperror.CodePairNotFound,
			apperror.WithContextf("%s/%s on %s", tokenA.Hex(), tokenB.Hex(), factory.Hex()))
	}
	return pair, nil
}

// Reserves reads the pool balances of pair, scaled by each token's decimals.
func (t *Trader) Reserves(ctx context.Context, pair common.Address) (*domain.Reserves, error) {
	b, err := t.bindings.Pair(pair)
	if err != nil {
		return nil, err
	}

	var token0, token1 common.Address
	var raw []any

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		out, err := b.Call(gctx, contract.MethodToken0)
		if err != nil {
			return err
		}
		token0, _ = out[0].(common.Address)
		return nil
	})
	g.Go(func() error {
		out, err := b.Call(gctx, contract.MethodToken1)
		if err != nil {
			return err
		}
		token1, _ = out[0].(common.Address)
		return nil
	})
	g.Go(func() error {
		out, err := b.Call(gctx, contract.MethodGetReserves)
		raw = out
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if len(raw) != 3 {
		return nil, apperror.New(apperror.CodeContractABIError, apperror.WithContext("getReserves result"))
	}
	r0, ok0 := raw[0].(*big.Int)
	r1, ok1 := raw[1].(*big.Int)
	ts, ok2 := raw[2].(uint32)
	if !ok0 || !ok1 || !ok2 {
		return nil, apperror.New(apperror.CodeContractABIError, apperror.WithContext("getReserves types"))
	}

	dec0, err := t.metadata.Decimals(ctx, token0)
	if err != nil {
		return nil, err
	}
	dec1, err := t.metadata.Decimals(ctx, token1)
	if err != nil {
		return nil, err
	}

	return &domain.Reserves{
		Pair:      pair,
		Token0:    token0,
		Token1:    token1,
		Reserve0:  asset.MustFromBaseUnits(r0, dec0),
		Reserve1:  asset.MustFromBaseUnits(r1, dec1),
		UpdatedAt: time.Unix(int64(ts), 0),
	}, nil
}

// TokenApprove lets spender move amount of the wallet's token. A zero spender uses the
// default router.
func (t *Trader) TokenApprove(ctx context.Context, token, spender common.Address, amount decimal.Decimal) (*chainDomain.PendingTransaction, error) {
	return t.orchestrator.Approve(ctx, token, t.router(spender), amount)
}

// TokenTransfer sends amount of token to recipient.
func (t *Trader) TokenTransfer(ctx context.Context, token, recipient common.Address, amount decimal.Decimal) (*chainDomain.PendingTransaction, error) {
	return t.orchestrator.Transfer(ctx, token, recipient, amount)
}

// Swap submits an exact-input swap, failing if the router allowance is short.
func (t *Trader) Swap(ctx context.Context, req domain.SwapRequest) (*chainDomain.PendingTransaction, error) {
	return t.orchestrator.Swap(ctx, req)
}

// SwapWithAutoApprove submits an exact-input swap, approving the router first if needed.
func (t *Trader) SwapWithAutoApprove(ctx context.Context, req domain.SwapRequest) (*chainDomain.PendingTransaction, error) {
	return t.orchestrator.SwapWithAutoApprove(ctx, req)
}

// FillGas unwraps amount of the wrapped gas token.
func (t *Trader) FillGas(ctx context.Context, amount decimal.Decimal) (*chainDomain.PendingTransaction, error) {
	return t.orchestrator.FillGas(ctx, amount)
}

// SwapAndRefuelGas swaps token into the wrapped gas token and unwraps the result.
func (t *Trader) SwapAndRefuelGas(ctx context.Context, router, token common.Address, amount decimal.Decimal) (*domain.RefuelResult, error) {
	return t.orchestrator.SwapAndRefuelGas(ctx, t.router(router), token, amount)
}

// WatchBlocks replaces the block watch.
func (t *Trader) WatchBlocks(ctx context.Context, cb BlockHandler, throttle time.Duration) error {
	return t.streams.WatchBlocks(ctx, cb, throttle)
}

// WatchTransfers replaces the transfer watch for token.
func (t *Trader) WatchTransfers(ctx context.Context, token common.Address, cb TransferHandler) error {
	return t.streams.WatchTransfers(ctx, token, cb)
}

// UnwatchBlocks cancels the block watch.
func (t *Trader) UnwatchBlocks() {
	t.streams.UnwatchBlocks()
}

// UnwatchTransfers cancels the transfer watch for token.
func (t *Trader) UnwatchTransfers(token common.Address) {
	t.streams.UnwatchTransfers(token)
}

// SetDefaultSwapDeadline sets the deadline applied when a swap omits one.
func (t *Trader) SetDefaultSwapDeadline(minutes int) error {
	return t.settings.SetDeadlineMinutes(minutes)
}

// SetDefaultSlippage sets the slippage applied when a swap omits one.
func (t *Trader) SetDefaultSlippage(pct decimal.Decimal) error {
	return t.settings.SetSlippage(pct)
}

// SetAutoApproveMultiplier sets the auto-approve grant as a multiple of the swap amount.
func (t *Trader) SetAutoApproveMultiplier(m decimal.Decimal) error {
	return t.settings.SetAutoApproveMultiplier(m)
}

// Settings returns the current session defaults.
func (t *Trader) Settings() domain.Settings {
	return t.settings.Get()
}

// Close cancels every stream.
func (t *Trader) Close() {
	t.streams.Close()
}

func (t *Trader) router(r common.Address) common.Address {
	if r == (common.Address{}) {
		return t.settings.Get().Router
	}
	return r
}
