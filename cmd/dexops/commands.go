package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	chainDomain "github.com/fd1az/dexops/business/chain/domain"
	dexApp "github.com/fd1az/dexops/business/dex/app"
	dexDI "github.com/fd1az/dexops/business/dex/di"
	"github.com/fd1az/dexops/business/dex/domain"
	"github.com/fd1az/dexops/internal/apperror"
	"github.com/fd1az/dexops/internal/monolith"
)

// session is the per-invocation view the commands share.
type session struct {
	mono   monolith.Monolith
	trader *dexApp.Trader
	out    io.Writer
}

func newSession(mono monolith.Monolith, out io.Writer) *session {
	return &session{mono: mono, trader: dexDI.GetTrader(mono.Services()), out: out}
}

func (s *session) printf(format string, args ...any) {
	fmt.Fprintf(s.out, format, args...)
}

type command struct {
	name string
	run  func(ctx context.Context, s *session, args []string) error
}

var commands = []command{
	{name: "balance", run: runBalance},
	{name: "price", run: runPrice},
	{name: "allowance", run: runAllowance},
	{name: "info", run: runInfo},
	{name: "pair", run: runPair},
	{name: "approve", run: runApprove},
	{name: "transfer", run: runTransfer},
	{name: "swap", run: runSwap},
	{name: "refuel", run: runRefuel},
	{name: "watch", run: runWatchCLI},
}

func lookupCommand(name string) (command, bool) {
	for _, c := range commands {
		if c.name == name {
			return c, true
		}
	}
	return command{}, false
}

func runBalance(ctx context.Context, s *session, args []string) error {
	tokens, err := parseAddresses(args)
	if err != nil {
		return err
	}

	gas, err := s.trader.GasHolding(ctx)
	if err != nil {
		return err
	}
	s.printf("%s  %s\n", s.trader.WalletShortAddress(), gas.String())

	for _, token := range tokens {
		held, err := s.trader.Holding(ctx, token)
		if err != nil {
			return err
		}
		s.printf("  %s\n", held.String())
	}
	return nil
}

func runPrice(ctx context.Context, s *session, args []string) error {
	fs := flag.NewFlagSet("price", flag.ContinueOnError)
	router := fs.String("router", "", "router address (default from config)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	addrs, err := parseAddressesN(fs.Args(), 2, "price <tokenA> <tokenB>")
	if err != nil {
		return err
	}
	routerAddr, err := optionalAddress(*router)
	if err != nil {
		return err
	}

	price, err := s.trader.TokenPrice(ctx, addrs[0], addrs[1], routerAddr)
	if err != nil {
		return err
	}
	s.printf("%s\n", price.String())
	return nil
}

func runAllowance(ctx context.Context, s *session, args []string) error {
	if len(args) < 1 || len(args) > 2 {
		return usageError("allowance <token> [spender]")
	}
	addrs, err := parseAddresses(args)
	if err != nil {
		return err
	}
	spender := common.Address{}
	if len(addrs) == 2 {
		spender = addrs[1]
	}

	allowance, err := s.trader.TokenAllowance(ctx, addrs[0], spender)
	if err != nil {
		return err
	}
	s.printf("%s\n", allowance.String())
	return nil
}

func runInfo(ctx context.Context, s *session, args []string) error {
	if len(args) < 1 || len(args) > 2 {
		return usageError("info <token> [priceToken]")
	}
	addrs, err := parseAddresses(args)
	if err != nil {
		return err
	}
	priceToken := s.trader.Network().WrappedGasToken
	if len(addrs) == 2 {
		priceToken = addrs[1]
	}

	info, err := s.trader.TokenInfo(ctx, addrs[0], priceToken, common.Address{})
	if err != nil {
		return err
	}
	s.printf("address       %s\n", info.Address.Hex())
	s.printf("name          %s\n", info.Name)
	s.printf("symbol        %s\n", info.Symbol)
	s.printf("decimals      %d\n", info.Decimals)
	s.printf("total supply  %s\n", info.TotalSupply.String())
	s.printf("balance       %s\n", info.Balance.String())
	s.printf("price         %s %s\n", info.Price.String(), info.ValueSymbol)
	s.printf("value         %s %s\n", info.Value.StringFixed(4), info.ValueSymbol)
	return nil
}

func runPair(ctx context.Context, s *session, args []string) error {
	addrs, err := parseAddressesN(args, 2, "pair <tokenA> <tokenB>")
	if err != nil {
		return err
	}

	pair, err := s.trader.Pair(ctx, common.Address{}, addrs[0], addrs[1])
	if err != nil {
		return err
	}
	reserves, err := s.trader.Reserves(ctx, pair)
	if err != nil {
		return err
	}
	s.printf("pair      %s\n", pair.Hex())
	s.printf("reserve0  %s (%s)\n", reserves.Reserve0.String(), reserves.Token0.Hex())
	s.printf("reserve1  %s (%s)\n", reserves.Reserve1.String(), reserves.Token1.Hex())
	s.printf("updated   %s\n", reserves.UpdatedAt.Format(time.RFC3339))
	return nil
}

func runApprove(ctx context.Context, s *session, args []string) error {
	if len(args) < 2 || len(args) > 3 {
		return usageError("approve <token> <amount> [spender]")
	}
	token, err := parseAddress(args[0])
	if err != nil {
		return err
	}
	amount, err := parseAmount(args[1])
	if err != nil {
		return err
	}
	spender := common.Address{}
	if len(args) == 3 {
		if spender, err = parseAddress(args[2]); err != nil {
			return err
		}
	}

	pending, err := s.trader.TokenApprove(ctx, token, spender, amount)
	if err != nil {
		return err
	}
	return s.await(ctx, pending)
}

func runTransfer(ctx context.Context, s *session, args []string) error {
	if len(args) != 3 {
		return usageError("transfer <token> <recipient> <amount>")
	}
	addrs, err := parseAddresses(args[:2])
	if err != nil {
		return err
	}
	amount, err := parseAmount(args[2])
	if err != nil {
		return err
	}

	pending, err := s.trader.TokenTransfer(ctx, addrs[0], addrs[1], amount)
	if err != nil {
		return err
	}
	return s.await(ctx, pending)
}

func runSwap(ctx context.Context, s *session, args []string) error {
	fs := flag.NewFlagSet("swap", flag.ContinueOnError)
	router := fs.String("router", "", "router address (default from config)")
	slippage := fs.String("slippage", "", "slippage percent (default from config)")
	deadline := fs.Int("deadline", 0, "deadline in minutes (default from config)")
	autoApprove := fs.Bool("auto-approve", true, "approve the router first when the allowance is short")
	dryRun := fs.Bool("dry-run", false, "print the quote without sending")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 3 {
		return usageError("swap [flags] <tokenIn> <tokenOut> <amount>")
	}
	addrs, err := parseAddresses(fs.Args()[:2])
	if err != nil {
		return err
	}
	amount, err := parseAmount(fs.Arg(2))
	if err != nil {
		return err
	}

	req := domain.SwapRequest{
		TokenIn:         addrs[0],
		TokenOut:        addrs[1],
		Amount:          amount,
		DeadlineMinutes: *deadline,
	}
	if req.Router, err = optionalAddress(*router); err != nil {
		return err
	}
	if *slippage != "" {
		pct, err := decimal.NewFromString(*slippage)
		if err != nil {
			return apperror.Validation(apperror.CodeInvalidSlippage, *slippage)
		}
		req.Slippage = decimal.NewNullDecimal(pct)
	}

	if *dryRun {
		resolved := req.Resolve(s.trader.Settings())
		quote, err := s.trader.TokenAmountsOut(ctx, resolved.Router, req.TokenIn, req.TokenOut, amount)
		if err != nil {
			return err
		}
		minOut, err := dexApp.ApplySlippage(quote, resolved.Slippage.Decimal)
		if err != nil {
			return err
		}
		s.printf("amount out  %s\nminimum     %s (%s%% slippage)\n",
			quote.String(), minOut.String(), resolved.Slippage.Decimal.String())
		return nil
	}

	swap := s.trader.Swap
	if *autoApprove {
		swap = s.trader.SwapWithAutoApprove
	}
	pending, err := swap(ctx, req)
	if err != nil {
		return err
	}
	return s.await(ctx, pending)
}

func runRefuel(ctx context.Context, s *session, args []string) error {
	fs := flag.NewFlagSet("refuel", flag.ContinueOnError)
	router := fs.String("router", "", "router address (default from config)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 2 {
		return usageError("refuel [flags] <token> <amount>")
	}
	token, err := parseAddress(fs.Arg(0))
	if err != nil {
		return err
	}
	amount, err := parseAmount(fs.Arg(1))
	if err != nil {
		return err
	}
	routerAddr, err := optionalAddress(*router)
	if err != nil {
		return err
	}

	result, err := s.trader.SwapAndRefuelGas(ctx, routerAddr, token, amount)
	if result != nil && result.Swap != nil {
		s.printf("swap      %s\n", s.trader.TxURL(result.Swap.TxHash))
	}
	if err != nil {
		return err
	}
	s.printf("expected  %s %s\n", result.Quote.MinAmountOut.String(), s.trader.Network().GasSymbol)
	return s.await(ctx, result.Refuel)
}

// await prints the explorer link and blocks until the receipt resolves.
func (s *session) await(ctx context.Context, pending *chainDomain.PendingTransaction) error {
	s.printf("submitted %s\n", s.trader.TxURL(pending.Hash))

	receipt, err := pending.Wait(ctx)
	if err != nil {
		return err
	}
	switch {
	case receipt.Expired():
		return apperror.New(apperror.CodeTransactionExpired, apperror.WithContext(pending.Hash.Hex()))
	case !receipt.Succeeded:
		return apperror.New(apperror.CodeTransactionReverted, apperror.WithContext(pending.Hash.Hex()))
	}
	s.printf("confirmed in block %d (gas used %d)\n", receipt.BlockNumber, receipt.GasUsed)
	return nil
}

func usageError(synopsis string) error {
	return apperror.New(apperror.CodeInvalidInput, apperror.WithContextf("usage: dexops %s", synopsis))
}

func parseAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, apperror.Validation(apperror.CodeInvalidInput, "invalid address "+s)
	}
	return common.HexToAddress(s), nil
}

func optionalAddress(s string) (common.Address, error) {
	if s == "" {
		return common.Address{}, nil
	}
	return parseAddress(s)
}

func parseAddresses(args []string) ([]common.Address, error) {
	out := make([]common.Address, 0, len(args))
	for _, a := range args {
		addr, err := parseAddress(a)
		if err != nil {
			return nil, err
		}
		out = append(out, addr)
	}
	return out, nil
}

func parseAddressesN(args []string, n int, synopsis string) ([]common.Address, error) {
	if len(args) != n {
		return nil, usageError(synopsis)
	}
	return parseAddresses(args)
}

func parseAmount(s string) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(s)
	if err != nil || !amount.IsPositive() {
		return decimal.Zero, apperror.Validation(apperror.CodeInvalidAmount, s)
	}
	return amount, nil
}
