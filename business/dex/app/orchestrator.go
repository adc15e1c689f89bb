package app

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	chainApp "github.com/fd1az/dexops/business/chain/app"
	chainDomain "github.com/fd1az/dexops/business/chain/domain"
	"github.com/fd1az/dexops/business/dex/domain"
	"github.com/fd1az/dexops/internal/apm"
	"github.com/fd1az/dexops/internal/apperror"
	"github.com/fd1az/dexops/internal/asset"
	"github.com/fd1az/dexops/internal/contract"
	"github.com/fd1az/dexops/internal/logger"
)

type orchestratorMetrics struct {
	submitted metric.Int64Counter
	approvals metric.Int64Counter
	failures  metric.Int64Counter
}

// Orchestrator composes quotes, allowance checks and transaction submission into the
// approve, transfer, swap and refuel flows.
type Orchestrator struct {
	chain      Chain
	bindings   *contract.Cache
	metadata   *MetadataCache
	quotes     *QuoteEngine
	settings   *SettingsStore
	clock      chainApp.Clock
	wrappedGas common.Address
	logger     logger.LoggerInterface

	tracer  apm.Tracer
	metrics *orchestratorMetrics
}

// NewOrchestrator creates an Orchestrator. wrappedGas is the network's wrapped native token,
// the target of refuel swaps.
func NewOrchestrator(
	chain Chain,
	bindings *contract.Cache,
	metadata *MetadataCache,
	quotes *QuoteEngine,
	settings *SettingsStore,
	clock chainApp.Clock,
	wrappedGas common.Address,
	log logger.LoggerInterface,
) (*Orchestrator, error) {
	o := &Orchestrator{
		chain:      chain,
		bindings:   bindings,
		metadata:   metadata,
		quotes:     quotes,
		settings:   settings,
		clock:      clock,
		wrappedGas: wrappedGas,
		logger:     log,
		tracer:     apm.NewTracer(tracerName),
	}

	if err := o.initMetrics(); err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}

	return o, nil
}

func (o *Orchestrator) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	o.metrics = &orchestratorMetrics{}

	o.metrics.submitted, err = meter.Int64Counter(
		"dex_tx_submitted_total",
		metric.WithDescription("Trader transactions submitted by operation"),
		metric.WithUnit("{tx}"),
	)
	if err != nil {
		return err
	}

	o.metrics.approvals, err = meter.Int64Counter(
		"dex_auto_approvals_total",
		metric.WithDescription("Approvals issued by auto-approve swaps"),
		metric.WithUnit("{tx}"),
	)
	if err != nil {
		return err
	}

	o.metrics.failures, err = meter.Int64Counter(
		"dex_operation_failures_total",
		metric.WithDescription("Failed trader operations by operation"),
		metric.WithUnit("{error}"),
	)
	return err
}

// Allowance returns how much of token spender may move on behalf of owner.
func (o *Orchestrator) Allowance(ctx context.Context, token, owner, spender common.Address) (decimal.Decimal, error) {
	decimals, err := o.metadata.Decimals(ctx, token)
	if err != nil {
		return decimal.Zero, err
	}

	b, err := o.bindings.Token(token)
	if err != nil {
		return decimal.Zero, err
	}
	out, err := b.Call(ctx, contract.MethodAllowance, owner, spender)
	if err != nil {
		return decimal.Zero, err
	}

	raw, ok := out[0].(*big.Int)
	if !ok {
		return decimal.Zero, apperror.New(apperror.CodeContractABIError, apperror.WithContext("allowance result"))
	}
	return asset.FromBaseUnits(raw, decimals)
}

// Approve lets spender move amount of the wallet's token.
func (o *Orchestrator) Approve(ctx context.Context, token, spender common.Address, amount decimal.Decimal) (*chainDomain.PendingTransaction, error) {
	ctx, span := o.tracer.StartSpanFromContext(ctx, "dex.approve",
		trace.WithAttributes(
			attribute.String("token", token.Hex()),
			attribute.String("spender", spender.Hex()),
			attribute.String("amount", amount.String()),
		),
	)
	defer span.End()

	pending, err := o.approve(ctx, span, token, spender, amount)
	if err != nil {
		return nil, o.fail(ctx, span, "approve", err)
	}
	return pending, nil
}

func (o *Orchestrator) approve(ctx context.Context, span apm.Span, token, spender common.Address, amount decimal.Decimal) (*chainDomain.PendingTransaction, error) {
	if amount.IsNegative() {
		return nil, apperror.Validation(apperror.CodeInvalidAmount, "negative approval")
	}

	raw, err := o.baseUnits(ctx, token, amount)
	if err != nil {
		return nil, err
	}

	b, err := o.bindings.Token(token)
	if err != nil {
		return nil, err
	}
	inv, err := b.Invoke(contract.MethodApprove, spender, raw)
	if err != nil {
		return nil, err
	}

	return o.submit(ctx, span, "approve", inv, fmt.Sprintf("approve %s %s for %s", amount, token.Hex(), spender.Hex()))
}

// Transfer sends amount of token from the wallet to recipient.
func (o *Orchestrator) Transfer(ctx context.Context, token, recipient common.Address, amount decimal.Decimal) (*chainDomain.PendingTransaction, error) {
	ctx, span := o.tracer.StartSpanFromContext(ctx, "dex.transfer",
		trace.WithAttributes(
			attribute.String("token", token.Hex()),
			attribute.String("recipient", recipient.Hex()),
			attribute.String("amount", amount.String()),
		),
	)
	defer span.End()

	if !amount.IsPositive() {
		return nil, o.fail(ctx, span, "transfer", apperror.New(apperror.CodeInvalidAmount,
			apperror.WithContext(amount.String()), apperror.WithCause(domain.ErrNonPositiveAmount)))
	}
	if recipient == (common.Address{}) {
		return nil, o.fail(ctx, span, "transfer", apperror.New(apperror.CodeInvalidInput,
			apperror.WithContext("recipient"), apperror.WithCause(domain.ErrZeroAddress)))
	}

	raw, err := o.baseUnits(ctx, token, amount)
	if err != nil {
		return nil, o.fail(ctx, span, "transfer", err)
	}

	b, err := o.bindings.Token(token)
	if err != nil {
		return nil, o.fail(ctx, span, "transfer", err)
	}
	inv, err := b.Invoke(contract.MethodTransfer, recipient, raw)
	if err != nil {
		return nil, o.fail(ctx, span, "transfer", err)
	}

	pending, err := o.submit(ctx, span, "transfer", inv, fmt.Sprintf("transfer %s %s to %s", amount, token.Hex(), recipient.Hex()))
	if err != nil {
		return nil, o.fail(ctx, span, "transfer", err)
	}
	return pending, nil
}

// Swap submits an exact-input swap. It fails with CodeInsufficientAllowance, without
// submitting anything, when the router may not spend req.Amount of TokenIn.
func (o *Orchestrator) Swap(ctx context.Context, req domain.SwapRequest) (*chainDomain.PendingTransaction, error) {
	ctx, span := o.tracer.StartSpanFromContext(ctx, "dex.swap")
	defer span.End()

	req, err := o.prepare(req)
	if err != nil {
		return nil, o.fail(ctx, span, "swap", err)
	}
	span.SetAttributes(swapAttributes(req)...)

	allowance, err := o.Allowance(ctx, req.TokenIn, o.chain.Wallet(), req.Router)
	if err != nil {
		return nil, o.fail(ctx, span, "swap", err)
	}
	if allowance.LessThan(req.Amount) {
		return nil, o.fail(ctx, span, "swap", apperror.New(apperror.CodeInsufficientAllowance,
			apperror.WithContextf("allowance %s < amount %s", allowance, req.Amount)))
	}

	pending, _, err := o.swap(ctx, span, req)
	if err != nil {
		return nil, o.fail(ctx, span, "swap", err)
	}
	return pending, nil
}

// SwapWithAutoApprove approves req.Amount × the session multiplier first when the current
// allowance is short, waits for that approval to confirm, then swaps.
func (o *Orchestrator) SwapWithAutoApprove(ctx context.Context, req domain.SwapRequest) (*chainDomain.PendingTransaction, error) {
	ctx, span := o.tracer.StartSpanFromContext(ctx, "dex.swap_auto_approve")
	defer span.End()

	req, err := o.prepare(req)
	if err != nil {
		return nil, o.fail(ctx, span, "swap", err)
	}
	span.SetAttributes(swapAttributes(req)...)

	pending, _, err := o.swapWithAutoApprove(ctx, span, req)
	if err != nil {
		return nil, o.fail(ctx, span, "swap", err)
	}
	return pending, nil
}

// Helpers below return bare errors; the exported operation counts the failure once.
func (o *Orchestrator) swapWithAutoApprove(ctx context.Context, span apm.Span, req domain.SwapRequest) (*chainDomain.PendingTransaction, domain.SwapQuote, error) {
	if err := o.ensureAllowance(ctx, span, req); err != nil {
		return nil, domain.SwapQuote{}, err
	}
	return o.swap(ctx, span, req)
}

func (o *Orchestrator) ensureAllowance(ctx context.Context, span apm.Span, req domain.SwapRequest) error {
	allowance, err := o.Allowance(ctx, req.TokenIn, o.chain.Wallet(), req.Router)
	if err != nil {
		return err
	}
	if allowance.GreaterThanOrEqual(req.Amount) {
		return nil
	}

	grant := req.Amount.Mul(o.settings.Get().AutoApproveMultiplier)
	span.AddEvent("auto_approve", trace.WithAttributes(
		attribute.String("allowance", allowance.String()),
		attribute.String("grant", grant.String()),
	))
	o.logger.Info(ctx, "allowance short, approving router",
		"token", req.TokenIn.Hex(), "router", req.Router.Hex(),
		"allowance", allowance.String(), "grant", grant.String())

	approval, err := o.approve(ctx, span, req.TokenIn, req.Router, grant)
	if err != nil {
		return apperror.New(apperror.CodeApprovalFailed, apperror.WithCause(err))
	}
	o.metrics.approvals.Add(ctx, 1)

	receipt, err := approval.Wait(ctx)
	if err != nil {
		return apperror.New(apperror.CodeApprovalFailed,
			apperror.WithContextf("waiting for %s", approval.Hash.Hex()), apperror.WithCause(err))
	}
	if err := receiptError(receipt); err != nil {
		return apperror.New(apperror.CodeApprovalFailed,
			apperror.WithContext(approval.Hash.Hex()), apperror.WithCause(err))
	}
	return nil
}

// swap quotes strictly before building the router call.
func (o *Orchestrator) swap(ctx context.Context, span apm.Span, req domain.SwapRequest) (*chainDomain.PendingTransaction, domain.SwapQuote, error) {
	quote, err := o.quotes.QuoteWithSlippage(ctx, req.Router, req.TokenIn, req.TokenOut, req.Amount, req.Slippage.Decimal)
	if err != nil {
		return nil, domain.SwapQuote{}, err
	}
	span.SetAttributes(
		attribute.String("amount_out", quote.AmountOut.String()),
		attribute.String("min_amount_out", quote.MinAmountOut.String()),
	)

	rawIn, err := o.baseUnits(ctx, req.TokenIn, quote.AmountIn)
	if err != nil {
		return nil, quote, err
	}
	rawMin, err := o.baseUnits(ctx, req.TokenOut, quote.MinAmountOut)
	if err != nil {
		return nil, quote, err
	}
	deadline := big.NewInt(req.Deadline(o.clock.Now()))

	b, err := o.bindings.Router(req.Router)
	if err != nil {
		return nil, quote, err
	}
	inv, err := b.Invoke(contract.MethodSwapExactTokensForTokens,
		rawIn, rawMin, []common.Address{req.TokenIn, req.TokenOut}, o.chain.Wallet(), deadline)
	if err != nil {
		return nil, quote, err
	}

	desc := fmt.Sprintf("swap %s %s for >= %s %s", quote.AmountIn, req.TokenIn.Hex(), quote.MinAmountOut, req.TokenOut.Hex())
	pending, err := o.submit(ctx, span, "swap", inv, desc)
	return pending, quote, err
}

// FillGas unwraps amount of the wrapped gas token back into native gas.
func (o *Orchestrator) FillGas(ctx context.Context, amount decimal.Decimal) (*chainDomain.PendingTransaction, error) {
	ctx, span := o.tracer.StartSpanFromContext(ctx, "dex.fill_gas",
		trace.WithAttributes(attribute.String("amount", amount.String())),
	)
	defer span.End()

	pending, err := o.fillGas(ctx, span, amount)
	if err != nil {
		return nil, o.fail(ctx, span, "fill_gas", err)
	}
	return pending, nil
}

func (o *Orchestrator) fillGas(ctx context.Context, span apm.Span, amount decimal.Decimal) (*chainDomain.PendingTransaction, error) {
	if !amount.IsPositive() {
		return nil, apperror.New(apperror.CodeInvalidAmount,
			apperror.WithContext(amount.String()), apperror.WithCause(domain.ErrNonPositiveAmount))
	}

	raw, err := o.baseUnits(ctx, o.wrappedGas, amount)
	if err != nil {
		return nil, err
	}

	b, err := o.bindings.Wrapped(o.wrappedGas)
	if err != nil {
		return nil, err
	}
	inv, err := b.Invoke(contract.MethodWithdraw, raw)
	if err != nil {
		return nil, err
	}

	return o.submit(ctx, span, "fill_gas", inv, fmt.Sprintf("unwrap %s gas", amount))
}

// SwapAndRefuelGas swaps amount of token into the wrapped gas token with auto-approve, waits
// for the swap to confirm, then unwraps the quoted minimum output. The refuel never runs when
// the swap fails. A refuel failure after a confirmed swap is not rolled back; the error names
// the swap hash.
func (o *Orchestrator) SwapAndRefuelGas(ctx context.Context, router, token common.Address, amount decimal.Decimal) (*domain.RefuelResult, error) {
	ctx, span := o.tracer.StartSpanFromContext(ctx, "dex.swap_and_refuel",
		trace.WithAttributes(
			attribute.String("router", router.Hex()),
			attribute.String("token", token.Hex()),
			attribute.String("amount", amount.String()),
		),
	)
	defer span.End()

	req, err := o.prepare(domain.SwapRequest{Router: router, TokenIn: token, TokenOut: o.wrappedGas, Amount: amount})
	if err != nil {
		return nil, o.fail(ctx, span, "refuel", err)
	}

	pending, quote, err := o.swapWithAutoApprove(ctx, span, req)
	if err != nil {
		return nil, o.fail(ctx, span, "refuel", apperror.New(apperror.CodeSwapFailed, apperror.WithCause(err)))
	}

	receipt, err := pending.Wait(ctx)
	if err != nil {
		return nil, o.fail(ctx, span, "refuel", apperror.New(apperror.CodeSwapFailed,
			apperror.WithContextf("waiting for %s", pending.Hash.Hex()), apperror.WithCause(err)))
	}
	if err := receiptError(receipt); err != nil {
		return nil, o.fail(ctx, span, "refuel", apperror.New(apperror.CodeSwapFailed,
			apperror.WithContext(pending.Hash.Hex()), apperror.WithCause(err)))
	}

	result := &domain.RefuelResult{Quote: quote, Swap: receipt}

	refuel, err := o.fillGas(ctx, span, quote.MinAmountOut)
	if err != nil {
		return result, o.fail(ctx, span, "refuel", apperror.New(apperror.CodeRefuelFailed,
			apperror.WithContextf("swap %s confirmed, unwrap %s manually", receipt.TxHash.Hex(), quote.MinAmountOut),
			apperror.WithCause(err)))
	}
	result.Refuel = refuel

	o.logger.Info(ctx, "refuel submitted",
		"swap", receipt.TxHash.Hex(), "refuel", refuel.Hash.Hex(), "amount", quote.MinAmountOut.String())
	return result, nil
}

// prepare validates req and fills omitted fields from the session settings.
func (o *Orchestrator) prepare(req domain.SwapRequest) (domain.SwapRequest, error) {
	if err := req.Validate(); err != nil {
		return req, validationError(err)
	}
	req = req.Resolve(o.settings.Get())
	if req.Router == (common.Address{}) {
		return req, apperror.New(apperror.CodeRequiredField,
			apperror.WithContext("router"), apperror.WithCause(domain.ErrZeroAddress))
	}
	return req, nil
}

func (o *Orchestrator) baseUnits(ctx context.Context, token common.Address, amount decimal.Decimal) (*big.Int, error) {
	decimals, err := o.metadata.Decimals(ctx, token)
	if err != nil {
		return nil, err
	}
	raw, err := asset.ToBaseUnits(amount, decimals)
	if err != nil {
		return nil, apperror.New(apperror.CodeInvalidAmount, apperror.WithContext(amount.String()), apperror.WithCause(err))
	}
	return raw, nil
}

func (o *Orchestrator) submit(ctx context.Context, span apm.Span, op string, inv contract.Invocation, desc string) (*chainDomain.PendingTransaction, error) {
	pending, err := o.chain.Submit(ctx, chainDomain.TxRequest{
		To:          inv.To,
		Data:        inv.Data,
		GasLimit:    inv.GasLimit,
		Description: desc,
	})
	if err != nil {
		return nil, err
	}

	o.metrics.submitted.Add(ctx, 1, metric.WithAttributes(attribute.String("op", op)))
	span.SetAttributes(attribute.String("tx_hash", pending.Hash.Hex()))
	o.logger.Info(ctx, "transaction submitted", "op", op, "hash", pending.Hash.Hex(), "description", desc)
	return pending, nil
}

func (o *Orchestrator) fail(ctx context.Context, span apm.Span, op string, err error) error {
	o.metrics.failures.Add(ctx, 1, metric.WithAttributes(attribute.String("op", op)))
	span.NoticeError(err)
	return err
}

func swapAttributes(req domain.SwapRequest) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("router", req.Router.Hex()),
		attribute.String("token_in", req.TokenIn.Hex()),
		attribute.String("token_out", req.TokenOut.Hex()),
		attribute.String("amount_in", req.Amount.String()),
		attribute.String("slippage", req.Slippage.Decimal.String()),
		attribute.Int("deadline_minutes", req.DeadlineMinutes),
	}
}

// receiptError maps an unsuccessful receipt to its error code.
func receiptError(r *chainDomain.Receipt) error {
	switch {
	case r.Expired():
		return apperror.New(apperror.CodeTransactionExpired, apperror.WithContext(r.TxHash.Hex()))
	case !r.Succeeded:
		return apperror.New(apperror.CodeTransactionReverted, apperror.WithContext(r.TxHash.Hex()))
	}
	return nil
}

func validationError(err error) error {
	code := apperror.CodeInvalidInput
	switch {
	case errors.Is(err, domain.ErrSlippageOutOfRange):
		code = apperror.CodeInvalidSlippage
	case errors.Is(err, domain.ErrNonPositiveAmount), errors.Is(err, domain.ErrInvalidDeadline):
		code = apperror.CodeInvalidAmount
	}
	return apperror.New(code, apperror.WithCause(err))
}
