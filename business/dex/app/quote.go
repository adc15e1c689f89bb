package app

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/dexops/business/dex/domain"
	"github.com/fd1az/dexops/internal/apm"
	"github.com/fd1az/dexops/internal/apperror"
	"github.com/fd1az/dexops/internal/asset"
	"github.com/fd1az/dexops/internal/contract"
)

// QuoteEngine prices exact-input trades through a UniswapV2-style router.
type QuoteEngine struct {
	bindings *contract.Cache
	metadata *MetadataCache
	tracer   apm.Tracer
}

// NewQuoteEngine creates a QuoteEngine.
func NewQuoteEngine(bindings *contract.Cache, metadata *MetadataCache) *QuoteEngine {
	return &QuoteEngine{
		bindings: bindings,
		metadata: metadata,
		tracer:   apm.NewTracer(tracerName),
	}
}

// Quote returns the router output for amountIn along [tokenIn, tokenOut]. A same-token path
// returns amountIn without touching the node.
func (q *QuoteEngine) Quote(ctx context.Context, router, tokenIn, tokenOut common.Address, amountIn decimal.Decimal) (decimal.Decimal, error) {
	if tokenIn == tokenOut {
		return amountIn, nil
	}

	ctx, span := q.tracer.StartSpanFromContext(ctx, "dex.quote",
		trace.WithAttributes(
			attribute.String("router", router.Hex()),
			attribute.String("token_in", tokenIn.Hex()),
			attribute.String("token_out", tokenOut.Hex()),
			attribute.String("amount_in", amountIn.String()),
		),
	)
	defer span.End()

	decIn, err := q.metadata.Decimals(ctx, tokenIn)
	if err != nil {
		span.NoticeError(err)
		return decimal.Zero, err
	}
	decOut, err := q.metadata.Decimals(ctx, tokenOut)
	if err != nil {
		span.NoticeError(err)
		return decimal.Zero, err
	}

	rawIn, err := asset.ToBaseUnits(amountIn, decIn)
	if err != nil {
		return decimal.Zero, apperror.New(apperror.CodeInvalidAmount, apperror.WithCause(err))
	}

	b, err := q.bindings.Router(router)
	if err != nil {
		return decimal.Zero, err
	}
	out, err := b.Call(ctx, contract.MethodGetAmountsOut, rawIn, []common.Address{tokenIn, tokenOut})
	if err != nil {
		span.NoticeError(err)
		return decimal.Zero, err
	}

	amounts, ok := out[0].([]*big.Int)
	if !ok || len(amounts) == 0 {
		err := apperror.New(apperror.CodeInvalidQuote, apperror.WithContext("empty getAmountsOut result"))
		span.NoticeError(err)
		return decimal.Zero, err
	}

	amountOut, err := asset.FromBaseUnits(amounts[len(amounts)-1], decOut)
	if err != nil {
		return decimal.Zero, apperror.New(apperror.CodeInvalidQuote, apperror.WithCause(err))
	}

	span.SetAttributes(attribute.String("amount_out", amountOut.String()))
	return amountOut, nil
}

// ApplySlippage returns the minimum acceptable output for pct percent slippage.
func ApplySlippage(amountOut, pct decimal.Decimal) (decimal.Decimal, error) {
	minOut, err := domain.ApplySlippage(amountOut, pct)
	if err != nil {
		return decimal.Zero, apperror.New(apperror.CodeInvalidSlippage,
			apperror.WithContext(pct.String()), apperror.WithCause(err))
	}
	return minOut, nil
}

// QuoteWithSlippage quotes and derives the slippage-bounded minimum in one step.
func (q *QuoteEngine) QuoteWithSlippage(ctx context.Context, router, tokenIn, tokenOut common.Address, amountIn, slippagePct decimal.Decimal) (domain.SwapQuote, error) {
	if err := domain.ValidateSlippage(slippagePct); err != nil {
		return domain.SwapQuote{}, apperror.New(apperror.CodeInvalidSlippage,
			apperror.WithContext(slippagePct.String()), apperror.WithCause(err))
	}

	amountOut, err := q.Quote(ctx, router, tokenIn, tokenOut, amountIn)
	if err != nil {
		return domain.SwapQuote{}, err
	}
	minOut, err := ApplySlippage(amountOut, slippagePct)
	if err != nil {
		return domain.SwapQuote{}, err
	}

	return domain.SwapQuote{
		Router:       router,
		TokenIn:      tokenIn,
		TokenOut:     tokenOut,
		AmountIn:     amountIn,
		AmountOut:    amountOut,
		MinAmountOut: minOut,
		Slippage:     slippagePct,
	}, nil
}

// Price is the output of one whole tokenA in tokenB.
func (q *QuoteEngine) Price(ctx context.Context, tokenA, tokenB, router common.Address) (decimal.Decimal, error) {
	return q.Quote(ctx, router, tokenA, tokenB, decimal.NewFromInt(1))
}
