package app

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/dexops/business/chain/domain"
	"github.com/fd1az/dexops/internal/apm"
	"github.com/fd1az/dexops/internal/apperror"
	"github.com/fd1az/dexops/internal/asset"
	"github.com/fd1az/dexops/internal/logger"
)

const tracerName = "github.com/fd1az/dexops/business/chain/app"

// SubmitterConfig is the gas-limit policy for drafts.
type SubmitterConfig struct {
	DefaultGasLimit   uint64
	GasLimitBufferPct uint64
}

// DefaultSubmitterConfig mirrors the classic 4.3M default gas provider with no buffer.
func DefaultSubmitterConfig() SubmitterConfig {
	return SubmitterConfig{DefaultGasLimit: 4_300_000}
}

type submitterMetrics struct {
	submitted metric.Int64Counter
	failures  metric.Int64Counter
	gasLimit  metric.Int64Histogram
}

// Submitter drafts, estimates, signs and broadcasts transactions, then hands them to a Tracker.
type Submitter struct {
	node    Node
	signer  Signer
	chainID *big.Int
	nonces  *NonceManager
	tracker Tracker
	cfg     SubmitterConfig
	logger  logger.LoggerInterface

	tracer  apm.Tracer
	metrics *submitterMetrics
}

// NewSubmitter creates a submitter for signer on chainID.
func NewSubmitter(node Node, signer Signer, chainID *big.Int, tracker Tracker, cfg SubmitterConfig, log logger.LoggerInterface) (*Submitter, error) {
	if cfg.DefaultGasLimit == 0 {
		cfg.DefaultGasLimit = DefaultSubmitterConfig().DefaultGasLimit
	}

	s := &Submitter{
		node:    node,
		signer:  signer,
		chainID: new(big.Int).Set(chainID),
		nonces:  NewNonceManager(node, signer.Address()),
		tracker: tracker,
		cfg:     cfg,
		logger:  log,
		tracer:  apm.NewTracer(tracerName),
	}

	if err := s.initMetrics(); err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}

	return s, nil
}

func (s *Submitter) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	s.metrics = &submitterMetrics{}

	s.metrics.submitted, err = meter.Int64Counter(
		"tx_submitted_total",
		metric.WithDescription("Transactions broadcast"),
		metric.WithUnit("{tx}"),
	)
	if err != nil {
		return err
	}

	s.metrics.failures, err = meter.Int64Counter(
		"tx_submit_failures_total",
		metric.WithDescription("Submission failures by stage"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return err
	}

	s.metrics.gasLimit, err = meter.Int64Histogram(
		"tx_gas_limit",
		metric.WithDescription("Gas limit of broadcast transactions"),
		metric.WithUnit("{gas}"),
	)
	return err
}

// Submit runs draft → estimate → re-price → sign → broadcast and returns the pending handle
// without waiting for a receipt.
func (s *Submitter) Submit(ctx context.Context, req domain.TxRequest) (*domain.PendingTransaction, error) {
	ctx, span := s.tracer.StartSpanFromContext(ctx, "tx.submit",
		trace.WithAttributes(
			attribute.String("to", req.To.Hex()),
			attribute.String("description", req.Description),
		),
	)
	defer span.End()

	if req.Value.IsNegative() {
		err := apperror.Validation(apperror.CodeInvalidAmount, "negative native value")
		span.NoticeError(err)
		return nil, err
	}
	value, err := asset.ToBaseUnits(req.Value, asset.NativeDecimals)
	if err != nil {
		span.NoticeError(err)
		return nil, apperror.New(apperror.CodeInvalidAmount, apperror.WithCause(err))
	}

	draftPrice, err := s.node.SuggestGasPrice(ctx)
	if err != nil {
		return nil, s.fail(ctx, span, "gas_price", apperror.Node("eth_gasPrice", err))
	}

	draftLimit := req.GasLimit
	if draftLimit == 0 {
		draftLimit = s.cfg.DefaultGasLimit
	}

	to := req.To
	estimate, err := s.node.EstimateGas(ctx, ethereum.CallMsg{
		From:     s.signer.Address(),
		To:       &to,
		Gas:      draftLimit,
		GasPrice: draftPrice,
		Value:    value,
		Data:     req.Data,
	})
	if err != nil {
		return nil, s.fail(ctx, span, "estimate", apperror.Node("eth_estimateGas: "+req.Description, err))
	}

	gasPrice, err := s.node.SuggestGasPrice(ctx)
	if err != nil {
		return nil, s.fail(ctx, span, "gas_price", apperror.Node("eth_gasPrice", err))
	}

	gasLimit := estimate + estimate*s.cfg.GasLimitBufferPct/100

	// Reserved only once the transaction is fully priced, so a slow estimate never holds one.
	nonce, err := s.nonces.Next(ctx)
	if err != nil {
		return nil, s.fail(ctx, span, "nonce", err)
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		GasPrice: gasPrice,
		Gas:      gasLimit,
		To:       &to,
		Value:    value,
		Data:     req.Data,
	})

	signed, err := s.signer.SignTx(tx, s.chainID)
	if err != nil {
		s.nonces.Release(nonce)
		return nil, s.fail(ctx, span, "sign", apperror.New(apperror.CodeSigningFailed, apperror.WithCause(err)))
	}

	if err := s.node.SendTransaction(ctx, signed); err != nil {
		s.nonces.Release(nonce)
		s.nonces.Invalidate()
		return nil, s.fail(ctx, span, "send", apperror.Node("eth_sendRawTransaction: "+req.Description, err))
	}

	s.metrics.submitted.Add(ctx, 1)
	s.metrics.gasLimit.Record(ctx, int64(gasLimit))
	span.SetAttributes(
		attribute.String("tx_hash", signed.Hash().Hex()),
		attribute.Int64("nonce", int64(nonce)),
		attribute.Int64("gas_limit", int64(gasLimit)),
	)

	s.logger.Info(ctx, "transaction broadcast",
		"description", req.Description,
		"tx", signed.Hash().Hex(),
		"nonce", nonce,
		"gas_limit", gasLimit,
		"gas_price_wei", gasPrice.String())

	return s.tracker.Track(signed.Hash(), req.Description), nil
}

func (s *Submitter) fail(ctx context.Context, span apm.Span, stage string, err error) error {
	span.NoticeError(err)
	s.metrics.failures.Add(ctx, 1, metric.WithAttributes(attribute.String("stage", stage)))
	s.logger.Warnc(ctx, 1, "transaction submission failed", "stage", stage, "error", err)
	return err
}

// Address is the signing wallet.
func (s *Submitter) Address() common.Address {
	return s.signer.Address()
}
