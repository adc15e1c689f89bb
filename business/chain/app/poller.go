package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/fd1az/dexops/business/chain/domain"
	"github.com/fd1az/dexops/internal/logger"
)

const meterName = "github.com/fd1az/dexops/business/chain/app"

// ReceiptSource fetches mined receipts. ethereum.NotFound means not mined yet.
type ReceiptSource interface {
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// PollerConfig bounds receipt polling.
type PollerConfig struct {
	Interval time.Duration
	Expiry   time.Duration
}

// DefaultPollerConfig polls every 5s and gives up after 20 minutes.
func DefaultPollerConfig() PollerConfig {
	return PollerConfig{Interval: 5 * time.Second, Expiry: 20 * time.Minute}
}

type pollerMetrics struct {
	active    metric.Int64UpDownCounter
	resolved  metric.Int64Counter
	pollCalls metric.Int64Counter
}

// ReceiptPoller runs one goroutine per pending transaction until it is confirmed or expired.
type ReceiptPoller struct {
	source ReceiptSource
	clock  Clock
	cfg    PollerConfig
	logger logger.LoggerInterface

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	active atomic.Int64

	metrics *pollerMetrics
}

// NewReceiptPoller creates a poller. Close stops every outstanding poll.
func NewReceiptPoller(source ReceiptSource, clock Clock, cfg PollerConfig, log logger.LoggerInterface) (*ReceiptPoller, error) {
	if cfg.Interval <= 0 || cfg.Expiry <= 0 {
		return nil, fmt.Errorf("poller interval and expiry must be positive")
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &ReceiptPoller{
		source: source,
		clock:  clock,
		cfg:    cfg,
		logger: log,
		ctx:    ctx,
		cancel: cancel,
	}

	if err := p.initMetrics(); err != nil {
		cancel()
		return nil, fmt.Errorf("init metrics: %w", err)
	}

	return p, nil
}

func (p *ReceiptPoller) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	p.metrics = &pollerMetrics{}

	p.metrics.active, err = meter.Int64UpDownCounter(
		"tx_pollers_active",
		metric.WithDescription("Receipt pollers currently running"),
		metric.WithUnit("{poller}"),
	)
	if err != nil {
		return err
	}

	p.metrics.resolved, err = meter.Int64Counter(
		"tx_receipts_resolved_total",
		metric.WithDescription("Pending transactions resolved, by status"),
		metric.WithUnit("{tx}"),
	)
	if err != nil {
		return err
	}

	p.metrics.pollCalls, err = meter.Int64Counter(
		"tx_receipt_polls_total",
		metric.WithDescription("eth_getTransactionReceipt calls issued by pollers"),
		metric.WithUnit("{call}"),
	)
	return err
}

// Track starts polling hash and returns its handle immediately.
func (p *ReceiptPoller) Track(hash common.Hash, description string) *domain.PendingTransaction {
	session := "poller-" + uuid.NewString()[:8]
	pending := domain.NewPendingTransaction(hash, description, session, p.clock.Now(), p.cfg.Interval, p.cfg.Expiry)

	p.wg.Add(1)
	p.active.Add(1)
	p.metrics.active.Add(p.ctx, 1)

	go func() {
		defer p.wg.Done()
		defer func() {
			p.active.Add(-1)
			p.metrics.active.Add(p.ctx, -1)
		}()
		p.poll(pending)
	}()

	return pending
}

func (p *ReceiptPoller) poll(pending *domain.PendingTransaction) {
	ctx := p.ctx
	start := pending.SubmittedAt

	p.logger.Debug(ctx, "polling receipt",
		"session", pending.SessionID, "tx", pending.Hash.Hex(), "description", pending.Description)

	for {
		p.metrics.pollCalls.Add(ctx, 1)

		receipt, err := p.source.TransactionReceipt(ctx, pending.Hash)
		switch {
		case err == nil && receipt != nil:
			p.resolve(ctx, pending, domain.ReceiptFromChain(receipt))
			return
		case err == nil, errors.Is(err, ethereum.NotFound):
		case ctx.Err() != nil:
		default:
			p.logger.Warn(ctx, "receipt poll failed, retrying",
				"session", pending.SessionID, "tx", pending.Hash.Hex(), "error", err)
		}

		if p.clock.Now().Sub(start) >= p.cfg.Expiry {
			p.resolve(ctx, pending, domain.EmptyReceipt(pending.Hash))
			return
		}

		select {
		case <-p.clock.After(p.cfg.Interval):
		case <-ctx.Done():
			// Shutdown: release waiters with the expiry sentinel.
			p.resolve(context.Background(), pending, domain.EmptyReceipt(pending.Hash))
			return
		}
	}
}

func (p *ReceiptPoller) resolve(ctx context.Context, pending *domain.PendingTransaction, r *domain.Receipt) {
	if !pending.Resolve(r) {
		return
	}

	p.metrics.resolved.Add(ctx, 1, metric.WithAttributes(attribute.String("status", string(r.Status))))

	if r.Expired() {
		p.logger.Warn(ctx, "transaction receipt not found before expiry",
			"session", pending.SessionID, "tx", pending.Hash.Hex(), "description", pending.Description)
		return
	}
	p.logger.Info(ctx, "transaction confirmed",
		"session", pending.SessionID, "tx", pending.Hash.Hex(),
		"block", r.BlockNumber, "succeeded", r.Succeeded, "gas_used", r.GasUsed)
}

// Active returns the number of running pollers.
func (p *ReceiptPoller) Active() int64 {
	return p.active.Load()
}

// Close cancels all pollers and waits for them to exit.
func (p *ReceiptPoller) Close() {
	p.cancel()
	p.wg.Wait()
}
