// Package ethereum provides EVM node infrastructure adapters.
package ethereum

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/dexops/business/chain/app"
	"github.com/fd1az/dexops/internal/circuitbreaker"
	"github.com/fd1az/dexops/internal/logger"
	"github.com/fd1az/dexops/internal/ratelimit"
)

const (
	tracerName = "github.com/fd1az/dexops/business/chain/infra/ethereum"
	meterName  = "github.com/fd1az/dexops/business/chain/infra/ethereum"
)

// ClientConfig tunes the node adapter.
type ClientConfig struct {
	RequestsPerSecond float64
	Burst             int
	RequestTimeout    time.Duration
}

// DefaultClientConfig returns sensible defaults for public RPC endpoints.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		RequestsPerSecond: 20,
		Burst:             40,
		RequestTimeout:    15 * time.Second,
	}
}

type clientMetrics struct {
	requests metric.Int64Counter
	errors   metric.Int64Counter
	latency  metric.Float64Histogram
}

// Client decorates a Node (normally *ethclient.Client) with rate limiting, a circuit breaker,
// per-request timeouts and OTEL spans.
type Client struct {
	next    app.Node
	config  ClientConfig
	logger  logger.LoggerInterface
	limiter *ratelimit.Limiter
	cb      *circuitbreaker.CircuitBreaker[any]

	tracer  trace.Tracer
	metrics *clientMetrics
}

var _ app.Node = (*Client)(nil)

// NewClient wraps next.
func NewClient(next app.Node, cfg ClientConfig, log logger.LoggerInterface) (*Client, error) {
	c := &Client{
		next:    next,
		config:  cfg,
		logger:  log,
		limiter: ratelimit.NewWithBurst(cfg.RequestsPerSecond, cfg.Burst),
		tracer:  otel.Tracer(tracerName),
	}

	if err := c.initMetrics(); err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}

	cbCfg := circuitbreaker.DefaultConfig("eth-rpc")
	cbCfg.IsSuccessful = isNodeHealthy
	cbCfg.OnStateChange = func(name string, from, to gobreaker.State) {
		log.Warn(context.Background(), "circuit breaker state change",
			"breaker", name, "from", from.String(), "to", to.String())
	}
	c.cb = circuitbreaker.New[any](cbCfg)

	return c, nil
}

// isNodeHealthy keeps answers from a live node (not found, reverts, JSON-RPC errors) and
// caller cancellations from tripping the breaker. Only transport failures count.
func isNodeHealthy(err error) bool {
	if err == nil || errors.Is(err, ethereum.NotFound) ||
		errors.Is(err, context.Canceled) || errors.Is(err, rpc.ErrNotificationsUnsupported) {
		return true
	}
	var rpcErr rpc.Error
	return errors.As(err, &rpcErr)
}

func (c *Client) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	c.metrics = &clientMetrics{}

	c.metrics.requests, err = meter.Int64Counter(
		"eth_rpc_requests_total",
		metric.WithDescription("JSON-RPC requests by method"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return err
	}

	c.metrics.errors, err = meter.Int64Counter(
		"eth_rpc_errors_total",
		metric.WithDescription("JSON-RPC errors by method"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return err
	}

	c.metrics.latency, err = meter.Float64Histogram(
		"eth_rpc_latency_ms",
		metric.WithDescription("JSON-RPC round trip latency"),
		metric.WithUnit("ms"),
	)
	return err
}

// call runs fn through the limiter, breaker and a per-request timeout.
func call[T any](c *Client, ctx context.Context, method string, fn func(context.Context) (T, error)) (T, error) {
	var zero T

	ctx, span := c.tracer.Start(ctx, "eth."+method, trace.WithAttributes(attribute.String("rpc.method", method)))
	defer span.End()

	attrs := metric.WithAttributes(attribute.String("method", method))
	c.metrics.requests.Add(ctx, 1, attrs)

	if err := c.limiter.Wait(ctx); err != nil {
		span.RecordError(err)
		return zero, err
	}

	if c.config.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.RequestTimeout)
		defer cancel()
	}

	start := time.Now()
	res, err := c.cb.Execute(func() (any, error) {
		return fn(ctx)
	})
	c.metrics.latency.Record(ctx, float64(time.Since(start).Milliseconds()), attrs)

	if err != nil {
		if !errors.Is(err, ethereum.NotFound) {
			c.metrics.errors.Add(ctx, 1, attrs)
			span.RecordError(err)
			span.SetStatus(codes.Error, method+" failed")
		}
		return zero, err
	}

	v, _ := res.(T)
	return v, nil
}

func (c *Client) ChainID(ctx context.Context) (*big.Int, error) {
	return call(c, ctx, "eth_chainId", c.next.ChainID)
}

func (c *Client) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return call(c, ctx, "eth_gasPrice", c.next.SuggestGasPrice)
}

func (c *Client) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	return call(c, ctx, "eth_estimateGas", func(ctx context.Context) (uint64, error) {
		return c.next.EstimateGas(ctx, msg)
	})
}

func (c *Client) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	_, err := call(c, ctx, "eth_sendRawTransaction", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, c.next.SendTransaction(ctx, tx)
	})
	return err
}

func (c *Client) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	return call(c, ctx, "eth_getTransactionReceipt", func(ctx context.Context) (*types.Receipt, error) {
		return c.next.TransactionReceipt(ctx, txHash)
	})
}

func (c *Client) BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error) {
	return call(c, ctx, "eth_getBalance", func(ctx context.Context) (*big.Int, error) {
		return c.next.BalanceAt(ctx, account, blockNumber)
	})
}

func (c *Client) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	return call(c, ctx, "eth_getTransactionCount", func(ctx context.Context) (uint64, error) {
		return c.next.PendingNonceAt(ctx, account)
	})
}

func (c *Client) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	return call(c, ctx, "eth_call", func(ctx context.Context) ([]byte, error) {
		return c.next.CallContract(ctx, msg, blockNumber)
	})
}

func (c *Client) FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	return call(c, ctx, "eth_getLogs", func(ctx context.Context) ([]types.Log, error) {
		return c.next.FilterLogs(ctx, q)
	})
}

func (c *Client) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	return call(c, ctx, "eth_getBlockByNumber", func(ctx context.Context) (*types.Header, error) {
		return c.next.HeaderByNumber(ctx, number)
	})
}

// SubscribeFilterLogs and SubscribeNewHead bypass the per-request timeout: the subscription
// outlives the call.
func (c *Client) SubscribeFilterLogs(ctx context.Context, q ethereum.FilterQuery, ch chan<- types.Log) (ethereum.Subscription, error) {
	return c.next.SubscribeFilterLogs(ctx, q, ch)
}

func (c *Client) SubscribeNewHead(ctx context.Context, ch chan<- *types.Header) (ethereum.Subscription, error) {
	return c.next.SubscribeNewHead(ctx, ch)
}

// BreakerState exposes the RPC breaker state for health checks.
func (c *Client) BreakerState() gobreaker.State {
	return c.cb.State()
}
