package ethereum

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/dexops/business/chain/app"
	"github.com/fd1az/dexops/business/chain/domain"
	"github.com/fd1az/dexops/internal/apperror"
	"github.com/fd1az/dexops/internal/logger"
)

var errNoWebSocket = errors.New("ws url not configured")

// SubscriberConfig holds configuration for the stream subscriber.
type SubscriberConfig struct {
	WSURL          string        // WebSocket endpoint (primary); empty means HTTP polling only
	PollInterval   time.Duration // Polling interval for HTTP fallback
	ReconnectDelay time.Duration // How long to poll over HTTP before retrying WS
	BufferSize     int           // Per-stream channel buffer size
}

// DefaultSubscriberConfig returns sensible defaults for 3s block chains.
func DefaultSubscriberConfig(wsURL string) SubscriberConfig {
	return SubscriberConfig{
		WSURL:          wsURL,
		PollInterval:   3 * time.Second,
		ReconnectDelay: 5 * time.Second,
		BufferSize:     16,
	}
}

// subscriberMetrics holds OTEL metric instruments.
type subscriberMetrics struct {
	blocksReceived   metric.Int64Counter
	logsReceived     metric.Int64Counter
	subscribeErrors  metric.Int64Counter
	connectionState  metric.Int64Gauge
	blockLatency     metric.Float64Histogram
	httpFallbackUsed metric.Int64Counter
}

// Subscriber streams heads and logs. It uses eth_subscribe over WebSocket as primary and polls
// the HTTP node as fallback. Every Subscribe call owns its channel and goroutine.
type Subscriber struct {
	config SubscriberConfig
	logger logger.LoggerInterface
	node   app.Node // HTTP fallback

	wsClient *ethclient.Client
	clientMu sync.Mutex

	state      domain.ConnectionState
	stateMu    sync.RWMutex
	usingHTTP  atomic.Bool
	lastBlock  atomic.Uint64
	reconnects atomic.Int32
	closed     atomic.Bool

	tracer  trace.Tracer
	metrics *subscriberMetrics
}

var (
	_ app.BlockSubscriber = (*Subscriber)(nil)
	_ app.LogSubscriber   = (*Subscriber)(nil)
)

// NewSubscriber creates a subscriber polling node when WS is unavailable.
func NewSubscriber(cfg SubscriberConfig, node app.Node, log logger.LoggerInterface) (*Subscriber, error) {
	if cfg.PollInterval <= 0 {
		return nil, fmt.Errorf("poll interval must be positive")
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 16
	}

	s := &Subscriber{
		config: cfg,
		logger: log,
		node:   node,
		state:  domain.StateDisconnected,
		tracer: otel.Tracer(tracerName),
	}

	if err := s.initMetrics(); err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}

	return s, nil
}

// initMetrics initializes OTEL metric instruments.
func (s *Subscriber) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	s.metrics = &subscriberMetrics{}

	s.metrics.blocksReceived, err = meter.Int64Counter(
		"eth_blocks_received_total",
		metric.WithDescription("Total blocks received"),
		metric.WithUnit("{block}"),
	)
	if err != nil {
		return err
	}

	s.metrics.logsReceived, err = meter.Int64Counter(
		"eth_logs_received_total",
		metric.WithDescription("Total contract logs received"),
		metric.WithUnit("{log}"),
	)
	if err != nil {
		return err
	}

	s.metrics.subscribeErrors, err = meter.Int64Counter(
		"eth_subscribe_errors_total",
		metric.WithDescription("Total subscription errors"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return err
	}

	s.metrics.connectionState, err = meter.Int64Gauge(
		"eth_connection_state",
		metric.WithDescription("Connection state (0=disconnected, 1=connecting, 2=connected, 3=reconnecting)"),
		metric.WithUnit("{state}"),
	)
	if err != nil {
		return err
	}

	s.metrics.blockLatency, err = meter.Float64Histogram(
		"eth_block_latency_ms",
		metric.WithDescription("Latency from block timestamp to receipt"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return err
	}

	s.metrics.httpFallbackUsed, err = meter.Int64Counter(
		"eth_http_fallback_total",
		metric.WithDescription("Times HTTP fallback was used"),
		metric.WithUnit("{fallback}"),
	)
	return err
}

// Subscribe starts a head stream. The channel is closed when ctx is done.
func (s *Subscriber) Subscribe(ctx context.Context) (<-chan *domain.Block, error) {
	if s.closed.Load() {
		return nil, apperror.New(apperror.CodeSubscriptionFailed, apperror.WithContext("subscriber is closed"))
	}

	_, span := s.tracer.Start(ctx, "eth.subscribe.heads",
		trace.WithAttributes(attribute.String("ws_url", s.config.WSURL)))
	defer span.End()

	out := make(chan *domain.Block, s.config.BufferSize)
	go func() {
		defer close(out)

		var last uint64
		emit := func(header *types.Header) {
			if header == nil || header.Number.Uint64() <= last {
				return
			}
			last = header.Number.Uint64()
			s.processHeader(ctx, header, out)
		}

		s.supervise(ctx, "heads",
			func(ctx context.Context, client *ethclient.Client) error {
				return s.streamHeadsWS(ctx, client, emit)
			},
			func(ctx context.Context) {
				header, err := s.node.HeaderByNumber(ctx, nil)
				if err != nil {
					s.pollFailed(ctx, "heads", err)
					return
				}
				emit(header)
			},
		)
	}()

	span.SetStatus(codes.Ok, "subscribed")
	return out, nil
}

// SubscribeLogs starts a log stream for q. Logs are delivered in chain order without duplicates
// across WS/HTTP switches; removed (reorged) logs are dropped.
func (s *Subscriber) SubscribeLogs(ctx context.Context, q ethereum.FilterQuery) (<-chan types.Log, error) {
	if s.closed.Load() {
		return nil, apperror.New(apperror.CodeSubscriptionFailed, apperror.WithContext("subscriber is closed"))
	}

	_, span := s.tracer.Start(ctx, "eth.subscribe.logs",
		trace.WithAttributes(attribute.Int("addresses", len(q.Addresses))))
	defer span.End()

	// Start at the current head so the HTTP fallback does not replay history.
	cursor := &logCursor{index: -1}
	if head, err := s.node.HeaderByNumber(ctx, nil); err == nil {
		cursor.block = head.Number.Uint64() + 1
	}

	out := make(chan types.Log, s.config.BufferSize)
	go func() {
		defer close(out)

		emit := func(l types.Log) {
			if l.Removed || !cursor.advance(l) {
				return
			}
			select {
			case out <- l:
				s.metrics.logsReceived.Add(ctx, 1)
			case <-ctx.Done():
			}
		}

		s.supervise(ctx, "logs",
			func(ctx context.Context, client *ethclient.Client) error {
				return s.streamLogsWS(ctx, client, q, emit)
			},
			func(ctx context.Context) {
				s.pollLogs(ctx, q, cursor, emit)
			},
		)
	}()

	span.SetStatus(codes.Ok, "subscribed")
	return out, nil
}

// logCursor is the position of the last delivered log.
type logCursor struct {
	block uint64
	index int64
}

// advance reports whether l comes after the cursor and moves past it.
func (c *logCursor) advance(l types.Log) bool {
	if l.BlockNumber < c.block || (l.BlockNumber == c.block && int64(l.Index) <= c.index) {
		return false
	}
	c.block, c.index = l.BlockNumber, int64(l.Index)
	return true
}

// supervise alternates between a WS stream and a window of HTTP polling until ctx is done.
func (s *Subscriber) supervise(ctx context.Context, stream string,
	viaWS func(context.Context, *ethclient.Client) error, poll func(context.Context),
) {
	s.setState(domain.StateConnecting)

	if s.config.WSURL == "" {
		s.usingHTTP.Store(true)
		s.setState(domain.StateConnected)
		s.pollFor(ctx, 0, poll)
		return
	}

	for ctx.Err() == nil && !s.closed.Load() {
		client, err := s.ws(ctx)
		if err == nil {
			s.usingHTTP.Store(false)
			s.setState(domain.StateConnected)
			s.logger.Info(ctx, "streaming over ws", "stream", stream)

			err = viaWS(ctx, client)
			if ctx.Err() != nil {
				return
			}
			s.dropWS(client)
		}

		s.logger.Warn(ctx, "ws stream unavailable, polling over http", "stream", stream, "error", err)
		s.metrics.subscribeErrors.Add(ctx, 1)
		s.metrics.httpFallbackUsed.Add(ctx, 1)
		s.usingHTTP.Store(true)
		s.reconnects.Add(1)
		s.setState(domain.StateReconnecting)

		s.pollFor(ctx, s.config.ReconnectDelay, poll)
	}
}

// pollFor calls poll immediately and then every PollInterval. A zero window polls until ctx is done.
func (s *Subscriber) pollFor(ctx context.Context, window time.Duration, poll func(context.Context)) {
	ticker := time.NewTicker(s.config.PollInterval)
	defer ticker.Stop()

	var deadline <-chan time.Time
	if window > 0 {
		timer := time.NewTimer(window)
		defer timer.Stop()
		deadline = timer.C
	}

	poll(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-deadline:
			return
		case <-ticker.C:
			if s.closed.Load() {
				return
			}
			poll(ctx)
		}
	}
}

func (s *Subscriber) streamHeadsWS(ctx context.Context, client *ethclient.Client, emit func(*types.Header)) error {
	headers := make(chan *types.Header, s.config.BufferSize)
	sub, err := client.SubscribeNewHead(ctx, headers)
	if err != nil {
		return fmt.Errorf("subscribe new heads: %w", err)
	}
	defer sub.Unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-sub.Err():
			return fmt.Errorf("head subscription: %w", err)
		case header := <-headers:
			emit(header)
		}
	}
}

func (s *Subscriber) streamLogsWS(ctx context.Context, client *ethclient.Client, q ethereum.FilterQuery, emit func(types.Log)) error {
	logs := make(chan types.Log, s.config.BufferSize)
	sub, err := client.SubscribeFilterLogs(ctx, q, logs)
	if err != nil {
		return fmt.Errorf("subscribe logs: %w", err)
	}
	defer sub.Unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-sub.Err():
			return fmt.Errorf("log subscription: %w", err)
		case l := <-logs:
			emit(l)
		}
	}
}

// pollLogs fetches logs between the cursor and the current head.
func (s *Subscriber) pollLogs(ctx context.Context, q ethereum.FilterQuery, cursor *logCursor, emit func(types.Log)) {
	ctx, span := s.tracer.Start(ctx, "eth.poll.logs")
	defer span.End()

	head, err := s.node.HeaderByNumber(ctx, nil)
	if err != nil {
		span.RecordError(err)
		s.pollFailed(ctx, "logs", err)
		return
	}

	from := cursor.block
	to := head.Number.Uint64()
	if from == 0 {
		// Head was unknown at subscribe time; start here.
		cursor.block = to + 1
		return
	}
	if to < from {
		return
	}

	ranged := q
	ranged.FromBlock = new(big.Int).SetUint64(from)
	ranged.ToBlock = new(big.Int).SetUint64(to)

	logs, err := s.node.FilterLogs(ctx, ranged)
	if err != nil {
		span.RecordError(err)
		s.pollFailed(ctx, "logs", err)
		return
	}

	for _, l := range logs {
		emit(l)
	}
	span.SetAttributes(attribute.Int("logs", len(logs)))
}

func (s *Subscriber) pollFailed(ctx context.Context, stream string, err error) {
	s.metrics.subscribeErrors.Add(ctx, 1)
	s.logger.Warn(ctx, "http poll failed", "stream", stream, "error", err)
}

// ws returns the shared WebSocket client, dialling it on first use.
func (s *Subscriber) ws(ctx context.Context) (*ethclient.Client, error) {
	if s.config.WSURL == "" {
		return nil, errNoWebSocket
	}

	s.clientMu.Lock()
	defer s.clientMu.Unlock()

	if s.wsClient != nil {
		return s.wsClient, nil
	}

	ctx, span := s.tracer.Start(ctx, "eth.connect.ws",
		trace.WithAttributes(attribute.String("url", s.config.WSURL)))
	defer span.End()

	client, err := ethclient.DialContext(ctx, s.config.WSURL)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "dial failed")
		return nil, fmt.Errorf("dial ws: %w", err)
	}

	s.wsClient = client
	return client, nil
}

// dropWS discards a broken client so the next stream redials.
func (s *Subscriber) dropWS(client *ethclient.Client) {
	s.clientMu.Lock()
	defer s.clientMu.Unlock()

	if s.wsClient == client {
		s.wsClient.Close()
		s.wsClient = nil
	}
}

// processHeader converts and emits a block header, dropping it if the consumer is behind.
func (s *Subscriber) processHeader(ctx context.Context, header *types.Header, out chan<- *domain.Block) {
	block := domain.BlockFromHeader(header)

	latency := time.Since(block.Timestamp)
	s.metrics.blockLatency.Record(ctx, float64(latency.Milliseconds()))
	s.lastBlock.Store(block.Number)

	select {
	case out <- block:
		s.metrics.blocksReceived.Add(ctx, 1)
		s.logger.Debug(ctx, "block received",
			"number", block.Number,
			"hash", block.Hash.Hex()[:10],
			"latency_ms", latency.Milliseconds())
	default:
		s.logger.Warn(ctx, "block dropped, buffer full", "number", block.Number)
	}
}

// LatestBlock retrieves the most recent block.
func (s *Subscriber) LatestBlock(ctx context.Context) (*domain.Block, error) {
	header, err := s.node.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, apperror.Node("latest block", err)
	}
	return domain.BlockFromHeader(header), nil
}

// State returns the current connection state.
func (s *Subscriber) State() domain.ConnectionState {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.state
}

// Status returns detailed connection status.
func (s *Subscriber) Status() domain.ConnectionStatus {
	return domain.ConnectionStatus{
		State:      s.State(),
		LastBlock:  s.lastBlock.Load(),
		Reconnects: int(s.reconnects.Load()),
		UsingHTTP:  s.usingHTTP.Load(),
	}
}

// Close releases the WebSocket connection. Running streams end with their contexts.
func (s *Subscriber) Close() error {
	if s.closed.Swap(true) {
		return nil
	}

	s.logger.Info(context.Background(), "closing subscriber")

	s.clientMu.Lock()
	if s.wsClient != nil {
		s.wsClient.Close()
		s.wsClient = nil
	}
	s.clientMu.Unlock()

	s.setState(domain.StateDisconnected)
	return nil
}

// setState updates the connection state and records metrics.
func (s *Subscriber) setState(state domain.ConnectionState) {
	s.stateMu.Lock()
	s.state = state
	s.stateMu.Unlock()

	stateValue := int64(0)
	switch state {
	case domain.StateDisconnected:
		stateValue = 0
	case domain.StateConnecting:
		stateValue = 1
	case domain.StateConnected:
		stateValue = 2
	case domain.StateReconnecting:
		stateValue = 3
	}

	s.metrics.connectionState.Record(context.Background(), stateValue)
}
