// Package main is the entry point for the dexops trading CLI.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/fd1az/dexops/business/chain"
	chainDI "github.com/fd1az/dexops/business/chain/di"
	"github.com/fd1az/dexops/business/dex"
	"github.com/fd1az/dexops/internal/apm"
	"github.com/fd1az/dexops/internal/config"
	"github.com/fd1az/dexops/internal/health"
	"github.com/fd1az/dexops/internal/logger"
	"github.com/fd1az/dexops/internal/metrics"
	"github.com/fd1az/dexops/internal/monolith"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: dexops [flags] <command> [args]

Commands:
  balance   [token...]                   gas and token balances of the wallet
  price     <tokenA> <tokenB>            price of one tokenA in tokenB
  allowance <token> [spender]            allowance granted to spender (default router)
  info      <token> [priceToken]         token metadata, balance and value
  pair      <tokenA> <tokenB>            pair address and reserves
  approve   <token> <amount> [spender]   approve spender (default router)
  transfer  <token> <recipient> <amount> send tokens
  swap      <tokenIn> <tokenOut> <amount> exact-input swap
  refuel    <token> <amount>             swap into wrapped gas and unwrap
  watch     [token...]                   live dashboard of heads, transfers and balances

Flags:
`)
	flag.PrintDefaults()
}

func main() {
	// Load .env file if present (ignore error if not found)
	_ = godotenv.Load()

	configPath := flag.String("config", "", "Path to configuration file")
	cliMode := flag.Bool("cli", false, "Run watch with logs instead of the TUI")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Usage = usage
	flag.Parse()

	if *showVersion {
		fmt.Printf("dexops %s (commit: %s, built: %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(2)
	}

	cmd, ok := lookupCommand(args[0])
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", args[0])
		usage()
		os.Exit(2)
	}

	// The dashboard owns the terminal only for watch
	tuiMode := cmd.name == "watch" && !*cliMode

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		if !tuiMode {
			fmt.Fprintf(os.Stderr, "received shutdown signal: %v\n", sig)
		}
		cancel()
	}()

	if err := run(ctx, *configPath, tuiMode, cmd, args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string, tuiMode bool, cmd command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if !cfg.HasWallet() {
		return fmt.Errorf("no wallet configured: set DEXOPS_KEYSTORE_PATH or DEXOPS_PRIVATE_KEY")
	}

	// Set TUI mode in config so the dex module picks the right reporter
	cfg.App.TUIMode = tuiMode

	logLevel := logger.ParseLevel(cfg.App.LogLevel)

	var log *logger.Logger
	if tuiMode {
		log = logger.New(io.Discard, logLevel, cfg.App.Name, nil)
	} else {
		log = logger.New(os.Stderr, logLevel, cfg.App.Name, nil)
		log.Debug(ctx, "starting dexops",
			"version", version,
			"environment", cfg.App.Environment,
			"command", cmd.name,
		)
	}

	traceProvider, stopMetrics := setupTelemetry(ctx, cfg, log)
	defer func() {
		_ = traceProvider.Stop()
		stopMetrics()
	}()

	mono, err := monolith.New(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("failed to create monolith: %w", err)
	}
	defer mono.Close()

	// Define modules in dependency order
	modules := []monolith.Module{
		&chain.Module{}, // Must be first - provides node access and the transaction lifecycle
		&dex.Module{},   // Depends on chain
	}

	if err := mono.RegisterModules(modules...); err != nil {
		return fmt.Errorf("failed to register modules: %w", err)
	}

	if cfg.Health.Enabled {
		healthServer := health.NewServer(cfg.Health.Port, version, log)
		healthServer.RegisterCheck("node", health.ProbeCheck(func(ctx context.Context) (string, error) {
			block, err := chainDI.GetChainService(mono.Services()).LatestBlock(ctx)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("head %d", block.Number), nil
		}))
		healthServer.Start(ctx)
		defer healthServer.Stop(context.Background())
	}

	if tuiMode {
		return runTUI(ctx, mono, modules, args)
	}

	if err := mono.StartModules(ctx, modules...); err != nil {
		return fmt.Errorf("failed to start modules: %w", err)
	}
	defer chainDI.GetChainService(mono.Services()).Close()

	return cmd.run(ctx, newSession(mono, os.Stdout), args)
}

// setupTelemetry installs tracing and the Prometheus endpoint when enabled.
func setupTelemetry(ctx context.Context, cfg *config.Config, log logger.LoggerInterface) (apm.TraceProvider, func()) {
	if !cfg.Telemetry.Enabled {
		return apm.NewTraceProvider(ctx, log, apm.ProviderConfig{Provider: apm.EmptyProvider}), func() {}
	}

	endpoint := cfg.Telemetry.OTLPEndpoint
	provider := apm.Provider(cfg.Telemetry.TraceProvider)
	if provider == apm.ZipkinProvider {
		endpoint = cfg.Telemetry.ZipkinURL
	}

	traceProvider := apm.NewTraceProvider(ctx, log, apm.ProviderConfig{
		Provider:    provider,
		ServiceName: cfg.Telemetry.ServiceName,
		Endpoint:    endpoint,
		Headers:     cfg.Telemetry.OTLPHeaders,
	})

	metricOpts := []metrics.OptionFn{
		metrics.WithServiceName(cfg.Telemetry.ServiceName),
		metrics.WithProviderConfig(metrics.NewPrometheusConfig()),
	}
	if cfg.Telemetry.OTLPEndpoint != "" && provider != apm.ZipkinProvider {
		headers, err := apm.ParseHeaders(cfg.Telemetry.OTLPHeaders)
		if err != nil {
			log.Warn(ctx, "ignoring otlp headers", "error", err)
		}
		insecure := strings.HasPrefix(cfg.Telemetry.OTLPEndpoint, "http://")
		metricOpts = append(metricOpts, metrics.WithProviderConfig(
			metrics.NewOtelCollectorConfig(cfg.Telemetry.OTLPEndpoint, headers, insecure)))
	}

	meterProvider, err := metrics.NewMetricProvider(ctx, metricOpts...)
	if err != nil {
		log.Warn(ctx, "metrics disabled", "error", err)
		return traceProvider, func() {}
	}

	promServer := metrics.NewPrometheusServer(log, metrics.WithPort(cfg.Telemetry.PrometheusPort))
	promServer.Start(ctx)

	return traceProvider, func() {
		shutdownCtx := context.Background()
		_ = promServer.Stop(shutdownCtx)
		_ = meterProvider.Shutdown(shutdownCtx)
	}
}
