// Package chain implements the chain bounded context: node access, streams, signing and the
// transaction lifecycle.
package chain

import (
	"context"

	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/fd1az/dexops/business/chain/app"
	chainDI "github.com/fd1az/dexops/business/chain/di"
	"github.com/fd1az/dexops/business/chain/infra/ethereum"
	"github.com/fd1az/dexops/business/chain/infra/wallet"
	"github.com/fd1az/dexops/internal/config"
	"github.com/fd1az/dexops/internal/di"
	"github.com/fd1az/dexops/internal/logger"
	"github.com/fd1az/dexops/internal/monolith"
	"github.com/fd1az/dexops/internal/network"
)

// Module implements the chain bounded context.
type Module struct{}

// RegisterServices registers all chain services with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	// Node client (private) - rate limited, circuit broken view of the RPC endpoint
	di.RegisterToken(c, chainDI.NodeClient, func(sr di.ServiceRegistry) *ethereum.Client {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)
		eth := sr.Get("ethClient").(*ethclient.Client)

		client, err := ethereum.NewClient(eth, ethereum.ClientConfig{
			RequestsPerSecond: cfg.Chain.RequestsPerSecond,
			Burst:             cfg.Chain.Burst,
			RequestTimeout:    cfg.Chain.RequestTimeout,
		}, log)
		if err != nil {
			panic("failed to create node client: " + err.Error())
		}
		return client
	})

	// Node (public)
	di.RegisterToken(c, chainDI.Node, func(sr di.ServiceRegistry) app.Node {
		return chainDI.GetNodeClient(sr)
	})

	// Signer (public)
	di.RegisterToken(c, chainDI.Signer, func(sr di.ServiceRegistry) app.Signer {
		cfg := sr.Get("config").(*config.Config)

		w, err := wallet.Load(cfg.Wallet)
		if err != nil {
			panic("failed to load wallet: " + err.Error())
		}
		return w
	})

	// Subscriber (private) - blocks and logs
	di.RegisterToken(c, chainDI.Subscriber, func(sr di.ServiceRegistry) *ethereum.Subscriber {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		subCfg := ethereum.DefaultSubscriberConfig(cfg.Network.WebSocketURL)
		subCfg.PollInterval = cfg.Chain.HeadPollInterval
		subCfg.ReconnectDelay = cfg.Chain.ReconnectDelay

		sub, err := ethereum.NewSubscriber(subCfg, chainDI.GetNodeClient(sr), log)
		if err != nil {
			panic("failed to create subscriber: " + err.Error())
		}
		return sub
	})

	// GasOracle (private)
	di.RegisterToken(c, chainDI.GasOracle, func(sr di.ServiceRegistry) app.GasOracle {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		oracleCfg := ethereum.DefaultGasOracleConfig()
		oracleCfg.CacheTTL = cfg.Chain.GasPriceCacheTTL

		oracle, err := ethereum.NewGasOracle(oracleCfg, chainDI.GetNodeClient(sr), log)
		if err != nil {
			panic("failed to create gas oracle: " + err.Error())
		}
		return oracle
	})

	// ReceiptPoller (private)
	di.RegisterToken(c, chainDI.Poller, func(sr di.ServiceRegistry) *app.ReceiptPoller {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		poller, err := app.NewReceiptPoller(chainDI.GetNodeClient(sr), app.SystemClock(), app.PollerConfig{
			Interval: cfg.Chain.ReceiptPollInterval,
			Expiry:   cfg.Chain.ReceiptExpiry,
		}, log)
		if err != nil {
			panic("failed to create receipt poller: " + err.Error())
		}
		return poller
	})

	// Submitter (private)
	di.RegisterToken(c, chainDI.Submitter, func(sr di.ServiceRegistry) *app.Submitter {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)
		profile := sr.Get("network").(network.Profile)

		submitter, err := app.NewSubmitter(
			chainDI.GetNodeClient(sr),
			chainDI.GetSigner(sr),
			profile.ChainID,
			chainDI.GetPoller(sr),
			app.SubmitterConfig{
				DefaultGasLimit:   cfg.Chain.DefaultGasLimit,
				GasLimitBufferPct: cfg.Chain.GasLimitBufferPct,
			},
			log,
		)
		if err != nil {
			panic("failed to create submitter: " + err.Error())
		}
		return submitter
	})

	// ChainService (public - exposed to other modules)
	di.RegisterToken(c, chainDI.ChainService, func(sr di.ServiceRegistry) *app.ChainService {
		sub := chainDI.GetSubscriber(sr)
		return app.NewChainService(
			chainDI.GetNodeClient(sr),
			sub,
			sub,
			chainDI.GetGasOracle(sr),
			chainDI.GetSubmitter(sr),
			chainDI.GetPoller(sr),
		)
	})

	return nil
}

// Startup checks that the endpoint serves the configured chain.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	log := mono.Logger()
	profile := mono.Network()
	node := chainDI.GetNode(mono.Services())

	chainID, err := node.ChainID(ctx)
	if err != nil {
		// Don't fail - reads will surface the node error
		log.Error(ctx, "failed to read chain id", "error", err)
	} else if chainID.Cmp(profile.ChainID) != 0 {
		log.Warn(ctx, "rpc endpoint serves a different chain",
			"network", profile.Key, "expected", profile.ChainID.String(), "actual", chainID.String())
	}

	log.Info(ctx, "chain module started",
		"network", profile.String(),
		"wallet", wallet.ShortAddress(chainDI.GetSigner(mono.Services()).Address()))
	return nil
}
