// Package dex implements the dex bounded context: token reads, quotes, swap orchestration
// and wallet streams on top of the chain context.
package dex

import (
	"context"

	chainApp "github.com/fd1az/dexops/business/chain/app"
	chainDI "github.com/fd1az/dexops/business/chain/di"
	"github.com/fd1az/dexops/business/dex/app"
	dexDI "github.com/fd1az/dexops/business/dex/di"
	"github.com/fd1az/dexops/business/dex/domain"
	"github.com/fd1az/dexops/business/dex/infra"
	"github.com/fd1az/dexops/internal/config"
	"github.com/fd1az/dexops/internal/contract"
	"github.com/fd1az/dexops/internal/di"
	"github.com/fd1az/dexops/internal/logger"
	"github.com/fd1az/dexops/internal/monolith"
	"github.com/fd1az/dexops/internal/network"
)

// Module implements the dex bounded context.
type Module struct{}

// RegisterServices registers all dex services with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	// Contract bindings (private) - one per address and ABI kind
	di.RegisterToken(c, dexDI.Bindings, func(sr di.ServiceRegistry) *contract.Cache {
		cfg := sr.Get("config").(*config.Config)
		profile := sr.Get("network").(network.Profile)
		chain := chainDI.GetChainService(sr)

		return contract.NewCache(chain.Node(), contract.Identity{
			ChainID:  profile.ChainID,
			From:     chain.Wallet(),
			GasLimit: cfg.Chain.DefaultGasLimit,
		})
	})

	// Metadata (private) - decimals and symbols, cached for the session
	di.RegisterToken(c, dexDI.Metadata, func(sr di.ServiceRegistry) *app.MetadataCache {
		return app.NewMetadataCache(dexDI.GetBindings(sr))
	})

	// Quotes (private)
	di.RegisterToken(c, dexDI.Quotes, func(sr di.ServiceRegistry) *app.QuoteEngine {
		return app.NewQuoteEngine(dexDI.GetBindings(sr), dexDI.GetMetadata(sr))
	})

	// Settings (private) - session defaults seeded from config
	di.RegisterToken(c, dexDI.Settings, func(sr di.ServiceRegistry) *app.SettingsStore {
		cfg := sr.Get("config").(*config.Config)

		store, err := app.NewSettingsStore(domain.Settings{
			Router:                cfg.Swap.RouterAddress(),
			DeadlineMinutes:       cfg.Swap.DeadlineMinutes,
			SlippagePercent:       cfg.Swap.SlippageDecimal(),
			AutoApproveMultiplier: cfg.Swap.MultiplierDecimal(),
		})
		if err != nil {
			panic("failed to create settings: " + err.Error())
		}
		return store
	})

	// Orchestrator (private)
	di.RegisterToken(c, dexDI.Orchestrator, func(sr di.ServiceRegistry) *app.Orchestrator {
		log := sr.Get("logger").(logger.LoggerInterface)
		profile := sr.Get("network").(network.Profile)

		orchestrator, err := app.NewOrchestrator(
			chainDI.GetChainService(sr),
			dexDI.GetBindings(sr),
			dexDI.GetMetadata(sr),
			dexDI.GetQuotes(sr),
			dexDI.GetSettings(sr),
			chainApp.SystemClock(),
			profile.WrappedGasToken,
			log,
		)
		if err != nil {
			panic("failed to create orchestrator: " + err.Error())
		}
		return orchestrator
	})

	// Streams (private)
	di.RegisterToken(c, dexDI.Streams, func(sr di.ServiceRegistry) *app.StreamManager {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		return app.NewStreamManager(
			chainDI.GetChainService(sr),
			dexDI.GetBindings(sr),
			dexDI.GetMetadata(sr),
			cfg.Stream.BlockThrottle,
			log,
		)
	})

	// Trader (public - exposed to other modules)
	di.RegisterToken(c, dexDI.Trader, func(sr di.ServiceRegistry) *app.Trader {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)
		profile := sr.Get("network").(network.Profile)

		return app.NewTrader(
			chainDI.GetChainService(sr),
			profile,
			dexDI.GetBindings(sr),
			dexDI.GetMetadata(sr),
			dexDI.GetQuotes(sr),
			dexDI.GetOrchestrator(sr),
			dexDI.GetStreams(sr),
			dexDI.GetSettings(sr),
			cfg.Swap.FactoryAddress(),
			log,
		)
	})

	// Reporter (public) - TUI or console depending on mode
	di.RegisterToken(c, dexDI.Reporter, func(sr di.ServiceRegistry) app.Reporter {
		cfg := sr.Get("config").(*config.Config)
		profile := sr.Get("network").(network.Profile)

		if cfg.App.TUIMode {
			return infra.NewTUIReporter(profile, app.ShortAddress(chainDI.GetChainService(sr).Wallet()))
		}
		return infra.NewConsoleReporter(profile)
	})

	return nil
}

// Startup resolves the trader so wiring errors surface before the first command runs.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	log := mono.Logger()
	trader := dexDI.GetTrader(mono.Services())
	settings := trader.Settings()

	log.Info(ctx, "dex module started",
		"router", settings.Router.Hex(),
		"deadline_minutes", settings.DeadlineMinutes,
		"slippage_pct", settings.SlippagePercent.String(),
		"auto_approve_multiplier", settings.AutoApproveMultiplier.String(),
	)
	return nil
}
