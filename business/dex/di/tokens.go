// Package di contains dependency injection tokens for the dex context.
package di

import (
	"github.com/fd1az/dexops/business/dex/app"
	"github.com/fd1az/dexops/internal/contract"
	"github.com/fd1az/dexops/internal/di"
)

// Public service tokens - exposed to other modules
var (
	Trader   = di.NewToken[*app.Trader]("dex.Trader")
	Reporter = di.NewToken[app.Reporter]("dex.Reporter")
)

// Private dependency tokens - internal to dex module
var (
	Bindings     = di.NewToken[*contract.Cache]("dex:bindings")
	Metadata     = di.NewToken[*app.MetadataCache]("dex:metadata")
	Quotes       = di.NewToken[*app.QuoteEngine]("dex:quotes")
	Settings     = di.NewToken[*app.SettingsStore]("dex:settings")
	Orchestrator = di.NewToken[*app.Orchestrator]("dex:orchestrator")
	Streams      = di.NewToken[*app.StreamManager]("dex:streams")
)

func GetTrader(c di.ServiceRegistry) *app.Trader {
	return di.GetToken(c, Trader)
}

func GetReporter(c di.ServiceRegistry) app.Reporter {
	return di.GetToken(c, Reporter)
}

func GetBindings(c di.ServiceRegistry) *contract.Cache {
	return di.GetToken(c, Bindings)
}

func GetMetadata(c di.ServiceRegistry) *app.MetadataCache {
	return di.GetToken(c, Metadata)
}

func GetQuotes(c di.ServiceRegistry) *app.QuoteEngine {
	return di.GetToken(c, Quotes)
}

func GetSettings(c di.ServiceRegistry) *app.SettingsStore {
	return di.GetToken(c, Settings)
}

func GetOrchestrator(c di.ServiceRegistry) *app.Orchestrator {
	return di.GetToken(c, Orchestrator)
}

func GetStreams(c di.ServiceRegistry) *app.StreamManager {
	return di.GetToken(c, Streams)
}
