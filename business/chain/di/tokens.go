// Package di contains dependency injection tokens for the chain context.
package di

import (
	"github.com/fd1az/dexops/business/chain/app"
	"github.com/fd1az/dexops/business/chain/infra/ethereum"
	"github.com/fd1az/dexops/internal/di"
)

// Public service tokens - exposed to other modules
var (
	ChainService = di.NewToken[*app.ChainService]("chain.ChainService")
	Node         = di.NewToken[app.Node]("chain.Node")
	Signer       = di.NewToken[app.Signer]("chain.Signer")
)

// Private dependency tokens - internal to chain module
var (
	NodeClient = di.NewToken[*ethereum.Client]("chain:nodeClient")
	Subscriber = di.NewToken[*ethereum.Subscriber]("chain:subscriber")
	GasOracle  = di.NewToken[app.GasOracle]("chain:gasOracle")
	Poller     = di.NewToken[*app.ReceiptPoller]("chain:receiptPoller")
	Submitter  = di.NewToken[*app.Submitter]("chain:submitter")
)

// Helper functions for type-safe access
func GetChainService(c di.ServiceRegistry) *app.ChainService {
	return di.GetToken(c, ChainService)
}

func GetNode(c di.ServiceRegistry) app.Node {
	return di.GetToken(c, Node)
}

func GetSigner(c di.ServiceRegistry) app.Signer {
	return di.GetToken(c, Signer)
}

func GetNodeClient(c di.ServiceRegistry) *ethereum.Client {
	return di.GetToken(c, NodeClient)
}

func GetSubscriber(c di.ServiceRegistry) *ethereum.Subscriber {
	return di.GetToken(c, Subscriber)
}

func GetGasOracle(c di.ServiceRegistry) app.GasOracle {
	return di.GetToken(c, GasOracle)
}

func GetPoller(c di.ServiceRegistry) *app.ReceiptPoller {
	return di.GetToken(c, Poller)
}

func GetSubmitter(c di.ServiceRegistry) *app.Submitter {
	return di.GetToken(c, Submitter)
}
