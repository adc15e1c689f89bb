// Package monolith provides the application container and module interface.
package monolith

import (
	"context"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/fd1az/dexops/internal/apperror"
	"github.com/fd1az/dexops/internal/config"
	"github.com/fd1az/dexops/internal/di"
	"github.com/fd1az/dexops/internal/httpclient"
	"github.com/fd1az/dexops/internal/logger"
	"github.com/fd1az/dexops/internal/network"
)

// Monolith is the main application container providing access to shared infrastructure.
type Monolith interface {
	Config() *config.Config
	Logger() logger.LoggerInterface
	EthClient() *ethclient.Client
	Network() network.Profile
	Services() di.ServiceRegistry
}

// Module represents a bounded context module that can register services and start up.
type Module interface {
	RegisterServices(di.Container) error
	Startup(context.Context, Monolith) error
}

// app implements the Monolith interface.
type app struct {
	config    *config.Config
	logger    logger.LoggerInterface
	ethClient *ethclient.Client
	profile   network.Profile
	container di.Container
}

// New resolves the network profile and dials its JSON-RPC endpoint over the instrumented
// HTTP transport.
func New(ctx context.Context, cfg *config.Config, log logger.LoggerInterface) (*app, error) {
	profile, err := cfg.Network.Profile()
	if err != nil {
		return nil, err
	}

	httpClient, err := httpclient.New(
		httpclient.WithProviderName(profile.Key),
		httpclient.WithRequestTimeout(cfg.Chain.RequestTimeout),
	)
	if err != nil {
		return nil, apperror.New(apperror.CodeConfigurationError, apperror.WithCause(err))
	}

	rpcClient, err := rpc.DialOptions(ctx, profile.RPCURL, rpc.WithHTTPClient(httpClient))
	if err != nil {
		return nil, apperror.New(apperror.CodeNodeConnectionFailed,
			apperror.WithContext(profile.RPCURL), apperror.WithCause(err))
	}
	ethClient := ethclient.NewClient(rpcClient)

	log.Info(ctx, "connected to network", "network", profile.String(), "rpc", profile.RPCURL)

	container := di.NewContainer()

	// Register global services
	container.Register("config", cfg)
	container.Register("logger", log)
	container.Register("ethClient", ethClient)
	container.Register("network", profile)

	return &app{
		config:    cfg,
		logger:    log,
		ethClient: ethClient,
		profile:   profile,
		container: container,
	}, nil
}

func (a *app) Config() *config.Config {
	return a.config
}

func (a *app) Logger() logger.LoggerInterface {
	return a.logger
}

func (a *app) EthClient() *ethclient.Client {
	return a.ethClient
}

func (a *app) Network() network.Profile {
	return a.profile
}

func (a *app) Services() di.ServiceRegistry {
	return a.container
}

// Container returns the DI container for module registration.
func (a *app) Container() di.Container {
	return a.container
}

// RegisterModules registers all provided modules.
func (a *app) RegisterModules(modules ...Module) error {
	for _, m := range modules {
		if err := m.RegisterServices(a.container); err != nil {
			return err
		}
	}
	return nil
}

// StartModules starts all provided modules.
func (a *app) StartModules(ctx context.Context, modules ...Module) error {
	for _, m := range modules {
		if err := m.Startup(ctx, a); err != nil {
			return err
		}
	}
	return nil
}

// Close closes all resources.
func (a *app) Close() error {
	if a.ethClient != nil {
		a.ethClient.Close()
	}
	return nil
}
