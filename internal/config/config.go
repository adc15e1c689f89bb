// Package config provides configuration loading and validation.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"github.com/fd1az/dexops/internal/network"
)

// Config holds all application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Network   NetworkConfig   `mapstructure:"network"`
	Wallet    WalletConfig    `mapstructure:"wallet"`
	Chain     ChainConfig     `mapstructure:"chain"`
	Swap      SwapConfig      `mapstructure:"swap"`
	Stream    StreamConfig    `mapstructure:"stream"`
	Health    HealthConfig    `mapstructure:"health"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// AppConfig holds general application settings.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
	LogLevel    string `mapstructure:"log_level"`
	TUIMode     bool   `mapstructure:"-"` // Set at runtime by the watch command
}

// NetworkConfig selects the chain profile and optionally overrides its endpoints.
type NetworkConfig struct {
	Name         string `mapstructure:"name"`
	RPCURL       string `mapstructure:"rpc_url"`
	WebSocketURL string `mapstructure:"websocket_url"`
}

// Profile resolves the configured network profile with the RPC override applied.
func (c *NetworkConfig) Profile() (network.Profile, error) {
	p, err := network.Lookup(c.Name)
	if err != nil {
		return network.Profile{}, err
	}
	return p.WithRPC(c.RPCURL), nil
}

// WalletConfig says where the signing key comes from. Exactly one source must be set.
type WalletConfig struct {
	KeystorePath     string `mapstructure:"keystore_path"`
	KeystorePassword string `mapstructure:"keystore_password"`
	PrivateKey       string `mapstructure:"private_key"`
}

// ChainConfig tunes transaction submission, receipt polling and the RPC client.
type ChainConfig struct {
	DefaultGasLimit     uint64        `mapstructure:"default_gas_limit"`
	GasLimitBufferPct   uint64        `mapstructure:"gas_limit_buffer_pct"`
	GasPriceCacheTTL    time.Duration `mapstructure:"gas_price_cache_ttl"`
	ReceiptPollInterval time.Duration `mapstructure:"receipt_poll_interval"`
	ReceiptExpiry       time.Duration `mapstructure:"receipt_expiry"`
	RequestsPerSecond   float64       `mapstructure:"requests_per_second"`
	Burst               int           `mapstructure:"burst"`
	RequestTimeout      time.Duration `mapstructure:"request_timeout"`
	ReconnectDelay      time.Duration `mapstructure:"reconnect_delay"`
	HeadPollInterval    time.Duration `mapstructure:"head_poll_interval"`
}

// SwapConfig holds session defaults for swaps.
type SwapConfig struct {
	DeadlineMinutes       int    `mapstructure:"deadline_minutes"`
	SlippagePercent       string `mapstructure:"slippage_percent"`
	AutoApproveMultiplier string `mapstructure:"auto_approve_multiplier"`
	Router                string `mapstructure:"router"`
	Factory               string `mapstructure:"factory"`
}

// SlippageDecimal returns the default slippage as decimal.Decimal.
func (c *SwapConfig) SlippageDecimal() decimal.Decimal {
	return decimal.RequireFromString(c.SlippagePercent)
}

// MultiplierDecimal returns the auto-approve multiplier as decimal.Decimal.
func (c *SwapConfig) MultiplierDecimal() decimal.Decimal {
	return decimal.RequireFromString(c.AutoApproveMultiplier)
}

// RouterAddress returns the default router as common.Address.
func (c *SwapConfig) RouterAddress() common.Address {
	return common.HexToAddress(c.Router)
}

// FactoryAddress returns the default factory as common.Address.
func (c *SwapConfig) FactoryAddress() common.Address {
	return common.HexToAddress(c.Factory)
}

// StreamConfig holds event stream settings.
type StreamConfig struct {
	BlockThrottle time.Duration `mapstructure:"block_throttle"`
}

// HealthConfig holds the health endpoint settings.
type HealthConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// TelemetryConfig holds observability configuration.
type TelemetryConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	ServiceName    string `mapstructure:"service_name"`
	TraceProvider  string `mapstructure:"trace_provider"` // zipkin, otlp-grpc, otlp-http, console
	OTLPEndpoint   string `mapstructure:"otlp_endpoint"`
	OTLPHeaders    string `mapstructure:"otlp_headers"`
	ZipkinURL      string `mapstructure:"zipkin_url"`
	PrometheusPort int    `mapstructure:"prometheus_port"`
}

// Load loads configuration from file and environment variables.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// Environment variables
	v.SetEnvPrefix("DEXOPS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	bindEnvVars(v)
	setDefaults(v)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found is OK, use env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func bindEnvVars(v *viper.Viper) {
	// App
	v.BindEnv("app.name", "DEXOPS_APP_NAME", "SERVICE_NAME")
	v.BindEnv("app.environment", "DEXOPS_ENVIRONMENT", "ENVIRONMENT")
	v.BindEnv("app.log_level", "DEXOPS_LOG_LEVEL", "LOG_LEVEL")

	// Network
	v.BindEnv("network.name", "DEXOPS_NETWORK")
	v.BindEnv("network.rpc_url", "DEXOPS_RPC_URL", "RPC_URL")
	v.BindEnv("network.websocket_url", "DEXOPS_WS_URL", "WS_URL")

	// Wallet
	v.BindEnv("wallet.keystore_path", "DEXOPS_KEYSTORE_PATH")
	v.BindEnv("wallet.keystore_password", "DEXOPS_KEYSTORE_PASSWORD")
	v.BindEnv("wallet.private_key", "DEXOPS_PRIVATE_KEY")

	// Swap
	v.BindEnv("swap.router", "DEXOPS_ROUTER")
	v.BindEnv("swap.factory", "DEXOPS_FACTORY")
	v.BindEnv("swap.slippage_percent", "DEXOPS_SLIPPAGE")
	v.BindEnv("swap.deadline_minutes", "DEXOPS_DEADLINE_MINUTES")

	// Telemetry
	v.BindEnv("telemetry.enabled", "DEXOPS_OTEL_ENABLED", "OTEL_ENABLED")
	v.BindEnv("telemetry.service_name", "DEXOPS_OTEL_SERVICE_NAME", "OTEL_SERVICE_NAME")
	v.BindEnv("telemetry.otlp_endpoint", "DEXOPS_OTEL_ENDPOINT", "OTEL_EXPORTER_OTLP_ENDPOINT")
	v.BindEnv("telemetry.otlp_headers", "DEXOPS_OTEL_HEADERS", "OTEL_EXPORTER_OTLP_HEADERS")
}

func setDefaults(v *viper.Viper) {
	// App defaults
	v.SetDefault("app.name", "dexops")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")

	// Network defaults
	v.SetDefault("network.name", "bsc")

	// Chain defaults
	v.SetDefault("chain.default_gas_limit", 4_300_000)
	v.SetDefault("chain.gas_limit_buffer_pct", 0)
	v.SetDefault("chain.gas_price_cache_ttl", "3s")
	v.SetDefault("chain.receipt_poll_interval", "5s")
	v.SetDefault("chain.receipt_expiry", "20m")
	v.SetDefault("chain.requests_per_second", 20)
	v.SetDefault("chain.burst", 40)
	v.SetDefault("chain.request_timeout", "15s")
	v.SetDefault("chain.reconnect_delay", "5s")
	v.SetDefault("chain.head_poll_interval", "3s")

	// Swap defaults (PancakeSwap V2 on BSC)
	v.SetDefault("swap.deadline_minutes", 10)
	v.SetDefault("swap.slippage_percent", "0.5")
	v.SetDefault("swap.auto_approve_multiplier", "3")
	v.SetDefault("swap.router", "0x10ED43C718714eb63d5aA57B78B54704E256024E")
	v.SetDefault("swap.factory", "0xcA143Ce32Fe78f1f7019d7d551a6402fC5350c73")

	// Stream defaults
	v.SetDefault("stream.block_throttle", "300ms")

	// Health defaults
	v.SetDefault("health.enabled", false)
	v.SetDefault("health.port", 8081)

	// Telemetry defaults
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.service_name", "dexops")
	v.SetDefault("telemetry.trace_provider", "otlp-grpc")
	v.SetDefault("telemetry.zipkin_url", "http://localhost:9411/api/v2/spans")
	v.SetDefault("telemetry.prometheus_port", 9090)
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if _, err := network.Lookup(c.Network.Name); err != nil {
		return err
	}
	if c.Wallet.KeystorePath != "" && c.Wallet.PrivateKey != "" {
		return fmt.Errorf("wallet.keystore_path and wallet.private_key are mutually exclusive")
	}
	if c.Chain.DefaultGasLimit == 0 {
		return fmt.Errorf("chain.default_gas_limit must be positive")
	}
	if c.Chain.ReceiptPollInterval <= 0 || c.Chain.ReceiptExpiry < c.Chain.ReceiptPollInterval {
		return fmt.Errorf("chain.receipt_expiry (%s) must be >= chain.receipt_poll_interval (%s) > 0",
			c.Chain.ReceiptExpiry, c.Chain.ReceiptPollInterval)
	}
	if c.Swap.DeadlineMinutes <= 0 {
		return fmt.Errorf("swap.deadline_minutes must be positive")
	}

	slippage, err := decimal.NewFromString(c.Swap.SlippagePercent)
	if err != nil || slippage.IsNegative() || slippage.GreaterThan(decimal.NewFromInt(100)) {
		return fmt.Errorf("invalid swap.slippage_percent: %q", c.Swap.SlippagePercent)
	}
	mult, err := decimal.NewFromString(c.Swap.AutoApproveMultiplier)
	if err != nil || mult.LessThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("invalid swap.auto_approve_multiplier: %q", c.Swap.AutoApproveMultiplier)
	}

	if !common.IsHexAddress(c.Swap.Router) {
		return fmt.Errorf("invalid swap.router: %s", c.Swap.Router)
	}
	if c.Swap.Factory != "" && !common.IsHexAddress(c.Swap.Factory) {
		return fmt.Errorf("invalid swap.factory: %s", c.Swap.Factory)
	}
	return nil
}

// HasWallet reports whether a signing key source is configured.
func (c *Config) HasWallet() bool {
	return c.Wallet.KeystorePath != "" || c.Wallet.PrivateKey != ""
}
