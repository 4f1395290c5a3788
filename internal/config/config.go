// Package config provides configuration loading and validation.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/spf13/viper"

	"github.com/fd1az/prediction-amm/internal/asset"
)

// Config holds all application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	AMM       AMMConfig       `mapstructure:"amm"`
	Oracle    OracleConfig    `mapstructure:"oracle"`
	Vault     VaultConfig     `mapstructure:"vault"`
	Server    ServerConfig    `mapstructure:"server"`
	Postgres  PostgresConfig  `mapstructure:"postgres"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// AppConfig holds general application settings.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
	LogLevel    string `mapstructure:"log_level"`
	TUIMode     bool   `mapstructure:"-"` // Set at runtime, not from config file
}

// AMMConfig holds market and pool settings.
type AMMConfig struct {
	FeeBps                  uint64             `mapstructure:"fee_bps"`
	Admin                   string             `mapstructure:"admin"`
	DefaultPeriod           time.Duration      `mapstructure:"default_period"`
	DefaultVirtualLiquidity string             `mapstructure:"default_virtual_liquidity"`
	Collateral              []CollateralConfig `mapstructure:"collateral"`
}

// CollateralConfig is one entry of the collateral allow-list seeded at startup.
type CollateralConfig struct {
	Address       string `mapstructure:"address"`
	Symbol        string `mapstructure:"symbol"`
	Name          string `mapstructure:"name"`
	MinCollateral string `mapstructure:"min_collateral"` // whole units, e.g. "10"
	Enabled       bool   `mapstructure:"enabled"`
}

// AdminAddress returns the admin account as common.Address.
func (c *AMMConfig) AdminAddress() common.Address {
	return common.HexToAddress(c.Admin)
}

// DefaultVirtualLiquidityUnits returns the default virtual liquidity in wei.
func (c *AMMConfig) DefaultVirtualLiquidityUnits() *uint256.Int {
	v, err := asset.ParseUnits(c.DefaultVirtualLiquidity)
	if err != nil {
		return new(uint256.Int)
	}
	return v
}

// AddressHex returns the token address as common.Address.
func (c *CollateralConfig) AddressHex() common.Address {
	return common.HexToAddress(c.Address)
}

// MinCollateralUnits returns the minimum deposit in wei.
func (c *CollateralConfig) MinCollateralUnits() *uint256.Int {
	v, err := asset.ParseUnits(c.MinCollateral)
	if err != nil {
		return new(uint256.Int)
	}
	return v
}

// OracleConfig holds optimistic oracle settings.
type OracleConfig struct {
	Liveness time.Duration `mapstructure:"liveness"`
	MinBond  string        `mapstructure:"min_bond"`
}

// MinBondUnits returns the minimum proposal bond in wei.
func (c *OracleConfig) MinBondUnits() *uint256.Int {
	v, err := asset.ParseUnits(c.MinBond)
	if err != nil {
		return new(uint256.Int)
	}
	return v
}

// VaultConfig holds settings of the idle-collateral yield vault.
type VaultConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	YieldBpsPerDay  uint64        `mapstructure:"yield_bps_per_day"`
	BreakerFailures uint32        `mapstructure:"breaker_failures"`
	BreakerTimeout  time.Duration `mapstructure:"breaker_timeout"`
	AccrualInterval time.Duration `mapstructure:"accrual_interval"`
}

// ServerConfig holds HTTP API settings.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	RateLimitRPM    int           `mapstructure:"rate_limit_rpm"`
	Faucet          bool          `mapstructure:"faucet"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// PostgresConfig holds the event journal database settings.
// An empty DSN selects the in-memory journal.
type PostgresConfig struct {
	DSN      string `mapstructure:"dsn"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// Enabled reports whether a database is configured.
func (c *PostgresConfig) Enabled() bool {
	return c.DSN != ""
}

// RedisConfig holds the price cache, pub/sub and lock settings.
// An empty Addr disables Redis.
type RedisConfig struct {
	Addr      string `mapstructure:"addr"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

// Enabled reports whether Redis is configured.
func (c *RedisConfig) Enabled() bool {
	return c.Addr != ""
}

// TelemetryConfig holds observability configuration.
type TelemetryConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	ServiceName    string `mapstructure:"service_name"`
	OTLPEndpoint   string `mapstructure:"otlp_endpoint"`
	OTLPHeaders    string `mapstructure:"otlp_headers"`
	PrometheusPort int    `mapstructure:"prometheus_port"`
	TraceProvider  string `mapstructure:"trace_provider"` // zipkin, otlp-grpc, otlp-http, console
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
	v.SetEnvPrefix("AMM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	bindEnvVars(v)
	setDefaults(v)

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
	v.BindEnv("app.name", "AMM_APP_NAME", "SERVICE_NAME")
	v.BindEnv("app.environment", "AMM_ENVIRONMENT", "ENVIRONMENT")
	v.BindEnv("app.log_level", "AMM_LOG_LEVEL", "LOG_LEVEL")

	// AMM
	v.BindEnv("amm.fee_bps", "AMM_FEE_BPS")
	v.BindEnv("amm.admin", "AMM_ADMIN")

	// Oracle
	v.BindEnv("oracle.liveness", "AMM_ORACLE_LIVENESS")
	v.BindEnv("oracle.min_bond", "AMM_ORACLE_MIN_BOND")

	// Server
	v.BindEnv("server.port", "AMM_SERVER_PORT", "PORT")
	v.BindEnv("server.faucet", "AMM_FAUCET")

	// Storage
	v.BindEnv("postgres.dsn", "AMM_POSTGRES_DSN", "DATABASE_URL")
	v.BindEnv("redis.addr", "AMM_REDIS_ADDR", "REDIS_ADDR")
	v.BindEnv("redis.password", "AMM_REDIS_PASSWORD", "REDIS_PASSWORD")

	// Telemetry
	v.BindEnv("telemetry.enabled", "AMM_OTEL_ENABLED", "OTEL_ENABLED")
	v.BindEnv("telemetry.service_name", "AMM_OTEL_SERVICE_NAME", "OTEL_SERVICE_NAME")
	v.BindEnv("telemetry.otlp_endpoint", "AMM_OTEL_ENDPOINT", "OTEL_EXPORTER_OTLP_ENDPOINT")
}

func setDefaults(v *viper.Viper) {
	// App defaults
	v.SetDefault("app.name", "prediction-amm")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")

	// AMM defaults
	v.SetDefault("amm.fee_bps", 60) // 0.6%
	v.SetDefault("amm.admin", "0x0000000000000000000000000000000000000001")
	v.SetDefault("amm.default_period", "168h")
	v.SetDefault("amm.default_virtual_liquidity", "1000")
	v.SetDefault("amm.collateral", []map[string]any{
		{
			"address":        asset.AddrUSDC.Hex(),
			"symbol":         "USDC",
			"name":           "USD Coin",
			"min_collateral": "10",
			"enabled":        true,
		},
	})

	// Oracle defaults
	v.SetDefault("oracle.liveness", "2h")
	v.SetDefault("oracle.min_bond", "100")

	// Vault defaults
	v.SetDefault("vault.enabled", true)
	v.SetDefault("vault.yield_bps_per_day", 1)
	v.SetDefault("vault.breaker_failures", 5)
	v.SetDefault("vault.breaker_timeout", "30s")
	v.SetDefault("vault.accrual_interval", "1m")

	// Server defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.rate_limit_rpm", 600)
	v.SetDefault("server.faucet", true)
	v.SetDefault("server.shutdown_timeout", "10s")

	// Storage defaults
	v.SetDefault("postgres.max_conns", 10)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.key_prefix", "amm")

	// Telemetry defaults
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.service_name", "prediction-amm")
	v.SetDefault("telemetry.prometheus_port", 9090)
	v.SetDefault("telemetry.trace_provider", "zipkin")
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.AMM.FeeBps > 10_000 {
		return fmt.Errorf("amm.fee_bps must be at most 10000, got %d", c.AMM.FeeBps)
	}
	if !common.IsHexAddress(c.AMM.Admin) {
		return fmt.Errorf("invalid amm.admin: %s", c.AMM.Admin)
	}
	if c.AMM.DefaultPeriod <= 0 {
		return fmt.Errorf("amm.default_period must be positive")
	}
	if v, err := asset.ParseUnits(c.AMM.DefaultVirtualLiquidity); err != nil || v.IsZero() {
		return fmt.Errorf("invalid amm.default_virtual_liquidity: %q", c.AMM.DefaultVirtualLiquidity)
	}
	if len(c.AMM.Collateral) == 0 {
		return fmt.Errorf("amm.collateral cannot be empty")
	}
	for i, col := range c.AMM.Collateral {
		if !common.IsHexAddress(col.Address) {
			return fmt.Errorf("invalid amm.collateral[%d].address: %s", i, col.Address)
		}
		if col.Symbol == "" {
			return fmt.Errorf("amm.collateral[%d].symbol is required", i)
		}
		if _, err := asset.ParseUnits(col.MinCollateral); err != nil {
			return fmt.Errorf("invalid amm.collateral[%d].min_collateral: %w", i, err)
		}
	}
	if c.Oracle.Liveness <= 0 {
		return fmt.Errorf("oracle.liveness must be positive")
	}
	if _, err := asset.ParseUnits(c.Oracle.MinBond); err != nil {
		return fmt.Errorf("invalid oracle.min_bond: %w", err)
	}
	if c.Vault.YieldBpsPerDay > 10_000 {
		return fmt.Errorf("vault.yield_bps_per_day must be at most 10000")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port: %d", c.Server.Port)
	}
	return nil
}
