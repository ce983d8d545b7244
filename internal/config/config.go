// Package config provides configuration loading and validation.
package config

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Exchange  ExchangeConfig  `mapstructure:"exchange"`
	Triangle  TriangleConfig  `mapstructure:"triangle"`
	Execution ExecutionConfig `mapstructure:"execution"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// AppConfig holds general application settings.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
	LogLevel    string `mapstructure:"log_level"`
}

// ExchangeConfig holds exchange connectivity configuration.
type ExchangeConfig struct {
	Name           string        `mapstructure:"name"`
	RESTURL        string        `mapstructure:"rest_url"`
	WebSocketURL   string        `mapstructure:"websocket_url"`
	APIKey         string        `mapstructure:"api_key"`
	APISecret      string        `mapstructure:"api_secret"`
	Paper          bool          `mapstructure:"paper"` // simulated fills instead of live orders
	MaxReconnects  int           `mapstructure:"max_reconnects"`
	InitialBackoff time.Duration `mapstructure:"initial_backoff"`
	MaxBackoff     time.Duration `mapstructure:"max_backoff"`
	StaleTimeout   time.Duration `mapstructure:"stale_timeout"`
	RateLimitPerMin int          `mapstructure:"rate_limit_per_min"`
}

// TriangleConfig defines the three directed legs of the cycle. Each
// leg is a "BASE-QUOTE" pair plus a buy/sell side for the clockwise
// traversal.
type TriangleConfig struct {
	Venue string `mapstructure:"venue"`

	LeftPair  string `mapstructure:"left_pair"`
	LeftSide  string `mapstructure:"left_side"`
	CrossPair string `mapstructure:"cross_pair"`
	CrossSide string `mapstructure:"cross_side"`
	RightPair string `mapstructure:"right_pair"`
	RightSide string `mapstructure:"right_side"`
}

// ExecutionConfig holds the state-machine timing and sizing settings.
type ExecutionConfig struct {
	FeeRate         float64       `mapstructure:"fee_rate"`
	ProfitThreshold float64       `mapstructure:"profit_threshold"`
	TradeDelay      time.Duration `mapstructure:"trade_delay"`
	MaxOrderHang    time.Duration `mapstructure:"max_order_hang"`
	MaxOrderUnsent  time.Duration `mapstructure:"max_order_unsent"`
	PollInterval    time.Duration `mapstructure:"poll_interval"`
	TUIMode         bool          `mapstructure:"-"` // set at runtime, not from config file
}

// FeeRateDecimal returns the fee rate as decimal.Decimal.
func (c *ExecutionConfig) FeeRateDecimal() decimal.Decimal {
	return decimal.NewFromFloat(c.FeeRate)
}

// ProfitThresholdDecimal returns the profit threshold as decimal.Decimal.
func (c *ExecutionConfig) ProfitThresholdDecimal() decimal.Decimal {
	return decimal.NewFromFloat(c.ProfitThreshold)
}

// TelemetryConfig holds observability configuration.
type TelemetryConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	ServiceName    string `mapstructure:"service_name"`
	OTLPEndpoint   string `mapstructure:"otlp_endpoint"`
	OTLPHeaders    string `mapstructure:"otlp_headers"`
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
	v.SetEnvPrefix("ARB")
	v.AutomaticEnv()

	// Bind env vars to config keys
	bindEnvVars(v)

	// Set defaults
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
	v.BindEnv("app.name", "ARB_APP_NAME", "SERVICE_NAME")
	v.BindEnv("app.environment", "ARB_ENVIRONMENT", "ENVIRONMENT")
	v.BindEnv("app.log_level", "ARB_LOG_LEVEL", "LOG_LEVEL")

	// Exchange
	v.BindEnv("exchange.name", "ARB_EXCHANGE_NAME", "EXCHANGE_NAME")
	v.BindEnv("exchange.rest_url", "ARB_EXCHANGE_REST_URL", "EXCHANGE_REST_URL")
	v.BindEnv("exchange.websocket_url", "ARB_EXCHANGE_WS_URL", "EXCHANGE_WS_URL")
	v.BindEnv("exchange.api_key", "ARB_EXCHANGE_API_KEY", "EXCHANGE_API_KEY")
	v.BindEnv("exchange.api_secret", "ARB_EXCHANGE_API_SECRET", "EXCHANGE_API_SECRET")
	v.BindEnv("exchange.paper", "ARB_EXCHANGE_PAPER")

	// Triangle
	v.BindEnv("triangle.venue", "ARB_TRIANGLE_VENUE")
	v.BindEnv("triangle.left_pair", "ARB_TRIANGLE_LEFT_PAIR")
	v.BindEnv("triangle.cross_pair", "ARB_TRIANGLE_CROSS_PAIR")
	v.BindEnv("triangle.right_pair", "ARB_TRIANGLE_RIGHT_PAIR")

	// Execution
	v.BindEnv("execution.fee_rate", "ARB_FEE_RATE")
	v.BindEnv("execution.profit_threshold", "ARB_PROFIT_THRESHOLD")
	v.BindEnv("execution.trade_delay", "ARB_TRADE_DELAY")

	// Telemetry
	v.BindEnv("telemetry.enabled", "ARB_OTEL_ENABLED", "OTEL_ENABLED")
	v.BindEnv("telemetry.service_name", "ARB_OTEL_SERVICE_NAME", "OTEL_SERVICE_NAME")
	v.BindEnv("telemetry.otlp_endpoint", "ARB_OTEL_ENDPOINT", "OTEL_EXPORTER_OTLP_ENDPOINT")
}

func setDefaults(v *viper.Viper) {
	// App defaults
	v.SetDefault("app.name", "triarb")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")

	// Exchange defaults
	v.SetDefault("exchange.name", "binance")
	v.SetDefault("exchange.rest_url", "https://api.binance.com")
	v.SetDefault("exchange.websocket_url", "wss://stream.binance.com:9443/ws")
	v.SetDefault("exchange.paper", true)
	v.SetDefault("exchange.max_reconnects", 0) // infinite
	v.SetDefault("exchange.initial_backoff", "1s")
	v.SetDefault("exchange.max_backoff", "30s")
	v.SetDefault("exchange.stale_timeout", "5s")
	v.SetDefault("exchange.rate_limit_per_min", 1200)

	// Triangle defaults: USDT -> BTC -> ETH -> USDT on one venue
	v.SetDefault("triangle.venue", "binance")
	v.SetDefault("triangle.left_pair", "BTC-USDT")
	v.SetDefault("triangle.left_side", "buy")
	v.SetDefault("triangle.cross_pair", "ETH-BTC")
	v.SetDefault("triangle.cross_side", "buy")
	v.SetDefault("triangle.right_pair", "ETH-USDT")
	v.SetDefault("triangle.right_side", "sell")

	// Execution defaults
	v.SetDefault("execution.fee_rate", 0.001)
	v.SetDefault("execution.profit_threshold", 0.002)
	v.SetDefault("execution.trade_delay", "5s")
	v.SetDefault("execution.max_order_hang", "10s")
	v.SetDefault("execution.max_order_unsent", "60s")
	v.SetDefault("execution.poll_interval", "250ms")

	// Telemetry defaults
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.service_name", "triarb")
	v.SetDefault("telemetry.prometheus_port", 9090)
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Exchange.WebSocketURL == "" {
		return fmt.Errorf("exchange.websocket_url is required")
	}
	if !c.Exchange.Paper && c.Exchange.RESTURL == "" {
		return fmt.Errorf("exchange.rest_url is required for live trading")
	}
	for key, pair := range map[string]string{
		"triangle.left_pair":  c.Triangle.LeftPair,
		"triangle.cross_pair": c.Triangle.CrossPair,
		"triangle.right_pair": c.Triangle.RightPair,
	} {
		if pair == "" {
			return fmt.Errorf("%s is required", key)
		}
	}
	for key, side := range map[string]string{
		"triangle.left_side":  c.Triangle.LeftSide,
		"triangle.cross_side": c.Triangle.CrossSide,
		"triangle.right_side": c.Triangle.RightSide,
	} {
		if side != "buy" && side != "sell" {
			return fmt.Errorf("%s must be buy or sell, got %q", key, side)
		}
	}
	if c.Execution.FeeRate < 0 || c.Execution.FeeRate >= 1 {
		return fmt.Errorf("execution.fee_rate must be in [0, 1)")
	}
	if c.Execution.PollInterval <= 0 {
		return fmt.Errorf("execution.poll_interval must be positive")
	}
	return nil
}
