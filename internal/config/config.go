// Package config provides configuration loading and validation.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Transport TransportConfig `mapstructure:"transport"`
	OKX       OKXConfig       `mapstructure:"okx"`
	Binance   BinanceConfig   `mapstructure:"binance"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// AppConfig holds general application settings.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
	LogLevel    string `mapstructure:"log_level"`
}

// TransportConfig holds WebSocket transport defaults shared by every venue session.
type TransportConfig struct {
	HandshakeTimeout time.Duration `mapstructure:"handshake_timeout"`
	InitialBackoff   time.Duration `mapstructure:"initial_backoff"`
	MaxBackoff       time.Duration `mapstructure:"max_backoff"`
	MaxReconnects    int           `mapstructure:"max_reconnects"` // 0 = infinite
}

// OKXConfig holds OKX public-channel configuration.
type OKXConfig struct {
	Host    string   `mapstructure:"host"`
	Port    int      `mapstructure:"port"`
	URI     string   `mapstructure:"uri"`
	Symbols []string `mapstructure:"symbols"`
}

// BinanceConfig holds Binance combined-stream configuration.
type BinanceConfig struct {
	Host    string   `mapstructure:"host"`
	Port    int      `mapstructure:"port"`
	URI     string   `mapstructure:"uri"`
	Symbols []string `mapstructure:"symbols"`
}

// RateLimitConfig bounds outbound subscribe/unsubscribe traffic per venue.
type RateLimitConfig struct {
	RequestsPerMinute int `mapstructure:"requests_per_minute"`
}

// TelemetryConfig holds observability configuration.
type TelemetryConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	ServiceName    string `mapstructure:"service_name"`
	TracerProvider string `mapstructure:"tracer_provider"`
	OTLPEndpoint   string `mapstructure:"otlp_endpoint"`
	OTLPHeaders    string `mapstructure:"otlp_headers"`
	PrometheusPort int    `mapstructure:"prometheus_port"`
}

// Load loads configuration from file and environment variables.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix("MARKETFEED")
	v.AutomaticEnv()

	bindEnvVars(v)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
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
	v.BindEnv("app.name", "MARKETFEED_APP_NAME", "SERVICE_NAME")
	v.BindEnv("app.environment", "MARKETFEED_ENVIRONMENT", "ENVIRONMENT")
	v.BindEnv("app.log_level", "MARKETFEED_LOG_LEVEL", "LOG_LEVEL")

	v.BindEnv("okx.host", "MARKETFEED_OKX_HOST")
	v.BindEnv("okx.symbols", "MARKETFEED_OKX_SYMBOLS")

	v.BindEnv("binance.host", "MARKETFEED_BINANCE_HOST")
	v.BindEnv("binance.symbols", "MARKETFEED_BINANCE_SYMBOLS")

	v.BindEnv("rate_limit.requests_per_minute", "MARKETFEED_RATE_LIMIT_RPM")

	v.BindEnv("telemetry.enabled", "MARKETFEED_OTEL_ENABLED", "OTEL_ENABLED")
	v.BindEnv("telemetry.service_name", "MARKETFEED_OTEL_SERVICE_NAME", "OTEL_SERVICE_NAME")
	v.BindEnv("telemetry.otlp_endpoint", "MARKETFEED_OTEL_ENDPOINT", "OTEL_EXPORTER_OTLP_ENDPOINT")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "marketfeed")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")

	v.SetDefault("transport.handshake_timeout", "10s")
	v.SetDefault("transport.initial_backoff", "1s")
	v.SetDefault("transport.max_backoff", "30s")
	v.SetDefault("transport.max_reconnects", 0)

	v.SetDefault("okx.host", "wspri.okx.com")
	v.SetDefault("okx.port", 8443)
	v.SetDefault("okx.uri", "/ws/v5/ipublic")
	v.SetDefault("okx.symbols", []string{"BTC-USDT", "ETH-USDT"})

	v.SetDefault("binance.host", "stream.binance.com")
	v.SetDefault("binance.port", 443)
	v.SetDefault("binance.uri", "/stream")
	v.SetDefault("binance.symbols", []string{"BTC-USDT", "ETH-USDT"})

	v.SetDefault("rate_limit.requests_per_minute", 1200)

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.service_name", "marketfeed")
	v.SetDefault("telemetry.tracer_provider", "EMPTY_PROVIDER")
	v.SetDefault("telemetry.prometheus_port", 9090)
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if len(c.OKX.Symbols) == 0 && len(c.Binance.Symbols) == 0 {
		return fmt.Errorf("at least one of okx.symbols or binance.symbols must be configured")
	}
	if c.OKX.Host == "" {
		return fmt.Errorf("okx.host is required")
	}
	if c.Binance.Host == "" {
		return fmt.Errorf("binance.host is required")
	}
	if c.RateLimit.RequestsPerMinute <= 0 {
		return fmt.Errorf("rate_limit.requests_per_minute must be positive")
	}
	return nil
}
