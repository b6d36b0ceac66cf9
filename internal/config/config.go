// Package config defines the bot's runtime configuration and its
// validation. Values come from a TOML file merged over built-in defaults,
// then DRIFTBOT_* environment overrides on top.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure.
type Config struct {
	Mode     string `toml:"mode"` // "paper" or "live"
	LogLevel string `toml:"log_level"`

	Market   MarketConfig   `toml:"market"`
	Engine   EngineConfig   `toml:"engine"`
	Bybit    BybitConfig    `toml:"bybit"`
	Paper    PaperConfig    `toml:"paper"`
	Strategy StrategyConfig `toml:"strategy"`
	Postgres PostgresConfig `toml:"postgres"`
	Redis    RedisConfig    `toml:"redis"`
}

// MarketConfig names the instrument and feed shape the bot trades.
type MarketConfig struct {
	Symbol    string `toml:"symbol"`
	BookDepth int    `toml:"book_depth"`
}

// EngineConfig tunes the decision loop.
type EngineConfig struct {
	AsyncExecution bool     `toml:"async_execution"`
	ExecTimeout    duration `toml:"exec_timeout"`
	PriceHistory   int      `toml:"price_history"`
}

// BybitConfig holds venue endpoints and credentials for live mode.
type BybitConfig struct {
	WsURL         string `toml:"ws_url"`
	RestURL       string `toml:"rest_url"`
	Category      string `toml:"category"`
	ApiKey        string `toml:"api_key"`
	ApiSecret     string `toml:"api_secret"`
	MaxReconnects int    `toml:"max_reconnects"`
}

// PaperConfig tunes the simulated venue.
type PaperConfig struct {
	AckDelay duration `toml:"ack_delay"`
}

// StrategyConfig selects and parameterizes the market-making strategy.
// Prices and sizes are decimal strings so no precision is lost in transit.
type StrategyConfig struct {
	Name             string   `toml:"name"` // "simple_mm" or "dynamic_mm"
	Qty              string   `toml:"qty"`
	Spread           string   `toml:"spread"`
	BaseSpread       string   `toml:"base_spread"`
	VolatilityTarget string   `toml:"volatility_target"`
	SkewStrength     string   `toml:"skew_strength"`
	RSIOverbought    string   `toml:"rsi_overbought"`
	RSIOversold      string   `toml:"rsi_oversold"`
	RSIPeriod        int      `toml:"rsi_period"`
	RSIInterval      duration `toml:"rsi_interval"`
	NATRPeriod       int      `toml:"natr_period"`
	NATRCandle       duration `toml:"natr_candle"`
}

// PostgresConfig holds journal database parameters. An empty Host and DSN
// disables the Postgres journal.
type PostgresConfig struct {
	DSN      string `toml:"dsn"`
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	Database string `toml:"database"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	SSLMode  string `toml:"ssl_mode"`
	MaxConns int    `toml:"max_conns"`
}

// Enabled reports whether a journal database was configured.
func (c PostgresConfig) Enabled() bool {
	return c.DSN != "" || c.Host != ""
}

// RedisConfig holds telemetry bus parameters. An empty Addr disables it.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// Enabled reports whether the telemetry bus was configured.
func (c RedisConfig) Enabled() bool { return c.Addr != "" }

// duration wraps time.Duration so TOML accepts "500ms" style strings.
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

// Defaults returns the built-in configuration a TOML file is merged onto.
func Defaults() Config {
	return Config{
		Mode:     "paper",
		LogLevel: "info",
		Market: MarketConfig{
			Symbol:    "BTCUSDT",
			BookDepth: 50,
		},
		Engine: EngineConfig{
			AsyncExecution: false,
			ExecTimeout:    duration{5 * time.Second},
			PriceHistory:   4096,
		},
		Bybit: BybitConfig{
			WsURL:         "wss://stream.bybit.com/v5/public/linear",
			RestURL:       "https://api.bybit.com",
			Category:      "linear",
			MaxReconnects: 10,
		},
		Paper: PaperConfig{
			AckDelay: duration{0},
		},
		Strategy: StrategyConfig{
			Name:             "simple_mm",
			Qty:              "0.001",
			Spread:           "10",
			BaseSpread:       "5",
			VolatilityTarget: "2",
			SkewStrength:     "0.0005",
			RSIOverbought:    "70",
			RSIOversold:      "30",
			RSIPeriod:        14,
			RSIInterval:      duration{time.Minute},
			NATRPeriod:       14,
			NATRCandle:       duration{time.Minute},
		},
		Postgres: PostgresConfig{
			Port:     5432,
			Database: "driftbot",
			User:     "driftbot",
			SSLMode:  "disable",
			MaxConns: 5,
		},
		Redis: RedisConfig{
			DB: 0,
		},
	}
}

var validModes = map[string]bool{
	"paper": true,
	"live":  true,
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var validStrategies = map[string]bool{
	"simple_mm":  true,
	"dynamic_mm": true,
}

// Validate checks the configuration for internal consistency and reports
// every problem at once.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: paper, live)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	if c.Market.Symbol == "" {
		errs = append(errs, "market: symbol must not be empty")
	}
	switch c.Market.BookDepth {
	case 1, 50, 200:
	default:
		errs = append(errs, fmt.Sprintf("market: book_depth must be 1, 50, or 200, got %d", c.Market.BookDepth))
	}

	if c.Engine.ExecTimeout.Duration <= 0 {
		errs = append(errs, "engine: exec_timeout must be positive")
	}
	if c.Engine.PriceHistory <= 0 {
		errs = append(errs, "engine: price_history must be positive")
	}

	if strings.ToLower(c.Mode) == "live" {
		if c.Bybit.ApiKey == "" || c.Bybit.ApiSecret == "" {
			errs = append(errs, "bybit: api_key and api_secret are required in live mode")
		}
	}

	if !validStrategies[c.Strategy.Name] {
		errs = append(errs, fmt.Sprintf("strategy: unknown name %q (valid: simple_mm, dynamic_mm)", c.Strategy.Name))
	}
	if c.Strategy.RSIPeriod <= 0 {
		errs = append(errs, "strategy: rsi_period must be positive")
	}
	if c.Strategy.NATRPeriod <= 0 {
		errs = append(errs, "strategy: natr_period must be positive")
	}
	if c.Strategy.NATRCandle.Duration <= 0 {
		errs = append(errs, "strategy: natr_candle must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}
