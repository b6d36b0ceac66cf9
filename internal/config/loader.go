package config

import (
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies DRIFTBOT_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load. An empty path skips the
// file and uses defaults plus environment.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known DRIFTBOT_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML
// file.
func applyEnvOverrides(cfg *Config) {
	setStr(&cfg.Mode, "DRIFTBOT_MODE")
	setStr(&cfg.LogLevel, "DRIFTBOT_LOG_LEVEL")

	setStr(&cfg.Market.Symbol, "DRIFTBOT_MARKET_SYMBOL")
	setInt(&cfg.Market.BookDepth, "DRIFTBOT_MARKET_BOOK_DEPTH")

	setBool(&cfg.Engine.AsyncExecution, "DRIFTBOT_ENGINE_ASYNC_EXECUTION")
	setDuration(&cfg.Engine.ExecTimeout, "DRIFTBOT_ENGINE_EXEC_TIMEOUT")
	setInt(&cfg.Engine.PriceHistory, "DRIFTBOT_ENGINE_PRICE_HISTORY")

	setStr(&cfg.Bybit.WsURL, "DRIFTBOT_BYBIT_WS_URL")
	setStr(&cfg.Bybit.RestURL, "DRIFTBOT_BYBIT_REST_URL")
	setStr(&cfg.Bybit.Category, "DRIFTBOT_BYBIT_CATEGORY")
	setStr(&cfg.Bybit.ApiKey, "DRIFTBOT_BYBIT_API_KEY")
	setStr(&cfg.Bybit.ApiSecret, "DRIFTBOT_BYBIT_API_SECRET")
	setInt(&cfg.Bybit.MaxReconnects, "DRIFTBOT_BYBIT_MAX_RECONNECTS")

	setDuration(&cfg.Paper.AckDelay, "DRIFTBOT_PAPER_ACK_DELAY")

	setStr(&cfg.Strategy.Name, "DRIFTBOT_STRATEGY_NAME")
	setStr(&cfg.Strategy.Qty, "DRIFTBOT_STRATEGY_QTY")
	setStr(&cfg.Strategy.Spread, "DRIFTBOT_STRATEGY_SPREAD")
	setStr(&cfg.Strategy.BaseSpread, "DRIFTBOT_STRATEGY_BASE_SPREAD")
	setStr(&cfg.Strategy.VolatilityTarget, "DRIFTBOT_STRATEGY_VOLATILITY_TARGET")
	setStr(&cfg.Strategy.SkewStrength, "DRIFTBOT_STRATEGY_SKEW_STRENGTH")
	setStr(&cfg.Strategy.RSIOverbought, "DRIFTBOT_STRATEGY_RSI_OVERBOUGHT")
	setStr(&cfg.Strategy.RSIOversold, "DRIFTBOT_STRATEGY_RSI_OVERSOLD")
	setInt(&cfg.Strategy.RSIPeriod, "DRIFTBOT_STRATEGY_RSI_PERIOD")
	setDuration(&cfg.Strategy.RSIInterval, "DRIFTBOT_STRATEGY_RSI_INTERVAL")
	setInt(&cfg.Strategy.NATRPeriod, "DRIFTBOT_STRATEGY_NATR_PERIOD")
	setDuration(&cfg.Strategy.NATRCandle, "DRIFTBOT_STRATEGY_NATR_CANDLE")

	setStr(&cfg.Postgres.DSN, "DRIFTBOT_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "DRIFTBOT_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "DRIFTBOT_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "DRIFTBOT_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "DRIFTBOT_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "DRIFTBOT_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "DRIFTBOT_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.MaxConns, "DRIFTBOT_POSTGRES_MAX_CONNS")

	setStr(&cfg.Redis.Addr, "DRIFTBOT_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "DRIFTBOT_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "DRIFTBOT_REDIS_DB")
	setBool(&cfg.Redis.TLSEnabled, "DRIFTBOT_REDIS_TLS_ENABLED")
}

// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}
