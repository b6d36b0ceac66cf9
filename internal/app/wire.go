package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/driftline/driftbot/internal/config"
	"github.com/driftline/driftbot/internal/indicator"
	"github.com/driftline/driftbot/internal/journal"
	"github.com/driftline/driftbot/internal/state"
	"github.com/driftline/driftbot/internal/strategy"
)

// Dependencies holds the mode-independent collaborators: journaling sinks
// and the session identity.
type Dependencies struct {
	SessionID string
	StartedAt time.Time
	Recorder  *journal.Recorder
}

// Wire connects the optional journal sinks and builds the session recorder.
// Both Postgres and Redis are optional; a paper run with neither configured
// still journals nothing and works.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	sessionID := uuid.NewString()

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	var pg *journal.PGJournal
	if cfg.Postgres.Enabled() {
		var err error
		pg, err = journal.NewPGJournal(ctx, journal.PGConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.MaxConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		closers = append(closers, pg.Close)
	}

	var bus *journal.TelemetryBus
	if cfg.Redis.Enabled() {
		var err error
		bus, err = journal.NewTelemetryBus(ctx, journal.RedisConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		closers = append(closers, func() { _ = bus.Close() })
	}

	deps := &Dependencies{
		SessionID: sessionID,
		StartedAt: time.Now(),
		Recorder:  journal.NewRecorder(sessionID, pg, bus, 256, logger),
	}
	return deps, cleanup, nil
}

// buildMarket creates the market state with the configured indicators
// registered, so RSI and NATR warm up from the first feed event.
func buildMarket(cfg *config.Config) *state.Market {
	market := state.NewMarket(cfg.Market.Symbol, cfg.Engine.PriceHistory)
	market.Prices().AddIndicator(indicator.NewRSI(
		cfg.Strategy.RSIPeriod,
		cfg.Strategy.RSIInterval.Milliseconds(),
	))
	market.Prices().AddIndicator(indicator.NewNATR(
		cfg.Strategy.NATRPeriod,
		cfg.Strategy.NATRCandle.Milliseconds(),
	))
	return market
}

// buildStrategy instantiates the configured strategy. Decimal parameters
// arrive as strings from config so precision survives the TOML round trip.
func buildStrategy(cfg *config.Config) (strategy.Bot, error) {
	qty, err := decimal.NewFromString(cfg.Strategy.Qty)
	if err != nil {
		return nil, fmt.Errorf("app: strategy qty: %w", err)
	}

	switch cfg.Strategy.Name {
	case "simple_mm":
		spread, err := decimal.NewFromString(cfg.Strategy.Spread)
		if err != nil {
			return nil, fmt.Errorf("app: strategy spread: %w", err)
		}
		return strategy.NewSimpleMarketMaker(cfg.Market.Symbol, spread, qty), nil

	case "dynamic_mm":
		baseSpread, err := decimal.NewFromString(cfg.Strategy.BaseSpread)
		if err != nil {
			return nil, fmt.Errorf("app: strategy base_spread: %w", err)
		}
		volTarget, err := decimal.NewFromString(cfg.Strategy.VolatilityTarget)
		if err != nil {
			return nil, fmt.Errorf("app: strategy volatility_target: %w", err)
		}
		skew, err := decimal.NewFromString(cfg.Strategy.SkewStrength)
		if err != nil {
			return nil, fmt.Errorf("app: strategy skew_strength: %w", err)
		}
		overbought, err := decimal.NewFromString(cfg.Strategy.RSIOverbought)
		if err != nil {
			return nil, fmt.Errorf("app: strategy rsi_overbought: %w", err)
		}
		oversold, err := decimal.NewFromString(cfg.Strategy.RSIOversold)
		if err != nil {
			return nil, fmt.Errorf("app: strategy rsi_oversold: %w", err)
		}
		return strategy.NewDynamicSpreadMarketMaker(strategy.DynamicSpreadConfig{
			Symbol:           cfg.Market.Symbol,
			Qty:              qty,
			BaseSpread:       baseSpread,
			VolatilityTarget: volTarget,
			SkewStrength:     skew,
			Overbought:       overbought,
			Oversold:         oversold,
		}), nil

	default:
		return nil, fmt.Errorf("app: unknown strategy %q", cfg.Strategy.Name)
	}
}
