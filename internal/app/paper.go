package app

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/driftline/driftbot/internal/domain"
	"github.com/driftline/driftbot/internal/engine"
	"github.com/driftline/driftbot/internal/exchange/bybit"
	"github.com/driftline/driftbot/internal/indicator"
	"github.com/driftline/driftbot/internal/journal"
	"github.com/driftline/driftbot/internal/paper"
	"github.com/driftline/driftbot/internal/state"
	"github.com/driftline/driftbot/internal/strategy"
)

// PaperMode trades the simulated venue against the live public feed. Every
// fill is synthetic; no credentials are needed.
func (a *App) PaperMode(ctx context.Context, deps *Dependencies) error {
	market := buildMarket(a.cfg)
	exchange := paper.NewExchange(market, a.logger)
	exchange.OnEvent(deps.Recorder.Record)

	bot, err := buildStrategy(a.cfg)
	if err != nil {
		return err
	}

	feed := bybit.NewFeed(
		a.cfg.Bybit.WsURL,
		a.cfg.Market.Symbol,
		a.cfg.Market.BookDepth,
		a.cfg.Bybit.MaxReconnects,
		a.logger,
	)

	buildInput := func(x *paper.Exchange) strategy.Input {
		return snapshotInput(x.Market(), x.OpenOrders())
	}

	eng := engine.New[domain.Event, *paper.Exchange, strategy.Input, domain.Action](
		feed,
		exchange,
		buildInput,
		bot,
		paper.NewExecutor(exchange, a.cfg.Paper.AckDelay.Duration),
		a.logger,
		engine.WithExecTimeout[domain.Event, *paper.Exchange, strategy.Input, domain.Action](a.cfg.Engine.ExecTimeout.Duration),
		engine.WithHealthCheck[domain.Event, *paper.Exchange, strategy.Input, domain.Action](exchange.Err),
	)
	exchange.Bind(eng)

	// The recorder outlives the engine slightly so fills emitted by the
	// final cycle still reach the journal.
	g, gctx := errgroup.WithContext(ctx)
	recorderCtx, stopRecorder := context.WithCancel(context.WithoutCancel(ctx))
	g.Go(func() error { return deps.Recorder.Run(recorderCtx) })
	g.Go(func() error {
		defer stopRecorder()
		return eng.Run(gctx)
	})

	runErr := g.Wait()
	a.reportSession(deps, exchange.Summarize(), bot.Name())
	return runErr
}

// reportSession logs the paper session summary and persists it.
func (a *App) reportSession(deps *Dependencies, s paper.Summary, botName string) {
	a.logger.Info("session summary",
		slog.String("session_id", deps.SessionID),
		slog.Int("open_orders", len(s.OpenOrders)),
		slog.String("net_position", s.Net.String()),
		slog.String("avg_entry", s.AvgEntry.String()),
		slog.String("realized_pnl", s.RealizedPnL.String()),
		slog.String("unrealized_pnl", s.UnrealizedPnL.String()),
	)
	for _, o := range s.OpenOrders {
		a.logger.Info("open order at shutdown",
			slog.Uint64("order_id", uint64(o.ID)),
			slog.String("side", string(o.Side)),
			slog.String("price", o.Price.String()),
			slog.String("remaining", o.Remaining().String()),
		)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	deps.Recorder.WriteSummary(ctx, journal.SessionSummary{
		Symbol:        a.cfg.Market.Symbol,
		Strategy:      botName,
		NetPosition:   s.Net,
		RealizedPnL:   s.RealizedPnL,
		UnrealizedPnL: s.UnrealizedPnL,
		StartedAt:     deps.StartedAt,
		EndedAt:       time.Now(),
	})
}

// snapshotInput derives the strategy snapshot from market state and the
// venue's open orders. Missing readings stay flagged absent.
func snapshotInput(m *state.Market, open []domain.Order) strategy.Input {
	in := strategy.Input{
		OpenOrders: open,
		Net:        m.Position().Net(),
	}
	if mid, ok := m.Book().MidPrice(); ok {
		in.MidPrice, in.HasMid = mid, true
	}
	if v, ok := m.Prices().Indicator(indicator.RSIName); ok {
		in.RSI, in.HasRSI = v, true
	}
	if v, ok := m.Prices().Indicator(indicator.NATRName); ok {
		in.NATR, in.HasNATR = v, true
	}
	return in
}
