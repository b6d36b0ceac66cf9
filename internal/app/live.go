package app

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/driftline/driftbot/internal/collector"
	"github.com/driftline/driftbot/internal/domain"
	"github.com/driftline/driftbot/internal/engine"
	"github.com/driftline/driftbot/internal/exchange/bybit"
	"github.com/driftline/driftbot/internal/state"
	"github.com/driftline/driftbot/internal/strategy"
	"github.com/driftline/driftbot/internal/transport"
)

// LiveMode trades the real venue. The public feed and the private execution
// stream merge into one event sequence, so the bot's own fills flow through
// the same ordered path as market data.
func (a *App) LiveMode(ctx context.Context, deps *Dependencies) error {
	market := buildMarket(a.cfg)

	bot, err := buildStrategy(a.cfg)
	if err != nil {
		return err
	}

	signer := transport.NewSigner(a.cfg.Bybit.ApiKey, a.cfg.Bybit.ApiSecret)
	executor := bybit.NewExecutor(a.cfg.Bybit.RestURL, a.cfg.Bybit.Category, signer, a.logger)

	public := bybit.NewFeed(
		a.cfg.Bybit.WsURL,
		a.cfg.Market.Symbol,
		a.cfg.Market.BookDepth,
		a.cfg.Bybit.MaxReconnects,
		a.logger,
	)
	private := bybit.NewPrivateFeed("", signer, executor, a.cfg.Bybit.MaxReconnects, a.logger)

	// The tap keeps the executor's open-order registry in step with fills
	// and forwards them to the journal before the engine applies them.
	feed := collector.NewMerge[domain.Event](func(ev domain.Event) {
		if fill, ok := ev.(domain.Fill); ok {
			executor.RecordFill(fill.OrderID, fill.Qty)
			deps.Recorder.Record(fill)
		}
	}, public, private)

	buildInput := func(m *state.Market) strategy.Input {
		return snapshotInput(m, executor.OpenOrders())
	}

	opts := []engine.Option[domain.Event, *state.Market, strategy.Input, domain.Action]{
		engine.WithExecTimeout[domain.Event, *state.Market, strategy.Input, domain.Action](a.cfg.Engine.ExecTimeout.Duration),
	}
	if a.cfg.Engine.AsyncExecution {
		opts = append(opts, engine.WithAsyncExecution[domain.Event, *state.Market, strategy.Input, domain.Action]())
	}

	eng := engine.New[domain.Event, *state.Market, strategy.Input, domain.Action](
		feed, market, buildInput, bot, executor, a.logger, opts...,
	)

	g, gctx := errgroup.WithContext(ctx)
	recorderCtx, stopRecorder := context.WithCancel(context.WithoutCancel(ctx))
	g.Go(func() error { return deps.Recorder.Run(recorderCtx) })
	g.Go(func() error {
		defer stopRecorder()
		return eng.Run(gctx)
	})
	return g.Wait()
}
