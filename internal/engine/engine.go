package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/driftline/driftbot/internal/domain"
)

const defaultExecTimeout = 5 * time.Second

// Engine runs the event → state → input → decision → action loop for one
// bot instance. Instances share nothing; run one engine per instrument.
type Engine[E any, S State[E], I, A any] struct {
	collector  Collector[E]
	state      S
	buildInput InputFunc[S, I]
	bot        Bot[I, A]
	executor   Executor[A]
	logger     *slog.Logger

	execTimeout time.Duration
	healthCheck func() error

	// async dispatch: decisions are handed to a single ordered worker so a
	// slow live venue does not stall event intake. Fixed at construction.
	async    bool
	batchCh  chan []A
	workerWG sync.WaitGroup

	// injected holds synthetic events queued during the current cycle.
	// Only the engine goroutine (and executors it calls synchronously)
	// touches it, so it needs no lock.
	injected []E
}

// Option configures an Engine at construction time.
type Option[E any, S State[E], I, A any] func(*Engine[E, S, I, A])

// WithExecTimeout bounds each executor submission. An action with no outcome
// within the bound is reported as unknown, never assumed filled or unfilled.
func WithExecTimeout[E any, S State[E], I, A any](d time.Duration) Option[E, S, I, A] {
	return func(e *Engine[E, S, I, A]) { e.execTimeout = d }
}

// WithAsyncExecution lets later decision cycles overlap a pending live
// submission. Per-decision action order is still preserved by a single
// ordered worker. The choice is fixed for the instance's lifetime so
// ordering behavior never depends on incidental scheduling.
func WithAsyncExecution[E any, S State[E], I, A any]() Option[E, S, I, A] {
	return func(e *Engine[E, S, I, A]) { e.async = true }
}

// WithHealthCheck installs a check run after every state mutation. A
// non-nil result is fatal and stops the engine; the paper exchange reports
// matching invariant violations through it.
func WithHealthCheck[E any, S State[E], I, A any](check func() error) Option[E, S, I, A] {
	return func(e *Engine[E, S, I, A]) { e.healthCheck = check }
}

// New assembles an engine from its five collaborators.
func New[E any, S State[E], I, A any](
	collector Collector[E],
	state S,
	buildInput InputFunc[S, I],
	bot Bot[I, A],
	executor Executor[A],
	logger *slog.Logger,
	opts ...Option[E, S, I, A],
) *Engine[E, S, I, A] {
	e := &Engine[E, S, I, A]{
		collector:   collector,
		state:       state,
		buildInput:  buildInput,
		bot:         bot,
		executor:    executor,
		logger:      logger.With(slog.String("component", "engine"), slog.String("bot", bot.Name())),
		execTimeout: defaultExecTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// State returns the engine's state instance.
func (e *Engine[E, S, I, A]) State() S { return e.state }

// Inject queues a synthetic event behind the event currently being applied.
// Injected events are drained, in order, before the next external event is
// considered, so a state reader never observes a half-applied market event.
// Inject must only be called from the apply/execute path.
func (e *Engine[E, S, I, A]) Inject(ev E) {
	e.injected = append(e.injected, ev)
}

// Run drives the loop until the collector ends or ctx is cancelled. A clean
// end-of-stream returns nil; a fatal collector error or an invariant
// violation is returned. Cancellation stops event intake but lets the
// in-flight cycle, including its executor submissions, finish first: no
// state mutation happens after Run returns.
func (e *Engine[E, S, I, A]) Run(ctx context.Context) error {
	events, err := e.collector.Stream(ctx)
	if err != nil {
		return fmt.Errorf("engine: open event stream: %w", err)
	}

	if e.async {
		e.startWorker()
		defer e.stopWorker()
	}

	e.logger.Info("engine started", slog.Bool("async_execution", e.async))
	defer e.logger.Info("engine stopped")

	for {
		// Checked first so an observable shutdown signal always wins over a
		// ready event; the select below would pick between them at random.
		select {
		case <-ctx.Done():
			e.logger.Info("shutdown signal observed, halting event intake")
			return nil
		default:
		}

		select {
		case <-ctx.Done():
			e.logger.Info("shutdown signal observed, halting event intake")
			return nil
		case ev, ok := <-events:
			if !ok {
				if cerr := e.collector.Err(); cerr != nil {
					e.logger.Error("event stream failed", slog.String("error", cerr.Error()))
					return fmt.Errorf("engine: collector: %w", cerr)
				}
				e.logger.Info("event stream ended")
				return nil
			}
			if err := e.cycle(ev); err != nil {
				return err
			}
		}
	}
}

// cycle performs one full decision cycle for an external event.
func (e *Engine[E, S, I, A]) cycle(ev E) error {
	e.state.Apply(ev)
	if err := e.drainInjected(); err != nil {
		return err
	}

	input := e.buildInput(e.state)
	actions := e.bot.Decide(input)
	if len(actions) > 0 {
		if e.async {
			// Blocking send is the flow control: a saturated worker stalls
			// intake instead of growing an unbounded backlog. The worker
			// drains the queue even during shutdown.
			e.batchCh <- actions
		} else {
			e.dispatch(actions)
		}
	}

	// A synchronous executor (paper venue) may have injected fills.
	return e.drainInjected()
}

// drainInjected applies queued synthetic events in FIFO order. An applied
// event may inject further events; those are drained in the same pass.
func (e *Engine[E, S, I, A]) drainInjected() error {
	for len(e.injected) > 0 {
		ev := e.injected[0]
		e.injected = e.injected[1:]
		e.state.Apply(ev)
	}
	if e.healthCheck != nil {
		if err := e.healthCheck(); err != nil {
			e.logger.Error("invariant violation, stopping", slog.String("error", err.Error()))
			return err
		}
	}
	return nil
}

// dispatch submits one decision's actions in list order, awaiting each
// outcome before the next. It runs on a context detached from cancellation
// so an in-flight decision completes even during shutdown.
func (e *Engine[E, S, I, A]) dispatch(actions []A) {
	base := context.WithoutCancel(context.Background())
	for _, action := range actions {
		actionCtx, cancel := context.WithTimeout(base, e.execTimeout)
		outcome, err := e.executor.Execute(actionCtx, action)
		cancel()

		switch {
		case err != nil:
			e.logger.Error("action execution failed",
				slog.String("error", err.Error()),
			)
		case outcome.Status == domain.OutcomeRejected:
			// Logged only: the next cycle reacts to current state instead
			// of resubmitting a stale action.
			e.logger.Warn("action rejected",
				slog.String("reason", outcome.Reason),
			)
		case outcome.Status == domain.OutcomeUnknown:
			e.logger.Warn("action outcome unknown; effect unresolved")
		default:
			e.logger.Debug("action accepted",
				slog.Uint64("order_id", uint64(outcome.OrderID)),
			)
		}
	}
}

func (e *Engine[E, S, I, A]) startWorker() {
	e.batchCh = make(chan []A, 16)
	e.workerWG.Add(1)
	go func() {
		defer e.workerWG.Done()
		for batch := range e.batchCh {
			e.dispatch(batch)
		}
	}()
}

// stopWorker closes the batch queue and waits for already-enqueued
// decisions to finish dispatching.
func (e *Engine[E, S, I, A]) stopWorker() {
	close(e.batchCh)
	e.workerWG.Wait()
}
