package paper

import (
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/driftline/driftbot/internal/domain"
	"github.com/driftline/driftbot/internal/engine"
	"github.com/driftline/driftbot/internal/state"
)

// EmitFunc receives every synthetic event the exchange generates, after it
// has been queued for re-injection. Journaling and telemetry hang off it;
// it must not block.
type EmitFunc func(ev domain.Event)

// Exchange simulates a venue for paper trading. It wraps the bot's market
// state and implements the same State contract, so the engine applies every
// event through it: market events update the inner state and drive matching
// against the bot's resting orders, and the resulting fills are re-injected
// into the same sequential queue before the next external event is seen.
//
// The bot's orders are assumed small enough not to move the public book;
// the book is maintained purely from feed events, and queue position
// against other real participants is not modeled.
type Exchange struct {
	inner    *state.Market
	book     *restingBook
	injector engine.Injector[domain.Event]
	emit     EmitFunc
	logger   *slog.Logger

	nextID domain.OrderID
	fatal  error
	now    func() time.Time
}

// NewExchange creates a paper exchange around the given market state.
func NewExchange(inner *state.Market, logger *slog.Logger) *Exchange {
	return &Exchange{
		inner:  inner,
		book:   newRestingBook(),
		logger: logger.With(slog.String("component", "paper_exchange")),
		nextID: 1,
		now:    time.Now,
	}
}

// Bind attaches the engine's re-injection queue. It must be called before
// the engine runs in paper mode.
func (x *Exchange) Bind(inj engine.Injector[domain.Event]) { x.injector = inj }

// OnEvent registers the telemetry hook.
func (x *Exchange) OnEvent(emit EmitFunc) { x.emit = emit }

// Market returns the wrapped market state.
func (x *Exchange) Market() *state.Market { return x.inner }

// OpenOrders returns a snapshot of the bot's resting orders, bids first,
// best price first, FIFO within a level.
func (x *Exchange) OpenOrders() []domain.Order { return x.book.all() }

// Err reports a matching invariant violation. Once set the exchange stops
// mutating; the engine's health check surfaces it as a fatal stop.
func (x *Exchange) Err() error { return x.fatal }

// Apply implements engine.State. Market events flow into the inner state
// first, then drive matching; synthetic fills coming back through the queue
// update position and resting-order bookkeeping in the same step.
func (x *Exchange) Apply(ev domain.Event) {
	if x.fatal != nil {
		return
	}
	x.inner.Apply(ev)

	switch e := ev.(type) {
	case domain.Trade:
		x.matchTrade(e)
	case domain.Fill:
		x.applyFill(e)
	}
}

// Place accepts a new resting order, assigning the next order id. If the
// order crosses the current public book it fills immediately as a taker
// against the book's levels before any remainder rests.
func (x *Exchange) Place(p domain.PlaceOrder) domain.Outcome {
	if x.fatal != nil {
		return domain.Rejected("exchange halted: " + x.fatal.Error())
	}
	if !p.Qty.IsPositive() || !p.Price.IsPositive() {
		return domain.Rejected("price and quantity must be positive")
	}

	order := &domain.Order{
		ID:        x.nextID,
		Symbol:    p.Symbol,
		Side:      p.Side,
		Price:     p.Price,
		Qty:       p.Qty,
		CreatedAt: x.now(),
	}
	x.nextID++
	x.book.insert(order)

	x.logger.Debug("order resting",
		slog.Uint64("order_id", uint64(order.ID)),
		slog.String("side", string(order.Side)),
		slog.String("price", order.Price.String()),
		slog.String("qty", order.Qty.String()),
	)

	x.fillAgainstBook(order)
	return domain.Accepted(order.ID)
}

// Cancel removes a resting order. Cancelling an unknown or already terminal
// order is a rejection, not an invariant violation: the order may simply
// have filled earlier in the same queue.
func (x *Exchange) Cancel(c domain.CancelOrder) domain.Outcome {
	if x.fatal != nil {
		return domain.Rejected("exchange halted: " + x.fatal.Error())
	}
	o, ok := x.book.remove(c.OrderID)
	if !ok {
		return domain.Rejected("unknown or closed order")
	}
	o.Cancelled = true
	x.logger.Debug("order cancelled", slog.Uint64("order_id", uint64(o.ID)))
	return domain.Accepted(o.ID)
}

// Modify changes a resting order's price and/or quantity. A price change
// re-inserts the order, forfeiting time priority at the old level. The new
// quantity may not undercut what is already filled.
func (x *Exchange) Modify(m domain.ModifyOrder) domain.Outcome {
	if x.fatal != nil {
		return domain.Rejected("exchange halted: " + x.fatal.Error())
	}
	o, ok := x.book.get(m.OrderID)
	if !ok {
		return domain.Rejected("unknown or closed order")
	}
	if m.NewQty.IsPositive() {
		// Shrinking to (or below) the filled quantity would leave a terminal
		// order resting; the order must keep open quantity to stay on book.
		if m.NewQty.LessThanOrEqual(o.FilledQty) {
			return domain.Rejected("new quantity not above filled quantity")
		}
		o.Qty = m.NewQty
	}
	if m.NewPrice.IsPositive() && !m.NewPrice.Equal(o.Price) {
		x.book.remove(o.ID)
		o.Price = m.NewPrice
		o.CreatedAt = x.now()
		x.book.insert(o)
		x.fillAgainstBook(o)
	}
	return domain.Accepted(o.ID)
}

// matchTrade allocates an incoming market trade across eligible resting
// orders: best price first, oldest first within a level, each order filled
// up to min(order remaining, trade remaining). The side a taker of the
// trade's side would hit is matched first.
func (x *Exchange) matchTrade(t domain.Trade) {
	if t.Symbol != x.inner.Symbol() {
		return
	}
	remaining := t.Qty

	first, second := domain.SideBuy, domain.SideSell
	if t.Side == domain.SideBuy {
		first, second = domain.SideSell, domain.SideBuy
	}

	for _, side := range []domain.Side{first, second} {
		if !remaining.IsPositive() {
			return
		}
		for _, id := range x.book.eligible(side, t.Price) {
			if !remaining.IsPositive() {
				return
			}
			o, ok := x.book.get(id)
			if !ok {
				continue
			}
			qty := decimal.Min(o.Remaining(), remaining)
			if !qty.IsPositive() {
				continue
			}
			remaining = remaining.Sub(qty)
			x.injectFill(domain.Fill{
				OrderID: o.ID,
				Symbol:  o.Symbol,
				Side:    o.Side,
				Price:   o.Price,
				Qty:     qty,
				Maker:   true,
				Time:    t.Time,
			})
		}
	}
}

// fillAgainstBook simulates immediate taker fills for an order that crosses
// the current public book, walking levels from the top until the order's
// limit stops crossing or the order is exhausted. The public book itself is
// not mutated.
func (x *Exchange) fillAgainstBook(o *domain.Order) {
	levels := x.inner.Book().Asks()
	if o.Side == domain.SideSell {
		levels = x.inner.Book().Bids()
	}

	remaining := o.Remaining()
	for _, lvl := range levels {
		if !remaining.IsPositive() {
			return
		}
		if o.Side == domain.SideBuy && lvl.Price.GreaterThan(o.Price) {
			return
		}
		if o.Side == domain.SideSell && lvl.Price.LessThan(o.Price) {
			return
		}
		qty := decimal.Min(remaining, lvl.Qty)
		remaining = remaining.Sub(qty)
		x.injectFill(domain.Fill{
			OrderID: o.ID,
			Symbol:  o.Symbol,
			Side:    o.Side,
			Price:   lvl.Price,
			Qty:     qty,
			Maker:   false,
			Time:    x.now(),
		})
	}
}

// injectFill queues a synthetic fill behind the event being processed and
// hands it to the telemetry hook.
func (x *Exchange) injectFill(f domain.Fill) {
	if x.injector != nil {
		x.injector.Inject(f)
	} else {
		// No engine bound (direct-drive tests): apply synchronously so
		// state still converges.
		x.Apply(f)
	}
	if x.emit != nil {
		x.emit(f)
	}
}

// applyFill updates the resting order a fill refers to. A fill for an
// unknown order or beyond an order's remaining quantity means the simulation
// has desynchronized from its own model; that is fatal and never papered
// over.
func (x *Exchange) applyFill(f domain.Fill) {
	o, ok := x.book.get(f.OrderID)
	if !ok {
		x.halt(&domain.InvariantViolation{OrderID: f.OrderID, Detail: "fill references unknown order"})
		return
	}
	if f.Qty.GreaterThan(o.Remaining()) {
		x.halt(&domain.InvariantViolation{
			OrderID: f.OrderID,
			Detail:  "fill quantity " + f.Qty.String() + " exceeds remaining " + o.Remaining().String(),
		})
		return
	}
	o.FilledQty = o.FilledQty.Add(f.Qty)
	if o.Status() == domain.OrderStatusFilled {
		x.book.remove(o.ID)
	}
	x.logger.Debug("fill applied",
		slog.Uint64("order_id", uint64(f.OrderID)),
		slog.String("qty", f.Qty.String()),
		slog.String("price", f.Price.String()),
		slog.String("status", string(o.Status())),
	)
}

func (x *Exchange) halt(err error) {
	x.fatal = err
	x.logger.Error("matching invariant violated", slog.String("error", err.Error()))
}

// Summary captures the session's end state for the shutdown report.
type Summary struct {
	OpenOrders    []domain.Order
	Net           decimal.Decimal
	AvgEntry      decimal.Decimal
	RealizedPnL   decimal.Decimal
	UnrealizedPnL decimal.Decimal
}

// Summarize returns the paper session's final position and open orders.
func (x *Exchange) Summarize() Summary {
	pos := x.inner.Position()
	return Summary{
		OpenOrders:    x.OpenOrders(),
		Net:           pos.Net(),
		AvgEntry:      pos.AvgEntry(),
		RealizedPnL:   pos.RealizedPnL(),
		UnrealizedPnL: pos.UnrealizedPnL(),
	}
}
