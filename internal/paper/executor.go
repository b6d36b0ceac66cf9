package paper

import (
	"context"
	"time"

	"github.com/driftline/driftbot/internal/domain"
)

// Executor dispatches bot actions against the paper exchange. Acceptance is
// synchronous relative to the simulated clock; an optional ack delay mimics
// venue latency without changing ordering. The engine calls Execute on the
// same sequential path that applies events, so actions can never race a
// concurrent match attempt.
type Executor struct {
	exchange *Exchange
	ackDelay time.Duration
}

// NewExecutor creates an executor bound to the exchange. ackDelay of zero
// means instant acknowledgement.
func NewExecutor(exchange *Exchange, ackDelay time.Duration) *Executor {
	return &Executor{exchange: exchange, ackDelay: ackDelay}
}

// Execute implements engine.Executor.
func (e *Executor) Execute(ctx context.Context, action domain.Action) (domain.Outcome, error) {
	if e.ackDelay > 0 {
		select {
		case <-time.After(e.ackDelay):
		case <-ctx.Done():
			return domain.Outcome{Status: domain.OutcomeUnknown}, nil
		}
	}

	switch a := action.(type) {
	case domain.PlaceOrder:
		return e.exchange.Place(a), nil
	case domain.CancelOrder:
		return e.exchange.Cancel(a), nil
	case domain.ModifyOrder:
		return e.exchange.Modify(a), nil
	default:
		return domain.Rejected("unsupported action"), nil
	}
}
