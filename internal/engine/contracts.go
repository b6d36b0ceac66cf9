// Package engine wires a Collector, a State, a Bot, and an Executor into one
// ordered decision loop. Exactly one goroutine applies events, derives
// inputs, and (in synchronous mode) dispatches actions, which is what makes
// state reads linearizable without locks.
package engine

import (
	"context"

	"github.com/driftline/driftbot/internal/domain"
)

// Collector produces the engine's ordered event sequence. The stream channel
// closing signals termination; Err distinguishes a clean end-of-stream (nil)
// from a fatal feed error. A collector is not restartable: a new stream
// requires a new collector.
type Collector[E any] interface {
	Stream(ctx context.Context) (<-chan E, error)
	Err() error
}

// State is mutated by applying events. Apply is total: it must absorb
// unknown or malformed events without failing, so the pipeline stays alive
// on unexpected feed content.
type State[E any] interface {
	Apply(E)
}

// InputFunc derives the immutable decision snapshot a Bot sees from the
// current state. It must be pure and cheap; it runs once per cycle on the
// sequential path.
type InputFunc[S, I any] func(S) I

// Bot is a pure strategy: given a snapshot, produce an ordered action list.
// Decide must not hold state or perform I/O, so canned inputs yield exact,
// assertable action sequences.
type Bot[I, A any] interface {
	Name() string
	Decide(input I) []A
}

// Executor performs an action's external effect. It may block on network
// I/O. The outcome distinguishes acceptance, rejection, and
// timeout/unknown; duplicate submission after an unknown outcome is NOT
// idempotent and the engine never retries on its own.
type Executor[A any] interface {
	Execute(ctx context.Context, action A) (domain.Outcome, error)
}

// Injector accepts synthetic events for re-injection into the engine's
// sequential path. The paper exchange uses it to feed generated fills back
// through the same ordered queue that carried the triggering market event.
type Injector[E any] interface {
	Inject(ev E)
}
