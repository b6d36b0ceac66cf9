package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for the pipeline's failure taxonomy. Collector errors end
// the stream; execution errors are logged per action; invariant violations
// stop the engine.
var (
	// ErrStreamClosed is returned by collectors after a clean end-of-stream.
	ErrStreamClosed = errors.New("event stream closed")

	// ErrActionRejected wraps a venue-side rejection.
	ErrActionRejected = errors.New("action rejected")

	// ErrExecutionTimeout marks an action whose effect is unknown.
	ErrExecutionTimeout = errors.New("execution timed out")
)

// InvariantViolation reports a state-model desynchronization inside the
// matching engine: a fill exceeding an order's remaining quantity or a
// reference to an unknown order id. It is fatal and never silently corrected.
type InvariantViolation struct {
	OrderID OrderID
	Detail  string
}

func (v *InvariantViolation) Error() string {
	return fmt.Sprintf("matching invariant violation on order %d: %s", v.OrderID, v.Detail)
}
