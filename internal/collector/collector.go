// Package collector provides engine.Collector implementations for sources
// that are already channels (live feeds behind a transport, the paper
// exchange's output) and for canned event sequences.
package collector

import (
	"context"
	"sync"
)

// Channel adapts an event channel produced elsewhere into a Collector. The
// producer closes the channel on end-of-stream and may record a terminal
// error with Fail beforehand; the engine reads it through Err after the
// channel closes.
type Channel[E any] struct {
	events <-chan E

	mu  sync.Mutex
	err error
}

// NewChannel wraps events. The channel's buffering is the flow control
// boundary between the producer and the engine's sequential consumer.
func NewChannel[E any](events <-chan E) *Channel[E] {
	return &Channel[E]{events: events}
}

// Stream implements engine.Collector.
func (c *Channel[E]) Stream(_ context.Context) (<-chan E, error) {
	return c.events, nil
}

// Err implements engine.Collector.
func (c *Channel[E]) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Fail records the terminal error. The producer must call it before closing
// the event channel so the engine observes it on stream end.
func (c *Channel[E]) Fail(err error) {
	c.mu.Lock()
	c.err = err
	c.mu.Unlock()
}
