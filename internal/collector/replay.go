package collector

import "context"

// Replay emits a fixed event sequence in order and then ends the stream
// cleanly. It backs deterministic tests and offline strategy runs.
type Replay[E any] struct {
	events []E
}

// NewReplay creates a collector over the given sequence. The slice is not
// copied; the caller must not mutate it afterward.
func NewReplay[E any](events []E) *Replay[E] {
	return &Replay[E]{events: events}
}

// Stream implements engine.Collector. Emission stops early when ctx is
// cancelled; the stream still closes cleanly.
func (r *Replay[E]) Stream(ctx context.Context) (<-chan E, error) {
	out := make(chan E)
	go func() {
		defer close(out)
		for _, ev := range r.events {
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// Err implements engine.Collector. Replay never fails.
func (r *Replay[E]) Err() error { return nil }
