package collector

import (
	"context"
	"errors"
	"sync"
)

// source is the producer half a Merge fans in. It mirrors the engine's
// collector contract without importing it.
type source[E any] interface {
	Stream(ctx context.Context) (<-chan E, error)
	Err() error
}

// Merge fans several event sources into one ordered-enough stream: events
// from one source keep their relative order, interleaving across sources is
// arrival order. The merged stream ends when every source has ended; Err
// joins the sources' terminal errors.
type Merge[E any] struct {
	sources []source[E]
	tap     func(E)
}

// NewMerge wraps the given sources. tap, when non-nil, observes every
// forwarded event on the forwarding goroutines; it must be safe for
// concurrent use and must not block.
func NewMerge[E any](tap func(E), sources ...source[E]) *Merge[E] {
	return &Merge[E]{sources: sources, tap: tap}
}

// Stream implements engine.Collector.
func (m *Merge[E]) Stream(ctx context.Context) (<-chan E, error) {
	out := make(chan E, 64)
	var wg sync.WaitGroup

	for _, src := range m.sources {
		events, err := src.Stream(ctx)
		if err != nil {
			return nil, err
		}
		wg.Add(1)
		go func(events <-chan E) {
			defer wg.Done()
			for ev := range events {
				if m.tap != nil {
					m.tap(ev)
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}(events)
	}

	go func() {
		wg.Wait()
		close(out)
	}()
	return out, nil
}

// Err implements engine.Collector.
func (m *Merge[E]) Err() error {
	errs := make([]error, 0, len(m.sources))
	for _, src := range m.sources {
		errs = append(errs, src.Err())
	}
	return errors.Join(errs...)
}
