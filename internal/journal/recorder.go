package journal

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/driftline/driftbot/internal/domain"
)

const heartbeatPeriod = 30 * time.Second

// Recorder drains fills from the pipeline into the configured sinks on its
// own goroutine. Record never blocks: when the buffer is full the fill is
// dropped and counted, so journaling backpressure cannot reach the decision
// loop. Either sink may be nil.
type Recorder struct {
	sessionID string
	pg        *PGJournal
	bus       *TelemetryBus
	logger    *slog.Logger

	fills   chan domain.Fill
	written atomic.Int64
	dropped atomic.Int64
}

// NewRecorder builds a recorder for one session. buffer sizes the fill
// queue; 256 is plenty for paper sessions.
func NewRecorder(sessionID string, pg *PGJournal, bus *TelemetryBus, buffer int, logger *slog.Logger) *Recorder {
	if buffer <= 0 {
		buffer = 256
	}
	return &Recorder{
		sessionID: sessionID,
		pg:        pg,
		bus:       bus,
		logger:    logger.With(slog.String("component", "journal"), slog.String("session_id", sessionID)),
		fills:     make(chan domain.Fill, buffer),
	}
}

// Record enqueues a fill for journaling. Safe to call from the pipeline
// goroutine; drops rather than blocks when the queue is full.
func (r *Recorder) Record(ev domain.Event) {
	fill, ok := ev.(domain.Fill)
	if !ok {
		return
	}
	select {
	case r.fills <- fill:
	default:
		r.dropped.Add(1)
	}
}

// FillCount reports how many fills have been journaled so far.
func (r *Recorder) FillCount() int64 { return r.written.Load() }

// Run drains the queue until ctx is cancelled, then flushes what is already
// buffered before returning.
func (r *Recorder) Run(ctx context.Context) error {
	heartbeat := time.NewTicker(heartbeatPeriod)
	defer heartbeat.Stop()

	for {
		select {
		case fill := <-r.fills:
			r.write(ctx, fill)
		case <-heartbeat.C:
			if r.bus != nil {
				if err := r.bus.PublishHeartbeat(ctx, r.sessionID, r.written.Load()); err != nil {
					r.logger.Warn("heartbeat publish failed", slog.String("error", err.Error()))
				}
			}
		case <-ctx.Done():
			r.flush()
			if n := r.dropped.Load(); n > 0 {
				r.logger.Warn("fills dropped under journaling backpressure", slog.Int64("dropped", n))
			}
			return nil
		}
	}
}

// flush writes the remaining buffered fills with a bounded deadline, since
// the run context is already cancelled.
func (r *Recorder) flush() {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(context.Background()), 5*time.Second)
	defer cancel()
	for {
		select {
		case fill := <-r.fills:
			r.write(ctx, fill)
		default:
			return
		}
	}
}

func (r *Recorder) write(ctx context.Context, fill domain.Fill) {
	if r.pg != nil {
		if err := r.pg.InsertFill(ctx, r.sessionID, fill); err != nil {
			r.logger.Warn("fill insert failed",
				slog.Uint64("order_id", uint64(fill.OrderID)),
				slog.String("error", err.Error()),
			)
		}
	}
	if r.bus != nil {
		if err := r.bus.PublishFill(ctx, r.sessionID, fill); err != nil {
			r.logger.Warn("fill publish failed",
				slog.Uint64("order_id", uint64(fill.OrderID)),
				slog.String("error", err.Error()),
			)
		}
	}
	r.written.Add(1)
}

// WriteSummary persists the end-of-session record. Missing sinks are a
// no-op so paper runs without Postgres still shut down cleanly.
func (r *Recorder) WriteSummary(ctx context.Context, s SessionSummary) {
	if r.pg == nil {
		return
	}
	s.SessionID = r.sessionID
	s.FillCount = r.written.Load()
	if err := r.pg.InsertSummary(ctx, s); err != nil {
		r.logger.Warn("summary insert failed", slog.String("error", err.Error()))
	}
}
