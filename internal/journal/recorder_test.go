package journal

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftline/driftbot/internal/domain"
)

func testRecorder(buffer int) *Recorder {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewRecorder("session-1", nil, nil, buffer, logger)
}

func testFill(id uint64) domain.Fill {
	return domain.Fill{
		OrderID: domain.OrderID(id),
		Symbol:  "BTCUSDT",
		Side:    domain.SideBuy,
		Price:   decimal.NewFromInt(50000),
		Qty:     decimal.NewFromInt(1),
		Time:    time.Now(),
	}
}

func TestRecorder_CountsFillsWithNilSinks(t *testing.T) {
	r := testRecorder(8)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	r.Record(testFill(1))
	r.Record(testFill(2))
	r.Record(domain.PriceTick{Symbol: "BTCUSDT"}) // non-fill events are ignored

	cancel()
	require.NoError(t, <-done)
	assert.Equal(t, int64(2), r.FillCount())
}

func TestRecorder_DropsInsteadOfBlocking(t *testing.T) {
	// No Run loop draining: the buffer fills and further records drop.
	r := testRecorder(2)

	for i := 0; i < 5; i++ {
		r.Record(testFill(uint64(i)))
	}

	assert.Equal(t, int64(3), r.dropped.Load())
}
