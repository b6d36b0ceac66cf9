package bybit

import (
	"io"
	"log/slog"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftline/driftbot/internal/domain"
)

func testFeed() *Feed {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewFeed("", "BTCUSDT", 50, 0, logger)
}

func TestTranslate_OrderbookSnapshot(t *testing.T) {
	f := testFeed()
	msg := []byte(`{
		"topic": "orderbook.50.BTCUSDT",
		"type": "snapshot",
		"ts": 1672304484978,
		"data": {
			"s": "BTCUSDT",
			"b": [["50000.5", "1.5"], ["49999", "2"]],
			"a": [["50001", "0.7"]],
			"u": 18521288,
			"seq": 7961638724
		}
	}`)

	events := f.translate(msg)
	require.Len(t, events, 1)

	snap, ok := events[0].(domain.BookSnapshot)
	require.True(t, ok)
	assert.Equal(t, "BTCUSDT", snap.Symbol)
	require.Len(t, snap.Bids, 2)
	require.Len(t, snap.Asks, 1)
	assert.True(t, snap.Bids[0].Price.Equal(decimal.RequireFromString("50000.5")))
	assert.True(t, snap.Asks[0].Qty.Equal(decimal.RequireFromString("0.7")))
	assert.Equal(t, int64(1672304484978), snap.Time.UnixMilli())
}

func TestTranslate_OrderbookDeltaFansOutPerLevel(t *testing.T) {
	f := testFeed()
	msg := []byte(`{
		"topic": "orderbook.50.BTCUSDT",
		"type": "delta",
		"ts": 1672304484978,
		"data": {
			"s": "BTCUSDT",
			"b": [["50000", "0"], ["49999", "3"]],
			"a": [["50001", "1"]],
			"u": 18521289,
			"seq": 7961638725
		}
	}`)

	events := f.translate(msg)
	require.Len(t, events, 3)

	removal, ok := events[0].(domain.BookDelta)
	require.True(t, ok)
	assert.Equal(t, domain.SideBuy, removal.Side)
	assert.True(t, removal.Qty.IsZero(), "zero qty removes the level")

	ask := events[2].(domain.BookDelta)
	assert.Equal(t, domain.SideSell, ask.Side)
	assert.True(t, ask.Price.Equal(decimal.RequireFromString("50001")))
}

func TestTranslate_PublicTrade(t *testing.T) {
	f := testFeed()
	msg := []byte(`{
		"topic": "publicTrade.BTCUSDT",
		"type": "snapshot",
		"ts": 1672304486868,
		"data": [
			{"T": 1672304486865, "s": "BTCUSDT", "S": "Buy", "v": "0.001", "p": "16578.50", "i": "20f43950-d8dd-5b31-9112-a178eb6023af"},
			{"T": 1672304486866, "s": "BTCUSDT", "S": "Sell", "v": "0.5", "p": "16578.00", "i": "3d6cb9a0-0358-5f60-b64e-cf4b7ad3fa2a"}
		]
	}`)

	events := f.translate(msg)
	require.Len(t, events, 2)

	first, ok := events[0].(domain.Trade)
	require.True(t, ok)
	assert.Equal(t, domain.SideBuy, first.Side, "S is the taker side")
	assert.True(t, first.Price.Equal(decimal.RequireFromString("16578.50")))
	assert.True(t, first.Qty.Equal(decimal.RequireFromString("0.001")))
	assert.Equal(t, int64(1672304486865), first.Time.UnixMilli())

	second := events[1].(domain.Trade)
	assert.Equal(t, domain.SideSell, second.Side)
}

func TestTranslate_Ticker(t *testing.T) {
	f := testFeed()
	msg := []byte(`{
		"topic": "tickers.BTCUSDT",
		"type": "snapshot",
		"ts": 1673272861686,
		"data": {"symbol": "BTCUSDT", "lastPrice": "16597.00"}
	}`)

	events := f.translate(msg)
	require.Len(t, events, 1)

	tick, ok := events[0].(domain.PriceTick)
	require.True(t, ok)
	assert.True(t, tick.Price.Equal(decimal.RequireFromString("16597.00")))
}

func TestTranslate_TickerDeltaWithoutPriceIsSkipped(t *testing.T) {
	f := testFeed()
	msg := []byte(`{
		"topic": "tickers.BTCUSDT",
		"type": "delta",
		"ts": 1673272861686,
		"data": {"symbol": "BTCUSDT"}
	}`)

	assert.Empty(t, f.translate(msg))
}

func TestTranslate_MalformedAndUnknownMessages(t *testing.T) {
	f := testFeed()

	assert.Empty(t, f.translate([]byte(`not json`)))
	assert.Empty(t, f.translate([]byte(`{"op": "subscribe", "success": true}`)))
	assert.Empty(t, f.translate([]byte(`{
		"topic": "orderbook.50.BTCUSDT",
		"type": "snapshot",
		"ts": 1,
		"data": {"s": "BTCUSDT", "b": [["bad", "1"]], "a": []}
	}`)))
}
