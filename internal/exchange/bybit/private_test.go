package bybit

import (
	"io"
	"log/slog"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftline/driftbot/internal/domain"
	"github.com/driftline/driftbot/internal/transport"
)

type mapResolver map[string]domain.OrderID

func (m mapResolver) ResolveLink(linkID string) (domain.OrderID, bool) {
	id, ok := m[linkID]
	return id, ok
}

func TestPrivateFeed_TranslatesOwnExecutions(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	resolver := mapResolver{"link-1": 7}
	f := NewPrivateFeed("", transport.NewSigner("k", "s"), resolver, 0, logger)

	msg := []byte(`{
		"topic": "execution",
		"ts": 1672364174455,
		"data": [
			{"symbol": "BTCUSDT", "side": "Buy", "execQty": "0.01", "execPrice": "16600", "execTime": "1672364174443", "orderLinkId": "link-1", "isMaker": true},
			{"symbol": "BTCUSDT", "side": "Sell", "execQty": "1", "execPrice": "16700", "execTime": "1672364174444", "orderLinkId": "someone-else", "isMaker": false}
		]
	}`)

	events := f.translate(msg)
	require.Len(t, events, 1, "foreign executions are skipped")

	fill, ok := events[0].(domain.Fill)
	require.True(t, ok)
	assert.Equal(t, domain.OrderID(7), fill.OrderID)
	assert.Equal(t, domain.SideBuy, fill.Side)
	assert.True(t, fill.Price.Equal(decimal.RequireFromString("16600")))
	assert.True(t, fill.Qty.Equal(decimal.RequireFromString("0.01")))
	assert.True(t, fill.Maker)
	assert.Equal(t, int64(1672364174443), fill.Time.UnixMilli())
}

func TestPrivateFeed_IgnoresNonExecutionTopics(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f := NewPrivateFeed("", transport.NewSigner("k", "s"), mapResolver{}, 0, logger)

	assert.Empty(t, f.translate([]byte(`{"op": "auth", "success": true}`)))
	assert.Empty(t, f.translate([]byte(`{"topic": "order", "ts": 1, "data": []}`)))
}
