// Package bybit binds the pipeline to Bybit's v5 API: the public WebSocket
// feed as a Collector and the private REST order endpoints as an Executor.
package bybit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/driftline/driftbot/internal/domain"
	"github.com/driftline/driftbot/internal/transport"
)

const publicLinearURL = "wss://stream.bybit.com/v5/public/linear"

// Feed consumes Bybit v5 public WebSocket topics and translates them into
// domain events. One delta may carry several changed levels; the feed fans
// them out as individual BookDelta events in exchange order so downstream
// application stays per-level.
type Feed struct {
	symbol string
	depth  int
	stream *transport.WSStream
	logger *slog.Logger

	mu  sync.Mutex
	err error
}

// NewFeed subscribes to the orderbook, trade, and ticker topics for symbol.
// depth selects the orderbook topic granularity (Bybit supports 1, 50, 200).
func NewFeed(url, symbol string, depth, maxReconnects int, logger *slog.Logger) *Feed {
	if url == "" {
		url = publicLinearURL
	}
	f := &Feed{
		symbol: symbol,
		depth:  depth,
		stream: transport.NewWSStream(url, maxReconnects, logger),
		logger: logger.With(slog.String("component", "bybit_feed"), slog.String("symbol", symbol)),
	}
	f.stream.Subscribe(subscribeRequest{
		Op: "subscribe",
		Args: []string{
			fmt.Sprintf("orderbook.%d.%s", depth, symbol),
			fmt.Sprintf("publicTrade.%s", symbol),
			fmt.Sprintf("tickers.%s", symbol),
		},
	})
	return f
}

type subscribeRequest struct {
	Op   string   `json:"op"`
	Args []string `json:"args"`
}

// envelope is the common shape of a v5 public stream message.
type envelope struct {
	Topic string          `json:"topic"`
	Type  string          `json:"type"`
	Ts    int64           `json:"ts"`
	Data  json.RawMessage `json:"data"`
}

// orderbookData carries levels as [price, size] string pairs.
type orderbookData struct {
	Symbol string     `json:"s"`
	Bids   [][]string `json:"b"`
	Asks   [][]string `json:"a"`
	Update int64      `json:"u"`
	Seq    int64      `json:"seq"`
}

type tradeData struct {
	Time   int64  `json:"T"`
	Symbol string `json:"s"`
	Side   string `json:"S"`
	Size   string `json:"v"`
	Price  string `json:"p"`
	ID     string `json:"i"`
}

type tickerData struct {
	Symbol    string `json:"symbol"`
	LastPrice string `json:"lastPrice"`
}

// Stream connects the socket and returns the translated event channel. The
// channel closes when the transport gives up or ctx ends; Err then reports
// whether the close was clean.
func (f *Feed) Stream(ctx context.Context) (<-chan domain.Event, error) {
	events := make(chan domain.Event, 256)
	go f.stream.Run(ctx)
	go func() {
		defer close(events)
		for msg := range f.stream.Messages() {
			for _, ev := range f.translate(msg) {
				select {
				case events <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
		if err := f.stream.Err(); err != nil {
			f.mu.Lock()
			f.err = fmt.Errorf("bybit feed: %w", err)
			f.mu.Unlock()
		}
	}()
	return events, nil
}

// Err reports why the stream ended, nil for a clean close.
func (f *Feed) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

// translate maps one raw message to zero or more events. Malformed or
// unrecognized messages are logged and skipped; the feed never dies on
// content it cannot parse.
func (f *Feed) translate(msg []byte) []domain.Event {
	var env envelope
	if err := json.Unmarshal(msg, &env); err != nil {
		f.logger.Warn("unparseable feed message", slog.String("error", err.Error()))
		return nil
	}
	ts := time.UnixMilli(env.Ts)

	switch {
	case strings.HasPrefix(env.Topic, "orderbook."):
		return f.translateBook(env, ts)
	case strings.HasPrefix(env.Topic, "publicTrade."):
		return f.translateTrades(env)
	case strings.HasPrefix(env.Topic, "tickers."):
		return f.translateTicker(env, ts)
	default:
		return nil
	}
}

func (f *Feed) translateBook(env envelope, ts time.Time) []domain.Event {
	var data orderbookData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		f.logger.Warn("bad orderbook payload", slog.String("error", err.Error()))
		return nil
	}
	if env.Type == "snapshot" {
		bids, ok1 := parseLevels(data.Bids)
		asks, ok2 := parseLevels(data.Asks)
		if !ok1 || !ok2 {
			f.logger.Warn("bad snapshot level", slog.Int64("update", data.Update))
			return nil
		}
		return []domain.Event{domain.BookSnapshot{Symbol: data.Symbol, Bids: bids, Asks: asks, Time: ts}}
	}

	events := make([]domain.Event, 0, len(data.Bids)+len(data.Asks))
	for _, raw := range data.Bids {
		if d, ok := parseDelta(data.Symbol, domain.SideBuy, raw, ts); ok {
			events = append(events, d)
		}
	}
	for _, raw := range data.Asks {
		if d, ok := parseDelta(data.Symbol, domain.SideSell, raw, ts); ok {
			events = append(events, d)
		}
	}
	return events
}

func (f *Feed) translateTrades(env envelope) []domain.Event {
	var trades []tradeData
	if err := json.Unmarshal(env.Data, &trades); err != nil {
		f.logger.Warn("bad trade payload", slog.String("error", err.Error()))
		return nil
	}
	events := make([]domain.Event, 0, len(trades))
	for _, t := range trades {
		price, err1 := decimal.NewFromString(t.Price)
		qty, err2 := decimal.NewFromString(t.Size)
		side, err3 := parseSide(t.Side)
		if err1 != nil || err2 != nil || err3 != nil {
			f.logger.Warn("bad trade fields", slog.String("trade_id", t.ID))
			continue
		}
		events = append(events, domain.Trade{
			Symbol: t.Symbol,
			Side:   side,
			Price:  price,
			Qty:    qty,
			Time:   time.UnixMilli(t.Time),
		})
	}
	return events
}

func (f *Feed) translateTicker(env envelope, ts time.Time) []domain.Event {
	var data tickerData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		f.logger.Warn("bad ticker payload", slog.String("error", err.Error()))
		return nil
	}
	// Delta ticker frames may omit lastPrice.
	if data.LastPrice == "" {
		return nil
	}
	price, err := decimal.NewFromString(data.LastPrice)
	if err != nil {
		f.logger.Warn("bad ticker price", slog.String("last_price", data.LastPrice))
		return nil
	}
	return []domain.Event{domain.PriceTick{Symbol: data.Symbol, Price: price, Time: ts}}
}

func parseLevels(raw [][]string) ([]domain.BookLevel, bool) {
	levels := make([]domain.BookLevel, 0, len(raw))
	for _, pair := range raw {
		if len(pair) != 2 {
			return nil, false
		}
		price, err1 := decimal.NewFromString(pair[0])
		qty, err2 := decimal.NewFromString(pair[1])
		if err1 != nil || err2 != nil {
			return nil, false
		}
		levels = append(levels, domain.BookLevel{Price: price, Qty: qty})
	}
	return levels, true
}

func parseDelta(symbol string, side domain.Side, raw []string, ts time.Time) (domain.BookDelta, bool) {
	if len(raw) != 2 {
		return domain.BookDelta{}, false
	}
	price, err1 := decimal.NewFromString(raw[0])
	qty, err2 := decimal.NewFromString(raw[1])
	if err1 != nil || err2 != nil {
		return domain.BookDelta{}, false
	}
	return domain.BookDelta{Symbol: symbol, Side: side, Price: price, Qty: qty, Time: ts}, true
}

func parseSide(s string) (domain.Side, error) {
	switch s {
	case "Buy", "buy":
		return domain.SideBuy, nil
	case "Sell", "sell":
		return domain.SideSell, nil
	default:
		return domain.SideBuy, fmt.Errorf("bybit: unknown side %q", s)
	}
}
