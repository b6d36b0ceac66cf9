package bybit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/driftline/driftbot/internal/domain"
	"github.com/driftline/driftbot/internal/transport"
)

const privateURL = "wss://stream.bybit.com/v5/private"

// LinkResolver maps a client order link id back to an internal order id.
// The live executor provides it.
type LinkResolver interface {
	ResolveLink(linkID string) (domain.OrderID, bool)
}

// PrivateFeed consumes the authenticated execution stream and translates
// the bot's own executions into Fill events. Executions whose link id does
// not resolve belong to other clients on the same account and are skipped.
type PrivateFeed struct {
	stream  *transport.WSStream
	signer  *transport.Signer
	resolve LinkResolver
	logger  *slog.Logger

	mu  sync.Mutex
	err error
}

// NewPrivateFeed builds the execution feed. The auth payload is regenerated
// with a fresh expiry on every reconnect.
func NewPrivateFeed(url string, signer *transport.Signer, resolve LinkResolver, maxReconnects int, logger *slog.Logger) *PrivateFeed {
	if url == "" {
		url = privateURL
	}
	f := &PrivateFeed{
		stream:  transport.NewWSStream(url, maxReconnects, logger),
		signer:  signer,
		resolve: resolve,
		logger:  logger.With(slog.String("component", "bybit_private_feed")),
	}
	f.stream.SubscribeFunc(f.authRequest)
	f.stream.Subscribe(subscribeRequest{Op: "subscribe", Args: []string{"execution"}})
	return f
}

// authRequest signs "GET/realtime" concatenated with an expiry timestamp,
// the v5 WebSocket authentication scheme.
func (f *PrivateFeed) authRequest() any {
	expires := time.Now().Add(10 * time.Second).UnixMilli()
	payload := "GET/realtime" + strconv.FormatInt(expires, 10)
	return map[string]any{
		"op":   "auth",
		"args": []any{f.signer.APIKey(), expires, f.signer.Sign(payload)},
	}
}

type executionData struct {
	Symbol    string `json:"symbol"`
	Side      string `json:"side"`
	ExecQty   string `json:"execQty"`
	ExecPrice string `json:"execPrice"`
	ExecTime  string `json:"execTime"`
	LinkID    string `json:"orderLinkId"`
	IsMaker   bool   `json:"isMaker"`
}

// Stream connects and returns the translated fill channel.
func (f *PrivateFeed) Stream(ctx context.Context) (<-chan domain.Event, error) {
	events := make(chan domain.Event, 64)
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
			f.err = fmt.Errorf("bybit private feed: %w", err)
			f.mu.Unlock()
		}
	}()
	return events, nil
}

// Err reports why the stream ended, nil for a clean close.
func (f *PrivateFeed) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

func (f *PrivateFeed) translate(msg []byte) []domain.Event {
	var env envelope
	if err := json.Unmarshal(msg, &env); err != nil {
		f.logger.Warn("unparseable private message", slog.String("error", err.Error()))
		return nil
	}
	if !strings.HasPrefix(env.Topic, "execution") {
		return nil
	}

	var execs []executionData
	if err := json.Unmarshal(env.Data, &execs); err != nil {
		f.logger.Warn("bad execution payload", slog.String("error", err.Error()))
		return nil
	}

	events := make([]domain.Event, 0, len(execs))
	for _, ex := range execs {
		id, ok := f.resolve.ResolveLink(ex.LinkID)
		if !ok {
			continue
		}
		price, err1 := decimal.NewFromString(ex.ExecPrice)
		qty, err2 := decimal.NewFromString(ex.ExecQty)
		ms, err3 := strconv.ParseInt(ex.ExecTime, 10, 64)
		side, err4 := parseSide(ex.Side)
		if err1 != nil || err2 != nil || err3 != nil || err4 != nil {
			f.logger.Warn("bad execution fields", slog.String("order_link_id", ex.LinkID))
			continue
		}
		events = append(events, domain.Fill{
			OrderID: id,
			Symbol:  ex.Symbol,
			Side:    side,
			Price:   price,
			Qty:     qty,
			Maker:   ex.IsMaker,
			Time:    time.UnixMilli(ms),
		})
	}
	return events
}
