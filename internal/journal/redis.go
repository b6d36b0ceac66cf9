package journal

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/driftline/driftbot/internal/domain"
)

// streamMaxLen caps the telemetry stream length, enforced via XADD MAXLEN ~.
const streamMaxLen int64 = 10000

// RedisConfig holds connection parameters for the telemetry bus.
type RedisConfig struct {
	Addr       string
	Password   string
	DB         int
	TLSEnabled bool
}

// TelemetryBus publishes fill telemetry over Redis: Pub/Sub for live
// subscribers, a capped Stream for short-term replay.
type TelemetryBus struct {
	rdb *redis.Client
}

// NewTelemetryBus connects and pings the Redis endpoint.
func NewTelemetryBus(ctx context.Context, cfg RedisConfig) (*TelemetryBus, error) {
	opts := &redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
	if cfg.TLSEnabled {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("telemetry: ping: %w", err)
	}
	return &TelemetryBus{rdb: rdb}, nil
}

// Close releases the client.
func (b *TelemetryBus) Close() error { return b.rdb.Close() }

// fillMessage is the wire shape of a published fill.
type fillMessage struct {
	SessionID string `json:"session_id"`
	OrderID   uint64 `json:"order_id"`
	Symbol    string `json:"symbol"`
	Side      string `json:"side"`
	Price     string `json:"price"`
	Qty       string `json:"qty"`
	Maker     bool   `json:"maker"`
	Time      int64  `json:"time_ms"`
}

// PublishFill pushes a fill to the pub/sub channel and the capped stream.
func (b *TelemetryBus) PublishFill(ctx context.Context, sessionID string, f domain.Fill) error {
	msg := fillMessage{
		SessionID: sessionID,
		OrderID:   uint64(f.OrderID),
		Symbol:    f.Symbol,
		Side:      string(f.Side),
		Price:     f.Price.String(),
		Qty:       f.Qty.String(),
		Maker:     f.Maker,
		Time:      f.Time.UnixMilli(),
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("telemetry: marshal fill: %w", err)
	}

	channel := "driftbot:fills:" + f.Symbol
	if err := b.rdb.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("telemetry: publish %s: %w", channel, err)
	}
	if err := b.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: "driftbot:fills",
		MaxLen: streamMaxLen,
		Approx: true,
		Values: map[string]any{"payload": payload},
	}).Err(); err != nil {
		return fmt.Errorf("telemetry: xadd: %w", err)
	}
	return nil
}

// PublishHeartbeat reports the session is alive with its fill count.
func (b *TelemetryBus) PublishHeartbeat(ctx context.Context, sessionID string, fills int64) error {
	payload, err := json.Marshal(map[string]any{
		"session_id": sessionID,
		"fills":      fills,
		"time_ms":    time.Now().UnixMilli(),
	})
	if err != nil {
		return fmt.Errorf("telemetry: marshal heartbeat: %w", err)
	}
	if err := b.rdb.Publish(ctx, "driftbot:heartbeat", payload).Err(); err != nil {
		return fmt.Errorf("telemetry: publish heartbeat: %w", err)
	}
	return nil
}
