// Package transport owns socket-level concerns: WebSocket connection
// lifecycle, reconnection with backoff, heartbeat, and request signing. The
// pipeline core never reconnects on its own; when this layer gives up, the
// stream ends and the engine shuts down.
package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	baseReconnectDelay = 2 * time.Second
	maxReconnectDelay  = 60 * time.Second
)

// WSStream maintains a subscribed WebSocket connection and delivers raw
// messages on a channel. Subscriptions are replayed after every reconnect.
// When reconnect attempts are exhausted the message channel closes and Err
// reports the last failure.
type WSStream struct {
	url        string
	maxRetries int
	logger     *slog.Logger

	mu   sync.Mutex
	subs []func() any
	conn *websocket.Conn
	err  error

	msgs chan []byte
}

// NewWSStream creates a stream for url. maxRetries bounds consecutive
// reconnect attempts; zero means a single connection with no retry.
func NewWSStream(url string, maxRetries int, logger *slog.Logger) *WSStream {
	return &WSStream{
		url:        url,
		maxRetries: maxRetries,
		logger:     logger.With(slog.String("component", "ws_transport"), slog.String("url", url)),
		msgs:       make(chan []byte, 256),
	}
}

// Subscribe registers a subscription payload, sent on connect and re-sent
// after every reconnect. Call before Run.
func (s *WSStream) Subscribe(payload any) {
	s.SubscribeFunc(func() any { return payload })
}

// SubscribeFunc registers a payload generator evaluated at every connect.
// Authentication payloads carry expiry timestamps, so they must be rebuilt
// fresh for each reconnect rather than replayed verbatim.
func (s *WSStream) SubscribeFunc(fn func() any) {
	s.mu.Lock()
	s.subs = append(s.subs, fn)
	s.mu.Unlock()
}

// Messages returns the raw message channel. It closes when the stream ends.
func (s *WSStream) Messages() <-chan []byte { return s.msgs }

// Err reports the terminal stream error, nil after a clean shutdown.
func (s *WSStream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Run connects and pumps messages until ctx is cancelled or reconnects are
// exhausted. It always closes the message channel before returning.
func (s *WSStream) Run(ctx context.Context) {
	defer close(s.msgs)

	delay := baseReconnectDelay
	retries := 0

	for {
		err := s.runConnection(ctx)
		if ctx.Err() != nil {
			return
		}

		retries++
		if retries > s.maxRetries {
			s.mu.Lock()
			s.err = fmt.Errorf("transport: reconnect attempts exhausted: %w", err)
			s.mu.Unlock()
			s.logger.Error("websocket stream failed permanently", slog.String("error", err.Error()))
			return
		}

		s.logger.Warn("websocket disconnected, reconnecting",
			slog.String("error", err.Error()),
			slog.Int("attempt", retries),
			slog.Duration("delay", delay),
		)
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
		delay *= 2
		if delay > maxReconnectDelay {
			delay = maxReconnectDelay
		}
	}
}

// runConnection dials once, replays subscriptions, and pumps reads until
// the connection breaks or ctx ends.
func (s *WSStream) runConnection(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 15 * time.Second}
	conn, _, err := dialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return fmt.Errorf("transport: dial: %w", err)
	}
	defer conn.Close()

	s.mu.Lock()
	s.conn = conn
	subs := make([]func() any, len(s.subs))
	copy(subs, s.subs)
	s.mu.Unlock()

	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for _, fn := range subs {
		if err := s.writeJSON(conn, fn()); err != nil {
			return fmt.Errorf("transport: subscribe: %w", err)
		}
	}
	s.logger.Info("websocket connected", slog.Int("subscriptions", len(subs)))

	// Heartbeat pinger; stops when the read loop returns.
	pingDone := make(chan struct{})
	defer close(pingDone)
	go func() {
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-pingDone:
				return
			case <-ctx.Done():
				// Unblock the read loop promptly on shutdown.
				_ = conn.SetReadDeadline(time.Now())
				return
			case <-ticker.C:
				_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("transport: read: %w", err)
		}
		select {
		case s.msgs <- msg:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Send writes a JSON payload on the current connection.
func (s *WSStream) Send(payload any) error {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("transport: not connected")
	}
	return s.writeJSON(conn, payload)
}

func (s *WSStream) writeJSON(conn *websocket.Conn, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(websocket.TextMessage, data)
}
