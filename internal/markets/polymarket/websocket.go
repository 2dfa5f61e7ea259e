package polymarket

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	DefaultWSURL = "wss://ws-subscriptions-clob.polymarket.com/ws/market"

	handshakeTimeout = 30 * time.Second
	closeTimeout     = 5 * time.Second
	writeTimeout     = 10 * time.Second
	pingInterval     = 50 * time.Second
)

// Stream is a realtime subscription to the CLOB market channel. The poller
// covers breadth; the stream cuts latency on the markets already being
// watched.
type Stream struct {
	conn     *websocket.Conn
	stopPing chan struct{}
}

type marketSubscription struct {
	AssetsIDs []string `json:"assets_ids"`
	Type      string   `json:"type"`
}

// LastTradePrice is the trade event the monitor consumes. Numeric fields
// arrive as strings on the wire.
type LastTradePrice struct {
	AssetID   string `json:"asset_id"`
	Market    string `json:"market"`
	Price     string `json:"price"`
	Side      string `json:"side"`
	Size      string `json:"size"`
	Timestamp string `json:"timestamp"`
}

type streamEvent struct {
	EventType string `json:"event_type"`
}

func DialStream(ctx context.Context, wsURL string) (*Stream, error) {
	if wsURL == "" {
		wsURL = DefaultWSURL
	}
	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, wsURL, http.Header{})
	if err != nil {
		return nil, fmt.Errorf("couldn't connect to market stream: %w", err)
	}

	s := &Stream{conn: conn, stopPing: make(chan struct{})}
	go s.pingLoop()
	return s, nil
}

func (s *Stream) pingLoop() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopPing:
			return
		case <-ticker.C:
			deadline := time.Now().Add(writeTimeout)
			if err := s.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}
		}
	}
}

// Subscribe registers interest in the given asset (token) IDs.
func (s *Stream) Subscribe(ctx context.Context, tokenIDs []string) error {
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(writeTimeout)
	}
	_ = s.conn.SetWriteDeadline(deadline)
	return s.conn.WriteJSON(marketSubscription{AssetsIDs: tokenIDs, Type: "market"})
}

// ReadTrade blocks until the next last_trade_price event, skipping other
// event types. Returns the ctx error when cancelled.
func (s *Stream) ReadTrade(ctx context.Context) (*LastTradePrice, error) {
	type result struct {
		raw []byte
		err error
	}
	for {
		resultCh := make(chan result, 1)
		go func() {
			_, msg, err := s.conn.ReadMessage()
			resultCh <- result{raw: msg, err: err}
		}()

		select {
		case <-ctx.Done():
			_ = s.conn.SetReadDeadline(time.Now())
			return nil, fmt.Errorf("reading trade event: %w", ctx.Err())
		case r := <-resultCh:
			if r.err != nil {
				return nil, fmt.Errorf("couldn't read stream message: %w", r.err)
			}
			var ev streamEvent
			if err := json.Unmarshal(r.raw, &ev); err != nil {
				return nil, fmt.Errorf("couldn't parse stream message: %w", err)
			}
			if ev.EventType != "last_trade_price" {
				continue
			}
			var t LastTradePrice
			if err := json.Unmarshal(r.raw, &t); err != nil {
				return nil, fmt.Errorf("couldn't parse trade event: %w", err)
			}
			return &t, nil
		}
	}
}

func (s *Stream) Close(ctx context.Context) error {
	close(s.stopPing)

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(closeTimeout)
	}
	_ = s.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		deadline,
	)
	return s.conn.Close()
}
