package polymarket

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tidefall-labs/polytrader/internal/domain"
)

const (
	// writeWait is the time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// pongWait is the time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// pingPeriod sends pings to the peer at this interval. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
)

// BookHandler is called with the top-of-book snapshot derived from a full
// orderbook frame.
type BookHandler func(domain.OrderbookSnapshot)

// PriceChangeHandler is called for every incremental price-change frame.
type PriceChangeHandler func(PriceChangeMessage)

// ConnHandler is called on connection state transitions. up is true after a
// successful (re)connect and false after a read failure.
type ConnHandler func(up bool)

// WSClient is a WebSocket client for the Polymarket CLOB market feed. It
// manages the connection lifecycle, replays the live subscription set after
// every reconnect, and dispatches decoded frames to registered handlers.
type WSClient struct {
	wsURL         string
	reconnectBase time.Duration
	reconnectMax  time.Duration
	logger        *slog.Logger

	mu     sync.RWMutex
	conn   *websocket.Conn
	closed bool

	// Asset IDs to (re)subscribe; replayed on every connect.
	assets map[string]struct{}

	handlerMu     sync.RWMutex
	bookHandlers  []BookHandler
	priceHandlers []PriceChangeHandler
	connHandlers  []ConnHandler

	// done is closed when the client is shut down.
	done chan struct{}
}

// NewWSClient creates a new WebSocket client for the given market-feed URL,
// e.g. "wss://ws-subscriptions-clob.polymarket.com/ws/market".
func NewWSClient(wsURL string, reconnectBase, reconnectMax time.Duration, logger *slog.Logger) *WSClient {
	if reconnectBase <= 0 {
		reconnectBase = 2 * time.Second
	}
	if reconnectMax < reconnectBase {
		reconnectMax = time.Minute
	}
	return &WSClient{
		wsURL:         wsURL,
		reconnectBase: reconnectBase,
		reconnectMax:  reconnectMax,
		logger:        logger.With(slog.String("component", "polymarket_ws")),
		assets:        make(map[string]struct{}),
		done:          make(chan struct{}),
	}
}

// Connect establishes the WebSocket connection and replays the tracked
// subscription set.
func (w *WSClient) Connect(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return fmt.Errorf("polymarket/ws: %w", domain.ErrWSDisconnect)
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: 15 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, w.wsURL, nil)
	if err != nil {
		return fmt.Errorf("polymarket/ws: connect: %w", err)
	}

	w.conn = conn

	// Set up pong handler for keep-alive.
	w.conn.SetReadDeadline(time.Now().Add(pongWait))
	w.conn.SetPongHandler(func(string) error {
		w.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	// Start the read loop and ping loop.
	go w.readLoop(conn)
	go w.pingLoop(conn)

	// Replay the live subscription set. Re-subscribing a token that is
	// already subscribed is idempotent on the server side.
	if len(w.assets) > 0 {
		if err := w.sendCommand(subscribeCommand(w.assetList())); err != nil {
			return fmt.Errorf("polymarket/ws: restore subscriptions: %w", err)
		}
	}

	w.notifyConn(true)
	return nil
}

// Subscribe adds asset IDs to the tracked set and subscribes them on the
// live connection.
func (w *WSClient) Subscribe(assetIDs []string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, id := range assetIDs {
		w.assets[id] = struct{}{}
	}

	if w.conn == nil {
		return nil // tracked; sent on next connect
	}
	return w.sendCommand(subscribeCommand(assetIDs))
}

// Unsubscribe removes asset IDs from the tracked set and unsubscribes them
// on the live connection.
func (w *WSClient) Unsubscribe(assetIDs []string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, id := range assetIDs {
		delete(w.assets, id)
	}

	if w.conn == nil {
		return nil
	}
	return w.sendCommand(WSCommand{Type: "unsubscribe", Channel: "market", Assets: assetIDs})
}

// Close shuts down the WebSocket connection and stops the read loop.
func (w *WSClient) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}

	w.closed = true
	close(w.done)

	if w.conn != nil {
		_ = w.conn.WriteMessage(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		)
		return w.conn.Close()
	}

	return nil
}

// OnBook registers a handler called for every full orderbook snapshot.
func (w *WSClient) OnBook(handler BookHandler) {
	w.handlerMu.Lock()
	defer w.handlerMu.Unlock()
	w.bookHandlers = append(w.bookHandlers, handler)
}

// OnPriceChange registers a handler called for every incremental update.
func (w *WSClient) OnPriceChange(handler PriceChangeHandler) {
	w.handlerMu.Lock()
	defer w.handlerMu.Unlock()
	w.priceHandlers = append(w.priceHandlers, handler)
}

// OnConnChange registers a handler called on connect and disconnect.
func (w *WSClient) OnConnChange(handler ConnHandler) {
	w.handlerMu.Lock()
	defer w.handlerMu.Unlock()
	w.connHandlers = append(w.connHandlers, handler)
}

// --------------------------------------------------------------------------
// Internal methods
// --------------------------------------------------------------------------

func subscribeCommand(assetIDs []string) WSCommand {
	return WSCommand{Type: "subscribe", Channel: "market", Assets: assetIDs}
}

// assetList snapshots the tracked asset set. Caller must hold w.mu.
func (w *WSClient) assetList() []string {
	out := make([]string, 0, len(w.assets))
	for id := range w.assets {
		out = append(out, id)
	}
	return out
}

// sendCommand sends a JSON command to the WebSocket. Caller must hold w.mu.
func (w *WSClient) sendCommand(cmd WSCommand) error {
	w.conn.SetWriteDeadline(time.Now().Add(writeWait))

	data, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("marshal command: %w", err)
	}

	return w.conn.WriteMessage(websocket.TextMessage, data)
}

func (w *WSClient) notifyConn(up bool) {
	w.handlerMu.RLock()
	handlers := w.connHandlers
	w.handlerMu.RUnlock()
	for _, h := range handlers {
		h(up)
	}
}

// readLoop continuously reads frames from the WebSocket and dispatches them.
// On disconnect it notifies handlers and attempts to reconnect with
// exponential backoff; the new connection starts its own readLoop.
func (w *WSClient) readLoop(conn *websocket.Conn) {
	defer conn.Close()

	for {
		select {
		case <-w.done:
			return
		default:
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-w.done:
				return
			default:
			}

			w.logger.Warn("websocket read failed, reconnecting", slog.String("error", err.Error()))
			w.notifyConn(false)
			w.reconnect()
			return
		}

		w.handleFrame(message)
	}
}

// pingLoop sends periodic ping messages to keep the WebSocket alive.
func (w *WSClient) pingLoop(conn *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleFrame parses one raw frame. The server may send a single JSON object
// or a batch (array) of objects; both are iterated identically. Empty and
// keepalive frames are silently discarded.
func (w *WSClient) handleFrame(raw []byte) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return
	}
	// Some keepalives arrive as bare text rather than JSON.
	if s := string(raw); s == "PONG" || s == "PING" {
		return
	}

	if raw[0] == '[' {
		var batch []json.RawMessage
		if err := json.Unmarshal(raw, &batch); err != nil {
			return // silently drop unparseable frames
		}
		for _, item := range batch {
			w.handleMessage(item)
		}
		return
	}

	w.handleMessage(raw)
}

// handleMessage routes one decoded frame object by its event type. Unknown
// types are logged at debug and ignored rather than treated as fatal.
func (w *WSClient) handleMessage(raw []byte) {
	var envelope WSMessage
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return
	}

	switch envelope.EventType {
	case "book":
		var book BookMessage
		if err := json.Unmarshal(raw, &book); err != nil {
			return
		}
		snap := BookToSnapshot(&book)

		w.handlerMu.RLock()
		handlers := w.bookHandlers
		w.handlerMu.RUnlock()

		for _, h := range handlers {
			h(snap)
		}

	case "price_change":
		var pc PriceChangeMessage
		if err := json.Unmarshal(raw, &pc); err != nil {
			return
		}

		w.handlerMu.RLock()
		handlers := w.priceHandlers
		w.handlerMu.RUnlock()

		for _, h := range handlers {
			h(pc)
		}

	case "subscribed", "connected", "pong", "heartbeat":
		// Acks and keepalives carry no book data.

	case "error":
		w.logger.Warn("feed error frame", slog.String("frame", string(raw)))

	default:
		w.logger.Debug("unhandled frame type", slog.String("event_type", envelope.EventType))
	}
}

// reconnect attempts to re-establish the WebSocket connection with
// exponential backoff. It blocks until successful or the client is closed.
func (w *WSClient) reconnect() {
	delay := w.reconnectBase

	for {
		select {
		case <-w.done:
			return
		case <-time.After(delay):
		}

		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		err := w.Connect(ctx)
		cancel()

		if err == nil {
			return
		}

		w.logger.Warn("reconnect attempt failed",
			slog.String("error", err.Error()),
			slog.Duration("next_delay", delay),
		)
		w.notifyConn(false)

		delay *= 2
		if delay > w.reconnectMax {
			delay = w.reconnectMax
		}
	}
}
