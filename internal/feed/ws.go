// Package feed consumes the Binance market-data websocket and hands typed
// messages to a caller-supplied handler. It owns reconnection, keep-alive
// and subscription restore; it never interprets market semantics.
package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Fuuurma/FinanceHub-sub000/internal/domain"
)

const (
	// writeWait is the time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// pongWait is the time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// pingPeriod sends pings to the peer at this interval. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// reconnectDelay is the base delay before attempting to reconnect.
	reconnectDelay = 2 * time.Second

	// maxReconnectDelay caps the exponential backoff for reconnection.
	maxReconnectDelay = 60 * time.Second

	// stableConnWindow is how long a connection must survive before the
	// accumulated reconnect backoff resets to the base delay.
	stableConnWindow = 30 * time.Second

	handshakeTimeout = 15 * time.Second
)

// MessageHandler receives each decoded market-data message. It is called
// from the feed's read loop and must not block.
type MessageHandler func(symbol string, msg domain.Message)

// Stats are cumulative feed counters.
type Stats struct {
	MessagesReceived uint64 `json:"messages_received"`
	Malformed        uint64 `json:"malformed"`
	Reconnects       uint64 `json:"reconnects"`
}

// subscribeCommand is the frame Binance expects on the stream socket.
type subscribeCommand struct {
	Method string   `json:"method"`
	Params []string `json:"params"`
	ID     int64    `json:"id"`
}

// BinanceWS streams depth diffs, trades and aggregate trades for a fixed
// set of symbols over one combined-stream connection.
type BinanceWS struct {
	wsURL   string
	streams []string
	handler MessageHandler
	logger  *slog.Logger

	closeOnce sync.Once
	done      chan struct{}

	cmdID atomic.Int64

	received   atomic.Uint64
	malformed  atomic.Uint64
	reconnects atomic.Uint64
}

// NewBinanceWS builds a feed for the given symbols. wsURL is the combined
// stream endpoint, e.g. "wss://stream.binance.com:9443/stream". Each symbol
// subscribes to depth@100ms, trade and aggTrade.
func NewBinanceWS(wsURL string, symbols []string, handler MessageHandler, logger *slog.Logger) *BinanceWS {
	streams := make([]string, 0, len(symbols)*3)
	for _, sym := range symbols {
		lower := strings.ToLower(sym)
		streams = append(streams,
			lower+"@depth@100ms",
			lower+"@trade",
			lower+"@aggTrade",
		)
	}
	return &BinanceWS{
		wsURL:   wsURL,
		streams: streams,
		handler: handler,
		logger:  logger.With(slog.String("component", "binance_ws")),
		done:    make(chan struct{}),
	}
}

// Run connects, subscribes and pumps messages until ctx is cancelled or
// Close is called. Disconnects trigger reconnection with exponential
// backoff; the subscription set is restored on every new connection.
func (f *BinanceWS) Run(ctx context.Context) error {
	if len(f.streams) == 0 {
		f.logger.Info("no streams to subscribe, exiting")
		return nil
	}

	var backoff reconnectBackoff
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-f.done:
			return nil
		default:
		}

		start := time.Now()
		err := f.runConnection(ctx)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		select {
		case <-f.done:
			return nil
		default:
		}

		delay := backoff.next(time.Since(start))
		f.reconnects.Add(1)
		f.logger.Warn("binance ws disconnected, reconnecting",
			slog.String("error", err.Error()),
			slog.Duration("delay", delay))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-f.done:
			return nil
		case <-time.After(delay):
		}
	}
}

// reconnectBackoff is the exponential reconnect delay. Each short-lived
// connection doubles it up to maxReconnectDelay; a connection that survives
// stableConnWindow resets it to the base delay.
type reconnectBackoff struct {
	delay time.Duration
}

func (b *reconnectBackoff) next(connectedFor time.Duration) time.Duration {
	if b.delay == 0 || connectedFor >= stableConnWindow {
		b.delay = reconnectDelay
		return b.delay
	}
	b.delay *= 2
	if b.delay > maxReconnectDelay {
		b.delay = maxReconnectDelay
	}
	return b.delay
}

// Close stops the feed. Safe to call more than once.
func (f *BinanceWS) Close() {
	f.closeOnce.Do(func() { close(f.done) })
}

// Stats reports cumulative counters.
func (f *BinanceWS) Stats() Stats {
	return Stats{
		MessagesReceived: f.received.Load(),
		Malformed:        f.malformed.Load(),
		Reconnects:       f.reconnects.Load(),
	}
}

// runConnection owns one websocket connection end to end: dial, subscribe,
// ping loop, read loop. It returns nil only on clean shutdown.
func (f *BinanceWS) runConnection(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, f.wsURL, nil)
	if err != nil {
		return fmt.Errorf("feed: connect: %w", err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	// Binance pings from the server side; answer and extend the deadline.
	conn.SetPingHandler(func(payload string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		return conn.WriteMessage(websocket.PongMessage, []byte(payload))
	})

	if err := f.subscribe(conn); err != nil {
		return err
	}
	f.logger.Info("binance ws subscribed", slog.Int("streams", len(f.streams)))

	// connDone tears the connection down when ctx or Close fires, which
	// unblocks the read loop below.
	connDone := make(chan struct{})
	defer close(connDone)
	go func() {
		select {
		case <-ctx.Done():
		case <-f.done:
		case <-connDone:
			return
		}
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeWait))
		conn.Close()
	}()
	go f.pingLoop(conn, connDone)

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-f.done:
				return nil
			default:
			}
			return fmt.Errorf("feed: read: %w: %v", domain.ErrWSDisconnect, err)
		}
		f.dispatch(raw)
	}
}

func (f *BinanceWS) subscribe(conn *websocket.Conn) error {
	cmd := subscribeCommand{
		Method: "SUBSCRIBE",
		Params: f.streams,
		ID:     f.cmdID.Add(1),
	}
	data, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("feed: marshal subscribe: %w", err)
	}
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("feed: subscribe: %w", err)
	}
	return nil
}

func (f *BinanceWS) pingLoop(conn *websocket.Conn, connDone <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-f.done:
			return
		case <-connDone:
			return
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// dispatch decodes one frame and forwards it. Malformed frames are counted
// and logged at debug level; the stream is never torn down over one bad frame.
func (f *BinanceWS) dispatch(raw []byte) {
	f.received.Add(1)

	symbol, msg, err := Decode(raw)
	if err != nil {
		f.malformed.Add(1)
		if errors.Is(err, domain.ErrMalformedMessage) {
			f.logger.Debug("malformed frame dropped", slog.String("error", err.Error()))
			return
		}
		f.logger.Warn("frame decode failed", slog.String("error", err.Error()))
		return
	}
	if msg == nil || symbol == "" {
		return
	}
	if f.handler != nil {
		f.handler(symbol, msg)
	}
}
