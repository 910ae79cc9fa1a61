// Package transport implements the duplex message channel the core
// consumes: recv the next inbound frame, send an outbound frame, close.
// Reconnection, ping/pong keepalive and backoff are the transport's
// responsibility; the core only ever sees a frame stream and, on
// reconnect, treats the next snapshot as the authoritative re-seed.
//
// Grounded on BullionBear's pkg/wsapi BinanceWSClient: same gorilla/
// websocket dial, ping/pong handler and exponential-backoff reconnect loop,
// rebuilt around a pull-based Recv instead of a push callback so the core
// can suspend on "awaiting next inbound frame" the way the concurrency
// model requires, and carrying a re-subscribe hook instead of the
// Binance-specific ED25519 session logon (out of scope for a market-data
// feed).
package transport

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/BullionBear/marketfeed/pkg/logger"
)

// ErrClosed is returned by Send/Recv once the transport has been closed.
var ErrClosed = errors.New("transport: closed")

// Transport is the collaborator interface the core depends on.
type Transport interface {
	// Recv blocks for the next inbound frame. ok is false once the
	// transport is closed and no more frames will arrive.
	Recv(ctx context.Context) (frame []byte, ok bool, err error)
	// Send writes an outbound frame.
	Send(ctx context.Context, frame []byte) error
	// Close tears down the connection. Idempotent.
	Close() error
}

// Option configures a WSTransport at construction time.
type Option func(*WSTransport)

// WithBackoff sets the reconnect backoff bounds.
func WithBackoff(base, max time.Duration) Option {
	return func(t *WSTransport) {
		t.backoffBase = base
		t.backoffMax = max
	}
}

// WithResubscribe registers the frames to resend immediately after a
// reconnect, supplied by the subscription builder collaborator.
func WithResubscribe(frames func() [][]byte) Option {
	return func(t *WSTransport) {
		t.resubscribe = frames
	}
}

// WithReadDeadline overrides the inbound idle timeout before a connection
// is considered dead.
func WithReadDeadline(d time.Duration) Option {
	return func(t *WSTransport) {
		t.readDeadline = d
	}
}

// WSTransport is the reference Transport implementation, dialing one
// gorilla/websocket connection and transparently reconnecting it.
type WSTransport struct {
	id     uuid.UUID
	url    string
	dialer websocket.Dialer
	log    zerolog.Logger

	backoffBase  time.Duration
	backoffMax   time.Duration
	readDeadline time.Duration
	resubscribe  func() [][]byte

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	connMu sync.Mutex
	conn   *websocket.Conn

	incoming chan []byte

	closedMu sync.RWMutex
	closed   bool
}

// Dial establishes the initial connection and starts the background read
// loop. The returned WSTransport owns that connection until Close.
func Dial(ctx context.Context, endpoint string, opts ...Option) (*WSTransport, error) {
	if _, err := url.Parse(endpoint); err != nil {
		return nil, fmt.Errorf("transport: invalid endpoint: %w", err)
	}

	tctx, cancel := context.WithCancel(ctx)
	t := &WSTransport{
		id:           uuid.New(),
		url:          endpoint,
		dialer:       websocket.Dialer{},
		backoffBase:  time.Second,
		backoffMax:   30 * time.Second,
		readDeadline: 65 * time.Second,
		ctx:          tctx,
		cancel:       cancel,
		incoming:     make(chan []byte, 256),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.log = logger.Component("transport").With().Str("connection_id", t.id.String()).Logger()

	if err := t.connect(); err != nil {
		cancel()
		return nil, err
	}

	t.wg.Add(1)
	go t.readLoop()

	return t, nil
}

func (t *WSTransport) connect() error {
	dialCtx, dialCancel := context.WithTimeout(t.ctx, 10*time.Second)
	defer dialCancel()

	conn, _, err := t.dialer.DialContext(dialCtx, t.url, nil)
	if err != nil {
		return fmt.Errorf("transport: dial: %w", err)
	}

	t.connMu.Lock()
	t.conn = conn
	t.connMu.Unlock()

	t.setupKeepalive(conn)
	t.resetReadDeadline(conn)
	return nil
}

func (t *WSTransport) setupKeepalive(conn *websocket.Conn) {
	conn.SetPingHandler(func(appData string) error {
		err := conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(5*time.Second))
		t.resetReadDeadline(conn)
		return err
	})
	conn.SetPongHandler(func(string) error {
		t.resetReadDeadline(conn)
		return nil
	})
}

func (t *WSTransport) resetReadDeadline(conn *websocket.Conn) {
	conn.SetReadDeadline(time.Now().Add(t.readDeadline))
}

func (t *WSTransport) readLoop() {
	defer t.wg.Done()
	defer close(t.incoming)

	for {
		if t.isClosed() {
			return
		}

		t.connMu.Lock()
		conn := t.conn
		t.connMu.Unlock()

		_, msg, err := conn.ReadMessage()
		if err != nil {
			if t.isClosed() {
				return
			}
			t.log.Warn().Err(err).Msg("read error, attempting reconnect")
			if reconnectErr := t.reconnectWithBackoff(); reconnectErr != nil {
				t.log.Warn().Err(reconnectErr).Msg("reconnect aborted")
				return
			}
			continue
		}

		select {
		case t.incoming <- msg:
		case <-t.ctx.Done():
			return
		}
	}
}

func (t *WSTransport) reconnectWithBackoff() error {
	backoff := t.backoffBase

	for {
		select {
		case <-t.ctx.Done():
			return ErrClosed
		default:
		}

		t.log.Info().Dur("backoff", backoff).Msg("reconnecting")
		select {
		case <-t.ctx.Done():
			return ErrClosed
		case <-time.After(backoff):
		}

		if err := t.connect(); err != nil {
			t.log.Warn().Err(err).Msg("reconnect attempt failed")
			backoff *= 2
			if backoff > t.backoffMax {
				backoff = t.backoffMax
			}
			continue
		}

		if t.resubscribe != nil {
			for _, frame := range t.resubscribe() {
				if err := t.Send(t.ctx, frame); err != nil {
					t.log.Warn().Err(err).Msg("resubscribe frame failed")
				}
			}
		}

		t.log.Info().Msg("reconnected")
		return nil
	}
}

// Recv returns the next inbound frame. ok is false once the connection has
// been closed and no further frames will arrive.
func (t *WSTransport) Recv(ctx context.Context) ([]byte, bool, error) {
	select {
	case msg, ok := <-t.incoming:
		return msg, ok, nil
	case <-ctx.Done():
		return nil, false, ctx.Err()
	}
}

// Send writes an outbound frame.
func (t *WSTransport) Send(ctx context.Context, frame []byte) error {
	if t.isClosed() {
		return ErrClosed
	}
	t.connMu.Lock()
	conn := t.conn
	t.connMu.Unlock()
	if conn == nil {
		return ErrClosed
	}
	errCh := make(chan error, 1)
	go func() { errCh <- conn.WriteMessage(websocket.TextMessage, frame) }()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close tears down the connection and stops the read loop. Idempotent.
func (t *WSTransport) Close() error {
	t.closedMu.Lock()
	if t.closed {
		t.closedMu.Unlock()
		return nil
	}
	t.closed = true
	t.closedMu.Unlock()

	t.cancel()
	t.wg.Wait()

	t.connMu.Lock()
	defer t.connMu.Unlock()
	if t.conn != nil {
		return t.conn.Close()
	}
	return nil
}

func (t *WSTransport) isClosed() bool {
	t.closedMu.RLock()
	defer t.closedMu.RUnlock()
	return t.closed
}
