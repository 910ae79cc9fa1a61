// Package marketfeed is a normalized real-time market-data ingestion
// library for cryptocurrency exchanges. It connects to one or more exchange
// WebSocket feeds, subscribes to per-instrument channels, and exposes a
// single merged stream of typed market events independent of which exchange
// produced them.
//
// The pieces that actually decide what to build are internal: the book
// maintenance pipeline (internal/book, internal/sequence, internal/updater,
// internal/decode, internal/transformer) is deliberately not part of this
// package's API surface. What's public here is the façade a caller drives:
// open connections, subscribe instruments, and read events off a Stream or
// register callbacks.
package marketfeed

import (
	"context"

	"github.com/BullionBear/marketfeed/internal/decode"
	"github.com/BullionBear/marketfeed/internal/driver"
	"github.com/BullionBear/marketfeed/internal/events"
	"github.com/BullionBear/marketfeed/internal/facade"
	"github.com/BullionBear/marketfeed/internal/instrument"
	"github.com/BullionBear/marketfeed/internal/sequence"
	"github.com/BullionBear/marketfeed/internal/transformer"
	"github.com/BullionBear/marketfeed/internal/transport"
)

// Re-exported domain vocabulary so callers never need to import internal/*.
type (
	Exchange       = instrument.Exchange
	InstrumentKind = instrument.Kind
	Symbol         = instrument.Symbol
	Instrument     = instrument.Instrument
	Side           = instrument.Side

	MarketEvent   = events.MarketEvent
	PublicTrade   = events.PublicTrade
	OrderBookL1   = events.OrderBookL1
	Result        = events.Result
	DataError     = events.DataError
	DataErrorKind = events.DataErrorKind

	OutputKind = transformer.OutputKind
)

const (
	ExchangeBybit   = instrument.ExchangeBybit
	ExchangeBinance = instrument.ExchangeBinance
	ExchangeOKX     = instrument.ExchangeOKX

	Spot      = instrument.Spot
	Perpetual = instrument.Perpetual
	Future    = instrument.Future
	Option    = instrument.Option

	OutputOrderBook   = transformer.OutputOrderBook
	OutputOrderBookL1 = transformer.OutputOrderBookL1
	OutputPublicTrade = transformer.OutputPublicTrade
)

// Family selects which sequence-validation state machine a subscription
// uses: Bybit-style single update_id, or Binance-style range overlap.
type Family = sequence.Family

const (
	FamilyBybit   = sequence.FamilyBybit
	FamilyBinance = sequence.FamilyBinance
)

// Stream is the pull-based outbound sequence of Results.
type Stream = facade.Stream

// Client is the top-level handle a caller drives: it owns zero or more
// connections (one Driver each, all feeding one shared Stream) and the
// optional EventBus-backed callback surface layered over it.
type Client struct {
	facade *facade.Facade
}

// NewClient returns an empty Client. capacity bounds the shared event
// relay; a slow consumer blocks every connection's driver task once it
// fills, which is the only backpressure point in the system.
func NewClient(capacity int) *Client {
	return &Client{facade: facade.New(capacity)}
}

// Connection represents one open WebSocket connection to one exchange,
// with its own decoder and its own set of subscriptions.
type Connection struct {
	driver *driver.Driver
}

// Connect wraps tr (already established by the caller — the core never
// dials) and returns a Connection bound to exchange's decoder family. The
// connection is not joined to the Client's merged stream until Join is
// called, so subscriptions can be set up first.
func (c *Client) Connect(tr transport.Transport, exchange Exchange, dec decode.Decoder) *Connection {
	return &Connection{driver: driver.New(exchange, tr, dec, c.facade.RawSink())}
}

// Subscribe registers one instrument/output on this connection. For book
// subscriptions (OutputOrderBook/OutputOrderBookL1), depth and family select
// the book-maintenance policy; bufferLimit batches that many accepted
// deltas before applying and emitting them as one update, or applies every
// delta immediately when <= 0 — pass config.BookConfig.EffectiveBufferLimit()
// to drive this from a loaded Config instead of a literal. requestSnapshot
// lets the exchange adapter issue whatever out-of-band message seeds the
// book, or nil if the stream self-seeds via an in-band snapshot message.
func (c *Connection) Subscribe(
	key string,
	inst Instrument,
	output OutputKind,
	depth int,
	family Family,
	bufferLimit int,
	requestSnapshot func() error,
) error {
	return c.driver.Subscribe(key, inst, output, depth, family, bufferLimit, requestSnapshot)
}

// Unsubscribe drops a subscription from this connection.
func (c *Connection) Unsubscribe(key string) {
	c.driver.Unsubscribe(key)
}

// SendControl writes a raw control frame upstream on this connection (e.g.
// a resync request).
func (c *Connection) SendControl(ctx context.Context, frame []byte) error {
	return c.driver.SendControl(ctx, frame)
}

// Join starts draining this connection into the Client's merged Stream.
// Connections are torn down in reverse-Join order when the Client closes.
func (c *Client) Join(conn *Connection) {
	c.facade.Join(conn.driver)
}

// Stream returns the pull-based merged event sequence across every joined
// connection. Do not combine this with OnOrderBook/OnOrderBookL1/OnTrade —
// both drain the same underlying relay.
func (c *Client) Stream() *Stream {
	return c.facade.Stream()
}

// OnOrderBook registers a callback invoked with every OrderBook event for
// the given exchange/instrument. Requires Dispatch to be running.
func (c *Client) OnOrderBook(exchange Exchange, inst Instrument, callback func(*MarketEvent)) error {
	return c.facade.OnOrderBook(exchange, inst, callback)
}

// OnOrderBookL1 registers a callback invoked with every OrderBookL1 event
// for the given exchange/instrument. Requires Dispatch to be running.
func (c *Client) OnOrderBookL1(exchange Exchange, inst Instrument, callback func(*MarketEvent)) error {
	return c.facade.OnOrderBookL1(exchange, inst, callback)
}

// OnTrade registers a callback invoked with every PublicTrade event for the
// given exchange/instrument. Requires Dispatch to be running.
func (c *Client) OnTrade(exchange Exchange, inst Instrument, callback func(*MarketEvent)) error {
	return c.facade.OnTrade(exchange, inst, callback)
}

// Dispatch drains the merged stream and invokes registered callbacks until
// ctx is cancelled. onError receives in-band DataErrors; pass nil to drop
// them.
func (c *Client) Dispatch(ctx context.Context, onError func(*DataError)) error {
	return c.facade.Dispatch(ctx, onError)
}

// Close tears down every joined connection in reverse order and releases
// the merged stream. Safe to call once; a second call is a no-op.
func (c *Client) Close() {
	c.facade.Close()
}
