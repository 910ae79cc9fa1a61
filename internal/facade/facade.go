// Package facade implements the Stream façade: a pull-based lazy sequence
// of events.Result merging every connection a Facade owns, plus an optional
// callback-style subscription surface layered on top of it.
//
// The join_map combinator from the spec needs no separate fan-in structure:
// every Driver this Facade owns is constructed against the same shared
// relay.Relay, so the relay itself is the join. What Facade adds is
// bookkeeping for connection lifecycle (subscribe order, reverse-order
// teardown) and, optionally, an asaskevich/EventBus-backed callback API
// generalizing BinanceOrderBookManager.SubscribeBestDepth's per-symbol
// channel naming to arbitrary exchange/instrument/kind keys.
package facade

import (
	"context"
	"fmt"
	"sync"

	evbus "github.com/asaskevich/EventBus"

	"github.com/BullionBear/marketfeed/internal/driver"
	"github.com/BullionBear/marketfeed/internal/events"
	"github.com/BullionBear/marketfeed/internal/instrument"
	"github.com/BullionBear/marketfeed/internal/relay"
)

// Stream is the pull-based outbound sequence of events.Result.
type Stream struct {
	sink *relay.Relay[events.Result]
}

// Next blocks for the next item: a successfully produced event or an
// in-band DataError. It returns relay.ErrClosed once the underlying relay
// has been closed and drained.
func (s *Stream) Next(ctx context.Context) (events.Result, error) {
	return s.sink.Recv(ctx)
}

type connection struct {
	driver *driver.Driver
	cancel context.CancelFunc
}

// Facade owns a set of connections (one Driver each) all feeding the same
// bounded relay, plus an optional EventBus-backed callback surface over the
// same stream.
type Facade struct {
	ctx    context.Context
	cancel context.CancelFunc
	sink   *relay.Relay[events.Result]
	bus    evbus.Bus

	mu          sync.Mutex
	connections []*connection
	wg          sync.WaitGroup
}

// New returns an empty Facade. capacity bounds the shared relay; producers
// (driver tasks) block once it fills, which is the only backpressure point
// in the system.
func New(capacity int) *Facade {
	ctx, cancel := context.WithCancel(context.Background())
	return &Facade{
		ctx:    ctx,
		cancel: cancel,
		sink:   relay.New[events.Result](capacity),
		bus:    evbus.New(),
	}
}

// Join registers a connection's Driver and starts draining it in the
// background. Connections are tracked in join order so Close can tear them
// down in reverse.
func (f *Facade) Join(d *driver.Driver) {
	connCtx, cancel := context.WithCancel(f.ctx)

	f.mu.Lock()
	f.connections = append(f.connections, &connection{driver: d, cancel: cancel})
	f.mu.Unlock()

	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		_ = d.Run(connCtx)
	}()
}

// Stream returns the pull-based outbound sequence. Do not combine pull-based
// consumption with the callback API (Dispatch, OnOrderBook, ...): both drain
// the same underlying relay and would race for items.
func (f *Facade) Stream() *Stream {
	return &Stream{sink: f.sink}
}

// RawSink returns the shared relay backing this Facade, for constructing a
// Driver that feeds it directly. Exported for callers in other packages
// within this module (see marketfeed.Client.Connect); not meant for
// external consumers, who should use Stream or the callback API instead.
func (f *Facade) RawSink() *relay.Relay[events.Result] {
	return f.sink
}

// Close cancels every connection in reverse-subscription order, waits for
// all driver tasks to exit, then closes the shared relay. Safe to call once;
// a second call is a no-op.
func (f *Facade) Close() {
	f.mu.Lock()
	conns := f.connections
	f.connections = nil
	f.mu.Unlock()

	for i := len(conns) - 1; i >= 0; i-- {
		conns[i].cancel()
	}
	f.cancel()
	f.wg.Wait()
	f.sink.Close()
}

func channelKey(exchange instrument.Exchange, inst instrument.Instrument, kind events.Kind) string {
	return fmt.Sprintf("%s:%s:%s", exchange, inst, kind)
}

// OnOrderBook registers a callback invoked with every OrderBook event for
// the given exchange/instrument. Requires Dispatch to be running.
func (f *Facade) OnOrderBook(exchange instrument.Exchange, inst instrument.Instrument, callback func(*events.MarketEvent)) error {
	return f.bus.SubscribeAsync(channelKey(exchange, inst, events.KindOrderBook), callback, false)
}

// OnOrderBookL1 registers a callback invoked with every OrderBookL1 event
// for the given exchange/instrument. Requires Dispatch to be running.
func (f *Facade) OnOrderBookL1(exchange instrument.Exchange, inst instrument.Instrument, callback func(*events.MarketEvent)) error {
	return f.bus.SubscribeAsync(channelKey(exchange, inst, events.KindOrderBookL1), callback, false)
}

// OnTrade registers a callback invoked with every PublicTrade event for the
// given exchange/instrument. Requires Dispatch to be running.
func (f *Facade) OnTrade(exchange instrument.Exchange, inst instrument.Instrument, callback func(*events.MarketEvent)) error {
	return f.bus.SubscribeAsync(channelKey(exchange, inst, events.KindPublicTrade), callback, false)
}

// Unsubscribe removes a previously registered callback for the given kind.
func (f *Facade) Unsubscribe(exchange instrument.Exchange, inst instrument.Instrument, kind events.Kind, callback func(*events.MarketEvent)) error {
	return f.bus.Unsubscribe(channelKey(exchange, inst, kind), callback)
}

// Dispatch drains the shared stream and publishes each successful event to
// its EventBus channel, until ctx is cancelled or the stream closes. In-band
// DataErrors are not published on the bus; call onError for those, or pass
// nil to drop them. Dispatch pulls from Stream() itself, so every item it
// drains, event or error, is consumed and not seen by another Stream reader.
func (f *Facade) Dispatch(ctx context.Context, onError func(*events.DataError)) error {
	stream := f.Stream()
	for {
		result, err := stream.Next(ctx)
		if err != nil {
			return err
		}
		if !result.IsOk() {
			if onError != nil {
				onError(result.Err)
			}
			continue
		}
		f.bus.Publish(channelKey(result.Event.Exchange, result.Event.Instrument, result.Event.Kind), result.Event)
	}
}
