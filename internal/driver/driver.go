// Package driver implements the per-connection driver task: the loop that
// owns one Transport and drains it into one Transformer, pushing every
// resulting event or in-band error into a shared Relay. Exactly one Driver
// exists per WebSocket connection; its decoder, transformer and the books
// it hosts are confined to the goroutine running Run and are never touched
// from outside it.
package driver

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/BullionBear/marketfeed/internal/decode"
	"github.com/BullionBear/marketfeed/internal/events"
	"github.com/BullionBear/marketfeed/internal/instrument"
	"github.com/BullionBear/marketfeed/internal/relay"
	"github.com/BullionBear/marketfeed/internal/sequence"
	"github.com/BullionBear/marketfeed/internal/transformer"
	"github.com/BullionBear/marketfeed/internal/transport"
	"github.com/BullionBear/marketfeed/pkg/logger"
)

// Driver ties one connection's Transport, MessageDecoder and
// MultiBookTransformer together and drains decoded frames into a shared
// sink.
type Driver struct {
	id          uuid.UUID
	exchange    instrument.Exchange
	transport   transport.Transport
	decoder     decode.Decoder
	transformer *transformer.Transformer
	sink        *relay.Relay[events.Result]
	log         zerolog.Logger
}

// New returns a Driver for one connection. sink is the shared, bounded
// downstream event relay; multiple Drivers may share one sink.
func New(exchange instrument.Exchange, tr transport.Transport, dec decode.Decoder, sink *relay.Relay[events.Result]) *Driver {
	id := uuid.New()
	return &Driver{
		id:          id,
		exchange:    exchange,
		transport:   tr,
		decoder:     dec,
		transformer: transformer.New(),
		sink:        sink,
		log:         logger.Component("driver").With().Str("connection_id", id.String()).Str("exchange", string(exchange)).Logger(),
	}
}

// Subscribe registers a subscription on this connection's transformer. It
// must be called before Run starts consuming frames for it to see traffic
// for that key.
func (d *Driver) Subscribe(
	key string,
	inst instrument.Instrument,
	output transformer.OutputKind,
	depth int,
	family sequence.Family,
	bufferLimit int,
	requestSnapshot func() error,
) error {
	return d.transformer.Subscribe(key, d.exchange, inst, output, depth, family, bufferLimit, requestSnapshot)
}

// Unsubscribe drops a subscription from this connection.
func (d *Driver) Unsubscribe(key string) {
	d.transformer.Unsubscribe(key)
}

// SendControl writes a raw control frame upstream (e.g. a resync request),
// the driver's own suspension point (b) from the concurrency model.
func (d *Driver) SendControl(ctx context.Context, frame []byte) error {
	return d.transport.Send(ctx, frame)
}

// Run drains the connection until ctx is cancelled or the transport
// reaches end-of-input. It never returns a non-nil error for in-band
// decode/validation failures — those are pushed into sink as failed
// Results — only for sink-side cancellation or an unrecoverable transport
// failure. Run always closes the transport before returning.
func (d *Driver) Run(ctx context.Context) error {
	defer d.transport.Close()

	for {
		raw, ok, err := d.transport.Recv(ctx)
		if err != nil {
			return d.surfaceTransportFailure(ctx, err)
		}
		if !ok {
			d.log.Info().Msg("transport closed, exiting driver")
			return nil
		}

		frame, err := d.decoder.Decode(raw)
		if err != nil {
			if emitErr := d.emit(ctx, events.Fail(&events.DataError{
				Kind:     events.Decode,
				Exchange: d.exchange,
				Err:      err,
			})); emitErr != nil {
				return emitErr
			}
			continue
		}

		result, emitted := d.transformer.Handle(frame, time.Now())
		if !emitted {
			continue
		}
		if err := d.emit(ctx, result); err != nil {
			return err
		}
	}
}

func (d *Driver) emit(ctx context.Context, result events.Result) error {
	if err := d.sink.Send(ctx, result); err != nil {
		d.log.Warn().Err(err).Msg("sink closed or cancelled, exiting driver")
		return err
	}
	return nil
}

func (d *Driver) surfaceTransportFailure(ctx context.Context, err error) error {
	d.log.Warn().Err(err).Msg("transport recv failed, terminating connection")
	_ = d.sink.Send(ctx, events.Fail(&events.DataError{
		Kind:     events.Transport,
		Exchange: d.exchange,
		Err:      err,
	}))
	return err
}
