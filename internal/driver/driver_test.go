package driver

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BullionBear/marketfeed/internal/book"
	"github.com/BullionBear/marketfeed/internal/decode"
	"github.com/BullionBear/marketfeed/internal/events"
	"github.com/BullionBear/marketfeed/internal/instrument"
	"github.com/BullionBear/marketfeed/internal/relay"
	"github.com/BullionBear/marketfeed/internal/sequence"
	"github.com/BullionBear/marketfeed/internal/transformer"
)

// fakeTransport replays a fixed queue of frames, then reports EOF.
type fakeTransport struct {
	frames  [][]byte
	pos     int
	closed  bool
	sendErr error
	sent    [][]byte
}

func (f *fakeTransport) Recv(ctx context.Context) ([]byte, bool, error) {
	if f.pos >= len(f.frames) {
		return nil, false, nil
	}
	frame := f.frames[f.pos]
	f.pos++
	return frame, true, nil
}

func (f *fakeTransport) Send(ctx context.Context, frame []byte) error {
	f.sent = append(f.sent, frame)
	return f.sendErr
}

func (f *fakeTransport) Close() error {
	f.closed = true
	return nil
}

// fakeDecoder decodes raw frames tagged "snapshot" or "bad".
type fakeDecoder struct{}

func (fakeDecoder) Decode(raw []byte) (decode.Frame, error) {
	if string(raw) == "bad" {
		return decode.Frame{}, errors.New("malformed frame")
	}
	return decode.Frame{
		Kind: decode.KindBook,
		Book: decode.UpdateEnvelope{
			SubscriptionKey: "orderbook.50|ETHUSDT",
			Kind:            decode.Snapshot,
			LastUpdateID:    1,
			Bids:            []book.Level{{Price: 10, Amount: 1}},
			Asks:            []book.Level{{Price: 11, Amount: 1}},
		},
	}, nil
}

func TestDriverRunEmitsEventsAndExitsOnEOF(t *testing.T) {
	tr := &fakeTransport{frames: [][]byte{[]byte("snapshot")}}
	sink := relay.New[events.Result](4)

	d := New(instrument.ExchangeBybit, tr, fakeDecoder{}, sink)
	require.NoError(t, d.Subscribe(
		"orderbook.50|ETHUSDT",
		instrument.Instrument{Symbol: instrument.Symbol{Base: "ETH", Quote: "USDT"}, Kind: instrument.Spot},
		transformer.OutputOrderBook, 0, sequence.FamilyBybit, 0, nil,
	))

	done := make(chan error, 1)
	go func() { done <- d.Run(context.Background()) }()

	result, err := sink.Recv(context.Background())
	require.NoError(t, err)
	require.True(t, result.IsOk())
	assert.Equal(t, events.KindOrderBook, result.Event.Kind)

	require.NoError(t, <-done)
	assert.True(t, tr.closed)
}

func TestDriverSurfacesDecodeErrorsInBand(t *testing.T) {
	tr := &fakeTransport{frames: [][]byte{[]byte("bad")}}
	sink := relay.New[events.Result](4)
	d := New(instrument.ExchangeBybit, tr, fakeDecoder{}, sink)

	done := make(chan error, 1)
	go func() { done <- d.Run(context.Background()) }()

	result, err := sink.Recv(context.Background())
	require.NoError(t, err)
	require.False(t, result.IsOk())
	assert.Equal(t, events.Decode, result.Err.Kind)

	require.NoError(t, <-done)
}

func TestDriverExitsWhenContextCancelled(t *testing.T) {
	tr := &fakeTransport{} // no frames, Recv would report EOF immediately anyway
	sink := relay.New[events.Result](1)
	d := New(instrument.ExchangeBinance, tr, fakeDecoder{}, sink)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := d.Run(ctx)
	assert.NoError(t, err)
	assert.True(t, tr.closed)
}

func TestSendControlDelegatesToTransport(t *testing.T) {
	tr := &fakeTransport{}
	sink := relay.New[events.Result](1)
	d := New(instrument.ExchangeOKX, tr, fakeDecoder{}, sink)

	require.NoError(t, d.SendControl(context.Background(), []byte("ping")))
	require.Len(t, tr.sent, 1)
	assert.Equal(t, "ping", string(tr.sent[0]))
}
