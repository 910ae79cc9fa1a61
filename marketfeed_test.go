package marketfeed

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BullionBear/marketfeed/internal/book"
	"github.com/BullionBear/marketfeed/internal/decode"
)

type stubTransport struct {
	frames chan []byte
	closed chan struct{}
}

func newStubTransport() *stubTransport {
	return &stubTransport{frames: make(chan []byte, 8), closed: make(chan struct{})}
}

func (s *stubTransport) Recv(ctx context.Context) ([]byte, bool, error) {
	select {
	case f, ok := <-s.frames:
		return f, ok, nil
	case <-s.closed:
		return nil, false, nil
	case <-ctx.Done():
		return nil, false, ctx.Err()
	}
}

func (s *stubTransport) Send(ctx context.Context, frame []byte) error { return nil }

func (s *stubTransport) Close() error {
	select {
	case <-s.closed:
	default:
		close(s.closed)
	}
	return nil
}

type stubDecoder struct{ key string }

func (d stubDecoder) Decode(raw []byte) (decode.Frame, error) {
	return decode.Frame{
		Kind: decode.KindBook,
		Book: decode.UpdateEnvelope{
			SubscriptionKey: d.key,
			Kind:            decode.Snapshot,
			LastUpdateID:    1,
			Bids:            []book.Level{{Price: 10, Amount: 1}},
			Asks:            []book.Level{{Price: 11, Amount: 1}},
		},
	}, nil
}

func TestClientConnectSubscribeJoinStream(t *testing.T) {
	client := NewClient(8)
	defer client.Close()

	tr := newStubTransport()
	conn := client.Connect(tr, ExchangeBybit, stubDecoder{key: "orderbook.50|ETHUSDT"})
	require.NoError(t, conn.Subscribe(
		"orderbook.50|ETHUSDT",
		Instrument{Symbol: Symbol{Base: "ETH", Quote: "USDT"}, Kind: Spot},
		OutputOrderBook, 0, FamilyBybit, 0, nil,
	))
	client.Join(conn)

	tr.frames <- []byte("snapshot")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	result, err := client.Stream().Next(ctx)
	require.NoError(t, err)
	require.True(t, result.IsOk())
	assert.Equal(t, ExchangeBybit, result.Event.Exchange)
}

func TestClientCloseIsIdempotent(t *testing.T) {
	client := NewClient(4)
	client.Close()
	client.Close()
}
