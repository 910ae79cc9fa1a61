package transformer

import (
	"testing"
	"time"

	"github.com/BullionBear/marketfeed/internal/book"
	"github.com/BullionBear/marketfeed/internal/decode"
	"github.com/BullionBear/marketfeed/internal/events"
	"github.com/BullionBear/marketfeed/internal/instrument"
	"github.com/BullionBear/marketfeed/internal/sequence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ethusdt() instrument.Instrument {
	return instrument.Instrument{Symbol: instrument.Symbol{Base: "ETH", Quote: "USDT"}, Kind: instrument.Spot}
}

func TestUnknownSubscriptionIsSurfacedAndDropped(t *testing.T) {
	tr := New()
	result, emitted := tr.Handle(decode.Frame{
		Kind: decode.KindBook,
		Book: decode.UpdateEnvelope{SubscriptionKey: "orderbook.50|ETHUSDT"},
	}, time.Now())

	require.True(t, emitted)
	require.False(t, result.IsOk())
	assert.Equal(t, events.UnknownSubscription, result.Err.Kind)
}

func TestResponseFrameEmitsNothing(t *testing.T) {
	tr := New()
	_, emitted := tr.Handle(decode.Frame{Kind: decode.KindResponse}, time.Now())
	assert.False(t, emitted)
}

func TestBookSubscriptionEmitsOrderBookEvent(t *testing.T) {
	tr := New()
	key := "orderbook.50|ETHUSDT"
	require.NoError(t, tr.Subscribe(key, instrument.ExchangeBybit, ethusdt(), OutputOrderBook, 0, sequence.FamilyBybit, 0, nil))

	result, emitted := tr.Handle(decode.Frame{
		Kind: decode.KindBook,
		Book: decode.UpdateEnvelope{
			SubscriptionKey: key,
			Kind:            decode.Snapshot,
			LastUpdateID:    100,
			Bids:            []book.Level{{Price: 50, Amount: 1}},
			Asks:            []book.Level{{Price: 60, Amount: 1}},
			ExchangeTime:    time.Unix(0, 0),
		},
	}, time.Now())

	require.True(t, emitted)
	require.True(t, result.IsOk())
	assert.Equal(t, events.KindOrderBook, result.Event.Kind)
	require.NotNil(t, result.Event.OrderBook)
	assert.Equal(t, book.Level{Price: 50, Amount: 1}, result.Event.OrderBook.Bids.Best())
}

func TestBookSubscriptionWithL1OutputDerivesTopOfBook(t *testing.T) {
	tr := New()
	key := "orderbook.50|ETHUSDT"
	require.NoError(t, tr.Subscribe(key, instrument.ExchangeBybit, ethusdt(), OutputOrderBookL1, 0, sequence.FamilyBybit, 0, nil))

	result, emitted := tr.Handle(decode.Frame{
		Kind: decode.KindBook,
		Book: decode.UpdateEnvelope{
			SubscriptionKey: key,
			Kind:            decode.Snapshot,
			LastUpdateID:    100,
			Bids:            []book.Level{{Price: 50, Amount: 1}},
			Asks:            []book.Level{{Price: 60, Amount: 1}},
		},
	}, time.Now())

	require.True(t, emitted)
	require.True(t, result.IsOk())
	assert.Equal(t, events.KindOrderBookL1, result.Event.Kind)
	require.NotNil(t, result.Event.OrderBookL1)
	assert.Equal(t, book.Level{Price: 50, Amount: 1}, result.Event.OrderBookL1.BestBid)
}

func TestInvalidSequenceErrorIsSurfacedInBand(t *testing.T) {
	tr := New()
	key := "orderbook.50|ETHUSDT"
	require.NoError(t, tr.Subscribe(key, instrument.ExchangeBybit, ethusdt(), OutputOrderBook, 0, sequence.FamilyBybit, 0, nil))

	_, emitted := tr.Handle(decode.Frame{
		Kind: decode.KindBook,
		Book: decode.UpdateEnvelope{SubscriptionKey: key, Kind: decode.Snapshot, LastUpdateID: 100},
	}, time.Now())
	require.True(t, emitted)

	result, emitted := tr.Handle(decode.Frame{
		Kind: decode.KindBook,
		Book: decode.UpdateEnvelope{SubscriptionKey: key, Kind: decode.Delta, FirstUpdateID: 102, LastUpdateID: 102},
	}, time.Now())

	require.True(t, emitted)
	require.False(t, result.IsOk())
	assert.Equal(t, events.InvalidSequence, result.Err.Kind)
}

func TestFatalUpdateIDOneWhileLive(t *testing.T) {
	tr := New()
	key := "orderbook.50|ETHUSDT"
	require.NoError(t, tr.Subscribe(key, instrument.ExchangeBybit, ethusdt(), OutputOrderBook, 0, sequence.FamilyBybit, 0, nil))
	tr.Handle(decode.Frame{Kind: decode.KindBook, Book: decode.UpdateEnvelope{SubscriptionKey: key, Kind: decode.Snapshot, LastUpdateID: 100}}, time.Now())

	result, emitted := tr.Handle(decode.Frame{
		Kind: decode.KindBook,
		Book: decode.UpdateEnvelope{SubscriptionKey: key, Kind: decode.Delta, FirstUpdateID: 1, LastUpdateID: 1},
	}, time.Now())

	require.True(t, emitted)
	require.False(t, result.IsOk())
	assert.Equal(t, events.Fatal, result.Err.Kind)

	result, emitted = tr.Handle(decode.Frame{
		Kind: decode.KindBook,
		Book: decode.UpdateEnvelope{SubscriptionKey: key, Kind: decode.Delta, FirstUpdateID: 101, LastUpdateID: 101},
	}, time.Now())

	require.True(t, emitted, "a fatal error must terminate the subscription")
	require.False(t, result.IsOk())
	assert.Equal(t, events.UnknownSubscription, result.Err.Kind)
}

func TestTradeSubscriptionEmitsTradeEvent(t *testing.T) {
	tr := New()
	key := "publicTrade|ETHUSDT"
	require.NoError(t, tr.Subscribe(key, instrument.ExchangeBybit, ethusdt(), OutputPublicTrade, 0, sequence.FamilyBybit, 0, nil))

	result, emitted := tr.Handle(decode.Frame{
		Kind:  decode.KindTrade,
		Trade: decode.TradePayload{SubscriptionKey: key, Price: 100, Amount: 1, Side: instrument.Buy, TradeID: "1"},
	}, time.Now())

	require.True(t, emitted)
	require.True(t, result.IsOk())
	assert.Equal(t, events.KindPublicTrade, result.Event.Kind)
	require.NotNil(t, result.Event.Trade)
	assert.Equal(t, 100.0, result.Event.Trade.Price)
}
