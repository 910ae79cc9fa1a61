package decode

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBybitDecodesOrderBookTopicKey(t *testing.T) {
	raw := []byte(`{
		"topic": "orderbook.50.ETHUSDT",
		"type": "snapshot",
		"ts": 1672304486868,
		"data": {"b": [["100.0","1.5"]], "a": [["101.0","2.0"]], "u": 100, "seq": 1}
	}`)

	frame, err := Bybit{}.Decode(raw)
	require.NoError(t, err)
	require.Equal(t, KindBook, frame.Kind)
	assert.Equal(t, "orderbook.50|ETHUSDT", frame.Book.SubscriptionKey)
	assert.Equal(t, Snapshot, frame.Book.Kind)
	assert.Equal(t, int64(100), frame.Book.LastUpdateID)
	assert.Equal(t, []float64{100.0}, []float64{frame.Book.Bids[0].Price})
}

func TestBybitDecodesTradeTopicKey(t *testing.T) {
	raw := []byte(`{
		"topic": "publicTrade.BTCUSDT",
		"type": "snapshot",
		"ts": 1672304486868,
		"data": [{"T":1672304486865,"s":"BTCUSDT","S":"Buy","v":"0.001","p":"16578.50","L":"PlusTick","i":"abc","BT":false}]
	}`)

	frame, err := Bybit{}.Decode(raw)
	require.NoError(t, err)
	require.Equal(t, KindTrade, frame.Kind)
	assert.Equal(t, "publicTrade|BTCUSDT", frame.Trade.SubscriptionKey)
	assert.Equal(t, 16578.50, frame.Trade.Price)
}

func TestBybitMalformedTopicIsDecodeError(t *testing.T) {
	raw := []byte(`{"topic": "orderbook", "type": "snapshot", "ts": 1, "data": {}}`)
	_, err := Bybit{}.Decode(raw)
	var decErr *DecodeError
	require.ErrorAs(t, err, &decErr)
}

func TestBybitResponseFrame(t *testing.T) {
	raw := []byte(`{"success": true, "ret_msg": "pong", "conn_id": "abc", "op": "ping"}`)
	frame, err := Bybit{}.Decode(raw)
	require.NoError(t, err)
	require.Equal(t, KindResponse, frame.Kind)
	assert.True(t, frame.Response.Success)
	assert.Equal(t, "ping", frame.Response.Op)
}

func TestBybitDeleteLevelSentinelPassesThrough(t *testing.T) {
	raw := []byte(`{
		"topic": "orderbook.50.ETHUSDT",
		"type": "delta",
		"ts": 1,
		"data": {"b": [["100.0","0"]], "a": [], "u": 101, "seq": 2}
	}`)
	frame, err := Bybit{}.Decode(raw)
	require.NoError(t, err)
	require.Equal(t, Delta, frame.Book.Kind)
	require.Len(t, frame.Book.Bids, 1)
	assert.Equal(t, 0.0, frame.Book.Bids[0].Amount)
}
