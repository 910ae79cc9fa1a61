package decode

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBinanceDecodesDepthFrame(t *testing.T) {
	raw := []byte(`{
		"e": "depthUpdate",
		"E": 1672304486868,
		"s": "BNBBTC",
		"U": 157,
		"u": 160,
		"b": [["0.0024", "10"]],
		"a": [["0.0026", "100"]]
	}`)

	dec := Binance{Symbol: "BNBBTC"}
	frame, err := dec.Decode(raw)
	require.NoError(t, err)
	require.Equal(t, KindBook, frame.Kind)
	assert.Equal(t, "depth|BNBBTC", frame.Book.SubscriptionKey)
	assert.Equal(t, int64(157), frame.Book.FirstUpdateID)
	assert.Equal(t, int64(160), frame.Book.LastUpdateID)
	assert.Equal(t, 0.0024, frame.Book.Bids[0].Price)
}

func TestBinanceUnrecognizedFrameIsDecodeError(t *testing.T) {
	raw := []byte(`{"foo": "bar"}`)
	_, err := (Binance{Symbol: "BNBBTC"}).Decode(raw)
	var decErr *DecodeError
	require.ErrorAs(t, err, &decErr)
}
