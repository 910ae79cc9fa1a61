package decode

import (
	"encoding/json"
	"strconv"
	"time"

	binance "github.com/adshao/go-binance/v2"

	"github.com/BullionBear/marketfeed/internal/book"
)

// Binance decodes the combined-stream depth-update frame shape. It reuses
// go-binance/v2's WsDepthEvent purely as a wire struct for JSON
// unmarshaling, the same field layout BullionBear's BinanceOrderBook read
// off the library's own WebSocket handler; this decoder never constructs a
// go-binance client or dials anything itself, since transport is an
// external collaborator here.
type Binance struct {
	// Symbol is the instrument this decoder's connection is scoped to. The
	// raw depth frame carries no subscription-key-shaped field of its own
	// (just a bare symbol), so the decoder is parameterized per connection
	// rather than deriving the key from the frame.
	Symbol string
}

func (b Binance) Decode(raw []byte) (Frame, error) {
	var ev binance.WsDepthEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		return Frame{}, newDecodeError("malformed json", raw)
	}
	if ev.FirstUpdateID == 0 && ev.LastUpdateID == 0 && len(ev.Bids) == 0 && len(ev.Asks) == 0 {
		return Frame{}, newDecodeError("unrecognized frame shape", raw)
	}

	bids, err := decodeBinanceLevels(bidPairs(ev.Bids), raw)
	if err != nil {
		return Frame{}, err
	}
	asks, err := decodeBinanceLevels(askPairs(ev.Asks), raw)
	if err != nil {
		return Frame{}, err
	}

	return Frame{Kind: KindBook, Book: UpdateEnvelope{
		SubscriptionKey: "depth|" + b.Symbol,
		Kind:            Delta,
		FirstUpdateID:   ev.FirstUpdateID,
		LastUpdateID:    ev.LastUpdateID,
		ExchangeTime:    time.UnixMilli(ev.Time).UTC(),
		Bids:            bids,
		Asks:            asks,
	}}, nil
}

type pricedQty struct {
	Price    string
	Quantity string
}

func bidPairs(levels []binance.Bid) []pricedQty {
	out := make([]pricedQty, len(levels))
	for i, l := range levels {
		out[i] = pricedQty{Price: l.Price, Quantity: l.Quantity}
	}
	return out
}

func askPairs(levels []binance.Ask) []pricedQty {
	out := make([]pricedQty, len(levels))
	for i, l := range levels {
		out[i] = pricedQty{Price: l.Price, Quantity: l.Quantity}
	}
	return out
}

func decodeBinanceLevels(raw []pricedQty, frame []byte) ([]book.Level, error) {
	levels := make([]book.Level, 0, len(raw))
	for _, pair := range raw {
		price, err := strconv.ParseFloat(pair.Price, 64)
		if err != nil {
			return nil, newDecodeError("unparseable level price", frame)
		}
		amount, err := strconv.ParseFloat(pair.Quantity, 64)
		if err != nil {
			return nil, newDecodeError("unparseable level amount", frame)
		}
		lvl := book.Level{Price: price, Amount: amount}
		if !book.ValidLevel(lvl) {
			return nil, newDecodeError("invalid level", frame)
		}
		levels = append(levels, lvl)
	}
	return levels, nil
}
