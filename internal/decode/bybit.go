package decode

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/BullionBear/marketfeed/internal/book"
	"github.com/BullionBear/marketfeed/internal/instrument"
)

// Bybit decodes the public v5 WebSocket frame shape: a ping/pong/ack
// response with an "op" field, or a topic-tagged snapshot/delta with a
// "type" discriminator. Grounded on the wire layout exercised by
// BybitPayload/BybitOrderBookInner in the retrieved barter-rs source: the
// depth channel name ("orderbook.<depth>.<symbol>") carries the configured
// subscription depth, so the decoder does not hardcode it.
type Bybit struct{}

type bybitEnvelope struct {
	Topic   string          `json:"topic"`
	Type    string          `json:"type"`
	Ts      int64           `json:"ts"`
	Data    json.RawMessage `json:"data"`
	Op      string          `json:"op"`
	Success *bool           `json:"success"`
	RetMsg  string          `json:"ret_msg"`
}

type bybitBookData struct {
	Bids     [][2]string `json:"b"`
	Asks     [][2]string `json:"a"`
	UpdateID int64       `json:"u"`
	Seq      int64       `json:"seq"`
}

type bybitTradeData struct {
	Time    int64  `json:"T"`
	Symbol  string `json:"s"`
	Side    string `json:"S"`
	Amount  string `json:"v"`
	Price   string `json:"p"`
	TradeID string `json:"i"`
}

func (Bybit) Decode(raw []byte) (Frame, error) {
	var env bybitEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Frame{}, newDecodeError("malformed json", raw)
	}

	if env.Topic == "" {
		success := env.Success != nil && *env.Success
		return Frame{Kind: KindResponse, Response: ResponseBody{
			Op:      env.Op,
			Success: success,
			Message: env.RetMsg,
		}}, nil
	}

	key, err := subscriptionKeyFromDotted(env.Topic, raw)
	if err != nil {
		return Frame{}, err
	}

	exchangeTime := time.UnixMilli(env.Ts).UTC()

	switch {
	case len(env.Data) > 0 && env.Data[0] == '{':
		var data bybitBookData
		if err := json.Unmarshal(env.Data, &data); err != nil {
			return Frame{}, newDecodeError("malformed book payload", raw)
		}
		bids, err := decodeBybitLevels(data.Bids, raw)
		if err != nil {
			return Frame{}, err
		}
		asks, err := decodeBybitLevels(data.Asks, raw)
		if err != nil {
			return Frame{}, err
		}
		kind := Delta
		if env.Type == "snapshot" {
			kind = Snapshot
		}
		return Frame{Kind: KindBook, Book: UpdateEnvelope{
			SubscriptionKey: key,
			Kind:            kind,
			FirstUpdateID:   data.UpdateID,
			LastUpdateID:    data.UpdateID,
			ExchangeTime:    exchangeTime,
			Bids:            bids,
			Asks:            asks,
		}}, nil
	case len(env.Data) > 0 && env.Data[0] == '[':
		var trades []bybitTradeData
		if err := json.Unmarshal(env.Data, &trades); err != nil {
			return Frame{}, newDecodeError("malformed trade payload", raw)
		}
		if len(trades) == 0 {
			return Frame{}, newDecodeError("empty trade payload", raw)
		}
		t := trades[0]
		price, err := strconv.ParseFloat(t.Price, 64)
		if err != nil {
			return Frame{}, newDecodeError("unparseable trade price", raw)
		}
		amount, err := strconv.ParseFloat(t.Amount, 64)
		if err != nil {
			return Frame{}, newDecodeError("unparseable trade amount", raw)
		}
		side := instrument.Buy
		if t.Side == "Sell" {
			side = instrument.Sell
		}
		return Frame{Kind: KindTrade, Trade: TradePayload{
			SubscriptionKey: key,
			Price:           price,
			Amount:          amount,
			Side:            side,
			TradeID:         t.TradeID,
			ExchangeTime:    time.UnixMilli(t.Time).UTC(),
		}}, nil
	default:
		return Frame{}, newDecodeError("unrecognized data shape", raw)
	}
}

func decodeBybitLevels(raw [][2]string, frame []byte) ([]book.Level, error) {
	levels := make([]book.Level, 0, len(raw))
	for _, pair := range raw {
		price, err := strconv.ParseFloat(pair[0], 64)
		if err != nil {
			return nil, newDecodeError("unparseable level price", frame)
		}
		amount, err := strconv.ParseFloat(pair[1], 64)
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
