package decode

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/BullionBear/marketfeed/internal/book"
)

// OKX decodes the public v5 "books" channel shape: an arg-tagged,
// action-discriminated (snapshot/update) payload, grounded on
// OkxMessage/OkxOrderBookInner in the retrieved barter-rs source. OKX
// assigns each book message a monotonically increasing seqId and the
// previous message's seqId as prevSeqId; this decoder treats that pair as
// the Family A single-update_id chain (LastUpdateID == seqId), same as
// Bybit, since both exchanges hand the consumer an explicit expected-next
// id rather than a first/last range.
type OKX struct{}

type okxArg struct {
	Channel string `json:"channel"`
	InstID  string `json:"instId"`
}

type okxEnvelope struct {
	Arg    okxArg          `json:"arg"`
	Action string          `json:"action"`
	Data   json.RawMessage `json:"data"`
	Event  string          `json:"event"`
	Code   string          `json:"code"`
	Msg    string          `json:"msg"`
}

type okxBookData struct {
	Asks      [][4]string `json:"asks"`
	Bids      [][4]string `json:"bids"`
	Ts        string      `json:"ts"`
	Checksum  *int64      `json:"checksum"`
	PrevSeqID int64       `json:"prevSeqId"`
	SeqID     int64       `json:"seqId"`
}

func (OKX) Decode(raw []byte) (Frame, error) {
	var env okxEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Frame{}, newDecodeError("malformed json", raw)
	}

	if env.Event != "" {
		return Frame{Kind: KindResponse, Response: ResponseBody{
			Op:      env.Event,
			Success: env.Event != "error",
			Message: env.Msg,
		}}, nil
	}

	if env.Arg.Channel == "" || env.Arg.InstID == "" {
		return Frame{}, newDecodeError("missing arg", raw)
	}
	key := env.Arg.Channel + "|" + env.Arg.InstID

	if env.Arg.Channel != "books" {
		return Frame{}, newDecodeError("unsupported channel "+env.Arg.Channel, raw)
	}

	var frames []okxBookData
	if err := json.Unmarshal(env.Data, &frames); err != nil {
		return Frame{}, newDecodeError("malformed book payload", raw)
	}
	if len(frames) == 0 {
		return Frame{}, newDecodeError("empty book payload", raw)
	}
	d := frames[0]

	bids, err := decodeOkxLevels(d.Bids, raw)
	if err != nil {
		return Frame{}, err
	}
	asks, err := decodeOkxLevels(d.Asks, raw)
	if err != nil {
		return Frame{}, err
	}

	tsMs, err := strconv.ParseInt(d.Ts, 10, 64)
	if err != nil {
		return Frame{}, newDecodeError("unparseable ts", raw)
	}

	kind := Delta
	if env.Action == "snapshot" {
		kind = Snapshot
	}

	return Frame{Kind: KindBook, Book: UpdateEnvelope{
		SubscriptionKey: key,
		Kind:            kind,
		FirstUpdateID:   d.SeqID,
		LastUpdateID:    d.SeqID,
		ExchangeTime:    time.UnixMilli(tsMs).UTC(),
		Bids:            bids,
		Asks:            asks,
	}}, nil
}

func decodeOkxLevels(raw [][4]string, frame []byte) ([]book.Level, error) {
	levels := make([]book.Level, 0, len(raw))
	for _, row := range raw {
		price, err := strconv.ParseFloat(row[0], 64)
		if err != nil {
			return nil, newDecodeError("unparseable level price", frame)
		}
		amount, err := strconv.ParseFloat(row[1], 64)
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
