// Package decode turns one raw exchange frame into a tagged Frame: a
// control-plane Response, a PublicTrade, or a book UpdateEnvelope. Each
// exchange family gets its own Decoder; all share the Frame/DecodeError
// vocabulary so the transformer never branches on exchange identity.
package decode

import (
	"fmt"
	"time"

	"github.com/BullionBear/marketfeed/internal/book"
	"github.com/BullionBear/marketfeed/internal/instrument"
	"github.com/BullionBear/marketfeed/pkg/logger"
)

var log = logger.Component("decode")

// Kind tags what a decoded Frame carries.
type Kind int

const (
	KindResponse Kind = iota
	KindTrade
	KindBook
)

// UpdateKind distinguishes a book snapshot from an incremental delta.
type UpdateKind int

const (
	Snapshot UpdateKind = iota
	Delta
)

// UpdateEnvelope is the canonical shape every per-exchange decoder reduces
// a book frame to. FirstUpdateID/LastUpdateID carry the same value for
// exchanges that only emit a single sequence number per message (Bybit,
// OKX); Family B exchanges (Binance) populate both ends of the range.
type UpdateEnvelope struct {
	SubscriptionKey string
	Kind            UpdateKind
	FirstUpdateID   int64
	LastUpdateID    int64
	ExchangeTime    time.Time
	Bids            []book.Level
	Asks            []book.Level
}

// TradePayload is one public trade print.
type TradePayload struct {
	SubscriptionKey string
	Price           float64
	Amount          float64
	Side            instrument.Side
	TradeID         string
	ExchangeTime    time.Time
}

// ResponseBody is a control-plane message: subscribe ack, pong, or an
// exchange-reported error.
type ResponseBody struct {
	Op      string
	Success bool
	Message string
}

// Frame is the result of decoding one raw message.
type Frame struct {
	Kind     Kind
	Response ResponseBody
	Trade    TradePayload
	Book     UpdateEnvelope
}

// Decoder parses one raw exchange frame into a Frame.
type Decoder interface {
	Decode(raw []byte) (Frame, error)
}

const maxRawPrefix = 256

// DecodeError reports a malformed frame, unknown schema, or unparseable
// numeric field. The offending raw input is elided to a bounded prefix so
// logs never carry an unbounded exchange payload.
type DecodeError struct {
	Reason string
	Raw    string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode: %s: %s", e.Reason, e.Raw)
}

func newDecodeError(reason string, raw []byte) *DecodeError {
	s := string(raw)
	if len(s) > maxRawPrefix {
		s = s[:maxRawPrefix] + "..."
	}
	log.Warn().Str("reason", reason).Msg("decode failed")
	return &DecodeError{Reason: reason, Raw: s}
}

// subscriptionKeyFromDotted maps an exchange "<a>.<b>[.<c>]" topic string to
// the canonical "<a>[.<b>]|<last>" subscription key. It implements the
// mapping rules shared by Bybit-style topics: a 2-segment topic becomes
// "<segment0>|<segment1>"; a 3-segment topic becomes
// "<segment0>.<segment1>|<segment2>". Any other segment count is a decode
// error.
func subscriptionKeyFromDotted(topic string, raw []byte) (string, error) {
	parts := splitDot(topic)
	switch len(parts) {
	case 2:
		return parts[0] + "|" + parts[1], nil
	case 3:
		return parts[0] + "." + parts[1] + "|" + parts[2], nil
	default:
		return "", newDecodeError("malformed topic "+topic, raw)
	}
}

func splitDot(s string) []string {
	var parts []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '.' {
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}
	parts = append(parts, s[start:])
	if len(parts) == 1 && parts[0] == "" {
		return nil
	}
	return parts
}
