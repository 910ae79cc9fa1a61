// Package events defines the outbound vocabulary of the ingestion
// pipeline: the tagged MarketEvent a Stream yields, and the DataError
// taxonomy from the error-handling design. The source's generic,
// phantom-tagged payload is deliberately translated into a tagged union
// here rather than a Go type parameter, since one Stream genuinely mixes
// PublicTrade, OrderBookL1 and OrderBook items and a type parameter can
// only ever be instantiated to one concrete type at a time.
package events

import (
	"fmt"
	"time"

	"github.com/BullionBear/marketfeed/internal/book"
	"github.com/BullionBear/marketfeed/internal/instrument"
)

// Kind tags which payload field of a MarketEvent is populated.
type Kind int

const (
	KindPublicTrade Kind = iota
	KindOrderBookL1
	KindOrderBook
)

func (k Kind) String() string {
	switch k {
	case KindPublicTrade:
		return "public_trade"
	case KindOrderBookL1:
		return "order_book_l1"
	case KindOrderBook:
		return "order_book"
	default:
		return "unknown"
	}
}

// PublicTrade is one trade print.
type PublicTrade struct {
	Price   float64
	Amount  float64
	Side    instrument.Side
	TradeID string
}

// OrderBookL1 is the top-of-book view selected at subscription time.
type OrderBookL1 struct {
	LastUpdateTime time.Time
	BestBid        book.Level
	BestAsk        book.Level
}

// MarketEvent is one item of the outbound sequence. Exactly one of Trade,
// OrderBookL1 or OrderBook is populated, selected by Kind.
type MarketEvent struct {
	Exchange     instrument.Exchange
	Instrument   instrument.Instrument
	ExchangeTime time.Time
	ReceivedTime time.Time
	Kind         Kind

	Trade       *PublicTrade
	OrderBookL1 *OrderBookL1
	OrderBook   *book.Book
}

// DataErrorKind is the error taxonomy from the error-handling design: kinds,
// not Go type names.
type DataErrorKind int

const (
	Decode DataErrorKind = iota
	InvalidSequence
	SnapshotMissing
	UnknownSubscription
	Transport
	Fatal
)

func (k DataErrorKind) String() string {
	switch k {
	case Decode:
		return "decode"
	case InvalidSequence:
		return "invalid_sequence"
	case SnapshotMissing:
		return "snapshot_missing"
	case UnknownSubscription:
		return "unknown_subscription"
	case Transport:
		return "transport"
	case Fatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// DataError is the in-band error item of the outbound sequence. Errors are
// data: the core never panics on decode/validation failure.
type DataError struct {
	Kind         DataErrorKind
	Exchange     instrument.Exchange
	Instrument   instrument.Instrument
	Subscription string
	Err          error
}

func (e *DataError) Error() string {
	if e.Subscription != "" {
		return fmt.Sprintf("%s[%s]: %v", e.Kind, e.Subscription, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *DataError) Unwrap() error { return e.Err }

// Result is a lazy-sequence item: either a MarketEvent or a DataError,
// never both. It mirrors the source's Result<MarketEvent, DataError>.
type Result struct {
	Event *MarketEvent
	Err   *DataError
}

// Ok wraps a successfully produced event.
func Ok(ev MarketEvent) Result {
	return Result{Event: &ev}
}

// Fail wraps an in-band error.
func Fail(err *DataError) Result {
	return Result{Err: err}
}

// IsOk reports whether this Result carries an event rather than an error.
func (r Result) IsOk() bool { return r.Err == nil }
