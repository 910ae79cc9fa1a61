// Package instrument holds the domain identifiers the ingestion pipeline
// routes on: which exchange a connection speaks to, which instrument a
// subscription refers to, and what side of the book a level belongs to.
package instrument

import "fmt"

// Exchange identifies which exchange family a connection or decoder speaks.
type Exchange string

const (
	ExchangeBybit   Exchange = "bybit"
	ExchangeBinance Exchange = "binance"
	ExchangeOKX     Exchange = "okx"
)

// Kind is the instrument class a subscription refers to.
type Kind int

const (
	Spot Kind = iota
	Perpetual
	Future
	Option
)

func (k Kind) String() string {
	switch k {
	case Spot:
		return "spot"
	case Perpetual:
		return "perpetual"
	case Future:
		return "future"
	case Option:
		return "option"
	default:
		return "unknown"
	}
}

// Symbol is a base/quote currency pair, e.g. {Base: "BTC", Quote: "USDT"}.
type Symbol struct {
	Base  string
	Quote string
}

func (s Symbol) String() string {
	return fmt.Sprintf("%s%s", s.Base, s.Quote)
}

// Instrument is the opaque domain identifier a subscription is keyed on. It
// is owned by the transformer for the lifetime of a subscription.
type Instrument struct {
	Symbol Symbol
	Kind   Kind
}

func (i Instrument) String() string {
	return fmt.Sprintf("%s.%s", i.Symbol, i.Kind)
}

// Side identifies one side of an order book.
type Side int

const (
	Buy Side = iota
	Sell
)

func (s Side) String() string {
	if s == Buy {
		return "buy"
	}
	return "sell"
}
