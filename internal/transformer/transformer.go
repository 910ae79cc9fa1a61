// Package transformer implements the MultiBookTransformer: per-connection
// routing from a decoded frame to the subscription it belongs to, and from
// there to a BookUpdater or straight to a trade event. It holds no global
// state; everything it owns lives in its subscriptions map, itself confined
// to the connection's single driver task (see internal/driver).
package transformer

import (
	"errors"
	"fmt"
	"time"

	"github.com/BullionBear/marketfeed/internal/decode"
	"github.com/BullionBear/marketfeed/internal/events"
	"github.com/BullionBear/marketfeed/internal/instrument"
	"github.com/BullionBear/marketfeed/internal/sequence"
	"github.com/BullionBear/marketfeed/internal/updater"
	"github.com/BullionBear/marketfeed/pkg/logger"
)

var log = logger.Component("transformer")

var errUnrecognizedFrameKind = errors.New("transformer: unrecognized frame kind")

func errUnknownSubscription(key string) error {
	return fmt.Errorf("transformer: unknown subscription %q", key)
}

// OutputKind selects what shape of event a subscription emits: the raw L2
// book, its L1 derivation, or public trades.
type OutputKind int

const (
	OutputOrderBook OutputKind = iota
	OutputOrderBookL1
	OutputPublicTrade
)

type subscription struct {
	instrument instrument.Instrument
	exchange   instrument.Exchange
	output     OutputKind
	updater    *updater.Updater
}

// Transformer is the MultiBookTransformer.
type Transformer struct {
	subscriptions map[string]*subscription
}

// New returns an empty Transformer.
func New() *Transformer {
	return &Transformer{subscriptions: make(map[string]*subscription)}
}

// Subscribe registers a subscription key against an instrument and output
// kind. depth/family/bufferLimit are only meaningful for book
// subscriptions; bufferLimit <= 0 applies every accepted delta immediately
// (see internal/updater.New). Pass requestSnapshot to let the exchange
// adapter issue whatever out-of-band message is needed to seed the book
// (nil if none is needed).
func (t *Transformer) Subscribe(
	key string,
	exchange instrument.Exchange,
	inst instrument.Instrument,
	output OutputKind,
	depth int,
	family sequence.Family,
	bufferLimit int,
	requestSnapshot func() error,
) error {
	sub := &subscription{instrument: inst, exchange: exchange, output: output}
	if output != OutputPublicTrade {
		iob, err := updater.Init(depth, family, bufferLimit, inst, requestSnapshot)
		if err != nil {
			return err
		}
		sub.updater = iob.Updater
	}
	t.subscriptions[key] = sub
	return nil
}

// Unsubscribe drops a subscription, releasing its book memory.
func (t *Transformer) Unsubscribe(key string) {
	delete(t.subscriptions, key)
}

// Handle routes one decoded frame. A Response frame yields no result. A
// frame referring to an unknown subscription yields an UnknownSubscription
// error. Otherwise the frame is dispatched to its subscription's updater
// (book frames) or translated directly (trade frames).
func (t *Transformer) Handle(frame decode.Frame, now time.Time) (events.Result, bool) {
	switch frame.Kind {
	case decode.KindResponse:
		return events.Result{}, false

	case decode.KindTrade:
		sub, ok := t.subscriptions[frame.Trade.SubscriptionKey]
		if !ok {
			return events.Fail(&events.DataError{
				Kind:         events.UnknownSubscription,
				Subscription: frame.Trade.SubscriptionKey,
				Err:          errUnknownSubscription(frame.Trade.SubscriptionKey),
			}), true
		}
		return events.Ok(events.MarketEvent{
			Exchange:     sub.exchange,
			Instrument:   sub.instrument,
			ExchangeTime: frame.Trade.ExchangeTime,
			ReceivedTime: now,
			Kind:         events.KindPublicTrade,
			Trade: &events.PublicTrade{
				Price:   frame.Trade.Price,
				Amount:  frame.Trade.Amount,
				Side:    frame.Trade.Side,
				TradeID: frame.Trade.TradeID,
			},
		}), true

	case decode.KindBook:
		sub, ok := t.subscriptions[frame.Book.SubscriptionKey]
		if !ok {
			return events.Fail(&events.DataError{
				Kind:         events.UnknownSubscription,
				Subscription: frame.Book.SubscriptionKey,
				Err:          errUnknownSubscription(frame.Book.SubscriptionKey),
			}), true
		}
		snap, err := sub.updater.Update(frame.Book)
		if err != nil {
			dataErr := classifyUpdaterError(sub, frame.Book.SubscriptionKey, err)
			if dataErr.Kind == events.Fatal {
				// Terminal for the subscription, not the connection: drop it
				// from the map so the next frame for this key comes back as
				// UnknownSubscription instead of being routed to a book that
				// is no longer being maintained.
				delete(t.subscriptions, frame.Book.SubscriptionKey)
				log.Warn().Str("subscription", frame.Book.SubscriptionKey).Err(err).
					Msg("fatal subscription error, unsubscribing")
			}
			return events.Fail(dataErr), true
		}
		if snap == nil {
			return events.Result{}, false
		}
		ev := events.MarketEvent{
			Exchange:     sub.exchange,
			Instrument:   sub.instrument,
			ExchangeTime: snap.LastUpdateTime,
			ReceivedTime: now,
		}
		if sub.output == OutputOrderBookL1 {
			l1 := snap.IntoL1()
			ev.Kind = events.KindOrderBookL1
			ev.OrderBookL1 = &events.OrderBookL1{
				LastUpdateTime: l1.LastUpdateTime,
				BestBid:        l1.BestBid,
				BestAsk:        l1.BestAsk,
			}
		} else {
			ev.Kind = events.KindOrderBook
			ev.OrderBook = snap
		}
		return events.Ok(ev), true

	default:
		return events.Fail(&events.DataError{
			Kind: events.Decode,
			Err:  errUnrecognizedFrameKind,
		}), true
	}
}

func classifyUpdaterError(sub *subscription, key string, err error) *events.DataError {
	kind := events.InvalidSequence
	switch {
	case errors.Is(err, sequence.ErrSnapshotMissing):
		kind = events.SnapshotMissing
	case errors.Is(err, sequence.ErrReservedUpdateID):
		kind = events.Fatal
	}
	return &events.DataError{
		Kind:         kind,
		Exchange:     sub.exchange,
		Instrument:   sub.instrument,
		Subscription: key,
		Err:          err,
	}
}
