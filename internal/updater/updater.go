// Package updater composes an order book, a sequence validator, and the
// bookkeeping state that ties them together: the BookUpdater described by
// the ingestion pipeline. One Updater backs exactly one (exchange,
// instrument) subscription and is only ever touched from that
// subscription's driver task.
package updater

import (
	"errors"
	"time"

	"github.com/BullionBear/marketfeed/internal/book"
	"github.com/BullionBear/marketfeed/internal/decode"
	"github.com/BullionBear/marketfeed/internal/instrument"
	"github.com/BullionBear/marketfeed/internal/sequence"
	"github.com/BullionBear/marketfeed/pkg/logger"
)

var log = logger.Component("updater")

// State tracks the bookkeeping BookUpdater exposes alongside the book
// itself.
type State struct {
	UpdatesProcessed int64
	LastUpdateID     int64
	Initialized      bool
}

// Updater is the BookUpdater: (OrderBook, SequenceValidator, State).
type Updater struct {
	Book      *book.Book
	Validator sequence.Validator
	State     State

	// BufferLimit, when > 0, batches up to that many accepted deltas
	// before applying them to Book as one upsert, per BookConfig's
	// WebsocketBufferEnabled/WebsocketBufferLimit. 0 applies every
	// accepted delta immediately.
	BufferLimit int

	pendingBids []book.Level
	pendingAsks []book.Level
	pendingN    int
	pendingTime time.Time

	snapshotMissingLogged bool
	resyncing             bool
}

// New returns an empty Updater for the given depth and sequence family.
// bufferLimit <= 0 disables delta batching: every accepted delta is applied
// and emitted immediately.
func New(depth int, family sequence.Family, bufferLimit int) *Updater {
	return &Updater{
		Book:        book.NewBook(depth),
		Validator:   sequence.New(family),
		BufferLimit: bufferLimit,
	}
}

// InstrumentOrderBook pairs an Updater with the instrument it serves,
// mirroring the handle a MultiBookTransformer keeps per subscription.
type InstrumentOrderBook struct {
	Instrument instrument.Instrument
	Updater    *Updater
}

// Init builds an empty InstrumentOrderBook. requestSnapshot, if non-nil, is
// invoked to let an exchange-specific adapter issue whatever out-of-band
// message (an HTTP fetch or a WS request sent through the connection's
// transport sender) the exchange needs to produce its first snapshot; the
// updater itself is exchange-agnostic and does not know how to obtain one.
func Init(depth int, family sequence.Family, bufferLimit int, inst instrument.Instrument, requestSnapshot func() error) (*InstrumentOrderBook, error) {
	iob := &InstrumentOrderBook{
		Instrument: inst,
		Updater:    New(depth, family, bufferLimit),
	}
	if requestSnapshot != nil {
		if err := requestSnapshot(); err != nil {
			return nil, err
		}
	}
	return iob, nil
}

func (u *Updater) clearPending() {
	u.pendingBids = nil
	u.pendingAsks = nil
	u.pendingN = 0
}

// Update applies one decoded book envelope and returns the resulting
// immutable snapshot, or nil if the update produced no emission (an empty
// delta, a delta still sitting in the buffer, or a rejected/fatal update).
func (u *Updater) Update(env decode.UpdateEnvelope) (*book.Book, error) {
	switch env.Kind {
	case decode.Snapshot:
		u.Validator.ValidateSnapshot(env.LastUpdateID)
		u.Book.ApplySnapshot(book.Update{Bids: env.Bids, Asks: env.Asks}, env.ExchangeTime)
		u.State.LastUpdateID = env.LastUpdateID
		u.State.UpdatesProcessed = 0
		u.State.Initialized = true
		u.clearPending()
		if u.resyncing {
			u.resyncing = false
			log.Info().Int64("update_id", env.LastUpdateID).Msg("resync end")
		}
		log.Debug().Int64("update_id", env.LastUpdateID).Msg("snapshot accepted")
		return u.Book.Snapshot(), nil

	case decode.Delta:
		outcome, err := u.Validator.ValidateDelta(env.FirstUpdateID, env.LastUpdateID)
		switch outcome {
		case sequence.Accept:
			u.State.LastUpdateID = env.LastUpdateID
			u.State.UpdatesProcessed++
			log.Debug().Int64("update_id", env.LastUpdateID).Msg("delta accepted")
			if len(env.Bids) == 0 && len(env.Asks) == 0 {
				return nil, nil
			}
			if u.BufferLimit <= 0 {
				u.Book.ApplyDelta(book.Update{Bids: env.Bids, Asks: env.Asks}, env.ExchangeTime)
				return u.Book.Snapshot(), nil
			}
			u.pendingBids = append(u.pendingBids, env.Bids...)
			u.pendingAsks = append(u.pendingAsks, env.Asks...)
			u.pendingN++
			u.pendingTime = env.ExchangeTime
			if u.pendingN < u.BufferLimit {
				return nil, nil
			}
			u.Book.ApplyDelta(book.Update{Bids: u.pendingBids, Asks: u.pendingAsks}, u.pendingTime)
			u.clearPending()
			return u.Book.Snapshot(), nil

		case sequence.RejectResync:
			u.clearPending()
			if errors.Is(err, sequence.ErrSnapshotMissing) {
				if !u.snapshotMissingLogged {
					u.snapshotMissingLogged = true
					log.Info().Msg("snapshot missing, dropping deltas until snapshot arrives")
				}
				return nil, err
			}
			if !u.resyncing {
				u.resyncing = true
				u.snapshotMissingLogged = false
				log.Info().Err(err).Msg("resync start")
			}
			return nil, err

		case sequence.Fatal:
			u.clearPending()
			log.Warn().Err(err).Msg("fatal subscription error")
			return nil, err

		default:
			return nil, errors.New("updater: unknown validator outcome")
		}

	default:
		return nil, errors.New("updater: unknown update kind")
	}
}
