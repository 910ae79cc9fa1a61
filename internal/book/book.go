// Package book implements the sorted, bounded price-level container (Side)
// and the order book it backs (Book): upsert/delete in price-priority
// order, immutable snapshots, and L1 (top-of-book) derivation.
package book

import (
	"time"

	"github.com/BullionBear/marketfeed/internal/instrument"
)

// Update is the bid/ask payload applied to a Book by either ApplySnapshot
// or ApplyDelta.
type Update struct {
	Bids []Level
	Asks []Level
}

// Book holds one instrument's bid and ask sides plus the time of the last
// mutation. It is mutated solely by the owning updater on the connection's
// driver task — see internal/updater.
type Book struct {
	Depth          int
	LastUpdateTime time.Time
	Bids           *Side
	Asks           *Side
}

// NewBook returns an empty book bounded to depth levels per side.
func NewBook(depth int) *Book {
	return &Book{
		Depth: depth,
		Bids:  NewSide(instrument.Buy, depth, nil),
		Asks:  NewSide(instrument.Sell, depth, nil),
	}
}

// ApplySnapshot replaces both sides atomically and advances the book's
// timestamp. It is used both for the initial seed and for any exchange
// re-seed (snapshot-while-live).
func (b *Book) ApplySnapshot(u Update, at time.Time) {
	b.Bids = NewSide(instrument.Buy, b.Depth, u.Bids)
	b.Asks = NewSide(instrument.Sell, b.Depth, u.Asks)
	b.LastUpdateTime = at
}

// ApplyDelta upserts bids then asks and advances the book's timestamp.
// Order matters only in that both sides must reflect the full batch before
// the book is considered settled; a crossed intermediate state between the
// two upserts is tolerated, per spec, until the delta completes.
func (b *Book) ApplyDelta(u Update, at time.Time) {
	b.Bids.Upsert(u.Bids)
	b.Asks.Upsert(u.Asks)
	b.LastUpdateTime = at
}

// Snapshot returns a deep, immutable copy suitable for emission downstream.
func (b *Book) Snapshot() *Book {
	return &Book{
		Depth:          b.Depth,
		LastUpdateTime: b.LastUpdateTime,
		Bids:           b.Bids.Clone(),
		Asks:           b.Asks.Clone(),
	}
}

// L1 is the top-of-book view of a Book: best bid and best ask only.
type L1 struct {
	LastUpdateTime time.Time
	BestBid        Level
	BestAsk        Level
}

// IntoL1 derives the top-of-book view. A side with no levels contributes
// the zero-level sentinel.
func (b *Book) IntoL1() L1 {
	return L1{
		LastUpdateTime: b.LastUpdateTime,
		BestBid:        b.Bids.Best(),
		BestAsk:        b.Asks.Best(),
	}
}
