package book

import (
	"math"

	"github.com/BullionBear/marketfeed/internal/instrument"
	"github.com/emirpasic/gods/maps/treemap"
)

// priceComparator orders prices ascending. Both sides share it; direction
// (bids high->low, asks low->high) is applied at read time by Best/Iter,
// mirroring the teacher's BookArray, which used one ascending comparator
// and toggled direction in GetBestLayer/GetBook instead of keeping two
// differently-ordered trees.
func priceComparator(a, b interface{}) int {
	pa, pb := a.(float64), b.(float64)
	switch {
	case pa < pb:
		return -1
	case pa > pb:
		return 1
	default:
		return 0
	}
}

// Side is a sorted, bounded container of price levels belonging to one side
// of an order book. It maintains the invariants spec'd for BookSide: no two
// levels share a price, no level has a zero amount, and the side never grows
// past its configured depth.
type Side struct {
	side   instrument.Side
	depth  int
	levels *treemap.Map
}

// NewSide builds a Side from an unordered batch of levels: zero-amount
// levels are filtered, same-price levels are deduplicated (last write
// wins), the result is depth-bounded.
func NewSide(side instrument.Side, depth int, initial []Level) *Side {
	s := &Side{
		side:   side,
		depth:  depth,
		levels: treemap.NewWith(priceComparator),
	}
	s.applyBatch(initial)
	s.trim()
	return s
}

// Upsert applies a batch of levels: a level with Amount == 0 deletes any
// existing level at that price (a no-op if none exists); otherwise the level
// at that price is replaced or inserted. Within one batch, later entries for
// the same price win.
func (s *Side) Upsert(levels []Level) {
	s.applyBatch(levels)
	s.trim()
}

func (s *Side) applyBatch(levels []Level) {
	for _, lvl := range levels {
		if lvl.Amount == 0 {
			s.levels.Remove(lvl.Price)
			continue
		}
		s.levels.Put(lvl.Price, lvl.Amount)
	}
}

// trim drops the worst-priced level until the side is back within depth.
// For bids the worst price is the lowest (best is highest); for asks the
// worst price is the highest (best is lowest).
func (s *Side) trim() {
	if s.depth <= 0 {
		return
	}
	for s.levels.Size() > s.depth {
		var worst interface{}
		if s.side == instrument.Buy {
			worst, _ = s.levels.Min()
		} else {
			worst, _ = s.levels.Max()
		}
		if worst == nil {
			return
		}
		s.levels.Remove(worst)
	}
}

// Best returns the top-of-book level for this side, or the zero-level
// sentinel if the side is empty.
func (s *Side) Best() Level {
	var price, amount interface{}
	if s.side == instrument.Buy {
		price, amount = s.levels.Max()
	} else {
		price, amount = s.levels.Min()
	}
	if price == nil {
		return ZeroLevel
	}
	return Level{Price: price.(float64), Amount: amount.(float64)}
}

// Len returns the number of levels currently held.
func (s *Side) Len() int {
	return s.levels.Size()
}

// Iter returns the levels in price-priority order: bids high->low, asks
// low->high.
func (s *Side) Iter() []Level {
	out := make([]Level, 0, s.levels.Size())
	it := s.levels.Iterator()
	if s.side == instrument.Buy {
		for it.End(); it.Prev(); {
			out = append(out, Level{Price: it.Key().(float64), Amount: it.Value().(float64)})
		}
	} else {
		for it.Next() {
			out = append(out, Level{Price: it.Key().(float64), Amount: it.Value().(float64)})
		}
	}
	return out
}

// Clone returns a deep, independent copy of the side, used when emitting an
// immutable snapshot.
func (s *Side) Clone() *Side {
	clone := &Side{side: s.side, depth: s.depth, levels: treemap.NewWith(priceComparator)}
	it := s.levels.Iterator()
	for it.Next() {
		clone.levels.Put(it.Key(), it.Value())
	}
	return clone
}

// ValidLevel reports whether a level is acceptable input: a finite,
// non-negative price and amount. NaN, Inf and negative values are decode
// errors, not BookSide concerns — callers validate before Upsert/NewSide
// ever sees a level.
func ValidLevel(l Level) bool {
	return isFiniteNonNegative(l.Price) && isFiniteNonNegative(l.Amount)
}

func isFiniteNonNegative(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0) && f >= 0
}
