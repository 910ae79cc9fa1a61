// Package sequence implements the per-subscription book-integrity state
// machines: Bybit's snapshot-first delta stream and Binance's
// HTTP-snapshot-plus-range-overlap stream. Both are expressed as the same
// Validator interface so a BookUpdater can be parameterized by exchange
// family without runtime type switches on the hot path.
package sequence

import (
	"errors"
	"fmt"
)

// State is a Validator's lifecycle stage.
type State int

const (
	AwaitingSnapshot State = iota
	Live
)

func (s State) String() string {
	if s == Live {
		return "live"
	}
	return "awaiting_snapshot"
}

// Outcome classifies how a Validator responded to an inbound update. It
// tells the BookUpdater what to do next; it does not itself describe why.
type Outcome int

const (
	// Accept: apply the update and advance last_update_id.
	Accept Outcome = iota
	// RejectResync: do not apply; reset to AwaitingSnapshot and request a
	// fresh snapshot. Idempotent if already AwaitingSnapshot.
	RejectResync
	// Fatal: do not apply; the subscription is unrecoverable and must be
	// torn down by the transformer, not merely resynced.
	Fatal
)

// InvalidSequenceError reports a broken update_id contiguity invariant.
type InvalidSequenceError struct {
	PrevLastUpdateID int64
	FirstUpdateID    int64
}

func (e *InvalidSequenceError) Error() string {
	return fmt.Sprintf("sequence: invalid update_id: prev=%d got=%d", e.PrevLastUpdateID, e.FirstUpdateID)
}

// ErrSnapshotMissing is returned when a delta arrives before any snapshot
// has been accepted.
var ErrSnapshotMissing = errors.New("sequence: delta received before initial snapshot")

// ErrReservedUpdateID is returned when a live delta's update_id is 1, the
// id reserved for the initial snapshot.
var ErrReservedUpdateID = errors.New("sequence: update_id 1 is reserved for the initial snapshot")

// Validator is the per-subscription book-integrity state machine. Exactly
// one Validator backs one BookUpdater; it is never shared across
// subscriptions or driver tasks.
type Validator interface {
	// ValidateSnapshot registers a snapshot carrying updateID. Snapshots are
	// always accepted, whether the validator is AwaitingSnapshot (initial
	// seed) or Live (re-seed).
	ValidateSnapshot(updateID int64) Outcome
	// ValidateDelta validates a delta spanning [firstUpdateID, lastUpdateID]
	// against the validator's current state. For Family A, callers pass the
	// delta's single update_id as both firstUpdateID and lastUpdateID.
	ValidateDelta(firstUpdateID, lastUpdateID int64) (Outcome, error)
	// State reports the validator's current lifecycle stage.
	State() State
	// LastUpdateID reports the last accepted update_id, or 0 if
	// AwaitingSnapshot.
	LastUpdateID() int64
	// Reset forces the validator back to AwaitingSnapshot. Safe to call
	// when already AwaitingSnapshot.
	Reset()
}

// Family selects which state machine New builds.
type Family int

const (
	// FamilyBybit is the snapshot-first delta stream: single update_id per
	// message, contiguous live deltas, update_id 1 reserved.
	FamilyBybit Family = iota
	// FamilyBinance is the HTTP-snapshot + WS-delta range-overlap stream.
	FamilyBinance
)

// New returns a fresh, AwaitingSnapshot validator for the given family.
func New(family Family) Validator {
	switch family {
	case FamilyBinance:
		return &binanceValidator{}
	default:
		return &bybitValidator{}
	}
}

type bybitValidator struct {
	state        State
	lastUpdateID int64
}

func (v *bybitValidator) State() State         { return v.state }
func (v *bybitValidator) LastUpdateID() int64   { return v.lastUpdateID }
func (v *bybitValidator) Reset() {
	v.state = AwaitingSnapshot
	v.lastUpdateID = 0
}

func (v *bybitValidator) ValidateSnapshot(updateID int64) Outcome {
	v.state = Live
	v.lastUpdateID = updateID
	return Accept
}

func (v *bybitValidator) ValidateDelta(_, lastUpdateID int64) (Outcome, error) {
	switch v.state {
	case AwaitingSnapshot:
		// A delta carrying the reserved id while no snapshot has ever been
		// accepted is still an invalid-sequence observation (prev == 0),
		// not a plain "wait for snapshot" drop: the offending id is known
		// and diagnosable. Any other delta while awaiting is rejected with
		// ErrSnapshotMissing and leaves the state unchanged.
		if lastUpdateID == 1 {
			return RejectResync, &InvalidSequenceError{PrevLastUpdateID: 0, FirstUpdateID: lastUpdateID}
		}
		return RejectResync, ErrSnapshotMissing
	default: // Live
		switch {
		case lastUpdateID == 1:
			return Fatal, ErrReservedUpdateID
		case lastUpdateID == v.lastUpdateID+1:
			v.lastUpdateID = lastUpdateID
			return Accept, nil
		default:
			err := &InvalidSequenceError{PrevLastUpdateID: v.lastUpdateID, FirstUpdateID: lastUpdateID}
			v.Reset()
			return RejectResync, err
		}
	}
}

type binanceValidator struct {
	state        State
	lastUpdateID int64
	synced       bool
}

func (v *binanceValidator) State() State       { return v.state }
func (v *binanceValidator) LastUpdateID() int64 { return v.lastUpdateID }
func (v *binanceValidator) Reset() {
	v.state = AwaitingSnapshot
	v.lastUpdateID = 0
	v.synced = false
}

func (v *binanceValidator) ValidateSnapshot(updateID int64) Outcome {
	v.state = Live
	v.lastUpdateID = updateID
	v.synced = false
	return Accept
}

// ValidateDelta applies the range-overlap test to the first delta after a
// snapshot: the delta must cover last_update_id+1. Every later delta must be
// contiguous, starting exactly at last_update_id+1.
func (v *binanceValidator) ValidateDelta(firstUpdateID, lastUpdateID int64) (Outcome, error) {
	if v.state == AwaitingSnapshot {
		return RejectResync, ErrSnapshotMissing
	}
	want := v.lastUpdateID + 1
	ok := firstUpdateID <= want && want <= lastUpdateID
	if v.synced {
		ok = firstUpdateID == want
	}
	if ok {
		v.lastUpdateID = lastUpdateID
		v.synced = true
		return Accept, nil
	}
	err := &InvalidSequenceError{PrevLastUpdateID: v.lastUpdateID, FirstUpdateID: firstUpdateID}
	v.Reset()
	return RejectResync, err
}
