package rga

import (
	"errors"
	"reflect"
)

// ErrHistoryMismatch is returned by Tie when the two replicas have not
// observed the same operations.
var ErrHistoryMismatch = errors.New("rga: tie requires identical histories")

// tieSink forwards ops notified on one side of a Tie into the other
// replica, passing its counterpart as the sender so that replica's next
// broadcast doesn't immediately bounce the op back.
type tieSink struct {
	target      *Replica
	counterpart Sink
}

func (s *tieSink) Notify(op Op, sender Sink) {
	// Routed through target's Front, not Apply directly: target may have
	// a Reconciler installed as its front (via SetFront), which needs to
	// see op before it's integrated, not after. The error is deliberately
	// ignored: a plain integration failure on an op already accepted by
	// one side of a tie would mean the other side's causal precondition
	// was violated, which Tie's own precondition rules out; a Reconciler
	// failure (e.g. ErrSyncDrift) is recorded on the Reconciler itself for
	// its owner to observe via Err().
	_ = s.target.Front().Apply(op, s.counterpart)
}

// Tie installs a as a subscriber of b and b as a subscriber of a, so that
// every op either applies from then on is delivered to the other. Both
// replicas must have identical histories beforehand.
func Tie(a, b *Replica) error {
	if !reflect.DeepEqual(a.History(), b.History()) {
		return ErrHistoryMismatch
	}
	toB := &tieSink{target: b}
	toA := &tieSink{target: a}
	toB.counterpart = toA
	toA.counterpart = toB
	a.On(toB)
	b.On(toA)
	return nil
}
