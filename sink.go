package rga

// Sink receives operations that a Replica has applied locally. Each op is
// delivered to every subscriber except the one that handed the op to
// Apply in the first place (the broadcast "sender"), preventing echo
// loops when two replicas are tied to each other.
//
// Implementations must tolerate the owning Replica going away; a Sink
// holds only a logical, not an owning, reference to it.
type Sink interface {
	// Notify delivers op to the sink. sender identifies which sink (if
	// any) originally delivered op to the replica that's broadcasting it;
	// a locally-generated op has a nil sender.
	Notify(op Op, sender Sink)
}

// Applier integrates a foreign op, received from sender. *Replica
// satisfies it directly; editor.Reconciler satisfies it by translating
// the op into an editor mutation before handing it to its own replica,
// so that whatever delivers ops to a replica's Front doesn't need to
// know whether an editor is attached on the other end.
type Applier interface {
	Apply(op Op, sender Sink) error
}

// Queue defers a batch of callbacks to run later, in FIFO order, no
// sooner than after the current task returns. A Replica uses a Queue to
// broadcast ops without synchronously re-entering its subscribers.
//
// github.com/adrianfalk/rga/bus provides a test-friendly drain-on-demand
// implementation and a production goroutine-backed one; both satisfy this
// interface structurally, without importing this package.
type Queue interface {
	Schedule(task func())
}
