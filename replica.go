package rga

import (
	"fmt"
	"sync"

	mapset "github.com/deckarep/golang-set/v2"
)

// Replica is a single site of a replicated growable array. Replicas
// converge to the same visible text under any order and duplication of
// causally-broadcast operations (strong eventual consistency).
//
// A Replica is safe for concurrent use: AddRight, Remove, Apply, On, Off,
// History and Text all acquire an internal lock. This is a concession to
// running each replica's transport and editor callbacks on their own
// goroutine; logically, all mutation is still serialized through a single
// executor, matching §5's "single-threaded, cooperative" scheduling model.
type Replica struct {
	mu sync.Mutex

	id    uint16
	left  *node
	index map[Timestamp]*node
	clk   clock

	queue       Queue
	subscribers mapset.Set[Sink]
	front       Applier
}

// NewReplica creates an empty replica with the given id, using queue to
// defer broadcast delivery to subscribers.
func NewReplica(id uint16, queue Queue) (*Replica, error) {
	if id > MaxReplicaID {
		return nil, fmt.Errorf("%w: %d", ErrInvalidReplicaID, id)
	}
	left := &node{timestamp: Left}
	r := &Replica{
		id:          id,
		left:        left,
		index:       map[Timestamp]*node{Left: left},
		clk:         newClock(id),
		queue:       queue,
		subscribers: mapset.NewThreadUnsafeSet[Sink](),
	}
	r.front = r
	return r, nil
}

// NewReplicaFromHistory creates a replica with the given id and replays
// history deterministically, producing the same final state any other
// replica that has observed the same operations would reach.
func NewReplicaFromHistory(id uint16, queue Queue, history []Op) (*Replica, error) {
	r, err := NewReplica(id, queue)
	if err != nil {
		return nil, err
	}
	for _, op := range history {
		if _, err := r.integrate(op); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// ID returns this replica's id.
func (r *Replica) ID() uint16 {
	return r.id
}

// AddRight mints a fresh timestamp, inserts atom immediately to the right
// of after, and broadcasts the operation to every subscriber. after must
// be present in the replica and not removed.
func (r *Replica) AddRight(after Timestamp, atom rune) (Timestamp, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.index[after]
	if !ok || p.removed {
		return 0, fmt.Errorf("%w: addRight after unknown or removed atom %v", ErrPreconditionViolated, after)
	}
	w := r.clk.mint()
	op := AddRight{After: after, W: w, Atom: atom}
	if _, err := r.integrate(op); err != nil {
		return 0, err
	}
	r.broadcastLocked(op, nil)
	return w, nil
}

// Remove marks t as a tombstone and broadcasts the operation. t must be
// present in the replica and not already removed.
func (r *Replica) Remove(t Timestamp) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	n, ok := r.index[t]
	if !ok || n.removed {
		return fmt.Errorf("%w: remove unknown or already-removed atom %v", ErrPreconditionViolated, t)
	}
	op := Remove{T: t}
	if _, err := r.integrate(op); err != nil {
		return err
	}
	r.broadcastLocked(op, nil)
	return nil
}

// Apply integrates a foreign op, received from sender, without generating
// it locally. Unlike AddRight/Remove, an AddRight whose After node is a
// tombstone is valid: the new atom attaches to the removed node.
//
// If op is a duplicate delivery that didn't change anything — an
// already-indexed addRight, or a remove of an already-tombstoned node —
// Apply integrates it as a no-op and does not rebroadcast it: there is
// nothing new for any subscriber to react to.
//
// Apply is also what a Front ends up calling, directly or (for a plain
// replica with no Front installed) via itself: see SetFront.
func (r *Replica) Apply(op Op, sender Sink) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	changed, err := r.integrate(op)
	if err != nil {
		return err
	}
	if changed {
		r.broadcastLocked(op, sender)
	}
	return nil
}

// integrate places op into the node list / index, reporting whether it
// changed anything. It must be called with r.mu held.
func (r *Replica) integrate(op Op) (changed bool, err error) {
	switch v := op.(type) {
	case AddRight:
		return r.integrateAddRight(v)
	case Remove:
		return r.integrateRemove(v)
	default:
		return false, fmt.Errorf("rga: unsupported op type %T", op)
	}
}

// integrateAddRight implements the downstream addRight placement algorithm
// of §4.2: walk successors of the anchor while they have a larger
// timestamp than the new node, so that siblings end up sorted in strictly
// descending timestamp order.
func (r *Replica) integrateAddRight(op AddRight) (changed bool, err error) {
	p, ok := r.index[op.After]
	if !ok {
		return false, fmt.Errorf("%w: addRight after %v", ErrUnknownReference, op.After)
	}
	if _, exists := r.index[op.W]; exists {
		// Duplicate delivery of an already-integrated insert: no-op.
		return false, nil
	}
	s := p.next
	for s != nil && op.W < s.timestamp {
		p = s
		s = s.next
	}
	n := &node{timestamp: op.W, atom: op.Atom, next: s}
	p.next = n
	r.index[op.W] = n
	r.clk.observe(op.W)
	return true, nil
}

// integrateRemove marks the referenced node as a tombstone. A repeated
// remove of the same target is a no-op, per the convergence-driven
// decision recorded in DESIGN.md.
func (r *Replica) integrateRemove(op Remove) (changed bool, err error) {
	n, ok := r.index[op.T]
	if !ok {
		return false, fmt.Errorf("%w: remove %v", ErrUnknownReference, op.T)
	}
	if n.removed {
		return false, nil
	}
	n.removed = true
	return true, nil
}

// SetFront installs front as the Applier that receives every foreign op a
// Tie or transport.Serve routes to this replica, instead of integrating
// it directly. A Reconciler calls this to put itself ahead of its
// replica for every inbound op, so it can translate the op into an
// editor mutation (per §4.5's onRemoteOp ordering) before the op is
// integrated, rather than only observing it afterward as a Sink would.
// Passing nil restores the replica as its own front.
func (r *Replica) SetFront(front Applier) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if front == nil {
		front = r
	}
	r.front = front
}

// Front returns the Applier currently fronting this replica for inbound
// ops — itself, unless SetFront installed something else.
func (r *Replica) Front() Applier {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.front
}

// AlreadyApplied reports, without mutating the replica, whether op has
// already been integrated and so would be a no-op if applied again. The
// editor reconciliation layer uses this to skip translating a remote op
// into an editor mutation when the replica (and therefore the editor)
// already reflects it — the same duplicate delivery integrate itself
// tolerates, but checked before any editor-visible side effect happens.
func (r *Replica) AlreadyApplied(op Op) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch v := op.(type) {
	case AddRight:
		if _, ok := r.index[v.After]; !ok {
			return false, fmt.Errorf("%w: addRight after %v", ErrUnknownReference, v.After)
		}
		_, exists := r.index[v.W]
		return exists, nil
	case Remove:
		n, ok := r.index[v.T]
		if !ok {
			return false, fmt.Errorf("%w: remove %v", ErrUnknownReference, v.T)
		}
		return n.removed, nil
	default:
		return false, fmt.Errorf("rga: unsupported op type %T", op)
	}
}

// On subscribes sink to every op this replica applies locally, after the
// current call stack returns (delivery goes through the replica's Queue).
// Subscribing the same sink twice is a no-op: subscribers is a set, not a
// list, so a sink already tied to this replica can't receive an op twice.
func (r *Replica) On(sink Sink) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subscribers.Add(sink)
}

// Off unsubscribes sink. It is a no-op if sink was never subscribed.
func (r *Replica) Off(sink Sink) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subscribers.Remove(sink)
}

// broadcastLocked enqueues delivery of op to every subscriber except
// sender. Must be called with r.mu held; the actual Notify calls run later
// on r.queue, so a sink can safely call back into this replica.
func (r *Replica) broadcastLocked(op Op, sender Sink) {
	for _, s := range r.subscribers.ToSlice() {
		if s == sender {
			continue
		}
		s := s
		r.queue.Schedule(func() { s.Notify(op, sender) })
	}
}

// Text returns the concatenation of non-removed atoms in list order.
func (r *Replica) Text() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []rune
	for n := r.left.next; n != nil; n = n.next {
		if !n.removed {
			out = append(out, n.atom)
		}
	}
	return string(out)
}
