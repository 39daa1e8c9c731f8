package rga

// History returns an ordered sequence of operations that, replayed on a
// fresh replica via NewReplicaFromHistory, reconstructs this replica's
// list order and tombstones exactly.
//
// Each node contributes one AddRight naming its immediate predecessor in
// list order (not its original causal anchor) as After, so replay always
// appends to the tail of an as-yet-empty successor list and reproduces
// the same order deterministically. A removed node contributes one
// trailing Remove.
func (r *Replica) History() []Op {
	r.mu.Lock()
	defer r.mu.Unlock()

	var ops []Op
	prev := r.left
	for n := r.left.next; n != nil; n = n.next {
		ops = append(ops, AddRight{After: prev.timestamp, W: n.timestamp, Atom: n.atom})
		if n.removed {
			ops = append(ops, Remove{T: n.timestamp})
		}
		prev = n
	}
	return ops
}
