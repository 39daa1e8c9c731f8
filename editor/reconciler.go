package editor

import (
	"fmt"
	"sync"

	"github.com/adrianfalk/rga"
	"github.com/adrianfalk/rga/diff"
)

// Reconciler owns an rga.Replica and an Editor, keeping them in sync
// under two independent, asynchronous event sources: the editor's own
// change notifications and remote ops arriving from the replica's bus.
//
// It maintains one piece of extra state, lastText: the editor contents
// as of the last point the two were known to agree. Every public entry
// point re-establishes that agreement (via takeUserEdits) before doing
// anything else, so a remote op is never translated against a stale
// picture of what the user has already typed.
type Reconciler struct {
	mu      sync.Mutex
	replica *rga.Replica
	editor  Editor

	lastText string
	err      error
}

// NewReconciler snapshots replica's current text into editor, subscribes
// to the editor's change event, and installs itself as replica's Front
// (see rga.Replica.SetFront), so that every op a Tie or transport.Serve
// would otherwise apply directly to replica is routed through this
// Reconciler's Apply first.
func NewReconciler(replica *rga.Replica, ed Editor) *Reconciler {
	rc := &Reconciler{replica: replica, editor: ed}
	rc.lastText = replica.Text()
	ed.SetValue(rc.lastText)
	ed.OnChange(rc.takeUserEdits)
	replica.SetFront(rc)
	return rc
}

// Err returns the first error that put this Reconciler into a failed
// state, or nil if it's still healthy. Once non-nil, takeUserEdits and
// Apply are both no-ops: per §7, SyncDrift is fatal for the session.
func (rc *Reconciler) Err() error {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return rc.err
}

func (rc *Reconciler) fail(err error) {
	if rc.err == nil {
		rc.err = err
	}
}

// takeUserEdits is the editor's change handler. It diffs the editor's
// current value against lastText and, if they differ, translates the
// difference into RGA operations on the replica.
func (rc *Reconciler) takeUserEdits() {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.takeUserEditsLocked()
}

func (rc *Reconciler) takeUserEditsLocked() {
	if rc.err != nil {
		return
	}
	current := rc.editor.Value()
	if current == rc.lastText {
		return
	}
	if rc.lastText != rc.replica.Text() {
		rc.fail(fmt.Errorf("%w: before takeUserEdits", ErrSyncDrift))
		return
	}
	patch := diff.Diff(rc.lastText, current)
	if err := rc.applyPatchToReplica(patch); err != nil {
		rc.fail(err)
		return
	}
	rc.lastText = current
	if rc.lastText != rc.replica.Text() {
		rc.fail(fmt.Errorf("%w: after takeUserEdits", ErrSyncDrift))
	}
}

// applyPatchToReplica walks patch in parallel with the replica's visible
// node list, issuing one addRight per inserted rune (each chained as the
// predecessor of the next) and one remove per deleted node.
func (rc *Reconciler) applyPatchToReplica(patch diff.Patch) error {
	visible := rc.replica.VisibleTimestamps()
	cursor := 0
	anchor := rga.Left
	for _, op := range patch {
		switch op.Type {
		case diff.Retain:
			cursor += op.N
			if cursor > 0 {
				anchor = visible[cursor-1]
			}
		case diff.Delete:
			for i := 0; i < op.N; i++ {
				if err := rc.replica.Remove(visible[cursor]); err != nil {
					return err
				}
				cursor++
			}
		case diff.Insert:
			for _, ch := range op.S {
				ts, err := rc.replica.AddRight(anchor, ch)
				if err != nil {
					return err
				}
				anchor = ts
			}
		}
	}
	return nil
}

// Apply implements rga.Applier. It is installed as replica's Front (see
// NewReconciler), so every op a Tie or transport.Serve would otherwise
// hand straight to replica.Apply arrives here first, not yet integrated
// — the onRemoteOp handler of §4.5: take any pending user edit, translate
// op into an editor mutation against the replica's current (pre-
// integration) position index, and only then apply op to the replica.
//
// Getting this ordering backwards — integrating op first and only
// afterward notifying whatever's watching the replica — is exactly the
// bug this method exists to avoid: by the time a passive observer saw
// the op, replica.Text() would already include it while lastText would
// not, tripping takeUserEdits's drift check on a perfectly healthy
// session, and corrupting applyPatchToReplica's cursor arithmetic for
// any local edit still pending against the old node list.
func (rc *Reconciler) Apply(op rga.Op, sender rga.Sink) error {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	// takeUserEdits runs first, unconditionally: any discrepancy between
	// lastText and the editor's live value must be attributed to the user
	// before this remote op disturbs either side.
	rc.takeUserEditsLocked()
	if rc.err != nil {
		return rc.err
	}

	already, err := rc.replica.AlreadyApplied(op)
	if err != nil {
		rc.fail(err)
		return err
	}
	if already {
		// The replica — and so the editor, which tracks it — already
		// reflects this op; nothing to translate. Still route it through
		// Apply so the replica's own no-op/no-rebroadcast bookkeeping
		// runs consistently regardless of how it arrived.
		return rc.replica.Apply(op, sender)
	}

	switch v := op.(type) {
	case rga.AddRight:
		pos, err := rc.replica.RowColAfter(v.After, v.W)
		if err != nil {
			rc.fail(err)
			return err
		}
		rc.withSuppressedChange(func() {
			rc.editor.Insert(pos, string(v.Atom))
		})

	case rga.Remove:
		atom, ok := rc.replica.RuneAt(v.T)
		if !ok {
			err := fmt.Errorf("%w: remote remove %v", rga.ErrUnknownReference, v.T)
			rc.fail(err)
			return err
		}
		before, err := rc.replica.RowColBefore(v.T)
		if err != nil {
			rc.fail(err)
			return err
		}
		after := rga.Advance(before, atom)
		rc.withSuppressedChange(func() {
			rc.editor.Remove(Range{Start: before, End: after})
		})

	default:
		err := fmt.Errorf("editor: unsupported op type %T", op)
		rc.fail(err)
		return err
	}

	if err := rc.replica.Apply(op, sender); err != nil {
		rc.fail(err)
		return err
	}

	rc.lastText = rc.editor.Value()
	if rc.lastText != rc.replica.Text() {
		err := fmt.Errorf("%w: after onRemoteOp", ErrSyncDrift)
		rc.fail(err)
		return err
	}
	return nil
}

// withSuppressedChange detaches the editor's change listener, runs fn,
// then reattaches it. The editor's own async change event for the
// mutation fn performs will fire later and see current == lastText,
// making it a no-op.
func (rc *Reconciler) withSuppressedChange(fn func()) {
	rc.editor.OffChange()
	fn()
	rc.editor.OnChange(rc.takeUserEdits)
}
