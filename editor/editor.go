// Package editor reconciles an rga.Replica with a live text editor whose
// change notifications arrive asynchronously and may race with remote
// operations. It is the diff-then-apply reconciliation layer: every
// local edit is attributed to the user by diffing the editor's current
// value against the last value the replica and editor agreed on, and
// every remote op is applied to the editor with change notifications
// suppressed so the echo it causes is a no-op once it fires.
package editor

import "github.com/adrianfalk/rga"

// Range spans from Start up to (not including) End.
type Range struct {
	Start, End rga.Position
}

// ChangeHandler is called with no arguments whenever the editor's
// contents change, regardless of the change's origin.
type ChangeHandler func()

// Editor is the capability set the reconciliation layer needs from a
// live text editor. Exactly one ChangeHandler is ever registered at a
// time — OnChange replaces it, OffChange clears it — mirroring the
// detach/mutate/reattach suppression sequence the reconciler performs
// around its own writes.
type Editor interface {
	Value() string
	SetValue(s string)
	Insert(pos rga.Position, s string)
	Remove(r Range)
	LineLength(row int) int
	OnChange(h ChangeHandler)
	OffChange()
}
