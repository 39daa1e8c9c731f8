package editor

import "errors"

// ErrSyncDrift is returned once Reconciler's invariant — lastText equals
// the replica's text — fails to hold. It is fatal for the session: once
// set, the Reconciler stops translating further edits or remote ops,
// since it can no longer trust its own bookkeeping.
var ErrSyncDrift = errors.New("editor: sync drift between editor and replica")
