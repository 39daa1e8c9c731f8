package rga

import "errors"

// Sentinel errors for the RGA's error kinds (spec §7). Wrap with
// fmt.Errorf("%w: ...", Err...) to attach the offending timestamp or
// replica id.
var (
	// ErrPreconditionViolated is returned by a local AddRight on an
	// unknown or removed anchor, or a local Remove on an unknown or
	// already-removed target. It is the caller's bug to fix.
	ErrPreconditionViolated = errors.New("rga: precondition violated")

	// ErrUnknownReference is returned when a downstream op names a node
	// not present in the index. It indicates a lost causal dependency;
	// integration of that op is aborted.
	ErrUnknownReference = errors.New("rga: unknown reference")

	// ErrInvalidReplicaID is returned by NewReplica/NewReplicaFromHistory
	// when the given id falls outside [0, 2^16).
	ErrInvalidReplicaID = errors.New("rga: invalid replica id")
)
