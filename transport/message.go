// Package transport carries rga operations and replica bootstrap state
// over a byte-oriented connection, translating between rga.Op and a JSON
// wire envelope that a Socket implementation reads and writes.
package transport

import (
	"errors"
	"fmt"

	"github.com/adrianfalk/rga"
)

// ErrUnknownOpKind is returned by decodeOp for a wire op naming a kind
// this version of the protocol doesn't understand.
var ErrUnknownOpKind = errors.New("transport: unknown op kind")

// opKind discriminates the wire encoding of rga.Op's two variants.
type opKind string

const (
	kindAddRight opKind = "addRight"
	kindRemove   opKind = "remove"
)

// wireOp is the JSON-friendly encoding of an rga.Op. Atom travels as a
// one-rune string rather than a bare rune so it serializes as a JSON
// string instead of a numeric code point.
type wireOp struct {
	Kind  opKind        `json:"kind"`
	After rga.Timestamp `json:"after,omitempty"`
	W     rga.Timestamp `json:"w,omitempty"`
	Atom  string        `json:"atom,omitempty"`
	T     rga.Timestamp `json:"t,omitempty"`
}

func encodeOp(op rga.Op) (wireOp, error) {
	switch v := op.(type) {
	case rga.AddRight:
		return wireOp{Kind: kindAddRight, After: v.After, W: v.W, Atom: string(v.Atom)}, nil
	case rga.Remove:
		return wireOp{Kind: kindRemove, T: v.T}, nil
	default:
		return wireOp{}, fmt.Errorf("transport: unsupported op type %T", op)
	}
}

func decodeOp(w wireOp) (rga.Op, error) {
	switch w.Kind {
	case kindAddRight:
		r := []rune(w.Atom)
		if len(r) != 1 {
			return nil, fmt.Errorf("transport: addRight atom must be one rune, got %q", w.Atom)
		}
		return rga.AddRight{After: w.After, W: w.W, Atom: r[0]}, nil
	case kindRemove:
		return rga.Remove{T: w.T}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownOpKind, w.Kind)
	}
}

// envelopeType discriminates the two messages this protocol exchanges:
// the server's one-time bootstrap reply and every op thereafter.
type envelopeType string

const (
	typeWelcome envelopeType = "welcome"
	typeOp      envelopeType = "op"
)

// envelope is the top-level wire message. Welcome carries ReplicaID and
// History; Op carries Op. A given envelope populates exactly one of them,
// selected by Type.
type envelope struct {
	Type      envelopeType `json:"type"`
	ReplicaID uint16       `json:"replicaId,omitempty"`
	History   []wireOp     `json:"history,omitempty"`
	Op        *wireOp      `json:"op,omitempty"`
}

func encodeHistory(ops []rga.Op) ([]wireOp, error) {
	out := make([]wireOp, len(ops))
	for i, op := range ops {
		w, err := encodeOp(op)
		if err != nil {
			return nil, err
		}
		out[i] = w
	}
	return out, nil
}

func decodeHistory(wireOps []wireOp) ([]rga.Op, error) {
	out := make([]rga.Op, len(wireOps))
	for i, w := range wireOps {
		op, err := decodeOp(w)
		if err != nil {
			return nil, err
		}
		out[i] = op
	}
	return out, nil
}
