package transport

import (
	"fmt"

	"github.com/adrianfalk/rga"
)

// Socket is the byte-oriented connection a replica is tied to: something
// that can exchange one JSON envelope at a time. Implementations must
// serialize their own writes; ReadEnvelope is only ever called by one
// goroutine at a time (ReadWelcome during bootstrap, then Serve's read
// loop), but WriteEnvelope may be called concurrently from a
// socketSink's Notify callback running on the replica's Queue goroutine.
type Socket interface {
	ReadEnvelope() (envelope, error)
	WriteEnvelope(envelope) error
	Close() error
}

// socketSink forwards ops a replica applies locally out over socket, as
// the production counterpart of rga.tieSink's in-process forwarding.
type socketSink struct {
	socket Socket
}

func (s *socketSink) Notify(op rga.Op, sender rga.Sink) {
	w, err := encodeOp(op)
	if err != nil {
		// A sink can't return an error to its replica; an encode failure
		// here means a future op kind was added to rga without a matching
		// wire encoding, a programming error rather than a runtime one.
		panic(err)
	}
	_ = s.socket.WriteEnvelope(envelope{Type: typeOp, Op: &w})
}

// Welcome sends a newly-connected client its assigned replicaID and the
// history it needs to replay via rga.NewReplicaFromHistory before Serve
// starts streaming live ops. replicaID is independent of the sender's own
// replica id — on the server, it's the id server.Server just assigned
// this connection, never the central replica's own id 0.
func Welcome(replicaID uint16, history []rga.Op, socket Socket) error {
	wireHistory, err := encodeHistory(history)
	if err != nil {
		return err
	}
	return socket.WriteEnvelope(envelope{
		Type:      typeWelcome,
		ReplicaID: replicaID,
		History:   wireHistory,
	})
}

// ReadWelcome blocks for the first envelope on socket and decodes it as a
// welcome message, the bootstrap step a client runs before constructing
// its own replica.
func ReadWelcome(socket Socket) (replicaID uint16, history []rga.Op, err error) {
	env, err := socket.ReadEnvelope()
	if err != nil {
		return 0, nil, err
	}
	if env.Type != typeWelcome {
		return 0, nil, fmt.Errorf("transport: expected welcome, got %q", env.Type)
	}
	history, err = decodeHistory(env.History)
	if err != nil {
		return 0, nil, err
	}
	return env.ReplicaID, history, nil
}

// Serve ties replica to socket — subscribing socket to every op replica
// applies locally — and then blocks, applying every op it reads from
// socket to replica's Front, until ReadEnvelope returns an error
// (typically the peer closing the connection). It unsubscribes before
// returning.
//
// Ops read from socket go to replica.Front(), not replica.Apply directly:
// if the caller attached a Reconciler to replica via SetFront, the
// Reconciler needs to see the op before it's integrated, translate it
// into an editor mutation, and only then apply it — the onRemoteOp
// ordering of §4.5. A replica with no Front installed fronts itself, so
// this is also just a plain Apply for any connection with no editor.
func Serve(replica *rga.Replica, socket Socket) error {
	sink := &socketSink{socket: socket}
	replica.On(sink)
	defer replica.Off(sink)

	for {
		env, err := socket.ReadEnvelope()
		if err != nil {
			return err
		}
		if env.Type != typeOp || env.Op == nil {
			return fmt.Errorf("transport: expected op envelope, got %q", env.Type)
		}
		op, err := decodeOp(*env.Op)
		if err != nil {
			return err
		}
		if err := replica.Front().Apply(op, sink); err != nil {
			return err
		}
	}
}
