// cmd/client is a terminal demo of the protocol cmd/server speaks: it
// dials in, receives a welcome, builds a local replica from the history
// it carries, and then keeps an in-memory text buffer reconciled against
// that replica while forwarding/receiving live ops over the same
// connection.
//
// It isn't a real editor — there's no terminal raw-mode input handling —
// but it exercises every piece of the stack: transport, rga, and the
// editor reconciliation layer, end to end, the way cmd/demo/demo.go
// exercised the teacher's causal tree end to end over HTTP.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/gorilla/websocket"
	"github.com/sanity-io/litter"

	"github.com/adrianfalk/rga"
	"github.com/adrianfalk/rga/bus"
	"github.com/adrianfalk/rga/editor"
	"github.com/adrianfalk/rga/transport"
)

func main() {
	if err := mainInner(); err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}
}

func mainInner() error {
	addr := flag.String("addr", "ws://127.0.0.1:8009/ws", "server websocket URL")
	debug := flag.Bool("debug", false, "dump the replica's node list (litter) before each prompt")
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stderr, nil))

	socket, replicaID, history, err := dialWithBackoff(*addr, log)
	if err != nil {
		return err
	}
	defer socket.Close()

	queue := bus.NewGoQueue(64)
	defer queue.Close()

	replica, err := rga.NewReplicaFromHistory(replicaID, queue, history)
	if err != nil {
		return err
	}

	ed := editor.NewBufferEditor(queue)
	rc := editor.NewReconciler(replica, ed)

	go func() {
		if err := transport.Serve(replica, socket); err != nil {
			log.Info("connection closed", "err", err)
		}
	}()

	fmt.Printf("connected as client %d\n", replicaID)
	return repl(ed, rc, replica, *debug)
}

// dialWithBackoff dials addr, retrying with cenkalti/backoff's default
// exponential schedule until it succeeds or the schedule gives up. The
// network layer's reconnection semantics are explicitly outside core
// protocol scope (spec.md §5) — this lives here, in the demo binary, not
// in transport or rga.
func dialWithBackoff(addr string, log *slog.Logger) (*transport.WebSocketSocket, uint16, []rga.Op, error) {
	var socket *transport.WebSocketSocket
	var replicaID uint16
	var history []rga.Op

	op := func() error {
		conn, _, err := websocket.DefaultDialer.Dial(addr, nil)
		if err != nil {
			log.Info("dial failed, retrying", "err", err)
			return err
		}
		s := transport.NewWebSocketSocket(conn)
		id, h, err := transport.ReadWelcome(s)
		if err != nil {
			s.Close()
			return err
		}
		socket, replicaID, history = s, id, h
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = 30 * time.Second
	if err := backoff.Retry(op, b); err != nil {
		return nil, 0, nil, fmt.Errorf("cmd/client: giving up connecting to %s: %w", addr, err)
	}
	return socket, replicaID, history, nil
}

// repl drives ed from stdin. Each line is treated as the document's
// entire new contents — the same "whole buffer in, diff against last
// known state out" shape the reconciliation layer already assumes for
// any editor widget, just fed from a line reader instead of a text
// widget's change events. ":q" exits, ":get" reprints the current value.
func repl(ed *editor.BufferEditor, rc *editor.Reconciler, replica *rga.Replica, debug bool) error {
	scanner := bufio.NewScanner(os.Stdin)
	for {
		if debug {
			fmt.Fprintln(os.Stderr, litter.Sdump(replica.Nodes()))
		}
		fmt.Print("> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := scanner.Text()
		switch line {
		case ":q":
			return nil
		case ":get":
			fmt.Println(ed.Value())
		default:
			ed.SetValue(line)
		}
		if err := rc.Err(); err != nil {
			return fmt.Errorf("cmd/client: reconciler failed: %w", err)
		}
	}
}
