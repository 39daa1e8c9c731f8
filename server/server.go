// Package server hosts a single long-lived central replica and ties it to
// every connected client's transport, per spec §6's "server surface": one
// replica with id 0, one assigned client id per connection, no other
// endpoints in scope beyond the websocket upgrade and a couple of
// operational ones added by the ambient stack.
package server

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/adrianfalk/rga"
	"github.com/adrianfalk/rga/transport"
	"github.com/google/uuid"
)

// ErrServerFull is returned by HandleSocket once every id in
// [1, rga.MaxReplicaID] has been assigned to a still-connected client.
var ErrServerFull = fmt.Errorf("server: no replica ids left to assign")

// Server owns the one central replica every client converges against.
// Unlike the teacher's cmd/demo/demo.go, which kept its document map and
// request counters in package-level globals, both the replica and the
// id-assignment counter are struct fields here, passed explicitly to
// whatever constructs the HTTP router.
type Server struct {
	mu      sync.Mutex
	central *rga.Replica
	nextID  uint32
	inUse   map[uint16]bool
	log     *slog.Logger
}

// NewServer creates a Server around a fresh central replica (id 0) that
// delivers its broadcasts via queue. Production callers pass a
// *bus.GoQueue; tests can pass a *bus.ManualQueue and drain it explicitly.
func NewServer(queue rga.Queue, log *slog.Logger) (*Server, error) {
	central, err := rga.NewReplica(0, queue)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		central: central,
		nextID:  1,
		inUse:   make(map[uint16]bool),
		log:     log,
	}, nil
}

// Central returns the server's one central replica, exposed for the
// debug-dump handler and for tests that want to drive the replica
// directly (e.g. to assert that a locally-applied op eventually reaches
// a connected client).
func (s *Server) Central() *rga.Replica {
	return s.central
}

// assignID hands out the next free id in [1, rga.MaxReplicaID], skipping
// ids currently held by other connections. Ids are recycled once a
// connection's HandleSocket call returns, matching §6's "unique
// positive integer id" per *currently connected* client, not a
// monotonically-growing one that would eventually exhaust the 16-bit
// space under long-running churn.
func (s *Server) assignID() (uint16, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := 0; i <= rga.MaxReplicaID; i++ {
		id := uint16(s.nextID)
		s.nextID++
		if s.nextID > rga.MaxReplicaID {
			s.nextID = 1
		}
		if id != 0 && !s.inUse[id] {
			s.inUse[id] = true
			return id, nil
		}
	}
	return 0, ErrServerFull
}

func (s *Server) releaseID(id uint16) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inUse, id)
}

// HandleSocket assigns socket's connection a fresh client id, sends it
// the welcome message (id plus the central replica's full history so the
// client can build its own replica via rga.NewReplicaFromHistory), then
// ties the central replica to socket until the connection drops.
//
// It blocks for the lifetime of the connection, so callers run it on its
// own goroutine per connection (see Router's /ws handler).
func (s *Server) HandleSocket(socket transport.Socket) error {
	id, err := s.assignID()
	if err != nil {
		s.log.Error("connection refused", "err", err)
		return err
	}
	defer s.releaseID(id)

	connID := uuid.New()
	log := s.log.With("conn", connID, "clientId", id)
	log.Info("client connected")
	defer log.Info("client disconnected")

	if err := transport.Welcome(id, s.central.History(), socket); err != nil {
		log.Error("welcome failed", "err", err)
		return err
	}
	if err := transport.Serve(s.central, socket); err != nil {
		log.Info("serve ended", "err", err)
		return err
	}
	return nil
}
