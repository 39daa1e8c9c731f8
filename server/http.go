package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/felixge/httpsnoop"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/sanity-io/litter"

	"github.com/adrianfalk/rga/transport"
)

// upgrader accepts connections from any origin: the demo client and any
// browser-based frontend are both expected to dial in from elsewhere,
// and spec.md's Non-goals explicitly exclude authentication/access
// control, so there's nothing here to gate on.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Router builds the server's HTTP surface: /ws upgrades to the RGA wire
// protocol, /healthz is a liveness probe, and /debug/state dumps the
// central replica's node list. Every route is wrapped in a logging
// middleware built on httpsnoop, mirroring
// astromechza-automerge-experiments/cmd/four/server/main.go's
// httpsnoop.CaptureMetrics(...) pattern.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.loggingMiddleware)

	r.Methods(http.MethodGet).Path("/ws").HandlerFunc(s.serveWS)
	r.Methods(http.MethodGet).Path("/healthz").HandlerFunc(s.serveHealthz)
	r.Methods(http.MethodGet).Path("/debug/state").HandlerFunc(s.serveDebugState)
	return r
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		m := httpsnoop.CaptureMetrics(next, w, req)
		s.log.Info("handled",
			"method", req.Method,
			"path", req.URL.Path,
			"status", m.Code,
			"duration", m.Duration,
			"bytes", m.Written,
		)
	})
}

func (s *Server) serveWS(w http.ResponseWriter, req *http.Request) {
	conn, err := upgrader.Upgrade(w, req, nil)
	if err != nil {
		s.log.Error("upgrade failed", "err", err)
		return
	}
	socket := transport.NewWebSocketSocket(conn)
	go func() {
		defer socket.Close()
		_ = s.HandleSocket(socket)
	}()
}

func (s *Server) serveHealthz(w http.ResponseWriter, req *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "ok")
}

// serveDebugState pretty-prints the central replica's full node list,
// tombstones included, using litter — the same debug-dump library
// cmd/client uses on its own replica, here pointed at the server's.
func (s *Server) serveDebugState(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintln(w, litter.Sdump(s.central.Nodes()))
}

// ListenAndServe starts an *http.Server bound to addr with Router as its
// handler and an explicit 15-second read timeout. No write timeout is
// set, since the /ws handler holds its connection open indefinitely.
func (s *Server) ListenAndServe(addr string) error {
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      s.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // the /ws handler holds its connection open indefinitely
	}
	s.log.Info("listening", "addr", addr)
	return httpServer.ListenAndServe()
}
