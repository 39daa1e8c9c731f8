package server_test

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adrianfalk/rga"
	"github.com/adrianfalk/rga/bus"
	"github.com/adrianfalk/rga/server"
	"github.com/adrianfalk/rga/transport"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(t *testing.T) (*server.Server, *httptest.Server) {
	t.Helper()
	q := bus.NewGoQueue(16)
	t.Cleanup(q.Close)
	s, err := server.NewServer(q, discardLogger())
	require.NoError(t, err)
	ts := httptest.NewServer(s.Router())
	t.Cleanup(ts.Close)
	return s, ts
}

func dial(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestHealthz(t *testing.T) {
	_, ts := newTestServer(t)
	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestWelcomeAssignsDistinctClientIDs(t *testing.T) {
	s, ts := newTestServer(t)
	_, err := s.Central().AddRight(rga.Left, 'h')
	require.NoError(t, err)

	conn1 := dial(t, ts)
	conn2 := dial(t, ts)

	socket1 := transport.NewWebSocketSocket(conn1)
	socket2 := transport.NewWebSocketSocket(conn2)

	id1, history1, err := transport.ReadWelcome(socket1)
	require.NoError(t, err)
	id2, history2, err := transport.ReadWelcome(socket2)
	require.NoError(t, err)

	assert.NotEqual(t, id1, id2)
	assert.NotEqual(t, uint16(0), id1)
	assert.NotEqual(t, uint16(0), id2)

	r1, err := rga.NewReplicaFromHistory(id1, bus.NewManualQueue(), history1)
	require.NoError(t, err)
	r2, err := rga.NewReplicaFromHistory(id2, bus.NewManualQueue(), history2)
	require.NoError(t, err)
	assert.Equal(t, "h", r1.Text())
	assert.Equal(t, "h", r2.Text())
}

func TestOpsPropagateBetweenClientsThroughTheCentralReplica(t *testing.T) {
	_, ts := newTestServer(t)

	conn1 := dial(t, ts)
	socket1 := transport.NewWebSocketSocket(conn1)
	id1, history1, err := transport.ReadWelcome(socket1)
	require.NoError(t, err)

	q1 := bus.NewGoQueue(8)
	defer q1.Close()
	r1, err := rga.NewReplicaFromHistory(id1, q1, history1)
	require.NoError(t, err)
	go func() { _ = transport.Serve(r1, socket1) }()

	conn2 := dial(t, ts)
	socket2 := transport.NewWebSocketSocket(conn2)
	id2, history2, err := transport.ReadWelcome(socket2)
	require.NoError(t, err)

	q2 := bus.NewGoQueue(8)
	defer q2.Close()
	r2, err := rga.NewReplicaFromHistory(id2, q2, history2)
	require.NoError(t, err)
	go func() { _ = transport.Serve(r2, socket2) }()

	_, err = r1.AddRight(rga.Left, 'z')
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return r2.Text() == "z"
	}, 2*time.Second, 10*time.Millisecond)
}
