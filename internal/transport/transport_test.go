package transport

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamware/dindex/internal/dispatch"
	"github.com/dreamware/dindex/internal/listener"
	"github.com/dreamware/dindex/internal/record"
	"github.com/dreamware/dindex/internal/snapshot"
	"github.com/dreamware/dindex/internal/store"
	"github.com/dreamware/dindex/internal/wire"
)

func testDeps() dispatch.Deps {
	reg := listener.NewRegistry(10, nil)
	return dispatch.Deps{
		Store:     store.New(4, 0, reg),
		Listeners: reg,
		Snapshot:  snapshot.NopSnapshotter{},
	}
}

func TestSessionRunHandlesPublishThenQueryOverStreamPeer(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()

	deps := testDeps()
	sess := newSession(newStreamPeer(serverConn), 0, deps)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sess.Run(ctx, nil)

	require.NoError(t, wire.WriteFramed(clientConn, wire.Message{
		Action: wire.ActionPublish,
		Record: record.Record{"NAME": "Lorem Ipsum"},
	}))

	require.NoError(t, wire.WriteFramed(clientConn, wire.Message{
		Action: wire.ActionQuery,
		Record: record.Record{"NAME": "^Lorem"},
	}))

	scanner := wire.NewFrameScanner(clientConn)
	clientConn.SetReadDeadline(time.Now().Add(2 * time.Second))

	m1, err := scanner.Next()
	require.NoError(t, err)
	assert.Equal(t, wire.ActionResult, m1.Action)
	assert.Equal(t, "Lorem Ipsum", m1.Record["NAME"])

	m2, err := scanner.Next()
	require.NoError(t, err)
	assert.Equal(t, wire.ActionEndOfResults, m2.Action)
}

func TestSessionClosesListenerOnPeerDisconnect(t *testing.T) {
	clientConn, serverConn := net.Pipe()

	deps := testDeps()
	sess := newSession(newStreamPeer(serverConn), 0, deps)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		sess.Run(ctx, nil)
		close(done)
	}()

	require.NoError(t, wire.WriteFramed(clientConn, wire.Message{
		Action: wire.ActionListen,
		Record: record.Record{"NAME": "^Lorem"},
	}))

	require.Eventually(t, func() bool {
		return deps.Listeners.Len() == 1
	}, 2*time.Second, time.Millisecond, "listen request should register a listener")

	// Disconnect, then publish a matching record so fan-out tries to
	// write to the now-closed peer; that write failure is what must
	// drive the registered listener's liveness flag to false.
	require.NoError(t, clientConn.Close())
	deps.Store.Insert(record.Record{"NAME": "Lorem Ipsum"})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Session.Run did not return after its peer disconnected")
	}

	deps.Listeners.TrimInvalid()
	assert.Equal(t, 0, deps.Listeners.Len(), "registry must not retain a listener whose connection observably closed")
}

func TestTrimTerminatorStripsTrailingByte(t *testing.T) {
	assert.Equal(t, []byte("abc"), trimTerminator([]byte("abc\xff")))
	assert.Equal(t, []byte("abc"), trimTerminator([]byte("abc")))
}

func TestUDPPortFromAddr(t *testing.T) {
	assert.Equal(t, "7648", udpPortFromAddr("0.0.0.0:7648"))
	assert.Equal(t, "0", udpPortFromAddr("not-an-addr"))
}
