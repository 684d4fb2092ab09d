package client

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
	"github.com/dreamware/dindex/internal/transport"
)

// startTestServer spins up a real TCP listener backed by the production
// dispatch/transport stack, so the client is exercised end-to-end rather
// than against a hand-rolled stub.
func startTestServer(t *testing.T) (addr string, st *store.Store) {
	t.Helper()
	reg := listener.NewRegistry(10, nil)
	st = store.New(4, 0, reg)
	deps := dispatch.Deps{Store: st, Listeners: reg, Snapshot: snapshot.NopSnapshotter{}}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr = ln.Addr().String()
	ln.Close()

	srv := transport.NewTCPServer(addr, 2*time.Second, transport.NewAdmission(8, 0.25), deps, nil)
	ctx, cancel := context.WithCancel(context.Background())
	go srv.Serve(ctx)
	t.Cleanup(cancel)

	// Give the listener a moment to bind before the first dial.
	for i := 0; i < 50; i++ {
		if conn, err := net.DialTimeout("tcp", addr, 10*time.Millisecond); err == nil {
			conn.Close()
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	return addr, st
}

func TestClientPublishThenQuery(t *testing.T) {
	addr, _ := startTestServer(t)
	c := New([]Endpoint{{Name: "only", Network: "tcp", Addr: addr, Timeout: time.Second}})

	ctx := context.Background()
	require.NoError(t, c.Publish(ctx, record.Record{"NAME": "Lorem Ipsum"}))

	// Publish is fire-and-forget; give the server a moment to apply it.
	time.Sleep(50 * time.Millisecond)

	got, err := c.Query(ctx, record.Record{"NAME": "^Lorem"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "only", got[0].Server)
	assert.Equal(t, "Lorem Ipsum", got[0].Record["NAME"])
}

func TestClientQueryUnreachableServerReportsError(t *testing.T) {
	c := New([]Endpoint{{Name: "dead", Network: "tcp", Addr: "127.0.0.1:1", Timeout: 100 * time.Millisecond, ReportErrors: true}})
	_, err := c.Query(context.Background(), record.Record{"NAME": ".*"})
	assert.Error(t, err)
}

func TestClientQuerySuppressesErrorsWhenReportErrorsFalse(t *testing.T) {
	c := New([]Endpoint{{Name: "dead", Network: "tcp", Addr: "127.0.0.1:1", Timeout: 100 * time.Millisecond, ReportErrors: false}})
	_, err := c.Query(context.Background(), record.Record{"NAME": ".*"})
	assert.NoError(t, err)
}

func TestClientListenReceivesMatch(t *testing.T) {
	addr, _ := startTestServer(t)
	c := New([]Endpoint{{Name: "only", Network: "tcp", Addr: addr, Timeout: time.Second}})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	matched := make(chan TaggedRecord, 1)
	go func() {
		_ = c.Listen(ctx, record.Record{"NAME": "^Bob"}, func(tr TaggedRecord) bool {
			matched <- tr
			return false
		})
	}()

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, c.Publish(context.Background(), record.Record{"NAME": "Bob Smith"}))

	select {
	case tr := <-matched:
		assert.Equal(t, "Bob Smith", tr.Record["NAME"])
	case <-time.After(time.Second):
		t.Fatal("listener never received its match")
	}
}
