package transport

import (
	"context"
	"net"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/dreamware/dindex/internal/dispatch"
	"github.com/dreamware/dindex/internal/wire"
)

// streamPeer adapts a net.Conn (TCP or Unix) to the peer interface using
// wire's terminator-delimited framing.
type streamPeer struct {
	conn    net.Conn
	scanner *wire.FrameScanner
}

func newStreamPeer(conn net.Conn) *streamPeer {
	return &streamPeer{conn: conn, scanner: wire.NewFrameScanner(conn)}
}

func (p *streamPeer) readMessage() (wire.Message, error) { return p.scanner.Next() }
func (p *streamPeer) writeMessage(m wire.Message) error  { return wire.WriteFramed(p.conn, m) }
func (p *streamPeer) setDeadline(t time.Time) error      { return p.conn.SetDeadline(t) }
func (p *streamPeer) close() error                       { return p.conn.Close() }

// streamListener runs an accept loop shared by the TCP and Unix
// transports: both use identical 0xFF-terminated framing and differ
// only in the network string passed to net.Listen (spec.md §4.4).
type streamListener struct {
	network   string
	addr      string
	deadline  time.Duration
	admission *Admission
	deps      dispatch.Deps
	log       *zap.Logger
	exit      atomic.Bool
}

// newStreamListener builds a shared TCP/Unix server. network is "tcp" or
// "unix".
func newStreamListener(network, addr string, deadline time.Duration, admission *Admission, deps dispatch.Deps, log *zap.Logger) *streamListener {
	return &streamListener{network: network, addr: addr, deadline: deadline, admission: admission, deps: deps, log: log}
}

// Serve accepts connections until ctx is cancelled, spawning one Session per connection and polling the exit flag and
// TrimInvalid between accepts per spec.md §4.4's admission-control
// paragraph.
func (l *streamListener) Serve(ctx context.Context) error {
	ln, err := net.Listen(l.network, l.addr)
	if err != nil {
		return err
	}
	defer ln.Close()

	go func() {
		<-ctx.Done()
		l.exit.Store(true)
		ln.Close()
	}()

	for {
		if l.exit.Load() {
			return nil
		}
		l.deps.Listeners.TrimInvalid()

		conn, err := ln.Accept()
		if err != nil {
			if l.exit.Load() {
				return nil
			}
			if l.log != nil {
				l.log.Warn("accept failed", zap.String("network", l.network), zap.Error(err))
			}
			continue
		}

		release, err := l.admission.Acquire(ctx)
		if err != nil {
			conn.Close()
			continue
		}

		go func() {
			defer release()
			sess := newSession(newStreamPeer(conn), l.deadline, l.deps)
			sess.Run(ctx, l.log)
		}()
	}
}
