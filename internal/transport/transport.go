package transport

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dreamware/dindex/internal/dispatch"
	"github.com/dreamware/dindex/internal/listener"
	"github.com/dreamware/dindex/internal/wire"
)

// peer is the framing-specific read/write primitive each transport
// implements; Session drives the shared per-connection lifecycle
// against whichever peer it is handed, so TCP, Unix, and WebSocket all
// share one ingress/dispatch/egress implementation (spec.md §4.4).
type peer interface {
	readMessage() (wire.Message, error)
	writeMessage(wire.Message) error
	setDeadline(time.Time) error
	close() error
}

// Session owns one connection's lifecycle: three cooperating sub-tasks
// (ingress, dispatch, egress), joined via errgroup before returning, and
// an `alive` flag cleared the moment the connection is torn down. If the
// connection's one request was a `listen`, dispatch.Handle hands back the
// *listener.Listener it registered; Session holds onto it and closes it
// when the session ends, so the listener registry's reap cycle (spec.md
// §4.3) observes the disconnect instead of retaining the listener forever.
type Session struct {
	peer     peer
	deadline time.Duration
	deps     dispatch.Deps
	alive    atomic.Bool
	listener *listener.Listener
}

// newSession wraps p for the shared lifecycle. deadline is applied to
// every read/write on p (spec.md §4.4 step 1); 0 disables deadlines.
func newSession(p peer, deadline time.Duration, deps dispatch.Deps) *Session {
	s := &Session{peer: p, deadline: deadline, deps: deps}
	s.alive.Store(true)
	return s
}

// Alive reports whether the session's peer connection is still
// considered live. Cleared the moment a read or write fails.
func (s *Session) Alive() bool { return s.alive.Load() }

// Run executes the per-connection lifecycle until the peer disconnects
// or ctx is cancelled: read one request, run the dispatcher against it,
// and pump its responses back out, repeating for as long as the
// connection accepts further requests (a listen subscription keeps the
// egress loop alive indefinitely once dispatch.Handle returns with out
// left open).
func (s *Session) Run(ctx context.Context, log *zap.Logger) {
	defer s.peer.close()
	defer s.alive.Store(false)
	defer s.closeListener()

	for {
		if ctx.Err() != nil {
			return
		}
		if s.deadline > 0 {
			if err := s.peer.setDeadline(time.Now().Add(s.deadline)); err != nil {
				return
			}
		}

		req, err := s.peer.readMessage()
		if err != nil {
			return
		}

		in := make(chan wire.Message, 1)
		out := make(chan wire.Message, 8)
		in <- req
		close(in)

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			if l := dispatch.Handle(gctx, in, out, s.deps); l != nil {
				s.listener = l
			}
			return nil
		})
		g.Go(func() error {
			// A listen request leaves `out` open past Handle's return,
			// so this loop keeps draining fan-out matches for as long
			// as the connection (and ctx) lives; ctx cancellation is
			// the only way to unblock it in that case.
			for {
				select {
				case msg, ok := <-out:
					if !ok {
						return nil
					}
					if s.deadline > 0 {
						_ = s.peer.setDeadline(time.Now().Add(s.deadline))
					}
					if err := s.peer.writeMessage(msg); err != nil {
						if log != nil {
							log.Debug("egress write failed", zap.Error(err))
						}
						return err
					}
				case <-gctx.Done():
					return gctx.Err()
				}
			}
		})
		if err := g.Wait(); err != nil {
			return
		}
	}
}

// closeListener marks this session's registered "listen" subscription, if
// any, dead — run from Session.Run's defer chain so the registry's next
// reap cycle (TrimInvalid) drops it as soon as the connection it belongs
// to goes away, per spec.md §4.4 step 4's "clear the connection's
// liveness flag" and §4.3's "never retains a listener whose downstream
// transport has observably closed" invariant.
func (s *Session) closeListener() {
	if s.listener != nil {
		s.listener.Close()
	}
}
