// Package dispatch implements the transport-independent business logic:
// given one inbound request and an outbound response channel, decide
// what to do and emit a correctly-shaped response stream. No package
// here knows about sockets, CBOR framing, or admission control — those
// live in internal/transport; dispatch only sees internal/wire messages.
package dispatch

import (
	"context"

	"go.uber.org/zap"

	"github.com/dreamware/dindex/internal/direrr"
	"github.com/dreamware/dindex/internal/listener"
	"github.com/dreamware/dindex/internal/query"
	"github.com/dreamware/dindex/internal/record"
	"github.com/dreamware/dindex/internal/signing"
	"github.com/dreamware/dindex/internal/snapshot"
	"github.com/dreamware/dindex/internal/store"
	"github.com/dreamware/dindex/internal/wire"
)

// Deps bundles the collaborators one dispatch call needs, injected
// rather than reached for as globals — the same constructor-injected
// shape torua's HealthMonitor takes its onUnhealthy callback in.
type Deps struct {
	Store     *store.Store
	Listeners *listener.Registry
	Snapshot  snapshot.Snapshotter
	Authority *signing.Authority
	Log       *zap.Logger
}

// Handle consumes exactly one message from in and drives deps
// accordingly, writing zero or more responses to out. It closes out
// before returning, except along the listen path: a live listen
// subscription keeps out open for as long as the registry holds it, and
// Handle returns immediately after registering it — closing out at that
// point is the owning transport's job, on peer disconnect. Along that
// same path, Handle returns the *listener.Listener it registered so the
// caller can close it when the connection ends (spec.md §4.3's "never
// retains a listener whose downstream transport has observably closed");
// every other path returns nil.
func Handle(ctx context.Context, in <-chan wire.Message, out chan<- wire.Message, deps Deps) *listener.Listener {
	req, ok := <-in
	if !ok {
		close(out)
		return nil
	}

	if signing.IsImposter(req.Record) {
		err := direrr.New(direrr.Imposter, "verify record signature", nil)
		if deps.Log != nil {
			deps.Log.Warn("rejecting imposter record", zap.Error(err))
		}
		sendBlocking(ctx, out, wire.Message{Action: wire.ActionUnsolicited, Record: record.Record{
			"error-message": "imposter record: signature present but invalid",
		}})
		close(out)
		return nil
	}

	switch req.Action {
	case wire.ActionQuery:
		handleQuery(ctx, req, out, deps)
		close(out)
		return nil
	case wire.ActionPublish:
		handlePublish(req, deps)
		close(out)
		return nil
	case wire.ActionListen:
		l := handleListen(req, out, deps)
		// out stays open; the caller closes it (and l) on disconnect.
		return l
	default:
		err := direrr.Withf(direrr.Semantic, "dispatch request", nil, "unknown action %d", req.Action)
		if deps.Log != nil {
			deps.Log.Warn("dropping request", zap.Error(err))
		}
		close(out)
		return nil
	}
}

func handleQuery(ctx context.Context, req wire.Message, out chan<- wire.Message, deps Deps) {
	err := deps.Store.SearchCallback(ctx, req.Record, func(m record.Record) bool {
		return sendBlocking(ctx, out, wire.Message{Action: wire.ActionResult, Record: m})
	})
	if err != nil && deps.Log != nil {
		deps.Log.Warn("query search failed", zap.Error(err))
	}
	sendBlocking(ctx, out, wire.Message{Action: wire.ActionEndOfResults})
}

func handlePublish(req wire.Message, deps Deps) {
	if req.Record.Empty() {
		return
	}
	deps.Store.Insert(req.Record)
	if deps.Snapshot != nil {
		go func() {
			if err := deps.Snapshot.Save(context.Background(), deps.Store.All()); err != nil && deps.Log != nil {
				deps.Log.Warn("snapshot save failed", zap.Error(err))
			}
		}()
	}
}

func handleListen(req wire.Message, out chan<- wire.Message, deps Deps) *listener.Listener {
	compiled := query.Compile(req.Record)
	l := listener.NewListener(newListenerID(), compiled, out)
	deps.Listeners.Register(l)
	return l
}

// sendBlocking delivers m to out, the egress sub-task's concurrently
// running read loop being the intended receiver, aborting early if ctx
// is cancelled mid-send. Reports whether the send completed.
func sendBlocking(ctx context.Context, out chan<- wire.Message, m wire.Message) bool {
	select {
	case out <- m:
		return true
	case <-ctx.Done():
		return false
	}
}
