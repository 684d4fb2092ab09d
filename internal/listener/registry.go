package listener

import (
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/dreamware/dindex/internal/query"
	"github.com/dreamware/dindex/internal/record"
	"github.com/dreamware/dindex/internal/wire"
)

// Listener is one outstanding "listen" subscription: a compiled query
// plus the channel its matches are pushed down. alive is flipped false
// by the owning transport when its peer disconnects; the registry reaps
// dead listeners lazily rather than being told synchronously.
type Listener struct {
	ID    string
	Query query.Compiled
	Out   chan<- wire.Message
	alive *atomic.Bool
}

// NewListener wraps out as a live Listener matching q.
func NewListener(id string, q query.Compiled, out chan<- wire.Message) *Listener {
	alive := &atomic.Bool{}
	alive.Store(true)
	return &Listener{ID: id, Query: q, Out: out, alive: alive}
}

// Close marks the listener dead. Safe to call more than once.
func (l *Listener) Close() { l.alive.Store(false) }

// Alive reports whether the listener's owning connection is still up.
func (l *Listener) Alive() bool { return l.alive.Load() }

// Registry tracks every live listener for one store, fanning out
// publishes and reaping stale entries. Grounded on
// internal/coordinator/health_monitor.go's liveness-tracking-under-mutex
// shape and shard_registry.go's copy-out-before-release discipline: the
// listener slice is copied out under the lock, then iterated without it,
// so a slow or blocked channel send never holds the registry mutex.
type Registry struct {
	mu        sync.Mutex
	listeners []*Listener
	max       int
	log       *zap.Logger
}

// NewRegistry builds a Registry that evicts its oldest listener once more
// than max are registered.
func NewRegistry(max int, log *zap.Logger) *Registry {
	return &Registry{max: max, log: log}
}

// Register adds l to the registry, evicting the oldest listener first if
// doing so would exceed the configured maximum.
func (r *Registry) Register(l *Listener) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners = append(r.listeners, l)
	r.trimLocked(sendEndOfResults)
}

// NotifyInsert fans a newly inserted record out to every live listener
// whose query matches it. A send to a full or blocked listener channel
// is dropped, not retried: spec.md's "send failure is not fatal".
func (r *Registry) NotifyInsert(rec record.Record) {
	r.mu.Lock()
	snapshot := append([]*Listener(nil), r.listeners...)
	r.mu.Unlock()

	for _, l := range snapshot {
		if !l.Alive() {
			continue
		}
		if !query.Match(l.Query, rec) {
			continue
		}
		select {
		case l.Out <- wire.Message{Action: wire.ActionResult, Record: rec}:
		default:
			if r.log != nil {
				r.log.Warn("dropped match: listener channel full", zap.String("listener", l.ID))
			}
		}
	}
}

// TrimInvalid drops dead listeners and, if still over the configured
// maximum, evicts the oldest survivors, sending each dropped listener an
// end_of_results message.
func (r *Registry) TrimInvalid() {
	r.mu.Lock()
	defer r.mu.Unlock()

	live := r.listeners[:0:0]
	for _, l := range r.listeners {
		if l.Alive() {
			live = append(live, l)
		}
	}
	r.listeners = live
	r.trimLocked(sendEndOfResults)
}

// TrimAll sends end_of_results to every listener and clears the
// registry — the server shutdown path.
func (r *Registry) TrimAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, l := range r.listeners {
		sendEndOfResults(l)
		l.Close()
	}
	r.listeners = nil
}

// Len reports the current listener count, for diagnostics/tests.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.listeners)
}

// trimLocked drops the oldest listeners past r.max, calling onDrop for
// each. Must be called with r.mu held.
func (r *Registry) trimLocked(onDrop func(*Listener)) {
	if r.max <= 0 || len(r.listeners) <= r.max {
		return
	}
	excess := len(r.listeners) - r.max
	for _, l := range r.listeners[:excess] {
		onDrop(l)
		l.Close()
	}
	r.listeners = r.listeners[excess:]
}

func sendEndOfResults(l *Listener) {
	select {
	case l.Out <- wire.Message{Action: wire.ActionEndOfResults}:
	default:
	}
}
