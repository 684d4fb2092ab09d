package store

import (
	"context"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/dreamware/dindex/internal/listener"
	"github.com/dreamware/dindex/internal/query"
	"github.com/dreamware/dindex/internal/record"
)

// Store is the sharded, in-memory record table. Insert tries each
// shard's write lock without blocking, taking whichever is free first;
// Search partitions the shard set across a bounded worker pool and
// merges the results. Both behaviors are grounded on spec.md §4.1's
// explicit "non-blocking try, not round-robin" and "parallel scan"
// requirements.
type Store struct {
	shards     []*shard
	listeners  *listener.Registry
	maxRecords int
}

// New builds a Store with numShards partitions, capped at maxRecords
// total records (0 disables the cap), fanning inserts out to reg.
func New(numShards, maxRecords int, reg *listener.Registry) *Store {
	if numShards < 1 {
		numShards = 1
	}
	shards := make([]*shard, numShards)
	for i := range shards {
		shards[i] = &shard{}
	}
	return &Store{shards: shards, listeners: reg, maxRecords: maxRecords}
}

// Listeners exposes the registry Insert notifies, so dispatch can also
// register new listen subscriptions against the same store.
func (s *Store) Listeners() *listener.Registry { return s.listeners }

// Insert adds r to the store, skipping empty records. It tries each
// shard's write lock in turn and commits to the first one that is
// immediately available — never blocking waiting for a specific shard —
// then notifies the listener registry and enforces the capacity bound.
// Returns false if r was empty and therefore not stored.
func (s *Store) Insert(r record.Record) bool {
	if r.Empty() {
		return false
	}

	inserted := false
	for _, sh := range s.shards {
		if sh.tryInsert(r) {
			inserted = true
			break
		}
	}
	if !inserted {
		// Every shard was momentarily locked; fall back to blocking on
		// the first shard rather than dropping the write.
		s.shards[0].mu.Lock()
		s.shards[0].records = append(s.shards[0].records, r)
		s.shards[0].mu.Unlock()
	}

	if s.listeners != nil {
		s.listeners.NotifyInsert(r)
	}
	s.evictIfOverCapacity()
	return true
}

// evictIfOverCapacity drops the oldest record, scanning shards in order,
// until the store is at or under maxRecords. Eviction order beyond
// "oldest shard 0..N, oldest record in that shard" is left undefined, as
// spec.md leaves the exact cross-shard tie-break unspecified.
func (s *Store) evictIfOverCapacity() {
	if s.maxRecords <= 0 {
		return
	}
	for s.total() > s.maxRecords {
		evicted := false
		for _, sh := range s.shards {
			if sh.evictOldest() {
				evicted = true
				break
			}
		}
		if !evicted {
			return
		}
	}
}

func (s *Store) total() int {
	n := 0
	for _, sh := range s.shards {
		n += sh.count()
	}
	return n
}

// Search returns every stored record matching q, scanning shards in
// parallel across up to GOMAXPROCS workers via errgroup. Per spec.md
// §4.1, each worker attempts a non-blocking read lock on its shard; a
// shard that is momentarily write-locked is skipped for this pass
// rather than waited on, trading perfect recall under heavy concurrent
// writes for the store's non-blocking-hot-path guarantee.
func (s *Store) Search(ctx context.Context, q record.Record) ([]record.Record, error) {
	var out []record.Record
	var mu sync.Mutex
	err := s.SearchCallback(ctx, q, func(r record.Record) bool {
		mu.Lock()
		out = append(out, r)
		mu.Unlock()
		return true
	})
	return out, err
}

// SearchCallback partitions the shard set across up to GOMAXPROCS
// worker goroutines via errgroup and invokes onMatch once per matching
// record, without materializing the full result set first — the
// streaming path spec.md §4.1 calls search_callback, used by the query
// dispatcher to emit `result` messages as matches are found rather than
// building the whole slice up front. onMatch returns false to stop
// iteration early; that stop only ends the calling worker's own shard
// loop, per spec.md, not the whole worker pool (a worker moving on to
// its next shard might still emit further matches from other workers).
func (s *Store) SearchCallback(ctx context.Context, q record.Record, onMatch func(record.Record) bool) error {
	compiled := query.Compile(q)
	if compiled.Empty() {
		return nil
	}

	workers := runtime.GOMAXPROCS(0)
	if workers > len(s.shards) {
		workers = len(s.shards)
	}
	if workers < 1 {
		workers = 1
	}

	var cbMu sync.Mutex
	indices := make(chan int, len(s.shards))
	for i := range s.shards {
		indices <- i
	}
	close(indices)

	g, ctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			for i := range indices {
				if err := ctx.Err(); err != nil {
					return err
				}
				sh := s.shards[i]
				stop := false
				sh.tryRead(func(recs []record.Record) {
					for _, r := range recs {
						if !query.Match(compiled, r) {
							continue
						}
						cbMu.Lock()
						cont := onMatch(r)
						cbMu.Unlock()
						if !cont {
							stop = true
							break
						}
					}
				})
				if stop {
					return nil
				}
			}
			return nil
		})
	}
	return g.Wait()
}

// LoadAll appends records to the store, distributing them round-robin
// across shards without notifying listeners — used at startup to restore
// a snapshot into the empty store.
func (s *Store) LoadAll(records []record.Record) {
	for i, r := range records {
		sh := s.shards[i%len(s.shards)]
		sh.mu.Lock()
		sh.records = append(sh.records, r)
		sh.mu.Unlock()
	}
}

// All returns a copy of every record currently stored, for snapshotting.
func (s *Store) All() []record.Record {
	var out []record.Record
	for _, sh := range s.shards {
		sh.read(func(recs []record.Record) {
			out = append(out, recs...)
		})
	}
	return out
}
