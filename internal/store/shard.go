package store

import (
	"sync"

	"github.com/dreamware/dindex/internal/record"
)

// shard is one partition of the record table. Insert and Search never
// block on each other across shards: a writer only ever waits on its own
// shard's mutex, and only after failing a non-blocking try on every
// other shard first.
type shard struct {
	mu      sync.RWMutex
	records []record.Record
}

// tryInsert appends r under the shard's write lock, returning false
// without blocking if the lock is currently held elsewhere.
func (s *shard) tryInsert(r record.Record) bool {
	if !s.mu.TryLock() {
		return false
	}
	defer s.mu.Unlock()
	s.records = append(s.records, r)
	return true
}

// tryRead runs fn with a read-only snapshot of the shard's records under
// the read lock, returning false without blocking if the lock is
// currently held by a writer.
func (s *shard) tryRead(fn func([]record.Record)) bool {
	if !s.mu.TryRLock() {
		return false
	}
	defer s.mu.RUnlock()
	fn(s.records)
	return true
}

// read runs fn with a read-only snapshot of the shard's records, blocking
// until the read lock is available. Used by Store.All (snapshotting),
// which must see every shard rather than skip contended ones; Search
// uses tryRead instead.
func (s *shard) read(fn func([]record.Record)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(s.records)
}

// count returns the number of records currently held, blocking for the
// read lock.
func (s *shard) count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// evictOldest drops the shard's first (oldest-inserted) record, if any,
// reporting whether one was removed.
func (s *shard) evictOldest() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.records) == 0 {
		return false
	}
	s.records = s.records[1:]
	return true
}
