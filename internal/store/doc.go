// Package store implements the sharded in-memory record table: fixed-size
// partitions (shard.go), each protected by its own RWMutex, composed into
// a Store (store.go) that inserts via non-blocking try-lock shard
// selection and searches via a parallel errgroup-based scan.
//
// Shards exist to bound lock contention, not to partition the key space
// by any routing function — unlike the consistent-hashing shard
// assignment a distributed system would use, any shard may hold any
// record, and Search always visits all of them.
package store
