// Package listener implements the publish/subscribe side of the store:
// a Registry of standing queries, each backed by a channel a transport
// drains into outbound wire messages. Insert fan-out, capacity eviction,
// and dead-listener reaping all live here so internal/store and
// internal/dispatch stay free of subscription bookkeeping.
package listener
