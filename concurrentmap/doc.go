// Package concurrentmap provides an in-memory implementation of the expiringcache.ConcurrentMap interface.
//
// The map is distributed across multiple buckets, each guarded by its own lock, so that
// operations on different keys rarely contend. Every per-key operation is atomic, which makes
// the map usable as the backing store for compare-and-swap update loops.
package concurrentmap
