// Package store provides Cache, a goroutine-safe key/value cache whose items expire
// according to their own expiration policy.
//
// Bare values are wrapped into items by the cache's item factory, permanent items by default.
// A background sweep runs at a fixed interval: it first notifies the items that are about to
// expire and then evicts the ones that expired. Reads never evict, so an expired item stays
// readable until the next sweep removes it.
//
// Hooks registered on items run synchronously on the goroutine that triggers them: the sweep
// goroutine for expiration notices and the caller's goroutine for Remove and Clear. Panics
// raised by hooks on a caller's goroutine are not recovered. A panic raised by a hook during a
// sweep is recovered, logged, and passed to the sweep error handler, and periodic sweeping
// stops for good; Sweep can still be called explicitly.
//
// GetOrLoad fills a missing key from a loader function, calling it once per key no matter how
// many callers are waiting for that key.
package store
