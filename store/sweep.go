package store

import (
	"log/slog"
	"slices"

	expiringcache "github.com/karupanerura/expiring-cache"
	"github.com/karupanerura/expiring-cache/internal/iterutil"
	"github.com/karupanerura/expiring-cache/internal/panicutil"
)

// tick is the timer callback. The timer is stopped while the sweep runs so that ticks never overlap.
func (c *Cache[K, V]) tick() {
	c.timer.Stop()

	if err := panicutil.Catch(c.Sweep); err != nil {
		c.lifecycleMu.Lock()
		c.halted = true
		c.lifecycleMu.Unlock()

		c.logger.Error("periodic sweep halted by a panicking hook", slog.Any("error", err))
		c.onSweepError(err)
		return
	}

	c.lifecycleMu.Lock()
	defer c.lifecycleMu.Unlock()
	if !c.closed && !c.halted {
		c.timer.Start()
	}
}

// Sweep notifies the items that are about to expire, then evicts the expired items.
// It is called periodically by the timer and can be called directly. Sweeps never run concurrently.
func (c *Cache[K, V]) Sweep() {
	c.sweepMu.Lock()
	defer c.sweepMu.Unlock()

	notified := c.notifyAboutToExpire()
	evicted, restored := c.evictExpired()
	c.logger.Debug("sweep finished",
		slog.Int("notified", notified),
		slog.Int("evicted", evicted),
		slog.Int("restored", restored),
		slog.Int("remaining", c.items.Len()),
	)
}

// notifyAboutToExpire notifies the live item of every key whose item is about to expire.
func (c *Cache[K, V]) notifyAboutToExpire() (notified int) {
	keys := slices.Collect(iterutil.FilterKeys(c.items.All(), expiringcache.Item[V].IsAboutToExpire))
	for _, key := range keys {
		// the item may have been replaced since the snapshot
		item, ok := c.items.Load(key)
		if !ok || !item.IsAboutToExpire() {
			continue
		}
		item.AboutToExpire()
		notified++
	}
	return
}

// evictExpired removes the item of every key whose item is expired.
// An item that turns out to be valid once removed is put back.
func (c *Cache[K, V]) evictExpired() (evicted, restored int) {
	keys := slices.Collect(iterutil.FilterKeys(c.items.All(), expiringcache.Item[V].IsExpired))
	for _, key := range keys {
		item, ok := c.items.LoadAndDelete(key)
		if !ok {
			continue
		}
		if item.IsExpired() {
			item.Expire()
			evicted++
			continue
		}

		if c.items.TryAdd(key, item) {
			restored++
		} else {
			c.logger.Debug("item renewed during sweep was superseded by a concurrent write", slog.Any("key", key))
		}
	}
	return
}
