package store

import (
	"fmt"
	"iter"
	"log/slog"
	"sync"
	"time"

	expiringcache "github.com/karupanerura/expiring-cache"
	"github.com/karupanerura/expiring-cache/internal/iterutil"
	"github.com/karupanerura/expiring-cache/internal/nilcheck"
)

// Cache is a goroutine-safe key/value cache with per-item expiration.
// Every operation goes through the atomic primitives of the underlying map.
type Cache[K expiringcache.KeyConstraint, V expiringcache.ValueConstraint] struct {
	items        expiringcache.ConcurrentMap[K, expiringcache.Item[V]]
	factory      expiringcache.ItemFactory[V]
	timer        expiringcache.Timer
	normalize    func(K) K
	valueEqual   func(a, b V) bool
	logger       *slog.Logger
	onSweepError func(error)
	nilableKey   bool

	sweepMu sync.Mutex
	flights flights[K, V]

	// lifecycleMu guards closed and halted, and orders them with timer restarts.
	lifecycleMu sync.Mutex
	closed      bool
	halted      bool
}

// New creates a cache that sweeps expired items at the given interval.
// The interval must be positive, otherwise New returns ErrInvalidInterval.
// The sweep starts immediately; call Close to stop it.
func New[K expiringcache.KeyConstraint, V expiringcache.ValueConstraint](interval time.Duration, opts ...Option[K, V]) (*Cache[K, V], error) {
	if interval <= 0 {
		return nil, fmt.Errorf("%w: %v", expiringcache.ErrInvalidInterval, interval)
	}

	options := defaultOptions[K, V]()
	for _, opt := range opts {
		opt.apply(&options)
	}

	c := &Cache[K, V]{
		items:        options.itemsOrDefault(),
		factory:      options.factory,
		normalize:    options.normalize,
		valueEqual:   options.valueEqual,
		logger:       options.logger,
		onSweepError: options.onSweepError,
		nilableKey:   nilcheck.Nilable[K](),
	}
	c.timer = options.timerFactory(interval, c.tick)
	c.timer.Start()
	c.logger.Debug("cache started", slog.Duration("interval", interval))
	return c, nil
}

// Close stops the periodic sweep. Items stay in the cache.
// Calling Close more than once does nothing.
func (c *Cache[K, V]) Close() {
	c.lifecycleMu.Lock()
	defer c.lifecycleMu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	c.timer.Stop()
	c.logger.Debug("cache closed")
}

// SetSweepInterval changes the sweep interval.
func (c *Cache[K, V]) SetSweepInterval(interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("%w: %v", expiringcache.ErrInvalidInterval, interval)
	}
	c.timer.SetInterval(interval)
	return nil
}

// key validates the key and returns its canonical form.
func (c *Cache[K, V]) key(key K) (K, error) {
	if c.nilableKey && nilcheck.IsNil(key) {
		return key, expiringcache.ErrNullKey
	}
	if c.normalize != nil {
		key = c.normalize(key)
	}
	return key, nil
}

func checkItem[V expiringcache.ValueConstraint](item expiringcache.Item[V]) error {
	if nilcheck.IsNil(item) {
		return expiringcache.ErrNullEntry
	}
	return nil
}

// Add wraps the value with the item factory and adds it.
// It returns ErrDuplicateKey if the key is already present.
func (c *Cache[K, V]) Add(key K, value V) error {
	key, err := c.key(key)
	if err != nil {
		return err
	}
	return c.items.Add(key, c.factory.NewItem(value))
}

// AddItem adds the item.
// It returns ErrDuplicateKey if the key is already present.
func (c *Cache[K, V]) AddItem(key K, item expiringcache.Item[V]) error {
	key, err := c.key(key)
	if err != nil {
		return err
	}
	if err := checkItem(item); err != nil {
		return err
	}
	return c.items.Add(key, item)
}

// TryAdd wraps the value with the item factory and adds it if the key is absent.
// It reports whether the value was added; an existing item is left untouched.
func (c *Cache[K, V]) TryAdd(key K, value V) (bool, error) {
	key, err := c.key(key)
	if err != nil {
		return false, err
	}
	return c.items.TryAdd(key, c.factory.NewItem(value)), nil
}

// TryAddItem adds the item if the key is absent and reports whether it did.
func (c *Cache[K, V]) TryAddItem(key K, item expiringcache.Item[V]) (bool, error) {
	key, err := c.key(key)
	if err != nil {
		return false, err
	}
	if err := checkItem(item); err != nil {
		return false, err
	}
	return c.items.TryAdd(key, item), nil
}

// Get returns the value for the key, renewing sliding items.
// It returns ErrKeyNotFound if the key is absent.
func (c *Cache[K, V]) Get(key K) (V, error) {
	v, ok, err := c.TryGetValue(key)
	if err != nil {
		return v, err
	}
	if !ok {
		return v, expiringcache.ErrKeyNotFound
	}
	return v, nil
}

// Set wraps the value with the item factory and stores it, replacing any existing item.
// The replaced item is dropped silently: its OnRemove hook is not called.
func (c *Cache[K, V]) Set(key K, value V) error {
	key, err := c.key(key)
	if err != nil {
		return err
	}
	c.items.Store(key, c.factory.NewItem(value))
	return nil
}

// SetItem stores the item, replacing any existing item without calling its OnRemove hook.
func (c *Cache[K, V]) SetItem(key K, item expiringcache.Item[V]) error {
	key, err := c.key(key)
	if err != nil {
		return err
	}
	if err := checkItem(item); err != nil {
		return err
	}
	c.items.Store(key, item)
	return nil
}

// TryGetValue returns the value for the key, renewing sliding items.
func (c *Cache[K, V]) TryGetValue(key K) (V, bool, error) {
	item, ok, err := c.TryGetItem(key)
	if !ok || err != nil {
		var zero V
		return zero, false, err
	}
	return item.Value(), true, nil
}

// TryGetItem returns the item stored for the key.
// Callers must not call the item's notification methods.
func (c *Cache[K, V]) TryGetItem(key K) (expiringcache.Item[V], bool, error) {
	key, err := c.key(key)
	if err != nil {
		return nil, false, err
	}
	item, ok := c.items.Load(key)
	return item, ok, nil
}

// TryPeekValue returns the value for the key without renewing sliding items.
func (c *Cache[K, V]) TryPeekValue(key K) (V, bool, error) {
	item, ok, err := c.TryGetItem(key)
	if !ok || err != nil {
		var zero V
		return zero, false, err
	}
	return item.PeekValue(), true, nil
}

// TryUpdate replaces the value for the key, keeping the policy of the current item.
// It reports false if the key is absent.
func (c *Cache[K, V]) TryUpdate(key K, value V) (bool, error) {
	key, err := c.key(key)
	if err != nil {
		return false, err
	}
	return c.update(key, func(cur expiringcache.Item[V]) expiringcache.Item[V] {
		return cur.CreateNewItem(value)
	}), nil
}

// TryUpdateItem replaces the item for the key. It reports false if the key is absent.
func (c *Cache[K, V]) TryUpdateItem(key K, item expiringcache.Item[V]) (bool, error) {
	key, err := c.key(key)
	if err != nil {
		return false, err
	}
	if err := checkItem(item); err != nil {
		return false, err
	}
	return c.update(key, func(expiringcache.Item[V]) expiringcache.Item[V] {
		return item
	}), nil
}

// TryUpdateFunc replaces the value for the key with f applied to the current value,
// keeping the policy of the current item. f may be called more than once under contention
// and must not have side effects. It reports false if the key is absent.
func (c *Cache[K, V]) TryUpdateFunc(key K, f func(V) V) (bool, error) {
	key, err := c.key(key)
	if err != nil {
		return false, err
	}
	return c.update(key, func(cur expiringcache.Item[V]) expiringcache.Item[V] {
		return cur.CreateNewItem(f(cur.PeekValue()))
	}), nil
}

// update swaps in next(current) with compare-and-swap, retrying on contention
// until it succeeds or the key disappears.
func (c *Cache[K, V]) update(key K, next func(expiringcache.Item[V]) expiringcache.Item[V]) bool {
	for {
		cur, ok := c.items.Load(key)
		if !ok {
			return false
		}
		if c.items.CompareAndSwap(key, cur, next(cur)) {
			return true
		}
	}
}

// Remove removes the key and calls the OnRemove hook of its item.
// It reports false if the key is absent.
func (c *Cache[K, V]) Remove(key K) (bool, error) {
	_, ok, err := c.RemoveItem(key)
	return ok, err
}

// RemoveValue removes the key, calls the OnRemove hook of its item, and returns the removed value.
func (c *Cache[K, V]) RemoveValue(key K) (V, bool, error) {
	item, ok, err := c.RemoveItem(key)
	if !ok || err != nil {
		var zero V
		return zero, false, err
	}
	return item.PeekValue(), true, nil
}

// RemoveItem removes the key, calls the OnRemove hook of its item, and returns the removed item.
func (c *Cache[K, V]) RemoveItem(key K) (expiringcache.Item[V], bool, error) {
	key, err := c.key(key)
	if err != nil {
		return nil, false, err
	}
	item, ok := c.items.LoadAndDelete(key)
	if !ok {
		return nil, false, nil
	}
	item.Remove()
	return item, true, nil
}

// RemovePair removes the key only if its current value equals the pair's value,
// and calls the OnRemove hook of the removed item.
func (c *Cache[K, V]) RemovePair(pair expiringcache.Entry[K, V]) (bool, error) {
	key, err := c.key(pair.Key)
	if err != nil {
		return false, err
	}
	for {
		item, ok := c.items.Load(key)
		if !ok || !c.valueEqual(item.PeekValue(), pair.Value) {
			return false, nil
		}
		if c.items.CompareAndDelete(key, item) {
			item.Remove()
			return true, nil
		}
	}
}

// Clear removes every item at once, then calls the OnRemove hook of each removed item.
// If a hook panics, the hooks of the remaining items are not called.
func (c *Cache[K, V]) Clear() {
	for _, e := range c.items.Drain() {
		e.Value.Remove()
	}
}

// ContainsKey reports whether the key is present. It does not renew sliding items.
func (c *Cache[K, V]) ContainsKey(key K) (bool, error) {
	_, ok, err := c.TryGetItem(key)
	return ok, err
}

// Contains reports whether the key is present with a value equal to the pair's value.
// It does not renew sliding items.
func (c *Cache[K, V]) Contains(pair expiringcache.Entry[K, V]) (bool, error) {
	v, ok, err := c.TryPeekValue(pair.Key)
	if !ok || err != nil {
		return false, err
	}
	return c.valueEqual(v, pair.Value), nil
}

// Len returns the number of items, including expired items that were not swept yet.
func (c *Cache[K, V]) Len() int {
	return c.items.Len()
}

// All returns an iterator over the keys and values.
// Reading a value renews sliding items just like Get.
func (c *Cache[K, V]) All() iter.Seq2[K, V] {
	return iterutil.MapValues(c.items.All(), expiringcache.Item[V].Value)
}

// Items returns an iterator over the keys and items.
func (c *Cache[K, V]) Items() iter.Seq2[K, expiringcache.Item[V]] {
	return c.items.All()
}

// Keys returns an iterator over the keys.
func (c *Cache[K, V]) Keys() iter.Seq[K] {
	return iterutil.Keys(c.items.All())
}

// Values returns an iterator over the values. Reading a value renews sliding items.
func (c *Cache[K, V]) Values() iter.Seq[V] {
	return iterutil.Values(c.All())
}
