package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	expiringcache "github.com/karupanerura/expiring-cache"
	"github.com/karupanerura/expiring-cache/internal/panicutil"
)

var errLoadAborted = errors.New("load exited without returning")

// LoadFunc loads the value of a key that is missing from the cache.
type LoadFunc[K expiringcache.KeyConstraint, V expiringcache.ValueConstraint] func(ctx context.Context, key K) (V, error)

type loadResult[V expiringcache.ValueConstraint] struct {
	value V
	err   error
}

// flights tracks the callers waiting for each in-flight load.
type flights[K expiringcache.KeyConstraint, V expiringcache.ValueConstraint] struct {
	mu        sync.Mutex
	waitlists map[K][]chan loadResult[V]
}

// join registers a waiter for the key and calls start if no load is in flight for it.
// When no load is in flight, lookup is consulted first so that a key populated by a load
// that just landed is not loaded again.
func (f *flights[K, V]) join(key K, lookup func() (V, bool), start func()) <-chan loadResult[V] {
	f.mu.Lock()
	defer f.mu.Unlock()

	ch := make(chan loadResult[V], 1)
	if len(f.waitlists[key]) == 0 {
		if v, ok := lookup(); ok {
			ch <- loadResult[V]{value: v}
			close(ch)
			return ch
		}
	}
	if f.waitlists == nil {
		f.waitlists = map[K][]chan loadResult[V]{}
	}
	f.waitlists[key] = append(f.waitlists[key], ch)
	if len(f.waitlists[key]) == 1 {
		start()
	}
	return ch
}

// land sends the result to every waiter of the key.
func (f *flights[K, V]) land(key K, r loadResult[V]) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, ch := range f.waitlists[key] {
		ch <- r
		close(ch)
	}
	delete(f.waitlists, key)
}

// GetOrLoad returns the value for the key, renewing sliding items.
// If the key is absent, load is called once for all concurrent callers of the key
// and the loaded value is added with the item factory. If a concurrent writer adds the key first,
// its value wins.
//
// A caller whose context is done stops waiting and returns the context error,
// but the load keeps running and still populates the cache.
// A panic in load is returned as *panics.ErrRecovered of github.com/sourcegraph/conc/panics.
func (c *Cache[K, V]) GetOrLoad(ctx context.Context, key K, load LoadFunc[K, V]) (V, error) {
	var zero V
	key, err := c.key(key)
	if err != nil {
		return zero, err
	}
	if item, ok := c.items.Load(key); ok {
		return item.Value(), nil
	}

	lookup := func() (V, bool) {
		item, ok := c.items.Load(key)
		if !ok {
			return zero, false
		}
		return item.Value(), true
	}
	ch := c.flights.join(key, lookup, func() {
		go c.load(context.WithoutCancel(ctx), key, load)
	})
	select {
	case r := <-ch:
		return r.value, r.err
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

func (c *Cache[K, V]) load(ctx context.Context, key K, load LoadFunc[K, V]) {
	returned := false
	defer func() {
		if !returned {
			c.logger.Error("load exited without returning", slog.Any("key", key))
			c.flights.land(key, loadResult[V]{err: errLoadAborted})
		}
	}()

	var (
		value   V
		loadErr error
	)
	if err := panicutil.Catch(func() {
		value, loadErr = load(ctx, key)
	}); err != nil {
		loadErr = err
	}
	returned = true

	if loadErr != nil {
		c.flights.land(key, loadResult[V]{err: fmt.Errorf("failed to load %v: %w", key, loadErr)})
		return
	}

	item := c.factory.NewItem(value)
	if !c.items.TryAdd(key, item) {
		if cur, ok := c.items.Load(key); ok {
			c.logger.Debug("loaded value was superseded by a concurrent write", slog.Any("key", key))
			item = cur
		}
	}
	c.flights.land(key, loadResult[V]{value: item.Value()})
}
