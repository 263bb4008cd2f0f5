package expiration

import (
	"time"

	expiringcache "github.com/karupanerura/expiring-cache"
)

// PermanentFactory returns a factory that wraps values into Permanent items.
func PermanentFactory[V expiringcache.ValueConstraint](opts ...Option[V]) expiringcache.ItemFactory[V] {
	o := newOptions(opts)
	return expiringcache.ItemFactoryFunc[V](func(value V) expiringcache.Item[V] {
		return newPermanent(value, o)
	})
}

// AbsoluteFactory returns a factory that wraps values into Absolute items expiring ttl after creation.
func AbsoluteFactory[V expiringcache.ValueConstraint](ttl time.Duration, opts ...Option[V]) expiringcache.ItemFactory[V] {
	if ttl <= 0 {
		panic("ttl must be positive")
	}
	o := newOptions(opts)
	return expiringcache.ItemFactoryFunc[V](func(value V) expiringcache.Item[V] {
		return newAbsolute(value, o.clock.Now().Add(ttl), ttl, o)
	})
}

// SlidingFactory returns a factory that wraps values into Sliding items with the given window.
func SlidingFactory[V expiringcache.ValueConstraint](window time.Duration, opts ...Option[V]) expiringcache.ItemFactory[V] {
	if window <= 0 {
		panic("window must be positive")
	}
	o := newOptions(opts)
	return expiringcache.ItemFactoryFunc[V](func(value V) expiringcache.Item[V] {
		return newSliding(value, window, o)
	})
}
