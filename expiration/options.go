package expiration

import (
	"time"

	expiringcache "github.com/karupanerura/expiring-cache"
)

// DefaultWarningRatio is the share of an item's lifetime used as its warning window
// when WithWarningWindow is not given.
var DefaultWarningRatio = 0.1

// Hook is called with the item's value and the current time of the item's clock.
type Hook[V expiringcache.ValueConstraint] func(value V, at time.Time)

// Option is the interface for the options of the items.
type Option[V expiringcache.ValueConstraint] interface {
	apply(*options[V])
}

type optionFunc[V expiringcache.ValueConstraint] func(*options[V])

func (f optionFunc[V]) apply(o *options[V]) {
	f(o)
}

// WithClock sets the clock the item uses to evaluate its deadline.
func WithClock[V expiringcache.ValueConstraint](clock expiringcache.Clock) Option[V] {
	return optionFunc[V](func(o *options[V]) {
		o.clock = clock
	})
}

// WithWarningWindow sets how long before its deadline an item reports IsAboutToExpire.
// The window must not be negative.
func WithWarningWindow[V expiringcache.ValueConstraint](window time.Duration) Option[V] {
	if window < 0 {
		panic("warning window must not be negative")
	}
	return optionFunc[V](func(o *options[V]) {
		o.warning = window
		o.warningSet = true
	})
}

// OnExpire sets the hook called when the item is evicted because it expired.
func OnExpire[V expiringcache.ValueConstraint](hook Hook[V]) Option[V] {
	return optionFunc[V](func(o *options[V]) {
		o.onExpire = hook
	})
}

// OnRemove sets the hook called when the item is removed explicitly.
func OnRemove[V expiringcache.ValueConstraint](hook Hook[V]) Option[V] {
	return optionFunc[V](func(o *options[V]) {
		o.onRemove = hook
	})
}

// OnAboutToExpire sets the hook called once when the item enters its warning window.
func OnAboutToExpire[V expiringcache.ValueConstraint](hook Hook[V]) Option[V] {
	return optionFunc[V](func(o *options[V]) {
		o.onAboutToExpire = hook
	})
}

type options[V expiringcache.ValueConstraint] struct {
	clock           expiringcache.Clock
	warning         time.Duration
	warningSet      bool
	onExpire        Hook[V]
	onRemove        Hook[V]
	onAboutToExpire Hook[V]
}

func newOptions[V expiringcache.ValueConstraint](opts []Option[V]) options[V] {
	o := options[V]{clock: expiringcache.SystemClock}
	for _, opt := range opts {
		opt.apply(&o)
	}
	return o
}

// warningWindow returns the configured warning window, or the default share of lifetime.
func (o *options[V]) warningWindow(lifetime time.Duration) time.Duration {
	if o.warningSet {
		return o.warning
	}
	if lifetime <= 0 {
		return 0
	}
	return time.Duration(float64(lifetime) * DefaultWarningRatio)
}
