package store

import (
	"log/slog"
	"reflect"

	expiringcache "github.com/karupanerura/expiring-cache"
	"github.com/karupanerura/expiring-cache/concurrentmap"
	"github.com/karupanerura/expiring-cache/expiration"
	"github.com/karupanerura/expiring-cache/internal/nilcheck"
	"github.com/karupanerura/expiring-cache/timer"
)

// Option is the interface for the options of the cache.
// The option constructors panic when given nil.
type Option[K expiringcache.KeyConstraint, V expiringcache.ValueConstraint] interface {
	apply(*options[K, V])
}

type optionFunc[K expiringcache.KeyConstraint, V expiringcache.ValueConstraint] func(*options[K, V])

func (f optionFunc[K, V]) apply(o *options[K, V]) {
	f(o)
}

// WithFactory sets the factory that wraps bare values into items.
// The default factory creates permanent items.
func WithFactory[K expiringcache.KeyConstraint, V expiringcache.ValueConstraint](factory expiringcache.ItemFactory[V]) Option[K, V] {
	if nilcheck.IsNil(factory) {
		panic("factory must not be nil")
	}
	return optionFunc[K, V](func(o *options[K, V]) {
		o.factory = factory
	})
}

// WithMap sets the map that stores the items.
// The map must be empty and must not be shared with anything else.
func WithMap[K expiringcache.KeyConstraint, V expiringcache.ValueConstraint](m expiringcache.ConcurrentMap[K, expiringcache.Item[V]]) Option[K, V] {
	if nilcheck.IsNil(m) {
		panic("map must not be nil")
	}
	return optionFunc[K, V](func(o *options[K, V]) {
		o.items = m
	})
}

// WithTimerFactory sets the factory of the timer that drives the sweep.
func WithTimerFactory[K expiringcache.KeyConstraint, V expiringcache.ValueConstraint](factory expiringcache.TimerFactory) Option[K, V] {
	if nilcheck.IsNil(factory) {
		panic("timer factory must not be nil")
	}
	return optionFunc[K, V](func(o *options[K, V]) {
		o.timerFactory = factory
	})
}

// WithKeyNormalizer sets the function that maps every key to its canonical form before it is used.
// Keys with the same canonical form are equal for the cache, e.g. strings.ToLower makes string
// keys case-insensitive. Enumeration yields canonical keys.
func WithKeyNormalizer[K expiringcache.KeyConstraint, V expiringcache.ValueConstraint](normalize func(K) K) Option[K, V] {
	if nilcheck.IsNil(normalize) {
		panic("key normalizer must not be nil")
	}
	return optionFunc[K, V](func(o *options[K, V]) {
		o.normalize = normalize
	})
}

// WithValueEqual sets the value equality used by Contains and RemovePair.
// The default is reflect.DeepEqual.
func WithValueEqual[K expiringcache.KeyConstraint, V expiringcache.ValueConstraint](equal func(a, b V) bool) Option[K, V] {
	if nilcheck.IsNil(equal) {
		panic("value equality must not be nil")
	}
	return optionFunc[K, V](func(o *options[K, V]) {
		o.valueEqual = equal
	})
}

// WithLogger sets the logger. The default logger discards everything.
func WithLogger[K expiringcache.KeyConstraint, V expiringcache.ValueConstraint](logger *slog.Logger) Option[K, V] {
	if nilcheck.IsNil(logger) {
		panic("logger must not be nil")
	}
	return optionFunc[K, V](func(o *options[K, V]) {
		o.logger = logger
	})
}

// WithSweepErrorHandler sets the function called when a hook panics during a periodic sweep.
// The error is a *panics.ErrRecovered of github.com/sourcegraph/conc/panics.
func WithSweepErrorHandler[K expiringcache.KeyConstraint, V expiringcache.ValueConstraint](handler func(error)) Option[K, V] {
	if nilcheck.IsNil(handler) {
		panic("sweep error handler must not be nil")
	}
	return optionFunc[K, V](func(o *options[K, V]) {
		o.onSweepError = handler
	})
}

type options[K expiringcache.KeyConstraint, V expiringcache.ValueConstraint] struct {
	factory      expiringcache.ItemFactory[V]
	items        expiringcache.ConcurrentMap[K, expiringcache.Item[V]]
	timerFactory expiringcache.TimerFactory
	normalize    func(K) K
	valueEqual   func(a, b V) bool
	logger       *slog.Logger
	onSweepError func(error)
}

func defaultOptions[K expiringcache.KeyConstraint, V expiringcache.ValueConstraint]() options[K, V] {
	return options[K, V]{
		factory:      expiration.PermanentFactory[V](),
		timerFactory: timer.Factory,
		valueEqual: func(a, b V) bool {
			return reflect.DeepEqual(a, b)
		},
		logger:       slog.New(slog.DiscardHandler),
		onSweepError: func(error) {},
	}
}

func (o *options[K, V]) itemsOrDefault() expiringcache.ConcurrentMap[K, expiringcache.Item[V]] {
	if o.items != nil {
		return o.items
	}
	return concurrentmap.New[K, expiringcache.Item[V]]()
}
