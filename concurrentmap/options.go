package concurrentmap

import (
	expiringcache "github.com/karupanerura/expiring-cache"
	"github.com/karupanerura/expiring-cache/internal/keyhash"
)

// DefaultBucketsSize is the default number of buckets in the map.
var DefaultBucketsSize = 64

// Option is the interface for the options of the map.
type Option[K expiringcache.KeyConstraint] interface {
	apply(*options[K])
}

type optionFunc[K expiringcache.KeyConstraint] func(*options[K])

func (f optionFunc[K]) apply(o *options[K]) {
	f(o)
}

// WithKeyHash sets the function used to distribute keys across buckets.
func WithKeyHash[K expiringcache.KeyConstraint](f func(K) int) Option[K] {
	if f == nil {
		panic("key hash must not be nil")
	}
	return optionFunc[K](func(o *options[K]) {
		o.hashKey = f
	})
}

// WithBucketsSize sets the number of buckets in the map.
// The number of buckets must be a natural number.
func WithBucketsSize[K expiringcache.KeyConstraint](bucketsSize int) Option[K] {
	if bucketsSize <= 0 {
		panic("bucketSize must be natural number")
	}
	return optionFunc[K](func(o *options[K]) {
		o.bucketsSize = bucketsSize
	})
}

type options[K expiringcache.KeyConstraint] struct {
	hashKey     func(K) int
	bucketsSize int
}

func defaultOptions[K expiringcache.KeyConstraint]() options[K] {
	return options[K]{
		hashKey:     keyhash.GetOrCreateKeyHash[K](),
		bucketsSize: DefaultBucketsSize,
	}
}
