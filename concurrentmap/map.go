package concurrentmap

import (
	"fmt"
	"iter"
	"sync"

	expiringcache "github.com/karupanerura/expiring-cache"
)

type bucket[K expiringcache.KeyConstraint, V comparable] struct {
	m  map[K]V
	mu sync.RWMutex
}

// Map is a lock-striped concurrent map.
// Values are compared with == by CompareAndSwap and CompareAndDelete, so interface values
// must hold comparable dynamic types.
type Map[K expiringcache.KeyConstraint, V comparable] struct {
	buckets []*bucket[K, V]
	options options[K]
}

var _ expiringcache.ConcurrentMap[uint8, *struct{}] = (*Map[uint8, *struct{}])(nil)

// New creates a new map.
// The map uses a hash function to distribute the keys across the buckets.
func New[K expiringcache.KeyConstraint, V comparable](opts ...Option[K]) *Map[K, V] {
	options := defaultOptions[K]()
	for _, opt := range opts {
		opt.apply(&options)
	}

	buckets := make([]*bucket[K, V], options.bucketsSize)
	for i := range buckets {
		buckets[i] = &bucket[K, V]{m: map[K]V{}}
	}
	return &Map[K, V]{
		buckets: buckets,
		options: options,
	}
}

// resolveBucket returns the bucket that corresponds to the given key.
func (s *Map[K, V]) resolveBucket(key K) *bucket[K, V] {
	if len(s.buckets) == 1 {
		return s.buckets[0]
	}
	index := s.options.hashKey(key) % len(s.buckets)
	if index < 0 {
		index *= -1
	}
	return s.buckets[index]
}

// lockAll locks every bucket in index order and returns the function that unlocks them.
func (s *Map[K, V]) lockAll() (unlock func()) {
	for _, b := range s.buckets {
		b.mu.Lock()
	}
	return func() {
		for _, b := range s.buckets {
			b.mu.Unlock()
		}
	}
}

func (s *Map[K, V]) Add(key K, value V) error {
	if !s.TryAdd(key, value) {
		return fmt.Errorf("%w: %v", expiringcache.ErrDuplicateKey, key)
	}
	return nil
}

func (s *Map[K, V]) TryAdd(key K, value V) bool {
	b := s.resolveBucket(key)
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.m[key]; ok {
		return false
	}
	b.m[key] = value
	return true
}

func (s *Map[K, V]) Load(key K) (V, bool) {
	b := s.resolveBucket(key)
	b.mu.RLock()
	defer b.mu.RUnlock()

	v, ok := b.m[key]
	return v, ok
}

func (s *Map[K, V]) Store(key K, value V) {
	b := s.resolveBucket(key)
	b.mu.Lock()
	defer b.mu.Unlock()

	b.m[key] = value
}

func (s *Map[K, V]) LoadAndDelete(key K) (V, bool) {
	b := s.resolveBucket(key)
	b.mu.Lock()
	defer b.mu.Unlock()

	v, ok := b.m[key]
	if ok {
		delete(b.m, key)
	}
	return v, ok
}

func (s *Map[K, V]) CompareAndSwap(key K, old, new V) bool {
	b := s.resolveBucket(key)
	b.mu.Lock()
	defer b.mu.Unlock()

	if v, ok := b.m[key]; !ok || v != old {
		return false
	}
	b.m[key] = new
	return true
}

func (s *Map[K, V]) CompareAndDelete(key K, old V) bool {
	b := s.resolveBucket(key)
	b.mu.Lock()
	defer b.mu.Unlock()

	if v, ok := b.m[key]; !ok || v != old {
		return false
	}
	delete(b.m, key)
	return true
}

// Drain swaps every bucket for an empty one while holding all bucket locks,
// so no caller observes a partially drained map.
func (s *Map[K, V]) Drain() []expiringcache.Entry[K, V] {
	drained := make([]map[K]V, len(s.buckets))
	func() {
		unlock := s.lockAll()
		defer unlock()

		for i, b := range s.buckets {
			drained[i] = b.m
			b.m = map[K]V{}
		}
	}()

	var size int
	for _, m := range drained {
		size += len(m)
	}
	entries := make([]expiringcache.Entry[K, V], 0, size)
	for _, m := range drained {
		for k, v := range m {
			entries = append(entries, expiringcache.Entry[K, V]{Key: k, Value: v})
		}
	}
	return entries
}

func (s *Map[K, V]) Len() int {
	for _, b := range s.buckets {
		b.mu.RLock()
		defer b.mu.RUnlock()
	}

	var n int
	for _, b := range s.buckets {
		n += len(b.m)
	}
	return n
}

// All returns an iterator over the entries.
// Each bucket is copied under its read lock just before its entries are yielded,
// so the iteration is weakly consistent and never holds a lock while yielding.
func (s *Map[K, V]) All() iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		for _, b := range s.buckets {
			for _, e := range b.snapshot() {
				if !yield(e.Key, e.Value) {
					return
				}
			}
		}
	}
}

func (b *bucket[K, V]) snapshot() []expiringcache.Entry[K, V] {
	b.mu.RLock()
	defer b.mu.RUnlock()

	entries := make([]expiringcache.Entry[K, V], 0, len(b.m))
	for k, v := range b.m {
		entries = append(entries, expiringcache.Entry[K, V]{Key: k, Value: v})
	}
	return entries
}
