package expiringcache

import (
	"iter"
	"time"
)

// KeyConstraint is an interface for key constraints.
type KeyConstraint interface {
	comparable
}

// ValueConstraint is an interface for value constraints.
type ValueConstraint interface {
	any
}

// Entry is a key-value pair.
type Entry[K KeyConstraint, V ValueConstraint] struct {
	// Key is the key of the entry.
	Key K

	// Value is the value associated with the key.
	Value V
}

// Item is a cached value paired with the policy that decides when it expires.
//
// Implementations must be safe for concurrent use and must be comparable by identity
// (typically a pointer type), because the cache swaps items with compare-and-swap.
type Item[V ValueConstraint] interface {
	// Value returns the stored value.
	// Sliding policies push their deadline forward on every call.
	// This is the only read that may mutate the item.
	Value() V

	// PeekValue returns the stored value without renewing the deadline.
	PeekValue() V

	// IsExpired reports whether the item is expired.
	// Once it returns true for an item, it must never return false again.
	IsExpired() bool

	// IsAboutToExpire reports whether the item entered its pre-expiration window.
	// It must become true no later than IsExpired does.
	IsAboutToExpire() bool

	// CreateNewItem returns a sibling item with the same policy and a fresh deadline
	// that carries the given value.
	CreateNewItem(V) Item[V]

	// AboutToExpire notifies the item that it is about to expire.
	// The notification is delivered to the hook at most once per item.
	AboutToExpire()

	// Expire notifies the item that it was evicted because it expired.
	Expire()

	// Remove notifies the item that it was removed explicitly.
	Remove()
}

// ItemFactory wraps bare values into items.
type ItemFactory[V ValueConstraint] interface {
	NewItem(V) Item[V]
}

// ItemFactoryFunc is a function type that implements the ItemFactory interface.
type ItemFactoryFunc[V ValueConstraint] func(V) Item[V]

// NewItem calls the function.
func (f ItemFactoryFunc[V]) NewItem(v V) Item[V] {
	return f(v)
}

// ConcurrentMap is the associative storage of the cache.
// Implementations must be thread-safe and every method must be atomic per key.
type ConcurrentMap[K KeyConstraint, V comparable] interface {
	// Add stores the value, or returns ErrDuplicateKey if the key is already present.
	Add(K, V) error

	// TryAdd stores the value if the key is absent and reports whether it did.
	TryAdd(K, V) bool

	// Load returns the value stored for the key.
	Load(K) (V, bool)

	// Store sets the value for the key, overwriting any existing value.
	Store(K, V)

	// LoadAndDelete removes the key and returns the value it held.
	LoadAndDelete(K) (V, bool)

	// CompareAndSwap replaces the value for the key only if the current value equals old.
	CompareAndSwap(key K, old, new V) bool

	// CompareAndDelete removes the key only if its current value equals old.
	CompareAndDelete(key K, old V) bool

	// Drain removes every entry at once and returns the removed entries.
	Drain() []Entry[K, V]

	// Len returns the number of entries.
	Len() int

	// All returns a weakly consistent snapshot iterator over the entries.
	// Each call of the returned iterator takes a new snapshot.
	All() iter.Seq2[K, V]
}

// Timer invokes a callback at a fixed interval.
// Start and Stop must be idempotent and may be called from within the callback.
type Timer interface {
	// Start begins invoking the callback.
	Start()

	// Stop stops invoking the callback.
	Stop()

	// SetInterval changes the interval used from the next tick.
	SetInterval(time.Duration)
}

// TimerFactory creates a stopped timer that calls tick on every interval.
type TimerFactory func(interval time.Duration, tick func()) Timer
