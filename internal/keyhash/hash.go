package keyhash

import (
	"encoding/binary"
	"hash/fnv"
	"hash/maphash"
	"sync"

	"github.com/goccy/go-reflect"
)

var (
	// hashesMutex guards hashes.
	hashesMutex = sync.RWMutex{}

	// hashes stores the hash functions created per key type.
	// Types are the keys because distinct types may share a name.
	hashes = map[reflect.Type]any{}

	// seed is shared by every fallback hash so that a key always lands in the same bucket.
	seed = maphash.MakeSeed()
)

// GetOrCreateKeyHash returns a hash function for the key type K.
// Hash functions are cached per key type.
//
// Integer and string kinds (including named types) are hashed with FNV-1a over their
// big-endian or raw byte representation. Every other comparable type falls back to maphash.
func GetOrCreateKeyHash[K comparable]() func(K) int {
	typ := reflect.TypeOf((*K)(nil)).Elem()

	hashesMutex.RLock()
	if f, ok := hashes[typ]; ok {
		hashesMutex.RUnlock()
		return f.(func(K) int)
	}

	hashesMutex.RUnlock()
	hashesMutex.Lock()
	defer hashesMutex.Unlock()
	if f, ok := hashes[typ]; ok {
		return f.(func(K) int)
	}

	f := createKeyHash[K](typ.Kind())
	hashes[typ] = f
	return f
}

// createKeyHash creates a hash function for keys of the given kind.
func createKeyHash[K comparable](kind reflect.Kind) func(K) int {
	switch kind {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return func(key K) int {
			var b [8]byte
			binary.BigEndian.PutUint64(b[:], uint64(reflect.ValueOf(key).Int()))
			return fnv64a(b[:])
		}
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return func(key K) int {
			var b [8]byte
			binary.BigEndian.PutUint64(b[:], reflect.ValueOf(key).Uint())
			return fnv64a(b[:])
		}
	case reflect.String:
		return func(key K) int {
			return fnv64a([]byte(reflect.ValueOf(key).String()))
		}
	default:
		return func(key K) int {
			return int(maphash.Comparable(seed, key))
		}
	}
}

// fnv64a computes a 64-bit FNV-1a hash of b.
func fnv64a(b []byte) int {
	h := fnv.New64a()
	_, _ = h.Write(b)
	return int(h.Sum64())
}
