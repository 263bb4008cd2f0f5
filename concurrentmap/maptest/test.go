// maptest package provides generic test cases for expiringcache.ConcurrentMap implementations.
package maptest

import (
	"errors"
	"fmt"
	"maps"
	"math/rand/v2"
	"slices"
	"sync/atomic"
	"testing"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/sync/errgroup"

	expiringcache "github.com/karupanerura/expiring-cache"
)

// Value is the value type used by the test cases.
// Pointers make identity comparisons observable.
type Value struct {
	N int
}

// Provider creates a new empty map and the function that releases it.
type Provider func() (expiringcache.ConcurrentMap[uint8, *Value], func())

// BenchmarkStore benchmarks the Store method of the map.
func BenchmarkStore(b *testing.B, m expiringcache.ConcurrentMap[uint8, *Value], keys []uint8) {
	v := &Value{}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		m.Store(keys[i%len(keys)], v)
	}
}

// TestAll runs every test case of this package.
func TestAll(t *testing.T, provider Provider) {
	TestAdd(t, provider)
	TestCompareAndSwap(t, provider)
	TestDelete(t, provider)
	TestDrain(t, provider)
	TestIteration(t, provider)
	TestConsistency(t, provider)
}

// TestAdd tests Add and TryAdd.
func TestAdd(t *testing.T, provider Provider) {
	t.Run("Add", func(t *testing.T) {
		t.Parallel()

		m, release := provider()
		defer release()

		first, second := &Value{N: 1}, &Value{N: 2}
		if err := m.Add(1, first); err != nil {
			t.Fatalf("Add() returned unexpected error: %v", err)
		}
		if err := m.Add(1, second); !errors.Is(err, expiringcache.ErrDuplicateKey) {
			t.Errorf("Add() on existing key must return ErrDuplicateKey, got: %v", err)
		}
		if m.TryAdd(1, second) {
			t.Error("TryAdd() on existing key must return false")
		}
		if v, ok := m.Load(1); !ok || v != first {
			t.Errorf("Load() = %v, %v, want the first value", v, ok)
		}
		if !m.TryAdd(2, second) {
			t.Error("TryAdd() on missing key must return true")
		}
		if got := m.Len(); got != 2 {
			t.Errorf("Len() = %d, want 2", got)
		}
	})

	t.Run("ConcurrentTryAdd", func(t *testing.T) {
		t.Parallel()

		m, release := provider()
		defer release()

		var wins atomic.Int32
		var eg errgroup.Group
		for i := range 32 {
			eg.Go(func() error {
				if m.TryAdd(7, &Value{N: i}) {
					wins.Add(1)
				}
				return nil
			})
		}
		_ = eg.Wait()
		if got := wins.Load(); got != 1 {
			t.Errorf("exactly one TryAdd() must win, got %d", got)
		}
	})
}

// TestCompareAndSwap tests CompareAndSwap.
func TestCompareAndSwap(t *testing.T, provider Provider) {
	t.Run("CompareAndSwap", func(t *testing.T) {
		t.Parallel()

		m, release := provider()
		defer release()

		old, stale, replacement := &Value{N: 1}, &Value{N: 1}, &Value{N: 2}
		if m.CompareAndSwap(1, old, replacement) {
			t.Error("CompareAndSwap() on missing key must return false")
		}
		if _, ok := m.Load(1); ok {
			t.Error("CompareAndSwap() on missing key must not insert")
		}

		m.Store(1, old)
		if m.CompareAndSwap(1, stale, replacement) {
			t.Error("CompareAndSwap() must compare by identity, not by content")
		}
		if !m.CompareAndSwap(1, old, replacement) {
			t.Error("CompareAndSwap() with the current value must return true")
		}
		if v, _ := m.Load(1); v != replacement {
			t.Errorf("Load() = %v, want the replacement", v)
		}
	})

	t.Run("ConcurrentIncrement", func(t *testing.T) {
		t.Parallel()

		m, release := provider()
		defer release()

		const workers = 64
		m.Store(3, &Value{N: 0})

		var eg errgroup.Group
		for range workers {
			eg.Go(func() error {
				for {
					cur, ok := m.Load(3)
					if !ok {
						return fmt.Errorf("key disappeared")
					}
					if m.CompareAndSwap(3, cur, &Value{N: cur.N + 1}) {
						return nil
					}
				}
			})
		}
		if err := eg.Wait(); err != nil {
			t.Fatal(err)
		}
		if v, _ := m.Load(3); v.N != workers {
			t.Errorf("lost updates: got %d, want %d", v.N, workers)
		}
	})
}

// TestDelete tests LoadAndDelete and CompareAndDelete.
func TestDelete(t *testing.T, provider Provider) {
	t.Run("Delete", func(t *testing.T) {
		t.Parallel()

		m, release := provider()
		defer release()

		v := &Value{N: 1}
		if _, ok := m.LoadAndDelete(1); ok {
			t.Error("LoadAndDelete() on missing key must return false")
		}
		m.Store(1, v)
		if got, ok := m.LoadAndDelete(1); !ok || got != v {
			t.Errorf("LoadAndDelete() = %v, %v, want the stored value", got, ok)
		}
		if _, ok := m.Load(1); ok {
			t.Error("key must be deleted")
		}

		m.Store(2, v)
		if m.CompareAndDelete(2, &Value{N: 1}) {
			t.Error("CompareAndDelete() must compare by identity, not by content")
		}
		if !m.CompareAndDelete(2, v) {
			t.Error("CompareAndDelete() with the current value must return true")
		}
		if m.CompareAndDelete(2, v) {
			t.Error("CompareAndDelete() on missing key must return false")
		}
		if got := m.Len(); got != 0 {
			t.Errorf("Len() = %d, want 0", got)
		}
	})

	t.Run("ConcurrentLoadAndDelete", func(t *testing.T) {
		t.Parallel()

		m, release := provider()
		defer release()

		m.Store(9, &Value{N: 9})
		var wins atomic.Int32
		var eg errgroup.Group
		for range 32 {
			eg.Go(func() error {
				if _, ok := m.LoadAndDelete(9); ok {
					wins.Add(1)
				}
				return nil
			})
		}
		_ = eg.Wait()
		if got := wins.Load(); got != 1 {
			t.Errorf("exactly one LoadAndDelete() must win, got %d", got)
		}
	})
}

// TestDrain tests Drain.
func TestDrain(t *testing.T, provider Provider) {
	t.Run("Drain", func(t *testing.T) {
		t.Parallel()

		m, release := provider()
		defer release()

		want := map[uint8]*Value{}
		for i := range uint8(100) {
			v := &Value{N: int(i)}
			want[i] = v
			m.Store(i, v)
		}

		got := map[uint8]*Value{}
		for _, e := range m.Drain() {
			got[e.Key] = e.Value
		}
		if df := cmp.Diff(want, got); df != "" {
			t.Errorf("drained entries diff=%s", df)
		}
		if n := m.Len(); n != 0 {
			t.Errorf("Len() after Drain() = %d, want 0", n)
		}
		if entries := m.Drain(); len(entries) != 0 {
			t.Errorf("Drain() on empty map = %v, want empty", entries)
		}
	})
}

// TestIteration tests All.
func TestIteration(t *testing.T, provider Provider) {
	t.Run("All", func(t *testing.T) {
		t.Parallel()

		m, release := provider()
		defer release()

		want := map[uint8]*Value{}
		for i := range uint8(50) {
			v := &Value{N: int(i)}
			want[i] = v
			m.Store(i, v)
		}

		seq := m.All()
		for range 2 {
			got := maps.Collect(seq)
			if df := cmp.Diff(want, got); df != "" {
				t.Errorf("iterated entries diff=%s", df)
			}
		}

		var n int
		for range seq {
			n++
			if n == 10 {
				break
			}
		}
		if n != 10 {
			t.Errorf("iteration must stop on break, got %d", n)
		}
	})

	t.Run("MutateWhileIterating", func(t *testing.T) {
		t.Parallel()

		m, release := provider()
		defer release()

		for i := range uint8(20) {
			m.Store(i, &Value{N: int(i)})
		}
		for k := range m.All() {
			if k >= 100 {
				continue
			}
			m.LoadAndDelete(k)
			m.Store(k+100, &Value{})
		}
		keys := slices.Sorted(maps.Keys(maps.Collect(m.All())))
		for _, k := range keys {
			if k < 100 {
				t.Errorf("key %d must be deleted", k)
			}
		}
	})
}

// TestConsistency tests concurrent use of every operation on distinct keys.
func TestConsistency(t *testing.T, provider Provider) {
	t.Run("Consistency", func(t *testing.T) {
		t.Parallel()

		m, release := provider()
		defer release()

		patterns := []expiringcache.Entry[uint8, int]{
			{Key: 0, Value: 1},
			{Key: 1, Value: 2},
			{Key: 2, Value: 3},
			{Key: 3, Value: 4},
			{Key: 4, Value: 5},
			{Key: 251, Value: 124},
			{Key: 252, Value: 125},
			{Key: 253, Value: 126},
			{Key: 254, Value: 127},
			{Key: 255, Value: -128},
		}
		rand.Shuffle(len(patterns), func(i, j int) {
			patterns[i], patterns[j] = patterns[j], patterns[i]
		})

		var eg errgroup.Group
		for _, pattern := range patterns {
			eg.Go(func() error {
				if err := m.Add(pattern.Key, &Value{N: pattern.Value}); err != nil {
					return err
				}
				cur, ok := m.Load(pattern.Key)
				if !ok {
					return fmt.Errorf("key %d is missing after Add", pattern.Key)
				}
				if !m.CompareAndSwap(pattern.Key, cur, &Value{N: cur.N * 2}) {
					return fmt.Errorf("CompareAndSwap failed for uncontended key %d", pattern.Key)
				}
				return nil
			})
		}
		if err := eg.Wait(); err != nil {
			t.Fatal(err)
		}

		if got := m.Len(); got != len(patterns) {
			t.Errorf("Len() = %d, want %d", got, len(patterns))
		}
		for _, pattern := range patterns {
			v, ok := m.Load(pattern.Key)
			if !ok {
				t.Errorf("key %d is missing", pattern.Key)
				continue
			}
			if v.N != pattern.Value*2 {
				t.Errorf("key %d = %d, want %d", pattern.Key, v.N, pattern.Value*2)
			}
		}
	})
}
