package iterutil

import (
	"iter"
)

// Keys returns a new iterator that yields the keys of the input iterator.
func Keys[K, V any](seq iter.Seq2[K, V]) iter.Seq[K] {
	return iter.Seq[K](func(yield func(K) bool) {
		for k := range seq {
			if !yield(k) {
				return
			}
		}
	})
}

// Values returns a new iterator that yields the values of the input iterator.
func Values[K, V any](seq iter.Seq2[K, V]) iter.Seq[V] {
	return iter.Seq[V](func(yield func(V) bool) {
		for _, v := range seq {
			if !yield(v) {
				return
			}
		}
	})
}

// MapValues returns a new iterator that applies the function to each value from the input iterator.
// The keys are passed through unchanged.
func MapValues[K, V, R any](seq iter.Seq2[K, V], f func(V) R) iter.Seq2[K, R] {
	return iter.Seq2[K, R](func(yield func(K, R) bool) {
		for k, v := range seq {
			if !yield(k, f(v)) {
				return
			}
		}
	})
}

// FilterKeys returns a new iterator that yields the keys whose value satisfies the predicate.
func FilterKeys[K, V any](seq iter.Seq2[K, V], pred func(V) bool) iter.Seq[K] {
	return iter.Seq[K](func(yield func(K) bool) {
		for k, v := range seq {
			if pred(v) && !yield(k) {
				return
			}
		}
	})
}
