// Package nilcheck detects nil values hidden behind type parameters.
package nilcheck

import (
	"github.com/goccy/go-reflect"
)

// IsNil reports whether v is nil.
// A nil interface is nil, and so is a typed nil of a pointer, channel, function, map, slice,
// or unsafe pointer kind. Values of any other kind are never nil.
func IsNil[T any](v T) bool {
	a := any(v)
	if a == nil {
		return true
	}
	rv := reflect.ValueOf(a)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Chan, reflect.Func, reflect.Map, reflect.Slice, reflect.UnsafePointer, reflect.Interface:
		return rv.IsNil()
	default:
		return false
	}
}

// Nilable reports whether values of type T can be nil.
// It allows callers to skip IsNil entirely for value types.
func Nilable[T any]() bool {
	switch reflect.TypeOf((*T)(nil)).Elem().Kind() {
	case reflect.Ptr, reflect.Chan, reflect.Func, reflect.Map, reflect.Slice, reflect.UnsafePointer, reflect.Interface:
		return true
	default:
		return false
	}
}
