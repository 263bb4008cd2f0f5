package expiringcache

import "errors"

var (
	ErrNullKey         = errors.New("key must not be nil")
	ErrNullEntry       = errors.New("item must not be nil")
	ErrDuplicateKey    = errors.New("an item with the same key already exists")
	ErrKeyNotFound     = errors.New("key was not found in the cache")
	ErrInvalidInterval = errors.New("sweep interval must be positive")
)
