// Package expiration provides cache items that carry their own expiration policy.
//
// Every item implements expiringcache.Item. Permanent items never expire, Absolute items
// expire at a fixed instant, and Sliding items expire after a period of inactivity that is
// renewed by each Value call. The factories in this package wrap bare values into items so
// that a cache can apply one policy to every value it is given.
package expiration
