// Package cache provides the bounded query-result cache sitting in
// front of the engine's fusion-scoring path. It is a thin wrapper over
// hashicorp/golang-lru/v2 rather than a hand-rolled map+eviction-list,
// per the spec's explicit call-out that an ad-hoc dictionary cache is
// one of the patterns that needs re-architecting for a systems
// language.
package cache

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// QueryCache is a bounded LRU cache from a query fingerprint (see
// Fingerprint) to a cached value V — typically a slice of scored
// results. It is generic so the engine package can cache its own
// result type without this package importing it back.
type QueryCache[V any] struct {
	lru *lru.Cache[string, V]
}

// New creates a QueryCache holding at most maxEntries fingerprints. A
// non-positive maxEntries is clamped to 1 (an empty cache would defeat
// the purpose of caching at all, and golang-lru rejects a zero size).
func New[V any](maxEntries int) *QueryCache[V] {
	if maxEntries < 1 {
		maxEntries = 1
	}
	c, _ := lru.New[string, V](maxEntries)
	return &QueryCache[V]{lru: c}
}

// Get returns the cached value for fingerprint, if present.
func (c *QueryCache[V]) Get(fingerprint string) (V, bool) {
	return c.lru.Get(fingerprint)
}

// Put stores value under fingerprint, evicting the least-recently-used
// entry if the cache is at capacity.
func (c *QueryCache[V]) Put(fingerprint string, value V) {
	c.lru.Add(fingerprint, value)
}

// Purge drops every cached entry. Per §3's invariant 5, any mutation
// that could affect a stored result set invalidates the whole cache —
// coarse, whole-cache invalidation is explicitly permitted rather than
// tracking which fingerprints a given document could have affected.
func (c *QueryCache[V]) Purge() {
	c.lru.Purge()
}

// Len returns the number of entries currently cached.
func (c *QueryCache[V]) Len() int {
	return c.lru.Len()
}
