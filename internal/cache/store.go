package cache

import (
	gocache "github.com/patrickmn/go-cache"
)

// Store is one cache category. Entries never expire and are never
// overwritten: the first non-empty value inserted for a key wins.
type Store[K comparable, V any] struct {
	items  *gocache.Cache
	encode func(K) string
	empty  func(V) bool
}

func newStore[K comparable, V any](encode func(K) string, empty func(V) bool) *Store[K, V] {
	return &Store[K, V]{
		items:  gocache.New(gocache.NoExpiration, 0),
		encode: encode,
		empty:  empty,
	}
}

// Lookup returns the cached value for key without mutating the store.
func (s *Store[K, V]) Lookup(key K) (V, bool) {
	var zero V
	raw, ok := s.items.Get(s.encode(key))
	if !ok {
		return zero, false
	}
	value, ok := raw.(V)
	if !ok {
		return zero, false
	}
	return value, true
}

// Insert stores value under key unless the key is already present or the
// value is empty.
func (s *Store[K, V]) Insert(key K, value V) {
	if s.empty != nil && s.empty(value) {
		return
	}
	// Add fails when the key exists, which is the first-writer-wins rule.
	_ = s.items.Add(s.encode(key), value, gocache.NoExpiration)
}

func (s *Store[K, V]) Len() int {
	return s.items.ItemCount()
}

func identity(key string) string {
	return key
}
