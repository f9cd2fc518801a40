package cache

import (
	gocache "github.com/patrickmn/go-cache"

	"change-manifest/internal/shared"
)

// Registry hands out one ResponseCache per build server so identifiers
// from different servers never meet in the same category.
type Registry struct {
	servers *gocache.Cache
}

func NewRegistry() *Registry {
	return &Registry{servers: gocache.New(gocache.NoExpiration, 0)}
}

// ForServer returns the cache for serverURL, creating it on first use.
// Concurrent first calls for the same server all receive the same cache.
func (r *Registry) ForServer(serverURL string) *ResponseCache {
	key := shared.NormalizeServerURL(serverURL)
	if existing, ok := r.servers.Get(key); ok {
		return existing.(*ResponseCache)
	}
	created := NewResponseCache()
	if err := r.servers.Add(key, created, gocache.NoExpiration); err != nil {
		existing, _ := r.servers.Get(key)
		return existing.(*ResponseCache)
	}
	return created
}
