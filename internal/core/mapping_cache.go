package core

import (
	"strings"

	"change-manifest/internal/ports"
	"change-manifest/internal/types"
)

// PackageBuildMappingCache is the read-only package to build
// configuration table consulted during recursive resolution.
type PackageBuildMappingCache struct {
	byPackage map[string][]types.PackageBuildMapping
	count     int
}

func NewPackageBuildMappingCache(mappings []types.PackageBuildMapping) *PackageBuildMappingCache {
	cache := &PackageBuildMappingCache{byPackage: map[string][]types.PackageBuildMapping{}}
	for _, mapping := range mappings {
		key := strings.ToLower(strings.TrimSpace(mapping.PackageID))
		if key == "" || strings.TrimSpace(mapping.BuildConfigurationID) == "" {
			continue
		}
		cache.byPackage[key] = append(cache.byPackage[key], mapping)
		cache.count++
	}
	return cache
}

func (c *PackageBuildMappingCache) FindByPackage(packageID string) []types.PackageBuildMapping {
	found := c.byPackage[strings.ToLower(strings.TrimSpace(packageID))]
	return append([]types.PackageBuildMapping(nil), found...)
}

func (c *PackageBuildMappingCache) Len() int {
	return c.count
}

var _ ports.PackageBuildMappingPort = (*PackageBuildMappingCache)(nil)
