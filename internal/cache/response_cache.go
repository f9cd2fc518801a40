// Package cache memoizes build server responses for the lifetime of the
// process. Every category is independently safe for concurrent use.
package cache

import (
	"strconv"

	"change-manifest/internal/types"
)

// DependencyKey identifies the NuGet dependency snapshot of one build.
// Both parts take part in the key so builds of different build types
// never share an entry.
type DependencyKey struct {
	BuildTypeID string
	BuildID     string
}

func (k DependencyKey) String() string {
	return strconv.Quote(k.BuildTypeID) + "/" + strconv.Quote(k.BuildID)
}

type ResponseCache struct {
	Responses           *Store[string, []byte]
	BuildTypes          *Store[string, types.BuildTypeDetails]
	Builds              *Store[string, types.Build]
	ChangeLists         *Store[string, types.ChangeList]
	ChangeDetails       *Store[string, types.ChangeDetail]
	PackageDependencies *Store[DependencyKey, []types.PackageDetails]
}

func NewResponseCache() *ResponseCache {
	return &ResponseCache{
		Responses: newStore(identity, func(value []byte) bool {
			return len(value) == 0
		}),
		BuildTypes: newStore(identity, func(value types.BuildTypeDetails) bool {
			return value.IsZero()
		}),
		Builds: newStore(identity, func(value types.Build) bool {
			return value.ID == ""
		}),
		ChangeLists: newStore(identity, func(value types.ChangeList) bool {
			return value.BuildID == ""
		}),
		ChangeDetails: newStore(identity, func(value types.ChangeDetail) bool {
			return value.ID == ""
		}),
		PackageDependencies: newStore(DependencyKey.String, func(value []types.PackageDetails) bool {
			return len(value) == 0
		}),
	}
}
