package ports

import "change-manifest/internal/types"

type PackageChangePort interface {
	ComputeChanges(oldSet []types.PackageDetails, newSet []types.PackageDetails) []types.NuGetPackageChange
}

// PackageBuildMappingPort answers which build configurations publish a
// package. Lookups are case-insensitive on the package id.
type PackageBuildMappingPort interface {
	FindByPackage(packageID string) []types.PackageBuildMapping
}

type MappingStorePort interface {
	Load(path string) (types.PackageBuildMappingFile, error)
	Write(path string, file types.PackageBuildMappingFile) error
}
