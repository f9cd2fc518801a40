package core

import (
	"sort"
	"strings"

	"change-manifest/internal/ports"
	"change-manifest/internal/types"
)

// PackageChangeComparator computes NuGet package deltas between two
// dependency snapshots. Package ids compare case-insensitively and the
// result is ordered by package id, so input order never matters.
type PackageChangeComparator struct{}

func NewPackageChangeComparator() PackageChangeComparator {
	return PackageChangeComparator{}
}

func (c PackageChangeComparator) ComputeChanges(oldSet []types.PackageDetails, newSet []types.PackageDetails) []types.NuGetPackageChange {
	before := indexPackages(oldSet)
	after := indexPackages(newSet)

	var changes []types.NuGetPackageChange
	for key, previous := range before {
		current, ok := after[key]
		if !ok {
			changes = append(changes, types.NuGetPackageChange{
				PackageID:  previous.ID,
				OldVersion: previous.Version,
				Type:       types.PackageChangeRemoved,
			})
			continue
		}
		if compareVersions(previous.Version, current.Version) == 0 {
			continue
		}
		changes = append(changes, types.NuGetPackageChange{
			PackageID:  current.ID,
			OldVersion: previous.Version,
			NewVersion: current.Version,
			Type:       types.PackageChangeModified,
		})
	}
	for key, current := range after {
		if _, ok := before[key]; ok {
			continue
		}
		changes = append(changes, types.NuGetPackageChange{
			PackageID:  current.ID,
			NewVersion: current.Version,
			Type:       types.PackageChangeAdded,
		})
	}
	sort.Slice(changes, func(i, j int) bool {
		left := strings.ToLower(changes[i].PackageID)
		right := strings.ToLower(changes[j].PackageID)
		if left != right {
			return left < right
		}
		return changes[i].PackageID < changes[j].PackageID
	})
	return changes
}

// indexPackages keys a snapshot by lowercased package id. A package
// referenced at several versions is represented by its highest version.
func indexPackages(packages []types.PackageDetails) map[string]types.PackageDetails {
	index := map[string]types.PackageDetails{}
	for _, pkg := range packages {
		id := strings.TrimSpace(pkg.ID)
		if id == "" {
			continue
		}
		pkg.ID = id
		pkg.Version = strings.TrimSpace(pkg.Version)
		key := strings.ToLower(id)
		existing, ok := index[key]
		if ok && compareVersions(existing.Version, pkg.Version) >= 0 {
			continue
		}
		index[key] = pkg
	}
	return index
}

var _ ports.PackageChangePort = PackageChangeComparator{}
