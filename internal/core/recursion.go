package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"change-manifest/internal/policies"
	"change-manifest/internal/ports"
	"change-manifest/internal/shared"
	"change-manifest/internal/types"
)

// dependencyGroup is one recursive resolution: a build configuration and
// the version pair of the packages it produced.
type dependencyGroup struct {
	Mapping    types.PackageBuildMapping
	OldVersion string
	NewVersion string
	Changes    []types.NuGetPackageChange
}

type groupKey struct {
	buildType  string
	server     string
	oldVersion string
	newVersion string
}

// groupDependencyChanges assigns every modified package change to the
// build configuration that produced it. Changes that share a build
// configuration, server and version pair collapse into one group. Groups
// keep the order in which they were first seen. Changes without a usable
// mapping are reported as warnings.
func groupDependencyChanges(mappings ports.PackageBuildMappingPort, project string, changes []types.NuGetPackageChange) ([]dependencyGroup, []string) {
	policy := policies.NewMappingPolicy(project)
	index := map[groupKey]int{}
	var groups []dependencyGroup
	var warnings []string
	for _, change := range changes {
		if change.Type != types.PackageChangeModified {
			continue
		}
		candidates := mappings.FindByPackage(change.PackageID)
		if len(candidates) == 0 {
			warnings = append(warnings, fmt.Sprintf("no build mapping found for package %s", change.PackageID))
			continue
		}
		mapping, err := policy.Select(change.PackageID, candidates)
		if err != nil {
			warnings = append(warnings, messageOf(err))
			continue
		}
		key := groupKey{
			buildType:  strings.ToLower(strings.TrimSpace(mapping.BuildConfigurationID)),
			server:     shared.NormalizeServerURL(mapping.ServerURL),
			oldVersion: change.OldVersion,
			newVersion: change.NewVersion,
		}
		position, ok := index[key]
		if !ok {
			position = len(groups)
			index[key] = position
			groups = append(groups, dependencyGroup{
				Mapping:    mapping,
				OldVersion: change.OldVersion,
				NewVersion: change.NewVersion,
			})
		}
		groups[position].Changes = append(groups[position].Changes, change)
	}
	return groups, warnings
}

func (r DeltaResolver) resolveDependencies(ctx context.Context, state *resolution, manifest *types.ChangeManifest, currentBuildType string, project string, changes []types.NuGetPackageChange, useBuildSystemIssues bool) {
	groups, warnings := groupDependencyChanges(r.Mappings, project, changes)
	for _, warning := range warnings {
		r.record(ctx, manifest, types.LogStatusWarning, warning)
	}

	for _, group := range groups {
		buildType := strings.TrimSpace(group.Mapping.BuildConfigurationID)
		if strings.EqualFold(buildType, currentBuildType) {
			log.Ctx(ctx).Debug().Str("build_type", buildType).Msg("skipping dependency produced by the build type itself")
			continue
		}
		client, err := r.clientFor(group.Mapping.ServerURL)
		if err != nil {
			r.record(ctx, manifest, types.LogStatusWarning, fmt.Sprintf("cannot resolve dependency %s: %s", buildType, messageOf(err)))
			continue
		}
		if state.seen(client.ServerURL(), buildType, group.OldVersion, group.NewVersion) {
			r.record(ctx, manifest, types.LogStatusWarning, fmt.Sprintf("dependency %s %s -> %s already resolved in this run; skipping", buildType, group.OldVersion, group.NewVersion))
			continue
		}

		sub := r
		sub.Client = client
		opts := ManifestOptions{
			From:                 group.OldVersion,
			To:                   group.NewVersion,
			UseBuildSystemIssues: useBuildSystemIssues,
			Recurse:              true,
		}
		log.Ctx(ctx).Debug().
			Str("build_type", buildType).
			Str("server", client.ServerURL()).
			Str("from", group.OldVersion).
			Str("to", group.NewVersion).
			Int("packages", len(group.Changes)).
			Msg("resolving dependency build")
		dependency, err := sub.createManifest(ctx, state, buildTarget{buildType: buildType}, opts)
		if err != nil {
			r.record(ctx, manifest, types.LogStatusWarning, fmt.Sprintf("dependency %s %s -> %s failed: %s", buildType, group.OldVersion, group.NewVersion, messageOf(err)))
			continue
		}
		r.record(ctx, manifest, types.LogStatusOk, fmt.Sprintf(
			"dependency %s %s -> %s resolved for %s: %d changes, %d issues, %d package changes",
			buildType, group.OldVersion, group.NewVersion, packageNames(group.Changes),
			len(dependency.ChangeDetails), len(dependency.IssueDetails), len(dependency.NuGetPackageChanges),
		))
	}
}

// resolution tracks the (server, build type, range) tuples already
// resolved by one top-level manifest request.
type resolution struct {
	visited map[visitKey]struct{}
}

type visitKey struct {
	server    string
	buildType string
	from      string
	to        string
}

func newResolution() *resolution {
	return &resolution{visited: map[visitKey]struct{}{}}
}

func newVisitKey(server string, buildType string, from string, to string) visitKey {
	return visitKey{
		server:    shared.NormalizeServerURL(server),
		buildType: strings.ToLower(strings.TrimSpace(buildType)),
		from:      from,
		to:        to,
	}
}

func (s *resolution) visit(server string, buildType string, from string, to string) {
	s.visited[newVisitKey(server, buildType, from, to)] = struct{}{}
}

func (s *resolution) seen(server string, buildType string, from string, to string) bool {
	_, ok := s.visited[newVisitKey(server, buildType, from, to)]
	return ok
}

func packageNames(changes []types.NuGetPackageChange) string {
	names := make([]string, 0, len(changes))
	for _, change := range changes {
		names = append(names, change.PackageID)
	}
	return strings.Join(names, ", ")
}
