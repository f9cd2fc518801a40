package core

import (
	"context"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"change-manifest/internal/ports"
	"change-manifest/internal/types"
)

const defaultMappingWorkers = 4

// MappingBuilder derives the package to build configuration table by
// reading the *.nupkg artifacts of each build type's latest successful
// build.
type MappingBuilder struct {
	Workers int
}

func NewMappingBuilder(workers int) MappingBuilder {
	if workers <= 0 {
		workers = defaultMappingWorkers
	}
	return MappingBuilder{Workers: workers}
}

func (b MappingBuilder) Build(ctx context.Context, catalogs []ports.BuildCatalogPort) (types.PackageBuildMappingFile, error) {
	if len(catalogs) == 0 {
		return types.PackageBuildMappingFile{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("at least one server is required to build package mappings")
	}
	workers := b.Workers
	if workers <= 0 {
		workers = defaultMappingWorkers
	}

	var mu sync.Mutex
	var mappings []types.PackageBuildMapping
	for _, catalog := range catalogs {
		buildTypes, err := catalog.ListBuildTypes(ctx)
		if err != nil {
			return types.PackageBuildMappingFile{}, err
		}
		log.Ctx(ctx).Info().Str("server", catalog.ServerURL()).Int("build_types", len(buildTypes)).Msg("scanning build types")

		group, groupCtx := errgroup.WithContext(ctx)
		group.SetLimit(workers)
		for _, buildType := range buildTypes {
			group.Go(func() error {
				found, err := buildTypeMappings(groupCtx, catalog, buildType)
				if err != nil {
					return err
				}
				mu.Lock()
				mappings = append(mappings, found...)
				mu.Unlock()
				return nil
			})
		}
		if err := group.Wait(); err != nil {
			return types.PackageBuildMappingFile{}, err
		}
	}
	return types.PackageBuildMappingFile{Mappings: normalizeMappings(mappings)}, nil
}

func buildTypeMappings(ctx context.Context, catalog ports.BuildCatalogPort, buildType types.BuildTypeDetails) ([]types.PackageBuildMapping, error) {
	build, ok, err := catalog.GetLatestSuccessfulBuild(ctx, buildType.ID)
	if err != nil {
		return nil, err
	}
	if !ok {
		log.Ctx(ctx).Debug().Str("build_type", buildType.ID).Msg("no successful build; skipping")
		return nil, nil
	}
	artifacts, err := catalog.ListArtifacts(ctx, build.ID)
	if err != nil {
		return nil, err
	}
	var out []types.PackageBuildMapping
	for _, artifact := range artifacts {
		id, _, ok := nupkgPackage(artifact)
		if !ok {
			continue
		}
		out = append(out, types.PackageBuildMapping{
			PackageID:              id,
			BuildConfigurationID:   buildType.ID,
			BuildConfigurationName: buildType.Name,
			Project:                buildType.Project.Name,
			ServerURL:              catalog.ServerURL(),
		})
	}
	return out, nil
}

// nupkgPackage splits a package file name such as Acme.Core.1.2.3.nupkg
// into its id and version. Symbol packages are ignored.
func nupkgPackage(name string) (string, string, bool) {
	base := path.Base(strings.TrimSpace(name))
	lower := strings.ToLower(base)
	if !strings.HasSuffix(lower, ".nupkg") || strings.HasSuffix(lower, ".symbols.nupkg") {
		return "", "", false
	}
	stem := base[:len(base)-len(".nupkg")]
	parts := strings.Split(stem, ".")
	for i := 1; i < len(parts); i++ {
		if !isDigits(parts[i]) {
			continue
		}
		version := strings.Join(parts[i:], ".")
		if !isVersion(version) {
			continue
		}
		return strings.Join(parts[:i], "."), version, true
	}
	return "", "", false
}

func isDigits(value string) bool {
	if value == "" {
		return false
	}
	for _, r := range value {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// normalizeMappings drops repeated (package, build type, server) rows
// and sorts the table so written files are stable.
func normalizeMappings(mappings []types.PackageBuildMapping) []types.PackageBuildMapping {
	seen := map[string]struct{}{}
	out := make([]types.PackageBuildMapping, 0, len(mappings))
	for _, mapping := range mappings {
		key := strings.ToLower(mapping.PackageID + "\x00" + mapping.BuildConfigurationID + "\x00" + mapping.ServerURL)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, mapping)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := strings.ToLower(out[i].PackageID), strings.ToLower(out[j].PackageID)
		if a != b {
			return a < b
		}
		if out[i].ServerURL != out[j].ServerURL {
			return out[i].ServerURL < out[j].ServerURL
		}
		return out[i].BuildConfigurationID < out[j].BuildConfigurationID
	})
	return out
}
