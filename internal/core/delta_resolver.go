package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	assert "github.com/ZanzyTHEbar/assert-lib"
	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"

	"change-manifest/internal/ports"
	"change-manifest/internal/shared"
	"change-manifest/internal/types"
)

type ManifestOptions struct {
	// ReferenceBuild is a build type id whose configuration is captured
	// alongside the resolved one.
	ReferenceBuild       string
	From                 string
	To                   string
	UseBuildSystemIssues bool
	Recurse              bool
}

func DefaultManifestOptions() ManifestOptions {
	return ManifestOptions{UseBuildSystemIssues: true}
}

// DeltaResolver builds change manifests for a build range and, when
// asked, follows modified NuGet packages into the builds that produced
// them. It holds no per-call state and may be shared between callers.
type DeltaResolver struct {
	Client         ports.BuildSystemPort
	Comparator     ports.PackageChangePort
	IssueResolvers IssueResolverSet
	Mappings       ports.PackageBuildMappingPort
	ClientFactory  ports.ClientFactory
	Clock          func() time.Time
}

func NewDeltaResolver(client ports.BuildSystemPort, comparator ports.PackageChangePort, resolvers []ports.IssueResolverPort, mappings ports.PackageBuildMappingPort, factory ports.ClientFactory) DeltaResolver {
	return DeltaResolver{
		Client:         client,
		Comparator:     comparator,
		IssueResolvers: IssueResolverSet(resolvers),
		Mappings:       mappings,
		ClientFactory:  factory,
		Clock:          time.Now,
	}
}

func (r DeltaResolver) CreateManifestByName(ctx context.Context, projectName string, buildName string, opts ManifestOptions) (types.ChangeManifest, error) {
	return r.createManifest(ctx, newResolution(), buildTarget{project: projectName, build: buildName}, opts)
}

func (r DeltaResolver) CreateManifestByBuildType(ctx context.Context, buildTypeID string, opts ManifestOptions) (types.ChangeManifest, error) {
	if strings.TrimSpace(buildTypeID) == "" {
		return types.ChangeManifest{}, resolutionError("build type id is empty")
	}
	return r.createManifest(ctx, newResolution(), buildTarget{buildType: buildTypeID}, opts)
}

// buildTarget names the build type either directly or by project and
// build configuration name.
type buildTarget struct {
	buildType string
	project   string
	build     string
}

func (r DeltaResolver) createManifest(ctx context.Context, state *resolution, target buildTarget, opts ManifestOptions) (types.ChangeManifest, error) {
	if r.Client == nil || r.Comparator == nil {
		return types.ChangeManifest{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("delta resolver requires a build system client and a package comparator")
	}
	manifest := types.ChangeManifest{}

	recurse := opts.Recurse
	if recurse && r.Mappings == nil {
		r.record(ctx, &manifest, types.LogStatusWarning, "recursion requested but no package build mapping cache is configured; continuing without recursion")
		recurse = false
	}

	buildType := strings.TrimSpace(target.buildType)
	if buildType == "" {
		resolved, err := r.resolveBuildType(ctx, target.project, target.build)
		if err != nil {
			return types.ChangeManifest{}, err
		}
		buildType = resolved
	}
	from, err := r.resolveFrom(ctx, buildType, strings.TrimSpace(opts.From))
	if err != nil {
		return types.ChangeManifest{}, err
	}
	to, err := r.resolveTo(ctx, buildType, strings.TrimSpace(opts.To))
	if err != nil {
		return types.ChangeManifest{}, err
	}
	assert.NotEmpty(ctx, buildType, "build type must be resolved")
	state.visit(r.Client.ServerURL(), buildType, from, to)
	log.Ctx(ctx).Debug().Str("build_type", buildType).Str("from", from).Str("to", to).Msg("build range resolved")

	buildTypeDetails, err := r.Client.GetBuildTypeDetails(ctx, buildType)
	if err != nil {
		return types.ChangeManifest{}, err
	}
	referenceDetails := types.BuildTypeDetails{}
	if reference := strings.TrimSpace(opts.ReferenceBuild); reference != "" {
		referenceDetails, err = r.Client.GetBuildTypeDetails(ctx, reference)
		if err != nil {
			return types.ChangeManifest{}, err
		}
	}

	var builds []types.Build
	var changes []types.ChangeDetail
	var issues []types.Issue
	if from != "" && to != "" && !buildTypeDetails.IsZero() {
		builds, err = r.Client.GetBuildsByBuildType(ctx, buildType)
		if err != nil {
			return types.ChangeManifest{}, err
		}
		if len(builds) == 0 {
			r.record(ctx, &manifest, types.LogStatusWarning, fmt.Sprintf("no builds returned for build type %s", buildType))
		}
		changes, err = r.Client.GetChangeDetails(ctx, buildType, from, to, builds)
		if err != nil {
			return types.ChangeManifest{}, err
		}
		if opts.UseBuildSystemIssues {
			issues, err = r.Client.GetIssuesByRange(ctx, buildType, from, to, builds)
			if err != nil {
				return types.ChangeManifest{}, err
			}
		} else {
			issues = r.IssueResolvers.DeriveIssuesFromChanges(changes)
		}
	}

	packageChanges, err := r.packageChanges(ctx, &manifest, buildType, from, to, builds)
	if err != nil {
		return types.ChangeManifest{}, err
	}
	issueDetails, err := r.IssueResolvers.EnrichIssues(ctx, issues)
	if err != nil {
		r.record(ctx, &manifest, types.LogStatusWarning, fmt.Sprintf("issue details incomplete: %v", err))
	}

	manifest.NuGetPackageChanges = packageChanges
	manifest.ChangeDetails = changes
	manifest.IssueDetails = issueDetails
	manifest.Generated = r.now()
	manifest.FromVersion = from
	manifest.ToVersion = to
	manifest.BuildConfiguration = buildTypeDetails
	manifest.ReferenceBuildConfiguration = referenceDetails

	if recurse && hasModified(packageChanges) {
		r.resolveDependencies(ctx, state, &manifest, buildType, buildTypeDetails.Project.Name, packageChanges, opts.UseBuildSystemIssues)
	}
	return manifest, nil
}

func (r DeltaResolver) resolveBuildType(ctx context.Context, project string, build string) (string, error) {
	project = strings.TrimSpace(project)
	build = strings.TrimSpace(build)
	if project == "" || build == "" {
		return "", resolutionError("project name and build name are required to resolve a build type")
	}
	matches, err := r.Client.ResolveBuildTypeByProjectAndName(ctx, project, build)
	if err != nil {
		return "", err
	}
	if len(matches) == 0 || strings.TrimSpace(matches[0].ID) == "" {
		return "", resolutionError(fmt.Sprintf("no build type named %s in project %s", build, project))
	}
	if len(matches) > 1 {
		log.Ctx(ctx).Debug().Int("matches", len(matches)).Str("build_type", matches[0].ID).Msg("several build types match; using the first")
	}
	return matches[0].ID, nil
}

func (r DeltaResolver) resolveFrom(ctx context.Context, buildType string, from string) (string, error) {
	if from != "" {
		return from, nil
	}
	build, ok, err := r.Client.GetLatestSuccessfulBuild(ctx, buildType)
	if err != nil {
		return "", err
	}
	if !ok || strings.TrimSpace(build.Number) == "" {
		return "", resolutionError(fmt.Sprintf("no successful build found for build type %s", buildType))
	}
	return build.Number, nil
}

func (r DeltaResolver) resolveTo(ctx context.Context, buildType string, to string) (string, error) {
	if to != "" {
		return to, nil
	}
	running, err := r.Client.GetRunningBuild(ctx, buildType)
	if err != nil {
		return "", err
	}
	for _, build := range running {
		if strings.TrimSpace(build.Number) != "" {
			return build.Number, nil
		}
	}
	return "", resolutionError(fmt.Sprintf("no running build found for build type %s", buildType))
}

func (r DeltaResolver) packageChanges(ctx context.Context, manifest *types.ChangeManifest, buildType string, from string, to string, builds []types.Build) ([]types.NuGetPackageChange, error) {
	fromBuild, fromFound := findBuildByNumber(builds, from)
	toBuild, toFound := findBuildByNumber(builds, to)

	var oldSet, newSet []types.PackageDetails
	var err error
	if fromFound {
		oldSet, err = r.Client.GetNuGetDependencies(ctx, buildType, fromBuild.ID)
		if err != nil {
			return nil, err
		}
	}
	if toFound {
		newSet, err = r.Client.GetNuGetDependencies(ctx, buildType, toBuild.ID)
		if err != nil {
			return nil, err
		}
	}
	if len(builds) > 0 && (!fromFound || !toFound) {
		r.record(ctx, manifest, types.LogStatusWarning, fmt.Sprintf("builds %s and %s of build type %s not both found; package changes are partial", from, to, buildType))
	}
	return r.Comparator.ComputeChanges(oldSet, newSet), nil
}

func (r DeltaResolver) record(ctx context.Context, manifest *types.ChangeManifest, status types.LogStatus, message string) {
	manifest.AddLogEntry(r.now(), status, message)
	if status == types.LogStatusWarning {
		log.Ctx(ctx).Warn().Msg(message)
		return
	}
	log.Ctx(ctx).Info().Msg(message)
}

func (r DeltaResolver) now() time.Time {
	if r.Clock != nil {
		return r.Clock().UTC()
	}
	return time.Now().UTC()
}

// clientFor returns the current client when serverURL is empty or names
// the same server, and a factory-built client otherwise.
func (r DeltaResolver) clientFor(serverURL string) (ports.BuildSystemPort, error) {
	if strings.TrimSpace(serverURL) == "" || shared.SameServer(serverURL, r.Client.ServerURL()) {
		return r.Client, nil
	}
	if r.ClientFactory == nil {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeFailedPrecondition).
			WithMsg(fmt.Sprintf("no client factory configured for server %s", serverURL))
	}
	return r.ClientFactory(serverURL)
}

func findBuildByNumber(builds []types.Build, number string) (types.Build, bool) {
	if number == "" {
		return types.Build{}, false
	}
	for _, build := range builds {
		if build.Number == number {
			return build, true
		}
	}
	return types.Build{}, false
}

func hasModified(changes []types.NuGetPackageChange) bool {
	for _, change := range changes {
		if change.Type == types.PackageChangeModified {
			return true
		}
	}
	return false
}
