package app

import (
	"context"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"

	"change-manifest/internal/adapters"
	"change-manifest/internal/core"
	"change-manifest/internal/ports"
)

// Manifest resolves the change manifest of one build configuration and
// writes it to req.Output, or to stdout when no output path is given.
func (s Service) Manifest(ctx context.Context, req ManifestRequest) (ManifestResult, error) {
	buildType := strings.TrimSpace(req.BuildTypeID)
	project := strings.TrimSpace(req.ProjectName)
	build := strings.TrimSpace(req.BuildName)
	if buildType == "" && (project == "" || build == "") {
		return ManifestResult{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("either a build type id or a project and build name is required")
	}
	if s.ManifestWriter == nil {
		return ManifestResult{}, errbuilder.New().
			WithCode(errbuilder.CodeFailedPrecondition).
			WithMsg("manifest writer is not configured")
	}
	format, err := adapters.ParseManifestFormat(req.Format)
	if err != nil {
		return ManifestResult{}, err
	}

	factory := s.clientFactory(req.Server)
	client, err := factory.Client(req.Server.ServerURL)
	if err != nil {
		return ManifestResult{}, err
	}
	mappings, err := s.loadMappings(ctx, req.MappingFile)
	if err != nil {
		return ManifestResult{}, err
	}
	resolvers, err := issueResolvers(req.Issues, req.Server)
	if err != nil {
		return ManifestResult{}, err
	}

	resolver := core.NewDeltaResolver(client, core.NewPackageChangeComparator(), resolvers, mappings, factory.Port())
	if s.Clock != nil {
		resolver.Clock = s.Clock
	}
	opts := core.ManifestOptions{
		ReferenceBuild:       strings.TrimSpace(req.ReferenceBuild),
		From:                 strings.TrimSpace(req.From),
		To:                   strings.TrimSpace(req.To),
		UseBuildSystemIssues: req.UseBuildSystemIssues,
		Recurse:              req.Recurse,
	}

	logger := log.Ctx(ctx).With().Str("server", client.ServerURL()).Logger()
	ctx = logger.WithContext(ctx)
	var result ManifestResult
	if buildType != "" {
		result.Manifest, err = resolver.CreateManifestByBuildType(ctx, buildType, opts)
	} else {
		result.Manifest, err = resolver.CreateManifestByName(ctx, project, build, opts)
	}
	if err != nil {
		return ManifestResult{}, err
	}

	output := strings.TrimSpace(req.Output)
	if err := s.ManifestWriter.Write(output, format, result.Manifest); err != nil {
		return ManifestResult{}, err
	}
	result.OutputPath = output
	result.Format = format
	logger.Info().
		Int("changes", len(result.Manifest.ChangeDetails)).
		Int("issues", len(result.Manifest.IssueDetails)).
		Int("package_changes", len(result.Manifest.NuGetPackageChanges)).
		Int("warnings", len(result.Manifest.Warnings())).
		Msg("manifest created")
	return result, nil
}

func (s Service) clientFactory(server ServerRequest) adapters.TeamCityClientFactory {
	return adapters.NewTeamCityClientFactory(
		adapters.TeamCityAuth{
			Token:    strings.TrimSpace(server.Token),
			Username: strings.TrimSpace(server.Username),
			Password: server.Password,
		},
		httpSettings(server),
		s.Caches,
	)
}

func (s Service) loadMappings(ctx context.Context, path string) (ports.PackageBuildMappingPort, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, nil
	}
	if s.MappingStore == nil {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeFailedPrecondition).
			WithMsg("mapping store is not configured")
	}
	file, err := s.MappingStore.Load(path)
	if err != nil {
		return nil, err
	}
	mappings := core.NewPackageBuildMappingCache(file.Mappings)
	log.Ctx(ctx).Debug().Str("path", path).Int("mappings", mappings.Len()).Msg("loaded package build mappings")
	return mappings, nil
}

func issueResolvers(req IssueTrackerRequest, server ServerRequest) ([]ports.IssueResolverPort, error) {
	var resolvers []ports.IssueResolverPort
	if strings.TrimSpace(req.JiraURL) != "" {
		jira, err := adapters.NewJiraIssueResolver(req.JiraURL, req.JiraUser, req.JiraToken, req.JiraProjects, httpSettings(server))
		if err != nil {
			return nil, err
		}
		resolvers = append(resolvers, jira)
	}
	if strings.TrimSpace(req.GitHubOwner) != "" || strings.TrimSpace(req.GitHubRepo) != "" {
		github, err := adapters.NewGitHubIssueResolver(req.GitHubOwner, req.GitHubRepo, req.GitHubToken, req.GitHubURL, server.RateLimit)
		if err != nil {
			return nil, err
		}
		resolvers = append(resolvers, github)
	}
	return resolvers, nil
}

func httpSettings(server ServerRequest) adapters.HTTPSettings {
	return adapters.HTTPSettings{
		TimeoutSec:   server.HTTPTimeoutSec,
		Retries:      server.HTTPRetries,
		RetryDelayMs: server.HTTPRetryDelayMs,
		RateLimit:    server.RateLimit,
	}
}
