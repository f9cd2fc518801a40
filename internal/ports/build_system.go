package ports

import (
	"context"

	"change-manifest/internal/types"
)

// BuildSystemPort is the subset of the build server API the delta
// resolver consumes. Implementations are bound to a single server.
type BuildSystemPort interface {
	ServerURL() string
	ResolveBuildTypeByProjectAndName(ctx context.Context, project string, name string) ([]types.BuildTypeDetails, error)
	GetBuildTypeDetails(ctx context.Context, buildTypeID string) (types.BuildTypeDetails, error)
	GetBuildsByBuildType(ctx context.Context, buildTypeID string) ([]types.Build, error)
	GetChangeDetails(ctx context.Context, buildTypeID string, from string, to string, builds []types.Build) ([]types.ChangeDetail, error)
	GetIssuesByRange(ctx context.Context, buildTypeID string, from string, to string, builds []types.Build) ([]types.Issue, error)
	GetNuGetDependencies(ctx context.Context, buildTypeID string, buildID string) ([]types.PackageDetails, error)
	GetRunningBuild(ctx context.Context, buildTypeID string) ([]types.Build, error)
	// GetLatestSuccessfulBuild returns false when the build type has no
	// successful build.
	GetLatestSuccessfulBuild(ctx context.Context, buildTypeID string) (types.Build, bool, error)
}

// BuildCatalogPort lists what a server builds and publishes. It backs
// the package-to-build mapping builder.
type BuildCatalogPort interface {
	ServerURL() string
	ListBuildTypes(ctx context.Context) ([]types.BuildTypeDetails, error)
	GetLatestSuccessfulBuild(ctx context.Context, buildTypeID string) (types.Build, bool, error)
	ListArtifacts(ctx context.Context, buildID string) ([]string, error)
}

// ClientFactory returns a client bound to serverURL.
type ClientFactory func(serverURL string) (BuildSystemPort, error)
