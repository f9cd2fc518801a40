package app

import "change-manifest/internal/types"

// ServerRequest describes how to reach the TeamCity server that anchors a
// request. The credentials are reused for any other server a package
// mapping points to.
type ServerRequest struct {
	ServerURL        string
	Username         string
	Password         string
	Token            string
	HTTPTimeoutSec   int
	HTTPRetries      int
	HTTPRetryDelayMs int
	RateLimit        float64
}

type IssueTrackerRequest struct {
	JiraURL      string
	JiraUser     string
	JiraToken    string
	JiraProjects []string
	GitHubOwner  string
	GitHubRepo   string
	GitHubToken  string
	GitHubURL    string
}

type ManifestRequest struct {
	Server               ServerRequest
	Issues               IssueTrackerRequest
	BuildTypeID          string
	ProjectName          string
	BuildName            string
	ReferenceBuild       string
	From                 string
	To                   string
	UseBuildSystemIssues bool
	Recurse              bool
	MappingFile          string
	Output               string
	Format               string
}

type ManifestResult struct {
	Manifest   types.ChangeManifest
	OutputPath string
	Format     types.ManifestFormat
}

type MappingBuildRequest struct {
	Server     ServerRequest
	ServerURLs []string
	Output     string
	Workers    int
}

type MappingBuildResult struct {
	OutputPath string
	Servers    int
	Mappings   int
}

type InspectRequest struct {
	ManifestPath string
}

type ManifestSummary struct {
	Changes  int
	Issues   int
	Added    int
	Removed  int
	Modified int
	Warnings int
}

type InspectResult struct {
	Manifest types.ChangeManifest
	Summary  ManifestSummary
}
