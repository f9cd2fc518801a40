package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ZanzyTHEbar/errbuilder-go"

	"change-manifest/internal/types"
)

var fixedNow = time.Date(2024, 5, 17, 9, 30, 0, 0, time.UTC)

func fixedClock() time.Time {
	return fixedNow
}

// fakeBuildSystem serves canned build server data and records every call
// as "Method:arg:arg".
type fakeBuildSystem struct {
	server     string
	buildTypes map[string]types.BuildTypeDetails
	builds     map[string][]types.Build
	running    map[string][]types.Build
	latest     map[string]types.Build
	changes    map[string][]types.ChangeDetail
	issues     map[string][]types.Issue
	deps       map[string][]types.PackageDetails
	calls      []string
}

func newFakeBuildSystem(server string) *fakeBuildSystem {
	return &fakeBuildSystem{
		server:     server,
		buildTypes: map[string]types.BuildTypeDetails{},
		builds:     map[string][]types.Build{},
		running:    map[string][]types.Build{},
		latest:     map[string]types.Build{},
		changes:    map[string][]types.ChangeDetail{},
		issues:     map[string][]types.Issue{},
		deps:       map[string][]types.PackageDetails{},
	}
}

func (f *fakeBuildSystem) addBuildType(id string, name string, project string) {
	f.buildTypes[id] = types.BuildTypeDetails{ID: id, Name: name, Project: types.ProjectRef{ID: strings.ReplaceAll(project, " ", ""), Name: project}}
}

func (f *fakeBuildSystem) addBuild(buildType string, id string, number string, packages ...types.PackageDetails) {
	f.builds[buildType] = append([]types.Build{{ID: id, Number: number, BuildTypeID: buildType}}, f.builds[buildType]...)
	if len(packages) > 0 {
		f.deps[id] = packages
	}
}

func (f *fakeBuildSystem) record(method string, args ...string) {
	f.calls = append(f.calls, strings.Join(append([]string{method}, args...), ":"))
}

func (f *fakeBuildSystem) count(call string) int {
	total := 0
	for _, recorded := range f.calls {
		if recorded == call {
			total++
		}
	}
	return total
}

func (f *fakeBuildSystem) countPrefix(prefix string) int {
	total := 0
	for _, recorded := range f.calls {
		if strings.HasPrefix(recorded, prefix) {
			total++
		}
	}
	return total
}

func (f *fakeBuildSystem) ServerURL() string {
	return f.server
}

func (f *fakeBuildSystem) ResolveBuildTypeByProjectAndName(_ context.Context, project string, name string) ([]types.BuildTypeDetails, error) {
	f.record("ResolveBuildTypeByProjectAndName", project, name)
	var out []types.BuildTypeDetails
	for _, details := range f.buildTypes {
		if strings.EqualFold(details.Project.Name, project) && strings.EqualFold(details.Name, name) {
			out = append(out, details)
		}
	}
	return out, nil
}

func (f *fakeBuildSystem) GetBuildTypeDetails(_ context.Context, buildTypeID string) (types.BuildTypeDetails, error) {
	f.record("GetBuildTypeDetails", buildTypeID)
	details, ok := f.buildTypes[buildTypeID]
	if !ok {
		return types.BuildTypeDetails{}, errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg(fmt.Sprintf("build type %s not found", buildTypeID))
	}
	return details, nil
}

func (f *fakeBuildSystem) GetBuildsByBuildType(_ context.Context, buildTypeID string) ([]types.Build, error) {
	f.record("GetBuildsByBuildType", buildTypeID)
	return f.builds[buildTypeID], nil
}

func (f *fakeBuildSystem) GetChangeDetails(_ context.Context, buildTypeID string, from string, to string, _ []types.Build) ([]types.ChangeDetail, error) {
	f.record("GetChangeDetails", buildTypeID, from, to)
	return f.changes[buildTypeID], nil
}

func (f *fakeBuildSystem) GetIssuesByRange(_ context.Context, buildTypeID string, from string, to string, _ []types.Build) ([]types.Issue, error) {
	f.record("GetIssuesByRange", buildTypeID, from, to)
	return f.issues[buildTypeID], nil
}

func (f *fakeBuildSystem) GetNuGetDependencies(_ context.Context, buildTypeID string, buildID string) ([]types.PackageDetails, error) {
	f.record("GetNuGetDependencies", buildTypeID, buildID)
	return f.deps[buildID], nil
}

func (f *fakeBuildSystem) GetRunningBuild(_ context.Context, buildTypeID string) ([]types.Build, error) {
	f.record("GetRunningBuild", buildTypeID)
	return f.running[buildTypeID], nil
}

func (f *fakeBuildSystem) GetLatestSuccessfulBuild(_ context.Context, buildTypeID string) (types.Build, bool, error) {
	f.record("GetLatestSuccessfulBuild", buildTypeID)
	build, ok := f.latest[buildTypeID]
	return build, ok, nil
}

// fakeIssueResolver claims ids with its prefix and derives the canned
// issues regardless of the changes it is given.
type fakeIssueResolver struct {
	name      string
	prefix    string
	derived   []types.Issue
	enrichErr error
	enriched  [][]types.Issue
}

func (f *fakeIssueResolver) Name() string {
	return f.name
}

func (f *fakeIssueResolver) Handles(issue types.Issue) bool {
	return strings.HasPrefix(strings.ToUpper(issue.ID), f.prefix)
}

func (f *fakeIssueResolver) DeriveIssues(_ []types.ChangeDetail) []types.Issue {
	return f.derived
}

func (f *fakeIssueResolver) Enrich(_ context.Context, issues []types.Issue) ([]types.ExternalIssueDetails, error) {
	f.enriched = append(f.enriched, issues)
	if f.enrichErr != nil {
		return nil, f.enrichErr
	}
	out := make([]types.ExternalIssueDetails, 0, len(issues))
	for _, issue := range issues {
		out = append(out, types.ExternalIssueDetails{ID: issue.ID, Title: "title of " + issue.ID, Resolver: f.name})
	}
	return out, nil
}

func hasLogEntry(manifest types.ChangeManifest, status types.LogStatus, fragment string) bool {
	for _, entry := range manifest.GenerationLog {
		if entry.Status == status && strings.Contains(entry.Message, fragment) {
			return true
		}
	}
	return false
}
