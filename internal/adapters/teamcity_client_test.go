package adapters

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"change-manifest/internal/cache"
	"change-manifest/internal/types"
)

// fakeTeamCity serves a small TeamCity REST surface below /guestAuth and
// counts requests per path and locator.
type fakeTeamCity struct {
	mu       sync.Mutex
	requests map[string]int
	nuget    map[string]string
	fail     map[string]int
}

func newFakeTeamCity(t *testing.T) (*fakeTeamCity, *httptest.Server) {
	t.Helper()
	fake := &fakeTeamCity{
		requests: map[string]int{},
		nuget:    map[string]string{},
		fail:     map[string]int{},
	}
	server := httptest.NewServer(http.HandlerFunc(fake.serve))
	t.Cleanup(server.Close)
	return fake, server
}

func (f *fakeTeamCity) count(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[key]
}

func (f *fakeTeamCity) serve(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path
	for _, prefix := range []string{"/guestAuth", "/httpAuth"} {
		path = strings.TrimPrefix(path, prefix)
	}
	key := path
	if locator := r.URL.Query().Get("locator"); locator != "" {
		key += "?" + locator
	}
	f.mu.Lock()
	f.requests[key]++
	remainingFailures := f.fail[key]
	if remainingFailures > 0 {
		f.fail[key] = remainingFailures - 1
	}
	f.mu.Unlock()
	if remainingFailures > 0 {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	if strings.HasPrefix(path, "/repository/download/") {
		body, ok := f.nuget[path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(body))
		return
	}

	var payload any
	switch key {
	case "/app/rest/buildTypes":
		payload = map[string]any{"buildType": []map[string]any{
			{"id": "App_Build", "name": "App", "projectId": "Platform", "projectName": "Platform"},
			{"id": "Lib_Build", "name": "Lib", "projectId": "Platform", "projectName": "Platform"},
			{"id": "Other_App", "name": "App", "projectId": "Tools", "projectName": "Tools"},
		}}
	case "/app/rest/buildTypes/id:App_Build":
		payload = map[string]any{
			"id": "App_Build", "name": "App", "webUrl": "https://tc/viewType.html?buildTypeId=App_Build",
			"project": map[string]any{"id": "Platform", "name": "Platform"},
		}
	case "/app/rest/builds?buildType:(id:App_Build),running:any,count:1000":
		payload = map[string]any{"build": []map[string]any{
			{"id": 3, "number": "12", "buildTypeId": "App_Build", "status": "SUCCESS", "state": "running"},
			{"id": 2, "number": "11", "buildTypeId": "App_Build", "status": "SUCCESS", "state": "finished"},
			{"id": 1, "number": "10", "buildTypeId": "App_Build", "status": "SUCCESS", "state": "finished"},
		}}
	case "/app/rest/builds?buildType:(id:Paged_Build),running:any,count:1000":
		payload = map[string]any{
			"build":    []map[string]any{{"id": 42, "number": "42", "buildTypeId": "Paged_Build"}},
			"nextHref": "/guestAuth/app/rest/builds?locator=buildType:(id:Paged_Build),running:any,count:1000,start:1",
		}
	case "/app/rest/builds?buildType:(id:Paged_Build),running:any,count:1000,start:1":
		payload = map[string]any{"build": []map[string]any{{"id": 41, "number": "41", "buildTypeId": "Paged_Build"}}}
	case "/app/rest/builds?buildType:(id:Looping_Build),running:any,count:1000":
		payload = map[string]any{
			"build":    []map[string]any{{"id": 50, "number": "50", "buildTypeId": "Looping_Build"}},
			"nextHref": "/guestAuth/app/rest/builds?locator=buildType:(id:Looping_Build),running:any,count:1000",
		}
	case "/app/rest/builds?buildType:(id:App_Build),running:true":
		payload = map[string]any{"build": []map[string]any{{"id": 3, "number": "12", "buildTypeId": "App_Build"}}}
	case "/app/rest/builds?buildType:(id:App_Build),status:SUCCESS,state:finished,count:1":
		payload = map[string]any{"build": []map[string]any{{"id": 2, "number": "11", "buildTypeId": "App_Build"}}}
	case "/app/rest/builds?buildType:(id:Lib_Build),status:SUCCESS,state:finished,count:1":
		payload = map[string]any{"count": 0}
	case "/app/rest/changes?build:(id:3)":
		payload = map[string]any{"change": []map[string]any{{"id": 30}, {"id": 31}}}
	case "/app/rest/changes?build:(id:2)":
		payload = map[string]any{"change": []map[string]any{{"id": 31}, {"id": 20}}}
	case "/app/rest/changes/id:30", "/app/rest/changes/id:31", "/app/rest/changes/id:20":
		id := strings.TrimPrefix(key, "/app/rest/changes/id:")
		payload = map[string]any{
			"id": json.Number(id), "version": "sha-" + id, "username": "dev", "comment": "PROJ-" + id + " change\n",
			"files": map[string]any{"file": []map[string]any{{"file": "src/" + id + ".cs", "relative-file": id + ".cs", "changeType": "edited"}}},
		}
	case "/app/rest/builds/id:3/relatedIssues":
		payload = map[string]any{"issueUsage": []map[string]any{
			{"issue": map[string]any{"id": "PROJ-30", "url": "https://jira/browse/PROJ-30"}},
		}}
	case "/app/rest/builds/id:2/relatedIssues":
		payload = map[string]any{"issueUsage": []map[string]any{
			{"issue": map[string]any{"id": "proj-30", "url": "https://jira/browse/PROJ-30"}},
			{"issue": map[string]any{"id": "PROJ-20", "url": "https://jira/browse/PROJ-20"}},
		}}
	case "/app/rest/builds/id:2/artifacts/children/":
		payload = map[string]any{"file": []map[string]any{{"name": "App.Core.1.0.0.nupkg"}, {"name": "logs.zip"}}}
	default:
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}

func newGuestClient(t *testing.T, serverURL string) *TeamCityClient {
	t.Helper()
	client, err := NewTeamCityClient(serverURL, TeamCityAuth{}, HTTPSettings{RetryDelayMs: 1}, cache.NewResponseCache())
	require.NoError(t, err)
	return client
}

func TestTeamCityClientRejectsInvalidServer(t *testing.T) {
	for _, value := range []string{"", "teamcity.example.com", "ftp://teamcity.example.com"} {
		_, err := NewTeamCityClient(value, TeamCityAuth{}, HTTPSettings{}, nil)
		require.Equal(t, errbuilder.CodeInvalidArgument, errbuilder.CodeOf(err), value)
	}
}

func TestTeamCityClientResolvesBuildTypes(t *testing.T) {
	_, server := newFakeTeamCity(t)
	client := newGuestClient(t, server.URL+"/")
	require.Equal(t, server.URL, client.ServerURL())

	matches, err := client.ResolveBuildTypeByProjectAndName(t.Context(), "platform", "APP")
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "App_Build", matches[0].ID)

	details, err := client.GetBuildTypeDetails(t.Context(), "App_Build")
	require.NoError(t, err)
	want := types.BuildTypeDetails{
		ID:      "App_Build",
		Name:    "App",
		Project: types.ProjectRef{ID: "Platform", Name: "Platform"},
		WebURL:  "https://tc/viewType.html?buildTypeId=App_Build",
	}
	if diff := cmp.Diff(want, details); diff != "" {
		t.Fatalf("unexpected details (-want +got):\n%s", diff)
	}

	_, err = client.GetBuildTypeDetails(t.Context(), "Missing")
	require.Equal(t, errbuilder.CodeNotFound, errbuilder.CodeOf(err))
}

func TestTeamCityClientBuildQueries(t *testing.T) {
	_, server := newFakeTeamCity(t)
	client := newGuestClient(t, server.URL)

	builds, err := client.GetBuildsByBuildType(t.Context(), "App_Build")
	require.NoError(t, err)
	require.Len(t, builds, 3)
	assert.Equal(t, types.Build{ID: "3", Number: "12", BuildTypeID: "App_Build", Status: "SUCCESS", State: "running"}, builds[0])

	running, err := client.GetRunningBuild(t.Context(), "App_Build")
	require.NoError(t, err)
	require.Len(t, running, 1)
	assert.Equal(t, "12", running[0].Number)

	latest, ok, err := client.GetLatestSuccessfulBuild(t.Context(), "App_Build")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "11", latest.Number)

	_, ok, err = client.GetLatestSuccessfulBuild(t.Context(), "Lib_Build")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestTeamCityClientCollectsRangeOnce(t *testing.T) {
	fake, server := newFakeTeamCity(t)
	client := newGuestClient(t, server.URL)

	builds, err := client.GetBuildsByBuildType(t.Context(), "App_Build")
	require.NoError(t, err)

	changes, err := client.GetChangeDetails(t.Context(), "App_Build", "10", "12", builds)
	require.NoError(t, err)
	ids := make([]string, 0, len(changes))
	for _, change := range changes {
		ids = append(ids, change.ID)
	}
	if diff := cmp.Diff([]string{"30", "31", "20"}, ids); diff != "" {
		t.Fatalf("unexpected change ids (-want +got):\n%s", diff)
	}
	wantFirst := types.ChangeDetail{
		ID:       "30",
		Version:  "sha-30",
		Username: "dev",
		Comment:  "PROJ-30 change",
		Files:    []types.ChangeFile{{File: "src/30.cs", RelativeFile: "30.cs", ChangeType: "edited"}},
	}
	if diff := cmp.Diff(wantFirst, changes[0]); diff != "" {
		t.Fatalf("unexpected change detail (-want +got):\n%s", diff)
	}
	assert.Zero(t, fake.count("/app/rest/changes?build:(id:1)"))

	again, err := client.GetChangeDetails(t.Context(), "App_Build", "10", "12", builds)
	require.NoError(t, err)
	require.Equal(t, changes, again)
	assert.Equal(t, 1, fake.count("/app/rest/changes?build:(id:3)"))
	assert.Equal(t, 1, fake.count("/app/rest/changes/id:31"))

	issues, err := client.GetIssuesByRange(t.Context(), "App_Build", "10", "12", builds)
	require.NoError(t, err)
	want := []types.Issue{
		{ID: "PROJ-30", URL: "https://jira/browse/PROJ-30"},
		{ID: "PROJ-20", URL: "https://jira/browse/PROJ-20"},
	}
	if diff := cmp.Diff(want, issues); diff != "" {
		t.Fatalf("unexpected issues (-want +got):\n%s", diff)
	}
}

func TestTeamCityClientNuGetDependencies(t *testing.T) {
	fake, server := newFakeTeamCity(t)
	fake.nuget["/repository/download/App_Build/2:id/.teamcity/nuget/nuget.xml"] = testNuGetXML
	client := newGuestClient(t, server.URL)

	packages, err := client.GetNuGetDependencies(t.Context(), "App_Build", "2")
	require.NoError(t, err)
	require.Len(t, packages, 2)

	missing, err := client.GetNuGetDependencies(t.Context(), "App_Build", "1")
	require.NoError(t, err)
	require.Empty(t, missing)

	_, err = client.GetNuGetDependencies(t.Context(), "App_Build", "2")
	require.NoError(t, err)
	assert.Equal(t, 1, fake.count("/repository/download/App_Build/2:id/.teamcity/nuget/nuget.xml"))
}

func TestTeamCityClientListsArtifacts(t *testing.T) {
	_, server := newFakeTeamCity(t)
	client := newGuestClient(t, server.URL)

	artifacts, err := client.ListArtifacts(t.Context(), "2")
	require.NoError(t, err)
	require.Equal(t, []string{"App.Core.1.0.0.nupkg", "logs.zip"}, artifacts)

	none, err := client.ListArtifacts(t.Context(), "404")
	require.NoError(t, err)
	require.Empty(t, none)
}

func TestTeamCityClientRetriesUnavailableServer(t *testing.T) {
	fake, server := newFakeTeamCity(t)
	fake.fail["/app/rest/buildTypes"] = 1
	client := newGuestClient(t, server.URL)

	buildTypes, err := client.ListBuildTypes(t.Context())
	require.NoError(t, err)
	require.Len(t, buildTypes, 3)
	assert.Equal(t, 2, fake.count("/app/rest/buildTypes"))

	fake.fail["/app/rest/buildTypes/id:App_Build"] = 10
	_, err = client.GetBuildTypeDetails(t.Context(), "App_Build")
	require.Equal(t, errbuilder.CodeInternal, errbuilder.CodeOf(err))
}

func TestTeamCityAuthModes(t *testing.T) {
	cases := []struct {
		name       string
		auth       TeamCityAuth
		prefix     string
		authHeader string
	}{
		{name: "guest", auth: TeamCityAuth{}, prefix: "/guestAuth"},
		{name: "basic", auth: TeamCityAuth{Username: "ci", Password: "secret"}, prefix: "/httpAuth", authHeader: "Basic Y2k6c2VjcmV0"},
		{name: "token", auth: TeamCityAuth{Token: "abc", Username: "ignored"}, prefix: "", authHeader: "Bearer abc"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var gotPath, gotAuth string
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotPath = r.URL.Path
				gotAuth = r.Header.Get("Authorization")
				_, _ = w.Write([]byte(`{"buildType":[]}`))
			}))
			defer server.Close()

			client, err := NewTeamCityClient(server.URL, tc.auth, HTTPSettings{}, nil)
			require.NoError(t, err)
			_, err = client.ListBuildTypes(t.Context())
			require.NoError(t, err)
			assert.Equal(t, tc.prefix+"/app/rest/buildTypes", gotPath)
			assert.Equal(t, tc.authHeader, gotAuth)
		})
	}
}

func TestTeamCityClientFactorySharesServerCache(t *testing.T) {
	fake, server := newFakeTeamCity(t)
	factory := NewTeamCityClientFactory(TeamCityAuth{}, HTTPSettings{}, cache.NewRegistry())

	first, err := factory.Client(server.URL)
	require.NoError(t, err)
	second, err := factory.Port()(strings.ToUpper(server.URL[:4]) + server.URL[4:] + "/")
	require.NoError(t, err)

	_, err = first.ListBuildTypes(t.Context())
	require.NoError(t, err)
	_, err = second.(*TeamCityClient).ListBuildTypes(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 1, fake.count("/app/rest/buildTypes"))

	_, err = factory.Port()("not a url")
	require.Error(t, err)
}

func TestBuildsInRange(t *testing.T) {
	builds := []types.Build{{ID: "5", Number: "5"}, {ID: "4", Number: "4"}, {ID: "3", Number: "3"}, {ID: "2", Number: "2"}}
	numbers := func(in []types.Build) []string {
		var out []string
		for _, build := range in {
			out = append(out, build.Number)
		}
		return out
	}
	if diff := cmp.Diff([]string{"4", "3"}, numbers(buildsInRange(builds, "2", "4"))); diff != "" {
		t.Fatalf("unexpected range (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"3", "2"}, numbers(buildsInRange(builds, "1", "3"))); diff != "" {
		t.Fatalf("unexpected open range (-want +got):\n%s", diff)
	}
	require.Empty(t, buildsInRange(builds, "2", "9"))
	require.Empty(t, buildsInRange(builds, "4", "4"))
}

func TestTeamCityClientRejectedCredentials(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client, err := NewTeamCityClient(server.URL, TeamCityAuth{Token: "expired"}, HTTPSettings{RetryDelayMs: 1}, nil)
	require.NoError(t, err)
	_, err = client.GetBuildTypeDetails(t.Context(), "App_Build")
	require.Equal(t, errbuilder.CodePermissionDenied, errbuilder.CodeOf(err))
}

func TestTeamCityClientFollowsBuildPages(t *testing.T) {
	fake, server := newFakeTeamCity(t)
	client := newGuestClient(t, server.URL)

	builds, err := client.GetBuildsByBuildType(t.Context(), "Paged_Build")
	require.NoError(t, err)
	var numbers []string
	for _, build := range builds {
		numbers = append(numbers, build.Number)
	}
	if diff := cmp.Diff([]string{"42", "41"}, numbers); diff != "" {
		t.Fatalf("unexpected builds (-want +got):\n%s", diff)
	}
	assert.Equal(t, 1, fake.count("/app/rest/builds?buildType:(id:Paged_Build),running:any,count:1000,start:1"))

	looping, err := client.GetBuildsByBuildType(t.Context(), "Looping_Build")
	require.NoError(t, err)
	require.Len(t, looping, 1)
	assert.Equal(t, 1, fake.count("/app/rest/builds?buildType:(id:Looping_Build),running:any,count:1000"))
}

func TestTeamCityClientSharedFetchSurvivesCanceledCaller(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		time.Sleep(300 * time.Millisecond)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"App_Build","name":"App","project":{"id":"Platform","name":"Platform"}}`))
	}))
	defer server.Close()
	client := newGuestClient(t, server.URL)

	canceled, cancel := context.WithCancel(t.Context())
	defer cancel()
	var wg sync.WaitGroup
	var canceledErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, canceledErr = client.GetBuildTypeDetails(canceled, "App_Build")
	}()
	time.Sleep(20 * time.Millisecond)

	var details types.BuildTypeDetails
	var err error
	wg.Add(1)
	go func() {
		defer wg.Done()
		details, err = client.GetBuildTypeDetails(t.Context(), "App_Build")
	}()
	time.Sleep(30 * time.Millisecond)
	cancel()
	wg.Wait()

	require.Error(t, canceledErr)
	assert.Equal(t, errbuilder.CodeInternal, errbuilder.CodeOf(canceledErr))
	require.NoError(t, err)
	assert.Equal(t, "App_Build", details.ID)
	assert.Equal(t, int32(1), hits.Load())
}
