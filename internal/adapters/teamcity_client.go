package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"change-manifest/internal/cache"
	"change-manifest/internal/ports"
	"change-manifest/internal/shared"
	"change-manifest/internal/types"
)

const defaultBuildListCount = 1000

// TeamCityAuth selects how requests authenticate. A token wins over a
// username; with neither, the guest account is used.
type TeamCityAuth struct {
	Token    string
	Username string
	Password string
}

func (a TeamCityAuth) prefix() string {
	switch {
	case strings.TrimSpace(a.Token) != "":
		return ""
	case strings.TrimSpace(a.Username) != "":
		return "/httpAuth"
	default:
		return "/guestAuth"
	}
}

func (a TeamCityAuth) apply(req *http.Request) {
	switch {
	case strings.TrimSpace(a.Token) != "":
		req.Header.Set("Authorization", "Bearer "+strings.TrimSpace(a.Token))
	case strings.TrimSpace(a.Username) != "":
		req.SetBasicAuth(strings.TrimSpace(a.Username), a.Password)
	}
}

// TeamCityClient talks to one TeamCity server over its REST API. Raw
// responses and decoded entities are memoized in the server's
// ResponseCache, and concurrent requests for the same URL share a single
// round trip.
type TeamCityClient struct {
	server   string
	auth     TeamCityAuth
	cfg      httpRetryConfig
	limiter  *rate.Limiter
	inflight *singleflight.Group
	cache    *cache.ResponseCache
}

func NewTeamCityClient(serverURL string, auth TeamCityAuth, settings HTTPSettings, responses *cache.ResponseCache) (*TeamCityClient, error) {
	server := strings.TrimRight(strings.TrimSpace(serverURL), "/")
	parsed, err := url.Parse(server)
	if server == "" || err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("invalid teamcity server url: %q", serverURL))
	}
	if responses == nil {
		responses = cache.NewResponseCache()
	}
	return &TeamCityClient{
		server:   parsed.Scheme + "://" + strings.ToLower(parsed.Host) + strings.TrimRight(parsed.Path, "/"),
		auth:     auth,
		cfg:      settings.retryConfig(),
		limiter:  settings.limiter(),
		inflight: &singleflight.Group{},
		cache:    responses,
	}, nil
}

func (c *TeamCityClient) ServerURL() string {
	return c.server
}

type tcProject struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type tcBuildType struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	ProjectID   string     `json:"projectId"`
	ProjectName string     `json:"projectName"`
	WebURL      string     `json:"webUrl"`
	Project     *tcProject `json:"project"`
}

type tcBuildTypes struct {
	BuildType []tcBuildType `json:"buildType"`
}

type tcBuild struct {
	ID          int64  `json:"id"`
	Number      string `json:"number"`
	BuildTypeID string `json:"buildTypeId"`
	Status      string `json:"status"`
	State       string `json:"state"`
	WebURL      string `json:"webUrl"`
}

type tcBuilds struct {
	Build    []tcBuild `json:"build"`
	NextHref string    `json:"nextHref"`
}

type tcFile struct {
	File         string `json:"file"`
	RelativeFile string `json:"relative-file"`
	ChangeType   string `json:"changeType"`
}

type tcChange struct {
	ID       int64  `json:"id"`
	Version  string `json:"version"`
	Username string `json:"username"`
	Comment  string `json:"comment"`
	Date     string `json:"date"`
	Files    *struct {
		File []tcFile `json:"file"`
	} `json:"files"`
}

type tcChanges struct {
	Change []tcChange `json:"change"`
}

type tcIssueUsages struct {
	IssueUsage []struct {
		Issue struct {
			ID  string `json:"id"`
			URL string `json:"url"`
		} `json:"issue"`
	} `json:"issueUsage"`
}

type tcArtifacts struct {
	File []struct {
		Name string `json:"name"`
	} `json:"file"`
}

func (b tcBuildType) details() types.BuildTypeDetails {
	project := types.ProjectRef{ID: b.ProjectID, Name: b.ProjectName}
	if b.Project != nil {
		if project.ID == "" {
			project.ID = b.Project.ID
		}
		if project.Name == "" {
			project.Name = b.Project.Name
		}
	}
	return types.BuildTypeDetails{ID: b.ID, Name: b.Name, Project: project, WebURL: b.WebURL}
}

func (b tcBuild) build() types.Build {
	return types.Build{
		ID:          strconv.FormatInt(b.ID, 10),
		Number:      b.Number,
		BuildTypeID: b.BuildTypeID,
		Status:      b.Status,
		State:       b.State,
		WebURL:      b.WebURL,
	}
}

func (ch tcChange) detail() types.ChangeDetail {
	detail := types.ChangeDetail{
		ID:       strconv.FormatInt(ch.ID, 10),
		Version:  ch.Version,
		Username: ch.Username,
		Comment:  strings.TrimSpace(ch.Comment),
		Date:     ch.Date,
	}
	if ch.Files != nil {
		for _, file := range ch.Files.File {
			detail.Files = append(detail.Files, types.ChangeFile{File: file.File, RelativeFile: file.RelativeFile, ChangeType: file.ChangeType})
		}
	}
	return detail
}

func (c *TeamCityClient) ListBuildTypes(ctx context.Context) ([]types.BuildTypeDetails, error) {
	var payload tcBuildTypes
	if err := c.getJSON(ctx, c.restURL("/app/rest/buildTypes"), &payload); err != nil {
		return nil, err
	}
	out := make([]types.BuildTypeDetails, 0, len(payload.BuildType))
	for _, buildType := range payload.BuildType {
		out = append(out, buildType.details())
	}
	return out, nil
}

func (c *TeamCityClient) ResolveBuildTypeByProjectAndName(ctx context.Context, project string, name string) ([]types.BuildTypeDetails, error) {
	all, err := c.ListBuildTypes(ctx)
	if err != nil {
		return nil, err
	}
	var out []types.BuildTypeDetails
	for _, details := range all {
		if strings.EqualFold(details.Project.Name, strings.TrimSpace(project)) && strings.EqualFold(details.Name, strings.TrimSpace(name)) {
			out = append(out, details)
		}
	}
	return out, nil
}

func (c *TeamCityClient) GetBuildTypeDetails(ctx context.Context, buildTypeID string) (types.BuildTypeDetails, error) {
	if cached, ok := c.cache.BuildTypes.Lookup(buildTypeID); ok {
		return cached, nil
	}
	var payload tcBuildType
	if err := c.getJSON(ctx, c.restURL("/app/rest/buildTypes/id:"+url.PathEscape(buildTypeID)), &payload); err != nil {
		return types.BuildTypeDetails{}, err
	}
	details := payload.details()
	c.cache.BuildTypes.Insert(buildTypeID, details)
	return details, nil
}

func (c *TeamCityClient) GetBuildsByBuildType(ctx context.Context, buildTypeID string) ([]types.Build, error) {
	return c.listAllBuilds(ctx, fmt.Sprintf("buildType:(id:%s),running:any,count:%d", buildTypeID, defaultBuildListCount))
}

func (c *TeamCityClient) GetRunningBuild(ctx context.Context, buildTypeID string) ([]types.Build, error) {
	return c.listBuilds(ctx, fmt.Sprintf("buildType:(id:%s),running:true", buildTypeID))
}

func (c *TeamCityClient) GetLatestSuccessfulBuild(ctx context.Context, buildTypeID string) (types.Build, bool, error) {
	builds, err := c.listBuilds(ctx, fmt.Sprintf("buildType:(id:%s),status:SUCCESS,state:finished,count:1", buildTypeID))
	if err != nil {
		return types.Build{}, false, err
	}
	if len(builds) == 0 {
		return types.Build{}, false, nil
	}
	return builds[0], true, nil
}

func (c *TeamCityClient) listBuilds(ctx context.Context, locator string) ([]types.Build, error) {
	var payload tcBuilds
	if err := c.getJSON(ctx, c.restURL("/app/rest/builds?locator="+url.QueryEscape(locator)), &payload); err != nil {
		return nil, err
	}
	return c.collectBuilds(nil, payload), nil
}

// listAllBuilds follows nextHref until TeamCity reports no further page.
func (c *TeamCityClient) listAllBuilds(ctx context.Context, locator string) ([]types.Build, error) {
	target := c.restURL("/app/rest/builds?locator=" + url.QueryEscape(locator))
	visited := map[string]struct{}{}
	var out []types.Build
	for target != "" {
		key := pageKey(target)
		if _, ok := visited[key]; ok {
			log.Ctx(ctx).Warn().Str("url", target).Msg("teamcity returned a repeated page link")
			break
		}
		visited[key] = struct{}{}
		var payload tcBuilds
		if err := c.getJSON(ctx, target, &payload); err != nil {
			return nil, err
		}
		out = c.collectBuilds(out, payload)
		target = c.pageURL(payload.NextHref)
	}
	return out, nil
}

func (c *TeamCityClient) collectBuilds(out []types.Build, payload tcBuilds) []types.Build {
	for _, raw := range payload.Build {
		build := raw.build()
		c.cache.Builds.Insert(build.ID, build)
		out = append(out, build)
	}
	return out
}

// pageKey compares page links regardless of query escaping.
func pageKey(target string) string {
	parsed, err := url.Parse(target)
	if err != nil {
		return target
	}
	return parsed.Path + "?" + parsed.Query().Encode()
}

// pageURL resolves a nextHref, which TeamCity sends relative to the
// server root with the auth prefix already included.
func (c *TeamCityClient) pageURL(href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	if !strings.HasPrefix(href, "/") {
		href = "/" + href
	}
	return c.server + href
}

// GetChangeDetails returns the changes of the builds after from up to and
// including to, newest build first, each change once.
func (c *TeamCityClient) GetChangeDetails(ctx context.Context, buildTypeID string, from string, to string, builds []types.Build) ([]types.ChangeDetail, error) {
	seen := map[string]struct{}{}
	var out []types.ChangeDetail
	for _, build := range buildsInRange(builds, from, to) {
		list, err := c.changeList(ctx, build.ID)
		if err != nil {
			return nil, err
		}
		for _, changeID := range list.ChangeIDs {
			if _, ok := seen[changeID]; ok {
				continue
			}
			seen[changeID] = struct{}{}
			detail, err := c.changeDetail(ctx, changeID)
			if err != nil {
				return nil, err
			}
			out = append(out, detail)
		}
	}
	log.Ctx(ctx).Debug().Str("build_type", buildTypeID).Int("changes", len(out)).Msg("change details collected")
	return out, nil
}

func (c *TeamCityClient) changeList(ctx context.Context, buildID string) (types.ChangeList, error) {
	if cached, ok := c.cache.ChangeLists.Lookup(buildID); ok {
		return cached, nil
	}
	var payload tcChanges
	locator := fmt.Sprintf("build:(id:%s)", buildID)
	if err := c.getJSON(ctx, c.restURL("/app/rest/changes?locator="+url.QueryEscape(locator)), &payload); err != nil {
		return types.ChangeList{}, err
	}
	list := types.ChangeList{BuildID: buildID}
	for _, change := range payload.Change {
		list.ChangeIDs = append(list.ChangeIDs, strconv.FormatInt(change.ID, 10))
	}
	c.cache.ChangeLists.Insert(buildID, list)
	return list, nil
}

func (c *TeamCityClient) changeDetail(ctx context.Context, changeID string) (types.ChangeDetail, error) {
	if cached, ok := c.cache.ChangeDetails.Lookup(changeID); ok {
		return cached, nil
	}
	var payload tcChange
	if err := c.getJSON(ctx, c.restURL("/app/rest/changes/id:"+url.PathEscape(changeID)), &payload); err != nil {
		return types.ChangeDetail{}, err
	}
	detail := payload.detail()
	c.cache.ChangeDetails.Insert(changeID, detail)
	return detail, nil
}

func (c *TeamCityClient) GetIssuesByRange(ctx context.Context, buildTypeID string, from string, to string, builds []types.Build) ([]types.Issue, error) {
	seen := map[string]struct{}{}
	var out []types.Issue
	for _, build := range buildsInRange(builds, from, to) {
		var payload tcIssueUsages
		if err := c.getJSON(ctx, c.restURL("/app/rest/builds/id:"+url.PathEscape(build.ID)+"/relatedIssues"), &payload); err != nil {
			return nil, err
		}
		for _, usage := range payload.IssueUsage {
			key := strings.ToUpper(strings.TrimSpace(usage.Issue.ID))
			if key == "" {
				continue
			}
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, types.Issue{ID: strings.TrimSpace(usage.Issue.ID), URL: usage.Issue.URL})
		}
	}
	log.Ctx(ctx).Debug().Str("build_type", buildTypeID).Int("issues", len(out)).Msg("related issues collected")
	return out, nil
}

// GetNuGetDependencies reads the nuget.xml TeamCity records for a build.
// A build without the file has no NuGet dependencies.
func (c *TeamCityClient) GetNuGetDependencies(ctx context.Context, buildTypeID string, buildID string) ([]types.PackageDetails, error) {
	key := cache.DependencyKey{BuildTypeID: buildTypeID, BuildID: buildID}
	if cached, ok := c.cache.PackageDependencies.Lookup(key); ok {
		return cached, nil
	}
	target := c.restURL(fmt.Sprintf("/repository/download/%s/%s:id/.teamcity/nuget/nuget.xml", url.PathEscape(buildTypeID), url.PathEscape(buildID)))
	body, err := c.get(ctx, target)
	if err != nil {
		if errbuilder.CodeOf(err) == errbuilder.CodeNotFound {
			log.Ctx(ctx).Debug().Str("build_type", buildTypeID).Str("build", buildID).Msg("no nuget dependency file")
			return nil, nil
		}
		return nil, err
	}
	packages, err := parseNuGetDependencies(body)
	if err != nil {
		return nil, err
	}
	c.cache.PackageDependencies.Insert(key, packages)
	return packages, nil
}

func (c *TeamCityClient) ListArtifacts(ctx context.Context, buildID string) ([]string, error) {
	var payload tcArtifacts
	if err := c.getJSON(ctx, c.restURL("/app/rest/builds/id:"+url.PathEscape(buildID)+"/artifacts/children/"), &payload); err != nil {
		if errbuilder.CodeOf(err) == errbuilder.CodeNotFound {
			return nil, nil
		}
		return nil, err
	}
	out := make([]string, 0, len(payload.File))
	for _, file := range payload.File {
		out = append(out, file.Name)
	}
	return out, nil
}

func (c *TeamCityClient) restURL(path string) string {
	return c.server + c.auth.prefix() + path
}

func (c *TeamCityClient) getJSON(ctx context.Context, target string, out any) error {
	body, err := c.get(ctx, target)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to decode teamcity response").
			WithCause(fmt.Errorf("url=%s: %w", target, err))
	}
	return nil
}

// get returns the body for target from the response cache, or fetches
// it once even when several goroutines ask at the same time. The shared
// fetch is detached from any single caller's cancellation; each caller
// stops waiting when its own context is done.
func (c *TeamCityClient) get(ctx context.Context, target string) ([]byte, error) {
	if cached, ok := c.cache.Responses.Lookup(target); ok {
		log.Ctx(ctx).Debug().Str("url", target).Msg("response cache hit")
		return cached, nil
	}
	detached := context.WithoutCancel(ctx)
	ch := c.inflight.DoChan(target, func() (any, error) {
		body, err := c.fetch(detached, target)
		if err != nil {
			return nil, err
		}
		c.cache.Responses.Insert(target, body)
		return body, nil
	})
	select {
	case <-ctx.Done():
		return nil, requestCanceled(ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]byte), nil
	}
}

func (c *TeamCityClient) fetch(ctx context.Context, target string) ([]byte, error) {
	resp, err := doRequest(ctx, target, func(req *http.Request) {
		req.Header.Set("Accept", "application/json")
		c.auth.apply(req)
	}, c.limiter, c.cfg)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to read teamcity response").
			WithCause(err)
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg(fmt.Sprintf("teamcity resource not found: %s", target))
	}
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodePermissionDenied).
			WithMsg(fmt.Sprintf("teamcity rejected the credentials for %s", c.server)).
			WithCause(shared.HTTPStatusError(resp.StatusCode, target))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("teamcity request failed").
			WithCause(shared.HTTPStatusErrorWithBody(resp.StatusCode, target, strings.TrimSpace(string(body))))
	}
	return body, nil
}

// buildsInRange walks a newest-first build list and returns the builds
// after from up to and including to. An unknown from extends the range
// to the oldest build; an unknown to yields nothing.
func buildsInRange(builds []types.Build, from string, to string) []types.Build {
	var out []types.Build
	collecting := false
	for _, build := range builds {
		if !collecting {
			if build.Number != to {
				continue
			}
			collecting = true
		}
		if build.Number == from {
			break
		}
		out = append(out, build)
	}
	return out
}

var _ ports.BuildSystemPort = (*TeamCityClient)(nil)
var _ ports.BuildCatalogPort = (*TeamCityClient)(nil)
