package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"sync"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"change-manifest/internal/ports"
	"change-manifest/internal/shared"
	"change-manifest/internal/types"
)

const jiraResolverName = "jira"
const defaultJiraWorkers = 4

var jiraKeyPattern = regexp.MustCompile(`\b[A-Z][A-Z0-9_]+-[0-9]+\b`)

// JiraIssueResolver recognises JIRA issue keys in change comments and
// reads summary, status and type from the JIRA REST API.
type JiraIssueResolver struct {
	BaseURL     string
	User        string
	Token       string
	ProjectKeys []string
	Workers     int
	cfg         httpRetryConfig
	limiter     *rate.Limiter
}

func NewJiraIssueResolver(baseURL string, user string, token string, projectKeys []string, settings HTTPSettings) (JiraIssueResolver, error) {
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if _, err := url.ParseRequestURI(base); err != nil || base == "" {
		return JiraIssueResolver{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("invalid jira url: %q", baseURL))
	}
	keys := make([]string, 0, len(projectKeys))
	for _, key := range projectKeys {
		if trimmed := strings.ToUpper(strings.TrimSpace(key)); trimmed != "" {
			keys = append(keys, trimmed)
		}
	}
	return JiraIssueResolver{
		BaseURL:     base,
		User:        strings.TrimSpace(user),
		Token:       strings.TrimSpace(token),
		ProjectKeys: keys,
		Workers:     defaultJiraWorkers,
		cfg:         settings.retryConfig(),
		limiter:     settings.limiter(),
	}, nil
}

func (r JiraIssueResolver) Name() string {
	return jiraResolverName
}

func (r JiraIssueResolver) Handles(issue types.Issue) bool {
	key := strings.ToUpper(strings.TrimSpace(issue.ID))
	if !jiraKeyPattern.MatchString(key) || jiraKeyPattern.FindString(key) != key {
		return false
	}
	if len(r.ProjectKeys) == 0 {
		return true
	}
	project := key[:strings.LastIndex(key, "-")]
	for _, allowed := range r.ProjectKeys {
		if allowed == project {
			return true
		}
	}
	return false
}

func (r JiraIssueResolver) DeriveIssues(changes []types.ChangeDetail) []types.Issue {
	var keys []string
	for _, change := range changes {
		keys = append(keys, jiraKeyPattern.FindAllString(change.Comment, -1)...)
	}
	var out []types.Issue
	for _, key := range shared.UniqueFold(keys) {
		issue := types.Issue{ID: key, URL: r.BaseURL + "/browse/" + key}
		if r.Handles(issue) {
			out = append(out, issue)
		}
	}
	return out
}

type jiraIssue struct {
	Key    string `json:"key"`
	Fields struct {
		Summary string `json:"summary"`
		Status  struct {
			Name string `json:"name"`
		} `json:"status"`
		IssueType struct {
			Name string `json:"name"`
		} `json:"issuetype"`
	} `json:"fields"`
}

// Enrich looks every handled issue up concurrently. Issues JIRA does not
// know are left out so they pass through unenriched.
func (r JiraIssueResolver) Enrich(ctx context.Context, issues []types.Issue) ([]types.ExternalIssueDetails, error) {
	workers := r.Workers
	if workers <= 0 {
		workers = defaultJiraWorkers
	}
	found := make([]*types.ExternalIssueDetails, len(issues))
	var mu sync.Mutex
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(workers)
	for i, issue := range issues {
		if !r.Handles(issue) {
			continue
		}
		group.Go(func() error {
			detail, ok, err := r.fetch(groupCtx, strings.ToUpper(strings.TrimSpace(issue.ID)))
			if err != nil || !ok {
				return err
			}
			mu.Lock()
			found[i] = &detail
			mu.Unlock()
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	out := make([]types.ExternalIssueDetails, 0, len(issues))
	for _, detail := range found {
		if detail != nil {
			out = append(out, *detail)
		}
	}
	return out, nil
}

func (r JiraIssueResolver) fetch(ctx context.Context, key string) (types.ExternalIssueDetails, bool, error) {
	target := fmt.Sprintf("%s/rest/api/2/issue/%s?fields=summary,status,issuetype", r.BaseURL, url.PathEscape(key))
	resp, err := doRequest(ctx, target, r.authorize, r.limiter, r.cfg)
	if err != nil {
		return types.ExternalIssueDetails{}, false, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return types.ExternalIssueDetails{}, false, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to read jira response").
			WithCause(err)
	}
	if resp.StatusCode == http.StatusNotFound {
		log.Ctx(ctx).Debug().Str("issue", key).Msg("jira issue not found")
		return types.ExternalIssueDetails{}, false, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return types.ExternalIssueDetails{}, false, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("jira request failed").
			WithCause(shared.HTTPStatusErrorWithBody(resp.StatusCode, target, strings.TrimSpace(string(body))))
	}
	var payload jiraIssue
	if err := json.Unmarshal(body, &payload); err != nil {
		return types.ExternalIssueDetails{}, false, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to decode jira issue").
			WithCause(err)
	}
	id := payload.Key
	if id == "" {
		id = key
	}
	return types.ExternalIssueDetails{
		ID:       id,
		Title:    payload.Fields.Summary,
		Status:   payload.Fields.Status.Name,
		Type:     payload.Fields.IssueType.Name,
		URL:      r.BaseURL + "/browse/" + id,
		Resolver: jiraResolverName,
	}, true, nil
}

func (r JiraIssueResolver) authorize(req *http.Request) {
	req.Header.Set("Accept", "application/json")
	switch {
	case r.User != "" && r.Token != "":
		req.SetBasicAuth(r.User, r.Token)
	case r.Token != "":
		req.Header.Set("Authorization", "Bearer "+r.Token)
	}
}

var _ ports.IssueResolverPort = JiraIssueResolver{}
