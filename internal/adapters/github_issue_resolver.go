package adapters

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/google/go-github/v57/github"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"change-manifest/internal/ports"
	"change-manifest/internal/types"
)

const githubResolverName = "github"
const githubWebURL = "https://github.com"

var githubRefPattern = regexp.MustCompile(`(?:^|[^\w&/])(?:#|GH-)([0-9]+)\b`)
var githubIDPattern = regexp.MustCompile(`^(?:#|GH-)([0-9]+)$`)

// GitHubIssueResolver resolves #123 and GH-123 references against one
// repository's issues and pull requests.
type GitHubIssueResolver struct {
	Owner       string
	Repo        string
	webURL      string
	client      *github.Client
	rateLimiter *rate.Limiter
}

// NewGitHubIssueResolver creates a resolver for owner/repo. An empty
// baseURL targets github.com; GitHub Enterprise takes its API root, for
// example https://ghe.example.com/api/v3/.
func NewGitHubIssueResolver(owner string, repo string, token string, baseURL string, rateLimit float64) (GitHubIssueResolver, error) {
	owner = strings.TrimSpace(owner)
	repo = strings.TrimSpace(repo)
	if owner == "" || repo == "" {
		return GitHubIssueResolver{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("github owner and repository are required")
	}
	client := github.NewClient(nil)
	if token = strings.TrimSpace(token); token != "" {
		client = client.WithAuthToken(token)
	}
	webURL := githubWebURL
	if base := strings.TrimSpace(baseURL); base != "" {
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}
		parsed, err := url.Parse(base)
		if err != nil {
			return GitHubIssueResolver{}, errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg(fmt.Sprintf("invalid github api url: %q", baseURL)).
				WithCause(err)
		}
		client.BaseURL = parsed
		webURL = githubWebRoot(parsed)
	}
	limit := rate.Inf
	if rateLimit > 0 {
		limit = rate.Limit(rateLimit)
	}
	return GitHubIssueResolver{
		Owner:       owner,
		Repo:        repo,
		webURL:      webURL,
		client:      client,
		rateLimiter: rate.NewLimiter(limit, 1),
	}, nil
}

// githubWebRoot maps an API root to the host that serves issue pages.
// api.github.com belongs to github.com; Enterprise serves both on one host.
func githubWebRoot(api *url.URL) string {
	if api.Host == "" {
		return githubWebURL
	}
	host := api.Host
	if strings.EqualFold(host, "api.github.com") {
		host = "github.com"
	}
	scheme := api.Scheme
	if scheme == "" {
		scheme = "https"
	}
	return scheme + "://" + host
}

func (r GitHubIssueResolver) webPrefix() string {
	if r.webURL == "" {
		return githubWebURL
	}
	return r.webURL
}

func (r GitHubIssueResolver) Name() string {
	return githubResolverName
}

func (r GitHubIssueResolver) Handles(issue types.Issue) bool {
	_, ok := githubIssueNumber(issue.ID)
	return ok
}

func (r GitHubIssueResolver) DeriveIssues(changes []types.ChangeDetail) []types.Issue {
	seen := map[int]struct{}{}
	var out []types.Issue
	for _, change := range changes {
		for _, match := range githubRefPattern.FindAllStringSubmatch(strings.ToUpper(change.Comment), -1) {
			number, err := strconv.Atoi(match[1])
			if err != nil || number <= 0 {
				continue
			}
			if _, ok := seen[number]; ok {
				continue
			}
			seen[number] = struct{}{}
			out = append(out, types.Issue{
				ID:  "#" + strconv.Itoa(number),
				URL: fmt.Sprintf("%s/%s/%s/issues/%d", r.webPrefix(), r.Owner, r.Repo, number),
			})
		}
	}
	return out
}

func (r GitHubIssueResolver) Enrich(ctx context.Context, issues []types.Issue) ([]types.ExternalIssueDetails, error) {
	var out []types.ExternalIssueDetails
	for _, issue := range issues {
		number, ok := githubIssueNumber(issue.ID)
		if !ok {
			continue
		}
		if err := r.rateLimiter.Wait(ctx); err != nil {
			return nil, errbuilder.New().
				WithCode(errbuilder.CodeInternal).
				WithMsg("github rate limiter").
				WithCause(err)
		}
		found, _, err := r.client.Issues.Get(ctx, r.Owner, r.Repo, number)
		if err != nil {
			var apiErr *github.ErrorResponse
			if errors.As(err, &apiErr) && apiErr.Response != nil && apiErr.Response.StatusCode == http.StatusNotFound {
				log.Ctx(ctx).Debug().Int("issue", number).Msg("github issue not found")
				continue
			}
			return nil, errbuilder.New().
				WithCode(errbuilder.CodeInternal).
				WithMsg(fmt.Sprintf("fetch github issue %d", number)).
				WithCause(err)
		}
		kind := "issue"
		if found.IsPullRequest() {
			kind = "pull request"
		}
		out = append(out, types.ExternalIssueDetails{
			ID:       issue.ID,
			Title:    found.GetTitle(),
			Status:   found.GetState(),
			Type:     kind,
			URL:      found.GetHTMLURL(),
			Resolver: githubResolverName,
		})
	}
	return out, nil
}

func githubIssueNumber(id string) (int, bool) {
	match := githubIDPattern.FindStringSubmatch(strings.ToUpper(strings.TrimSpace(id)))
	if match == nil {
		return 0, false
	}
	number, err := strconv.Atoi(match[1])
	if err != nil || number <= 0 {
		return 0, false
	}
	return number, true
}

var _ ports.IssueResolverPort = GitHubIssueResolver{}
