package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"

	"change-manifest/internal/ports"
	"change-manifest/internal/types"
)

// IssueResolverSet fans issue derivation and enrichment out to every
// configured resolver. Issues no resolver can enrich pass through with
// their raw id and URL.
type IssueResolverSet []ports.IssueResolverPort

func (s IssueResolverSet) DeriveIssuesFromChanges(changes []types.ChangeDetail) []types.Issue {
	seen := map[string]struct{}{}
	var issues []types.Issue
	for _, resolver := range s {
		for _, issue := range resolver.DeriveIssues(changes) {
			key := strings.ToUpper(strings.TrimSpace(issue.ID))
			if key == "" {
				continue
			}
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			issues = append(issues, issue)
		}
	}
	return issues
}

// EnrichIssues returns one entry per input issue, in input order. A
// failing resolver does not abort enrichment; its issues pass through
// and the failures are joined into the returned error.
func (s IssueResolverSet) EnrichIssues(ctx context.Context, issues []types.Issue) ([]types.ExternalIssueDetails, error) {
	if len(issues) == 0 {
		return nil, nil
	}
	claimed := map[string]struct{}{}
	enriched := map[string]types.ExternalIssueDetails{}
	var failures []error
	for _, resolver := range s {
		var handled []types.Issue
		for _, issue := range issues {
			key := strings.ToUpper(issue.ID)
			if _, ok := claimed[key]; ok {
				continue
			}
			if !resolver.Handles(issue) {
				continue
			}
			claimed[key] = struct{}{}
			handled = append(handled, issue)
		}
		if len(handled) == 0 {
			continue
		}
		details, err := resolver.Enrich(ctx, handled)
		if err != nil {
			failures = append(failures, fmt.Errorf("%s: %w", resolver.Name(), err))
			continue
		}
		for _, detail := range details {
			enriched[strings.ToUpper(detail.ID)] = detail
		}
	}

	out := make([]types.ExternalIssueDetails, 0, len(issues))
	emitted := map[string]struct{}{}
	for _, issue := range issues {
		key := strings.ToUpper(issue.ID)
		if _, ok := emitted[key]; ok {
			continue
		}
		emitted[key] = struct{}{}
		if detail, ok := enriched[key]; ok {
			if detail.URL == "" {
				detail.URL = issue.URL
			}
			out = append(out, detail)
			continue
		}
		out = append(out, types.ExternalIssueDetails{ID: issue.ID, URL: issue.URL})
	}
	if len(failures) > 0 {
		return out, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("issue enrichment failed").
			WithCause(errors.Join(failures...))
	}
	return out, nil
}
