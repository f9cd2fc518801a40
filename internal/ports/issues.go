package ports

import (
	"context"

	"change-manifest/internal/types"
)

// IssueResolverPort turns raw issue references into tracker details.
type IssueResolverPort interface {
	// Name identifies the resolver in manifests and logs.
	Name() string

	// Handles reports whether the resolver recognises the issue id.
	Handles(issue types.Issue) bool

	// DeriveIssues scans change comments for references the resolver
	// recognises. The result is de-duplicated and keeps first-seen order.
	DeriveIssues(changes []types.ChangeDetail) []types.Issue

	// Enrich fetches details for the issues the resolver handles and
	// ignores the rest.
	Enrich(ctx context.Context, issues []types.Issue) ([]types.ExternalIssueDetails, error)
}
