package policies

import (
	"fmt"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"

	"change-manifest/internal/types"
)

// MappingPolicy picks the build configuration that produced a package
// when the mapping table lists more than one candidate.
type MappingPolicy struct {
	Project string
}

func NewMappingPolicy(project string) MappingPolicy {
	return MappingPolicy{Project: strings.TrimSpace(project)}
}

// Select returns the single candidate, or the first candidate owned by
// the policy's project. Anything else is reported as NotFound (no
// candidates) or FailedPrecondition (ambiguous).
func (p MappingPolicy) Select(packageID string, candidates []types.PackageBuildMapping) (types.PackageBuildMapping, error) {
	switch len(candidates) {
	case 0:
		return types.PackageBuildMapping{}, errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg(fmt.Sprintf("no build mapping for package %s", packageID))
	case 1:
		return candidates[0], nil
	}
	if p.Project != "" {
		for _, candidate := range candidates {
			if strings.EqualFold(strings.TrimSpace(candidate.Project), p.Project) {
				return candidate, nil
			}
		}
	}
	return types.PackageBuildMapping{}, errbuilder.New().
		WithCode(errbuilder.CodeFailedPrecondition).
		WithMsg(fmt.Sprintf("ambiguous build mapping for package %s: %d candidates, none in project %s", packageID, len(candidates), p.Project))
}
