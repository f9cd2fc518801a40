package app

import (
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"

	"change-manifest/internal/types"
)

func (s Service) Inspect(req InspectRequest) (InspectResult, error) {
	path := strings.TrimSpace(req.ManifestPath)
	if path == "" {
		return InspectResult{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("manifest path is required")
	}
	if s.ManifestReader == nil {
		return InspectResult{}, errbuilder.New().
			WithCode(errbuilder.CodeFailedPrecondition).
			WithMsg("manifest reader is not configured")
	}
	manifest, err := s.ManifestReader.Read(path)
	if err != nil {
		return InspectResult{}, err
	}
	return InspectResult{Manifest: manifest, Summary: summarize(manifest)}, nil
}

func summarize(manifest types.ChangeManifest) ManifestSummary {
	summary := ManifestSummary{
		Changes:  len(manifest.ChangeDetails),
		Issues:   len(manifest.IssueDetails),
		Warnings: len(manifest.Warnings()),
	}
	for _, change := range manifest.NuGetPackageChanges {
		switch change.Type {
		case types.PackageChangeAdded:
			summary.Added++
		case types.PackageChangeRemoved:
			summary.Removed++
		case types.PackageChangeModified:
			summary.Modified++
		}
	}
	return summary
}
