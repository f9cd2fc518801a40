package adapters

import (
	"encoding/xml"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"

	"change-manifest/internal/types"
)

// nugetDependencies is the .teamcity/nuget/nuget.xml artifact TeamCity
// writes for builds that restore NuGet packages.
type nugetDependencies struct {
	Packages []nugetPackage `xml:"packages>package"`
}

type nugetPackage struct {
	ID      string `xml:"id,attr"`
	Version string `xml:"version,attr"`
}

func parseNuGetDependencies(body []byte) ([]types.PackageDetails, error) {
	if len(strings.TrimSpace(string(body))) == 0 {
		return nil, nil
	}
	var doc nugetDependencies
	if err := xml.Unmarshal(body, &doc); err != nil {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to parse nuget dependencies").
			WithCause(err)
	}
	out := make([]types.PackageDetails, 0, len(doc.Packages))
	for _, pkg := range doc.Packages {
		id := strings.TrimSpace(pkg.ID)
		if id == "" {
			continue
		}
		out = append(out, types.PackageDetails{ID: id, Version: strings.TrimSpace(pkg.Version)})
	}
	return out, nil
}
