package core

import (
	"strings"

	"github.com/Masterminds/semver/v3"
	pep440 "github.com/aquasecurity/go-pep440-version"
)

// compareVersions orders two NuGet version strings. SemVer 2.0 rules
// apply first; legacy four-part versions (1.2.3.4) fall back to PEP 440
// release ordering, which accepts any number of release segments.
// Unparseable values compare lexically.
func compareVersions(a string, b string) int {
	a = strings.TrimSpace(a)
	b = strings.TrimSpace(b)
	if a == b {
		return 0
	}
	if va, err := semver.NewVersion(a); err == nil {
		if vb, err := semver.NewVersion(b); err == nil {
			return va.Compare(vb)
		}
	}
	if pa, err := pep440.Parse(a); err == nil {
		if pb, err := pep440.Parse(b); err == nil {
			return pa.Compare(pb)
		}
	}
	return strings.Compare(strings.ToLower(a), strings.ToLower(b))
}

func isVersion(value string) bool {
	if _, err := semver.NewVersion(value); err == nil {
		return true
	}
	_, err := pep440.Parse(value)
	return err == nil
}
