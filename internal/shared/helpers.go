// Package shared provides common utility functions used across multiple
// packages in the change-manifest codebase.
package shared

import (
	"fmt"
	"strings"
)

// NormalizeServerURL lowercases a server URL and drops surrounding
// whitespace and trailing slashes so equivalent spellings compare equal.
func NormalizeServerURL(value string) string {
	return strings.ToLower(strings.TrimRight(strings.TrimSpace(value), "/"))
}

// SameServer reports whether two server URLs address the same server.
func SameServer(a string, b string) bool {
	return NormalizeServerURL(a) == NormalizeServerURL(b)
}

// HTTPStatusError creates a formatted error for non-2xx HTTP responses.
func HTTPStatusError(status int, url string) error {
	return fmt.Errorf("status=%d url=%s", status, url)
}

// HTTPStatusErrorWithBody creates a formatted error that includes the
// response body for non-2xx HTTP responses.
func HTTPStatusErrorWithBody(status int, url string, body string) error {
	return fmt.Errorf("status=%d url=%s response=%s", status, url, body)
}

// UniqueFold returns values without case-insensitive duplicates, keeping
// the first spelling seen and the original order.
func UniqueFold(values []string) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, value := range values {
		key := strings.ToLower(value)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, value)
	}
	return out
}
