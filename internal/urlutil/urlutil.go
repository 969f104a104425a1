// Package urlutil provides URL manipulation utilities.
package urlutil

import (
	"fmt"
	"net/url"
	"strings"
)

// Merge composes a child BaseURL against an already-resolved parent base,
// implementing the same precedence as dash-mpd-rs's merge_baseurls: an
// absolute child URL (http://, https://, file://, ftp://) replaces the
// parent outright; a relative child is resolved against the parent via
// standard URL reference resolution. When the resolved URL carries no query
// string of its own, the parent's query string (if any) is carried
// forward — BaseURL composition in DASH is expected to preserve CDN
// auth-token query parameters down through every nested BaseURL unless a
// child explicitly overrides them.
func Merge(parent, child string) (string, error) {
	if child == "" {
		return parent, nil
	}
	if isAbsoluteURL(child) {
		return child, nil
	}
	if parent == "" {
		return child, nil
	}

	base, err := url.Parse(parent)
	if err != nil {
		return "", fmt.Errorf("parsing parent BaseURL %q: %w", parent, err)
	}
	ref, err := url.Parse(child)
	if err != nil {
		return "", fmt.Errorf("parsing child BaseURL %q: %w", child, err)
	}

	merged := base.ResolveReference(ref)
	if merged.RawQuery == "" && base.RawQuery != "" {
		merged.RawQuery = base.RawQuery
	}
	return merged.String(), nil
}

// isAbsoluteURL reports whether u carries one of the schemes DASH manifests
// use for absolute BaseURL values.
func isAbsoluteURL(u string) bool {
	for _, scheme := range []string{"http://", "https://", "file://", "ftp://"} {
		if strings.HasPrefix(strings.ToLower(u), scheme) {
			return true
		}
	}
	return false
}

// IsFileURL checks if a URL uses the file:// scheme.
func IsFileURL(u string) bool {
	return strings.HasPrefix(u, "file://")
}

// FilePathFromURL extracts the file path from a file:// URL.
// Returns the path and nil error on success.
// For non-file URLs, returns empty string and an error.
func FilePathFromURL(u string) (string, error) {
	if !IsFileURL(u) {
		return "", fmt.Errorf("not a file:// URL: %s", u)
	}

	parsed, err := url.Parse(u)
	if err != nil {
		return "", fmt.Errorf("invalid URL: %w", err)
	}

	// For file:// URLs, the path is the file path
	// Handle both file:///path and file://localhost/path formats
	path := parsed.Path

	// On Windows, file:///C:/path becomes /C:/path, need to strip leading /
	// This is handled by the caller if needed

	if path == "" {
		return "", fmt.Errorf("empty path in file URL: %s", u)
	}

	return path, nil
}
