package downloader

import (
	"net/url"
	"strings"

	"github.com/pkg/xattr"

	"github.com/streamweave/dashdl/pkg/mpd"
)

// writeOutputMetadata sets the extended-attribute metadata the output
// contract documents: the origin URL (only when it carries no embedded
// credentials) and, when the manifest declares ProgramInformation,
// Dublin Core title/source/rights attributes. Failures are tolerated —
// not every filesystem supports extended attributes — and therefore
// never surface as a download error.
func writeOutputMetadata(path, manifestURL string, info []mpd.ProgramInformation) {
	if urlHasNoCredentials(manifestURL) {
		_ = xattr.Set(path, "user.xdg.origin.url", []byte(manifestURL))
	}

	if len(info) == 0 {
		return
	}
	pi := info[0]
	if pi.Title != "" {
		_ = xattr.Set(path, "user.dublincore.title", []byte(pi.Title))
	}
	if pi.Source != "" {
		_ = xattr.Set(path, "user.dublincore.source", []byte(pi.Source))
	}
	if pi.Copyright != "" {
		_ = xattr.Set(path, "user.dublincore.rights", []byte(pi.Copyright))
	}
}

// urlHasNoCredentials reports whether manifestURL carries no embedded
// userinfo component (user:pass@host), the gate on writing the origin-url
// attribute.
func urlHasNoCredentials(manifestURL string) bool {
	u, err := url.Parse(manifestURL)
	if err != nil {
		return !strings.Contains(manifestURL, "@")
	}
	return u.User == nil
}
