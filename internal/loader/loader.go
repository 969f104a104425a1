// Package loader implements manifest ingestion: fetching the MPD document,
// resolving XLink remote-element references, applying user-supplied XSLT
// transformations, and handing the result to pkg/mpd for parsing.
package loader

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/streamweave/dashdl/internal/config"
	"github.com/streamweave/dashdl/internal/urlutil"
	"github.com/streamweave/dashdl/pkg/httpclient"
	"github.com/streamweave/dashdl/pkg/mpd"
)

// acceptHeader is sent on the initial manifest request, preferring the
// registered DASH MIME types.
const acceptHeader = "application/dash+xml,video/vnd.mpeg.dash.mpd"

// Result is the output of Load: the parsed manifest tree together with the
// effective base URL later addressing resolution must compose against.
type Result struct {
	MPD              *mpd.MPD
	EffectiveBaseURL string
	ConformityIssues []mpd.ConformityIssue
}

// Options configures one Load call.
type Options struct {
	Manifest config.ManifestConfig
	Auth     Auth
	Logger   *slog.Logger
}

// Auth carries optional request credentials for the manifest fetch.
type Auth struct {
	Username    string
	Password    string
	BearerToken string
	Referer     string
}

// Loader fetches and assembles the manifest document.
type Loader struct {
	httpClient *httpclient.Client
	xsltPath   string
	opts       Options
}

// New creates a Loader. client is the resilient HTTP client shared with the
// rest of the download (manifest fetches and Location re-fetches both use
// it, benefitting from its circuit breaker and decompression).
func New(client *httpclient.Client, xsltprocPath string, opts Options) *Loader {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Loader{httpClient: client, xsltPath: xsltprocPath, opts: opts}
}

// Load retrieves manifestURL, resolves XLink references, applies any
// configured XSLT stylesheets, and parses the result.
func (l *Loader) Load(ctx context.Context, manifestURL string) (*Result, error) {
	data, effectiveBase, err := l.fetchDocument(ctx, manifestURL)
	if err != nil {
		return nil, fmt.Errorf("fetching manifest: %w", err)
	}

	m, err := mpd.Parse(data)
	if err == nil && len(m.Location) > 0 {
		// A Location element asks us to re-fetch from a new URL; the
		// protocol allows exactly one such re-fetch.
		l.opts.Logger.Debug("manifest declared Location, re-fetching", slog.String("location", m.Location[0]))
		locationURL, rerr := urlutil.Merge(effectiveBase, m.Location[0])
		if rerr != nil {
			return nil, fmt.Errorf("resolving Location URL: %w", rerr)
		}
		data, effectiveBase, err = l.fetchDocument(ctx, locationURL)
		if err != nil {
			return nil, fmt.Errorf("re-fetching manifest from Location: %w", err)
		}
	}

	tree, err := decodeXML(data)
	if err != nil {
		return nil, fmt.Errorf("decoding manifest XML: %w", err)
	}

	resolver := &xlinkResolver{
		fetch:   l.fetchBytes,
		logger:  l.opts.Logger,
		maxIter: l.opts.Manifest.XLinkDepth,
	}
	if resolver.maxIter <= 0 {
		resolver.maxIter = 5
	}
	if err := resolver.resolve(ctx, tree, effectiveBase); err != nil {
		return nil, fmt.Errorf("resolving XLink references: %w", err)
	}

	final := tree
	if len(l.opts.Manifest.XSLTStylesheets) > 0 {
		final, err = applyStylesheets(ctx, l.xsltPath, tree, l.opts.Manifest.XSLTStylesheets)
		if err != nil {
			return nil, fmt.Errorf("applying XSLT stylesheets: %w", err)
		}
	}

	finalBytes, err := encodeXML(final)
	if err != nil {
		return nil, fmt.Errorf("re-encoding manifest XML: %w", err)
	}

	parsed, err := mpd.Parse(finalBytes)
	if err != nil {
		return nil, fmt.Errorf("parsing final manifest: %w", err)
	}

	result := &Result{MPD: parsed, EffectiveBaseURL: effectiveBase}
	if l.opts.Manifest.CheckConformity {
		result.ConformityIssues = parsed.CheckConformity()
		for _, issue := range result.ConformityIssues {
			l.opts.Logger.Warn("manifest conformity issue", slog.String("issue", issue.String()))
		}
	}
	return result, nil
}

// fetchDocument retrieves manifestURL and returns its bytes plus the
// effective base URL (the post-redirect URL for http(s), or the original
// URL for file://).
func (l *Loader) fetchDocument(ctx context.Context, manifestURL string) ([]byte, string, error) {
	if urlutil.IsFileURL(manifestURL) {
		path, err := urlutil.FilePathFromURL(manifestURL)
		if err != nil {
			return nil, "", err
		}
		data, err := fetchFile(path)
		return data, manifestURL, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, manifestURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", acceptHeader)
	req.Header.Set("Upgrade-Insecure-Requests", "1")
	l.applyAuth(req)

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("unexpected status %d fetching manifest", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("reading manifest body: %w", err)
	}

	effective := manifestURL
	if resp.Request != nil && resp.Request.URL != nil {
		effective = resp.Request.URL.String()
	}
	return data, effective, nil
}

// fetchBytes retrieves an XLink href, resolving it against base and
// carrying the base's query string forward per the composition rule.
func (l *Loader) fetchBytes(ctx context.Context, href, base string) ([]byte, error) {
	resolved, err := urlutil.Merge(base, href)
	if err != nil {
		return nil, err
	}

	if urlutil.IsFileURL(resolved) {
		path, err := urlutil.FilePathFromURL(resolved)
		if err != nil {
			return nil, err
		}
		return fetchFile(path)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, resolved, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", acceptHeader)
	l.applyAuth(req)

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d fetching XLink %q", resp.StatusCode, href)
	}
	return io.ReadAll(resp.Body)
}

func (l *Loader) applyAuth(req *http.Request) {
	if l.opts.Auth.Username != "" {
		req.SetBasicAuth(l.opts.Auth.Username, l.opts.Auth.Password)
	}
	if l.opts.Auth.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+l.opts.Auth.BearerToken)
	}
	if l.opts.Auth.Referer != "" {
		req.Header.Set("Referer", l.opts.Auth.Referer)
	}
}

func fetchFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// BaseURLTimeout returns the extended timeout mode (6) should use; exposed
// so callers building the HTTP client for that mode don't hardcode it.
func BaseURLTimeout(cfg config.HTTPConfig) time.Duration {
	if cfg.BaseURLTimeout > 0 {
		return cfg.BaseURLTimeout
	}
	return 10_000 * time.Second
}
