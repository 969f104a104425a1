// Package fetcher retrieves the segments a planner.PeriodPlan describes:
// per-descriptor HTTP (or data:) retrieval with retry, bandwidth
// throttling, content-type validation, and optional fragment archival,
// aggregated into one per-stream output file in manifest order.
package fetcher

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/streamweave/dashdl/internal/planner"
	"github.com/streamweave/dashdl/pkg/httpclient"
)

// ProgressObserver receives fetch progress notifications in registration
// order, the capability a trait-object list of observers becomes once
// translated to Go.
type ProgressObserver interface {
	OnProgress(percent float64, message string)
}

// transientStatuses is the set of HTTP statuses the segment fetcher treats
// as transient and therefore retries with backoff instead of consuming the
// fragment retry budget, per the Network error taxonomy. Only
// StatusRequestTimeout is handled here: StatusTooManyRequests,
// StatusServiceUnavailable, and StatusGatewayTimeout (plus StatusBadGateway)
// are already retried inside pkg/httpclient's own backoff loop, so a
// response carrying one of those never reaches this layer as a plain
// status code — it surfaces as an error satisfying httpclient.ErrMaxRetries
// instead, handled alongside request timeouts below.
var transientStatuses = map[int]bool{
	http.StatusRequestTimeout: true,
}

// Config holds the retry/throttle/validation knobs the fetcher contract
// exposes.
type Config struct {
	FragmentRetryCount int
	MaxErrorCount      int
	VerifyContentType  bool
	ArchiveFragments   bool
	FragmentDir        string
	RetryDelay         time.Duration
	RetryMaxDelay      time.Duration
	BackoffMultiplier  float64
}

// Fetcher retrieves FetchDescriptor lists into per-stream output files.
type Fetcher struct {
	httpClient *httpclient.Client
	limiter    *BandwidthLimiter
	tracker    *Tracker
	cfg        Config
	logger     *slog.Logger
	observers  []ProgressObserver
	referer    string
}

// New creates a Fetcher. client's own retry count may be 0 (or a value the
// caller is comfortable double-applying): the fetcher itself retries status
// 408 with backoff, and treats request timeouts and httpclient.ErrMaxRetries
// errors (returned once httpclient's own retries of 429, 502, 503 and 504
// are used up) as transient too.
func New(client *httpclient.Client, limiter *BandwidthLimiter, cfg Config, logger *slog.Logger, referer string) *Fetcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fetcher{
		httpClient: client,
		limiter:    limiter,
		tracker:    NewTracker(),
		cfg:        cfg,
		logger:     logger,
		referer:    referer,
	}
}

// AddObserver registers a progress observer. Notifications are delivered
// in registration order.
func (f *Fetcher) AddObserver(o ProgressObserver) {
	f.observers = append(f.observers, o)
}

func (f *Fetcher) notify(percent float64, message string) {
	for _, o := range f.observers {
		o.OnProgress(percent, message)
	}
}

// Tracker exposes the fetcher's bandwidth tracker for callers that want
// to surface throughput independently of the notify callback.
func (f *Fetcher) Tracker() *Tracker { return f.tracker }

// ErrMaxErrorsExceeded is a fatal Network error: the non-transient
// per-segment error count exceeded Config.MaxErrorCount.
var ErrMaxErrorsExceeded = errors.New("exceeded max segment error count")

// FetchStream retrieves every descriptor in order and appends its bytes
// to outputPath, which is created if absent. kind selects the Accept
// header family ("video", "audio", "subtitle"). state.ErrorCount is
// shared across the whole download and escalates to ErrMaxErrorsExceeded
// once it exceeds Config.MaxErrorCount.
func (f *Fetcher) FetchStream(ctx context.Context, descriptors []planner.FetchDescriptor, outputPath, kind string, state *planner.DownloadState) error {
	out, err := os.OpenFile(outputPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("creating stream output file %q: %w", outputPath, err)
	}
	defer out.Close()

	for i, d := range descriptors {
		if err := f.fetchOneWithRetry(ctx, d, out, kind, state); err != nil {
			return fmt.Errorf("fetching descriptor %d/%d: %w", i+1, len(descriptors), err)
		}
		state.DescriptorsComplete++
		f.notify(state.Percent(), fmt.Sprintf("%s: %s", kind, f.tracker.HumanRate()))
	}
	return nil
}

// fetchOneWithRetry retries a descriptor up to FragmentRetryCount times
// on non-transient failure; transient failures are retried silently
// inside fetchOne's own backoff loop and do not consume this budget
// (an explicit behavioral decision: the two retry layers use independent
// counters).
func (f *Fetcher) fetchOneWithRetry(ctx context.Context, d planner.FetchDescriptor, out io.Writer, kind string, state *planner.DownloadState) error {
	var lastErr error
	attempts := f.cfg.FragmentRetryCount
	if attempts < 1 {
		attempts = 1
	}
	for attempt := 0; attempt < attempts; attempt++ {
		err := f.fetchOne(ctx, d, out, kind)
		if err == nil {
			return nil
		}
		lastErr = err
		state.ErrorCount++
		f.logger.Debug("segment fetch failed, will retry", slog.String("url", d.URL), slog.Int("attempt", attempt), slog.String("error", err.Error()))
		if state.ErrorCount > f.cfg.MaxErrorCount {
			return fmt.Errorf("%w: %v", ErrMaxErrorsExceeded, lastErr)
		}
	}
	return lastErr
}

// fetchOne retrieves a single descriptor's bytes and writes them to out.
func (f *Fetcher) fetchOne(ctx context.Context, d planner.FetchDescriptor, out io.Writer, kind string) error {
	if strings.HasPrefix(d.URL, "data:") {
		return f.fetchDataURL(d, out, kind)
	}

	timeout := d.TimeoutOverride
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	delay := f.cfg.RetryDelay
	if delay <= 0 {
		delay = time.Second
	}
	maxDelay := f.cfg.RetryMaxDelay
	if maxDelay <= 0 {
		maxDelay = 30 * time.Second
	}
	mult := f.cfg.BackoffMultiplier
	if mult <= 0 {
		mult = 2.0
	}

	for {
		resp, err := f.doRequest(reqCtx, d, kind)
		if err != nil {
			transient := errors.Is(err, context.DeadlineExceeded) ||
				errors.Is(err, context.Canceled) ||
				errors.Is(err, httpclient.ErrMaxRetries)
			if transient {
				if werr := f.transientWait(reqCtx, &delay, maxDelay, mult, err); werr != nil {
					return werr
				}
				continue
			}
			return err
		}

		if transientStatuses[resp.StatusCode] {
			resp.Body.Close()
			if err := f.transientWait(reqCtx, &delay, maxDelay, mult, fmt.Errorf("transient status %d", resp.StatusCode)); err != nil {
				return err
			}
			continue
		}

		if resp.StatusCode >= 400 {
			resp.Body.Close()
			return fmt.Errorf("unexpected status %d fetching %s", resp.StatusCode, d.URL)
		}

		if f.cfg.VerifyContentType {
			if err := validateContentType(resp.Header.Get("Content-Type"), kind); err != nil {
				resp.Body.Close()
				return err
			}
		}

		err = f.streamBody(reqCtx, resp.Body, out, d)
		resp.Body.Close()
		return err
	}
}

func (f *Fetcher) transientWait(ctx context.Context, delay *time.Duration, maxDelay time.Duration, mult float64, cause error) error {
	f.logger.Debug("transient fetch error, backing off", slog.Duration("delay", *delay), slog.String("cause", cause.Error()))
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(*delay):
	}
	*delay = time.Duration(float64(*delay) * mult)
	if *delay > maxDelay {
		*delay = maxDelay
	}
	return nil
}

func (f *Fetcher) doRequest(ctx context.Context, d planner.FetchDescriptor, kind string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.URL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", fmt.Sprintf("%s/*;q=0.9,*/*;q=0.5", kind))
	req.Header.Set("Sec-Fetch-Mode", "navigate")
	if f.referer != "" {
		req.Header.Set("Referer", f.referer)
	}
	if d.HasRange() {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", *d.RangeStart, *d.RangeEnd))
	}
	return f.httpClient.Do(req)
}

// streamBody copies resp.Body to out chunk-by-chunk, consuming bandwidth
// limiter budget per chunk and mirroring to the fragment archive
// directory when configured.
func (f *Fetcher) streamBody(ctx context.Context, body io.Reader, out io.Writer, d planner.FetchDescriptor) error {
	var archive *os.File
	if f.cfg.ArchiveFragments && f.cfg.FragmentDir != "" {
		name := fragmentArchiveName(d)
		af, err := os.OpenFile(filepath.Join(f.cfg.FragmentDir, name), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
		if err == nil {
			archive = af
			defer archive.Close()
		}
	}

	buf := make([]byte, streamChunkBytes)
	for {
		n, err := body.Read(buf)
		if n > 0 {
			chunk := buf[:n]
			if f.limiter != nil {
				if werr := f.limiter.Consume(ctx, n); werr != nil {
					return werr
				}
			}
			if _, werr := out.Write(chunk); werr != nil {
				return fmt.Errorf("writing stream output: %w", werr)
			}
			if archive != nil {
				_, _ = archive.Write(chunk)
			}
			f.tracker.Add(uint64(n))
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading response body: %w", err)
		}
	}
}

func fragmentArchiveName(d planner.FetchDescriptor) string {
	u, err := url.Parse(d.URL)
	base := "fragment"
	if err == nil {
		base = filepath.Base(u.Path)
	}
	if d.HasRange() {
		return fmt.Sprintf("%s.%d-%d", base, *d.RangeStart, *d.RangeEnd)
	}
	return base
}

// fetchDataURL decodes an inline data: URL, validates its declared MIME
// top-level family, and writes its payload to out.
func (f *Fetcher) fetchDataURL(d planner.FetchDescriptor, out io.Writer, kind string) error {
	u, err := url.Parse(d.URL)
	if err != nil {
		return fmt.Errorf("parsing data URL: %w", err)
	}
	opaque := u.Opaque
	if opaque == "" {
		opaque = strings.TrimPrefix(d.URL, "data:")
	}

	commaIdx := strings.Index(opaque, ",")
	if commaIdx < 0 {
		return fmt.Errorf("malformed data URL")
	}
	header, payload := opaque[:commaIdx], opaque[commaIdx+1:]

	mimeType := "text/plain"
	if i := strings.Index(header, ";"); i >= 0 {
		mimeType = header[:i]
	} else if header != "" && header != "base64" {
		mimeType = header
	}
	if f.cfg.VerifyContentType {
		if err := validateContentType(mimeType, kind); err != nil {
			return err
		}
	}

	var data []byte
	if strings.Contains(header, "base64") {
		data, err = base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return fmt.Errorf("decoding base64 data URL: %w", err)
		}
	} else {
		decoded, err := url.QueryUnescape(payload)
		if err != nil {
			return fmt.Errorf("decoding data URL payload: %w", err)
		}
		data = []byte(decoded)
	}

	if _, err := out.Write(data); err != nil {
		return fmt.Errorf("writing data URL payload: %w", err)
	}
	f.tracker.Add(uint64(len(data)))
	return nil
}

// validateContentType rejects responses whose declared Content-Type
// doesn't start with the expected family or application/octet-stream.
func validateContentType(contentType, kind string) error {
	if contentType == "" {
		return nil
	}
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mt = contentType
	}
	if strings.HasPrefix(mt, kind+"/") || mt == "application/octet-stream" {
		return nil
	}
	return fmt.Errorf("unexpected content type %q for %s stream", contentType, kind)
}
