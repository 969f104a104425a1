package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
)

// FetchRange implements planner.RangeFetcher: a single byte-range GET used
// by SegmentBase+indexRange addressing to retrieve the sidx box before the
// rest of a Representation's segments can be expanded.
func (f *Fetcher) FetchRange(ctx context.Context, url string, start, end int64) ([]byte, string, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", false, err
	}
	req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", start, end))
	if f.referer != "" {
		req.Header.Set("Referer", f.referer)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, "", false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, "", false, fmt.Errorf("unexpected status %d fetching range %d-%d of %s", resp.StatusCode, start, end, url)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", false, fmt.Errorf("reading range response body: %w", err)
	}
	f.tracker.Add(uint64(len(data)))

	return data, resp.Header.Get("Content-Type"), resp.StatusCode == http.StatusPartialContent, nil
}
