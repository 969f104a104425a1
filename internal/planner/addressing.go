package planner

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/streamweave/dashdl/internal/urlutil"
	"github.com/streamweave/dashdl/pkg/mpd"
)

// RangeFetcher performs the byte-range HTTP request addressing mode 5
// needs to retrieve a SegmentBase@indexRange body before its sidx box can
// be parsed. Implemented by internal/fetcher and passed in so this
// package stays free of HTTP concerns.
type RangeFetcher interface {
	FetchRange(ctx context.Context, url string, start, end int64) (data []byte, contentType string, rangeHonored bool, err error)
}

// AddressingOptions carries the inputs addressing-mode expansion needs
// beyond the manifest tree itself.
type AddressingOptions struct {
	PeriodIndex       int
	PeriodDurationSec float64 // 0 if unknown
	AllowIndexRange   bool
	RangeFetcher      RangeFetcher
	BaseURLTimeout    time.Duration
}

// Expand converts a chosen Representation (plus its parent AdaptationSet
// and Period) into an ordered FetchDescriptor list, probing the six
// addressing modes in precedence order. Exactly one is expected to apply;
// ErrNoAddressingMode is returned otherwise.
func Expand(ctx context.Context, period *mpd.Period, as *mpd.AdaptationSet, rep *mpd.Representation, manifestBaseURL string, opts AddressingOptions) ([]FetchDescriptor, error) {
	base, err := composeBaseURL(manifestBaseURL, period, as, rep)
	if err != nil {
		return nil, fmt.Errorf("composing base URL: %w", err)
	}

	// Modes 1 & 2: SegmentList, AdaptationSet level winning over
	// Representation level.
	if as.SegmentList != nil {
		return expandSegmentList(opts.PeriodIndex, as.SegmentList, base)
	}
	if rep.SegmentList != nil {
		return expandSegmentList(opts.PeriodIndex, rep.SegmentList, base)
	}

	// Modes 3 & 4: SegmentTemplate, Representation level winning over
	// AdaptationSet level.
	tmpl := rep.SegmentTemplate
	if tmpl == nil {
		tmpl = as.SegmentTemplate
	}
	if tmpl != nil {
		if tmpl.SegmentTimeline != nil {
			return expandSegmentTimeline(opts.PeriodIndex, tmpl, rep, base, opts.PeriodDurationSec)
		}
		return expandSegmentTemplateSimple(opts.PeriodIndex, tmpl, rep, base, opts.PeriodDurationSec)
	}

	// Mode 5: SegmentBase + indexRange, falling back to mode 6 on any
	// failure as required by the spec.
	segBase := rep.SegmentBase
	if segBase == nil {
		segBase = as.SegmentBase
	}
	if segBase != nil && segBase.IndexRange != nil && opts.AllowIndexRange && opts.RangeFetcher != nil {
		descs, err := expandSegmentBaseIndexRange(ctx, opts.PeriodIndex, segBase, base, opts.RangeFetcher)
		if err == nil {
			return descs, nil
		}
		// fall through to mode 6
	}

	// Mode 6: plain BaseURL, whole representation as one resource.
	if base != "" {
		timeout := opts.BaseURLTimeout
		if timeout <= 0 {
			timeout = 10_000 * time.Second
		}
		return []FetchDescriptor{{
			PeriodIndex:     opts.PeriodIndex,
			URL:             base,
			TimeoutOverride: timeout,
		}}, nil
	}

	return nil, fmt.Errorf("%w: Representation %q", ErrNoAddressingMode, rep.ID)
}

// ErrNoAddressingMode is returned when none of the six addressing modes
// apply to a Representation; an UnhandledMediaStream condition.
var ErrNoAddressingMode = fmt.Errorf("no addressing mode found")

// composeBaseURL resolves the left-to-right BaseURL chain: manifest base,
// then the first BaseURL declared at each of Period, AdaptationSet, and
// Representation level that is present.
func composeBaseURL(manifestBaseURL string, period *mpd.Period, as *mpd.AdaptationSet, rep *mpd.Representation) (string, error) {
	base := manifestBaseURL
	for _, list := range [][]mpd.BaseURL{period.BaseURL, as.BaseURL, rep.BaseURL} {
		if len(list) == 0 {
			continue
		}
		var err error
		base, err = urlutil.Merge(base, list[0].Value)
		if err != nil {
			return "", err
		}
	}
	return base, nil
}

// resolveURL merges a segment-relative reference against base, carrying
// the base's query string forward when the reference doesn't specify its
// own (the URL composition rule of spec.md's addressing section).
func resolveURL(base, ref string) (string, error) {
	return urlutil.Merge(base, ref)
}

func expandSegmentList(periodIndex int, list *mpd.SegmentList, base string) ([]FetchDescriptor, error) {
	var out []FetchDescriptor
	if list.Initialization != nil && list.Initialization.SourceURL != nil {
		u, err := resolveURL(base, *list.Initialization.SourceURL)
		if err != nil {
			return nil, err
		}
		d := FetchDescriptor{PeriodIndex: periodIndex, URL: u, IsInitialization: true}
		applyByteRange(&d, list.Initialization.Range)
		out = append(out, d)
	}
	for _, su := range list.SegmentURL {
		if su.Media == nil {
			continue
		}
		u, err := resolveURL(base, *su.Media)
		if err != nil {
			return nil, err
		}
		d := FetchDescriptor{PeriodIndex: periodIndex, URL: u}
		applyByteRange(&d, su.MediaRange)
		out = append(out, d)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: empty SegmentList", ErrNoAddressingMode)
	}
	return out, nil
}

func expandSegmentTimeline(periodIndex int, tmpl *mpd.SegmentTemplate, rep *mpd.Representation, base string, periodDurationSec float64) ([]FetchDescriptor, error) {
	var out []FetchDescriptor

	if tmpl.Initialization != nil {
		u, err := resolveURL(base, substitute(*tmpl.Initialization, rep.ID, bandwidthOf(rep), nil, nil))
		if err != nil {
			return nil, err
		}
		out = append(out, FetchDescriptor{PeriodIndex: periodIndex, URL: u, IsInitialization: true})
	}

	if tmpl.Media == nil {
		return nil, fmt.Errorf("%w: SegmentTemplate has no media attribute", ErrNoAddressingMode)
	}

	timescale := uint64(1)
	if tmpl.Timescale != nil {
		timescale = *tmpl.Timescale
	}
	if timescale == 0 {
		return nil, fmt.Errorf("%w: SegmentTemplate timescale is zero", ErrNoAddressingMode)
	}

	number := uint64(1)
	if tmpl.StartNumber != nil {
		number = *tmpl.StartNumber
	}

	var current uint64
	first := true
	for _, s := range tmpl.SegmentTimeline.S {
		if s.T != nil {
			current = *s.T
		} else if first {
			current = 0
		}
		first = false

		count := 1
		if s.R != nil {
			if *s.R < 0 {
				count = repeatCountUntilEnd(current, s.D, timescale, periodDurationSec)
			} else {
				count = int(*s.R) + 1
			}
		}

		for i := 0; i < count; i++ {
			t := current + uint64(i)*s.D
			u, err := resolveURL(base, substitute(*tmpl.Media, rep.ID, bandwidthOf(rep), &t, &number))
			if err != nil {
				return nil, err
			}
			out = append(out, FetchDescriptor{PeriodIndex: periodIndex, URL: u})
			number++
		}
		current += uint64(count) * s.D
	}

	return out, nil
}

// repeatCountUntilEnd computes how many segments a negative @r run needs
// to reach the end of the Period, given the Period duration in seconds.
// When the duration is unknown, it conservatively emits exactly one
// segment rather than guessing.
func repeatCountUntilEnd(startTime, segDuration, timescale uint64, periodDurationSec float64) int {
	if periodDurationSec <= 0 || segDuration == 0 {
		return 1
	}
	periodEndTime := uint64(math.Ceil(periodDurationSec * float64(timescale)))
	if periodEndTime <= startTime {
		return 1
	}
	remaining := periodEndTime - startTime
	count := int(math.Ceil(float64(remaining) / float64(segDuration)))
	if count < 1 {
		count = 1
	}
	return count
}

func expandSegmentTemplateSimple(periodIndex int, tmpl *mpd.SegmentTemplate, rep *mpd.Representation, base string, periodDurationSec float64) ([]FetchDescriptor, error) {
	var out []FetchDescriptor

	if tmpl.Initialization != nil {
		u, err := resolveURL(base, substitute(*tmpl.Initialization, rep.ID, bandwidthOf(rep), nil, nil))
		if err != nil {
			return nil, err
		}
		out = append(out, FetchDescriptor{PeriodIndex: periodIndex, URL: u, IsInitialization: true})
	}

	if tmpl.Media == nil || tmpl.Duration == nil || tmpl.Timescale == nil || *tmpl.Timescale == 0 {
		return nil, fmt.Errorf("%w: SegmentTemplate missing media/duration/timescale", ErrNoAddressingMode)
	}
	if periodDurationSec <= 0 {
		return nil, fmt.Errorf("%w: Period duration unknown for simple SegmentTemplate addressing", ErrNoAddressingMode)
	}

	segDurationSec := float64(*tmpl.Duration) / float64(*tmpl.Timescale)
	count := int(math.Ceil(periodDurationSec / segDurationSec))

	startNumber := uint64(1)
	if tmpl.StartNumber != nil {
		startNumber = *tmpl.StartNumber
	}

	for i := 0; i < count; i++ {
		number := startNumber + uint64(i)
		u, err := resolveURL(base, substitute(*tmpl.Media, rep.ID, bandwidthOf(rep), nil, &number))
		if err != nil {
			return nil, err
		}
		out = append(out, FetchDescriptor{PeriodIndex: periodIndex, URL: u})
	}
	return out, nil
}

func expandSegmentBaseIndexRange(ctx context.Context, periodIndex int, segBase *mpd.SegmentBase, base string, fetcher RangeFetcher) ([]FetchDescriptor, error) {
	start, end, err := parseRange(*segBase.IndexRange)
	if err != nil {
		return nil, fmt.Errorf("parsing indexRange: %w", err)
	}

	data, contentType, honored, err := fetcher.FetchRange(ctx, base, start, end)
	if err != nil {
		return nil, err
	}
	if !honored {
		return nil, fmt.Errorf("server did not honor Range request")
	}
	if !strings.HasPrefix(contentType, "video/mp4") && !strings.HasPrefix(contentType, "audio/mp4") {
		return nil, fmt.Errorf("unexpected content type %q for sidx body", contentType)
	}

	boxes, err := parseSidx(data)
	if err != nil {
		return nil, fmt.Errorf("parsing sidx: %w", err)
	}

	var out []FetchDescriptor
	if segBase.Initialization != nil {
		initStart, initEnd, ok := parseRangeOptional(segBase.Initialization.Range)
		d := FetchDescriptor{PeriodIndex: periodIndex, URL: base, IsInitialization: true}
		if ok {
			d.RangeStart, d.RangeEnd = &initStart, &initEnd
		}
		out = append(out, d)
	} else {
		// No separate Initialization element: the leading bytes up through
		// the sidx box itself (ftyp+moov+sidx) serve as the initialization
		// segment.
		leadStart, leadEnd := int64(0), end
		out = append(out, FetchDescriptor{PeriodIndex: periodIndex, URL: base, RangeStart: &leadStart, RangeEnd: &leadEnd, IsInitialization: true})
	}

	offset := end + 1
	for _, ref := range boxes.References {
		s, e := offset, offset+int64(ref.ReferencedSize)-1
		out = append(out, FetchDescriptor{PeriodIndex: periodIndex, URL: base, RangeStart: &s, RangeEnd: &e})
		offset = e + 1
	}
	return out, nil
}

func applyByteRange(d *FetchDescriptor, rangeSpec *string) {
	if rangeSpec == nil {
		return
	}
	start, end, err := parseRange(*rangeSpec)
	if err != nil {
		return
	}
	d.RangeStart, d.RangeEnd = &start, &end
}

// parseRange parses an "a-b" byte-range specifier. Both endpoints must be
// non-negative integers, per the testable-property contract; anything
// else is a Parsing error.
func parseRange(s string) (int64, int64, error) {
	parts := strings.SplitN(s, "-", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid range specifier %q", s)
	}
	a, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil || a < 0 {
		return 0, 0, fmt.Errorf("invalid range specifier %q", s)
	}
	b, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil || b < 0 {
		return 0, 0, fmt.Errorf("invalid range specifier %q", s)
	}
	return a, b, nil
}

func parseRangeOptional(rangeSpec *string) (int64, int64, bool) {
	if rangeSpec == nil {
		return 0, 0, false
	}
	a, b, err := parseRange(*rangeSpec)
	if err != nil {
		return 0, 0, false
	}
	return a, b, true
}

func bandwidthOf(rep *mpd.Representation) uint64 {
	if rep.Bandwidth == nil {
		return 0
	}
	return *rep.Bandwidth
}

// templateToken matches a DASH template placeholder: $Name$ or
// $Name%0<width>d$, plus the literal-dollar escape $$.
var templateToken = regexp.MustCompile(`\$\$|\$(RepresentationID|Bandwidth|Time|Number)(?:%0(\d+)d)?\$`)

// substitute resolves $RepresentationID$, $Bandwidth$, $Time$, $Number$
// (with optional zero-padded width variants) in a SegmentTemplate
// attribute value. time and number may be nil when the corresponding
// token is not expected to appear (e.g. resolving @initialization).
func substitute(tmpl, repID string, bandwidth uint64, timeVal, number *uint64) string {
	return templateToken.ReplaceAllStringFunc(tmpl, func(match string) string {
		if match == "$$" {
			return "$"
		}
		groups := templateToken.FindStringSubmatch(match)
		name, width := groups[1], groups[2]

		var value string
		switch name {
		case "RepresentationID":
			value = repID
		case "Bandwidth":
			value = strconv.FormatUint(bandwidth, 10)
		case "Time":
			if timeVal != nil {
				value = strconv.FormatUint(*timeVal, 10)
			}
		case "Number":
			if number != nil {
				value = strconv.FormatUint(*number, 10)
			}
		}

		if width != "" {
			n, err := strconv.Atoi(width)
			if err == nil {
				value = padLeft(value, n)
			}
		}
		return value
	})
}

func padLeft(s string, width int) string {
	for len(s) < width {
		s = "0" + s
	}
	return s
}
