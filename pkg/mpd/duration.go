package mpd

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ParseDuration parses a W3C xsd:duration string ("PnYnMnDTnHnMnS") as used
// throughout MPD attributes (mediaPresentationDuration, minBufferTime,
// SegmentTimeline entries expressed in wall-clock terms, etc).
//
// This is hand-rolled rather than reusing the module's own pkg/duration
// grammar: pkg/duration implements a day/week-extended shorthand for
// operator-facing settings (see internal/config), a different grammar from
// the ISO 8601 duration the DASH schema mandates. Years/months are
// approximated at 365/30 days respectively, matching common MPD usage where
// they appear only in suggestedPresentationDelay-scale values, never in
// calendar-accurate contexts.
func ParseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, fmt.Errorf("empty duration")
	}
	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
		s = s[1:]
	}
	if !strings.HasPrefix(s, "P") {
		return 0, fmt.Errorf("duration %q: missing P prefix", s)
	}
	s = s[1:]

	datePart := s
	timePart := ""
	if idx := strings.IndexByte(s, 'T'); idx >= 0 {
		datePart = s[:idx]
		timePart = s[idx+1:]
	}

	var total time.Duration

	years, datePart, err := takeComponent(datePart, 'Y')
	if err != nil {
		return 0, err
	}
	total += time.Duration(years * 365 * 24 * float64(time.Hour))

	months, datePart, err := takeComponent(datePart, 'M')
	if err != nil {
		return 0, err
	}
	total += time.Duration(months * 30 * 24 * float64(time.Hour))

	days, datePart, err := takeComponent(datePart, 'D')
	if err != nil {
		return 0, err
	}
	total += time.Duration(days * 24 * float64(time.Hour))

	if datePart != "" {
		return 0, fmt.Errorf("duration %q: unconsumed date component %q", s, datePart)
	}

	hours, timePart, err := takeComponent(timePart, 'H')
	if err != nil {
		return 0, err
	}
	total += time.Duration(hours * float64(time.Hour))

	minutes, timePart, err := takeComponent(timePart, 'M')
	if err != nil {
		return 0, err
	}
	total += time.Duration(minutes * float64(time.Minute))

	seconds, timePart, err := takeComponent(timePart, 'S')
	if err != nil {
		return 0, err
	}
	total += time.Duration(seconds * float64(time.Second))

	if timePart != "" {
		return 0, fmt.Errorf("duration %q: unconsumed time component %q", s, timePart)
	}

	if neg {
		total = -total
	}
	return total, nil
}

// takeComponent scans a leading numeric[.numeric] run terminated by unit
// from s, returning the parsed value and the remainder of s. If unit is not
// present before any non-numeric character, it returns 0 and the
// unmodified string (the component is absent, not an error).
func takeComponent(s string, unit byte) (float64, string, error) {
	if s == "" {
		return 0, s, nil
	}
	i := 0
	for i < len(s) && (s[i] == '.' || (s[i] >= '0' && s[i] <= '9')) {
		i++
	}
	if i == 0 || i >= len(s) || s[i] != unit {
		return 0, s, nil
	}
	v, err := strconv.ParseFloat(s[:i], 64)
	if err != nil {
		return 0, s, fmt.Errorf("duration component %q: %w", s[:i+1], err)
	}
	return v, s[i+1:], nil
}

// FormatDuration renders d in xsd:duration form (always as PT<seconds>S),
// for writing a computed duration back as manifest-compatible text.
func FormatDuration(d time.Duration) string {
	if d < 0 {
		return "-" + FormatDuration(-d)
	}
	secs := d.Seconds()
	return fmt.Sprintf("PT%sS", strconv.FormatFloat(secs, 'f', -1, 64))
}
