package planner

import "github.com/streamweave/dashdl/pkg/mpd"

// scte35SchemeURIs lists the EventStream @schemeIdUri values used to
// signal SCTE-35 splice information for ad-insertion markers.
var scte35SchemeURIs = map[string]bool{
	"urn:scte:scte35:2013:xml":     true,
	"urn:scte:scte35:2014:xml+bin": true,
}

// IsAdvertisingPeriod reports whether period carries an EventStream
// signaling SCTE-35 splice markers, the heuristic used to identify
// dynamically-inserted ad breaks. This is opt-in: callers must request
// SkipAdvertisingPeriods explicitly, since not every manifest using
// SCTE-35 signaling is actually inserting ads the user wants removed.
func IsAdvertisingPeriod(period *mpd.Period) bool {
	for _, es := range period.EventStream {
		if scte35SchemeURIs[es.SchemeIDURI] {
			return true
		}
	}
	return false
}

// FilterAdvertisingPeriods returns periods with SCTE-35-signaled ad
// breaks removed, preserving order, when skip is true. When skip is
// false it returns periods unchanged.
func FilterAdvertisingPeriods(periods []*mpd.Period, skip bool) []*mpd.Period {
	if !skip {
		return periods
	}
	var out []*mpd.Period
	for _, p := range periods {
		if !IsAdvertisingPeriod(p) {
			out = append(out, p)
		}
	}
	return out
}
