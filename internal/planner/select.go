package planner

import (
	"sort"
	"strings"

	"github.com/streamweave/dashdl/pkg/mpd"
)

// QualityTier selects which element of a rank-sorted candidate list to
// pick when no explicit width/height preference narrows the choice.
type QualityTier int

const (
	TierLowest QualityTier = iota
	TierIntermediate
	TierHighest
)

// Preferences carries the user-supplied selection criteria for one media
// kind.
type Preferences struct {
	Lang            string
	Roles           []string
	PreferredWidth  *uint64
	PreferredHeight *uint64
	Quality         QualityTier
}

// subtitleCodecs is the extra codec-string match subtitles use on top of
// AdaptationSet.ContentKind's mimeType/contentType predicate, since a
// subtitle stream's codec is frequently only declared on the
// Representation, not the AdaptationSet.
var subtitleCodecs = map[string]bool{
	"wvtt": true,
	"c608": true,
	"stpp": true,
}

// subtitleMimeExtra supplements pkg/mpd's subtitle mimeType set with
// the one extra type the selection algorithm (but not general
// classification) recognizes.
const subtitleMimeExtra = "application/x-sami"

// isKind reports whether as should be considered kind K for selection
// purposes, using mpd.ContentKind as the primary signal and falling back
// to the subtitle-specific codec/mimeType allowances the planner owns.
func isKind(as *mpd.AdaptationSet, kind Kind) bool {
	ck := as.ContentKind()
	switch kind {
	case KindVideo:
		return ck == mpd.KindVideo
	case KindAudio:
		return ck == mpd.KindAudio
	case KindSubtitle:
		if ck == mpd.KindSubtitle {
			return true
		}
		return hasSubtitleCodec(as) || hasSubtitleMimeExtra(as)
	}
	return false
}

func hasSubtitleCodec(as *mpd.AdaptationSet) bool {
	for _, r := range as.Representation {
		if r.Codecs == nil {
			continue
		}
		codec := strings.ToLower(*r.Codecs)
		if subtitleCodecs[codec] || strings.HasPrefix(codec, "stpp.") {
			return true
		}
	}
	return false
}

func hasSubtitleMimeExtra(as *mpd.AdaptationSet) bool {
	if as.MimeType != nil && strings.EqualFold(*as.MimeType, subtitleMimeExtra) {
		return true
	}
	for _, r := range as.Representation {
		if r.MimeType != nil && strings.EqualFold(*r.MimeType, subtitleMimeExtra) {
			return true
		}
	}
	return false
}

// candidateRep pairs a Representation with the AdaptationSet it belongs
// to, since selection needs both (codecs/role live on the AdaptationSet,
// bandwidth/dimensions on the Representation).
type candidateRep struct {
	as  *mpd.AdaptationSet
	rep *mpd.Representation
}

// Select runs the four-stage selection algorithm for one media kind
// within a Period and returns the chosen Representation (and its parent
// AdaptationSet), or nil if no candidate exists.
func Select(period *mpd.Period, kind Kind, prefs Preferences) (*mpd.AdaptationSet, *mpd.Representation) {
	var candidates []*mpd.AdaptationSet
	for _, as := range period.AdaptationSet {
		if isKind(as, kind) {
			candidates = append(candidates, as)
		}
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	candidates = filterByMinDistance(candidates, func(as *mpd.AdaptationSet) int {
		return as.LangDistance(prefs.Lang)
	})
	candidates = filterByMinDistance(candidates, func(as *mpd.AdaptationSet) int {
		return as.RoleDistance(prefs.Roles)
	})

	var reps []candidateRep
	for _, as := range candidates {
		for _, r := range as.Representation {
			reps = append(reps, candidateRep{as: as, rep: r})
		}
	}
	if len(reps) == 0 {
		return nil, nil
	}

	chosen := chooseRepresentation(reps, prefs)
	return chosen.as, chosen.rep
}

// filterByMinDistance retains every AdaptationSet whose distance function
// returns the minimum value observed across the candidate set, preserving
// relative order (stable tie-breaking per the selection contract).
func filterByMinDistance(candidates []*mpd.AdaptationSet, distance func(*mpd.AdaptationSet) int) []*mpd.AdaptationSet {
	if len(candidates) == 0 {
		return candidates
	}
	min := distance(candidates[0])
	for _, as := range candidates[1:] {
		if d := distance(as); d < min {
			min = d
		}
	}
	var out []*mpd.AdaptationSet
	for _, as := range candidates {
		if distance(as) == min {
			out = append(out, as)
		}
	}
	return out
}

// chooseRepresentation picks one Representation from the flattened
// candidate list: by closest preferred dimension if specified, else by
// qualityRanking if every candidate carries one, else by bandwidth.
func chooseRepresentation(reps []candidateRep, prefs Preferences) candidateRep {
	if prefs.PreferredWidth != nil || prefs.PreferredHeight != nil {
		return chooseByDimension(reps, prefs)
	}
	if allHaveQualityRanking(reps) {
		return chooseByTier(reps, prefs.Quality, func(r candidateRep) int {
			return int(*r.rep.QualityRanking)
		})
	}
	return chooseByTier(reps, prefs.Quality, func(r candidateRep) int {
		if r.rep.Bandwidth == nil {
			return 0
		}
		return int(*r.rep.Bandwidth)
	})
}

func chooseByDimension(reps []candidateRep, prefs Preferences) candidateRep {
	best := reps[0]
	bestDiff := dimensionDiff(best, prefs)
	for _, r := range reps[1:] {
		if d := dimensionDiff(r, prefs); d < bestDiff {
			best, bestDiff = r, d
		}
	}
	return best
}

func dimensionDiff(r candidateRep, prefs Preferences) int64 {
	diff := func(have *uint64, want uint64) int64 {
		if have == nil {
			return 1 << 30
		}
		d := int64(*have) - int64(want)
		if d < 0 {
			d = -d
		}
		return d
	}
	var total int64
	if prefs.PreferredWidth != nil {
		total += diff(r.rep.Width, *prefs.PreferredWidth)
	}
	if prefs.PreferredHeight != nil {
		total += diff(r.rep.Height, *prefs.PreferredHeight)
	}
	return total
}

func allHaveQualityRanking(reps []candidateRep) bool {
	for _, r := range reps {
		if r.rep.QualityRanking == nil {
			return false
		}
	}
	return true
}

// chooseByTier sorts reps by rank (ascending = "better" for
// qualityRanking, ascending = "smaller/lower bitrate" for bandwidth) and
// returns the element at the index the requested tier names:
// Lowest -> first, Highest -> last, Intermediate -> count/2.
func chooseByTier(reps []candidateRep, tier QualityTier, rank func(candidateRep) int) candidateRep {
	sorted := append([]candidateRep(nil), reps...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return rank(sorted[i]) < rank(sorted[j])
	})
	switch tier {
	case TierLowest:
		return sorted[0]
	case TierHighest:
		return sorted[len(sorted)-1]
	default:
		return sorted[len(sorted)/2]
	}
}
