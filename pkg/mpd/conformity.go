package mpd

import "fmt"

// ConformityIssue is a single best-effort lint finding produced by
// CheckConformity. Issues never fail parsing; they are surfaced to the
// caller's logger so a malformed-but-parseable manifest can still be
// diagnosed.
type ConformityIssue struct {
	PeriodID         string
	AdaptationSetID  string
	RepresentationID string
	Message          string
}

func (i ConformityIssue) String() string {
	return fmt.Sprintf("period=%s adaptationSet=%s representation=%s: %s",
		i.PeriodID, i.AdaptationSetID, i.RepresentationID, i.Message)
}

// CheckConformity runs a best-effort linter over a parsed manifest,
// equivalent to dash-mpd-rs's check_conformity: it flags Representations
// with no reachable addressing mode, SegmentTemplates with a zero
// timescale, and AdaptationSets whose child Representations disagree on
// mimeType. None of these findings block further processing.
func (m *MPD) CheckConformity() []ConformityIssue {
	var issues []ConformityIssue
	for _, p := range m.Period {
		periodID := ""
		if p.ID != nil {
			periodID = *p.ID
		}
		for _, as := range p.AdaptationSet {
			issues = append(issues, checkAdaptationSetConformity(periodID, as, p)...)
		}
	}
	return issues
}

func checkAdaptationSetConformity(periodID string, as *AdaptationSet, p *Period) []ConformityIssue {
	var issues []ConformityIssue
	asID := ""
	if as.ID != nil {
		asID = *as.ID
	}

	if st := effectiveSegmentTemplate(as, p); st != nil && st.Timescale != nil && *st.Timescale == 0 {
		issues = append(issues, ConformityIssue{
			PeriodID: periodID, AdaptationSetID: asID,
			Message: "SegmentTemplate has timescale=0",
		})
	}

	mimeTypes := map[string]bool{}
	for _, r := range as.Representation {
		mt := r.MimeType
		if mt == nil {
			mt = as.MimeType
		}
		if mt != nil {
			mimeTypes[*mt] = true
		}
		if !representationHasAddressing(r, as, p) {
			issues = append(issues, ConformityIssue{
				PeriodID: periodID, AdaptationSetID: asID, RepresentationID: r.ID,
				Message: "no addressing mode reachable (no SegmentBase/SegmentList/SegmentTemplate/BaseURL)",
			})
		}
	}
	if len(mimeTypes) > 1 {
		issues = append(issues, ConformityIssue{
			PeriodID: periodID, AdaptationSetID: asID,
			Message: "inconsistent mimeType across Representations in one AdaptationSet",
		})
	}
	return issues
}

func effectiveSegmentTemplate(as *AdaptationSet, p *Period) *SegmentTemplate {
	if as.SegmentTemplate != nil {
		return as.SegmentTemplate
	}
	return p.SegmentTemplate
}

func representationHasAddressing(r *Representation, as *AdaptationSet, p *Period) bool {
	if r.SegmentBase != nil || r.SegmentList != nil || r.SegmentTemplate != nil {
		return true
	}
	if as.SegmentBase != nil || as.SegmentList != nil || as.SegmentTemplate != nil {
		return true
	}
	if p.SegmentBase != nil || p.SegmentList != nil || p.SegmentTemplate != nil {
		return true
	}
	// Plain BaseURL addressing mode: Representation/AdaptationSet/Period
	// level BaseURLs are accepted as sufficient evidence. MPD-root BaseURLs
	// are not consulted, so a Representation whose only BaseURL is at the
	// MPD root is flagged.
	return len(r.BaseURL) > 0 || len(as.BaseURL) > 0 || len(p.BaseURL) > 0
}
