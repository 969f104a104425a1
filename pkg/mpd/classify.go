package mpd

import "strings"

// ContentKind categorizes an AdaptationSet's media type for selection and
// output naming purposes.
type ContentKind int

const (
	KindUnknown ContentKind = iota
	KindVideo
	KindAudio
	KindSubtitle
)

func (k ContentKind) String() string {
	switch k {
	case KindVideo:
		return "video"
	case KindAudio:
		return "audio"
	case KindSubtitle:
		return "subtitle"
	default:
		return "unknown"
	}
}

// ContentKind classifies an AdaptationSet by its mimeType (or, when that is
// absent, its first Representation mimeType), falling back to contentType
// when the mimeType is absent or unrecognized, mirroring
// dash-mpd-rs's content_type_audio_p/content_type_video_p predicates which
// check both places since real-world manifests put the attribute
// inconsistently.
func (a *AdaptationSet) ContentKind() ContentKind {
	if mt := a.effectiveMimeType(); mt != "" {
		switch {
		case strings.HasPrefix(mt, "video/"):
			return KindVideo
		case strings.HasPrefix(mt, "audio/"):
			return KindAudio
		case isSubtitleMimeType(mt):
			return KindSubtitle
		}
	}
	if a.ContentType != nil {
		switch strings.ToLower(*a.ContentType) {
		case "video":
			return KindVideo
		case "audio":
			return KindAudio
		case "text", "subtitle", "subtitles":
			return KindSubtitle
		}
	}
	return KindUnknown
}

func (a *AdaptationSet) effectiveMimeType() string {
	if a.MimeType != nil && *a.MimeType != "" {
		return *a.MimeType
	}
	for _, r := range a.Representation {
		if r.MimeType != nil && *r.MimeType != "" {
			return *r.MimeType
		}
	}
	return ""
}

// subtitleMimeTypes lists the MIME types recognized as timed-text/subtitle
// content, covering WebVTT, TTML/IMSC1, and legacy SRT muxings.
// "application/mp4" is deliberately absent: it's ambiguous (also used for
// fragmented audio/video) and resolved via ContentKind's mimeType prefix
// checks instead.
var subtitleMimeTypes = map[string]bool{
	"text/vtt":             true,
	"application/ttml+xml": true,
	"application/x-subrip": true,
	"text/x-ssa":           true,
}

func isSubtitleMimeType(mt string) bool {
	return subtitleMimeTypes[strings.ToLower(mt)]
}

// roles returns the Role descriptors attached directly to the AdaptationSet
// plus those inherited from any ContentComponent children, supplementing
// spec.md's role handling with the adaptation_roles behavior of
// dash-mpd-rs's fetch.rs.
func (a *AdaptationSet) roles() []Descriptor {
	roles := append([]Descriptor(nil), a.Role...)
	for _, cc := range a.ContentComponent {
		roles = append(roles, cc.Role...)
	}
	return roles
}

// HasRole reports whether the AdaptationSet (including inherited
// ContentComponent roles) carries a Role descriptor with the given
// urn:mpeg:dash:role:2011 value (e.g. "main", "dub", "commentary").
func (a *AdaptationSet) HasRole(value string) bool {
	for _, r := range a.roles() {
		if r.Value != nil && strings.EqualFold(*r.Value, value) {
			return true
		}
	}
	return false
}

// LangDistance scores how well this AdaptationSet's language matches a
// preferred language tag: 0 for an exact (case-insensitive) match, 5 for a
// primary-subtag match ("en" matches "en-US"), 100 otherwise — the three
// tiers dash-mpd-rs's adaptation_lang_distance uses to rank candidates
// before falling back to role and bandwidth.
func (a *AdaptationSet) LangDistance(preferred string) int {
	if preferred == "" {
		return 0
	}
	if a.Lang == nil || *a.Lang == "" {
		return 100
	}
	lang := *a.Lang
	if strings.EqualFold(lang, preferred) {
		return 0
	}
	primary := func(tag string) string {
		if i := strings.IndexAny(tag, "-_"); i >= 0 {
			return tag[:i]
		}
		return tag
	}
	if strings.EqualFold(primary(lang), primary(preferred)) {
		return 5
	}
	return 100
}

// RoleNotFoundDistance is the sentinel role-distance value for an
// AdaptationSet that matches none of the caller's preferred roles.
const RoleNotFoundDistance = 255

// RoleDistance scores role preference: the index of the first matching role
// in prefs (lowest = best), or RoleNotFoundDistance if no role matches,
// mirroring adaptation_role_distance's list-index ranking.
func (a *AdaptationSet) RoleDistance(prefs []string) int {
	roles := a.roles()
	for i, want := range prefs {
		for _, r := range roles {
			if r.Value != nil && strings.EqualFold(*r.Value, want) {
				return i
			}
		}
	}
	return RoleNotFoundDistance
}
