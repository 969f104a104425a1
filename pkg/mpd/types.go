// Package mpd implements the typed object tree for an MPEG-DASH Media
// Presentation Description (MPD) manifest, along with XML (de)serialization.
//
// Field presence in real-world manifests diverges from the DASH XSD, so
// every optional attribute is a pointer and every repeatable element is a
// slice that may be nil. Callers should not assume any field is non-nil
// except where the invariants documented alongside each type say otherwise.
package mpd

import "encoding/xml"

// MPD is the root element of a manifest.
type MPD struct {
	XMLName                    xml.Name             `xml:"MPD"`
	Xmlns                      string               `xml:"xmlns,attr,omitempty"`
	ID                         string               `xml:"id,attr,omitempty"`
	Type                       *string              `xml:"type,attr"`
	Profiles                   string               `xml:"profiles,attr,omitempty"`
	MediaPresentationDuration  *string              `xml:"mediaPresentationDuration,attr"`
	MinimumUpdatePeriod        *string              `xml:"minimumUpdatePeriod,attr"`
	AvailabilityStartTime      *string              `xml:"availabilityStartTime,attr"`
	PublishTime                *string              `xml:"publishTime,attr"`
	MinBufferTime              *string              `xml:"minBufferTime,attr"`
	SuggestedPresentationDelay *string              `xml:"suggestedPresentationDelay,attr"`
	TimeShiftBufferDepth       *string              `xml:"timeShiftBufferDepth,attr"`
	BaseURL                    []BaseURL            `xml:"BaseURL,omitempty"`
	Location                   []string             `xml:"Location,omitempty"`
	ProgramInformation         []ProgramInformation `xml:"ProgramInformation,omitempty"`
	Period                     []*Period            `xml:"Period,omitempty"`
}

// ProgramInformation carries human-readable metadata about the presentation,
// surfaced as extended-attribute metadata on the final output file.
type ProgramInformation struct {
	Title     string `xml:"Title,omitempty"`
	Source    string `xml:"Source,omitempty"`
	Copyright string `xml:"Copyright,omitempty"`
}

// BaseURL is a string URL annotated with optional CDN load-balancing
// priority and weight. Composition is left-to-right: a child BaseURL is
// resolved against the already-composed parent base (see urlutil.Merge).
type BaseURL struct {
	Value           string  `xml:",chardata"`
	ServiceLocation *string `xml:"serviceLocation,attr"`
	ByteRange       *string `xml:"byteRange,attr"`
	DVBPriority     *int    `xml:"priority,attr"`
	DVBWeight       *int    `xml:"weight,attr"`
}

// Period is a time-contiguous segment of the presentation.
type Period struct {
	ID                 *string          `xml:"id,attr"`
	Start              *string          `xml:"start,attr"`
	Duration           *string          `xml:"duration,attr"`
	BitstreamSwitching *bool            `xml:"bitstreamSwitching,attr"`
	BaseURL            []BaseURL        `xml:"BaseURL,omitempty"`
	SegmentBase        *SegmentBase     `xml:"SegmentBase,omitempty"`
	SegmentList        *SegmentList     `xml:"SegmentList,omitempty"`
	SegmentTemplate    *SegmentTemplate `xml:"SegmentTemplate,omitempty"`
	AdaptationSet      []*AdaptationSet `xml:"AdaptationSet,omitempty"`
	EventStream        []EventStream    `xml:"EventStream,omitempty"`

	// XLinkHref and XLinkActuate are present only before XLink resolution;
	// the loader removes them from the tree (invariant: no element retains
	// a live xlink:href after Load returns).
	XLinkHref    *string `xml:"http://www.w3.org/1999/xlink href,attr"`
	XLinkActuate *string `xml:"http://www.w3.org/1999/xlink actuate,attr"`
}

// EventStream carries SCTE-35-style ad-insertion signaling. Not interpreted
// by the core selection/addressing logic; exposed so callers can implement
// advertising-period skipping (see internal/planner/scte35.go).
type EventStream struct {
	SchemeIDURI string  `xml:"schemeIdUri,attr"`
	Value       *string `xml:"value,attr"`
	Timescale   *uint64 `xml:"timescale,attr"`
	Event       []Event `xml:"Event,omitempty"`
}

// Event is one signaled point within an EventStream.
type Event struct {
	PresentationTime  *uint64 `xml:"presentationTime,attr"`
	Duration          *uint64 `xml:"duration,attr"`
	ID                *string `xml:"id,attr"`
	SpliceInfoSection *string `xml:",innerxml"`
}

// AdaptationSet groups Representations sharing content type, language,
// codec family, resolution range, roles, labels, and addressing.
type AdaptationSet struct {
	ID                *string             `xml:"id,attr"`
	Group             *int                `xml:"group,attr"`
	Lang              *string             `xml:"lang,attr"`
	ContentType       *string             `xml:"contentType,attr"`
	MimeType          *string             `xml:"mimeType,attr"`
	Codecs            *string             `xml:"codecs,attr"`
	Width             *uint64             `xml:"width,attr"`
	Height            *uint64             `xml:"height,attr"`
	MinWidth          *uint64             `xml:"minWidth,attr"`
	MaxWidth          *uint64             `xml:"maxWidth,attr"`
	MinHeight         *uint64             `xml:"minHeight,attr"`
	MaxHeight         *uint64             `xml:"maxHeight,attr"`
	FrameRate         *string             `xml:"frameRate,attr"`
	MaxBandwidth      *uint64             `xml:"maxBandwidth,attr"`
	SegmentAlignment  *bool               `xml:"segmentAlignment,attr"`
	Par               *string             `xml:"par,attr"`
	BaseURL           []BaseURL           `xml:"BaseURL,omitempty"`
	Role              []Descriptor        `xml:"Role,omitempty"`
	Label             []Label             `xml:"Label,omitempty"`
	ContentComponent  []ContentComponent  `xml:"ContentComponent,omitempty"`
	ContentProtection []ContentProtection `xml:"ContentProtection,omitempty"`
	SegmentBase       *SegmentBase        `xml:"SegmentBase,omitempty"`
	SegmentList       *SegmentList        `xml:"SegmentList,omitempty"`
	SegmentTemplate   *SegmentTemplate    `xml:"SegmentTemplate,omitempty"`
	Representation    []*Representation   `xml:"Representation,omitempty"`

	XLinkHref    *string `xml:"http://www.w3.org/1999/xlink href,attr"`
	XLinkActuate *string `xml:"http://www.w3.org/1999/xlink actuate,attr"`
}

// ContentComponent associates a role/lang with one content stream within an
// AdaptationSet (used for multiplexed representations).
type ContentComponent struct {
	ID          *string      `xml:"id,attr"`
	Lang        *string      `xml:"lang,attr"`
	ContentType *string      `xml:"contentType,attr"`
	Role        []Descriptor `xml:"Role,omitempty"`
}

// Descriptor is the generic DASH "scheme + value" shape used for Role,
// Rating, Viewpoint, Accessibility, and EssentialProperty elements.
type Descriptor struct {
	SchemeIDURI string  `xml:"schemeIdUri,attr"`
	Value       *string `xml:"value,attr"`
	ID          *string `xml:"id,attr"`
}

// Label is a free-text human-readable identifier for an AdaptationSet or
// Representation (e.g. "Director's commentary").
type Label struct {
	ID      *string `xml:"id,attr"`
	Content string  `xml:",chardata"`
}

// Representation is one concrete encoding of a stream at a given quality —
// the selectable unit. Exactly one addressing-mode descriptor applies to
// any given Representation, see internal/planner/addressing.go for
// resolution precedence.
type Representation struct {
	ID                string  `xml:"id,attr"`
	Bandwidth         *uint64 `xml:"bandwidth,attr"`
	Width             *uint64 `xml:"width,attr"`
	Height            *uint64 `xml:"height,attr"`
	FrameRate         *string `xml:"frameRate,attr"`
	SampleAspectRatio *string `xml:"sar,attr"`
	Codecs            *string `xml:"codecs,attr"`
	Lang              *string `xml:"lang,attr"`
	AudioSamplingRate *string `xml:"audioSamplingRate,attr"`
	QualityRanking    *uint8  `xml:"qualityRanking,attr"`
	MimeType          *string `xml:"mimeType,attr"`
	ScanType          *string `xml:"scanType,attr"`

	BaseURL           []BaseURL           `xml:"BaseURL,omitempty"`
	ContentProtection []ContentProtection `xml:"ContentProtection,omitempty"`
	SegmentBase       *SegmentBase        `xml:"SegmentBase,omitempty"`
	SegmentList       *SegmentList        `xml:"SegmentList,omitempty"`
	SegmentTemplate   *SegmentTemplate    `xml:"SegmentTemplate,omitempty"`
}

// ContentProtection carries a DRM scheme URI, optional default KID, and
// embedded PSSH data.
type ContentProtection struct {
	SchemeIDURI string  `xml:"schemeIdUri,attr"`
	Value       *string `xml:"value,attr"`
	DefaultKID  *string `xml:"default_KID,attr"`
	Pssh        *string `xml:"pssh"`
}

// SegmentBase addresses a whole Representation as one resource, optionally
// with an index box byte-range (addressing mode 5).
type SegmentBase struct {
	IndexRange             *string         `xml:"indexRange,attr"`
	Timescale              *uint64         `xml:"timescale,attr"`
	PresentationTimeOffset *uint64         `xml:"presentationTimeOffset,attr"`
	Initialization         *Initialization `xml:"Initialization,omitempty"`
}

// Initialization references the initialization segment of a Representation.
type Initialization struct {
	SourceURL *string `xml:"sourceURL,attr"`
	Range     *string `xml:"range,attr"`
}

// SegmentList is an explicit ordered list of segment URLs (addressing
// modes 1/2).
type SegmentList struct {
	Timescale      *uint64         `xml:"timescale,attr"`
	Duration       *uint64         `xml:"duration,attr"`
	Initialization *Initialization `xml:"Initialization,omitempty"`
	SegmentURL     []SegmentURL    `xml:"SegmentURL,omitempty"`
}

// SegmentURL is one entry of a SegmentList.
type SegmentURL struct {
	Media      *string `xml:"media,attr"`
	MediaRange *string `xml:"mediaRange,attr"`
	Index      *string `xml:"index,attr"`
	IndexRange *string `xml:"indexRange,attr"`
}

// SegmentTemplate is a placeholder-substitution template for segment URLs,
// with or without an explicit SegmentTimeline (addressing modes 3/4).
type SegmentTemplate struct {
	Media                  *string          `xml:"media,attr"`
	Initialization         *string          `xml:"initialization,attr"`
	Index                  *string          `xml:"index,attr"`
	StartNumber            *uint64          `xml:"startNumber,attr"`
	Timescale              *uint64          `xml:"timescale,attr"`
	Duration               *uint64          `xml:"duration,attr"`
	PresentationTimeOffset *uint64          `xml:"presentationTimeOffset,attr"`
	SegmentTimeline        *SegmentTimeline `xml:"SegmentTimeline,omitempty"`
}

// SegmentTimeline is an explicit list of <S> segment-duration runs.
type SegmentTimeline struct {
	S []S `xml:"S"`
}

// S is one timeline entry: starts at t (or continues from the previous
// entry's end when omitted), lasts d, and repeats r additional times
// (r<0 means "repeat until the end of the Period").
type S struct {
	T *uint64 `xml:"t,attr"`
	D uint64  `xml:"d,attr"`
	R *int64  `xml:"r,attr"`
}
