// Package planner picks Representations from a Period's AdaptationSets and
// expands the chosen Representation's addressing mode into an ordered list
// of fetch descriptors.
package planner

import "time"

// FetchDescriptor is one HTTP (or data:) resource the segment fetcher must
// retrieve, in the order it must be appended to the stream output file.
// Immutable after creation.
type FetchDescriptor struct {
	PeriodIndex      int
	URL              string
	RangeStart       *int64
	RangeEnd         *int64
	IsInitialization bool
	TimeoutOverride  time.Duration
}

// HasRange reports whether this descriptor carries an explicit byte range.
func (d FetchDescriptor) HasRange() bool {
	return d.RangeStart != nil && d.RangeEnd != nil
}

// Kind identifies which media family a PeriodPlan's descriptor list
// belongs to.
type Kind int

const (
	KindVideo Kind = iota
	KindAudio
	KindSubtitle
)

func (k Kind) String() string {
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

// PeriodPlan is the planner's output for one Period: the ordered
// descriptor lists for each selected stream, plus bookkeeping the
// orchestrator and post-processor need downstream.
type PeriodPlan struct {
	PeriodIndex         int
	AudioDescriptors    []FetchDescriptor
	VideoDescriptors    []FetchDescriptor
	SubtitleDescriptors []FetchDescriptor
	SubtitleFormats     []string // e.g. "wvtt", "stpp", "text/vtt"
	SelectedAudioLang   string
}

// DescriptorCount returns the total number of descriptors across every
// selected stream, the denominator the orchestrator reports progress
// against.
func (p *PeriodPlan) DescriptorCount() int {
	return len(p.AudioDescriptors) + len(p.VideoDescriptors) + len(p.SubtitleDescriptors)
}

// DownloadState tracks orchestrator-owned counters across the whole
// download. Mutated only synchronously by the orchestrator and fetcher;
// never shared across goroutines in this single-threaded design.
type DownloadState struct {
	CurrentPeriodIndex  int
	TotalDescriptors    int
	DescriptorsComplete int
	ErrorCount          int
}

// Percent returns completion as a 0-100 value, 0 when nothing is expected
// yet.
func (s *DownloadState) Percent() float64 {
	if s.TotalDescriptors == 0 {
		return 0
	}
	return 100 * float64(s.DescriptorsComplete) / float64(s.TotalDescriptors)
}
