package planner

import (
	"context"
	"fmt"

	"github.com/streamweave/dashdl/pkg/mpd"
)

// MediaPreferences groups the per-kind Preferences the orchestrator
// supplies for one Period.
type MediaPreferences struct {
	Audio      Preferences
	Video      Preferences
	Subtitle   Preferences
	NoSubtitle bool
}

// PlanPeriod selects one audio, one video, and (unless disabled) one
// subtitle Representation from period, expands each into its fetch
// descriptor list, and returns the assembled PeriodPlan.
func PlanPeriod(ctx context.Context, periodIndex int, period *mpd.Period, manifestBaseURL string, prefs MediaPreferences, addrOpts AddressingOptions) (*PeriodPlan, error) {
	addrOpts.PeriodIndex = periodIndex

	plan := &PeriodPlan{PeriodIndex: periodIndex}

	if as, rep := Select(period, KindAudio, prefs.Audio); rep != nil {
		descs, err := Expand(ctx, period, as, rep, manifestBaseURL, addrOpts)
		if err != nil {
			return nil, fmt.Errorf("expanding audio Representation %q: %w", rep.ID, err)
		}
		plan.AudioDescriptors = descs
		if as.Lang != nil {
			plan.SelectedAudioLang = *as.Lang
		}
	}

	if as, rep := Select(period, KindVideo, prefs.Video); rep != nil {
		descs, err := Expand(ctx, period, as, rep, manifestBaseURL, addrOpts)
		if err != nil {
			return nil, fmt.Errorf("expanding video Representation %q: %w", rep.ID, err)
		}
		plan.VideoDescriptors = descs
	}

	if !prefs.NoSubtitle {
		if as, rep := Select(period, KindSubtitle, prefs.Subtitle); rep != nil {
			descs, err := Expand(ctx, period, as, rep, manifestBaseURL, addrOpts)
			if err != nil {
				return nil, fmt.Errorf("expanding subtitle Representation %q: %w", rep.ID, err)
			}
			plan.SubtitleDescriptors = descs
			plan.SubtitleFormats = subtitleFormatsOf(as, rep)
		}
	}

	return plan, nil
}

// subtitleFormatsOf names the codec/mimeType strings describing a
// selected subtitle stream, used by the post-processor to pick a
// conversion path (SRT extraction, stpp->TTML, etc).
func subtitleFormatsOf(as *mpd.AdaptationSet, rep *mpd.Representation) []string {
	var out []string
	if rep.Codecs != nil {
		out = append(out, *rep.Codecs)
	}
	if rep.MimeType != nil {
		out = append(out, *rep.MimeType)
	} else if as.MimeType != nil {
		out = append(out, *as.MimeType)
	}
	return out
}
