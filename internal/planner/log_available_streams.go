package planner

import (
	"log/slog"
	"strconv"

	"github.com/streamweave/dashdl/pkg/mpd"
)

// LogAvailableStreams emits one log line per Representation in the
// manifest, naming its Period, AdaptationSet content kind, language,
// codecs, bandwidth, and resolution. Intended as a startup inventory so a
// user deciding on selection preferences can see what the manifest
// actually offers, independent of what gets selected.
func LogAvailableStreams(logger *slog.Logger, m *mpd.MPD) {
	for pi, period := range m.Period {
		periodID := ""
		if period.ID != nil {
			periodID = *period.ID
		}
		for _, as := range period.AdaptationSet {
			kind := as.ContentKind().String()
			lang := ""
			if as.Lang != nil {
				lang = *as.Lang
			}
			for _, rep := range as.Representation {
				attrs := []any{
					slog.Int("period_index", pi),
					slog.String("period_id", periodID),
					slog.String("kind", kind),
					slog.String("lang", lang),
					slog.String("representation_id", rep.ID),
				}
				if rep.Bandwidth != nil {
					attrs = append(attrs, slog.Uint64("bandwidth", *rep.Bandwidth))
				}
				if rep.Width != nil && rep.Height != nil {
					attrs = append(attrs, slog.String("resolution", resolutionString(*rep.Width, *rep.Height)))
				}
				if rep.Codecs != nil {
					attrs = append(attrs, slog.String("codecs", *rep.Codecs))
				}
				logger.Debug("available stream", attrs...)
			}
		}
	}
}

func resolutionString(w, h uint64) string {
	return strconv.FormatUint(w, 10) + "x" + strconv.FormatUint(h, 10)
}
