package postprocess

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/streamweave/dashdl/internal/ffmpeg"
)

// fragmentedSubtitleCodecs are the codecs that arrive as fragmented MP4
// segments and therefore need MP4Box extraction before they're usable as
// a standalone subtitle file.
var fragmentedSubtitleCodecs = map[string]bool{
	"wvtt": true,
	"stpp": true,
}

// SubtitleConfig controls optional subtitle post-processing steps.
type SubtitleConfig struct {
	ConvertSTPPToTTML bool
	RemuxIntoOutput   bool
	TempDir           string
}

// SubtitleProcessor extracts, optionally converts, and optionally remuxes
// subtitle streams that arrived as fragmented MP4 segments.
type SubtitleProcessor struct {
	paths  Paths
	cfg    SubtitleConfig
	logger *slog.Logger
}

// NewSubtitleProcessor creates a SubtitleProcessor. logger may be nil.
func NewSubtitleProcessor(paths Paths, cfg SubtitleConfig, logger *slog.Logger) *SubtitleProcessor {
	if logger == nil {
		logger = slog.Default()
	}
	return &SubtitleProcessor{paths: paths, cfg: cfg, logger: logger}
}

// NeedsExtraction reports whether format names a fragmented-MP4 subtitle
// codec requiring MP4Box extraction rather than direct use.
func NeedsExtraction(format string) bool {
	return fragmentedSubtitleCodecs[strings.ToLower(format)]
}

// ExtractSRT runs MP4Box to pull an SRT track out of a fragmented MP4
// subtitle stream, returning the path to the produced .srt file.
func (p *SubtitleProcessor) ExtractSRT(ctx context.Context, fragmentedPath string) (string, error) {
	srtPath, err := tempFile(p.cfg.TempDir, "dashdl-subtitle-*.srt")
	if err != nil {
		return "", fmt.Errorf("extracting subtitles: %w", err)
	}

	if err := runHelper(ctx, p.paths.MP4Box, []string{"-srt", "1", fragmentedPath, "-out", srtPath}); err != nil {
		removeUnlessPersisted(srtPath, false)
		return "", fmt.Errorf("extracting subtitles from %q: %w", fragmentedPath, err)
	}
	return srtPath, nil
}

// ConvertToTTML converts an stpp fragmented MP4 subtitle stream directly
// to TTML via ffmpeg, when configured.
func (p *SubtitleProcessor) ConvertToTTML(ctx context.Context, fragmentedPath, outputPath string) error {
	b := ffmpeg.NewCommandBuilder(p.paths.FFmpeg).Overwrite().
		Input(fragmentedPath).
		OutputArgs("-f", "ttml").
		Output(outputPath)
	if err := b.Build().Run(ctx); err != nil {
		return fmt.Errorf("converting subtitles to TTML: %w", err)
	}
	return nil
}

// RemuxInto adds srtPath into containerPath, via mkvmerge when the
// container is Matroska (.mkv) and via MP4Box -add otherwise.
func (p *SubtitleProcessor) RemuxInto(ctx context.Context, containerPath, srtPath string) error {
	if strings.HasSuffix(strings.ToLower(containerPath), ".mkv") {
		tmp, err := tempFile(p.cfg.TempDir, "dashdl-remux-*.mkv")
		if err != nil {
			return err
		}
		defer removeUnlessPersisted(tmp, false)
		if err := runHelper(ctx, p.paths.Mkvmerge, []string{"--output", tmp, containerPath, srtPath}); err != nil {
			return fmt.Errorf("remuxing subtitles into %q: %w", containerPath, err)
		}
		return moveFile(tmp, containerPath)
	}
	return runHelper(ctx, p.paths.MP4Box, []string{"-add", srtPath, containerPath})
}

func moveFile(src, dst string) error {
	if err := copyFile(src, dst); err != nil {
		return err
	}
	removeUnlessPersisted(src, false)
	return nil
}
