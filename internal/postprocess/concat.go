package postprocess

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/streamweave/dashdl/internal/ffmpeg"
)

// tolerance is the 1% allowance the compatibility check grants frame rate
// and sample aspect ratio comparisons.
const tolerance = 0.01

// Concatenator joins per-Period output files into a single container when
// they are compatible, falling back to separately-named files otherwise.
type Concatenator struct {
	paths  Paths
	prober *ffmpeg.Prober
	logger *slog.Logger
}

// NewConcatenator creates a Concatenator. logger may be nil.
func NewConcatenator(paths Paths, logger *slog.Logger) *Concatenator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Concatenator{
		paths:  paths,
		prober: ffmpeg.NewProber(findFFprobe(paths)),
		logger: logger,
	}
}

func findFFprobe(paths Paths) string {
	dir := filepath.Dir(paths.FFmpeg)
	candidate := filepath.Join(dir, "ffprobe")
	if _, err := os.Stat(candidate); err == nil {
		return candidate
	}
	return "ffprobe"
}

// Finalize concatenates perPeriodFiles into outputPath when they are
// compatible; otherwise it renames the first to outputPath and each later
// one to its "-pN" sibling name (-p2, -p3, ...) and returns that list,
// leaving the Periods unconcatenated. A single-Period
// input is renamed to outputPath unconditionally.
func (c *Concatenator) Finalize(ctx context.Context, perPeriodFiles []string, outputPath string) ([]string, error) {
	if len(perPeriodFiles) == 0 {
		return nil, fmt.Errorf("finalizing output: no Period files produced")
	}
	if len(perPeriodFiles) == 1 {
		if perPeriodFiles[0] == outputPath {
			return perPeriodFiles, nil
		}
		if err := os.Rename(perPeriodFiles[0], outputPath); err != nil {
			return nil, fmt.Errorf("finalizing output: %w", err)
		}
		return []string{outputPath}, nil
	}

	compatible, err := c.compatible(ctx, perPeriodFiles)
	if err != nil {
		c.logger.Warn("compatibility probe failed, leaving Periods separate", slog.String("error", err.Error()))
		compatible = false
	}

	if !compatible {
		return c.renameSeparately(perPeriodFiles, outputPath)
	}

	if err := c.concat(ctx, perPeriodFiles, outputPath); err != nil {
		c.logger.Warn("concatenation failed, leaving Periods separate", slog.String("error", err.Error()))
		return c.renameSeparately(perPeriodFiles, outputPath)
	}
	return []string{outputPath}, nil
}

// renameSeparately names files <base>.<ext>, <base>-p2.<ext>, ...
func (c *Concatenator) renameSeparately(files []string, outputPath string) ([]string, error) {
	ext := filepath.Ext(outputPath)
	base := strings.TrimSuffix(outputPath, ext)

	out := make([]string, 0, len(files))
	for i, f := range files {
		target := outputPath
		if i > 0 {
			target = fmt.Sprintf("%s-p%d%s", base, i+1, ext)
		}
		if f != target {
			if err := os.Rename(f, target); err != nil {
				return nil, fmt.Errorf("renaming Period %d output: %w", i+1, err)
			}
		}
		out = append(out, target)
	}
	return out, nil
}

// compatible reports whether every file is audio-only, or every file
// shares video width/height exactly and frame rate and sample aspect
// ratio within 1% (absence of SAR tolerated as a match).
func (c *Concatenator) compatible(ctx context.Context, files []string) (bool, error) {
	type shape struct {
		audioOnly          bool
		width, height      int
		framerate          float64
		sampleAspectWidth  float64
		sampleAspectHeight float64
		hasSAR             bool
	}

	var shapes []shape
	for _, f := range files {
		result, err := c.prober.Probe(ctx, f)
		if err != nil {
			return false, fmt.Errorf("probing %q: %w", f, err)
		}
		v := result.GetVideoStream()
		if v == nil {
			shapes = append(shapes, shape{audioOnly: true})
			continue
		}
		s := shape{width: v.Width, height: v.Height, framerate: v.Framerate()}
		if sw, sh, ok := parseSAR(v.SampleAspect); ok {
			s.sampleAspectWidth, s.sampleAspectHeight, s.hasSAR = sw, sh, true
		}
		shapes = append(shapes, s)
	}

	allAudioOnly := true
	for _, s := range shapes {
		if !s.audioOnly {
			allAudioOnly = false
			break
		}
	}
	if allAudioOnly {
		return true, nil
	}

	for _, s := range shapes {
		if s.audioOnly {
			return false, nil
		}
	}

	first := shapes[0]
	for _, s := range shapes[1:] {
		if s.width != first.width || s.height != first.height {
			return false, nil
		}
		if !withinTolerance(s.framerate, first.framerate) {
			return false, nil
		}
		if first.hasSAR && s.hasSAR {
			if !withinTolerance(s.sampleAspectWidth/s.sampleAspectHeight, first.sampleAspectWidth/first.sampleAspectHeight) {
				return false, nil
			}
		}
	}
	return true, nil
}

func withinTolerance(a, b float64) bool {
	if b == 0 {
		return a == 0
	}
	return math.Abs(a-b)/math.Abs(b) <= tolerance
}

func parseSAR(s string) (float64, float64, bool) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	var w, h float64
	if _, err := fmt.Sscanf(parts[0], "%f", &w); err != nil {
		return 0, 0, false
	}
	if _, err := fmt.Sscanf(parts[1], "%f", &h); err != nil || h == 0 {
		return 0, 0, false
	}
	return w, h, true
}

// concat invokes the container-appropriate concat helper: mkvmerge's
// "[ in1 in2 ... ]" syntax for .mkv, otherwise ffmpeg's concat demuxer
// with stream copy. Inputs missing an audio track are not padded.
func (c *Concatenator) concat(ctx context.Context, files []string, outputPath string) error {
	if strings.EqualFold(filepath.Ext(outputPath), ".mkv") {
		args := append([]string{"--output", outputPath, "["}, files...)
		args = append(args, "]")
		return runHelper(ctx, c.paths.Mkvmerge, args)
	}
	return c.concatFFmpeg(ctx, files, outputPath)
}

func (c *Concatenator) concatFFmpeg(ctx context.Context, files []string, outputPath string) error {
	listPath, err := tempFile("", "dashdl-concat-*.txt")
	if err != nil {
		return err
	}
	defer removeUnlessPersisted(listPath, false)

	var list strings.Builder
	for _, f := range files {
		list.WriteString(fmt.Sprintf("file '%s'\n", f))
	}
	if err := os.WriteFile(listPath, []byte(list.String()), 0o644); err != nil {
		return fmt.Errorf("writing concat list: %w", err)
	}

	b := ffmpeg.NewCommandBuilder(c.paths.FFmpeg).Overwrite().
		InputArgs("-f", "concat", "-safe", "0").
		Input(listPath).
		CopyCodecs().
		OutputArgs("-movflags", "faststart", "-f", muxerNameFor(outputPath)).
		Output(outputPath)
	return b.Build().Run(ctx)
}
