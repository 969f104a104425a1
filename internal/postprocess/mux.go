package postprocess

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/streamweave/dashdl/internal/ffmpeg"
)

// muxPreference is the documented container-specific helper order. User
// preference, when set, is tried first; these are the fallbacks.
var muxPreference = map[string][]string{
	"mkv":  {"mkvmerge", "ffmpeg", "mp4box"},
	"webm": {"vlc", "ffmpeg"},
	"mp4":  {"ffmpeg", "vlc", "mp4box"},
}

var defaultMuxPreference = []string{"ffmpeg", "mp4box"}

// Muxer combines a Period's decrypted audio/video (and optionally
// subtitle) streams into one container file.
type Muxer struct {
	paths      Paths
	logger     *slog.Logger
	userPrefer string // empty, or a single preferred helper tried first
}

// NewMuxer creates a Muxer. logger may be nil.
func NewMuxer(paths Paths, userPreferredHelper string, logger *slog.Logger) *Muxer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Muxer{paths: paths, userPrefer: userPreferredHelper, logger: logger}
}

// preferenceFor returns the ordered helper list for a target extension,
// with any user preference moved to the front.
func (m *Muxer) preferenceFor(ext string) []string {
	ext = strings.TrimPrefix(strings.ToLower(ext), ".")
	order, ok := muxPreference[ext]
	if !ok {
		order = defaultMuxPreference
	}
	if m.userPrefer == "" {
		return order
	}
	out := []string{m.userPrefer}
	for _, h := range order {
		if h != m.userPrefer {
			out = append(out, h)
		}
	}
	return out
}

// Mux produces outputPath (extension determines the target container)
// from audioPath and/or videoPath, at least one of which must be
// non-empty. When exactly one stream is present and its existing
// container already matches the target extension, the file is simply
// renamed/copied with no muxer invocation (the audio-only/video-only
// short-circuit).
func (m *Muxer) Mux(ctx context.Context, audioPath, videoPath, outputPath string) error {
	if audioPath == "" && videoPath == "" {
		return fmt.Errorf("muxing %s: no streams to mux", outputPath)
	}

	if audioPath == "" || videoPath == "" {
		only := audioPath
		if only == "" {
			only = videoPath
		}
		if containerMatches(only, outputPath) {
			return copyFile(only, outputPath)
		}
	}

	ext := filepath.Ext(outputPath)
	helpers := m.preferenceFor(ext)

	var lastErr error
	for _, helper := range helpers {
		var err error
		switch helper {
		case "mkvmerge":
			err = m.muxMkvmerge(ctx, audioPath, videoPath, outputPath)
		case "vlc":
			err = m.muxVLC(ctx, audioPath, videoPath, outputPath)
		case "mp4box":
			err = m.muxMP4Box(ctx, audioPath, videoPath, outputPath)
		default:
			err = m.muxFFmpeg(ctx, audioPath, videoPath, outputPath)
		}
		if err == nil {
			return nil
		}
		m.logger.Warn("mux helper failed, trying next", slog.String("helper", helper), slog.String("error", err.Error()))
		lastErr = err
	}

	return fmt.Errorf("muxing %s: all helpers failed: %w", outputPath, lastErr)
}

// muxFFmpeg runs ffmpeg stream-copy muxing, retrying without -c copy
// (allowing re-encode) once if the copy attempt fails, per the
// subprocess contract.
func (m *Muxer) muxFFmpeg(ctx context.Context, audioPath, videoPath, outputPath string) error {
	build := func(copyMode bool) *ffmpeg.Command {
		b := ffmpeg.NewCommandBuilder(m.paths.FFmpeg).Overwrite()
		if audioPath != "" {
			b = b.Input(audioPath)
		}
		if videoPath != "" {
			b = b.Input(videoPath)
		}
		if copyMode {
			b = b.CopyCodecs()
		}
		b = b.OutputArgs("-movflags", "faststart", "-f", muxerNameFor(outputPath)).Output(outputPath)
		return b.Build()
	}

	if err := build(true).Run(ctx); err == nil {
		return nil
	}
	return build(false).Run(ctx)
}

func (m *Muxer) muxMkvmerge(ctx context.Context, audioPath, videoPath, outputPath string) error {
	args := []string{"--output", outputPath}
	if videoPath != "" {
		args = append(args, "--no-audio", videoPath)
	}
	if audioPath != "" {
		args = append(args, "--no-video", audioPath)
	}
	return runHelper(ctx, m.paths.Mkvmerge, args)
}

func (m *Muxer) muxMP4Box(ctx context.Context, audioPath, videoPath, outputPath string) error {
	args := []string{"-flat"}
	if videoPath != "" {
		args = append(args, "-add", videoPath)
	}
	if audioPath != "" {
		args = append(args, "-add", audioPath)
	}
	args = append(args, "-new", outputPath)
	return runHelper(ctx, m.paths.MP4Box, args)
}

func (m *Muxer) muxVLC(ctx context.Context, audioPath, videoPath, outputPath string) error {
	input := videoPath
	if input == "" {
		input = audioPath
	}
	mux := muxerNameFor(outputPath)
	sout := fmt.Sprintf("#std{access=file,mux=%s,dst=%s}", mux, outputPath)
	args := []string{"-I", "dummy", input, "--sout=" + sout, "vlc://quit"}
	return runHelper(ctx, m.paths.VLC, args)
}

func muxerNameFor(outputPath string) string {
	switch strings.TrimPrefix(strings.ToLower(filepath.Ext(outputPath)), ".") {
	case "mkv":
		return "matroska"
	case "webm":
		return "webm"
	default:
		return "mp4"
	}
}

// containerMatches reports whether existingPath's container already
// matches outputPath's target extension, purely by comparing the two
// file extensions case-insensitively; the file itself is not probed.
func containerMatches(existingPath, outputPath string) bool {
	return strings.EqualFold(filepath.Ext(existingPath), filepath.Ext(outputPath))
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("reading %q for container short-circuit copy: %w", src, err)
	}
	if err := os.WriteFile(dst, data, 0o644); err != nil {
		return fmt.Errorf("writing %q: %w", dst, err)
	}
	return nil
}
