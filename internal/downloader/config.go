// Package downloader owns the whole-lifecycle control flow: load the
// manifest, plan and fetch each Period's streams, post-process them into
// a finished container, and finalize multi-Period output.
package downloader

import (
	"log/slog"

	"github.com/streamweave/dashdl/internal/config"
	"github.com/streamweave/dashdl/internal/planner"
	"github.com/streamweave/dashdl/internal/postprocess"
)

// Options configures one download end to end, assembled via a builder
// rather than a single wide struct literal so optional knobs read clearly
// at the call site.
type Options struct {
	ManifestURL string
	OutputPath  string

	Config config.Config

	AudioPreferences    planner.Preferences
	VideoPreferences    planner.Preferences
	SubtitlePreferences planner.Preferences
	NoSubtitle          bool
	SkipAdvertisements  bool

	Keys []postprocess.KeyPair

	MuxPreferredHelper string
	DecryptMethod      postprocess.DecryptMethod
	NoConcat           bool

	Logger   *slog.Logger
	Progress ProgressObserver
}

// Builder assembles Options with a fluent API, mirroring the config
// layering pattern the rest of this module uses.
type Builder struct {
	opts Options
}

// NewBuilder starts a Builder for the given manifest URL and output path.
func NewBuilder(manifestURL, outputPath string) *Builder {
	return &Builder{opts: Options{
		ManifestURL: manifestURL,
		OutputPath:  outputPath,
		Config:      config.Default(),
	}}
}

// WithConfig overrides the full layered configuration.
func (b *Builder) WithConfig(cfg config.Config) *Builder {
	b.opts.Config = cfg
	return b
}

// WithPreferences sets the audio/video/subtitle selection preferences.
func (b *Builder) WithPreferences(audio, video, subtitle planner.Preferences) *Builder {
	b.opts.AudioPreferences = audio
	b.opts.VideoPreferences = video
	b.opts.SubtitlePreferences = subtitle
	return b
}

// WithoutSubtitles disables subtitle selection entirely.
func (b *Builder) WithoutSubtitles() *Builder {
	b.opts.NoSubtitle = true
	return b
}

// SkippingAdvertisements excludes Periods flagged via SCTE-35 signaling.
func (b *Builder) SkippingAdvertisements() *Builder {
	b.opts.SkipAdvertisements = true
	return b
}

// WithKeys supplies decryption (keyId, key) pairs and the helper used to
// apply them.
func (b *Builder) WithKeys(keys []postprocess.KeyPair, method postprocess.DecryptMethod) *Builder {
	b.opts.Keys = keys
	b.opts.DecryptMethod = method
	return b
}

// WithMuxPreference overrides the container-specific default muxer
// preference with a single helper tried first.
func (b *Builder) WithMuxPreference(helper string) *Builder {
	b.opts.MuxPreferredHelper = helper
	return b
}

// WithoutConcatenation disables multi-Period concatenation, always
// leaving separately-named per-Period files.
func (b *Builder) WithoutConcatenation() *Builder {
	b.opts.NoConcat = true
	return b
}

// WithLogger sets the structured logger used throughout the download.
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.opts.Logger = logger
	return b
}

// WithProgress registers a progress observer.
func (b *Builder) WithProgress(p ProgressObserver) *Builder {
	b.opts.Progress = p
	return b
}

// Build returns the assembled Options.
func (b *Builder) Build() Options {
	return b.opts
}

// ProgressObserver receives download progress notifications.
type ProgressObserver interface {
	OnProgress(percent float64, message string)
}
