// Package cmd implements the CLI commands for dashdl.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/streamweave/dashdl/internal/config"
	"github.com/streamweave/dashdl/internal/downloader"
	"github.com/streamweave/dashdl/internal/observability"
	"github.com/streamweave/dashdl/internal/planner"
	"github.com/streamweave/dashdl/internal/postprocess"
	"github.com/streamweave/dashdl/internal/version"
)

var (
	cfgFile   string
	logLevel  string
	logFormat string

	flagOutput           string
	flagLang             string
	flagRoles            []string
	flagVideoWidth       int
	flagVideoHeight      int
	flagQuality          string
	flagNoSubtitle       bool
	flagSkipAds          bool
	flagKeys             []string
	flagDecryptMethod    string
	flagMuxPrefer        string
	flagNoConcat         bool
	flagContainerRuntime string
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:     "dashdl <manifest-url>",
	Short:   "Download a playable file from an MPEG-DASH manifest",
	Version: version.Short(),
	Long: `dashdl downloads the audio, video, and subtitle streams a DASH
manifest describes, selects one Representation of each per the given
preferences, decrypts and muxes them into a single container, and
concatenates multiple Periods when compatible.`,
	Args: cobra.ExactArgs(1),
	RunE: runDownload,
}

// Execute adds all child commands to the root command and runs it.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		return fmt.Errorf("executing root command: %w", err)
	}
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/dashdl/dashdl.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format (json, text)")

	rootCmd.Flags().StringVarP(&flagOutput, "output", "o", "", "output file path (default derived from the manifest URL)")
	rootCmd.Flags().StringVar(&flagLang, "lang", "", "preferred audio/subtitle language")
	rootCmd.Flags().StringSliceVar(&flagRoles, "role", nil, "preferred AdaptationSet role(s), in priority order")
	rootCmd.Flags().IntVar(&flagVideoWidth, "width", 0, "preferred video width")
	rootCmd.Flags().IntVar(&flagVideoHeight, "height", 0, "preferred video height")
	rootCmd.Flags().StringVar(&flagQuality, "quality", "highest", "quality tier when no width/height narrows the choice (lowest, intermediate, highest)")
	rootCmd.Flags().BoolVar(&flagNoSubtitle, "no-subtitle", false, "skip subtitle selection entirely")
	rootCmd.Flags().BoolVar(&flagSkipAds, "skip-ads", false, "drop Periods signaling SCTE-35 ad breaks")
	rootCmd.Flags().StringArrayVar(&flagKeys, "key", nil, "decryption key as kid:key (hex), repeatable")
	rootCmd.Flags().StringVar(&flagDecryptMethod, "decrypt-method", "mp4decrypt", "decryption helper (mp4decrypt, shaka-packager, mp4box)")
	rootCmd.Flags().StringVar(&flagMuxPrefer, "mux-prefer", "", "muxer helper to try first (ffmpeg, mkvmerge, mp4box, vlc)")
	rootCmd.Flags().BoolVar(&flagNoConcat, "no-concat", false, "never concatenate multi-Period output, always leaving separately-named files")
	rootCmd.Flags().StringVar(&flagContainerRuntime, "container-runtime", "", "container runtime for containerized decryption (podman, docker)")
}

func runDownload(_ *cobra.Command, args []string) error {
	manifestURL := args[0]

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if logLevel != "" {
		cfg.Logging.Level = strings.ToLower(logLevel)
	}
	if logFormat != "" {
		cfg.Logging.Format = strings.ToLower(logFormat)
	}
	if flagContainerRuntime != "" {
		cfg.Helpers.ContainerRuntime = flagContainerRuntime
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}

	logger := observability.NewLogger(cfg.Logging)
	slog.SetDefault(logger)

	output := flagOutput
	if output == "" {
		output = deriveOutputPath(manifestURL)
	}

	keys, err := parseKeys(flagKeys)
	if err != nil {
		return fmt.Errorf("parsing --key: %w", err)
	}

	quality, err := parseQualityTier(flagQuality)
	if err != nil {
		return err
	}

	prefs := planner.Preferences{
		Lang:    flagLang,
		Roles:   flagRoles,
		Quality: quality,
	}
	if flagVideoWidth > 0 {
		w := uint64(flagVideoWidth)
		prefs.PreferredWidth = &w
	}
	if flagVideoHeight > 0 {
		h := uint64(flagVideoHeight)
		prefs.PreferredHeight = &h
	}

	builder := downloader.NewBuilder(manifestURL, output).
		WithConfig(*cfg).
		WithPreferences(prefs, prefs, prefs).
		WithLogger(logger).
		WithMuxPreference(flagMuxPrefer)

	if flagNoSubtitle {
		builder = builder.WithoutSubtitles()
	}
	if flagSkipAds {
		builder = builder.SkippingAdvertisements()
	}
	if flagNoConcat {
		builder = builder.WithoutConcatenation()
	}
	if len(keys) > 0 {
		builder = builder.WithKeys(keys, postprocess.DecryptMethod(flagDecryptMethod))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		logger.Info("received shutdown signal", slog.String("signal", sig.String()))
		cancel()
	}()

	logger.Info("starting download", slog.String("manifest", manifestURL), slog.String("output", output))

	orch := downloader.New(builder.Build())
	if err := orch.Download(ctx); err != nil {
		return fmt.Errorf("downloading: %w", err)
	}

	logger.Info("download complete", slog.String("output", output))
	return nil
}

// deriveOutputPath names the output file after the manifest URL's last
// path segment, with its extension replaced by .mp4.
func deriveOutputPath(manifestURL string) string {
	base := filepath.Base(manifestURL)
	if i := strings.IndexByte(base, '?'); i >= 0 {
		base = base[:i]
	}
	ext := filepath.Ext(base)
	name := strings.TrimSuffix(base, ext)
	if name == "" || name == "." {
		name = "dashdl-output"
	}
	return name + ".mp4"
}

// parseKeys parses "kid:key" strings into KeyPairs.
func parseKeys(raw []string) ([]postprocess.KeyPair, error) {
	out := make([]postprocess.KeyPair, 0, len(raw))
	for _, r := range raw {
		parts := strings.SplitN(r, ":", 2)
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			return nil, fmt.Errorf("malformed key %q, expected kid:key", r)
		}
		out = append(out, postprocess.KeyPair{KeyID: parts[0], Key: parts[1]})
	}
	return out, nil
}

func parseQualityTier(s string) (planner.QualityTier, error) {
	switch strings.ToLower(s) {
	case "lowest":
		return planner.TierLowest, nil
	case "intermediate", "medium":
		return planner.TierIntermediate, nil
	case "highest", "":
		return planner.TierHighest, nil
	default:
		return 0, fmt.Errorf("invalid --quality %q: must be lowest, intermediate, or highest", s)
	}
}
