package downloader

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/streamweave/dashdl/internal/fetcher"
	"github.com/streamweave/dashdl/internal/loader"
	"github.com/streamweave/dashdl/internal/observability"
	"github.com/streamweave/dashdl/internal/planner"
	"github.com/streamweave/dashdl/internal/postprocess"
	"github.com/streamweave/dashdl/pkg/httpclient"
	"github.com/streamweave/dashdl/pkg/mpd"
)

// Orchestrator drives one download end to end: load the manifest, plan
// and fetch each Period's streams, post-process them into a finished
// container, and finalize multi-Period output. It holds no state across
// calls to Download.
type Orchestrator struct {
	opts   Options
	logger *slog.Logger
}

// New creates an Orchestrator for opts.
func New(opts Options) *Orchestrator {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{opts: opts, logger: logger}
}

// Download runs the whole-lifecycle control flow described by Options,
// producing the final container at Options.OutputPath.
func (o *Orchestrator) Download(ctx context.Context) error {
	cfg := o.opts.Config

	correlationID := uuid.New().String()
	ctx = observability.ContextWithCorrelationID(ctx, correlationID)
	base := o.opts.Logger
	if base == nil {
		base = slog.Default()
	}
	o.logger = observability.WithCorrelationID(base, correlationID)

	httpClient := httpclient.New(httpclient.Config{
		Timeout:           cfg.HTTP.Timeout,
		RetryAttempts:     cfg.HTTP.RetryAttempts,
		RetryDelay:        cfg.HTTP.RetryDelay,
		RetryMaxDelay:     cfg.HTTP.RetryMaxDelay,
		BackoffMultiplier: 2.0,
		UserAgent:         cfg.HTTP.UserAgent,
	})

	ld := loader.New(httpClient, cfg.Helpers.XsltprocPath, loader.Options{
		Manifest: cfg.Manifest,
		Auth: loader.Auth{
			Username:    cfg.HTTP.AuthUsername,
			Password:    cfg.HTTP.AuthPassword,
			BearerToken: cfg.HTTP.BearerToken,
			Referer:     cfg.HTTP.Referer,
		},
		Logger: o.logger,
	})

	result, err := ld.Load(ctx, o.opts.ManifestURL)
	if err != nil {
		return newError(KindParsing, "loading manifest", err)
	}
	m := result.MPD

	for _, issue := range result.ConformityIssues {
		o.logger.Warn("manifest conformity issue", slog.String("issue", issue.String()))
	}

	periods := planner.FilterAdvertisingPeriods(m.Period, o.opts.SkipAdvertisements)
	if len(periods) == 0 {
		return newError(KindParsing, "selecting Periods", fmt.Errorf("manifest has no usable Periods"))
	}

	planner.LogAvailableStreams(o.logger, m)

	tempDir := cfg.Fetch.TempDir
	persist := cfg.Fetch.PersistFiles

	var tempFiles []string
	cleanup := func() {
		if persist {
			return
		}
		for _, f := range tempFiles {
			_ = os.Remove(f)
		}
	}
	defer cleanup()

	limiter := fetcher.NewBandwidthLimiter(int(cfg.Fetch.BandwidthLimit.Bytes()/1024), 0)
	fetchCfg := fetcher.Config{
		FragmentRetryCount: cfg.Fetch.FragmentRetryCount,
		MaxErrorCount:      cfg.Fetch.MaxErrorCount,
		VerifyContentType:  cfg.Fetch.VerifyContentType,
		ArchiveFragments:   cfg.Fetch.ArchiveFragments,
		FragmentDir:        cfg.Fetch.FragmentDir,
		RetryDelay:         cfg.HTTP.RetryDelay,
		RetryMaxDelay:      cfg.HTTP.RetryMaxDelay,
		BackoffMultiplier:  2.0,
	}
	f := fetcher.New(httpClient, limiter, fetchCfg, o.logger, cfg.HTTP.Referer)
	if o.opts.Progress != nil {
		f.AddObserver(progressAdapter{o.opts.Progress})
	}

	paths := postprocess.ResolvePaths(
		cfg.Helpers.FFmpegPath,
		cfg.Helpers.MP4BoxPath,
		cfg.Helpers.MkvmergePath,
		cfg.Helpers.VLCPath,
		cfg.Helpers.Mp4decryptPath,
		cfg.Helpers.ShakaPackagerPath,
		cfg.Helpers.ContainerRuntime,
	)

	decryptMethod := o.opts.DecryptMethod
	if cfg.Helpers.UseContainerDecrypt && decryptMethod == postprocess.DecryptShakaPackager {
		decryptMethod = postprocess.DecryptShakaContainer
	}
	decryptor := postprocess.NewDecryptor(paths, postprocess.DecryptConfig{
		Method:  decryptMethod,
		Keys:    o.opts.Keys,
		TempDir: tempDir,
	}, o.logger)

	muxer := postprocess.NewMuxer(paths, o.opts.MuxPreferredHelper, o.logger)
	subtitles := postprocess.NewSubtitleProcessor(paths, postprocess.SubtitleConfig{
		ConvertSTPPToTTML: false,
		RemuxIntoOutput:   true,
		TempDir:           tempDir,
	}, o.logger)
	concatenator := postprocess.NewConcatenator(paths, o.logger)

	state := &planner.DownloadState{}

	addrOpts := planner.AddressingOptions{
		AllowIndexRange: cfg.Manifest.AllowIndexRange,
		RangeFetcher:    f,
		BaseURLTimeout:  loader.BaseURLTimeout(cfg.HTTP),
	}

	prefs := planner.MediaPreferences{
		Audio:      o.opts.AudioPreferences,
		Video:      o.opts.VideoPreferences,
		Subtitle:   o.opts.SubtitlePreferences,
		NoSubtitle: o.opts.NoSubtitle,
	}

	plans := make([]*planner.PeriodPlan, 0, len(periods))
	for i, period := range periods {
		periodAddrOpts := addrOpts
		if period.Duration != nil {
			dur, err := mpd.ParseDuration(*period.Duration)
			if err != nil {
				return newError(KindParsing, fmt.Sprintf("parsing Period %d duration", i), err)
			}
			periodAddrOpts.PeriodDurationSec = dur.Seconds()
		}

		plan, err := planner.PlanPeriod(ctx, i, period, result.EffectiveBaseURL, prefs, periodAddrOpts)
		if err != nil {
			return newError(KindUnhandledMediaStream, fmt.Sprintf("planning Period %d", i), err)
		}
		plans = append(plans, plan)
		state.TotalDescriptors += plan.DescriptorCount()
	}

	perPeriodOutputs := make([]string, 0, len(plans))
	for i, plan := range plans {
		state.CurrentPeriodIndex = i

		periodOutput, err := o.processPeriod(ctx, f, decryptor, muxer, subtitles, plan, tempDir, &tempFiles, state)
		if err != nil {
			return err
		}
		perPeriodOutputs = append(perPeriodOutputs, periodOutput)
	}

	var finalOutputs []string
	if o.opts.NoConcat {
		finalOutputs, err = renameWithoutConcat(perPeriodOutputs, o.opts.OutputPath)
	} else {
		finalOutputs, err = concatenator.Finalize(ctx, perPeriodOutputs, o.opts.OutputPath)
	}
	if err != nil {
		return newError(KindIO, "finalizing output", err)
	}

	for _, out := range finalOutputs {
		writeOutputMetadata(out, o.opts.ManifestURL, m.ProgramInformation)
	}

	return nil
}

// processPeriod fetches, decrypts, and muxes one Period's selected
// streams into a single temp container file, returning its path.
func (o *Orchestrator) processPeriod(
	ctx context.Context,
	f *fetcher.Fetcher,
	decryptor *postprocess.Decryptor,
	muxer *postprocess.Muxer,
	subtitles *postprocess.SubtitleProcessor,
	plan *planner.PeriodPlan,
	tempDir string,
	tempFiles *[]string,
	state *planner.DownloadState,
) (string, error) {
	var audioPath, videoPath string
	var err error

	// Representations within a Period are fetched sequentially: audio,
	// then video, then subtitles.
	if len(plan.AudioDescriptors) > 0 {
		audioPath, err = o.fetchAndDecrypt(ctx, f, decryptor, plan.AudioDescriptors, "audio", tempDir, tempFiles, state)
		if err != nil {
			return "", err
		}
	}
	if len(plan.VideoDescriptors) > 0 {
		videoPath, err = o.fetchAndDecrypt(ctx, f, decryptor, plan.VideoDescriptors, "video", tempDir, tempFiles, state)
		if err != nil {
			return "", err
		}
	}

	var subtitlePath string
	if len(plan.SubtitleDescriptors) > 0 {
		subtitlePath, err = o.fetchSubtitles(ctx, f, subtitles, plan, tempDir, tempFiles, state)
		if err != nil {
			return "", err
		}
	}

	muxOut, err := tempFileIn(tempDir, fmt.Sprintf("dashdl-period-%d-*%s", plan.PeriodIndex, filepath.Ext(o.opts.OutputPath)))
	if err != nil {
		return "", newError(KindIO, "creating Period output temp file", err)
	}
	*tempFiles = append(*tempFiles, muxOut)

	if err := muxer.Mux(ctx, audioPath, videoPath, muxOut); err != nil {
		return "", newError(KindMuxing, fmt.Sprintf("muxing Period %d", plan.PeriodIndex), err)
	}

	if subtitlePath != "" {
		if err := subtitles.RemuxInto(ctx, muxOut, subtitlePath); err != nil {
			return "", newError(KindMuxing, fmt.Sprintf("remuxing subtitles into Period %d", plan.PeriodIndex), err)
		}
	}

	return muxOut, nil
}

func (o *Orchestrator) fetchAndDecrypt(
	ctx context.Context,
	f *fetcher.Fetcher,
	decryptor *postprocess.Decryptor,
	descriptors []planner.FetchDescriptor,
	kind string,
	tempDir string,
	tempFiles *[]string,
	state *planner.DownloadState,
) (string, error) {
	path, err := tempFileIn(tempDir, fmt.Sprintf("dashdl-%s-*.tmp", kind))
	if err != nil {
		return "", newError(KindIO, fmt.Sprintf("creating %s temp file", kind), err)
	}
	*tempFiles = append(*tempFiles, path)

	if err := f.FetchStream(ctx, descriptors, path, kind, state); err != nil {
		return "", newError(KindNetwork, fmt.Sprintf("fetching %s stream", kind), err)
	}

	if len(o.opts.Keys) > 0 {
		if err := decryptor.DecryptStream(ctx, path, kind); err != nil {
			return "", newError(KindDecrypting, fmt.Sprintf("decrypting %s stream", kind), err)
		}
	}

	return path, nil
}

func (o *Orchestrator) fetchSubtitles(
	ctx context.Context,
	f *fetcher.Fetcher,
	subtitles *postprocess.SubtitleProcessor,
	plan *planner.PeriodPlan,
	tempDir string,
	tempFiles *[]string,
	state *planner.DownloadState,
) (string, error) {
	raw, err := tempFileIn(tempDir, "dashdl-subtitle-raw-*.tmp")
	if err != nil {
		return "", newError(KindIO, "creating subtitle temp file", err)
	}
	*tempFiles = append(*tempFiles, raw)

	if err := f.FetchStream(ctx, plan.SubtitleDescriptors, raw, "subtitle", state); err != nil {
		return "", newError(KindNetwork, "fetching subtitle stream", err)
	}

	needsExtraction := false
	for _, format := range plan.SubtitleFormats {
		if postprocess.NeedsExtraction(format) {
			needsExtraction = true
			break
		}
	}
	if !needsExtraction {
		return raw, nil
	}

	srt, err := subtitles.ExtractSRT(ctx, raw)
	if err != nil {
		return "", newError(KindMuxing, "extracting subtitles", err)
	}
	*tempFiles = append(*tempFiles, srt)
	return srt, nil
}

// renameWithoutConcat renames each per-Period file to its "-pN" sibling
// without ever attempting concatenation, the --no-concat contract.
func renameWithoutConcat(perPeriodFiles []string, outputPath string) ([]string, error) {
	if len(perPeriodFiles) == 1 {
		if perPeriodFiles[0] == outputPath {
			return perPeriodFiles, nil
		}
		if err := os.Rename(perPeriodFiles[0], outputPath); err != nil {
			return nil, err
		}
		return []string{outputPath}, nil
	}

	ext := filepath.Ext(outputPath)
	base := outputPath[:len(outputPath)-len(ext)]
	out := make([]string, 0, len(perPeriodFiles))
	for i, f := range perPeriodFiles {
		target := outputPath
		if i > 0 {
			target = fmt.Sprintf("%s-p%d%s", base, i+1, ext)
		}
		if err := os.Rename(f, target); err != nil {
			return nil, err
		}
		out = append(out, target)
	}
	return out, nil
}

func tempFileIn(dir, pattern string) (string, error) {
	f, err := os.CreateTemp(dir, pattern)
	if err != nil {
		return "", err
	}
	path := f.Name()
	f.Close()
	if err := os.Chmod(path, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

// progressAdapter bridges fetcher.ProgressObserver to ProgressObserver,
// which are structurally identical but distinct types so each package
// stays free of the other's import.
type progressAdapter struct {
	p ProgressObserver
}

func (a progressAdapter) OnProgress(percent float64, message string) {
	a.p.OnProgress(percent, message)
}
