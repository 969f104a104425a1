// Package postprocess turns a Period's fetched audio/video/subtitle
// temp files into a finished container: decryption, muxing, subtitle
// integration, and multi-Period concatenation, each delegated to
// external helper subprocesses rather than reimplemented.
package postprocess

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/streamweave/dashdl/internal/util"
)

// maxCapturedHelperOutput bounds how much of a helper subprocess's
// stdout/stderr is kept for error reporting, matching the truncation
// internal/ffmpeg and internal/loader/xslt.go apply to their own helper
// invocations.
const maxCapturedHelperOutput = 4096

// KeyPair is a single (keyId, key) decryption credential. KeyID is either
// a decimal track number or a 32-hex-digit KID; Key is always a
// 32-hex-digit 128-bit value.
type KeyPair struct {
	KeyID string
	Key   string
}

// Paths resolves every external helper binary's path once, honoring
// configured overrides and falling back to PATH lookup.
type Paths struct {
	FFmpeg           string
	MP4Box           string
	Mkvmerge         string
	VLC              string
	Mp4decrypt       string
	ShakaPackager    string
	ContainerRuntime string
}

// ResolvePaths locates every helper binary this package may need,
// honoring the per-binary path overrides. Every binary is looked up when
// ResolvePaths runs; one that is not found is left as its bare name, so a
// missing helper only surfaces as an error when that helper is invoked.
func ResolvePaths(ffmpegPath, mp4boxPath, mkvmergePath, vlcPath, mp4decryptPath, shakaPackagerPath, containerRuntime string) Paths {
	resolve := func(configured, name, envVar string) string {
		if configured != "" {
			return configured
		}
		if path, err := util.FindBinary(name, envVar); err == nil {
			return path
		}
		return name
	}

	runtime := containerRuntime
	if runtime == "" {
		if env := os.Getenv("DOCKER"); env != "" {
			runtime = env
		} else {
			runtime = "podman"
		}
	}

	return Paths{
		FFmpeg:           resolve(ffmpegPath, "ffmpeg", "DASHDL_FFMPEG_BINARY"),
		MP4Box:           resolve(mp4boxPath, "MP4Box", "DASHDL_MP4BOX_BINARY"),
		Mkvmerge:         resolve(mkvmergePath, "mkvmerge", "DASHDL_MKVMERGE_BINARY"),
		VLC:              resolve(vlcPath, "vlc", "DASHDL_VLC_BINARY"),
		Mp4decrypt:       resolve(mp4decryptPath, "mp4decrypt", "DASHDL_MP4DECRYPT_BINARY"),
		ShakaPackager:    resolve(shakaPackagerPath, "shaka-packager", "DASHDL_SHAKA_PACKAGER_BINARY"),
		ContainerRuntime: runtime,
	}
}

// runHelper runs an external helper subprocess to completion, capturing up
// to maxCapturedHelperOutput octets of combined stdout+stderr for error
// reporting on failure.
func runHelper(ctx context.Context, binary string, args []string) error {
	cmd := exec.CommandContext(ctx, binary, args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("getting stdout pipe for %s: %w", binary, err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("getting stderr pipe for %s: %w", binary, err)
	}

	captured := make(chan string, 2)
	go captureOutput(stdout, captured)
	go captureOutput(stderr, captured)

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting %s: %w", binary, err)
	}

	var combined strings.Builder
	for i := 0; i < 2; i++ {
		combined.WriteString(<-captured)
	}

	if waitErr := cmd.Wait(); waitErr != nil {
		out := combined.String()
		if len(out) > maxCapturedHelperOutput {
			out = out[:maxCapturedHelperOutput]
		}
		return fmt.Errorf("%s failed: %w (output: %s)", binary, waitErr, out)
	}
	return nil
}

func captureOutput(r interface{ Read([]byte) (int, error) }, out chan<- string) {
	scanner := bufio.NewScanner(r)
	var buf strings.Builder
	for scanner.Scan() {
		if buf.Len() < maxCapturedHelperOutput {
			buf.WriteString(scanner.Text())
			buf.WriteByte('\n')
		}
	}
	out <- buf.String()
}

// chmodForHelper sets the 0o644 permission every temp file needs before
// being handed to a helper subprocess, which may run as a different UID
// when containerized.
func chmodForHelper(path string) error {
	return os.Chmod(path, 0o644)
}

// tempFile creates an empty temp file in dir (or the default temp
// directory when dir is empty) with the given name pattern, chmods it to
// 0o644, and returns its path.
func tempFile(dir, pattern string) (string, error) {
	f, err := os.CreateTemp(dir, pattern)
	if err != nil {
		return "", fmt.Errorf("creating temp file: %w", err)
	}
	path := f.Name()
	f.Close()
	if err := chmodForHelper(path); err != nil {
		return "", fmt.Errorf("chmodding temp file %q: %w", path, err)
	}
	return path, nil
}

// removeUnlessPersisted deletes path unless persist is set or the
// DASHMPD_PERSIST_FILES environment variable is set (to any value), in
// which case it is left on disk for debugging.
func removeUnlessPersisted(path string, persist bool) {
	if _, keep := os.LookupEnv("DASHMPD_PERSIST_FILES"); keep || persist || path == "" {
		return
	}
	_ = os.Remove(path)
}

// helperTimeout bounds a single helper invocation; decrypt/mux/concat
// operations on segment-sized media rarely need more than a few minutes.
const helperTimeout = 10 * time.Minute
