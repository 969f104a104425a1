package postprocess

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// DecryptMethod names the configured decryption helper.
type DecryptMethod string

const (
	DecryptMP4Decrypt     DecryptMethod = "mp4decrypt"
	DecryptShakaPackager  DecryptMethod = "shaka-packager"
	DecryptShakaContainer DecryptMethod = "shaka-packager-container"
	DecryptMP4Box         DecryptMethod = "mp4box"
)

// DecryptConfig selects which helper decrypts each stream and whether it
// runs containerized.
type DecryptConfig struct {
	Method  DecryptMethod
	Keys    []KeyPair
	TempDir string
}

// Decryptor invokes the configured decryption helper on one stream at a
// time, replacing the encrypted temp file with a decrypted one on
// success.
type Decryptor struct {
	paths  Paths
	cfg    DecryptConfig
	logger *slog.Logger
}

// NewDecryptor creates a Decryptor. logger may be nil.
func NewDecryptor(paths Paths, cfg DecryptConfig, logger *slog.Logger) *Decryptor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Decryptor{paths: paths, cfg: cfg, logger: logger}
}

// DecryptStream decrypts inputPath (kind is "audio" or "video", used by
// shaka-packager's stream= argument) in place: on success inputPath is
// overwritten with the plaintext and no new file is returned; the
// encrypted bytes are discarded. Returns a Decrypting error if the helper
// fails or produces empty output.
func (d *Decryptor) DecryptStream(ctx context.Context, inputPath, kind string) error {
	if len(d.cfg.Keys) == 0 {
		return fmt.Errorf("decrypting %s: no keys configured", inputPath)
	}

	out, err := tempFile(d.cfg.TempDir, "dashdl-decrypt-*")
	if err != nil {
		return fmt.Errorf("decrypting %s: %w", inputPath, err)
	}
	defer removeUnlessPersisted(out, false)

	ctx, cancel := context.WithTimeout(ctx, helperTimeout)
	defer cancel()

	switch d.cfg.Method {
	case DecryptShakaPackager, DecryptShakaContainer:
		err = d.decryptShaka(ctx, inputPath, out, kind)
	case DecryptMP4Box:
		err = d.decryptMP4Box(ctx, inputPath, out)
	default:
		err = d.decryptMP4Decrypt(ctx, inputPath, out)
	}
	if err != nil {
		return fmt.Errorf("decrypting %s stream %q: %w", kind, inputPath, err)
	}

	info, err := os.Stat(out)
	if err != nil || info.Size() == 0 {
		return fmt.Errorf("decrypting %s stream %q: helper produced empty output", kind, inputPath)
	}

	if err := os.Rename(out, inputPath); err != nil {
		return fmt.Errorf("decrypting %s stream %q: replacing with decrypted output: %w", kind, inputPath, err)
	}
	return nil
}

// decryptMP4Decrypt runs `mp4decrypt --key <kid>:<key> ... in out`.
func (d *Decryptor) decryptMP4Decrypt(ctx context.Context, in, out string) error {
	args := make([]string, 0, len(d.cfg.Keys)*2+2)
	for _, k := range d.cfg.Keys {
		args = append(args, "--key", fmt.Sprintf("%s:%s", k.KeyID, k.Key))
	}
	args = append(args, in, out)
	return runHelper(ctx, d.paths.Mp4decrypt, args)
}

// decryptShaka runs shaka-packager's raw-key decryption, directly or
// inside a container runtime when configured.
func (d *Decryptor) decryptShaka(ctx context.Context, in, out, kind string) error {
	streamSpec := fmt.Sprintf("in=%s,stream=%s,output=%s", in, kind, out)

	var keySpecs []string
	for i, k := range d.cfg.Keys {
		keySpecs = append(keySpecs, fmt.Sprintf("label=lbl%d:key_id=%s:key=%s", i, k.KeyID, k.Key))
	}

	args := []string{streamSpec, "--enable_raw_key_decryption", "--keys", strings.Join(keySpecs, ",")}

	if d.cfg.Method != DecryptShakaContainer {
		return runHelper(ctx, d.paths.ShakaPackager, args)
	}

	hostDir := filepath.Dir(in)
	containerArgs := []string{
		"run", "--rm",
		"--network=none",
		"--userns=keep-id",
		"-v", fmt.Sprintf("%s:/tmp", hostDir),
	}
	containerArgs = append(containerArgs, "shaka-packager")
	containerArgs = append(containerArgs, args...)
	return runHelper(ctx, d.paths.ContainerRuntime, containerArgs)
}

// decryptMP4Box writes a drm.xml key file and runs `MP4Box -decrypt
// drm.xml in -out out`.
func (d *Decryptor) decryptMP4Box(ctx context.Context, in, out string) error {
	drmPath, err := tempFile(d.cfg.TempDir, "dashdl-drm-*.xml")
	if err != nil {
		return err
	}
	defer removeUnlessPersisted(drmPath, false)

	var xml string
	xml = "<GPACDRM>\n"
	for _, k := range d.cfg.Keys {
		xml += fmt.Sprintf("  <CrypTrack trackID=\"1\" key=\"0x%s\" IV=\"0x00000000000000000000000000000000\"/>\n", k.Key)
		xml += fmt.Sprintf("  <key KID=\"0x%s\" value=\"0x%s\"/>\n", k.KeyID, k.Key)
	}
	xml += "</GPACDRM>\n"

	if err := os.WriteFile(drmPath, []byte(xml), 0o644); err != nil {
		return fmt.Errorf("writing drm.xml: %w", err)
	}

	return runHelper(ctx, d.paths.MP4Box, []string{"-decrypt", drmPath, in, "-out", out})
}
