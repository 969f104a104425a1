package postprocess

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMuxer_PreferenceFor(t *testing.T) {
	m := NewMuxer(Paths{}, "", nil)
	assert.Equal(t, []string{"mkvmerge", "ffmpeg", "mp4box"}, m.preferenceFor(".mkv"))
	assert.Equal(t, []string{"vlc", "ffmpeg"}, m.preferenceFor("webm"))
	assert.Equal(t, []string{"ffmpeg", "vlc", "mp4box"}, m.preferenceFor("mp4"))
	assert.Equal(t, []string{"ffmpeg", "mp4box"}, m.preferenceFor(".ts"))
}

func TestMuxer_PreferenceFor_UserOverrideFirst(t *testing.T) {
	m := NewMuxer(Paths{}, "mp4box", nil)
	assert.Equal(t, []string{"mp4box", "mkvmerge", "ffmpeg"}, m.preferenceFor(".mkv"))
}

func TestMuxerNameFor(t *testing.T) {
	assert.Equal(t, "matroska", muxerNameFor("out.mkv"))
	assert.Equal(t, "webm", muxerNameFor("out.webm"))
	assert.Equal(t, "mp4", muxerNameFor("out.mp4"))
}

func TestContainerMatches(t *testing.T) {
	assert.True(t, containerMatches("stream.mp4", "output.MP4"))
	assert.False(t, containerMatches("stream.mkv", "output.mp4"))
}

func TestMuxer_Mux_ShortCircuitsWhenContainerMatches(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "audio.mp4")
	require.NoError(t, os.WriteFile(src, []byte("audio-bytes"), 0o644))

	m := NewMuxer(Paths{}, "", nil)
	out := filepath.Join(dir, "output.mp4")
	err := m.Mux(t.Context(), src, "", out)
	require.NoError(t, err)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "audio-bytes", string(data))
}

func TestConcatenator_RenameSeparately(t *testing.T) {
	dir := t.TempDir()
	files := make([]string, 3)
	for i := range files {
		files[i] = filepath.Join(dir, "part"+string(rune('a'+i))+".mp4")
		require.NoError(t, os.WriteFile(files[i], []byte("x"), 0o644))
	}

	c := NewConcatenator(Paths{}, nil)
	out, err := c.renameSeparately(files, filepath.Join(dir, "final.mp4"))
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.Equal(t, filepath.Join(dir, "final.mp4"), out[0])
	assert.Equal(t, filepath.Join(dir, "final-p2.mp4"), out[1])
	assert.Equal(t, filepath.Join(dir, "final-p3.mp4"), out[2])
}

func TestConcatenator_Finalize_SinglePeriod(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "period1.mp4")
	require.NoError(t, os.WriteFile(src, []byte("data"), 0o644))

	c := NewConcatenator(Paths{}, nil)
	out := filepath.Join(dir, "final.mp4")
	files, err := c.Finalize(t.Context(), []string{src}, out)
	require.NoError(t, err)
	assert.Equal(t, []string{out}, files)
}

func TestWithinTolerance(t *testing.T) {
	assert.True(t, withinTolerance(30.0, 30.0))
	assert.True(t, withinTolerance(30.2, 30.0))
	assert.False(t, withinTolerance(31.0, 30.0))
	assert.True(t, withinTolerance(0, 0))
}

func TestParseSAR(t *testing.T) {
	w, h, ok := parseSAR("1:1")
	require.True(t, ok)
	assert.Equal(t, 1.0, w)
	assert.Equal(t, 1.0, h)

	_, _, ok = parseSAR("invalid")
	assert.False(t, ok)
}

func TestNeedsExtraction(t *testing.T) {
	assert.True(t, NeedsExtraction("wvtt"))
	assert.True(t, NeedsExtraction("STPP"))
	assert.False(t, NeedsExtraction("text/vtt"))
}

func TestResolvePaths_UsesConfiguredOverrides(t *testing.T) {
	paths := ResolvePaths("/opt/ffmpeg", "", "", "", "", "", "docker")
	assert.Equal(t, "/opt/ffmpeg", paths.FFmpeg)
	assert.Equal(t, "docker", paths.ContainerRuntime)
}

func TestRunHelper_CapturesFailureOutput(t *testing.T) {
	sh, err := exec.LookPath("sh")
	if err != nil {
		t.Skip("sh not available")
	}
	err = runHelper(t.Context(), sh, []string{"-c", "echo boom 1>&2; exit 1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}
