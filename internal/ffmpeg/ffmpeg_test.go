package ffmpeg

import (
	"context"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func skipIfNoFFmpeg(t *testing.T) string {
	t.Helper()
	path, err := exec.LookPath("ffmpeg")
	if err != nil {
		t.Skip("ffmpeg not installed")
	}
	return path
}

func skipIfNoFFprobe(t *testing.T) string {
	t.Helper()
	path, err := exec.LookPath("ffprobe")
	if err != nil {
		t.Skip("ffprobe not installed")
	}
	return path
}

func TestCommandBuilder_Build_Mux(t *testing.T) {
	cmd := NewCommandBuilder("/usr/bin/ffmpeg").
		Overwrite().
		Input("video.mp4").
		Input("audio.mp4").
		MapStream("0:v:0").
		MapStream("1:a:0").
		CopyCodecs().
		Output("output.mkv").
		Build()

	assert.Equal(t, "/usr/bin/ffmpeg", cmd.Binary)
	assert.Contains(t, cmd.Args, "-y")
	assert.Contains(t, cmd.Args, "video.mp4")
	assert.Contains(t, cmd.Args, "audio.mp4")
	assert.Contains(t, cmd.Args, "-map")
	assert.Contains(t, cmd.Args, "-c")
	assert.Contains(t, cmd.Args, "copy")
	assert.Equal(t, "output.mkv", cmd.Args[len(cmd.Args)-1])
}

func TestCommandBuilder_String(t *testing.T) {
	cmd := NewCommandBuilder("/usr/bin/ffmpeg").
		Input("input.mp4").
		CopyCodecs().
		Output("output.mp4").
		Build()

	str := cmd.String()
	assert.Contains(t, str, "/usr/bin/ffmpeg")
	assert.Contains(t, str, "input.mp4")
	assert.Contains(t, str, "output.mp4")
}

func TestCommandBuilder_ConcatDemuxer(t *testing.T) {
	cmd := NewCommandBuilder("/usr/bin/ffmpeg").
		InputArgs("-f", "concat", "-safe", "0").
		Input("list.txt").
		CopyCodecs().
		Output("out.mp4").
		Build()

	cmdStr := cmd.String()
	assert.Contains(t, cmdStr, "-f concat")
	assert.Contains(t, cmdStr, "-safe 0")
	assert.Contains(t, cmdStr, "list.txt")
}

func TestCommand_Duration_BeforeRun(t *testing.T) {
	cmd := &Command{Binary: "/usr/bin/ffmpeg"}
	assert.Equal(t, time.Duration(0), cmd.Duration())
}

func TestCommand_Run_Success(t *testing.T) {
	ffmpegPath := skipIfNoFFmpeg(t)

	cmd := NewCommandBuilder(ffmpegPath).
		OutputArgs("-version").
		Build()
	// override args directly since -version takes no input/output
	cmd.Args = []string{"-version"}

	err := cmd.Run(context.Background())
	require.NoError(t, err)
}

func TestProbeResult_GetVideoStream(t *testing.T) {
	result := &ProbeResult{
		Streams: []ProbeStream{
			{CodecType: "audio", CodecName: "aac"},
			{CodecType: "video", CodecName: "h264", Width: 1920, Height: 1080},
		},
	}
	s := result.GetVideoStream()
	require.NotNil(t, s)
	assert.Equal(t, "h264", s.CodecName)
	assert.Equal(t, 1920, s.Width)
}

func TestProbeResult_GetAudioStream(t *testing.T) {
	result := &ProbeResult{
		Streams: []ProbeStream{
			{CodecType: "video", CodecName: "h264"},
			{CodecType: "audio", CodecName: "aac", Channels: 2},
		},
	}
	s := result.GetAudioStream()
	require.NotNil(t, s)
	assert.Equal(t, "aac", s.CodecName)
	assert.Equal(t, 2, s.Channels)
}

func TestProbeResult_GetStreamsByType(t *testing.T) {
	result := &ProbeResult{
		Streams: []ProbeStream{
			{CodecType: "subtitle"},
			{CodecType: "subtitle"},
			{CodecType: "video"},
		},
	}
	assert.Len(t, result.GetStreamsByType("subtitle"), 2)
	assert.Len(t, result.GetStreamsByType("video"), 1)
}

func TestProbeResult_Duration(t *testing.T) {
	result := &ProbeResult{Format: ProbeFormat{Duration: "12.5"}}
	assert.Equal(t, int64(12500), result.Duration())
}

func TestProbeResult_Bitrate(t *testing.T) {
	result := &ProbeResult{Format: ProbeFormat{BitRate: "512000"}}
	assert.Equal(t, 512000, result.Bitrate())
}

func TestProbeStream_Framerate(t *testing.T) {
	tests := []struct {
		in   ProbeStream
		want float64
	}{
		{ProbeStream{AvgFrameRate: "30/1"}, 30.0},
		{ProbeStream{RFrameRate: "25/1"}, 25.0},
		{ProbeStream{}, 0},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, tt.in.Framerate(), 0.001)
	}
}

func TestParseFramerate(t *testing.T) {
	tests := []struct {
		input    string
		expected float64
	}{
		{"30/1", 30.0},
		{"25/1", 25.0},
		{"30000/1001", 29.97002997002997},
		{"0/0", 0},
		{"invalid", 0},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.expected, parseFramerate(tt.input), 0.0001)
	}
}

func TestIntegration_Prober_ProbeTestVideo(t *testing.T) {
	ffprobePath := skipIfNoFFprobe(t)

	p := NewProber(ffprobePath)
	_, err := p.Probe(context.Background(), "testdata/does-not-exist.mp4")
	assert.Error(t, err)
}
