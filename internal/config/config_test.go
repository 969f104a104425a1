package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, 30*time.Second, cfg.HTTP.Timeout)
	assert.Equal(t, 10_000*time.Second, cfg.HTTP.BaseURLTimeout)
	assert.Equal(t, 3, cfg.HTTP.RetryAttempts)

	assert.Equal(t, 10, cfg.Fetch.FragmentRetryCount)
	assert.Equal(t, 30, cfg.Fetch.MaxErrorCount)
	assert.Equal(t, ByteSize(0), cfg.Fetch.BandwidthLimit)
	assert.True(t, cfg.Fetch.VerifyContentType)
	assert.False(t, cfg.Fetch.ArchiveFragments)

	assert.Equal(t, 5, cfg.Manifest.XLinkDepth)
	assert.True(t, cfg.Manifest.AllowIndexRange)
	assert.True(t, cfg.Manifest.CheckConformity)

	assert.Equal(t, "podman", cfg.Helpers.ContainerRuntime)

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoad_FromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "dashdl.yaml")

	configContent := `
http:
  timeout: 60s
  retry_attempts: 5

fetch:
  max_error_count: 50
  bandwidth_limit: 500000

manifest:
  xlink_depth: 3
  allow_index_range: false

logging:
  level: "debug"
  format: "text"
`
	err := os.WriteFile(configPath, []byte(configContent), 0o600)
	require.NoError(t, err)

	cfg, err := Load(configPath)
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, 60*time.Second, cfg.HTTP.Timeout)
	assert.Equal(t, 5, cfg.HTTP.RetryAttempts)
	assert.Equal(t, 50, cfg.Fetch.MaxErrorCount)
	assert.Equal(t, ByteSize(500000), cfg.Fetch.BandwidthLimit)
	assert.Equal(t, 3, cfg.Manifest.XLinkDepth)
	assert.False(t, cfg.Manifest.AllowIndexRange)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("DASHDL_HTTP_RETRY_ATTEMPTS", "7")
	t.Setenv("DASHDL_FETCH_MAX_ERROR_COUNT", "100")
	t.Setenv("DASHDL_LOGGING_LEVEL", "warn")

	cfg, err := Load("")
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, 7, cfg.HTTP.RetryAttempts)
	assert.Equal(t, 100, cfg.Fetch.MaxErrorCount)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "dashdl.yaml")

	configContent := `
http:
  retry_attempts: 3
manifest:
  xlink_depth: 5
`
	err := os.WriteFile(configPath, []byte(configContent), 0o600)
	require.NoError(t, err)

	t.Setenv("DASHDL_HTTP_RETRY_ATTEMPTS", "9")

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, 9, cfg.HTTP.RetryAttempts)
	assert.Equal(t, 5, cfg.Manifest.XLinkDepth)
}

func TestValidate_ValidConfig(t *testing.T) {
	cfg := &Config{
		HTTP: HTTPConfig{
			Timeout: 30 * time.Second,
		},
		Fetch: FetchConfig{
			FragmentRetryCount: 10,
			MaxErrorCount:      30,
		},
		Manifest: ManifestConfig{
			XLinkDepth: 5,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}

	err := cfg.Validate()
	assert.NoError(t, err)
}

func TestValidate_InvalidTimeout(t *testing.T) {
	cfg := &Config{
		HTTP: HTTPConfig{Timeout: 0},
		Fetch: FetchConfig{
			MaxErrorCount: 1,
		},
		Logging: LoggingConfig{Level: "info", Format: "json"},
	}
	err := cfg.Validate()
	assert.Error(t, err)
}

func TestValidate_InvalidMaxErrorCount(t *testing.T) {
	cfg := &Config{
		HTTP: HTTPConfig{Timeout: 30 * time.Second},
		Fetch: FetchConfig{
			MaxErrorCount: 0,
		},
		Logging: LoggingConfig{Level: "info", Format: "json"},
	}
	err := cfg.Validate()
	assert.Error(t, err)
}

func TestValidate_InvalidLoggingLevel(t *testing.T) {
	tests := []struct {
		name  string
		level string
	}{
		{"empty", ""},
		{"unknown", "verbose"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				HTTP:    HTTPConfig{Timeout: 30 * time.Second},
				Fetch:   FetchConfig{MaxErrorCount: 1},
				Logging: LoggingConfig{Level: tt.level, Format: "json"},
			}
			err := cfg.Validate()
			assert.Error(t, err)
		})
	}
}

func TestValidate_InvalidLoggingFormat(t *testing.T) {
	cfg := &Config{
		HTTP:    HTTPConfig{Timeout: 30 * time.Second},
		Fetch:   FetchConfig{MaxErrorCount: 1},
		Logging: LoggingConfig{Level: "info", Format: "xml"},
	}
	err := cfg.Validate()
	assert.Error(t, err)
}
